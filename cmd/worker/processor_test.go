package main

import (
	"context"
	"encoding/json"
	"errors"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/aws/aws-lambda-go/events"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/aws/smithy-go"

	"github.com/imrishuroy/go-foodorder/internal/logging"
	"github.com/imrishuroy/go-foodorder/internal/notify"
	"github.com/imrishuroy/go-foodorder/internal/orders"
)

type sentMail struct {
	to, subject, body string
}

type fakeMailer struct {
	mu   sync.Mutex
	sent []sentMail
	fail error
}

func (m *fakeMailer) Send(ctx context.Context, to, subject, body string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.fail != nil {
		return m.fail
	}
	m.sent = append(m.sent, sentMail{to, subject, body})
	return nil
}

func sqsRecord(t *testing.T, id string, msg notify.Message) events.SQSMessage {
	t.Helper()
	b, err := json.Marshal(msg)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	return events.SQSMessage{MessageId: id, Body: string(b)}
}

func confirmedMessage() notify.Message {
	return notify.Message{
		Event: orders.Event{
			Type:          orders.EventConfirmed,
			OrderID:       "0b6f7c1e-aaaa-bbbb-cccc-000000000001",
			UserID:        1,
			Status:        orders.StatusConfirmed,
			PaymentStatus: orders.PaymentPaid,
			Total:         60000,
		},
		Email:    "alice@example.com",
		FullName: "Alice",
	}
}

func TestProcessor_SendsOncePerEvent(t *testing.T) {
	mailer := &fakeMailer{}
	p := NewProcessor(mailer, newMemoryLedger(), logging.Discard())
	msg := confirmedMessage()

	ev := events.SQSEvent{Records: []events.SQSMessage{sqsRecord(t, "m1", msg), sqsRecord(t, "m2", msg)}}
	resp, err := p.Handle(context.Background(), ev)
	if err != nil || len(resp.BatchItemFailures) != 0 {
		t.Fatalf("unexpected failure %v %+v", err, resp)
	}
	if len(mailer.sent) != 1 {
		t.Fatalf("expected one mail for a redelivered event, got %d", len(mailer.sent))
	}
	got := mailer.sent[0]
	if got.to != "alice@example.com" || !strings.Contains(got.subject, "confirmed") || !strings.Contains(got.body, "60000 VND") {
		t.Fatalf("unexpected mail %+v", got)
	}
	if !strings.Contains(got.body, "payment") {
		t.Fatalf("paid confirmation should mention the payment: %q", got.body)
	}
}

func TestProcessor_FailedSendIsRetried(t *testing.T) {
	mailer := &fakeMailer{fail: errors.New("smtp down")}
	p := NewProcessor(mailer, newMemoryLedger(), logging.Discard())
	ev := events.SQSEvent{Records: []events.SQSMessage{sqsRecord(t, "m1", confirmedMessage())}}

	resp, _ := p.Handle(context.Background(), ev)
	if len(resp.BatchItemFailures) != 1 || resp.BatchItemFailures[0].ItemIdentifier != "m1" {
		t.Fatalf("expected m1 reported as failed, got %+v", resp)
	}

	mailer.fail = nil
	resp, _ = p.Handle(context.Background(), ev)
	if len(resp.BatchItemFailures) != 0 || len(mailer.sent) != 1 {
		t.Fatalf("redelivery after release should send, got %+v sent=%d", resp, len(mailer.sent))
	}
}

func TestProcessor_DropsUnusableMessages(t *testing.T) {
	mailer := &fakeMailer{}
	p := NewProcessor(mailer, newMemoryLedger(), logging.Discard())
	noEmail := confirmedMessage()
	noEmail.Email = ""
	unknown := confirmedMessage()
	unknown.Type = "order.archived"

	ev := events.SQSEvent{Records: []events.SQSMessage{
		{MessageId: "bad", Body: "{not json"},
		sqsRecord(t, "no-email", noEmail),
		sqsRecord(t, "unknown", unknown),
	}}
	resp, _ := p.Handle(context.Background(), ev)
	if len(resp.BatchItemFailures) != 0 || len(mailer.sent) != 0 {
		t.Fatalf("expected silent drops, got %+v sent=%d", resp, len(mailer.sent))
	}
}

func TestCompose_AllCustomerEvents(t *testing.T) {
	for _, typ := range []string{orders.EventCreated, orders.EventConfirmed, orders.EventCancelled, orders.EventRefunded} {
		msg := confirmedMessage()
		msg.Type = typ
		subject, body, ok := compose(msg)
		if !ok || subject == "" || !strings.HasPrefix(body, "Hello Alice,") {
			t.Errorf("%s: unexpected %q %q %v", typ, subject, body, ok)
		}
	}
}

// mockDynamo holds ledger items and evaluates the claim condition.
type mockDynamo struct {
	mu    sync.Mutex
	items map[string]map[string]types.AttributeValue
}

func (m *mockDynamo) PutItem(ctx context.Context, in *dynamodb.PutItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	key := in.Item["delivery_key"].(*types.AttributeValueMemberS).Value
	if cur, ok := m.items[key]; ok {
		now := num(in.ExpressionAttributeValues[":now"])
		sent := cur["status"].(*types.AttributeValueMemberS).Value == statusSent
		if sent || num(cur["lease_until"]) >= now {
			return nil, &smithy.GenericAPIError{Code: "ConditionalCheckFailedException"}
		}
	}
	m.items[key] = in.Item
	return &dynamodb.PutItemOutput{}, nil
}

func (m *mockDynamo) GetItem(ctx context.Context, in *dynamodb.GetItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error) {
	return &dynamodb.GetItemOutput{}, nil
}

func (m *mockDynamo) UpdateItem(ctx context.Context, in *dynamodb.UpdateItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.UpdateItemOutput, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	key := in.Key["delivery_key"].(*types.AttributeValueMemberS).Value
	item := m.items[key]
	if strings.Contains(*in.UpdateExpression, "#s") {
		item["status"] = in.ExpressionAttributeValues[":v"]
	} else {
		item["lease_until"] = in.ExpressionAttributeValues[":v"]
	}
	return &dynamodb.UpdateItemOutput{}, nil
}

func num(v types.AttributeValue) int64 {
	n, _ := strconv.ParseInt(v.(*types.AttributeValueMemberN).Value, 10, 64)
	return n
}

func TestDynamoLedger_ClaimLeaseAndDone(t *testing.T) {
	mock := &mockDynamo{items: map[string]map[string]types.AttributeValue{}}
	l := NewDynamoLedger(mock, "deliveries")
	now := time.Unix(1_800_000_000, 0)
	l.nowFunc = func() time.Time { return now }
	ctx := context.Background()

	if ok, err := l.Claim(ctx, "k"); !ok || err != nil {
		t.Fatalf("first claim: %v %v", ok, err)
	}
	if ok, _ := l.Claim(ctx, "k"); ok {
		t.Fatal("claim under a live lease must fail")
	}
	if err := l.Release(ctx, "k"); err != nil {
		t.Fatalf("release: %v", err)
	}
	if ok, _ := l.Claim(ctx, "k"); !ok {
		t.Fatal("released key must be claimable")
	}
	if err := l.Done(ctx, "k"); err != nil {
		t.Fatalf("done: %v", err)
	}
	now = now.Add(time.Hour)
	if ok, _ := l.Claim(ctx, "k"); ok {
		t.Fatal("delivered key must never be claimed again")
	}
}
