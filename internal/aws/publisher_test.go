package aws

import (
	"context"
	"errors"
	"testing"

	"github.com/aws/aws-sdk-go-v2/service/sqs"
)

type mockSQS struct {
	inputs []*sqs.SendMessageInput
	err    error
}

func (m *mockSQS) SendMessage(ctx context.Context, in *sqs.SendMessageInput, optFns ...func(*sqs.Options)) (*sqs.SendMessageOutput, error) {
	if m.err != nil {
		return nil, m.err
	}
	m.inputs = append(m.inputs, in)
	return &sqs.SendMessageOutput{}, nil
}

func TestPublisher_SendJSON(t *testing.T) {
	mock := &mockSQS{}
	p := NewPublisher(mock, "https://sqs.local/orders")

	err := p.SendJSON(context.Background(), map[string]string{"order_id": "o1"}, map[string]string{"event_type": "order.created"})
	if err != nil {
		t.Fatalf("send: %v", err)
	}
	if len(mock.inputs) != 1 {
		t.Fatalf("expected one message, got %d", len(mock.inputs))
	}
	in := mock.inputs[0]
	if *in.QueueUrl != "https://sqs.local/orders" || *in.MessageBody != `{"order_id":"o1"}` {
		t.Fatalf("unexpected input %s %s", *in.QueueUrl, *in.MessageBody)
	}
	if v := in.MessageAttributes["event_type"]; v.StringValue == nil || *v.StringValue != "order.created" {
		t.Fatalf("attribute missing")
	}
}

func TestPublisher_SendError(t *testing.T) {
	p := NewPublisher(&mockSQS{err: errors.New("boom")}, "q")
	if err := p.Send(context.Background(), "{}", nil); err == nil {
		t.Fatal("expected error")
	}
}
