package main

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/aws/smithy-go"

	"github.com/imrishuroy/go-foodorder/internal/aws"
)

// Ledger dedupes deliveries across SQS redeliveries. Claim returns false when
// the key was already delivered or another consumer holds a live lease on it.
type Ledger interface {
	Claim(ctx context.Context, key string) (bool, error)
	Done(ctx context.Context, key string) error
	Release(ctx context.Context, key string) error
}

const (
	leaseFor      = 2 * time.Minute
	keepDelivered = 7 * 24 * time.Hour

	statusSending = "SENDING"
	statusSent    = "SENT"
)

// DynamoLedger keeps one item per delivery key, expired by the table TTL on
// expires_at.
type DynamoLedger struct {
	client  aws.DynamoDBAPI
	table   string
	nowFunc func() time.Time
}

func NewDynamoLedger(client aws.DynamoDBAPI, table string) *DynamoLedger {
	return &DynamoLedger{client: client, table: table, nowFunc: time.Now}
}

func (l *DynamoLedger) Claim(ctx context.Context, key string) (bool, error) {
	now := l.nowFunc()
	_, err := l.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName: &l.table,
		Item: map[string]types.AttributeValue{
			"delivery_key": &types.AttributeValueMemberS{Value: key},
			"status":       &types.AttributeValueMemberS{Value: statusSending},
			"lease_until":  unix(now.Add(leaseFor)),
			"expires_at":   unix(now.Add(keepDelivered)),
		},
		ConditionExpression:      strPtr("attribute_not_exists(delivery_key) OR (#s <> :sent AND lease_until < :now)"),
		ExpressionAttributeNames: map[string]string{"#s": "status"},
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":sent": &types.AttributeValueMemberS{Value: statusSent},
			":now":  unix(now),
		},
	})
	if err == nil {
		return true, nil
	}
	if conditionFailed(err) {
		return false, nil
	}
	return false, fmt.Errorf("claim delivery %s: %w", key, err)
}

func (l *DynamoLedger) Done(ctx context.Context, key string) error {
	return l.update(ctx, key, "SET #s = :v", map[string]string{"#s": "status"}, map[string]types.AttributeValue{
		":v": &types.AttributeValueMemberS{Value: statusSent},
	})
}

// Release drops the lease so the next redelivery may retry.
func (l *DynamoLedger) Release(ctx context.Context, key string) error {
	return l.update(ctx, key, "SET lease_until = :v", nil, map[string]types.AttributeValue{
		":v": unix(time.Unix(0, 0)),
	})
}

func (l *DynamoLedger) update(ctx context.Context, key, expr string, names map[string]string, values map[string]types.AttributeValue) error {
	in := &dynamodb.UpdateItemInput{
		TableName:                 &l.table,
		Key:                       map[string]types.AttributeValue{"delivery_key": &types.AttributeValueMemberS{Value: key}},
		UpdateExpression:          &expr,
		ExpressionAttributeValues: values,
	}
	if len(names) > 0 {
		in.ExpressionAttributeNames = names
	}
	if _, err := l.client.UpdateItem(ctx, in); err != nil {
		return fmt.Errorf("update delivery %s: %w", key, err)
	}
	return nil
}

func conditionFailed(err error) bool {
	var apiErr smithy.APIError
	return errors.As(err, &apiErr) && apiErr.ErrorCode() == "ConditionalCheckFailedException"
}

func unix(t time.Time) types.AttributeValue {
	return &types.AttributeValueMemberN{Value: strconv.FormatInt(t.Unix(), 10)}
}

func strPtr(s string) *string { return &s }

// memoryLedger is used when no ledger table is configured. It only dedupes
// within one warm process.
type memoryLedger struct {
	mu   sync.Mutex
	sent map[string]bool
	busy map[string]bool
}

func newMemoryLedger() *memoryLedger {
	return &memoryLedger{sent: map[string]bool{}, busy: map[string]bool{}}
}

func (m *memoryLedger) Claim(ctx context.Context, key string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.sent[key] || m.busy[key] {
		return false, nil
	}
	m.busy[key] = true
	return true, nil
}

func (m *memoryLedger) Done(ctx context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.busy, key)
	m.sent[key] = true
	return nil
}

func (m *memoryLedger) Release(ctx context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.busy, key)
	return nil
}
