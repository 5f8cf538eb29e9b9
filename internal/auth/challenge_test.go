package auth

import (
	"context"
	"errors"
	"strconv"
	"testing"
	"time"

	dyn "github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"

	"github.com/imrishuroy/go-foodorder/internal/apperr"
)

// mockDynamo evaluates just enough of the consume condition to exercise the store.
type mockDynamo struct {
	items map[string]map[string]types.AttributeValue
}

func newMockDynamo() *mockDynamo {
	return &mockDynamo{items: map[string]map[string]types.AttributeValue{}}
}

func (m *mockDynamo) PutItem(ctx context.Context, in *dyn.PutItemInput, optFns ...func(*dyn.Options)) (*dyn.PutItemOutput, error) {
	email := in.Item["email"].(*types.AttributeValueMemberS).Value
	m.items[email] = in.Item
	return &dyn.PutItemOutput{}, nil
}

func (m *mockDynamo) GetItem(ctx context.Context, in *dyn.GetItemInput, optFns ...func(*dyn.Options)) (*dyn.GetItemOutput, error) {
	email := in.Key["email"].(*types.AttributeValueMemberS).Value
	return &dyn.GetItemOutput{Item: m.items[email]}, nil
}

func (m *mockDynamo) UpdateItem(ctx context.Context, in *dyn.UpdateItemInput, optFns ...func(*dyn.Options)) (*dyn.UpdateItemOutput, error) {
	email := in.Key["email"].(*types.AttributeValueMemberS).Value
	item, ok := m.items[email]
	if !ok {
		return nil, &types.ConditionalCheckFailedException{}
	}
	vals := in.ExpressionAttributeValues
	hash := item["code_hash"].(*types.AttributeValueMemberS).Value
	consumed := item["consumed"].(*types.AttributeValueMemberBOOL).Value
	exp, _ := strconv.ParseInt(item["expires_at"].(*types.AttributeValueMemberN).Value, 10, 64)
	now, _ := strconv.ParseInt(vals[":now"].(*types.AttributeValueMemberN).Value, 10, 64)
	attempts := 0
	if a, ok := item["attempts"].(*types.AttributeValueMemberN); ok {
		attempts, _ = strconv.Atoi(a.Value)
	}
	if consumed || exp <= now {
		return nil, &types.ConditionalCheckFailedException{}
	}

	if *in.UpdateExpression == "ADD attempts :one" {
		item["attempts"] = &types.AttributeValueMemberN{Value: strconv.Itoa(attempts + 1)}
		return &dyn.UpdateItemOutput{}, nil
	}
	limit, _ := strconv.Atoi(vals[":max"].(*types.AttributeValueMemberN).Value)
	if hash != vals[":h"].(*types.AttributeValueMemberS).Value || attempts >= limit {
		return nil, &types.ConditionalCheckFailedException{}
	}
	item["consumed"] = vals[":t"]
	return &dyn.UpdateItemOutput{}, nil
}

func TestDynamoChallengeStore_ConsumeOnce(t *testing.T) {
	mock := newMockDynamo()
	store := NewDynamoChallengeStore(mock, "reset-challenges")
	ctx := context.Background()
	now := time.Now()

	err := store.Put(ctx, Challenge{Email: "a@example.com", CodeHash: hashCode("123456"), ExpiresAt: now.Add(ResetCodeTTL), CreatedAt: now})
	if err != nil {
		t.Fatalf("put: %v", err)
	}
	if _, ok := mock.items["a@example.com"]["expires_at"].(*types.AttributeValueMemberN); !ok {
		t.Fatal("expires_at must be stored as a number for TTL")
	}

	if err := store.Consume(ctx, "a@example.com", hashCode("654321"), now); !errors.Is(err, apperr.ErrInvalidChallenge) {
		t.Fatalf("expected wrong code rejected, got %v", err)
	}
	if err := store.Consume(ctx, "a@example.com", hashCode("123456"), now); err != nil {
		t.Fatalf("consume: %v", err)
	}
	if err := store.Consume(ctx, "a@example.com", hashCode("123456"), now); !errors.Is(err, apperr.ErrInvalidChallenge) {
		t.Fatalf("expected second consume rejected, got %v", err)
	}
}

func TestDynamoChallengeStore_Expired(t *testing.T) {
	mock := newMockDynamo()
	store := NewDynamoChallengeStore(mock, "reset-challenges")
	ctx := context.Background()
	now := time.Now()

	_ = store.Put(ctx, Challenge{Email: "b@example.com", CodeHash: hashCode("111111"), ExpiresAt: now.Add(time.Minute)})
	if err := store.Consume(ctx, "b@example.com", hashCode("111111"), now.Add(2*time.Minute)); !errors.Is(err, apperr.ErrInvalidChallenge) {
		t.Fatalf("expected expired code rejected, got %v", err)
	}
}

func TestDynamoChallengeStore_LocksAfterWrongCodes(t *testing.T) {
	mock := newMockDynamo()
	store := NewDynamoChallengeStore(mock, "reset-challenges")
	ctx := context.Background()
	now := time.Now()

	_ = store.Put(ctx, Challenge{Email: "c@example.com", CodeHash: hashCode("222222"), ExpiresAt: now.Add(ResetCodeTTL)})
	for i := 0; i < MaxResetAttempts; i++ {
		if err := store.Consume(ctx, "c@example.com", hashCode("999999"), now); !errors.Is(err, apperr.ErrInvalidChallenge) {
			t.Fatalf("attempt %d: expected wrong code rejected, got %v", i, err)
		}
	}
	if got := mock.items["c@example.com"]["attempts"].(*types.AttributeValueMemberN).Value; got != strconv.Itoa(MaxResetAttempts) {
		t.Fatalf("expected %d attempts recorded, got %s", MaxResetAttempts, got)
	}
	if err := store.Consume(ctx, "c@example.com", hashCode("222222"), now); !errors.Is(err, apperr.ErrInvalidChallenge) {
		t.Fatalf("expected locked challenge to refuse the right code, got %v", err)
	}
}
