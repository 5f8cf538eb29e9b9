package auth

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	dyn "github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/aws/smithy-go"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/imrishuroy/go-foodorder/internal/apperr"
	"github.com/imrishuroy/go-foodorder/internal/aws"
)

// Challenge is a pending password reset. Only the code digest is stored.
type Challenge struct {
	Email     string    `gorm:"primaryKey"`
	CodeHash  string    `gorm:"not null"`
	ExpiresAt time.Time `gorm:"not null"`
	Consumed  bool      `gorm:"not null;default:false"`
	Attempts  int       `gorm:"not null;default:0"`
	CreatedAt time.Time
}

func (Challenge) TableName() string { return "reset_challenges" }

// MaxResetAttempts is how many wrong codes a challenge absorbs before it stops
// accepting any code, the right one included.
const MaxResetAttempts = 5

// ChallengeStore persists one live challenge per email. Consume must be atomic:
// a code can be redeemed at most once, never after it expires and never after
// MaxResetAttempts wrong codes. A wrong code counts as an attempt.
type ChallengeStore interface {
	Put(ctx context.Context, c Challenge) error
	Consume(ctx context.Context, email, codeHash string, now time.Time) error
}

func hashCode(code string) string {
	sum := sha256.Sum256([]byte(code))
	return hex.EncodeToString(sum[:])
}

// SQLChallengeStore keeps challenges in the application database.
type SQLChallengeStore struct {
	db *gorm.DB
}

func NewSQLChallengeStore(db *gorm.DB) *SQLChallengeStore {
	return &SQLChallengeStore{db: db}
}

// Put replaces any earlier challenge for the same email.
func (s *SQLChallengeStore) Put(ctx context.Context, c Challenge) error {
	err := s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "email"}},
		DoUpdates: clause.AssignmentColumns([]string{"code_hash", "expires_at", "consumed", "attempts", "created_at"}),
	}).Create(&c).Error
	if err != nil {
		return fmt.Errorf("put challenge: %w", err)
	}
	return nil
}

func (s *SQLChallengeStore) Consume(ctx context.Context, email, codeHash string, now time.Time) error {
	live := s.db.WithContext(ctx).Model(&Challenge{}).
		Where("email = ? AND consumed = ? AND expires_at > ? AND attempts < ?", email, false, now, MaxResetAttempts).
		Session(&gorm.Session{})
	res := live.Where("code_hash = ?", codeHash).Update("consumed", true)
	if res.Error != nil {
		return fmt.Errorf("consume challenge: %w", res.Error)
	}
	if res.RowsAffected == 1 {
		return nil
	}
	if err := live.Update("attempts", gorm.Expr("attempts + 1")).Error; err != nil {
		return fmt.Errorf("count challenge attempt: %w", err)
	}
	return apperr.ErrInvalidChallenge
}

// DynamoChallengeStore keeps challenges in a DynamoDB table keyed by email.
// expires_at is a unix timestamp so the table TTL can reap old rows.
type DynamoChallengeStore struct {
	client    aws.DynamoDBAPI
	tableName string
}

func NewDynamoChallengeStore(client aws.DynamoDBAPI, tableName string) *DynamoChallengeStore {
	return &DynamoChallengeStore{client: client, tableName: tableName}
}

type dynamoChallenge struct {
	Email     string `dynamodbav:"email"`
	CodeHash  string `dynamodbav:"code_hash"`
	ExpiresAt int64  `dynamodbav:"expires_at"`
	Consumed  bool   `dynamodbav:"consumed"`
	Attempts  int    `dynamodbav:"attempts"`
	CreatedAt int64  `dynamodbav:"created_at"`
}

func (s *DynamoChallengeStore) Put(ctx context.Context, c Challenge) error {
	item, err := attributevalue.MarshalMap(dynamoChallenge{
		Email:     c.Email,
		CodeHash:  c.CodeHash,
		ExpiresAt: c.ExpiresAt.Unix(),
		Consumed:  c.Consumed,
		Attempts:  c.Attempts,
		CreatedAt: c.CreatedAt.Unix(),
	})
	if err != nil {
		return fmt.Errorf("marshal challenge: %w", err)
	}
	_, err = s.client.PutItem(ctx, &dyn.PutItemInput{
		TableName: &s.tableName,
		Item:      item,
	})
	if err != nil {
		return fmt.Errorf("put item: %w", err)
	}
	return nil
}

// Consume flips consumed in a single conditional update. When that fails the
// attempt counter of a live challenge is bumped in a second one.
func (s *DynamoChallengeStore) Consume(ctx context.Context, email, codeHash string, now time.Time) error {
	nowAttr := &types.AttributeValueMemberN{Value: strconv.FormatInt(now.Unix(), 10)}
	maxAttr := &types.AttributeValueMemberN{Value: strconv.Itoa(MaxResetAttempts)}
	_, err := s.client.UpdateItem(ctx, &dyn.UpdateItemInput{
		TableName:           &s.tableName,
		Key:                 s.key(email),
		UpdateExpression:    awsString("SET consumed = :t"),
		ConditionExpression: awsString("code_hash = :h AND consumed = :f AND expires_at > :now AND (attribute_not_exists(attempts) OR attempts < :max)"),
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":t":   &types.AttributeValueMemberBOOL{Value: true},
			":f":   &types.AttributeValueMemberBOOL{Value: false},
			":h":   &types.AttributeValueMemberS{Value: codeHash},
			":now": nowAttr,
			":max": maxAttr,
		},
	})
	if err == nil {
		return nil
	}
	if !conditionFailed(err) {
		return fmt.Errorf("update item: %w", err)
	}

	_, err = s.client.UpdateItem(ctx, &dyn.UpdateItemInput{
		TableName:           &s.tableName,
		Key:                 s.key(email),
		UpdateExpression:    awsString("ADD attempts :one"),
		ConditionExpression: awsString("attribute_exists(email) AND consumed = :f AND expires_at > :now"),
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":one": &types.AttributeValueMemberN{Value: "1"},
			":f":   &types.AttributeValueMemberBOOL{Value: false},
			":now": nowAttr,
		},
	})
	if err != nil && !conditionFailed(err) {
		return fmt.Errorf("count challenge attempt: %w", err)
	}
	return apperr.ErrInvalidChallenge
}

func (s *DynamoChallengeStore) key(email string) map[string]types.AttributeValue {
	return map[string]types.AttributeValue{
		"email": &types.AttributeValueMemberS{Value: email},
	}
}

func conditionFailed(err error) bool {
	var sc smithy.APIError
	return errors.As(err, &sc) && sc.ErrorCode() == "ConditionalCheckFailedException"
}

func awsString(s string) *string { return &s }
