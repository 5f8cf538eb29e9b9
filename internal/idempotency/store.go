package idempotency

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"

	"github.com/imrishuroy/go-foodorder/internal/database"
)

// ErrConditionFailed indicates the key already exists.
var ErrConditionFailed = errors.New("idempotency key already exists")

// Store encapsulates idempotency operations.
type Store struct {
	db        *gorm.DB
	ttlWindow time.Duration // default TTL window when creating entries
	nowFunc   func() time.Time
}

// NewStore returns a configured Store.
// ttlWindow: how long a key is honoured (e.g., 48*time.Hour)
func NewStore(db *gorm.DB, ttlWindow time.Duration) *Store {
	return &Store{
		db:        db,
		ttlWindow: ttlWindow,
		nowFunc:   time.Now,
	}
}

// NewRecord builds an IN_PROGRESS record for key, ready to be inserted alongside
// the resource it guards.
func (s *Store) NewRecord(userID uint, key, orderID string) *Record {
	now := s.nowFunc()
	return &Record{
		UserID:         userID,
		IdempotencyKey: key,
		Status:         StatusInProgress,
		OrderID:        orderID,
		CreatedAt:      now,
		UpdatedAt:      now,
		ExpiresAt:      now.Add(s.ttlWindow),
	}
}

// InsertTx inserts rec inside the caller's transaction. A live record under the same
// key yields ErrConditionFailed; an expired one is replaced.
func (s *Store) InsertTx(tx *gorm.DB, rec *Record) error {
	err := tx.Where("user_id = ? AND idempotency_key = ? AND expires_at <= ?", rec.UserID, rec.IdempotencyKey, s.nowFunc()).
		Delete(&Record{}).Error
	if err != nil {
		return fmt.Errorf("purge expired key: %w", err)
	}
	if err := tx.Create(rec).Error; err != nil {
		if database.IsUniqueViolation(err) {
			return ErrConditionFailed
		}
		return fmt.Errorf("insert idempotency record: %w", err)
	}
	return nil
}

// Get retrieves a live record. If not found or expired, returns (nil, nil).
func (s *Store) Get(ctx context.Context, userID uint, key string) (*Record, error) {
	var rec Record
	err := s.db.WithContext(ctx).
		Where("user_id = ? AND idempotency_key = ? AND expires_at > ?", userID, key, s.nowFunc()).
		First(&rec).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get idempotency record: %w", err)
	}
	return &rec, nil
}

// MarkDone sets status to DONE and stores a small response body & status.
func (s *Store) MarkDone(ctx context.Context, userID uint, key, responseBody string, responseStatus int) error {
	return s.update(ctx, userID, key, map[string]any{
		"status":          StatusDone,
		"response_body":   responseBody,
		"response_status": responseStatus,
	})
}

// MarkFailed marks the record as FAILED and stores a note.
func (s *Store) MarkFailed(ctx context.Context, userID uint, key, note string) error {
	return s.update(ctx, userID, key, map[string]any{
		"status": StatusFailed,
		"note":   note,
	})
}

// PurgeExpired deletes records past their TTL and reports how many were removed.
func (s *Store) PurgeExpired(ctx context.Context) (int64, error) {
	res := s.db.WithContext(ctx).Where("expires_at <= ?", s.nowFunc()).Delete(&Record{})
	if res.Error != nil {
		return 0, fmt.Errorf("purge idempotency records: %w", res.Error)
	}
	return res.RowsAffected, nil
}

func (s *Store) update(ctx context.Context, userID uint, key string, fields map[string]any) error {
	fields["updated_at"] = s.nowFunc()
	res := s.db.WithContext(ctx).Model(&Record{}).
		Where("user_id = ? AND idempotency_key = ?", userID, key).
		Updates(fields)
	if res.Error != nil {
		return fmt.Errorf("update idempotency record: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("idempotency record %q not found", key)
	}
	return nil
}
