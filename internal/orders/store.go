package orders

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"

	"github.com/imrishuroy/go-foodorder/internal/idempotency"
)

// ErrStatusMismatch is returned when a conditional status update matched no row.
var ErrStatusMismatch = errors.New("status mismatch/conditional failed")

// ErrIdempotencyConflict is returned when the idempotency key of a create already exists.
var ErrIdempotencyConflict = errors.New("idempotency key already used")

// Store encapsulates operations on the orders and order_items tables.
type Store struct {
	db      *gorm.DB
	idem    *idempotency.Store
	nowFunc func() time.Time
}

// NewStore creates a new orders Store.
func NewStore(db *gorm.DB, idem *idempotency.Store) *Store {
	return &Store{
		db:      db,
		idem:    idem,
		nowFunc: time.Now,
	}
}

// CreateWithIdempotency atomically creates:
//   - the idempotency record, when rec is non-nil
//   - the order row
//   - every order item row
//
// Either all rows are written or none are. order.ID must be set by caller.
func (s *Store) CreateWithIdempotency(ctx context.Context, order *Order, rec *idempotency.Record) error {
	now := s.nowFunc()
	if order.CreatedAt.IsZero() {
		order.CreatedAt = now
	}
	order.UpdatedAt = now

	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if rec != nil {
			if err := s.idem.InsertTx(tx, rec); err != nil {
				if errors.Is(err, idempotency.ErrConditionFailed) {
					return ErrIdempotencyConflict
				}
				return err
			}
		}
		// gorm writes the Items association in the same transaction
		if err := tx.Create(order).Error; err != nil {
			return fmt.Errorf("insert order: %w", err)
		}
		return nil
	})
}

// Get fetches an order with its items. Returns (nil, nil) if not found.
func (s *Store) Get(ctx context.Context, orderID string) (*Order, error) {
	var o Order
	err := s.db.WithContext(ctx).Preload("Items", orderItemsByID).First(&o, "id = ?", orderID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get order: %w", err)
	}
	return &o, nil
}

// ListByUser returns the orders of userID, newest first.
func (s *Store) ListByUser(ctx context.Context, userID uint) ([]Order, error) {
	return s.list(ctx, s.db.WithContext(ctx).Where("user_id = ?", userID))
}

// ListAll returns every order, newest first.
func (s *Store) ListAll(ctx context.Context) ([]Order, error) {
	return s.list(ctx, s.db.WithContext(ctx))
}

func (s *Store) list(ctx context.Context, q *gorm.DB) ([]Order, error) {
	out := []Order{}
	err := q.Preload("Items", orderItemsByID).Order("created_at DESC, id").Find(&out).Error
	if err != nil {
		return nil, fmt.Errorf("list orders: %w", err)
	}
	return out, nil
}

func orderItemsByID(db *gorm.DB) *gorm.DB { return db.Order("id") }

// UpdateStatus conditionally updates the order status from expected -> newStatus.
// Returns nil on success, ErrStatusMismatch if condition failed.
func (s *Store) UpdateStatus(ctx context.Context, orderID string, expected, newStatus Status) error {
	return s.conditionalUpdate(ctx, orderID, "status = ?", expected, map[string]any{
		"status": newStatus,
	})
}

// ConfirmPaid moves a Pending, unpaid order to Confirmed and paid in one write.
func (s *Store) ConfirmPaid(ctx context.Context, orderID string) error {
	return s.conditionalUpdate(ctx, orderID, "status = ? AND payment_status = ?", []any{StatusPending, PaymentUnpaid}, map[string]any{
		"status":         StatusConfirmed,
		"payment_status": PaymentPaid,
	})
}

// MarkRefunded flips a paid order to refunded. Status is left untouched.
func (s *Store) MarkRefunded(ctx context.Context, orderID string) error {
	return s.conditionalUpdate(ctx, orderID, "payment_status = ?", PaymentPaid, map[string]any{
		"payment_status": PaymentRefunded,
	})
}

func (s *Store) conditionalUpdate(ctx context.Context, orderID, cond string, args any, set map[string]any) error {
	set["updated_at"] = s.nowFunc()
	q := s.db.WithContext(ctx).Model(&Order{}).Where("id = ?", orderID)
	if many, ok := args.([]any); ok {
		q = q.Where(cond, many...)
	} else {
		q = q.Where(cond, args)
	}
	res := q.Updates(set)
	if res.Error != nil {
		return fmt.Errorf("update order: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrStatusMismatch
	}
	return nil
}
