package payment

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"
)

// TxnStatus tracks one payment attempt.
type TxnStatus string

const (
	TxnPending  TxnStatus = "pending"
	TxnPaid     TxnStatus = "paid"
	TxnFailed   TxnStatus = "failed"
	TxnRefunded TxnStatus = "refunded"
)

// Transaction is one redirect to the gateway. An order may have several
// attempts; at most one of them ends up paid.
type Transaction struct {
	TxnRef            string    `json:"txn_ref" gorm:"primaryKey;type:varchar(32)"`
	OrderID           string    `json:"order_id" gorm:"type:varchar(36);not null;index"`
	Amount            int64     `json:"amount" gorm:"not null"`
	CreateDate        string    `json:"create_date" gorm:"type:varchar(14);not null"`
	Status            TxnStatus `json:"status" gorm:"type:varchar(16);not null;index"`
	ResponseCode      string    `json:"response_code"`
	TransactionStatus string    `json:"transaction_status"`
	TransactionNo     string    `json:"transaction_no"`
	BankCode          string    `json:"bank_code"`
	PayDate           string    `json:"pay_date"`
	CreatedAt         time.Time `json:"created_at"`
	UpdatedAt         time.Time `json:"updated_at"`
}

func (Transaction) TableName() string { return "payment_transactions" }

// ErrAlreadySettled is returned when a transaction left pending before this update.
var ErrAlreadySettled = errors.New("payment transaction already settled")

type Store struct {
	db *gorm.DB
}

func NewStore(db *gorm.DB) *Store {
	return &Store{db: db}
}

func (s *Store) Create(ctx context.Context, t *Transaction) error {
	if err := s.db.WithContext(ctx).Create(t).Error; err != nil {
		return fmt.Errorf("insert payment transaction: %w", err)
	}
	return nil
}

// Get returns (nil, nil) when ref is unknown.
func (s *Store) Get(ctx context.Context, ref string) (*Transaction, error) {
	var t Transaction
	err := s.db.WithContext(ctx).First(&t, "txn_ref = ?", ref).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get payment transaction: %w", err)
	}
	return &t, nil
}

// Latest returns the newest attempt for orderID, preferring one in status when
// status is non-empty. Returns (nil, nil) when none exists.
func (s *Store) Latest(ctx context.Context, orderID string, status TxnStatus) (*Transaction, error) {
	q := s.db.WithContext(ctx).Where("order_id = ?", orderID)
	if status != "" {
		q = q.Where("status = ?", status)
	}
	var t Transaction
	err := q.Order("created_at DESC").First(&t).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("latest payment transaction: %w", err)
	}
	return &t, nil
}

// ListByOrder returns every attempt for orderID, oldest first.
func (s *Store) ListByOrder(ctx context.Context, orderID string) ([]Transaction, error) {
	out := []Transaction{}
	if err := s.db.WithContext(ctx).Where("order_id = ?", orderID).Order("created_at").Find(&out).Error; err != nil {
		return nil, fmt.Errorf("list payment transactions: %w", err)
	}
	return out, nil
}

// Settle records the gateway's verdict on a pending attempt. Only the first
// verdict sticks; later ones get ErrAlreadySettled.
func (s *Store) Settle(ctx context.Context, ref string, to TxnStatus, r *ReturnResult) error {
	return s.transition(ctx, ref, TxnPending, map[string]any{
		"status":             to,
		"response_code":      r.ResponseCode,
		"transaction_status": r.TransactionStatus,
		"transaction_no":     r.TransactionNo,
		"bank_code":          r.BankCode,
		"pay_date":           r.PayDate,
	})
}

func (s *Store) MarkRefunded(ctx context.Context, ref string) error {
	return s.transition(ctx, ref, TxnPaid, map[string]any{"status": TxnRefunded})
}

func (s *Store) transition(ctx context.Context, ref string, from TxnStatus, set map[string]any) error {
	set["updated_at"] = time.Now()
	res := s.db.WithContext(ctx).Model(&Transaction{}).
		Where("txn_ref = ? AND status = ?", ref, from).
		Updates(set)
	if res.Error != nil {
		return fmt.Errorf("update payment transaction: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrAlreadySettled
	}
	return nil
}
