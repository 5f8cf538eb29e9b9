package idempotency

import "time"

// Status values for idempotency entries
const (
	StatusInProgress = "IN_PROGRESS"
	StatusDone       = "DONE"
	StatusFailed     = "FAILED"
)

// Record remembers the outcome of a client request replayed under the same key.
// Keys are scoped per user.
type Record struct {
	UserID         uint      `gorm:"primaryKey;autoIncrement:false"`
	IdempotencyKey string    `gorm:"primaryKey"`
	Status         string    `gorm:"not null"`
	OrderID        string    `gorm:"index"`
	ResponseBody   string    // small JSON responses only
	ResponseStatus int
	Note           string
	CreatedAt      time.Time
	UpdatedAt      time.Time
	ExpiresAt      time.Time `gorm:"index"`
}

func (Record) TableName() string { return "idempotency_records" }
