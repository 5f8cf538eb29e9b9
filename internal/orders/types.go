package orders

import (
	"math"
	"time"
)

// Status is the order lifecycle state. Pending is initial; Confirmed and
// Cancelled are terminal.
type Status string

const (
	StatusPending   Status = "Pending"
	StatusConfirmed Status = "Confirmed"
	StatusCancelled Status = "Cancelled"
)

// ParseStatus accepts only the enumerated values.
func ParseStatus(s string) (Status, bool) {
	switch Status(s) {
	case StatusPending, StatusConfirmed, StatusCancelled:
		return Status(s), true
	}
	return "", false
}

func (s Status) Terminal() bool { return s == StatusConfirmed || s == StatusCancelled }

// PaymentStatus is bookkeeping for the gateway flow. It never drives Status.
type PaymentStatus string

const (
	PaymentUnpaid   PaymentStatus = "unpaid"
	PaymentPaid     PaymentStatus = "paid"
	PaymentRefunded PaymentStatus = "refunded"
)

// Order totals are whole VND, fixed at creation.
type Order struct {
	ID            string        `json:"id" gorm:"primaryKey;type:varchar(36)"`
	UserID        uint          `json:"user_id" gorm:"not null;index"`
	Address       string        `json:"address" gorm:"not null"`
	Phone         string        `json:"phone" gorm:"not null"`
	Total         int64         `json:"total" gorm:"not null"`
	Status        Status        `json:"status" gorm:"type:varchar(16);not null;index"`
	PaymentStatus PaymentStatus `json:"payment_status" gorm:"type:varchar(16);not null"`
	Items         []OrderItem   `json:"items" gorm:"foreignKey:OrderID;constraint:OnDelete:CASCADE"`
	CreatedAt     time.Time     `json:"created_at" gorm:"index"`
	UpdatedAt     time.Time     `json:"updated_at"`
}

// OrderItem captures dish name and price at order time.
type OrderItem struct {
	ID       uint   `json:"id" gorm:"primaryKey"`
	OrderID  string `json:"order_id" gorm:"type:varchar(36);not null;index"`
	DishID   uint   `json:"dish_id" gorm:"not null"`
	Name     string `json:"name" gorm:"not null"`
	Price    int64  `json:"price" gorm:"not null"`
	Quantity int    `json:"quantity" gorm:"not null"`
}

func (i OrderItem) LineTotal() int64 { return i.Price * int64(i.Quantity) }

// MaxLineQuantity bounds the merged quantity of one dish in an order.
const MaxLineQuantity = 99

// MaxOrderTotal is the largest total the payment gateway can carry in its
// x100 amount field.
const MaxOrderTotal = math.MaxInt64 / 100

// LineRequest is one requested line; price and name are resolved server-side.
type LineRequest struct {
	DishID   uint
	Quantity int
}

// Actor is the authenticated caller as seen by the lifecycle manager.
type Actor struct {
	UserID uint
	Admin  bool
}

// Event types published after a successful transition.
const (
	EventCreated   = "order.created"
	EventConfirmed = "order.confirmed"
	EventCancelled = "order.cancelled"
	EventRefunded  = "order.refunded"
)

// Event describes a committed order change for downstream notifiers.
type Event struct {
	Type          string        `json:"type"`
	OrderID       string        `json:"order_id"`
	UserID        uint          `json:"user_id"`
	Status        Status        `json:"status"`
	PaymentStatus PaymentStatus `json:"payment_status"`
	Total         int64         `json:"total"`
	At            time.Time     `json:"at"`
}
