package notify

import (
	"context"
	"log/slog"

	"github.com/imrishuroy/go-foodorder/internal/aws"
	"github.com/imrishuroy/go-foodorder/internal/orders"
)

// Message is the order event as it travels over the queue. Email is resolved
// on the API side so consumers need no database access.
type Message struct {
	orders.Event
	Email    string `json:"email,omitempty"`
	FullName string `json:"full_name,omitempty"`
}

// Recipients resolves who should hear about an order.
type Recipients interface {
	Contact(ctx context.Context, userID uint) (email, fullName string, err error)
}

// QueueNotifier publishes order events to SQS.
type QueueNotifier struct {
	pub        *aws.Publisher
	recipients Recipients
	log        *slog.Logger
}

func NewQueueNotifier(pub *aws.Publisher, recipients Recipients, log *slog.Logger) *QueueNotifier {
	return &QueueNotifier{pub: pub, recipients: recipients, log: log.With(slog.String("component", "queue_notifier"))}
}

func (q *QueueNotifier) Publish(ctx context.Context, ev orders.Event) error {
	msg := Message{Event: ev}
	if q.recipients != nil {
		email, name, err := q.recipients.Contact(ctx, ev.UserID)
		if err != nil {
			// still publish; the consumer skips mail without an address
			q.log.Warn("resolve order recipient failed", slog.String("order_id", ev.OrderID), slog.Any("error", err))
		} else {
			msg.Email, msg.FullName = email, name
		}
	}
	return q.pub.SendJSON(ctx, msg, map[string]string{
		"event_type": ev.Type,
		"order_id":   ev.OrderID,
	})
}
