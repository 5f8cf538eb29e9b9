package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"github.com/aws/aws-lambda-go/events"

	"github.com/imrishuroy/go-foodorder/internal/notify"
	"github.com/imrishuroy/go-foodorder/internal/orders"
)

// Mailer delivers a plain-text message.
type Mailer interface {
	Send(ctx context.Context, to, subject, body string) error
}

// Processor turns queued order events into customer emails.
type Processor struct {
	mailer Mailer
	ledger Ledger
	log    *slog.Logger
}

func NewProcessor(mailer Mailer, ledger Ledger, log *slog.Logger) *Processor {
	return &Processor{mailer: mailer, ledger: ledger, log: log.With(slog.String("component", "worker"))}
}

// Handle processes a batch and reports failed records individually so SQS only
// redelivers those.
func (p *Processor) Handle(ctx context.Context, ev events.SQSEvent) (events.SQSEventResponse, error) {
	var resp events.SQSEventResponse
	for _, rec := range ev.Records {
		if err := p.processMessage(ctx, rec); err != nil {
			p.log.Error("message failed", slog.String("message_id", rec.MessageId), slog.Any("error", err))
			resp.BatchItemFailures = append(resp.BatchItemFailures, events.SQSBatchItemFailure{ItemIdentifier: rec.MessageId})
		}
	}
	return resp, nil
}

func (p *Processor) processMessage(ctx context.Context, rec events.SQSMessage) error {
	var msg notify.Message
	if err := json.Unmarshal([]byte(rec.Body), &msg); err != nil {
		// a malformed body never parses on retry either
		p.log.Error("dropping malformed message", slog.String("message_id", rec.MessageId), slog.Any("error", err))
		return nil
	}
	log := p.log.With(slog.String("order_id", msg.OrderID), slog.String("event", msg.Type))
	if msg.OrderID == "" || msg.Type == "" {
		log.Error("dropping message without order or event type", slog.String("message_id", rec.MessageId))
		return nil
	}
	if msg.Email == "" {
		log.Info("no recipient, skipping")
		return nil
	}
	subject, body, ok := compose(msg)
	if !ok {
		log.Debug("event does not notify the customer")
		return nil
	}

	key := msg.Type + "#" + msg.OrderID
	claimed, err := p.ledger.Claim(ctx, key)
	if err != nil {
		return err
	}
	if !claimed {
		log.Info("duplicate delivery skipped")
		return nil
	}
	if err := p.mailer.Send(ctx, msg.Email, subject, body); err != nil {
		if relErr := p.ledger.Release(ctx, key); relErr != nil {
			log.Warn("release delivery failed", slog.Any("error", relErr))
		}
		return fmt.Errorf("send mail for %s: %w", key, err)
	}
	if err := p.ledger.Done(ctx, key); err != nil {
		// mail is out; at worst a redelivery sends it twice
		log.Warn("record delivery failed", slog.Any("error", err))
	}
	log.Info("customer notified")
	return nil
}

func compose(msg notify.Message) (subject, body string, ok bool) {
	ref := msg.OrderID
	if len(ref) > 8 {
		ref = ref[:8]
	}
	greeting := "Hello"
	if name := strings.TrimSpace(msg.FullName); name != "" {
		greeting += " " + name
	}

	var line string
	switch msg.Type {
	case orders.EventCreated:
		subject = "We received your order " + ref
		line = "Your order has been placed and is waiting for confirmation."
	case orders.EventConfirmed:
		subject = "Your order " + ref + " is confirmed"
		line = "Your order has been confirmed and is being prepared."
		if msg.PaymentStatus == orders.PaymentPaid {
			line = "We received your payment and your order is being prepared."
		}
	case orders.EventCancelled:
		subject = "Your order " + ref + " was cancelled"
		line = "Your order has been cancelled."
	case orders.EventRefunded:
		subject = "Refund issued for order " + ref
		line = "Your payment has been refunded."
	default:
		return "", "", false
	}
	body = fmt.Sprintf("%s,\n\n%s\n\nOrder: %s\nTotal: %d VND\n", greeting, line, msg.OrderID, msg.Total)
	return subject, body, true
}
