package notify

import (
	"context"
	"errors"

	"github.com/imrishuroy/go-foodorder/internal/orders"
)

// Multi fans an event out to every notifier and joins their errors.
type Multi []orders.Notifier

func (m Multi) Publish(ctx context.Context, ev orders.Event) error {
	var errs []error
	for _, n := range m {
		if err := n.Publish(ctx, ev); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
