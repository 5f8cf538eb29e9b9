package orders

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/imrishuroy/go-foodorder/internal/apperr"
	"github.com/imrishuroy/go-foodorder/internal/cart"
	"github.com/imrishuroy/go-foodorder/internal/catalog"
	"github.com/imrishuroy/go-foodorder/internal/idempotency"
)

// DishResolver supplies the live name and price of a dish.
type DishResolver interface {
	ResolveDish(ctx context.Context, id uint) (catalog.DishSnapshot, error)
}

// CartSource is the cart a checkout snapshots and then empties.
type CartSource interface {
	Items(ctx context.Context, userID uint) ([]cart.Item, error)
	Clear(ctx context.Context, userID uint) error
}

// Notifier receives committed order events.
type Notifier interface {
	Publish(ctx context.Context, ev Event) error
}

// CreateInput is a request to place an order.
type CreateInput struct {
	UserID         uint
	Items          []LineRequest
	Address        string
	Phone          string
	IdempotencyKey string
}

// Manager owns every order status change. Nothing else writes order status.
type Manager struct {
	store    *Store
	idem     *idempotency.Store
	dishes   DishResolver
	cart     CartSource
	notifier Notifier
	log      *slog.Logger
	nowFunc  func() time.Time
	newID    func() string
}

func NewManager(store *Store, idem *idempotency.Store, dishes DishResolver, cartSrc CartSource, notifier Notifier, log *slog.Logger) *Manager {
	return &Manager{
		store:    store,
		idem:     idem,
		dishes:   dishes,
		cart:     cartSrc,
		notifier: notifier,
		log:      log.With(slog.String("component", "order_manager")),
		nowFunc:  time.Now,
		newID:    uuid.NewString,
	}
}

// CreateOrder prices every line from the dish store, ignoring anything the client
// claims about price or name, and persists the order with its items atomically.
// A reused idempotency key yields ErrIdempotencyConflict.
func (m *Manager) CreateOrder(ctx context.Context, in CreateInput) (*Order, error) {
	if len(in.Items) == 0 {
		return nil, apperr.ErrEmptyCart
	}
	in.Address = strings.TrimSpace(in.Address)
	in.Phone = strings.TrimSpace(in.Phone)
	if in.Address == "" || in.Phone == "" {
		return nil, apperr.ErrValidation.WithMessage("delivery address and phone are required")
	}

	lines, err := mergeLines(in.Items)
	if err != nil {
		return nil, err
	}

	order := &Order{
		ID:            m.newID(),
		UserID:        in.UserID,
		Address:       in.Address,
		Phone:         in.Phone,
		Status:        StatusPending,
		PaymentStatus: PaymentUnpaid,
		CreatedAt:     m.nowFunc(),
		Items:         make([]OrderItem, 0, len(lines)),
	}
	for _, l := range lines {
		dish, err := m.dishes.ResolveDish(ctx, l.DishID)
		if err != nil {
			return nil, err
		}
		item := OrderItem{
			OrderID:  order.ID,
			DishID:   dish.ID,
			Name:     dish.Name,
			Price:    dish.Price,
			Quantity: l.Quantity,
		}
		if dish.Price <= 0 || int64(item.Quantity) > (MaxOrderTotal-order.Total)/dish.Price {
			return nil, apperr.ErrInvalidQuantity.WithMessage("order total exceeds %d", int64(MaxOrderTotal))
		}
		order.Items = append(order.Items, item)
		order.Total += item.LineTotal()
	}

	var rec *idempotency.Record
	if in.IdempotencyKey != "" {
		rec = m.idem.NewRecord(in.UserID, in.IdempotencyKey, order.ID)
	}
	if err := m.store.CreateWithIdempotency(ctx, order, rec); err != nil {
		if errors.Is(err, ErrIdempotencyConflict) {
			return nil, err
		}
		return nil, apperr.Storage("create order", err)
	}

	m.log.Info("order created", slog.String("order_id", order.ID), slog.Uint64("user_id", uint64(order.UserID)), slog.Int64("total", order.Total))
	m.publish(ctx, EventCreated, order)
	return order, nil
}

// CreateFromCart checks out the caller's cart and empties it on success.
func (m *Manager) CreateFromCart(ctx context.Context, userID uint, address, phone, idempotencyKey string) (*Order, error) {
	items, err := m.cart.Items(ctx, userID)
	if err != nil {
		return nil, err
	}
	lines := make([]LineRequest, 0, len(items))
	for _, it := range items {
		lines = append(lines, LineRequest{DishID: it.DishID, Quantity: it.Quantity})
	}
	order, err := m.CreateOrder(ctx, CreateInput{
		UserID:         userID,
		Items:          lines,
		Address:        address,
		Phone:          phone,
		IdempotencyKey: idempotencyKey,
	})
	if err != nil {
		return nil, err
	}
	if err := m.cart.Clear(ctx, userID); err != nil {
		// the order stands; a stale cart is only cosmetic
		m.log.Warn("clear cart after checkout failed", slog.String("order_id", order.ID), slog.Any("error", err))
	}
	return order, nil
}

func (m *Manager) ListOrdersForUser(ctx context.Context, userID uint) ([]Order, error) {
	out, err := m.store.ListByUser(ctx, userID)
	if err != nil {
		return nil, apperr.Storage("list orders", err)
	}
	return out, nil
}

func (m *Manager) ListAllOrders(ctx context.Context, actor Actor) ([]Order, error) {
	if !actor.Admin {
		return nil, apperr.ErrForbidden
	}
	out, err := m.store.ListAll(ctx)
	if err != nil {
		return nil, apperr.Storage("list orders", err)
	}
	return out, nil
}

// GetOrder returns an order visible to actor.
func (m *Manager) GetOrder(ctx context.Context, orderID string, actor Actor) (*Order, error) {
	o, err := m.load(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if !actor.Admin && o.UserID != actor.UserID {
		return nil, apperr.ErrForbidden
	}
	return o, nil
}

// CancelOrder moves a Pending order to Cancelled on behalf of its owner or an admin.
func (m *Manager) CancelOrder(ctx context.Context, orderID string, actor Actor) (*Order, error) {
	o, err := m.load(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if !actor.Admin && o.UserID != actor.UserID {
		return nil, apperr.ErrForbidden
	}
	if o.Status != StatusPending {
		return nil, apperr.ErrInvalidTransition.WithMessage("only pending orders can be cancelled; order is %s", o.Status)
	}
	return m.transition(ctx, o, StatusCancelled, EventCancelled)
}

// UpdateOrderStatus is the admin path. Same-status updates are rejected.
func (m *Manager) UpdateOrderStatus(ctx context.Context, orderID, newStatus string, actor Actor) (*Order, error) {
	if !actor.Admin {
		return nil, apperr.ErrForbidden
	}
	to, ok := ParseStatus(newStatus)
	if !ok {
		return nil, apperr.ErrInvalidStatus.WithMessage("unknown order status %q", newStatus)
	}
	o, err := m.load(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if o.Status == to {
		return nil, apperr.ErrInvalidTransition.WithMessage("order is already %s", to)
	}
	if o.Status.Terminal() || to == StatusPending {
		return nil, apperr.ErrInvalidTransition.WithMessage("cannot move order from %s to %s", o.Status, to)
	}
	ev := EventConfirmed
	if to == StatusCancelled {
		ev = EventCancelled
	}
	return m.transition(ctx, o, to, ev)
}

// ConfirmPayment is the gateway path of Pending -> Confirmed. amount must equal the
// order total. Calling it for an order that is no longer pending returns
// ErrInvalidTransition and changes nothing.
func (m *Manager) ConfirmPayment(ctx context.Context, orderID string, amount int64) (*Order, error) {
	o, err := m.load(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if amount != o.Total {
		return nil, apperr.ErrInvalidAmount.WithMessage("paid %d, order total is %d", amount, o.Total)
	}
	if o.Status != StatusPending || o.PaymentStatus != PaymentUnpaid {
		return nil, apperr.ErrInvalidTransition.WithMessage("order is %s/%s, payment cannot confirm it", o.Status, o.PaymentStatus)
	}
	if err := m.store.ConfirmPaid(ctx, o.ID); err != nil {
		return nil, m.transitionErr(ctx, o.ID, err)
	}
	o.Status = StatusConfirmed
	o.PaymentStatus = PaymentPaid
	o.UpdatedAt = m.nowFunc()
	m.log.Info("order paid", slog.String("order_id", o.ID), slog.Int64("amount", amount))
	m.publish(ctx, EventConfirmed, o)
	return o, nil
}

// MarkRefunded records a completed gateway refund.
func (m *Manager) MarkRefunded(ctx context.Context, orderID string) (*Order, error) {
	o, err := m.load(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if o.PaymentStatus != PaymentPaid {
		return nil, apperr.ErrInvalidTransition.WithMessage("order payment is %s, only paid orders can be refunded", o.PaymentStatus)
	}
	if err := m.store.MarkRefunded(ctx, o.ID); err != nil {
		return nil, m.transitionErr(ctx, o.ID, err)
	}
	o.PaymentStatus = PaymentRefunded
	o.UpdatedAt = m.nowFunc()
	m.publish(ctx, EventRefunded, o)
	return o, nil
}

func (m *Manager) transition(ctx context.Context, o *Order, to Status, evType string) (*Order, error) {
	if err := m.store.UpdateStatus(ctx, o.ID, o.Status, to); err != nil {
		return nil, m.transitionErr(ctx, o.ID, err)
	}
	m.log.Info("order status changed", slog.String("order_id", o.ID), slog.String("from", string(o.Status)), slog.String("to", string(to)))
	o.Status = to
	o.UpdatedAt = m.nowFunc()
	m.publish(ctx, evType, o)
	return o, nil
}

// transitionErr maps a lost conditional update to InvalidTransition; the row was
// changed by a concurrent request between our read and write.
func (m *Manager) transitionErr(ctx context.Context, orderID string, err error) error {
	if !errors.Is(err, ErrStatusMismatch) {
		return apperr.Storage("update order status", err)
	}
	cur, getErr := m.store.Get(ctx, orderID)
	if getErr != nil || cur == nil {
		return apperr.ErrInvalidTransition
	}
	return apperr.ErrInvalidTransition.WithMessage("order is already %s", cur.Status)
}

func (m *Manager) load(ctx context.Context, orderID string) (*Order, error) {
	o, err := m.store.Get(ctx, orderID)
	if err != nil {
		return nil, apperr.Storage("get order", err)
	}
	if o == nil {
		return nil, apperr.ErrOrderNotFound
	}
	return o, nil
}

func (m *Manager) publish(ctx context.Context, evType string, o *Order) {
	if m.notifier == nil {
		return
	}
	ev := Event{
		Type:          evType,
		OrderID:       o.ID,
		UserID:        o.UserID,
		Status:        o.Status,
		PaymentStatus: o.PaymentStatus,
		Total:         o.Total,
		At:            m.nowFunc().UTC(),
	}
	if err := m.notifier.Publish(ctx, ev); err != nil {
		m.log.Warn("publish order event failed", slog.String("order_id", o.ID), slog.String("event", evType), slog.Any("error", err))
	}
}

// mergeLines folds repeated dishes into one line, keeping first-seen order.
func mergeLines(in []LineRequest) ([]LineRequest, error) {
	idx := make(map[uint]int, len(in))
	out := make([]LineRequest, 0, len(in))
	for _, l := range in {
		if l.Quantity < 1 {
			return nil, apperr.ErrInvalidQuantity.WithMessage("quantity for dish %d must be at least 1", l.DishID)
		}
		if l.Quantity > MaxLineQuantity {
			return nil, apperr.ErrInvalidQuantity.WithMessage("quantity for dish %d must be at most %d", l.DishID, MaxLineQuantity)
		}
		if i, ok := idx[l.DishID]; ok {
			out[i].Quantity += l.Quantity
			if out[i].Quantity > MaxLineQuantity {
				return nil, apperr.ErrInvalidQuantity.WithMessage("quantity for dish %d must be at most %d", l.DishID, MaxLineQuantity)
			}
			continue
		}
		idx[l.DishID] = len(out)
		out = append(out, l)
	}
	return out, nil
}
