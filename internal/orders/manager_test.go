package orders

import (
	"context"
	"errors"
	"math"
	"sync"
	"testing"

	"github.com/imrishuroy/go-foodorder/internal/apperr"
	"github.com/imrishuroy/go-foodorder/internal/cart"
	"github.com/imrishuroy/go-foodorder/internal/catalog"
	"github.com/imrishuroy/go-foodorder/internal/logging"
)

type fakeDishes struct {
	mu     sync.Mutex
	dishes map[uint]catalog.DishSnapshot
}

func (f *fakeDishes) ResolveDish(ctx context.Context, id uint) (catalog.DishSnapshot, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	d, ok := f.dishes[id]
	if !ok {
		return catalog.DishSnapshot{}, apperr.ErrDishNotFound
	}
	return d, nil
}

func (f *fakeDishes) setPrice(id uint, price int64) {
	f.mu.Lock()
	defer f.mu.Unlock()
	d := f.dishes[id]
	d.Price = price
	f.dishes[id] = d
}

type fakeCart struct {
	items   map[uint][]cart.Item
	cleared []uint
}

func (f *fakeCart) Items(ctx context.Context, userID uint) ([]cart.Item, error) {
	return f.items[userID], nil
}

func (f *fakeCart) Clear(ctx context.Context, userID uint) error {
	f.cleared = append(f.cleared, userID)
	delete(f.items, userID)
	return nil
}

type recordingNotifier struct {
	mu     sync.Mutex
	events []Event
}

func (r *recordingNotifier) Publish(ctx context.Context, ev Event) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, ev)
	return nil
}

func (r *recordingNotifier) types() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, 0, len(r.events))
	for _, e := range r.events {
		out = append(out, e.Type)
	}
	return out
}

type harness struct {
	m        *Manager
	store    *Store
	dishes   *fakeDishes
	cart     *fakeCart
	notifier *recordingNotifier
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	store, idem := newTestStores(t)
	h := &harness{
		store: store,
		dishes: &fakeDishes{dishes: map[uint]catalog.DishSnapshot{
			7: {ID: 7, Name: "Com tam", Price: 30000},
			8: {ID: 8, Name: "Tra da", Price: 5000},
		}},
		cart:     &fakeCart{items: map[uint][]cart.Item{}},
		notifier: &recordingNotifier{},
	}
	h.m = NewManager(store, idem, h.dishes, h.cart, h.notifier, logging.Discard())
	return h
}

var (
	u1    = Actor{UserID: 1}
	u2    = Actor{UserID: 2}
	admin = Actor{UserID: 99, Admin: true}
)

func (h *harness) place(t *testing.T) *Order {
	t.Helper()
	o, err := h.m.CreateOrder(context.Background(), CreateInput{
		UserID:  1,
		Items:   []LineRequest{{DishID: 7, Quantity: 2}},
		Address: "123 Main St",
		Phone:   "0901234567",
	})
	if err != nil {
		t.Fatalf("create order: %v", err)
	}
	return o
}

func TestScenario_CreateCancelCancelConfirm(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	o := h.place(t)
	if o.Status != StatusPending || o.Total != 60000 || len(o.Items) != 1 || o.Items[0].Quantity != 2 {
		t.Fatalf("unexpected order %+v", o)
	}

	got, err := h.m.CancelOrder(ctx, o.ID, u1)
	if err != nil {
		t.Fatalf("cancel: %v", err)
	}
	if got.Status != StatusCancelled {
		t.Fatalf("expected Cancelled, got %s", got.Status)
	}

	if _, err := h.m.CancelOrder(ctx, o.ID, u1); !errors.Is(err, apperr.ErrInvalidTransition) {
		t.Fatalf("second cancel: expected InvalidTransition, got %v", err)
	}

	if _, err := h.m.UpdateOrderStatus(ctx, o.ID, string(StatusConfirmed), admin); !errors.Is(err, apperr.ErrInvalidTransition) {
		t.Fatalf("confirm cancelled: expected InvalidTransition, got %v", err)
	}

	want := []string{EventCreated, EventCancelled}
	if got := h.notifier.types(); len(got) != 2 || got[0] != want[0] || got[1] != want[1] {
		t.Fatalf("unexpected events %v", got)
	}
}

func TestCreateOrder_Validation(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	_, err := h.m.CreateOrder(ctx, CreateInput{UserID: 1, Address: "a", Phone: "p"})
	if !errors.Is(err, apperr.ErrEmptyCart) {
		t.Fatalf("expected EmptyCart, got %v", err)
	}
	all, _ := h.store.ListAll(ctx)
	if len(all) != 0 {
		t.Fatalf("empty cart must persist nothing, found %d orders", len(all))
	}

	_, err = h.m.CreateOrder(ctx, CreateInput{UserID: 1, Items: []LineRequest{{DishID: 42, Quantity: 1}}, Address: "a", Phone: "p"})
	if !errors.Is(err, apperr.ErrDishNotFound) {
		t.Fatalf("expected DishNotFound, got %v", err)
	}

	_, err = h.m.CreateOrder(ctx, CreateInput{UserID: 1, Items: []LineRequest{{DishID: 7, Quantity: 0}}, Address: "a", Phone: "p"})
	if !errors.Is(err, apperr.ErrInvalidQuantity) {
		t.Fatalf("expected InvalidQuantity, got %v", err)
	}

	_, err = h.m.CreateOrder(ctx, CreateInput{UserID: 1, Items: []LineRequest{{DishID: 7, Quantity: 1}}, Address: " ", Phone: "p"})
	if apperr.KindOf(err) != apperr.KindValidation {
		t.Fatalf("expected validation error for blank address, got %v", err)
	}
}

func TestCreateOrder_QuantityAndTotalBounds(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	h.dishes.dishes[9] = catalog.DishSnapshot{ID: 9, Name: "Tiec cuoi", Price: MaxOrderTotal/2 + 1}

	rejected := map[string][]LineRequest{
		"over line limit":   {{DishID: 7, Quantity: MaxLineQuantity + 1}},
		"merged over limit": {{DishID: 7, Quantity: 50}, {DishID: 7, Quantity: 50}},
		"wrapping quantity": {{DishID: 7, Quantity: math.MaxInt64/30000 + 1}},
		"total too large":   {{DishID: 9, Quantity: 2}},
	}
	for name, items := range rejected {
		_, err := h.m.CreateOrder(ctx, CreateInput{UserID: 1, Items: items, Address: "a", Phone: "p"})
		if !errors.Is(err, apperr.ErrInvalidQuantity) {
			t.Errorf("%s: expected InvalidQuantity, got %v", name, err)
		}
	}
	if all, _ := h.store.ListAll(ctx); len(all) != 0 {
		t.Fatalf("rejected orders must persist nothing, found %d", len(all))
	}

	o, err := h.m.CreateOrder(ctx, CreateInput{UserID: 1, Items: []LineRequest{{DishID: 7, Quantity: MaxLineQuantity}}, Address: "a", Phone: "p"})
	if err != nil {
		t.Fatalf("create at the limit: %v", err)
	}
	if o.Total != MaxLineQuantity*30000 {
		t.Fatalf("unexpected total %d", o.Total)
	}
}

func TestCreateOrder_TotalIsSnapshot(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	o, err := h.m.CreateOrder(ctx, CreateInput{
		UserID:  1,
		Items:   []LineRequest{{DishID: 7, Quantity: 1}, {DishID: 8, Quantity: 3}, {DishID: 7, Quantity: 1}},
		Address: "a",
		Phone:   "p",
	})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if len(o.Items) != 2 {
		t.Fatalf("expected repeated dish lines merged, got %d items", len(o.Items))
	}

	h.dishes.setPrice(7, 99000)

	stored, err := h.m.GetOrder(ctx, o.ID, u1)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	var sum int64
	for _, it := range stored.Items {
		sum += it.LineTotal()
	}
	if stored.Total != 2*30000+3*5000 || sum != stored.Total {
		t.Fatalf("total %d, items sum %d", stored.Total, sum)
	}
}

func TestCancelOrder_Authorization(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	o := h.place(t)

	if _, err := h.m.CancelOrder(ctx, o.ID, u2); !errors.Is(err, apperr.ErrForbidden) {
		t.Fatalf("expected Forbidden, got %v", err)
	}
	got, _ := h.m.GetOrder(ctx, o.ID, u1)
	if got.Status != StatusPending {
		t.Fatalf("status changed by rejected cancel: %s", got.Status)
	}

	if _, err := h.m.CancelOrder(ctx, "missing", u1); !errors.Is(err, apperr.ErrOrderNotFound) {
		t.Fatalf("expected OrderNotFound, got %v", err)
	}

	if _, err := h.m.CancelOrder(ctx, o.ID, admin); err != nil {
		t.Fatalf("admin cancel: %v", err)
	}
}

func TestCancelOrder_ConfirmedIsTerminal(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	o := h.place(t)

	if _, err := h.m.UpdateOrderStatus(ctx, o.ID, string(StatusConfirmed), admin); err != nil {
		t.Fatalf("confirm: %v", err)
	}
	for _, attempt := range []func() error{
		func() error { _, err := h.m.CancelOrder(ctx, o.ID, u1); return err },
		func() error { _, err := h.m.CancelOrder(ctx, o.ID, admin); return err },
		func() error { _, err := h.m.UpdateOrderStatus(ctx, o.ID, "Cancelled", admin); return err },
		func() error { _, err := h.m.UpdateOrderStatus(ctx, o.ID, "Pending", admin); return err },
		func() error { _, err := h.m.ConfirmPayment(ctx, o.ID, o.Total); return err },
	} {
		if err := attempt(); !errors.Is(err, apperr.ErrInvalidTransition) {
			t.Fatalf("expected InvalidTransition, got %v", err)
		}
	}
	got, _ := h.m.GetOrder(ctx, o.ID, admin)
	if got.Status != StatusConfirmed {
		t.Fatalf("terminal status changed to %s", got.Status)
	}
}

func TestUpdateOrderStatus_Rules(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	o := h.place(t)

	if _, err := h.m.UpdateOrderStatus(ctx, o.ID, "Confirmed", u1); !errors.Is(err, apperr.ErrForbidden) {
		t.Fatalf("expected Forbidden for non-admin, got %v", err)
	}
	if _, err := h.m.UpdateOrderStatus(ctx, o.ID, "Shipped", admin); !errors.Is(err, apperr.ErrInvalidStatus) {
		t.Fatalf("expected InvalidStatus, got %v", err)
	}
	if _, err := h.m.UpdateOrderStatus(ctx, o.ID, "Pending", admin); !errors.Is(err, apperr.ErrInvalidTransition) {
		t.Fatalf("expected same-status update to fail, got %v", err)
	}
	got, err := h.m.UpdateOrderStatus(ctx, o.ID, "Cancelled", admin)
	if err != nil {
		t.Fatalf("admin cancel via status: %v", err)
	}
	if got.Status != StatusCancelled {
		t.Fatalf("expected Cancelled, got %s", got.Status)
	}
}

func TestConfirmPayment(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	o := h.place(t)

	if _, err := h.m.ConfirmPayment(ctx, o.ID, o.Total-1); !errors.Is(err, apperr.ErrInvalidAmount) {
		t.Fatalf("expected InvalidAmount, got %v", err)
	}
	got, err := h.m.ConfirmPayment(ctx, o.ID, o.Total)
	if err != nil {
		t.Fatalf("confirm payment: %v", err)
	}
	if got.Status != StatusConfirmed || got.PaymentStatus != PaymentPaid {
		t.Fatalf("unexpected state %s/%s", got.Status, got.PaymentStatus)
	}

	refunded, err := h.m.MarkRefunded(ctx, o.ID)
	if err != nil {
		t.Fatalf("refund: %v", err)
	}
	if refunded.PaymentStatus != PaymentRefunded || refunded.Status != StatusConfirmed {
		t.Fatalf("unexpected state after refund %s/%s", refunded.Status, refunded.PaymentStatus)
	}
	if _, err := h.m.MarkRefunded(ctx, o.ID); !errors.Is(err, apperr.ErrInvalidTransition) {
		t.Fatalf("double refund must fail, got %v", err)
	}
}

func TestConcurrentCancel_OnlyOneWins(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	o := h.place(t)

	const n = 8
	var wg sync.WaitGroup
	errs := make(chan error, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := h.m.CancelOrder(ctx, o.ID, u1)
			errs <- err
		}()
	}
	wg.Wait()
	close(errs)

	wins := 0
	for err := range errs {
		switch {
		case err == nil:
			wins++
		case errors.Is(err, apperr.ErrInvalidTransition):
		default:
			t.Fatalf("unexpected error %v", err)
		}
	}
	if wins != 1 {
		t.Fatalf("expected exactly one successful cancel, got %d", wins)
	}
}

func TestCreateFromCart(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	if _, err := h.m.CreateFromCart(ctx, 1, "a", "p", ""); !errors.Is(err, apperr.ErrEmptyCart) {
		t.Fatalf("expected EmptyCart for empty cart, got %v", err)
	}

	h.cart.items[1] = []cart.Item{{UserID: 1, DishID: 7, Quantity: 1}, {UserID: 1, DishID: 8, Quantity: 2}}
	o, err := h.m.CreateFromCart(ctx, 1, "a", "p", "checkout-1")
	if err != nil {
		t.Fatalf("checkout: %v", err)
	}
	if o.Total != 30000+2*5000 {
		t.Fatalf("unexpected total %d", o.Total)
	}
	if len(h.cart.cleared) != 1 || h.cart.cleared[0] != 1 {
		t.Fatalf("cart not cleared: %v", h.cart.cleared)
	}

	h.cart.items[1] = []cart.Item{{UserID: 1, DishID: 7, Quantity: 1}}
	if _, err := h.m.CreateFromCart(ctx, 1, "a", "p", "checkout-1"); !errors.Is(err, ErrIdempotencyConflict) {
		t.Fatalf("expected idempotency conflict on replayed key, got %v", err)
	}
}

func TestListAllOrders_AdminOnly(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	h.place(t)

	if _, err := h.m.ListAllOrders(ctx, u1); !errors.Is(err, apperr.ErrForbidden) {
		t.Fatalf("expected Forbidden, got %v", err)
	}
	all, err := h.m.ListAllOrders(ctx, admin)
	if err != nil || len(all) != 1 {
		t.Fatalf("expected one order, got %d, %v", len(all), err)
	}
	mine, _ := h.m.ListOrdersForUser(ctx, 2)
	if len(mine) != 0 {
		t.Fatalf("user 2 has no orders, got %d", len(mine))
	}
}
