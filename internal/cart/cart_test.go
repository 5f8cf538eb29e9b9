package cart

import (
	"context"
	"errors"
	"testing"

	"github.com/imrishuroy/go-foodorder/internal/apperr"
	"github.com/imrishuroy/go-foodorder/internal/catalog"
	"github.com/imrishuroy/go-foodorder/internal/database"
)

func setup(t *testing.T) (*Store, *catalog.Store) {
	t.Helper()
	db := database.OpenTest(t, &catalog.Category{}, &catalog.Dish{}, &Item{})
	return NewStore(db), catalog.NewStore(db)
}

func TestStore_AddMergesAndViews(t *testing.T) {
	s, cat := setup(t)
	ctx := context.Background()

	c := &catalog.Category{Name: "Drinks"}
	_ = cat.CreateCategory(ctx, c)
	tea := &catalog.Dish{CategoryID: c.ID, Name: "Iced tea", Price: 10000}
	coffee := &catalog.Dish{CategoryID: c.ID, Name: "Coffee", Price: 25000}
	_ = cat.CreateDish(ctx, tea)
	_ = cat.CreateDish(ctx, coffee)

	if err := s.Add(ctx, 1, tea.ID, 1); err != nil {
		t.Fatalf("add: %v", err)
	}
	if err := s.Add(ctx, 1, tea.ID, 2); err != nil {
		t.Fatalf("add again: %v", err)
	}
	if err := s.Add(ctx, 1, coffee.ID, 1); err != nil {
		t.Fatalf("add coffee: %v", err)
	}
	// another user's cart stays separate
	if err := s.Add(ctx, 2, coffee.ID, 5); err != nil {
		t.Fatalf("add for user 2: %v", err)
	}

	items, err := s.Items(ctx, 1)
	if err != nil {
		t.Fatalf("items: %v", err)
	}
	if len(items) != 2 {
		t.Fatalf("expected 2 lines, got %d", len(items))
	}

	v, err := s.View(ctx, 1)
	if err != nil {
		t.Fatalf("view: %v", err)
	}
	if v.Total != 3*10000+25000 {
		t.Fatalf("unexpected total %d", v.Total)
	}
}

func TestStore_SetQuantityAndClear(t *testing.T) {
	s, cat := setup(t)
	ctx := context.Background()

	c := &catalog.Category{Name: "Soup"}
	_ = cat.CreateCategory(ctx, c)
	d := &catalog.Dish{CategoryID: c.ID, Name: "Bun bo", Price: 50000}
	_ = cat.CreateDish(ctx, d)

	if err := s.Add(ctx, 1, 999, 1); !errors.Is(err, apperr.ErrDishNotFound) {
		t.Fatalf("expected dish not found, got %v", err)
	}
	if err := s.Add(ctx, 1, d.ID, 0); !errors.Is(err, apperr.ErrInvalidQuantity) {
		t.Fatalf("expected invalid quantity, got %v", err)
	}

	_ = s.Add(ctx, 1, d.ID, 1)
	if err := s.SetQuantity(ctx, 1, d.ID, 4); err != nil {
		t.Fatalf("set quantity: %v", err)
	}
	items, _ := s.Items(ctx, 1)
	if len(items) != 1 || items[0].Quantity != 4 {
		t.Fatalf("unexpected items %+v", items)
	}

	if err := s.SetQuantity(ctx, 1, d.ID, 0); err != nil {
		t.Fatalf("set zero: %v", err)
	}
	items, _ = s.Items(ctx, 1)
	if len(items) != 0 {
		t.Fatalf("expected line removed, got %+v", items)
	}

	_ = s.Add(ctx, 1, d.ID, 2)
	if err := s.Clear(ctx, 1); err != nil {
		t.Fatalf("clear: %v", err)
	}
	v, _ := s.View(ctx, 1)
	if len(v.Items) != 0 || v.Total != 0 {
		t.Fatalf("expected empty cart, got %+v", v)
	}
}
