package idempotency

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/imrishuroy/go-foodorder/internal/database"
)

func TestInsert_Get_MarkDone_MarkFailed(t *testing.T) {
	db := database.OpenTest(t, &Record{})
	s := NewStore(db, 48*time.Hour)

	ctx := context.Background()
	key := "test-key-1"
	orderID := "order-123"

	if err := s.InsertTx(db, s.NewRecord(7, key, orderID)); err != nil {
		t.Fatalf("InsertTx error: %v", err)
	}

	// second insert under the same key is rejected
	if err := s.InsertTx(db, s.NewRecord(7, key, "order-456")); !errors.Is(err, ErrConditionFailed) {
		t.Fatalf("expected ErrConditionFailed on duplicate insert, got %v", err)
	}

	// keys are scoped per user
	if err := s.InsertTx(db, s.NewRecord(8, key, "order-789")); err != nil {
		t.Fatalf("expected other user's key to be independent, got %v", err)
	}

	rec, err := s.Get(ctx, 7, key)
	if err != nil {
		t.Fatalf("Get error: %v", err)
	}
	if rec == nil {
		t.Fatalf("expected record, got nil")
	}
	if rec.Status != StatusInProgress {
		t.Fatalf("expected IN_PROGRESS, got %s", rec.Status)
	}
	if rec.OrderID != orderID {
		t.Fatalf("order id mismatch")
	}

	if err := s.MarkDone(ctx, 7, key, "{\"ok\":true}", 201); err != nil {
		t.Fatalf("MarkDone error: %v", err)
	}
	rec, _ = s.Get(ctx, 7, key)
	if rec.Status != StatusDone || rec.ResponseBody != "{\"ok\":true}" || rec.ResponseStatus != 201 {
		t.Fatalf("record not marked done: %+v", rec)
	}

	if err := s.MarkFailed(ctx, 7, key, "failed-reason"); err != nil {
		t.Fatalf("MarkFailed error: %v", err)
	}
	rec, _ = s.Get(ctx, 7, key)
	if rec.Status != StatusFailed || rec.Note != "failed-reason" {
		t.Fatalf("record not marked failed: %+v", rec)
	}

	if err := s.MarkDone(ctx, 7, "missing", "", 200); err == nil {
		t.Fatalf("expected error for unknown key")
	}
}

func TestExpiredKeysAreReplaced(t *testing.T) {
	db := database.OpenTest(t, &Record{})
	s := NewStore(db, time.Hour)
	now := time.Now()
	s.nowFunc = func() time.Time { return now }

	if err := s.InsertTx(db, s.NewRecord(1, "k", "o1")); err != nil {
		t.Fatalf("insert: %v", err)
	}

	now = now.Add(2 * time.Hour)
	rec, err := s.Get(context.Background(), 1, "k")
	if err != nil || rec != nil {
		t.Fatalf("expected expired key to be invisible, got %+v, %v", rec, err)
	}
	if err := s.InsertTx(db, s.NewRecord(1, "k", "o2")); err != nil {
		t.Fatalf("expected expired key to be reusable, got %v", err)
	}

	now = now.Add(2 * time.Hour)
	n, err := s.PurgeExpired(context.Background())
	if err != nil {
		t.Fatalf("purge: %v", err)
	}
	if n != 1 {
		t.Fatalf("expected 1 purged record, got %d", n)
	}
}
