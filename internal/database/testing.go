package database

import (
	"fmt"
	"strings"
	"sync/atomic"
	"testing"

	"gorm.io/gorm"
)

var memSeq atomic.Int64

// OpenTest opens a private in-memory database, migrates models and closes it when
// the test ends.
func OpenTest(t testing.TB, models ...any) *gorm.DB {
	t.Helper()
	name := strings.NewReplacer("/", "_", " ", "_").Replace(t.Name())
	path := fmt.Sprintf("file:%s_%d?mode=memory&cache=shared", name, memSeq.Add(1))
	db, err := Open(path)
	if err != nil {
		t.Fatalf("open test db: %v", err)
	}
	if err := Migrate(db, models...); err != nil {
		t.Fatalf("migrate test db: %v", err)
	}
	t.Cleanup(func() { _ = Close(db) })
	return db
}
