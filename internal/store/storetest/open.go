package storetest

import (
	"path/filepath"
	"testing"

	"github.com/cooperativa/registro/internal/store"
)

// Open creates an initialized database under t.TempDir(). It is closed
// when the test ends.
func Open(t testing.TB) *store.DB {
	t.Helper()

	path := filepath.Join(t.TempDir(), "test.db")
	db, err := store.Open(path)
	if err != nil {
		t.Fatalf("failed to open test database: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })

	if err := db.InitSchema(); err != nil {
		t.Fatalf("failed to initialize schema: %v", err)
	}
	return db
}
