// Package testutil provides shared test helpers for setting up document
// stores and mirror directories.
package testutil

import (
	"os"
	"testing"

	"github.com/starford/texflow/internal/storage"
	"github.com/starford/texflow/internal/store"
)

// TestStore creates a temporary SQLite document store that is automatically
// cleaned up.
func TestStore(t *testing.T) *store.DB {
	t.Helper()
	dbFile, err := os.CreateTemp("", "texflow-test-*.db")
	if err != nil {
		t.Fatal(err)
	}
	dbFile.Close()
	t.Cleanup(func() { os.Remove(dbFile.Name()) })

	db, err := store.Open(dbFile.Name())
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

// TestMirror creates a temporary mirror directory with a storage provider.
func TestMirror(t *testing.T) (string, *storage.FS) {
	t.Helper()
	dir := t.TempDir()
	fsys, err := storage.NewFS(dir)
	if err != nil {
		t.Fatal(err)
	}
	return dir, fsys
}
