package testsupport

import (
	"context"
	"testing"
	"time"

	"mediaguard/internal/config"
	"mediaguard/internal/store"
)

// MustOpenStore opens a store.Store for tests and registers cleanup.
func MustOpenStore(t testing.TB, cfg *config.Config) *store.Store {
	t.Helper()

	st, err := store.Open(cfg)
	if err != nil {
		t.Fatalf("store.Open: %v", err)
	}
	t.Cleanup(func() {
		st.Close()
	})
	return st
}

// MustUpsertFile records path in the store with a fixed size and mtime.
func MustUpsertFile(t testing.TB, st *store.Store, path string) *store.MediaFile {
	t.Helper()

	file, _, err := st.UpsertFile(context.Background(), store.FileInfo{
		Path:       path,
		SizeBytes:  1024,
		ModifiedAt: time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC),
	})
	if err != nil {
		t.Fatalf("store.UpsertFile: %v", err)
	}
	return file
}
