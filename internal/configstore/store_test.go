package configstore

import (
	"context"
	"os"
	"path/filepath"
	"testing"
)

func TestSQLiteStore_SaveAndGetRoundTrip(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "config.db")
	store, err := NewSQLiteStore(dbPath)
	if err != nil {
		t.Fatalf("NewSQLiteStore: %v", err)
	}
	defer store.Close()

	entries := []BlocklistEntry{{SourceTitle: "some.movie.2025", ReasonFailed: "par2 repair failed"}}
	ctx := context.Background()
	if err := store.Save(ctx, "inst-1", KindBlocklist, entries); err != nil {
		t.Fatalf("Save: %v", err)
	}

	var got []BlocklistEntry
	if err := store.Get(ctx, "inst-1", KindBlocklist, &got); err != nil {
		t.Fatalf("Get: %v", err)
	}
	if len(got) != 1 || got[0].SourceTitle != "some.movie.2025" {
		t.Fatalf("got %+v", got)
	}
}

func TestSQLiteStore_GetMissingReturnsErrNotFound(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "config.db")
	store, err := NewSQLiteStore(dbPath)
	if err != nil {
		t.Fatalf("NewSQLiteStore: %v", err)
	}
	defer store.Close()

	var out []BlocklistEntry
	err = store.Get(context.Background(), "inst-1", KindBlocklist, &out)
	if err != ErrNotFound {
		t.Fatalf("got %v, want ErrNotFound", err)
	}
}

func TestSQLiteStore_SaveOverwritesExisting(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "config.db")
	store, err := NewSQLiteStore(dbPath)
	if err != nil {
		t.Fatalf("NewSQLiteStore: %v", err)
	}
	defer store.Close()

	ctx := context.Background()
	if err := store.Save(ctx, "inst-1", KindCollection, []CollectionItem{{Title: "A"}}); err != nil {
		t.Fatalf("Save 1: %v", err)
	}
	if err := store.Save(ctx, "inst-1", KindCollection, []CollectionItem{{Title: "B"}, {Title: "C"}}); err != nil {
		t.Fatalf("Save 2: %v", err)
	}

	var got []CollectionItem
	if err := store.Get(ctx, "inst-1", KindCollection, &got); err != nil {
		t.Fatalf("Get: %v", err)
	}
	if len(got) != 2 || got[0].Title != "B" {
		t.Fatalf("got %+v", got)
	}
}

func TestFileStore_SaveAndGetRoundTrip(t *testing.T) {
	dir := t.TempDir()
	store, err := NewFileStore(dir)
	if err != nil {
		t.Fatalf("NewFileStore: %v", err)
	}

	type snapshot struct {
		Status string `json:"status"`
	}

	ctx := context.Background()
	if err := store.Save(ctx, "nzb", KindSnapshot, snapshot{Status: "downloading"}); err != nil {
		t.Fatalf("Save: %v", err)
	}

	var got snapshot
	if err := store.Get(ctx, "nzb", KindSnapshot, &got); err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got.Status != "downloading" {
		t.Fatalf("got %+v", got)
	}

	if _, err := os.Stat(filepath.Join(dir, "nzb."+KindSnapshot+".json.tmp")); !os.IsNotExist(err) {
		t.Fatalf("temp file should not survive a successful Save")
	}
}

func TestFileStore_GetMissingReturnsErrNotFound(t *testing.T) {
	store, err := NewFileStore(t.TempDir())
	if err != nil {
		t.Fatalf("NewFileStore: %v", err)
	}
	var out map[string]any
	err = store.Get(context.Background(), "nzb", KindNZBQueue, &out)
	if err != ErrNotFound {
		t.Fatalf("got %v, want ErrNotFound", err)
	}
}
