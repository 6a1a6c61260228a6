package ops

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/hpungsan/clipstash/internal/errors"
	"github.com/hpungsan/clipstash/internal/item"
	"github.com/hpungsan/clipstash/internal/storage"
)

func TestFetch_UnknownID(t *testing.T) {
	st := setupStore(t)
	_, err := Fetch(context.Background(), st, FetchInput{ID: newID(t, time.Now())})
	if !errors.Is(err, errors.ErrNotFound) {
		t.Fatalf("error = %v, want NOT_FOUND", err)
	}
}

func TestFetch_InvalidID(t *testing.T) {
	st := setupStore(t)
	tests := []string{"", "  ", "../settings", "abc"}
	for _, id := range tests {
		_, err := Fetch(context.Background(), st, FetchInput{ID: id})
		if !errors.Is(err, errors.ErrInvalidRequest) {
			t.Errorf("Fetch(%q) error = %v, want INVALID_REQUEST", id, err)
		}
	}
}

func TestFetch_MissingBodyIsNotFoundAndRepairs(t *testing.T) {
	st := setupStore(t)
	ctx := context.Background()
	out := mustStore(t, st, "soon gone", item.SourceClipboard, time.Now())

	if err := os.Remove(filepath.Join(st.BaseDir(), storage.ItemsDir, out.ID+".txt")); err != nil {
		t.Fatal(err)
	}

	_, err := Fetch(ctx, st, FetchInput{ID: out.ID})
	if !errors.Is(err, errors.ErrNotFound) {
		t.Fatalf("error = %v, want NOT_FOUND", err)
	}

	list, err := List(ctx, st, ListInput{})
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	if list.Pagination.Total != 0 {
		t.Errorf("Total = %d, want 0 after repair", list.Pagination.Total)
	}
}

func TestFetch_AdoptsUnindexedBody(t *testing.T) {
	st := setupStore(t)
	ctx := context.Background()
	// Load the (empty) index first so the new file is unknown to it.
	if _, err := List(ctx, st, ListInput{}); err != nil {
		t.Fatal(err)
	}

	id := newID(t, time.Now())
	if err := os.WriteFile(filepath.Join(st.BaseDir(), storage.ItemsDir, id+".txt"), []byte("https://go.dev"), 0600); err != nil {
		t.Fatal(err)
	}

	out, err := Fetch(ctx, st, FetchInput{ID: id})
	if err != nil {
		t.Fatalf("Fetch failed: %v", err)
	}
	if out.Type != item.TypeURL {
		t.Errorf("Type = %q, want url", out.Type)
	}
}
