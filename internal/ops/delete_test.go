package ops

import (
	"context"
	"testing"
	"time"

	"github.com/hpungsan/clipstash/internal/errors"
	"github.com/hpungsan/clipstash/internal/item"
)

func TestDelete_Idempotent(t *testing.T) {
	st := setupStore(t)
	ctx := context.Background()
	out := mustStore(t, st, "delete me", item.SourceClipboard, time.Now())

	first, err := Delete(ctx, st, DeleteInput{ID: out.ID})
	if err != nil {
		t.Fatalf("Delete failed: %v", err)
	}
	if !first.Deleted {
		t.Error("first Delete should report deleted=true")
	}

	second, err := Delete(ctx, st, DeleteInput{ID: out.ID})
	if err != nil {
		t.Fatalf("second Delete failed: %v", err)
	}
	if second.Deleted {
		t.Error("second Delete should report deleted=false")
	}

	if _, err := Fetch(ctx, st, FetchInput{ID: out.ID}); !errors.Is(err, errors.ErrNotFound) {
		t.Errorf("Fetch after delete error = %v, want NOT_FOUND", err)
	}
}

func TestDelete_UnknownID(t *testing.T) {
	st := setupStore(t)
	out, err := Delete(context.Background(), st, DeleteInput{ID: newID(t, time.Now())})
	if err != nil {
		t.Fatalf("Delete failed: %v", err)
	}
	if out.Deleted {
		t.Error("Deleted = true for unknown id")
	}
}

func TestDelete_RequiresID(t *testing.T) {
	st := setupStore(t)
	if _, err := Delete(context.Background(), st, DeleteInput{}); !errors.Is(err, errors.ErrInvalidRequest) {
		t.Fatalf("error = %v, want INVALID_REQUEST", err)
	}
}
