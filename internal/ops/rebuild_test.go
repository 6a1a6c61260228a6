package ops

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/hpungsan/clipstash/internal/item"
	"github.com/hpungsan/clipstash/internal/storage"
)

func TestRebuild_CrashBetweenBodyAndIndex(t *testing.T) {
	st := setupStore(t)
	ctx := context.Background()
	committed := mustStore(t, st, "committed", item.SourceClipboard, time.Now().Add(-time.Minute))

	// Body reached disk, index commit never happened.
	crashedID := newID(t, time.Now())
	if err := os.WriteFile(filepath.Join(st.BaseDir(), storage.ItemsDir, crashedID+".txt"), []byte("half-stored"), 0600); err != nil {
		t.Fatal(err)
	}

	out, err := Rebuild(ctx, st)
	if err != nil {
		t.Fatalf("Rebuild failed: %v", err)
	}
	if out.Total != 2 || out.Added != 1 || out.Dropped != 0 {
		t.Errorf("report = %+v", out.RebuildReport)
	}
	if out.Message != "Index rebuilt: 2 items (1 recovered, 0 stale dropped)" {
		t.Errorf("Message = %q", out.Message)
	}

	for _, id := range []string{committed.ID, crashedID} {
		if _, err := Fetch(ctx, st, FetchInput{ID: id}); err != nil {
			t.Errorf("Fetch(%s) failed: %v", id, err)
		}
	}
}

func TestRebuild_NoChanges(t *testing.T) {
	st := setupStore(t)
	mustStore(t, st, "only", item.SourceClipboard, time.Now())

	out, err := Rebuild(context.Background(), st)
	if err != nil {
		t.Fatalf("Rebuild failed: %v", err)
	}
	if out.Message != "Index rebuilt: 1 item" {
		t.Errorf("Message = %q", out.Message)
	}
}
