package ops

import (
	"context"
	"testing"
	"time"

	"github.com/hpungsan/clipstash/internal/errors"
	"github.com/hpungsan/clipstash/internal/item"
)

func TestList_NewestFirstWithPagination(t *testing.T) {
	st := setupStore(t)
	ctx := context.Background()
	base := time.Now().Add(-time.Hour)

	var ids []string
	for i := 0; i < 5; i++ {
		out := mustStore(t, st, "entry", item.SourceClipboard, base.Add(time.Duration(i)*time.Second))
		ids = append(ids, out.ID)
	}

	page, err := List(ctx, st, ListInput{Limit: 2, Offset: 1})
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	if page.Sort != "timestamp_desc" {
		t.Errorf("Sort = %q", page.Sort)
	}
	if len(page.Items) != 2 || page.Items[0].ID != ids[3] || page.Items[1].ID != ids[2] {
		t.Errorf("unexpected page: %+v", page.Items)
	}
	if !page.Pagination.HasMore || page.Pagination.Total != 5 {
		t.Errorf("Pagination = %+v", page.Pagination)
	}
}

func TestList_Filters(t *testing.T) {
	st := setupStore(t)
	ctx := context.Background()
	mustStore(t, st, "git log --oneline", item.SourceClipboard, time.Now())
	mustStore(t, st, "scanned receipt", item.SourceOCR, time.Now())

	out, err := List(ctx, st, ListInput{Source: "ocr"})
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	if len(out.Items) != 1 || out.Items[0].Source != item.SourceOCR {
		t.Errorf("source filter returned %+v", out.Items)
	}

	out, err = List(ctx, st, ListInput{Type: "COMMAND"})
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	if len(out.Items) != 1 || out.Items[0].Type != item.TypeCommand {
		t.Errorf("type filter returned %+v", out.Items)
	}

	if _, err := List(ctx, st, ListInput{Type: "image"}); !errors.Is(err, errors.ErrInvalidRequest) {
		t.Errorf("unknown type error = %v, want INVALID_REQUEST", err)
	}
}

func TestList_EmptyStore(t *testing.T) {
	st := setupStore(t)
	out, err := List(context.Background(), st, ListInput{})
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	if out.Items == nil {
		t.Error("Items should be an empty slice, not nil")
	}
}
