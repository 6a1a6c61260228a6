package ops

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/hpungsan/clipstash/internal/item"
	"github.com/hpungsan/clipstash/internal/storage"
)

// jamBody replaces the body of id with a non-empty directory so that
// removing it fails.
func jamBody(t *testing.T, st *storage.Store, id string) {
	t.Helper()
	path := filepath.Join(st.BaseDir(), storage.ItemsDir, id+".txt")
	if err := os.Remove(path); err != nil {
		t.Fatal(err)
	}
	if err := os.Mkdir(path, 0700); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(path, "keep"), []byte("x"), 0600); err != nil {
		t.Fatal(err)
	}
}

func listIDs(t *testing.T, st *storage.Store) []string {
	t.Helper()
	list, err := List(context.Background(), st, ListInput{Limit: MaxListLimit})
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	ids := []string{}
	for _, it := range list.Items {
		ids = append(ids, it.ID)
	}
	return ids
}

func TestCleanup_CountCap(t *testing.T) {
	st := setupStore(t)
	ctx := context.Background()
	base := time.Now().Add(-time.Hour)

	var ids []string
	for i := 0; i < 5; i++ {
		ids = append(ids, mustStore(t, st, "n", item.SourceClipboard, base.Add(time.Duration(i)*time.Minute)).ID)
	}

	out, err := Cleanup(ctx, st, CleanupInput{MaxItems: 3})
	if err != nil {
		t.Fatalf("Cleanup failed: %v", err)
	}
	if out.ByCount != 2 || out.Deleted != 2 {
		t.Errorf("out = %+v, want 2 deleted by count", out)
	}

	list, _ := List(ctx, st, ListInput{})
	got := []string{}
	for _, it := range list.Items {
		got = append(got, it.ID)
	}
	want := []string{ids[4], ids[3], ids[2]}
	if len(got) != 3 || got[0] != want[0] || got[1] != want[1] || got[2] != want[2] {
		t.Errorf("remaining = %v, want %v", got, want)
	}
}

func TestCleanup_AgeCap(t *testing.T) {
	st := setupStore(t)
	ctx := context.Background()
	now := time.Date(2024, 3, 2, 12, 0, 0, 0, time.UTC)

	old := mustStore(t, st, "31 days old", item.SourceClipboard, now.AddDate(0, 0, -31))
	young := mustStore(t, st, "29 days old", item.SourceClipboard, now.AddDate(0, 0, -29))

	out, err := Cleanup(ctx, st, CleanupInput{CleanupDays: 30, Now: now})
	if err != nil {
		t.Fatalf("Cleanup failed: %v", err)
	}
	if out.ByAge != 1 {
		t.Errorf("ByAge = %d, want 1", out.ByAge)
	}

	if _, err := Fetch(ctx, st, FetchInput{ID: old.ID}); err == nil {
		t.Error("31-day-old item should be gone")
	}
	if _, err := Fetch(ctx, st, FetchInput{ID: young.ID}); err != nil {
		t.Errorf("29-day-old item should remain: %v", err)
	}
}

func TestCleanup_AgeCapAcrossYearBoundary(t *testing.T) {
	st := setupStore(t)
	ctx := context.Background()
	now := time.Date(2025, 1, 3, 0, 0, 0, 0, time.UTC)

	// Dec 30 is 4 days before Jan 3 even though the day-of-month is larger.
	mustStore(t, st, "recent", item.SourceClipboard, time.Date(2024, 12, 30, 0, 0, 0, 0, time.UTC))
	mustStore(t, st, "ancient", item.SourceClipboard, time.Date(2024, 11, 1, 0, 0, 0, 0, time.UTC))

	out, err := Cleanup(ctx, st, CleanupInput{CleanupDays: 7, Now: now})
	if err != nil {
		t.Fatalf("Cleanup failed: %v", err)
	}
	if out.ByAge != 1 {
		t.Fatalf("ByAge = %d, want 1", out.ByAge)
	}
	list, _ := List(ctx, st, ListInput{})
	if len(list.Items) != 1 || list.Items[0].Preview != "recent" {
		t.Errorf("remaining = %+v", list.Items)
	}
}

func TestCleanup_AgeCapContinuesAfterFailure(t *testing.T) {
	st := setupStore(t)
	ctx := context.Background()
	now := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)

	mustStore(t, st, "40 days", item.SourceClipboard, now.AddDate(0, 0, -40))
	stuck := mustStore(t, st, "35 days", item.SourceClipboard, now.AddDate(0, 0, -35))
	mustStore(t, st, "33 days", item.SourceClipboard, now.AddDate(0, 0, -33))
	fresh := mustStore(t, st, "1 day", item.SourceClipboard, now.AddDate(0, 0, -1))
	jamBody(t, st, stuck.ID)

	out, err := Cleanup(ctx, st, CleanupInput{CleanupDays: 30, Now: now})
	if err != nil {
		t.Fatalf("Cleanup failed: %v", err)
	}
	if out.ByAge != 2 || out.Failed != 1 || out.Deleted != 2 {
		t.Errorf("out = %+v, want 2 deleted by age and 1 failed", out)
	}
	if !strings.Contains(out.Message, "1 item could not be deleted") {
		t.Errorf("Message = %q", out.Message)
	}

	got := listIDs(t, st)
	want := []string{fresh.ID, stuck.ID}
	if len(got) != 2 || got[0] != want[0] || got[1] != want[1] {
		t.Errorf("remaining = %v, want %v", got, want)
	}
}

func TestCleanup_CountCapSkipsUndeletable(t *testing.T) {
	st := setupStore(t)
	ctx := context.Background()
	base := time.Now().Add(-time.Hour)

	var ids []string
	for i := 0; i < 5; i++ {
		ids = append(ids, mustStore(t, st, "n", item.SourceClipboard, base.Add(time.Duration(i)*time.Minute)).ID)
	}
	jamBody(t, st, ids[0])

	out, err := Cleanup(ctx, st, CleanupInput{MaxItems: 3})
	if err != nil {
		t.Fatalf("Cleanup failed: %v", err)
	}
	if out.ByCount != 2 || out.Failed != 1 {
		t.Errorf("out = %+v, want 2 deleted by count and 1 failed", out)
	}

	got := listIDs(t, st)
	want := []string{ids[4], ids[3], ids[0]}
	if len(got) != 3 || got[0] != want[0] || got[1] != want[1] || got[2] != want[2] {
		t.Errorf("remaining = %v, want %v", got, want)
	}
}

func TestCleanup_Disabled(t *testing.T) {
	st := setupStore(t)
	mustStore(t, st, "a", item.SourceClipboard, time.Now().AddDate(-1, 0, 0))
	mustStore(t, st, "b", item.SourceClipboard, time.Now())

	out, err := Cleanup(context.Background(), st, CleanupInput{})
	if err != nil {
		t.Fatalf("Cleanup failed: %v", err)
	}
	if out.Deleted != 0 {
		t.Errorf("Deleted = %d, want 0", out.Deleted)
	}
	if out.Message != "No items to clean up" {
		t.Errorf("Message = %q", out.Message)
	}
}

func TestFormatCleanupMessage(t *testing.T) {
	tests := []struct {
		out   CleanupOutput
		input CleanupInput
		want  string
	}{
		{CleanupOutput{}, CleanupInput{}, "No items to clean up"},
		{CleanupOutput{Deleted: 1, ByAge: 1}, CleanupInput{CleanupDays: 30}, "Deleted 1 item (1 older than 30 days)"},
		{CleanupOutput{Deleted: 3, ByAge: 1, ByCount: 2}, CleanupInput{CleanupDays: 7, MaxItems: 10},
			"Deleted 3 items (1 older than 7 days, 2 over the 10 item limit)"},
		{CleanupOutput{Deleted: 1, ByCount: 1, Failed: 2}, CleanupInput{MaxItems: 5},
			"Deleted 1 item (1 over the 5 item limit); 2 items could not be deleted"},
	}
	for _, tt := range tests {
		out := tt.out
		if got := formatCleanupMessage(&out, tt.input); got != tt.want {
			t.Errorf("formatCleanupMessage() = %q, want %q", got, tt.want)
		}
	}
}
