package ops

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/hpungsan/clipstash/internal/item"
	"github.com/hpungsan/clipstash/internal/storage"
)

// CleanupInput contains parameters for the Cleanup operation.
type CleanupInput struct {
	MaxItems    int       // 0 or less disables the count cap
	CleanupDays int       // 0 or less disables the age cap
	Now         time.Time // zero means time.Now()
}

// CleanupOutput contains the result of the Cleanup operation.
type CleanupOutput struct {
	Deleted int    `json:"deleted"`
	ByAge   int    `json:"by_age"`
	ByCount int    `json:"by_count"`
	Failed  int    `json:"failed"`
	Message string `json:"message"`
}

// Cleanup enforces the age cap and then the count cap, oldest items first.
// A failed deletion is logged and counted; the remaining deletions still run.
func Cleanup(ctx context.Context, st *storage.Store, input CleanupInput) (*CleanupOutput, error) {
	now := input.Now
	if now.IsZero() {
		now = time.Now()
	}

	items, err := st.Items(ctx)
	if err != nil {
		return nil, err
	}

	out := &CleanupOutput{}
	log := st.Logger()
	gone := make(map[string]bool)
	failed := make(map[string]bool)

	// remove reports whether the item is no longer stored.
	remove := func(it item.Item, reason string) bool {
		deleted, err := st.Remove(ctx, it.ID)
		if err != nil {
			out.Failed++
			failed[it.ID] = true
			log.Warn("retention delete failed",
				zap.String("id", it.ID), zap.String("reason", reason), zap.Error(err))
			return false
		}
		if deleted {
			if reason == "age" {
				out.ByAge++
			} else {
				out.ByCount++
			}
		}
		gone[it.ID] = true
		return true
	}

	// Items are newest first; walk from the oldest end.
	if input.CleanupDays > 0 {
		cutoff := now.Add(-time.Duration(input.CleanupDays) * 24 * time.Hour)
		for i := len(items) - 1; i >= 0 && items[i].Timestamp.Before(cutoff); i-- {
			if ctx.Err() != nil {
				break
			}
			remove(items[i], "age")
		}
	}

	// An item that could not be deleted still counts against the cap, so
	// the next-oldest one goes in its place.
	if input.MaxItems > 0 {
		excess := len(items) - len(gone) - input.MaxItems
		for i := len(items) - 1; i >= 0 && excess > 0; i-- {
			if gone[items[i].ID] || failed[items[i].ID] {
				continue
			}
			if ctx.Err() != nil {
				break
			}
			if remove(items[i], "count") {
				excess--
			}
		}
	}

	out.Deleted = out.ByAge + out.ByCount
	out.Message = formatCleanupMessage(out, input)
	if out.Deleted > 0 || out.Failed > 0 {
		log.Info("retention applied",
			zap.Int("by_age", out.ByAge), zap.Int("by_count", out.ByCount), zap.Int("failed", out.Failed))
	}
	return out, nil
}

// formatCleanupMessage creates a human-readable message for the cleanup result.
func formatCleanupMessage(out *CleanupOutput, input CleanupInput) string {
	if out.Deleted == 0 && out.Failed == 0 {
		return "No items to clean up"
	}

	var reasons []string
	if out.ByAge > 0 {
		reasons = append(reasons, fmt.Sprintf("%d older than %d days", out.ByAge, input.CleanupDays))
	}
	if out.ByCount > 0 {
		reasons = append(reasons, fmt.Sprintf("%d over the %d item limit", out.ByCount, input.MaxItems))
	}

	msg := fmt.Sprintf("Deleted %s", plural(out.Deleted, "item"))
	if len(reasons) > 0 {
		msg += " (" + strings.Join(reasons, ", ") + ")"
	}
	if out.Failed > 0 {
		msg += fmt.Sprintf("; %s could not be deleted", plural(out.Failed, "item"))
	}
	return msg
}
