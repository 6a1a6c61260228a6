package ops

import (
	"context"
	"fmt"

	"github.com/hpungsan/clipstash/internal/storage"
)

// RebuildOutput contains the result of the Rebuild operation.
type RebuildOutput struct {
	*storage.RebuildReport
	Message string `json:"message"`
}

// Rebuild regenerates the index from the item files.
func Rebuild(ctx context.Context, st *storage.Store) (*RebuildOutput, error) {
	report, err := st.Rebuild(ctx)
	if err != nil {
		return nil, err
	}
	msg := "Index rebuilt: " + plural(report.Total, "item")
	if report.Added > 0 || report.Dropped > 0 {
		msg += fmt.Sprintf(" (%d recovered, %d stale dropped)", report.Added, report.Dropped)
	}
	return &RebuildOutput{RebuildReport: report, Message: msg}, nil
}
