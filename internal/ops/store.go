package ops

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/hpungsan/clipstash/internal/config"
	"github.com/hpungsan/clipstash/internal/errors"
	"github.com/hpungsan/clipstash/internal/item"
	"github.com/hpungsan/clipstash/internal/storage"
)

// StoreInput contains parameters for the Store operation.
type StoreInput struct {
	Text   string      // required, not whitespace-only
	Source item.Source // default: clipboard

	// Timestamp overrides the creation instant (used by import). Zero means now.
	Timestamp time.Time
}

// StoreOutput contains the result of the Store operation.
type StoreOutput struct {
	ID        string         `json:"id"`
	Timestamp time.Time      `json:"timestamp"`
	Type      item.Type      `json:"type"`
	Source    item.Source    `json:"source"`
	Length    int            `json:"length"`
	Cleanup   *CleanupOutput `json:"cleanup,omitempty"`
}

// Store persists text as a new item and then enforces retention limits.
// Retention is best effort: its failures are logged, never returned.
func Store(ctx context.Context, st *storage.Store, settings config.Settings, input StoreInput) (*StoreOutput, error) {
	if item.IsBlank(input.Text) {
		return nil, errors.NewInvalidRequest("text is required")
	}
	if input.Source == "" {
		input.Source = item.SourceClipboard
	}
	if !input.Source.Valid() {
		return nil, errors.NewInvalidRequest("source must be one of: clipboard, ocr, llm")
	}
	ts := input.Timestamp
	if ts.IsZero() {
		ts = time.Now()
	}

	it, err := st.Insert(ctx, item.New(input.Text, input.Source, ts), input.Text)
	if err != nil {
		return nil, err
	}

	out := &StoreOutput{
		ID:        it.ID,
		Timestamp: it.Timestamp,
		Type:      it.Type,
		Source:    it.Source,
		Length:    it.Length,
	}

	cleanup, err := Cleanup(ctx, st, CleanupInput{
		MaxItems:    settings.MaxItems,
		CleanupDays: settings.CleanupDays,
	})
	if err != nil {
		st.Logger().Warn("retention after store failed", zap.String("id", it.ID), zap.Error(err))
	} else if cleanup.Deleted > 0 {
		out.Cleanup = cleanup
	}
	return out, nil
}
