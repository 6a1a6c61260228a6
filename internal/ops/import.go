package ops

import (
	"context"
	"fmt"
	"os"

	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"github.com/hpungsan/clipstash/internal/config"
	"github.com/hpungsan/clipstash/internal/errors"
	"github.com/hpungsan/clipstash/internal/item"
	"github.com/hpungsan/clipstash/internal/storage"
)

// ImportInput contains parameters for the Import operation.
type ImportInput struct {
	Path string // required, a YAML export
}

// ImportOutput contains the result of the Import operation.
type ImportOutput struct {
	Imported int           `json:"imported"`
	Skipped  int           `json:"skipped"`
	Errors   []ImportError `json:"errors"`
}

// ImportError represents a record that could not be imported.
type ImportError struct {
	Index   int    `json:"index"`
	ID      string `json:"id,omitempty"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

// Import re-stores the items of a YAML export, keeping their original
// timestamps. A record whose text is already stored at the same instant is
// skipped, so importing the same file twice is harmless. Retention runs once
// at the end rather than per record.
func Import(ctx context.Context, st *storage.Store, settings config.Settings, input ImportInput) (*ImportOutput, error) {
	if err := ValidatePath(input.Path, PathCheckRead, ".yaml", ".yml"); err != nil {
		return nil, err
	}

	data, err := os.ReadFile(input.Path)
	if err != nil {
		return nil, errors.NewInternal(fmt.Errorf("failed to read import file: %w", err))
	}
	var doc item.ExportDocument
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, errors.NewInvalidRequest(fmt.Sprintf("invalid export file: %v", err))
	}

	existing, err := st.Items(ctx)
	if err != nil {
		return nil, err
	}
	type key struct {
		unixNano int64
		preview  string
	}
	seen := make(map[key]bool, len(existing))
	for _, it := range existing {
		seen[key{it.Timestamp.UnixNano(), it.Preview}] = true
	}

	out := &ImportOutput{Errors: []ImportError{}}
	noRetention := config.Settings{}
	for i, rec := range doc.Items {
		if err := ctx.Err(); err != nil {
			return nil, errors.NewCancelled(err)
		}
		if item.IsBlank(rec.Text) || rec.Timestamp.IsZero() {
			out.Errors = append(out.Errors, ImportError{
				Index: i, ID: rec.ID, Code: string(errors.ErrInvalidRequest),
				Message: "record needs text and timestamp",
			})
			continue
		}
		meta := rec.ToItem()
		k := key{meta.Timestamp.UnixNano(), meta.Preview}
		if seen[k] {
			out.Skipped++
			continue
		}

		if _, err := Store(ctx, st, noRetention, StoreInput{
			Text:      rec.Text,
			Source:    meta.Source,
			Timestamp: meta.Timestamp,
		}); err != nil {
			out.Errors = append(out.Errors, ImportError{
				Index: i, ID: rec.ID, Code: string(errors.Code(err)), Message: err.Error(),
			})
			continue
		}
		seen[k] = true
		out.Imported++
	}

	if out.Imported > 0 {
		if _, err := Cleanup(ctx, st, CleanupInput{
			MaxItems:    settings.MaxItems,
			CleanupDays: settings.CleanupDays,
		}); err != nil {
			st.Logger().Warn("retention after import failed", zap.Error(err))
		}
	}
	return out, nil
}
