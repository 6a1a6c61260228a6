package ops

import (
	"context"
	"fmt"
	"io"
	"path/filepath"
	"strings"
	"time"

	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"github.com/hpungsan/clipstash/internal/errors"
	"github.com/hpungsan/clipstash/internal/item"
	"github.com/hpungsan/clipstash/internal/storage"
)

// ExportFormat selects the export layout.
type ExportFormat string

const (
	ExportText ExportFormat = "text"
	ExportYAML ExportFormat = "yaml"
)

const separatorWidth = 50

// ExportInput contains parameters for the Export operation.
type ExportInput struct {
	Path   string       // optional, default: <base>/export_<timestamp>.txt (or .yaml)
	Format ExportFormat // default: text
}

// ExportOutput contains the result of the Export operation.
type ExportOutput struct {
	Path       string       `json:"path"`
	Format     ExportFormat `json:"format"`
	Count      int          `json:"count"`
	ExportedAt time.Time    `json:"exported_at"`
	Warnings   []string     `json:"warnings,omitempty"`
}

// ExportResult describes what ExportAll wrote.
type ExportResult struct {
	Count    int
	Warnings []string
}

// Export writes every item to a file. The file appears only once it is
// complete; on failure nothing is left behind and the store is untouched.
func Export(ctx context.Context, st *storage.Store, input ExportInput) (*ExportOutput, error) {
	format, err := parseExportFormat(input.Format)
	if err != nil {
		return nil, err
	}
	now := time.Now()

	exportPath := input.Path
	if exportPath == "" {
		exportPath = DefaultExportPath(st.BaseDir(), format, now)
	}
	if err := ValidatePath(exportPath, PathCheckWrite, exportExtensions(format)...); err != nil {
		return nil, err
	}

	var result *ExportResult
	err = storage.WriteAtomic(exportPath, 0600, func(w io.Writer) error {
		var werr error
		result, werr = ExportAll(ctx, st, w, format, now)
		return werr
	})
	if err != nil {
		if errors.Code(err) != errors.ErrInternal {
			return nil, err
		}
		return nil, errors.NewInternal(fmt.Errorf("export failed: %w", err))
	}

	return &ExportOutput{
		Path:       exportPath,
		Format:     format,
		Count:      result.Count,
		ExportedAt: now,
		Warnings:   result.Warnings,
	}, nil
}

// ExportAll streams every item, newest first, to w. A body that has gone
// missing is skipped with a warning and the store is marked for repair.
func ExportAll(ctx context.Context, st *storage.Store, w io.Writer, format ExportFormat, now time.Time) (*ExportResult, error) {
	format, err := parseExportFormat(format)
	if err != nil {
		return nil, err
	}
	items, err := st.Items(ctx)
	if err != nil {
		return nil, err
	}

	result := &ExportResult{}
	records := make([]item.ExportRecord, 0, len(items))
	for _, it := range items {
		if err := ctx.Err(); err != nil {
			return nil, errors.NewCancelled(err)
		}
		text, err := st.Body(ctx, it.ID)
		if err != nil {
			if errors.Is(err, errors.ErrNotFound) {
				result.Warnings = append(result.Warnings, fmt.Sprintf("skipped %s: body missing", it.ID))
				st.Logger().Warn("export skipped item without body", zap.String("id", it.ID))
				continue
			}
			return nil, err
		}
		records = append(records, item.ToExportRecord(it, text))
	}
	result.Count = len(records)

	switch format {
	case ExportYAML:
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		doc := item.ExportDocument{ExportedAt: now.UTC(), Total: len(records), Items: records}
		if err := enc.Encode(doc); err != nil {
			return nil, err
		}
		if err := enc.Close(); err != nil {
			return nil, err
		}
	default:
		if err := writeTextExport(w, records, now); err != nil {
			return nil, err
		}
	}
	return result, nil
}

func writeTextExport(w io.Writer, records []item.ExportRecord, now time.Time) error {
	heavy := strings.Repeat("=", separatorWidth)
	light := strings.Repeat("-", separatorWidth)

	if _, err := fmt.Fprintf(w, "Clipboard Export\nGenerated: %s\nTotal items: %d\n%s\n\n",
		now.Format("2006-01-02 15:04:05"), len(records), heavy); err != nil {
		return err
	}
	for i, r := range records {
		if _, err := fmt.Fprintf(w, "[%d] %s | %s | %s | %d chars\n%s\n%s\n\n",
			i+1, r.Timestamp.Local().Format("2006-01-02 15:04:05"), r.Type, r.Source, r.Length, light, r.Text); err != nil {
			return err
		}
	}
	return nil
}

// DefaultExportPath returns <baseDir>/export_<YYYYMMDD_HHMMSS>.<ext>.
func DefaultExportPath(baseDir string, format ExportFormat, now time.Time) string {
	ext := ".txt"
	if format == ExportYAML {
		ext = ".yaml"
	}
	return filepath.Join(baseDir, "export_"+now.Format("20060102_150405")+ext)
}

func exportExtensions(format ExportFormat) []string {
	if format == ExportYAML {
		return []string{".yaml", ".yml"}
	}
	return []string{".txt"}
}

func parseExportFormat(f ExportFormat) (ExportFormat, error) {
	switch ExportFormat(strings.ToLower(string(f))) {
	case "", ExportText:
		return ExportText, nil
	case ExportYAML, "yml":
		return ExportYAML, nil
	}
	return "", errors.NewInvalidRequest(fmt.Sprintf("format must be text or yaml (got %q)", f))
}
