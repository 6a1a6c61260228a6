package storage

import (
	"context"
	"fmt"
	"os"
	"sort"

	"go.uber.org/zap"

	"github.com/hpungsan/clipstash/internal/errors"
	"github.com/hpungsan/clipstash/internal/item"
)

// RebuildReport summarizes a rebuild.
type RebuildReport struct {
	Total    int      `json:"total"`
	Kept     int      `json:"kept"`
	Added    int      `json:"added"`
	Dropped  int      `json:"dropped"`
	Warnings []string `json:"warnings,omitempty"`
}

// Rebuild reconciles the index with the item files: entries without a body
// are dropped and bodies without an entry get reconstructed metadata.
func (s *Store) Rebuild(ctx context.Context) (*RebuildReport, error) {
	s.commitMu.Lock()
	s.mu.RLock()
	loaded, known := s.loaded, s.entries
	s.mu.RUnlock()
	if !loaded {
		// A corrupt index contributes nothing; the files still do.
		known, _ = readIndex(s.indexPath)
	}
	report, err := s.rebuildLocked(ctx, known)
	s.commitMu.Unlock()

	if err != nil {
		return nil, err
	}
	s.notify(Change{Kind: ChangeRebuilt})
	return report, nil
}

// rebuildLocked must be called with commitMu held.
func (s *Store) rebuildLocked(ctx context.Context, known []item.Item) (*RebuildReport, error) {
	dirEntries, err := os.ReadDir(s.itemsDir)
	if err != nil {
		return nil, errors.NewInternal(fmt.Errorf("failed to list items: %w", err))
	}

	byID := make(map[string]item.Item, len(known))
	for _, e := range known {
		byID[e.ID] = e
	}

	report := &RebuildReport{}
	entries := make([]item.Item, 0, len(dirEntries))
	seen := make(map[string]bool, len(dirEntries))

	for _, de := range dirEntries {
		if err := ctx.Err(); err != nil {
			return nil, errors.NewCancelled(err)
		}
		id, ok := bodyID(de)
		if !ok {
			if !de.IsDir() {
				report.Warnings = append(report.Warnings, fmt.Sprintf("skipped unrecognized file %s", de.Name()))
			}
			continue
		}
		seen[id] = true

		if e, ok := byID[id]; ok {
			entries = append(entries, e)
			report.Kept++
			continue
		}

		e, err := s.reconstruct(id)
		if err != nil {
			report.Warnings = append(report.Warnings, fmt.Sprintf("skipped %s: %v", id, err))
			continue
		}
		entries = append(entries, e)
		report.Added++
	}

	for id := range byID {
		if !seen[id] {
			report.Dropped++
		}
	}

	sort.SliceStable(entries, func(i, j int) bool {
		return newerFirst(entries[i], entries[j])
	})
	report.Total = len(entries)

	// Memory follows the files even if the commit fails; the store stays dirty
	// so the commit is retried on the next read.
	s.setEntries(entries)
	if err := s.commitIndex(entries); err != nil {
		s.dirty.Store(true)
		return nil, errors.NewStorageWrite("index commit", err)
	}
	s.dirty.Store(false)

	for _, w := range report.Warnings {
		s.log.Warn("rebuild", zap.String("warning", w))
	}
	s.log.Info("index rebuilt",
		zap.Int("total", report.Total),
		zap.Int("added", report.Added),
		zap.Int("dropped", report.Dropped))
	return report, nil
}

// reconstruct derives metadata for a body that has no index entry. The source
// is not recorded anywhere on disk, so clipboard is assumed.
func (s *Store) reconstruct(id string) (item.Item, error) {
	ts, ok := item.ParseIDTime(id)
	if !ok {
		return item.Item{}, fmt.Errorf("cannot parse timestamp from id")
	}
	data, err := os.ReadFile(s.bodyPath(id))
	if err != nil {
		return item.Item{}, err
	}
	e := item.New(string(data), item.SourceClipboard, ts)
	e.ID = id
	return e, nil
}
