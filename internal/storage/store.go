package storage

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"slices"
	"sort"
	"strings"
	"sync"
	"sync/atomic"

	"go.uber.org/zap"

	"github.com/hpungsan/clipstash/internal/errors"
	"github.com/hpungsan/clipstash/internal/item"
)

const (
	// IndexFile holds the metadata of every item, newest first.
	IndexFile = "index.json"

	// ItemsDir holds one <id>.txt body per item.
	ItemsDir = "items"

	bodyExt = ".txt"

	// maxIDAttempts bounds retries when a freshly drawn id already has a body.
	maxIDAttempts = 5
)

// Store is the file-backed item store: index.json plus items/<id>.txt.
//
// The body files are the ground truth; the index is a cache of their metadata
// that is loaded lazily and rebuilt whenever it disagrees with the directory.
// Index commits are serialized by commitMu. Readers take mu and keep seeing the
// previous slice until a commit has reached disk.
type Store struct {
	baseDir   string
	itemsDir  string
	indexPath string
	log       *zap.Logger

	commitMu sync.Mutex

	mu      sync.RWMutex
	entries []item.Item
	loaded  bool
	dirty   atomic.Bool

	subMu  sync.Mutex
	subs   map[int]func(Change)
	nextID int
}

// Option configures a Store.
type Option func(*Store)

// WithLogger sets the logger used for repair and warning messages.
func WithLogger(log *zap.Logger) Option {
	return func(s *Store) {
		if log != nil {
			s.log = log
		}
	}
}

// Init prepares baseDir (and its items directory) and returns a Store.
// Nothing is read until the first access.
// The baseDir parameter allows tests to use t.TempDir() instead of ~/.clipstash.
func Init(baseDir string, opts ...Option) (*Store, error) {
	// Create base directory with restricted permissions
	if err := os.MkdirAll(baseDir, 0700); err != nil {
		return nil, fmt.Errorf("failed to create base directory: %w", err)
	}
	_ = os.Chmod(baseDir, 0700)

	itemsDir := filepath.Join(baseDir, ItemsDir)
	if err := os.MkdirAll(itemsDir, 0700); err != nil {
		return nil, fmt.Errorf("failed to create items directory: %w", err)
	}
	_ = os.Chmod(itemsDir, 0700)

	s := &Store{
		baseDir:   baseDir,
		itemsDir:  itemsDir,
		indexPath: filepath.Join(baseDir, IndexFile),
		log:       zap.NewNop(),
		subs:      make(map[int]func(Change)),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// BaseDir returns the directory the store lives in.
func (s *Store) BaseDir() string { return s.baseDir }

// Logger returns the store's logger.
func (s *Store) Logger() *zap.Logger { return s.log }

// Items returns the metadata of every item, newest first. Bodies are not read.
func (s *Store) Items(ctx context.Context) ([]item.Item, error) {
	if err := s.ensureFresh(ctx); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	return slices.Clone(s.entries), nil
}

// Count returns the number of indexed items.
func (s *Store) Count(ctx context.Context) (int, error) {
	if err := s.ensureFresh(ctx); err != nil {
		return 0, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.entries), nil
}

// Lookup returns the indexed metadata for id.
func (s *Store) Lookup(ctx context.Context, id string) (item.Item, bool, error) {
	if err := s.ensureFresh(ctx); err != nil {
		return item.Item{}, false, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	if i := indexOf(s.entries, id); i >= 0 {
		return s.entries[i], true, nil
	}
	return item.Item{}, false, nil
}

// Body reads the full text of id. A body that is missing while the index
// still lists it marks the store dirty so the next read rebuilds.
func (s *Store) Body(ctx context.Context, id string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", errors.NewCancelled(err)
	}
	if !item.ValidID(id) {
		return "", errors.NewInvalidRequest(fmt.Sprintf("invalid item id: %q", id))
	}

	f, err := openFileNoFollowRead(s.bodyPath(id))
	if err != nil {
		if stderrors.Is(err, fs.ErrNotExist) {
			if s.indexed(id) {
				s.dirty.Store(true)
				s.log.Warn("indexed item has no body, index marked for rebuild", zap.String("id", id))
			}
			return "", errors.NewNotFound(id)
		}
		var cErr *errors.ClipError
		if stderrors.As(err, &cErr) {
			return "", err
		}
		return "", errors.NewInternal(fmt.Errorf("failed to open body %s: %w", id, err))
	}
	defer f.Close()

	data, err := io.ReadAll(f)
	if err != nil {
		return "", errors.NewInternal(fmt.Errorf("failed to read body %s: %w", id, err))
	}
	return string(data), nil
}

// Insert writes the body for draft, assigns its ID from draft.Timestamp, and
// commits it to the index. If the index commit fails the body is removed, so
// a failed Insert leaves no trace.
func (s *Store) Insert(ctx context.Context, draft item.Item, text string) (item.Item, error) {
	if err := ctx.Err(); err != nil {
		return item.Item{}, errors.NewCancelled(err)
	}
	if err := s.ensureFresh(ctx); err != nil {
		return item.Item{}, err
	}

	it, err := s.insertLocked(draft, text)
	if err != nil {
		return item.Item{}, err
	}
	s.notify(Change{Kind: ChangeStored, IDs: []string{it.ID}})
	return it, nil
}

func (s *Store) insertLocked(draft item.Item, text string) (item.Item, error) {
	s.commitMu.Lock()
	defer s.commitMu.Unlock()

	it := draft
	var (
		file *os.File
		path string
		err  error
	)
	for attempt := 0; attempt < maxIDAttempts; attempt++ {
		if it.ID, err = item.NewID(it.Timestamp); err != nil {
			return item.Item{}, errors.NewInvalidRequest(err.Error())
		}
		path = s.bodyPath(it.ID)
		file, err = openFileNoFollow(path, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0600)
		if err == nil || !stderrors.Is(err, fs.ErrExist) {
			break
		}
	}
	if err != nil {
		return item.Item{}, errors.NewStorageWrite("body create", err)
	}

	if werr := writeBody(file, text); werr != nil {
		os.Remove(path)
		return item.Item{}, errors.NewStorageWrite("body write", werr)
	}

	s.mu.RLock()
	next := insertSorted(s.entries, it)
	s.mu.RUnlock()

	if err := s.commitIndex(next); err != nil {
		if rmErr := os.Remove(path); rmErr != nil {
			// The orphan will be adopted by the next rebuild instead.
			s.dirty.Store(true)
			s.log.Error("failed to remove orphaned body", zap.String("id", it.ID), zap.Error(rmErr))
		}
		return item.Item{}, errors.NewStorageWrite("index commit", err)
	}
	s.setEntries(next)
	return it, nil
}

// Remove deletes the body and then the index entry for id. Removing an id
// that does not exist is not an error; the bool reports whether anything
// was deleted.
func (s *Store) Remove(ctx context.Context, id string) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, errors.NewCancelled(err)
	}
	if !item.ValidID(id) {
		return false, errors.NewInvalidRequest(fmt.Sprintf("invalid item id: %q", id))
	}
	if err := s.ensureFresh(ctx); err != nil {
		return false, err
	}

	removed, err := s.removeLocked(id)
	if err != nil {
		return false, err
	}
	if removed {
		s.notify(Change{Kind: ChangeDeleted, IDs: []string{id}})
	}
	return removed, nil
}

func (s *Store) removeLocked(id string) (bool, error) {
	s.commitMu.Lock()
	defer s.commitMu.Unlock()

	bodyRemoved := true
	if err := os.Remove(s.bodyPath(id)); err != nil {
		if !stderrors.Is(err, fs.ErrNotExist) {
			return false, errors.NewStorageWrite("body remove", err)
		}
		bodyRemoved = false
	}

	s.mu.RLock()
	i := indexOf(s.entries, id)
	var next []item.Item
	if i >= 0 {
		next = slices.Delete(slices.Clone(s.entries), i, i+1)
	}
	s.mu.RUnlock()

	if i < 0 {
		return bodyRemoved, nil
	}
	if err := s.commitIndex(next); err != nil {
		// The body is gone; the stale entry is dropped by the next rebuild.
		s.dirty.Store(true)
		return false, errors.NewStorageWrite("index commit", err)
	}
	s.setEntries(next)
	return true, nil
}

// MarkDirty forces a rebuild before the next read.
func (s *Store) MarkDirty() {
	s.dirty.Store(true)
}

// Dirty reports whether a rebuild is pending.
func (s *Store) Dirty() bool {
	return s.dirty.Load()
}

// ensureFresh loads the index on first use and rebuilds it when dirty.
func (s *Store) ensureFresh(ctx context.Context) error {
	s.mu.RLock()
	loaded := s.loaded
	s.mu.RUnlock()
	if loaded && !s.dirty.Load() {
		return nil
	}

	s.commitMu.Lock()
	report, err := s.loadLocked(ctx)
	s.commitMu.Unlock()
	if err != nil {
		return err
	}
	if report != nil {
		s.notify(Change{Kind: ChangeRebuilt})
	}
	return nil
}

// loadLocked must be called with commitMu held. It returns a report when a
// rebuild was needed.
func (s *Store) loadLocked(ctx context.Context) (*RebuildReport, error) {
	s.mu.RLock()
	loaded, current := s.loaded, s.entries
	s.mu.RUnlock()

	if loaded {
		if !s.dirty.Load() {
			return nil, nil
		}
		return s.rebuildLocked(ctx, current)
	}

	entries, err := readIndex(s.indexPath)
	if err != nil && !stderrors.Is(err, fs.ErrNotExist) {
		s.log.Warn("index unreadable, rebuilding from item files",
			zap.Error(errors.NewIndexCorruption(s.indexPath, err)))
		return s.rebuildLocked(ctx, nil)
	}

	ids, err := s.bodyIDs()
	if err != nil {
		return nil, errors.NewInternal(fmt.Errorf("failed to list items: %w", err))
	}
	if !sameIDs(entries, ids) {
		s.log.Info("index disagrees with item files, rebuilding",
			zap.Int("indexed", len(entries)), zap.Int("bodies", len(ids)))
		return s.rebuildLocked(ctx, entries)
	}

	s.setEntries(entries)
	return nil, nil
}

func (s *Store) setEntries(entries []item.Item) {
	s.mu.Lock()
	s.entries = entries
	s.loaded = true
	s.mu.Unlock()
}

func (s *Store) indexed(id string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return indexOf(s.entries, id) >= 0
}

func (s *Store) bodyPath(id string) string {
	return filepath.Join(s.itemsDir, id+bodyExt)
}

// bodyIDs lists the ids that have a body file. Only names are read.
func (s *Store) bodyIDs() (map[string]bool, error) {
	dirEntries, err := os.ReadDir(s.itemsDir)
	if err != nil {
		return nil, err
	}
	ids := make(map[string]bool, len(dirEntries))
	for _, de := range dirEntries {
		if id, ok := bodyID(de); ok {
			ids[id] = true
		}
	}
	return ids, nil
}

func bodyID(de fs.DirEntry) (string, bool) {
	if !de.Type().IsRegular() {
		return "", false
	}
	id, ok := strings.CutSuffix(de.Name(), bodyExt)
	if !ok || !item.ValidID(id) {
		return "", false
	}
	return id, true
}

// commitIndex writes entries to index.json via temp file + rename.
func (s *Store) commitIndex(entries []item.Item) error {
	if entries == nil {
		entries = []item.Item{}
	}
	data, err := json.MarshalIndent(entries, "", "  ")
	if err != nil {
		return err
	}
	return WriteAtomic(s.indexPath, 0600, func(w io.Writer) error {
		_, err := w.Write(data)
		return err
	})
}

func readIndex(path string) ([]item.Item, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var entries []item.Item
	if err := json.Unmarshal(data, &entries); err != nil {
		return nil, err
	}
	for _, e := range entries {
		if !item.ValidID(e.ID) {
			return nil, fmt.Errorf("invalid id %q in index", e.ID)
		}
	}
	return entries, nil
}

func writeBody(f *os.File, text string) error {
	if _, err := io.WriteString(f, text); err != nil {
		f.Close()
		return err
	}
	if err := f.Sync(); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

// insertSorted returns a copy of entries with it placed in newest-first order.
func insertSorted(entries []item.Item, it item.Item) []item.Item {
	i := sort.Search(len(entries), func(i int) bool {
		return newerFirst(it, entries[i])
	})
	next := make([]item.Item, 0, len(entries)+1)
	next = append(next, entries[:i]...)
	next = append(next, it)
	next = append(next, entries[i:]...)
	return next
}

// newerFirst orders by timestamp descending, then id descending.
func newerFirst(a, b item.Item) bool {
	if !a.Timestamp.Equal(b.Timestamp) {
		return a.Timestamp.After(b.Timestamp)
	}
	return a.ID > b.ID
}

func indexOf(entries []item.Item, id string) int {
	for i := range entries {
		if entries[i].ID == id {
			return i
		}
	}
	return -1
}

func sameIDs(entries []item.Item, ids map[string]bool) bool {
	seen := make(map[string]bool, len(entries))
	for _, e := range entries {
		if !ids[e.ID] || seen[e.ID] {
			return false
		}
		seen[e.ID] = true
	}
	return len(seen) == len(ids)
}
