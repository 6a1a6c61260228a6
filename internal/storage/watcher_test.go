package storage

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestWatcher_RebuildsAfterExternalDelete(t *testing.T) {
	s := setupStore(t)
	ctx := context.Background()
	keep := insertText(t, s, "keep", time.Now())
	gone := insertText(t, s, "gone", time.Now())

	w, err := NewWatcher(s, 30*time.Millisecond)
	require.NoError(t, err)
	require.NoError(t, w.Start(ctx))
	defer w.Stop()

	rebuilt := make(chan struct{}, 1)
	defer s.Subscribe(func(c Change) {
		if c.Kind == ChangeRebuilt {
			select {
			case rebuilt <- struct{}{}:
			default:
			}
		}
	})()

	require.NoError(t, os.Remove(s.bodyPath(gone.ID)))

	select {
	case <-rebuilt:
	case <-time.After(5 * time.Second):
		t.Fatal("watcher did not rebuild after external delete")
	}

	items, err := s.Items(ctx)
	require.NoError(t, err)
	require.Equal(t, []string{keep.ID}, ids(items))
}

func TestWatcher_IgnoresOwnWrites(t *testing.T) {
	s := setupStore(t)
	ctx := context.Background()
	_, err := s.Items(ctx)
	require.NoError(t, err)

	w, err := NewWatcher(s, 20*time.Millisecond)
	require.NoError(t, err)
	require.NoError(t, w.Start(ctx))

	rebuilds := 0
	unsubscribe := s.Subscribe(func(c Change) {
		if c.Kind == ChangeRebuilt {
			rebuilds++
		}
	})

	insertText(t, s, "mine", time.Now())
	time.Sleep(200 * time.Millisecond)
	w.Stop()
	unsubscribe()

	require.Zero(t, rebuilds)
}

func TestWatcher_StopWithoutStart(t *testing.T) {
	s := setupStore(t)
	w, err := NewWatcher(s, 0)
	require.NoError(t, err)
	w.Stop()
}
