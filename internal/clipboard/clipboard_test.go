package clipboard

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

type fakeBoard struct {
	mu   sync.Mutex
	text string
	err  error
}

func (f *fakeBoard) ReadAll() (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.text, f.err
}

func (f *fakeBoard) WriteAll(text string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.text = text
	return nil
}

func (f *fakeBoard) setErr(err error) {
	f.mu.Lock()
	f.err = err
	f.mu.Unlock()
}

type recorder struct {
	mu  sync.Mutex
	got []string
	ch  chan struct{}
}

func newRecorder() *recorder {
	return &recorder{ch: make(chan struct{}, 16)}
}

func (r *recorder) sink(text string) {
	r.mu.Lock()
	r.got = append(r.got, text)
	r.mu.Unlock()
	r.ch <- struct{}{}
}

func (r *recorder) wait(t *testing.T) {
	t.Helper()
	select {
	case <-r.ch:
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for clipboard change")
	}
}

func (r *recorder) values() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.got...)
}

func TestMonitor_SeedsInitialValue(t *testing.T) {
	board := &fakeBoard{text: "already there"}
	rec := newRecorder()
	m := NewMonitor(board, 5*time.Millisecond, rec.sink, nil)

	m.Start(context.Background())
	time.Sleep(30 * time.Millisecond)
	_ = board.WriteAll("new copy")
	rec.wait(t)
	m.Stop()

	got := rec.values()
	if len(got) != 1 || got[0] != "new copy" {
		t.Errorf("got %q, want only [new copy]", got)
	}
}

func TestMonitor_ReportsEachChange(t *testing.T) {
	board := &fakeBoard{}
	rec := newRecorder()
	m := NewMonitor(board, 5*time.Millisecond, rec.sink, nil)
	m.Start(context.Background())
	defer m.Stop()

	_ = board.WriteAll("one")
	rec.wait(t)
	_ = board.WriteAll("two")
	rec.wait(t)

	got := rec.values()
	if len(got) != 2 || got[0] != "one" || got[1] != "two" {
		t.Errorf("got %q, want [one two]", got)
	}
}

func TestMonitor_SurvivesReadErrors(t *testing.T) {
	board := &fakeBoard{}
	rec := newRecorder()
	m := NewMonitor(board, 5*time.Millisecond, rec.sink, nil)
	m.Start(context.Background())
	defer m.Stop()

	board.setErr(errors.New("xclip missing"))
	time.Sleep(20 * time.Millisecond)
	board.setErr(nil)
	_ = board.WriteAll("back")
	rec.wait(t)

	if got := rec.values(); len(got) != 1 || got[0] != "back" {
		t.Errorf("got %q, want [back]", got)
	}
}

func TestMonitor_StopIsIdempotent(t *testing.T) {
	m := NewMonitor(&fakeBoard{}, time.Millisecond, func(string) {}, nil)
	m.Start(context.Background())
	m.Stop()
	m.Stop()
}

func TestMonitor_RunReturnsOnCancel(t *testing.T) {
	m := NewMonitor(&fakeBoard{}, time.Millisecond, func(string) {}, nil)
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan error, 1)
	go func() { done <- m.Run(ctx) }()
	cancel()

	select {
	case err := <-done:
		if err != nil {
			t.Errorf("Run() = %v, want nil", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not return after cancel")
	}
}
