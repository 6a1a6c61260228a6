package capture

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/hpungsan/clipstash/internal/item"
)

// Notifier is told about every change to the buffer. It must not block.
type Notifier func(Snapshot)

// Router accepts raw captures, filters them, and writes the survivors to the buffer.
type Router struct {
	buf    *Buffer
	window time.Duration
	notify Notifier
	log    *zap.Logger
	now    func() time.Time

	mu         sync.Mutex
	lastClip   string
	lastClipAt time.Time
}

// RouterOption configures a Router.
type RouterOption func(*Router)

// WithNotifier sets the display callback.
func WithNotifier(fn Notifier) RouterOption {
	return func(r *Router) { r.notify = fn }
}

// WithLogger sets the router's logger.
func WithLogger(log *zap.Logger) RouterOption {
	return func(r *Router) {
		if log != nil {
			r.log = log
		}
	}
}

// WithClock replaces time.Now, for tests.
func WithClock(now func() time.Time) RouterOption {
	return func(r *Router) { r.now = now }
}

// NewRouter returns a Router feeding buf. Identical clipboard captures
// arriving within dedupeWindow of each other are dropped.
func NewRouter(buf *Buffer, dedupeWindow time.Duration, opts ...RouterOption) *Router {
	r := &Router{
		buf:    buf,
		window: dedupeWindow,
		log:    zap.NewNop(),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Buffer returns the buffer the router writes to.
func (r *Router) Buffer() *Buffer { return r.buf }

// Receive handles a capture from a producer. It reports whether the buffer changed.
func (r *Router) Receive(text string, source item.Source) bool {
	if item.IsBlank(text) {
		return false
	}
	if source == item.SourceClipboard && r.duplicate(text) {
		r.log.Debug("dropped duplicate clipboard capture")
		return false
	}
	r.buf.Receive(text, source)
	r.emit()
	return true
}

func (r *Router) duplicate(text string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	now := r.now()
	if text == r.lastClip && now.Sub(r.lastClipAt) < r.window {
		return true
	}
	r.lastClip = text
	r.lastClipAt = now
	return false
}

// Deliver applies an event from a background producer. Events tagged with an
// epoch the buffer has moved past are stale and dropped.
func (r *Router) Deliver(ev Event) bool {
	if ev.Err != nil {
		if ev.Epoch != 0 && ev.Epoch != r.buf.Epoch() {
			r.log.Debug("dropped stale provider error", zap.Error(ev.Err))
			return false
		}
		r.log.Warn("provider request failed", zap.String("source", string(ev.Source)), zap.Error(ev.Err))
		r.buf.Fail(ev.Err)
		r.emit()
		return true
	}
	if ev.Epoch == 0 {
		return r.Receive(ev.Text, ev.Source)
	}
	if item.IsBlank(ev.Text) {
		return false
	}
	if !r.buf.ReceiveIf(ev.Epoch, ev.Text, ev.Source) {
		r.log.Debug("dropped stale provider result", zap.Uint64("epoch", ev.Epoch))
		return false
	}
	r.emit()
	return true
}

// Run delivers mailbox events until ctx is done.
func (r *Router) Run(ctx context.Context, mb *Mailbox) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-mb.C():
			if ev, ok := mb.Take(); ok {
				r.Deliver(ev)
			}
		}
	}
}

func (r *Router) emit() {
	if r.notify == nil {
		return
	}
	snap, _ := r.buf.Current()
	r.notify(snap)
}
