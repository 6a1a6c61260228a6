// Package clipboard reads and writes the system clipboard.
package clipboard

import (
	"context"
	"sync"
	"time"

	"github.com/atotto/clipboard"
	"go.uber.org/zap"
)

// Reader returns the current clipboard text.
type Reader interface {
	ReadAll() (string, error)
}

// Writer replaces the clipboard text.
type Writer interface {
	WriteAll(text string) error
}

// System is the OS clipboard.
type System struct{}

func (System) ReadAll() (string, error) { return clipboard.ReadAll() }

func (System) WriteAll(text string) error { return clipboard.WriteAll(text) }

// Available reports whether a clipboard utility was found on this system.
func Available() bool { return !clipboard.Unsupported }

// Sink receives clipboard changes. It must not block.
type Sink func(text string)

// Monitor polls a Reader and reports changes to a Sink.
type Monitor struct {
	r        Reader
	sink     Sink
	interval time.Duration
	log      *zap.Logger

	mu      sync.Mutex
	running bool
	cancel  context.CancelFunc
	done    chan struct{}
}

// NewMonitor returns a monitor polling r every interval.
func NewMonitor(r Reader, interval time.Duration, sink Sink, log *zap.Logger) *Monitor {
	if log == nil {
		log = zap.NewNop()
	}
	if interval <= 0 {
		interval = 250 * time.Millisecond
	}
	return &Monitor{r: r, sink: sink, interval: interval, log: log}
}

// Start begins polling. Whatever is on the clipboard at start is treated as
// already seen and is not reported.
func (m *Monitor) Start(ctx context.Context) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.running {
		return
	}

	last, err := m.r.ReadAll()
	if err != nil {
		m.log.Debug("initial clipboard read failed", zap.Error(err))
	}

	ctx, m.cancel = context.WithCancel(ctx)
	m.done = make(chan struct{})
	m.running = true
	go m.run(ctx, last)
}

// Stop halts polling and waits for the goroutine to exit.
func (m *Monitor) Stop() {
	m.mu.Lock()
	if !m.running {
		m.mu.Unlock()
		return
	}
	m.running = false
	cancel, done := m.cancel, m.done
	m.mu.Unlock()

	cancel()
	<-done
}

// Run polls until ctx is done. It is Start and Stop in one blocking call,
// for use under an errgroup.
func (m *Monitor) Run(ctx context.Context) error {
	m.Start(ctx)
	<-ctx.Done()
	m.Stop()
	return nil
}

func (m *Monitor) run(ctx context.Context, last string) {
	defer close(m.done)

	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()

	failing := false
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			text, err := m.r.ReadAll()
			if err != nil {
				if !failing {
					m.log.Warn("clipboard read failed", zap.Error(err))
					failing = true
				}
				continue
			}
			failing = false
			if text == last {
				continue
			}
			last = text
			m.sink(text)
		}
	}
}
