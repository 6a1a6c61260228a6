package capture

import (
	"sync"

	"github.com/hpungsan/clipstash/internal/item"
)

// Event is what a background producer hands to the loop.
type Event struct {
	Text   string
	Source item.Source

	// Err marks a failed provider request.
	Err error

	// Epoch is the buffer epoch the request was based on. Zero means the
	// event does not depend on the buffer and is never stale.
	Epoch uint64
}

// Mailbox is a single-slot hand-off: Put never blocks and a newer event
// replaces one that has not been taken yet.
type Mailbox struct {
	mu      sync.Mutex
	pending *Event
	ready   chan struct{}
}

// NewMailbox returns an empty mailbox.
func NewMailbox() *Mailbox {
	return &Mailbox{ready: make(chan struct{}, 1)}
}

// Put stores ev, discarding any event still pending.
func (m *Mailbox) Put(ev Event) {
	m.mu.Lock()
	m.pending = &ev
	m.mu.Unlock()

	select {
	case m.ready <- struct{}{}:
	default:
	}
}

// C is signalled whenever an event may be pending.
func (m *Mailbox) C() <-chan struct{} {
	return m.ready
}

// Take removes and returns the pending event.
func (m *Mailbox) Take() (Event, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.pending == nil {
		return Event{}, false
	}
	ev := *m.pending
	m.pending = nil
	return ev, true
}
