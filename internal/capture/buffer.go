// Package capture holds the single-slot staging buffer that every producer
// (clipboard, OCR, LLM) writes into, and the router that decides what reaches it.
package capture

import (
	"sync"
	"time"

	"github.com/hpungsan/clipstash/internal/item"
)

// Snapshot is a copy of the buffer at one point in time.
type Snapshot struct {
	Text   string      `json:"text"`
	Source item.Source `json:"source"`

	// Err is set when the last provider request failed. Text still holds the
	// previous content.
	Err string `json:"error,omitempty"`

	// Epoch increases on every accepted write.
	Epoch uint64    `json:"epoch"`
	At    time.Time `json:"at"`
}

// Buffer is a mutex-guarded cell. The last write wins unconditionally.
type Buffer struct {
	mu   sync.Mutex
	snap Snapshot
	has  bool
	now  func() time.Time
}

// NewBuffer returns an empty buffer.
func NewBuffer() *Buffer {
	return &Buffer{now: time.Now}
}

// Receive replaces the buffer content and returns the new epoch.
func (b *Buffer) Receive(text string, source item.Source) uint64 {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.setLocked(text, source)
}

// ReceiveIf replaces the content only if the epoch is still epoch. It reports
// whether the write happened.
func (b *Buffer) ReceiveIf(epoch uint64, text string, source item.Source) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.snap.Epoch != epoch {
		return false
	}
	b.setLocked(text, source)
	return true
}

func (b *Buffer) setLocked(text string, source item.Source) uint64 {
	b.snap = Snapshot{
		Text:   text,
		Source: source,
		Epoch:  b.snap.Epoch + 1,
		At:     b.now(),
	}
	b.has = true
	return b.snap.Epoch
}

// Fail records an error marker. Text, source and epoch are left alone so the
// buffer still offers the last good content.
func (b *Buffer) Fail(err error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if err == nil {
		b.snap.Err = ""
		return
	}
	b.snap.Err = err.Error()
	b.snap.At = b.now()
}

// Current returns the buffer content; ok is false when nothing has been received.
func (b *Buffer) Current() (Snapshot, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.snap, b.has
}

// Epoch returns the current epoch.
func (b *Buffer) Epoch() uint64 {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.snap.Epoch
}

// Clear empties the buffer and bumps the epoch so in-flight results are dropped.
func (b *Buffer) Clear() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.snap = Snapshot{Epoch: b.snap.Epoch + 1, At: b.now()}
	b.has = false
}
