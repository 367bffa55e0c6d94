// Package history keeps a bounded, debounced undo/redo log of text snapshots.
package history

import (
	"sync"
	"time"
)

const (
	// DefaultCapacity is the number of snapshots retained.
	DefaultCapacity = 100
	// DefaultDelay coalesces rapid pushes into one snapshot.
	DefaultDelay = 400 * time.Millisecond
)

// Option configures a History.
type Option func(*History)

// WithCapacity overrides the number of retained snapshots (minimum 1).
func WithCapacity(n int) Option {
	return func(h *History) {
		if n > 0 {
			h.capacity = n
		}
	}
}

// WithDelay overrides the debounce delay for non-immediate pushes.
func WithDelay(d time.Duration) Option {
	return func(h *History) {
		if d >= 0 {
			h.delay = d
		}
	}
}

// WithOnCommit registers fn to be called, outside the lock, after a snapshot
// is committed.
func WithOnCommit(fn func()) Option {
	return func(h *History) {
		h.onCommit = fn
	}
}

// History is a linear undo log. The zero value is not usable; call New.
type History struct {
	mu        sync.Mutex
	snapshots []string
	cursor    int
	capacity  int
	delay     time.Duration
	onCommit  func()

	timer   *time.Timer
	pending string
	// gen invalidates timers that fire after being superseded.
	gen        uint64
	hasPending bool
}

// New returns a history seeded with a single snapshot.
func New(seed string, opts ...Option) *History {
	h := &History{
		snapshots: []string{seed},
		capacity:  DefaultCapacity,
		delay:     DefaultDelay,
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Push records value. With immediate set the snapshot is committed now;
// otherwise it is committed after the debounce delay unless a later Push
// supersedes it. Every Push drops any value still pending.
func (h *History) Push(value string, immediate bool) {
	h.mu.Lock()
	h.cancelLocked()

	if immediate {
		committed := h.commitLocked(value)
		h.mu.Unlock()
		h.notify(committed)
		return
	}

	h.pending = value
	h.hasPending = true
	gen := h.gen
	h.timer = time.AfterFunc(h.delay, func() { h.fire(gen) })
	h.mu.Unlock()
}

// Flush commits a pending value immediately. It reports whether a snapshot
// was added.
func (h *History) Flush() bool {
	h.mu.Lock()
	committed := h.flushLocked()
	h.mu.Unlock()
	h.notify(committed)
	return committed
}

// Undo steps back one snapshot. ok is false at the oldest snapshot, in which
// case nothing changes. A pending value is committed first.
func (h *History) Undo() (value string, ok bool) {
	h.mu.Lock()
	committed := h.flushLocked()
	if h.cursor > 0 {
		h.cursor--
		value, ok = h.snapshots[h.cursor], true
	}
	h.mu.Unlock()
	h.notify(committed)
	return value, ok
}

// Redo steps forward one snapshot. ok is false at the newest snapshot.
func (h *History) Redo() (value string, ok bool) {
	h.mu.Lock()
	committed := h.flushLocked()
	if h.cursor < len(h.snapshots)-1 {
		h.cursor++
		value, ok = h.snapshots[h.cursor], true
	}
	h.mu.Unlock()
	h.notify(committed)
	return value, ok
}

// Reset discards all snapshots and any pending value, leaving seed as the
// only entry.
func (h *History) Reset(seed string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.cancelLocked()
	h.snapshots = []string{seed}
	h.cursor = 0
}

// Stop cancels a pending commit without applying it.
func (h *History) Stop() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.cancelLocked()
}

// CanUndo reports whether Undo would move the cursor.
func (h *History) CanUndo() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.cursor > 0 || (h.hasPending && h.pending != h.snapshots[h.cursor])
}

// CanRedo reports whether Redo would move the cursor.
func (h *History) CanRedo() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.cursor < len(h.snapshots)-1 && !h.hasPending
}

// Len returns the number of committed snapshots.
func (h *History) Len() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.snapshots)
}

// Cursor returns the index of the current snapshot.
func (h *History) Cursor() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.cursor
}

// Current returns the snapshot at the cursor.
func (h *History) Current() string {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.snapshots[h.cursor]
}

// Pending reports whether a debounced value is waiting to be committed.
func (h *History) Pending() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.hasPending
}

func (h *History) fire(gen uint64) {
	h.mu.Lock()
	if gen != h.gen || !h.hasPending {
		h.mu.Unlock()
		return
	}
	committed := h.flushLocked()
	h.mu.Unlock()
	h.notify(committed)
}

func (h *History) flushLocked() bool {
	if !h.hasPending {
		return false
	}
	value := h.pending
	h.cancelLocked()
	return h.commitLocked(value)
}

func (h *History) cancelLocked() {
	if h.timer != nil {
		h.timer.Stop()
		h.timer = nil
	}
	h.gen++
	h.pending = ""
	h.hasPending = false
}

func (h *History) commitLocked(value string) bool {
	if h.snapshots[h.cursor] == value {
		return false
	}
	next := append(h.snapshots[:h.cursor+1:h.cursor+1], value)
	if over := len(next) - h.capacity; over > 0 {
		next = next[over:]
	}
	h.snapshots = next
	h.cursor = len(next) - 1
	return true
}

func (h *History) notify(committed bool) {
	if committed && h.onCommit != nil {
		h.onCommit()
	}
}
