package scrollsync

import (
	"sync"
	"time"
)

// DefaultFrameInterval approximates one display frame at 60Hz.
const DefaultFrameInterval = 16 * time.Millisecond

// FrameScheduler runs callbacks at the start of the next frame.
type FrameScheduler interface {
	RequestFrame(fn func())
}

// TimerFrames emulates animation frames with a timer.
type TimerFrames struct {
	interval time.Duration
}

// NewTimerFrames returns a scheduler firing after interval.
func NewTimerFrames(interval time.Duration) *TimerFrames {
	if interval <= 0 {
		interval = DefaultFrameInterval
	}
	return &TimerFrames{interval: interval}
}

// RequestFrame runs fn on its own goroutine after the frame interval.
func (t *TimerFrames) RequestFrame(fn func()) {
	time.AfterFunc(t.interval, fn)
}

// ManualFrames queues callbacks until Tick is called. It suits tests and
// hosts that drive their own render loop.
type ManualFrames struct {
	mu    sync.Mutex
	queue []func()
}

// RequestFrame queues fn.
func (m *ManualFrames) RequestFrame(fn func()) {
	m.mu.Lock()
	m.queue = append(m.queue, fn)
	m.mu.Unlock()
}

// Tick runs every callback queued before the call and returns how many ran.
func (m *ManualFrames) Tick() int {
	m.mu.Lock()
	q := m.queue
	m.queue = nil
	m.mu.Unlock()
	for _, fn := range q {
		fn()
	}
	return len(q)
}

// Pending returns the number of queued callbacks.
func (m *ManualFrames) Pending() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.queue)
}
