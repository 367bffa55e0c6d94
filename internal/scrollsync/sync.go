// Package scrollsync keeps the raw editor, its line-number gutter and the
// rendered preview at matching scroll positions. A scroll applied on behalf
// of one view makes the other view report a scroll of its own; the
// synchronizer locks onto the originating view until the next frame so that
// echo never flows back.
package scrollsync

import (
	"sync"
)

// Source identifies the view that started the current sync cascade.
type Source int

const (
	// SourceNone is the idle state.
	SourceNone Source = iota
	// SourceEditor means the raw-text editor holds the lock.
	SourceEditor
	// SourcePreview means the rendered preview holds the lock.
	SourcePreview
)

func (s Source) String() string {
	switch s {
	case SourceEditor:
		return "editor"
	case SourcePreview:
		return "preview"
	default:
		return "none"
	}
}

// ParseSource maps "editor" and "preview" to their Source.
func ParseSource(s string) (Source, bool) {
	switch s {
	case "editor":
		return SourceEditor, true
	case "preview":
		return SourcePreview, true
	}
	return SourceNone, false
}

// View is a scrollable pane.
type View interface {
	// ScrollTop is the current offset from the top.
	ScrollTop() float64
	// ScrollHeight is the total content height.
	ScrollHeight() float64
	// ClientHeight is the visible viewport height.
	ClientHeight() float64
	// SetScrollTop moves the pane. Implementations may report a scroll event
	// synchronously from inside this call.
	SetScrollTop(top float64)
}

// Ratio returns v's offset as a fraction of its scrollable range. A view
// that cannot scroll has ratio 0.
func Ratio(v View) float64 {
	span := v.ScrollHeight() - v.ClientHeight()
	if span <= 0 {
		return 0
	}
	r := v.ScrollTop() / span
	switch {
	case r < 0:
		return 0
	case r > 1:
		return 1
	}
	return r
}

// ApplyRatio scrolls v to ratio of its own scrollable range.
func ApplyRatio(v View, ratio float64) {
	span := v.ScrollHeight() - v.ClientHeight()
	if span < 0 {
		span = 0
	}
	v.SetScrollTop(ratio * span)
}

// Option configures a Synchronizer.
type Option func(*Synchronizer)

// WithGutter attaches a line-number gutter that mirrors the editor offset.
func WithGutter(g View) Option {
	return func(s *Synchronizer) { s.gutter = g }
}

// WithFrames sets the scheduler used to release the lock.
func WithFrames(f FrameScheduler) Option {
	return func(s *Synchronizer) { s.frames = f }
}

// Synchronizer coordinates the views. It is safe for concurrent use; views
// are never called while the internal lock is held.
type Synchronizer struct {
	editor  View
	preview View
	gutter  View
	frames  FrameScheduler

	mu     sync.Mutex
	active Source
}

// New returns an idle synchronizer over editor and preview.
func New(editor, preview View, opts ...Option) *Synchronizer {
	s := &Synchronizer{editor: editor, preview: preview}
	for _, opt := range opts {
		opt(s)
	}
	if s.frames == nil {
		s.frames = NewTimerFrames(DefaultFrameInterval)
	}
	return s
}

// State returns the view currently holding the lock.
func (s *Synchronizer) State() Source {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.active
}

// OnScroll dispatches a scroll event from src. It reports whether the event
// was propagated.
func (s *Synchronizer) OnScroll(src Source) bool {
	switch src {
	case SourceEditor:
		return s.OnEditorScroll()
	case SourcePreview:
		return s.OnPreviewScroll()
	}
	return false
}

// OnEditorScroll handles a scroll of the raw editor: the gutter takes the
// editor's absolute offset and the preview its proportional position.
func (s *Synchronizer) OnEditorScroll() bool {
	if !s.acquire(SourceEditor) {
		return false
	}
	defer s.scheduleRelease()

	if s.gutter != nil {
		s.gutter.SetScrollTop(s.editor.ScrollTop())
	}
	if s.preview != nil {
		ApplyRatio(s.preview, Ratio(s.editor))
	}
	return true
}

// OnPreviewScroll handles a scroll of the rendered preview: the editor takes
// the proportional position and the gutter follows the editor.
func (s *Synchronizer) OnPreviewScroll() bool {
	if !s.acquire(SourcePreview) {
		return false
	}
	defer s.scheduleRelease()

	if s.editor == nil {
		return true
	}
	ApplyRatio(s.editor, Ratio(s.preview))
	if s.gutter != nil {
		s.gutter.SetScrollTop(s.editor.ScrollTop())
	}
	return true
}

func (s *Synchronizer) acquire(src Source) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.active != SourceNone && s.active != src {
		return false
	}
	s.active = src
	return true
}

func (s *Synchronizer) scheduleRelease() {
	s.frames.RequestFrame(s.release)
}

func (s *Synchronizer) release() {
	s.mu.Lock()
	s.active = SourceNone
	s.mu.Unlock()
}
