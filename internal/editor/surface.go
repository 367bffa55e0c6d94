// Package editor implements the editing surface of a single skill document:
// body and metadata edits, toolbar insertions, undo/redo, keyboard shortcuts
// and guarded saves against an external persistence collaborator.
package editor

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/aymanbagabas/go-udiff"
	"github.com/starford/skilldesk/internal/apperr"
	"github.com/starford/skilldesk/internal/frontmatter"
	"github.com/starford/skilldesk/internal/history"
	"github.com/starford/skilldesk/internal/scrollsync"
)

// DefaultIndent is inserted by InsertTab.
const DefaultIndent = "  "

// ErrClosed is returned by operations on a closed surface.
var ErrClosed = errors.New("editor: surface closed")

// Persistence loads and stores raw documents by identifier.
type Persistence interface {
	LoadDocument(ctx context.Context, id string) (string, error)
	SaveDocument(ctx context.Context, id, raw string) error
}

// Level classifies a Notification.
type Level string

const (
	LevelInfo  Level = "info"
	LevelError Level = "error"
)

// Notification is a user-visible message emitted by the surface.
type Notification struct {
	Level   Level  `json:"level"`
	Message string `json:"message"`
	Err     error  `json:"-"`
}

// Notifier receives notifications. It is never called with the surface lock held.
type Notifier interface {
	Notify(n Notification)
}

// NotifierFunc adapts a function to Notifier.
type NotifierFunc func(Notification)

// Notify calls f(n).
func (f NotifierFunc) Notify(n Notification) { f(n) }

// Confirmer decides whether unsaved changes may be discarded. diff is a
// unified diff from the persisted text to the current text.
type Confirmer interface {
	ConfirmDiscard(diff string) bool
}

// ConfirmFunc adapts a function to Confirmer.
type ConfirmFunc func(diff string) bool

// ConfirmDiscard calls f(diff).
func (f ConfirmFunc) ConfirmDiscard(diff string) bool { return f(diff) }

// State is a snapshot of the surface.
type State struct {
	ID        string                `json:"id"`
	Metadata  *frontmatter.Metadata `json:"metadata"`
	Body      string                `json:"body"`
	Dirty     bool                  `json:"dirty"`
	Saving    bool                  `json:"saving"`
	Editable  bool                  `json:"editable"`
	CanUndo   bool                  `json:"canUndo"`
	CanRedo   bool                  `json:"canRedo"`
	LineCount int                   `json:"lineCount"`
	Revision  uint64                `json:"revision"`
}

// Option configures a Surface.
type Option func(*Surface)

// WithNotifier sets the notification sink.
func WithNotifier(n Notifier) Option {
	return func(s *Surface) { s.notifier = n }
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(s *Surface) { s.logger = l }
}

// WithHistoryOptions forwards options to the edit history. A
// history.WithOnCommit given here is replaced; use WithOnHistoryCommit.
func WithHistoryOptions(opts ...history.Option) Option {
	return func(s *Surface) { s.histOpts = append(s.histOpts, opts...) }
}

// WithOnHistoryCommit sets fn to run after each committed history snapshot.
// fn is never called with the surface lock held, so it may call back into
// the surface.
func WithOnHistoryCommit(fn func()) Option {
	return func(s *Surface) { s.onCommit = fn }
}

// WithIndent overrides the unit inserted by InsertTab.
func WithIndent(indent string) Option {
	return func(s *Surface) {
		if indent != "" {
			s.indent = indent
		}
	}
}

// Surface is the editing controller for one document at a time.
type Surface struct {
	store    Persistence
	notifier Notifier
	logger   *slog.Logger
	indent   string
	histOpts []history.Option
	hist     *history.History
	onCommit func()

	// holdCommits is set while a locked section calls into the history;
	// commits seen then are reported by reportCommits after unlock.
	holdCommits   atomic.Bool
	commitsQueued atomic.Bool

	mu        sync.Mutex
	id        string
	doc       frontmatter.Document
	persisted string
	dirty     bool
	saving    bool
	editable  bool
	closed    bool
	// revision counts edits; a save only clears dirty if it is unchanged.
	revision uint64
	// loadGen drops results of loads and saves that were superseded.
	loadGen uint64
	scroll  *scrollsync.Synchronizer
}

// New creates an empty, non-editable surface backed by store.
func New(store Persistence, opts ...Option) *Surface {
	s := &Surface{
		store:  store,
		indent: DefaultIndent,
		logger: slog.Default(),
		doc:    frontmatter.Document{Metadata: frontmatter.NewMetadata()},
	}
	for _, o := range opts {
		o(s)
	}
	s.hist = history.New("", append(s.histOpts, history.WithOnCommit(s.historyCommitted))...)
	return s
}

// Load replaces the surface content with the document id. History is reset
// before the load so nothing from the previous document survives. On failure
// the surface stays empty and non-editable.
func (s *Surface) Load(ctx context.Context, id string) error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return ErrClosed
	}
	s.loadGen++
	gen := s.loadGen
	s.id = id
	s.doc = frontmatter.Document{Metadata: frontmatter.NewMetadata()}
	s.persisted = ""
	s.dirty = false
	s.editable = false
	s.revision++
	s.hist.Reset("")
	s.mu.Unlock()

	raw, err := s.store.LoadDocument(ctx, id)

	s.mu.Lock()
	if s.closed || gen != s.loadGen {
		s.mu.Unlock()
		return ErrClosed
	}
	if err != nil {
		s.mu.Unlock()
		s.logger.Warn("editor: load failed", slog.String("id", id), slog.String("error", err.Error()))
		s.notify(Notification{Level: LevelError, Message: fmt.Sprintf("Failed to load %s", id), Err: err})
		return fmt.Errorf("editor: load %s: %w", id, err)
	}
	s.doc = frontmatter.Parse(raw)
	s.persisted = raw
	s.editable = true
	s.revision++
	s.hist.Reset(s.doc.Body)
	s.mu.Unlock()

	s.logger.Debug("editor: loaded", slog.String("id", id))
	return nil
}

// SetBody replaces the body as typed input; history coalesces rapid calls.
func (s *Surface) SetBody(body string) error {
	defer s.reportCommits()
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.checkEditableLocked(); err != nil {
		return err
	}
	s.setBodyLocked(body, false)
	return nil
}

// SetMetadata updates one header field. Keys and values that would not
// survive a save and reload as the same field are rejected with
// apperr.ErrInvalidInput. Metadata is not part of history.
func (s *Surface) SetMetadata(key, value string) error {
	if err := frontmatter.ValidateField(key, value); err != nil {
		return err
	}
	key = strings.TrimSpace(key)
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.checkEditableLocked(); err != nil {
		return err
	}
	s.doc.Metadata.Set(key, value)
	s.dirty = true
	s.revision++
	return nil
}

// FormatInsert applies a toolbar insertion at sel and records it as its own
// history step. The returned selection is the cursor after the insertion.
func (s *Surface) FormatInsert(kind FormatKind, sel Selection) (Selection, error) {
	defer s.reportCommits()
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.checkEditableLocked(); err != nil {
		return sel, err
	}
	out, cur, err := Apply(kind, s.doc.Body, sel)
	if err != nil {
		return sel, err
	}
	s.setBodyLocked(out, true)
	return cur, nil
}

// InsertTab replaces sel with the indent unit as ordinary typed input.
func (s *Surface) InsertTab(sel Selection) (Selection, error) {
	defer s.reportCommits()
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.checkEditableLocked(); err != nil {
		return sel, err
	}
	out, cur := Replace(s.doc.Body, sel, s.indent)
	s.setBodyLocked(out, false)
	return cur, nil
}

// Undo steps back in history. It reports false at the oldest snapshot.
func (s *Surface) Undo() (bool, error) {
	return s.step(s.hist.Undo)
}

// Redo steps forward in history. It reports false at the newest snapshot.
func (s *Surface) Redo() (bool, error) {
	return s.step(s.hist.Redo)
}

func (s *Surface) step(move func() (string, bool)) (bool, error) {
	defer s.reportCommits()
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.checkEditableLocked(); err != nil {
		return false, err
	}
	var (
		v  string
		ok bool
	)
	s.withHistoryLocked(func() { v, ok = move() })
	if !ok {
		return false, nil
	}
	s.doc.Body = v
	s.dirty = true
	s.revision++
	return true, nil
}

// Save serializes the document and hands it to the persistence collaborator.
// A save already in flight makes this call a no-op returning
// apperr.ErrSaveInProgress. Edits remain possible while saving; dirty is
// only cleared if no edit happened since serialization.
func (s *Surface) Save(ctx context.Context) error {
	s.mu.Lock()
	if err := s.checkEditableLocked(); err != nil {
		s.mu.Unlock()
		return err
	}
	if s.saving {
		s.mu.Unlock()
		return apperr.ErrSaveInProgress
	}
	s.saving = true
	id, gen, rev := s.id, s.loadGen, s.revision
	raw := frontmatter.SerializeDocument(s.doc)
	s.mu.Unlock()

	err := s.store.SaveDocument(ctx, id, raw)

	s.mu.Lock()
	if s.closed || gen != s.loadGen {
		// The document was torn down; nobody is left to update.
		s.saving = false
		s.mu.Unlock()
		return err
	}
	s.saving = false
	if err != nil {
		s.mu.Unlock()
		s.logger.Error("editor: save failed", slog.String("id", id), slog.String("error", err.Error()))
		s.notify(Notification{Level: LevelError, Message: fmt.Sprintf("Failed to save %s", id), Err: err})
		return fmt.Errorf("editor: save %s: %w", id, err)
	}
	s.persisted = raw
	if s.revision == rev {
		s.dirty = false
	}
	s.mu.Unlock()

	s.logger.Info("editor: saved", slog.String("id", id))
	s.notify(Notification{Level: LevelInfo, Message: fmt.Sprintf("Saved %s", id)})
	return nil
}

// HandleKey runs the shortcut bound to k. It reports whether the key was
// consumed. A save shortcut pressed while saving is consumed silently.
func (s *Surface) HandleKey(ctx context.Context, k Key) (bool, error) {
	switch k.Resolve() {
	case ActionSave:
		err := s.Save(ctx)
		if errors.Is(err, apperr.ErrSaveInProgress) {
			return true, nil
		}
		return true, err
	case ActionUndo:
		_, err := s.Undo()
		return true, err
	case ActionRedo:
		_, err := s.Redo()
		return true, err
	}
	return false, nil
}

// RequestLeave reports whether the user may navigate away. With unsaved
// changes c is asked to confirm; declining cancels the navigation.
func (s *Surface) RequestLeave(c Confirmer) bool {
	s.mu.Lock()
	dirty := s.dirty
	s.mu.Unlock()
	if !dirty {
		return true
	}
	if c == nil {
		return false
	}
	return c.ConfirmDiscard(s.Diff())
}

// Diff returns a unified diff from the persisted text to the current
// serialization, or "" when they are equal.
func (s *Surface) Diff() string {
	s.mu.Lock()
	id, persisted := s.id, s.persisted
	current := frontmatter.SerializeDocument(s.doc)
	s.mu.Unlock()
	if persisted == current {
		return ""
	}
	return udiff.Unified("a/"+id, "b/"+id, persisted, current)
}

// Close stops the history timer and drops any in-flight results.
func (s *Surface) Close() {
	s.mu.Lock()
	s.closed = true
	s.editable = false
	s.mu.Unlock()
	s.hist.Stop()
}

// State returns a snapshot of the surface.
func (s *Surface) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return State{
		ID:        s.id,
		Metadata:  s.doc.Metadata.Clone(),
		Body:      s.doc.Body,
		Dirty:     s.dirty,
		Saving:    s.saving,
		Editable:  s.editable,
		CanUndo:   s.hist.CanUndo(),
		CanRedo:   s.hist.CanRedo(),
		LineCount: LineCount(s.doc.Body),
		Revision:  s.revision,
	}
}

// Dirty reports whether there are unsaved changes.
func (s *Surface) Dirty() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.dirty
}

// Position returns the 1-based line and column of a rune offset in the body.
func (s *Surface) Position(offset int) (line, col int) {
	s.mu.Lock()
	body := s.doc.Body
	s.mu.Unlock()
	return Position(body, offset)
}

// AttachScroll links the editor and preview panes (plus options such as a
// gutter) and returns the synchronizer driving them.
func (s *Surface) AttachScroll(editorView, previewView scrollsync.View, opts ...scrollsync.Option) *scrollsync.Synchronizer {
	link := scrollsync.New(editorView, previewView, opts...)
	s.mu.Lock()
	s.scroll = link
	s.mu.Unlock()
	return link
}

// OnScroll forwards a scroll event from src to the attached synchronizer.
// It reports whether the event was propagated.
func (s *Surface) OnScroll(src scrollsync.Source) bool {
	s.mu.Lock()
	link := s.scroll
	s.mu.Unlock()
	if link == nil {
		return false
	}
	return link.OnScroll(src)
}

func (s *Surface) setBodyLocked(body string, immediate bool) {
	s.doc.Body = body
	s.dirty = true
	s.revision++
	s.withHistoryLocked(func() { s.hist.Push(body, immediate) })
}

// withHistoryLocked runs fn, which calls into the history, holding back
// commit reports. The caller holds s.mu and defers reportCommits.
func (s *Surface) withHistoryLocked(fn func()) {
	s.holdCommits.Store(true)
	defer s.holdCommits.Store(false)
	fn()
}

func (s *Surface) historyCommitted() {
	if s.onCommit == nil {
		return
	}
	if s.holdCommits.Load() {
		s.commitsQueued.Store(true)
		return
	}
	s.onCommit()
}

func (s *Surface) reportCommits() {
	if s.commitsQueued.Swap(false) && s.onCommit != nil {
		s.onCommit()
	}
}

func (s *Surface) checkEditableLocked() error {
	if s.closed {
		return ErrClosed
	}
	if !s.editable {
		return apperr.ErrNotEditable
	}
	return nil
}

func (s *Surface) notify(n Notification) {
	if s.notifier != nil {
		s.notifier.Notify(n)
	}
}

// LineCount returns the number of lines in text; empty text has one line.
func LineCount(text string) int {
	return strings.Count(text, "\n") + 1
}

// Position returns the 1-based line and column of a rune offset in text.
func Position(text string, offset int) (line, col int) {
	runes := []rune(text)
	offset = min(max(offset, 0), len(runes))
	before := string(runes[:offset])
	line = strings.Count(before, "\n") + 1
	last := strings.LastIndexByte(before, '\n')
	col = runeLen(before[last+1:]) + 1
	return line, col
}
