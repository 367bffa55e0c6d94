// Package session keeps the open editor sessions of the HTTP API. Each
// session owns one editor surface for one skill plus the remote views that
// the browser reports pane geometry into.
package session

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/starford/skilldesk/internal/apperr"
	"github.com/starford/skilldesk/internal/editor"
	"github.com/starford/skilldesk/internal/history"
	"github.com/starford/skilldesk/internal/scrollsync"
	"github.com/starford/skilldesk/internal/sse"
)

// Publisher receives session events.
type Publisher interface {
	Publish(event sse.Event)
}

// Config tunes new surfaces.
type Config struct {
	HistoryLimit  int
	HistoryDelay  time.Duration
	FrameInterval time.Duration
	Indent        string
}

// Session is one open editor.
type Session struct {
	ID        string
	Skill     string
	CreatedAt time.Time
	Surface   *editor.Surface

	editorPane  scrollsync.RemoteView
	previewPane scrollsync.RemoteView
	gutterPane  scrollsync.RemoteView
	// scrollMu serializes scroll reports so views are not updated mid-sync.
	scrollMu sync.Mutex
}

// Info is the listing form of a Session.
type Info struct {
	ID        string    `json:"id"`
	Skill     string    `json:"skill"`
	Dirty     bool      `json:"dirty"`
	CreatedAt time.Time `json:"createdAt"`
}

// ScrollResult reports pane offsets after a scroll report was applied.
type ScrollResult struct {
	Propagated bool               `json:"propagated"`
	Active     string             `json:"active"`
	Editor     scrollsync.Metrics `json:"editor"`
	Preview    scrollsync.Metrics `json:"preview"`
	Gutter     scrollsync.Metrics `json:"gutter"`
}

// Scroll records the geometry the client reported and dispatches a scroll
// event from src.
func (s *Session) Scroll(src scrollsync.Source, editorPane, previewPane scrollsync.Metrics) ScrollResult {
	s.scrollMu.Lock()
	defer s.scrollMu.Unlock()

	s.editorPane.Update(editorPane)
	s.previewPane.Update(previewPane)
	gutter := s.gutterPane.Metrics()
	s.gutterPane.Update(scrollsync.Metrics{
		ScrollTop:    gutter.ScrollTop,
		ScrollHeight: editorPane.ScrollHeight,
		ClientHeight: editorPane.ClientHeight,
	})

	ok := s.Surface.OnScroll(src)
	active := src.String()
	if !ok {
		active = "none"
	}
	return ScrollResult{
		Propagated: ok,
		Active:     active,
		Editor:     s.editorPane.Metrics(),
		Preview:    s.previewPane.Metrics(),
		Gutter:     s.gutterPane.Metrics(),
	}
}

// Info returns the listing form of s.
func (s *Session) Info() Info {
	return Info{ID: s.ID, Skill: s.Skill, Dirty: s.Surface.Dirty(), CreatedAt: s.CreatedAt}
}

// Option configures a Manager.
type Option func(*Manager)

// WithFrames overrides the frame scheduler used by every session.
func WithFrames(f scrollsync.FrameScheduler) Option {
	return func(m *Manager) { m.frames = f }
}

// Manager owns the open sessions.
type Manager struct {
	docs   editor.Persistence
	pub    Publisher
	logger *slog.Logger
	cfg    Config
	frames scrollsync.FrameScheduler

	mu       sync.Mutex
	sessions map[string]*Session
}

// NewManager creates a session manager. pub may be nil.
func NewManager(docs editor.Persistence, pub Publisher, logger *slog.Logger, cfg Config, opts ...Option) *Manager {
	m := &Manager{
		docs:     docs,
		pub:      pub,
		logger:   logger,
		cfg:      cfg,
		sessions: make(map[string]*Session),
	}
	for _, o := range opts {
		o(m)
	}
	if m.frames == nil {
		m.frames = scrollsync.NewTimerFrames(cfg.FrameInterval)
	}
	return m
}

// Open loads skill into a new session.
func (m *Manager) Open(ctx context.Context, skill string) (*Session, error) {
	id := uuid.NewString()
	s := &Session{ID: id, Skill: skill, CreatedAt: time.Now()}

	var hopts []history.Option
	if m.cfg.HistoryLimit > 0 {
		hopts = append(hopts, history.WithCapacity(m.cfg.HistoryLimit))
	}
	if m.cfg.HistoryDelay > 0 {
		hopts = append(hopts, history.WithDelay(m.cfg.HistoryDelay))
	}

	s.Surface = editor.New(m.docs,
		editor.WithLogger(m.logger.With(slog.String("session", id))),
		editor.WithNotifier(m.notifier(id)),
		editor.WithHistoryOptions(hopts...),
		editor.WithOnHistoryCommit(func() {
			m.publish(sse.Event{Type: sse.TypeSessionState, Session: id, Data: map[string]string{
				"session": id,
				"change":  "history",
			}})
		}),
		editor.WithIndent(m.cfg.Indent),
	)
	if err := s.Surface.Load(ctx, skill); err != nil {
		s.Surface.Close()
		return nil, err
	}
	s.Surface.AttachScroll(&s.editorPane, &s.previewPane,
		scrollsync.WithGutter(&s.gutterPane),
		scrollsync.WithFrames(m.frames),
	)

	m.mu.Lock()
	m.sessions[id] = s
	m.mu.Unlock()

	m.logger.Info("session: opened", slog.String("session", id), slog.String("skill", skill))
	return s, nil
}

// Get returns an open session.
func (m *Manager) Get(id string) (*Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions[id]
	if !ok {
		return nil, fmt.Errorf("session %s: %w", id, apperr.ErrNotFound)
	}
	return s, nil
}

// Close ends a session. A session with unsaved changes is only closed when
// discard is set; otherwise apperr.ErrUnsavedChanges is returned.
func (m *Manager) Close(id string, discard bool) error {
	s, err := m.Get(id)
	if err != nil {
		return err
	}
	confirm := editor.ConfirmFunc(func(string) bool { return discard })
	if !s.Surface.RequestLeave(confirm) {
		return apperr.ErrUnsavedChanges
	}

	m.mu.Lock()
	delete(m.sessions, id)
	m.mu.Unlock()
	s.Surface.Close()

	m.logger.Info("session: closed", slog.String("session", id), slog.Bool("discarded", discard))
	return nil
}

// List returns every open session ordered by creation time.
func (m *Manager) List() []Info {
	m.mu.Lock()
	all := make([]*Session, 0, len(m.sessions))
	for _, s := range m.sessions {
		all = append(all, s)
	}
	m.mu.Unlock()

	sort.Slice(all, func(i, j int) bool {
		if !all[i].CreatedAt.Equal(all[j].CreatedAt) {
			return all[i].CreatedAt.Before(all[j].CreatedAt)
		}
		return all[i].ID < all[j].ID
	})
	out := make([]Info, len(all))
	for i, s := range all {
		out[i] = s.Info()
	}
	return out
}

// CloseAll closes every session, discarding unsaved changes.
func (m *Manager) CloseAll() {
	m.mu.Lock()
	all := m.sessions
	m.sessions = make(map[string]*Session)
	m.mu.Unlock()
	for id, s := range all {
		if s.Surface.Dirty() {
			m.logger.Warn("session: discarding unsaved changes", slog.String("session", id), slog.String("skill", s.Skill))
		}
		s.Surface.Close()
	}
}

func (m *Manager) notifier(id string) editor.Notifier {
	return editor.NotifierFunc(func(n editor.Notification) {
		data := map[string]string{
			"session": id,
			"level":   string(n.Level),
			"message": n.Message,
		}
		if n.Err != nil {
			data["error"] = n.Err.Error()
		}
		m.publish(sse.Event{Type: sse.TypeNotification, Session: id, Data: data})
	})
}

func (m *Manager) publish(e sse.Event) {
	if m.pub != nil {
		m.pub.Publish(e)
	}
}
