package session

import (
	"context"
	"errors"
	"math"
	"sync"
	"testing"
	"time"

	"github.com/starford/skilldesk/internal/apperr"
	"github.com/starford/skilldesk/internal/editor"
	"github.com/starford/skilldesk/internal/scrollsync"
	"github.com/starford/skilldesk/internal/sse"
	"github.com/starford/skilldesk/internal/testutil"
)

type memDocs struct {
	mu   sync.Mutex
	docs map[string]string
	fail error
}

func (d *memDocs) LoadDocument(_ context.Context, id string) (string, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	raw, ok := d.docs[id]
	if !ok {
		return "", apperr.ErrNotFound
	}
	return raw, nil
}

func (d *memDocs) SaveDocument(_ context.Context, id, raw string) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.fail != nil {
		return d.fail
	}
	d.docs[id] = raw
	return nil
}

type recorder struct {
	mu     sync.Mutex
	events []sse.Event
	// onPublish runs for every event, outside the recorder lock.
	onPublish func(sse.Event)
}

func (r *recorder) Publish(e sse.Event) {
	r.mu.Lock()
	r.events = append(r.events, e)
	hook := r.onPublish
	r.mu.Unlock()
	if hook != nil {
		hook(e)
	}
}

func (r *recorder) ofType(typ string) []sse.Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []sse.Event
	for _, e := range r.events {
		if e.Type == typ {
			out = append(out, e)
		}
	}
	return out
}

func newManager(t *testing.T) (*Manager, *memDocs, *recorder, *scrollsync.ManualFrames) {
	t.Helper()
	docs := &memDocs{docs: map[string]string{"demo": "---\nname: demo\n---\n\nHello"}}
	rec := &recorder{}
	frames := &scrollsync.ManualFrames{}
	m := NewManager(docs, rec, testutil.Logger(), Config{HistoryDelay: time.Hour}, WithFrames(frames))
	t.Cleanup(m.CloseAll)
	return m, docs, rec, frames
}

func open(t *testing.T, m *Manager) *Session {
	t.Helper()
	s, err := m.Open(context.Background(), "demo")
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	return s
}

func near(a, b float64) bool { return math.Abs(a-b) < 0.001 }

func TestOpenGetClose(t *testing.T) {
	m, _, _, _ := newManager(t)
	s := open(t, m)
	if s.ID == "" {
		t.Error("session id is empty")
	}
	if body := s.Surface.State().Body; body != "Hello" {
		t.Errorf("body = %q", body)
	}

	got, err := m.Get(s.ID)
	if err != nil || got != s {
		t.Fatalf("Get = %p, %v; want %p", got, err, s)
	}
	if n := len(m.List()); n != 1 {
		t.Errorf("List = %d sessions, want 1", n)
	}

	if err := m.Close(s.ID, false); err != nil {
		t.Fatal(err)
	}
	if _, err := m.Get(s.ID); !errors.Is(err, apperr.ErrNotFound) {
		t.Errorf("Get after close = %v, want ErrNotFound", err)
	}
}

func TestOpenMissingSkill(t *testing.T) {
	m, _, rec, _ := newManager(t)
	if _, err := m.Open(context.Background(), "ghost"); !errors.Is(err, apperr.ErrNotFound) {
		t.Errorf("Open = %v, want ErrNotFound", err)
	}
	if n := len(m.List()); n != 0 {
		t.Errorf("List = %d sessions, want 0", n)
	}
	if n := len(rec.ofType(sse.TypeNotification)); n != 1 {
		t.Errorf("notifications = %d, want 1", n)
	}
}

func TestCloseRequiresDiscardWhenDirty(t *testing.T) {
	m, _, _, _ := newManager(t)
	s := open(t, m)
	if err := s.Surface.SetBody("changed"); err != nil {
		t.Fatal(err)
	}

	if err := m.Close(s.ID, false); !errors.Is(err, apperr.ErrUnsavedChanges) {
		t.Errorf("Close = %v, want ErrUnsavedChanges", err)
	}
	if _, err := m.Get(s.ID); err != nil {
		t.Fatalf("session gone after declined close: %v", err)
	}

	if err := m.Close(s.ID, true); err != nil {
		t.Fatal(err)
	}
	if n := len(m.List()); n != 0 {
		t.Errorf("List = %d sessions, want 0", n)
	}
}

func TestNotificationsArePublishedPerSession(t *testing.T) {
	m, docs, rec, _ := newManager(t)
	s := open(t, m)
	if err := s.Surface.SetBody("x"); err != nil {
		t.Fatal(err)
	}

	docs.mu.Lock()
	docs.fail = errors.New("read-only")
	docs.mu.Unlock()
	if err := s.Surface.Save(context.Background()); err == nil {
		t.Fatal("save should fail")
	}

	notes := rec.ofType(sse.TypeNotification)
	if len(notes) != 1 {
		t.Fatalf("notifications = %d, want 1", len(notes))
	}
	if notes[0].Session != s.ID {
		t.Errorf("session = %q, want %q", notes[0].Session, s.ID)
	}
	data := notes[0].Data.(map[string]string)
	if data["level"] != "error" || data["error"] != "read-only" {
		t.Errorf("data = %v", data)
	}
}

func TestHistoryCommitPublishesState(t *testing.T) {
	m, _, rec, _ := newManager(t)
	s := open(t, m)

	if _, err := s.Surface.Undo(); err != nil {
		t.Fatal(err)
	}
	if n := len(rec.ofType(sse.TypeSessionState)); n != 0 {
		t.Errorf("state events = %d before any edit", n)
	}

	if err := s.Surface.SetBody("typed"); err != nil {
		t.Fatal(err)
	}
	if _, err := s.Surface.Undo(); err != nil {
		t.Fatal(err)
	}
	if n := len(rec.ofType(sse.TypeSessionState)); n != 1 {
		t.Errorf("state events = %d, want 1", n)
	}
}

func TestStateSubscriberMayReadSurface(t *testing.T) {
	m, _, rec, _ := newManager(t)
	s := open(t, m)

	var bodies []string
	rec.onPublish = func(e sse.Event) {
		if e.Type == sse.TypeSessionState {
			bodies = append(bodies, s.Surface.State().Body)
		}
	}

	done := make(chan error, 1)
	go func() {
		_, err := s.Surface.FormatInsert(editor.FormatBold, editor.Selection{Start: 0, End: 5})
		done <- err
	}()
	select {
	case err := <-done:
		if err != nil {
			t.Fatal(err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("format insert deadlocked while publishing the history commit")
	}
	if len(bodies) != 1 || bodies[0] != "**Hello**" {
		t.Errorf("subscriber saw %q", bodies)
	}
}

func TestScroll(t *testing.T) {
	m, _, _, frames := newManager(t)
	s := open(t, m)

	ed := scrollsync.Metrics{ScrollTop: 100, ScrollHeight: 300, ClientHeight: 100}
	pv := scrollsync.Metrics{ScrollHeight: 900, ClientHeight: 100}

	res := s.Scroll(scrollsync.SourceEditor, ed, pv)
	if !res.Propagated || res.Active != "editor" {
		t.Errorf("editor scroll = %+v", res)
	}
	if !near(res.Preview.ScrollTop, 400) || !near(res.Gutter.ScrollTop, 100) {
		t.Errorf("preview = %v, gutter = %v", res.Preview.ScrollTop, res.Gutter.ScrollTop)
	}

	// The preview echoes within the same frame and is ignored.
	res = s.Scroll(scrollsync.SourcePreview, ed, scrollsync.Metrics{ScrollTop: 400, ScrollHeight: 900, ClientHeight: 100})
	if res.Propagated || res.Active != "none" || !near(res.Editor.ScrollTop, 100) {
		t.Errorf("echo = %+v", res)
	}

	frames.Tick()
	res = s.Scroll(scrollsync.SourcePreview, ed, scrollsync.Metrics{ScrollTop: 800, ScrollHeight: 900, ClientHeight: 100})
	if !res.Propagated || !near(res.Editor.ScrollTop, 200) || !near(res.Gutter.ScrollTop, 200) {
		t.Errorf("preview scroll = %+v", res)
	}
}

func TestCloseAll(t *testing.T) {
	m, _, _, _ := newManager(t)
	a := open(t, m)
	open(t, m)
	if err := a.Surface.SetBody("dirty"); err != nil {
		t.Fatal(err)
	}

	m.CloseAll()
	if n := len(m.List()); n != 0 {
		t.Errorf("List = %d sessions, want 0", n)
	}
	if err := a.Surface.SetBody("after"); err == nil {
		t.Error("closed surface accepted an edit")
	}
}
