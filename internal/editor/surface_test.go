package editor

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/starford/skilldesk/internal/apperr"
	"github.com/starford/skilldesk/internal/history"
	"github.com/starford/skilldesk/internal/scrollsync"
)

type fakeStore struct {
	mu      sync.Mutex
	docs    map[string]string
	loadErr error
	saveErr error
	saves   []string
	// gate, when set, blocks SaveDocument until it is closed.
	gate    chan struct{}
	started chan struct{}
}

func newFakeStore(docs map[string]string) *fakeStore {
	return &fakeStore{docs: docs}
}

func (f *fakeStore) LoadDocument(_ context.Context, id string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.loadErr != nil {
		return "", f.loadErr
	}
	raw, ok := f.docs[id]
	if !ok {
		return "", apperr.ErrNotFound
	}
	return raw, nil
}

func (f *fakeStore) SaveDocument(_ context.Context, id, raw string) error {
	f.mu.Lock()
	gate, started := f.gate, f.started
	f.started = nil
	f.mu.Unlock()
	if started != nil {
		close(started)
	}
	if gate != nil {
		<-gate
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.saveErr != nil {
		return f.saveErr
	}
	f.saves = append(f.saves, raw)
	f.docs[id] = raw
	return nil
}

func (f *fakeStore) block() (started, release chan struct{}) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.started = make(chan struct{})
	f.gate = make(chan struct{})
	return f.started, f.gate
}

type notes struct {
	mu  sync.Mutex
	got []Notification
}

func (n *notes) Notify(x Notification) {
	n.mu.Lock()
	n.got = append(n.got, x)
	n.mu.Unlock()
}

func (n *notes) levels() []Level {
	n.mu.Lock()
	defer n.mu.Unlock()
	out := make([]Level, len(n.got))
	for i, x := range n.got {
		out[i] = x.Level
	}
	return out
}

const sample = "---\nname: foo\ndescription: bar\n---\n\nHello"

func loaded(t *testing.T, opts ...Option) (*Surface, *fakeStore, *notes) {
	t.Helper()
	store := newFakeStore(map[string]string{"foo": sample})
	n := &notes{}
	opts = append([]Option{WithNotifier(n), WithHistoryOptions(history.WithDelay(time.Hour))}, opts...)
	s := New(store, opts...)
	t.Cleanup(s.Close)
	if err := s.Load(context.Background(), "foo"); err != nil {
		t.Fatalf("load: %v", err)
	}
	return s, store, n
}

func mustBody(t *testing.T, s *Surface, want string) {
	t.Helper()
	if got := s.State().Body; got != want {
		t.Fatalf("body = %q, want %q", got, want)
	}
}

func sameLevels(a, b []Level) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func TestLoad(t *testing.T) {
	s, _, _ := loaded(t)
	st := s.State()
	if st.ID != "foo" || st.Body != "Hello" {
		t.Errorf("state = %q %q", st.ID, st.Body)
	}
	if d := st.Metadata.Get("description"); d != "bar" {
		t.Errorf("description = %q", d)
	}
	if !st.Editable || st.Dirty || st.CanUndo {
		t.Errorf("flags = editable %v dirty %v canUndo %v", st.Editable, st.Dirty, st.CanUndo)
	}
}

func TestLoadFailureLeavesSurfaceEmpty(t *testing.T) {
	store := newFakeStore(map[string]string{})
	n := &notes{}
	s := New(store, WithNotifier(n))
	defer s.Close()

	if err := s.Load(context.Background(), "missing"); !errors.Is(err, apperr.ErrNotFound) {
		t.Fatalf("Load = %v, want ErrNotFound", err)
	}

	st := s.State()
	if st.Editable || st.Body != "" {
		t.Errorf("state = editable %v body %q", st.Editable, st.Body)
	}
	if got := n.levels(); !sameLevels(got, []Level{LevelError}) {
		t.Errorf("levels = %v", got)
	}
	if err := s.SetBody("x"); !errors.Is(err, apperr.ErrNotEditable) {
		t.Errorf("SetBody = %v, want ErrNotEditable", err)
	}
}

func TestLoadResetsHistoryAcrossDocuments(t *testing.T) {
	s, store, _ := loaded(t)
	store.docs["other"] = "Other"
	if err := s.SetBody("Hello world"); err != nil {
		t.Fatal(err)
	}

	if err := s.Load(context.Background(), "other"); err != nil {
		t.Fatal(err)
	}
	ok, err := s.Undo()
	if err != nil || ok {
		t.Errorf("Undo = %v, %v; want false", ok, err)
	}
	mustBody(t, s, "Other")
}

func TestSetBodyMarksDirty(t *testing.T) {
	s, _, _ := loaded(t)
	if err := s.SetBody("Hello there"); err != nil {
		t.Fatal(err)
	}
	if !s.Dirty() {
		t.Error("not dirty after SetBody")
	}
	mustBody(t, s, "Hello there")
}

func TestSetMetadataNotInHistory(t *testing.T) {
	s, _, _ := loaded(t)
	if err := s.SetMetadata("language", "go"); err != nil {
		t.Fatal(err)
	}
	if !s.Dirty() {
		t.Error("not dirty after SetMetadata")
	}
	if s.State().CanUndo {
		t.Error("metadata edit landed in history")
	}
}

func TestSetMetadataRejectsBrokenFields(t *testing.T) {
	cases := []struct{ key, value string }{
		{"  ", "x"},
		{"description", "bar\n---\n\nINJECTED"},
		{"description", "line\rbreak"},
		{"a: b", "c"},
		{"multi\nline", "c"},
	}
	for _, tc := range cases {
		s, store, _ := loaded(t)
		err := s.SetMetadata(tc.key, tc.value)
		if !errors.Is(err, apperr.ErrInvalidInput) {
			t.Errorf("SetMetadata(%q, %q) = %v, want ErrInvalidInput", tc.key, tc.value, err)
			continue
		}
		if s.Dirty() {
			t.Errorf("SetMetadata(%q, %q) marked the surface dirty", tc.key, tc.value)
		}
		if err := s.SetBody("Bye"); err != nil {
			t.Fatal(err)
		}
		if err := s.Save(context.Background()); err != nil {
			t.Fatal(err)
		}
		want := "---\nname: foo\ndescription: bar\n---\n\nBye"
		if got := store.saves[len(store.saves)-1]; got != want {
			t.Errorf("saved %q, want %q", got, want)
		}
	}
}

func TestFormatInsert(t *testing.T) {
	cases := []struct {
		kind FormatKind
		sel  Selection
		body string
		cur  int
	}{
		{FormatBold, Selection{0, 5}, "**Hello**", 7},
		{FormatItalic, Selection{0, 5}, "_Hello_", 6},
		{FormatCode, Selection{5, 5}, "Hello``", 6},
		{FormatLink, Selection{0, 5}, "[Hello](url)", 6},
		{FormatH2, Selection{5, 5}, "Hello\n## ", 9},
		{FormatList, Selection{0, 0}, "\n- Hello", 3},
		{FormatCodeBlock, Selection{0, 5}, "\n```\nHello\n```\n", 10},
	}
	for _, tc := range cases {
		t.Run(string(tc.kind), func(t *testing.T) {
			s, _, _ := loaded(t)
			cur, err := s.FormatInsert(tc.kind, tc.sel)
			if err != nil {
				t.Fatal(err)
			}
			mustBody(t, s, tc.body)
			if cur != (Selection{tc.cur, tc.cur}) {
				t.Errorf("cursor = %+v, want %d", cur, tc.cur)
			}
		})
	}
}

func TestFormatInsertIsImmediateHistoryStep(t *testing.T) {
	s, _, _ := loaded(t)
	if _, err := s.FormatInsert(FormatBold, Selection{0, 5}); err != nil {
		t.Fatal(err)
	}

	ok, err := s.Undo()
	if err != nil || !ok {
		t.Fatalf("Undo = %v, %v", ok, err)
	}
	mustBody(t, s, "Hello")
}

func TestFormatInsertTemplates(t *testing.T) {
	s, _, _ := loaded(t)
	cur, err := s.FormatInsert(FormatRuleTemplate, Selection{5, 5})
	if err != nil {
		t.Fatal(err)
	}
	body := s.State().Body
	if !strings.HasPrefix(body, "Hello\n## Rules\n") {
		t.Errorf("body = %q", body)
	}
	if n := len([]rune(body)); cur.Start != n {
		t.Errorf("cursor = %d, want %d", cur.Start, n)
	}

	if _, err := s.FormatInsert(FormatContextTemplate, cur); err != nil {
		t.Fatal(err)
	}
	if body := s.State().Body; !strings.Contains(body, "## Anti-patterns") {
		t.Errorf("body = %q", body)
	}
}

func TestFormatInsertUnknownKind(t *testing.T) {
	s, _, _ := loaded(t)
	if _, err := s.FormatInsert("strike", Selection{}); err == nil {
		t.Error("unknown kind accepted")
	}
	if s.Dirty() {
		t.Error("failed insert marked the surface dirty")
	}
}

func TestFormatInsertClampsAndCountsRunes(t *testing.T) {
	s, _, _ := loaded(t)
	if err := s.SetBody("héllo"); err != nil {
		t.Fatal(err)
	}
	cur, err := s.FormatInsert(FormatBold, Selection{End: 1, Start: 99})
	if err != nil {
		t.Fatal(err)
	}
	mustBody(t, s, "h**éllo**")
	if cur.Start != 7 {
		t.Errorf("cursor = %d, want 7", cur.Start)
	}
}

func TestInsertTab(t *testing.T) {
	s, _, _ := loaded(t)
	cur, err := s.InsertTab(Selection{1, 3})
	if err != nil {
		t.Fatal(err)
	}
	mustBody(t, s, "H  lo")
	if cur != (Selection{3, 3}) {
		t.Errorf("cursor = %+v", cur)
	}

	s2, _, _ := loaded(t, WithIndent("\t"))
	cur, err = s2.InsertTab(Selection{0, 0})
	if err != nil {
		t.Fatal(err)
	}
	mustBody(t, s2, "\tHello")
	if cur.Start != 1 {
		t.Errorf("cursor = %d, want 1", cur.Start)
	}
}

func TestUndoRedo(t *testing.T) {
	s, _, _ := loaded(t)
	for _, b := range []string{"Hello w", "Hello world"} {
		if err := s.SetBody(b); err != nil {
			t.Fatal(err)
		}
	}

	// The pending typing burst becomes one undoable step.
	if ok, err := s.Undo(); err != nil || !ok {
		t.Fatalf("Undo = %v, %v", ok, err)
	}
	mustBody(t, s, "Hello")

	if ok, _ := s.Undo(); ok {
		t.Error("undo past the oldest snapshot")
	}

	if ok, _ := s.Redo(); !ok {
		t.Fatal("redo failed")
	}
	mustBody(t, s, "Hello world")
	if !s.Dirty() {
		t.Error("not dirty after redo")
	}

	if ok, _ := s.Redo(); ok {
		t.Error("redo past the newest snapshot")
	}
}

func TestHistoryCommitCallbackMayReadSurface(t *testing.T) {
	var (
		s     *Surface
		seen  []State
		dirty []bool
	)
	s, _, _ = loaded(t, WithOnHistoryCommit(func() {
		seen = append(seen, s.State())
		dirty = append(dirty, s.Dirty())
	}))

	done := make(chan error, 1)
	go func() {
		if _, err := s.FormatInsert(FormatBold, Selection{0, 5}); err != nil {
			done <- err
			return
		}
		if err := s.SetBody("**Hello** there"); err != nil {
			done <- err
			return
		}
		_, err := s.Undo()
		done <- err
	}()
	select {
	case err := <-done:
		if err != nil {
			t.Fatal(err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("history commit callback deadlocked on the surface lock")
	}

	// FormatInsert commits once; Undo flushes the pending typing burst.
	if len(seen) != 2 {
		t.Fatalf("callback ran %d times, want 2", len(seen))
	}
	if seen[0].Body != "**Hello**" || !seen[0].CanUndo || !dirty[0] {
		t.Errorf("first commit saw %+v", seen[0])
	}
	if seen[1].Body != "**Hello**" {
		t.Errorf("second commit saw body %q", seen[1].Body)
	}
}

func TestSave(t *testing.T) {
	s, store, n := loaded(t)
	if err := s.SetMetadata("language", "go"); err != nil {
		t.Fatal(err)
	}
	if err := s.SetBody("Bye"); err != nil {
		t.Fatal(err)
	}

	if err := s.Save(context.Background()); err != nil {
		t.Fatal(err)
	}
	if s.Dirty() {
		t.Error("dirty after save")
	}
	want := "---\nname: foo\ndescription: bar\nlanguage: go\n---\n\nBye"
	if len(store.saves) != 1 || store.saves[0] != want {
		t.Errorf("saves = %q", store.saves)
	}
	if got := n.levels(); !sameLevels(got, []Level{LevelInfo}) {
		t.Errorf("levels = %v", got)
	}
	if d := s.Diff(); d != "" {
		t.Errorf("diff after save = %q", d)
	}
}

func TestSaveFailureKeepsDirty(t *testing.T) {
	s, store, n := loaded(t)
	store.saveErr = errors.New("disk full")
	if err := s.SetBody("Bye"); err != nil {
		t.Fatal(err)
	}

	err := s.Save(context.Background())
	if err == nil || !strings.Contains(err.Error(), "disk full") {
		t.Fatalf("Save = %v, want disk full", err)
	}
	if !s.Dirty() {
		t.Error("failed save cleared dirty")
	}
	if got := n.levels(); !sameLevels(got, []Level{LevelError}) {
		t.Errorf("levels = %v", got)
	}

	store.saveErr = nil
	if err := s.Save(context.Background()); err != nil {
		t.Fatal(err)
	}
	if s.Dirty() {
		t.Error("dirty after retry")
	}
}

func TestSaveInProgressIsNoop(t *testing.T) {
	s, store, _ := loaded(t)
	if err := s.SetBody("first"); err != nil {
		t.Fatal(err)
	}
	started, release := store.block()

	done := make(chan error, 1)
	go func() { done <- s.Save(context.Background()) }()
	<-started

	if !s.State().Saving {
		t.Error("state does not report saving")
	}
	if err := s.Save(context.Background()); !errors.Is(err, apperr.ErrSaveInProgress) {
		t.Errorf("second Save = %v, want ErrSaveInProgress", err)
	}

	handled, err := s.HandleKey(context.Background(), Key{Name: "s", Primary: true})
	if !handled || err != nil {
		t.Errorf("HandleKey = %v, %v", handled, err)
	}

	// Typing during the save keeps the surface dirty afterwards.
	if err := s.SetBody("second"); err != nil {
		t.Fatal(err)
	}
	close(release)
	if err := <-done; err != nil {
		t.Fatal(err)
	}

	if !s.Dirty() {
		t.Error("edit during save was lost from dirty")
	}
	want := "---\nname: foo\ndescription: bar\n---\n\nfirst"
	if len(store.saves) != 1 || store.saves[0] != want {
		t.Errorf("saves = %q", store.saves)
	}
}

func TestSaveResultDroppedAfterClose(t *testing.T) {
	store := newFakeStore(map[string]string{"foo": sample})
	n := &notes{}
	s := New(store, WithNotifier(n))
	if err := s.Load(context.Background(), "foo"); err != nil {
		t.Fatal(err)
	}
	if err := s.SetBody("x"); err != nil {
		t.Fatal(err)
	}

	started, release := store.block()
	done := make(chan error, 1)
	go func() { done <- s.Save(context.Background()) }()
	<-started
	s.Close()
	close(release)
	if err := <-done; err != nil {
		t.Fatal(err)
	}

	if got := n.levels(); len(got) != 0 {
		t.Errorf("levels = %v, want none", got)
	}
	if err := s.SetBody("y"); !errors.Is(err, ErrClosed) {
		t.Errorf("SetBody = %v, want ErrClosed", err)
	}
}

func TestHandleKey(t *testing.T) {
	s, store, _ := loaded(t)
	ctx := context.Background()
	if _, err := s.FormatInsert(FormatBold, Selection{0, 5}); err != nil {
		t.Fatal(err)
	}

	handled, err := s.HandleKey(ctx, Key{Name: "z", Primary: true})
	if err != nil || !handled {
		t.Fatalf("undo key = %v, %v", handled, err)
	}
	mustBody(t, s, "Hello")

	if handled, _ = s.HandleKey(ctx, Key{Name: "Z", Primary: true, Shift: true}); !handled {
		t.Error("redo key not handled")
	}
	mustBody(t, s, "**Hello**")

	if handled, _ = s.HandleKey(ctx, Key{Name: "s", Primary: true}); !handled {
		t.Error("save key not handled")
	}
	if len(store.saves) != 1 {
		t.Errorf("saves = %d, want 1", len(store.saves))
	}

	if handled, _ = s.HandleKey(ctx, Key{Name: "s"}); handled {
		t.Error("plain s handled as a shortcut")
	}
}

func TestParseShortcut(t *testing.T) {
	k, err := ParseShortcut("Ctrl+Shift+Z")
	if err != nil {
		t.Fatal(err)
	}
	if k != (Key{Name: "z", Primary: true, Shift: true}) {
		t.Errorf("key = %+v", k)
	}
	if k.Resolve() != ActionRedo || k.String() != "mod+shift+z" {
		t.Errorf("resolve = %v, string = %q", k.Resolve(), k.String())
	}

	k, err = ParseShortcut("cmd+s")
	if err != nil || k.Resolve() != ActionSave {
		t.Errorf("cmd+s = %+v, %v", k, err)
	}

	for _, bad := range []string{"alt+s", "ctrl+"} {
		if _, err := ParseShortcut(bad); err == nil {
			t.Errorf("ParseShortcut(%q) accepted", bad)
		}
	}
}

func TestRequestLeave(t *testing.T) {
	s, _, _ := loaded(t)
	if !s.RequestLeave(nil) {
		t.Error("clean surface refused to leave")
	}

	if err := s.SetBody("Changed"); err != nil {
		t.Fatal(err)
	}
	var seen string
	decline := ConfirmFunc(func(diff string) bool {
		seen = diff
		return false
	})
	if s.RequestLeave(decline) {
		t.Error("left after the confirmer declined")
	}
	for _, want := range []string{"-Hello", "+Changed", "a/foo"} {
		if !strings.Contains(seen, want) {
			t.Errorf("diff %q lacks %q", seen, want)
		}
	}

	if !s.RequestLeave(ConfirmFunc(func(string) bool { return true })) {
		t.Error("did not leave after the confirmer accepted")
	}
	if s.RequestLeave(nil) {
		t.Error("dirty surface left without a confirmer")
	}
}

func TestPosition(t *testing.T) {
	if line, col := Position("ab\ncd", 4); line != 2 || col != 2 {
		t.Errorf("Position = %d:%d, want 2:2", line, col)
	}
	if line, col := Position("ab", 99); line != 1 || col != 3 {
		t.Errorf("Position = %d:%d, want 1:3", line, col)
	}
	if n := LineCount(""); n != 1 {
		t.Errorf("LineCount(\"\") = %d", n)
	}
	if n := LineCount("a\nb\n"); n != 3 {
		t.Errorf("LineCount = %d, want 3", n)
	}
}

type pane struct {
	top, height, client float64
}

func (p *pane) ScrollTop() float64       { return p.top }
func (p *pane) ScrollHeight() float64    { return p.height }
func (p *pane) ClientHeight() float64    { return p.client }
func (p *pane) SetScrollTop(top float64) { p.top = top }

func TestAttachScroll(t *testing.T) {
	s, _, _ := loaded(t)
	if s.OnScroll(scrollsync.SourceEditor) {
		t.Error("scroll propagated before attach")
	}

	ed := &pane{top: 50, height: 200, client: 100}
	pv := &pane{height: 500, client: 100}
	frames := &scrollsync.ManualFrames{}
	s.AttachScroll(ed, pv, scrollsync.WithFrames(frames))

	if !s.OnScroll(scrollsync.SourceEditor) {
		t.Fatal("editor scroll not propagated")
	}
	if pv.top < 199.999 || pv.top > 200.001 {
		t.Errorf("preview top = %v, want 200", pv.top)
	}
	if s.OnScroll(scrollsync.SourcePreview) {
		t.Error("echo propagated within the frame")
	}
	frames.Tick()
	if !s.OnScroll(scrollsync.SourcePreview) {
		t.Error("preview scroll not propagated after the frame")
	}
}
