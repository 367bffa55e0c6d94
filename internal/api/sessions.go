package api

import (
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/starford/skilldesk/internal/editor"
	"github.com/starford/skilldesk/internal/scrollsync"
	"github.com/starford/skilldesk/internal/session"
	"github.com/starford/skilldesk/internal/skillservice"
)

// SessionHandler exposes editor sessions over HTTP.
type SessionHandler struct {
	sessions *session.Manager
	svc      *skillservice.Service
}

// NewSessionHandler creates a new SessionHandler.
func NewSessionHandler(sessions *session.Manager, svc *skillservice.Service) *SessionHandler {
	return &SessionHandler{sessions: sessions, svc: svc}
}

// session resolves the {id} URL parameter, answering 404 when unknown.
func (h *SessionHandler) session(w http.ResponseWriter, r *http.Request) (*session.Session, bool) {
	s, err := h.sessions.Get(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, "get session", err)
		return nil, false
	}
	return s, true
}

// withCursor adds the selection after an insertion and its line/column.
func withCursor(s *session.Session, cur editor.Selection) func(*SessionResponse) {
	line, col := s.Surface.Position(cur.End)
	return func(resp *SessionResponse) {
		resp.Selection = &cur
		resp.Cursor = &CursorResponse{Offset: cur.End, Line: line, Column: col}
	}
}

func respond(w http.ResponseWriter, status int, s *session.Session, mod func(*SessionResponse)) {
	resp := SessionResponse{Session: s.Info(), State: s.Surface.State()}
	if mod != nil {
		mod(&resp)
	}
	writeJSON(w, status, resp)
}

// List handles GET /api/sessions.
func (h *SessionHandler) List(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"sessions": nonNil(h.sessions.List())})
}

// Open handles POST /api/sessions.
//
//	@Summary		Open an editor session on a skill
//	@Tags			sessions
//	@Accept			json
//	@Produce		json
//	@Param			body	body		OpenSessionRequest	true	"Skill to edit"
//	@Success		201		{object}	SessionResponse
//	@Failure		404		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/sessions [post]
func (h *SessionHandler) Open(w http.ResponseWriter, r *http.Request) {
	var req OpenSessionRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if req.Skill == "" {
		writeJSON(w, http.StatusBadRequest, errorBody("skill is required"))
		return
	}
	s, err := h.sessions.Open(r.Context(), req.Skill)
	if err != nil {
		writeError(w, "open session", err, slog.String("skill", req.Skill))
		return
	}
	respond(w, http.StatusCreated, s, nil)
}

// Get handles GET /api/sessions/{id}.
func (h *SessionHandler) Get(w http.ResponseWriter, r *http.Request) {
	s, ok := h.session(w, r)
	if !ok {
		return
	}
	respond(w, http.StatusOK, s, nil)
}

// Close handles DELETE /api/sessions/{id}. Unsaved changes answer 409
// unless ?discard=true is given.
func (h *SessionHandler) Close(w http.ResponseWriter, r *http.Request) {
	discard, _ := strconv.ParseBool(r.URL.Query().Get("discard"))
	if err := h.sessions.Close(chi.URLParam(r, "id"), discard); err != nil {
		writeError(w, "close session", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// SetBody handles PUT /api/sessions/{id}/body.
func (h *SessionHandler) SetBody(w http.ResponseWriter, r *http.Request) {
	s, ok := h.session(w, r)
	if !ok {
		return
	}
	var req SetBodyRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if err := s.Surface.SetBody(req.Body); err != nil {
		writeError(w, "set body", err)
		return
	}
	respond(w, http.StatusOK, s, nil)
}

// SetMetadata handles PUT /api/sessions/{id}/metadata.
func (h *SessionHandler) SetMetadata(w http.ResponseWriter, r *http.Request) {
	s, ok := h.session(w, r)
	if !ok {
		return
	}
	var req SetMetadataRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if req.Key == "" {
		writeJSON(w, http.StatusBadRequest, errorBody("key is required"))
		return
	}
	if err := s.Surface.SetMetadata(req.Key, req.Value); err != nil {
		writeError(w, "set metadata", err)
		return
	}
	respond(w, http.StatusOK, s, nil)
}

// Format handles POST /api/sessions/{id}/format.
func (h *SessionHandler) Format(w http.ResponseWriter, r *http.Request) {
	s, ok := h.session(w, r)
	if !ok {
		return
	}
	var req FormatRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	kind, err := editor.ParseFormatKind(req.Kind)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody(err.Error()))
		return
	}
	cur, err := s.Surface.FormatInsert(kind, req.Selection)
	if err != nil {
		writeError(w, "format", err)
		return
	}
	respond(w, http.StatusOK, s, withCursor(s, cur))
}

// Tab handles POST /api/sessions/{id}/tab.
func (h *SessionHandler) Tab(w http.ResponseWriter, r *http.Request) {
	s, ok := h.session(w, r)
	if !ok {
		return
	}
	var req TabRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	cur, err := s.Surface.InsertTab(req.Selection)
	if err != nil {
		writeError(w, "tab", err)
		return
	}
	respond(w, http.StatusOK, s, withCursor(s, cur))
}

// Undo handles POST /api/sessions/{id}/undo.
func (h *SessionHandler) Undo(w http.ResponseWriter, r *http.Request) {
	h.step(w, r, (*editor.Surface).Undo)
}

// Redo handles POST /api/sessions/{id}/redo.
func (h *SessionHandler) Redo(w http.ResponseWriter, r *http.Request) {
	h.step(w, r, (*editor.Surface).Redo)
}

func (h *SessionHandler) step(w http.ResponseWriter, r *http.Request, move func(*editor.Surface) (bool, error)) {
	s, ok := h.session(w, r)
	if !ok {
		return
	}
	changed, err := move(s.Surface)
	if err != nil {
		writeError(w, "history", err)
		return
	}
	respond(w, http.StatusOK, s, func(resp *SessionResponse) { resp.Changed = &changed })
}

// Key handles POST /api/sessions/{id}/keys.
func (h *SessionHandler) Key(w http.ResponseWriter, r *http.Request) {
	s, ok := h.session(w, r)
	if !ok {
		return
	}
	var req KeyRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	key := req.Key
	if req.Shortcut != "" {
		parsed, err := editor.ParseShortcut(req.Shortcut)
		if err != nil {
			writeJSON(w, http.StatusBadRequest, errorBody(err.Error()))
			return
		}
		key = parsed
	}
	handled, err := s.Surface.HandleKey(r.Context(), key)
	if err != nil {
		writeError(w, "key "+key.String(), err, slog.String("session", s.ID))
		return
	}
	writeJSON(w, http.StatusOK, KeyResponse{
		Handled: handled,
		Action:  key.Resolve(),
		Session: SessionResponse{Session: s.Info(), State: s.Surface.State()},
	})
}

// Save handles POST /api/sessions/{id}/save.
//
//	@Summary		Save the session's document
//	@Tags			sessions
//	@Produce		json
//	@Param			id	path		string	true	"Session id"
//	@Success		200	{object}	SessionResponse
//	@Failure		409	{object}	errResponse	"A save is already in flight"
//	@Failure		423	{object}	errResponse
//	@Security		BearerAuth
//	@Router			/sessions/{id}/save [post]
func (h *SessionHandler) Save(w http.ResponseWriter, r *http.Request) {
	s, ok := h.session(w, r)
	if !ok {
		return
	}
	if err := s.Surface.Save(r.Context()); err != nil {
		writeError(w, "save", err, slog.String("session", s.ID), slog.String("skill", s.Skill))
		return
	}
	respond(w, http.StatusOK, s, nil)
}

// Scroll handles POST /api/sessions/{id}/scroll.
func (h *SessionHandler) Scroll(w http.ResponseWriter, r *http.Request) {
	s, ok := h.session(w, r)
	if !ok {
		return
	}
	var req ScrollRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	src, valid := scrollsync.ParseSource(req.Source)
	if !valid {
		writeJSON(w, http.StatusBadRequest, errorBody("source must be 'editor' or 'preview'"))
		return
	}
	writeJSON(w, http.StatusOK, s.Scroll(src, req.Editor, req.Preview))
}

// Preview handles GET /api/sessions/{id}/preview.
func (h *SessionHandler) Preview(w http.ResponseWriter, r *http.Request) {
	s, ok := h.session(w, r)
	if !ok {
		return
	}
	html, err := h.svc.RenderBody(s.Surface.State().Body)
	if err != nil {
		writeError(w, "preview", err, slog.String("session", s.ID))
		return
	}
	writeJSON(w, http.StatusOK, PreviewResponse{HTML: html})
}

// Diff handles GET /api/sessions/{id}/diff.
func (h *SessionHandler) Diff(w http.ResponseWriter, r *http.Request) {
	s, ok := h.session(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, DiffResponse{Diff: s.Surface.Diff(), Dirty: s.Surface.Dirty()})
}

// Position handles GET /api/sessions/{id}/position?offset=N.
//
//	@Summary		Line and column of a rune offset in the session body
//	@Tags			sessions
//	@Produce		json
//	@Param			id		path		string	true	"Session id"
//	@Param			offset	query		int		true	"Rune offset"
//	@Success		200		{object}	CursorResponse
//	@Failure		400		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/sessions/{id}/position [get]
func (h *SessionHandler) Position(w http.ResponseWriter, r *http.Request) {
	s, ok := h.session(w, r)
	if !ok {
		return
	}
	offset, err := strconv.Atoi(r.URL.Query().Get("offset"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody("offset must be an integer"))
		return
	}
	line, col := s.Surface.Position(offset)
	writeJSON(w, http.StatusOK, CursorResponse{Offset: offset, Line: line, Column: col})
}
