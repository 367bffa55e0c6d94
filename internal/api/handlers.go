package api

import (
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/starford/skilldesk/internal/editor"
	"github.com/starford/skilldesk/internal/filetree"
	"github.com/starford/skilldesk/internal/index"
	"github.com/starford/skilldesk/internal/models"
	"github.com/starford/skilldesk/internal/skillservice"
)

// Handler holds catalogue route handlers.
type Handler struct {
	svc *skillservice.Service
}

// NewHandler creates a new Handler.
func NewHandler(svc *skillservice.Service) *Handler {
	return &Handler{svc: svc}
}

// filePath extracts the file path from the URL (everything after /files/).
// Supports encoded slashes from OpenAPI clients (e.g. scripts%2Frun.sh).
func filePath(r *http.Request) string {
	raw := strings.TrimPrefix(chi.URLParam(r, "*"), "/")
	if raw == "" {
		return ""
	}
	decoded, err := url.PathUnescape(raw)
	if err != nil {
		return raw
	}
	return decoded
}

// ListSkills handles GET /api/skills.
//
//	@Summary		List skills with optional pagination and filtering
//	@Tags			skills
//	@Produce		json
//	@Param			limit		query		int		false	"Page size"
//	@Param			offset		query		int		false	"Page offset"
//	@Param			language	query		string	false	"Filter by language"
//	@Param			sort		query		string	false	"Sort field"	Enums(name, updated_at)
//	@Success		200			{object}	SkillListResponse
//	@Security		BearerAuth
//	@Router			/skills [get]
func (h *Handler) ListSkills(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	limit, _ := strconv.Atoi(q.Get("limit"))
	offset, _ := strconv.Atoi(q.Get("offset"))

	items, total, err := h.svc.ListSkills(r.Context(), index.ListQuery{
		Limit:    limit,
		Offset:   offset,
		Language: q.Get("language"),
		Sort:     q.Get("sort"),
	})
	if err != nil {
		writeError(w, "list skills", err)
		return
	}
	writeJSON(w, http.StatusOK, SkillListResponse{Skills: nonNil(items), Total: total})
}

// GetSkill handles GET /api/skills/{name}.
//
//	@Summary		Get a single skill document
//	@Tags			skills
//	@Produce		json
//	@Param			name	path		string	true	"Skill name"
//	@Success		200		{object}	SkillDetail
//	@Failure		404		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/skills/{name} [get]
func (h *Handler) GetSkill(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	skill, err := h.svc.GetSkill(r.Context(), name)
	if err != nil {
		writeError(w, "get skill", err, slog.String("skill", name))
		return
	}
	writeJSON(w, http.StatusOK, skill)
}

// FileTree handles GET /api/skills/{name}/tree.
//
//	@Summary		Get the file tree of a skill directory
//	@Tags			skills
//	@Produce		json
//	@Param			name	path	string	true	"Skill name"
//	@Failure		404		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/skills/{name}/tree [get]
func (h *Handler) FileTree(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	nodes, err := h.svc.FileTree(r.Context(), name)
	if err != nil {
		writeError(w, "file tree", err, slog.String("skill", name))
		return
	}
	resp := FileTreeResponse{Tree: nonNil(nodes)}
	if n := filetree.FirstFile(nodes, models.SkillFileName); n != nil {
		resp.Selected = n.FullPath
	}
	writeJSON(w, http.StatusOK, resp)
}

// Formats handles GET /api/formats.
//
//	@Summary		List the formatting kinds accepted by /sessions/{id}/format
//	@Tags			sessions
//	@Produce		json
//	@Security		BearerAuth
//	@Router			/formats [get]
func (h *Handler) Formats(w http.ResponseWriter, _ *http.Request) {
	kinds := editor.FormatKinds()
	out := make([]string, len(kinds))
	for i, k := range kinds {
		out[i] = string(k)
	}
	writeJSON(w, http.StatusOK, map[string][]string{"formats": out})
}

// PreviewFile handles GET /api/skills/{name}/files/*.
//
//	@Summary		Read one file of a skill, rendering Markdown
//	@Tags			skills
//	@Produce		json
//	@Param			name	path		string	true	"Skill name"
//	@Param			path	path		string	true	"File path inside the skill"
//	@Success		200		{object}	skillservice.FilePreview
//	@Failure		404		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/skills/{name}/files/{path} [get]
func (h *Handler) PreviewFile(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	path := filePath(r)
	if path == "" {
		writeJSON(w, http.StatusBadRequest, errorBody("path is required"))
		return
	}
	p, err := h.svc.PreviewFile(r.Context(), name, path)
	if err != nil {
		writeError(w, "preview file", err, slog.String("skill", name), slog.String("path", path))
		return
	}
	writeJSON(w, http.StatusOK, p)
}

// Search handles GET /api/search.
//
//	@Summary		Search skills by name, description and body
//	@Tags			search
//	@Produce		json
//	@Param			q		query		string	true	"Search query"
//	@Param			limit	query		int		false	"Max results"
//	@Success		200		{object}	SearchResponse
//	@Failure		400		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/search [get]
func (h *Handler) Search(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query().Get("q")
	if q == "" {
		writeJSON(w, http.StatusBadRequest, errorBody("query parameter 'q' is required"))
		return
	}
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	results, err := h.svc.Search(r.Context(), q, limit)
	if err != nil {
		writeError(w, "search", err, slog.String("query", q))
		return
	}
	writeJSON(w, http.StatusOK, SearchResponse{Results: results})
}

func nonNil[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	return s
}
