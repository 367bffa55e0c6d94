package api

import (
	"github.com/starford/skilldesk/internal/editor"
	"github.com/starford/skilldesk/internal/filetree"
	"github.com/starford/skilldesk/internal/index"
	"github.com/starford/skilldesk/internal/models"
	"github.com/starford/skilldesk/internal/scrollsync"
	"github.com/starford/skilldesk/internal/session"
	"github.com/starford/skilldesk/internal/skillservice"
)

// SkillDetail is the full skill response type (aliased from the domain layer).
type SkillDetail = skillservice.SkillDetail

// SkillListResponse wraps paginated skill listings.
type SkillListResponse struct {
	Skills []models.Skill `json:"skills" validate:"required"`
	Total  int            `json:"total" example:"42" validate:"required"`
}

// FileTreeResponse is the tree of a skill directory plus the file opened by
// default (SKILL.md when present).
type FileTreeResponse struct {
	Tree     []*filetree.Node `json:"tree"`
	Selected string           `json:"selected,omitempty"`
}

// SearchResponse wraps search results.
type SearchResponse struct {
	Results []index.SearchResult `json:"results" validate:"required"`
}

// OpenSessionRequest opens an editor on a skill.
type OpenSessionRequest struct {
	Skill string `json:"skill" example:"go-testing" validate:"required"`
}

// SessionResponse describes a session and its editor state.
type SessionResponse struct {
	Session session.Info `json:"session"`
	State   editor.State `json:"state"`
	// Selection is the cursor after a format or tab insertion.
	Selection *editor.Selection `json:"selection,omitempty"`
	Cursor    *CursorResponse   `json:"cursor,omitempty"`
	// Changed is false when undo/redo hit a history boundary.
	Changed *bool `json:"changed,omitempty"`
}

// CursorResponse locates a rune offset of the body as 1-based line and column.
type CursorResponse struct {
	Offset int `json:"offset"`
	Line   int `json:"line"`
	Column int `json:"column"`
}

// SetBodyRequest replaces the document body.
type SetBodyRequest struct {
	Body string `json:"body"`
}

// SetMetadataRequest updates one header field.
type SetMetadataRequest struct {
	Key   string `json:"key" example:"description" validate:"required"`
	Value string `json:"value" example:"Testing patterns"`
}

// FormatRequest applies a toolbar insertion.
type FormatRequest struct {
	Kind      string           `json:"kind" example:"bold" validate:"required"`
	Selection editor.Selection `json:"selection"`
}

// TabRequest inserts the indent unit.
type TabRequest struct {
	Selection editor.Selection `json:"selection"`
}

// KeyRequest is a key press, given either as a shortcut string
// ("ctrl+shift+z") or as separate fields.
type KeyRequest struct {
	Shortcut string `json:"shortcut,omitempty" example:"ctrl+s"`
	editor.Key
}

// KeyResponse reports whether the key was consumed.
type KeyResponse struct {
	Handled bool            `json:"handled"`
	Action  editor.Action   `json:"action,omitempty"`
	Session SessionResponse `json:"result"`
}

// ScrollRequest reports pane geometry after a scroll in source.
type ScrollRequest struct {
	Source  string             `json:"source" example:"editor" validate:"required"`
	Editor  scrollsync.Metrics `json:"editor"`
	Preview scrollsync.Metrics `json:"preview"`
}

// PreviewResponse is the rendered body of a session.
type PreviewResponse struct {
	HTML string `json:"html"`
}

// DiffResponse holds the unsaved changes of a session as a unified diff.
type DiffResponse struct {
	Diff  string `json:"diff"`
	Dirty bool   `json:"dirty"`
}
