// Package skillservice coordinates skill storage, the catalogue index and
// rendering. It is the persistence collaborator of editor surfaces.
package skillservice

import (
	"context"
	"fmt"
	"path"
	"time"

	"github.com/starford/skilldesk/internal/apperr"
	"github.com/starford/skilldesk/internal/filetree"
	"github.com/starford/skilldesk/internal/frontmatter"
	"github.com/starford/skilldesk/internal/index"
	"github.com/starford/skilldesk/internal/models"
	"github.com/starford/skilldesk/internal/preview"
	"github.com/starford/skilldesk/internal/storage"
)

// SkillDetail is the full representation of a skill document.
type SkillDetail struct {
	models.Skill
	Metadata *frontmatter.Metadata `json:"metadata"`
	Body     string                `json:"body"`
	Content  string                `json:"content"`
}

// FilePreview is a single skill file prepared for display.
type FilePreview struct {
	Path     string         `json:"path"`
	Size     int64          `json:"size"`
	Markdown bool           `json:"markdown"`
	Content  string         `json:"content"`
	HTML     string         `json:"html,omitempty"`
	Header   map[string]any `json:"header,omitempty"`
}

// SavedFunc is called after a document was written and indexed.
type SavedFunc func(name string)

// Service coordinates storage and index operations.
type Service struct {
	store    storage.Provider
	db       index.SkillIndex
	renderer *preview.Renderer
	onSaved  SavedFunc
}

// NewService creates a new skill service.
func NewService(store storage.Provider, db index.SkillIndex) *Service {
	return &Service{store: store, db: db, renderer: preview.NewRenderer()}
}

// OnSaved registers fn to run after every successful SaveDocument.
func (s *Service) OnSaved(fn SavedFunc) {
	s.onSaved = fn
}

// LoadDocument returns the raw SKILL.md of a skill.
func (s *Service) LoadDocument(_ context.Context, name string) (string, error) {
	data, err := s.store.ReadSkill(name)
	if err != nil {
		return "", err
	}
	return string(data), nil
}

// SaveDocument writes the raw SKILL.md of an existing skill and re-indexes it.
func (s *Service) SaveDocument(_ context.Context, name, raw string) error {
	data := []byte(raw)
	if err := s.store.WriteSkill(name, data); err != nil {
		return err
	}
	if err := index.IndexSkill(s.db, name, data); err != nil {
		return fmt.Errorf("skillservice: index %s: %w", name, err)
	}
	if s.onSaved != nil {
		s.onSaved(name)
	}
	return nil
}

// UpdateSkill normalises raw through the frontmatter codec and saves it.
// A non-empty ifMatch must equal the checksum of the stored document.
func (s *Service) UpdateSkill(ctx context.Context, name, raw, ifMatch string) (*SkillDetail, error) {
	existing, err := s.store.ReadSkill(name)
	if err != nil {
		return nil, err
	}
	if ifMatch != "" && ifMatch != storage.Checksum(existing) {
		return nil, apperr.ErrConflict
	}
	normalized := frontmatter.SerializeDocument(frontmatter.Parse(raw))
	if err := s.SaveDocument(ctx, name, normalized); err != nil {
		return nil, err
	}
	return s.GetSkill(ctx, name)
}

// GetSkill reads and parses a skill document.
func (s *Service) GetSkill(_ context.Context, name string) (*SkillDetail, error) {
	data, err := s.store.ReadSkill(name)
	if err != nil {
		return nil, err
	}
	row, body := index.RowFromDocument(name, data)
	detail := &SkillDetail{
		Skill:    skillFromRow(row),
		Metadata: frontmatter.Parse(string(data)).Metadata,
		Body:     body,
		Content:  string(data),
	}
	if indexed, err := s.db.GetSkill(name); err == nil {
		detail.UpdatedAt = indexed.UpdatedAt
	}
	return detail, nil
}

// ListSkills returns a page of catalogued skills.
func (s *Service) ListSkills(_ context.Context, q index.ListQuery) ([]models.Skill, int, error) {
	rows, total, err := s.db.ListSkills(q)
	if err != nil {
		return nil, 0, err
	}
	items := make([]models.Skill, len(rows))
	for i, r := range rows {
		items[i] = skillFromRow(r)
	}
	return items, total, nil
}

// Search delegates catalogue search to the index.
func (s *Service) Search(_ context.Context, query string, limit int) ([]index.SearchResult, error) {
	res, err := s.db.Search(query, limit)
	if err != nil {
		return nil, err
	}
	return nonNilSlice(res), nil
}

// ListFiles returns the flat entry list of a skill directory.
func (s *Service) ListFiles(_ context.Context, name string) ([]models.FileEntry, error) {
	files, err := s.store.ListFiles(name)
	if err != nil {
		return nil, err
	}
	return nonNilSlice(files), nil
}

// FileTree returns the hierarchical file tree of a skill directory.
func (s *Service) FileTree(ctx context.Context, name string) ([]*filetree.Node, error) {
	files, err := s.ListFiles(ctx, name)
	if err != nil {
		return nil, err
	}
	return filetree.Build(Entries(files)), nil
}

// PreviewFile reads one file of a skill, rendering Markdown to HTML.
func (s *Service) PreviewFile(_ context.Context, name, rel string) (*FilePreview, error) {
	data, err := s.store.ReadFile(name, rel)
	if err != nil {
		return nil, err
	}
	out := &FilePreview{
		Path:     path.Clean(rel),
		Size:     int64(len(data)),
		Markdown: preview.IsMarkdown(rel),
		Content:  string(data),
	}
	if out.Markdown {
		out.HTML, out.Header, err = s.renderer.RenderFile(data)
		if err != nil {
			return nil, err
		}
	}
	return out, nil
}

// RenderBody renders a document body for the preview pane.
func (s *Service) RenderBody(body string) (string, error) {
	return s.renderer.Render(body)
}

// Entries converts storage entries to tree builder input.
func Entries(files []models.FileEntry) []filetree.Entry {
	out := make([]filetree.Entry, len(files))
	for i, f := range files {
		out[i] = filetree.Entry{Path: f.Path, IsDir: f.IsDir, Size: f.Size}
	}
	return out
}

func skillFromRow(r index.SkillRow) models.Skill {
	updated := r.UpdatedAt
	if updated.IsZero() {
		updated = time.Now()
	}
	return models.Skill{
		Name:        r.Name,
		Description: r.Description,
		Language:    r.Language,
		Framework:   r.Framework,
		Checksum:    r.Checksum,
		UpdatedAt:   updated,
	}
}

func nonNilSlice[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	return s
}
