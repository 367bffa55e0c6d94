// Package testutil provides shared test helpers for setting up skill roots,
// catalogue databases and services.
package testutil

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/starford/skilldesk/internal/index"
	"github.com/starford/skilldesk/internal/models"
	"github.com/starford/skilldesk/internal/skillservice"
	"github.com/starford/skilldesk/internal/storage"
)

// TestDB creates a temporary SQLite catalogue that is closed on cleanup.
func TestDB(t *testing.T) *index.DB {
	t.Helper()
	db, err := index.Open(filepath.Join(t.TempDir(), "skilldesk-test.db"))
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

// TestSkills creates a temporary skills root with a storage.Provider.
func TestSkills(t *testing.T, opts ...storage.FSOption) (string, *storage.FS) {
	t.Helper()
	root := t.TempDir()
	store, err := storage.NewFS(root, opts...)
	if err != nil {
		t.Fatal(err)
	}
	return root, store
}

// WriteFile creates root/skill/rel with content, making parent directories.
func WriteFile(t *testing.T, root, skill, rel, content string) {
	t.Helper()
	p := filepath.Join(root, skill, filepath.FromSlash(rel))
	if err := os.MkdirAll(filepath.Dir(p), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(p, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
}

// WriteSkill creates a skill directory holding a SKILL.md.
func WriteSkill(t *testing.T, root, name, content string) {
	t.Helper()
	WriteFile(t, root, name, models.SkillFileName, content)
}

// Env bundles a skills root, its catalogue and a synced service.
type Env struct {
	Root    string
	Store   *storage.FS
	DB      *index.DB
	Service *skillservice.Service
}

// NewEnv creates an Env, writes skills (name → SKILL.md content) and syncs
// the catalogue.
func NewEnv(t *testing.T, skills map[string]string) *Env {
	t.Helper()
	root, store := TestSkills(t)
	for name, content := range skills {
		WriteSkill(t, root, name, content)
	}
	db := TestDB(t)
	if err := index.Sync(db, store, Logger()); err != nil {
		t.Fatal(err)
	}
	return &Env{Root: root, Store: store, DB: db, Service: skillservice.NewService(store, db)}
}
