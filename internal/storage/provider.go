// Package storage defines the skills directory abstraction.
package storage

import "github.com/starford/skilldesk/internal/models"

// Provider is the interface for skill file operations. Skills are addressed
// by their directory name under the skills root.
type Provider interface {
	// ListSkills returns metadata for every directory holding a SKILL.md.
	ListSkills() ([]models.SkillMetadata, error)
	// ReadSkill returns the raw SKILL.md of a skill.
	ReadSkill(name string) ([]byte, error)
	// WriteSkill atomically replaces the SKILL.md of an existing skill.
	WriteSkill(name string, content []byte) error
	// ListFiles returns every file and directory inside a skill.
	ListFiles(name string) ([]models.FileEntry, error)
	// ReadFile returns one file of a skill (path relative to the skill dir).
	ReadFile(name, path string) ([]byte, error)
}
