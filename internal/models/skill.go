// Package models defines the domain types for skilldesk.
package models

import "time"

// SkillFileName is the primary document of every skill directory.
const SkillFileName = "SKILL.md"

// Skill is a catalogued skill with the header fields of its SKILL.md.
type Skill struct {
	Name        string    `json:"name"`
	Description string    `json:"description"`
	Language    string    `json:"language,omitempty"`
	Framework   string    `json:"framework,omitempty"`
	Checksum    string    `json:"checksum"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// SkillMetadata is the lightweight record returned by storage listings.
type SkillMetadata struct {
	Name      string    `json:"name"`
	Checksum  string    `json:"checksum"`
	UpdatedAt time.Time `json:"updated_at"`
}

// FileEntry is one file or directory inside a skill directory. Path is slash
// separated and relative to the skill directory.
type FileEntry struct {
	Path    string `json:"path"`
	IsDir   bool   `json:"isDirectory"`
	Size    int64  `json:"size"`
	Content string `json:"content,omitempty"`
}
