package index

import (
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/starford/skilldesk/internal/apperr"
)

// SkillRow represents a row in the skills table.
type SkillRow struct {
	Name        string
	Description string
	Language    string
	Framework   string
	Checksum    string
	UpdatedAt   time.Time
}

// SearchResult represents one search hit.
type SearchResult struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	Snippet     string `json:"snippet"`
}

// ListQuery filters and pages ListSkills.
type ListQuery struct {
	Limit    int
	Offset   int
	Language string
	// Sort is one of "name" (default) or "updated_at".
	Sort string
}

// UpsertSkill inserts or replaces a catalogue row.
func (db *DB) UpsertSkill(r SkillRow, body string) error {
	if r.UpdatedAt.IsZero() {
		r.UpdatedAt = time.Now()
	}
	_, err := db.conn.Exec(`
		INSERT INTO skills (name, description, language, framework, checksum, body, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(name) DO UPDATE SET
			description = excluded.description,
			language    = excluded.language,
			framework   = excluded.framework,
			checksum    = excluded.checksum,
			body        = excluded.body,
			updated_at  = excluded.updated_at
	`, r.Name, r.Description, r.Language, r.Framework, r.Checksum, body, r.UpdatedAt.UTC())
	if err != nil {
		return fmt.Errorf("index: upsert skill: %w", err)
	}
	return nil
}

// DeleteSkill removes a catalogue row.
func (db *DB) DeleteSkill(name string) error {
	if _, err := db.conn.Exec(`DELETE FROM skills WHERE name = ?`, name); err != nil {
		return fmt.Errorf("index: delete skill: %w", err)
	}
	return nil
}

// GetChecksum returns the stored checksum for a skill, or empty string if not found.
func (db *DB) GetChecksum(name string) (string, error) {
	var cs string
	err := db.conn.QueryRow(`SELECT checksum FROM skills WHERE name = ?`, name).Scan(&cs)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("index: get checksum: %w", err)
	}
	return cs, nil
}

// GetSkill returns one catalogue row.
func (db *DB) GetSkill(name string) (*SkillRow, error) {
	var r SkillRow
	err := db.conn.QueryRow(`
		SELECT name, description, language, framework, checksum, updated_at
		FROM skills WHERE name = ?
	`, name).Scan(&r.Name, &r.Description, &r.Language, &r.Framework, &r.Checksum, &r.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperr.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("index: get skill: %w", err)
	}
	return &r, nil
}

// ListSkills returns a page of rows and the total number of matching rows.
func (db *DB) ListSkills(q ListQuery) ([]SkillRow, int, error) {
	if q.Limit <= 0 {
		q.Limit = 50
	}
	if q.Offset < 0 {
		q.Offset = 0
	}
	order := "name ASC"
	if q.Sort == "updated_at" {
		order = "updated_at DESC, name ASC"
	}

	where := ""
	var args []any
	if q.Language != "" {
		where = "WHERE language = ? COLLATE NOCASE"
		args = append(args, q.Language)
	}

	var total int
	if err := db.conn.QueryRow(`SELECT count(*) FROM skills `+where, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("index: count skills: %w", err)
	}

	rows, err := db.conn.Query(`
		SELECT name, description, language, framework, checksum, updated_at
		FROM skills `+where+`
		ORDER BY `+order+`
		LIMIT ? OFFSET ?
	`, append(args, q.Limit, q.Offset)...)
	if err != nil {
		return nil, 0, fmt.Errorf("index: list skills: %w", err)
	}
	defer rows.Close()

	var out []SkillRow
	for rows.Next() {
		var r SkillRow
		if err := rows.Scan(&r.Name, &r.Description, &r.Language, &r.Framework, &r.Checksum, &r.UpdatedAt); err != nil {
			return nil, 0, err
		}
		out = append(out, r)
	}
	return out, total, rows.Err()
}

// Search matches the query against name, description and body.
func (db *DB) Search(query string, limit int) ([]SearchResult, error) {
	if limit <= 0 {
		limit = 20
	}
	like := "%" + escapeLike(query) + "%"
	rows, err := db.conn.Query(`
		SELECT name, description, substr(body, 1, 200)
		FROM skills
		WHERE name LIKE ? ESCAPE '\' OR description LIKE ? ESCAPE '\' OR body LIKE ? ESCAPE '\'
		ORDER BY (name LIKE ? ESCAPE '\') DESC, name ASC
		LIMIT ?
	`, like, like, like, like, limit)
	if err != nil {
		return nil, fmt.Errorf("index: search: %w", err)
	}
	defer rows.Close()

	var out []SearchResult
	for rows.Next() {
		var r SearchResult
		if err := rows.Scan(&r.Name, &r.Description, &r.Snippet); err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// AllChecksums returns name → checksum for every row.
func (db *DB) AllChecksums() (map[string]string, error) {
	rows, err := db.conn.Query(`SELECT name, checksum FROM skills`)
	if err != nil {
		return nil, fmt.Errorf("index: all checksums: %w", err)
	}
	defer rows.Close()
	out := make(map[string]string)
	for rows.Next() {
		var n, cs string
		if err := rows.Scan(&n, &cs); err != nil {
			return nil, err
		}
		out[n] = cs
	}
	return out, rows.Err()
}

func escapeLike(s string) string {
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return r.Replace(s)
}
