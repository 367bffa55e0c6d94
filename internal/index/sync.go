package index

import (
	"log/slog"

	"github.com/starford/skilldesk/internal/frontmatter"
	"github.com/starford/skilldesk/internal/storage"
)

// Sync walks the skills root and brings the catalogue up to date:
//   - new/changed SKILL.md files are parsed and upserted
//   - skills removed from disk are deleted from the catalogue
func Sync(db SkillIndex, store storage.Provider, logger *slog.Logger) error {
	metas, err := store.ListSkills()
	if err != nil {
		return err
	}

	checksums, err := db.AllChecksums()
	if err != nil {
		return err
	}

	disk := make(map[string]struct{}, len(metas))
	for _, m := range metas {
		disk[m.Name] = struct{}{}

		if checksums[m.Name] == m.Checksum {
			continue
		}

		data, err := store.ReadSkill(m.Name)
		if err != nil {
			logger.Warn("sync: read failed", slog.String("skill", m.Name), slog.String("error", err.Error()))
			continue
		}
		if err := IndexSkill(db, m.Name, data); err != nil {
			logger.Warn("sync: index failed", slog.String("skill", m.Name), slog.String("error", err.Error()))
		} else {
			logger.Debug("sync: indexed", slog.String("skill", m.Name))
		}
	}

	for n := range checksums {
		if _, ok := disk[n]; !ok {
			if err := db.DeleteSkill(n); err != nil {
				logger.Warn("sync: delete failed", slog.String("skill", n), slog.String("error", err.Error()))
			} else {
				logger.Debug("sync: removed stale", slog.String("skill", n))
			}
		}
	}

	return nil
}

// IndexSkill parses a raw SKILL.md and upserts it.
func IndexSkill(db SkillIndex, name string, data []byte) error {
	row, body := RowFromDocument(name, data)
	return db.UpsertSkill(row, body)
}

// RowFromDocument builds a catalogue row from a raw SKILL.md. The header's
// name field is informational; the directory name is authoritative.
func RowFromDocument(name string, data []byte) (SkillRow, string) {
	doc := frontmatter.Parse(string(data))
	return SkillRow{
		Name:        name,
		Description: doc.Metadata.Get("description"),
		Language:    doc.Metadata.Get("language"),
		Framework:   doc.Metadata.Get("framework"),
		Checksum:    storage.Checksum(data),
	}, doc.Body
}
