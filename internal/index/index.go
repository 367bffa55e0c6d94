package index

// SkillIndex defines the catalogue operations consumers depend on.
type SkillIndex interface {
	UpsertSkill(r SkillRow, body string) error
	DeleteSkill(name string) error
	GetChecksum(name string) (string, error)
	GetSkill(name string) (*SkillRow, error)
	ListSkills(q ListQuery) ([]SkillRow, int, error)
	Search(query string, limit int) ([]SearchResult, error)
	AllChecksums() (map[string]string, error)
	Close() error
}

// Verify *DB satisfies SkillIndex at compile time.
var _ SkillIndex = (*DB)(nil)
