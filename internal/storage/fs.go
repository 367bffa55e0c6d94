package storage

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/bmatcuk/doublestar/v4"

	"github.com/starford/skilldesk/internal/apperr"
	"github.com/starford/skilldesk/internal/models"
)

// DefaultMaxFileSize bounds the content returned by ListFiles per file.
const DefaultMaxFileSize int64 = 1 << 20

// FSOption configures an FS provider.
type FSOption func(*FS)

// WithIgnore skips files and directories whose skill-relative slash path
// matches any of the doublestar patterns (e.g. ".git/**", "**/.DS_Store").
func WithIgnore(patterns ...string) FSOption {
	return func(f *FS) {
		f.ignore = append(f.ignore, patterns...)
	}
}

// WithMaxFileSize sets the largest file whose content ListFiles includes.
func WithMaxFileSize(n int64) FSOption {
	return func(f *FS) {
		if n > 0 {
			f.maxFileSize = n
		}
	}
}

// FS implements Provider backed by the local file system.
type FS struct {
	root        string // absolute path to the skills directory
	ignore      []string
	maxFileSize int64
}

// NewFS creates a new FS provider rooted at the given directory.
// The directory must already exist.
func NewFS(root string, opts ...FSOption) (*FS, error) {
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("storage: resolve root: %w", err)
	}
	info, err := os.Stat(abs)
	if err != nil {
		return nil, fmt.Errorf("storage: stat root: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("storage: root is not a directory: %s", abs)
	}
	f := &FS{root: abs, maxFileSize: DefaultMaxFileSize}
	for _, opt := range opts {
		opt(f)
	}
	for _, p := range f.ignore {
		if !doublestar.ValidatePattern(p) {
			return nil, fmt.Errorf("storage: invalid ignore pattern %q", p)
		}
	}
	return f, nil
}

// Root returns the absolute skills directory.
func (f *FS) Root() string {
	return f.root
}

// safePath resolves a relative path against the skills root and rejects
// any result that escapes it (directory traversal).
func (f *FS) safePath(rel string) (string, error) {
	if rel == "" {
		return f.root, nil
	}
	cleaned := filepath.Clean(filepath.FromSlash(rel))
	if filepath.IsAbs(cleaned) {
		return "", fmt.Errorf("storage: absolute paths not allowed: %s", rel)
	}
	joined := filepath.Join(f.root, cleaned)
	abs, err := filepath.Abs(joined)
	if err != nil {
		return "", fmt.Errorf("storage: resolve path: %w", err)
	}
	if !strings.HasPrefix(abs, f.root+string(os.PathSeparator)) && abs != f.root {
		return "", fmt.Errorf("storage: path escapes skills root: %s", rel)
	}
	return abs, nil
}

// skillDir resolves the directory of a single skill. Names are one path
// segment.
func (f *FS) skillDir(name string) (string, error) {
	if name == "" || name == "." || name == ".." || strings.ContainsAny(name, `/\`) {
		return "", fmt.Errorf("storage: invalid skill name %q", name)
	}
	return f.safePath(name)
}

// ListSkills returns every direct subdirectory of the root that holds a
// SKILL.md file.
func (f *FS) ListSkills() ([]models.SkillMetadata, error) {
	entries, err := os.ReadDir(f.root)
	if err != nil {
		return nil, fmt.Errorf("storage: list skills: %w", err)
	}
	var out []models.SkillMetadata
	for _, e := range entries {
		if strings.HasPrefix(e.Name(), ".") {
			continue
		}
		// Skills are frequently symlinked in from agent directories.
		dir := filepath.Join(f.root, e.Name())
		info, err := os.Stat(dir)
		if err != nil || !info.IsDir() {
			continue
		}
		p := filepath.Join(dir, models.SkillFileName)
		st, err := os.Stat(p)
		if err != nil || st.IsDir() {
			continue
		}
		data, err := os.ReadFile(p)
		if err != nil {
			return nil, fmt.Errorf("storage: read %s: %w", e.Name(), err)
		}
		out = append(out, models.SkillMetadata{
			Name:      e.Name(),
			Checksum:  Checksum(data),
			UpdatedAt: st.ModTime(),
		})
	}
	return out, nil
}

// ReadSkill returns the raw bytes of a skill's SKILL.md.
func (f *FS) ReadSkill(name string) ([]byte, error) {
	dir, err := f.skillDir(name)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(filepath.Join(dir, models.SkillFileName))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("storage: skill %s: %w", name, apperr.ErrNotFound)
		}
		return nil, fmt.Errorf("storage: read %s: %w", name, err)
	}
	return data, nil
}

// WriteSkill atomically replaces SKILL.md: tmp file → fsync → rename.
// The skill must already exist.
func (f *FS) WriteSkill(name string, content []byte) error {
	dir, err := f.skillDir(name)
	if err != nil {
		return err
	}
	target := filepath.Join(dir, models.SkillFileName)
	if _, err := os.Stat(target); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("storage: skill %s: %w", name, apperr.ErrNotFound)
		}
		return fmt.Errorf("storage: stat %s: %w", name, err)
	}
	// Write through a symlinked skill directory to its real location.
	if resolved, err := filepath.EvalSymlinks(target); err == nil {
		target = resolved
	}
	return writeAtomic(target, content)
}

func writeAtomic(target string, content []byte) error {
	dir := filepath.Dir(target)
	tmp, err := os.CreateTemp(dir, ".skilldesk-tmp-*")
	if err != nil {
		return fmt.Errorf("storage: create temp: %w", err)
	}
	tmpName := tmp.Name()

	success := false
	defer func() {
		if !success {
			_ = tmp.Close()
			_ = os.Remove(tmpName)
		}
	}()

	if _, err := tmp.Write(content); err != nil {
		return fmt.Errorf("storage: write temp: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		return fmt.Errorf("storage: fsync: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("storage: close temp: %w", err)
	}
	if err := os.Chmod(tmpName, 0o644); err != nil {
		return fmt.Errorf("storage: chmod: %w", err)
	}
	if err := os.Rename(tmpName, target); err != nil {
		return fmt.Errorf("storage: rename: %w", err)
	}
	success = true
	return nil
}

// ListFiles walks a skill directory and returns its files and directories
// with slash-separated relative paths. File content is included for files up
// to the configured size limit.
func (f *FS) ListFiles(name string) ([]models.FileEntry, error) {
	dir, err := f.skillDir(name)
	if err != nil {
		return nil, err
	}
	if resolved, err := filepath.EvalSymlinks(dir); err == nil {
		dir = resolved
	}
	if _, err := os.Stat(dir); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("storage: skill %s: %w", name, apperr.ErrNotFound)
		}
		return nil, fmt.Errorf("storage: stat %s: %w", name, err)
	}

	var out []models.FileEntry
	err = filepath.WalkDir(dir, func(p string, d fs.DirEntry, walkErr error) error {
		if walkErr != nil {
			return walkErr
		}
		rel, err := filepath.Rel(dir, p)
		if err != nil || rel == "." {
			return nil
		}
		rel = filepath.ToSlash(rel)
		if f.ignored(rel) {
			if d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		info, err := d.Info()
		if err != nil {
			return err
		}
		entry := models.FileEntry{Path: rel, IsDir: d.IsDir()}
		if !d.IsDir() {
			entry.Size = info.Size()
			if info.Mode().IsRegular() && info.Size() <= f.maxFileSize {
				data, err := os.ReadFile(p)
				if err != nil {
					return err
				}
				entry.Content = string(data)
			}
		}
		out = append(out, entry)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("storage: list files %s: %w", name, err)
	}
	return out, nil
}

// ReadFile returns a single file inside a skill directory.
func (f *FS) ReadFile(name, path string) ([]byte, error) {
	dir, err := f.skillDir(name)
	if err != nil {
		return nil, err
	}
	if f.ignored(path) {
		return nil, fmt.Errorf("storage: %s/%s: %w", name, path, apperr.ErrNotFound)
	}
	abs, err := f.safePath(name + "/" + path)
	if err != nil {
		return nil, err
	}
	if !strings.HasPrefix(abs, dir+string(os.PathSeparator)) {
		return nil, fmt.Errorf("storage: path escapes skill %s: %s", name, path)
	}
	data, err := os.ReadFile(abs)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("storage: %s/%s: %w", name, path, apperr.ErrNotFound)
		}
		return nil, fmt.Errorf("storage: read %s/%s: %w", name, path, err)
	}
	return data, nil
}

func (f *FS) ignored(rel string) bool {
	for _, p := range f.ignore {
		if ok, _ := doublestar.Match(p, rel); ok {
			return true
		}
	}
	return false
}

// Checksum returns the hex-encoded SHA-256 digest of data.
func Checksum(data []byte) string {
	h := sha256.Sum256(data)
	return hex.EncodeToString(h[:])
}
