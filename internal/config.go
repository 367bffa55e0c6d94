package internal

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"

	"github.com/starford/skilldesk/internal/history"
	"github.com/starford/skilldesk/internal/scrollsync"
	"github.com/starford/skilldesk/internal/session"
	"github.com/starford/skilldesk/internal/storage"
)

// Auth modes.
const (
	AuthModeDisabled = "disabled"
	AuthModeToken    = "token"
)

// Config represents the application configuration.
type Config struct {
	App    ApplicationConfig `yaml:"app"`
	Skills SkillsConfig      `yaml:"skills"`
	SQLite SQLiteConfig      `yaml:"sqlite"`
	Auth   AuthConfig        `yaml:"auth"`
	Editor EditorConfig      `yaml:"editor"`
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	if err := c.App.Validate(); err != nil {
		return err
	}
	if err := c.Skills.Validate(); err != nil {
		return err
	}
	if err := c.SQLite.Validate(); err != nil {
		return err
	}
	if err := c.Auth.Validate(); err != nil {
		return err
	}
	return c.Editor.Validate()
}

// ApplicationConfig holds application-level configuration.
type ApplicationConfig struct {
	LogLevel slog.Level `yaml:"log_level"`
	HTTP     HTTPConfig `yaml:"http"`
}

// Validate validates the application configuration.
func (c *ApplicationConfig) Validate() error {
	return c.HTTP.Validate()
}

// HTTPConfig holds HTTP server configuration.
type HTTPConfig struct {
	Port int `yaml:"port"`
}

// Address returns HTTP server address.
func (c *HTTPConfig) Address() string {
	return fmt.Sprintf(":%d", c.Port)
}

// Validate validates the HTTP configuration.
func (c *HTTPConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Port, validation.Required, validation.Min(1), validation.Max(65535)),
	)
}

// SkillsConfig locates the skills root and controls which files are listed.
type SkillsConfig struct {
	Path        string   `yaml:"path"`
	Ignore      []string `yaml:"ignore"`
	MaxFileSize int64    `yaml:"max_file_size"`
}

// Validate validates the skills configuration and expands a leading "~".
func (c *SkillsConfig) Validate() error {
	if err := validation.ValidateStruct(c,
		validation.Field(&c.Path, validation.Required),
		validation.Field(&c.MaxFileSize, validation.Min(int64(0))),
	); err != nil {
		return err
	}
	p, err := ExpandHome(c.Path)
	if err != nil {
		return fmt.Errorf("skills: %w", err)
	}
	c.Path = p
	return nil
}

// StorageOptions converts the configuration into storage.FS options.
func (c *SkillsConfig) StorageOptions() []storage.FSOption {
	opts := []storage.FSOption{storage.WithMaxFileSize(c.MaxFileSize)}
	if len(c.Ignore) > 0 {
		opts = append(opts, storage.WithIgnore(c.Ignore...))
	}
	return opts
}

// SQLiteConfig holds SQLite database configuration.
type SQLiteConfig struct {
	Path string `yaml:"path"`
}

// Validate validates the SQLite configuration.
func (c *SQLiteConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Path, validation.Required),
	)
}

// AuthConfig holds authentication configuration.
//
// Mode controls how authentication is enforced:
//   - "disabled" (default): no authentication required, suitable for local use.
//   - "token": Bearer token authentication; Token must be non-empty.
type AuthConfig struct {
	Mode  string `yaml:"mode"`
	Token string `yaml:"token"`
}

// Validate validates the auth configuration.
func (c *AuthConfig) Validate() error {
	if c.Mode == "" {
		c.Mode = AuthModeDisabled
	}
	if err := validation.ValidateStruct(c,
		validation.Field(&c.Mode, validation.Required, validation.In(AuthModeDisabled, AuthModeToken)),
	); err != nil {
		return err
	}
	if c.Mode == AuthModeToken && c.Token == "" {
		return fmt.Errorf("auth: mode is %q but token is empty", AuthModeToken)
	}
	return nil
}

// AuthEnabled returns true when authentication is active.
func (c *AuthConfig) AuthEnabled() bool {
	return c.Mode == AuthModeToken
}

// EditorConfig tunes the editing sessions.
type EditorConfig struct {
	HistoryLimit    int           `yaml:"history_limit"`
	HistoryDebounce time.Duration `yaml:"history_debounce"`
	FrameInterval   time.Duration `yaml:"frame_interval"`
	Indent          string        `yaml:"indent"`
}

// Validate validates the editor configuration.
func (c *EditorConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.HistoryLimit, validation.Min(2)),
		validation.Field(&c.HistoryDebounce, validation.Min(time.Duration(0))),
		validation.Field(&c.FrameInterval, validation.Min(time.Duration(0))),
	)
}

// Session converts the configuration for session.NewManager.
func (c *EditorConfig) Session() session.Config {
	return session.Config{
		HistoryLimit:  c.HistoryLimit,
		HistoryDelay:  c.HistoryDebounce,
		FrameInterval: c.FrameInterval,
		Indent:        c.Indent,
	}
}

// ExpandHome replaces a leading "~" with the user's home directory.
func ExpandHome(p string) (string, error) {
	if p != "~" && !strings.HasPrefix(p, "~/") {
		return p, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("expand %q: %w", p, err)
	}
	return filepath.Join(home, strings.TrimPrefix(p, "~")), nil
}

// NewDefaultConfig returns a new Config with sensible default values.
func NewDefaultConfig() *Config {
	return &Config{
		App: ApplicationConfig{
			LogLevel: slog.LevelInfo,
			HTTP: HTTPConfig{
				Port: 8080,
			},
		},
		Skills: SkillsConfig{
			Path:        "~/.agents/skills",
			Ignore:      []string{".git/**", "node_modules/**", "**/.DS_Store"},
			MaxFileSize: storage.DefaultMaxFileSize,
		},
		SQLite: SQLiteConfig{
			Path: "./skilldesk.db",
		},
		Auth: AuthConfig{
			Mode: AuthModeDisabled,
		},
		Editor: EditorConfig{
			HistoryLimit:    history.DefaultCapacity,
			HistoryDebounce: history.DefaultDelay,
			FrameInterval:   scrollsync.DefaultFrameInterval,
			Indent:          "  ",
		},
	}
}
