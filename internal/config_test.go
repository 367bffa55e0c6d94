package internal

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	pkgconfig "github.com/starford/skilldesk/pkg/config"
)

func TestAuthConfig_DisabledMode(t *testing.T) {
	cfg := AuthConfig{Mode: "disabled"}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("disabled mode should pass: %v", err)
	}
	if cfg.AuthEnabled() {
		t.Error("disabled mode should not be enabled")
	}
}

func TestAuthConfig_EmptyModeDefaultsDisabled(t *testing.T) {
	cfg := AuthConfig{}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("empty mode should default to disabled: %v", err)
	}
	if cfg.Mode != AuthModeDisabled {
		t.Errorf("mode = %q, want %q", cfg.Mode, AuthModeDisabled)
	}
}

func TestAuthConfig_TokenMode(t *testing.T) {
	cfg := AuthConfig{Mode: "token", Token: "mysecret"}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("token mode with token should pass: %v", err)
	}
	if !cfg.AuthEnabled() {
		t.Error("token mode should be enabled")
	}

	cfg = AuthConfig{Mode: "token"}
	err := cfg.Validate()
	if err == nil || !strings.Contains(err.Error(), "token is empty") {
		t.Fatalf("empty token error = %v", err)
	}
}

func TestAuthConfig_InvalidMode(t *testing.T) {
	cfg := AuthConfig{Mode: "magic", Token: "x"}
	if err := cfg.Validate(); err == nil {
		t.Fatal("invalid mode should fail validation")
	}
}

func TestDefaultConfigValid(t *testing.T) {
	cfg := NewDefaultConfig()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("default config: %v", err)
	}
	if strings.HasPrefix(cfg.Skills.Path, "~") {
		t.Errorf("skills path not expanded: %q", cfg.Skills.Path)
	}
	s := cfg.Editor.Session()
	if s.HistoryLimit != 100 || s.Indent != "  " {
		t.Errorf("session config = %+v", s)
	}
}

func TestFullConfig_ValidationCalled(t *testing.T) {
	cfg := NewDefaultConfig()
	cfg.Auth.Mode = "token"
	if err := cfg.Validate(); err == nil {
		t.Fatal("full config validate should catch auth error")
	}

	cfg = NewDefaultConfig()
	cfg.Editor.HistoryLimit = 1
	if err := cfg.Validate(); err == nil {
		t.Fatal("history limit of 1 should fail")
	}

	cfg = NewDefaultConfig()
	cfg.Skills.Path = ""
	if err := cfg.Validate(); err == nil {
		t.Fatal("empty skills path should fail")
	}
}

func TestExpandHome(t *testing.T) {
	home, err := os.UserHomeDir()
	if err != nil {
		t.Skip("no home directory")
	}
	got, err := ExpandHome("~/.agents/skills")
	if err != nil {
		t.Fatal(err)
	}
	if want := filepath.Join(home, ".agents/skills"); got != want {
		t.Errorf("ExpandHome = %q, want %q", got, want)
	}
	if got, _ := ExpandHome("/srv/skills"); got != "/srv/skills" {
		t.Errorf("absolute path changed: %q", got)
	}
	if got, _ := ExpandHome("~other/x"); got != "~other/x" {
		t.Errorf("~user form changed: %q", got)
	}
}

func TestLoadYAMLWithEnv(t *testing.T) {
	t.Setenv("SKILLDESK_TEST_TOKEN", "s3cret")
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	yaml := `app:
  http:
    port: 9090
skills:
  path: ` + dir + `
  ignore: ["dist/**"]
auth:
  mode: token
  token: ${SKILLDESK_TEST_TOKEN}
editor:
  history_debounce: 250ms
  indent: "    "
`
	if err := os.WriteFile(path, []byte(yaml), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg := NewDefaultConfig()
	if err := pkgconfig.Load(path, cfg); err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.App.HTTP.Port != 9090 || cfg.Auth.Token != "s3cret" {
		t.Errorf("config = %+v", cfg)
	}
	if len(cfg.Skills.Ignore) != 1 || cfg.Skills.Ignore[0] != "dist/**" {
		t.Errorf("ignore = %v", cfg.Skills.Ignore)
	}
	if cfg.Editor.HistoryDebounce != 250*time.Millisecond || cfg.Editor.Indent != "    " {
		t.Errorf("editor = %+v", cfg.Editor)
	}
	if cfg.SQLite.Path != "./skilldesk.db" {
		t.Errorf("default sqlite path lost: %q", cfg.SQLite.Path)
	}
}
