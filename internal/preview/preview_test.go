package preview

import (
	"strings"
	"testing"
)

func TestRender(t *testing.T) {
	out, err := NewRenderer().Render("# Title\n\n- **bold** item\n")
	if err != nil {
		t.Fatal(err)
	}
	for _, want := range []string{`<h1 id="title">Title</h1>`, "<strong>bold</strong>"} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}
}

func TestRender_EscapesRawHTML(t *testing.T) {
	out, err := NewRenderer().Render("<script>alert(1)</script>\n")
	if err != nil {
		t.Fatal(err)
	}
	if strings.Contains(out, "<script>") {
		t.Errorf("raw HTML passed through: %s", out)
	}
}

func TestRenderFile_StripsFrontmatter(t *testing.T) {
	raw := []byte("---\nname: demo\ndescription: a skill\n---\n\n## Rules\n")
	out, fm, err := NewRenderer().RenderFile(raw)
	if err != nil {
		t.Fatal(err)
	}
	if strings.Contains(out, "name: demo") {
		t.Errorf("frontmatter rendered: %s", out)
	}
	if !strings.Contains(out, "Rules</h2>") {
		t.Errorf("heading missing: %s", out)
	}
	if fm["name"] != "demo" {
		t.Errorf("meta name = %v", fm["name"])
	}
}

func TestIsMarkdown(t *testing.T) {
	tests := map[string]bool{
		"SKILL.md":       true,
		"docs/Guide.MD":  true,
		"scripts/run.sh": false,
	}
	for name, want := range tests {
		if got := IsMarkdown(name); got != want {
			t.Errorf("IsMarkdown(%q) = %v, want %v", name, got, want)
		}
	}
}
