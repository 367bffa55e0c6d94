// Package frontmatter converts skill documents between their raw text form
// (an optional "---" delimited key: value header followed by a Markdown body)
// and an editable {metadata, body} pair.
package frontmatter

import (
	"fmt"
	"strings"

	"github.com/starford/skilldesk/internal/apperr"
)

// Delimiter opens and closes the header block.
const Delimiter = "---"

// PreferredKeys are written first, in this order, when a header is serialized.
var PreferredKeys = []string{"name", "description", "language", "framework"}

// Document is a parsed skill document.
type Document struct {
	Metadata *Metadata `json:"metadata"`
	Body     string    `json:"body"`
}

// Equal reports whether d and other hold the same metadata and body.
// Metadata key order is not significant.
func (d Document) Equal(other Document) bool {
	return d.Body == other.Body && d.Metadata.Equal(other.Metadata)
}

// Parse splits raw into metadata and body. It never fails: a missing,
// unterminated or key-less header yields empty metadata and the whole input
// as body, so a document opening with a thematic break survives a save.
func Parse(raw string) Document {
	whole := Document{Metadata: NewMetadata(), Body: raw}

	first, rest, ok := cutLine(raw)
	if !ok || !isDelimiter(first) {
		return whole
	}

	meta := NewMetadata()
	headerLines := 0
	for {
		line, next, found := cutLine(rest)
		// The header holds at least one line before it can be closed.
		if headerLines > 0 && isDelimiter(line) {
			if meta.Len() == 0 {
				return whole
			}
			if !found {
				next = ""
			}
			return Document{Metadata: meta, Body: trimSeparator(next)}
		}
		if !found {
			return whole
		}
		parseHeaderLine(meta, line)
		headerLines++
		rest = next
	}
}

// Serialize renders metadata and body back to raw text. Values are trimmed
// the way Parse trims them; keys left empty are dropped, and without any
// remaining key the body is returned as is.
func Serialize(meta *Metadata, body string) string {
	lines := make([]string, 0, meta.Len())
	for _, k := range PreferredKeys {
		if v := strings.TrimSpace(meta.Get(k)); v != "" {
			lines = append(lines, k+": "+v)
		}
	}
	for _, k := range meta.Keys() {
		if isPreferred(k) {
			continue
		}
		if v := strings.TrimSpace(meta.Get(k)); v != "" {
			lines = append(lines, strings.TrimSpace(k)+": "+v)
		}
	}
	if len(lines) == 0 {
		return body
	}

	var b strings.Builder
	b.Grow(len(body) + 64)
	b.WriteString(Delimiter)
	b.WriteByte('\n')
	b.WriteString(strings.Join(lines, "\n"))
	b.WriteByte('\n')
	b.WriteString(Delimiter)
	b.WriteString("\n\n")
	b.WriteString(body)
	return b.String()
}

// SerializeDocument is Serialize for a Document.
func SerializeDocument(d Document) string {
	return Serialize(d.Metadata, d.Body)
}

// ValidateField reports whether key and value can be written as one header
// line and read back unchanged. Errors wrap apperr.ErrInvalidInput.
func ValidateField(key, value string) error {
	k := strings.TrimSpace(key)
	switch {
	case k == "":
		return fmt.Errorf("frontmatter: empty key: %w", apperr.ErrInvalidInput)
	case strings.ContainsAny(k, ":\r\n"):
		return fmt.Errorf("frontmatter: key %q contains a colon or line break: %w", k, apperr.ErrInvalidInput)
	case strings.ContainsAny(value, "\r\n"):
		return fmt.Errorf("frontmatter: value of %q contains a line break: %w", k, apperr.ErrInvalidInput)
	}
	return nil
}

func parseHeaderLine(meta *Metadata, line string) {
	idx := strings.Index(line, ":")
	if idx <= 0 {
		return
	}
	key := strings.TrimSpace(line[:idx])
	if key == "" {
		return
	}
	meta.Set(key, strings.TrimSpace(line[idx+1:]))
}

// cutLine returns the first line of s (without its newline) and the text after
// it. found is false when s contains no newline.
func cutLine(s string) (line, rest string, found bool) {
	line, rest, found = strings.Cut(s, "\n")
	return line, rest, found
}

func isDelimiter(line string) bool {
	return strings.TrimRight(line, " \t\r") == Delimiter
}

// trimSeparator drops the single blank line written between header and body.
func trimSeparator(s string) string {
	switch {
	case strings.HasPrefix(s, "\r\n"):
		return s[2:]
	case strings.HasPrefix(s, "\n"):
		return s[1:]
	}
	return s
}

func isPreferred(key string) bool {
	for _, k := range PreferredKeys {
		if k == key {
			return true
		}
	}
	return false
}
