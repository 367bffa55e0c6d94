package editor

import (
	"fmt"
	"strings"
)

// FormatKind names a toolbar insertion.
type FormatKind string

const (
	FormatBold            FormatKind = "bold"
	FormatItalic          FormatKind = "italic"
	FormatCode            FormatKind = "code"
	FormatCodeBlock       FormatKind = "codeblock"
	FormatLink            FormatKind = "link"
	FormatH1              FormatKind = "h1"
	FormatH2              FormatKind = "h2"
	FormatH3              FormatKind = "h3"
	FormatList            FormatKind = "list"
	FormatRuleTemplate    FormatKind = "rule-template"
	FormatContextTemplate FormatKind = "context-template"
)

const ruleTemplate = `
## Rules

- Follow these coding patterns:
  - Use descriptive variable names
  - Add error handling for all async operations
  - Write tests for new functionality

## Examples

` + "```typescript\n// Example code here\n```\n"

const contextTemplate = `
## Context

This skill provides guidance for working with [technology/framework].

## Guidelines

1. **First guideline** - Description
2. **Second guideline** - Description
3. **Third guideline** - Description

## Anti-patterns

- Avoid doing X because...
- Don't use Y when...
`

type snippet struct {
	before, after string
}

var snippets = map[FormatKind]snippet{
	FormatBold:            {"**", "**"},
	FormatItalic:          {"_", "_"},
	FormatCode:            {"`", "`"},
	FormatCodeBlock:       {"\n```\n", "\n```\n"},
	FormatLink:            {"[", "](url)"},
	FormatH1:              {"\n# ", ""},
	FormatH2:              {"\n## ", ""},
	FormatH3:              {"\n### ", ""},
	FormatList:            {"\n- ", ""},
	FormatRuleTemplate:    {ruleTemplate, ""},
	FormatContextTemplate: {contextTemplate, ""},
}

// FormatKinds lists every supported insertion in toolbar order.
func FormatKinds() []FormatKind {
	return []FormatKind{
		FormatBold, FormatItalic, FormatCode, FormatCodeBlock, FormatLink,
		FormatH1, FormatH2, FormatH3, FormatList,
		FormatRuleTemplate, FormatContextTemplate,
	}
}

// ParseFormatKind resolves a kind name, ignoring case.
func ParseFormatKind(s string) (FormatKind, error) {
	k := FormatKind(strings.ToLower(strings.TrimSpace(s)))
	if _, ok := snippets[k]; !ok {
		return "", fmt.Errorf("editor: unknown format %q", s)
	}
	return k, nil
}

// Selection is a range of rune offsets into the body. Start == End is a
// plain cursor.
type Selection struct {
	Start int `json:"start"`
	End   int `json:"end"`
}

// clamp orders the range and fits it into a text of n runes.
func (s Selection) clamp(n int) Selection {
	if s.Start > s.End {
		s.Start, s.End = s.End, s.Start
	}
	s.Start = min(max(s.Start, 0), n)
	s.End = min(max(s.End, 0), n)
	return s
}

// Wrap inserts before and after around the selected text and returns the new
// text with the cursor placed after the selection and the inserted prefix.
func Wrap(text string, sel Selection, before, after string) (string, Selection) {
	runes := []rune(text)
	sel = sel.clamp(len(runes))
	selected := string(runes[sel.Start:sel.End])

	var b strings.Builder
	b.Grow(len(text) + len(before) + len(after))
	b.WriteString(string(runes[:sel.Start]))
	b.WriteString(before)
	b.WriteString(selected)
	b.WriteString(after)
	b.WriteString(string(runes[sel.End:]))

	pos := sel.Start + runeLen(before) + runeLen(selected)
	return b.String(), Selection{Start: pos, End: pos}
}

// Replace substitutes the selection with s and places the cursor after it.
func Replace(text string, sel Selection, s string) (string, Selection) {
	runes := []rune(text)
	sel = sel.clamp(len(runes))
	out := string(runes[:sel.Start]) + s + string(runes[sel.End:])
	pos := sel.Start + runeLen(s)
	return out, Selection{Start: pos, End: pos}
}

// Apply performs a toolbar insertion on text.
func Apply(kind FormatKind, text string, sel Selection) (string, Selection, error) {
	sn, ok := snippets[kind]
	if !ok {
		return text, sel, fmt.Errorf("editor: unknown format %q", kind)
	}
	out, cur := Wrap(text, sel, sn.before, sn.after)
	return out, cur, nil
}

func runeLen(s string) int {
	return len([]rune(s))
}
