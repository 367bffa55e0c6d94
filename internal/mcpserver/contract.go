package mcpserver

// SkillFormatContract describes the SKILL.md format that LLM consumers
// should follow when updating skills.
const SkillFormatContract = `# Skill Format Contract

Every skill is a directory under the skills root holding a ` + "`SKILL.md`" + ` plus any
supporting files (scripts, references, examples).

## Structure

` + "```" + `markdown
---
name: go-testing                    # REQUIRED – matches the directory name
description: Table-driven tests     # REQUIRED – one line, shown in listings
language: go                        # OPTIONAL – primary language
framework: stdlib                   # OPTIONAL – primary framework
---

Body text in standard Markdown.
` + "```" + `

## Rules

1. **The header is optional but recommended.** When present, the ` + "`---`" + ` fences must
   be the first line of the file and the header must hold at least one line.
2. **Header lines are ` + "`key: value`" + `.** Only the first colon separates key and value,
   so values may contain colons (URLs). Lists and nested YAML are not supported.
3. **Empty values are dropped** when the document is saved.
4. **Key order on save** is name, description, language, framework, then any other keys
   in their original order.
5. **One blank line** separates the closing fence from the body.
6. **Encoding** is UTF-8. The directory name is authoritative; renaming a skill is done
   on disk, not through the header.

## Example

` + "```" + `markdown
---
name: react-hooks
description: Patterns for custom React hooks
language: typescript
framework: react
---

## Rules

- Prefix custom hooks with ` + "`use`" + `
- Keep effects idempotent

## Anti-patterns

- Don't call hooks conditionally
` + "```" + `
`
