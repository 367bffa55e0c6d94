package editor

import (
	"fmt"
	"strings"
)

// Key is a key press as seen by the surface. Primary is the platform's
// command modifier (Ctrl or Cmd).
type Key struct {
	Name    string `json:"key"`
	Primary bool   `json:"primary"`
	Shift   bool   `json:"shift"`
}

// Action is what a key press resolved to.
type Action string

const (
	ActionNone Action = ""
	ActionSave Action = "save"
	ActionUndo Action = "undo"
	ActionRedo Action = "redo"
)

// Resolve maps k to a surface action.
func (k Key) Resolve() Action {
	if !k.Primary {
		return ActionNone
	}
	switch strings.ToLower(k.Name) {
	case "s":
		return ActionSave
	case "z":
		if k.Shift {
			return ActionRedo
		}
		return ActionUndo
	}
	return ActionNone
}

// String renders k as a shortcut like "mod+shift+z".
func (k Key) String() string {
	var parts []string
	if k.Primary {
		parts = append(parts, "mod")
	}
	if k.Shift {
		parts = append(parts, "shift")
	}
	return strings.Join(append(parts, strings.ToLower(k.Name)), "+")
}

// ParseShortcut parses "ctrl+s", "cmd+shift+z" or "mod+z".
func ParseShortcut(s string) (Key, error) {
	fields := strings.Split(strings.ToLower(strings.TrimSpace(s)), "+")
	var k Key
	for i, f := range fields {
		f = strings.TrimSpace(f)
		if i == len(fields)-1 {
			if f == "" {
				return Key{}, fmt.Errorf("editor: shortcut %q has no key", s)
			}
			k.Name = f
			break
		}
		switch f {
		case "ctrl", "control", "cmd", "command", "meta", "mod":
			k.Primary = true
		case "shift":
			k.Shift = true
		default:
			return Key{}, fmt.Errorf("editor: unknown modifier %q in %q", f, s)
		}
	}
	return k, nil
}
