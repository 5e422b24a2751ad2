package terminal

import (
	"strings"
	"unicode/utf8"
)

// KeyEvent is one logical keypress or one completed bracketed paste.
// Values are never mutated after the decoder emits them.
type KeyEvent struct {
	Name     string
	Ctrl     bool
	Meta     bool
	Shift    bool
	Sequence []byte
	// Paste marks a completed bracketed paste; Sequence holds the
	// normalized text.
	Paste bool
}

// String renders the key in bubbletea style ("ctrl+c", "shift+return")
// so events can be matched with bubbles/key bindings.
func (k KeyEvent) String() string {
	if k.Paste {
		return "paste"
	}
	var b strings.Builder
	if k.Ctrl {
		b.WriteString("ctrl+")
	}
	if k.Meta {
		b.WriteString("alt+")
	}
	if k.Shift {
		b.WriteString("shift+")
	}
	b.WriteString(k.Name)
	return b.String()
}

// Text returns what the key inserts into a text field, or "" for keys
// that only act as commands.
func (k KeyEvent) Text() string {
	if k.Paste {
		return string(k.Sequence)
	}
	if k.Ctrl || k.Meta {
		return ""
	}
	if k.Name == "space" {
		return " "
	}
	if utf8.RuneCountInString(k.Name) != 1 {
		return ""
	}
	if k.Shift {
		return strings.ToUpper(k.Name)
	}
	return k.Name
}

// Plain reports whether no modifier is set.
func (k KeyEvent) Plain() bool {
	return !k.Ctrl && !k.Meta && !k.Shift && !k.Paste
}

// IsEnter reports a carriage return or line feed key, any modifiers.
func (k KeyEvent) IsEnter() bool {
	return !k.Paste && (k.Name == "return" || k.Name == "enter")
}

func cloneBytes(b []byte) []byte {
	if b == nil {
		return nil
	}
	out := make([]byte, len(b))
	copy(out, b)
	return out
}
