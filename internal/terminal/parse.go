package terminal

import (
	"strconv"
	"strings"
	"unicode"
	"unicode/utf8"
)

type parseResult int

const (
	parsed parseResult = iota
	// ignored reports are valid but carry no keypress (key release,
	// bare modifier keys).
	ignored
	unknown
)

const (
	focusIn    = "\x1b[I"
	focusOut   = "\x1b[O"
	pasteStart = "\x1b[200~"
	pasteEnd   = "\x1b[201~"
)

// xterm and Kitty encode modifiers as 1 + bitmask.
const (
	modShift = 1 << iota
	modAlt
	modCtrl
	modSuper
	modHyper
	modMeta
)

var ss3Keys = map[byte]string{
	'A': "up", 'B': "down", 'C': "right", 'D': "left",
	'H': "home", 'F': "end", 'M': "return",
	'P': "f1", 'Q': "f2", 'R': "f3", 'S': "f4",
}

var csiLetterKeys = map[byte]string{
	'A': "up", 'B': "down", 'C': "right", 'D': "left",
	'H': "home", 'F': "end", 'E': "clear",
	'P': "f1", 'Q': "f2", 'R': "f3", 'S': "f4",
}

var tildeKeys = map[int]string{
	1: "home", 2: "insert", 3: "delete", 4: "end", 5: "pageup", 6: "pagedown",
	7: "home", 8: "end",
	11: "f1", 12: "f2", 13: "f3", 14: "f4", 15: "f5",
	17: "f6", 18: "f7", 19: "f8", 20: "f9", 21: "f10", 23: "f11", 24: "f12",
}

// Kitty functional key codes from the private use area.
var kittyKeys = map[int]string{
	9: "tab", 13: "return", 27: "escape", 32: "space", 127: "backspace",
	57358: "capslock", 57359: "scrolllock", 57360: "numlock",
	57361: "printscreen", 57362: "pause", 57363: "menu",
	57376: "f13", 57377: "f14", 57378: "f15", 57379: "f16",
	57399: "0", 57400: "1", 57401: "2", 57402: "3", 57403: "4",
	57404: "5", 57405: "6", 57406: "7", 57407: "8", 57408: "9",
	57409: ".", 57410: "/", 57411: "*", 57412: "-", 57413: "+",
	57414: "return", 57415: "=",
	57417: "left", 57418: "right", 57419: "up", 57420: "down",
	57421: "pageup", 57422: "pagedown", 57423: "home", 57424: "end",
	57425: "insert", 57426: "delete",
}

func isKittyModifierKey(code int) bool {
	return code >= 57441 && code <= 57452
}

// parseEscape interprets one complete ESC-prefixed report.
func parseEscape(tok []byte, optionAsMeta bool) (KeyEvent, parseResult) {
	seq := cloneBytes(tok)
	if len(tok) < 2 {
		return KeyEvent{Name: "escape", Sequence: seq}, parsed
	}

	switch tok[1] {
	case '[':
		ev, res := parseCSI(tok)
		ev.Sequence = seq
		return ev, res
	case 'O':
		if name, ok := ss3Keys[tok[2]]; ok {
			return KeyEvent{Name: name, Sequence: seq}, parsed
		}
		return KeyEvent{Sequence: seq}, unknown
	case '\r', '\n':
		// Terminals that cannot report Shift+Enter can be configured to
		// send ESC CR instead.
		return KeyEvent{Name: "return", Shift: true, Sequence: seq}, parsed
	case esc:
		if len(tok) == 2 {
			return KeyEvent{Name: "escape", Meta: true, Sequence: seq}, parsed
		}
		inner, res := parseEscape(tok[1:], optionAsMeta)
		inner.Meta = true
		inner.Sequence = seq
		return inner, res
	}

	ev := parsePlain(tok[1:], optionAsMeta)
	ev.Meta = true
	ev.Sequence = seq
	return ev, parsed
}

func parseCSI(tok []byte) (KeyEvent, parseResult) {
	final := tok[len(tok)-1]
	body := string(tok[2 : len(tok)-1])
	if body != "" && strings.ContainsAny(body[:1], "<=>?") {
		// Private-marker reports: mouse, device attributes, Kitty
		// capability replies. Not keys.
		return KeyEvent{}, unknown
	}
	params := strings.Split(body, ";")

	switch {
	case final == 'u':
		return parseKitty(params)
	case final == '~':
		return parseTilde(params)
	case final == 'Z':
		return KeyEvent{Name: "tab", Shift: true}, parsed
	}

	name, ok := csiLetterKeys[final]
	if !ok {
		return KeyEvent{}, unknown
	}
	ev := KeyEvent{Name: name}
	if len(params) >= 2 {
		applyModifiers(&ev, subParam(params[1], 0))
	}
	return ev, parsed
}

// parseKitty handles CSI keycode[:alternates] ; modifiers[:event] [; text] u.
func parseKitty(params []string) (KeyEvent, parseResult) {
	code, err := strconv.Atoi(subParamString(params[0], 0))
	if err != nil {
		return KeyEvent{}, unknown
	}
	mods, eventType := 1, 1
	if len(params) >= 2 {
		mods = subParam(params[1], 0)
		if et := subParam(params[1], 1); et > 0 {
			eventType = et
		}
	}
	if eventType == 3 || isKittyModifierKey(code) {
		return KeyEvent{}, ignored
	}

	ev, ok := kittyKeyName(code)
	if !ok {
		return KeyEvent{}, unknown
	}
	applyModifiers(&ev, mods)
	return ev, parsed
}

func kittyKeyName(code int) (KeyEvent, bool) {
	if name, ok := kittyKeys[code]; ok {
		return KeyEvent{Name: name}, true
	}
	if code < 32 || code > unicode.MaxRune || !utf8.ValidRune(rune(code)) {
		return KeyEvent{}, false
	}
	r := rune(code)
	if r >= 'A' && r <= 'Z' {
		return KeyEvent{Name: string(unicode.ToLower(r)), Shift: true}, true
	}
	return KeyEvent{Name: string(r)}, true
}

func parseTilde(params []string) (KeyEvent, parseResult) {
	code, err := strconv.Atoi(subParamString(params[0], 0))
	if err != nil {
		return KeyEvent{}, unknown
	}
	// xterm modifyOtherKeys: CSI 27 ; mods ; code ~
	if code == 27 && len(params) >= 3 {
		key, convErr := strconv.Atoi(params[2])
		if convErr != nil {
			return KeyEvent{}, unknown
		}
		ev, ok := kittyKeyName(key)
		if !ok {
			return KeyEvent{}, unknown
		}
		applyModifiers(&ev, subParam(params[1], 0))
		return ev, parsed
	}
	name, ok := tildeKeys[code]
	if !ok {
		return KeyEvent{}, unknown
	}
	ev := KeyEvent{Name: name}
	if len(params) >= 2 {
		applyModifiers(&ev, subParam(params[1], 0))
	}
	return ev, parsed
}

func applyModifiers(ev *KeyEvent, mods int) {
	if mods <= 1 {
		return
	}
	bits := mods - 1
	if bits&modShift != 0 {
		ev.Shift = true
	}
	if bits&(modAlt|modMeta) != 0 {
		ev.Meta = true
	}
	if bits&modCtrl != 0 {
		ev.Ctrl = true
	}
}

func subParamString(param string, index int) string {
	parts := strings.Split(param, ":")
	if index >= len(parts) {
		return ""
	}
	return parts[index]
}

func subParam(param string, index int) int {
	n, err := strconv.Atoi(subParamString(param, index))
	if err != nil {
		return 0
	}
	return n
}

// parsePlain interprets a single byte or rune that is not ESC-prefixed.
func parsePlain(tok []byte, optionAsMeta bool) KeyEvent {
	seq := cloneBytes(tok)
	b := tok[0]
	switch {
	case b == '\r':
		return KeyEvent{Name: "return", Sequence: seq}
	case b == '\n':
		return KeyEvent{Name: "enter", Sequence: seq}
	case b == '\t':
		return KeyEvent{Name: "tab", Sequence: seq}
	case b == 0x7f || b == 0x08:
		return KeyEvent{Name: "backspace", Sequence: seq}
	case b == esc:
		return KeyEvent{Name: "escape", Sequence: seq}
	case b == 0:
		return KeyEvent{Name: "space", Ctrl: true, Sequence: seq}
	case b < 0x1b:
		return KeyEvent{Name: string(rune('a' + b - 1)), Ctrl: true, Sequence: seq}
	case b < 0x20:
		return KeyEvent{Name: string(rune('\\' + b - 0x1c)), Ctrl: true, Sequence: seq}
	case b == ' ':
		return KeyEvent{Name: "space", Sequence: seq}
	}

	r, _ := utf8.DecodeRune(tok)
	if r == utf8.RuneError {
		return KeyEvent{Name: string(tok), Sequence: seq}
	}
	if optionAsMeta {
		if ev, ok := optionKey(r); ok {
			ev.Sequence = seq
			return ev
		}
	}
	if r >= 'A' && r <= 'Z' {
		return KeyEvent{Name: string(unicode.ToLower(r)), Shift: true, Sequence: seq}
	}
	return KeyEvent{Name: string(r), Sequence: seq}
}
