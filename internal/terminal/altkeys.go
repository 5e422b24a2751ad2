package terminal

import "unicode"

// optionChars maps what macOS terminals send for Option+key (US layout)
// when "Option as Meta" is off. Uppercase targets mean Option+Shift.
// Dead keys (´ ˆ ˜ ¨) are left out: they compose with the next key.
var optionChars = map[rune]rune{
	'å': 'a', '∫': 'b', 'ç': 'c', '∂': 'd', 'ƒ': 'f', '©': 'g', '˙': 'h',
	'∆': 'j', '˚': 'k', '¬': 'l', 'µ': 'm', 'ø': 'o', 'π': 'p', 'œ': 'q',
	'®': 'r', 'ß': 's', '†': 't', '√': 'v', '∑': 'w', '≈': 'x', '¥': 'y',
	'Ω': 'z',

	'Å': 'A', 'ı': 'B', 'Ç': 'C', 'Î': 'D', 'Ï': 'F', '˝': 'G', 'Ó': 'H',
	'Ô': 'J', '\uF8FF': 'K', 'Ò': 'L', 'Â': 'M', 'Ø': 'O', '∏': 'P',
	'Œ': 'Q', '‰': 'R', 'Í': 'S', 'ˇ': 'T', '◊': 'V', '„': 'W', '˛': 'X',
	'Á': 'Y', '¸': 'Z',

	'¡': '1', '™': '2', '£': '3', '¢': '4', '∞': '5', '§': '6', '¶': '7',
	'•': '8', 'ª': '9', 'º': '0',
	'–': '-', '≠': '=', '“': '[', '‘': ']', '«': '\\', '…': ';', 'æ': '\'',
	'≤': ',', '≥': '.', '÷': '/',
}

func optionKey(r rune) (KeyEvent, bool) {
	target, ok := optionChars[r]
	if !ok {
		return KeyEvent{}, false
	}
	ev := KeyEvent{Name: string(target), Meta: true}
	if unicode.IsUpper(target) {
		ev.Name = string(unicode.ToLower(target))
		ev.Shift = true
	}
	return ev, true
}
