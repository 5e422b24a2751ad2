package terminal

import "unicode/utf8"

const esc = 0x1b

type tokenStatus int

const (
	// tokenComplete: data[:n] is one key report.
	tokenComplete tokenStatus = iota
	// tokenIncomplete: data ends inside a report; wait for more bytes.
	tokenIncomplete
	// tokenMalformed: data[:n] is a corrupt prefix to discard.
	tokenMalformed
)

// scanToken finds the extent of the first key report in data. It never
// interprets the report, only delimits it.
func scanToken(data []byte) (int, tokenStatus) {
	if len(data) == 0 {
		return 0, tokenIncomplete
	}
	if data[0] != esc {
		return scanRune(data)
	}
	if len(data) == 1 {
		return 0, tokenIncomplete
	}

	switch data[1] {
	case '[':
		return scanCSI(data)
	case 'O':
		if len(data) < 3 {
			return 0, tokenIncomplete
		}
		if isFinalByte(data[2]) {
			return 3, tokenComplete
		}
		return resync(data, 2), tokenMalformed
	case esc:
		// ESC ESC ... is Alt wrapped around another report (macOS
		// Option+arrow), or a double Escape press.
		if len(data) == 2 {
			return 0, tokenIncomplete
		}
		if data[2] != '[' && data[2] != 'O' {
			return 2, tokenComplete
		}
		n, status := scanToken(data[1:])
		switch status {
		case tokenComplete:
			return n + 1, tokenComplete
		case tokenIncomplete:
			return 0, tokenIncomplete
		default:
			return 1, tokenMalformed
		}
	}

	// ESC followed by a plain key is Alt+key.
	n, status := scanRune(data[1:])
	if status != tokenComplete {
		return 0, status
	}
	return n + 1, tokenComplete
}

// scanCSI delimits ESC [ params intermediates final. A byte outside the
// CSI grammar before the final byte marks the report corrupt.
func scanCSI(data []byte) (int, tokenStatus) {
	for i := 2; i < len(data); i++ {
		b := data[i]
		switch {
		case b >= 0x30 && b <= 0x3f, b >= 0x20 && b <= 0x2f:
			continue
		case isFinalByte(b):
			return i + 1, tokenComplete
		default:
			return resync(data, i), tokenMalformed
		}
	}
	return 0, tokenIncomplete
}

func scanRune(data []byte) (int, tokenStatus) {
	if data[0] < utf8.RuneSelf {
		return 1, tokenComplete
	}
	if !utf8.FullRune(data) {
		return 0, tokenIncomplete
	}
	_, size := utf8.DecodeRune(data)
	return size, tokenComplete
}

func isFinalByte(b byte) bool {
	return b >= 0x40 && b <= 0x7e
}

// resync returns how many bytes of a corrupt report to discard: up to
// the next ESC when one follows, otherwise up to bad, the first byte that
// broke the grammar, so ordinary typing after it survives.
func resync(data []byte, bad int) int {
	for i := 1; i < len(data); i++ {
		if data[i] == esc {
			return i
		}
	}
	return bad
}
