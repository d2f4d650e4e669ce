package utils

import (
	"strings"
	"unicode/utf8"
)

const elision = "[...]"

// TrimStrToRect keeps at most maxHeight lines of at most maxWidth runes,
// marking every cut with "[...]".
func TrimStrToRect(s string, maxHeight int, maxWidth int) string {
	if s == "" {
		return ""
	}
	lines := strings.Split(s, "\n")
	cut := len(lines) > maxHeight
	if cut {
		lines = lines[:maxHeight]
	}

	var b strings.Builder
	for i, line := range lines {
		if i > 0 {
			b.WriteByte('\n')
		}
		if utf8.RuneCountInString(line) > maxWidth {
			b.WriteString(string([]rune(line)[:maxWidth]))
			b.WriteString(elision)
		} else {
			b.WriteString(line)
		}
	}
	if cut {
		b.WriteByte('\n')
		b.WriteString(elision)
	}
	return b.String()
}
