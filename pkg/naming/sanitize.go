package naming

import (
	"regexp"
	"unicode/utf8"
)

const maxNameBytes = 255

var (
	illegalRe  = regexp.MustCompile(`[/\?<>\\:\*\|"]`)
	controlRe  = regexp.MustCompile(`[\x{00}-\x{1f}\x{80}-\x{9f}]`)
	reservedRe = regexp.MustCompile(`^\.+$`)
)

// Sanitize strips characters that are illegal in a POSIX filename, control
// characters and the dot-only names. Windows device names such as "con" and
// trailing dots are kept. Distinct inputs may still sanitize to the same
// string.
func Sanitize(name string) string {
	name = illegalRe.ReplaceAllString(name, "")
	name = controlRe.ReplaceAllString(name, "")
	name = reservedRe.ReplaceAllString(name, "")
	return truncate(name, maxNameBytes)
}

// truncate cuts s to at most n bytes without splitting a rune.
func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	end := n
	for end > 0 && !utf8.RuneStart(s[end]) {
		end--
	}
	return s[:end]
}
