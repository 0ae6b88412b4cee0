package sanitizer

import (
	"strings"
	"unicode"
)

// MaxNoteLength caps operator notes such as cancellation reasons, in runes.
const MaxNoteLength = 500

func TrimAndNormalize(s string) string {
	s = strings.TrimSpace(s)

	if s == "" {
		return ""
	}

	var result strings.Builder
	var lastWasSpace bool

	for _, r := range s {
		if unicode.IsSpace(r) {
			if !lastWasSpace {
				result.WriteRune(' ')
				lastWasSpace = true
			}
		} else if unicode.IsControl(r) {
			continue
		} else {
			result.WriteRune(r)
			lastWasSpace = false
		}
	}

	return result.String()
}

// NormalizeNote collapses whitespace and truncates to MaxNoteLength runes.
func NormalizeNote(note string) string {
	note = TrimAndNormalize(note)
	runes := []rune(note)
	if len(runes) <= MaxNoteLength {
		return note
	}
	return strings.TrimSpace(string(runes[:MaxNoteLength]))
}

// NormalizeRegionCode trims and upper-cases an administrative region code.
// Codes containing anything but letters, digits or '-' normalize to "".
func NormalizeRegionCode(code string) string {
	code = strings.ToUpper(strings.TrimSpace(code))
	for _, r := range code {
		if !unicode.IsLetter(r) && !unicode.IsDigit(r) && r != '-' {
			return ""
		}
	}
	return code
}

// NormalizeIdentifier trims an opaque caller-supplied id such as a user id.
func NormalizeIdentifier(id string) string {
	return strings.TrimFunc(id, func(r rune) bool {
		return unicode.IsSpace(r) || unicode.IsControl(r)
	})
}
