package codice

import (
	"regexp"
	"strings"
)

// identifierShape matches the personal-code layout anywhere in free text:
// six letters, two digits, a month letter, two digits, a locality letter
// plus three digits, and the check letter.
var identifierShape = regexp.MustCompile(`[A-Z]{6}[0-9]{2}[ABCDEHLMPRST][0-9]{2}[A-Z][0-9]{3}[A-Z]`)

// Extract scans free text (typically an exported notes column) for an
// embedded national identifier and returns the first candidate that
// passes the checksum. Falls back to the first shape match when none
// validates, since legacy systems stored hand-typed codes with bad check
// letters. Returns "" when no candidate is present.
func Extract(text string) string {
	candidates := identifierShape.FindAllString(strings.ToUpper(text), -1)
	if len(candidates) == 0 {
		return ""
	}
	for _, c := range candidates {
		if Valid(c) {
			return c
		}
	}
	return candidates[0]
}
