// Package normalize canonicalizes individual patient field values into
// comparison-safe and storage-safe forms. Every rule is pure, total and
// idempotent: normalize(normalize(x)) == normalize(x).
package normalize

import (
	"fmt"
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

var stripAccents = transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)

// Phone strips every non-digit character, retaining a single leading "+".
func Phone(s string) string {
	s = strings.TrimSpace(s)
	var b strings.Builder
	for i, r := range s {
		if r == '+' && i == 0 {
			b.WriteRune(r)
			continue
		}
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	return b.String()
}

// Email trims and lower-cases.
func Email(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

// Identifier trims and upper-cases a national identifier.
func Identifier(s string) string {
	return strings.ToUpper(strings.TrimSpace(s))
}

// Date parses ISO YYYY-MM-DD or DD/MM/YYYY and returns canonical YYYY-MM-DD.
// Unparseable input yields "".
func Date(s string) string {
	s = strings.TrimSpace(s)
	if s == "" {
		return ""
	}
	// Strip a trailing time component from exports like "2021-05-02 10:30".
	if i := strings.IndexAny(s, " T"); i > 0 {
		s = s[:i]
	}

	if parts := strings.Split(s, "-"); len(parts) == 3 {
		if d := assembleDate(parts[0], parts[1], parts[2]); d != "" {
			return d
		}
	}
	if parts := strings.Split(s, "/"); len(parts) == 3 {
		if d := assembleDate(parts[2], parts[1], parts[0]); d != "" {
			return d
		}
	}
	return ""
}

// assembleDate validates year/month/day strings and formats canonically.
func assembleDate(ys, ms, ds string) string {
	y, okY := atoi(ys)
	m, okM := atoi(ms)
	d, okD := atoi(ds)
	if !okY || !okM || !okD {
		return ""
	}
	if y <= 1900 || m < 1 || m > 12 || d < 1 || d > 31 {
		return ""
	}
	return fmt.Sprintf("%04d-%02d-%02d", y, m, d)
}

// NameKey builds the comparison form of a name: diacritics stripped,
// non-letters removed, lower-cased, internal whitespace collapsed to a
// single space. Display values keep their original spelling; only this
// key is scrubbed.
func NameKey(s string) string {
	flat, _, _ := transform.String(stripAccents, s)
	flat = strings.ToLower(flat)

	var b strings.Builder
	space := false
	for _, r := range flat {
		switch {
		case unicode.IsLetter(r):
			if space && b.Len() > 0 {
				b.WriteByte(' ')
			}
			space = false
			b.WriteRune(r)
		case unicode.IsSpace(r):
			space = true
		}
	}
	return b.String()
}

// IdentityKey is the fast equality probe used before fuzzy comparison:
// normalized given name + surname + canonical birthdate. Empty if any
// component is missing.
func IdentityKey(givenName, surname, birthDate string) string {
	g := NameKey(givenName)
	s := NameKey(surname)
	d := Date(birthDate)
	if g == "" || s == "" || d == "" {
		return ""
	}
	return g + "|" + s + "|" + d
}

// FreeText scrubs artifacts left by bad exports: NUL and non-breaking
// space characters, surrounding whitespace, and stray leading/trailing
// quote characters.
func FreeText(s string) string {
	s = strings.Map(func(r rune) rune {
		if r == 0 || r == ' ' {
			return -1
		}
		return r
	}, s)
	s = strings.TrimSpace(s)
	s = strings.Trim(s, `"'`)
	return strings.TrimSpace(s)
}

// Sex maps assorted gender spellings to "M", "F" or "".
func Sex(s string) string {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "M", "MALE", "UOMO", "H", "HOMME":
		return "M"
	case "F", "FEMALE", "DONNA", "FEMME", "W":
		return "F"
	}
	return ""
}

func atoi(s string) (int, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, false
	}
	n := 0
	for _, r := range s {
		if r < '0' || r > '9' {
			return 0, false
		}
		n = n*10 + int(r-'0')
	}
	return n, true
}

