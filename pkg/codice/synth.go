// Package codice builds, validates and extracts the national identifier
// used on patient records: a 16-character alphanumeric personal code. When
// source data carries no authoritative identifier, a deterministic pseudo
// identifier is synthesized from the identity fields, with a bounded
// collision-avoidance loop against the patient store.
package codice

import (
	"context"
	"fmt"
	"hash/fnv"
	"log/slog"
	"strings"

	"github.com/hazyhaar/medrecon/pkg/normalize"
	"github.com/hazyhaar/medrecon/pkg/store"
)

// monthLetters maps month 1-12 to its code letter.
const monthLetters = "ABCDEHLMPRST"

// Config carries the explicit synthesizer settings; no process-wide state
// is consulted.
type Config struct {
	// LocalityLetter is the fixed placeholder locality code used in
	// synthesized identifiers (source exports carry no birth commune
	// registry code). Default "Z".
	LocalityLetter string `yaml:"locality_letter"`
	// MaxAttempts bounds the collision-avoidance loop. Default 30.
	MaxAttempts int `yaml:"max_attempts"`
}

func (c Config) withDefaults() Config {
	if c.LocalityLetter == "" {
		c.LocalityLetter = "Z"
	}
	c.LocalityLetter = strings.ToUpper(c.LocalityLetter)[:1]
	if c.MaxAttempts <= 0 {
		c.MaxAttempts = 30
	}
	return c
}

// Subject is the set of fields a pseudo identifier is derived from.
type Subject struct {
	GivenName string
	Surname   string
	BirthDate string // canonical YYYY-MM-DD, or ""
	Sex       string // "M", "F" or ""
}

// Synthesizer generates pseudo identifiers. It is stateless apart from its
// configuration; the only I/O is one store lookup per collision attempt.
type Synthesizer struct {
	cfg    Config
	logger *slog.Logger
}

// New returns a Synthesizer with the given configuration.
func New(cfg Config, logger *slog.Logger) *Synthesizer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Synthesizer{cfg: cfg.withDefaults(), logger: logger}
}

// Generate builds a pseudo identifier for subject, querying patients to
// avoid colliding with an existing record that names a different person.
// On a collision only the 3-digit serial segment is re-derived (with the
// attempt counter folded into the hash) and the check letter recomputed.
// After MaxAttempts the last candidate is accepted and logged; local
// uniqueness is advisory, not guaranteed (known limitation).
func (s *Synthesizer) Generate(ctx context.Context, patients store.PatientStore, subject Subject) (string, error) {
	stem := s.stem(subject)

	var code string
	for attempt := 0; attempt < s.cfg.MaxAttempts; attempt++ {
		serial := serialSegment(subject, attempt)
		first15 := stem + serial
		check, ok := CheckLetter(first15)
		if !ok {
			return "", fmt.Errorf("synthesize identifier: malformed stem %q", first15)
		}
		code = first15 + string(check)

		existing, err := patients.GetByIdentifier(ctx, code)
		if err == store.ErrNotFound {
			return code, nil
		}
		if err != nil {
			return "", fmt.Errorf("identifier collision lookup: %w", err)
		}
		if sameSubject(existing, subject) {
			// Same person already on file: reusing the code is the point.
			return code, nil
		}
	}
	s.logger.Warn("identifier collision retries exhausted, accepting last candidate",
		"attempts", s.cfg.MaxAttempts, "code", code)
	return code, nil
}

// stem builds the first 12 characters: surname code, given-name code,
// year digits, month letter, day digits. Deterministic for a subject.
func (s *Synthesizer) stem(subject Subject) string {
	var b strings.Builder
	b.WriteString(surnameCode(subject.Surname))
	b.WriteString(givenNameCode(subject.GivenName))

	year, month, day := birthParts(subject)
	female := strings.EqualFold(subject.Sex, "F")
	if female {
		day += 40
	}
	fmt.Fprintf(&b, "%02d", year%100)
	b.WriteByte(monthLetters[month-1])
	fmt.Fprintf(&b, "%02d", day)
	b.WriteString(s.cfg.LocalityLetter)
	return b.String()
}

// birthParts extracts year/month/day from the subject's birthdate, or
// hash-derived fallbacks when it is unknown: year 60-99 (the 0-39 hash
// range offset by 60, outside plausible two-digit birth years), month and
// day from the same hash.
func birthParts(subject Subject) (year, month, day int) {
	d := subject.BirthDate
	if len(d) == 10 {
		y, okY := atoi(d[0:4])
		m, okM := atoi(d[5:7])
		dd, okD := atoi(d[8:10])
		if okY && okM && okD && m >= 1 && m <= 12 && dd >= 1 && dd <= 31 {
			return y, m, dd
		}
	}
	h := hashString(subject.Surname + "|" + subject.GivenName)
	return int(h%40) + 60, int(h/40%12) + 1, int(h/480%28) + 1
}

// surnameCode packs the first three consonants of the surname, then vowels,
// padded with X.
func surnameCode(surname string) string {
	cons, vow := splitLetters(surname)
	return pack3(cons + vow)
}

// givenNameCode follows the personal-code convention for first names: with
// four or more consonants the 1st, 3rd and 4th are taken, otherwise
// consonants then vowels, padded with X.
func givenNameCode(name string) string {
	cons, vow := splitLetters(name)
	if len(cons) >= 4 {
		return string([]byte{cons[0], cons[2], cons[3]})
	}
	return pack3(cons + vow)
}

// splitLetters returns the upper-cased ASCII consonants and vowels of a
// name, diacritics folded, everything else dropped.
func splitLetters(s string) (consonants, vowels string) {
	flat := strings.ToUpper(normalize.NameKey(s))
	var cons, vow strings.Builder
	for _, r := range flat {
		if r < 'A' || r > 'Z' {
			continue
		}
		switch r {
		case 'A', 'E', 'I', 'O', 'U':
			vow.WriteRune(r)
		default:
			cons.WriteRune(r)
		}
	}
	return cons.String(), vow.String()
}

func pack3(letters string) string {
	for len(letters) < 3 {
		letters += "X"
	}
	return letters[:3]
}

// serialSegment derives the 3-digit serial from a hash of the identifying
// fields; attempt > 0 folds the counter in to escape collisions.
func serialSegment(subject Subject, attempt int) string {
	seed := subject.Surname + "|" + subject.GivenName + "|" + subject.BirthDate
	if attempt > 0 {
		seed = fmt.Sprintf("%s|%d", seed, attempt)
	}
	return fmt.Sprintf("%03d", hashString(seed)%1000)
}

// sameSubject reports whether an existing record names the same person as
// the subject, by comparison keys.
func sameSubject(p *store.Patient, subject Subject) bool {
	return normalize.NameKey(p.GivenName) == normalize.NameKey(subject.GivenName) &&
		normalize.NameKey(p.Surname) == normalize.NameKey(subject.Surname)
}

func hashString(s string) uint32 {
	h := fnv.New32a()
	h.Write([]byte(s))
	return h.Sum32()
}

func atoi(s string) (int, bool) {
	n := 0
	for _, r := range s {
		if r < '0' || r > '9' {
			return 0, false
		}
		n = n*10 + int(r-'0')
	}
	return n, true
}
