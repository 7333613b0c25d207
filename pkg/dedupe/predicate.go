package dedupe

import (
	"github.com/hazyhaar/medrecon/pkg/normalize"
	"github.com/hazyhaar/medrecon/pkg/store"
)

// candidate is a patient with its precomputed comparison keys; keys are
// derived once per record, not once per pair.
type candidate struct {
	patient store.Patient
	given   string
	surname string
}

func newCandidate(p store.Patient) candidate {
	return candidate{
		patient: p,
		given:   normalize.NameKey(p.GivenName),
		surname: normalize.NameKey(p.Surname),
	}
}

// match is the symmetric pairwise duplicate predicate:
//   - both normalized names equal; or
//   - surnames within edit distance 1 with given names equal and at least
//     3 characters long (and the symmetric given-name variant); or
//   - "given surname" of one equals "surname given" of the other.
func match(a, b candidate) bool {
	if a.given == "" && a.surname == "" {
		return false
	}
	if a.given == b.given && a.surname == b.surname {
		return true
	}
	if a.given == b.given && len(a.given) >= 3 && withinDistance(a.surname, b.surname, 1) {
		return true
	}
	if a.surname == b.surname && len(a.surname) >= 3 && withinDistance(a.given, b.given, 1) {
		return true
	}
	if a.given+" "+a.surname == b.surname+" "+b.given {
		return true
	}
	return false
}
