// Package merge resolves a duplicate cluster into a single record: it
// picks a merge target, computes per-field agreement, and executes the
// reparent/update/delete sequence against the stores.
package merge

import "github.com/hazyhaar/medrecon/pkg/store"

// trackedFields are the fields counted by the completeness score.
var trackedFields = []string{
	store.FieldGivenName,
	store.FieldSurname,
	store.FieldBirthDate,
	store.FieldBirthPlace,
	store.FieldEmail,
	store.FieldPhone,
	store.FieldAddress,
	store.FieldIdentifier,
}

// mergeableFields are the fields eligible for conflict resolution. Names
// stay with the target; the remaining tracked fields can be filled or
// disputed across the cluster.
var mergeableFields = []string{
	store.FieldIdentifier,
	store.FieldPhone,
	store.FieldEmail,
	store.FieldBirthDate,
	store.FieldBirthPlace,
	store.FieldAddress,
}

// fieldLabels are the human-readable names surfaced on conflict fields.
var fieldLabels = map[string]string{
	store.FieldIdentifier: "National identifier",
	store.FieldPhone:      "Phone",
	store.FieldEmail:      "Email",
	store.FieldBirthDate:  "Birth date",
	store.FieldBirthPlace: "Birth place",
	store.FieldAddress:    "Address",
}

// completeness counts the populated tracked fields on a record.
func completeness(p *store.Patient) int {
	score := 0
	for _, f := range trackedFields {
		if p.Field(f) != "" {
			score++
		}
	}
	return score
}

// pickTarget returns the index of the most complete member; ties go to the
// earliest-created record.
func pickTarget(members []store.Patient) int {
	best := 0
	bestScore := completeness(&members[0])
	for i := 1; i < len(members); i++ {
		score := completeness(&members[i])
		if score > bestScore {
			best, bestScore = i, score
			continue
		}
		if score == bestScore && members[i].CreatedAt.Before(members[best].CreatedAt) {
			best = i
		}
	}
	return best
}
