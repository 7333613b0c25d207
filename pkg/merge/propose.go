package merge

import (
	"fmt"

	"github.com/hazyhaar/medrecon/pkg/codice"
	"github.com/hazyhaar/medrecon/pkg/normalize"
	"github.com/hazyhaar/medrecon/pkg/store"
)

// ConflictField is one tracked field whose normalized value differs across
// cluster members. Resolution requires an explicit selection; Default
// pre-fills it.
type ConflictField struct {
	Key     string   `json:"key"`
	Label   string   `json:"label"`
	Values  []string `json:"values"` // distinct raw candidates
	Default string   `json:"default"`
	// Synthesized maps each identifier candidate to whether every member
	// carrying it holds it as a synthesized value. Only set for the
	// identifier field.
	Synthesized map[string]bool `json:"synthesized,omitempty"`
}

// Proposal is the pure outcome of scoring a cluster: the chosen target,
// the payload that resolves without interaction, and the fields that need
// an explicit decision. The engine never blocks on input; the caller
// supplies selections to Execute.
type Proposal struct {
	Target      store.Patient   `json:"target"`
	SourceIDs   []string        `json:"source_ids"`
	AutoPayload store.Fields    `json:"auto_payload"`
	Conflicts   []ConflictField `json:"conflicts"`
}

// Propose scores a cluster and computes per-field agreement. It is a pure
// function of its input: no store access, no side effects.
func Propose(members []store.Patient) (*Proposal, error) {
	if len(members) < 2 {
		return nil, fmt.Errorf("merge needs at least 2 records, got %d", len(members))
	}

	targetIdx := pickTarget(members)
	target := members[targetIdx]

	p := &Proposal{
		Target:      target,
		AutoPayload: store.Fields{},
	}
	for i, m := range members {
		if i != targetIdx {
			p.SourceIDs = append(p.SourceIDs, m.ID)
		}
	}

	for _, field := range mergeableFields {
		distinct, raw := distinctValues(members, field)
		switch len(distinct) {
		case 0:
			// Nothing to merge.
		case 1:
			// Unanimous: stage it when the target disagrees (usually the
			// target is simply missing the value).
			if target.Field(field) != raw[distinct[0]] {
				p.AutoPayload[field] = raw[distinct[0]]
				if field == store.FieldIdentifier {
					p.AutoPayload[store.FieldIdentifierSynthesized] =
						synthesizedByValue(members)[distinct[0]]
				}
			}
		default:
			p.Conflicts = append(p.Conflicts, conflictFor(field, members, &target, distinct, raw))
		}
	}

	return p, nil
}

// distinctValues collects the distinct normalized non-empty values of one
// field across the cluster, preserving member order, plus a map back to a
// representative raw value per normalized form.
func distinctValues(members []store.Patient, field string) (distinct []string, raw map[string]string) {
	raw = make(map[string]string)
	for i := range members {
		v := members[i].Field(field)
		n := normalizeField(field, v)
		if n == "" {
			continue
		}
		if _, seen := raw[n]; !seen {
			raw[n] = v
			distinct = append(distinct, n)
		}
	}
	return distinct, raw
}

// normalizeField applies the comparison normalization for a mergeable field.
func normalizeField(field, value string) string {
	switch field {
	case store.FieldPhone:
		return normalize.Phone(value)
	case store.FieldEmail:
		return normalize.Email(value)
	case store.FieldIdentifier:
		return normalize.Identifier(value)
	case store.FieldBirthDate:
		return normalize.Date(value)
	default:
		return normalize.FreeText(value)
	}
}

// conflictFor builds the ConflictField for a disputed field. The default
// is the target's current value when present (and, for the identifier,
// checksum-valid); otherwise the first candidate. For identifiers a valid
// non-synthesized candidate beats the positional default.
func conflictFor(field string, members []store.Patient, target *store.Patient, distinct []string, raw map[string]string) ConflictField {
	cf := ConflictField{
		Key:   field,
		Label: fieldLabels[field],
	}
	for _, n := range distinct {
		cf.Values = append(cf.Values, raw[n])
	}

	targetVal := target.Field(field)
	switch field {
	case store.FieldIdentifier:
		cf.Synthesized = synthesizedByValue(members)
		cf.Default = identifierDefault(targetVal, distinct, raw, cf.Synthesized)
	default:
		if targetVal != "" {
			cf.Default = targetVal
		} else {
			cf.Default = raw[distinct[0]]
		}
	}
	return cf
}

// identifierDefault prefers the target's own identifier when it passes the
// checksum, then the first valid non-synthesized candidate, then the first
// candidate.
func identifierDefault(targetVal string, distinct []string, raw map[string]string, synth map[string]bool) string {
	if targetVal != "" && codice.Valid(targetVal) && !synth[normalize.Identifier(targetVal)] {
		return targetVal
	}
	for _, n := range distinct {
		if codice.Valid(raw[n]) && !synth[n] {
			return raw[n]
		}
	}
	if targetVal != "" && codice.Valid(targetVal) {
		return targetVal
	}
	return raw[distinct[0]]
}

// synthesizedByValue aggregates the "was synthesized" flag per normalized
// identifier value: a value counts as synthesized only if every member
// carrying it holds it as synthesized.
func synthesizedByValue(members []store.Patient) map[string]bool {
	out := make(map[string]bool)
	for i := range members {
		n := normalize.Identifier(members[i].Identifier)
		if n == "" {
			continue
		}
		if cur, seen := out[n]; seen {
			out[n] = cur && members[i].IdentifierSynthesized
		} else {
			out[n] = members[i].IdentifierSynthesized
		}
	}
	return out
}
