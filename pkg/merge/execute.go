package merge

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/hazyhaar/medrecon/pkg/normalize"
	"github.com/hazyhaar/medrecon/pkg/store"
)

// Executor applies merge decisions to the stores.
type Executor struct {
	Patients store.PatientStore
	Visits   store.VisitStore
	Locks    *Locks
	Logger   *slog.Logger
}

// Result reports what one executed merge did.
type Result struct {
	TargetID         string `json:"target_id"`
	SourcesDeleted   int    `json:"sources_deleted"`
	VisitsReparented int    `json:"visits_reparented"`
	FieldsApplied    int    `json:"fields_applied"`
}

// Execute runs one merge with the caller's final field payload: reparent
// every source's visits to the target, apply the payload to the target,
// and only then delete the sources. Any storage failure aborts before the
// destructive step, leaving sources and their history in place.
func (e *Executor) Execute(ctx context.Context, groupKey, targetID string, sourceIDs []string, payload store.Fields) (*Result, error) {
	logger := e.Logger
	if logger == nil {
		logger = slog.Default()
	}

	ids := append([]string{targetID}, sourceIDs...)
	if e.Locks != nil {
		if err := e.Locks.Acquire(groupKey, ids); err != nil {
			return nil, fmt.Errorf("merge %s: %w", groupKey, err)
		}
		defer e.Locks.Release(groupKey)
	}

	if _, err := e.Patients.GetByID(ctx, targetID); err != nil {
		return nil, fmt.Errorf("merge %s: target: %w", groupKey, err)
	}

	res := &Result{TargetID: targetID}

	// Reparent dependent records first; sources must never be deleted
	// while history still points at them.
	for _, srcID := range sourceIDs {
		visits, err := e.Visits.GetByPatientID(ctx, srcID)
		if err != nil {
			return nil, fmt.Errorf("merge %s: list visits of %s: %w", groupKey, srcID, err)
		}
		for _, v := range visits {
			err := e.Visits.Update(ctx, v.ID, store.Fields{store.VisitFieldPatientID: targetID})
			if err != nil {
				return nil, fmt.Errorf("merge %s: reparent visit %s: %w", groupKey, v.ID, err)
			}
			res.VisitsReparented++
		}
	}

	if payload = normalizePayload(payload); len(payload) > 0 {
		if err := e.Patients.Update(ctx, targetID, payload); err != nil {
			return nil, fmt.Errorf("merge %s: update target: %w", groupKey, err)
		}
		res.FieldsApplied = len(payload)
	}

	for _, srcID := range sourceIDs {
		if err := e.Patients.Delete(ctx, srcID); err != nil {
			return nil, fmt.Errorf("merge %s: delete source %s (merge incomplete, rerun after fixing): %w",
				groupKey, srcID, err)
		}
		res.SourcesDeleted++
	}

	logger.Info("merge executed", "group", groupKey, "target", targetID,
		"sources", len(sourceIDs), "visits_reparented", res.VisitsReparented)
	return res, nil
}

// normalizePayload canonicalizes payload values before they land on the
// target, and drops empty strings so a merge never blanks a field.
func normalizePayload(payload store.Fields) store.Fields {
	out := store.Fields{}
	for key, val := range payload {
		if key == store.FieldIdentifierSynthesized {
			out[key] = val
			continue
		}
		s, _ := val.(string)
		switch key {
		case store.FieldPhone:
			s = normalize.Phone(s)
		case store.FieldEmail:
			s = normalize.Email(s)
		case store.FieldIdentifier:
			s = normalize.Identifier(s)
		case store.FieldBirthDate:
			s = normalize.Date(s)
		default:
			s = normalize.FreeText(s)
		}
		if s != "" {
			out[key] = s
		}
	}
	return out
}
