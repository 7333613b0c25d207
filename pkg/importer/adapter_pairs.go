package importer

import (
	"context"
	"fmt"
	"strings"

	"github.com/hazyhaar/medrecon/pkg/normalize"
	"github.com/hazyhaar/medrecon/pkg/sourcefile"
	"github.com/hazyhaar/medrecon/pkg/store"
)

func init() {
	Register(&pairedAdapter{})
}

// pairedAdapter imports the two-file export: a patients CSV keyed by an
// external row id and a companion appointments CSV referencing that id.
type pairedAdapter struct{}

func (a *pairedAdapter) ID() string { return "paired-export" }
func (a *pairedAdapter) Description() string {
	return "patients CSV plus companion appointments CSV, linked by external row id"
}

func (a *pairedAdapter) Import(ctx context.Context, req Request, env Env) (*Counters, error) {
	table, err := readTable(req.PatientsFile)
	if err != nil {
		return nil, fmt.Errorf("read patients file: %w", err)
	}

	res, err := newResolver(ctx, env)
	if err != nil {
		return nil, err
	}

	counters := &Counters{}
	external := make(map[string]string) // external row id -> patient id

	for _, row := range table.Rows {
		if err := ctx.Err(); err != nil {
			return counters, err
		}
		pr := pairedPatientRow(row)
		id, out, notes, err := res.resolve(ctx, pr)
		if err != nil {
			env.logger().Warn("patient row skipped", "external_id", pr.ExternalID, "error", err)
			counters.PatientsSkipped++
			continue
		}
		switch out {
		case outcomeImported:
			counters.PatientsImported++
		case outcomeUpdated:
			counters.PatientsUpdated++
		case outcomeSkipped:
			counters.PatientsSkipped++
		}
		if notes {
			counters.NotesImported++
		}
		if pr.ExternalID != "" {
			external[pr.ExternalID] = id
		}
	}

	if req.VisitsFile != "" {
		if err := a.importVisits(ctx, req.VisitsFile, external, env, counters); err != nil {
			return counters, err
		}
	}

	env.logger().Info("paired import complete",
		"imported", counters.PatientsImported, "updated", counters.PatientsUpdated,
		"skipped", counters.PatientsSkipped, "visits", counters.VisitsImported,
		"visits_skipped", counters.VisitsSkipped)
	return counters, nil
}

// pairedPatientRow maps one patients-file row onto the normalized DTO.
func pairedPatientRow(row sourcefile.Row) *PatientRow {
	notes := clinicalNotes(row)
	return &PatientRow{
		ExternalID: normalize.FreeText(pick(row, "id", "externalid", "external_id")),
		GivenName:  normalize.FreeText(pick(row, "firstname", "first_name", "givenname")),
		Surname:    normalize.FreeText(pick(row, "lastname", "last_name", "surname")),
		BirthDate:  normalize.Date(pick(row, "birthdate", "birth_date", "dateofbirth", "dob")),
		BirthPlace: normalize.FreeText(pick(row, "birthcity", "birth_city", "birthplace")),
		Sex:        normalize.Sex(pick(row, "gender", "sex")),
		Email:      normalize.Email(pick(row, "email", "mail")),
		Phone:      normalize.Phone(pick(row, "phone", "mobile", "telephone")),
		Address: normalize.FreeText(joinNonEmpty(", ",
			pick(row, "address", "street"),
			pick(row, "zipcode", "zip", "postalcode"),
			pick(row, "city", "town"))),
		Notes: notes,
	}
}

// clinicalNotes folds the free-text clinical columns into one labelled
// notes block, dropping empty sections.
func clinicalNotes(row sourcefile.Row) string {
	sections := []struct{ label, value string }{
		{"Observations", pick(row, "observations", "observation")},
		{"Precedents", pick(row, "precedents", "antecedents", "history")},
		{"Medications", pick(row, "medications", "treatments", "medication")},
		{"Allergies", pick(row, "allergies", "allergy")},
		{"Other", pick(row, "other", "misc", "remarks")},
	}
	var parts []string
	for _, s := range sections {
		if v := normalize.FreeText(s.value); v != "" {
			parts = append(parts, s.label+": "+v)
		}
	}
	return strings.Join(parts, "\n")
}

// importVisits maps appointment rows onto already-resolved patients. Rows
// with an unresolved external id, a canceled status or an unparseable
// date are skipped with a reason; a visit is only inserted when its
// (patient, date, description) key is not already present, so reruns are
// idempotent.
func (a *pairedAdapter) importVisits(ctx context.Context, path string, external map[string]string, env Env, counters *Counters) error {
	table, err := readTable(path)
	if err != nil {
		return fmt.Errorf("read appointments file: %w", err)
	}

	seen := make(map[string]map[string]bool) // patient id -> visit keys
	keysFor := func(patientID string) (map[string]bool, error) {
		if keys, ok := seen[patientID]; ok {
			return keys, nil
		}
		visits, err := env.Visits.GetByPatientID(ctx, patientID)
		if err != nil {
			return nil, err
		}
		keys := make(map[string]bool, len(visits))
		for _, v := range visits {
			keys[visitKey(v.PatientID, v.Date, v.Description)] = true
		}
		seen[patientID] = keys
		return keys, nil
	}

	for _, row := range table.Rows {
		if err := ctx.Err(); err != nil {
			return err
		}
		ref := normalize.FreeText(pick(row, "patientid", "patient_id", "id_patient", "id"))
		status := strings.ToLower(normalize.FreeText(pick(row, "status", "state")))
		date := normalize.Date(pick(row, "startdate", "start_date", "start", "date"))
		service := normalize.FreeText(pick(row, "service", "reason", "type"))
		agenda := normalize.FreeText(pick(row, "agenda"))
		comments := normalize.FreeText(pick(row, "comments", "comment", "notes"))

		patientID, ok := external[ref]
		if !ok {
			env.logger().Warn("visit skipped: unresolved patient reference", "ref", ref)
			counters.VisitsSkipped++
			continue
		}
		if strings.Contains(status, "cancel") || strings.Contains(status, "annul") {
			env.logger().Warn("visit skipped: canceled", "ref", ref, "status", status)
			counters.VisitsSkipped++
			continue
		}
		if date == "" {
			env.logger().Warn("visit skipped: unparseable date", "ref", ref,
				"raw", pick(row, "startdate", "start_date", "start", "date"))
			counters.VisitsSkipped++
			continue
		}

		keys, err := keysFor(patientID)
		if err != nil {
			return fmt.Errorf("load visits of %s: %w", patientID, err)
		}
		key := visitKey(patientID, date, service)
		if keys[key] {
			counters.VisitsSkipped++
			continue
		}

		_, err = env.Visits.Add(ctx, &store.Visit{
			PatientID:   patientID,
			Date:        date,
			Description: service,
			Notes:       joinNonEmpty(" / ", agenda, comments),
		})
		if err != nil {
			return fmt.Errorf("insert visit for %s: %w", patientID, err)
		}
		keys[key] = true
		counters.VisitsImported++
	}
	return nil
}

func visitKey(patientID, date, description string) string {
	return patientID + "|" + date + "|" + description
}
