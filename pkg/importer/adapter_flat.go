package importer

import (
	"context"
	"fmt"

	"github.com/hazyhaar/medrecon/pkg/codice"
	"github.com/hazyhaar/medrecon/pkg/normalize"
	"github.com/hazyhaar/medrecon/pkg/sourcefile"
)

func init() {
	Register(&flatAdapter{})
}

// flatAdapter imports the single-file export: one row per patient, no
// companion appointments file. The national identifier, when present at
// all, is buried in the free-text notes column (the dedicated identifier
// column of that system is encrypted and unusable), so it is recovered by
// shape matching before falling back to synthesis.
type flatAdapter struct{}

func (a *flatAdapter) ID() string { return "flat-export" }
func (a *flatAdapter) Description() string {
	return "single-file export, one row per patient, identifier recovered from notes"
}

func (a *flatAdapter) Import(ctx context.Context, req Request, env Env) (*Counters, error) {
	table, err := readTable(req.PatientsFile)
	if err != nil {
		return nil, fmt.Errorf("read patients file: %w", err)
	}

	res, err := newResolver(ctx, env)
	if err != nil {
		return nil, err
	}

	counters := &Counters{}
	for _, row := range table.Rows {
		if err := ctx.Err(); err != nil {
			return counters, err
		}
		pr := flatPatientRow(row)
		_, out, notes, err := res.resolve(ctx, pr)
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
	}

	env.logger().Info("flat import complete",
		"imported", counters.PatientsImported, "updated", counters.PatientsUpdated,
		"skipped", counters.PatientsSkipped, "notes", counters.NotesImported)
	return counters, nil
}

// flatPatientRow maps one row onto the normalized DTO, recovering the
// identifier from the notes text when it carries one.
func flatPatientRow(row sourcefile.Row) *PatientRow {
	notes := normalize.FreeText(pick(row, "notes", "note", "comments", "remarks"))

	identifier := codice.Extract(notes)
	if identifier == "" {
		// Some exports leave a readable code in the nominally encrypted
		// identifier column; shape matching filters out the garbage.
		identifier = codice.Extract(pick(row, "encryptedid", "encrypted_id", "fiscalcode", "taxcode"))
	}

	return &PatientRow{
		ExternalID: normalize.FreeText(pick(row, "id", "code", "patientid", "patient_id")),
		GivenName:  normalize.FreeText(pick(row, "firstname", "first_name", "givenname", "name")),
		Surname:    normalize.FreeText(pick(row, "lastname", "last_name", "surname", "familyname")),
		BirthDate:  normalize.Date(pick(row, "birthdate", "birth_date", "dateofbirth", "dob")),
		BirthPlace: normalize.FreeText(pick(row, "birthcity", "birth_city", "birthplace")),
		Sex:        normalize.Sex(pick(row, "gender", "sex")),
		Identifier: normalize.Identifier(identifier),
		Email:      normalize.Email(pick(row, "email", "mail", "e-mail")),
		Phone:      normalize.Phone(pick(row, "phone", "phone1", "mobile", "cellphone", "telephone")),
		Address: normalize.FreeText(joinNonEmpty(", ",
			pick(row, "address", "street"),
			pick(row, "zipcode", "zip", "postalcode"),
			pick(row, "city", "town"))),
		Notes: notes,
	}
}
