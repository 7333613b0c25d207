package importer

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/hazyhaar/medrecon/pkg/codice"
	"github.com/hazyhaar/medrecon/pkg/normalize"
	"github.com/hazyhaar/medrecon/pkg/store"
)

// PatientRow is the typed, normalized form of one parsed source row. Raw
// header maps never reach matching logic; adapters build this DTO through
// the field normalizer first.
type PatientRow struct {
	ExternalID string
	GivenName  string
	Surname    string
	BirthDate  string // canonical YYYY-MM-DD or ""
	BirthPlace string
	Sex        string
	Identifier string // extracted from source data; "" triggers synthesis
	Email      string
	Phone      string
	Address    string
	Notes      string
}

type outcome int

const (
	outcomeImported outcome = iota
	outcomeUpdated
	outcomeSkipped
)

// resolver matches rows against the patient store. It preloads lookup
// indexes once and keeps them current as the run creates and updates
// records, so later rows can match patients created earlier in the same
// run. Rows are resolved strictly in source order.
type resolver struct {
	patients store.PatientStore
	synth    *codice.Synthesizer
	logger   *slog.Logger

	records      map[string]*store.Patient // id -> live record state
	byIdentifier map[string]string         // normalized identifier -> id
	byIdentity   map[string]string         // identity key -> id
	byEmail      map[string]string
	byPhone      map[string]string
}

func newResolver(ctx context.Context, env Env) (*resolver, error) {
	all, err := env.Patients.GetAll(ctx)
	if err != nil {
		return nil, fmt.Errorf("preload patients: %w", err)
	}

	r := &resolver{
		patients:     env.Patients,
		synth:        env.Synth,
		logger:       env.logger(),
		records:      make(map[string]*store.Patient, len(all)),
		byIdentifier: make(map[string]string),
		byIdentity:   make(map[string]string),
		byEmail:      make(map[string]string),
		byPhone:      make(map[string]string),
	}
	for i := range all {
		p := all[i]
		r.records[p.ID] = &p
		r.index(&p)
	}
	return r, nil
}

// index registers a record under every probe key it carries. First writer
// wins so that the oldest record stays the match target.
func (r *resolver) index(p *store.Patient) {
	put := func(m map[string]string, key string) {
		if key == "" {
			return
		}
		if _, taken := m[key]; !taken {
			m[key] = p.ID
		}
	}
	put(r.byIdentifier, normalize.Identifier(p.Identifier))
	put(r.byIdentity, normalize.IdentityKey(p.GivenName, p.Surname, p.BirthDate))
	put(r.byEmail, normalize.Email(p.Email))
	put(r.byPhone, normalize.Phone(p.Phone))
}

// lookup probes in priority order: identifier, identity key, email, phone.
func (r *resolver) lookup(row *PatientRow, identifier string) *store.Patient {
	if id, ok := r.byIdentifier[identifier]; ok && identifier != "" {
		return r.records[id]
	}
	if key := normalize.IdentityKey(row.GivenName, row.Surname, row.BirthDate); key != "" {
		if id, ok := r.byIdentity[key]; ok {
			return r.records[id]
		}
	}
	if row.Email != "" {
		if id, ok := r.byEmail[row.Email]; ok {
			return r.records[id]
		}
	}
	if row.Phone != "" {
		if id, ok := r.byPhone[row.Phone]; ok {
			return r.records[id]
		}
	}
	return nil
}

// resolve turns one row into a patient id, creating or filling a record.
// notesImported reports whether the row contributed free-text notes.
func (r *resolver) resolve(ctx context.Context, row *PatientRow) (id string, out outcome, notesImported bool, err error) {
	identifier := row.Identifier
	synthesized := false
	if identifier == "" {
		identifier, err = r.synth.Generate(ctx, r.patients, codice.Subject{
			GivenName: row.GivenName,
			Surname:   row.Surname,
			BirthDate: row.BirthDate,
			Sex:       row.Sex,
		})
		if err != nil {
			return "", outcomeSkipped, false, fmt.Errorf("synthesize identifier: %w", err)
		}
		synthesized = true
	}

	if existing := r.lookup(row, identifier); existing != nil {
		changed, notes, err := r.fillMissing(ctx, existing, row, identifier, synthesized)
		if err != nil {
			return "", outcomeSkipped, false, err
		}
		if changed {
			return existing.ID, outcomeUpdated, notes, nil
		}
		return existing.ID, outcomeSkipped, false, nil
	}

	p := &store.Patient{
		GivenName:             row.GivenName,
		Surname:               row.Surname,
		BirthDate:             row.BirthDate,
		BirthPlace:            row.BirthPlace,
		Sex:                   row.Sex,
		Identifier:            identifier,
		IdentifierSynthesized: synthesized,
		Email:                 row.Email,
		Phone:                 row.Phone,
		Address:               row.Address,
		Notes:                 row.Notes,
	}
	newID, err := r.patients.Add(ctx, p)
	if err != nil {
		return "", outcomeSkipped, false, fmt.Errorf("add patient: %w", err)
	}
	r.records[newID] = p
	r.index(p)
	return newID, outcomeImported, row.Notes != "", nil
}

// fillMissing stages row values into the matched record's empty fields.
// Populated data is never overwritten, with one exception: an identifier
// extracted from authoritative source data replaces a previously
// synthesized one.
func (r *resolver) fillMissing(ctx context.Context, p *store.Patient, row *PatientRow, identifier string, synthesized bool) (changed, notesImported bool, err error) {
	fields := store.Fields{}

	stage := func(key, current, incoming string) {
		if current == "" && incoming != "" {
			fields[key] = incoming
		}
	}
	stage(store.FieldGivenName, p.GivenName, row.GivenName)
	stage(store.FieldSurname, p.Surname, row.Surname)
	stage(store.FieldBirthDate, p.BirthDate, row.BirthDate)
	stage(store.FieldBirthPlace, p.BirthPlace, row.BirthPlace)
	stage(store.FieldSex, p.Sex, row.Sex)
	stage(store.FieldEmail, p.Email, row.Email)
	stage(store.FieldPhone, p.Phone, row.Phone)
	stage(store.FieldAddress, p.Address, row.Address)
	stage(store.FieldNotes, p.Notes, row.Notes)

	if p.Identifier == "" {
		fields[store.FieldIdentifier] = identifier
		fields[store.FieldIdentifierSynthesized] = synthesized
	} else if !synthesized && p.IdentifierSynthesized && identifier != normalize.Identifier(p.Identifier) {
		// Authoritative identifier wins over the synthesized placeholder.
		fields[store.FieldIdentifier] = identifier
		fields[store.FieldIdentifierSynthesized] = false
	}

	if len(fields) == 0 {
		return false, false, nil
	}
	if err := r.patients.Update(ctx, p.ID, fields); err != nil {
		return false, false, fmt.Errorf("update patient %s: %w", p.ID, err)
	}

	// Mirror the staged fields into the in-memory state and re-index.
	for key, val := range fields {
		if key == store.FieldIdentifierSynthesized {
			p.IdentifierSynthesized, _ = val.(bool)
			continue
		}
		s, _ := val.(string)
		switch key {
		case store.FieldGivenName:
			p.GivenName = s
		case store.FieldSurname:
			p.Surname = s
		case store.FieldBirthDate:
			p.BirthDate = s
		case store.FieldBirthPlace:
			p.BirthPlace = s
		case store.FieldSex:
			p.Sex = s
		case store.FieldEmail:
			p.Email = s
		case store.FieldPhone:
			p.Phone = s
		case store.FieldAddress:
			p.Address = s
		case store.FieldNotes:
			p.Notes = s
		case store.FieldIdentifier:
			// Drop the replaced code from the index so later rows
			// carrying it cannot match this record anymore.
			if old := normalize.Identifier(p.Identifier); old != "" && r.byIdentifier[old] == p.ID {
				delete(r.byIdentifier, old)
			}
			p.Identifier = s
		}
	}
	r.index(p)

	_, notes := fields[store.FieldNotes]
	return true, notes, nil
}
