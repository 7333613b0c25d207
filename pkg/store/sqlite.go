package store

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"
)

// DB is a SQLite-backed store. Patients and Visits implement the
// PatientStore and VisitStore interfaces over the same database file.
type DB struct {
	db       *sql.DB
	Patients *PatientDB
	Visits   *VisitDB
}

// Open opens (or creates) the SQLite database at path and ensures the
// patients and visits tables exist.
func Open(path string) (*DB, error) {
	db, err := sql.Open("sqlite", path+"?_pragma=journal_mode(wal)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("open store db: %w", err)
	}

	const ddl = `
	CREATE TABLE IF NOT EXISTS patients (
		id                     TEXT PRIMARY KEY,
		given_name             TEXT NOT NULL DEFAULT '',
		surname                TEXT NOT NULL DEFAULT '',
		birth_date             TEXT NOT NULL DEFAULT '',
		birth_place            TEXT NOT NULL DEFAULT '',
		sex                    TEXT NOT NULL DEFAULT '',
		identifier             TEXT NOT NULL DEFAULT '',
		identifier_synthesized INTEGER NOT NULL DEFAULT 0,
		email                  TEXT NOT NULL DEFAULT '',
		phone                  TEXT NOT NULL DEFAULT '',
		address                TEXT NOT NULL DEFAULT '',
		notes                  TEXT NOT NULL DEFAULT '',
		created_at             INTEGER NOT NULL,
		updated_at             INTEGER NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_patients_identifier ON patients(identifier);
	CREATE TABLE IF NOT EXISTS visits (
		id          TEXT PRIMARY KEY,
		patient_id  TEXT NOT NULL,
		date        TEXT NOT NULL DEFAULT '',
		description TEXT NOT NULL DEFAULT '',
		notes       TEXT NOT NULL DEFAULT '',
		created_at  INTEGER NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_visits_patient ON visits(patient_id);`
	if _, err := db.Exec(ddl); err != nil {
		db.Close()
		return nil, fmt.Errorf("create tables: %w", err)
	}

	return &DB{
		db:       db,
		Patients: &PatientDB{db: db},
		Visits:   &VisitDB{db: db},
	}, nil
}

// Close closes the underlying database.
func (d *DB) Close() error {
	return d.db.Close()
}

// PatientDB implements PatientStore on SQLite.
type PatientDB struct {
	db *sql.DB
}

const patientCols = `id, given_name, surname, birth_date, birth_place, sex,
	identifier, identifier_synthesized, email, phone, address, notes,
	created_at, updated_at`

func scanPatient(row interface{ Scan(...any) error }) (*Patient, error) {
	var p Patient
	var synth int
	var created, updated int64
	err := row.Scan(&p.ID, &p.GivenName, &p.Surname, &p.BirthDate, &p.BirthPlace,
		&p.Sex, &p.Identifier, &synth, &p.Email, &p.Phone, &p.Address, &p.Notes,
		&created, &updated)
	if err != nil {
		return nil, err
	}
	p.IdentifierSynthesized = synth != 0
	p.CreatedAt = time.Unix(created, 0).UTC()
	p.UpdatedAt = time.Unix(updated, 0).UTC()
	return &p, nil
}

// GetAll returns every patient ordered by creation time.
func (s *PatientDB) GetAll(ctx context.Context) ([]Patient, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+patientCols+` FROM patients ORDER BY created_at, id`)
	if err != nil {
		return nil, fmt.Errorf("list patients: %w", err)
	}
	defer rows.Close()

	var out []Patient
	for rows.Next() {
		p, err := scanPatient(rows)
		if err != nil {
			return nil, fmt.Errorf("scan patient: %w", err)
		}
		out = append(out, *p)
	}
	return out, rows.Err()
}

// GetByID returns one patient, or ErrNotFound.
func (s *PatientDB) GetByID(ctx context.Context, id string) (*Patient, error) {
	p, err := scanPatient(s.db.QueryRowContext(ctx,
		`SELECT `+patientCols+` FROM patients WHERE id = ?`, id))
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get patient %s: %w", id, err)
	}
	return p, nil
}

// GetByIdentifier returns the patient carrying the given national identifier,
// or ErrNotFound.
func (s *PatientDB) GetByIdentifier(ctx context.Context, code string) (*Patient, error) {
	p, err := scanPatient(s.db.QueryRowContext(ctx,
		`SELECT `+patientCols+` FROM patients WHERE identifier = ? AND identifier != '' LIMIT 1`, code))
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get patient by identifier: %w", err)
	}
	return p, nil
}

// Add inserts a new patient and returns its id. A missing ID is minted and
// missing timestamps are set to now.
func (s *PatientDB) Add(ctx context.Context, p *Patient) (string, error) {
	if p.ID == "" {
		p.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if p.CreatedAt.IsZero() {
		p.CreatedAt = now
	}
	p.UpdatedAt = now

	synth := 0
	if p.IdentifierSynthesized {
		synth = 1
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO patients (`+patientCols+`) VALUES (?,?,?,?,?,?,?,?,?,?,?,?,?,?)`,
		p.ID, p.GivenName, p.Surname, p.BirthDate, p.BirthPlace, p.Sex,
		p.Identifier, synth, p.Email, p.Phone, p.Address, p.Notes,
		p.CreatedAt.Unix(), p.UpdatedAt.Unix())
	if err != nil {
		return "", fmt.Errorf("insert patient: %w", err)
	}
	return p.ID, nil
}

var patientColumns = map[string]bool{
	FieldGivenName: true, FieldSurname: true, FieldBirthDate: true,
	FieldBirthPlace: true, FieldSex: true, FieldIdentifier: true,
	FieldIdentifierSynthesized: true, FieldEmail: true, FieldPhone: true,
	FieldAddress: true, FieldNotes: true,
}

// Update applies a partial field payload to one patient.
func (s *PatientDB) Update(ctx context.Context, id string, fields Fields) error {
	if len(fields) == 0 {
		return nil
	}
	set := make([]string, 0, len(fields)+1)
	args := make([]any, 0, len(fields)+2)
	for key, val := range fields {
		if !patientColumns[key] {
			return fmt.Errorf("update patient %s: unknown field %q", id, key)
		}
		if key == FieldIdentifierSynthesized {
			b, ok := val.(bool)
			if !ok {
				return fmt.Errorf("update patient %s: %s must be bool", id, key)
			}
			val = 0
			if b {
				val = 1
			}
		}
		set = append(set, key+" = ?")
		args = append(args, val)
	}
	set = append(set, "updated_at = ?")
	args = append(args, time.Now().UTC().Unix(), id)

	res, err := s.db.ExecContext(ctx,
		`UPDATE patients SET `+strings.Join(set, ", ")+` WHERE id = ?`, args...)
	if err != nil {
		return fmt.Errorf("update patient %s: %w", id, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

// Delete removes one patient row. Visits are not cascaded; the merge
// resolver reparents them before any delete.
func (s *PatientDB) Delete(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM patients WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete patient %s: %w", id, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

// VisitDB implements VisitStore on SQLite.
type VisitDB struct {
	db *sql.DB
}

// GetByPatientID returns all visits for one patient ordered by date.
func (s *VisitDB) GetByPatientID(ctx context.Context, patientID string) ([]Visit, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, patient_id, date, description, notes, created_at
		 FROM visits WHERE patient_id = ? ORDER BY date, id`, patientID)
	if err != nil {
		return nil, fmt.Errorf("list visits for %s: %w", patientID, err)
	}
	defer rows.Close()

	var out []Visit
	for rows.Next() {
		var v Visit
		var created int64
		if err := rows.Scan(&v.ID, &v.PatientID, &v.Date, &v.Description, &v.Notes, &created); err != nil {
			return nil, fmt.Errorf("scan visit: %w", err)
		}
		v.CreatedAt = time.Unix(created, 0).UTC()
		out = append(out, v)
	}
	return out, rows.Err()
}

// Add inserts a new visit and returns its id.
func (s *VisitDB) Add(ctx context.Context, v *Visit) (string, error) {
	if v.ID == "" {
		v.ID = uuid.NewString()
	}
	if v.CreatedAt.IsZero() {
		v.CreatedAt = time.Now().UTC()
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO visits (id, patient_id, date, description, notes, created_at)
		 VALUES (?,?,?,?,?,?)`,
		v.ID, v.PatientID, v.Date, v.Description, v.Notes, v.CreatedAt.Unix())
	if err != nil {
		return "", fmt.Errorf("insert visit: %w", err)
	}
	return v.ID, nil
}

var visitColumns = map[string]bool{
	VisitFieldPatientID: true, VisitFieldDate: true,
	VisitFieldDescription: true, VisitFieldNotes: true,
}

// Update applies a partial field payload to one visit.
func (s *VisitDB) Update(ctx context.Context, id string, fields Fields) error {
	if len(fields) == 0 {
		return nil
	}
	set := make([]string, 0, len(fields))
	args := make([]any, 0, len(fields)+1)
	for key, val := range fields {
		if !visitColumns[key] {
			return fmt.Errorf("update visit %s: unknown field %q", id, key)
		}
		set = append(set, key+" = ?")
		args = append(args, val)
	}
	args = append(args, id)

	res, err := s.db.ExecContext(ctx,
		`UPDATE visits SET `+strings.Join(set, ", ")+` WHERE id = ?`, args...)
	if err != nil {
		return fmt.Errorf("update visit %s: %w", id, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}
