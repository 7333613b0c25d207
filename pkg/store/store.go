// Package store defines the patient and visit record model and the storage
// interfaces the identity engine depends on. Two implementations ship with the
// module: a SQLite-backed store and an in-memory store.
package store

import (
	"context"
	"errors"
	"time"
)

// ErrNotFound is returned by lookups that match no record.
var ErrNotFound = errors.New("record not found")

// Field keys accepted by PatientStore.Update and used throughout matching
// and merge. They double as SQLite column names.
const (
	FieldGivenName             = "given_name"
	FieldSurname               = "surname"
	FieldBirthDate             = "birth_date"
	FieldBirthPlace            = "birth_place"
	FieldSex                   = "sex"
	FieldIdentifier            = "identifier"
	FieldIdentifierSynthesized = "identifier_synthesized"
	FieldEmail                 = "email"
	FieldPhone                 = "phone"
	FieldAddress               = "address"
	FieldNotes                 = "notes"
)

// Fields is a partial update payload: field key -> new value.
// Values are strings except FieldIdentifierSynthesized, which is a bool.
type Fields map[string]any

// Patient is one canonical patient record.
type Patient struct {
	ID         string `json:"id"`
	GivenName  string `json:"given_name"`
	Surname    string `json:"surname"`
	BirthDate  string `json:"birth_date"`  // canonical YYYY-MM-DD, or ""
	BirthPlace string `json:"birth_place"`
	Sex        string `json:"sex"` // "M", "F" or ""

	// Identifier is the national identifier, either extracted from source
	// data or synthesized. IdentifierSynthesized records which.
	Identifier            string `json:"identifier"`
	IdentifierSynthesized bool   `json:"identifier_synthesized"`

	Email   string `json:"email"`
	Phone   string `json:"phone"`
	Address string `json:"address"`
	Notes   string `json:"notes"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Field returns the value of a tracked string field by key.
// FieldIdentifierSynthesized is not addressable this way.
func (p *Patient) Field(key string) string {
	switch key {
	case FieldGivenName:
		return p.GivenName
	case FieldSurname:
		return p.Surname
	case FieldBirthDate:
		return p.BirthDate
	case FieldBirthPlace:
		return p.BirthPlace
	case FieldSex:
		return p.Sex
	case FieldIdentifier:
		return p.Identifier
	case FieldEmail:
		return p.Email
	case FieldPhone:
		return p.Phone
	case FieldAddress:
		return p.Address
	case FieldNotes:
		return p.Notes
	}
	return ""
}

// Visit is one visit/appointment record attached to a patient.
type Visit struct {
	ID          string    `json:"id"`
	PatientID   string    `json:"patient_id"`
	Date        string    `json:"date"` // YYYY-MM-DD
	Description string    `json:"description"`
	Notes       string    `json:"notes"`
	CreatedAt   time.Time `json:"created_at"`
}

// Field keys accepted by VisitStore.Update.
const (
	VisitFieldPatientID   = "patient_id"
	VisitFieldDate        = "date"
	VisitFieldDescription = "description"
	VisitFieldNotes       = "notes"
)

// PatientStore is the patient CRUD interface the engine writes through.
// GetByIdentifier and GetByID return ErrNotFound when no record matches.
type PatientStore interface {
	GetAll(ctx context.Context) ([]Patient, error)
	GetByID(ctx context.Context, id string) (*Patient, error)
	GetByIdentifier(ctx context.Context, code string) (*Patient, error)
	Add(ctx context.Context, p *Patient) (string, error)
	Update(ctx context.Context, id string, fields Fields) error
	Delete(ctx context.Context, id string) error
}

// VisitStore is the visit CRUD interface.
type VisitStore interface {
	GetByPatientID(ctx context.Context, patientID string) ([]Visit, error)
	Add(ctx context.Context, v *Visit) (string, error)
	Update(ctx context.Context, id string, fields Fields) error
}
