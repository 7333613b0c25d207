package store

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
)

func openTestDB(t *testing.T) *DB {
	t.Helper()
	db, err := Open(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

func TestPatientCRUD(t *testing.T) {
	ctx := context.Background()
	db := openTestDB(t)

	id, err := db.Patients.Add(ctx, &Patient{
		GivenName:             "Maria",
		Surname:               "Rossi",
		BirthDate:             "1985-03-12",
		Sex:                   "F",
		Identifier:            "RSSMRA85C52Z996L",
		IdentifierSynthesized: true,
		Phone:                 "3331234567",
	})
	if err != nil {
		t.Fatalf("Add: %v", err)
	}
	if id == "" {
		t.Fatal("Add returned empty id")
	}

	got, err := db.Patients.GetByID(ctx, id)
	if err != nil {
		t.Fatalf("GetByID: %v", err)
	}
	if got.Surname != "Rossi" || !got.IdentifierSynthesized {
		t.Errorf("round trip = %+v", got)
	}
	if got.CreatedAt.IsZero() {
		t.Error("CreatedAt not set")
	}

	byCode, err := db.Patients.GetByIdentifier(ctx, "RSSMRA85C52Z996L")
	if err != nil {
		t.Fatalf("GetByIdentifier: %v", err)
	}
	if byCode.ID != id {
		t.Errorf("GetByIdentifier id = %q, want %q", byCode.ID, id)
	}
	if _, err := db.Patients.GetByIdentifier(ctx, "XXXXXX00X00X000X"); !errors.Is(err, ErrNotFound) {
		t.Errorf("missing identifier: err = %v", err)
	}
	if _, err := db.Patients.GetByIdentifier(ctx, ""); !errors.Is(err, ErrNotFound) {
		t.Errorf("empty identifier must not match: err = %v", err)
	}

	err = db.Patients.Update(ctx, id, Fields{
		FieldIdentifier:            "RSSMRA80A01H501U",
		FieldIdentifierSynthesized: false,
		FieldEmail:                 "maria@example.com",
	})
	if err != nil {
		t.Fatalf("Update: %v", err)
	}
	got, err = db.Patients.GetByID(ctx, id)
	if err != nil {
		t.Fatal(err)
	}
	if got.Identifier != "RSSMRA80A01H501U" || got.IdentifierSynthesized || got.Email != "maria@example.com" {
		t.Errorf("after update = %+v", got)
	}

	if err := db.Patients.Update(ctx, id, Fields{"drop table": "x"}); err == nil {
		t.Error("Update accepted an unknown field key")
	}
	if err := db.Patients.Update(ctx, "missing", Fields{FieldEmail: "x"}); !errors.Is(err, ErrNotFound) {
		t.Errorf("Update missing id: err = %v", err)
	}

	all, err := db.Patients.GetAll(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(all) != 1 {
		t.Errorf("GetAll = %d records, want 1", len(all))
	}

	if err := db.Patients.Delete(ctx, id); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if _, err := db.Patients.GetByID(ctx, id); !errors.Is(err, ErrNotFound) {
		t.Errorf("after delete: err = %v", err)
	}
	if err := db.Patients.Delete(ctx, id); !errors.Is(err, ErrNotFound) {
		t.Errorf("double delete: err = %v", err)
	}
}

func TestVisitCRUD(t *testing.T) {
	ctx := context.Background()
	db := openTestDB(t)

	pid, err := db.Patients.Add(ctx, &Patient{GivenName: "Luca", Surname: "Verdi"})
	if err != nil {
		t.Fatal(err)
	}

	var ids []string
	for _, date := range []string{"2024-03-15", "2024-02-01"} {
		id, err := db.Visits.Add(ctx, &Visit{PatientID: pid, Date: date, Description: "checkup"})
		if err != nil {
			t.Fatalf("Add visit: %v", err)
		}
		ids = append(ids, id)
	}

	visits, err := db.Visits.GetByPatientID(ctx, pid)
	if err != nil {
		t.Fatalf("GetByPatientID: %v", err)
	}
	if len(visits) != 2 {
		t.Fatalf("got %d visits, want 2", len(visits))
	}
	if visits[0].Date != "2024-02-01" {
		t.Errorf("visits not ordered by date: %q first", visits[0].Date)
	}

	// Reparent one visit, the way merge execution does.
	pid2, err := db.Patients.Add(ctx, &Patient{GivenName: "Luca", Surname: "Verde"})
	if err != nil {
		t.Fatal(err)
	}
	if err := db.Visits.Update(ctx, ids[0], Fields{VisitFieldPatientID: pid2}); err != nil {
		t.Fatalf("Update visit: %v", err)
	}
	moved, err := db.Visits.GetByPatientID(ctx, pid2)
	if err != nil {
		t.Fatal(err)
	}
	if len(moved) != 1 || moved[0].ID != ids[0] {
		t.Errorf("reparented visits = %+v", moved)
	}

	if err := db.Visits.Update(ctx, "missing", Fields{VisitFieldNotes: "x"}); !errors.Is(err, ErrNotFound) {
		t.Errorf("Update missing visit: err = %v", err)
	}
}
