package importer

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/hazyhaar/medrecon/pkg/codice"
	"github.com/hazyhaar/medrecon/pkg/store"
)

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func testEnv() Env {
	return Env{
		Patients: store.NewMemPatients(),
		Visits:   store.NewMemVisits(),
		Synth:    codice.New(codice.Config{}, nil),
	}
}

func TestRegistry(t *testing.T) {
	for _, id := range []string{"paired-export", "flat-export"} {
		a, err := Get(id)
		if err != nil {
			t.Errorf("Get(%q): %v", id, err)
			continue
		}
		if a.ID() != id {
			t.Errorf("Get(%q).ID() = %q", id, a.ID())
		}
	}
	if _, err := Get("no-such-format"); err == nil {
		t.Error("Get accepted an unknown format")
	}

	all := All()
	for i := 1; i < len(all); i++ {
		if all[i-1].ID() >= all[i].ID() {
			t.Errorf("All not sorted: %q before %q", all[i-1].ID(), all[i].ID())
		}
	}
}

const pairedPatients = "Id;FirstName;LastName;BirthDate;Gender;Phone;Email;Observations\n" +
	"101;Maria;Rossi;12/03/1985;F;333 123 4567;maria@example.com;Penicillin noted\n" +
	"102;Luca;Verdi;;M;;;\n"

const pairedVisits = "PatientId;StartDate;Status;Service;Comments\n" +
	"101;02/05/2021;confirmed;Checkup;first visit\n" +
	"101;02/05/2021;confirmed;Checkup;duplicate row\n" +
	"101;03/05/2021;Canceled;Checkup;\n" +
	"999;04/05/2021;confirmed;Checkup;\n" +
	"102;not a date;confirmed;Checkup;\n"

func TestPairedImport(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	env := testEnv()
	req := Request{
		PatientsFile: writeFile(t, dir, "patients.csv", pairedPatients),
		VisitsFile:   writeFile(t, dir, "visits.csv", pairedVisits),
	}

	adapter, err := Get("paired-export")
	if err != nil {
		t.Fatal(err)
	}
	counters, err := adapter.Import(ctx, req, env)
	if err != nil {
		t.Fatalf("Import: %v", err)
	}

	if counters.PatientsImported != 2 || counters.PatientsSkipped != 0 {
		t.Errorf("patient counters = %+v", counters)
	}
	if counters.NotesImported != 1 {
		t.Errorf("notes imported = %d, want 1", counters.NotesImported)
	}
	// One usable visit row; the duplicate, the canceled one, the unresolved
	// reference and the bad date are all skipped.
	if counters.VisitsImported != 1 || counters.VisitsSkipped != 4 {
		t.Errorf("visit counters = %+v", counters)
	}

	all, err := env.Patients.GetAll(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(all) != 2 {
		t.Fatalf("store holds %d patients, want 2", len(all))
	}
	var maria *store.Patient
	for i := range all {
		if all[i].Surname == "Rossi" {
			maria = &all[i]
		}
	}
	if maria == nil {
		t.Fatal("Maria missing from store")
	}
	if maria.BirthDate != "1985-03-12" || maria.Phone != "3331234567" {
		t.Errorf("normalized fields = %+v", maria)
	}
	// No identifier in the source, so one was synthesized.
	if maria.Identifier == "" || !maria.IdentifierSynthesized {
		t.Errorf("identifier = %q synthesized=%v", maria.Identifier, maria.IdentifierSynthesized)
	}
	if maria.Notes != "Observations: Penicillin noted" {
		t.Errorf("notes = %q", maria.Notes)
	}

	visits, err := env.Visits.GetByPatientID(ctx, maria.ID)
	if err != nil {
		t.Fatal(err)
	}
	if len(visits) != 1 || visits[0].Date != "2021-05-02" {
		t.Errorf("visits = %+v", visits)
	}
}

// Importing the same files twice must not create anything new.
func TestPairedImportRerunIdempotent(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	env := testEnv()
	req := Request{
		PatientsFile: writeFile(t, dir, "patients.csv", pairedPatients),
		VisitsFile:   writeFile(t, dir, "visits.csv", pairedVisits),
	}
	adapter, err := Get("paired-export")
	if err != nil {
		t.Fatal(err)
	}

	if _, err := adapter.Import(ctx, req, env); err != nil {
		t.Fatalf("first run: %v", err)
	}
	counters, err := adapter.Import(ctx, req, env)
	if err != nil {
		t.Fatalf("second run: %v", err)
	}

	if counters.PatientsImported != 0 || counters.PatientsUpdated != 0 {
		t.Errorf("rerun created or changed patients: %+v", counters)
	}
	if counters.VisitsImported != 0 {
		t.Errorf("rerun created visits: %+v", counters)
	}

	all, err := env.Patients.GetAll(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(all) != 2 {
		t.Errorf("store holds %d patients after rerun, want 2", len(all))
	}
}

func TestPairedImportFillsExisting(t *testing.T) {
	ctx := context.Background()
	env := testEnv()

	// Same identity, no contact data: the row must fill, not duplicate.
	existingID, err := env.Patients.Add(ctx, &store.Patient{
		GivenName: "Maria", Surname: "Rossi", BirthDate: "1985-03-12",
		Identifier: "RSSMRA85T10A562S",
	})
	if err != nil {
		t.Fatal(err)
	}

	dir := t.TempDir()
	req := Request{PatientsFile: writeFile(t, dir, "patients.csv",
		"Id;FirstName;LastName;BirthDate;Gender;Phone;Email\n"+
			"7;Maria;Rossi;12/03/1985;F;3331234567;maria@example.com\n")}

	adapter, err := Get("paired-export")
	if err != nil {
		t.Fatal(err)
	}
	counters, err := adapter.Import(ctx, req, env)
	if err != nil {
		t.Fatalf("Import: %v", err)
	}
	if counters.PatientsUpdated != 1 || counters.PatientsImported != 0 {
		t.Errorf("counters = %+v", counters)
	}

	got, err := env.Patients.GetByID(ctx, existingID)
	if err != nil {
		t.Fatal(err)
	}
	if got.Phone != "3331234567" || got.Email != "maria@example.com" {
		t.Errorf("fields not filled: %+v", got)
	}
	// The record already carried a real identifier; the row has none,
	// so it stays untouched.
	if got.Identifier != "RSSMRA85T10A562S" || got.IdentifierSynthesized {
		t.Errorf("identifier touched: %+v", got)
	}
}

func TestFlatImportRecoversIdentifier(t *testing.T) {
	ctx := context.Background()
	env := testEnv()

	// The patient exists with a synthesized placeholder code.
	id, err := env.Patients.Add(ctx, &store.Patient{
		GivenName: "Maria", Surname: "Rossi", BirthDate: "1985-03-12",
		Identifier: "RSSMRA85C52Z996L", IdentifierSynthesized: true,
	})
	if err != nil {
		t.Fatal(err)
	}

	dir := t.TempDir()
	req := Request{PatientsFile: writeFile(t, dir, "patients.csv",
		"Id;FirstName;LastName;BirthDate;Notes\n"+
			"1;Maria;Rossi;12/03/1985;CF RSSMRA85T10A562S on paper file\n")}

	adapter, err := Get("flat-export")
	if err != nil {
		t.Fatal(err)
	}
	counters, err := adapter.Import(ctx, req, env)
	if err != nil {
		t.Fatalf("Import: %v", err)
	}
	if counters.PatientsUpdated != 1 {
		t.Errorf("counters = %+v", counters)
	}

	got, err := env.Patients.GetByID(ctx, id)
	if err != nil {
		t.Fatal(err)
	}
	// The code extracted from the notes replaces the synthesized one.
	if got.Identifier != "RSSMRA85T10A562S" || got.IdentifierSynthesized {
		t.Errorf("identifier = %q synthesized=%v", got.Identifier, got.IdentifierSynthesized)
	}
}

// Once a real code replaces a synthesized one, the retired code must stop
// matching that record for the rest of the run.
func TestResolverDropsReplacedIdentifier(t *testing.T) {
	ctx := context.Background()
	env := testEnv()

	mariaID, err := env.Patients.Add(ctx, &store.Patient{
		GivenName: "Maria", Surname: "Rossi", BirthDate: "1985-03-12",
		Identifier: "RSSMRA85C52Z996L", IdentifierSynthesized: true,
	})
	if err != nil {
		t.Fatal(err)
	}

	r, err := newResolver(ctx, env)
	if err != nil {
		t.Fatal(err)
	}

	id, out, _, err := r.resolve(ctx, &PatientRow{
		GivenName: "Maria", Surname: "Rossi", BirthDate: "1985-03-12",
		Identifier: "RSSMRA85T10A562S",
	})
	if err != nil {
		t.Fatalf("resolve replacement row: %v", err)
	}
	if id != mariaID || out != outcomeUpdated {
		t.Fatalf("replacement row resolved to %q (%v), want update of %q", id, out, mariaID)
	}

	// A later row carrying the retired synthesized code names someone else
	// and must get its own record, not Maria's.
	otherID, out, _, err := r.resolve(ctx, &PatientRow{
		GivenName: "Franca", Surname: "Neri",
		Identifier: "RSSMRA85C52Z996L",
	})
	if err != nil {
		t.Fatalf("resolve second row: %v", err)
	}
	if otherID == mariaID {
		t.Fatal("retired synthesized code still matches the updated record")
	}
	if out != outcomeImported {
		t.Errorf("second row outcome = %v, want imported", out)
	}
}

func TestFlatImportNewPatient(t *testing.T) {
	ctx := context.Background()
	env := testEnv()

	dir := t.TempDir()
	req := Request{PatientsFile: writeFile(t, dir, "patients.csv",
		"Id;FirstName;LastName;BirthDate;EncryptedId;Notes\n"+
			"1;Matteo;Moretti;09/04/1925;MRTMTT25D09F205Z;allergic to dust\n")}

	adapter, err := Get("flat-export")
	if err != nil {
		t.Fatal(err)
	}
	counters, err := adapter.Import(ctx, req, env)
	if err != nil {
		t.Fatalf("Import: %v", err)
	}
	if counters.PatientsImported != 1 {
		t.Errorf("counters = %+v", counters)
	}

	got, err := env.Patients.GetByIdentifier(ctx, "MRTMTT25D09F205Z")
	if err != nil {
		t.Fatalf("imported patient not findable by identifier: %v", err)
	}
	if got.IdentifierSynthesized {
		t.Error("extracted identifier flagged as synthesized")
	}
	if got.Notes != "allergic to dust" {
		t.Errorf("notes = %q", got.Notes)
	}
}
