package dedupe

import (
	"context"
	"testing"
	"time"

	"github.com/hazyhaar/medrecon/pkg/store"
)

func pat(id, given, surname string, created time.Time) store.Patient {
	return store.Patient{ID: id, GivenName: given, Surname: surname, CreatedAt: created}
}

func TestMatch(t *testing.T) {
	cases := []struct {
		name string
		a, b store.Patient
		want bool
	}{
		{"exact", pat("", "Maria", "Rossi", time.Time{}), pat("", "maria", "ROSSI", time.Time{}), true},
		{"accented", pat("", "José", "García", time.Time{}), pat("", "Jose", "Garcia", time.Time{}), true},
		{"surname typo", pat("", "Maria", "Rossi", time.Time{}), pat("", "Maria", "Rosso", time.Time{}), true},
		{"given typo", pat("", "Marco", "Rossi", time.Time{}), pat("", "Mario", "Rossi", time.Time{}), true},
		{"swapped names", pat("", "Rossi", "Maria", time.Time{}), pat("", "Maria", "Rossi", time.Time{}), true},
		{"distance two", pat("", "Maria", "Bianchi", time.Time{}), pat("", "Maria", "Bianco", time.Time{}), false},
		{"short given with typo", pat("", "Al", "Rossi", time.Time{}), pat("", "Al", "Rosso", time.Time{}), false},
		{"different people", pat("", "Maria", "Rossi", time.Time{}), pat("", "Luca", "Verdi", time.Time{}), false},
		{"both empty", pat("", "", "", time.Time{}), pat("", "", "", time.Time{}), false},
	}
	for _, c := range cases {
		a, b := newCandidate(c.a), newCandidate(c.b)
		if got := match(a, b); got != c.want {
			t.Errorf("%s: match = %v, want %v", c.name, got, c.want)
		}
		if got := match(b, a); got != c.want {
			t.Errorf("%s: match not symmetric", c.name)
		}
	}
}

func TestScanClusters(t *testing.T) {
	t0 := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	patients := []store.Patient{
		pat("p3", "Maria", "Rosso", t0.Add(2*time.Hour)), // links to p1 via typo
		pat("p1", "Maria", "Rossi", t0),
		pat("p5", "Luca", "Verdi", t0.Add(4*time.Hour)),
		pat("p2", "MARIA", "rossi", t0.Add(time.Hour)),
		pat("p4", "Anna", "Bianchi", t0.Add(3*time.Hour)),
	}

	groups, err := (&Scanner{}).Scan(context.Background(), patients)
	if err != nil {
		t.Fatalf("Scan: %v", err)
	}
	if len(groups) != 1 {
		t.Fatalf("got %d groups, want 1", len(groups))
	}

	g := groups[0]
	// Transitivity: p3 matches p1, p1 matches p2, so all three cluster even
	// though p3 and p2 only connect through p1.
	if len(g.Members) != 3 {
		t.Fatalf("cluster size = %d, want 3", len(g.Members))
	}
	if g.Key != "p1" {
		t.Errorf("cluster key = %q, want earliest member p1", g.Key)
	}
	for i, want := range []string{"p1", "p2", "p3"} {
		if g.Members[i].ID != want {
			t.Errorf("member[%d] = %q, want %q (creation order)", i, g.Members[i].ID, want)
		}
	}
}

func TestScanOrdersGroupsBySize(t *testing.T) {
	t0 := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	patients := []store.Patient{
		pat("a1", "Luca", "Verdi", t0),
		pat("a2", "Luca", "Verdi", t0.Add(time.Minute)),
		pat("b1", "Maria", "Rossi", t0.Add(2*time.Minute)),
		pat("b2", "Maria", "Rossi", t0.Add(3*time.Minute)),
		pat("b3", "Maria", "Rossi", t0.Add(4*time.Minute)),
	}

	groups, err := (&Scanner{}).Scan(context.Background(), patients)
	if err != nil {
		t.Fatalf("Scan: %v", err)
	}
	if len(groups) != 2 {
		t.Fatalf("got %d groups, want 2", len(groups))
	}
	if len(groups[0].Members) != 3 || groups[0].Key != "b1" {
		t.Errorf("largest group first: got key %q size %d", groups[0].Key, len(groups[0].Members))
	}
}

func TestScanCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	patients := make([]store.Patient, 50)
	for i := range patients {
		patients[i] = pat("x", "A", "B", time.Time{})
	}

	_, err := (&Scanner{YieldEvery: 1}).Scan(ctx, patients)
	if err == nil {
		t.Fatal("Scan on cancelled context succeeded, want error")
	}
}

func TestScanProgress(t *testing.T) {
	patients := []store.Patient{
		pat("p1", "Maria", "Rossi", time.Time{}),
		pat("p2", "Luca", "Verdi", time.Time{}),
	}
	var last int
	s := &Scanner{YieldEvery: 1, OnProgress: func(current, total int) {
		if total != 2 {
			t.Errorf("progress total = %d, want 2", total)
		}
		last = current
	}}
	if _, err := s.Scan(context.Background(), patients); err != nil {
		t.Fatalf("Scan: %v", err)
	}
	if last != 2 {
		t.Errorf("final progress = %d, want 2", last)
	}
}
