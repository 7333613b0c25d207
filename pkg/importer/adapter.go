// Package importer resolves rows from external CSV exports into canonical
// patient records: each row either matches an existing patient (filling
// only its empty fields) or creates a new one, and appointment rows become
// visit records. Source formats are pluggable adapters.
package importer

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"sync"

	"github.com/hazyhaar/medrecon/pkg/codice"
	"github.com/hazyhaar/medrecon/pkg/store"
)

// Request names the files for one import run. VisitsFile is only used by
// adapters that consume a companion appointments export.
type Request struct {
	PatientsFile string
	VisitsFile   string
}

// Env carries the collaborators an adapter works against.
type Env struct {
	Patients store.PatientStore
	Visits   store.VisitStore
	Synth    *codice.Synthesizer
	Logger   *slog.Logger
}

func (e Env) logger() *slog.Logger {
	if e.Logger == nil {
		return slog.Default()
	}
	return e.Logger
}

// Counters is the aggregate outcome of one import run. Malformed rows
// never fail the batch; they only move these numbers.
type Counters struct {
	PatientsImported int `json:"patients_imported"`
	PatientsUpdated  int `json:"patients_updated"`
	PatientsSkipped  int `json:"patients_skipped"`
	VisitsImported   int `json:"visits_imported"`
	VisitsSkipped    int `json:"visits_skipped"`
	NotesImported    int `json:"notes_imported"`
}

// Adapter decodes, parses and resolves one source format.
type Adapter interface {
	// ID returns the unique identifier of this adapter (e.g. "paired-export").
	ID() string
	// Description returns a human-readable description.
	Description() string
	// Import runs the whole pipeline for req and returns the counters.
	Import(ctx context.Context, req Request, env Env) (*Counters, error)
}

var (
	registryMu sync.RWMutex
	adapters   = make(map[string]Adapter)
)

// Register adds an adapter to the global registry.
func Register(a Adapter) {
	registryMu.Lock()
	defer registryMu.Unlock()
	adapters[a.ID()] = a
}

// Get returns a registered adapter by ID, or an error if not found.
func Get(id string) (Adapter, error) {
	registryMu.RLock()
	defer registryMu.RUnlock()
	a, ok := adapters[id]
	if !ok {
		return nil, fmt.Errorf("unknown import format: %q", id)
	}
	return a, nil
}

// All returns all registered adapters sorted by ID.
func All() []Adapter {
	registryMu.RLock()
	defer registryMu.RUnlock()
	result := make([]Adapter, 0, len(adapters))
	for _, a := range adapters {
		result = append(result, a)
	}
	sort.Slice(result, func(i, j int) bool { return result[i].ID() < result[j].ID() })
	return result
}
