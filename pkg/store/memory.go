package store

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
)

// MemPatients is an in-memory PatientStore, used in tests and by embedders
// that bring their own persistence.
type MemPatients struct {
	mu      sync.RWMutex
	records map[string]*Patient
}

// NewMemPatients returns an empty in-memory patient store.
func NewMemPatients() *MemPatients {
	return &MemPatients{records: make(map[string]*Patient)}
}

func (m *MemPatients) GetAll(_ context.Context) ([]Patient, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]Patient, 0, len(m.records))
	for _, p := range m.records {
		out = append(out, *p)
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.Before(out[j].CreatedAt)
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

func (m *MemPatients) GetByID(_ context.Context, id string) (*Patient, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	p, ok := m.records[id]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *p
	return &cp, nil
}

func (m *MemPatients) GetByIdentifier(_ context.Context, code string) (*Patient, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if code == "" {
		return nil, ErrNotFound
	}
	for _, p := range m.records {
		if p.Identifier == code {
			cp := *p
			return &cp, nil
		}
	}
	return nil, ErrNotFound
}

func (m *MemPatients) Add(_ context.Context, p *Patient) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if p.ID == "" {
		p.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if p.CreatedAt.IsZero() {
		p.CreatedAt = now
	}
	p.UpdatedAt = now
	cp := *p
	m.records[p.ID] = &cp
	return p.ID, nil
}

func (m *MemPatients) Update(_ context.Context, id string, fields Fields) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.records[id]
	if !ok {
		return ErrNotFound
	}
	for key, val := range fields {
		if key == FieldIdentifierSynthesized {
			p.IdentifierSynthesized, _ = val.(bool)
			continue
		}
		s, _ := val.(string)
		switch key {
		case FieldGivenName:
			p.GivenName = s
		case FieldSurname:
			p.Surname = s
		case FieldBirthDate:
			p.BirthDate = s
		case FieldBirthPlace:
			p.BirthPlace = s
		case FieldSex:
			p.Sex = s
		case FieldIdentifier:
			p.Identifier = s
		case FieldEmail:
			p.Email = s
		case FieldPhone:
			p.Phone = s
		case FieldAddress:
			p.Address = s
		case FieldNotes:
			p.Notes = s
		}
	}
	p.UpdatedAt = time.Now().UTC()
	return nil
}

func (m *MemPatients) Delete(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.records[id]; !ok {
		return ErrNotFound
	}
	delete(m.records, id)
	return nil
}

// MemVisits is an in-memory VisitStore.
type MemVisits struct {
	mu      sync.RWMutex
	records map[string]*Visit
}

// NewMemVisits returns an empty in-memory visit store.
func NewMemVisits() *MemVisits {
	return &MemVisits{records: make(map[string]*Visit)}
}

func (m *MemVisits) GetByPatientID(_ context.Context, patientID string) ([]Visit, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []Visit
	for _, v := range m.records {
		if v.PatientID == patientID {
			out = append(out, *v)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Date != out[j].Date {
			return out[i].Date < out[j].Date
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

func (m *MemVisits) Add(_ context.Context, v *Visit) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if v.ID == "" {
		v.ID = uuid.NewString()
	}
	if v.CreatedAt.IsZero() {
		v.CreatedAt = time.Now().UTC()
	}
	cp := *v
	m.records[v.ID] = &cp
	return v.ID, nil
}

func (m *MemVisits) Update(_ context.Context, id string, fields Fields) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	v, ok := m.records[id]
	if !ok {
		return ErrNotFound
	}
	for key, val := range fields {
		s, _ := val.(string)
		switch key {
		case VisitFieldPatientID:
			v.PatientID = s
		case VisitFieldDate:
			v.Date = s
		case VisitFieldDescription:
			v.Description = s
		case VisitFieldNotes:
			v.Notes = s
		}
	}
	return nil
}
