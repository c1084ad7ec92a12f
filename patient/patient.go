package patient

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"scribe/etc"
	"scribe/store"
)

var (
	ErrEmptyName = errors.New("patient name is required")
	ErrNotFound  = errors.New("patient not found")
)

// Visit is one recorded encounter. Visits are immutable once appended
// and live only inside their parent patient.
type Visit struct {
	ID         string    `json:"id"`
	Date       time.Time `json:"date"`
	Transcript string    `json:"transcript"`
	Notes      string    `json:"notes"`
	Timestamp  string    `json:"timestamp"`
}

type Patient struct {
	ID         string    `json:"id"`
	Name       string    `json:"name"`
	DOB        string    `json:"dob"`
	MRN        string    `json:"mrn"`
	Conditions string    `json:"conditions"`
	Visits     []Visit   `json:"visits"`
	CreatedAt  time.Time `json:"createdAt"`
}

// Store holds the patient list in memory and writes the whole document
// through on every mutation.
type Store struct {
	docs store.Store

	mu       sync.Mutex
	patients []Patient
}

func NewStore(docs store.Store) (*Store, error) {
	s := &Store{docs: docs}
	if _, err := docs.Load(store.KeyPatients, &s.patients); err != nil {
		return nil, err
	}
	return s, nil
}

// Create adds a patient. The ID is assigned here and never changes.
func (s *Store) Create(name, dob, mrn, conditions string) (Patient, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return Patient{}, ErrEmptyName
	}

	p := Patient{
		ID:         etc.NewFreshID(),
		Name:       name,
		DOB:        strings.TrimSpace(dob),
		MRN:        strings.TrimSpace(mrn),
		Conditions: strings.TrimSpace(conditions),
		Visits:     []Visit{},
		CreatedAt:  time.Now().UTC(),
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	next := append(clone(s.patients), p)
	if err := s.docs.Save(store.KeyPatients, next); err != nil {
		return Patient{}, fmt.Errorf("save patients: %w", err)
	}
	s.patients = next
	return p, nil
}

// AppendVisit records exactly one new visit on the identified patient.
// Existing visits and all other patients are untouched.
func (s *Store) AppendVisit(patientID, transcript, notes string) (Visit, error) {
	now := time.Now()
	visit := Visit{
		ID:         etc.NewFreshID(),
		Date:       now.UTC(),
		Transcript: transcript,
		Notes:      notes,
		Timestamp:  etc.VisitStamp(now),
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	next := clone(s.patients)
	idx := -1
	for i := range next {
		if next[i].ID == patientID {
			idx = i
			break
		}
	}
	if idx < 0 {
		return Visit{}, ErrNotFound
	}

	next[idx].Visits = append(next[idx].Visits, visit)
	if err := s.docs.Save(store.KeyPatients, next); err != nil {
		return Visit{}, fmt.Errorf("save patients: %w", err)
	}
	s.patients = next
	return visit, nil
}

func (s *Store) Get(id string) (Patient, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.patients {
		if s.patients[i].ID == id {
			return copyPatient(s.patients[i]), true
		}
	}
	return Patient{}, false
}

// List returns patients sorted by name for display.
func (s *Store) List() []Patient {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := clone(s.patients)
	sort.SliceStable(out, func(i, j int) bool {
		return strings.ToLower(out[i].Name) < strings.ToLower(out[j].Name)
	})
	return out
}

func clone(patients []Patient) []Patient {
	out := make([]Patient, len(patients))
	for i := range patients {
		out[i] = copyPatient(patients[i])
	}
	return out
}

func copyPatient(p Patient) Patient {
	visits := make([]Visit, len(p.Visits))
	copy(visits, p.Visits)
	p.Visits = visits
	return p
}
