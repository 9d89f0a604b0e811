package concept

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/google/uuid"

	"github.com/ehr/ehrcore/internal/platform/apperr"
)

// InMemoryRepo is an in-memory Repository for tests and the "memory"
// storage driver.
type InMemoryRepo struct {
	mu       sync.RWMutex
	concepts map[int]Concept
	drugs    map[int]Drug
	answers  map[int]*ConceptAnswer
	nextID   map[string]int
}

func NewInMemoryRepo() *InMemoryRepo {
	return &InMemoryRepo{
		concepts: make(map[int]Concept),
		drugs:    make(map[int]Drug),
		answers:  make(map[int]*ConceptAnswer),
		nextID:   make(map[string]int),
	}
}

func (r *InMemoryRepo) next(table string) int {
	r.nextID[table]++
	return r.nextID[table]
}

func (r *InMemoryRepo) SaveConcept(_ context.Context, c *Concept) (*Concept, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	stored := *c
	if stored.ID == 0 {
		stored.ID = r.next("concept")
	} else if _, ok := r.concepts[stored.ID]; !ok {
		return nil, fmt.Errorf("concept %d: %w", stored.ID, apperr.ErrNotFound)
	}
	if stored.UUID == "" {
		stored.UUID = uuid.NewString()
	}
	r.concepts[stored.ID] = stored
	return &stored, nil
}

func (r *InMemoryRepo) GetConcept(_ context.Context, id int) (*Concept, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	c, ok := r.concepts[id]
	if !ok {
		return nil, fmt.Errorf("concept %d: %w", id, apperr.ErrNotFound)
	}
	return &c, nil
}

func (r *InMemoryRepo) SaveDrug(_ context.Context, d *Drug) (*Drug, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	stored := *d
	if stored.ID == 0 {
		stored.ID = r.next("drug")
	} else if _, ok := r.drugs[stored.ID]; !ok {
		return nil, fmt.Errorf("drug %d: %w", stored.ID, apperr.ErrNotFound)
	}
	if stored.UUID == "" {
		stored.UUID = uuid.NewString()
	}
	r.drugs[stored.ID] = stored
	return &stored, nil
}

func (r *InMemoryRepo) GetDrug(_ context.Context, id int) (*Drug, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	d, ok := r.drugs[id]
	if !ok {
		return nil, fmt.Errorf("drug %d: %w", id, apperr.ErrNotFound)
	}
	return &d, nil
}

func (r *InMemoryRepo) Save(_ context.Context, a *ConceptAnswer) (*ConceptAnswer, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	stored := a.Clone()
	if stored.ID == nil {
		id := r.next("concept_answer")
		stored.ID = &id
		if stored.UUID == "" {
			stored.UUID = uuid.NewString()
		}
	} else if _, ok := r.answers[*stored.ID]; !ok {
		return nil, fmt.Errorf("concept answer %d: %w", *stored.ID, apperr.ErrNotFound)
	}
	r.answers[*stored.ID] = stored
	return stored.Clone(), nil
}

func (r *InMemoryRepo) GetByID(_ context.Context, id int) (*ConceptAnswer, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	a, ok := r.answers[id]
	if !ok {
		return nil, fmt.Errorf("concept answer %d: %w", id, apperr.ErrNotFound)
	}
	return a.Clone(), nil
}

func (r *InMemoryRepo) GetByUUID(_ context.Context, uid string) (*ConceptAnswer, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, a := range r.answers {
		if a.UUID == uid {
			return a.Clone(), nil
		}
	}
	return nil, fmt.Errorf("concept answer %s: %w", uid, apperr.ErrNotFound)
}

func (r *InMemoryRepo) ListByConcept(_ context.Context, conceptID int) ([]*ConceptAnswer, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := []*ConceptAnswer{}
	for _, a := range r.answers {
		if a.Concept != nil && a.Concept.ID == conceptID {
			out = append(out, a.Clone())
		}
	}
	sort.Slice(out, func(i, j int) bool { return *out[i].ID < *out[j].ID })
	return out, nil
}

func (r *InMemoryRepo) Delete(_ context.Context, a *ConceptAnswer) (*ConceptAnswer, error) {
	if a.ID == nil {
		return nil, fmt.Errorf("concept answer %s: %w", a.UUID, apperr.ErrNotFound)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	stored, ok := r.answers[*a.ID]
	if !ok {
		return nil, fmt.Errorf("concept answer %d: %w", *a.ID, apperr.ErrNotFound)
	}
	delete(r.answers, *a.ID)
	return stored, nil
}
