package cohort

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/google/uuid"

	"github.com/ehr/ehrcore/internal/platform/apperr"
)

// InMemoryRepo is an in-memory Repository used by tests and the "memory"
// storage driver.
type InMemoryRepo struct {
	mu      sync.RWMutex
	cohorts map[int]*Cohort
	nextID  int
}

func NewInMemoryRepo() *InMemoryRepo {
	return &InMemoryRepo{cohorts: make(map[int]*Cohort)}
}

func (r *InMemoryRepo) Save(_ context.Context, c *Cohort) (*Cohort, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	stored := c.Clone()
	if stored.ID == nil {
		r.nextID++
		id := r.nextID
		stored.ID = &id
		if stored.UUID == "" {
			stored.UUID = uuid.NewString()
		}
	} else if _, ok := r.cohorts[*stored.ID]; !ok {
		return nil, fmt.Errorf("cohort %d: %w", *stored.ID, apperr.ErrNotFound)
	}
	if stored.Members == nil {
		stored.Members = MemberSet{}
	}
	r.cohorts[*stored.ID] = stored
	return stored.Clone(), nil
}

func (r *InMemoryRepo) GetByID(_ context.Context, id int) (*Cohort, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	c, ok := r.cohorts[id]
	if !ok {
		return nil, fmt.Errorf("cohort %d: %w", id, apperr.ErrNotFound)
	}
	return c.Clone(), nil
}

func (r *InMemoryRepo) GetByUUID(_ context.Context, uid string) (*Cohort, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, c := range r.cohorts {
		if c.UUID == uid {
			return c.Clone(), nil
		}
	}
	return nil, fmt.Errorf("cohort %s: %w", uid, apperr.ErrNotFound)
}

func (r *InMemoryRepo) GetByName(_ context.Context, name string) (*Cohort, error) {
	matches := r.filter(func(c *Cohort) bool { return !c.Voided && c.Name == name })
	if len(matches) == 0 {
		return nil, fmt.Errorf("cohort named %q: %w", name, apperr.ErrNotFound)
	}
	return matches[0], nil
}

func (r *InMemoryRepo) Search(_ context.Context, nameFragment string) ([]*Cohort, error) {
	fragment := strings.ToLower(nameFragment)
	return r.filter(func(c *Cohort) bool {
		return strings.Contains(strings.ToLower(c.Name), fragment)
	}), nil
}

func (r *InMemoryRepo) ListAll(_ context.Context, includeVoided bool) ([]*Cohort, error) {
	return r.filter(func(c *Cohort) bool { return includeVoided || !c.Voided }), nil
}

func (r *InMemoryRepo) ListContaining(_ context.Context, subjectID int) ([]*Cohort, error) {
	return r.filter(func(c *Cohort) bool { return c.Members.Contains(subjectID) }), nil
}

func (r *InMemoryRepo) Delete(_ context.Context, c *Cohort) (*Cohort, error) {
	if c.ID == nil {
		return nil, fmt.Errorf("cohort %s: %w", c.UUID, apperr.ErrNotFound)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	stored, ok := r.cohorts[*c.ID]
	if !ok {
		return nil, fmt.Errorf("cohort %d: %w", *c.ID, apperr.ErrNotFound)
	}
	delete(r.cohorts, *c.ID)
	return stored, nil
}

// filter returns clones of the matching cohorts ordered by name, then id.
func (r *InMemoryRepo) filter(keep func(*Cohort) bool) []*Cohort {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := []*Cohort{}
	for _, c := range r.cohorts {
		if keep(c) {
			out = append(out, c.Clone())
		}
	}
	sortCohorts(out)
	return out
}

func sortCohorts(cs []*Cohort) {
	sort.Slice(cs, func(i, j int) bool {
		if cs[i].Name != cs[j].Name {
			return cs[i].Name < cs[j].Name
		}
		return *cs[i].ID < *cs[j].ID
	})
}
