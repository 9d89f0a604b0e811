package concept

import (
	"context"

	"github.com/ehr/ehrcore/internal/platform/db"
)

type guardedRepo struct {
	inner   Repository
	breaker *db.Breaker
}

// NewGuardedRepo routes every call through the storage circuit breaker.
func NewGuardedRepo(inner Repository, breaker *db.Breaker) Repository {
	return &guardedRepo{inner: inner, breaker: breaker}
}

func (r *guardedRepo) SaveConcept(ctx context.Context, c *Concept) (*Concept, error) {
	return db.Guard(r.breaker, "concept.save", func() (*Concept, error) { return r.inner.SaveConcept(ctx, c) })
}

func (r *guardedRepo) GetConcept(ctx context.Context, id int) (*Concept, error) {
	return db.Guard(r.breaker, "concept.get", func() (*Concept, error) { return r.inner.GetConcept(ctx, id) })
}

func (r *guardedRepo) SaveDrug(ctx context.Context, d *Drug) (*Drug, error) {
	return db.Guard(r.breaker, "drug.save", func() (*Drug, error) { return r.inner.SaveDrug(ctx, d) })
}

func (r *guardedRepo) GetDrug(ctx context.Context, id int) (*Drug, error) {
	return db.Guard(r.breaker, "drug.get", func() (*Drug, error) { return r.inner.GetDrug(ctx, id) })
}

func (r *guardedRepo) Save(ctx context.Context, a *ConceptAnswer) (*ConceptAnswer, error) {
	return db.Guard(r.breaker, "concept_answer.save", func() (*ConceptAnswer, error) { return r.inner.Save(ctx, a) })
}

func (r *guardedRepo) GetByID(ctx context.Context, id int) (*ConceptAnswer, error) {
	return db.Guard(r.breaker, "concept_answer.get", func() (*ConceptAnswer, error) { return r.inner.GetByID(ctx, id) })
}

func (r *guardedRepo) GetByUUID(ctx context.Context, uid string) (*ConceptAnswer, error) {
	return db.Guard(r.breaker, "concept_answer.get_by_uuid", func() (*ConceptAnswer, error) {
		return r.inner.GetByUUID(ctx, uid)
	})
}

func (r *guardedRepo) ListByConcept(ctx context.Context, conceptID int) ([]*ConceptAnswer, error) {
	return db.Guard(r.breaker, "concept_answer.list", func() ([]*ConceptAnswer, error) {
		return r.inner.ListByConcept(ctx, conceptID)
	})
}

func (r *guardedRepo) Delete(ctx context.Context, a *ConceptAnswer) (*ConceptAnswer, error) {
	return db.Guard(r.breaker, "concept_answer.delete", func() (*ConceptAnswer, error) { return r.inner.Delete(ctx, a) })
}
