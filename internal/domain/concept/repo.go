package concept

import (
	"context"
)

// Catalog stores the concepts and drugs answers refer to.
type Catalog interface {
	SaveConcept(ctx context.Context, c *Concept) (*Concept, error)
	GetConcept(ctx context.Context, id int) (*Concept, error)
	SaveDrug(ctx context.Context, d *Drug) (*Drug, error)
	GetDrug(ctx context.Context, id int) (*Drug, error)
}

// AnswerRepository persists concept answers. Save assigns ID and, when
// empty, UUID on first insert. Loaded answers carry their concept and drug
// references. Absent answers return apperr.ErrNotFound.
type AnswerRepository interface {
	Save(ctx context.Context, a *ConceptAnswer) (*ConceptAnswer, error)
	GetByID(ctx context.Context, id int) (*ConceptAnswer, error)
	GetByUUID(ctx context.Context, uuid string) (*ConceptAnswer, error)
	// ListByConcept returns the answers of a question concept in insertion order.
	ListByConcept(ctx context.Context, conceptID int) ([]*ConceptAnswer, error)
	Delete(ctx context.Context, a *ConceptAnswer) (*ConceptAnswer, error)
}

// Repository is implemented by every storage backend.
type Repository interface {
	Catalog
	AnswerRepository
}
