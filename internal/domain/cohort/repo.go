package cohort

import (
	"context"
)

// Repository persists cohorts. Save is an upsert: on first insert it assigns
// ID and, when empty, UUID, and it returns the stored instance. Lookups of
// absent cohorts return apperr.ErrNotFound.
type Repository interface {
	Save(ctx context.Context, c *Cohort) (*Cohort, error)
	GetByID(ctx context.Context, id int) (*Cohort, error)
	GetByUUID(ctx context.Context, uuid string) (*Cohort, error)
	// GetByName returns the non-voided cohort with exactly this name.
	GetByName(ctx context.Context, name string) (*Cohort, error)
	// Search matches name fragments case-insensitively, ordered by name.
	Search(ctx context.Context, nameFragment string) ([]*Cohort, error)
	ListAll(ctx context.Context, includeVoided bool) ([]*Cohort, error)
	ListContaining(ctx context.Context, subjectID int) ([]*Cohort, error)
	// Delete removes the cohort and its memberships for good.
	Delete(ctx context.Context, c *Cohort) (*Cohort, error)
}
