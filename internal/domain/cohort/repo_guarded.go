package cohort

import (
	"context"

	"github.com/ehr/ehrcore/internal/platform/db"
)

type guardedRepo struct {
	inner   Repository
	breaker *db.Breaker
}

// NewGuardedRepo routes every call through the storage circuit breaker.
// Backend failures surface as *apperr.StorageError; ErrNotFound passes
// through untouched.
func NewGuardedRepo(inner Repository, breaker *db.Breaker) Repository {
	return &guardedRepo{inner: inner, breaker: breaker}
}

func (r *guardedRepo) Save(ctx context.Context, c *Cohort) (*Cohort, error) {
	return db.Guard(r.breaker, "cohort.save", func() (*Cohort, error) { return r.inner.Save(ctx, c) })
}

func (r *guardedRepo) GetByID(ctx context.Context, id int) (*Cohort, error) {
	return db.Guard(r.breaker, "cohort.get", func() (*Cohort, error) { return r.inner.GetByID(ctx, id) })
}

func (r *guardedRepo) GetByUUID(ctx context.Context, uid string) (*Cohort, error) {
	return db.Guard(r.breaker, "cohort.get_by_uuid", func() (*Cohort, error) { return r.inner.GetByUUID(ctx, uid) })
}

func (r *guardedRepo) GetByName(ctx context.Context, name string) (*Cohort, error) {
	return db.Guard(r.breaker, "cohort.get_by_name", func() (*Cohort, error) { return r.inner.GetByName(ctx, name) })
}

func (r *guardedRepo) Search(ctx context.Context, nameFragment string) ([]*Cohort, error) {
	return db.Guard(r.breaker, "cohort.search", func() ([]*Cohort, error) { return r.inner.Search(ctx, nameFragment) })
}

func (r *guardedRepo) ListAll(ctx context.Context, includeVoided bool) ([]*Cohort, error) {
	return db.Guard(r.breaker, "cohort.list", func() ([]*Cohort, error) { return r.inner.ListAll(ctx, includeVoided) })
}

func (r *guardedRepo) ListContaining(ctx context.Context, subjectID int) ([]*Cohort, error) {
	return db.Guard(r.breaker, "cohort.list_containing", func() ([]*Cohort, error) {
		return r.inner.ListContaining(ctx, subjectID)
	})
}

func (r *guardedRepo) Delete(ctx context.Context, c *Cohort) (*Cohort, error) {
	return db.Guard(r.breaker, "cohort.delete", func() (*Cohort, error) { return r.inner.Delete(ctx, c) })
}
