package cohort

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/ehr/ehrcore/internal/platform/apperr"
	"github.com/ehr/ehrcore/internal/platform/db"
)

const cohortColumns = `cohort_id, uuid, name, description, voided, voided_by, date_voided, void_reason,
	creator, date_created, changed_by, date_changed`

// queryable abstracts pgxpool.Pool and pgx.Tx.
type queryable interface {
	Exec(ctx context.Context, sql string, args ...interface{}) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...interface{}) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...interface{}) pgx.Row
}

type repoPG struct {
	pool *pgxpool.Pool
}

// NewRepoPG returns a PostgreSQL Repository. Saves write the cohort row and
// its member rows in one transaction, joining one already on ctx.
func NewRepoPG(pool *pgxpool.Pool) Repository {
	return &repoPG{pool: pool}
}

func (r *repoPG) conn(ctx context.Context) queryable {
	if tx := db.TxFromContext(ctx); tx != nil {
		return tx
	}
	return r.pool
}

func (r *repoPG) Save(ctx context.Context, c *Cohort) (*Cohort, error) {
	stored := c.Clone()
	if stored.Members == nil {
		stored.Members = MemberSet{}
	}

	err := db.InTx(ctx, r.pool, func(ctx context.Context, tx pgx.Tx) error {
		if stored.ID == nil {
			if stored.UUID == "" {
				stored.UUID = uuid.NewString()
			}
			var id int
			err := tx.QueryRow(ctx, `
				INSERT INTO cohort (
					uuid, name, description, voided, voided_by, date_voided, void_reason,
					creator, date_created, changed_by, date_changed
				) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
				RETURNING cohort_id`,
				stored.UUID, stored.Name, stored.Description, stored.Voided, stored.VoidedBy,
				stored.DateVoided, stored.VoidReason, stored.Creator, stored.DateCreated,
				stored.ChangedBy, stored.DateChanged,
			).Scan(&id)
			if err != nil {
				return fmt.Errorf("insert cohort: %w", err)
			}
			stored.ID = &id
		} else {
			tag, err := tx.Exec(ctx, `
				UPDATE cohort SET
					name = $2, description = $3, voided = $4, voided_by = $5, date_voided = $6,
					void_reason = $7, changed_by = $8, date_changed = $9
				WHERE cohort_id = $1`,
				*stored.ID, stored.Name, stored.Description, stored.Voided, stored.VoidedBy,
				stored.DateVoided, stored.VoidReason, stored.ChangedBy, stored.DateChanged,
			)
			if err != nil {
				return fmt.Errorf("update cohort: %w", err)
			}
			if tag.RowsAffected() == 0 {
				return fmt.Errorf("cohort %d: %w", *stored.ID, apperr.ErrNotFound)
			}
			if _, err := tx.Exec(ctx, `DELETE FROM cohort_member WHERE cohort_id = $1`, *stored.ID); err != nil {
				return fmt.Errorf("clear cohort members: %w", err)
			}
		}

		if stored.Members.Len() == 0 {
			return nil
		}
		batch := &pgx.Batch{}
		for _, subjectID := range stored.Members.Sorted() {
			batch.Queue(`INSERT INTO cohort_member (cohort_id, subject_id) VALUES ($1, $2)`, *stored.ID, subjectID)
		}
		if err := tx.SendBatch(ctx, batch).Close(); err != nil {
			return fmt.Errorf("insert cohort members: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return stored, nil
}

func (r *repoPG) GetByID(ctx context.Context, id int) (*Cohort, error) {
	return r.one(ctx, fmt.Sprintf("cohort %d", id), `WHERE cohort_id = $1`, id)
}

func (r *repoPG) GetByUUID(ctx context.Context, uid string) (*Cohort, error) {
	return r.one(ctx, "cohort "+uid, `WHERE uuid = $1`, uid)
}

func (r *repoPG) GetByName(ctx context.Context, name string) (*Cohort, error) {
	return r.one(ctx, fmt.Sprintf("cohort named %q", name), `WHERE name = $1 AND NOT voided`, name)
}

func (r *repoPG) Search(ctx context.Context, nameFragment string) ([]*Cohort, error) {
	return r.list(ctx, `WHERE name ILIKE $1`, "%"+likeEscaper.Replace(nameFragment)+"%")
}

func (r *repoPG) ListAll(ctx context.Context, includeVoided bool) ([]*Cohort, error) {
	if includeVoided {
		return r.list(ctx, ``)
	}
	return r.list(ctx, `WHERE NOT voided`)
}

func (r *repoPG) ListContaining(ctx context.Context, subjectID int) ([]*Cohort, error) {
	return r.list(ctx, `WHERE cohort_id IN (SELECT cohort_id FROM cohort_member WHERE subject_id = $1)`, subjectID)
}

func (r *repoPG) Delete(ctx context.Context, c *Cohort) (*Cohort, error) {
	if c.ID == nil {
		return nil, fmt.Errorf("cohort %s: %w", c.UUID, apperr.ErrNotFound)
	}
	var deleted *Cohort
	err := db.InTx(ctx, r.pool, func(ctx context.Context, _ pgx.Tx) error {
		existing, err := r.GetByID(ctx, *c.ID)
		if err != nil {
			return err
		}
		// cohort_member rows go with the cascade.
		if _, err := r.conn(ctx).Exec(ctx, `DELETE FROM cohort WHERE cohort_id = $1`, *c.ID); err != nil {
			return fmt.Errorf("delete cohort: %w", err)
		}
		deleted = existing
		return nil
	})
	if err != nil {
		return nil, err
	}
	return deleted, nil
}

func (r *repoPG) one(ctx context.Context, what, where string, args ...interface{}) (*Cohort, error) {
	cohorts, err := r.list(ctx, where, args...)
	if err != nil {
		return nil, err
	}
	if len(cohorts) == 0 {
		return nil, fmt.Errorf("%s: %w", what, apperr.ErrNotFound)
	}
	return cohorts[0], nil
}

func (r *repoPG) list(ctx context.Context, where string, args ...interface{}) ([]*Cohort, error) {
	rows, err := r.conn(ctx).Query(ctx,
		`SELECT `+cohortColumns+` FROM cohort `+where+` ORDER BY name, cohort_id`, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	cohorts := []*Cohort{}
	byID := make(map[int]*Cohort)
	ids := []int{}
	for rows.Next() {
		c, err := scanCohort(rows)
		if err != nil {
			return nil, err
		}
		cohorts = append(cohorts, c)
		byID[*c.ID] = c
		ids = append(ids, *c.ID)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if len(ids) == 0 {
		return cohorts, nil
	}

	memberRows, err := r.conn(ctx).Query(ctx,
		`SELECT cohort_id, subject_id FROM cohort_member WHERE cohort_id = ANY($1)`, ids)
	if err != nil {
		return nil, err
	}
	defer memberRows.Close()
	for memberRows.Next() {
		var cohortID, subjectID int
		if err := memberRows.Scan(&cohortID, &subjectID); err != nil {
			return nil, err
		}
		if c, ok := byID[cohortID]; ok {
			c.Members[subjectID] = struct{}{}
		}
	}
	return cohorts, memberRows.Err()
}

func scanCohort(row pgx.Row) (*Cohort, error) {
	var c Cohort
	var id int
	err := row.Scan(
		&id, &c.UUID, &c.Name, &c.Description, &c.Voided, &c.VoidedBy, &c.DateVoided, &c.VoidReason,
		&c.Creator, &c.DateCreated, &c.ChangedBy, &c.DateChanged,
	)
	if err != nil {
		return nil, err
	}
	c.ID = &id
	c.Members = MemberSet{}
	return &c, nil
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
