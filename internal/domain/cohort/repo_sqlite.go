package cohort

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/ehr/ehrcore/internal/platform/apperr"
	"github.com/ehr/ehrcore/internal/platform/db"
)

type repoSQLite struct {
	sqlDB *sql.DB
}

// NewRepoSQLite returns a Repository over a database opened with
// db.OpenSQLite. Timestamps are stored as RFC 3339 text.
func NewRepoSQLite(sqlDB *sql.DB) Repository {
	return &repoSQLite{sqlDB: sqlDB}
}

type sqlQuerier interface {
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...interface{}) (*sql.Rows, error)
}

func (r *repoSQLite) Save(ctx context.Context, c *Cohort) (*Cohort, error) {
	stored := c.Clone()
	if stored.Members == nil {
		stored.Members = MemberSet{}
	}

	tx, err := r.sqlDB.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	if stored.ID == nil {
		if stored.UUID == "" {
			stored.UUID = uuid.NewString()
		}
		res, err := tx.ExecContext(ctx, `
			INSERT INTO cohort (
				uuid, name, description, voided, voided_by, date_voided, void_reason,
				creator, date_created, changed_by, date_changed
			) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			stored.UUID, stored.Name, stored.Description, stored.Voided, db.StringOrNull(stored.VoidedBy),
			db.FormatTimePtr(stored.DateVoided), db.StringOrNull(stored.VoidReason), stored.Creator,
			db.FormatTime(stored.DateCreated), db.StringOrNull(stored.ChangedBy), db.FormatTimePtr(stored.DateChanged),
		)
		if err != nil {
			return nil, fmt.Errorf("insert cohort: %w", err)
		}
		id64, err := res.LastInsertId()
		if err != nil {
			return nil, fmt.Errorf("read cohort id: %w", err)
		}
		id := int(id64)
		stored.ID = &id
	} else {
		res, err := tx.ExecContext(ctx, `
			UPDATE cohort SET
				name = ?, description = ?, voided = ?, voided_by = ?, date_voided = ?,
				void_reason = ?, changed_by = ?, date_changed = ?
			WHERE cohort_id = ?`,
			stored.Name, stored.Description, stored.Voided, db.StringOrNull(stored.VoidedBy),
			db.FormatTimePtr(stored.DateVoided), db.StringOrNull(stored.VoidReason), db.StringOrNull(stored.ChangedBy),
			db.FormatTimePtr(stored.DateChanged), *stored.ID,
		)
		if err != nil {
			return nil, fmt.Errorf("update cohort: %w", err)
		}
		if n, _ := res.RowsAffected(); n == 0 {
			return nil, fmt.Errorf("cohort %d: %w", *stored.ID, apperr.ErrNotFound)
		}
		if _, err := tx.ExecContext(ctx, `DELETE FROM cohort_member WHERE cohort_id = ?`, *stored.ID); err != nil {
			return nil, fmt.Errorf("clear cohort members: %w", err)
		}
	}

	for _, subjectID := range stored.Members.Sorted() {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO cohort_member (cohort_id, subject_id) VALUES (?, ?)`, *stored.ID, subjectID); err != nil {
			return nil, fmt.Errorf("insert cohort member: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit cohort: %w", err)
	}
	return stored, nil
}

func (r *repoSQLite) GetByID(ctx context.Context, id int) (*Cohort, error) {
	return r.one(ctx, fmt.Sprintf("cohort %d", id), `WHERE cohort_id = ?`, id)
}

func (r *repoSQLite) GetByUUID(ctx context.Context, uid string) (*Cohort, error) {
	return r.one(ctx, "cohort "+uid, `WHERE uuid = ?`, uid)
}

func (r *repoSQLite) GetByName(ctx context.Context, name string) (*Cohort, error) {
	return r.one(ctx, fmt.Sprintf("cohort named %q", name), `WHERE name = ? AND voided = 0`, name)
}

func (r *repoSQLite) Search(ctx context.Context, nameFragment string) ([]*Cohort, error) {
	pattern := "%" + likeEscaper.Replace(strings.ToLower(nameFragment)) + "%"
	return r.list(ctx, r.sqlDB, `WHERE LOWER(name) LIKE ? ESCAPE '\'`, pattern)
}

func (r *repoSQLite) ListAll(ctx context.Context, includeVoided bool) ([]*Cohort, error) {
	if includeVoided {
		return r.list(ctx, r.sqlDB, ``)
	}
	return r.list(ctx, r.sqlDB, `WHERE voided = 0`)
}

func (r *repoSQLite) ListContaining(ctx context.Context, subjectID int) ([]*Cohort, error) {
	return r.list(ctx, r.sqlDB, `WHERE cohort_id IN (SELECT cohort_id FROM cohort_member WHERE subject_id = ?)`, subjectID)
}

func (r *repoSQLite) Delete(ctx context.Context, c *Cohort) (*Cohort, error) {
	if c.ID == nil {
		return nil, fmt.Errorf("cohort %s: %w", c.UUID, apperr.ErrNotFound)
	}
	tx, err := r.sqlDB.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	existing, err := r.list(ctx, tx, `WHERE cohort_id = ?`, *c.ID)
	if err != nil {
		return nil, err
	}
	if len(existing) == 0 {
		return nil, fmt.Errorf("cohort %d: %w", *c.ID, apperr.ErrNotFound)
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM cohort_member WHERE cohort_id = ?`, *c.ID); err != nil {
		return nil, fmt.Errorf("delete cohort members: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM cohort WHERE cohort_id = ?`, *c.ID); err != nil {
		return nil, fmt.Errorf("delete cohort: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit cohort delete: %w", err)
	}
	return existing[0], nil
}

func (r *repoSQLite) one(ctx context.Context, what, where string, args ...interface{}) (*Cohort, error) {
	cohorts, err := r.list(ctx, r.sqlDB, where, args...)
	if err != nil {
		return nil, err
	}
	if len(cohorts) == 0 {
		return nil, fmt.Errorf("%s: %w", what, apperr.ErrNotFound)
	}
	return cohorts[0], nil
}

func (r *repoSQLite) list(ctx context.Context, q sqlQuerier, where string, args ...interface{}) ([]*Cohort, error) {
	rows, err := q.QueryContext(ctx,
		`SELECT `+cohortColumns+` FROM cohort `+where+` ORDER BY name, cohort_id`, args...)
	if err != nil {
		return nil, err
	}
	cohorts := []*Cohort{}
	byID := make(map[int]*Cohort)
	for rows.Next() {
		c, err := scanCohortSQLite(rows)
		if err != nil {
			rows.Close()
			return nil, err
		}
		cohorts = append(cohorts, c)
		byID[*c.ID] = c
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if len(cohorts) == 0 {
		return cohorts, nil
	}

	placeholders := make([]string, 0, len(cohorts))
	ids := make([]interface{}, 0, len(cohorts))
	for _, c := range cohorts {
		placeholders = append(placeholders, "?")
		ids = append(ids, *c.ID)
	}
	memberRows, err := q.QueryContext(ctx,
		`SELECT cohort_id, subject_id FROM cohort_member WHERE cohort_id IN (`+strings.Join(placeholders, ",")+`)`, ids...)
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

func scanCohortSQLite(rows *sql.Rows) (*Cohort, error) {
	var (
		c                               Cohort
		id                              int
		dateCreated                     string
		dateVoided, dateChanged         sql.NullString
		voidedBy, voidReason, changedBy sql.NullString
	)
	err := rows.Scan(
		&id, &c.UUID, &c.Name, &c.Description, &c.Voided, &voidedBy, &dateVoided, &voidReason,
		&c.Creator, &dateCreated, &changedBy, &dateChanged,
	)
	if err != nil {
		return nil, err
	}
	c.ID = &id
	c.Members = MemberSet{}
	c.VoidedBy = db.NullString(voidedBy)
	c.VoidReason = db.NullString(voidReason)
	c.ChangedBy = db.NullString(changedBy)
	if c.DateCreated, err = db.ParseTime(dateCreated); err != nil {
		return nil, err
	}
	if c.DateVoided, err = db.ParseNullTime(dateVoided); err != nil {
		return nil, err
	}
	if c.DateChanged, err = db.ParseNullTime(dateChanged); err != nil {
		return nil, err
	}
	return &c, nil
}
