package concept

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/ehr/ehrcore/internal/platform/apperr"
	"github.com/ehr/ehrcore/internal/platform/db"
)

type repoSQLite struct {
	sqlDB *sql.DB
}

// NewAnswerRepoSQLite returns a Repository over a database opened with
// db.OpenSQLite.
func NewAnswerRepoSQLite(sqlDB *sql.DB) Repository {
	return &repoSQLite{sqlDB: sqlDB}
}

func (r *repoSQLite) SaveConcept(ctx context.Context, c *Concept) (*Concept, error) {
	stored := *c
	if stored.UUID == "" {
		stored.UUID = uuid.NewString()
	}
	if stored.ID == 0 {
		res, err := r.sqlDB.ExecContext(ctx,
			`INSERT INTO concept (uuid, name, code, system) VALUES (?, ?, ?, ?)`,
			stored.UUID, stored.Name, stored.Code, stored.System)
		if err != nil {
			return nil, fmt.Errorf("insert concept: %w", err)
		}
		id, err := res.LastInsertId()
		if err != nil {
			return nil, fmt.Errorf("read concept id: %w", err)
		}
		stored.ID = int(id)
		return &stored, nil
	}
	res, err := r.sqlDB.ExecContext(ctx,
		`UPDATE concept SET name = ?, code = ?, system = ? WHERE concept_id = ?`,
		stored.Name, stored.Code, stored.System, stored.ID)
	if err != nil {
		return nil, fmt.Errorf("update concept: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return nil, fmt.Errorf("concept %d: %w", stored.ID, apperr.ErrNotFound)
	}
	return &stored, nil
}

func (r *repoSQLite) GetConcept(ctx context.Context, id int) (*Concept, error) {
	var c Concept
	err := r.sqlDB.QueryRowContext(ctx,
		`SELECT concept_id, uuid, name, code, system FROM concept WHERE concept_id = ?`, id,
	).Scan(&c.ID, &c.UUID, &c.Name, &c.Code, &c.System)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("concept %d: %w", id, apperr.ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	return &c, nil
}

func (r *repoSQLite) SaveDrug(ctx context.Context, d *Drug) (*Drug, error) {
	stored := *d
	if stored.UUID == "" {
		stored.UUID = uuid.NewString()
	}
	if stored.ID == 0 {
		res, err := r.sqlDB.ExecContext(ctx,
			`INSERT INTO drug (uuid, name, concept_id) VALUES (?, ?, ?)`,
			stored.UUID, stored.Name, db.IntOrNull(stored.ConceptID))
		if err != nil {
			return nil, fmt.Errorf("insert drug: %w", err)
		}
		id, err := res.LastInsertId()
		if err != nil {
			return nil, fmt.Errorf("read drug id: %w", err)
		}
		stored.ID = int(id)
		return &stored, nil
	}
	res, err := r.sqlDB.ExecContext(ctx,
		`UPDATE drug SET name = ?, concept_id = ? WHERE drug_id = ?`,
		stored.Name, db.IntOrNull(stored.ConceptID), stored.ID)
	if err != nil {
		return nil, fmt.Errorf("update drug: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return nil, fmt.Errorf("drug %d: %w", stored.ID, apperr.ErrNotFound)
	}
	return &stored, nil
}

func (r *repoSQLite) GetDrug(ctx context.Context, id int) (*Drug, error) {
	var (
		d         Drug
		conceptID sql.NullInt64
	)
	err := r.sqlDB.QueryRowContext(ctx,
		`SELECT drug_id, uuid, name, concept_id FROM drug WHERE drug_id = ?`, id,
	).Scan(&d.ID, &d.UUID, &d.Name, &conceptID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("drug %d: %w", id, apperr.ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	d.ConceptID = db.NullInt(conceptID)
	return &d, nil
}

func (r *repoSQLite) Save(ctx context.Context, a *ConceptAnswer) (*ConceptAnswer, error) {
	stored := a.Clone()
	answerConcept, answerDrug := refIDs(stored)

	if stored.ID == nil {
		if stored.UUID == "" {
			stored.UUID = uuid.NewString()
		}
		res, err := r.sqlDB.ExecContext(ctx, `
			INSERT INTO concept_answer (uuid, concept_id, answer_concept, answer_drug, creator, date_created)
			VALUES (?, ?, ?, ?, ?, ?)`,
			stored.UUID, stored.Concept.ID, db.IntOrNull(answerConcept), db.IntOrNull(answerDrug),
			stored.Creator, db.FormatTime(stored.DateCreated))
		if err != nil {
			return nil, fmt.Errorf("insert concept answer: %w", err)
		}
		id64, err := res.LastInsertId()
		if err != nil {
			return nil, fmt.Errorf("read concept answer id: %w", err)
		}
		id := int(id64)
		stored.ID = &id
		return stored, nil
	}

	res, err := r.sqlDB.ExecContext(ctx, `
		UPDATE concept_answer SET concept_id = ?, answer_concept = ?, answer_drug = ?
		WHERE concept_answer_id = ?`,
		stored.Concept.ID, db.IntOrNull(answerConcept), db.IntOrNull(answerDrug), *stored.ID)
	if err != nil {
		return nil, fmt.Errorf("update concept answer: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return nil, fmt.Errorf("concept answer %d: %w", *stored.ID, apperr.ErrNotFound)
	}
	return stored, nil
}

func (r *repoSQLite) GetByID(ctx context.Context, id int) (*ConceptAnswer, error) {
	return r.one(ctx, fmt.Sprintf("concept answer %d", id), `WHERE ca.concept_answer_id = ?`, id)
}

func (r *repoSQLite) GetByUUID(ctx context.Context, uid string) (*ConceptAnswer, error) {
	return r.one(ctx, "concept answer "+uid, `WHERE ca.uuid = ?`, uid)
}

func (r *repoSQLite) ListByConcept(ctx context.Context, conceptID int) ([]*ConceptAnswer, error) {
	return r.list(ctx, `WHERE ca.concept_id = ?`, conceptID)
}

func (r *repoSQLite) Delete(ctx context.Context, a *ConceptAnswer) (*ConceptAnswer, error) {
	if a.ID == nil {
		return nil, fmt.Errorf("concept answer %s: %w", a.UUID, apperr.ErrNotFound)
	}
	existing, err := r.GetByID(ctx, *a.ID)
	if err != nil {
		return nil, err
	}
	if _, err := r.sqlDB.ExecContext(ctx, `DELETE FROM concept_answer WHERE concept_answer_id = ?`, *a.ID); err != nil {
		return nil, fmt.Errorf("delete concept answer: %w", err)
	}
	return existing, nil
}

func (r *repoSQLite) one(ctx context.Context, what, where string, args ...interface{}) (*ConceptAnswer, error) {
	answers, err := r.list(ctx, where, args...)
	if err != nil {
		return nil, err
	}
	if len(answers) == 0 {
		return nil, fmt.Errorf("%s: %w", what, apperr.ErrNotFound)
	}
	return answers[0], nil
}

func (r *repoSQLite) list(ctx context.Context, where string, args ...interface{}) ([]*ConceptAnswer, error) {
	rows, err := r.sqlDB.QueryContext(ctx, answerSelect+where+` ORDER BY ca.concept_answer_id`, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	answers := []*ConceptAnswer{}
	for rows.Next() {
		a, err := scanAnswerSQLite(rows)
		if err != nil {
			return nil, err
		}
		answers = append(answers, a)
	}
	return answers, rows.Err()
}

func scanAnswerSQLite(rows *sql.Rows) (*ConceptAnswer, error) {
	var (
		a                                 ConceptAnswer
		id                                int
		dateCreated                       string
		q                                 Concept
		ansID, drugID, drugConcept        sql.NullInt64
		ansUUID, ansName, ansCode, ansSys sql.NullString
		drugUUID, drugName                sql.NullString
	)
	err := rows.Scan(
		&id, &a.UUID, &a.Creator, &dateCreated,
		&q.ID, &q.UUID, &q.Name, &q.Code, &q.System,
		&ansID, &ansUUID, &ansName, &ansCode, &ansSys,
		&drugID, &drugUUID, &drugName, &drugConcept,
	)
	if err != nil {
		return nil, err
	}
	if a.DateCreated, err = db.ParseTime(dateCreated); err != nil {
		return nil, err
	}
	a.ID = &id
	a.Concept = &q
	if ansID.Valid {
		a.AnswerConcept = &Concept{
			ID: int(ansID.Int64), UUID: ansUUID.String, Name: ansName.String,
			Code: ansCode.String, System: ansSys.String,
		}
	}
	if drugID.Valid {
		a.AnswerDrug = &Drug{
			ID: int(drugID.Int64), UUID: drugUUID.String, Name: drugName.String,
			ConceptID: db.NullInt(drugConcept),
		}
	}
	return &a, nil
}
