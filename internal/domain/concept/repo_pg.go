package concept

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/ehr/ehrcore/internal/platform/apperr"
	"github.com/ehr/ehrcore/internal/platform/db"
)

// answerSelect loads answers with their references in one round trip.
const answerSelect = `SELECT ca.concept_answer_id, ca.uuid, ca.creator, ca.date_created,
	q.concept_id, q.uuid, q.name, q.code, q.system,
	a.concept_id, a.uuid, a.name, a.code, a.system,
	d.drug_id, d.uuid, d.name, d.concept_id
FROM concept_answer ca
JOIN concept q ON q.concept_id = ca.concept_id
LEFT JOIN concept a ON a.concept_id = ca.answer_concept
LEFT JOIN drug d ON d.drug_id = ca.answer_drug `

type queryable interface {
	Exec(ctx context.Context, sql string, args ...interface{}) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...interface{}) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...interface{}) pgx.Row
}

type repoPG struct {
	pool *pgxpool.Pool
}

// NewAnswerRepoPG returns a PostgreSQL Repository. It joins a transaction
// placed on ctx with db.ContextWithTx.
func NewAnswerRepoPG(pool *pgxpool.Pool) Repository {
	return &repoPG{pool: pool}
}

func (r *repoPG) conn(ctx context.Context) queryable {
	if tx := db.TxFromContext(ctx); tx != nil {
		return tx
	}
	return r.pool
}

func (r *repoPG) SaveConcept(ctx context.Context, c *Concept) (*Concept, error) {
	stored := *c
	if stored.UUID == "" {
		stored.UUID = uuid.NewString()
	}
	if stored.ID == 0 {
		err := r.conn(ctx).QueryRow(ctx,
			`INSERT INTO concept (uuid, name, code, system) VALUES ($1, $2, $3, $4) RETURNING concept_id`,
			stored.UUID, stored.Name, stored.Code, stored.System,
		).Scan(&stored.ID)
		if err != nil {
			return nil, fmt.Errorf("insert concept: %w", err)
		}
		return &stored, nil
	}
	tag, err := r.conn(ctx).Exec(ctx,
		`UPDATE concept SET name = $1, code = $2, system = $3 WHERE concept_id = $4`,
		stored.Name, stored.Code, stored.System, stored.ID)
	if err != nil {
		return nil, fmt.Errorf("update concept: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return nil, fmt.Errorf("concept %d: %w", stored.ID, apperr.ErrNotFound)
	}
	return &stored, nil
}

func (r *repoPG) GetConcept(ctx context.Context, id int) (*Concept, error) {
	var c Concept
	err := r.conn(ctx).QueryRow(ctx,
		`SELECT concept_id, uuid, name, code, system FROM concept WHERE concept_id = $1`, id,
	).Scan(&c.ID, &c.UUID, &c.Name, &c.Code, &c.System)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("concept %d: %w", id, apperr.ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	return &c, nil
}

func (r *repoPG) SaveDrug(ctx context.Context, d *Drug) (*Drug, error) {
	stored := *d
	if stored.UUID == "" {
		stored.UUID = uuid.NewString()
	}
	if stored.ID == 0 {
		err := r.conn(ctx).QueryRow(ctx,
			`INSERT INTO drug (uuid, name, concept_id) VALUES ($1, $2, $3) RETURNING drug_id`,
			stored.UUID, stored.Name, stored.ConceptID,
		).Scan(&stored.ID)
		if err != nil {
			return nil, fmt.Errorf("insert drug: %w", err)
		}
		return &stored, nil
	}
	tag, err := r.conn(ctx).Exec(ctx,
		`UPDATE drug SET name = $1, concept_id = $2 WHERE drug_id = $3`, stored.Name, stored.ConceptID, stored.ID)
	if err != nil {
		return nil, fmt.Errorf("update drug: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return nil, fmt.Errorf("drug %d: %w", stored.ID, apperr.ErrNotFound)
	}
	return &stored, nil
}

func (r *repoPG) GetDrug(ctx context.Context, id int) (*Drug, error) {
	var d Drug
	err := r.conn(ctx).QueryRow(ctx,
		`SELECT drug_id, uuid, name, concept_id FROM drug WHERE drug_id = $1`, id,
	).Scan(&d.ID, &d.UUID, &d.Name, &d.ConceptID)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("drug %d: %w", id, apperr.ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	return &d, nil
}

func (r *repoPG) Save(ctx context.Context, a *ConceptAnswer) (*ConceptAnswer, error) {
	stored := a.Clone()
	answerConcept, answerDrug := refIDs(stored)

	if stored.ID == nil {
		if stored.UUID == "" {
			stored.UUID = uuid.NewString()
		}
		var id int
		err := r.conn(ctx).QueryRow(ctx, `
			INSERT INTO concept_answer (uuid, concept_id, answer_concept, answer_drug, creator, date_created)
			VALUES ($1, $2, $3, $4, $5, $6)
			RETURNING concept_answer_id`,
			stored.UUID, stored.Concept.ID, answerConcept, answerDrug, stored.Creator, stored.DateCreated,
		).Scan(&id)
		if err != nil {
			return nil, fmt.Errorf("insert concept answer: %w", err)
		}
		stored.ID = &id
		return stored, nil
	}

	tag, err := r.conn(ctx).Exec(ctx, `
		UPDATE concept_answer SET concept_id = $1, answer_concept = $2, answer_drug = $3
		WHERE concept_answer_id = $4`,
		stored.Concept.ID, answerConcept, answerDrug, *stored.ID)
	if err != nil {
		return nil, fmt.Errorf("update concept answer: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return nil, fmt.Errorf("concept answer %d: %w", *stored.ID, apperr.ErrNotFound)
	}
	return stored, nil
}

func (r *repoPG) GetByID(ctx context.Context, id int) (*ConceptAnswer, error) {
	return r.one(ctx, fmt.Sprintf("concept answer %d", id), `WHERE ca.concept_answer_id = $1`, id)
}

func (r *repoPG) GetByUUID(ctx context.Context, uid string) (*ConceptAnswer, error) {
	return r.one(ctx, "concept answer "+uid, `WHERE ca.uuid = $1`, uid)
}

func (r *repoPG) ListByConcept(ctx context.Context, conceptID int) ([]*ConceptAnswer, error) {
	return r.list(ctx, `WHERE ca.concept_id = $1`, conceptID)
}

func (r *repoPG) Delete(ctx context.Context, a *ConceptAnswer) (*ConceptAnswer, error) {
	if a.ID == nil {
		return nil, fmt.Errorf("concept answer %s: %w", a.UUID, apperr.ErrNotFound)
	}
	var deleted *ConceptAnswer
	err := db.InTx(ctx, r.pool, func(ctx context.Context, _ pgx.Tx) error {
		existing, err := r.GetByID(ctx, *a.ID)
		if err != nil {
			return err
		}
		if _, err := r.conn(ctx).Exec(ctx, `DELETE FROM concept_answer WHERE concept_answer_id = $1`, *a.ID); err != nil {
			return fmt.Errorf("delete concept answer: %w", err)
		}
		deleted = existing
		return nil
	})
	if err != nil {
		return nil, err
	}
	return deleted, nil
}

func (r *repoPG) one(ctx context.Context, what, where string, args ...interface{}) (*ConceptAnswer, error) {
	answers, err := r.list(ctx, where, args...)
	if err != nil {
		return nil, err
	}
	if len(answers) == 0 {
		return nil, fmt.Errorf("%s: %w", what, apperr.ErrNotFound)
	}
	return answers[0], nil
}

func (r *repoPG) list(ctx context.Context, where string, args ...interface{}) ([]*ConceptAnswer, error) {
	rows, err := r.conn(ctx).Query(ctx, answerSelect+where+` ORDER BY ca.concept_answer_id`, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	answers := []*ConceptAnswer{}
	for rows.Next() {
		a, err := scanAnswer(rows)
		if err != nil {
			return nil, err
		}
		answers = append(answers, a)
	}
	return answers, rows.Err()
}

func scanAnswer(row pgx.Row) (*ConceptAnswer, error) {
	var (
		a                                 ConceptAnswer
		id                                int
		q                                 Concept
		ansID, drugID, drugConcept        *int
		ansUUID, ansName, ansCode, ansSys *string
		drugUUID, drugName                *string
	)
	err := row.Scan(
		&id, &a.UUID, &a.Creator, &a.DateCreated,
		&q.ID, &q.UUID, &q.Name, &q.Code, &q.System,
		&ansID, &ansUUID, &ansName, &ansCode, &ansSys,
		&drugID, &drugUUID, &drugName, &drugConcept,
	)
	if err != nil {
		return nil, err
	}
	a.ID = &id
	a.Concept = &q
	if ansID != nil {
		a.AnswerConcept = &Concept{ID: *ansID, UUID: *ansUUID, Name: *ansName, Code: *ansCode, System: *ansSys}
	}
	if drugID != nil {
		a.AnswerDrug = &Drug{ID: *drugID, UUID: *drugUUID, Name: *drugName, ConceptID: drugConcept}
	}
	return &a, nil
}

// refIDs returns the nullable answer reference columns of a.
func refIDs(a *ConceptAnswer) (answerConcept, answerDrug *int) {
	if a.AnswerConcept != nil {
		answerConcept = &a.AnswerConcept.ID
	}
	if a.AnswerDrug != nil {
		answerDrug = &a.AnswerDrug.ID
	}
	return answerConcept, answerDrug
}
