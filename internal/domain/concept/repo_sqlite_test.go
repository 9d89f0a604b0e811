package concept

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ehr/ehrcore/internal/platform/apperr"
	"github.com/ehr/ehrcore/internal/platform/db"
	"github.com/ehr/ehrcore/migrations"
)

func newSQLiteRepo(t *testing.T) Repository {
	t.Helper()
	sqlDB, err := db.OpenSQLite(context.Background(), ":memory:", migrations.SQLite())
	require.NoError(t, err)
	t.Cleanup(func() { sqlDB.Close() })
	return NewAnswerRepoSQLite(sqlDB)
}

func TestRepoSQLite_Catalog(t *testing.T) {
	repo := newSQLiteRepo(t)
	ctx := context.Background()

	c, err := repo.SaveConcept(ctx, &Concept{Name: "Yes", Code: "373066001", System: "http://snomed.info/sct"})
	require.NoError(t, err)
	assert.NotZero(t, c.ID)
	assert.NotEmpty(t, c.UUID)

	got, err := repo.GetConcept(ctx, c.ID)
	require.NoError(t, err)
	assert.Equal(t, *c, *got)

	d, err := repo.SaveDrug(ctx, &Drug{Name: "Aspirin", ConceptID: &c.ID})
	require.NoError(t, err)
	gotDrug, err := repo.GetDrug(ctx, d.ID)
	require.NoError(t, err)
	require.NotNil(t, gotDrug.ConceptID)
	assert.Equal(t, c.ID, *gotDrug.ConceptID)

	_, err = repo.GetConcept(ctx, 404)
	assert.ErrorIs(t, err, apperr.ErrNotFound)
	_, err = repo.SaveDrug(ctx, &Drug{ID: 404, Name: "x"})
	assert.ErrorIs(t, err, apperr.ErrNotFound)
}

func TestRepoSQLite_Answers(t *testing.T) {
	repo := newSQLiteRepo(t)
	ctx := context.Background()
	created := time.Date(2024, 5, 6, 7, 8, 9, 0, time.UTC)

	question, err := repo.SaveConcept(ctx, &Concept{Name: "Pain relief"})
	require.NoError(t, err)
	answer, err := repo.SaveConcept(ctx, &Concept{Name: "Analgesic"})
	require.NoError(t, err)
	drug, err := repo.SaveDrug(ctx, &Drug{Name: "Paracetamol"})
	require.NoError(t, err)

	first, err := repo.Save(ctx, &ConceptAnswer{Concept: question, AnswerConcept: answer, Creator: "c", DateCreated: created})
	require.NoError(t, err)
	second, err := repo.Save(ctx, &ConceptAnswer{Concept: question, AnswerDrug: drug, Creator: "c", DateCreated: created})
	require.NoError(t, err)

	got, err := repo.GetByUUID(ctx, first.UUID)
	require.NoError(t, err)
	assert.Equal(t, question.Name, got.Concept.Name)
	require.NotNil(t, got.AnswerConcept)
	assert.Equal(t, "Analgesic", got.AnswerConcept.Name)
	assert.Nil(t, got.AnswerDrug)
	assert.True(t, got.DateCreated.Equal(created))

	list, err := repo.ListByConcept(ctx, question.ID)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, *first.ID, *list[0].ID)
	require.NotNil(t, list[1].AnswerDrug)
	assert.Equal(t, "Paracetamol", list[1].AnswerDrug.Name)

	_, err = repo.Delete(ctx, second)
	require.NoError(t, err)
	_, err = repo.GetByID(ctx, *second.ID)
	assert.ErrorIs(t, err, apperr.ErrNotFound)
}

func TestRepoSQLite_AnswerNeedsExistingConcept(t *testing.T) {
	repo := newSQLiteRepo(t)
	_, err := repo.Save(context.Background(), &ConceptAnswer{Concept: &Concept{ID: 99}, AnswerConcept: &Concept{ID: 98}})
	assert.Error(t, err, "foreign keys are enforced")
}
