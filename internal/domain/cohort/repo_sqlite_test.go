package cohort

import (
	"context"
	"testing"

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
	return NewRepoSQLite(sqlDB)
}

func TestRepoSQLite_RoundTrip(t *testing.T) {
	repo := newSQLiteRepo(t)
	ctx := context.Background()

	in := New("Hypertension", "Stage 1 or above", 3, 1, 2)
	in.StampCreated("alice", clock)
	saved, err := repo.Save(ctx, in)
	require.NoError(t, err)
	require.NotNil(t, saved.ID)
	assert.NotEmpty(t, saved.UUID)

	got, err := repo.GetByID(ctx, *saved.ID)
	require.NoError(t, err)
	assert.Equal(t, "Hypertension", got.Name)
	assert.Equal(t, []int{1, 2, 3}, got.Members.Sorted())
	assert.Equal(t, "alice", got.Creator)
	assert.True(t, got.DateCreated.Equal(clock))

	byUUID, err := repo.GetByUUID(ctx, saved.UUID)
	require.NoError(t, err)
	assert.Equal(t, *saved.ID, *byUUID.ID)
}

func TestRepoSQLite_UpdateReplacesMembers(t *testing.T) {
	repo := newSQLiteRepo(t)
	ctx := context.Background()

	saved, err := repo.Save(ctx, New("a", "b", 1, 2))
	require.NoError(t, err)

	saved.Members = NewMemberSet(2, 5)
	saved.StampChanged("bob", clock)
	_, err = repo.Save(ctx, saved)
	require.NoError(t, err)

	got, err := repo.GetByID(ctx, *saved.ID)
	require.NoError(t, err)
	assert.Equal(t, []int{2, 5}, got.Members.Sorted())
	require.NotNil(t, got.ChangedBy)
	assert.Equal(t, "bob", *got.ChangedBy)
}

func TestRepoSQLite_NotFound(t *testing.T) {
	repo := newSQLiteRepo(t)
	ctx := context.Background()

	_, err := repo.GetByID(ctx, 404)
	assert.ErrorIs(t, err, apperr.ErrNotFound)

	id := 404
	_, err = repo.Save(ctx, &Cohort{ID: &id, Name: "a", Description: "b"})
	assert.ErrorIs(t, err, apperr.ErrNotFound)
}

func TestRepoSQLite_Queries(t *testing.T) {
	repo := newSQLiteRepo(t)
	ctx := context.Background()

	_, err := repo.Save(ctx, New("Asthma adults", "d", 1, 2))
	require.NoError(t, err)
	_, err = repo.Save(ctx, New("asthma kids", "d", 2))
	require.NoError(t, err)
	reason := "retired"
	_, err = repo.Save(ctx, &Cohort{Name: "100% done", Description: "d", Voided: true, VoidReason: &reason})
	require.NoError(t, err)

	found, err := repo.Search(ctx, "ASTHMA")
	require.NoError(t, err)
	assert.Equal(t, []string{"Asthma adults", "asthma kids"}, names(found))

	literal, err := repo.Search(ctx, "0%")
	require.NoError(t, err)
	assert.Equal(t, []string{"100% done"}, names(literal))

	all, err := repo.ListAll(ctx, false)
	require.NoError(t, err)
	assert.Len(t, all, 2)

	withVoided, err := repo.ListAll(ctx, true)
	require.NoError(t, err)
	assert.Len(t, withVoided, 3)

	_, err = repo.GetByName(ctx, "100% done")
	assert.ErrorIs(t, err, apperr.ErrNotFound)

	containing, err := repo.ListContaining(ctx, 2)
	require.NoError(t, err)
	assert.Len(t, containing, 2)
}

func TestRepoSQLite_Delete(t *testing.T) {
	repo := newSQLiteRepo(t)
	ctx := context.Background()

	saved, err := repo.Save(ctx, New("a", "b", 7))
	require.NoError(t, err)

	deleted, err := repo.Delete(ctx, saved)
	require.NoError(t, err)
	assert.Equal(t, saved.UUID, deleted.UUID)

	_, err = repo.GetByID(ctx, *saved.ID)
	assert.ErrorIs(t, err, apperr.ErrNotFound)

	empty, err := repo.ListContaining(ctx, 7)
	require.NoError(t, err)
	assert.Empty(t, empty)
}
