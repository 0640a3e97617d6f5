package repository_test

import (
	"context"
	"testing"
	"time"

	"license-service/pkg/db/option"
	"license-service/pkg/repository"
	"license-service/services/testutil"

	"github.com/stretchr/testify/require"
)

type widget struct {
	ID        string `gorm:"primaryKey"`
	Name      string
	Kind      string
	CreatedAt time.Time
}

func TestStoreCRUD(t *testing.T) {
	ctx := context.Background()
	db := testutil.NewTestDB(t, &widget{})
	repo := repository.ProvideStore[widget](db)

	require.NoError(t, repo.BatchCreate(ctx, []*widget{
		{ID: "1", Name: "Alpha", Kind: "a"},
		{ID: "2", Name: "Beta", Kind: "b"},
		{ID: "3", Name: "alphabet", Kind: "b"},
	}))

	got, err := repo.FindOne(ctx, &widget{ID: "2"})
	require.NoError(t, err)
	require.Equal(t, "Beta", got.Name)

	missing, err := repo.FindOne(ctx, &widget{ID: "nope"})
	require.NoError(t, err)
	require.Nil(t, missing)

	matches, err := repo.Find(ctx, &widget{}, option.WithLike("ALPHA", "name"))
	require.NoError(t, err)
	require.Len(t, matches, 2)

	n, err := repo.Count(ctx, &widget{Kind: "b"})
	require.NoError(t, err)
	require.EqualValues(t, 2, n)

	require.NoError(t, repo.Update(ctx, "1", map[string]any{"name": "Gamma"}))
	got, err = repo.FindOne(ctx, &widget{ID: "1"})
	require.NoError(t, err)
	require.Equal(t, "Gamma", got.Name)

	deleted, err := repo.Delete(ctx, "3")
	require.NoError(t, err)
	require.EqualValues(t, 1, deleted)

	deleted, err = repo.Delete(ctx, "3")
	require.NoError(t, err)
	require.Zero(t, deleted)
}

func TestStoreWithTrxRollback(t *testing.T) {
	ctx := context.Background()
	db := testutil.NewTestDB(t, &widget{})
	repo := repository.ProvideStore[widget](db)

	tx := db.Begin()
	require.NoError(t, repo.WithTrx(tx).Create(ctx, &widget{ID: "1", Name: "temp"}))
	require.NoError(t, tx.Rollback().Error)

	got, err := repo.FindOne(ctx, &widget{ID: "1"})
	require.NoError(t, err)
	require.Nil(t, got)
}

func TestStoreFindIn(t *testing.T) {
	ctx := context.Background()
	db := testutil.NewTestDB(t, &widget{})
	repo := repository.ProvideStore[widget](db)

	require.NoError(t, repo.BatchCreate(ctx, []*widget{
		{ID: "1", Name: "a"}, {ID: "2", Name: "b"}, {ID: "3", Name: "c"},
	}))

	out, err := repo.Find(ctx, nil, option.WithIn("id", []string{"1", "3"}),
		option.WithSortBy(option.QuerySortBy{SortBy: "name", OrderBy: "DESC", Allow: map[string]bool{"name": true}}))
	require.NoError(t, err)
	require.Len(t, out, 2)
	require.Equal(t, "c", out[0].Name)
	require.Equal(t, "a", out[1].Name)
}
