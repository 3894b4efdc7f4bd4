package forum

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cppla/farmqa/models"
)

type countingSource struct {
	calls      int
	categories []models.Category
	err        error
}

func (s *countingSource) LoadCategories(context.Context) ([]models.Category, error) {
	s.calls++
	return s.categories, s.err
}

func TestTaxonomyResolve(t *testing.T) {
	tax := NewTaxonomy(testCategories)
	c, err := tax.Resolve("soil-health")
	require.NoError(t, err)
	assert.Equal(t, "Soil Health", c.Label)

	_, err = tax.Resolve("astrology")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestLoadTaxonomyReadThrough(t *testing.T) {
	cache, mr := newRedisCache(t)
	ctx := context.Background()
	src := &countingSource{categories: testCategories}

	_, err := LoadTaxonomy(ctx, src, cache, "v1", nil)
	require.NoError(t, err)
	tax, err := LoadTaxonomy(ctx, src, cache, "v1", nil)
	require.NoError(t, err)
	assert.Equal(t, 1, src.calls)
	assert.Len(t, tax.List(), 3)
	assert.True(t, mr.Exists("cache:categories:v1"))

	_, err = LoadTaxonomy(ctx, src, cache, "v2", nil)
	require.NoError(t, err)
	assert.Equal(t, 2, src.calls, "a new deployment version reloads")
}

func TestLoadTaxonomyErrors(t *testing.T) {
	ctx := context.Background()
	_, err := LoadTaxonomy(ctx, &countingSource{}, nil, "v1", nil)
	assert.Error(t, err)

	boom := errors.New("boom")
	_, err = LoadTaxonomy(ctx, &countingSource{err: boom}, nil, "v1", nil)
	assert.ErrorIs(t, err, boom)
}

func TestSeedCategoriesUpserts(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()
	renamed := []models.Category{
		{ID: "irrigation", Label: "Water Management", Icon: "💧"},
		{ID: "pest-control", Label: "Pest Control", Icon: "🐛"},
	}
	require.NoError(t, SeedCategories(ctx, db, renamed))

	rows, err := DBCategorySource{DB: db}.LoadCategories(ctx)
	require.NoError(t, err)
	require.Len(t, rows, 3)
	assert.Equal(t, "irrigation", rows[0].ID)
	assert.Equal(t, "Water Management", rows[0].Label)
}
