package store

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/brewlog/internal/brew"
	"github.com/roach88/brewlog/internal/testutil"
)

func TestCreateRecipe_RoundTrip(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	r, stages := testutil.Samyangju()
	saved, savedStages, err := s.CreateRecipe(ctx, r, stages)
	require.NoError(t, err)
	require.NotZero(t, saved.ID)
	require.Len(t, savedStages, 3)

	got, err := s.GetRecipe(ctx, saved.ID)
	require.NoError(t, err)
	assert.Equal(t, saved, got)

	gotStages, err := s.RecipeStages(ctx, saved.ID)
	require.NoError(t, err)
	assert.Equal(t, savedStages, gotStages)
	assert.Nil(t, gotStages[0].DaysFromStart, "stage 1 has no offset")
	require.NotNil(t, gotStages[2].RiceAmountKg)
	assert.InDelta(t, 4.5, *gotStages[2].RiceAmountKg, 1e-9)
}

func TestCreateRecipe_DefaultsCategory(t *testing.T) {
	s := createTestStore(t)

	r, _, err := s.CreateRecipe(context.Background(), brew.Recipe{Name: "Plain", FilteringDays: 7}, []brew.RecipeStage{{StageNumber: 1}})
	require.NoError(t, err)
	assert.Equal(t, brew.DefaultCategory, r.Category)
	assert.Equal(t, 1, r.NumberOfStages)
}

func TestCreateRecipe_DuplicateStageRollsBack(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	stages := []brew.RecipeStage{{StageNumber: 1}, {StageNumber: 1}}
	_, _, err := s.CreateRecipe(ctx, brew.Recipe{Name: "Broken", FilteringDays: 7}, stages)
	require.Error(t, err)
	assert.True(t, brew.IsStoreUnavailable(err))

	recipes, err := s.ListRecipes(ctx)
	require.NoError(t, err)
	assert.Empty(t, recipes, "failed insert must not leave a recipe behind")
}

func TestGetRecipe_NotFound(t *testing.T) {
	s := createTestStore(t)

	_, err := s.GetRecipe(context.Background(), 99)
	assert.ErrorIs(t, err, brew.ErrNotFound)
}

func TestListRecipes_OrderedByName(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	for _, name := range []string{"Samyangju", "Ihwaju", "Danyangju"} {
		_, _, err := s.CreateRecipe(ctx, brew.Recipe{Name: name, FilteringDays: 10}, []brew.RecipeStage{{StageNumber: 1}})
		require.NoError(t, err)
	}

	recipes, err := s.ListRecipes(ctx)
	require.NoError(t, err)
	require.Len(t, recipes, 3)
	assert.Equal(t, "Danyangju", recipes[0].Name)
	assert.Equal(t, "Ihwaju", recipes[1].Name)
	assert.Equal(t, "Samyangju", recipes[2].Name)
}
