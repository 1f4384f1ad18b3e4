package service

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/recipedex/backend/internal/database"
	"github.com/recipedex/backend/internal/models"
	"github.com/recipedex/backend/internal/types"
)

func setupService(t *testing.T) *RecipeService {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	require.NoError(t, database.Migrate(db))
	return NewRecipeService(db, zap.NewNop())
}

func f(v float64) *float64 { return &v }

func TestLookupOrCreateIngredient(t *testing.T) {
	svc := setupService(t)
	ctx := context.Background()

	t.Run("creates on first sight", func(t *testing.T) {
		ing, created, err := svc.LookupOrCreateIngredient(ctx, "u1", "Fresh chopped Roma tomatoes")
		require.NoError(t, err)
		assert.True(t, created)
		assert.Equal(t, "tomato", ing.Name)
	})

	t.Run("finds canonical duplicate", func(t *testing.T) {
		ing, created, err := svc.LookupOrCreateIngredient(ctx, "u1", "Roma tomatoes, diced")
		require.NoError(t, err)
		assert.False(t, created)
		assert.Equal(t, "tomato", ing.Name)
	})

	t.Run("scoped per user", func(t *testing.T) {
		_, created, err := svc.LookupOrCreateIngredient(ctx, "u2", "tomato")
		require.NoError(t, err)
		assert.True(t, created)
	})

	t.Run("rejects empty name", func(t *testing.T) {
		_, _, err := svc.LookupOrCreateIngredient(ctx, "u1", "   ")
		assert.Error(t, err)
	})
}

func TestUpsertByURL(t *testing.T) {
	svc := setupService(t)
	ctx := context.Background()

	draft := &types.RecipeDraft{
		Title:     "Garlic Pasta",
		SourceURL: "https://example.com/garlic-pasta",
		Servings:  f(4),
		Time:      types.TimeBlock{PrepMin: f(10), CookMin: f(20), TotalMin: f(30)},
		Steps:     []string{"boil pasta", "toss with garlic oil"},
	}
	lines := []types.AggregatedIngredient{
		{Name: "garlic", Status: "existing", Quantity: f(3), Unit: "clove", Raws: "3 cloves garlic", Score: 1},
		{Name: "olive oil", Status: "new", Quantity: f(2), Unit: "tbsp", Raws: "2 tbsp olive oil", Score: 0.95},
	}

	t.Run("creates recipe and lines", func(t *testing.T) {
		recipe, err := svc.UpsertByURL(ctx, "u1", draft, lines, []float32{0.1, 0.2, 0.3})
		require.NoError(t, err)
		assert.Equal(t, "Garlic Pasta", recipe.Title)
		require.NotNil(t, recipe.TotalMin)
		assert.Equal(t, 30.0, *recipe.TotalMin)

		loaded, err := svc.GetRecipe(ctx, "u1", recipe.ID.String())
		require.NoError(t, err)
		assert.Len(t, loaded.Ingredients, 2)
		require.NotNil(t, loaded.Embedding)
		assert.Equal(t, []float32{0.1, 0.2, 0.3}, loaded.Embedding.Slice())
	})

	t.Run("same URL replaces instead of duplicating", func(t *testing.T) {
		updated := *draft
		updated.Title = "Garlic Pasta (improved)"
		recipe, err := svc.UpsertByURL(ctx, "u1", &updated, lines[:1], nil)
		require.NoError(t, err)
		assert.Equal(t, "Garlic Pasta (improved)", recipe.Title)
		assert.Equal(t, 2, recipe.Version)

		recipes, err := svc.ListRecipes(ctx, "u1")
		require.NoError(t, err)
		assert.Len(t, recipes, 1)

		loaded, err := svc.GetRecipe(ctx, "u1", recipe.ID.String())
		require.NoError(t, err)
		assert.Len(t, loaded.Ingredients, 1)
	})

	t.Run("empty source url stores null and never collides", func(t *testing.T) {
		pasted := &types.RecipeDraft{
			Title: "Pasted Recipe",
			Steps: []string{"mix"},
		}
		first, err := svc.UpsertByURL(ctx, "u2", pasted, nil, nil)
		require.NoError(t, err)
		second, err := svc.UpsertByURL(ctx, "u2", pasted, nil, nil)
		require.NoError(t, err)
		assert.NotEqual(t, first.ID, second.ID)
		assert.Nil(t, first.SourceURL)

		recipes, err := svc.ListRecipes(ctx, "u2")
		require.NoError(t, err)
		assert.Len(t, recipes, 2)
	})

	t.Run("change log records the writes", func(t *testing.T) {
		entries, err := svc.PullChanges(ctx, "u1", 0)
		require.NoError(t, err)
		require.NotEmpty(t, entries)
		last := entries[len(entries)-1]
		assert.Equal(t, "recipe", last.Entity)
		assert.Equal(t, "update", last.Op)
	})
}

func TestConvertToGML(t *testing.T) {
	svc := setupService(t)
	ctx := context.Background()

	t.Run("volume unit converts to milliliters", func(t *testing.T) {
		draft := &types.RecipeDraft{
			Title:     "Stock",
			SourceURL: "https://example.com/stock",
			Steps:     []string{"simmer"},
		}
		lines := []types.AggregatedIngredient{
			{Name: "water", Quantity: f(2), Unit: "cup", Raws: "2 cups water"},
			{Name: "salt", Quantity: f(10), Unit: "g", Raws: "10 g salt"},
			{Name: "onion", Quantity: f(1), Unit: "", Raws: "1 onion"},
		}
		recipe, err := svc.UpsertByURL(ctx, "u1", draft, lines, nil)
		require.NoError(t, err)

		loaded, err := svc.GetRecipe(ctx, "u1", recipe.ID.String())
		require.NoError(t, err)

		byRaw := map[string]models.RecipeIngredient{}
		for _, line := range loaded.Ingredients {
			byRaw[line.QtyRaw] = line
		}
		require.NotNil(t, byRaw["2 cups water"].QtyGML)
		assert.InDelta(t, 480, *byRaw["2 cups water"].QtyGML, 0.001)
		require.NotNil(t, byRaw["10 g salt"].QtyGML)
		assert.InDelta(t, 10, *byRaw["10 g salt"].QtyGML, 0.001)
		assert.Nil(t, byRaw["1 onion"].QtyGML)
	})

	t.Run("density entry turns volume into grams", func(t *testing.T) {
		require.NoError(t, svc.SetDensity(ctx, "u1", "flour", 0.53, "manual"))

		draft := &types.RecipeDraft{
			Title:     "Bread",
			SourceURL: "https://example.com/bread",
			Steps:     []string{"bake"},
		}
		lines := []types.AggregatedIngredient{
			{Name: "flour", Quantity: f(1), Unit: "cup", Raws: "1 cup flour"},
		}
		recipe, err := svc.UpsertByURL(ctx, "u1", draft, lines, nil)
		require.NoError(t, err)

		loaded, err := svc.GetRecipe(ctx, "u1", recipe.ID.String())
		require.NoError(t, err)
		require.Len(t, loaded.Ingredients, 1)
		require.NotNil(t, loaded.Ingredients[0].QtyGML)
		assert.InDelta(t, 240*0.53, *loaded.Ingredients[0].QtyGML, 0.001)
	})
}

func TestWeeklyGrocery(t *testing.T) {
	svc := setupService(t)
	ctx := context.Background()

	ingest := func(title, url string, lines []types.AggregatedIngredient) {
		draft := &types.RecipeDraft{Title: title, SourceURL: url, Steps: []string{"cook"}}
		_, err := svc.UpsertByURL(ctx, "u1", draft, lines, nil)
		require.NoError(t, err)
	}

	ingest("Pasta", "https://example.com/a", []types.AggregatedIngredient{
		{Name: "garlic", Quantity: f(2), Unit: "clove", Raws: "2 cloves garlic"},
		{Name: "tomato", Quantity: f(3), Unit: "", Raws: "3 tomatoes"},
	})
	ingest("Soup", "https://example.com/b", []types.AggregatedIngredient{
		{Name: "garlic", Quantity: f(1), Unit: "clove", Raws: "1 clove garlic"},
	})

	list, err := svc.WeeklyGrocery(ctx, "u1")
	require.NoError(t, err)
	require.Len(t, list, 2)

	byName := map[string]GroceryLine{}
	for _, line := range list {
		byName[line.Name] = line
	}
	garlic := byName["garlic"]
	require.NotNil(t, garlic.Quantity)
	assert.Equal(t, 3.0, *garlic.Quantity)
	assert.ElementsMatch(t, []string{"Pasta", "Soup"}, garlic.Recipes)
}

func TestPushAndPullChanges(t *testing.T) {
	svc := setupService(t)
	ctx := context.Background()

	entry, err := svc.PushChange(ctx, "u1", "ingredient", "abc", "update", []byte(`{"name":"basil"}`))
	require.NoError(t, err)
	assert.NotZero(t, entry.ID)

	entries, err := svc.PullChanges(ctx, "u1", 0)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "ingredient", entries[0].Entity)

	entries, err = svc.PullChanges(ctx, "u1", entry.ID)
	require.NoError(t, err)
	assert.Empty(t, entries)

	entries, err = svc.PullChanges(ctx, "u2", 0)
	require.NoError(t, err)
	assert.Empty(t, entries)
}
