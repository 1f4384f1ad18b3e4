package pipeline

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/recipedex/backend/internal/database"
	"github.com/recipedex/backend/internal/embedding"
	"github.com/recipedex/backend/internal/jsonld"
	"github.com/recipedex/backend/internal/service"
	"github.com/recipedex/backend/internal/types"
)

type stubFetcher struct {
	body string
	err  error
}

func (s *stubFetcher) Get(ctx context.Context, url string) (string, string, error) {
	if s.err != nil {
		return "", "", s.err
	}
	return s.body, url, nil
}

type stubParser struct {
	draft *types.RecipeDraft
	err   error
	hints []*jsonld.RecipeHint
}

func (s *stubParser) ParseRecipeText(ctx context.Context, text, sourceURL string, hint *jsonld.RecipeHint) (*types.RecipeDraft, error) {
	s.hints = append(s.hints, hint)
	if s.err != nil {
		return nil, s.err
	}
	return s.draft, nil
}

func f(v float64) *float64 { return &v }

func newTestPipeline(t *testing.T, fetcher PageFetcher, parser Parser) (*Pipeline, *service.RecipeService) {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	require.NoError(t, database.Migrate(db))

	svc := service.NewRecipeService(db, zap.NewNop())
	index := embedding.NewIndex(embedding.LocalEmbedder{})
	p := New(fetcher, parser, svc, index, "", nil, 0.95, zap.NewNop())
	return p, svc
}

const pageHTML = `<html><body><h1>Garlic Pasta</h1><p>3 cloves garlic, minced</p></body></html>`

func TestIngestURL(t *testing.T) {
	ctx := context.Background()

	t.Run("persists parsed recipe with aggregated lines", func(t *testing.T) {
		draft := &types.RecipeDraft{
			Title:     "Garlic Pasta",
			SourceURL: "https://example.com/garlic-pasta",
			Steps:     []string{"boil", "toss"},
			Ingredients: []types.IngredientDraft{
				{Raw: "1 clove garlic, minced", Name: "garlic", Quantity: f(1), Unit: "clove", Notes: "minced"},
				{Raw: "2 cloves garlic, whole", Name: "garlic cloves", Quantity: f(2), Unit: "clove", Notes: "whole"},
				{Raw: "1 tbsp olive oil", Name: "extra virgin olive oil", Quantity: f(1), Unit: "tbsp"},
			},
		}
		p, svc := newTestPipeline(t, &stubFetcher{body: pageHTML}, &stubParser{draft: draft})

		result, err := p.IngestURL(ctx, "u1", "https://example.com/garlic-pasta")
		require.NoError(t, err)

		require.Len(t, result.Ingredients, 2)
		garlic := result.Ingredients[0]
		assert.Equal(t, "garlic", garlic.Name)
		require.NotNil(t, garlic.Quantity)
		assert.Equal(t, 3.0, *garlic.Quantity)
		assert.Equal(t, "clove", garlic.Unit)
		assert.Equal(t, "minced; whole", garlic.Notes)
		assert.Equal(t, "1 clove garlic, minced; 2 cloves garlic, whole", garlic.Raws)
		assert.Greater(t, garlic.Score, 0.95)

		oil := result.Ingredients[1]
		assert.Equal(t, "olive oil", oil.Name)
		assert.Equal(t, "new", oil.Status)

		assert.ElementsMatch(t, []string{"garlic", "olive oil"}, result.NewNames)

		names, err := svc.ListIngredientNames(ctx, "u1")
		require.NoError(t, err)
		assert.ElementsMatch(t, []string{"garlic", "olive oil"}, names)
	})

	t.Run("matches against ingredients from earlier runs", func(t *testing.T) {
		draft := &types.RecipeDraft{
			Title:     "Bruschetta",
			SourceURL: "https://example.com/bruschetta",
			Steps:     []string{"assemble"},
			Ingredients: []types.IngredientDraft{
				{Raw: "2 tomatoes", Name: "tomatoes", Quantity: f(2)},
			},
		}
		p, svc := newTestPipeline(t, &stubFetcher{body: pageHTML}, &stubParser{draft: draft})

		_, created, err := svc.LookupOrCreateIngredient(ctx, "u1", "tomato")
		require.NoError(t, err)
		require.True(t, created)
		require.NoError(t, p.index.Build(ctx, []string{"tomato"}))

		result, err := p.IngestURL(ctx, "u1", "https://example.com/bruschetta")
		require.NoError(t, err)
		require.Len(t, result.Ingredients, 1)
		assert.Equal(t, "tomato", result.Ingredients[0].Name)
		assert.Equal(t, "existing", result.Ingredients[0].Status)
		assert.Empty(t, result.NewNames)
	})

	t.Run("fetch failure leaves fallback record", func(t *testing.T) {
		p, svc := newTestPipeline(t, &stubFetcher{err: errors.New("connection refused")}, &stubParser{})

		_, err := p.IngestURL(ctx, "u1", "https://example.com/down")
		require.Error(t, err)

		recipes, err := svc.ListRecipes(ctx, "u1")
		require.NoError(t, err)
		require.Len(t, recipes, 1)
		assert.Equal(t, "unknown", recipes[0].Title)
		require.NotNil(t, recipes[0].SourceURL)
		assert.Equal(t, "https://example.com/down", *recipes[0].SourceURL)
	})

	t.Run("failed re-ingest keeps the saved recipe", func(t *testing.T) {
		draft := &types.RecipeDraft{
			Title:     "Garlic Pasta",
			SourceURL: "https://example.com/garlic-pasta",
			Steps:     []string{"boil", "toss"},
			Ingredients: []types.IngredientDraft{
				{Raw: "3 cloves garlic", Name: "garlic", Quantity: f(3), Unit: "clove"},
			},
		}
		parser := &stubParser{draft: draft}
		p, svc := newTestPipeline(t, &stubFetcher{body: pageHTML}, parser)

		result, err := p.IngestURL(ctx, "u1", "https://example.com/garlic-pasta")
		require.NoError(t, err)

		parser.err = errors.New("model unavailable")
		_, err = p.IngestURL(ctx, "u1", "https://example.com/garlic-pasta")
		require.Error(t, err)

		loaded, err := svc.GetRecipe(ctx, "u1", result.Recipe.ID.String())
		require.NoError(t, err)
		assert.Equal(t, "Garlic Pasta", loaded.Title)
		assert.Equal(t, 1, loaded.Version)
		require.Len(t, loaded.Ingredients, 1)

		recipes, err := svc.ListRecipes(ctx, "u1")
		require.NoError(t, err)
		assert.Len(t, recipes, 1)
	})

	t.Run("markup without a url saves a new recipe each time", func(t *testing.T) {
		draft := &types.RecipeDraft{
			Title: "Scratch Pad",
			Steps: []string{"mix"},
			Ingredients: []types.IngredientDraft{
				{Raw: "1 egg", Name: "egg", Quantity: f(1)},
			},
		}
		p, svc := newTestPipeline(t, &stubFetcher{body: pageHTML}, &stubParser{draft: draft})

		first, err := p.IngestHTML(ctx, "u1", "", pageHTML)
		require.NoError(t, err)
		second, err := p.IngestHTML(ctx, "u1", "", pageHTML)
		require.NoError(t, err)
		assert.NotEqual(t, first.Recipe.ID, second.Recipe.ID)

		recipes, err := svc.ListRecipes(ctx, "u1")
		require.NoError(t, err)
		assert.Len(t, recipes, 2)
		assert.Nil(t, recipes[0].SourceURL)
	})

	t.Run("failed url-less ingest leaves no placeholder", func(t *testing.T) {
		p, svc := newTestPipeline(t, &stubFetcher{body: pageHTML}, &stubParser{err: errors.New("model returned garbage")})

		_, err := p.IngestHTML(ctx, "u1", "", pageHTML)
		require.Error(t, err)

		recipes, err := svc.ListRecipes(ctx, "u1")
		require.NoError(t, err)
		assert.Empty(t, recipes)
	})

	t.Run("parse failure leaves fallback record", func(t *testing.T) {
		p, svc := newTestPipeline(t, &stubFetcher{body: pageHTML}, &stubParser{err: errors.New("model returned garbage")})

		_, err := p.IngestURL(ctx, "u1", "https://example.com/weird")
		require.Error(t, err)

		recipes, err := svc.ListRecipes(ctx, "u1")
		require.NoError(t, err)
		require.Len(t, recipes, 1)
		assert.Equal(t, "unknown", recipes[0].Title)
	})

	t.Run("structured data hint reaches the parser", func(t *testing.T) {
		markup := `<html><head><script type="application/ld+json">
			{"@type":"Recipe","name":"Stew","prepTime":"PT10M","cookTime":"PT20M"}
		</script></head><body><p>1 carrot</p></body></html>`
		parser := &stubParser{draft: &types.RecipeDraft{
			Title:     "Stew",
			SourceURL: "https://example.com/stew",
			Steps:     []string{"simmer"},
		}}
		p, _ := newTestPipeline(t, &stubFetcher{body: markup}, parser)

		_, err := p.IngestURL(ctx, "u1", "https://example.com/stew")
		require.NoError(t, err)
		require.Len(t, parser.hints, 1)
		require.NotNil(t, parser.hints[0])
		require.NotNil(t, parser.hints[0].PrepMin)
		assert.Equal(t, 10.0, *parser.hints[0].PrepMin)
	})
}
