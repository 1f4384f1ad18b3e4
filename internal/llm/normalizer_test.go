package llm

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/recipedex/backend/internal/jsonld"
)

type stubCompleter struct {
	responses []string
	err       error
	calls     int
}

func (s *stubCompleter) Complete(_ context.Context, _ string) (string, error) {
	if s.err != nil {
		return "", s.err
	}
	i := s.calls
	if i >= len(s.responses) {
		i = len(s.responses) - 1
	}
	s.calls++
	return s.responses[i], nil
}

const goodDraftJSON = `{
	"title": "Chicken Piccata",
	"servings": 4,
	"time": {"prep_min": null, "cook_min": null, "total_min": null},
	"ingredients": [
		{"raw": "2 chicken breasts", "name": "chicken breast", "quantity": 2, "unit": "", "notes": ""}
	],
	"steps": ["Pound the chicken.", "Sear and sauce."]
}`

func TestNormalizer_ParseRecipeText(t *testing.T) {
	ctx := context.Background()

	t.Run("parses a clean response", func(t *testing.T) {
		c := &stubCompleter{responses: []string{goodDraftJSON}}
		n := NewNormalizer(c, nil, nil)

		draft, err := n.ParseRecipeText(ctx, "page text", "https://example.com/r", nil)
		require.NoError(t, err)
		assert.Equal(t, "Chicken Piccata", draft.Title)
		assert.Equal(t, 1, c.calls)
		assert.Equal(t, "https://example.com/r", draft.SourceURL)
	})

	t.Run("retries once on an invalid draft", func(t *testing.T) {
		c := &stubCompleter{responses: []string{`{"title":""}`, goodDraftJSON}}
		n := NewNormalizer(c, nil, nil)

		draft, err := n.ParseRecipeText(ctx, "page text", "", nil)
		require.NoError(t, err)
		assert.Equal(t, 2, c.calls)
		assert.Equal(t, "Chicken Piccata", draft.Title)
	})

	t.Run("fails with a ParseError after the retry", func(t *testing.T) {
		c := &stubCompleter{responses: []string{"not json at all"}}
		n := NewNormalizer(c, nil, nil)

		_, err := n.ParseRecipeText(ctx, "page text", "", nil)
		require.Error(t, err)
		var parseErr *ParseError
		assert.ErrorAs(t, err, &parseErr)
		assert.Equal(t, 2, c.calls)
	})

	t.Run("transport failures are not retried", func(t *testing.T) {
		c := &stubCompleter{err: errors.New("connection refused")}
		n := NewNormalizer(c, nil, nil)

		_, err := n.ParseRecipeText(ctx, "page text", "", nil)
		require.Error(t, err)
		var parseErr *ParseError
		assert.False(t, errors.As(err, &parseErr))
	})

	t.Run("handles fenced model output", func(t *testing.T) {
		c := &stubCompleter{responses: []string{"```json\n" + goodDraftJSON + "\n```"}}
		n := NewNormalizer(c, nil, nil)

		draft, err := n.ParseRecipeText(ctx, "page text", "", nil)
		require.NoError(t, err)
		assert.Equal(t, "Chicken Piccata", draft.Title)
	})

	t.Run("does not override a model-provided source URL", func(t *testing.T) {
		withURL := `{"title":"T","source_url":"https://original.example/r",
			"ingredients":[{"name":"salt","notes":""}],"steps":["Season."]}`
		c := &stubCompleter{responses: []string{withURL}}
		n := NewNormalizer(c, nil, nil)

		draft, err := n.ParseRecipeText(ctx, "page text", "https://fetched.example/r", nil)
		require.NoError(t, err)
		assert.Equal(t, "https://original.example/r", draft.SourceURL)
	})
}

func TestNormalizer_HintMerging(t *testing.T) {
	ctx := context.Background()
	f := func(v float64) *float64 { return &v }

	t.Run("backfills timing and computes total", func(t *testing.T) {
		hint := &jsonld.RecipeHint{
			Raw:     map[string]interface{}{"@type": "Recipe"},
			PrepMin: f(10),
			CookMin: f(20),
		}
		c := &stubCompleter{responses: []string{goodDraftJSON}}
		n := NewNormalizer(c, nil, nil)

		draft, err := n.ParseRecipeText(ctx, "page text", "", hint)
		require.NoError(t, err)
		require.NotNil(t, draft.Time.PrepMin)
		assert.Equal(t, 10.0, *draft.Time.PrepMin)
		require.NotNil(t, draft.Time.CookMin)
		assert.Equal(t, 20.0, *draft.Time.CookMin)
		require.NotNil(t, draft.Time.TotalMin)
		assert.Equal(t, 30.0, *draft.Time.TotalMin)
	})

	t.Run("never overrides model values", func(t *testing.T) {
		withTimes := `{"title":"T","servings":2,
			"time":{"prep_min":5,"cook_min":null,"total_min":null},
			"ingredients":[{"name":"salt","notes":""}],"steps":["Season."]}`
		hint := &jsonld.RecipeHint{
			Raw:      map[string]interface{}{"@type": "Recipe"},
			PrepMin:  f(99),
			Servings: f(8),
		}
		c := &stubCompleter{responses: []string{withTimes}}
		n := NewNormalizer(c, nil, nil)

		draft, err := n.ParseRecipeText(ctx, "page text", "", hint)
		require.NoError(t, err)
		assert.Equal(t, 5.0, *draft.Time.PrepMin)
		assert.Equal(t, 2.0, *draft.Servings)
	})

	t.Run("backfills yield text", func(t *testing.T) {
		hint := &jsonld.RecipeHint{
			Raw:       map[string]interface{}{"@type": "Recipe"},
			YieldText: "one large loaf",
		}
		c := &stubCompleter{responses: []string{goodDraftJSON}}
		n := NewNormalizer(c, nil, nil)

		draft, err := n.ParseRecipeText(ctx, "page text", "", hint)
		require.NoError(t, err)
		assert.Equal(t, "one large loaf", draft.YieldText)
	})
}

func TestNormalizer_PromptAssembly(t *testing.T) {
	n := NewNormalizer(&stubCompleter{responses: []string{goodDraftJSON}}, nil, nil)

	t.Run("includes url, hint and schema", func(t *testing.T) {
		hint := &jsonld.RecipeHint{Raw: map[string]interface{}{"@type": "Recipe", "name": "Pesto"}}
		prompt := n.buildPrompt("the page text", "https://example.com", hint)
		assert.Contains(t, prompt, "SOURCE_URL: https://example.com")
		assert.Contains(t, prompt, "STRUCTURED_DATA:")
		assert.Contains(t, prompt, "Pesto")
		assert.Contains(t, prompt, "TARGET_SCHEMA:")
		assert.Contains(t, prompt, "the page text")
	})

	t.Run("bounds the page text", func(t *testing.T) {
		long := make([]byte, maxPageText*2)
		for i := range long {
			long[i] = 'x'
		}
		prompt := n.buildPrompt(string(long), "", nil)
		assert.Less(t, len(prompt), maxPageText+2000)
	})
}
