package artifacts

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/recipedex/backend/internal/types"
)

func floatPtr(v float64) *float64 { return &v }

func readArtifacts(t *testing.T, dir, prefix string) []map[string]interface{} {
	t.Helper()
	entries, err := os.ReadDir(dir)
	require.NoError(t, err)

	var out []map[string]interface{}
	for _, e := range entries {
		if !strings.Contains(e.Name(), "_"+prefix+"_") {
			continue
		}
		data, err := os.ReadFile(filepath.Join(dir, e.Name()))
		require.NoError(t, err)
		var m map[string]interface{}
		require.NoError(t, json.Unmarshal(data, &m))
		out = append(out, m)
	}
	return out
}

func TestStore_DumpRecipe(t *testing.T) {
	dir := t.TempDir()
	store := NewStore(dir, nil, nil)

	draft := &types.RecipeDraft{
		Title:    "Garlic Bread",
		Servings: floatPtr(4),
		Ingredients: []types.IngredientDraft{
			{Name: "garlic", Quantity: nil, Unit: "", Notes: "minced"},
		},
		Steps: []string{"Toast."},
	}

	store.DumpRecipe(context.Background(), draft)

	t.Run("full dump substitutes null leaves", func(t *testing.T) {
		dumps := readArtifacts(t, dir, "recipe")
		require.Len(t, dumps, 1)

		ings := dumps[0]["ingredients"].([]interface{})
		ing := ings[0].(map[string]interface{})
		assert.Equal(t, Placeholder, ing["quantity"])
		assert.Equal(t, Placeholder, ing["unit"])
		assert.Equal(t, "minced", ing["notes"])
	})

	t.Run("summary carries title, servings and count", func(t *testing.T) {
		dumps := readArtifacts(t, dir, "summary")
		require.Len(t, dumps, 1)
		assert.Equal(t, "Garlic Bread", dumps[0]["title"])
		assert.Equal(t, 4.0, dumps[0]["servings"])
		assert.Equal(t, 1.0, dumps[0]["ingredient_count"])
	})

	t.Run("in-memory draft is untouched", func(t *testing.T) {
		assert.Nil(t, draft.Ingredients[0].Quantity)
		assert.Equal(t, "", draft.Ingredients[0].Unit)
	})
}

func TestStore_BestEffort(t *testing.T) {
	// pointing the store at a file path makes every write fail
	dir := t.TempDir()
	blocker := filepath.Join(dir, "blocker")
	require.NoError(t, os.WriteFile(blocker, []byte("x"), 0o644))

	store := NewStore(filepath.Join(blocker, "nested"), nil, nil)
	assert.NotPanics(t, func() {
		store.WriteJSON(context.Background(), "recipe", map[string]string{"k": "v"})
	})
}

func TestSanitize(t *testing.T) {
	out := Sanitize(map[string]interface{}{
		"a": nil,
		"b": "",
		"c": []interface{}{nil, "x"},
		"d": 3.0,
	}).(map[string]interface{})

	assert.Equal(t, Placeholder, out["a"])
	assert.Equal(t, Placeholder, out["b"])
	assert.Equal(t, []interface{}{Placeholder, "x"}, out["c"])
	assert.Equal(t, 3.0, out["d"])
}
