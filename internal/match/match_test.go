package match

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/recipedex/backend/internal/embedding"
)

type stubIndex struct {
	name  string
	score float64
	err   error
	calls int
}

func (s *stubIndex) Nearest(_ context.Context, _ string) (string, float64, error) {
	s.calls++
	return s.name, s.score, s.err
}

func existingSet(names ...string) map[string]struct{} {
	set := make(map[string]struct{}, len(names))
	for _, n := range names {
		set[n] = struct{}{}
	}
	return set
}

func TestMatchOrCreate(t *testing.T) {
	ctx := context.Background()

	t.Run("exact canonical match bypasses the index", func(t *testing.T) {
		idx := &stubIndex{name: "olive oil", score: 0.3}
		d, err := MatchOrCreate(ctx, "Roma tomatoes", existingSet("tomato", "olive oil"), idx, 0.5)
		require.NoError(t, err)
		assert.Equal(t, StatusExisting, d.Status)
		assert.Equal(t, "tomato", d.Name)
		assert.Equal(t, 1.0, d.Score)
		assert.Equal(t, 0, idx.calls)
	})

	t.Run("near miss above threshold matches existing", func(t *testing.T) {
		idx := &stubIndex{name: "tomato", score: 0.95}
		d, err := MatchOrCreate(ctx, "tomatos", existingSet("tomato"), idx, 0.92)
		require.NoError(t, err)
		assert.Equal(t, StatusExisting, d.Status)
		assert.Equal(t, "tomato", d.Name)
		assert.Equal(t, 0.95, d.Score)
	})

	t.Run("low score creates a new ingredient", func(t *testing.T) {
		idx := &stubIndex{name: "tomato", score: 0.41}
		d, err := MatchOrCreate(ctx, "unicorn dust", existingSet("tomato"), idx, 0.99)
		require.NoError(t, err)
		assert.Equal(t, StatusNew, d.Status)
		assert.Equal(t, "unicorn dust", d.Name)
		assert.Equal(t, 0.41, d.Score)
	})

	t.Run("empty index yields new at score zero", func(t *testing.T) {
		idx := embedding.NewIndex(embedding.LocalEmbedder{})
		d, err := MatchOrCreate(ctx, "garlic", existingSet(), idx, DefaultThreshold)
		require.NoError(t, err)
		assert.Equal(t, StatusNew, d.Status)
		assert.Equal(t, "garlic", d.Name)
		assert.Equal(t, 0.0, d.Score)
	})

	t.Run("index errors propagate", func(t *testing.T) {
		idx := &stubIndex{err: errors.New("embedder down")}
		_, err := MatchOrCreate(ctx, "garlic", existingSet(), idx, DefaultThreshold)
		assert.Error(t, err)
	})
}
