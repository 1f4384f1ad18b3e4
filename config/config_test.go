package config

import (
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func clearEnv(t *testing.T) {
	t.Helper()
	for _, key := range []string{
		"SERVER_HOST", "SERVER_PORT", "DB_DRIVER", "DB_DSN",
		"REDIS_HOST", "REDIS_PORT", "REDIS_URL", "GEMINI_API_KEY",
		"MATCH_THRESHOLD", "LLM_TIMEOUT", "INGREDIENT_INDEX_PATH",
		"ARTIFACTS_DIR", "JWT_SECRET", "ENV",
	} {
		t.Setenv(key, "")
		os.Unsetenv(key)
	}
}

func TestLoadConfig(t *testing.T) {
	t.Run("should apply defaults", func(t *testing.T) {
		clearEnv(t)

		cfg, err := LoadConfig()
		require.NoError(t, err)

		assert.Equal(t, "sqlite", cfg.DBDriver)
		assert.Equal(t, "data/recipes.db", cfg.DBDSN)
		assert.Equal(t, "8080", cfg.ServerPort)
		assert.Equal(t, "gemini-2.5-flash", cfg.GeminiModel)
		assert.Equal(t, 0.92, cfg.MatchThreshold)
		assert.Equal(t, "data/ingredients", cfg.IndexBasePath)
		assert.Equal(t, "artifacts", cfg.ArtifactsDir)
	})

	t.Run("should read environment overrides", func(t *testing.T) {
		clearEnv(t)
		t.Setenv("DB_DRIVER", "postgres")
		t.Setenv("DB_DSN", "host=localhost user=recipes dbname=recipes")
		t.Setenv("GEMINI_API_KEY", "test-key")
		t.Setenv("MATCH_THRESHOLD", "0.85")
		t.Setenv("LLM_TIMEOUT", "45s")

		cfg, err := LoadConfig()
		require.NoError(t, err)

		assert.Equal(t, "postgres", cfg.DBDriver)
		assert.Equal(t, "test-key", cfg.GeminiAPIKey)
		assert.Equal(t, 0.85, cfg.MatchThreshold)
		assert.Equal(t, "45s", cfg.LLMTimeout.String())
	})

	t.Run("should reject an unknown driver", func(t *testing.T) {
		clearEnv(t)
		t.Setenv("DB_DRIVER", "oracle")

		_, err := LoadConfig()
		assert.Error(t, err)
		assert.Contains(t, err.Error(), "DB_DRIVER")
	})

	t.Run("should reject an out-of-range threshold", func(t *testing.T) {
		clearEnv(t)
		t.Setenv("MATCH_THRESHOLD", "1.5")

		_, err := LoadConfig()
		assert.Error(t, err)
		assert.Contains(t, err.Error(), "MATCH_THRESHOLD")
	})

	t.Run("should require a JWT secret in production", func(t *testing.T) {
		clearEnv(t)
		t.Setenv("ENV", "production")

		_, err := LoadConfig()
		assert.Error(t, err)
		assert.Contains(t, err.Error(), "JWT_SECRET")
	})
}
