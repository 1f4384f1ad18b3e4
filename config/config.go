package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all configuration for the application
type Config struct {
	// Server configuration
	ServerHost string
	ServerPort string

	// Database configuration. Driver is "sqlite" or "postgres"; DSN is
	// the file path for sqlite or the connection string for postgres.
	DBDriver string
	DBDSN    string

	// Redis configuration. Leave RedisHost and RedisURL empty to run
	// without the LLM response cache and rate limiter.
	RedisHost     string
	RedisPort     string
	RedisPassword string
	RedisDB       int
	RedisURL      string

	// Gemini completion service
	GeminiAPIKey string
	GeminiAPIURL string
	GeminiModel  string
	LLMTimeout   time.Duration

	// Embedding service. Leave EmbeddingsURL empty to use the
	// deterministic local embedder.
	EmbeddingsURL    string
	EmbeddingsAPIKey string
	EmbeddingsModel  string
	EmbedTimeout     time.Duration

	// Pipeline
	IndexBasePath  string
	ArtifactsDir   string
	MatchThreshold float64
	FetchTimeout   time.Duration

	// Artifact upload bucket; empty disables S3 uploads.
	S3Bucket  string
	AWSRegion string

	// JWT configuration
	JWTSecret string
}

// LoadConfig creates a new Config instance from environment variables.
// A .env file in the working directory is applied first when present.
func LoadConfig() (*Config, error) {
	// best effort; running without a .env file is the normal case
	_ = godotenv.Load()

	cfg := &Config{
		ServerHost:       getEnv("SERVER_HOST", "0.0.0.0"),
		ServerPort:       getEnv("SERVER_PORT", "8080"),
		DBDriver:         getEnv("DB_DRIVER", "sqlite"),
		DBDSN:            getEnv("DB_DSN", "data/recipes.db"),
		RedisHost:        os.Getenv("REDIS_HOST"),
		RedisPort:        getEnv("REDIS_PORT", "6379"),
		RedisPassword:    os.Getenv("REDIS_PASSWORD"),
		RedisURL:         os.Getenv("REDIS_URL"),
		GeminiAPIKey:     os.Getenv("GEMINI_API_KEY"),
		GeminiAPIURL:     getEnv("GEMINI_API_URL", "https://generativelanguage.googleapis.com/v1beta"),
		GeminiModel:      getEnv("GEMINI_MODEL", "gemini-2.5-flash"),
		EmbeddingsURL:    os.Getenv("EMBEDDINGS_API_URL"),
		EmbeddingsAPIKey: os.Getenv("EMBEDDINGS_API_KEY"),
		EmbeddingsModel:  getEnv("EMBEDDINGS_MODEL", "text-embedding-3-small"),
		IndexBasePath:    getEnv("INGREDIENT_INDEX_PATH", "data/ingredients"),
		ArtifactsDir:     getEnv("ARTIFACTS_DIR", "artifacts"),
		S3Bucket:         os.Getenv("S3_BUCKET_NAME"),
		AWSRegion:        os.Getenv("AWS_REGION"),
		JWTSecret:        os.Getenv("JWT_SECRET"),
	}

	var err error
	if cfg.RedisDB, err = getEnvInt("REDIS_DB", 0); err != nil {
		return nil, err
	}
	if cfg.MatchThreshold, err = getEnvFloat("MATCH_THRESHOLD", 0.92); err != nil {
		return nil, err
	}
	if cfg.LLMTimeout, err = getEnvDuration("LLM_TIMEOUT", 120*time.Second); err != nil {
		return nil, err
	}
	if cfg.EmbedTimeout, err = getEnvDuration("EMBED_TIMEOUT", 30*time.Second); err != nil {
		return nil, err
	}
	if cfg.FetchTimeout, err = getEnvDuration("FETCH_TIMEOUT", 20*time.Second); err != nil {
		return nil, err
	}

	if err := ValidateConfig(cfg); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return cfg, nil
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) (int, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return n, nil
}

func getEnvFloat(key string, fallback float64) (float64, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return f, nil
}

func getEnvDuration(key string, fallback time.Duration) (time.Duration, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return d, nil
}
