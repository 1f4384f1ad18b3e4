// Package llm converts free page text into a schema-conformant recipe
// draft via a completion call with strict output recovery and a single
// retry.
package llm

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/recipedex/backend/config"
)

// Completer is the completion-service boundary: one prompt in, the raw
// model text out. The response is expected, not guaranteed, to contain
// one JSON object.
type Completer interface {
	Complete(ctx context.Context, prompt string) (string, error)
}

// GeminiClient calls the Gemini generateContent REST API with
// temperature zero. An optional Redis client caches responses keyed by
// prompt hash, so re-ingesting an unchanged page skips the paid call.
type GeminiClient struct {
	client *resty.Client
	model  string
	redis  *redis.Client
	logger *zap.Logger
}

// NewGeminiClient builds a client from configuration. A missing API
// key yields a ConfigurationError.
func NewGeminiClient(cfg *config.Config, redisClient *redis.Client, logger *zap.Logger) (*GeminiClient, error) {
	if cfg.GeminiAPIKey == "" {
		return nil, &ConfigurationError{Message: "Gemini API key not configured (GEMINI_API_KEY)"}
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	client := resty.New().
		SetBaseURL(cfg.GeminiAPIURL).
		SetTimeout(cfg.LLMTimeout).
		SetHeader("Content-Type", "application/json").
		SetQueryParam("key", cfg.GeminiAPIKey)

	return &GeminiClient{
		client: client,
		model:  cfg.GeminiModel,
		redis:  redisClient,
		logger: logger,
	}, nil
}

type generateRequest struct {
	Contents         []content        `json:"contents"`
	GenerationConfig generationConfig `json:"generationConfig"`
}

type content struct {
	Parts []part `json:"parts"`
}

type part struct {
	Text string `json:"text"`
}

type generationConfig struct {
	Temperature      float64 `json:"temperature"`
	ResponseMimeType string  `json:"responseMimeType"`
}

type generateResponse struct {
	Candidates []struct {
		Content struct {
			Parts []part `json:"parts"`
		} `json:"content"`
	} `json:"candidates"`
}

// Complete sends the prompt and returns the first candidate's text.
func (c *GeminiClient) Complete(ctx context.Context, prompt string) (string, error) {
	if cached, ok := c.cacheGet(ctx, prompt); ok {
		return cached, nil
	}

	req := generateRequest{
		Contents: []content{{Parts: []part{{Text: prompt}}}},
		GenerationConfig: generationConfig{
			Temperature:      0,
			ResponseMimeType: "application/json",
		},
	}

	var result generateResponse
	resp, err := c.client.R().
		SetContext(ctx).
		SetBody(req).
		SetResult(&result).
		Post(fmt.Sprintf("/models/%s:generateContent", c.model))
	if err != nil {
		return "", fmt.Errorf("completion request failed: %w", err)
	}
	if resp.IsError() {
		return "", fmt.Errorf("completion request failed with status %d: %s", resp.StatusCode(), resp.String())
	}
	if len(result.Candidates) == 0 || len(result.Candidates[0].Content.Parts) == 0 {
		return "", fmt.Errorf("no candidates in completion response")
	}

	text := result.Candidates[0].Content.Parts[0].Text
	c.cacheSet(ctx, prompt, text)
	return text, nil
}

func cacheKey(prompt string) string {
	sum := sha256.Sum256([]byte(prompt))
	return "llm:response:" + hex.EncodeToString(sum[:])
}

func (c *GeminiClient) cacheGet(ctx context.Context, prompt string) (string, bool) {
	if c.redis == nil {
		return "", false
	}
	val, err := c.redis.Get(ctx, cacheKey(prompt)).Result()
	if err != nil {
		return "", false
	}
	c.logger.Debug("completion cache hit")
	return val, true
}

func (c *GeminiClient) cacheSet(ctx context.Context, prompt, response string) {
	if c.redis == nil {
		return
	}
	if err := c.redis.Set(ctx, cacheKey(prompt), response, 24*time.Hour).Err(); err != nil {
		c.logger.Warn("completion cache write failed", zap.Error(err))
	}
}
