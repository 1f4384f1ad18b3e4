// Package embedding provides text embedders and a persistent
// nearest-neighbor index over canonical ingredient names.
package embedding

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
)

// Embedder converts text into fixed-dimension numeric vectors.
type Embedder interface {
	// Embed returns one vector per input text, in input order.
	Embed(ctx context.Context, texts []string) ([][]float32, error)
	// ModelName identifies the backing model.
	ModelName() string
}

// HTTPEmbedder calls an OpenAI-compatible /v1/embeddings endpoint.
type HTTPEmbedder struct {
	client *resty.Client
	model  string
}

// NewHTTPEmbedder creates an embedder against the given endpoint. The
// API key may be empty for local servers that do not require one.
func NewHTTPEmbedder(endpoint, apiKey, model string, timeout time.Duration) *HTTPEmbedder {
	client := resty.New().
		SetBaseURL(endpoint).
		SetTimeout(timeout).
		SetHeader("Content-Type", "application/json")
	if apiKey != "" {
		client.SetAuthToken(apiKey)
	}
	return &HTTPEmbedder{client: client, model: model}
}

type embeddingsRequest struct {
	Model string   `json:"model"`
	Input []string `json:"input"`
}

type embeddingsResponse struct {
	Data []struct {
		Index     int       `json:"index"`
		Embedding []float32 `json:"embedding"`
	} `json:"data"`
}

// Embed requests embeddings for all texts in a single call.
func (e *HTTPEmbedder) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}

	var result embeddingsResponse
	resp, err := e.client.R().
		SetContext(ctx).
		SetBody(embeddingsRequest{Model: e.model, Input: texts}).
		SetResult(&result).
		Post("/v1/embeddings")
	if err != nil {
		return nil, fmt.Errorf("embeddings request failed: %w", err)
	}
	if resp.IsError() {
		return nil, fmt.Errorf("embeddings request failed with status %d: %s", resp.StatusCode(), resp.String())
	}
	if len(result.Data) != len(texts) {
		return nil, fmt.Errorf("embeddings response has %d vectors for %d inputs", len(result.Data), len(texts))
	}

	vectors := make([][]float32, len(texts))
	for _, d := range result.Data {
		if d.Index < 0 || d.Index >= len(vectors) {
			return nil, fmt.Errorf("embeddings response index %d out of range", d.Index)
		}
		vectors[d.Index] = d.Embedding
	}
	return vectors, nil
}

// ModelName returns the configured model identifier.
func (e *HTTPEmbedder) ModelName() string { return e.model }

// LocalEmbedder is a deterministic embedder for offline runs and tests.
// Each vector is a letter histogram over the lowercased text plus a
// length component, so identical strings always embed identically.
type LocalEmbedder struct{}

// ModelName returns a fixed identifier for the local embedder.
func (LocalEmbedder) ModelName() string { return "local-letter-histogram" }

// Embed builds one histogram vector per text.
func (LocalEmbedder) Embed(_ context.Context, texts []string) ([][]float32, error) {
	vectors := make([][]float32, len(texts))
	for i, text := range texts {
		vec := make([]float32, 27)
		for _, r := range strings.ToLower(text) {
			if r >= 'a' && r <= 'z' {
				vec[r-'a']++
			}
		}
		vec[26] = float32(len(text))
		vectors[i] = vec
	}
	return vectors, nil
}
