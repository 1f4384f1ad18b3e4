// Package artifacts persists audit dumps of pipeline intermediates:
// raw LLM responses, recovered JSON and the final recipe record. All
// writes are best effort and never fail the caller.
package artifacts

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/recipedex/backend/config"
	"github.com/recipedex/backend/internal/types"
)

// Placeholder replaces null or absent leaf values in dumped records so
// downstream spreadsheet imports never see blank cells.
const Placeholder = "<none>"

// Store writes timestamped JSON artifacts under a local directory and
// optionally mirrors them to S3.
type Store struct {
	dir    string
	s3cfg  *config.S3Config
	logger *zap.Logger
}

// NewStore creates a store rooted at dir. s3cfg may be nil to disable
// uploads; logger may be nil for silent operation.
func NewStore(dir string, s3cfg *config.S3Config, logger *zap.Logger) *Store {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Store{dir: dir, s3cfg: s3cfg, logger: logger}
}

// WriteJSON marshals v and writes it under a timestamped file name.
// Failures are logged and swallowed.
func (s *Store) WriteJSON(ctx context.Context, name string, v interface{}) {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		s.logger.Warn("artifact marshal failed", zap.String("name", name), zap.Error(err))
		return
	}
	s.WriteRaw(ctx, name, data)
}

// WriteRaw writes data under a timestamped file name. Failures are
// logged and swallowed.
func (s *Store) WriteRaw(ctx context.Context, name string, data []byte) {
	fileName := fmt.Sprintf("%s_%s_%s.json",
		time.Now().UTC().Format("20060102T150405Z"),
		name,
		uuid.New().String()[:8],
	)

	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		s.logger.Warn("artifact dir create failed", zap.Error(err))
		return
	}
	path := filepath.Join(s.dir, fileName)
	if err := os.WriteFile(path, data, 0o644); err != nil {
		s.logger.Warn("artifact write failed", zap.String("path", path), zap.Error(err))
		return
	}

	s.upload(ctx, fileName, data)
}

// upload mirrors an artifact to the configured bucket, best effort.
func (s *Store) upload(ctx context.Context, key string, data []byte) {
	if s.s3cfg == nil || s.s3cfg.Client == nil {
		return
	}
	_, err := s.s3cfg.Client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(s.s3cfg.BucketName),
		Key:         aws.String("artifacts/" + key),
		Body:        bytes.NewReader(data),
		ContentType: aws.String("application/json"),
	})
	if err != nil {
		s.logger.Warn("artifact upload failed", zap.String("key", key), zap.Error(err))
	}
}

// DumpRecipe writes the full recipe record with placeholder-substituted
// leaves plus a short summary artifact.
func (s *Store) DumpRecipe(ctx context.Context, draft *types.RecipeDraft) {
	s.WriteJSON(ctx, "recipe", Sanitize(draft))

	servings := interface{}(Placeholder)
	if draft.Servings != nil {
		servings = *draft.Servings
	}
	s.WriteJSON(ctx, "summary", map[string]interface{}{
		"title":            draft.Title,
		"servings":         servings,
		"ingredient_count": len(draft.Ingredients),
	})
}

// Sanitize round-trips v through JSON and replaces every null or empty
// string leaf with the placeholder. The in-memory value handed to
// downstream collaborators is left untouched.
func Sanitize(v interface{}) interface{} {
	data, err := json.Marshal(v)
	if err != nil {
		return v
	}
	var decoded interface{}
	if err := json.Unmarshal(data, &decoded); err != nil {
		return v
	}
	return substitute(decoded)
}

func substitute(v interface{}) interface{} {
	switch t := v.(type) {
	case nil:
		return Placeholder
	case string:
		if t == "" {
			return Placeholder
		}
		return t
	case map[string]interface{}:
		for k, val := range t {
			t[k] = substitute(val)
		}
		return t
	case []interface{}:
		for i, val := range t {
			t[i] = substitute(val)
		}
		return t
	default:
		return v
	}
}
