package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/recipedex/backend/internal/artifacts"
	"github.com/recipedex/backend/internal/jsonld"
	"github.com/recipedex/backend/internal/types"
)

const (
	// maxPageText bounds the source text prefix injected into the prompt.
	maxPageText = 120000
	// maxHintJSON bounds the serialized structured-data hint.
	maxHintJSON = 6000
	// maxAttempts is the completion budget: the initial call plus one
	// retry on validation failure.
	maxAttempts = 2
)

const instructionBlock = `Extract exactly ONE cooking recipe from PAGE_TEXT into the provided JSON schema.
- Normalize ingredient names to common grocery-purchasable terms (no brands).
- Descriptors that change what you would buy ("unsalted butter", "smoked paprika") stay in "name"; preparation, descriptor or alternative text goes in "notes". Always populate "notes", using "" when there is nothing to say.
- Parse quantities and units when present; use standard unit abbreviations (tsp, tbsp, cup, g, kg, ml, l, oz, lb); leave null when not determinable.
- Keep steps as concise imperative sentences.
- Do NOT invent data that is not in PAGE_TEXT or STRUCTURED_DATA.`

// Normalizer turns page text into a validated RecipeDraft.
type Normalizer struct {
	completer Completer
	store     *artifacts.Store
	logger    *zap.Logger
}

// NewNormalizer wires a normalizer. store may be nil to skip audit
// dumps; logger may be nil.
func NewNormalizer(completer Completer, store *artifacts.Store, logger *zap.Logger) *Normalizer {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Normalizer{completer: completer, store: store, logger: logger}
}

// ParseRecipeText runs the completion call and recovers a validated
// draft. The call is retried exactly once when recovery or validation
// fails; transport failures are returned immediately. hint may be nil.
func (n *Normalizer) ParseRecipeText(ctx context.Context, text, sourceURL string, hint *jsonld.RecipeHint) (*types.RecipeDraft, error) {
	prompt := n.buildPrompt(text, sourceURL, hint)

	var lastErr error
	for attempt := 0; attempt < maxAttempts; attempt++ {
		raw, err := n.completer.Complete(ctx, prompt)
		if err != nil {
			return nil, err
		}
		n.dumpRaw(ctx, raw)

		draft, err := n.recover(ctx, raw)
		if err != nil {
			lastErr = err
			n.logger.Warn("recipe draft rejected", zap.Int("attempt", attempt), zap.Error(err))
			continue
		}

		mergeHint(draft, hint)
		if sourceURL != "" && draft.SourceURL == "" {
			draft.SourceURL = sourceURL
		}
		return draft, nil
	}

	return nil, &ParseError{Detail: "model output failed validation after retry", Err: lastErr}
}

// recover extracts, parses and validates one response.
func (n *Normalizer) recover(ctx context.Context, raw string) (*types.RecipeDraft, error) {
	payload, ok := ExtractJSON(raw)
	if !ok {
		return nil, fmt.Errorf("no JSON object found in response")
	}
	if n.store != nil {
		n.store.WriteRaw(ctx, "llm_recovered", []byte(payload))
	}

	var draft types.RecipeDraft
	if err := json.Unmarshal([]byte(payload), &draft); err != nil {
		return nil, fmt.Errorf("recovered JSON does not decode: %w", err)
	}
	if err := draft.Validate(); err != nil {
		return nil, fmt.Errorf("draft validation failed: %w", err)
	}
	return &draft, nil
}

func (n *Normalizer) dumpRaw(ctx context.Context, raw string) {
	if n.store != nil {
		n.store.WriteRaw(ctx, "llm_raw", []byte(raw))
	}
}

// buildPrompt assembles instruction, source URL, optional hint, target
// schema and the bounded page text.
func (n *Normalizer) buildPrompt(text, sourceURL string, hint *jsonld.RecipeHint) string {
	parts := []string{
		instructionBlock,
		"SOURCE_URL: " + sourceURL,
	}
	if hint != nil && hint.Raw != nil {
		if data, err := json.Marshal(hint.Raw); err == nil {
			parts = append(parts, "STRUCTURED_DATA:\n"+truncate(string(data), maxHintJSON))
		}
	}
	parts = append(parts,
		"TARGET_SCHEMA:\n"+types.SchemaDescription,
		"PAGE_TEXT:\n"+truncate(text, maxPageText),
	)
	return strings.Join(parts, "\n\n")
}

func truncate(s string, limit int) string {
	runes := []rune(s)
	if len(runes) <= limit {
		return s
	}
	return string(runes[:limit])
}

// mergeHint backfills draft fields from the structured-data hint,
// never overriding a value the model already produced. total_min is
// computed from prep+cook when still absent afterwards.
func mergeHint(draft *types.RecipeDraft, hint *jsonld.RecipeHint) {
	if hint != nil {
		if draft.Servings == nil && hint.Servings != nil {
			draft.Servings = hint.Servings
		}
		if draft.YieldText == "" && hint.YieldText != "" {
			draft.YieldText = hint.YieldText
		}
		if draft.Time.PrepMin == nil && hint.PrepMin != nil {
			draft.Time.PrepMin = hint.PrepMin
		}
		if draft.Time.CookMin == nil && hint.CookMin != nil {
			draft.Time.CookMin = hint.CookMin
		}
		if draft.Time.TotalMin == nil && hint.TotalMin != nil {
			draft.Time.TotalMin = hint.TotalMin
		}
	}
	if draft.Time.TotalMin == nil && draft.Time.PrepMin != nil && draft.Time.CookMin != nil {
		total := *draft.Time.PrepMin + *draft.Time.CookMin
		draft.Time.TotalMin = &total
	}
}
