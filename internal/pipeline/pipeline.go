package pipeline

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/recipedex/backend/internal/artifacts"
	"github.com/recipedex/backend/internal/embedding"
	"github.com/recipedex/backend/internal/extract"
	"github.com/recipedex/backend/internal/jsonld"
	"github.com/recipedex/backend/internal/match"
	"github.com/recipedex/backend/internal/models"
	"github.com/recipedex/backend/internal/service"
	"github.com/recipedex/backend/internal/types"
)

// PageFetcher retrieves a page body and reports the final URL after
// redirects.
type PageFetcher interface {
	Get(ctx context.Context, url string) (body, finalURL string, err error)
}

// Parser turns page text into a structured recipe draft.
type Parser interface {
	ParseRecipeText(ctx context.Context, text, sourceURL string, hint *jsonld.RecipeHint) (*types.RecipeDraft, error)
}

// Result is what one ingestion run produced.
type Result struct {
	Recipe      *models.Recipe               `json:"recipe"`
	Draft       *types.RecipeDraft           `json:"draft"`
	Ingredients []types.AggregatedIngredient `json:"ingredients"`
	NewNames    []string                     `json:"new_names"`
}

// Pipeline runs the full ingestion flow for one recipe URL.
type Pipeline struct {
	fetcher   PageFetcher
	parser    Parser
	recipes   *service.RecipeService
	index     *embedding.Index
	indexBase string
	store     *artifacts.Store
	threshold float64
	logger    *zap.Logger
}

func New(fetcher PageFetcher, parser Parser, recipes *service.RecipeService,
	index *embedding.Index, indexBase string, store *artifacts.Store,
	threshold float64, logger *zap.Logger) *Pipeline {
	if threshold == 0 {
		threshold = match.DefaultThreshold
	}
	return &Pipeline{
		fetcher:   fetcher,
		parser:    parser,
		recipes:   recipes,
		index:     index,
		indexBase: indexBase,
		store:     store,
		threshold: threshold,
		logger:    logger,
	}
}

// IngestURL fetches, parses, matches and persists one recipe page.
// When a stage fails, a fallback record titled "unknown" is saved so
// the failed URL remains visible, and the stage error is returned.
func (p *Pipeline) IngestURL(ctx context.Context, userID, url string) (*Result, error) {
	body, finalURL, err := p.fetcher.Get(ctx, url)
	if err != nil {
		p.logger.Warn("fetch failed", zap.String("url", url), zap.Error(err))
		p.saveFallback(ctx, userID, url)
		return nil, fmt.Errorf("fetch: %w", err)
	}
	if finalURL == "" {
		finalURL = url
	}
	return p.IngestHTML(ctx, userID, finalURL, body)
}

// IngestHTML runs the flow on markup the caller already has, skipping
// the fetch stage. sourceURL is recorded on the saved recipe.
func (p *Pipeline) IngestHTML(ctx context.Context, userID, sourceURL, markup string) (*Result, error) {
	result, err := p.run(ctx, userID, sourceURL, markup)
	if err != nil {
		p.saveFallback(ctx, userID, sourceURL)
		return nil, err
	}
	return result, nil
}

func (p *Pipeline) run(ctx context.Context, userID, finalURL, body string) (*Result, error) {
	hint, ok := jsonld.Extract(body)
	if ok {
		p.logger.Debug("structured data found", zap.String("url", finalURL))
	}

	text := extract.MainText(body)
	if strings.TrimSpace(text) == "" {
		p.logger.Warn("page had no extractable text", zap.String("url", finalURL))
		return nil, fmt.Errorf("extract: page %q yielded no text", finalURL)
	}

	draft, err := p.parser.ParseRecipeText(ctx, text, finalURL, hint)
	if err != nil {
		p.logger.Warn("parse failed", zap.String("url", finalURL), zap.Error(err))
		return nil, fmt.Errorf("parse: %w", err)
	}

	lines, newNames, err := p.matchIngredients(ctx, userID, draft)
	if err != nil {
		p.logger.Warn("match failed", zap.String("url", finalURL), zap.Error(err))
		return nil, fmt.Errorf("match: %w", err)
	}

	// Title embedding stored alongside the recipe for similarity search.
	vec, err := p.index.EmbedOne(ctx, draft.Title)
	if err != nil {
		p.logger.Debug("title embedding failed", zap.String("title", draft.Title), zap.Error(err))
		vec = nil
	}

	recipe, err := p.recipes.UpsertByURL(ctx, userID, draft, lines, vec)
	if err != nil {
		p.logger.Warn("persist failed", zap.String("url", finalURL), zap.Error(err))
		return nil, fmt.Errorf("persist: %w", err)
	}

	if p.store != nil {
		p.store.DumpRecipe(ctx, draft)
	}
	p.persistIndex(newNames)

	p.logger.Info("recipe ingested",
		zap.String("url", finalURL),
		zap.String("title", draft.Title),
		zap.Int("ingredients", len(lines)),
		zap.Int("new_ingredients", len(newNames)))

	return &Result{Recipe: recipe, Draft: draft, Ingredients: lines, NewNames: newNames}, nil
}

// matchIngredients resolves each draft line to a canonical ingredient
// and folds duplicate lines for the same name into one entry.
func (p *Pipeline) matchIngredients(ctx context.Context, userID string, draft *types.RecipeDraft) ([]types.AggregatedIngredient, []string, error) {
	names, err := p.recipes.ListIngredientNames(ctx, userID)
	if err != nil {
		return nil, nil, err
	}
	existing := make(map[string]struct{}, len(names))
	for _, name := range names {
		existing[name] = struct{}{}
	}

	byName := map[string]*types.AggregatedIngredient{}
	var order []string
	var newNames []string

	for _, ing := range draft.Ingredients {
		decision, err := match.MatchOrCreate(ctx, ing.Name, existing, p.index, p.threshold)
		if err != nil {
			return nil, nil, err
		}
		if decision.Status == match.StatusNew {
			if _, seen := existing[decision.Name]; !seen {
				existing[decision.Name] = struct{}{}
				newNames = append(newNames, decision.Name)
				if err := p.index.AddName(ctx, decision.Name); err != nil {
					return nil, nil, err
				}
			}
		}

		agg, ok := byName[decision.Name]
		if !ok {
			agg = &types.AggregatedIngredient{
				Name:   decision.Name,
				Status: string(decision.Status),
			}
			byName[decision.Name] = agg
			order = append(order, decision.Name)
		}
		foldLine(agg, ing, decision.Score)
	}

	out := make([]types.AggregatedIngredient, 0, len(order))
	for _, name := range order {
		out = append(out, *byName[name])
	}
	return out, newNames, nil
}

// foldLine merges one draft ingredient line into an aggregate entry.
// Quantities sum, the first unit wins, notes and raw lines join
// deduplicated, and the highest score is kept.
func foldLine(agg *types.AggregatedIngredient, ing types.IngredientDraft, score float64) {
	if ing.Quantity != nil {
		q := *ing.Quantity
		if agg.Quantity != nil {
			q += *agg.Quantity
		}
		agg.Quantity = &q
	}
	if agg.Unit == "" {
		agg.Unit = ing.Unit
	}
	agg.Notes = joinDistinct(agg.Notes, ing.Notes)
	agg.Raws = joinDistinct(agg.Raws, ing.Raw)
	if score > agg.Score {
		agg.Score = score
	}
}

// joinDistinct appends part to joined with "; " unless it is empty or
// already present.
func joinDistinct(joined, part string) string {
	part = strings.TrimSpace(part)
	if part == "" {
		return joined
	}
	if joined == "" {
		return part
	}
	for _, existing := range strings.Split(joined, "; ") {
		if existing == part {
			return joined
		}
	}
	return joined + "; " + part
}

// saveFallback records a placeholder recipe for a failed ingestion so
// the URL shows up in listings and can be retried. A recipe already
// saved for the URL is left untouched; a transient failure on
// re-ingest must not wipe good data. URL-less ingestions have nothing
// to retry, so no placeholder is written for them.
func (p *Pipeline) saveFallback(ctx context.Context, userID, url string) {
	if url == "" {
		return
	}
	exists, err := p.recipes.HasRecipe(ctx, userID, url)
	if err != nil {
		p.logger.Warn("failed to check for existing recipe", zap.String("url", url), zap.Error(err))
		return
	}
	if exists {
		p.logger.Warn("ingest failed, keeping previously saved recipe", zap.String("url", url))
		return
	}
	draft := &types.RecipeDraft{
		Title:     "unknown",
		SourceURL: url,
		Steps:     []string{},
	}
	if _, err := p.recipes.UpsertByURL(ctx, userID, draft, nil, nil); err != nil {
		p.logger.Warn("failed to save fallback record", zap.String("url", url), zap.Error(err))
	}
}

// persistIndex saves the similarity index after new names were added.
// A save failure is logged, not fatal; the index rebuilds from the
// database on the next start.
func (p *Pipeline) persistIndex(newNames []string) {
	if len(newNames) == 0 || p.indexBase == "" {
		return
	}
	if err := p.index.Save(p.indexBase); err != nil {
		p.logger.Warn("failed to save index", zap.Error(err))
	}
}
