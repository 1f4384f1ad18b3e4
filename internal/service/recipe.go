package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	pgvector "github.com/pgvector/pgvector-go"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/recipedex/backend/internal/canonical"
	"github.com/recipedex/backend/internal/models"
	"github.com/recipedex/backend/internal/types"
)

// massToGrams converts mass units to grams.
var massToGrams = map[string]float64{
	"g":     1,
	"gram":  1,
	"grams": 1,
	"kg":    1000,
	"mg":    0.001,
	"oz":    28.3495,
	"ounce": 28.3495,
	"lb":    453.592,
	"pound": 453.592,
}

// volumeToML converts volume units to milliliters.
var volumeToML = map[string]float64{
	"ml":          1,
	"milliliter":  1,
	"milliliters": 1,
	"l":           1000,
	"liter":       1000,
	"tsp":         4.92892,
	"teaspoon":    4.92892,
	"teaspoons":   4.92892,
	"tbsp":        14.7868,
	"tablespoon":  14.7868,
	"tablespoons": 14.7868,
	"cup":         240,
	"cups":        240,
	"fl oz":       29.5735,
}

// RecipeService owns all recipe and ingredient persistence.
type RecipeService struct {
	db     *gorm.DB
	logger *zap.Logger
}

func NewRecipeService(db *gorm.DB, logger *zap.Logger) *RecipeService {
	return &RecipeService{db: db, logger: logger}
}

// ListIngredientNames returns every canonical ingredient name known
// for the user, for seeding the similarity index. An empty userID
// returns the distinct names across all users.
func (s *RecipeService) ListIngredientNames(ctx context.Context, userID string) ([]string, error) {
	q := s.db.WithContext(ctx).Model(&models.Ingredient{}).Distinct("name").Order("name")
	if userID != "" {
		q = q.Where("user_id = ?", userID)
	}
	var names []string
	if err := q.Pluck("name", &names).Error; err != nil {
		return nil, fmt.Errorf("failed to list ingredients: %w", err)
	}
	return names, nil
}

// LookupOrCreateIngredient finds the ingredient with the given
// canonical name, creating it when absent. The second return value is
// true when a row was created.
func (s *RecipeService) LookupOrCreateIngredient(ctx context.Context, userID, name string) (*models.Ingredient, bool, error) {
	name = canonical.Canonicalize(name)
	if name == "" {
		return nil, false, errors.New("ingredient name is empty after canonicalization")
	}

	var ing models.Ingredient
	err := s.db.WithContext(ctx).
		Where("user_id = ? AND name = ?", userID, name).
		First(&ing).Error
	if err == nil {
		return &ing, false, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, false, fmt.Errorf("failed to look up ingredient: %w", err)
	}

	ing = models.Ingredient{UserID: userID, Name: name}
	if err := s.db.WithContext(ctx).Create(&ing).Error; err != nil {
		return nil, false, fmt.Errorf("failed to create ingredient: %w", err)
	}
	s.logChange(ctx, userID, "ingredient", ing.ID.String(), "create", ing)
	return &ing, true, nil
}

// UpsertByURL saves a parsed recipe and its aggregated ingredient
// lines. When a recipe with the same source URL already exists for the
// user its fields and lines are replaced, so re-ingesting a page is
// idempotent. An empty source URL stores NULL and always creates a new
// recipe. vec is an optional title embedding stored for similarity
// search; nil skips the column.
func (s *RecipeService) UpsertByURL(ctx context.Context, userID string, draft *types.RecipeDraft, lines []types.AggregatedIngredient, vec []float32) (*models.Recipe, error) {
	var saved *models.Recipe
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		recipe := models.Recipe{UserID: userID}

		if draft.SourceURL != "" {
			url := draft.SourceURL
			recipe.SourceURL = &url
			err := tx.Where("user_id = ? AND source_url = ?", userID, draft.SourceURL).
				First(&recipe).Error
			if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
				return fmt.Errorf("failed to look up recipe: %w", err)
			}
			if err == nil {
				recipe.Version++
				if err := tx.Where("recipe_id = ?", recipe.ID).
					Delete(&models.RecipeIngredient{}).Error; err != nil {
					return fmt.Errorf("failed to clear recipe lines: %w", err)
				}
			}
		}

		recipe.Title = draft.Title
		if len(vec) > 0 {
			v := pgvector.NewVector(vec)
			recipe.Embedding = &v
		}
		recipe.YieldText = draft.YieldText
		recipe.Servings = draft.Servings
		recipe.Steps = models.JSONStringArray(draft.Steps)
		recipe.PrepMin = draft.Time.PrepMin
		recipe.CookMin = draft.Time.CookMin
		recipe.TotalMin = draft.Time.TotalMin

		if err := tx.Save(&recipe).Error; err != nil {
			return fmt.Errorf("failed to save recipe: %w", err)
		}

		for _, line := range lines {
			ing, _, err := s.lookupOrCreateIngredientTx(ctx, tx, userID, line.Name)
			if err != nil {
				return err
			}
			ri := models.RecipeIngredient{
				UserID:       userID,
				RecipeID:     recipe.ID,
				IngredientID: &ing.ID,
				QtyRaw:       line.Raws,
				Quantity:     line.Quantity,
				Unit:         line.Unit,
				Notes:        line.Notes,
				MatchScore:   line.Score,
			}
			if line.Quantity != nil {
				if gml, ok := s.convertToGML(ctx, tx, userID, line.Name, *line.Quantity, line.Unit); ok {
					ri.QtyGML = &gml
				}
			}
			if err := tx.Create(&ri).Error; err != nil {
				return fmt.Errorf("failed to save recipe line: %w", err)
			}
		}

		saved = &recipe
		return nil
	})
	if err != nil {
		return nil, err
	}

	op := "create"
	if saved.Version > 1 {
		op = "update"
	}
	s.logChange(ctx, userID, "recipe", saved.ID.String(), op, saved)
	return saved, nil
}

func (s *RecipeService) lookupOrCreateIngredientTx(ctx context.Context, tx *gorm.DB, userID, name string) (*models.Ingredient, bool, error) {
	name = canonical.Canonicalize(name)
	if name == "" {
		return nil, false, errors.New("ingredient name is empty after canonicalization")
	}
	var ing models.Ingredient
	err := tx.Where("user_id = ? AND name = ?", userID, name).First(&ing).Error
	if err == nil {
		return &ing, false, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, false, fmt.Errorf("failed to look up ingredient: %w", err)
	}
	ing = models.Ingredient{UserID: userID, Name: name}
	if err := tx.Create(&ing).Error; err != nil {
		return nil, false, fmt.Errorf("failed to create ingredient: %w", err)
	}
	return &ing, true, nil
}

// convertToGML converts a quantity to grams (mass units, or volume
// units with a cached density) or milliliters (volume units without
// one). Returns false for count or unknown units.
func (s *RecipeService) convertToGML(ctx context.Context, tx *gorm.DB, userID, name string, qty float64, unit string) (float64, bool) {
	u := strings.ToLower(strings.TrimSpace(unit))
	if factor, ok := massToGrams[u]; ok {
		return qty * factor, true
	}
	factor, ok := volumeToML[u]
	if !ok {
		return 0, false
	}
	ml := qty * factor

	var entry models.DensityEntry
	err := tx.WithContext(ctx).
		Where("ingredient_name = ? AND (user_id = ? OR user_id = '')", name, userID).
		Order("user_id DESC").
		First(&entry).Error
	if err == nil {
		return ml * entry.DensityGML, true
	}
	return ml, true
}

// SetDensity stores a density override for an ingredient in g/ml.
func (s *RecipeService) SetDensity(ctx context.Context, userID, name string, density float64, source string) error {
	name = canonical.Canonicalize(name)
	var entry models.DensityEntry
	err := s.db.WithContext(ctx).
		Where("user_id = ? AND ingredient_name = ?", userID, name).
		First(&entry).Error
	if err != nil {
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return fmt.Errorf("failed to look up density: %w", err)
		}
		entry = models.DensityEntry{UserID: userID, IngredientName: name}
	}
	entry.DensityGML = density
	entry.Source = source
	if err := s.db.WithContext(ctx).Save(&entry).Error; err != nil {
		return fmt.Errorf("failed to save density: %w", err)
	}
	return nil
}

// GetRecipe loads a recipe with its ingredient lines.
func (s *RecipeService) GetRecipe(ctx context.Context, userID, id string) (*models.Recipe, error) {
	var recipe models.Recipe
	if err := s.db.WithContext(ctx).
		Preload("Ingredients").
		Where("user_id = ? AND id = ?", userID, id).
		First(&recipe).Error; err != nil {
		return nil, fmt.Errorf("failed to load recipe: %w", err)
	}
	return &recipe, nil
}

// HasRecipe reports whether the user already has a recipe saved for
// the source URL.
func (s *RecipeService) HasRecipe(ctx context.Context, userID, sourceURL string) (bool, error) {
	var count int64
	if err := s.db.WithContext(ctx).Model(&models.Recipe{}).
		Where("user_id = ? AND source_url = ?", userID, sourceURL).
		Count(&count).Error; err != nil {
		return false, fmt.Errorf("failed to look up recipe: %w", err)
	}
	return count > 0, nil
}

// ListRecipes returns the user's recipes, newest first.
func (s *RecipeService) ListRecipes(ctx context.Context, userID string) ([]models.Recipe, error) {
	var recipes []models.Recipe
	if err := s.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("created_at DESC").
		Find(&recipes).Error; err != nil {
		return nil, fmt.Errorf("failed to list recipes: %w", err)
	}
	return recipes, nil
}

// GroceryLine is one entry of an aggregated grocery list.
type GroceryLine struct {
	Name     string   `json:"name"`
	Quantity *float64 `json:"quantity"`
	Unit     string   `json:"unit"`
	QtyGML   *float64 `json:"qty_gml"`
	Recipes  []string `json:"recipes"`
}

// WeeklyGrocery aggregates ingredient lines across every recipe the
// user saved in the last seven days, folding duplicate ingredients.
func (s *RecipeService) WeeklyGrocery(ctx context.Context, userID string) ([]GroceryLine, error) {
	since := time.Now().AddDate(0, 0, -7)

	var recipes []models.Recipe
	if err := s.db.WithContext(ctx).
		Preload("Ingredients").
		Where("user_id = ? AND created_at >= ?", userID, since).
		Order("created_at").
		Find(&recipes).Error; err != nil {
		return nil, fmt.Errorf("failed to load recipes: %w", err)
	}

	ingNames := map[string]string{}
	var ids []string
	for _, r := range recipes {
		for _, line := range r.Ingredients {
			if line.IngredientID != nil {
				ids = append(ids, line.IngredientID.String())
			}
		}
	}
	if len(ids) > 0 {
		var ings []models.Ingredient
		if err := s.db.WithContext(ctx).Where("id IN ?", ids).Find(&ings).Error; err != nil {
			return nil, fmt.Errorf("failed to load ingredients: %w", err)
		}
		for _, ing := range ings {
			ingNames[ing.ID.String()] = ing.Name
		}
	}

	byName := map[string]*GroceryLine{}
	var order []string
	for _, r := range recipes {
		for _, line := range r.Ingredients {
			name := ""
			if line.IngredientID != nil {
				name = ingNames[line.IngredientID.String()]
			}
			if name == "" {
				continue
			}
			agg, ok := byName[name]
			if !ok {
				agg = &GroceryLine{Name: name, Unit: line.Unit}
				byName[name] = agg
				order = append(order, name)
			}
			if line.Quantity != nil {
				q := *line.Quantity
				if agg.Quantity != nil {
					q += *agg.Quantity
				}
				agg.Quantity = &q
			}
			if line.QtyGML != nil {
				g := *line.QtyGML
				if agg.QtyGML != nil {
					g += *agg.QtyGML
				}
				agg.QtyGML = &g
			}
			if !contains(agg.Recipes, r.Title) {
				agg.Recipes = append(agg.Recipes, r.Title)
			}
		}
	}

	out := make([]GroceryLine, 0, len(order))
	for _, name := range order {
		out = append(out, *byName[name])
	}
	return out, nil
}

// PullChanges returns change log entries newer than the given version,
// oldest first. Clients feed the last ID back as the next cursor.
func (s *RecipeService) PullChanges(ctx context.Context, userID string, since uint) ([]models.ChangeLog, error) {
	entries := []models.ChangeLog{}
	if err := s.db.WithContext(ctx).
		Where("user_id = ? AND id > ?", userID, since).
		Order("id").
		Find(&entries).Error; err != nil {
		return nil, fmt.Errorf("failed to load changes: %w", err)
	}
	return entries, nil
}

// PushChange records a client-originated change in the log.
func (s *RecipeService) PushChange(ctx context.Context, userID, entity, entityID, op string, payload json.RawMessage) (*models.ChangeLog, error) {
	entry := models.ChangeLog{
		UserID:   userID,
		Entity:   entity,
		EntityID: entityID,
		Op:       op,
		Payload:  string(payload),
	}
	if err := s.db.WithContext(ctx).Create(&entry).Error; err != nil {
		return nil, fmt.Errorf("failed to record change: %w", err)
	}
	return &entry, nil
}

func (s *RecipeService) logChange(ctx context.Context, userID, entity, entityID, op string, payload interface{}) {
	data, err := json.Marshal(payload)
	if err != nil {
		s.logger.Warn("failed to encode change payload", zap.Error(err))
		data = []byte("{}")
	}
	entry := models.ChangeLog{
		UserID:   userID,
		Entity:   entity,
		EntityID: entityID,
		Op:       op,
		Payload:  string(data),
	}
	if err := s.db.WithContext(ctx).Create(&entry).Error; err != nil {
		s.logger.Warn("failed to record change", zap.Error(err),
			zap.String("entity", entity), zap.String("op", op))
	}
}

func contains(list []string, v string) bool {
	for _, item := range list {
		if item == v {
			return true
		}
	}
	return false
}
