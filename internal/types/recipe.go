// Package types holds the data transfer shapes shared between the LLM
// normalizer, pipeline and persistence layers.
package types

import (
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
)

var validate = validator.New()

// TimeBlock carries recipe timing in minutes. Fields are pointers so
// that "absent" and "zero" stay distinguishable for hint merging.
type TimeBlock struct {
	PrepMin  *float64 `json:"prep_min" validate:"omitempty,gte=0"`
	CookMin  *float64 `json:"cook_min" validate:"omitempty,gte=0"`
	TotalMin *float64 `json:"total_min" validate:"omitempty,gte=0"`
}

// IngredientDraft is one ingredient mention as parsed from a page.
// Name must denote a purchasable grocery item; identity-changing
// descriptors ("unsalted butter") belong in Name, preparation text in
// Notes.
type IngredientDraft struct {
	Raw      string   `json:"raw,omitempty"`
	Name     string   `json:"name" validate:"required"`
	Quantity *float64 `json:"quantity"`
	Unit     string   `json:"unit"`
	Notes    string   `json:"notes"`
}

// RecipeDraft is the schema-conformant recipe produced by the LLM
// normalizer, before deduplication and persistence.
type RecipeDraft struct {
	Title       string            `json:"title" validate:"required"`
	SourceURL   string            `json:"source_url,omitempty"`
	YieldText   string            `json:"yield_text,omitempty"`
	Servings    *float64          `json:"servings" validate:"omitempty,gte=0"`
	Time        TimeBlock         `json:"time"`
	Ingredients []IngredientDraft `json:"ingredients" validate:"dive"`
	Steps       []string          `json:"steps"`
}

// Validate checks the draft against the schema contract: non-empty
// title, non-negative numbers, ingredient names present and steps free
// of empty strings.
func (d *RecipeDraft) Validate() error {
	if strings.TrimSpace(d.Title) == "" {
		return fmt.Errorf("title must not be empty")
	}
	if err := validate.Struct(d); err != nil {
		return err
	}
	for i, ing := range d.Ingredients {
		if strings.TrimSpace(ing.Name) == "" {
			return fmt.Errorf("ingredient %d has no name", i)
		}
		if ing.Quantity != nil && *ing.Quantity < 0 {
			return fmt.Errorf("ingredient %d has negative quantity", i)
		}
	}
	for i, step := range d.Steps {
		if strings.TrimSpace(step) == "" {
			return fmt.Errorf("step %d is empty", i)
		}
	}
	return nil
}

// SchemaDescription is the target shape sent to the completion service.
// It mirrors the JSON tags above and is injected verbatim into the
// prompt.
const SchemaDescription = `{
  "title": "string (required)",
  "source_url": "string or null",
  "yield_text": "string or null",
  "servings": "number or null",
  "time": {"prep_min": "number or null", "cook_min": "number or null", "total_min": "number or null"},
  "ingredients": [
    {"raw": "string or null", "name": "string (required)", "quantity": "number or null", "unit": "string or null", "notes": "string"}
  ],
  "steps": ["string"]
}`
