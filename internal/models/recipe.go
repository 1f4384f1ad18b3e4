package models

import (
	"database/sql/driver"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	pgvector "github.com/pgvector/pgvector-go"
	"gorm.io/gorm"
)

// JSONStringArray stores a string slice as a JSON column, portable
// across sqlite and postgres.
type JSONStringArray []string

// Value implements the driver.Valuer interface
func (a JSONStringArray) Value() (driver.Value, error) {
	if len(a) == 0 {
		return "[]", nil
	}
	return json.Marshal(a)
}

// Scan implements the sql.Scanner interface
func (a *JSONStringArray) Scan(value interface{}) error {
	if value == nil {
		*a = JSONStringArray{}
		return nil
	}

	var bytes []byte
	switch v := value.(type) {
	case []byte:
		bytes = v
	case string:
		bytes = []byte(v)
	default:
		return nil
	}

	return json.Unmarshal(bytes, a)
}

// Recipe is a persisted recipe record. SourceURL carries a unique
// index so re-ingesting a page updates the existing row; it is NULL
// for recipes ingested from raw markup with no URL, which therefore
// never collide with each other.
type Recipe struct {
	ID        uuid.UUID        `gorm:"type:uuid;primary_key" json:"id"`
	CreatedAt time.Time        `json:"created_at"`
	UpdatedAt time.Time        `json:"updated_at"`
	DeletedAt gorm.DeletedAt   `gorm:"index" json:"-"`
	UserID    string           `gorm:"size:64;uniqueIndex:idx_recipes_user_source;not null" json:"user_id"`
	Title     string           `gorm:"size:255;not null" json:"title"`
	SourceURL *string          `gorm:"size:512;uniqueIndex:idx_recipes_user_source" json:"source_url"`
	YieldText string           `gorm:"size:255" json:"yield_text"`
	Servings  *float64         `json:"servings"`
	PrepMin   *float64         `json:"prep_min"`
	CookMin   *float64         `json:"cook_min"`
	TotalMin  *float64         `json:"total_min"`
	Steps     JSONStringArray  `gorm:"type:json;not null;default:'[]'" json:"steps"`
	Embedding *pgvector.Vector `gorm:"type:vector" json:"-"`
	Version   int              `gorm:"default:1" json:"version"`

	Ingredients []RecipeIngredient `gorm:"foreignKey:RecipeID" json:"ingredients,omitempty"`
}

// BeforeCreate assigns the ID so the model works on sqlite, which has
// no gen_random_uuid().
func (r *Recipe) BeforeCreate(tx *gorm.DB) error {
	if r.ID == uuid.Nil {
		r.ID = uuid.New()
	}
	return nil
}

// Ingredient is one canonical grocery item. Name is stored in
// canonical form and unique per user.
type Ingredient struct {
	ID          uuid.UUID      `gorm:"type:uuid;primary_key" json:"id"`
	CreatedAt   time.Time      `json:"created_at"`
	UpdatedAt   time.Time      `json:"updated_at"`
	DeletedAt   gorm.DeletedAt `gorm:"index" json:"-"`
	UserID      string         `gorm:"size:64;uniqueIndex:idx_ingredients_user_name;not null" json:"user_id"`
	Name        string         `gorm:"size:255;uniqueIndex:idx_ingredients_user_name;not null" json:"name"`
	DefaultUnit string         `gorm:"size:32" json:"default_unit"`
	Notes       string         `gorm:"type:text" json:"notes"`
	Version     int            `gorm:"default:1" json:"version"`
}

func (i *Ingredient) BeforeCreate(tx *gorm.DB) error {
	if i.ID == uuid.Nil {
		i.ID = uuid.New()
	}
	return nil
}

// RecipeIngredient links a recipe to a canonical ingredient, carrying
// the recipe-specific quantity, unit and notes. QtyGML is the quantity
// converted to grams or milliliters when a conversion was possible.
type RecipeIngredient struct {
	ID           uuid.UUID  `gorm:"type:uuid;primary_key" json:"id"`
	CreatedAt    time.Time  `json:"created_at"`
	UpdatedAt    time.Time  `json:"updated_at"`
	UserID       string     `gorm:"size:64;index;not null" json:"user_id"`
	RecipeID     uuid.UUID  `gorm:"type:uuid;index;not null" json:"recipe_id"`
	IngredientID *uuid.UUID `gorm:"type:uuid;index" json:"ingredient_id"`
	QtyRaw       string     `gorm:"size:255" json:"qty_raw"`
	Quantity     *float64   `json:"quantity"`
	Unit         string     `gorm:"size:32" json:"unit"`
	QtyGML       *float64   `json:"qty_gml"`
	Notes        string     `gorm:"type:text" json:"notes"`
	MatchScore   float64    `json:"match_score"`
}

func (ri *RecipeIngredient) BeforeCreate(tx *gorm.DB) error {
	if ri.ID == uuid.Nil {
		ri.ID = uuid.New()
	}
	return nil
}

// DensityEntry caches a volume-to-mass density in g/ml for an
// ingredient. Rows with an empty UserID are global defaults.
type DensityEntry struct {
	ID             uuid.UUID `gorm:"type:uuid;primary_key" json:"id"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
	UserID         string    `gorm:"size:64;index" json:"user_id"`
	IngredientName string    `gorm:"size:255;index;not null" json:"ingredient_name"`
	DensityGML     float64   `gorm:"not null" json:"density_g_ml"`
	Source         string    `gorm:"size:255" json:"source"`
}

func (d *DensityEntry) BeforeCreate(tx *gorm.DB) error {
	if d.ID == uuid.Nil {
		d.ID = uuid.New()
	}
	return nil
}

// ChangeLog is the append-only feed consumed by sync clients. ID is
// monotonically increasing and doubles as the server version.
type ChangeLog struct {
	ID        uint      `gorm:"primaryKey;autoIncrement" json:"id"`
	CreatedAt time.Time `json:"created_at"`
	UserID    string    `gorm:"size:64;index;not null" json:"user_id"`
	Entity    string    `gorm:"size:32;not null" json:"entity"`
	EntityID  string    `gorm:"size:64" json:"entity_id"`
	Op        string    `gorm:"size:16;not null" json:"op"`
	Version   int       `gorm:"default:1" json:"version"`
	Payload   string    `gorm:"type:text" json:"payload"`
}
