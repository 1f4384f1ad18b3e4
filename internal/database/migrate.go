package database

import (
	"fmt"

	"gorm.io/gorm"

	"github.com/recipedex/backend/internal/models"
)

// Migrate applies the schema for all persisted models. AutoMigrate is
// additive only, which is the behavior both drivers need here.
func Migrate(db *gorm.DB) error {
	if err := db.AutoMigrate(
		&models.Recipe{},
		&models.Ingredient{},
		&models.RecipeIngredient{},
		&models.DensityEntry{},
		&models.ChangeLog{},
	); err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}
	return nil
}
