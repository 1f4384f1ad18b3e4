package api

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/recipedex/backend/internal/calendar"
	"github.com/recipedex/backend/internal/middleware"
)

// WeekCalendar renders the recipes saved in the last seven days as an
// ICS file, one dinner slot per day starting tomorrow at 18:00 UTC.
func (h *Handler) WeekCalendar(c *gin.Context) {
	recipes, err := h.recipes.ListRecipes(c.Request.Context(), middleware.UserID(c))
	if err != nil {
		c.Error(err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load recipes"})
		return
	}

	cutoff := time.Now().AddDate(0, 0, -7)
	slot := time.Now().UTC().AddDate(0, 0, 1)
	slot = time.Date(slot.Year(), slot.Month(), slot.Day(), 18, 0, 0, 0, time.UTC)

	var meals []calendar.Meal
	for _, r := range recipes {
		if r.CreatedAt.Before(cutoff) || r.Title == "unknown" {
			continue
		}
		meal := calendar.Meal{Title: r.Title, Start: slot}
		if r.SourceURL != nil {
			meal.URL = *r.SourceURL
		}
		if r.TotalMin != nil {
			meal.DurationMin = int(*r.TotalMin)
		}
		meals = append(meals, meal)
		slot = slot.AddDate(0, 0, 1)
	}

	c.Header("Content-Disposition", `attachment; filename="week.ics"`)
	c.Data(http.StatusOK, "text/calendar; charset=utf-8", []byte(calendar.BuildWeekICS(meals)))
}
