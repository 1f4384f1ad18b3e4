package types

// AggregatedIngredient is one matched ingredient line after duplicate
// lines for the same canonical name have been folded together.
type AggregatedIngredient struct {
	// Name is the canonical ingredient name the line matched to.
	Name string `json:"name"`
	// Status is "existing" when the name matched a known ingredient,
	// "new" when it was created during ingestion.
	Status string `json:"status"`
	// Quantity is the summed quantity across duplicate lines, nil when
	// no line carried one.
	Quantity *float64 `json:"quantity"`
	// Unit is the unit of the first line that carried one.
	Unit string `json:"unit"`
	// Notes joins distinct per-line notes with "; ".
	Notes string `json:"notes"`
	// Raws joins distinct raw source lines with "; ".
	Raws string `json:"raws"`
	// Score is the highest similarity score among the folded lines.
	Score float64 `json:"score"`
}
