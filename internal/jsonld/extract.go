// Package jsonld extracts schema.org Recipe objects embedded in page
// markup as application/ld+json script blocks. Extraction is best
// effort: malformed blocks are skipped and absence is reported through
// the boolean return, never through an error.
package jsonld

import (
	"encoding/json"
	"regexp"
	"strconv"
	"strings"
)

// RecipeHint is the structured-data recipe found in a page, with its
// duration and yield fields normalized for merging into a parsed draft.
type RecipeHint struct {
	// Raw is the recipe object as it appeared in the markup.
	Raw map[string]interface{}

	Name      string
	PrepMin   *float64
	CookMin   *float64
	TotalMin  *float64
	Servings  *float64
	YieldText string
}

var (
	scriptRe   = regexp.MustCompile(`(?is)<script[^>]+type=["']application/ld\+json["'][^>]*>(.*?)</script>`)
	isoDurRe   = regexp.MustCompile(`(?i)^P(?:[\d.]+D)?T?(?:(\d+)H)?(?:(\d+)M)?(?:(\d+)S)?$`)
	hoursRe    = regexp.MustCompile(`(?i)(\d+)\s*(?:hours?|hrs?)`)
	minutesRe  = regexp.MustCompile(`(?i)(\d+)\s*(?:minutes?|mins?)`)
	firstIntRe = regexp.MustCompile(`\d+`)
)

// Extract scans markup for JSON-LD blocks and returns the first Recipe
// object found, or false when the page carries none.
func Extract(markup string) (*RecipeHint, bool) {
	for _, m := range scriptRe.FindAllStringSubmatch(markup, -1) {
		body := strings.TrimSpace(m[1])
		parsed, ok := parseBlock(body)
		if !ok {
			continue
		}
		if recipe, ok := findRecipe(parsed); ok {
			return newHint(recipe), true
		}
	}
	return nil, false
}

// parseBlock parses a script body, repairing truncated or padded blocks
// by re-parsing the slice between the first '{' and the last '}'.
func parseBlock(body string) (interface{}, bool) {
	var parsed interface{}
	if err := json.Unmarshal([]byte(body), &parsed); err == nil {
		return parsed, true
	}
	start := strings.Index(body, "{")
	end := strings.LastIndex(body, "}")
	if start == -1 || end <= start {
		return nil, false
	}
	if err := json.Unmarshal([]byte(body[start:end+1]), &parsed); err == nil {
		return parsed, true
	}
	return nil, false
}

// findRecipe locates a Recipe-typed object inside a parsed block. One
// level of array wrapping and one level of @graph nesting are
// flattened; failing that, it recurses one level into object-valued
// properties.
func findRecipe(parsed interface{}) (map[string]interface{}, bool) {
	for _, candidate := range candidates(parsed) {
		if isRecipe(candidate) {
			return candidate, true
		}
	}
	for _, candidate := range candidates(parsed) {
		for _, v := range candidate {
			if nested, ok := v.(map[string]interface{}); ok && isRecipe(nested) {
				return nested, true
			}
		}
	}
	return nil, false
}

func candidates(parsed interface{}) []map[string]interface{} {
	var out []map[string]interface{}
	items := []interface{}{parsed}
	if arr, ok := parsed.([]interface{}); ok {
		items = arr
	}
	for _, item := range items {
		obj, ok := item.(map[string]interface{})
		if !ok {
			continue
		}
		out = append(out, obj)
		if graph, ok := obj["@graph"].([]interface{}); ok {
			for _, g := range graph {
				if gobj, ok := g.(map[string]interface{}); ok {
					out = append(out, gobj)
				}
			}
		}
	}
	return out
}

func isRecipe(obj map[string]interface{}) bool {
	switch t := obj["@type"].(type) {
	case string:
		return strings.EqualFold(t, "Recipe")
	case []interface{}:
		for _, v := range t {
			if s, ok := v.(string); ok && strings.EqualFold(s, "Recipe") {
				return true
			}
		}
	}
	return false
}

func newHint(recipe map[string]interface{}) *RecipeHint {
	hint := &RecipeHint{Raw: recipe}
	if name, ok := recipe["name"].(string); ok {
		hint.Name = name
	}
	hint.PrepMin = ParseDurationMinutes(recipe["prepTime"])
	hint.CookMin = ParseDurationMinutes(recipe["cookTime"])
	hint.TotalMin = ParseDurationMinutes(recipe["totalTime"])
	hint.Servings, hint.YieldText = ParseYield(recipe["recipeYield"])
	return hint
}

// ParseDurationMinutes normalizes a schema.org duration value into
// minutes. ISO-8601 "PT#H#M#S" is preferred (seconds of 30 or more
// round up one minute); free text falls back to "N hours"/"N minutes"
// phrasing, then to the first bare integer. Returns nil when nothing
// usable is present.
func ParseDurationMinutes(v interface{}) *float64 {
	switch d := v.(type) {
	case float64:
		return &d
	case string:
		s := strings.TrimSpace(d)
		if s == "" {
			return nil
		}
		if m := isoDurRe.FindStringSubmatch(s); m != nil && (m[1] != "" || m[2] != "" || m[3] != "") {
			var total float64
			if m[1] != "" {
				h, _ := strconv.Atoi(m[1])
				total += float64(h) * 60
			}
			if m[2] != "" {
				mins, _ := strconv.Atoi(m[2])
				total += float64(mins)
			}
			if m[3] != "" {
				if sec, _ := strconv.Atoi(m[3]); sec >= 30 {
					total++
				}
			}
			return &total
		}
		var total float64
		matched := false
		if m := hoursRe.FindStringSubmatch(s); m != nil {
			h, _ := strconv.Atoi(m[1])
			total += float64(h) * 60
			matched = true
		}
		if m := minutesRe.FindStringSubmatch(s); m != nil {
			mins, _ := strconv.Atoi(m[1])
			total += float64(mins)
			matched = true
		}
		if matched {
			return &total
		}
		if m := firstIntRe.FindString(s); m != "" {
			n, _ := strconv.Atoi(m)
			f := float64(n)
			return &f
		}
	}
	return nil
}

// ParseYield normalizes a recipeYield value: numbers map directly to
// servings, strings contribute their first integer run, and anything
// else keeps the raw text. Arrays are reduced to their first entry.
func ParseYield(v interface{}) (servings *float64, yieldText string) {
	if arr, ok := v.([]interface{}); ok && len(arr) > 0 {
		v = arr[0]
	}
	switch y := v.(type) {
	case float64:
		return &y, ""
	case string:
		s := strings.TrimSpace(y)
		if s == "" {
			return nil, ""
		}
		if m := firstIntRe.FindString(s); m != "" {
			n, _ := strconv.Atoi(m)
			f := float64(n)
			return &f, ""
		}
		return nil, s
	}
	return nil, ""
}
