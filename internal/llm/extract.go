package llm

import (
	"encoding/json"
	"regexp"
	"strings"
)

// jsonStrategy attempts to recover a JSON object from raw model output.
// Strategies are tried in order and the first that yields a parseable
// object wins.
type jsonStrategy func(raw string) (string, bool)

var jsonStrategies = []jsonStrategy{
	stripCodeFence,
	verbatimObject,
	scanBracedObject,
}

var fenceRe = regexp.MustCompile("(?s)^```[a-zA-Z]*\\s*\\n?(.*?)\\n?```$")

// ExtractJSON recovers a single JSON object from model output that may
// be wrapped in a code fence, surrounded by prose, or already clean.
func ExtractJSON(raw string) (string, bool) {
	for _, strategy := range jsonStrategies {
		if candidate, ok := strategy(raw); ok {
			return candidate, true
		}
	}
	return "", false
}

// stripCodeFence removes a leading/trailing markdown fence, optionally
// tagged with a language.
func stripCodeFence(raw string) (string, bool) {
	trimmed := strings.TrimSpace(raw)
	m := fenceRe.FindStringSubmatch(trimmed)
	if m == nil {
		return "", false
	}
	inner := strings.TrimSpace(m[1])
	if isJSONObject(inner) {
		return inner, true
	}
	return "", false
}

// verbatimObject accepts the response as-is.
func verbatimObject(raw string) (string, bool) {
	trimmed := strings.TrimSpace(raw)
	if isJSONObject(trimmed) {
		return trimmed, true
	}
	return "", false
}

// scanBracedObject finds the longest well-formed brace-delimited object
// in the response, tracking string literals and escapes so braces
// inside quoted text never confuse the matching. Every opening brace
// starts a candidate, so an unmatched brace in surrounding prose
// cannot hide an object nested after it.
func scanBracedObject(raw string) (string, bool) {
	best := ""
	var starts []int
	inString := false
	escaped := false

	for i, r := range raw {
		if inString {
			switch {
			case escaped:
				escaped = false
			case r == '\\':
				escaped = true
			case r == '"':
				inString = false
			}
			continue
		}
		switch r {
		case '"':
			if len(starts) > 0 {
				inString = true
			}
		case '{':
			starts = append(starts, i)
		case '}':
			if len(starts) == 0 {
				continue
			}
			start := starts[len(starts)-1]
			starts = starts[:len(starts)-1]
			candidate := raw[start : i+1]
			if len(candidate) > len(best) && isJSONObject(candidate) {
				best = candidate
			}
		}
	}

	if best == "" {
		return "", false
	}
	return best, true
}

func isJSONObject(s string) bool {
	if !strings.HasPrefix(s, "{") {
		return false
	}
	var obj map[string]json.RawMessage
	return json.Unmarshal([]byte(s), &obj) == nil
}
