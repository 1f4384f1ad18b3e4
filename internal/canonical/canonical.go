// Package canonical normalizes raw ingredient names into their canonical
// grocery identity. Two strings that canonicalize to the same value are
// treated as the same ingredient unless the embedding index says otherwise.
package canonical

import (
	"regexp"
	"strings"
)

// aliasMap maps fully-canonicalized synonyms onto the preferred name.
// Keys must already be lowercase with descriptors removed.
var aliasMap = map[string]string{
	"spring onions":          "green onion",
	"scallions":              "green onion",
	"roma tomatoes":          "tomato",
	"extra virgin olive oil": "olive oil",
}

// descriptors are preparation and size words that never change what you
// would buy at the store. Multi-word entries must come before their
// single-word prefixes so the regexp alternation matches greedily.
var descriptors = []string{
	"fresh",
	"chopped",
	"minced",
	"diced",
	"organic",
	"large",
	"small",
	"to taste",
	"finely",
	"sliced",
	"grated",
	"peeled",
	"crushed",
	"ground",
	"halved",
	"roughly",
	"thinly",
}

var (
	punctRe      = regexp.MustCompile(`[\.,;:()\[\]\\/"]`)
	spaceRe      = regexp.MustCompile(`\s+`)
	descriptorRe *regexp.Regexp
)

func init() {
	quoted := make([]string, len(descriptors))
	for i, d := range descriptors {
		quoted[i] = regexp.QuoteMeta(d)
	}
	descriptorRe = regexp.MustCompile(`\b(?:` + strings.Join(quoted, "|") + `)\b`)
}

// Canonicalize lowercases the name, folds hyphens, strips punctuation,
// removes descriptor words, collapses whitespace and applies the alias
// map. It is deterministic, idempotent and never fails; empty input
// yields the empty string.
func Canonicalize(name string) string {
	if name == "" {
		return ""
	}
	s := strings.ToLower(name)
	s = strings.ReplaceAll(s, "-", " ")
	s = punctRe.ReplaceAllString(s, " ")
	s = descriptorRe.ReplaceAllString(s, "")
	s = strings.TrimSpace(spaceRe.ReplaceAllString(s, " "))
	if alias, ok := aliasMap[s]; ok {
		return alias
	}
	return s
}

// DescribeAndName canonicalizes the name and additionally returns the
// descriptor words that were stripped, space-joined in the order they
// appeared, for callers that want to retain them as a description.
func DescribeAndName(name string) (description, canonical string) {
	if name == "" {
		return "", ""
	}
	s := strings.ToLower(name)
	s = strings.ReplaceAll(s, "-", " ")
	s = punctRe.ReplaceAllString(s, " ")
	found := descriptorRe.FindAllString(s, -1)
	return strings.Join(found, " "), Canonicalize(name)
}
