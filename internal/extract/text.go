// Package extract reduces page markup to its main text for the LLM.
// The reduction is deliberately rough: the model only needs readable
// text, and a page with no recoverable text degrades to the empty
// string rather than an error.
package extract

import (
	"html"
	"regexp"
	"strings"
)

var (
	blockTagRe = regexp.MustCompile(`(?i)</?(p|div|br|li|ul|ol|h[1-6]|tr|table|section|article|blockquote)[^>]*>`)
	tagRe      = regexp.MustCompile(`(?s)<[^>]*>`)
	blankRe    = regexp.MustCompile(`\n{3,}`)
	spaceRe    = regexp.MustCompile(`[ \t]+`)

	dropRes = buildDropRes()
)

func buildDropRes() []*regexp.Regexp {
	tags := []string{"script", "style", "noscript", "nav", "header", "footer", "form", "iframe", "svg"}
	res := make([]*regexp.Regexp, len(tags))
	for i, tag := range tags {
		res[i] = regexp.MustCompile(`(?is)<` + tag + `\b.*?</` + tag + `>`)
	}
	return res
}

// MainText strips chrome and markup from HTML and returns the page's
// readable text, with block boundaries preserved as newlines.
func MainText(markup string) string {
	if markup == "" {
		return ""
	}
	s := dropBlocks(markup)
	s = blockTagRe.ReplaceAllString(s, "\n")
	s = tagRe.ReplaceAllString(s, " ")
	s = html.UnescapeString(s)

	lines := strings.Split(s, "\n")
	for i, line := range lines {
		lines[i] = strings.TrimSpace(spaceRe.ReplaceAllString(line, " "))
	}
	s = strings.Join(lines, "\n")
	s = blankRe.ReplaceAllString(s, "\n\n")
	return strings.TrimSpace(s)
}

// dropBlocks removes elements whose content is never recipe text.
func dropBlocks(s string) string {
	for _, re := range dropRes {
		s = re.ReplaceAllString(s, " ")
	}
	return s
}
