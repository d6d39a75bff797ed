// Package sanitize cleans user-provided text before it is forwarded to the
// billing or messaging APIs.
package sanitize

import (
	"regexp"
	"strings"
	"unicode"
)

var (
	// htmlTagRegex matches HTML tags
	htmlTagRegex = regexp.MustCompile(`<[^>]*>`)
	// blankRunRegex matches runs of horizontal whitespace
	blankRunRegex = regexp.MustCompile(`[ \t]+`)
)

// StripHTML removes all HTML tags from a string, making it safe for text-only display.
func StripHTML(s string) string {
	result := htmlTagRegex.ReplaceAllString(s, "")
	result = strings.ReplaceAll(result, "&lt;", "<")
	result = strings.ReplaceAll(result, "&gt;", ">")
	result = strings.ReplaceAll(result, "&amp;", "&")
	result = strings.ReplaceAll(result, "&quot;", "\"")
	result = strings.ReplaceAll(result, "&#39;", "'")
	// Re-strip after entity decode to catch encoded tags
	result = htmlTagRegex.ReplaceAllString(result, "")
	return strings.TrimSpace(result)
}

// Text strips HTML and control characters (newlines survive) and collapses
// repeated blanks.
func Text(s string) string {
	cleaned := strings.Map(func(r rune) rune {
		if r == '\n' {
			return r
		}
		if unicode.IsControl(r) {
			return ' '
		}
		return r
	}, StripHTML(s))
	return strings.TrimSpace(blankRunRegex.ReplaceAllString(cleaned, " "))
}

// Line is Text folded onto a single line, for short fields like promise
// descriptions.
func Line(s string, maxRunes int) string {
	line := strings.Join(strings.Fields(Text(s)), " ")
	if maxRunes > 0 {
		if runes := []rune(line); len(runes) > maxRunes {
			line = strings.TrimSpace(string(runes[:maxRunes]))
		}
	}
	return line
}
