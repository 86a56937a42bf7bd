// Package normalize turns raw feed markup into plain text.
package normalize

import (
	"html"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// Normalize strips HTML tags, decodes character entities and collapses all
// whitespace runs (newlines included) to single spaces. Normalizing already
// plain text is a no-op, so callers may apply it defensively.
func Normalize(raw string) string {
	if raw == "" {
		return ""
	}

	text := raw
	if strings.ContainsAny(raw, "<&") {
		doc, err := goquery.NewDocumentFromReader(strings.NewReader(raw))
		if err == nil {
			// The HTML parser decodes entities while stripping tags.
			text = doc.Text()
		} else {
			text = html.UnescapeString(raw)
		}
	}

	return strings.Join(strings.Fields(text), " ")
}

// ExtractFullText returns the normalized full article body from a feed
// entry's content blocks. Multiple blocks are joined with a single space.
// It returns "" when no block carries content; callers fall back to the
// entry summary in that case.
func ExtractFullText(blocks ...string) string {
	var nonEmpty []string
	for _, b := range blocks {
		if strings.TrimSpace(b) != "" {
			nonEmpty = append(nonEmpty, b)
		}
	}
	if len(nonEmpty) == 0 {
		return ""
	}
	return Normalize(strings.Join(nonEmpty, " "))
}
