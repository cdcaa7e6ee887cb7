package webkb

import (
	"fmt"
	"strings"
	"time"

	"github.com/Aman-CERP/archrag/internal/web"
)

// buildCitation renders an APA-style citation from the available
// metadata: "Author (Year). Title. URL", dropping absent parts.
func buildCitation(result *web.Result) string {
	year := citationYear(result)

	var b strings.Builder
	if result.Author != "" {
		b.WriteString(result.Author)
		b.WriteString(" ")
	}
	b.WriteString(fmt.Sprintf("(%s). ", year))
	if result.Title != "" {
		b.WriteString(strings.TrimRight(result.Title, ".") + ". ")
	}
	b.WriteString(result.URL)
	return b.String()
}

// citationYear prefers the published date, falling back to the fetch
// time, then the current year.
func citationYear(result *web.Result) string {
	if len(result.Published) >= 4 {
		candidate := result.Published[:4]
		if isYear(candidate) {
			return candidate
		}
	}
	if !result.FetchedAt.IsZero() {
		return fmt.Sprintf("%d", result.FetchedAt.Year())
	}
	return fmt.Sprintf("%d", time.Now().Year())
}

func isYear(s string) bool {
	if len(s) != 4 {
		return false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}
