package search

import (
	"regexp"
	"strings"
)

// temporalTokens are query words signalling the answer may be newer than
// the indexed corpus.
var temporalTokens = map[string]struct{}{
	"latest":    {},
	"today":     {},
	"current":   {},
	"currently": {},
	"now":       {},
	"recent":    {},
	"recently":  {},
	"news":      {},
	"upcoming":  {},
	"yesterday": {},
}

var yearPattern = regexp.MustCompile(`\b(19|20)\d{2}\b`)

// HasTemporalIntent reports whether the query asks about time-sensitive
// information. Temporal queries trigger the live web tier in
// on_low_confidence mode regardless of local result quality.
func HasTemporalIntent(query string) bool {
	lower := strings.ToLower(query)
	for _, word := range strings.Fields(lower) {
		word = strings.Trim(word, ".,!?;:\"'()")
		if _, ok := temporalTokens[word]; ok {
			return true
		}
	}
	return yearPattern.MatchString(lower)
}
