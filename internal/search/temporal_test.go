package search

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestHasTemporalIntent(t *testing.T) {
	tests := []struct {
		query string
		want  bool
	}{
		{"what is the latest Go release", true},
		{"weather today", true},
		{"current TLS best practices", true},
		{"what happened recently?", true},
		{"kubernetes releases in 2026", true},
		{"incident postmortem from 1999", true},
		{"What is the Latest news", true},
		{"how does HNSW search work", false},
		{"explain BM25 scoring", false},
		{"port 2020 configuration", true}, // year token, accepted false positive
		{"", false},
		{"nowhere to be found", false}, // "nowhere" is not "now"
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, HasTemporalIntent(tt.query), "query: %q", tt.query)
	}
}
