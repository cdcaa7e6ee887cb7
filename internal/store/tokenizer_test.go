package store

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestTokenizeText(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  []string
	}{
		{
			name:  "plain prose",
			input: "The gateway routes requests",
			want:  []string{"the", "gateway", "routes", "requests"},
		},
		{
			name:  "camelCase identifier in prose",
			input: "call getUserById to fetch",
			want:  []string{"call", "get", "user", "by", "id", "to", "fetch"},
		},
		{
			name:  "snake_case identifier",
			input: "the content_hash column",
			want:  []string{"the", "content", "hash", "column"},
		},
		{
			name:  "acronym preserved as token",
			input: "HTTPHandler dispatch",
			want:  []string{"http", "handler", "dispatch"},
		},
		{
			name:  "short tokens dropped",
			input: "a b of go",
			want:  []string{"of", "go"},
		},
		{
			name:  "punctuation ignored",
			input: "retry, then fail-fast.",
			want:  []string{"retry", "then", "fail", "fast"},
		},
		{
			name:  "empty input",
			input: "",
			want:  nil,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, TokenizeText(tt.input))
		})
	}
}

func TestSplitIdentifier(t *testing.T) {
	tests := []struct {
		input string
		want  []string
	}{
		{"getUserById", []string{"get", "User", "By", "Id"}},
		{"snake_case_name", []string{"snake", "case", "name"}},
		{"mixed_camelCase", []string{"mixed", "camel", "Case"}},
		{"simple", []string{"simple"}},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			assert.Equal(t, tt.want, SplitIdentifier(tt.input))
		})
	}
}

func TestSplitCamelCase(t *testing.T) {
	tests := []struct {
		input string
		want  []string
	}{
		{"getUserById", []string{"get", "User", "By", "Id"}},
		{"HTTPHandler", []string{"HTTP", "Handler"}},
		{"parseHTTPRequest", []string{"parse", "HTTP", "Request"}},
		{"lowercase", []string{"lowercase"}},
		{"UPPERCASE", []string{"UPPERCASE"}},
		{"PascalCase", []string{"Pascal", "Case"}},
		{"", []string{}},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			assert.Equal(t, tt.want, SplitCamelCase(tt.input))
		})
	}
}

func TestFilterStopWords(t *testing.T) {
	stopMap := BuildStopWordMap([]string{"the", "and", "of"})

	got := FilterStopWords([]string{"the", "gateway", "and", "cache"}, stopMap)
	assert.Equal(t, []string{"gateway", "cache"}, got)

	// Case insensitive
	got = FilterStopWords([]string{"The", "Gateway"}, stopMap)
	assert.Equal(t, []string{"Gateway"}, got)
}

func TestBuildStopWordMap(t *testing.T) {
	m := BuildStopWordMap([]string{"The", "AND"})
	_, ok := m["the"]
	assert.True(t, ok)
	_, ok = m["and"]
	assert.True(t, ok)
	_, ok = m["gateway"]
	assert.False(t, ok)
}
