package cmd

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestQueryCmd_RequiresQuestion(t *testing.T) {
	cmd := NewRootCmd()
	cmd.SetOut(&bytes.Buffer{})
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs([]string{"query"})

	err := cmd.Execute()

	require.Error(t, err)
}

func TestQueryCmd_RejectsUnknownEmbedder(t *testing.T) {
	resetFlags(t)
	cmd := NewRootCmd()
	cmd.SetOut(&bytes.Buffer{})
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs([]string{"query", "how does ingest work?", "--embedder", "bogus"})

	err := cmd.Execute()

	require.Error(t, err)
	assert.Contains(t, err.Error(), "bogus")
}

func TestQueryCmd_RejectsUnknownWebMode(t *testing.T) {
	resetFlags(t)
	cmd := NewRootCmd()
	cmd.SetOut(&bytes.Buffer{})
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs([]string{"query", "how does ingest work?", "--web-mode", "always"})

	err := cmd.Execute()

	require.Error(t, err)
	assert.Contains(t, err.Error(), "always")
}

func TestQueryCmd_RejectsOversizedQuery(t *testing.T) {
	resetFlags(t)
	cmd := NewRootCmd()
	cmd.SetOut(&bytes.Buffer{})
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs([]string{"query", strings.Repeat("x", 5000)})

	err := cmd.Execute()

	require.Error(t, err)
	assert.Contains(t, err.Error(), "limit")
}
