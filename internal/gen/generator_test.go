package gen

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Aman-CERP/archrag/internal/search"
)

type stubLLM struct {
	response string
	err      error
	prompts  []string
	closed   bool
}

var _ LLM = (*stubLLM)(nil)

func (s *stubLLM) Generate(_ context.Context, prompt string) (string, error) {
	s.prompts = append(s.prompts, prompt)
	if s.err != nil {
		return "", s.err
	}
	return s.response, nil
}

func (s *stubLLM) Name() string                   { return "stub" }
func (s *stubLLM) Available(context.Context) bool { return true }
func (s *stubLLM) Close() error                   { s.closed = true; return nil }

func TestGenerator_AnswersWithCitations(t *testing.T) {
	llm := &stubLLM{response: "HNSW builds layered graphs [Doc 1]."}
	g := NewGenerator(llm, DefaultGeneratorConfig(), nil)

	items := []*search.RetrievedItem{
		retrievedItem("a", "HNSW builds layered graphs for approximate search.", 0.9, 1),
		retrievedItem("b", "BM25 scores keyword matches.", 0.5, 1),
	}

	answer, err := g.Generate(context.Background(), "what is hnsw?", items)
	require.NoError(t, err)

	assert.Equal(t, llm.response, answer.Answer)
	require.Len(t, answer.Sources, 1)
	assert.Equal(t, 1, answer.Sources[0].DocIndex)
	assert.Equal(t, "docs/a.md", answer.Sources[0].SourcePath)

	assert.Equal(t, 2, answer.ContextDocsUsed)
	assert.Equal(t, 2, answer.TotalDocsRetrieved)
	assert.Greater(t, answer.TokensPrompt, 0)
	assert.Greater(t, answer.TokensAnswer, 0)

	require.Len(t, llm.prompts, 1)
	assert.True(t, strings.Contains(llm.prompts[0], "what is hnsw?"))
}

func TestGenerator_NoItemsReturnsNoInformation(t *testing.T) {
	llm := &stubLLM{response: "should not be called"}
	g := NewGenerator(llm, DefaultGeneratorConfig(), nil)

	answer, err := g.Generate(context.Background(), "anything", nil)
	require.NoError(t, err)

	assert.Equal(t, NoInformationAnswer, answer.Answer)
	assert.Empty(t, answer.Sources)
	assert.Zero(t, answer.ContextDocsUsed)
	assert.Empty(t, llm.prompts)
}

func TestGenerator_LLMFailureReturnsApology(t *testing.T) {
	llm := &stubLLM{err: errors.New("backend down")}
	g := NewGenerator(llm, DefaultGeneratorConfig(), nil)

	items := []*search.RetrievedItem{retrievedItem("a", "some context", 0.9, 1)}
	answer, err := g.Generate(context.Background(), "query", items)
	require.NoError(t, err)

	assert.Equal(t, ApologyAnswer, answer.Answer)
	assert.Empty(t, answer.Sources)
	assert.Equal(t, 1, answer.ContextDocsUsed)
	assert.Equal(t, 1, answer.TotalDocsRetrieved)
}

func TestGenerator_Close(t *testing.T) {
	llm := &stubLLM{}
	g := NewGenerator(llm, GeneratorConfig{}, nil)

	require.NoError(t, g.Close())
	assert.True(t, llm.closed)
}

func TestSourceTypeForTier(t *testing.T) {
	assert.Equal(t, SourceTypeLocal, SourceTypeForTier(1))
	assert.Equal(t, SourceTypeWebKB, SourceTypeForTier(2))
	assert.Equal(t, SourceTypeWeb, SourceTypeForTier(3))
	assert.Equal(t, SourceTypeLocal, SourceTypeForTier(0))
}
