package gen

import (
	"context"
	"log/slog"

	"github.com/Aman-CERP/archrag/internal/search"
)

// GeneratorConfig tunes the answer generator.
type GeneratorConfig struct {
	// MaxContextTokens is the packing budget (default 4096).
	MaxContextTokens int
}

// DefaultGeneratorConfig returns the default generator configuration.
func DefaultGeneratorConfig() GeneratorConfig {
	return GeneratorConfig{MaxContextTokens: 4096}
}

// Generator packs retrieved context, prompts the LLM, and extracts
// citations. LLM failures produce the fixed apology answer, never an
// error: a degraded answer beats a failed query.
type Generator struct {
	llm LLM
	cfg GeneratorConfig
	log *slog.Logger
}

// NewGenerator creates the generator around an LLM backend.
func NewGenerator(llm LLM, cfg GeneratorConfig, log *slog.Logger) *Generator {
	if cfg.MaxContextTokens <= 0 {
		cfg.MaxContextTokens = DefaultGeneratorConfig().MaxContextTokens
	}
	if log == nil {
		log = slog.Default()
	}
	return &Generator{llm: llm, cfg: cfg, log: log}
}

// Generate answers the query from the retrieved items.
func (g *Generator) Generate(ctx context.Context, query string, items []*search.RetrievedItem) (*Answer, error) {
	if len(items) == 0 {
		return &Answer{
			Answer:  NoInformationAnswer,
			Sources: []Citation{},
		}, nil
	}

	docs := Pack(items, g.cfg.MaxContextTokens)
	if len(docs) == 0 {
		return &Answer{
			Answer:             NoInformationAnswer,
			Sources:            []Citation{},
			TotalDocsRetrieved: len(items),
		}, nil
	}

	prompt := BuildPrompt(query, docs)
	text, err := g.llm.Generate(ctx, prompt)
	if err != nil {
		g.log.Error("generation_failed",
			slog.String("backend", g.llm.Name()),
			slog.Int("context_docs", len(docs)),
			slog.String("error", err.Error()))
		return &Answer{
			Answer:             ApologyAnswer,
			Sources:            []Citation{},
			ContextDocsUsed:    len(docs),
			TotalDocsRetrieved: len(items),
		}, nil
	}

	return &Answer{
		Answer:             text,
		Sources:            ExtractCitations(text, docs),
		ContextDocsUsed:    len(docs),
		TotalDocsRetrieved: len(items),
		TokensPrompt:       CountTokens(prompt),
		TokensAnswer:       CountTokens(text),
	}, nil
}

// Available reports whether the LLM backend answers its health probe.
func (g *Generator) Available(ctx context.Context) bool {
	return g.llm.Available(ctx)
}

// BackendName returns the LLM backend identifier.
func (g *Generator) BackendName() string {
	return g.llm.Name()
}

// Close releases the LLM backend.
func (g *Generator) Close() error {
	return g.llm.Close()
}
