package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/Aman-CERP/archrag/internal/embed"
	"github.com/Aman-CERP/archrag/internal/output"
	"github.com/Aman-CERP/archrag/internal/rag"
	"github.com/Aman-CERP/archrag/internal/search"
	"github.com/Aman-CERP/archrag/internal/validation"
)

func newQueryCmd() *cobra.Command {
	var topK int
	var noCache bool
	var web bool
	var webMode string
	var embedder string
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:   "query <question>",
		Short: "Ask a question against the library",
		Long: `Run one question through the full pipeline: semantic cache, hybrid
retrieval, and answer generation with citations.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runQuery(cmd.Context(), cmd, queryOptions{
				query:    strings.Join(args, " "),
				topK:     topK,
				noCache:  noCache,
				web:      web,
				webMode:  webMode,
				embedder: embedder,
				json:     jsonOutput,
			})
		},
	}

	cmd.Flags().IntVar(&topK, "top-k", 0, "Number of context documents to retrieve (default from config)")
	cmd.Flags().BoolVar(&noCache, "no-cache", false, "Bypass the semantic answer cache")
	cmd.Flags().BoolVar(&web, "web", false, "Allow live web search")
	cmd.Flags().StringVar(&webMode, "web-mode", "", "Web search mode: parallel or on_low_confidence")
	cmd.Flags().StringVar(&embedder, "embedder", "", "Query embedding backend: ollama, gemini, or openai")
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Output the full response as JSON")

	return cmd
}

type queryOptions struct {
	query    string
	topK     int
	noCache  bool
	web      bool
	webMode  string
	embedder string
	json     bool
}

func runQuery(parent context.Context, cmd *cobra.Command, opts queryOptions) error {
	if err := validation.Query(opts.query); err != nil {
		return err
	}
	if err := validation.TopK(opts.topK); err != nil {
		return err
	}

	var backend embed.Backend
	if opts.embedder != "" {
		var err error
		if backend, err = embed.ParseBackend(opts.embedder); err != nil {
			return err
		}
		if backend == embed.BackendOllama {
			backend = ""
		}
	}

	var mode search.WebMode
	switch opts.webMode {
	case "":
		mode = search.WebModeOnLowConfidence
	case string(search.WebModeParallel):
		mode = search.WebModeParallel
	case string(search.WebModeOnLowConfidence):
		mode = search.WebModeOnLowConfidence
	default:
		return fmt.Errorf("unknown web mode %q", opts.webMode)
	}

	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	log, cleanup, err := setupLogging(cfg, false)
	if err != nil {
		return fmt.Errorf("failed to initialize logging: %w", err)
	}
	defer cleanup()

	ctx, stop := signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
	defer stop()

	o, err := rag.Open(ctx, cfg, log, rag.OpenOptions{})
	if err != nil {
		return err
	}
	defer func() { _ = o.Close() }()

	resp, err := o.Query(ctx, &rag.QueryRequest{
		Query:     opts.query,
		TopK:      opts.topK,
		UseCache:  !opts.noCache,
		Backend:   backend,
		EnableWeb: opts.web,
		WebMode:   mode,
	})
	if err != nil {
		return err
	}

	if opts.json {
		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		return enc.Encode(resp)
	}

	printAnswer(cmd, resp)
	return nil
}

func printAnswer(cmd *cobra.Command, resp *rag.QueryResponse) {
	w := output.New(cmd.OutOrStdout())

	w.Plain(resp.Answer)

	if len(resp.Sources) > 0 {
		w.Newline()
		w.Section("Sources")
		for _, src := range resp.Sources {
			label := src.SourcePath
			if src.SourceType != "" && src.SourceType != "local" {
				label += " (" + src.SourceType + ")"
			}
			w.KeyValuef(fmt.Sprintf("[Doc %d]", src.DocIndex), "%s (score %.2f)", label, src.Score)
		}
	}

	w.Newline()
	notes := fmt.Sprintf("%dms total", resp.RetrievalMetrics.TotalMS)
	if resp.CacheHit {
		notes += ", cached"
	}
	if resp.RetrievalStats.WebConsulted {
		notes += ", web consulted"
	}
	w.Status("", notes)
}
