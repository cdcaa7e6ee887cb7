package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/Aman-CERP/archrag/internal/output"
	"github.com/Aman-CERP/archrag/internal/rag"
)

func newStatsCmd() *cobra.Command {
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:   "stats",
		Short: "Show library and query statistics",
		Long: `Display library statistics: document and chunk counts, index sizes,
active embedding models, cache state, and query telemetry.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runStats(cmd.Context(), cmd, jsonOutput)
		},
	}

	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Output as JSON")

	return cmd
}

func runStats(ctx context.Context, cmd *cobra.Command, jsonOutput bool) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	log, cleanup, err := setupLogging(cfg, false)
	if err != nil {
		return fmt.Errorf("failed to initialize logging: %w", err)
	}
	defer cleanup()

	o, err := rag.Open(ctx, cfg, log, rag.OpenOptions{SkipLock: true, SkipLLM: true})
	if err != nil {
		return err
	}
	defer func() { _ = o.Close() }()

	stats, err := o.Stats(ctx)
	if err != nil {
		return err
	}

	if jsonOutput {
		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		return enc.Encode(stats)
	}

	printStats(cmd, stats)
	return nil
}

func printStats(cmd *cobra.Command, stats *rag.SystemStats) {
	w := output.New(cmd.OutOrStdout())

	w.Section("Library")
	w.KeyValuef("Documents", "%d", stats.Catalog.DocumentCount)
	w.KeyValuef("Chunks", "%d", stats.Catalog.ChunkCount)
	w.Newline()

	w.Section("Indexes")
	w.KeyValuef("Vectors", "%d points (%d dims, %d orphans)",
		stats.Vector.PointCount, stats.Vector.VectorSize, stats.Vector.Orphans)
	w.KeyValuef("Keyword", "%d documents", stats.Keyword)
	w.Newline()

	w.Section("Embedding")
	w.KeyValue("Local", stats.Embedding.LocalModel)
	if len(stats.Embedding.Premium) > 0 {
		w.KeyValue("Premium", strings.Join(stats.Embedding.Premium, ", "))
	}
	w.Newline()

	if stats.WebKB != nil {
		w.Section("Web knowledge base")
		w.KeyValuef("Documents", "%d (%d expired)", stats.WebKB.DocumentCount, stats.WebKB.ExpiredCount)
		w.Newline()
	}

	w.Section("Cache")
	if stats.Cache.Enabled {
		w.KeyValue("Status", "enabled")
	} else {
		w.KeyValue("Status", "disabled")
	}

	if stats.Queries != nil && stats.Queries.QueryCount > 0 {
		w.Newline()
		w.Section("Queries")
		w.KeyValuef("Served", "%d", stats.Queries.QueryCount)
		w.KeyValuef("Cache hits", "%.0f%%", stats.Queries.CacheHitRate*100)
		w.KeyValuef("Latency", "p50 %dms, p95 %dms", stats.Queries.P50MS, stats.Queries.P95MS)
	}
}
