package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/Aman-CERP/archrag/internal/output"
	"github.com/Aman-CERP/archrag/internal/rag"
)

func newCompactCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "compact",
		Short: "Compact the vector index",
		Long: `Rebuild the HNSW vector index when lazy deletions have accumulated
past the configured orphan thresholds. A no-op otherwise.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runCompact(cmd.Context(), cmd)
		},
	}

	return cmd
}

func runCompact(ctx context.Context, cmd *cobra.Command) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	log, cleanup, err := setupLogging(cfg, false)
	if err != nil {
		return fmt.Errorf("failed to initialize logging: %w", err)
	}
	defer cleanup()

	o, err := rag.Open(ctx, cfg, log, rag.OpenOptions{SkipLLM: true})
	if err != nil {
		return err
	}
	defer func() { _ = o.Close() }()

	dropped, err := o.CompactIfEligible()
	if err != nil {
		return err
	}

	w := output.New(cmd.OutOrStdout())
	if dropped == 0 {
		w.Status("", "vector index does not need compaction")
		return nil
	}
	w.Successf("compacted vector index, dropped %d orphaned nodes", dropped)
	return nil
}
