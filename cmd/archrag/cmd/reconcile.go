package cmd

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/Aman-CERP/archrag/internal/output"
	"github.com/Aman-CERP/archrag/internal/rag"
)

func newReconcileCmd() *cobra.Command {
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:   "reconcile [source-path]",
		Short: "Check and repair catalog/index consistency",
		Long: `Compare the document catalog against the vector and keyword indexes.

Orphaned chunks (index entries whose document left the catalog) are
removed. Documents with missing vectors are reported; re-ingest them
with 'archrag ingest --force'. With a source path only that document
is checked.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			sourcePath := ""
			if len(args) > 0 {
				sourcePath = args[0]
			}
			return runReconcile(cmd.Context(), cmd, sourcePath, jsonOutput)
		},
	}

	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Output the report as JSON")

	return cmd
}

func runReconcile(ctx context.Context, cmd *cobra.Command, sourcePath string, jsonOutput bool) error {
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

	report, err := o.Reconcile(ctx, sourcePath)
	if err != nil {
		return err
	}

	if jsonOutput {
		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		return enc.Encode(report)
	}

	w := output.New(cmd.OutOrStdout())
	w.KeyValuef("Checked", "%d documents", report.DocumentsChecked)
	w.KeyValuef("Missing", "%d vectors", report.MissingVector)
	w.KeyValuef("Orphaned", "%d chunks", report.OrphanedChunks)
	w.KeyValuef("Repaired", "%d chunks", report.Repaired)
	if report.MissingVector > 0 {
		w.Newline()
		w.Warning("some documents are missing vectors; re-ingest them with 'archrag ingest --force'")
	}
	return nil
}
