package cmd

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/Aman-CERP/archrag/internal/preflight"
)

func newDoctorCmd() *cobra.Command {
	var jsonOutput bool
	var verbose bool

	cmd := &cobra.Command{
		Use:   "doctor",
		Short: "Diagnose the local setup",
		Long: `Run the pre-flight checks: data directory, disk space, file
descriptors, embedding backend, Redis cache, and the LLM backend.

Exits non-zero when a critical check fails.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runDoctor(cmd.Context(), cmd, jsonOutput, verbose)
		},
	}

	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Output results as JSON")
	cmd.Flags().BoolVarP(&verbose, "verbose", "v", false, "Show details for passing checks too")

	return cmd
}

func runDoctor(ctx context.Context, cmd *cobra.Command, jsonOutput, verbose bool) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	checker := preflight.New(cfg,
		preflight.WithVerbose(verbose),
		preflight.WithOutput(cmd.OutOrStdout()),
	)
	results := checker.RunAll(ctx)

	if jsonOutput {
		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		if err := enc.Encode(map[string]any{
			"status": preflight.SummaryStatus(results),
			"checks": results,
		}); err != nil {
			return err
		}
	} else {
		checker.PrintResults(results)
	}

	if preflight.HasCriticalFailures(results) {
		return fmt.Errorf("critical checks failed")
	}

	// A clean doctor run counts as a passed pre-flight.
	_ = preflight.MarkPassed(cfg.DataDir)
	return nil
}
