// Package cmd provides the CLI commands for archrag.
package cmd

import (
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/Aman-CERP/archrag/internal/config"
	"github.com/Aman-CERP/archrag/internal/logging"
	"github.com/Aman-CERP/archrag/pkg/version"
)

// Persistent flags shared by every subcommand.
var (
	flagConfig   string
	flagDataDir  string
	flagLogLevel string
)

// NewRootCmd creates the root command for the archrag CLI.
func NewRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "archrag",
		Short: "Retrieval-augmented answers over a local document library",
		Long: `ArchRAG ingests local technical documents (markdown, PDF, text) into
hybrid keyword + vector indexes and answers questions about them with
cited sources.

Typical flow:

  archrag ingest ./docs       index a documentation tree
  archrag query "..."         ask a question from the terminal
  archrag serve               expose the HTTP API
  archrag mcp                 expose the MCP stdio server`,
		Version:       version.Version,
		SilenceUsage:  true,
		SilenceErrors: false,
	}

	cmd.SetVersionTemplate("archrag version {{.Version}}\n")

	cmd.PersistentFlags().StringVar(&flagConfig, "config", "", "Path to config file (default: ./archrag.yaml, ~/.archrag/config.yaml)")
	cmd.PersistentFlags().StringVar(&flagDataDir, "data-dir", "", "Override the data directory (default ~/.archrag)")
	cmd.PersistentFlags().StringVar(&flagLogLevel, "log-level", "", "Override the log level (debug, info, warn, error)")

	cmd.AddCommand(newServeCmd())
	cmd.AddCommand(newIngestCmd())
	cmd.AddCommand(newQueryCmd())
	cmd.AddCommand(newStatsCmd())
	cmd.AddCommand(newDoctorCmd())
	cmd.AddCommand(newReconcileCmd())
	cmd.AddCommand(newCompactCmd())
	cmd.AddCommand(newAlignCmd())
	cmd.AddCommand(newMCPCmd())
	cmd.AddCommand(newConfigCmd())
	cmd.AddCommand(newVersionCmd())

	return cmd
}

// Execute runs the root command.
func Execute() error {
	return NewRootCmd().Execute()
}

// loadConfig resolves configuration and applies the persistent flag
// overrides on top of file and environment values. The data-dir flag
// goes through the env override so derived paths follow it.
func loadConfig() (*config.Config, error) {
	if flagDataDir != "" {
		if err := os.Setenv("ARCHRAG_DATA_DIR", flagDataDir); err != nil {
			return nil, err
		}
	}
	cfg, err := config.Load(flagConfig)
	if err != nil {
		return nil, err
	}
	if flagLogLevel != "" {
		cfg.Logging.Level = flagLogLevel
	}
	return cfg, nil
}

// setupLogging initializes file logging from config. stderr controls
// whether records also go to the terminal; interactive commands keep it
// off so log lines never interleave with their output.
func setupLogging(cfg *config.Config, stderr bool) (*slog.Logger, func(), error) {
	return logging.Setup(logging.Config{
		Level:         cfg.Logging.Level,
		FilePath:      cfg.Logging.File,
		MaxSizeMB:     cfg.Logging.MaxSizeMB,
		MaxFiles:      cfg.Logging.MaxBackups,
		WriteToStderr: stderr && cfg.Logging.Stderr,
		RedactKeys:    cfg.Logging.RedactKeys,
	})
}
