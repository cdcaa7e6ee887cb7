package cmd

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/Aman-CERP/archrag/internal/logging"
	"github.com/Aman-CERP/archrag/internal/mcp"
	"github.com/Aman-CERP/archrag/internal/rag"
)

func newMCPCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "mcp",
		Short: "Run the MCP stdio server",
		Long: `Run the Model Context Protocol server on stdin/stdout.

Exposes the query_documents, ingest_documents, and library_stats tools.
All logging goes to the log file; stdout carries only JSON-RPC.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runMCP(cmd.Context())
		},
	}

	return cmd
}

func runMCP(parent context.Context) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	// stdout and stderr belong to the JSON-RPC stream.
	cleanup, err := logging.SetupMCPModeWithLevel(cfg.Logging.Level)
	if err != nil {
		return err
	}
	defer cleanup()
	log := slog.Default()

	ctx, stop := signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
	defer stop()

	o, err := rag.Open(ctx, cfg, log, rag.OpenOptions{})
	if err != nil {
		log.Error("mcp_open_failed", slog.String("error", err.Error()))
		return err
	}
	defer func() { _ = o.Close() }()

	srv, err := mcp.NewServer(o, log)
	if err != nil {
		return err
	}
	return srv.Serve(ctx)
}
