package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/Aman-CERP/archrag/internal/config"
	"github.com/Aman-CERP/archrag/internal/preflight"
	"github.com/Aman-CERP/archrag/internal/rag"
	"github.com/Aman-CERP/archrag/internal/server"
	"github.com/Aman-CERP/archrag/internal/watch"
)

func newServeCmd() *cobra.Command {
	var watchLibrary bool
	var skipCheck bool

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API server",
		Long: `Start the HTTP API server (/ingest, /query, /stats, /health).

With --watch the configured library roots are watched for changes and
re-ingested automatically.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runServe(cmd.Context(), watchLibrary, skipCheck)
		},
	}

	cmd.Flags().BoolVar(&watchLibrary, "watch", false, "Watch library roots and re-ingest changed files")
	cmd.Flags().BoolVar(&skipCheck, "skip-check", false, "Skip pre-flight system checks")

	return cmd
}

func runServe(parent context.Context, watchLibrary, skipCheck bool) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	log, cleanup, err := setupLogging(cfg, true)
	if err != nil {
		return fmt.Errorf("failed to initialize logging: %w", err)
	}
	defer cleanup()

	ctx, stop := signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
	defer stop()

	if !skipCheck && preflight.NeedsCheck(cfg.DataDir) {
		checker := preflight.New(cfg)
		results := checker.RunAll(ctx)
		if preflight.HasCriticalFailures(results) {
			checker.PrintResults(results)
			return fmt.Errorf("pre-flight checks failed; fix the issues above or use --skip-check")
		}
		if err := preflight.MarkPassed(cfg.DataDir); err != nil {
			log.Warn("preflight_marker_write_failed", slog.String("error", err.Error()))
		}
	}

	o, err := rag.Open(ctx, cfg, log, rag.OpenOptions{})
	if err != nil {
		return err
	}
	defer func() { _ = o.Close() }()

	if watchLibrary {
		if len(cfg.Library.Roots) == 0 {
			return fmt.Errorf("--watch requires library.roots in the configuration")
		}
		for _, root := range cfg.Library.Roots {
			if err := startWatcher(ctx, cfg, o, root, log); err != nil {
				return err
			}
		}
	}

	srv := server.New(cfg, o, log)
	fmt.Printf("archrag listening on %s:%d\n", cfg.Server.Host, cfg.Server.Port)
	return srv.Run(ctx)
}

// startWatcher runs one library root's watcher and runner until ctx ends.
func startWatcher(ctx context.Context, cfg *config.Config, o *rag.Orchestrator, root string, log *slog.Logger) error {
	debounce, _ := time.ParseDuration(cfg.Watch.Debounce)
	w, err := watch.New(root, watch.Options{
		Debounce: debounce,
		Pattern:  cfg.Library.Pattern,
		Exclude:  cfg.Library.Exclude,
	}, log)
	if err != nil {
		return fmt.Errorf("failed to watch %s: %w", root, err)
	}

	runner := watch.NewRunner(o, log)
	go runner.Run(ctx, w.Events())
	go func() {
		if err := w.Run(ctx); err != nil && ctx.Err() == nil {
			log.Error("watcher_stopped", slog.String("root", root), slog.String("error", err.Error()))
		}
	}()
	log.Info("watching_library_root", slog.String("root", root), slog.String("mechanism", w.Mechanism()))
	return nil
}
