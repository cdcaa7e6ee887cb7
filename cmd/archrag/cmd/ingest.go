package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/Aman-CERP/archrag/internal/rag"
	"github.com/Aman-CERP/archrag/internal/ui"
	"github.com/Aman-CERP/archrag/internal/validation"
)

func newIngestCmd() *cobra.Command {
	var pattern string
	var force bool
	var plain bool
	var noColor bool

	cmd := &cobra.Command{
		Use:   "ingest [path...]",
		Short: "Ingest documents into the library",
		Long: `Ingest files or directories into the library indexes.

Directories are scanned with the configured include pattern; unchanged
files are skipped unless --force is given. With no arguments the
configured library roots are ingested.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runIngest(cmd.Context(), args, pattern, force, plain, noColor)
		},
	}

	cmd.Flags().StringVar(&pattern, "pattern", "", "Include glob for directory ingestion (default from config)")
	cmd.Flags().BoolVar(&force, "force", false, "Re-ingest files even when unchanged")
	cmd.Flags().BoolVar(&plain, "plain", false, "Plain text progress output (no TUI)")
	cmd.Flags().BoolVar(&noColor, "no-color", false, "Disable colored output")

	return cmd
}

func runIngest(parent context.Context, args []string, pattern string, force, plain, noColor bool) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if err := validation.Pattern(pattern); err != nil {
		return err
	}

	paths := args
	if len(paths) == 0 {
		paths = cfg.Library.Roots
	}
	if len(paths) == 0 {
		return fmt.Errorf("nothing to ingest: pass a path or set library.roots in the configuration")
	}
	for _, p := range paths {
		if err := validation.Path(p); err != nil {
			return err
		}
	}

	// Keep log lines out of the progress display.
	log, cleanup, err := setupLogging(cfg, false)
	if err != nil {
		return fmt.Errorf("failed to initialize logging: %w", err)
	}
	defer cleanup()

	ctx, stop := signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
	defer stop()

	o, err := rag.Open(ctx, cfg, log, rag.OpenOptions{SkipLLM: true})
	if err != nil {
		return err
	}
	defer func() { _ = o.Close() }()

	renderer := ui.NewRenderer(ui.NewConfig(os.Stdout,
		ui.WithForcePlain(plain),
		ui.WithNoColor(noColor || ui.DetectNoColor()),
	))
	if err := renderer.Start(ctx); err != nil {
		return err
	}
	defer func() { _ = renderer.Stop() }()

	track := newStageTracker()
	o.SetProgress(func(ev rag.ProgressEvent) {
		track.observe(ev.Stage)
		renderer.UpdateProgress(ui.ProgressEvent{
			Stage:       ui.StageFromName(ev.Stage),
			Current:     ev.Current,
			Total:       ev.Total,
			CurrentFile: ev.File,
		})
	})

	start := time.Now()
	total := &rag.IngestStats{}
	for _, path := range paths {
		info, err := os.Stat(path)
		if err != nil {
			return fmt.Errorf("cannot access %s: %w", path, err)
		}

		if !info.IsDir() {
			n, err := o.IngestDocument(ctx, path, force)
			if err != nil {
				renderer.AddError(ui.ErrorEvent{File: path, Err: err})
				total.Failed++
				continue
			}
			total.FilesProcessed++
			total.TotalChunks += n
			continue
		}

		stats, err := o.IngestDirectory(ctx, path, pattern, force)
		if err != nil {
			return err
		}
		total.FilesProcessed += stats.FilesProcessed
		total.TotalChunks += stats.TotalChunks
		total.Failed += stats.Failed
		for _, msg := range stats.Errors {
			renderer.AddError(ui.ErrorEvent{Err: fmt.Errorf("%s", msg)})
		}
	}

	sysStats, _ := o.Stats(ctx)
	completion := ui.CompletionStats{
		Files:    total.FilesProcessed,
		Chunks:   total.TotalChunks,
		Duration: time.Since(start),
		Errors:   total.Failed,
		Stages:   track.timings(),
	}
	if sysStats != nil {
		completion.Embedder = ui.EmbedderInfo{
			Model:      sysStats.Embedding.LocalModel,
			Dimensions: sysStats.Embedding.Dimensions,
			Backend:    cfg.Embedding.Backend,
		}
	}
	renderer.Complete(completion)
	return nil
}

// stageTracker attributes wall time to the stage most recently reported
// by the orchestrator. Stages overlap across workers, so the split is
// approximate.
type stageTracker struct {
	mu      sync.Mutex
	stage   string
	since   time.Time
	elapsed map[string]time.Duration
}

func newStageTracker() *stageTracker {
	return &stageTracker{elapsed: make(map[string]time.Duration)}
}

func (t *stageTracker) observe(stage string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	now := time.Now()
	if t.stage != "" {
		t.elapsed[t.stage] += now.Sub(t.since)
	}
	t.stage = stage
	t.since = now
}

func (t *stageTracker) timings() ui.StageTimings {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.stage != "" {
		t.elapsed[t.stage] += time.Since(t.since)
		t.stage = ""
	}
	return ui.StageTimings{
		Scan:    t.elapsed["scan"],
		Extract: t.elapsed["extract"],
		Chunk:   t.elapsed["chunk"],
		Embed:   t.elapsed["embed"],
		Index:   t.elapsed["index"],
	}
}
