package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/Aman-CERP/archrag/internal/chunk"
	"github.com/Aman-CERP/archrag/internal/embed"
	"github.com/Aman-CERP/archrag/internal/extract"
	"github.com/Aman-CERP/archrag/internal/output"
	"github.com/Aman-CERP/archrag/internal/scanner"
	"github.com/Aman-CERP/archrag/internal/validation"
)

const defaultAlignSamples = 256

func newAlignCmd() *cobra.Command {
	var backendName string
	var samples int

	cmd := &cobra.Command{
		Use:   "align [path]",
		Short: "Train a premium-to-local embedding alignment matrix",
		Long: `Fit the linear map that projects a premium backend's query vectors
into the local embedding space, using sample chunks from the library.

Both the premium backend and the local embedder embed the same sample
texts; the least-squares fit between the two vector sets is saved under
<data-dir>/alignment/ and loaded automatically on the next start.

The sample path defaults to the first configured library root.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path := ""
			if len(args) > 0 {
				path = args[0]
			}
			return runAlign(cmd.Context(), cmd, backendName, path, samples)
		},
	}

	cmd.Flags().StringVar(&backendName, "backend", "", "Premium backend to align: gemini or openai (required)")
	cmd.Flags().IntVar(&samples, "samples", defaultAlignSamples, "Number of sample chunks to fit on")
	_ = cmd.MarkFlagRequired("backend")

	return cmd
}

func runAlign(parent context.Context, cmd *cobra.Command, backendName, path string, samples int) error {
	backend, err := embed.ParseBackend(backendName)
	if err != nil {
		return err
	}
	if backend == embed.BackendOllama {
		return fmt.Errorf("the local backend needs no alignment; pick gemini or openai")
	}
	if samples < 2 {
		return fmt.Errorf("at least 2 samples are required, got %d", samples)
	}

	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if path == "" {
		if len(cfg.Library.Roots) == 0 {
			return fmt.Errorf("no sample path: pass a directory or set library.roots in the configuration")
		}
		path = cfg.Library.Roots[0]
	}
	if err := validation.Directory(path); err != nil {
		return err
	}

	log, cleanup, err := setupLogging(cfg, false)
	if err != nil {
		return fmt.Errorf("failed to initialize logging: %w", err)
	}
	defer cleanup()

	ctx, stop := signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
	defer stop()

	svc, err := embed.NewServiceFromConfig(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer func() { _ = svc.Close() }()

	premium, ok := svc.PremiumModel(backend)
	if !ok {
		return fmt.Errorf("backend %s is not configured; set its API key and enable it first", backend)
	}

	w := output.New(cmd.OutOrStdout())
	w.Statusf("", "collecting up to %d sample chunks from %s", samples, path)

	texts, err := collectSampleTexts(ctx, cfg.Library.Pattern, path, samples, log)
	if err != nil {
		return err
	}
	if len(texts) < 2 {
		return fmt.Errorf("found only %d sample chunks in %s; need at least 2", len(texts), path)
	}

	w.Statusf("", "embedding %d samples with %s", len(texts), premium.Name())
	premiumVecs, err := premium.EmbedBatch(ctx, texts)
	if err != nil {
		return fmt.Errorf("premium embedding failed: %w", err)
	}

	w.Statusf("", "embedding %d samples with %s", len(texts), svc.Local().Name())
	localVecs, err := svc.Local().EmbedBatch(ctx, texts)
	if err != nil {
		return fmt.Errorf("local embedding failed: %w", err)
	}

	alignment, err := embed.FitAlignment(premiumVecs, localVecs)
	if err != nil {
		return err
	}

	dest := embed.DefaultAlignmentPath(cfg.AlignmentDir(), backend)
	if err := alignment.Save(dest); err != nil {
		return err
	}

	w.Successf("alignment matrix (%dx%d) saved to %s",
		alignment.InputDims(), alignment.OutputDims(), dest)
	return nil
}

// collectSampleTexts scans path and chunks extracted documents until it
// has enough samples. Files are capped at a handful of chunks each so one
// large document cannot dominate the fit.
func collectSampleTexts(ctx context.Context, pattern, path string, samples int, log *slog.Logger) ([]string, error) {
	sc, err := scanner.New()
	if err != nil {
		return nil, err
	}

	// The scan is canceled once enough samples exist; the channel is
	// drained so the walker goroutine can exit.
	scanCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	results, err := sc.Scan(scanCtx, &scanner.ScanOptions{RootDir: path, Pattern: pattern})
	if err != nil {
		return nil, err
	}

	extractor := extract.New(log)
	chunker := chunk.NewChunker(chunk.DefaultOptions())
	const perFile = 8

	var texts []string
	for r := range results {
		if len(texts) >= samples {
			cancel()
			continue
		}
		if r.Error != nil || r.File == nil {
			continue
		}
		res, err := extractor.Extract(ctx, r.File.AbsPath)
		if err != nil {
			continue
		}
		chunks := chunker.Chunk(r.File.AbsPath, res.Text, chunk.ModeForType(string(res.Type)))
		for i, c := range chunks {
			if i >= perFile || len(texts) >= samples {
				break
			}
			texts = append(texts, c.Text)
		}
	}
	return texts, nil
}
