package watch

import (
	"context"
	"log/slog"
)

// Library is the slice of the orchestrator the runner drives.
type Library interface {
	IngestDocument(ctx context.Context, path string, force bool) (int, error)
	RemoveDocument(ctx context.Context, path string) (int, error)
}

// Runner applies debounced change batches to the library, one event at a
// time. A failed event is logged and skipped; the reconciler repairs
// whatever a run misses.
type Runner struct {
	lib Library
	log *slog.Logger
}

// NewRunner creates a runner over the library.
func NewRunner(lib Library, log *slog.Logger) *Runner {
	if log == nil {
		log = slog.Default()
	}
	return &Runner{lib: lib, log: log}
}

// Run consumes event batches until the channel closes or the context is
// cancelled.
func (r *Runner) Run(ctx context.Context, events <-chan []Event) {
	for {
		select {
		case <-ctx.Done():
			return
		case batch, ok := <-events:
			if !ok {
				return
			}
			for _, ev := range batch {
				r.apply(ctx, ev)
			}
		}
	}
}

func (r *Runner) apply(ctx context.Context, ev Event) {
	if ctx.Err() != nil {
		return
	}

	switch ev.Op {
	case OpCreate, OpModify:
		n, err := r.lib.IngestDocument(ctx, ev.Path, false)
		if err != nil {
			r.log.Warn("watch_ingest_failed",
				slog.String("path", ev.Path),
				slog.String("op", ev.Op.String()),
				slog.String("error", err.Error()))
			return
		}
		if n > 0 {
			r.log.Info("watch_ingested",
				slog.String("path", ev.Path),
				slog.String("op", ev.Op.String()),
				slog.Int("chunks", n))
		}
	case OpDelete:
		n, err := r.lib.RemoveDocument(ctx, ev.Path)
		if err != nil {
			r.log.Warn("watch_remove_failed",
				slog.String("path", ev.Path),
				slog.String("error", err.Error()))
			return
		}
		if n > 0 {
			r.log.Info("watch_removed",
				slog.String("path", ev.Path),
				slog.Int("chunks", n))
		}
	}
}
