package watch

import (
	"context"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/Aman-CERP/archrag/internal/scanner"
)

// Watcher observes a library root and emits debounced, pattern-filtered
// change events. fsnotify is the primary mechanism; filesystems without
// notify support fall back to an mtime polling scan.
type Watcher struct {
	root      string
	opts      Options
	debouncer *Debouncer
	fsw       *fsnotify.Watcher
	log       *slog.Logger

	mu      sync.Mutex
	stopped bool
	stopCh  chan struct{}
}

// New creates a watcher over the root directory.
func New(root string, opts Options, log *slog.Logger) (*Watcher, error) {
	absRoot, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("invalid watch root %s: %w", root, err)
	}
	info, err := os.Stat(absRoot)
	if err != nil {
		return nil, fmt.Errorf("watch root not accessible: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("watch root is not a directory: %s", absRoot)
	}
	if log == nil {
		log = slog.Default()
	}
	opts = opts.withDefaults()

	w := &Watcher{
		root:      absRoot,
		opts:      opts,
		debouncer: NewDebouncer(opts.Debounce),
		log:       log,
		stopCh:    make(chan struct{}),
	}

	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		log.Warn("fsnotify_unavailable",
			slog.String("error", err.Error()),
			slog.Duration("poll_interval", opts.PollInterval))
	} else {
		w.fsw = fsw
	}
	return w, nil
}

// Mechanism reports "fsnotify" or "polling".
func (w *Watcher) Mechanism() string {
	if w.fsw != nil {
		return "fsnotify"
	}
	return "polling"
}

// Events returns the debounced event batches.
func (w *Watcher) Events() <-chan []Event {
	return w.debouncer.Output()
}

// Run watches until the context is cancelled or Stop is called.
func (w *Watcher) Run(ctx context.Context) error {
	if w.fsw != nil {
		return w.runFsnotify(ctx)
	}
	return w.runPolling(ctx)
}

func (w *Watcher) runFsnotify(ctx context.Context) error {
	if err := w.addRecursive(w.root); err != nil {
		return fmt.Errorf("failed to watch %s: %w", w.root, err)
	}

	for {
		select {
		case <-ctx.Done():
			_ = w.Stop()
			return ctx.Err()
		case <-w.stopCh:
			return nil
		case ev, ok := <-w.fsw.Events:
			if !ok {
				return nil
			}
			w.handle(ev)
		case err, ok := <-w.fsw.Errors:
			if !ok {
				return nil
			}
			w.log.Warn("watch_error", slog.String("error", err.Error()))
		}
	}
}

func (w *Watcher) handle(ev fsnotify.Event) {
	var op Op
	switch {
	case ev.Op&fsnotify.Create != 0:
		op = OpCreate
	case ev.Op&fsnotify.Write != 0:
		op = OpModify
	case ev.Op&(fsnotify.Remove|fsnotify.Rename) != 0:
		// A rename target shows up as a separate Create.
		op = OpDelete
	default:
		return
	}

	if op == OpCreate {
		if info, err := os.Stat(ev.Name); err == nil && info.IsDir() {
			// New subdirectory: watch it and pick up files already inside.
			if err := w.addRecursive(ev.Name); err != nil {
				w.log.Warn("watch_add_failed",
					slog.String("path", ev.Name),
					slog.String("error", err.Error()))
			}
			w.emitExisting(ev.Name)
			return
		}
	}

	w.add(ev.Name, op)
}

// add filters the path and queues the event.
func (w *Watcher) add(absPath string, op Op) {
	relPath, err := filepath.Rel(w.root, absPath)
	if err != nil || strings.HasPrefix(relPath, "..") {
		return
	}
	if !scanner.Matches(relPath, w.opts.Pattern, w.opts.Exclude) {
		return
	}
	w.debouncer.Add(Event{Path: absPath, Op: op, Timestamp: time.Now()})
}

// emitExisting queues create events for matching files already under dir,
// e.g. a directory moved into the watched tree.
func (w *Watcher) emitExisting(dir string) {
	_ = filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil || d.IsDir() {
			return nil
		}
		w.add(path, OpCreate)
		return nil
	})
}

func (w *Watcher) addRecursive(root string) error {
	return filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return nil
		}
		if !d.IsDir() {
			return nil
		}
		relPath, relErr := filepath.Rel(w.root, path)
		if relErr == nil && relPath != "." && skipDir(relPath) {
			return filepath.SkipDir
		}
		return w.fsw.Add(path)
	})
}

func skipDir(relPath string) bool {
	base := filepath.Base(relPath)
	switch base {
	case ".git", "node_modules", "vendor", "__pycache__", ".archrag":
		return true
	}
	return false
}

// runPolling rescans the tree on an interval and diffs mtimes.
func (w *Watcher) runPolling(ctx context.Context) error {
	seen := w.snapshot()
	ticker := time.NewTicker(w.opts.PollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			_ = w.Stop()
			return ctx.Err()
		case <-w.stopCh:
			return nil
		case <-ticker.C:
			current := w.snapshot()
			for path, mtime := range current {
				prev, ok := seen[path]
				switch {
				case !ok:
					w.add(path, OpCreate)
				case mtime.After(prev):
					w.add(path, OpModify)
				}
			}
			for path := range seen {
				if _, ok := current[path]; !ok {
					w.add(path, OpDelete)
				}
			}
			seen = current
		}
	}
}

func (w *Watcher) snapshot() map[string]time.Time {
	files := make(map[string]time.Time)
	_ = filepath.WalkDir(w.root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return nil
		}
		if d.IsDir() {
			relPath, relErr := filepath.Rel(w.root, path)
			if relErr == nil && relPath != "." && skipDir(relPath) {
				return filepath.SkipDir
			}
			return nil
		}
		info, err := d.Info()
		if err != nil {
			return nil
		}
		files[path] = info.ModTime()
		return nil
	})
	return files
}

// Stop shuts the watcher down. Safe to call twice.
func (w *Watcher) Stop() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.stopped {
		return nil
	}
	w.stopped = true
	close(w.stopCh)
	w.debouncer.Stop()
	if w.fsw != nil {
		return w.fsw.Close()
	}
	return nil
}
