// Package watch keeps the indexes current while serve --watch runs: an
// fsnotify recursive watcher (with a polling fallback) feeds a debouncer,
// and a single background worker re-ingests or removes the affected
// documents.
package watch

import (
	"time"
)

// Op is the kind of change observed on a library file.
type Op int

const (
	OpCreate Op = iota
	OpModify
	OpDelete
)

func (op Op) String() string {
	switch op {
	case OpCreate:
		return "CREATE"
	case OpModify:
		return "MODIFY"
	case OpDelete:
		return "DELETE"
	default:
		return "UNKNOWN"
	}
}

// Event is one debounced change to a library file. Path is absolute.
type Event struct {
	Path      string
	Op        Op
	Timestamp time.Time
}

// DefaultDebounce coalesces editor save bursts into one re-ingest.
const DefaultDebounce = 500 * time.Millisecond

// DefaultPollInterval is the fallback scan cadence when fsnotify is
// unavailable.
const DefaultPollInterval = 5 * time.Second

// Options configures the watcher.
type Options struct {
	// Debounce is how long a path must stay quiet before its event is
	// emitted (default 500ms).
	Debounce time.Duration

	// PollInterval is the polling fallback scan cadence (default 5s).
	PollInterval time.Duration

	// Pattern is the include glob applied to changed files (default
	// **/*.md).
	Pattern string

	// Exclude are gitignore-style patterns never ingested.
	Exclude []string

	// BufferSize is the event channel capacity (default 256).
	BufferSize int
}

func (o Options) withDefaults() Options {
	if o.Debounce <= 0 {
		o.Debounce = DefaultDebounce
	}
	if o.PollInterval <= 0 {
		o.PollInterval = DefaultPollInterval
	}
	if o.BufferSize <= 0 {
		o.BufferSize = 256
	}
	return o
}
