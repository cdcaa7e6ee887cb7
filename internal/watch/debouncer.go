package watch

import (
	"sync"
	"time"
)

// Debouncer coalesces rapid events per path so an editor save burst
// triggers one re-ingest instead of several. Merge rules:
//
//	CREATE + MODIFY = CREATE
//	CREATE + DELETE = nothing
//	MODIFY + DELETE = DELETE
//	DELETE + CREATE = MODIFY
type Debouncer struct {
	window time.Duration
	output chan []Event

	mu      sync.Mutex
	pending map[string]*pendingEvent
	timer   *time.Timer
	stopped bool
}

type pendingEvent struct {
	event   Event
	firstOp Op
}

// NewDebouncer creates a debouncer emitting batches after window of
// quiet.
func NewDebouncer(window time.Duration) *Debouncer {
	if window <= 0 {
		window = DefaultDebounce
	}
	return &Debouncer{
		window:  window,
		output:  make(chan []Event, 16),
		pending: make(map[string]*pendingEvent),
	}
}

// Add records an event, merging it with any pending event for the same
// path.
func (d *Debouncer) Add(event Event) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.stopped {
		return
	}

	if existing, ok := d.pending[event.Path]; ok {
		merged, keep := merge(existing.firstOp, event)
		if !keep {
			delete(d.pending, event.Path)
		} else {
			existing.event = merged
		}
	} else {
		d.pending[event.Path] = &pendingEvent{event: event, firstOp: event.Op}
	}

	if d.timer != nil {
		d.timer.Stop()
	}
	d.timer = time.AfterFunc(d.window, d.flush)
}

// merge applies the coalescing rules. keep=false means the events
// cancelled out.
func merge(firstOp Op, next Event) (Event, bool) {
	switch firstOp {
	case OpCreate:
		switch next.Op {
		case OpModify:
			next.Op = OpCreate
			return next, true
		case OpDelete:
			return Event{}, false
		}
	case OpDelete:
		if next.Op == OpCreate {
			next.Op = OpModify
			return next, true
		}
	}
	return next, true
}

func (d *Debouncer) flush() {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.stopped || len(d.pending) == 0 {
		return
	}

	batch := make([]Event, 0, len(d.pending))
	for _, pe := range d.pending {
		batch = append(batch, pe.event)
	}
	d.pending = make(map[string]*pendingEvent)

	select {
	case d.output <- batch:
	default:
		// Consumer stalled; the reconciler catches up later.
	}
}

// Output returns the channel of debounced event batches.
func (d *Debouncer) Output() <-chan []Event {
	return d.output
}

// Stop drops pending events and closes the output channel. Safe to call
// twice.
func (d *Debouncer) Stop() {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.stopped {
		return
	}
	d.stopped = true
	if d.timer != nil {
		d.timer.Stop()
	}
	close(d.output)
}
