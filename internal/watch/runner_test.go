package watch

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeLibrary struct {
	mu        sync.Mutex
	ingested  []string
	removed   []string
	ingestErr error
}

func (f *fakeLibrary) IngestDocument(_ context.Context, path string, _ bool) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.ingestErr != nil {
		return 0, f.ingestErr
	}
	f.ingested = append(f.ingested, path)
	return 2, nil
}

func (f *fakeLibrary) RemoveDocument(_ context.Context, path string) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.removed = append(f.removed, path)
	return 2, nil
}

func runBatches(t *testing.T, lib Library, batches ...[]Event) {
	t.Helper()
	events := make(chan []Event, len(batches))
	for _, b := range batches {
		events <- b
	}
	close(events)

	done := make(chan struct{})
	go func() {
		NewRunner(lib, nil).Run(context.Background(), events)
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("runner did not drain events")
	}
}

func TestRunner_IngestsCreatesAndModifies(t *testing.T) {
	lib := &fakeLibrary{}
	runBatches(t, lib, []Event{
		{Path: "/docs/a.md", Op: OpCreate},
		{Path: "/docs/b.md", Op: OpModify},
	})

	assert.ElementsMatch(t, []string{"/docs/a.md", "/docs/b.md"}, lib.ingested)
	assert.Empty(t, lib.removed)
}

func TestRunner_RemovesDeletes(t *testing.T) {
	lib := &fakeLibrary{}
	runBatches(t, lib, []Event{{Path: "/docs/gone.md", Op: OpDelete}})

	assert.Equal(t, []string{"/docs/gone.md"}, lib.removed)
	assert.Empty(t, lib.ingested)
}

func TestRunner_ContinuesAfterFailure(t *testing.T) {
	lib := &fakeLibrary{ingestErr: errors.New("extract failed")}
	runBatches(t, lib,
		[]Event{{Path: "/docs/bad.md", Op: OpModify}},
		[]Event{{Path: "/docs/gone.md", Op: OpDelete}},
	)

	assert.Empty(t, lib.ingested)
	assert.Equal(t, []string{"/docs/gone.md"}, lib.removed)
}

func TestRunner_StopsOnContextCancel(t *testing.T) {
	lib := &fakeLibrary{}
	events := make(chan []Event)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	done := make(chan struct{})
	go func() {
		NewRunner(lib, nil).Run(ctx, events)
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("runner ignored cancellation")
	}
	require.Empty(t, lib.ingested)
}
