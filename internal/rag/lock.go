package rag

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/gofrs/flock"
)

// FileLock guards the data directory against concurrent writers. Two
// processes ingesting into the same indexes corrupt the on-disk state, so
// serve and ingest take the lock before opening stores.
type FileLock struct {
	lock *flock.Flock
}

// AcquireLock takes the data-directory lock without blocking. A held lock
// returns an error naming the path.
func AcquireLock(path string) (*FileLock, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("failed to create lock directory: %w", err)
	}

	fl := flock.New(path)
	ok, err := fl.TryLock()
	if err != nil {
		return nil, fmt.Errorf("failed to acquire lock %s: %w", path, err)
	}
	if !ok {
		return nil, fmt.Errorf("another archrag process holds the lock at %s", path)
	}
	return &FileLock{lock: fl}, nil
}

// Release drops the lock.
func (l *FileLock) Release() error {
	if l == nil || l.lock == nil {
		return nil
	}
	return l.lock.Unlock()
}
