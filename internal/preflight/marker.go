package preflight

import (
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// MarkerFile records that the checks passed, so serve skips re-running
// them on every start.
const MarkerFile = ".preflight-passed"

// NeedsCheck reports whether the checks should run for this data
// directory.
func NeedsCheck(dataDir string) bool {
	_, err := os.Stat(filepath.Join(dataDir, MarkerFile))
	return os.IsNotExist(err)
}

// MarkPassed writes the marker file.
func MarkPassed(dataDir string) error {
	if err := os.MkdirAll(dataDir, 0o755); err != nil {
		return fmt.Errorf("failed to create marker directory: %w", err)
	}
	path := filepath.Join(dataDir, MarkerFile)
	return os.WriteFile(path, []byte(time.Now().Format(time.RFC3339)), 0o644)
}

// ClearMarker forces a re-check on the next run.
func ClearMarker(dataDir string) error {
	err := os.Remove(filepath.Join(dataDir, MarkerFile))
	if os.IsNotExist(err) {
		return nil
	}
	return err
}

// MarkerAge returns how long ago the checks passed, zero when unknown.
func MarkerAge(dataDir string) time.Duration {
	content, err := os.ReadFile(filepath.Join(dataDir, MarkerFile))
	if err != nil {
		return 0
	}
	t, err := time.Parse(time.RFC3339, string(content))
	if err != nil {
		return 0
	}
	return time.Since(t)
}
