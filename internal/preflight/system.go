package preflight

import (
	"fmt"
	"os"
	"path/filepath"
	"syscall"
)

// MinDiskSpaceBytes is the free space floor for the data directory
// (100MB).
const MinDiskSpaceBytes = 100 * 1024 * 1024

// MinFileDescriptors covers the bleve segment files plus sqlite and
// network connections.
const MinFileDescriptors = 1024

// CheckDataDir verifies the data directory exists and is writable.
func (c *Checker) CheckDataDir() CheckResult {
	result := CheckResult{Name: "data_dir", Required: true}

	if err := os.MkdirAll(c.cfg.DataDir, 0o755); err != nil {
		result.Status = StatusFail
		result.Message = fmt.Sprintf("cannot create %s: %v", c.cfg.DataDir, err)
		return result
	}

	probe := filepath.Join(c.cfg.DataDir, ".doctor-probe")
	f, err := os.Create(probe)
	if err != nil {
		result.Status = StatusFail
		result.Message = fmt.Sprintf("not writable: %v", err)
		return result
	}
	_ = f.Close()
	_ = os.Remove(probe)

	result.Status = StatusPass
	result.Message = c.cfg.DataDir
	return result
}

// CheckDiskSpace verifies free space at the data directory.
func (c *Checker) CheckDiskSpace() CheckResult {
	result := CheckResult{Name: "disk_space", Required: true}

	path := c.cfg.DataDir
	if _, err := os.Stat(path); err != nil {
		path = filepath.Dir(path)
	}

	var stat syscall.Statfs_t
	if err := syscall.Statfs(path, &stat); err != nil {
		result.Status = StatusWarn
		result.Message = fmt.Sprintf("cannot check disk space: %v", err)
		result.Required = false
		return result
	}

	available := stat.Bavail * uint64(stat.Bsize)
	result.Message = fmt.Sprintf("%s free (minimum: 100 MB)", formatBytes(available))
	if available < MinDiskSpaceBytes {
		result.Status = StatusFail
		return result
	}
	result.Status = StatusPass
	return result
}

// CheckFileDescriptors verifies the open-file limit.
func (c *Checker) CheckFileDescriptors() CheckResult {
	result := CheckResult{Name: "file_descriptors", Required: true}

	var rLimit syscall.Rlimit
	if err := syscall.Getrlimit(syscall.RLIMIT_NOFILE, &rLimit); err != nil {
		result.Status = StatusWarn
		result.Message = fmt.Sprintf("cannot check limit: %v", err)
		result.Required = false
		return result
	}

	result.Message = fmt.Sprintf("%d (minimum: %d)", rLimit.Cur, MinFileDescriptors)
	if rLimit.Cur < MinFileDescriptors {
		result.Status = StatusFail
		result.Details = "Run 'ulimit -n 10240' to raise the limit"
		return result
	}
	result.Status = StatusPass
	return result
}

func formatBytes(bytes uint64) string {
	const (
		kb = 1024
		mb = 1024 * kb
		gb = 1024 * mb
		tb = 1024 * gb
	)
	switch {
	case bytes >= tb:
		return fmt.Sprintf("%.1f TB", float64(bytes)/tb)
	case bytes >= gb:
		return fmt.Sprintf("%.1f GB", float64(bytes)/gb)
	case bytes >= mb:
		return fmt.Sprintf("%.1f MB", float64(bytes)/mb)
	case bytes >= kb:
		return fmt.Sprintf("%.1f KB", float64(bytes)/kb)
	default:
		return fmt.Sprintf("%d bytes", bytes)
	}
}
