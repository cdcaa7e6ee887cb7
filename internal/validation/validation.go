// Package validation holds the input checks shared by the HTTP server,
// the MCP server, and the CLI. Each check returns a coded error from
// internal/errors so transports can map it to their own status codes.
package validation

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"unicode/utf8"

	ragerr "github.com/Aman-CERP/archrag/internal/errors"
)

const (
	// MaxQueryLength bounds query text in runes. Longer queries are
	// rejected before any embedding work happens.
	MaxQueryLength = 4096

	// MaxTopK bounds how many results a single query may request.
	MaxTopK = 100
)

// Query rejects empty, whitespace-only, and oversized query text.
func Query(query string) error {
	if strings.TrimSpace(query) == "" {
		return ragerr.New(ragerr.ErrCodeQueryEmpty, "query must not be empty", nil)
	}
	if n := utf8.RuneCountInString(query); n > MaxQueryLength {
		return ragerr.New(ragerr.ErrCodeQueryTooLong,
			fmt.Sprintf("query is %d characters, limit is %d", n, MaxQueryLength), nil).
			WithSuggestion("shorten the query or split it into separate questions")
	}
	return nil
}

// TopK rejects out-of-range result counts. Zero is allowed; callers
// substitute their configured default.
func TopK(k int) error {
	if k < 0 {
		return ragerr.New(ragerr.ErrCodeInvalidInput, "top_k must not be negative", nil)
	}
	if k > MaxTopK {
		return ragerr.New(ragerr.ErrCodeInvalidInput,
			fmt.Sprintf("top_k %d exceeds limit %d", k, MaxTopK), nil)
	}
	return nil
}

// Path rejects empty and traversal-carrying paths without touching the
// filesystem. Relative paths are allowed; the orchestrator resolves them.
func Path(path string) error {
	if strings.TrimSpace(path) == "" {
		return ragerr.New(ragerr.ErrCodeInvalidPath, "path must not be empty", nil)
	}
	for _, seg := range strings.Split(filepath.ToSlash(path), "/") {
		if seg == ".." {
			return ragerr.New(ragerr.ErrCodeInvalidPath,
				fmt.Sprintf("path %q must not contain '..'", path), nil)
		}
	}
	return nil
}

// Directory checks that path names an existing directory.
func Directory(path string) error {
	if err := Path(path); err != nil {
		return err
	}
	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return ragerr.New(ragerr.ErrCodeFileNotFound,
				fmt.Sprintf("directory not found: %s", path), err)
		}
		if os.IsPermission(err) {
			return ragerr.New(ragerr.ErrCodeFilePermission,
				fmt.Sprintf("directory not readable: %s", path), err)
		}
		return ragerr.IOError(fmt.Sprintf("stat %s", path), err)
	}
	if !info.IsDir() {
		return ragerr.New(ragerr.ErrCodeInvalidPath,
			fmt.Sprintf("%s is not a directory", path), nil)
	}
	return nil
}

// File checks that path names an existing regular file.
func File(path string) error {
	if err := Path(path); err != nil {
		return err
	}
	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return ragerr.New(ragerr.ErrCodeFileNotFound,
				fmt.Sprintf("file not found: %s", path), err)
		}
		if os.IsPermission(err) {
			return ragerr.New(ragerr.ErrCodeFilePermission,
				fmt.Sprintf("file not readable: %s", path), err)
		}
		return ragerr.IOError(fmt.Sprintf("stat %s", path), err)
	}
	if info.IsDir() {
		return ragerr.New(ragerr.ErrCodeInvalidPath,
			fmt.Sprintf("%s is a directory, expected a file", path), nil)
	}
	return nil
}

// Pattern checks glob syntax. The "**/" prefix is the scanner's
// any-depth extension, so it is stripped before the syntax check.
func Pattern(pattern string) error {
	if pattern == "" {
		return nil
	}
	p := strings.TrimPrefix(pattern, "**/")
	if _, err := filepath.Match(p, "probe"); err != nil {
		return ragerr.New(ragerr.ErrCodeInvalidInput,
			fmt.Sprintf("malformed glob pattern %q", pattern), err)
	}
	return nil
}
