// Package scanner discovers indexable documents in a library directory.
// It streams matching files over a channel, honoring glob patterns,
// gitignore rules, sensitive-file exclusions, and binary detection.
package scanner

import (
	"path/filepath"
	"strings"
	"time"
)

// Document types the extractor understands.
const (
	TypeMarkdown = "markdown"
	TypePDF      = "pdf"
	TypeText     = "text"
)

// DefaultPattern selects markdown documents at any depth.
const DefaultPattern = "**/*.md"

// DefaultMaxFileSize is the default maximum file size (50MB, PDFs run large).
const DefaultMaxFileSize = 50 * 1024 * 1024

// FileInfo contains metadata about a discovered document.
type FileInfo struct {
	// Path is relative to the scan root.
	Path    string
	AbsPath string
	Size    int64
	ModTime time.Time
	// Type is the document type derived from the extension.
	Type string
}

// ScanOptions configures the scanner.
type ScanOptions struct {
	// RootDir is the library directory to scan.
	RootDir string

	// Pattern is the include glob (default DefaultPattern). A leading
	// "**/" matches at any depth.
	Pattern string

	// ExcludePatterns are additional exclusion globs.
	ExcludePatterns []string

	// RespectGitignore enables .gitignore parsing.
	RespectGitignore bool

	// MaxFileSize is the maximum file size in bytes (0 = default).
	MaxFileSize int64

	// FollowSymlinks enables following symbolic links.
	FollowSymlinks bool
}

// ScanResult is one item from the scan stream.
type ScanResult struct {
	File  *FileInfo
	Error error
}

// DetectType maps a file extension to its document type. Unknown
// extensions default to text; the extractor probes further.
func DetectType(path string) string {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".md", ".mdx", ".markdown":
		return TypeMarkdown
	case ".pdf":
		return TypePDF
	default:
		return TypeText
	}
}
