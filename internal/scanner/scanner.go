package scanner

import (
	"bytes"
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/Aman-CERP/archrag/internal/gitignore"
)

// ignoreCacheSize bounds the cached gitignore matchers so long-running
// watch sessions do not grow without limit.
const ignoreCacheSize = 1000

// Scanner discovers documents in a library directory.
type Scanner struct {
	ignoreCache *lru.Cache[string, *gitignore.Matcher]
	cacheMu     sync.RWMutex
}

// New creates a Scanner.
func New() (*Scanner, error) {
	cache, err := lru.New[string, *gitignore.Matcher](ignoreCacheSize)
	if err != nil {
		return nil, fmt.Errorf("failed to create ignore cache: %w", err)
	}
	return &Scanner{ignoreCache: cache}, nil
}

// Scan streams matching documents under the root directory. The channel
// closes when the walk completes; a walk error arrives as the final item.
func (s *Scanner) Scan(ctx context.Context, opts *ScanOptions) (<-chan ScanResult, error) {
	if opts == nil {
		opts = &ScanOptions{}
	}

	rootDir := opts.RootDir
	if rootDir == "" {
		rootDir = "."
	}
	absRoot, err := filepath.Abs(rootDir)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve root path: %w", err)
	}
	info, err := os.Stat(absRoot)
	if err != nil {
		return nil, fmt.Errorf("failed to stat root directory: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("root path is not a directory: %s", absRoot)
	}

	maxFileSize := opts.MaxFileSize
	if maxFileSize <= 0 {
		maxFileSize = DefaultMaxFileSize
	}
	pattern := opts.Pattern
	if pattern == "" {
		pattern = DefaultPattern
	}

	results := make(chan ScanResult, 64)
	go func() {
		defer close(results)
		s.walk(ctx, absRoot, pattern, opts, maxFileSize, results)
	}()
	return results, nil
}

func (s *Scanner) walk(ctx context.Context, absRoot, pattern string, opts *ScanOptions, maxFileSize int64, results chan<- ScanResult) {
	err := filepath.WalkDir(absRoot, func(path string, d fs.DirEntry, err error) error {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}
		if err != nil {
			return nil // unreadable entries are skipped, not fatal
		}

		relPath, err := filepath.Rel(absRoot, path)
		if err != nil || relPath == "." {
			return nil
		}

		if d.IsDir() {
			if s.shouldExcludeDir(relPath, opts) {
				return filepath.SkipDir
			}
			return nil
		}

		if d.Type()&fs.ModeSymlink != 0 && !opts.FollowSymlinks {
			return nil
		}
		if !matchPattern(relPath, pattern) {
			return nil
		}
		if s.shouldExcludeFile(relPath, absRoot, opts) {
			return nil
		}

		info, err := d.Info()
		if err != nil {
			return nil
		}
		if info.Size() > maxFileSize {
			return nil
		}

		docType := DetectType(relPath)
		// PDFs are binary by nature; the null-byte check applies to the rest.
		if docType != TypePDF && s.isBinaryFile(path) {
			return nil
		}

		file := &FileInfo{
			Path:    relPath,
			AbsPath: path,
			Size:    info.Size(),
			ModTime: info.ModTime(),
			Type:    docType,
		}
		select {
		case results <- ScanResult{File: file}:
		case <-ctx.Done():
			return ctx.Err()
		}
		return nil
	})

	if err != nil && err != context.Canceled {
		select {
		case results <- ScanResult{Error: err}:
		case <-ctx.Done():
		}
	}
}

// shouldExcludeDir checks default and custom directory exclusions.
func (s *Scanner) shouldExcludeDir(relPath string, opts *ScanOptions) bool {
	for _, pattern := range defaultExcludeDirs {
		if matchDirPattern(relPath, pattern) {
			return true
		}
	}
	for _, pattern := range opts.ExcludePatterns {
		if matchDirPattern(relPath, pattern) {
			return true
		}
	}
	return false
}

// shouldExcludeFile checks sensitive patterns, custom exclusions, and
// gitignore rules.
func (s *Scanner) shouldExcludeFile(relPath, absRoot string, opts *ScanOptions) bool {
	baseName := filepath.Base(relPath)
	for _, pattern := range sensitiveFilePatterns {
		if matchFilePattern(baseName, relPath, pattern) {
			return true
		}
	}
	for _, pattern := range opts.ExcludePatterns {
		if matchFilePattern(baseName, relPath, pattern) {
			return true
		}
	}
	if opts.RespectGitignore && s.isGitignored(relPath, absRoot) {
		return true
	}
	return false
}

// matchPattern matches the include glob. "**/" prefixes match at any
// depth; patterns without a separator match the base name.
func matchPattern(relPath, pattern string) bool {
	baseName := filepath.Base(relPath)

	if strings.HasPrefix(pattern, "**/") {
		suffix := strings.TrimPrefix(pattern, "**/")
		if ok, err := filepath.Match(suffix, baseName); err == nil && ok {
			return true
		}
		// Also allow the suffix to match a trailing path segment pair,
		// e.g. "**/guides/*.md".
		if strings.Contains(suffix, string(filepath.Separator)) {
			parts := strings.Split(relPath, string(filepath.Separator))
			want := strings.Count(suffix, string(filepath.Separator)) + 1
			if len(parts) >= want {
				tail := strings.Join(parts[len(parts)-want:], string(filepath.Separator))
				if ok, err := filepath.Match(suffix, tail); err == nil && ok {
					return true
				}
			}
		}
		return false
	}

	if !strings.Contains(pattern, string(filepath.Separator)) {
		ok, err := filepath.Match(pattern, baseName)
		return err == nil && ok
	}
	ok, err := filepath.Match(pattern, relPath)
	return err == nil && ok
}

// matchDirPattern checks if a directory path matches an exclusion pattern.
func matchDirPattern(relPath, pattern string) bool {
	if strings.HasPrefix(pattern, "**/") {
		suffix := strings.TrimPrefix(pattern, "**/")
		suffix = strings.TrimSuffix(suffix, "/**")
		for _, part := range strings.Split(relPath, string(filepath.Separator)) {
			if part == suffix {
				return true
			}
		}
		return false
	}
	if strings.HasSuffix(pattern, "/**") {
		prefix := strings.TrimSuffix(pattern, "/**")
		return relPath == prefix || strings.HasPrefix(relPath, prefix+string(filepath.Separator))
	}
	return relPath == pattern || strings.HasPrefix(relPath, pattern+string(filepath.Separator))
}

// matchFilePattern checks if a file matches an exclusion pattern.
func matchFilePattern(baseName, relPath, pattern string) bool {
	if strings.HasSuffix(pattern, "/**") && !strings.HasPrefix(pattern, "**/") {
		prefix := strings.TrimSuffix(pattern, "/**")
		return strings.HasPrefix(relPath, prefix+string(filepath.Separator))
	}
	if strings.HasPrefix(pattern, "**/") {
		suffix := strings.TrimPrefix(pattern, "**/")
		if strings.HasPrefix(suffix, "*.") {
			return strings.HasSuffix(baseName, strings.TrimPrefix(suffix, "*"))
		}
		for _, part := range strings.Split(relPath, string(filepath.Separator)) {
			if part == suffix {
				return true
			}
		}
		return false
	}
	if strings.HasPrefix(pattern, "*") && strings.HasSuffix(pattern, "*") && len(pattern) > 1 {
		middle := strings.TrimSuffix(strings.TrimPrefix(pattern, "*"), "*")
		return strings.Contains(strings.ToLower(baseName), strings.ToLower(middle))
	}
	if strings.HasPrefix(pattern, "*") {
		return strings.HasSuffix(baseName, strings.TrimPrefix(pattern, "*"))
	}
	if strings.HasSuffix(pattern, "*") {
		return strings.HasPrefix(baseName, strings.TrimSuffix(pattern, "*"))
	}
	return baseName == pattern
}

// Matches reports whether a relative path passes the include pattern,
// the sensitive-file exclusions, and the custom exclusions. The file
// watcher uses this to filter change events the same way a scan would.
func Matches(relPath, pattern string, exclude []string) bool {
	if pattern == "" {
		pattern = DefaultPattern
	}
	if !matchPattern(relPath, pattern) {
		return false
	}

	baseName := filepath.Base(relPath)
	for _, p := range sensitiveFilePatterns {
		if matchFilePattern(baseName, relPath, p) {
			return false
		}
	}
	dir := filepath.Dir(relPath)
	for _, p := range exclude {
		if matchFilePattern(baseName, relPath, p) {
			return false
		}
		if dir != "." && matchDirPattern(dir, p) {
			return false
		}
	}
	return true
}

// isBinaryFile checks the first 512 bytes for null bytes.
func (s *Scanner) isBinaryFile(path string) bool {
	f, err := os.Open(path)
	if err != nil {
		return false
	}
	defer func() { _ = f.Close() }()

	buf := make([]byte, 512)
	n, err := f.Read(buf)
	if err != nil {
		return false
	}
	return bytes.Contains(buf[:n], []byte{0})
}

// isGitignored checks the root .gitignore plus any nested ones along the
// file's directory chain.
func (s *Scanner) isGitignored(relPath, absRoot string) bool {
	if m := s.getIgnoreMatcher(absRoot, ""); m != nil && m.Match(relPath, false) {
		return true
	}

	currentDir := absRoot
	currentBase := ""
	for _, part := range strings.Split(filepath.Dir(relPath), string(filepath.Separator)) {
		if part == "." {
			continue
		}
		currentDir = filepath.Join(currentDir, part)
		currentBase = filepath.Join(currentBase, part)
		if m := s.getIgnoreMatcher(currentDir, currentBase); m != nil && m.Match(relPath, false) {
			return true
		}
	}
	return false
}

// getIgnoreMatcher gets or builds the cached matcher for a directory.
func (s *Scanner) getIgnoreMatcher(dir, base string) *gitignore.Matcher {
	s.cacheMu.RLock()
	matcher, ok := s.ignoreCache.Get(dir)
	s.cacheMu.RUnlock()
	if ok {
		return matcher
	}

	ignorePath := filepath.Join(dir, ".gitignore")
	if _, err := os.Stat(ignorePath); os.IsNotExist(err) {
		return nil
	}

	matcher = gitignore.New()
	if err := matcher.AddFromFile(ignorePath, base); err != nil {
		return nil
	}

	s.cacheMu.Lock()
	s.ignoreCache.Add(dir, matcher)
	s.cacheMu.Unlock()
	return matcher
}

// InvalidateIgnoreCache clears cached matchers after .gitignore edits.
func (s *Scanner) InvalidateIgnoreCache() {
	s.cacheMu.Lock()
	defer s.cacheMu.Unlock()
	s.ignoreCache.Purge()
}

// Default directories never scanned.
var defaultExcludeDirs = []string{
	"**/.git/**",
	"**/node_modules/**",
	"**/vendor/**",
	"**/__pycache__/**",
	"**/.archrag/**",
	"**/.ssh/**",
	"**/.aws/**",
}

// Sensitive files never indexed regardless of pattern.
var sensitiveFilePatterns = []string{
	".env",
	".env*",
	"*.pem",
	"*.key",
	"*credentials*",
	"*secrets*",
	"*password*",
	".netrc",
	".npmrc",
	"id_rsa",
	"id_ed25519",
}
