// Package preflight runs the doctor checks: data directory access, disk
// space, file descriptor limits, and reachability of the embedding,
// cache, and generation backends. archrag doctor prints the results;
// GET /health consumes the backend checks.
package preflight

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/Aman-CERP/archrag/internal/config"
)

// CheckStatus is the outcome of one check.
type CheckStatus int

const (
	StatusPass CheckStatus = iota
	StatusWarn
	StatusFail
)

func (s CheckStatus) String() string {
	switch s {
	case StatusPass:
		return "PASS"
	case StatusWarn:
		return "WARN"
	case StatusFail:
		return "FAIL"
	default:
		return "UNKNOWN"
	}
}

// MarshalJSON encodes the status as its string form.
func (s CheckStatus) MarshalJSON() ([]byte, error) {
	return []byte(`"` + s.String() + `"`), nil
}

// CheckResult is the outcome of a single check.
type CheckResult struct {
	Name     string      `json:"name"`
	Status   CheckStatus `json:"status"`
	Message  string      `json:"message"`
	Details  string      `json:"details,omitempty"`
	Required bool        `json:"required"`
}

// IsCritical reports a required check that failed.
func (r CheckResult) IsCritical() bool {
	return r.Required && r.Status == StatusFail
}

// Checker runs the preflight checks against a configuration.
type Checker struct {
	cfg     *config.Config
	client  *http.Client
	verbose bool
	output  io.Writer
}

// Option configures a Checker.
type Option func(*Checker)

// WithVerbose prints check details alongside messages.
func WithVerbose(verbose bool) Option {
	return func(c *Checker) { c.verbose = verbose }
}

// WithOutput sets where PrintResults writes.
func WithOutput(w io.Writer) Option {
	return func(c *Checker) { c.output = w }
}

// WithHTTPClient overrides the probe client. Tests use this.
func WithHTTPClient(client *http.Client) Option {
	return func(c *Checker) { c.client = client }
}

// New creates a checker for the configuration.
func New(cfg *config.Config, opts ...Option) *Checker {
	c := &Checker{
		cfg:    cfg,
		client: &http.Client{Timeout: 3 * time.Second},
		output: os.Stdout,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// RunAll runs every check in order.
func (c *Checker) RunAll(ctx context.Context) []CheckResult {
	return []CheckResult{
		c.CheckDataDir(),
		c.CheckDiskSpace(),
		c.CheckFileDescriptors(),
		c.CheckEmbedder(ctx),
		c.CheckCache(ctx),
		c.CheckLLM(ctx),
	}
}

// HasCriticalFailures reports whether any required check failed.
func HasCriticalFailures(results []CheckResult) bool {
	for _, r := range results {
		if r.IsCritical() {
			return true
		}
	}
	return false
}

// SummaryStatus condenses results into ready, ready_with_warnings, or
// failed.
func SummaryStatus(results []CheckResult) string {
	warnings := false
	for _, r := range results {
		if r.IsCritical() {
			return "failed"
		}
		if r.Status == StatusWarn || r.Status == StatusFail {
			warnings = true
		}
	}
	if warnings {
		return "ready_with_warnings"
	}
	return "ready"
}

// PrintResults writes a human-readable report.
func (c *Checker) PrintResults(results []CheckResult) {
	_, _ = fmt.Fprintln(c.output, "ArchRAG System Check")
	_, _ = fmt.Fprintln(c.output, "====================")
	_, _ = fmt.Fprintln(c.output)

	for _, r := range results {
		_, _ = fmt.Fprintf(c.output, "[%s] %s: %s\n", r.Status, r.Name, r.Message)
		if c.verbose && r.Details != "" {
			_, _ = fmt.Fprintf(c.output, "      %s\n", r.Details)
		}
	}

	_, _ = fmt.Fprintln(c.output)
	_, _ = fmt.Fprintf(c.output, "Status: %s\n", strings.ToUpper(SummaryStatus(results)))

	var warnings, errors []string
	for _, r := range results {
		switch {
		case r.IsCritical():
			errors = append(errors, r.Name+": "+r.Message)
		case r.Status == StatusWarn || r.Status == StatusFail:
			warnings = append(warnings, r.Name+": "+r.Message)
		}
	}
	if len(errors) > 0 {
		_, _ = fmt.Fprintf(c.output, "\n%d error(s):\n", len(errors))
		for _, e := range errors {
			_, _ = fmt.Fprintf(c.output, "  - %s\n", e)
		}
	}
	if len(warnings) > 0 {
		_, _ = fmt.Fprintf(c.output, "\n%d warning(s):\n", len(warnings))
		for _, w := range warnings {
			_, _ = fmt.Fprintf(c.output, "  - %s\n", w)
		}
	}
}
