package logging

import (
	"context"
	"log/slog"
	"strings"
)

// Redacted replaces the value of any sensitive field in log output.
const Redacted = "[REDACTED]"

// DefaultRedactKeys returns the built-in set of sensitive keys.
// Matching is case-insensitive on the exact key name.
func DefaultRedactKeys() []string {
	return []string{
		"api_key",
		"apikey",
		"authorization",
		"token",
		"access_token",
		"secret",
		"password",
	}
}

// RedactingHandler wraps a slog.Handler and masks the values of sensitive
// keys, recursively through groups, maps, and slices. Keys are matched
// case-insensitively.
type RedactingHandler struct {
	inner slog.Handler
	keys  map[string]struct{}
}

// NewRedactingHandler creates a handler that redacts the given keys.
func NewRedactingHandler(inner slog.Handler, keys []string) *RedactingHandler {
	set := make(map[string]struct{}, len(keys))
	for _, k := range keys {
		set[strings.ToLower(k)] = struct{}{}
	}
	return &RedactingHandler{inner: inner, keys: set}
}

// Enabled implements slog.Handler.
func (h *RedactingHandler) Enabled(ctx context.Context, level slog.Level) bool {
	return h.inner.Enabled(ctx, level)
}

// Handle implements slog.Handler. The record is rebuilt with redacted attrs.
func (h *RedactingHandler) Handle(ctx context.Context, r slog.Record) error {
	out := slog.NewRecord(r.Time, r.Level, r.Message, r.PC)
	r.Attrs(func(a slog.Attr) bool {
		out.AddAttrs(h.redactAttr(a))
		return true
	})
	return h.inner.Handle(ctx, out)
}

// WithAttrs implements slog.Handler.
func (h *RedactingHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	redacted := make([]slog.Attr, len(attrs))
	for i, a := range attrs {
		redacted[i] = h.redactAttr(a)
	}
	return &RedactingHandler{inner: h.inner.WithAttrs(redacted), keys: h.keys}
}

// WithGroup implements slog.Handler.
func (h *RedactingHandler) WithGroup(name string) slog.Handler {
	return &RedactingHandler{inner: h.inner.WithGroup(name), keys: h.keys}
}

func (h *RedactingHandler) sensitive(key string) bool {
	_, ok := h.keys[strings.ToLower(key)]
	return ok
}

func (h *RedactingHandler) redactAttr(a slog.Attr) slog.Attr {
	if h.sensitive(a.Key) {
		return slog.String(a.Key, Redacted)
	}

	v := a.Value.Resolve()
	switch v.Kind() {
	case slog.KindGroup:
		group := v.Group()
		out := make([]slog.Attr, len(group))
		for i, g := range group {
			out[i] = h.redactAttr(g)
		}
		return slog.Attr{Key: a.Key, Value: slog.GroupValue(out...)}
	case slog.KindAny:
		return slog.Any(a.Key, h.redactAny(v.Any()))
	default:
		return a
	}
}

// redactAny walks nested maps and slices, masking sensitive map keys.
func (h *RedactingHandler) redactAny(v any) any {
	switch t := v.(type) {
	case map[string]any:
		out := make(map[string]any, len(t))
		for k, val := range t {
			if h.sensitive(k) {
				out[k] = Redacted
			} else {
				out[k] = h.redactAny(val)
			}
		}
		return out
	case map[string]string:
		out := make(map[string]string, len(t))
		for k, val := range t {
			if h.sensitive(k) {
				out[k] = Redacted
			} else {
				out[k] = val
			}
		}
		return out
	case []any:
		out := make([]any, len(t))
		for i, val := range t {
			out[i] = h.redactAny(val)
		}
		return out
	default:
		return v
	}
}

var _ slog.Handler = (*RedactingHandler)(nil)
