package logging

import (
	"context"
	"log/slog"
	"regexp"
	"strings"
)

// sensitiveKeyPatterns lists substrings that indicate a log attribute key holds a secret value.
// Values logged under these keys will be fully redacted.
var sensitiveKeyPatterns = []string{
	"password",
	"passphrase",
	"secret",
	"private_key",
	"mnemonic",
}

// hexSecretPattern matches 32-byte hex values. Transaction hashes share the
// shape, so keys ending in "hash" or "hashes" are exempt.
var hexSecretPattern = regexp.MustCompile(`\b(0x)?[0-9a-fA-F]{64}\b`)

// RedactingHandler wraps an slog.Handler and redacts key material before it
// reaches the inner handler.
type RedactingHandler struct {
	inner slog.Handler
}

// NewRedactingHandler creates a RedactingHandler that wraps the given inner handler.
func NewRedactingHandler(inner slog.Handler) *RedactingHandler {
	return &RedactingHandler{inner: inner}
}

// Enabled reports whether the inner handler handles records at the given level.
func (h *RedactingHandler) Enabled(ctx context.Context, level slog.Level) bool {
	return h.inner.Enabled(ctx, level)
}

// Handle redacts sensitive attribute values and forwards the record to the inner handler.
func (h *RedactingHandler) Handle(ctx context.Context, r slog.Record) error {
	var redacted []slog.Attr
	r.Attrs(func(a slog.Attr) bool {
		redacted = append(redacted, redactAttr(a))
		return true
	})

	newRecord := slog.NewRecord(r.Time, r.Level, r.Message, r.PC)
	newRecord.AddAttrs(redacted...)

	return h.inner.Handle(ctx, newRecord)
}

// WithAttrs returns a new handler with the given attributes redacted.
func (h *RedactingHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	redacted := make([]slog.Attr, len(attrs))
	for i, a := range attrs {
		redacted[i] = redactAttr(a)
	}
	return &RedactingHandler{inner: h.inner.WithAttrs(redacted)}
}

// WithGroup returns a new handler with the given group name.
func (h *RedactingHandler) WithGroup(name string) slog.Handler {
	return &RedactingHandler{inner: h.inner.WithGroup(name)}
}

func redactAttr(a slog.Attr) slog.Attr {
	key := strings.ToLower(a.Key)

	for _, pattern := range sensitiveKeyPatterns {
		if strings.Contains(key, pattern) {
			return slog.String(a.Key, "[REDACTED]")
		}
	}

	if a.Value.Kind() != slog.KindString || strings.HasSuffix(key, "hash") || strings.HasSuffix(key, "hashes") {
		return a
	}

	val := a.Value.String()
	if redacted := redactString(val); redacted != val {
		return slog.String(a.Key, redacted)
	}
	return a
}

// redactString masks anything shaped like a raw private key, keeping a short
// prefix and suffix so operators can still correlate entries.
func redactString(val string) string {
	return hexSecretPattern.ReplaceAllStringFunc(val, func(match string) string {
		return match[:6] + "..." + match[len(match)-4:]
	})
}
