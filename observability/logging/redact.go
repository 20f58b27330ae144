package logging

import (
	"log/slog"
	"strings"
)

// RedactedValue replaces sensitive attribute values in emitted log lines.
const RedactedValue = "[REDACTED]"

// sensitiveFragments mark attribute keys whose values never reach a log sink.
var sensitiveFragments = []string{
	"secret",
	"token",
	"passphrase",
	"password",
	"authorization",
}

// Sensitive reports whether values logged under key are masked.
func Sensitive(key string) bool {
	normalized := strings.ToLower(strings.TrimSpace(key))
	if normalized == "" {
		return false
	}
	for _, fragment := range sensitiveFragments {
		if strings.Contains(normalized, fragment) {
			return true
		}
	}
	return false
}

// MaskField builds a string attribute that is masked whenever key is
// sensitive and value is non-empty.
func MaskField(key, value string) slog.Attr {
	return redact(slog.String(key, value))
}

func redact(attr slog.Attr) slog.Attr {
	if !Sensitive(attr.Key) {
		return attr
	}
	if attr.Value.Kind() == slog.KindString && strings.TrimSpace(attr.Value.String()) == "" {
		return attr
	}
	return slog.String(attr.Key, RedactedValue)
}
