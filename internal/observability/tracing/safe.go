package tracing

import (
	"errors"
	"strings"

	"go.opentelemetry.io/otel/attribute"
)

// sensitiveKeys never leave the process as span attributes.
var sensitiveKeys = []string{
	"token",
	"secret",
	"password",
	"authorization",
	"code",
	"state",
}

// SafeAttributes drops attributes whose key names a credential.
func SafeAttributes(attrs ...attribute.KeyValue) []attribute.KeyValue {
	out := make([]attribute.KeyValue, 0, len(attrs))
	for _, attr := range attrs {
		if isSensitiveKey(string(attr.Key)) {
			continue
		}
		out = append(out, attr)
	}
	return out
}

func isSensitiveKey(key string) bool {
	key = strings.ToLower(key)
	if key == "http.status_code" {
		return false
	}
	for _, s := range sensitiveKeys {
		if strings.Contains(key, s) {
			return true
		}
	}
	return false
}

// SafeError returns an error whose message has query strings stripped, since
// URLs carrying access_token end up in transport errors.
func SafeError(err error) error {
	if err == nil {
		return nil
	}
	return errors.New(StripQuery(err.Error()))
}

// StripQuery removes everything from '?' up to the next whitespace or quote.
func StripQuery(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	skipping := false
	for _, r := range s {
		switch {
		case r == '?':
			skipping = true
			b.WriteString("?REDACTED")
		case skipping && (r == ' ' || r == '"' || r == '\n'):
			skipping = false
			b.WriteRune(r)
		case !skipping:
			b.WriteRune(r)
		}
	}
	return b.String()
}
