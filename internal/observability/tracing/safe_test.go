package tracing

import (
	"errors"
	"strings"
	"testing"

	"go.opentelemetry.io/otel/attribute"
)

func TestSafeAttributesDropsCredentials(t *testing.T) {
	attrs := SafeAttributes(
		attribute.String("http.method", "GET"),
		attribute.String("oauth.access_token", "ya29.secret"),
		attribute.String("oauth.state", "abc"),
		attribute.Int("http.status_code", 200),
	)
	if len(attrs) != 2 {
		t.Fatalf("expected 2 attributes, got %d", len(attrs))
	}
	for _, attr := range attrs {
		if strings.Contains(string(attr.Key), "token") || strings.Contains(string(attr.Key), "state") {
			t.Fatalf("sensitive attribute %q leaked", attr.Key)
		}
	}
}

func TestSafeErrorStripsQuery(t *testing.T) {
	err := errors.New(`Get "https://www.googleapis.com/drive/v3/files/1?alt=media&access_token=ya29.secret": dial tcp: timeout`)
	got := SafeError(err).Error()
	if strings.Contains(got, "ya29.secret") {
		t.Fatalf("token leaked: %s", got)
	}
	if !strings.HasSuffix(got, `": dial tcp: timeout`) {
		t.Fatalf("unexpected message: %s", got)
	}
}
