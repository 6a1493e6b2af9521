package logger

import (
	"testing"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestRedactingCoreMasksSensitiveFields(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	log := zap.New(NewRedactingCore(core, DefaultRedactKeys))

	log.With(zap.String("refresh_token", "1//refresh")).Info("token refreshed",
		zap.String("access_token", "ya29.secret"),
		zap.String("Client_Secret", "GOCSPX-secret"),
		zap.String("file_id", "abc123"),
		zap.Int("code", 400),
	)

	entries := logs.All()
	if len(entries) != 1 {
		t.Fatalf("expected one entry, got %d", len(entries))
	}
	fields := entries[0].ContextMap()
	for _, key := range []string{"refresh_token", "access_token", "Client_Secret"} {
		if fields[key] != redactedValue {
			t.Fatalf("expected %s redacted, got %v", key, fields[key])
		}
	}
	if fields["file_id"] != "abc123" {
		t.Fatalf("expected file_id untouched, got %v", fields["file_id"])
	}
	if fields["code"] != int64(400) {
		t.Fatalf("expected numeric code untouched, got %v (%T)", fields["code"], fields["code"])
	}
}

func TestRedactingCoreRespectsLevel(t *testing.T) {
	core, logs := observer.New(zapcore.WarnLevel)
	log := zap.New(NewRedactingCore(core, []string{"nonce"}))

	log.Info("dropped", zap.String("nonce", "n"))
	log.Warn("kept", zap.String("nonce", "n"))

	if logs.Len() != 1 {
		t.Fatalf("expected one entry, got %d", logs.Len())
	}
	if got := logs.All()[0].ContextMap()["nonce"]; got != redactedValue {
		t.Fatalf("expected nonce redacted, got %v", got)
	}
}

func TestNormalizeFormat(t *testing.T) {
	if normalizeFormat(" Console ") != "console" {
		t.Fatalf("expected console format")
	}
	if normalizeFormat("text") != "json" {
		t.Fatalf("expected json fallback")
	}
}
