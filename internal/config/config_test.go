package config

import (
	"testing"
	"time"
)

func clearEnv(t *testing.T, keys ...string) {
	t.Helper()
	for _, key := range keys {
		t.Setenv(key, "")
	}
}

func TestLoadDevelopmentTelemetryDefaults(t *testing.T) {
	clearEnv(t, "ENVIRONMENT", "DEPLOYMENT_ENV", "LOG_FORMAT", "LOG_LEVEL", "OTEL_ENABLED",
		"OTEL_EXPORTER_OTLP_PROTOCOL", "OTEL_EXPORTER_OTLP_TRACES_PROTOCOL")

	cfg := Load()
	if cfg.Environment != "development" {
		t.Fatalf("expected development default, got %q", cfg.Environment)
	}
	if cfg.Telemetry.LogFormat != "console" || cfg.Telemetry.OtelEnabled {
		t.Fatalf("unexpected development telemetry: %+v", cfg.Telemetry)
	}
	if cfg.Telemetry.OtelProtocol != "grpc" {
		t.Fatalf("expected grpc protocol, got %q", cfg.Telemetry.OtelProtocol)
	}
}

func TestLoadProductionTelemetry(t *testing.T) {
	clearEnv(t, "DEPLOYMENT_ENV", "LOG_FORMAT", "OTEL_ENABLED")
	t.Setenv("ENVIRONMENT", "production")
	t.Setenv("OTEL_EXPORTER_OTLP_TRACES_PROTOCOL", "HTTP")

	cfg := Load()
	if !cfg.IsProduction() {
		t.Fatalf("expected production")
	}
	if cfg.Telemetry.LogFormat != "json" || !cfg.Telemetry.OtelEnabled || cfg.Telemetry.OtelProtocol != "http" {
		t.Fatalf("unexpected production telemetry: %+v", cfg.Telemetry)
	}
}

func TestLoadRedirectAndScopes(t *testing.T) {
	t.Setenv("PUBLIC_BASE_URL", "https://bridge.example/ ")
	t.Setenv("GOOGLE_SCOPES", "scope-a, scope-b")

	cfg := Load()
	if got := cfg.RedirectURI(); got != "https://bridge.example"+CallbackPath {
		t.Fatalf("unexpected redirect uri %q", got)
	}
	if len(cfg.Google.Scopes) != 2 || cfg.Google.Scopes[1] != "scope-b" {
		t.Fatalf("unexpected scopes %v", cfg.Google.Scopes)
	}
}

func TestLoadMaxUploadBytes(t *testing.T) {
	clearEnv(t, "DRIVE_MAX_UPLOAD_BYTES")
	if got := Load().Google.MaxUploadBytes; got != DefaultMaxUploadBytes {
		t.Fatalf("unexpected default upload cap %d", got)
	}

	t.Setenv("DRIVE_MAX_UPLOAD_BYTES", "1048576")
	if got := Load().Google.MaxUploadBytes; got != 1<<20 {
		t.Fatalf("unexpected upload cap %d", got)
	}
}

func TestLoadMetricsPush(t *testing.T) {
	t.Setenv("METRICS_PUSH_ENABLED", "true")
	t.Setenv("METRICS_PUSH_EXPORTER", " PushGateway ")
	t.Setenv("METRICS_PUSH_INTERVAL", "15s")
	t.Setenv("METRICS_PUSH_TIMEOUT", "bogus")

	cfg := Load()
	if !cfg.MetricsPush.Enabled || cfg.MetricsPush.Exporter != "pushgateway" {
		t.Fatalf("unexpected push config: %+v", cfg.MetricsPush)
	}
	if cfg.MetricsPush.Interval != 15*time.Second || cfg.MetricsPush.Timeout != 5*time.Second {
		t.Fatalf("unexpected push durations: %+v", cfg.MetricsPush)
	}
}

func TestIsDevEnvironment(t *testing.T) {
	for _, env := range []string{"dev", "Development", " local ", "test"} {
		if !IsDevEnvironment(env) {
			t.Fatalf("expected %q to be a dev environment", env)
		}
	}
	if IsDevEnvironment("production") {
		t.Fatalf("production is not a dev environment")
	}
}
