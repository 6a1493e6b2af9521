package observability

import (
	"testing"

	"github.com/smallbiznis/drivebridge/internal/config"
)

func TestLoadConfigDefaults(t *testing.T) {
	cfg := LoadConfig(config.Config{Environment: "production"})
	if cfg.ServiceName != "drivebridge" {
		t.Fatalf("expected default service name, got %q", cfg.ServiceName)
	}
	if cfg.LogLevel != "info" || cfg.OtelExporterProtocol != "grpc" {
		t.Fatalf("unexpected defaults: %+v", cfg)
	}
	if cfg.Debug() {
		t.Fatalf("expected production to be non-debug")
	}
}

func TestLoadConfigCopiesTelemetry(t *testing.T) {
	cfg := LoadConfig(config.Config{
		AppName:     "drivebridge-api",
		AppVersion:  "1.2.3",
		Environment: "staging",
		Telemetry: config.TelemetryConfig{
			LogLevel:          "debug",
			LogFormat:         "console",
			OtelEnabled:       true,
			OtelEndpoint:      "collector:4318",
			OtelProtocol:      "http/protobuf",
			OtelSamplingRatio: 0.5,
		},
	})
	if cfg.ServiceName != "drivebridge-api" || cfg.Version != "1.2.3" {
		t.Fatalf("unexpected identity: %+v", cfg)
	}
	if !cfg.OtelEnabled || cfg.OtelExporterEndpoint != "collector:4318" || cfg.OtelExporterProtocol != "http/protobuf" {
		t.Fatalf("unexpected otel settings: %+v", cfg)
	}
	if !cfg.Debug() {
		t.Fatalf("expected debug log level to enable debug")
	}
}

func TestDebugInDevelopment(t *testing.T) {
	if !(Config{Environment: "development"}).Debug() {
		t.Fatalf("expected debug in development")
	}
}
