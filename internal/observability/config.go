package observability

import (
	"strings"

	"github.com/smallbiznis/drivebridge/internal/config"
)

// Config is the observability view of the application config.
type Config struct {
	ServiceName string
	Environment string
	Version     string

	LogLevel  string
	LogFormat string

	OtelEnabled          bool
	OtelExporterEndpoint string
	OtelExporterProtocol string
	OtelSamplingRatio    float64
}

func LoadConfig(cfg config.Config) Config {
	serviceName := strings.TrimSpace(cfg.AppName)
	if serviceName == "" {
		serviceName = "drivebridge"
	}
	logLevel := strings.TrimSpace(cfg.Telemetry.LogLevel)
	if logLevel == "" {
		logLevel = "info"
	}
	protocol := strings.TrimSpace(cfg.Telemetry.OtelProtocol)
	if protocol == "" {
		protocol = "grpc"
	}

	return Config{
		ServiceName:          serviceName,
		Environment:          strings.TrimSpace(cfg.Environment),
		Version:              strings.TrimSpace(cfg.AppVersion),
		LogLevel:             logLevel,
		LogFormat:            cfg.Telemetry.LogFormat,
		OtelEnabled:          cfg.Telemetry.OtelEnabled,
		OtelExporterEndpoint: cfg.Telemetry.OtelEndpoint,
		OtelExporterProtocol: protocol,
		OtelSamplingRatio:    cfg.Telemetry.OtelSamplingRatio,
	}
}

// Debug enables verbose request logging and error stacks.
func (c Config) Debug() bool {
	if strings.EqualFold(strings.TrimSpace(c.LogLevel), "debug") {
		return true
	}
	return config.IsDevEnvironment(c.Environment)
}
