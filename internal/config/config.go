package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

const (
	DefaultGoogleAuthURL        = "https://accounts.google.com/o/oauth2/v2/auth"
	DefaultGoogleTokenURL       = "https://oauth2.googleapis.com/token"
	DefaultGoogleRevokeURL      = "https://oauth2.googleapis.com/revoke"
	DefaultGoogleDriveAPIURL    = "https://www.googleapis.com/drive/v3/files"
	DefaultGoogleDriveUploadURL = "https://www.googleapis.com/upload/drive/v3/files"

	CallbackPath = "/wpmudev/v1/drive/callback"

	DefaultMaxUploadBytes = 32 << 20
)

// DefaultGoogleScopes is the scope set requested on every authorization.
var DefaultGoogleScopes = []string{
	"https://www.googleapis.com/auth/drive.file",
	"https://www.googleapis.com/auth/drive.readonly",
}

// Config holds application configuration.
type Config struct {
	AppName     string
	AppVersion  string
	Environment string
	HTTPAddr    string

	PublicBaseURL    string
	AdminRedirectURL string
	AppSecret        string
	AdminAPIKey      string

	Telemetry TelemetryConfig

	DBType            string
	DBHost            string
	DBPort            string
	DBName            string
	DBUser            string
	DBPassword        string
	DBSSLMode         string
	DBMaxIdleConn     int
	DBMaxOpenConn     int
	DBConnMaxLifetime int
	DBConnMaxIdleTime int

	Redis       RedisConfig
	Google      GoogleConfig
	Scan        ScanConfig
	RateLimit   RateLimitConfig
	MetricsPush MetricsPushConfig
}

// TelemetryConfig carries logging and OpenTelemetry export settings.
// Development environments default to console logs with export off.
type TelemetryConfig struct {
	LogLevel          string
	LogFormat         string
	OtelEnabled       bool
	OtelEndpoint      string
	OtelProtocol      string
	OtelSamplingRatio float64
}

type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

// Enabled reports whether a redis server is configured.
func (c RedisConfig) Enabled() bool {
	return strings.TrimSpace(c.Addr) != ""
}

type GoogleConfig struct {
	AuthURL           string
	TokenURL          string
	RevokeURL         string
	DriveAPIURL       string
	DriveUploadURL    string
	Scopes            []string
	HTTPClientTimeout time.Duration
	RevokeTimeout     time.Duration
	MaxUploadBytes    int64
}

// RateLimitConfig bounds per-IP calls to the OAuth start and callback routes.
type RateLimitConfig struct {
	Enabled    bool
	OAuthRate  float64 // tokens per second
	OAuthBurst int
}

// MetricsPushConfig controls the push exporter used by processes without a
// scrape endpoint. Exporter is "remote_write" or "pushgateway".
type MetricsPushConfig struct {
	Enabled  bool
	Exporter string
	Endpoint string
	Token    string
	Job      string
	Interval time.Duration
	Timeout  time.Duration
}

type ScanConfig struct {
	Enabled     bool
	RunInterval time.Duration
}

// Load loads configuration from environment variables and .env file.
func Load() Config {
	_ = godotenv.Load()

	scopes := parseList(getenv("GOOGLE_SCOPES", ""))
	if len(scopes) == 0 {
		scopes = append([]string(nil), DefaultGoogleScopes...)
	}

	cfg := Config{
		AppName:          getenv("APP_SERVICE", "drivebridge"),
		AppVersion:       getenv("APP_VERSION", "0.1.0"),
		Environment:      getenv("DEPLOYMENT_ENV", getenv("ENVIRONMENT", "development")),
		HTTPAddr:         getenv("HTTP_ADDR", ":8080"),
		PublicBaseURL:    strings.TrimRight(strings.TrimSpace(getenv("PUBLIC_BASE_URL", "http://localhost:8080")), "/"),
		AdminRedirectURL: strings.TrimSpace(getenv("ADMIN_REDIRECT_URL", "http://localhost:8080/admin/googledrive")),
		AppSecret:        strings.TrimSpace(getenv("APP_SECRET", "")),
		AdminAPIKey:      strings.TrimSpace(getenv("ADMIN_API_KEY", "")),

		DBType:            getenv("DATABASE_TYPE", "postgres"),
		DBHost:            getenv("DATABASE_HOST", "localhost"),
		DBPort:            getenv("DATABASE_PORT", "5432"),
		DBName:            getenv("DATABASE_NAME", "drivebridge"),
		DBUser:            getenv("DATABASE_USER", "postgres"),
		DBPassword:        getenv("DATABASE_PASSWORD", ""),
		DBSSLMode:         getenv("DATABASE_SSLMODE", "disable"),
		DBMaxIdleConn:     getenvInt("DATABASE_MAX_IDLE_CONN", 5),
		DBMaxOpenConn:     getenvInt("DATABASE_MAX_OPEN_CONN", 20),
		DBConnMaxLifetime: getenvInt("DATABASE_CONN_MAX_LIFETIME", 300),
		DBConnMaxIdleTime: getenvInt("DATABASE_CONN_MAX_IDLE_TIME", 60),

		Redis: RedisConfig{
			Addr:     strings.TrimSpace(getenv("REDIS_ADDR", "")),
			Password: strings.TrimSpace(getenv("REDIS_PASSWORD", "")),
			DB:       getenvInt("REDIS_DB", 0),
		},
		Google: GoogleConfig{
			AuthURL:           getenv("GOOGLE_AUTH_URL", DefaultGoogleAuthURL),
			TokenURL:          getenv("GOOGLE_TOKEN_URL", DefaultGoogleTokenURL),
			RevokeURL:         getenv("GOOGLE_REVOKE_URL", DefaultGoogleRevokeURL),
			DriveAPIURL:       getenv("GOOGLE_DRIVE_API_URL", DefaultGoogleDriveAPIURL),
			DriveUploadURL:    getenv("GOOGLE_DRIVE_UPLOAD_URL", DefaultGoogleDriveUploadURL),
			Scopes:            scopes,
			HTTPClientTimeout: getenvDuration("HTTP_CLIENT_TIMEOUT", 10*time.Second),
			RevokeTimeout:     getenvDuration("REVOKE_TIMEOUT", 30*time.Second),
			MaxUploadBytes:    int64(getenvInt("DRIVE_MAX_UPLOAD_BYTES", DefaultMaxUploadBytes)),
		},
		Scan: ScanConfig{
			Enabled:     getenvBool("SCAN_ENABLED", true),
			RunInterval: getenvDuration("SCAN_RUN_INTERVAL", time.Minute),
		},
		RateLimit: RateLimitConfig{
			Enabled:    getenvBool("RATE_LIMIT_ENABLED", true),
			OAuthRate:  getenvFloat("RATE_LIMIT_OAUTH_RATE", 0.2),
			OAuthBurst: getenvInt("RATE_LIMIT_OAUTH_BURST", 10),
		},
		MetricsPush: MetricsPushConfig{
			Enabled:  getenvBool("METRICS_PUSH_ENABLED", false),
			Exporter: strings.ToLower(strings.TrimSpace(getenv("METRICS_PUSH_EXPORTER", "remote_write"))),
			Endpoint: strings.TrimSpace(getenv("METRICS_PUSH_ENDPOINT", "")),
			Token:    strings.TrimSpace(getenv("METRICS_PUSH_TOKEN", "")),
			Job:      strings.TrimSpace(getenv("METRICS_PUSH_JOB", "drivebridge-scheduler")),
			Interval: getenvDuration("METRICS_PUSH_INTERVAL", 30*time.Second),
			Timeout:  getenvDuration("METRICS_PUSH_TIMEOUT", 5*time.Second),
		},
	}

	cfg.Telemetry = loadTelemetry(cfg.Environment)
	return cfg
}

func loadTelemetry(environment string) TelemetryConfig {
	dev := IsDevEnvironment(environment)
	defaultFormat := "json"
	if dev {
		defaultFormat = "console"
	}

	protocol := strings.ToLower(strings.TrimSpace(getenv("OTEL_EXPORTER_OTLP_PROTOCOL", "grpc")))
	if traces := strings.TrimSpace(os.Getenv("OTEL_EXPORTER_OTLP_TRACES_PROTOCOL")); traces != "" {
		protocol = strings.ToLower(traces)
	}

	return TelemetryConfig{
		LogLevel:          strings.ToLower(strings.TrimSpace(getenv("LOG_LEVEL", "info"))),
		LogFormat:         strings.ToLower(strings.TrimSpace(getenv("LOG_FORMAT", defaultFormat))),
		OtelEnabled:       getenvBool("OTEL_ENABLED", !dev),
		OtelEndpoint:      strings.TrimSpace(getenv("OTEL_EXPORTER_OTLP_ENDPOINT", getenv("OTLP_ENDPOINT", "localhost:4317"))),
		OtelProtocol:      protocol,
		OtelSamplingRatio: getenvFloat("OTEL_SAMPLING_RATIO", 0.1),
	}
}

// IsDevEnvironment reports whether env names a local or test deployment.
func IsDevEnvironment(env string) bool {
	switch strings.ToLower(strings.TrimSpace(env)) {
	case "dev", "development", "local", "test":
		return true
	default:
		return false
	}
}

// RedirectURI is the fixed OAuth callback registered with Google.
func (c Config) RedirectURI() string {
	return c.PublicBaseURL + CallbackPath
}

func (c Config) IsProduction() bool {
	return strings.EqualFold(strings.TrimSpace(c.Environment), "production")
}

func getenv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getenvBool(key string, def bool) bool {
	value := strings.ToLower(strings.TrimSpace(os.Getenv(key)))
	if value == "" {
		return def
	}
	switch value {
	case "1", "true", "yes", "y", "on":
		return true
	case "0", "false", "no", "n", "off":
		return false
	default:
		return def
	}
}

func getenvInt(key string, def int) int {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return def
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return def
	}
	return parsed
}

func getenvFloat(key string, def float64) float64 {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return def
	}
	parsed, err := strconv.ParseFloat(value, 64)
	if err != nil || parsed <= 0 {
		return def
	}
	return parsed
}

func getenvDuration(key string, def time.Duration) time.Duration {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return def
	}
	parsed, err := time.ParseDuration(value)
	if err != nil || parsed <= 0 {
		return def
	}
	return parsed
}

func parseList(raw string) []string {
	parts := strings.FieldsFunc(raw, func(r rune) bool {
		return r == ',' || r == ' '
	})
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		out = append(out, p)
	}
	return out
}
