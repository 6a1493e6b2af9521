package logger

import (
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	obscontext "github.com/smallbiznis/drivebridge/internal/observability/context"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

const requestIDHeader = "X-Request-Id"

// MiddlewareConfig controls request logging behavior.
type MiddlewareConfig struct {
	Debug           bool
	ErrorClassifier func(err error) (string, string)
}

// GinMiddleware logs one http_request entry per request. The query string is
// never logged because the OAuth callback carries the authorization code in it.
func GinMiddleware(cfg MiddlewareConfig) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		requestID := ensureRequestID(c)

		ctx := obscontext.WithRequestID(c.Request.Context(), requestID)
		ctx = obscontext.WithClientIP(ctx, c.ClientIP())
		c.Request = c.Request.WithContext(ctx)

		c.Next()

		entry := requestEntry{
			route:  routeOf(c),
			status: c.Writer.Status(),
		}
		fields := []zap.Field{
			zap.String("method", c.Request.Method),
			zap.String("path", c.Request.URL.Path),
			zap.String("route", entry.route),
			zap.Int("status", entry.status),
			zap.Int64("duration_ms", time.Since(start).Milliseconds()),
			zap.Int64("bytes_in", max(c.Request.ContentLength, 0)),
			zap.Int("bytes_out", max(c.Writer.Size(), 0)),
		}
		if scanID := strings.TrimSpace(c.GetString("scan_id")); scanID != "" {
			fields = append(fields, zap.String("scan_id", scanID))
		}
		if entry.isCallback() {
			entry.oauthResult = oauthResult(c.Writer.Header().Get("Location"))
			fields = append(fields, zap.String("oauth_result", entry.oauthResult))
		}
		if lastErr := c.Errors.Last(); lastErr != nil {
			var errorCode string
			if cfg.ErrorClassifier != nil {
				entry.errorType, errorCode = cfg.ErrorClassifier(lastErr.Err)
			}
			fields = append(fields,
				zap.String("error_type", entry.errorType),
				zap.String("error_code", errorCode),
			)
			if cfg.Debug {
				fields = append(fields, zap.Stack("stack"))
			}
		}

		if ce := FromContext(c.Request.Context()).Check(entry.level(), "http_request"); ce != nil {
			ce.Write(fields...)
		}
	}
}

type requestEntry struct {
	route       string
	status      int
	errorType   string
	oauthResult string
}

func (e requestEntry) isCallback() bool {
	return strings.HasSuffix(e.route, "/drive/callback")
}

func (e requestEntry) level() zapcore.Level {
	switch {
	case e.status >= http.StatusInternalServerError:
		return zap.ErrorLevel
	case e.route == "/metrics" || e.route == "/health":
		return zap.DebugLevel
	case e.isCallback() && e.oauthResult == "error":
		// Browsers replay stale callback URLs.
		return zap.WarnLevel
	default:
		return zap.InfoLevel
	}
}

func routeOf(c *gin.Context) string {
	if route := strings.TrimSpace(c.FullPath()); route != "" {
		return route
	}
	return "unknown"
}

// oauthResult reads google_auth from the admin redirect the callback issues.
func oauthResult(location string) string {
	parsed, err := url.Parse(location)
	if err != nil || location == "" {
		return ""
	}
	return parsed.Query().Get("google_auth")
}

func ensureRequestID(c *gin.Context) string {
	requestID := strings.TrimSpace(c.GetHeader(requestIDHeader))
	if requestID == "" {
		requestID = strings.TrimSpace(c.GetString("request_id"))
	}
	if requestID == "" {
		requestID = uuid.NewString()
	}

	c.Set("request_id", requestID)
	c.Header(requestIDHeader, requestID)
	return requestID
}
