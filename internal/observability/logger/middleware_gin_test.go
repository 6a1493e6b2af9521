package logger

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func newObservedRouter(t *testing.T) (*gin.Engine, *observer.ObservedLogs) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	core, logs := observer.New(zapcore.DebugLevel)
	restore := zap.ReplaceGlobals(zap.New(core))
	t.Cleanup(restore)

	r := gin.New()
	r.Use(GinMiddleware(MiddlewareConfig{
		ErrorClassifier: func(error) (string, string) { return "oauth_error", "invalid_state" },
	}))
	return r, logs
}

func TestGinMiddlewareLogsRequestWithoutQuery(t *testing.T) {
	r, logs := newObservedRouter(t)
	r.GET("/wpmudev/v1/drive/files", func(c *gin.Context) { c.Status(http.StatusOK) })

	req := httptest.NewRequest(http.MethodGet, "/wpmudev/v1/drive/files?page_token=abc", nil)
	req.Header.Set("X-Request-Id", "req-123")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	assert.Equal(t, "req-123", w.Header().Get("X-Request-Id"))
	entries := logs.FilterMessage("http_request").All()
	require.Len(t, entries, 1)
	assert.Equal(t, zapcore.InfoLevel, entries[0].Level)

	fields := entries[0].ContextMap()
	assert.Equal(t, "/wpmudev/v1/drive/files", fields["path"])
	assert.Equal(t, "req-123", fields["request_id"])
	assert.NotContains(t, fields, "error_type")
}

func TestGinMiddlewareGeneratesRequestID(t *testing.T) {
	r, _ := newObservedRouter(t)
	r.GET("/health", func(c *gin.Context) { c.Status(http.StatusOK) })

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health", nil))

	assert.NotEmpty(t, w.Header().Get("X-Request-Id"))
}

func TestGinMiddlewareCallbackFailureIsWarning(t *testing.T) {
	r, logs := newObservedRouter(t)
	r.GET("/wpmudev/v1/drive/callback", func(c *gin.Context) {
		_ = c.Error(errors.New("state mismatch"))
		c.Redirect(http.StatusFound, "/wp-admin/admin.php?page=drive&google_auth=error")
	})

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/wpmudev/v1/drive/callback?code=secret&state=x", nil))

	entries := logs.FilterMessage("http_request").All()
	require.Len(t, entries, 1)
	assert.Equal(t, zapcore.WarnLevel, entries[0].Level)

	fields := entries[0].ContextMap()
	assert.Equal(t, "error", fields["oauth_result"])
	assert.Equal(t, "oauth_error", fields["error_type"])
	assert.Equal(t, "invalid_state", fields["error_code"])
}

func TestRequestEntryLevel(t *testing.T) {
	cases := []struct {
		entry requestEntry
		want  zapcore.Level
	}{
		{requestEntry{route: "/metrics", status: 200}, zapcore.DebugLevel},
		{requestEntry{route: "/health", status: 200}, zapcore.DebugLevel},
		{requestEntry{route: "/metrics", status: 503}, zapcore.ErrorLevel},
		{requestEntry{route: "/wpmudev/v1/drive/callback", status: 302, oauthResult: "success"}, zapcore.InfoLevel},
		{requestEntry{route: "/wpmudev/v1/drive/callback", status: 302, oauthResult: "error"}, zapcore.WarnLevel},
		{requestEntry{route: "/wpmudev/v1/drive/upload", status: 400}, zapcore.InfoLevel},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, tc.entry.level(), tc.entry.route)
	}
}
