package googleapi

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecodeErrorShapes(t *testing.T) {
	cases := []struct {
		name    string
		status  int
		body    string
		code    string
		message string
	}{
		{
			name:    "drive",
			status:  404,
			body:    `{"error":{"code":404,"message":"File not found: 1AbC.","errors":[{"reason":"notFound"}],"status":"NOT_FOUND"}}`,
			code:    "NOT_FOUND",
			message: "File not found: 1AbC.",
		},
		{
			name:    "drive_without_status",
			status:  403,
			body:    `{"error":{"code":403,"message":"Insufficient Permission","errors":[{"reason":"insufficientPermissions"}]}}`,
			code:    "insufficientPermissions",
			message: "Insufficient Permission",
		},
		{
			name:    "token_endpoint",
			status:  400,
			body:    `{"error":"invalid_grant","error_description":"Bad Request"}`,
			code:    "invalid_grant",
			message: "Bad Request",
		},
		{
			name:    "token_without_description",
			status:  401,
			body:    `{"error":"invalid_client"}`,
			code:    "invalid_client",
			message: "invalid_client",
		},
		{
			name:    "html",
			status:  502,
			body:    `<html>Bad Gateway</html>`,
			message: "Bad Gateway",
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			perr := DecodeError("op", tc.status, []byte(tc.body))
			assert.Equal(t, tc.code, perr.Code)
			assert.Equal(t, tc.message, perr.Message)
			assert.Equal(t, tc.status, perr.StatusCode)
			assert.True(t, errors.Is(perr, ErrProvider))
		})
	}
}

func TestTransportErrorUnwrap(t *testing.T) {
	err := fmt.Errorf("refresh: %w", &TransportError{Op: "token.refresh", Err: context.DeadlineExceeded})
	assert.True(t, errors.Is(err, ErrTransport))
	assert.True(t, errors.Is(err, context.DeadlineExceeded))
	assert.False(t, errors.Is(err, ErrProvider))
	assert.Equal(t, "transport_error", Outcome(err))
}

func TestMessageRedactsTokens(t *testing.T) {
	err := &TransportError{Op: "drive.list", Err: errors.New(`Get "https://x/files?access_token=ya29.secret": EOF`)}
	assert.NotContains(t, Message(err), "ya29.secret")
	assert.NotContains(t, err.Error(), "ya29.secret")

	perr := &ProviderError{Op: "drive.list", StatusCode: 404, Message: "File not found"}
	assert.Equal(t, "File not found", Message(fmt.Errorf("wrapped: %w", perr)))
}

func TestDoDistinguishesTransportAndStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
		_, _ = w.Write([]byte(`{"error":{"message":"short and stout"}}`))
	}))
	defer srv.Close()

	client := NewHTTPClient(time.Second)
	req, err := http.NewRequest(http.MethodGet, srv.URL, nil)
	require.NoError(t, err)

	status, body, err := Do(client, "test", req)
	require.NoError(t, err)
	assert.Equal(t, http.StatusTeapot, status)
	assert.True(t, strings.Contains(string(body), "short and stout"))

	srv.Close()
	req, err = http.NewRequest(http.MethodGet, srv.URL, nil)
	require.NoError(t, err)
	_, _, err = Do(client, "test", req)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrTransport))
}
