package googleapi

import (
	"net/http"
	"time"

	"github.com/smallbiznis/drivebridge/internal/observability/tracing"
)

// NewHTTPClient returns a traced client with a hard timeout. Every outbound
// Google call goes through one of these.
func NewHTTPClient(timeout time.Duration) *http.Client {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return tracing.WrapHTTPClient(&http.Client{Timeout: timeout})
}

// Do sends req and returns the status and body. A failure before a response
// arrives is a TransportError.
func Do(client *http.Client, op string, req *http.Request) (int, []byte, error) {
	resp, err := client.Do(req)
	if err != nil {
		return 0, nil, &TransportError{Op: op, Err: err}
	}
	body, err := ReadBody(op, resp)
	if err != nil {
		return resp.StatusCode, nil, err
	}
	return resp.StatusCode, body, nil
}
