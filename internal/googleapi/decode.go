package googleapi

import (
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/tidwall/gjson"
)

// MaxBodyBytes caps how much of a response body is read.
const MaxBodyBytes = 8 << 20

// ReadBody reads at most MaxBodyBytes of resp.Body and closes it.
func ReadBody(op string, resp *http.Response) ([]byte, error) {
	defer resp.Body.Close()
	body, err := io.ReadAll(io.LimitReader(resp.Body, MaxBodyBytes))
	if err != nil {
		return nil, &TransportError{Op: op, Err: fmt.Errorf("read response: %w", err)}
	}
	return body, nil
}

// DecodeError normalizes the two error shapes Google returns:
//
//	{"error": {"code": 404, "message": "File not found", "status": "NOT_FOUND"}}
//	{"error": "invalid_grant", "error_description": "Bad Request"}
func DecodeError(op string, status int, body []byte) *ProviderError {
	perr := &ProviderError{Op: op, StatusCode: status}

	if gjson.ValidBytes(body) {
		errField := gjson.GetBytes(body, "error")
		switch {
		case errField.IsObject():
			perr.Message = strings.TrimSpace(errField.Get("message").String())
			perr.Code = strings.TrimSpace(errField.Get("status").String())
			if perr.Code == "" {
				perr.Code = strings.TrimSpace(errField.Get("errors.0.reason").String())
			}
		case errField.Exists():
			perr.Code = strings.TrimSpace(errField.String())
			perr.Message = strings.TrimSpace(gjson.GetBytes(body, "error_description").String())
			if perr.Message == "" {
				perr.Message = perr.Code
			}
		}
	}

	if perr.Message == "" {
		perr.Message = statusText(status)
	}
	return perr
}

// IsSuccess reports a 2xx status.
func IsSuccess(status int) bool {
	return status >= 200 && status < 300
}
