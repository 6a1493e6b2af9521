package googleapi

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/smallbiznis/drivebridge/internal/observability/tracing"
)

var (
	ErrTransport = errors.New("transport_error")
	ErrProvider  = errors.New("provider_error")
)

// TransportError means the remote call never produced an HTTP response.
type TransportError struct {
	Op  string
	Err error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("%s: %s", e.Op, tracing.SafeError(e.Err))
}

func (e *TransportError) Unwrap() []error {
	return []error{ErrTransport, e.Err}
}

// ProviderError is a decoded error response. Message is safe to show to the
// administrator verbatim.
type ProviderError struct {
	Op         string
	StatusCode int
	Code       string
	Message    string
}

func (e *ProviderError) Error() string {
	return fmt.Sprintf("%s: status %d: %s", e.Op, e.StatusCode, e.Message)
}

func (e *ProviderError) Is(target error) bool {
	return target == ErrProvider
}

// Message returns the text the route layer shows for err. Provider errors
// yield the provider's own message.
func Message(err error) string {
	var perr *ProviderError
	if errors.As(err, &perr) {
		return perr.Message
	}
	var terr *TransportError
	if errors.As(err, &terr) {
		return tracing.SafeError(terr.Err).Error()
	}
	if err == nil {
		return ""
	}
	return err.Error()
}

// Outcome is a low-cardinality label for metrics.
func Outcome(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, ErrTransport):
		return "transport_error"
	case errors.Is(err, ErrProvider):
		return "provider_error"
	default:
		return "error"
	}
}

func statusText(code int) string {
	if text := http.StatusText(code); text != "" {
		return text
	}
	return fmt.Sprintf("HTTP %d", code)
}
