package server

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	apikeydomain "github.com/smallbiznis/drivebridge/internal/apikey/domain"
	auditdomain "github.com/smallbiznis/drivebridge/internal/audit/domain"
	"github.com/smallbiznis/drivebridge/internal/authorization"
	drivedomain "github.com/smallbiznis/drivebridge/internal/drive/domain"
	"github.com/smallbiznis/drivebridge/internal/googleapi"
	googleauthdomain "github.com/smallbiznis/drivebridge/internal/googleauth/domain"
	"github.com/smallbiznis/drivebridge/internal/nonce"
	postscandomain "github.com/smallbiznis/drivebridge/internal/postscan/domain"
)

type ValidationError struct {
	Field   string `json:"field"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

type ValidationErrors struct {
	Errors []ValidationError `json:"errors"`
}

func (v ValidationErrors) Error() string {
	return "validation error"
}

type errorPayload struct {
	Type    string            `json:"type"`
	Code    string            `json:"code"`
	Message string            `json:"message"`
	Errors  []ValidationError `json:"errors,omitempty"`
}

type errorResponse struct {
	Error errorPayload `json:"error"`
}

var (
	ErrUnauthorized   = errors.New("unauthorized")
	ErrForbidden      = errors.New("forbidden")
	ErrNotFound       = errors.New("not_found")
	ErrInvalidRequest = errors.New("invalid_request")
	ErrRateLimited    = errors.New("rate_limited")
)

// driveFailure tags a remote Drive failure with the route's error code.
type driveFailure struct {
	code string
	err  error
}

func (e *driveFailure) Error() string { return e.code + ": " + e.err.Error() }

func (e *driveFailure) Unwrap() error { return e.err }

// remoteFailure wraps transport and provider errors with code. Local errors
// pass through so they keep their own mapping.
func remoteFailure(code string, err error) error {
	if errors.Is(err, googleapi.ErrProvider) || errors.Is(err, googleapi.ErrTransport) {
		return &driveFailure{code: code, err: err}
	}
	return err
}

func ErrorHandlingMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		if c.Writer.Written() {
			return
		}

		lastErr := c.Errors.Last()
		if lastErr == nil {
			return
		}

		status, payload := mapError(lastErr.Err)
		c.Header("Content-Type", "application/json")
		c.AbortWithStatusJSON(status, errorResponse{Error: payload})
	}
}

func AbortWithError(c *gin.Context, err error) {
	if err == nil {
		return
	}
	_ = c.Error(err)
	c.Abort()
}

func invalidRequestError() error {
	return newValidationError("request", "invalid_request", "invalid request")
}

func newValidationError(field, code, message string) error {
	return &ValidationErrors{
		Errors: []ValidationError{
			{
				Field:   field,
				Code:    code,
				Message: message,
			},
		},
	}
}

func mapError(err error) (int, errorPayload) {
	if err == nil {
		return http.StatusInternalServerError, errorPayload{
			Type:    "internal_error",
			Code:    "internal_error",
			Message: "internal server error",
		}
	}

	var vErr *ValidationErrors
	if errors.As(err, &vErr) && vErr != nil {
		return http.StatusBadRequest, errorPayload{
			Type:    "validation_error",
			Code:    "invalid_request",
			Message: "validation error",
			Errors:  vErr.Errors,
		}
	}

	var remote *driveFailure
	if errors.As(err, &remote) {
		return http.StatusInternalServerError, errorPayload{
			Type:    "api_error",
			Code:    remote.code,
			Message: googleapi.Message(remote.err),
		}
	}

	switch {
	case errors.Is(err, nonce.ErrSecurityCheckFailed):
		return http.StatusForbidden, errorPayload{
			Type:    "forbidden",
			Code:    "invalid_nonce",
			Message: "Security check failed. Please refresh the page and try again.",
		}
	case errors.Is(err, googleauthdomain.ErrInvalidInput):
		return http.StatusBadRequest, errorPayload{
			Type:    "validation_error",
			Code:    "missing_credentials",
			Message: "Client ID and Client Secret are required",
		}
	case errors.Is(err, googleauthdomain.ErrMissingCredentials):
		return http.StatusBadRequest, errorPayload{
			Type:    "validation_error",
			Code:    "no_credentials",
			Message: "Please save your Google Drive credentials first",
		}
	case errors.Is(err, googleauthdomain.ErrUnauthenticated):
		return http.StatusUnauthorized, errorPayload{
			Type:    "unauthorized",
			Code:    "no_access_token",
			Message: "Not authenticated with Google Drive",
		}
	case errors.Is(err, googleauthdomain.ErrNotConnected):
		return http.StatusBadRequest, errorPayload{
			Type:    "validation_error",
			Code:    "no_tokens",
			Message: "No active connection found",
		}
	case errors.Is(err, drivedomain.ErrNoFile):
		return http.StatusBadRequest, errorPayload{
			Type:    "validation_error",
			Code:    "no_file",
			Message: "No file uploaded",
		}
	case errors.Is(err, drivedomain.ErrFileTooLarge):
		return http.StatusRequestEntityTooLarge, errorPayload{
			Type:    "validation_error",
			Code:    "file_too_large",
			Message: "Uploaded file exceeds the size limit",
		}
	case errors.Is(err, drivedomain.ErrInvalidInput):
		return http.StatusBadRequest, errorPayload{
			Type:    "validation_error",
			Code:    "invalid_request",
			Message: "invalid request",
		}
	case errors.Is(err, auditdomain.ErrInvalidPageToken):
		return http.StatusBadRequest, errorPayload{
			Type:    "validation_error",
			Code:    "invalid_page_token",
			Message: "invalid page token",
		}
	case errors.Is(err, auditdomain.ErrInvalidTimeRange):
		return http.StatusBadRequest, errorPayload{
			Type:    "validation_error",
			Code:    "invalid_time_range",
			Message: "start_at must not be after end_at",
		}
	case errors.Is(err, postscandomain.ErrInvalidInput):
		return http.StatusBadRequest, errorPayload{
			Type:    "validation_error",
			Code:    "invalid_post_types",
			Message: "At least one post type is required",
		}
	case errors.Is(err, postscandomain.ErrScanLocked):
		return http.StatusConflict, errorPayload{
			Type:    "conflict",
			Code:    "scan_locked",
			Message: "A batch is already being processed",
		}
	case errors.Is(err, apikeydomain.ErrInvalidName),
		errors.Is(err, apikeydomain.ErrInvalidRole),
		errors.Is(err, apikeydomain.ErrInvalidKeyID):
		return http.StatusBadRequest, errorPayload{
			Type:    "validation_error",
			Code:    err.Error(),
			Message: "invalid value",
		}
	case errors.Is(err, ErrUnauthorized),
		errors.Is(err, apikeydomain.ErrUnauthorized):
		return http.StatusUnauthorized, errorPayload{
			Type:    "unauthorized",
			Code:    "unauthorized",
			Message: "unauthorized",
		}
	case errors.Is(err, ErrForbidden),
		errors.Is(err, authorization.ErrForbidden):
		return http.StatusForbidden, errorPayload{
			Type:    "forbidden",
			Code:    "forbidden",
			Message: "forbidden",
		}
	case errors.Is(err, ErrNotFound),
		errors.Is(err, apikeydomain.ErrNotFound):
		return http.StatusNotFound, errorPayload{
			Type:    "not_found",
			Code:    "not_found",
			Message: "not found",
		}
	case errors.Is(err, ErrRateLimited):
		return http.StatusTooManyRequests, errorPayload{
			Type:    "rate_limited",
			Code:    "rate_limited",
			Message: "too many requests",
		}
	case errors.Is(err, ErrInvalidRequest):
		return http.StatusBadRequest, errorPayload{
			Type:    "validation_error",
			Code:    "invalid_request",
			Message: "invalid request",
		}
	default:
		return http.StatusInternalServerError, errorPayload{
			Type:    "internal_error",
			Code:    "internal_error",
			Message: "internal server error",
		}
	}
}

// classifyErrorForLog feeds the request logger's error_type/error_code fields.
func classifyErrorForLog(err error) (string, string) {
	switch {
	case errors.Is(err, googleauthdomain.ErrInvalidState),
		errors.Is(err, googleauthdomain.ErrMissingCode):
		return "oauth_error", err.Error()
	}
	_, payload := mapError(err)
	return payload.Type, payload.Code
}
