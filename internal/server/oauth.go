package server

import (
	"errors"
	"net/http"
	"net/url"
	"strings"

	"github.com/gin-gonic/gin"
	auditdomain "github.com/smallbiznis/drivebridge/internal/audit/domain"
	"github.com/smallbiznis/drivebridge/internal/googleapi"
	googleauthdomain "github.com/smallbiznis/drivebridge/internal/googleauth/domain"
	"github.com/smallbiznis/drivebridge/internal/observability/logger"
	"go.uber.org/zap"
)

const (
	callbackResultParam  = "google_auth"
	callbackMessageParam = "error_message"
)

// DriveCallback finishes the authorization code flow and sends the browser
// back to the admin page with the outcome in the query string.
func (s *Server) DriveCallback(c *gin.Context) {
	ctx := c.Request.Context()
	log := logger.FromContext(ctx)

	if providerErr := strings.TrimSpace(c.Query("error")); providerErr != "" {
		log.Info("oauth callback denied by provider", zap.String("provider_error", providerErr))
		s.redirectCallback(c, providerErr)
		return
	}

	err := s.tokenSvc.ExchangeCode(ctx, strings.TrimSpace(c.Query("code")), strings.TrimSpace(c.Query("state")))
	if err != nil {
		log.Warn("oauth callback failed", zap.String("reason", callbackReason(err)))
		s.redirectCallback(c, callbackMessage(err))
		return
	}

	s.recordAudit(c, auditdomain.Entry{Action: auditdomain.ActionDriveConnected, TargetType: auditTargetDrive})
	s.redirectCallback(c, "")
}

// redirectCallback reports success when message is empty.
func (s *Server) redirectCallback(c *gin.Context, message string) {
	target, err := url.Parse(s.cfg.AdminRedirectURL)
	if err != nil || s.cfg.AdminRedirectURL == "" {
		target = &url.URL{Path: "/"}
	}

	query := target.Query()
	if message == "" {
		query.Set(callbackResultParam, "success")
	} else {
		query.Set(callbackResultParam, "error")
		query.Set(callbackMessageParam, message)
	}
	target.RawQuery = query.Encode()

	c.Redirect(http.StatusFound, target.String())
}

func callbackMessage(err error) string {
	switch {
	case errors.Is(err, googleauthdomain.ErrInvalidState):
		return "Invalid state parameter"
	case errors.Is(err, googleauthdomain.ErrMissingCode):
		return "No authorization code received"
	case errors.Is(err, googleauthdomain.ErrMissingCredentials):
		return "Please save your Google Drive credentials first"
	case errors.Is(err, googleapi.ErrProvider), errors.Is(err, googleapi.ErrTransport):
		return googleapi.Message(err)
	default:
		return "Authentication failed"
	}
}

func callbackReason(err error) string {
	switch {
	case errors.Is(err, googleauthdomain.ErrInvalidState),
		errors.Is(err, googleauthdomain.ErrMissingCode),
		errors.Is(err, googleauthdomain.ErrMissingCredentials):
		return err.Error()
	default:
		return googleapi.Outcome(err)
	}
}
