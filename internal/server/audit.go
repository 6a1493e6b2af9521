package server

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	auditdomain "github.com/smallbiznis/drivebridge/internal/audit/domain"
	"github.com/smallbiznis/drivebridge/internal/observability/logger"
	"go.uber.org/zap"
)

const (
	auditTargetDrive  = "drive_connection"
	auditTargetFile   = "drive_file"
	auditTargetAPIKey = "api_key"
	auditTargetScan   = "posts_scan"
)

// recordAudit writes an audit entry without failing the request.
func (s *Server) recordAudit(c *gin.Context, entry auditdomain.Entry) {
	if s.auditSvc == nil {
		return
	}
	ctx := c.Request.Context()
	if err := s.auditSvc.Record(ctx, entry); err != nil {
		logger.FromContext(ctx).Warn("audit record failed", zap.String("action", entry.Action), zap.Error(err))
	}
}

func (s *Server) ListAuditLogs(c *gin.Context) {
	if s.auditSvc == nil {
		AbortWithError(c, ErrNotFound)
		return
	}

	req := auditdomain.ListAuditLogRequest{
		Action:     strings.TrimSpace(c.Query("action")),
		TargetType: strings.TrimSpace(c.Query("target_type")),
		ActorType:  strings.TrimSpace(c.Query("actor_type")),
		PageToken:  strings.TrimSpace(c.Query("page_token")),
	}
	if raw := strings.TrimSpace(c.Query("page_size")); raw != "" {
		size, err := strconv.Atoi(raw)
		if err != nil {
			AbortWithError(c, newValidationError("page_size", "invalid_integer", "page_size must be an integer"))
			return
		}
		req.PageSize = size
	}

	var err error
	if req.StartAt, err = parseTimeQuery(c, "start_at"); err != nil {
		AbortWithError(c, err)
		return
	}
	if req.EndAt, err = parseTimeQuery(c, "end_at"); err != nil {
		AbortWithError(c, err)
		return
	}

	resp, err := s.auditSvc.List(c.Request.Context(), req)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

func parseTimeQuery(c *gin.Context, name string) (*time.Time, error) {
	raw := strings.TrimSpace(c.Query(name))
	if raw == "" {
		return nil, nil
	}
	parsed, err := time.Parse(time.RFC3339, raw)
	if err != nil {
		return nil, newValidationError(name, "invalid_time", name+" must be an RFC 3339 timestamp")
	}
	return &parsed, nil
}
