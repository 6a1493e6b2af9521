package server

import (
	"errors"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"
	auditdomain "github.com/smallbiznis/drivebridge/internal/audit/domain"
)

type startScanRequest struct {
	PostTypes []string `json:"post_types" form:"post_types"`
}

// StartPostsScan starts or restarts the scan. Omitted post types fall back to
// the configured defaults.
func (s *Server) StartPostsScan(c *gin.Context) {
	var req startScanRequest
	if err := c.ShouldBind(&req); err != nil && !errors.Is(err, io.EOF) {
		AbortWithError(c, invalidRequestError())
		return
	}

	postTypes := req.PostTypes
	if postTypes == nil {
		postTypes = s.maintenance.Get().DefaultPostTypes
	}

	progress, err := s.scanSvc.StartScan(c.Request.Context(), postTypes)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.Set("scan_id", progress.ScanID)
	s.recordAudit(c, auditdomain.Entry{
		Action:     auditdomain.ActionPostsScanStarted,
		TargetType: auditTargetScan,
		TargetID:   progress.ScanID,
		Metadata:   map[string]any{"post_types": postTypes},
	})
	c.JSON(http.StatusOK, gin.H{"started": true})
}

func (s *Server) GetPostsScanProgress(c *gin.Context) {
	progress, err := s.scanSvc.GetProgress(c.Request.Context())
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, progress)
}
