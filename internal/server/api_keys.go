package server

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	apikeydomain "github.com/smallbiznis/drivebridge/internal/apikey/domain"
	auditdomain "github.com/smallbiznis/drivebridge/internal/audit/domain"
	"github.com/smallbiznis/drivebridge/internal/nonce"
	"go.uber.org/zap"
)

type createAPIKeyRequest struct {
	Name string `json:"name"`
	Role string `json:"role"`
}

func (s *Server) ListAPIKeys(c *gin.Context) {
	keys, err := s.apiKeySvc.List(c.Request.Context())
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, keys)
}

func (s *Server) CreateAPIKey(c *gin.Context) {
	var req createAPIKeyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	resp, err := s.apiKeySvc.Create(c.Request.Context(), apikeydomain.CreateRequest{
		Name: strings.TrimSpace(req.Name),
		Role: req.Role,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	s.log.Info("api_key.created", zap.String("key_id", resp.KeyID))
	s.recordAudit(c, auditdomain.Entry{
		Action:     auditdomain.ActionAPIKeyCreated,
		TargetType: auditTargetAPIKey,
		TargetID:   resp.KeyID,
		Metadata:   map[string]any{"name": strings.TrimSpace(req.Name), "role": req.Role},
	})
	c.JSON(http.StatusOK, resp)
}

func (s *Server) RotateAPIKey(c *gin.Context) {
	keyID := strings.TrimSpace(c.Param("key_id"))
	resp, err := s.apiKeySvc.Rotate(c.Request.Context(), keyID)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	s.log.Info("api_key.rotated", zap.String("key_id", resp.KeyID), zap.String("rotated_from", keyID))
	s.recordAudit(c, auditdomain.Entry{
		Action:     auditdomain.ActionAPIKeyRotated,
		TargetType: auditTargetAPIKey,
		TargetID:   resp.KeyID,
		Metadata:   map[string]any{"rotated_from": keyID},
	})
	c.JSON(http.StatusOK, resp)
}

func (s *Server) RevokeAPIKey(c *gin.Context) {
	keyID := strings.TrimSpace(c.Param("key_id"))
	if err := s.apiKeySvc.Revoke(c.Request.Context(), keyID); err != nil {
		AbortWithError(c, err)
		return
	}

	s.log.Info("api_key.revoked", zap.String("key_id", keyID))
	s.recordAudit(c, auditdomain.Entry{Action: auditdomain.ActionAPIKeyRevoked, TargetType: auditTargetAPIKey, TargetID: keyID})
	c.Status(http.StatusNoContent)
}

// IssueNonce mints a nonce bound to the calling key.
func (s *Server) IssueNonce(c *gin.Context) {
	principal, ok := principalFromContext(c)
	if !ok {
		AbortWithError(c, ErrUnauthorized)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"nonce":      s.nonces.Issue(principal.KeyID, nonce.ActionREST),
		"expires_in": int64(2 * nonce.TickLength.Seconds()),
	})
}
