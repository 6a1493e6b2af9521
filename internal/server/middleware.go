package server

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	apikeydomain "github.com/smallbiznis/drivebridge/internal/apikey/domain"
	"github.com/smallbiznis/drivebridge/internal/authorization"
	"github.com/smallbiznis/drivebridge/internal/nonce"
	obscontext "github.com/smallbiznis/drivebridge/internal/observability/context"
	"github.com/smallbiznis/drivebridge/internal/observability/logger"
	"go.uber.org/zap"
)

const (
	contextPrincipalKey = "api_key_principal"

	HeaderNonce     = "X-WP-Nonce"
	nonceParam      = "_wpnonce"
	actorTypeAPIKey = "api_key"
)

// APIKeyRequired authenticates the request with an administrator API key.
func (s *Server) APIKeyRequired() gin.HandlerFunc {
	return func(c *gin.Context) {
		header := strings.TrimSpace(c.GetHeader("Authorization"))
		if header == "" {
			AbortWithError(c, ErrUnauthorized)
			return
		}

		parts := strings.Fields(header)
		if len(parts) != 2 || parts[0] != "Bearer" || strings.TrimSpace(parts[1]) == "" {
			AbortWithError(c, ErrUnauthorized)
			return
		}

		principal, err := s.apiKeySvc.Authenticate(c.Request.Context(), parts[1])
		if err != nil {
			AbortWithError(c, err)
			return
		}

		ctx := obscontext.WithActor(c.Request.Context(), actorTypeAPIKey, principal.KeyID)
		c.Request = c.Request.WithContext(ctx)
		c.Set(contextPrincipalKey, principal)
		c.Next()
	}
}

func (s *Server) authorizeSiteAction(action string) gin.HandlerFunc {
	return func(c *gin.Context) {
		principal, ok := principalFromContext(c)
		if !ok {
			AbortWithError(c, ErrUnauthorized)
			return
		}

		actor := fmt.Sprintf("%s:%s", actorTypeAPIKey, principal.ID.String())
		if err := s.authzSvc.Authorize(c.Request.Context(), actor, principal.Role, authorization.ObjectSite, action); err != nil {
			AbortWithError(c, err)
			return
		}
		c.Next()
	}
}

// NonceRequired rejects the request before any other work unless it carries a
// nonce minted for the calling key.
func (s *Server) NonceRequired() gin.HandlerFunc {
	return func(c *gin.Context) {
		principal, ok := principalFromContext(c)
		if !ok {
			AbortWithError(c, ErrUnauthorized)
			return
		}

		if err := s.nonces.Verify(principal.KeyID, nonce.ActionREST, nonceFromRequest(c)); err != nil {
			logger.FromContext(c.Request.Context()).Warn("nonce check failed",
				zap.String("route", normalizeRateLimitEndpoint(c)),
			)
			AbortWithError(c, err)
			return
		}
		c.Next()
	}
}

// OAuthRateLimit throttles the OAuth start and callback routes per client IP.
func (s *Server) OAuthRateLimit() gin.HandlerFunc {
	return func(c *gin.Context) {
		if !s.oauthLimiter.Enabled() {
			c.Next()
			return
		}

		ctx := c.Request.Context()
		endpoint := normalizeRateLimitEndpoint(c)
		res, err := s.oauthLimiter.Allow(ctx, c.ClientIP())
		if err != nil {
			logger.FromContext(ctx).Warn("oauth rate limit check failed", zap.Error(err))
			c.Next()
			return
		}
		if !res.Allowed {
			logger.FromContext(ctx).Warn("oauth rate limit exceeded", zap.String("endpoint", endpoint))
			s.obsMetrics.RecordRateLimitDenied(ctx, endpoint, "client-ip")

			retryAfter := int(res.RetryAfter.Round(time.Second) / time.Second)
			if retryAfter < 1 {
				retryAfter = 1
			}
			c.Header("Retry-After", strconv.Itoa(retryAfter))
			AbortWithError(c, ErrRateLimited)
			return
		}

		s.obsMetrics.RecordRateLimitAllowed(ctx, endpoint)
		c.Next()
	}
}

func principalFromContext(c *gin.Context) (*apikeydomain.Principal, bool) {
	value, ok := c.Get(contextPrincipalKey)
	if !ok {
		return nil, false
	}
	principal, ok := value.(*apikeydomain.Principal)
	return principal, ok && principal != nil
}

func nonceFromRequest(c *gin.Context) string {
	if value := strings.TrimSpace(c.Query(nonceParam)); value != "" {
		return value
	}
	if value := strings.TrimSpace(c.PostForm(nonceParam)); value != "" {
		return value
	}
	return strings.TrimSpace(c.GetHeader(HeaderNonce))
}

func normalizeRateLimitEndpoint(c *gin.Context) string {
	if c == nil {
		return "unknown"
	}
	endpoint := strings.TrimSpace(c.FullPath())
	if endpoint == "" {
		endpoint = strings.TrimSpace(c.Request.URL.Path)
	}
	if endpoint == "" {
		endpoint = "unknown"
	}
	return endpoint
}
