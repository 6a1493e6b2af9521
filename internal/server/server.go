package server

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	apikeydomain "github.com/smallbiznis/drivebridge/internal/apikey/domain"
	auditdomain "github.com/smallbiznis/drivebridge/internal/audit/domain"
	"github.com/smallbiznis/drivebridge/internal/authorization"
	"github.com/smallbiznis/drivebridge/internal/config"
	drivedomain "github.com/smallbiznis/drivebridge/internal/drive/domain"
	googleauthdomain "github.com/smallbiznis/drivebridge/internal/googleauth/domain"
	"github.com/smallbiznis/drivebridge/internal/nonce"
	"github.com/smallbiznis/drivebridge/internal/observability"
	obslogger "github.com/smallbiznis/drivebridge/internal/observability/logger"
	obsmetrics "github.com/smallbiznis/drivebridge/internal/observability/metrics"
	obstracing "github.com/smallbiznis/drivebridge/internal/observability/tracing"
	postscandomain "github.com/smallbiznis/drivebridge/internal/postscan/domain"
	"github.com/smallbiznis/drivebridge/internal/ratelimit"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

const APIBasePath = "/wpmudev/v1"

var Module = fx.Module("http.server",
	fx.Provide(registerGin),
	fx.Invoke(NewServer),
	fx.Invoke(run),
)

func NewEngine(obsCfg observability.Config, httpMetrics *obsmetrics.HTTPMetrics) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(obslogger.GinMiddleware(obslogger.MiddlewareConfig{
		Debug:           obsCfg.Debug(),
		ErrorClassifier: classifyErrorForLog,
	}))
	r.Use(obstracing.GinMiddleware())
	r.Use(httpMetrics.GinMiddleware())
	r.Use(ErrorHandlingMiddleware())

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	return r
}

func registerGin(obsCfg observability.Config, httpMetrics *obsmetrics.HTTPMetrics) *gin.Engine {
	return NewEngine(obsCfg, httpMetrics)
}

func run(lc fx.Lifecycle, cfg config.Config, r *gin.Engine, log *zap.Logger) {
	srv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			go func() {
				if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
					log.Fatal("http server stopped", zap.Error(err))
				}
			}()
			log.Info("http server listening", zap.String("addr", cfg.HTTPAddr))
			return nil
		},
		OnStop: func(ctx context.Context) error {
			shutdownCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
			defer cancel()
			return srv.Shutdown(shutdownCtx)
		},
	})
}

type Server struct {
	engine       *gin.Engine
	cfg          config.Config
	log          *zap.Logger
	tokenSvc     googleauthdomain.Service
	driveSvc     drivedomain.Service
	scanSvc      postscandomain.Service
	apiKeySvc    apikeydomain.Service
	authzSvc     authorization.Service
	auditSvc     auditdomain.Service
	nonces       *nonce.Manager
	maintenance  *config.MaintenanceConfigHolder
	oauthLimiter *ratelimit.OAuthLimiter
	obsMetrics   *obsmetrics.Metrics
}

type ServerParams struct {
	fx.In

	Gin          *gin.Engine
	Cfg          config.Config
	Log          *zap.Logger
	TokenSvc     googleauthdomain.Service
	DriveSvc     drivedomain.Service
	ScanSvc      postscandomain.Service
	APIKeySvc    apikeydomain.Service
	AuthzSvc     authorization.Service
	AuditSvc     auditdomain.Service `optional:"true"`
	Nonces       *nonce.Manager
	Maintenance  *config.MaintenanceConfigHolder
	OAuthLimiter *ratelimit.OAuthLimiter `optional:"true"`
	ObsMetrics   *obsmetrics.Metrics     `optional:"true"`
}

func NewServer(p ServerParams) *Server {
	svc := &Server{
		engine:       p.Gin,
		cfg:          p.Cfg,
		log:          p.Log.Named("http"),
		tokenSvc:     p.TokenSvc,
		driveSvc:     p.DriveSvc,
		scanSvc:      p.ScanSvc,
		apiKeySvc:    p.APIKeySvc,
		authzSvc:     p.AuthzSvc,
		auditSvc:     p.AuditSvc,
		nonces:       p.Nonces,
		maintenance:  p.Maintenance,
		oauthLimiter: p.OAuthLimiter,
		obsMetrics:   p.ObsMetrics,
	}

	svc.registerAPIRoutes()
	svc.registerFallback()

	return svc
}

func (s *Server) Engine() *gin.Engine {
	return s.engine
}

func (s *Server) registerAPIRoutes() {
	api := s.engine.Group(APIBasePath)

	// The browser lands here from Google without an API key.
	api.GET("/drive/callback", s.OAuthRateLimit(), s.DriveCallback)

	admin := api.Group("", s.APIKeyRequired(), s.authorizeSiteAction(authorization.ActionManageOptions))

	admin.GET("/nonce", s.IssueNonce)

	// -------- Drive --------
	admin.POST("/drive/save-credentials", s.NonceRequired(), s.SaveCredentials)
	admin.GET("/drive/get-credentials", s.GetCredentials)
	admin.POST("/drive/auth", s.OAuthRateLimit(), s.NonceRequired(), s.StartDriveAuth)
	admin.GET("/drive/files", s.ListDriveFiles)
	admin.POST("/drive/upload", s.UploadDriveFile)
	admin.GET("/drive/download", s.DownloadDriveFile)
	admin.POST("/drive/create-folder", s.CreateDriveFolder)
	admin.POST("/drive/disconnect", s.NonceRequired(), s.DisconnectDrive)

	// -------- Posts maintenance --------
	admin.POST("/posts-maintenance/start", s.StartPostsScan)
	admin.GET("/posts-maintenance/progress", s.GetPostsScanProgress)

	// -------- API keys --------
	admin.GET("/api-keys", s.ListAPIKeys)
	admin.POST("/api-keys", s.CreateAPIKey)
	admin.POST("/api-keys/:key_id/rotate", s.RotateAPIKey)
	admin.POST("/api-keys/:key_id/revoke", s.RevokeAPIKey)

	// -------- Audit --------
	admin.GET("/audit-logs", s.ListAuditLogs)
}

func (s *Server) registerFallback() {
	s.engine.NoRoute(func(c *gin.Context) {
		AbortWithError(c, ErrNotFound)
	})
}
