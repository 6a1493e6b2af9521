package apikey

import (
	"context"

	apikeydomain "github.com/smallbiznis/drivebridge/internal/apikey/domain"
	"github.com/smallbiznis/drivebridge/internal/apikey/repository"
	"github.com/smallbiznis/drivebridge/internal/apikey/service"
	"github.com/smallbiznis/drivebridge/internal/config"
	"go.uber.org/fx"
)

var Module = fx.Module("apikey.service",
	fx.Provide(repository.Provide),
	fx.Provide(service.New),
	fx.Invoke(bootstrapAdminKey),
)

func bootstrapAdminKey(lc fx.Lifecycle, cfg config.Config, svc apikeydomain.Service) {
	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			return svc.EnsureBootstrap(ctx, cfg.AdminAPIKey)
		},
	})
}
