package googleauth

import (
	"github.com/smallbiznis/drivebridge/internal/googleauth/domain"
	"github.com/smallbiznis/drivebridge/internal/googleauth/provider"
	"github.com/smallbiznis/drivebridge/internal/googleauth/service"
	"go.uber.org/fx"
)

var Module = fx.Module("googleauth",
	fx.Provide(
		fx.Annotate(provider.New, fx.As(new(domain.TokenEndpoint))),
	),
	fx.Provide(service.New),
)
