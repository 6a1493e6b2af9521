package postscan

import (
	"github.com/smallbiznis/drivebridge/internal/postscan/repository"
	"github.com/smallbiznis/drivebridge/internal/postscan/service"
	"go.uber.org/fx"
)

var Module = fx.Module("postscan",
	fx.Provide(repository.Provide),
	fx.Provide(service.New),
)
