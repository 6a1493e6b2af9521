package kvstore

import (
	"github.com/smallbiznis/drivebridge/internal/kvstore/domain"
	"github.com/smallbiznis/drivebridge/internal/kvstore/service"
	"go.uber.org/fx"
)

var Module = fx.Module("kvstore",
	fx.Provide(service.New),
	fx.Provide(
		func(s *service.Service) domain.Store { return s },
		func(s *service.Service) domain.Purger { return s },
	),
)
