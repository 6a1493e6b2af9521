package drive

import (
	"github.com/smallbiznis/drivebridge/internal/drive/service"
	"go.uber.org/fx"
)

var Module = fx.Module("drive",
	fx.Provide(service.New),
)
