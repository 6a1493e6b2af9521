package secrets

import "go.uber.org/fx"

var Module = fx.Module("secrets",
	fx.Provide(NewSealer),
)
