package nonce

import "go.uber.org/fx"

var Module = fx.Module("nonce",
	fx.Provide(New),
)
