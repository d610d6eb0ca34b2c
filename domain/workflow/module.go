package workflow

import (
	"go.uber.org/fx"
)

// Module provides workflow domain dependencies.
var Module = fx.Module("workflow",
	fx.Provide(NewRepository),
	fx.Provide(NewEngine),
	fx.Provide(NewHandler),
	fx.Invoke(RegisterRoutes),
)
