package transfer

import (
	"go.uber.org/fx"
)

// Module provides transfer domain dependencies.
var Module = fx.Module("transfer",
	fx.Provide(NewExporter),
	fx.Provide(NewImporter),
	fx.Provide(NewService),
	fx.Provide(NewHandler),
	fx.Invoke(RegisterRoutes),
)
