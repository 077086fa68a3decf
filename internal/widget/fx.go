package widget

import "go.uber.org/fx"

var Module = fx.Module("widget",
	fx.Provide(NewPageRenderer),
)
