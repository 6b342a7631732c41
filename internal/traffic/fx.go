package traffic

import "go.uber.org/fx"

var Module = fx.Module("traffic",
	fx.Provide(NewSynthesizer),
)
