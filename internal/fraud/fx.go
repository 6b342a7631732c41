package fraud

import "go.uber.org/fx"

var Module = fx.Module("fraud",
	fx.Provide(
		NewProvider,
		NewScorer,
	),
)
