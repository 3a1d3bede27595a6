package reward

import "go.uber.org/fx"

var Module = fx.Module("reward",
	fx.Provide(
		NewDefaultLevelTable,
		NewCalculator,
		NewDefaultSpinner,
	),
)
