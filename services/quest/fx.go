package quest

import "go.uber.org/fx"

var Module = fx.Module("quest",
	fx.Provide(NewTracker),
)
