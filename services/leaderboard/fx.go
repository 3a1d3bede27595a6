package leaderboard

import "go.uber.org/fx"

var Module = fx.Module("leaderboard",
	fx.Provide(NewService),
)

var TaskModule = fx.Module("leaderboard.task",
	fx.Provide(NewMirror),
	fx.Invoke(RegisterTasks),
)
