package ledger

import "go.uber.org/fx"

var Module = fx.Module("ledger",
	fx.Provide(NewService),
)

var TaskModule = fx.Module("ledger.task",
	fx.Provide(NewTaskHandler),
	fx.Invoke(RegisterTasks),
)
