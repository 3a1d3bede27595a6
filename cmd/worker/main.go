package main

import (
	"log"

	"go.uber.org/fx"

	"dulpton-point/pkg/config"
	"dulpton-point/pkg/db"
	"dulpton-point/pkg/gen"
	"dulpton-point/pkg/logger"
	"dulpton-point/pkg/otelcol"
	"dulpton-point/pkg/profiling"
	"dulpton-point/pkg/redis"
	"dulpton-point/pkg/sequence"
	"dulpton-point/pkg/task"
	"dulpton-point/services/leaderboard"
	"dulpton-point/services/ledger"
	"dulpton-point/services/store"
)

// The worker settles withdrawals and keeps the redis leaderboards in step.
// It needs the shared gorm store.
func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}
	if cfg.Store.Backend == store.BackendMemory {
		log.Fatal("the worker needs STORE.BACKEND=gorm")
	}

	opts := []fx.Option{
		fx.Supply(cfg),
		logger.Module,
		logger.FxLogger,
		otelcol.Module,
		profiling.Module,
		db.Module,
		store.Module,
		redis.Module,
		sequence.Module,
		gen.Module,
		ledger.Module,
		ledger.TaskModule,
		leaderboard.TaskModule,
		task.Server,
	}

	if err := fx.ValidateApp(opts...); err != nil {
		log.Fatalf("fx validation failed: %v", err)
	}

	fx.New(opts...).Run()
}
