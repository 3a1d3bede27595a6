package main

import (
	"log"

	"go.uber.org/fx"

	apiroutes "dulpton-point/internal/httpapi"
	"dulpton-point/pkg/config"
	"dulpton-point/pkg/db"
	"dulpton-point/pkg/gen"
	"dulpton-point/pkg/health"
	"dulpton-point/pkg/httpapi"
	"dulpton-point/pkg/logger"
	"dulpton-point/pkg/otelcol"
	"dulpton-point/pkg/profiling"
	"dulpton-point/pkg/redis"
	"dulpton-point/pkg/sequence"
	"dulpton-point/pkg/server"
	"dulpton-point/pkg/task"
	"dulpton-point/services/achievement"
	"dulpton-point/services/catalog"
	"dulpton-point/services/engine"
	"dulpton-point/services/events"
	"dulpton-point/services/leaderboard"
	"dulpton-point/services/ledger"
	"dulpton-point/services/progression"
	"dulpton-point/services/quest"
	"dulpton-point/services/reward"
	"dulpton-point/services/store"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	opts := []fx.Option{
		fx.Supply(cfg),
		logger.Module,
		logger.FxLogger,
		otelcol.Module,
		profiling.Module,
		storage(cfg),
		cache(cfg),
		gen.Module,
		queue(cfg),
		health.Module,
		fx.Provide(func(s store.Store) health.Pinger { return s }),
		catalog.Module,
		reward.Module,
		progression.Module,
		ledger.Module,
		quest.Module,
		achievement.Module,
		events.Module,
		leaderboard.Module,
		engine.Module,
		httpapi.Module,
		apiroutes.Module,
		server.ProvideHTTPServer,
	}

	if err := fx.ValidateApp(opts...); err != nil {
		log.Fatalf("fx validation failed: %v", err)
	}

	fx.New(opts...).Run()
}

// storage opens a database only for the gorm backend.
func storage(cfg *config.Config) fx.Option {
	if cfg.Store.Backend == store.BackendMemory {
		return store.Module
	}
	return fx.Options(db.Module, store.Module)
}

// cache wires redis for the shared deployment. Without it the leaderboards
// read the store and referral codes come from crypto/rand.
func cache(cfg *config.Config) fx.Option {
	if cfg.Store.Backend == store.BackendMemory {
		return fx.Provide(sequence.NewRandomGenerator)
	}
	return fx.Options(redis.Module, sequence.Module)
}

// queue enables the asynq client when a worker shares the store. The memory
// backend is process local, so withdrawals stay pending and events stay
// in-process.
func queue(cfg *config.Config) fx.Option {
	if cfg.Store.Backend == store.BackendMemory {
		return fx.Options()
	}
	return task.Client
}
