package store

import (
	"context"
	"errors"
	"fmt"

	"dulpton-point/pkg/config"

	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const (
	BackendMemory = "memory"
	BackendGorm   = "gorm"
)

var Module = fx.Module("store",
	fx.Provide(Provide),
)

type Params struct {
	fx.In

	Lifecycle fx.Lifecycle
	Config    *config.Config
	DB        *gorm.DB `optional:"true"`
}

// Provide selects the backend named by STORE.BACKEND. The gorm backend
// migrates its tables on start.
func Provide(p Params) (Store, error) {
	switch p.Config.Store.Backend {
	case BackendMemory:
		zap.L().Warn("using the in-memory store, state is lost on restart")
		return NewMemory(), nil
	case BackendGorm, "":
		if p.DB == nil {
			return nil, errors.New("store: gorm backend needs a database")
		}
		g := NewGorm(p.DB)
		p.Lifecycle.Append(fx.Hook{
			OnStart: func(ctx context.Context) error {
				if err := g.Migrate(ctx); err != nil {
					return fmt.Errorf("migrate store: %w", err)
				}
				zap.L().Info("[Store] Tables migrated")
				return nil
			},
		})
		return g, nil
	default:
		return nil, fmt.Errorf("store: unknown backend %q", p.Config.Store.Backend)
	}
}
