package health

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"go.uber.org/fx"
)

var Module = fx.Module("health", fx.Provide(ProvideHealth))

type Dependency struct {
	Name    string `json:"name"`
	Status  string `json:"status"`
	Message string `json:"message"`
}

type Health struct {
	Status  string       `json:"status"`
	Message string       `json:"message"`
	Deps    []Dependency `json:"deps,omitempty"`
}

// Pinger is any dependency that can report reachability, e.g. the store.
type Pinger interface {
	Ping(ctx context.Context) error
}

type HealthService interface {
	Liveness(c *gin.Context)
	Readiness(c *gin.Context)
}

type health struct {
	store Pinger
	redis *redis.Client
}

type HealthParams struct {
	fx.In
	Store Pinger        `optional:"true"`
	Redis *redis.Client `optional:"true"`
}

func ProvideHealth(p HealthParams) HealthService {
	return &health{
		store: p.Store,
		redis: p.Redis,
	}
}

func (h *health) Liveness(c *gin.Context) {
	c.JSON(http.StatusOK, &Health{
		Status:  "healthy",
		Message: "OK",
	})
}

func check(ctx context.Context, name string, p func(context.Context) error) Dependency {
	dep := Dependency{Name: name, Status: "healthy", Message: "OK"}
	if err := p(ctx); err != nil {
		dep.Status = "unhealthy"
		dep.Message = err.Error()
	}
	return dep
}

func (h *health) Readiness(c *gin.Context) {
	ctx := c.Request.Context()
	out := &Health{Status: "healthy", Message: "OK"}

	if h.store != nil {
		out.Deps = append(out.Deps, check(ctx, "store", h.store.Ping))
	}
	if h.redis != nil {
		out.Deps = append(out.Deps, check(ctx, "redis", func(ctx context.Context) error {
			return h.redis.Ping(ctx).Err()
		}))
	}

	code := http.StatusOK
	for _, d := range out.Deps {
		if d.Status != "healthy" {
			out.Status = "unhealthy"
			out.Message = "dependency unavailable"
			code = http.StatusServiceUnavailable
		}
	}

	c.JSON(code, out)
}
