package httpapi

import (
	"dulpton-point/pkg/config"
	"dulpton-point/pkg/health"
	"dulpton-point/pkg/middleware"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

var Module = fx.Module("httpapi",
	fx.Provide(NewRouter),
	fx.Invoke(registerProbes),
)

// NewRouter builds the gin engine with the middleware every route shares.
func NewRouter(cfg *config.Config, logger *zap.Logger) *gin.Engine {
	if cfg.AppEnv == "production" {
		gin.SetMode(gin.ReleaseMode)
	}
	r := gin.New()
	r.Use(
		gin.Recovery(),
		middleware.Trace(cfg.AppName),
		middleware.Logger(logger),
		middleware.Error(),
	)
	return r
}

func registerProbes(r *gin.Engine, h health.HealthService) {
	r.GET("/healthz", h.Liveness)
	r.GET("/readyz", h.Readiness)
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))
}
