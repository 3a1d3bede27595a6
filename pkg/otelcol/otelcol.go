package otelcol

import (
	"context"

	"dulpton-point/pkg/config"
	"dulpton-point/pkg/otelcol/exporters"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	"go.opentelemetry.io/otel/sdk/trace"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

var Module = fx.Module("otelcol",
	fx.Provide(ProvideTracerProvider),
	fx.Invoke(Install),
)

func defaultTraceProviderOption(cfg *config.Config) []trace.TracerProviderOption {
	res, err := resource.Merge(resource.Default(), resource.NewSchemaless(
		attribute.String("service.name", cfg.AppName),
		attribute.String("service.version", cfg.AppVersion),
		attribute.String("deployment.environment", cfg.AppEnv),
	))
	if err != nil {
		res = resource.Default()
	}
	return []trace.TracerProviderOption{
		trace.WithResource(res),
	}
}

func ProvideTrace(exporter trace.SpanExporter, opts ...trace.TracerProviderOption) *trace.TracerProvider {
	opts = append(opts, trace.WithBatcher(exporter))

	return trace.NewTracerProvider(opts...)
}

// ProvideTracerProvider exports to OTEL.ADDR when it is set. Without it spans
// are still created, so trace ids reach the logs, but nothing is exported.
func ProvideTracerProvider(cfg *config.Config) (*trace.TracerProvider, error) {
	opts := defaultTraceProviderOption(cfg)
	if cfg.Otel.Addr == "" {
		zap.L().Info("OTEL.ADDR not set, spans are not exported")
		return trace.NewTracerProvider(opts...), nil
	}
	exporter, err := exporters.ProvideHttp(cfg)
	if err != nil {
		return nil, err
	}
	return ProvideTrace(exporter, opts...), nil
}

// Install makes tp the global provider and flushes it on stop.
func Install(lc fx.Lifecycle, tp *trace.TracerProvider) {
	otel.SetTracerProvider(tp)
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(propagation.TraceContext{}, propagation.Baggage{}))

	lc.Append(fx.Hook{
		OnStop: func(ctx context.Context) error {
			return tp.Shutdown(ctx)
		},
	})
}
