package bootstrap

import (
	"context"
	"fmt"
	"io"

	"github.com/cassiomorais/bankclient/internal/infrastructure/config"
	"github.com/cassiomorais/bankclient/internal/infrastructure/observability"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/rs/zerolog"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
)

type App struct {
	Config   *config.Config
	Logger   zerolog.Logger
	Registry *prometheus.Registry
	tracer   *sdktrace.TracerProvider
}

// New loads configuration and sets up logging, metrics and optional tracing
// shared by the CLI and the stand-in bank.
func New(ctx context.Context, serviceName string, opts config.LoadOptions, logOutput io.Writer) (*App, error) {
	cfg, err := config.Load(opts)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}

	logger := observability.InitLogger(cfg.Observability.LogLevel, cfg.Observability.LogFormat, logOutput)
	logger.Debug().Str("service", serviceName).Msg("Starting")

	app := &App{
		Config:   cfg,
		Logger:   logger,
		Registry: prometheus.NewRegistry(),
	}
	app.Registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	if cfg.Observability.EnableTracing {
		tp, err := observability.InitTracer(serviceName, cfg.Observability.JaegerEndpoint)
		if err != nil {
			logger.Warn().Err(err).Msg("Failed to initialize tracer, continuing without tracing")
		} else {
			app.tracer = tp
			go func() {
				<-ctx.Done()
				observability.Shutdown(context.Background(), tp)
			}()
			logger.Info().Msg("Tracing enabled")
		}
	}

	return app, nil
}

// Close flushes pending spans.
func (a *App) Close() {
	observability.Shutdown(context.Background(), a.tracer)
}
