package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/cassiomorais/bankclient/internal/bootstrap"
	"github.com/cassiomorais/bankclient/internal/controller"
	"github.com/cassiomorais/bankclient/internal/infrastructure/config"
	"github.com/cassiomorais/bankclient/internal/infrastructure/observability"
	"github.com/cassiomorais/bankclient/internal/repository/memory"
	"github.com/cassiomorais/bankclient/internal/service"
	"github.com/rs/zerolog"
	"github.com/spf13/pflag"
	"golang.org/x/sync/errgroup"
)

const idempotencyTTL = 24 * time.Hour

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	code := run(ctx, os.Args[1:], os.Stdout, os.Stderr)
	stop()
	os.Exit(code)
}

// run serves until ctx is done and returns the process exit code.
func run(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	flags := pflag.NewFlagSet("fakebank", pflag.ContinueOnError)
	flags.SetOutput(stderr)
	configFile := flags.String("config", "", "path to a YAML config file")
	flags.Int("port", 8123, "listen port")
	flags.Duration("latency", 0, "delay added to every banking request")
	flags.Float64("failure-rate", 0, "share of banking requests answered with 503 (0-1)")
	flags.Int("rate-limit", 600, "requests per minute per client IP (0 disables)")
	flags.String("log-level", "info", "DEBUG, INFO, WARN or ERROR")
	flags.String("log-format", "console", "console or json")
	if err := flags.Parse(args); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return 0
		}
		return 2
	}

	app, err := bootstrap.New(ctx, "fakebank", config.LoadOptions{File: *configFile, Flags: flags}, stdout)
	if err != nil {
		fmt.Fprintf(stderr, "Failed to bootstrap: %v\n", err)
		return 1
	}
	defer app.Close()

	cfg := app.Config.Server

	// --- Services ---
	accountService := service.NewAccountService(service.SeedAccounts())
	authService := service.NewAuthService(cfg.JWTSecret, cfg.TokenTTL, map[string]string{
		app.Config.Auth.Username: app.Config.Auth.Password,
	}, nil)
	idempotencyRepo := memory.NewIdempotencyRepository(nil)

	// --- Build router ---
	router := controller.NewRouter(controller.RouterDeps{
		AccountService:  accountService,
		AuthService:     authService,
		IdempotencyRepo: idempotencyRepo,
		IdempotencyTTL:  idempotencyTTL,
		Metrics:         observability.NewMetrics("fakebank", app.Registry),
		Gatherer:        app.Registry,
		Logger:          app.Logger,
		Server:          cfg,
	})

	// --- HTTP server ---
	addr := fmt.Sprintf(":%d", cfg.Port)
	srv := &http.Server{
		Addr:         addr,
		Handler:      router,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
	}

	g, gCtx := errgroup.WithContext(ctx)

	// 1. HTTP server.
	g.Go(func() error {
		app.Logger.Info().
			Str("addr", addr).
			Dur("latency", cfg.Latency).
			Float64("failure_rate", cfg.FailureRate).
			Msg("Starting stand-in bank")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("listen: %w", err)
		}
		return nil
	})

	// 2. Expired idempotency keys.
	g.Go(func() error {
		return runIdempotencyCleanup(gCtx, app.Logger, idempotencyRepo, time.Minute)
	})

	// 3. Graceful shutdown.
	g.Go(func() error {
		<-gCtx.Done()
		app.Logger.Info().Msg("Shutting down server...")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		app.Logger.Error().Err(err).Msg("Server error")
		return 1
	}
	app.Logger.Info().Msg("Server exited")
	return 0
}

func runIdempotencyCleanup(ctx context.Context, logger zerolog.Logger, repo *memory.IdempotencyRepository, every time.Duration) error {
	ticker := time.NewTicker(every)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			removed, err := repo.Cleanup(ctx)
			if err != nil {
				logger.Error().Err(err).Msg("Idempotency cleanup failed")
				continue
			}
			if removed > 0 {
				logger.Debug().Int64("removed", removed).Msg("Expired idempotency keys removed")
			}
		}
	}
}
