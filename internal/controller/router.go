package controller

import (
	"time"

	"github.com/cassiomorais/bankclient/internal/infrastructure/config"
	"github.com/cassiomorais/bankclient/internal/infrastructure/observability"
	customMW "github.com/cassiomorais/bankclient/internal/middleware"
	"github.com/cassiomorais/bankclient/internal/repository/memory"
	"github.com/cassiomorais/bankclient/internal/service"
	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
)

// HealthProbeAccount is read by the readiness check.
const HealthProbeAccount = "ACC1000"

type RouterDeps struct {
	AccountService  *service.AccountService
	AuthService     *service.AuthService
	IdempotencyRepo customMW.IdempotencyStore
	IdempotencyTTL  time.Duration
	Metrics         *observability.Metrics
	Gatherer        prometheus.Gatherer
	Logger          zerolog.Logger
	Server          config.ServerConfig
	// Random overrides the fault-injection dice; nil uses math/rand.
	Random func() float64
}

func NewRouter(deps RouterDeps) *chi.Mux {
	if deps.Metrics == nil {
		reg := prometheus.NewRegistry()
		deps.Metrics = observability.NewMetrics("fakebank", reg)
		deps.Gatherer = reg
	}
	if deps.IdempotencyRepo == nil {
		deps.IdempotencyRepo = memory.NewIdempotencyRepository(nil)
	}
	if deps.IdempotencyTTL <= 0 {
		deps.IdempotencyTTL = 24 * time.Hour
	}

	r := chi.NewRouter()

	r.Use(chimw.RequestID)
	r.Use(customMW.Tracing("fakebank"))
	r.Use(chimw.RealIP)
	r.Use(customMW.RequestLogger(deps.Logger))
	r.Use(chimw.Recoverer)
	r.Use(chimw.Timeout(60 * time.Second))
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   deps.Server.CORS.AllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "Idempotency-Key", "X-Request-ID"},
		ExposedHeaders:   []string{"X-Request-ID", "X-Idempotency-Replayed", "Retry-After"},
		AllowCredentials: deps.Server.CORS.AllowCredentials,
		MaxAge:           300,
	}))
	r.Use(customMW.Metrics(deps.Metrics))
	r.Use(customMW.ResponseHeaders())

	healthH := NewHealthController(deps.AccountService, HealthProbeAccount)
	authH := NewAuthController(deps.AuthService)
	accountH := NewAccountController(deps.AccountService)
	transferH := NewTransferController(deps.AccountService, deps.Logger)

	r.Get("/health", healthH.Health)
	r.Get("/health/live", healthH.Liveness)
	r.Get("/health/ready", healthH.Readiness)

	gatherer := deps.Gatherer
	if gatherer == nil {
		gatherer = prometheus.DefaultGatherer
	}
	r.Handle("/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))

	r.Group(func(r chi.Router) {
		r.Use(customMW.RateLimit(deps.Server.RateLimit))

		r.Post("/authToken", authH.IssueToken)

		r.Group(func(r chi.Router) {
			faults := []customMW.FaultOption{
				customMW.WithLatency(deps.Server.Latency),
				customMW.WithFailureRate(deps.Server.FailureRate),
			}
			if deps.Random != nil {
				faults = append(faults, customMW.WithRandom(deps.Random))
			}
			r.Use(customMW.FaultInjection(faults...))

			// Accounts
			r.Get("/accounts/validate/{accountId}", accountH.Validate)
			r.Get("/accounts/balance/{accountId}", accountH.GetBalance)

			// Transfers
			r.With(
				customMW.OptionalAuth(deps.AuthService, "transfer"),
				customMW.Idempotency(deps.IdempotencyRepo, deps.IdempotencyTTL),
			).Post("/transfer", transferH.Transfer)

			// History
			r.With(customMW.RequireAuth(deps.AuthService, "enquiry")).
				Get("/transactions/history", accountH.GetHistory)
		})
	})

	return r
}
