package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/baechuer/ticketqueue/internal/clock"
	"github.com/baechuer/ticketqueue/internal/config"
	"github.com/baechuer/ticketqueue/internal/infrastructure/postgres"
	"github.com/baechuer/ticketqueue/internal/infrastructure/redis"
	"github.com/baechuer/ticketqueue/internal/pkg/logger"
	"github.com/baechuer/ticketqueue/internal/queue"
	"github.com/baechuer/ticketqueue/internal/service"
	"github.com/baechuer/ticketqueue/internal/transport/rest"
	"github.com/jackc/pgx/v5/pgxpool"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "config load failed: %v\n", err)
		os.Exit(1)
	}
	if cfg.LogLevel != "" {
		_ = os.Setenv("LOG_LEVEL", cfg.LogLevel)
	}

	logger.Init()
	log := logger.Logger.With().
		Str("service", "ticketqueue").
		Str("env", cfg.AppEnv).
		Logger()

	rootCtx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// ---- Postgres ----
	dbPool, err := pgxpool.New(rootCtx, cfg.DBDSN)
	if err != nil {
		log.Fatal().Err(err).Msg("postgres pool create failed")
	}
	defer dbPool.Close()

	{
		pingCtx, cancel := context.WithTimeout(rootCtx, 5*time.Second)
		defer cancel()
		if err := dbPool.Ping(pingCtx); err != nil {
			log.Fatal().Err(err).Msg("postgres ping failed")
		}
		log.Info().Msg("postgres connected")
	}

	if cfg.AutoMigrate {
		if err := postgres.ApplyMigrations(rootCtx, dbPool, cfg.MigrationsDir); err != nil {
			log.Fatal().Err(err).Msg("apply migrations failed")
		}
		log.Info().Str("dir", cfg.MigrationsDir).Msg("migrations applied")
	}

	// ---- Redis ----
	cache := redis.New(cfg.RedisAddr, cfg.RedisPass, cfg.RedisDB)
	{
		pingCtx, cancel := context.WithTimeout(rootCtx, 2*time.Second)
		defer cancel()
		if err := cache.Client.Ping(pingCtx).Err(); err != nil {
			log.Warn().Err(err).Msg("redis ping failed (continuing; availability cache is best-effort)")
		} else {
			log.Info().Msg("redis connected")
		}
	}

	// ---- Repositories ----
	events := postgres.NewEventRepository(dbPool)
	intents := postgres.NewIntentRepository(dbPool)
	tickets := postgres.NewTicketRepository(dbPool)
	alloc := postgres.NewAllocator(dbPool)

	clk := clock.Real{}
	arrival := clock.NewArrival()

	// ---- Crash-recovery reconciliation (spec §4.3 "Failure semantics") ----
	if n, err := queue.Reconcile(rootCtx, intents, clk.Now(), cfg.PerIntentTimeout); err != nil {
		log.Error().Err(err).Msg("startup reconciliation failed")
	} else if n > 0 {
		log.Warn().Int64("failed", n).Msg("reconciled stale PROCESSING intents to FAILED")
	}

	// ---- Services ----
	intakeSvc := service.NewIntakeService(events, intents, cache, clk, arrival, int64(cfg.WaitEstimatePerIntent.Seconds()))
	cancelSvc := service.NewCancellationService(intents)
	querySvc := service.NewQueryService(events, intents, tickets, int64(cfg.WaitEstimatePerIntent.Seconds()))
	adminSvc := service.NewAdminService(events, clk)

	// ---- Queue Processor, Expiry Sweeper ----
	health := &queue.Health{}
	processor := &queue.Processor{
		Events:           events,
		Intents:          intents,
		Alloc:            alloc,
		Clock:            clk,
		Ticker:           clock.NewRealTicker(cfg.ProcessorTick),
		Health:           health,
		BatchSize:        cfg.ProcessorBatchSize,
		MaxAttempts:      cfg.MaxClaimAttempts,
		IntentTTL:        cfg.IntentTTL,
		PerIntentTimeout: cfg.PerIntentTimeout,
		AvailCache:       cache,
		AvailCacheTTL:    cfg.AvailabilityCacheTTL,
	}
	go processor.Run(rootCtx)

	sweeper := &queue.Sweeper{
		Intents: intents,
		Clock:   clk,
		Ticker:  clock.NewRealTicker(cfg.SweeperTick),
		TTL:     cfg.IntentTTL,
	}
	go sweeper.Run(rootCtx)

	// ---- Outbox worker (outbound notifications) ----
	if cfg.OutboxEnabled {
		postgres.NewOutboxWorker(dbPool).Start(rootCtx, cfg.RabbitURL, cfg.RabbitExchange)
		log.Info().Msg("outbox worker started")
	}

	// ---- HTTP transport ----
	h := rest.NewHandler(intakeSvc, cancelSvc, querySvc, adminSvc, health)

	var limiter rest.RateLimiter
	if cfg.RLEnabled {
		limiter = cache
	}

	httpHandler := rest.NewRouter(rest.RouterDeps{
		Handler:  h,
		Limiter:  limiter,
		Ready:    dbPool,
		RLLimit:  cfg.RLLimit,
		RLWindow: cfg.RLWindow,
	})

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           httpHandler,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       10 * time.Second,
		WriteTimeout:      20 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info().Int("port", cfg.Port).Msg("http server starting")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case <-rootCtx.Done():
		log.Info().Msg("shutdown signal received")
	case err := <-errCh:
		log.Error().Err(err).Msg("http server crashed")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 8*time.Second)
	defer cancel()
	_ = srv.Shutdown(shutdownCtx)
	log.Info().Msg("shutdown complete")
}
