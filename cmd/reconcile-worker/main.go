package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"

	"github.com/hackgods/clinic-slot-booking/internal/booking"
	"github.com/hackgods/clinic-slot-booking/internal/config"
	"github.com/hackgods/clinic-slot-booking/internal/db"
	"github.com/hackgods/clinic-slot-booking/internal/logging"
	"github.com/hackgods/clinic-slot-booking/internal/metrics"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		logging.Bootstrap().Fatal().Err(err).Msg("config load error")
	}

	logger := logging.New(cfg.Env, cfg.LogLevel).With().Str("service", "reconcile-worker").Logger()
	logger.Info().Str("env", cfg.Env).Str("schedule", cfg.ReconcileSpec).Dur("grace", cfg.ReconcileGrace).Msg("reconcile worker starting up")

	rootCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	var (
		store  booking.AvailabilityStore
		ledger booking.Ledger
	)

	connCtx, cancelConn := context.WithTimeout(rootCtx, 10*time.Second)
	switch cfg.StoreBackend {
	case config.BackendPostgres:
		pool, err := db.ConnectPostgres(connCtx, cfg.PostgresDSN)
		if err != nil {
			logger.Fatal().Err(err).Msg("postgres connection error")
		}
		defer pool.Close()
		repo := booking.NewPgRepository(pool)
		store, ledger = repo, repo
		logger.Info().Msg("connected to Postgres")
	case config.BackendMongo:
		client, database, err := db.ConnectMongo(connCtx, cfg.MongoURI, cfg.MongoDatabase)
		if err != nil {
			logger.Fatal().Err(err).Msg("mongo connection error")
		}
		defer func() {
			if err := client.Disconnect(context.Background()); err != nil {
				logger.Error().Err(err).Msg("error disconnecting mongo")
			}
		}()
		repo := booking.NewMongoRepository(database)
		store, ledger = repo, repo
		logger.Info().Str("database", cfg.MongoDatabase).Msg("connected to MongoDB")
	default:
		logger.Fatal().Str("store", cfg.StoreBackend).Msg("reconciliation needs a persistent store")
	}
	cancelConn()

	registry := prometheus.NewRegistry()
	reconciler := booking.NewReconciler(store, ledger, cfg.ReconcileGrace, metrics.NewBookingMetrics(registry), logger)

	// the orphaned slot gauge is the worker's only output besides the log
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))
	srv := &http.Server{Addr: ":" + cfg.MetricsPort, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error().Err(err).Msg("metrics server error")
		}
	}()

	// Run once at startup
	runOnce(rootCtx, reconciler, logger)

	c := cron.New(cron.WithChain(cron.SkipIfStillRunning(cron.DiscardLogger)))
	if _, err := c.AddFunc(cfg.ReconcileSpec, func() { runOnce(rootCtx, reconciler, logger) }); err != nil {
		logger.Fatal().Err(err).Str("schedule", cfg.ReconcileSpec).Msg("invalid reconcile schedule")
	}
	c.Start()

	<-rootCtx.Done()
	logger.Info().Msg("shutdown signal received, stopping reconcile worker")
	<-c.Stop().Done()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	_ = srv.Shutdown(shutdownCtx)
}

func runOnce(ctx context.Context, r *booking.Reconciler, logger zerolog.Logger) {
	runCtx, cancel := context.WithTimeout(ctx, 20*time.Second)
	defer cancel()

	start := time.Now()
	orphans, err := r.Run(runCtx)
	if err != nil {
		logger.Error().Err(err).Msg("reconcile run error")
		return
	}
	logger.Info().Int("orphaned", len(orphans)).Dur("took", time.Since(start)).Msg("reconcile run complete")
}
