package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/hackgods/clinic-slot-booking/internal/api"
	"github.com/hackgods/clinic-slot-booking/internal/booking"
	"github.com/hackgods/clinic-slot-booking/internal/config"
	"github.com/hackgods/clinic-slot-booking/internal/db"
	"github.com/hackgods/clinic-slot-booking/internal/dialogue"
	"github.com/hackgods/clinic-slot-booking/internal/events"
	"github.com/hackgods/clinic-slot-booking/internal/logging"
	"github.com/hackgods/clinic-slot-booking/internal/metrics"
	"github.com/hackgods/clinic-slot-booking/internal/notify"
	redisclient "github.com/hackgods/clinic-slot-booking/internal/redis"
)

var version = "dev"

// stores bundles the backend chosen by STORE_BACKEND.
type stores struct {
	store  booking.AvailabilityStore
	ledger booking.Ledger
	checks []api.DependencyCheck
	close  func()
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		logging.Bootstrap().Fatal().Err(err).Msg("config load error")
	}

	logger := logging.New(cfg.Env, cfg.LogLevel).With().Str("service", "api-server").Logger()
	logger.Info().Str("env", cfg.Env).Str("http_port", cfg.HTTPPort).Str("store", cfg.StoreBackend).Msg("api-server starting up")

	rootCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	backend, err := openStores(rootCtx, cfg, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("store connection error")
	}
	defer backend.close()

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	bookingMetrics := metrics.NewBookingMetrics(registry)

	publisher, closePublisher := openPublisher(cfg, logger)
	defer closePublisher()

	sender, err := notify.NewEmailSender(rootCtx, cfg.Email, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("email sender error")
	}
	notifier := notify.NewConfirmationNotifier(sender, cfg.ClinicName, cfg.Email.From, logger)

	svc := booking.NewService(booking.ServiceConfig{
		Store:         backend.store,
		Ledger:        backend.ledger,
		Notifier:      notifier,
		Publisher:     publisher,
		Metrics:       bookingMetrics,
		Logger:        logger,
		ClaimTimeout:  cfg.ClaimTimeout,
		NotifyTimeout: cfg.NotifyTimeout,
	})
	resolver := booking.NewResolver(backend.store)

	// Dialogue sessions live in Redis when it is reachable, in process otherwise.
	checks := backend.checks
	var sessions dialogue.SessionStore = dialogue.NewMemorySessionStore(cfg.SessionTTL)
	var locker dialogue.TurnLocker
	rdb, err := redisclient.NewRedisClient(rootCtx, cfg.RedisAddr, cfg.RedisUsername, cfg.RedisPassword)
	if err != nil {
		logger.Warn().Err(err).Msg("redis unavailable, dialogue sessions kept in memory")
	} else {
		defer func() {
			if err := rdb.Close(); err != nil {
				logger.Error().Err(err).Msg("error closing redis")
			}
		}()
		sessions = redisclient.NewSessionStore(rdb, cfg.SessionTTL)
		locker = redisclient.NewSessionLocker(rdb, 10*time.Second)
		checks = append(checks, api.DependencyCheck{Name: "redis", Ping: redisPing(rdb)})
		logger.Info().Msg("connected to Redis")
	}

	receptionist := dialogue.NewReceptionist(sessions, svc, resolver, nil, logger)
	if locker != nil {
		receptionist = receptionist.WithLocker(locker)
	}

	router := api.NewRouter(api.RouterConfig{
		Service:      svc,
		Suggester:    resolver,
		Receptionist: receptionist,
		Checks:       checks,
		Gatherer:     registry,
		Logger:       logger,
		Env:          cfg.Env,
		Version:      version,
	})

	srv := &http.Server{
		Addr:              ":" + cfg.HTTPPort,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		logger.Info().Str("addr", srv.Addr).Msg("http server listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error().Err(err).Msg("http server error")
			stop()
		}
	}()

	<-rootCtx.Done()
	logger.Info().Msg("shutting down api-server")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("graceful shutdown failed")
	}
}

func openStores(ctx context.Context, cfg config.Config, logger zerolog.Logger) (*stores, error) {
	switch cfg.StoreBackend {
	case config.BackendPostgres:
		pgCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
		defer cancel()

		pool, err := db.ConnectPostgres(pgCtx, cfg.PostgresDSN)
		if err != nil {
			return nil, err
		}
		if err := db.EnsurePostgresSchema(pgCtx, pool); err != nil {
			pool.Close()
			return nil, err
		}
		logger.Info().Msg("connected to Postgres")

		repo := booking.NewPgRepository(pool)
		return &stores{
			store:  repo,
			ledger: repo,
			checks: []api.DependencyCheck{{Name: "postgres", Critical: true, Ping: pool.Ping}},
			close:  pool.Close,
		}, nil

	case config.BackendMongo:
		mongoCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
		defer cancel()

		client, database, err := db.ConnectMongo(mongoCtx, cfg.MongoURI, cfg.MongoDatabase)
		if err != nil {
			return nil, err
		}
		if err := db.EnsureMongoIndexes(mongoCtx, database); err != nil {
			logger.Warn().Err(err).Msg("could not ensure mongo indexes")
		}
		logger.Info().Str("database", cfg.MongoDatabase).Msg("connected to MongoDB")

		repo := booking.NewMongoRepository(database)
		return &stores{
			store:  repo,
			ledger: repo,
			checks: []api.DependencyCheck{{Name: "mongo", Critical: true, Ping: func(ctx context.Context) error {
				return client.Ping(ctx, nil)
			}}},
			close: func() {
				ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				defer cancel()
				if err := client.Disconnect(ctx); err != nil {
					logger.Error().Err(err).Msg("error disconnecting mongo")
				}
			},
		}, nil

	default:
		logger.Warn().Msg("using in-memory store, bookings are lost on restart")
		repo := booking.NewMemoryRepository()
		return &stores{store: repo, ledger: repo, close: func() {}}, nil
	}
}

func openPublisher(cfg config.Config, logger zerolog.Logger) (events.Publisher, func()) {
	if cfg.AMQP.URL == "" {
		return events.NewLogPublisher(logger), func() {}
	}

	p, err := events.NewAMQPPublisher(cfg.AMQP.URL, cfg.AMQP.Exchange)
	if err != nil {
		logger.Warn().Err(err).Msg("amqp unavailable, booking events go to the log")
		return events.NewLogPublisher(logger), func() {}
	}
	logger.Info().Str("exchange", cfg.AMQP.Exchange).Msg("publishing booking events to AMQP")
	return p, func() {
		if err := p.Close(); err != nil {
			logger.Error().Err(err).Msg("error closing amqp publisher")
		}
	}
}

func redisPing(rdb *redis.Client) func(context.Context) error {
	return func(ctx context.Context) error {
		return rdb.Ping(ctx).Err()
	}
}
