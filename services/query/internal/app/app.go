// Package app wires together the ratings query service.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	goredis "github.com/redis/go-redis/v9"

	"github.com/franciscolopezv/rating-domain-services/pkg/database"
	"github.com/franciscolopezv/rating-domain-services/pkg/eventlog"
	"github.com/franciscolopezv/rating-domain-services/pkg/health"
	pkgkafka "github.com/franciscolopezv/rating-domain-services/pkg/kafka"
	"github.com/franciscolopezv/rating-domain-services/pkg/tracing"
	"github.com/franciscolopezv/rating-domain-services/services/query/internal/config"
	"github.com/franciscolopezv/rating-domain-services/services/query/internal/event"
	"github.com/franciscolopezv/rating-domain-services/services/query/internal/graphql"
	handler "github.com/franciscolopezv/rating-domain-services/services/query/internal/handler/http"
	"github.com/franciscolopezv/rating-domain-services/services/query/internal/projection"
	"github.com/franciscolopezv/rating-domain-services/services/query/internal/repository"
	statspg "github.com/franciscolopezv/rating-domain-services/services/query/internal/repository/postgres"
	statscache "github.com/franciscolopezv/rating-domain-services/services/query/internal/repository/redis"
	"github.com/franciscolopezv/rating-domain-services/services/query/migrations"
)

// App wires together all dependencies and runs the ratings query service.
type App struct {
	cfg            *config.Config
	logger         *slog.Logger
	statsPool      *pgxpool.Pool
	eventsPool     *pgxpool.Pool
	redisClient    *goredis.Client
	consumer       *pkgkafka.Consumer
	projector      *projection.Projector
	httpServer     *http.Server
	tracerShutdown func(context.Context) error
}

// NewApp creates a new application instance, initializing all dependencies.
func NewApp(cfg *config.Config, logger *slog.Logger) (*App, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	// Initialize OpenTelemetry tracing.
	tracerShutdown, err := tracing.InitTracer(ctx, tracing.Config{
		ServiceName:    "ratings-query",
		ServiceVersion: "0.1.0",
		Environment:    cfg.Environment,
		OTLPEndpoint:   cfg.OTELEndpoint,
		SampleRate:     cfg.OTELSampleRate,
		Enabled:        cfg.OTELEnabled,
	})
	if err != nil {
		return nil, fmt.Errorf("init tracer: %w", err)
	}

	// Read store pool (stats database).
	statsPool, err := newPool(ctx, cfg, cfg.PostgresDB)
	if err != nil {
		return nil, fmt.Errorf("connect to stats postgres: %w", err)
	}
	logger.Info("connected to stats PostgreSQL",
		slog.String("host", cfg.PostgresHost),
		slog.String("database", cfg.PostgresDB),
	)
	database.RegisterPoolMetrics(statsPool, "ratings-query-stats")

	if err := database.RunMigrations(ctx, statsPool, migrations.FS, logger); err != nil {
		statsPool.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}
	logger.Info("database migrations completed")

	// Event log pool (events database, owned by the command service; the
	// query side only reads it for catch-up, rebuilds, and reconciliation).
	eventsPool, err := newPool(ctx, cfg, cfg.EventsDB)
	if err != nil {
		statsPool.Close()
		return nil, fmt.Errorf("connect to events postgres: %w", err)
	}
	logger.Info("connected to events PostgreSQL",
		slog.String("host", cfg.PostgresHost),
		slog.String("database", cfg.EventsDB),
	)
	database.RegisterPoolMetrics(eventsPool, "ratings-query-events")

	if cfg.SlowQueryThresholdMs > 0 {
		database.SetSlowQueryLogging(time.Duration(cfg.SlowQueryThresholdMs)*time.Millisecond, logger)
	}

	// Redis stats cache. The cache is an optimization; when Redis is down
	// the service starts without it and serves reads from Postgres.
	var redisClient *goredis.Client
	redisClient, err = database.NewRedisClient(ctx, database.RedisConfig{
		Host:     cfg.RedisHost,
		Port:     cfg.RedisPort,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	})
	if err != nil {
		logger.Warn("redis unavailable, starting without stats cache",
			slog.String("error", err.Error()),
		)
		redisClient = nil
	} else {
		logger.Info("connected to Redis", slog.String("host", cfg.RedisHost))
	}

	// Build the dependency graph.
	statsRepo := statspg.NewStatsRepository(statsPool)
	log := eventlog.NewPostgresEventLog(eventsPool)

	var reader repository.StatsReader = statsRepo
	var invalidator projection.Invalidator
	if redisClient != nil {
		cached := statscache.NewCachedStatsReader(
			statsRepo, redisClient, time.Duration(cfg.CacheTTLSeconds)*time.Second, logger,
		)
		reader = cached
		invalidator = cached
	}

	projector := projection.NewProjector(log, statsRepo, invalidator, logger)

	// Kafka consumer with idempotent handler and DLQ.
	idempotencyStore := pkgkafka.NewMemoryIdempotencyStore(
		time.Duration(cfg.IdempotencyTTLMinutes) * time.Minute,
	)
	ratingHandler := pkgkafka.IdempotentHandler(
		idempotencyStore,
		event.NewRatingSubmittedHandler(projector, logger),
		logger,
	)
	consumer := pkgkafka.NewConsumer(pkgkafka.ConsumerConfig{
		Brokers:   cfg.KafkaBrokers,
		GroupID:   cfg.KafkaConsumerGroup,
		Topic:     event.TopicRatingSubmitted,
		MinBytes:  1,
		MaxBytes:  10e6,
		EnableDLQ: true,
	}, ratingHandler, logger)

	// Health checks. The events database and Redis are non-critical: reads
	// are served from the stats store, and reconciliation retries.
	healthHandler := health.NewHandler()
	healthHandler.RegisterCritical("postgres_stats", func(ctx context.Context) error {
		return statsPool.Ping(ctx)
	})
	healthHandler.RegisterNonCritical("postgres_events", func(ctx context.Context) error {
		return eventsPool.Ping(ctx)
	})
	if redisClient != nil {
		healthHandler.RegisterNonCritical("redis", func(ctx context.Context) error {
			return redisClient.Ping(ctx).Err()
		})
	}

	// GraphQL schema and HTTP router.
	schema, err := graphql.NewSchema(reader, logger)
	if err != nil {
		statsPool.Close()
		eventsPool.Close()
		return nil, fmt.Errorf("parse graphql schema: %w", err)
	}
	router := handler.NewRouter(schema, projector, healthHandler, logger, cfg.PprofAllowedCIDRs)

	httpServer := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.HTTPPort),
		Handler:           router,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       60 * time.Second,
		ReadHeaderTimeout: 10 * time.Second,
	}

	return &App{
		cfg:            cfg,
		logger:         logger,
		statsPool:      statsPool,
		eventsPool:     eventsPool,
		redisClient:    redisClient,
		consumer:       consumer,
		projector:      projector,
		httpServer:     httpServer,
		tracerShutdown: tracerShutdown,
	}, nil
}

func newPool(ctx context.Context, cfg *config.Config, dbName string) (*pgxpool.Pool, error) {
	return database.NewPostgresPool(ctx, &database.PostgresConfig{
		Host:            cfg.PostgresHost,
		Port:            cfg.PostgresPort,
		User:            cfg.PostgresUser,
		Password:        cfg.PostgresPass,
		DBName:          dbName,
		SSLMode:         cfg.PostgresSSL,
		MaxConns:        cfg.DBMaxConns,
		MinConns:        cfg.DBMinConns,
		MaxConnLifetime: time.Duration(cfg.DBMaxConnLifetimeMins) * time.Minute,
		MaxConnIdleTime: time.Duration(cfg.DBMaxConnIdleTimeMins) * time.Minute,
	})
}

// Run starts the HTTP server, the Kafka consumer, and the reconciliation
// sweep. It blocks until the context is canceled.
func (a *App) Run(ctx context.Context) error {
	errCh := make(chan error, 1)
	workerCtx, cancelWorkers := context.WithCancel(context.Background())
	defer cancelWorkers()

	var wg sync.WaitGroup

	wg.Add(1)
	go func() {
		defer wg.Done()
		if err := a.consumer.Start(workerCtx); err != nil {
			a.logger.Error("kafka consumer stopped with error", slog.String("error", err.Error()))
		}
	}()

	wg.Add(1)
	go func() {
		defer wg.Done()
		a.projector.RunReconciliation(workerCtx, time.Duration(a.cfg.ReconcileIntervalSeconds)*time.Second)
	}()

	go func() {
		a.logger.Info("starting HTTP server",
			slog.String("addr", a.httpServer.Addr),
		)
		if err := a.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- fmt.Errorf("http server: %w", err)
		}
	}()

	select {
	case <-ctx.Done():
		a.logger.Info("shutdown signal received")
	case err := <-errCh:
		cancelWorkers()
		wg.Wait()
		return err
	}

	err := a.Shutdown(cancelWorkers)
	wg.Wait()
	return err
}

// Shutdown gracefully stops all components in the correct order:
// 1. HTTP server (drain in-flight requests)
// 2. Tracer (flush pending spans from drained requests)
// 3. Kafka consumer and reconciliation sweep
// 4. Redis client and PostgreSQL pools
func (a *App) Shutdown(stopWorkers context.CancelFunc) error {
	a.logger.Info("shutting down application...")

	var errs []error

	// 1. Drain in-flight HTTP requests (5s budget).
	httpCtx, httpCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer httpCancel()
	if err := a.httpServer.Shutdown(httpCtx); err != nil {
		a.logger.Error("http server shutdown error", slog.String("error", err.Error()))
		errs = append(errs, err)
	}

	// 2. Flush pending spans after HTTP drain so in-flight request spans are captured.
	if a.tracerShutdown != nil {
		tracerCtx, tracerCancel := context.WithTimeout(context.Background(), 3*time.Second)
		defer tracerCancel()
		if err := a.tracerShutdown(tracerCtx); err != nil {
			a.logger.Error("tracer shutdown error", slog.String("error", err.Error()))
			errs = append(errs, err)
		}
	}

	// 3. Stop the consumer and the reconciliation sweep.
	if stopWorkers != nil {
		stopWorkers()
	}
	if err := a.consumer.Close(); err != nil {
		a.logger.Error("kafka consumer close error", slog.String("error", err.Error()))
		errs = append(errs, err)
	}

	// 4. Close Redis and the PostgreSQL pools.
	if a.redisClient != nil {
		if err := a.redisClient.Close(); err != nil {
			a.logger.Error("redis close error", slog.String("error", err.Error()))
			errs = append(errs, err)
		}
	}
	a.eventsPool.Close()
	a.statsPool.Close()

	a.logger.Info("application shutdown complete")
	return errors.Join(errs...)
}
