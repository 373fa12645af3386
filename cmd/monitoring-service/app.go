package main

import (
	"context"
	"database/sql"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"github.com/sony/gobreaker"
	"go.mongodb.org/mongo-driver/mongo"

	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"

	"rivalwatch/internal/config"
	"rivalwatch/internal/constants"
	"rivalwatch/internal/fetcher"
	"rivalwatch/internal/logger"
	"rivalwatch/internal/monitoring"
	"rivalwatch/pkg/bootstrap"
	"rivalwatch/pkg/cel"
	"rivalwatch/pkg/circuitbreaker"
	"rivalwatch/pkg/health"
	"rivalwatch/pkg/metrics"
	"rivalwatch/pkg/middleware"
	"rivalwatch/pkg/migrations"
	"rivalwatch/pkg/ratelimit"
	"rivalwatch/pkg/tracing"
)

type App struct {
	config         *config.Config
	logger         logger.Logger
	base           *bootstrap.Base
	dbConnector    *bootstrap.DatabaseConnector
	db             *sql.DB
	redisClient    *redis.Client
	mongoClient    *mongo.Client
	breaker        *circuitbreaker.Wrapper
	service        monitoring.Service
	scheduler      *monitoring.Scheduler
	server         *http.Server
	router         *gin.Engine
	tracerProvider *tracing.TracerProvider
}

func NewApp(cfg *config.Config, log logger.Logger) *App {
	return &App{
		config:      cfg,
		logger:      log,
		base:        bootstrap.NewBase(cfg, log),
		dbConnector: bootstrap.NewDatabaseConnector(cfg, log),
	}
}

// Initialize builds everything the HTTP server needs.
func (a *App) Initialize(ctx context.Context) error {
	tp, err := tracing.Init(a.config.Tracing, constants.ServiceName)
	if err != nil {
		return fmt.Errorf("failed to initialize tracing: %w", err)
	}
	a.tracerProvider = tp

	metrics.Register()

	if err := a.initService(ctx); err != nil {
		return err
	}

	if err := a.initRouter(); err != nil {
		return fmt.Errorf("failed to initialize router: %w", err)
	}

	if err := a.initServer(); err != nil {
		return fmt.Errorf("failed to initialize server: %w", err)
	}

	if a.config.Scheduler.Enabled {
		a.scheduler = monitoring.NewScheduler(a.service, a.config.Scheduler.TickInterval, a.logger)
	}

	return nil
}

// initService opens the stores and assembles the monitoring coordinator.
// The one-shot CLI commands stop here.
func (a *App) initService(ctx context.Context) error {
	if err := a.initDatabases(ctx); err != nil {
		return fmt.Errorf("failed to initialize databases: %w", err)
	}

	configs, snapshots, err := a.initRepositories(ctx)
	if err != nil {
		return fmt.Errorf("failed to initialize repositories: %w", err)
	}

	source, err := a.initSource()
	if err != nil {
		return fmt.Errorf("failed to initialize fetcher: %w", err)
	}

	evaluator, err := cel.NewEvaluator()
	if err != nil {
		return fmt.Errorf("failed to initialize filter evaluator: %w", err)
	}

	opts := []monitoring.ServiceOption{
		monitoring.WithConcurrency(a.config.Monitoring.CompetitorConcurrency),
		monitoring.WithCheckPolicy(a.config.Monitoring.CheckPolicy),
		monitoring.WithLocker(a.initLocker()),
		monitoring.WithDefaultFrequency(monitoring.Frequency(a.config.Monitoring.DefaultFrequency)),
	}

	fanout := a.base.InitNotifiers()
	if fanout.Len() > 0 {
		opts = append(opts, monitoring.WithNotifier(fanout))
	}

	a.service = monitoring.NewService(configs, snapshots, source, evaluator, a.logger, opts...)
	return nil
}

func (a *App) initDatabases(ctx context.Context) error {
	initCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	if a.dbConnector.Needs(constants.BackendPostgres) {
		db, err := a.dbConnector.InitPostgreSQL(initCtx)
		if err != nil {
			return err
		}
		a.db = db

		if a.config.Database.RunMigrations {
			if err := migrations.RunPostgres(db); err != nil {
				return fmt.Errorf("failed to run migrations: %w", err)
			}
			a.logger.Info("PostgreSQL migrations applied")
		}
	}

	if a.dbConnector.Needs(constants.BackendRedis) {
		client, err := a.dbConnector.InitRedis(initCtx)
		if err != nil {
			return err
		}
		a.redisClient = client
	}

	if a.dbConnector.Needs(constants.BackendMongoDB) {
		client, err := a.dbConnector.InitMongoDB(initCtx)
		if err != nil {
			return err
		}
		a.mongoClient = client

		if err := migrations.EnsureMongoIndexes(initCtx, a.dbConnector.MongoDatabase(client)); err != nil {
			return fmt.Errorf("failed to ensure mongodb indexes: %w", err)
		}
	}

	return nil
}

func (a *App) initRepositories(ctx context.Context) (monitoring.ConfigRepository, monitoring.SnapshotRepository, error) {
	var memory *monitoring.MemoryRepository
	inMemory := func() *monitoring.MemoryRepository {
		if memory == nil {
			memory = monitoring.NewMemoryRepository()
		}
		return memory
	}

	var configs monitoring.ConfigRepository
	switch a.config.Storage.ConfigBackend {
	case constants.BackendPostgres:
		configs = monitoring.NewPostgresConfigRepository(a.db)
	case constants.BackendMongoDB:
		configs = monitoring.NewMongoConfigRepository(a.dbConnector.MongoDatabase(a.mongoClient))
	case constants.BackendMemory, "":
		configs = inMemory()
	default:
		return nil, nil, fmt.Errorf("unsupported config backend %q", a.config.Storage.ConfigBackend)
	}

	var snapshots monitoring.SnapshotRepository
	switch a.config.Storage.SnapshotBackend {
	case constants.BackendRedis:
		snapshots = monitoring.NewRedisSnapshotRepository(a.redisClient, a.dbConnector.RedisKeyPrefix())
	case constants.BackendMongoDB:
		snapshots = monitoring.NewMongoSnapshotRepository(a.dbConnector.MongoDatabase(a.mongoClient))
	case constants.BackendMemory, "":
		snapshots = inMemory()
	default:
		return nil, nil, fmt.Errorf("unsupported snapshot backend %q", a.config.Storage.SnapshotBackend)
	}

	a.logger.InfowCtx(ctx, "Storage initialized",
		"config_backend", a.config.Storage.ConfigBackend,
		"snapshot_backend", a.config.Storage.SnapshotBackend,
	)
	return configs, snapshots, nil
}

func (a *App) initLocker() monitoring.KeywordLocker {
	if a.config.Monitoring.LockBackend == constants.LockBackendRedis && a.redisClient != nil {
		return monitoring.NewRedisLocker(a.redisClient, a.dbConnector.RedisKeyPrefix(), a.config.Monitoring.LockTTL, a.logger)
	}
	return monitoring.NewLocalLocker()
}

func (a *App) initSource() (monitoring.SnapshotSource, error) {
	fc := a.config.Fetcher

	var productFetcher fetcher.ProductFetcher
	switch fc.Type {
	case constants.FetcherTypeHTML:
		productFetcher = fetcher.NewHTMLFetcher(fc.BaseURL, fc.Headers, fc.Timeout, fetcher.DefaultHTMLSelectors())
	default:
		productFetcher = fetcher.NewAPIFetcher(fetcher.APIFetcherConfig{
			BaseURL: fc.BaseURL,
			Headers: fc.Headers,
			Display: fc.Display,
			Timeout: fc.Timeout,
		})
	}

	if a.config.CircuitBreaker.Enabled {
		cbc := a.config.CircuitBreaker
		cbFetcher := fetcher.NewCircuitBreakerFetcher(productFetcher, circuitbreaker.Config{
			Name:        "fetcher-" + fc.Type,
			MaxRequests: cbc.MaxRequests,
			Interval:    cbc.Interval,
			Timeout:     cbc.Timeout,
			ReadyToTrip: circuitbreaker.RatioTrip(cbc.MinRequests, cbc.FailureRatio),
			OnStateChange: func(name string, from, to gobreaker.State) {
				a.logger.Warnw("Circuit breaker state changed", "name", name, "from", from.String(), "to", to.String())
			},
		})
		a.breaker = cbFetcher.Breaker()
		productFetcher = cbFetcher
	}

	fallback, err := fetcher.NewFallbackGenerator(a.config.Fallback.Timezone, a.config.Fallback.MinProducts, a.config.Fallback.MaxProducts)
	if err != nil {
		return nil, err
	}

	var opts []fetcher.OrchestratorOption
	opts = append(opts, fetcher.WithMetricsLabel(fc.Type))
	if fc.RateLimit.RPS > 0 {
		opts = append(opts, fetcher.WithPacer(ratelimit.NewPacer(fc.RateLimit.RPS, fc.RateLimit.Burst)))
	}

	return fetcher.NewOrchestrator(productFetcher, fallback,
		fc.Retry.MaxAttempts, fc.Retry.BaseDelay, fc.Retry.MaxDelay,
		a.logger, opts...), nil
}

func (a *App) initRouter() error {
	gin.SetMode(gin.ReleaseMode)
	router := gin.New()

	if a.config.Tracing.Enabled {
		router.Use(tracing.GinMiddleware(constants.ServiceName))
	}

	router.Use(middleware.RecoveryMiddleware(a.logger))
	router.Use(middleware.LoggerMiddleware(a.logger))
	router.Use(middleware.RequestIDMiddleware())

	if a.config.API.RateLimit.Enabled {
		rateLimitConfig := ratelimit.RateLimitConfig{
			RPS:             a.config.API.RateLimit.RPS,
			Burst:           a.config.API.RateLimit.Burst,
			CleanupInterval: time.Duration(a.config.API.RateLimit.CleanupInterval) * time.Second,
			MaxAge:          time.Duration(a.config.API.RateLimit.MaxAge) * time.Second,
		}
		router.Use(ratelimit.RateLimitMiddleware(rateLimitConfig))
		a.logger.InfowCtx(context.Background(), "Rate limiting enabled", "rps", rateLimitConfig.RPS, "burst", rateLimitConfig.Burst)
	}

	monitoring.NewHandler(a.service, a.logger).RegisterRoutes(router)

	healthRegistry := health.NewCheckerRegistry()
	if a.db != nil {
		healthRegistry.Register(health.NewPostgreSQLChecker(a.db))
	}
	if a.redisClient != nil {
		healthRegistry.Register(health.NewRedisChecker(a.redisClient))
	}
	if a.mongoClient != nil {
		healthRegistry.Register(health.NewMongoDBChecker(a.mongoClient))
	}
	if a.breaker != nil {
		healthRegistry.Register(health.NewCircuitBreakerChecker(a.breaker))
	}

	router.GET("/health", func(c *gin.Context) {
		h := healthRegistry.Check(c.Request.Context())
		statusCode := http.StatusOK
		if h.Status == health.StatusUnhealthy {
			statusCode = http.StatusServiceUnavailable
		}
		c.JSON(statusCode, h)
	})

	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	router.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))

	a.router = router
	return nil
}

func (a *App) initServer() error {
	a.server = &http.Server{
		Addr:         fmt.Sprintf(":%d", a.config.Server.Port),
		Handler:      a.router,
		ReadTimeout:  a.config.Server.ReadTimeout,
		WriteTimeout: a.config.Server.WriteTimeout,
	}
	return nil
}

func (a *App) Run(ctx context.Context) error {
	ln, err := net.Listen("tcp", a.server.Addr)
	if err != nil {
		return fmt.Errorf("failed to listen: %w", err)
	}
	return a.serve(ctx, ln)
}

// serve handles requests on ln until ctx is done. Request contexts derive
// from ctx, so a shutdown signal also cancels in-flight checks and their
// retry backoff.
func (a *App) serve(ctx context.Context, ln net.Listener) error {
	a.server.BaseContext = func(net.Listener) context.Context { return ctx }

	if a.scheduler != nil {
		go a.scheduler.Run(ctx)
		a.logger.InfowCtx(ctx, "Scheduler started", "tick", a.config.Scheduler.TickInterval)
	}

	errChan := make(chan error, 1)
	go func() {
		a.logger.InfowCtx(ctx, "Server listening", "addr", ln.Addr().String())
		if err := a.server.Serve(ln); err != nil && err != http.ErrServerClosed {
			errChan <- fmt.Errorf("server error: %w", err)
		}
	}()

	select {
	case <-ctx.Done():
		return a.Shutdown(ctx)
	case err := <-errChan:
		return err
	}
}

func (a *App) Shutdown(ctx context.Context) error {
	shutdownCtx, cancel := context.WithTimeout(context.Background(), constants.ShutdownTimeout)
	defer cancel()

	return a.base.Shutdown(shutdownCtx, func(ctx context.Context) []error {
		var errs []error

		if a.server != nil {
			if err := a.server.Shutdown(ctx); err != nil {
				errs = append(errs, fmt.Errorf("server shutdown error: %w", err))
			}
		}

		if a.tracerProvider != nil {
			if err := a.tracerProvider.Shutdown(ctx); err != nil {
				errs = append(errs, fmt.Errorf("tracer provider shutdown error: %w", err))
			}
		}

		return append(errs, a.dbConnector.ShutdownDatabases(ctx, a.redisClient, a.db, a.mongoClient)...)
	})
}
