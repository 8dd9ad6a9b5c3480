package app

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"github.com/GeruIndu/Intelligent-Building-Management-System/internal/core/port"
	"github.com/GeruIndu/Intelligent-Building-Management-System/internal/infra/config"
	"github.com/GeruIndu/Intelligent-Building-Management-System/internal/infra/database"
	kafkainfra "github.com/GeruIndu/Intelligent-Building-Management-System/internal/infra/kafka"
	"github.com/GeruIndu/Intelligent-Building-Management-System/internal/infra/logger"
	redisinfra "github.com/GeruIndu/Intelligent-Building-Management-System/internal/infra/redis"
	"github.com/GeruIndu/Intelligent-Building-Management-System/internal/infra/security"
	"github.com/GeruIndu/Intelligent-Building-Management-System/internal/infra/telemetry"
	postgresrepo "github.com/GeruIndu/Intelligent-Building-Management-System/internal/repository/postgres"
	redisrepo "github.com/GeruIndu/Intelligent-Building-Management-System/internal/repository/redis"
	"github.com/GeruIndu/Intelligent-Building-Management-System/internal/transport/http/middleware"
	"github.com/GeruIndu/Intelligent-Building-Management-System/internal/transport/http/routes"
	"github.com/GeruIndu/Intelligent-Building-Management-System/internal/usecase"
)

// Application owns the wired service graph and its lifecycle.
type Application struct {
	cfg     *config.AppConfig
	engine  *gin.Engine
	logger  *zap.Logger
	pool     *pgxpool.Pool
	redis    *redisinfra.Client
	tracing  *telemetry.TracerProvider
	producer *kafkainfra.Producer
	reaper   *usecase.StaleSessionReaper
	sweeper  *usecase.ExpiredGrantSweeper
}

// New wires configuration into a runnable application.
func New(ctx context.Context, cfg *config.AppConfig) (*Application, error) {
	log, err := logger.New(cfg.App.Env)
	if err != nil {
		return nil, fmt.Errorf("init logger: %w", err)
	}

	metrics, err := telemetry.Attach(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("init telemetry: %w", err)
	}

	var tracing *telemetry.TracerProvider
	if cfg.Telemetry.OTLPEndpoint != "" {
		tracing, err = telemetry.NewTracerProvider(ctx, cfg.Telemetry, log)
		if err != nil {
			log.Warn("failed to init tracing, continuing without it", zap.Error(err))
			tracing = nil
		}
	}

	if cfg.Postgres.Migrate {
		if err := database.Migrate(cfg.Postgres, log); err != nil {
			return nil, fmt.Errorf("run migrations: %w", err)
		}
	}

	pool, err := database.NewPostgresPool(ctx, cfg.Postgres, log)
	if err != nil {
		return nil, fmt.Errorf("init postgres: %w", err)
	}

	verifier, err := security.NewTokenVerifier(cfg.Auth.SigningKey, cfg.Auth.Issuer)
	if err != nil {
		pool.Close()
		return nil, fmt.Errorf("init token verifier: %w", err)
	}

	redisClient, err := redisinfra.NewClient(cfg.Redis, log)
	if err != nil {
		pool.Close()
		return nil, fmt.Errorf("init redis: %w", err)
	}

	grantCacheTTL := cfg.Redis.GrantCacheTTL
	if grantCacheTTL <= 0 {
		grantCacheTTL = 5 * time.Minute
	}
	grantCache := redisrepo.NewGrantCache(redisClient.Client(), cfg.Redis.GrantCachePrefix, grantCacheTTL)

	repos := postgresrepo.NewRepositories(pool)

	var eventPublisher port.EventPublisher
	var producer *kafkainfra.Producer
	if len(cfg.Kafka.Brokers) > 0 {
		kafkaProducer, err := kafkainfra.NewProducer(cfg.Kafka, log)
		if err != nil {
			log.Warn("failed to init kafka producer, using stub publisher", zap.Error(err))
			eventPublisher = kafkainfra.NewStubPublisher(log)
		} else {
			producer = kafkaProducer
			eventPublisher = kafkainfra.NewEventPublisher(kafkaProducer, cfg.App, log)
			log.Info("kafka event publisher initialized", zap.Strings("brokers", cfg.Kafka.Brokers))
		}
	} else {
		log.Info("kafka brokers not configured, using stub publisher")
		eventPublisher = kafkainfra.NewStubPublisher(log)
	}

	gate := usecase.NewPermissionGate(repos.Grants, log).
		WithGrantCache(grantCache)

	sessionService := usecase.NewSessionService(repos.Sessions, repos.Spaces, gate, eventPublisher, log)

	grantService := usecase.NewGrantService(repos.Grants, repos.Spaces, eventPublisher, log).
		WithGrantCache(grantCache)

	reaper := usecase.NewStaleSessionReaper(repos.Sessions, eventPublisher, usecase.ReaperConfig{
		Interval:      cfg.Reaper.Interval,
		IdleThreshold: cfg.Reaper.IdleThreshold,
		BatchSize:     cfg.Reaper.BatchSize,
	}, log).WithMetrics(metrics.SessionsReaped(), metrics.ReaperSweepErrors())

	sweeper := usecase.NewExpiredGrantSweeper(repos.Grants, grantCache, eventPublisher, cfg.Sweeper.Interval, log).
		WithMetrics(metrics.GrantsExpired(), metrics.GrantSweepErrors())

	httpMetrics, err := middleware.NewHTTPMetrics(middleware.HTTPMetricsOptions{})
	if err != nil {
		log.Warn("failed to init http metrics", zap.Error(err))
		httpMetrics = nil
	}

	engine := routes.Register(routes.Dependencies{
		Config:   cfg,
		Logger:   log,
		Verifier: verifier,
		Metrics:  httpMetrics,
		Database: pool,
		Cache:    redisClient,
		Services: routes.ServiceSet{
			Sessions: sessionService,
			Grants:   grantService,
			Gate:     gate,
		},
	})

	return &Application{
		cfg:      cfg,
		engine:   engine,
		logger:   log,
		pool:     pool,
		redis:    redisClient,
		tracing:  tracing,
		producer: producer,
		reaper:   reaper,
		sweeper:  sweeper,
	}, nil
}

// Run starts the HTTP server and background sweeps, blocking until the
// context is cancelled or the server fails.
func (a *Application) Run(ctx context.Context) error {
	defer func() {
		_ = a.logger.Sync()
	}()
	defer func() {
		if a.pool != nil {
			a.pool.Close()
		}
	}()
	defer func() {
		if a.redis != nil {
			_ = a.redis.Close()
		}
	}()
	defer func() {
		if a.tracing != nil {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			_ = a.tracing.Shutdown(shutdownCtx)
		}
	}()
	// Closed after the sweeps stop so their final events still flush.
	defer func() {
		if a.producer != nil {
			if err := a.producer.Close(); err != nil {
				a.logger.Warn("close kafka producer", zap.Error(err))
			}
		}
	}()

	a.reaper.Start(ctx)
	defer a.reaper.Stop()

	a.sweeper.Start(ctx)
	defer a.sweeper.Stop()

	srv := &http.Server{
		Addr:              fmt.Sprintf("%s:%d", a.cfg.App.Host, a.cfg.App.Port),
		Handler:           a.engine,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	a.logger.Info("starting presence API",
		zap.String("env", a.cfg.App.Env),
		zap.String("address", srv.Addr),
	)

	serverErrCh := make(chan error, 1)
	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			serverErrCh <- fmt.Errorf("run server: %w", err)
		}
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("shutdown server: %w", err)
		}
		return nil
	case err := <-serverErrCh:
		return err
	}
}
