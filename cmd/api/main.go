package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	httptransport "github.com/spec-kit/hotel-booking/internal/api/http"
	"github.com/spec-kit/hotel-booking/internal/api/http/handlers"
	"github.com/spec-kit/hotel-booking/internal/auth"
	"github.com/spec-kit/hotel-booking/internal/clock"
	"github.com/spec-kit/hotel-booking/internal/config"
	"github.com/spec-kit/hotel-booking/internal/events"
	"github.com/spec-kit/hotel-booking/internal/observability"
	"github.com/spec-kit/hotel-booking/internal/persistence"
	"github.com/spec-kit/hotel-booking/internal/repository"
	"github.com/spec-kit/hotel-booking/internal/service"
	"github.com/spec-kit/hotel-booking/internal/worker"
)

const janitorInterval = time.Hour

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logger, err := observability.NewLogger(cfg.Logger, cfg.App)
	if err != nil {
		log.Fatalf("failed to init logger: %v", err)
	}
	defer logger.Sync() //nolint:errcheck

	if err := observability.InitSentry(cfg.Sentry.DSN, cfg.Sentry.Environment, cfg.App.Version); err != nil {
		logger.Warn("sentry disabled", zap.Error(err))
	}
	defer observability.FlushSentry()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	pg, err := persistence.NewPostgres(ctx, cfg.Postgres, logger)
	if err != nil {
		logger.Fatal("failed to connect postgres", zap.Error(err))
	}
	defer pg.Close()

	pool := pg.PoolHandle()
	if pool == nil {
		logger.Fatal("POSTGRES_DSN is required for the user store")
	}

	if cfg.Postgres.RunMigrations {
		if err := persistence.RunMigrations(ctx, pool, logger); err != nil {
			logger.Fatal("failed to run migrations", zap.Error(err))
		}
	}

	dependencies := map[string]handlers.Pinger{"postgres": pg}
	clk := clock.System{}

	var store repository.RefreshTokenStore
	switch cfg.Auth.RefreshStoreBackend {
	case config.StoreBackendRedis:
		redis := persistence.NewRedis(ctx, cfg.Redis, cfg.Auth.StoreTimeout(), logger)
		defer redis.Close()
		dependencies["redis"] = redis
		store = repository.NewRedisRefreshTokenStore(redis.Client, redis.KeyPrefix, cfg.Auth.RefreshTTL())
	case config.StoreBackendPostgres:
		store = repository.NewPostgresRefreshTokenStore(pool)
	case config.StoreBackendSQLite:
		sqlite, err := persistence.NewSQLite(ctx, cfg.SQLite, logger)
		if err != nil {
			logger.Fatal("failed to open sqlite", zap.Error(err))
		}
		defer sqlite.Close()
		dependencies["sqlite"] = sqlite
		store, err = repository.NewSQLiteRefreshTokenStore(ctx, sqlite.DB)
		if err != nil {
			logger.Fatal("failed to init sqlite store", zap.Error(err))
		}
	case config.StoreBackendMemory:
		logger.Warn("refresh tokens are kept in memory and lost on restart")
		store = repository.NewMemoryRefreshTokenStore()
	}
	logger.Info("refresh token store ready", zap.String("backend", cfg.Auth.RefreshStoreBackend))

	if purger, ok := store.(repository.StalePurger); ok {
		janitor := worker.NewTokenJanitor(purger, cfg.Auth.RefreshTTL(), janitorInterval, clk, logger)
		go janitor.Start(ctx)
	}

	codec, err := auth.NewTokenCodec(cfg.Auth.JWTSecret)
	if err != nil {
		logger.Fatal("failed to init token codec", zap.Error(err))
	}

	metrics := observability.NewMetrics()
	dispatcher := events.NewInMemoryDispatcher()
	worker.StartAuditWorker(ctx, service.NewAuditService(dispatcher, logger, metrics, cfg.Audit))

	userRepo := repository.NewUserRepository(pool)
	tokenService := service.NewTokenService(cfg.Auth, service.TokenDependencies{
		Codec:      codec,
		Store:      store,
		Users:      userRepo,
		Dispatcher: dispatcher,
		Logger:     logger,
	})
	authService := service.NewAuthService(cfg.Auth, service.AuthDependencies{
		UserRepo: userRepo,
		Tokens:   tokenService,
	})
	authenticator := auth.NewAuthenticator(codec, userRepo, clk, logger, cfg.Auth.StoreTimeout())

	app := fiber.New(fiber.Config{AppName: cfg.App.Name})
	httptransport.RegisterMiddlewares(app, logger, metrics, cfg.App.RequestTimeout())

	httptransport.RegisterRoutes(app, httptransport.RouteConfig{
		Health:        handlers.NewHealthHandler(cfg.App.Name, cfg.App.Version, dependencies),
		Metrics:       handlers.NewMetricsHandler(metrics),
		Auth:          handlers.NewAuthHandler(authService, tokenService, clk),
		Authenticator: authenticator,
	})

	go func() {
		if err := app.Listen(cfg.App.Addr()); err != nil {
			logger.Fatal("fiber listen", zap.Error(err))
		}
	}()

	waitForShutdown(logger)

	cancel()
	_ = app.Shutdown()
}

func waitForShutdown(logger *zap.Logger) {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	sig := <-sigCh
	logger.Info("shutting down", zap.String("signal", sig.String()))
}
