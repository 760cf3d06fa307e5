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

	httptransport "github.com/spec-kit/marketplace-api/internal/api/http"
	"github.com/spec-kit/marketplace-api/internal/api/http/handlers"
	"github.com/spec-kit/marketplace-api/internal/auth"
	"github.com/spec-kit/marketplace-api/internal/config"
	"github.com/spec-kit/marketplace-api/internal/events"
	"github.com/spec-kit/marketplace-api/internal/observability"
	"github.com/spec-kit/marketplace-api/internal/persistence"
	"github.com/spec-kit/marketplace-api/internal/repository"
	"github.com/spec-kit/marketplace-api/internal/service"
	"github.com/spec-kit/marketplace-api/internal/session"
	"github.com/spec-kit/marketplace-api/internal/storage"
	"github.com/spec-kit/marketplace-api/internal/worker"
)

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

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	pg, err := persistence.NewPostgres(ctx, cfg.Postgres, cfg.App.Name, logger)
	if err != nil {
		logger.Fatal("failed to connect postgres", zap.Error(err))
	}
	defer pg.Close()

	if cfg.Postgres.RunMigrations {
		if err := persistence.RunMigrations(ctx, pg.PoolHandle(), logger); err != nil {
			logger.Fatal("failed to run migrations", zap.Error(err))
		}
	}

	redis, err := persistence.NewRedis(ctx, cfg.Redis, logger)
	if err != nil {
		logger.Fatal("invalid redis settings", zap.Error(err))
	}
	defer redis.Close()

	pool := pg.PoolHandle()
	accountRepo := repository.NewAccountRepository(pool)
	profileRepo := repository.NewProfileRepository(pool)
	otpRepo := repository.NewOTPRepository(redis.Client)

	tokens, err := auth.NewTokenCodec(
		cfg.Auth.AccessTokenSecret,
		cfg.Auth.RefreshTokenSecret,
		cfg.Auth.AccessTTL(),
		cfg.Auth.RefreshTTL(),
	)
	if err != nil {
		logger.Fatal("invalid token settings", zap.Error(err))
	}
	issuer := auth.NewSessionIssuer(tokens, cfg.Cookie)
	gate := auth.NewGate(tokens, issuer, session.NewStore(accountRepo, profileRepo), logger.Named("auth"))

	dispatcher := events.NewInMemoryDispatcher()
	notifier := worker.StartNotificationWorker(
		service.NewNotificationService(dispatcher,
			service.NewLogMailer(cfg.Notification.EmailFrom, logger.Named("mail")),
			logger.Named("notify"), cfg.Notification),
		dispatcher, logger.Named("worker"), 256,
	)

	var images service.ImageStorage
	if store, err := storage.NewImageStore(ctx, cfg.Storage); err != nil {
		logger.Warn("profile image storage disabled", zap.Error(err))
	} else {
		images = store
	}

	authService := service.NewAuthService(cfg.Auth, service.AuthDependencies{
		AccountRepo: accountRepo,
		OTPRepo:     otpRepo,
		Dispatcher:  notifier,
	}, logger)
	accountService := service.NewAccountService(accountRepo, profileRepo, images, notifier, logger)

	metrics := observability.NewMetrics()
	app := fiber.New(fiber.Config{
		AppName:      cfg.App.Name,
		ReadTimeout:  cfg.App.RequestTimeout(),
		WriteTimeout: cfg.App.RequestTimeout(),
	})
	httptransport.RegisterMiddlewares(app, logger, metrics, httptransport.MiddlewareOptions{
		Timeout:        cfg.App.RequestTimeout(),
		AllowedOrigins: cfg.CORS.AllowedOrigins,
	})

	httptransport.RegisterRoutes(app, httptransport.RouteConfig{
		Health:  handlers.NewHealthHandler(cfg.App.Name, cfg.App.Version, pg, redis, metrics),
		Auth:    handlers.NewAuthHandler(authService, issuer),
		Account: handlers.NewAccountHandler(accountService),
		Gate:    gate,
		Limiter: httptransport.CredentialLimiter(cfg.RateLimit.Max, cfg.RateLimit.Window()),
	})

	go func() {
		if err := app.Listen(cfg.App.Addr()); err != nil {
			logger.Fatal("fiber listen", zap.Error(err))
		}
	}()

	waitForShutdown(logger)

	if err := app.ShutdownWithTimeout(10 * time.Second); err != nil {
		logger.Warn("shutdown", zap.Error(err))
	}
	notifier.Stop()
}

func waitForShutdown(logger *zap.Logger) {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	sig := <-sigCh
	logger.Info("shutting down", zap.String("signal", sig.String()))
}
