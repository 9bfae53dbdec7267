package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"slangmaster/config"
	"slangmaster/handlers"
	"slangmaster/middleware"
	"slangmaster/repository"
	"slangmaster/services"
	"slangmaster/utils"

	"github.com/cenkalti/backoff/v4"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

func initLogger(env string) (*zap.Logger, error) {
	var cfg zap.Config
	switch env {
	case "production":
		cfg = zap.NewProductionConfig()
	case "staging":
		cfg = zap.NewProductionConfig()
		cfg.Level = zap.NewAtomicLevelAt(zap.DebugLevel)
	default:
		cfg = zap.NewDevelopmentConfig()
	}
	return cfg.Build()
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(1)
	}
	logger, err := initLogger(cfg.Server.Environment)
	if err != nil {
		fmt.Fprintf(os.Stderr, "logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, logger); err != nil {
		logger.Fatal("server stopped with error", zap.Error(err))
	}
	logger.Info("server stopped")
}

func run(ctx context.Context, cfg *config.Config, logger *zap.Logger) error {
	repo, err := openRepository(ctx, cfg, logger)
	if err != nil {
		return err
	}

	guard, closeGuard, err := openSubmissionGuard(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer closeGuard()

	images, err := openImageStore(ctx, cfg)
	if err != nil {
		return err
	}

	tokens := services.NewTokenService(cfg.Auth.JWTSecret, cfg.Auth.AccessTTL, cfg.Auth.RefreshTTL)
	mailer := services.NewLogMailer(cfg.Mail.From, logger)
	rewards := services.NewRewardService(logger)
	badges := services.NewBadgeService(repo, rewards, logger)
	progression := services.NewProgressionService(repo, badges, guard, cfg.Server.Location, logger)
	catalog := services.NewCatalogService(repo, images, logger)

	seed, err := services.LoadSeedCatalog(cfg.Catalog.SeedFile)
	if err != nil {
		return err
	}
	if _, err := catalog.Seed(ctx, seed); err != nil {
		return fmt.Errorf("seed catalog: %w", err)
	}

	svc := handlers.Services{
		Tokens:      tokens,
		Users:       services.NewUserService(repo, tokens, mailer, cfg.Auth.BCryptCost, cfg.Server.PublicURL, logger),
		Words:       services.NewWordService(repo, logger),
		Catalog:     catalog,
		Progression: progression,
		Admin:       services.NewAdminService(repo, progression, badges, logger),
		BadgeStream: services.NewBadgeStreamService(ctx, repo, services.DefaultStreamPollInterval, logger),
	}

	scheduler, err := services.NewScheduler(repo, services.SchedulerConfig{
		TokenCleanupInterval: cfg.Jobs.TokenCleanupInterval,
		StreakResetEnabled:   cfg.Jobs.StreakResetEnabled,
	}, cfg.Server.Location, logger)
	if err != nil {
		return err
	}
	if err := scheduler.Start(ctx); err != nil {
		return err
	}

	app := fiber.New(fiber.Config{
		AppName:   "slangmaster",
		BodyLimit: cfg.Server.BodyLimit,
	})
	app.Use(middleware.RequestLogger(logger))
	app.Use(cors.New(cors.Config{
		AllowOrigins:     strings.Join(cfg.Server.AllowedOrigins, ","),
		AllowMethods:     "GET,POST,PUT,DELETE,OPTIONS,PATCH,HEAD",
		AllowHeaders:     "Origin, Content-Type, Accept, Authorization, X-Requested-With, Idempotency-Key, Cache-Control",
		ExposeHeaders:    "Content-Length, Content-Type",
		AllowCredentials: true,
		MaxAge:           86400,
	}))

	app.Get("/healthz", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"status": "ok"})
	})
	app.Get("/metrics", adaptor.HTTPHandler(promhttp.Handler()))
	if cfg.Storage.Provider == "local" {
		app.Static("/uploads", cfg.Storage.UploadDir)
	}
	handlers.RegisterRoutes(app, svc, cfg.Server.FrontendURL, logger)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info("server listening",
			zap.String("port", cfg.Server.Port),
			zap.String("env", cfg.Server.Environment),
			zap.String("db_driver", cfg.Database.Driver))
		return app.Listen(":" + cfg.Server.Port)
	})
	g.Go(func() error {
		<-gctx.Done()
		logger.Info("shutting down")
		var errs []error
		if err := app.ShutdownWithTimeout(10 * time.Second); err != nil {
			errs = append(errs, fmt.Errorf("http shutdown: %w", err))
		}
		if err := scheduler.Shutdown(); err != nil {
			errs = append(errs, fmt.Errorf("scheduler shutdown: %w", err))
		}
		return errors.Join(errs...)
	})
	return g.Wait()
}

func openRepository(ctx context.Context, cfg *config.Config, logger *zap.Logger) (repository.Repository, error) {
	if cfg.Database.Driver == "memory" {
		logger.Warn("using in-memory storage, data is lost on restart")
		return repository.NewMemoryRepository(), nil
	}
	db, err := repository.Open(ctx, cfg.Database.URL, cfg.Database.MaxOpenConns, uint64(cfg.Database.ConnectRetries), logger)
	if err != nil {
		return nil, err
	}
	if err := repository.Migrate(db); err != nil {
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return repository.NewGormRepository(db), nil
}

// openSubmissionGuard connects to Redis when REDIS_URL is set and falls back
// to a process-local guard otherwise.
func openSubmissionGuard(ctx context.Context, cfg *config.Config, logger *zap.Logger) (services.SubmissionGuard, func(), error) {
	if cfg.Redis.URL == "" {
		logger.Info("REDIS_URL not set, idempotency cache is in-process")
		return services.NewMemorySubmissionGuard(cfg.Redis.IdempotencyTTL), func() {}, nil
	}
	opts, err := redis.ParseURL(cfg.Redis.URL)
	if err != nil {
		return nil, nil, fmt.Errorf("invalid REDIS_URL: %w", err)
	}
	client := redis.NewClient(opts)

	ping := func() error { return client.Ping(ctx).Err() }
	notify := func(err error, wait time.Duration) {
		logger.Warn("redis not ready, retrying", zap.Error(err), zap.Duration("in", wait))
	}
	policy := backoff.WithContext(backoff.WithMaxRetries(backoff.NewExponentialBackOff(), 5), ctx)
	if err := backoff.RetryNotify(ping, policy, notify); err != nil {
		client.Close()
		return nil, nil, fmt.Errorf("connect redis: %w", err)
	}
	logger.Info("connected to redis", zap.String("addr", opts.Addr))
	return services.NewRedisSubmissionGuard(client, cfg.Redis.IdempotencyTTL), func() { client.Close() }, nil
}

func openImageStore(ctx context.Context, cfg *config.Config) (utils.ImageStore, error) {
	if cfg.Storage.Provider == "r2" {
		return utils.NewR2Store(ctx, utils.R2Config{
			AccountID:       cfg.Storage.AccountID,
			AccessKeyID:     cfg.Storage.AccessKeyID,
			AccessKeySecret: cfg.Storage.AccessKeySecret,
			Bucket:          cfg.Storage.Bucket,
			CDNBaseURL:      cfg.Storage.CDNBaseURL,
		})
	}
	return utils.NewLocalStore(cfg.Storage.UploadDir, cfg.Server.PublicURL+"/uploads")
}
