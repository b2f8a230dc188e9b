package main

import (
	"context"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/samber/oops"
	"github.com/spf13/cobra"

	"battlearena/internal/cache"
	"battlearena/internal/config"
	"battlearena/internal/database"
	"battlearena/internal/handlers"
	"battlearena/internal/jobs"
	"battlearena/internal/log"
	"battlearena/internal/mail"
	"battlearena/internal/metrics"
	"battlearena/internal/queue"
	"battlearena/internal/repository"
	"battlearena/internal/server"
	"battlearena/internal/service"
	"battlearena/internal/storage"
)

func runServe(cmd *cobra.Command, _ []string) error {
	cfg, err := config.Load()
	if err != nil {
		return oops.In("config").Wrap(err)
	}

	logger := log.New(cfg.Environment, cfg.Logging.Level)

	ctx := cmd.Context()

	dbPool, err := database.NewPostgresPool(ctx, cfg.Postgres)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to connect postgres")
	}

	redisClient, err := cache.NewRedisClient(ctx, cfg.Redis)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to connect redis")
	}

	objectStore, err := storage.NewObjectStore(cfg.Storage)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to init object store")
	}
	if err := objectStore.EnsureBucket(ctx); err != nil {
		logger.Warn().Err(err).Msg("ensure avatar bucket failed")
	}

	m := metrics.New()
	producer := queue.NewProducer(redisClient, cfg.Redis.Stream)
	mailer := mail.NewStreamMailer(producer, logger)

	users := repository.NewUserRepository(dbPool)
	characters := repository.NewCharacterRepository(dbPool)

	accounts := service.NewAccountService(
		users,
		repository.NewRecoveryTokenRepository(dbPool),
		mailer,
		m,
		cfg.Security,
		logger,
	)
	sessions := service.NewSessionService(
		repository.NewGameSessionRepository(dbPool),
		repository.NewCharacterStateRepository(dbPool),
		characters,
		m,
		logger,
	)

	generated, err := accounts.EnsureAdmin(ctx, cfg.Admin.Email, cfg.Admin.Password)
	if err != nil {
		logger.Fatal().Err(err).Msg("ensure admin account failed")
	}
	if generated != "" {
		logger.Warn().
			Str("email", cfg.Admin.Email).
			Str("password", generated).
			Msg("admin account created with generated password")
	}

	handlerSet := handlers.NewHandlerSet(handlers.Deps{
		Log:        logger,
		Config:     cfg,
		Accounts:   accounts,
		Characters: service.NewCharacterService(characters, users, logger),
		Sessions:   sessions,
		Avatars:    service.NewAvatarService(objectStore, logger),
		DB:         dbPool,
		Cache:      redisClient,
	})
	httpServer := server.NewHTTPServer(cfg, logger, handlerSet, m)

	scheduler := jobs.NewScheduler(producer, cfg.Jobs.SweepSchedule, logger)
	if err := scheduler.Start(); err != nil {
		logger.Error().Err(err).Msg("scheduler start failed")
	}

	go func() {
		if err := httpServer.Start(); err != nil {
			logger.Fatal().Err(err).Msg("http server failed")
		}
	}()

	waitForShutdown(logger, httpServer, scheduler, dbPool, redisClient)
	return nil
}

func waitForShutdown(logger zerolog.Logger, srv *server.HTTPServer, scheduler *jobs.Scheduler, db *pgxpool.Pool, redisClient *redis.Client) {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	<-ctx.Done()
	logger.Info().Msg("shutdown signal received")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("graceful shutdown failed")
		if err := srv.Shutdown(context.Background()); err != nil {
			logger.Error().Err(err).Msg("forced shutdown failed")
		}
	}

	scheduler.Stop(5 * time.Second)

	db.Close()
	if err := redisClient.Close(); err != nil {
		logger.Error().Err(err).Msg("redis close error")
	}

	logger.Info().Msg("server exited cleanly")
}
