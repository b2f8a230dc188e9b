package main

import (
	"context"
	"errors"
	"os/signal"
	"syscall"
	"time"

	"battlearena/internal/cache"
	"battlearena/internal/config"
	"battlearena/internal/database"
	"battlearena/internal/log"
	"battlearena/internal/mail"
	"battlearena/internal/queue"
	"battlearena/internal/repository"
	"battlearena/internal/service"
	"battlearena/internal/tasks"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic(err)
	}

	logger := log.New(cfg.Environment, cfg.Logging.Level)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	client, err := cache.NewRedisClient(ctx, cfg.Redis)
	if err != nil {
		logger.Fatal().Err(err).Msg("redis connection failed")
	}
	defer client.Close()

	dbPool, err := database.NewPostgresPool(ctx, cfg.Postgres)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to connect postgres")
	}
	defer dbPool.Close()

	accounts := service.NewAccountService(
		repository.NewUserRepository(dbPool),
		repository.NewRecoveryTokenRepository(dbPool),
		mail.NewStreamMailer(queue.NewProducer(client, cfg.Redis.Stream), logger),
		nil,
		cfg.Security,
		logger,
	)

	processor := tasks.NewProcessor(mail.NewSMTPSender(cfg.Mail), accounts, logger)
	consumer := queue.NewConsumer(
		client,
		cfg.Redis.Stream,
		cfg.Redis.Group,
		cfg.Redis.Consumer,
		cfg.Queues.ClaimInterval,
		logger,
		processor,
	)

	done := make(chan struct{})
	go func() {
		defer close(done)
		if err := consumer.Start(ctx); err != nil && !errors.Is(err, context.Canceled) {
			logger.Fatal().Err(err).Msg("consumer stopped unexpectedly")
		}
	}()

	<-ctx.Done()
	logger.Info().Msg("shutdown signal received")

	select {
	case <-done:
	case <-time.After(10 * time.Second):
		logger.Warn().Msg("consumer did not stop in time")
	}
}
