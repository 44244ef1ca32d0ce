package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	"github.com/example/digital-storefront/internal/config"
	"github.com/example/digital-storefront/internal/email"
	"github.com/example/digital-storefront/internal/infrastructure/kafka"
	"github.com/example/digital-storefront/internal/logging"
	"github.com/example/digital-storefront/internal/notification"
	"github.com/example/digital-storefront/internal/telegram"
)

func main() {
	cfg := config.LoadCommon()
	logger, err := logging.New(cfg.LogLevel)
	if err != nil {
		fmt.Fprintf(os.Stderr, "logger: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = logger.Sync() }()

	if len(cfg.KafkaBrokers) == 0 {
		logger.Fatal("KAFKA_BROKERS is required")
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	emailSvc := email.NewService(cfg.SMTPHost, cfg.SMTPPort, cfg.SMTPFrom)

	var alerter notification.Alerter
	bot, err := telegram.NewClient(cfg.TelegramBotToken, cfg.TelegramChatID)
	switch {
	case err == nil:
		alerter = bot
	case errors.Is(err, telegram.ErrNotConfigured):
		logger.Info("telegram alerts disabled")
	default:
		logger.Fatal("telegram client", zap.Error(err))
	}

	handler := notification.NewHandler(emailSvc, alerter, cfg.SupportEmail, logger)

	consumer := kafka.NewConsumer(cfg.KafkaBrokers, cfg.KafkaTopic, cfg.KafkaConsumerGroup, logger)
	defer consumer.Close()

	logger.Info("notifier started",
		zap.Strings("brokers", cfg.KafkaBrokers),
		zap.String("topic", cfg.KafkaTopic),
		zap.String("group", cfg.KafkaConsumerGroup),
		zap.String("smtp", cfg.SMTPHost+":"+cfg.SMTPPort),
	)

	if err := consumer.Consume(ctx, handler.HandleEvent); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("consumer stopped", zap.Error(err))
	}
	logger.Info("shutting down")
}
