package main

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/aws/aws-lambda-go/events"
	"github.com/aws/aws-lambda-go/lambda"
	"go.uber.org/zap"

	"github.com/example/digital-storefront/internal/config"
	"github.com/example/digital-storefront/internal/email"
	"github.com/example/digital-storefront/internal/infrastructure/kinesis"
	"github.com/example/digital-storefront/internal/logging"
	"github.com/example/digital-storefront/internal/notification"
	"github.com/example/digital-storefront/internal/telegram"
)

var (
	notificationHandler *notification.Handler
	logger              *zap.Logger
)

func init() {
	cfg := config.LoadCommon()

	var err error
	logger, err = logging.New(cfg.LogLevel)
	if err != nil {
		fmt.Fprintf(os.Stderr, "logger: %v\n", err)
		os.Exit(1)
	}

	var alerter notification.Alerter
	bot, err := telegram.NewClient(cfg.TelegramBotToken, cfg.TelegramChatID)
	if err == nil {
		alerter = bot
	} else if !errors.Is(err, telegram.ErrNotConfigured) {
		logger.Fatal("telegram client", zap.Error(err))
	}

	emailSvc := email.NewService(cfg.SMTPHost, cfg.SMTPPort, cfg.SMTPFrom)
	notificationHandler = notification.NewHandler(emailSvc, alerter, cfg.SupportEmail, logger)

	logger.Info("lambda notifier initialized", zap.String("smtp", cfg.SMTPHost+":"+cfg.SMTPPort))
}

func handler(ctx context.Context, kinesisEvent events.KinesisEvent) (events.KinesisEventResponse, error) {
	logger.Info("received records", zap.Int("count", len(kinesisEvent.Records)))

	records, failures := kinesis.DecodeBatch(kinesisEvent)
	batchItemFailures := make([]events.KinesisBatchItemFailure, 0, len(failures))
	for _, f := range failures {
		logger.Warn("decode record failed", zap.String("sequence_number", f.SequenceNumber), zap.Error(f.Err))
		batchItemFailures = append(batchItemFailures, events.KinesisBatchItemFailure{ItemIdentifier: f.SequenceNumber})
	}

	for _, record := range records {
		if err := notificationHandler.Handle(ctx, *record.Event); err != nil {
			logger.Error("process event failed",
				zap.String("event_id", record.Event.ID),
				zap.String("event_type", record.Event.EventType),
				zap.Error(err),
			)
			batchItemFailures = append(batchItemFailures, events.KinesisBatchItemFailure{ItemIdentifier: record.SequenceNumber})
		}
	}

	logger.Info("batch processed",
		zap.Int("records", len(kinesisEvent.Records)),
		zap.Int("failed", len(batchItemFailures)),
	)
	return events.KinesisEventResponse{BatchItemFailures: batchItemFailures}, nil
}

func main() {
	defer func() { _ = logger.Sync() }()
	lambda.Start(handler)
}
