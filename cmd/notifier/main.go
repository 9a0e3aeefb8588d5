package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/joao-fontenele/bakery-checkout/internal/config"
	"github.com/joao-fontenele/bakery-checkout/internal/email"
	"github.com/joao-fontenele/bakery-checkout/internal/messaging"
	"github.com/joao-fontenele/bakery-checkout/internal/notification"
	"github.com/joao-fontenele/bakery-checkout/internal/telemetry"
)

const (
	serviceName    = "bakery-notifier"
	serviceVersion = "0.1.0"
	consumerGroup  = "confirmation-mailer"
)

func main() {
	logger := telemetry.NewLogger(os.Stdout, serviceName)

	cfg, err := config.LoadNotifier()
	if err != nil {
		logger.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	shutdownTracer, err := telemetry.InitTracerProvider(ctx, cfg.OTLPEndpoint, serviceName, serviceVersion)
	if err != nil {
		logger.Error("failed to initialize tracer", "error", err)
		os.Exit(1)
	}
	defer func() { _ = shutdownTracer(context.Background()) }()

	mailer := email.NewMailer(email.Config{
		Host:     cfg.SMTPHost,
		Port:     cfg.SMTPPort,
		Username: cfg.SMTPUsername,
		Password: cfg.SMTPPassword,
		From:     cfg.MailFrom,
	}, logger)
	handler := notification.NewHandler(mailer, logger)

	consumer := messaging.NewConsumer(cfg.KafkaBrokers, cfg.ConfirmationTopic, consumerGroup, logger)
	defer func() { _ = consumer.Close() }()

	logger.Info("starting confirmation notifier", "brokers", cfg.KafkaBrokers, "topic", cfg.ConfirmationTopic)

	if err := consumer.Consume(ctx, handler.Handle); err != nil {
		logger.Error("consumer error", "error", err)
		os.Exit(1)
	}
	logger.Info("consumer stopped")
}
