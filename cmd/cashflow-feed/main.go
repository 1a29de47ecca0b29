// Command cashflow-feed tails the ledger change feed and logs every change,
// reporting gaps in the sequence numbers left by dropped events.
package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"cashflow/internal/amqp"
	"cashflow/internal/config"
	"cashflow/internal/log"
)

func main() {
	// Load .env file for local development (ignore errors in production/docker)
	_ = godotenv.Load()

	cfg := config.Load()
	level, _ := log.ParseLevel(cfg.LogLevel)
	logger := log.New(log.Config{
		Level:     level,
		Component: log.ComponentAMQP,
		Handler:   slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: level}),
	})
	log.SetDefault(logger)

	if cfg.AMQPURL == "" || cfg.AMQPQueue == "" {
		logger.Error("AMQP_URL and AMQP_QUEUE are required", log.FieldErrorType, log.ErrorTypeConfiguration)
		os.Exit(1)
	}
	if err := cfg.Validate(); err != nil {
		logger.Error("Configuration validation failed", log.FieldError, err, log.FieldErrorType, log.ErrorTypeConfiguration)
		os.Exit(1)
	}

	client, err := amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue, cfg.AMQPRoutingKey, logger)
	if err != nil {
		logger.Error("Failed to initialize AMQP client", log.FieldError, err)
		os.Exit(1)
	}
	defer client.Close()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	tracker := amqp.NewGapTracker()
	handle := func(msg amqp.ChangeMessage) error {
		if missing := tracker.Observe(msg.Sequence); missing > 0 {
			logger.Warn("Change feed gap detected", "missing", missing, "sequence", msg.Sequence)
		}
		logger.Info("Ledger change",
			"sequence", msg.Sequence,
			"kind", msg.Kind,
			log.FieldCollection, msg.Collection,
			log.FieldEntityID, msg.ID,
			"occurred_at", msg.OccurredAt)
		return nil
	}

	logger.Info("Tailing change feed", "queue", cfg.AMQPQueue, "exchange", cfg.AMQPExchange)
	if err := client.ConsumeChanges(ctx, cfg.AMQPQueue, handle); err != nil {
		logger.Error("Message consumption failed", log.FieldError, err)
		os.Exit(1)
	}
	logger.Info("Change feed consumer stopped")
}
