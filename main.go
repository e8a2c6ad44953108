package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"storefront/internal/app"
	"storefront/internal/config"
	"storefront/internal/database"
	"storefront/internal/gateway"
	"storefront/internal/handlers"
	"storefront/internal/idempotency"
	"storefront/internal/logger"
	"storefront/internal/services"
	"storefront/pkg/rabbitmq"

	"github.com/streadway/amqp"
	"go.uber.org/zap"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "invalid configuration: %v\n", err)
		os.Exit(1)
	}

	log, err := logger.New(cfg.Env)
	if err != nil {
		fmt.Fprintf(os.Stderr, "%v\n", err)
		os.Exit(1)
	}
	defer log.Sync()

	if err := run(cfg, log); err != nil {
		log.Fatal("Server stopped with error", zap.Error(err))
	}
}

func run(cfg config.Config, log *zap.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// --- Database ---
	db, err := database.Open(cfg.DatabaseDriver, cfg.DatabaseDSN, log)
	if err != nil {
		return err
	}
	if err := database.Migrate(db); err != nil {
		return err
	}
	if cfg.SeedData {
		if err := database.Seed(ctx, db, log); err != nil {
			return err
		}
	}

	// --- Idempotency store ---
	var idem idempotency.Store = idempotency.NewMemoryStore(cfg.IdempotencyTTL)
	if cfg.RedisURL != "" {
		client, err := idempotency.NewRedisClient(ctx, cfg.RedisURL)
		if err != nil {
			return err
		}
		defer client.Close()
		idem = idempotency.NewRedisStore(client, cfg.IdempotencyTTL)
		log.Info("Using Redis idempotency store")
	} else {
		log.Warn("REDIS_URL not set, idempotency keys are kept in process memory")
	}

	// --- RabbitMQ ---
	// the broker is optional: orders still commit without it
	var events services.EventPublisher
	var mqClient *rabbitmq.Client
	if cfg.RabbitMQURL != "" {
		client, err := rabbitmq.NewClient(rabbitmq.Config{URL: cfg.RabbitMQURL}, log)
		if err != nil {
			log.Warn("RabbitMQ unavailable, order events will not be published", zap.Error(err))
		} else {
			defer client.Close()
			mqClient = client
			events = client
		}
	}

	if cfg.GatewayKeyID == "" || cfg.GatewayKeySecret == "" {
		log.Warn("Payment gateway credentials not set, online payments will fail")
	}
	gw := gateway.NewHTTPClient(gateway.Config{
		BaseURL:   cfg.GatewayBaseURL,
		KeyID:     cfg.GatewayKeyID,
		KeySecret: cfg.GatewayKeySecret,
		Timeout:   cfg.GatewayTimeout,
	})

	application := app.New(app.Deps{
		Config:      &cfg,
		Log:         log,
		DB:          db,
		Idempotency: idem,
		Gateway:     gw,
		Events:      events,
	})

	if mqClient != nil {
		if err := mqClient.ConsumeOrderEvents(deliveryHandler(ctx, application.Events)); err != nil {
			log.Warn("Failed to start order event consumer", zap.Error(err))
		}
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info("Starting server", zap.String("addr", cfg.Port), zap.String("env", cfg.Env))
		errCh <- application.Listen(cfg.Port)
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("server failed: %w", err)
	case <-ctx.Done():
	}

	log.Info("Shutting down server")
	if err := application.ShutdownWithTimeout(10 * time.Second); err != nil {
		log.Error("Error during Fiber shutdown", zap.Error(err))
	}
	if sqlDB, err := db.DB(); err == nil {
		sqlDB.Close()
	}
	log.Info("Server gracefully stopped")
	return nil
}

// deliveryHandler feeds broker deliveries to the order event handler.
func deliveryHandler(ctx context.Context, events *handlers.EventHandler) func(amqp.Delivery) error {
	return func(msg amqp.Delivery) error {
		return events.Handle(ctx, msg.Type, msg.Body)
	}
}
