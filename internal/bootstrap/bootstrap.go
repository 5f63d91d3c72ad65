// Package bootstrap builds the payment service from configuration. It is
// shared by the HTTP server and the CLI.
package bootstrap

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	"github.com/dmehra2102/payment-console/internal/config"
	"github.com/dmehra2102/payment-console/internal/payment/application"
	"github.com/dmehra2102/payment-console/internal/payment/infrastructure/blob"
	paymentkafka "github.com/dmehra2102/payment-console/internal/payment/infrastructure/kafka"
	"github.com/dmehra2102/payment-console/internal/payment/infrastructure/memory"
	paymentpg "github.com/dmehra2102/payment-console/internal/payment/infrastructure/postgres"
	"github.com/dmehra2102/payment-console/pkg/idempotency"
	"github.com/dmehra2102/payment-console/pkg/outbox"
)

type App struct {
	Service     *application.Service
	Idempotency *idempotency.Store
	// Relay is set only for the postgres backend with kafka configured.
	Relay *outbox.Relay

	closers []func()
}

func (a *App) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
}

func Build(ctx context.Context, log *slog.Logger, cfg config.Config) (*App, error) {
	app := &App{}
	ok := false
	defer func() {
		if !ok {
			app.Close()
		}
	}()

	var rdb *redis.Client
	if cfg.RedisAddr != "" {
		var err error
		rdb, err = connectRedis(ctx, cfg)
		if err != nil {
			return nil, err
		}
		app.closers = append(app.closers, func() { _ = rdb.Close() })
		app.Idempotency = idempotency.NewStore(rdb, cfg.IdempotencyTTL)
	}

	var dispatch *outbox.Dispatcher
	if len(cfg.KafkaBrokers) > 0 {
		writer := paymentkafka.NewWriter(cfg.KafkaBrokers)
		app.closers = append(app.closers, func() { _ = writer.Close() })
		dispatch = outbox.NewDispatcher(log, writer, cfg.EventsTopic)
	}

	var (
		store     application.PaymentStore
		publisher application.EventPublisher = application.NopPublisher{}
	)
	if dispatch != nil {
		publisher = paymentkafka.NewPublisher(dispatch)
	}

	switch cfg.StoreBackend {
	case config.BackendMemory:
		store = memory.NewStore(nil)
	case config.BackendFile:
		kv, err := blob.NewFileKV(cfg.StoreDir)
		if err != nil {
			return nil, err
		}
		store = blob.NewStore(log, kv, cfg.StoreKey, nil)
	case config.BackendRedis:
		store = blob.NewStore(log, blob.NewRedisKV(rdb), cfg.StoreKey, nil)
	case config.BackendPostgres:
		pool, err := pgxpool.New(ctx, cfg.PGURL)
		if err != nil {
			return nil, fmt.Errorf("pg connect: %w", err)
		}
		app.closers = append(app.closers, pool.Close)
		if err := paymentpg.Migrate(ctx, pool); err != nil {
			return nil, fmt.Errorf("pg migrate: %w", err)
		}

		var opts []paymentpg.Option
		if dispatch != nil {
			// Events go through the transactional outbox instead.
			opts = append(opts, paymentpg.WithOutbox())
			publisher = application.NopPublisher{}
			app.Relay = outbox.NewRelay(log, paymentpg.NewOutboxStore(log, pool), dispatch, cfg.ServiceName+"-relay")
		}
		store = paymentpg.NewRepository(log, pool, opts...)
	default:
		return nil, fmt.Errorf("unknown store backend %q", cfg.StoreBackend)
	}

	log.Info("payment store ready", "backend", cfg.StoreBackend, "events", dispatch != nil)
	app.Service = application.NewService(log, store, application.WithPublisher(publisher))
	ok = true
	return app, nil
}

func connectRedis(ctx context.Context, cfg config.Config) (*redis.Client, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
	})
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}
	return rdb, nil
}
