package bootstrap

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	"github.com/dmehra2102/textbook-orders/internal/config"
	"github.com/dmehra2102/textbook-orders/internal/order/application"
	"github.com/dmehra2102/textbook-orders/internal/order/infrastructure/memory"
	orderpg "github.com/dmehra2102/textbook-orders/internal/order/infrastructure/postgres"
	"github.com/dmehra2102/textbook-orders/pkg/idempotency"
)

const (
	messageTTL  = 24 * time.Hour
	reminderTTL = 7 * 24 * time.Hour
)

// Runtime holds the service and the backing clients the binaries need to run and close.
type Runtime struct {
	Service *application.Service
	Pool    *pgxpool.Pool
	Redis   *redis.Client
	Dedup   *idempotency.Store
	Memory  *memory.Store
}

// Build wires the order service for cfg.StoreDriver. "memory" keeps everything in
// process and needs no Postgres or Redis.
func Build(ctx context.Context, log *slog.Logger, cfg config.Config) (*Runtime, error) {
	switch cfg.StoreDriver {
	case "memory":
		store := memory.NewStore()
		svc := application.NewService(log, application.Deps{
			Orders:        store,
			Books:         store,
			Notifications: store,
			Audit:         store,
			Ledger:        store,
		}, cfg.Orders)
		return &Runtime{Service: svc, Memory: store}, nil
	case "postgres":
	default:
		return nil, fmt.Errorf("unknown store driver %q", cfg.StoreDriver)
	}

	pool, err := pgxpool.New(ctx, cfg.PGURL)
	if err != nil {
		return nil, fmt.Errorf("pg connect: %w", err)
	}
	if err := orderpg.Migrate(ctx, pool); err != nil {
		pool.Close()
		return nil, err
	}

	rdb := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
	if err := rdb.Ping(ctx).Err(); err != nil {
		pool.Close()
		_ = rdb.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}
	dedup := idempotency.NewStore(rdb, messageTTL)

	repo := orderpg.NewRepository(log, pool)
	svc := application.NewService(log, application.Deps{
		Orders:        repo,
		Books:         repo,
		Notifications: repo,
		Audit:         repo,
		Ledger:        dedup.WithPrefix("reminder", reminderTTL),
	}, cfg.Orders)

	return &Runtime{Service: svc, Pool: pool, Redis: rdb, Dedup: dedup}, nil
}

func (r *Runtime) Close(context.Context) error {
	if r.Pool != nil {
		r.Pool.Close()
	}
	if r.Redis != nil {
		return r.Redis.Close()
	}
	return nil
}
