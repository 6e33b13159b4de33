// Package bootstrap assembles the triage service from configuration.
package bootstrap

import (
	"context"
	"crypto/tls"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jackc/pgx/v5/stdlib"
	"github.com/redis/go-redis/v9"

	appconfig "github.com/wolfman30/medspa-sms-triage/internal/config"
	"github.com/wolfman30/medspa-sms-triage/internal/events"
	"github.com/wolfman30/medspa-sms-triage/internal/triage"
	"github.com/wolfman30/medspa-sms-triage/pkg/logging"
)

// BuildRedisClient returns a configured Redis client or nil when disabled.
// When verify is true, a ping is issued and failures return nil.
func BuildRedisClient(ctx context.Context, cfg *appconfig.Config, logger *logging.Logger, verify bool) *redis.Client {
	if cfg == nil || strings.TrimSpace(cfg.RedisAddr) == "" {
		return nil
	}
	if logger == nil {
		logger = logging.Default()
	}

	redisOptions := &redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
	}
	if cfg.RedisTLS {
		redisOptions.TLSConfig = &tls.Config{MinVersion: tls.VersionTLS12}
	}
	client := redis.NewClient(redisOptions)
	if !verify {
		return client
	}
	pingCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		logger.Warn("redis not available", "error", err)
		_ = client.Close()
		return nil
	}
	return client
}

// ConnectPostgres opens a pgx pool and a database/sql handle sharing it.
func ConnectPostgres(ctx context.Context, databaseURL string) (*pgxpool.Pool, *sql.DB, error) {
	if strings.TrimSpace(databaseURL) == "" {
		return nil, nil, fmt.Errorf("bootstrap: DATABASE_URL is required unless USE_MEMORY_STORES is set")
	}
	pool, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		return nil, nil, fmt.Errorf("bootstrap: open pgx pool: %w", err)
	}
	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := pool.Ping(pingCtx); err != nil {
		pool.Close()
		return nil, nil, fmt.Errorf("bootstrap: ping postgres: %w", err)
	}
	return pool, stdlib.OpenDBFromPool(pool), nil
}

// BuildClaimStore picks the processed-event store: Redis when enabled and reachable, else Postgres,
// else process memory.
func BuildClaimStore(redisClient *redis.Client, cfg *appconfig.Config, pool *pgxpool.Pool, logger *logging.Logger) triage.ClaimStore {
	switch {
	case cfg.UseRedisIdempotency && redisClient != nil:
		logger.Info("using redis processed-event store", "ttl", cfg.IdempotencyTTL.String())
		return events.NewRedisProcessedStore(redisClient, cfg.IdempotencyTTL)
	case pool != nil:
		return events.NewProcessedStore(pool)
	default:
		logger.Warn("using in-memory processed-event store; retries are only deduplicated per process")
		return events.NewMemoryProcessedStore()
	}
}
