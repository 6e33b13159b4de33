// Package events records provider event ids that were already handled so retried
// webhooks are processed at most once.
package events

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/redis/go-redis/v9"
)

type rowQuerier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// ProcessedStore records handled events in the processed_events table.
type ProcessedStore struct {
	pool rowQuerier
}

func NewProcessedStore(pool rowQuerier) *ProcessedStore {
	if pool == nil {
		panic("events: pgx pool required")
	}
	return &ProcessedStore{pool: pool}
}

// AlreadyProcessed checks if we've seen this event id.
func (s *ProcessedStore) AlreadyProcessed(ctx context.Context, eventType, eventID string) (bool, error) {
	query := `SELECT 1 FROM processed_events WHERE event_type = $1 AND event_id = $2`
	var exists int
	if err := s.pool.QueryRow(ctx, query, eventType, eventID).Scan(&exists); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return false, nil
		}
		return false, fmt.Errorf("events: check processed: %w", err)
	}
	return true, nil
}

// Claim inserts the event id, returning false if it already exists. The insert is the
// atomic check, so concurrent deliveries of one event see exactly one true.
func (s *ProcessedStore) Claim(ctx context.Context, eventType, eventID string) (bool, error) {
	query := `
		INSERT INTO processed_events (event_type, event_id)
		VALUES ($1, $2)
		ON CONFLICT DO NOTHING
	`
	ct, err := s.pool.Exec(ctx, query, eventType, eventID)
	if err != nil {
		return false, fmt.Errorf("events: mark processed: %w", err)
	}
	return ct.RowsAffected() > 0, nil
}

// RedisProcessedStore claims event ids with SET NX and a TTL.
type RedisProcessedStore struct {
	client redis.UniversalClient
	ttl    time.Duration
	prefix string
}

func NewRedisProcessedStore(client redis.UniversalClient, ttl time.Duration) *RedisProcessedStore {
	if client == nil {
		panic("events: redis client required")
	}
	if ttl <= 0 {
		ttl = 72 * time.Hour
	}
	return &RedisProcessedStore{client: client, ttl: ttl, prefix: "processed"}
}

func (s *RedisProcessedStore) key(eventType, eventID string) string {
	return fmt.Sprintf("%s:%s:%s", s.prefix, eventType, eventID)
}

func (s *RedisProcessedStore) AlreadyProcessed(ctx context.Context, eventType, eventID string) (bool, error) {
	n, err := s.client.Exists(ctx, s.key(eventType, eventID)).Result()
	if err != nil {
		return false, fmt.Errorf("events: redis exists: %w", err)
	}
	return n > 0, nil
}

func (s *RedisProcessedStore) Claim(ctx context.Context, eventType, eventID string) (bool, error) {
	ok, err := s.client.SetNX(ctx, s.key(eventType, eventID), time.Now().UTC().Format(time.RFC3339), s.ttl).Result()
	if err != nil {
		return false, fmt.Errorf("events: redis setnx: %w", err)
	}
	return ok, nil
}

// MemoryProcessedStore keeps claims in process. Claims never expire.
type MemoryProcessedStore struct {
	mu   sync.Mutex
	seen map[string]struct{}
}

func NewMemoryProcessedStore() *MemoryProcessedStore {
	return &MemoryProcessedStore{seen: make(map[string]struct{})}
}

func (s *MemoryProcessedStore) AlreadyProcessed(_ context.Context, eventType, eventID string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.seen[eventType+":"+eventID]
	return ok, nil
}

func (s *MemoryProcessedStore) Claim(_ context.Context, eventType, eventID string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := eventType + ":" + eventID
	if _, ok := s.seen[key]; ok {
		return false, nil
	}
	s.seen[key] = struct{}{}
	return true, nil
}
