package events

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	pgx "github.com/jackc/pgx/v5"
	pgxmock "github.com/pashagolub/pgxmock/v4"
	"github.com/redis/go-redis/v9"
)

func TestProcessedStore(t *testing.T) {
	mock, err := pgxmock.NewPool()
	if err != nil {
		t.Fatalf("failed to create pgx mock: %v", err)
	}
	defer mock.Close()

	store := NewProcessedStore(mock)

	mock.ExpectQuery("SELECT 1 FROM processed_events").WithArgs("twilio_sms", "SM1").WillReturnRows(pgxmock.NewRows([]string{"exists"}).AddRow(1))
	processed, err := store.AlreadyProcessed(context.Background(), "twilio_sms", "SM1")
	if err != nil || !processed {
		t.Fatalf("expected existing row, got processed=%v err=%v", processed, err)
	}

	mock.ExpectQuery("SELECT 1 FROM processed_events").WithArgs("twilio_sms", "SM-miss").WillReturnError(pgx.ErrNoRows)
	processed, err = store.AlreadyProcessed(context.Background(), "twilio_sms", "SM-miss")
	if err != nil || processed {
		t.Fatalf("expected missing row, got processed=%v err=%v", processed, err)
	}

	mock.ExpectExec("INSERT INTO processed_events").WithArgs("twilio_sms", "SM-new").WillReturnResult(pgxmock.NewResult("INSERT", 1))
	ok, err := store.Claim(context.Background(), "twilio_sms", "SM-new")
	if err != nil || !ok {
		t.Fatalf("expected claim success, got %v %v", ok, err)
	}

	mock.ExpectExec("INSERT INTO processed_events").WithArgs("twilio_sms", "SM-new").WillReturnResult(pgxmock.NewResult("INSERT", 0))
	ok, err = store.Claim(context.Background(), "twilio_sms", "SM-new")
	if err != nil || ok {
		t.Fatalf("expected duplicate claim to fail, got %v %v", ok, err)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func setupTestRedis(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("failed to start miniredis: %v", err)
	}
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() {
		client.Close()
		mr.Close()
	})
	return mr, client
}

func TestRedisProcessedStoreClaim(t *testing.T) {
	mr, client := setupTestRedis(t)
	store := NewRedisProcessedStore(client, time.Hour)
	ctx := context.Background()

	ok, err := store.Claim(ctx, "twilio_sms", "SM1")
	if err != nil || !ok {
		t.Fatalf("expected first claim, got %v %v", ok, err)
	}
	ok, err = store.Claim(ctx, "twilio_sms", "SM1")
	if err != nil || ok {
		t.Fatalf("expected duplicate claim rejected, got %v %v", ok, err)
	}
	seen, err := store.AlreadyProcessed(ctx, "twilio_sms", "SM1")
	if err != nil || !seen {
		t.Fatalf("expected processed, got %v %v", seen, err)
	}

	mr.FastForward(2 * time.Hour)
	ok, err = store.Claim(ctx, "twilio_sms", "SM1")
	if err != nil || !ok {
		t.Fatalf("expected claim after ttl expiry, got %v %v", ok, err)
	}
}

func TestRedisProcessedStoreError(t *testing.T) {
	mr, client := setupTestRedis(t)
	store := NewRedisProcessedStore(client, time.Hour)
	mr.Close()

	if _, err := store.Claim(context.Background(), "twilio_sms", "SM1"); err == nil {
		t.Fatalf("expected error when redis is down")
	}
}

func TestMemoryProcessedStoreConcurrentClaims(t *testing.T) {
	store := NewMemoryProcessedStore()
	var wins int32
	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if ok, _ := store.Claim(context.Background(), "twilio_status", "SM1:failed"); ok {
				atomic.AddInt32(&wins, 1)
			}
		}()
	}
	wg.Wait()
	if wins != 1 {
		t.Fatalf("expected exactly one winning claim, got %d", wins)
	}
}
