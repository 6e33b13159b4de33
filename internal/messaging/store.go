package messaging

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/wolfman30/medspa-sms-triage/internal/triage"
)

// ErrMessageNotFound is returned when no message row matches a provider message id.
var ErrMessageNotFound = errors.New("messaging: message not found")

// PgxPool is the subset of pgxpool.Pool used by Store.
type PgxPool interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Store persists outbound message delivery state and SMS opt-outs in Postgres.
type Store struct {
	pool PgxPool
}

func NewStore(pool PgxPool) *Store {
	if pool == nil {
		return nil
	}
	return &Store{pool: pool}
}

// MessageRecord is the tracked delivery state of one provider message.
type MessageRecord struct {
	ID                uuid.UUID
	ProviderMessageID string
	ConversationID    string
	From              string
	To                string
	Direction         string
	Body              string
	Status            string
	ErrorCode         string
	ErrorMessage      string
	StatusAt          time.Time
	DeliveredAt       *time.Time
	FailedAt          *time.Time
}

// RecordOutbound inserts a freshly sent message. Re-recording the same provider id is a no-op.
func (s *Store) RecordOutbound(ctx context.Context, rec MessageRecord) error {
	if rec.ID == uuid.Nil {
		rec.ID = uuid.New()
	}
	if rec.Direction == "" {
		rec.Direction = "outbound"
	}
	if rec.Status == "" {
		rec.Status = triage.StatusQueued
	}
	if rec.StatusAt.IsZero() {
		rec.StatusAt = time.Now().UTC()
	}
	query := `
		INSERT INTO messages (
			id, provider_message_id, conversation_id, from_e164, to_e164,
			direction, body, provider_status, status_at
		)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)
		ON CONFLICT (provider_message_id) DO NOTHING
	`
	if _, err := s.pool.Exec(ctx, query, rec.ID, rec.ProviderMessageID, rec.ConversationID, rec.From, rec.To, rec.Direction, rec.Body, rec.Status, rec.StatusAt); err != nil {
		return fmt.Errorf("messaging: record outbound: %w", err)
	}
	return nil
}

// ApplyStatus stores a delivery status unless a newer status was already observed.
// It reports whether the event changed stored state.
func (s *Store) ApplyStatus(ctx context.Context, evt triage.DeliveryStatusEvent) (bool, error) {
	var deliveredAt, failedAt *time.Time
	observed := evt.ObservedAt.UTC()
	switch {
	case evt.Status == triage.StatusDelivered:
		deliveredAt = &observed
	case evt.Terminal():
		failedAt = &observed
	}
	query := `
		INSERT INTO messages (
			id, provider_message_id, from_e164, to_e164, direction,
			provider_status, error_code, error_message, status_at, delivered_at, failed_at
		)
		VALUES ($1,$2,$3,$4,'outbound',$5,$6,$7,$8,$9,$10)
		ON CONFLICT (provider_message_id) DO UPDATE
		SET provider_status = EXCLUDED.provider_status,
			error_code = EXCLUDED.error_code,
			error_message = EXCLUDED.error_message,
			status_at = EXCLUDED.status_at,
			delivered_at = COALESCE(EXCLUDED.delivered_at, messages.delivered_at),
			failed_at = COALESCE(EXCLUDED.failed_at, messages.failed_at)
		WHERE messages.status_at IS NULL OR messages.status_at <= EXCLUDED.status_at
	`
	tag, err := s.pool.Exec(ctx, query, uuid.New(), evt.ProviderMessageID, evt.From, evt.To,
		evt.Status, evt.ErrorCode, evt.ErrorMessage, observed, deliveredAt, failedAt)
	if err != nil {
		return false, fmt.Errorf("messaging: apply status: %w", err)
	}
	return tag.RowsAffected() > 0, nil
}

// GetMessage loads the tracked state for a provider message id.
func (s *Store) GetMessage(ctx context.Context, providerMessageID string) (MessageRecord, error) {
	query := `
		SELECT id, provider_message_id, COALESCE(conversation_id, ''), COALESCE(from_e164, ''), COALESCE(to_e164, ''),
			direction, COALESCE(body, ''), provider_status, COALESCE(error_code, ''), COALESCE(error_message, ''),
			status_at, delivered_at, failed_at
		FROM messages
		WHERE provider_message_id = $1
	`
	var rec MessageRecord
	err := s.pool.QueryRow(ctx, query, strings.TrimSpace(providerMessageID)).Scan(
		&rec.ID, &rec.ProviderMessageID, &rec.ConversationID, &rec.From, &rec.To,
		&rec.Direction, &rec.Body, &rec.Status, &rec.ErrorCode, &rec.ErrorMessage,
		&rec.StatusAt, &rec.DeliveredAt, &rec.FailedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return MessageRecord{}, ErrMessageNotFound
		}
		return MessageRecord{}, fmt.Errorf("messaging: get message: %w", err)
	}
	return rec, nil
}

// Unsubscribe records an SMS opt-out for the recipient.
func (s *Store) Unsubscribe(ctx context.Context, recipient, source string) error {
	query := `
		INSERT INTO unsubscribes (recipient_e164, source)
		VALUES ($1, $2)
		ON CONFLICT (recipient_e164) DO UPDATE
		SET source = EXCLUDED.source,
			updated_at = now()
	`
	if _, err := s.pool.Exec(ctx, query, recipient, source); err != nil {
		return fmt.Errorf("messaging: insert unsubscribe: %w", err)
	}
	return nil
}

// Resubscribe removes an opt-out.
func (s *Store) Resubscribe(ctx context.Context, recipient string) error {
	if _, err := s.pool.Exec(ctx, `DELETE FROM unsubscribes WHERE recipient_e164 = $1`, recipient); err != nil {
		return fmt.Errorf("messaging: delete unsubscribe: %w", err)
	}
	return nil
}

func (s *Store) IsUnsubscribed(ctx context.Context, recipient string) (bool, error) {
	var exists int
	if err := s.pool.QueryRow(ctx, `SELECT 1 FROM unsubscribes WHERE recipient_e164 = $1`, recipient).Scan(&exists); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return false, nil
		}
		return false, fmt.Errorf("messaging: check unsubscribe: %w", err)
	}
	return true, nil
}

// MemoryUnsubscribes keeps opt-outs in process for local development.
type MemoryUnsubscribes struct {
	mu    sync.RWMutex
	phone map[string]string
}

func NewMemoryUnsubscribes() *MemoryUnsubscribes {
	return &MemoryUnsubscribes{phone: make(map[string]string)}
}

func (m *MemoryUnsubscribes) Unsubscribe(_ context.Context, recipient, source string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.phone[recipient] = source
	return nil
}

func (m *MemoryUnsubscribes) Resubscribe(_ context.Context, recipient string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.phone, recipient)
	return nil
}

func (m *MemoryUnsubscribes) IsUnsubscribed(_ context.Context, recipient string) (bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, ok := m.phone[recipient]
	return ok, nil
}
