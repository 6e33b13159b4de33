package interactions

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/wolfman30/medspa-sms-triage/internal/triage"
)

// PgxPool is the subset of pgxpool.Pool used by PostgresStore.
type PgxPool interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// PostgresStore persists conversations and the interaction log in Postgres.
type PostgresStore struct {
	pool PgxPool
}

func NewPostgresStore(pool PgxPool) *PostgresStore {
	if pool == nil {
		panic("interactions: pgx pool required")
	}
	return &PostgresStore{pool: pool}
}

func (s *PostgresStore) UpsertConversation(ctx context.Context, conv triage.Conversation) error {
	query := `
		INSERT INTO conversations (id, patient_id, patient_phone, last_message_body, last_message_at, channel, status, created_at, updated_at)
		VALUES ($1, NULLIF($2, ''), $3, $4, $5, $6, $7, $5, $5)
		ON CONFLICT (id) DO UPDATE SET
			patient_id = COALESCE(EXCLUDED.patient_id, conversations.patient_id),
			last_message_body = EXCLUDED.last_message_body,
			last_message_at = GREATEST(conversations.last_message_at, EXCLUDED.last_message_at),
			updated_at = EXCLUDED.updated_at
	`
	_, err := s.pool.Exec(ctx, query,
		conv.ID, conv.PatientID, conv.PatientPhone, conv.LastMessageBody, conv.LastMessageAt, conv.Channel, conv.Status)
	if err != nil {
		return fmt.Errorf("interactions: upsert conversation: %w", err)
	}
	return nil
}

func (s *PostgresStore) AppendEntry(ctx context.Context, entry triage.InteractionLogEntry) (bool, error) {
	classification, err := json.Marshal(entry.Classification)
	if err != nil {
		return false, fmt.Errorf("interactions: marshal classification: %w", err)
	}
	query := `
		INSERT INTO interaction_log (id, conversation_id, provider_message_id, patient_phone, inbound_body, classification, path, auto_response, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, NULLIF($8, ''), $9)
		ON CONFLICT (provider_message_id) DO NOTHING
	`
	tag, err := s.pool.Exec(ctx, query,
		uuid.New(), entry.ConversationID, entry.ProviderMessageID, entry.PatientPhone, entry.InboundBody,
		classification, entry.Path, entry.AutoResponse, entry.Timestamp)
	if err != nil {
		return false, fmt.Errorf("interactions: insert entry: %w", err)
	}
	return tag.RowsAffected() == 1, nil
}

func (s *PostgresStore) GetConversation(ctx context.Context, phone string) (triage.Conversation, error) {
	query := `
		SELECT id, COALESCE(patient_id, ''), patient_phone, last_message_body, last_message_at, channel, status
		FROM conversations
		WHERE id = $1
	`
	var conv triage.Conversation
	err := s.pool.QueryRow(ctx, query, triage.ConversationID(phone)).Scan(
		&conv.ID, &conv.PatientID, &conv.PatientPhone, &conv.LastMessageBody, &conv.LastMessageAt, &conv.Channel, &conv.Status)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return triage.Conversation{}, ErrNotFound
		}
		return triage.Conversation{}, fmt.Errorf("interactions: get conversation: %w", err)
	}
	return conv, nil
}

func (s *PostgresStore) ListInteractions(ctx context.Context, phone string, limit int) ([]triage.InteractionLogEntry, error) {
	if limit <= 0 {
		limit = 50
	}
	query := `
		SELECT conversation_id, provider_message_id, patient_phone, inbound_body, classification, path, COALESCE(auto_response, ''), created_at
		FROM interaction_log
		WHERE conversation_id = $1
		ORDER BY created_at DESC
		LIMIT $2
	`
	rows, err := s.pool.Query(ctx, query, triage.ConversationID(phone), limit)
	if err != nil {
		return nil, fmt.Errorf("interactions: list: %w", err)
	}
	defer rows.Close()

	var out []triage.InteractionLogEntry
	for rows.Next() {
		var (
			e   triage.InteractionLogEntry
			raw []byte
		)
		if err := rows.Scan(&e.ConversationID, &e.ProviderMessageID, &e.PatientPhone, &e.InboundBody, &raw, &e.Path, &e.AutoResponse, &e.Timestamp); err != nil {
			return nil, fmt.Errorf("interactions: scan entry: %w", err)
		}
		if len(raw) > 0 {
			if err := json.Unmarshal(raw, &e.Classification); err != nil {
				return nil, fmt.Errorf("interactions: decode classification: %w", err)
			}
		}
		out = append(out, e)
	}
	return out, rows.Err()
}
