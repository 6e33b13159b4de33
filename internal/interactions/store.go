// Package interactions keeps the per-phone conversation record and the append-only triage audit log.
package interactions

import (
	"context"
	"errors"

	"github.com/wolfman30/medspa-sms-triage/internal/triage"
)

// ErrNotFound is returned when no conversation exists for a phone number.
var ErrNotFound = errors.New("interactions: not found")

const (
	ChannelSMS         = "sms"
	ConversationActive = "active"
)

// Store persists conversations and interaction log entries.
type Store interface {
	// UpsertConversation creates the conversation or updates its last message.
	UpsertConversation(ctx context.Context, conv triage.Conversation) error
	// AppendEntry adds an entry unless one with the same provider message id exists.
	AppendEntry(ctx context.Context, entry triage.InteractionLogEntry) (bool, error)
	GetConversation(ctx context.Context, phone string) (triage.Conversation, error)
	// ListInteractions returns the newest entries for a phone first.
	ListInteractions(ctx context.Context, phone string, limit int) ([]triage.InteractionLogEntry, error)
}
