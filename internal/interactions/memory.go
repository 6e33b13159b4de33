package interactions

import (
	"context"
	"sort"
	"sync"

	"github.com/wolfman30/medspa-sms-triage/internal/triage"
)

// MemoryStore keeps conversations and entries in process.
type MemoryStore struct {
	mu            sync.Mutex
	conversations map[string]triage.Conversation
	entries       []triage.InteractionLogEntry
	seen          map[string]struct{}
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		conversations: make(map[string]triage.Conversation),
		seen:          make(map[string]struct{}),
	}
}

func (m *MemoryStore) UpsertConversation(_ context.Context, conv triage.Conversation) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	existing, ok := m.conversations[conv.ID]
	if ok {
		if conv.PatientID == "" {
			conv.PatientID = existing.PatientID
		}
		if conv.LastMessageAt.Before(existing.LastMessageAt) {
			conv.LastMessageAt = existing.LastMessageAt
		}
		conv.Channel = existing.Channel
		conv.Status = existing.Status
	}
	m.conversations[conv.ID] = conv
	return nil
}

func (m *MemoryStore) AppendEntry(_ context.Context, entry triage.InteractionLogEntry) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, dup := m.seen[entry.ProviderMessageID]; dup {
		return false, nil
	}
	m.seen[entry.ProviderMessageID] = struct{}{}
	m.entries = append(m.entries, entry)
	return true, nil
}

func (m *MemoryStore) GetConversation(_ context.Context, phone string) (triage.Conversation, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	conv, ok := m.conversations[triage.ConversationID(phone)]
	if !ok {
		return triage.Conversation{}, ErrNotFound
	}
	return conv, nil
}

func (m *MemoryStore) ListInteractions(_ context.Context, phone string, limit int) ([]triage.InteractionLogEntry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	id := triage.ConversationID(phone)
	var out []triage.InteractionLogEntry
	for _, e := range m.entries {
		if e.ConversationID == id {
			out = append(out, e)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Timestamp.After(out[j].Timestamp) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}
