// Package delivery reconciles provider delivery-status callbacks against tracked outbound messages.
package delivery

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/wolfman30/medspa-sms-triage/internal/messaging"
	"github.com/wolfman30/medspa-sms-triage/internal/triage"
)

// StatusStore tracks outbound messages and their latest delivery status.
// messaging.Store is the Postgres implementation.
type StatusStore interface {
	RecordOutbound(ctx context.Context, rec messaging.MessageRecord) error
	// ApplyStatus reports false when a newer status was already stored.
	ApplyStatus(ctx context.Context, evt triage.DeliveryStatusEvent) (bool, error)
	GetMessage(ctx context.Context, providerMessageID string) (messaging.MessageRecord, error)
}

// MemoryStatusStore is the in-process StatusStore.
type MemoryStatusStore struct {
	mu       sync.RWMutex
	messages map[string]messaging.MessageRecord
}

func NewMemoryStatusStore() *MemoryStatusStore {
	return &MemoryStatusStore{messages: make(map[string]messaging.MessageRecord)}
}

func (m *MemoryStatusStore) RecordOutbound(_ context.Context, rec messaging.MessageRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, exists := m.messages[rec.ProviderMessageID]; exists {
		return nil
	}
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
	m.messages[rec.ProviderMessageID] = rec
	return nil
}

func (m *MemoryStatusStore) ApplyStatus(_ context.Context, evt triage.DeliveryStatusEvent) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	observed := evt.ObservedAt.UTC()
	rec, exists := m.messages[evt.ProviderMessageID]
	if exists && rec.StatusAt.After(observed) {
		return false, nil
	}
	if !exists {
		rec = messaging.MessageRecord{
			ID:                uuid.New(),
			ProviderMessageID: evt.ProviderMessageID,
			From:              evt.From,
			To:                evt.To,
			Direction:         "outbound",
		}
	}
	rec.Status = evt.Status
	rec.ErrorCode = evt.ErrorCode
	rec.ErrorMessage = evt.ErrorMessage
	rec.StatusAt = observed
	switch {
	case evt.Status == triage.StatusDelivered:
		rec.DeliveredAt = &observed
	case evt.Terminal():
		rec.FailedAt = &observed
	}
	m.messages[evt.ProviderMessageID] = rec
	return true, nil
}

func (m *MemoryStatusStore) GetMessage(_ context.Context, providerMessageID string) (messaging.MessageRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	rec, ok := m.messages[providerMessageID]
	if !ok {
		return messaging.MessageRecord{}, messaging.ErrMessageNotFound
	}
	return rec, nil
}
