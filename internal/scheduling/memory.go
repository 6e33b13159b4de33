package scheduling

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/wolfman30/medspa-sms-triage/internal/patients"
	"github.com/wolfman30/medspa-sms-triage/internal/triage"
)

// MemoryStore mutates appointments held by a patients.MemoryDirectory.
type MemoryStore struct {
	dir *patients.MemoryDirectory

	mu       sync.Mutex
	requests []RescheduleRequest
}

func NewMemoryStore(dir *patients.MemoryDirectory) *MemoryStore {
	return &MemoryStore{dir: dir}
}

func (m *MemoryStore) Confirm(_ context.Context, appointmentID string, at time.Time) error {
	err := m.dir.UpdateAppointment(appointmentID, func(a *triage.Appointment) {
		a.Status = StatusConfirmed
		confirmed := at
		a.SMSConfirmedAt = &confirmed
	})
	if err != nil {
		return ErrAppointmentNotFound
	}
	return nil
}

func (m *MemoryStore) Cancel(_ context.Context, appointmentID string, _ time.Time) error {
	err := m.dir.UpdateAppointment(appointmentID, func(a *triage.Appointment) {
		a.Status = StatusCancelled
	})
	if err != nil {
		return ErrAppointmentNotFound
	}
	return nil
}

func (m *MemoryStore) CreateRescheduleRequest(_ context.Context, req RescheduleRequest) (uuid.UUID, error) {
	if req.ID == uuid.Nil {
		req.ID = uuid.New()
	}
	if req.CreatedAt.IsZero() {
		req.CreatedAt = time.Now().UTC()
	}
	m.mu.Lock()
	m.requests = append(m.requests, req)
	m.mu.Unlock()
	return req.ID, nil
}

// RescheduleRequests returns a copy of the recorded requests.
func (m *MemoryStore) RescheduleRequests() []RescheduleRequest {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]RescheduleRequest(nil), m.requests...)
}
