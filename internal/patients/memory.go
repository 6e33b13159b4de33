package patients

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/wolfman30/medspa-sms-triage/internal/triage"
)

type memoryPatient struct {
	profile      Profile
	appointments []triage.Appointment
	treatments   []triage.Treatment
}

// MemoryDirectory is an in-process Directory for local development and tests.
type MemoryDirectory struct {
	mu       sync.RWMutex
	patients map[string]*memoryPatient
	byPhone  map[string]string
}

func NewMemoryDirectory() *MemoryDirectory {
	return &MemoryDirectory{
		patients: make(map[string]*memoryPatient),
		byPhone:  make(map[string]string),
	}
}

// AddPatient registers a patient. The phone must already be E.164.
func (m *MemoryDirectory) AddPatient(p Profile) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.patients[p.ID] = &memoryPatient{profile: p}
	m.byPhone[p.Phone] = p.ID
}

func (m *MemoryDirectory) AddAppointment(patientID string, a triage.Appointment) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if p, ok := m.patients[patientID]; ok {
		p.appointments = append(p.appointments, a)
	}
}

func (m *MemoryDirectory) AddTreatment(patientID string, t triage.Treatment) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if p, ok := m.patients[patientID]; ok {
		p.treatments = append(p.treatments, t)
	}
}

// UpdateAppointment applies fn to the appointment with the given id.
func (m *MemoryDirectory) UpdateAppointment(appointmentID string, fn func(*triage.Appointment)) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, p := range m.patients {
		for i := range p.appointments {
			if p.appointments[i].ID == appointmentID {
				fn(&p.appointments[i])
				return nil
			}
		}
	}
	return fmt.Errorf("patients: appointment %s: %w", appointmentID, ErrNotFound)
}

// Appointment returns a copy of the appointment with the given id.
func (m *MemoryDirectory) Appointment(appointmentID string) (triage.Appointment, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, p := range m.patients {
		for _, a := range p.appointments {
			if a.ID == appointmentID {
				return a, true
			}
		}
	}
	return triage.Appointment{}, false
}

func (m *MemoryDirectory) FindPatientIDByPhone(_ context.Context, phone string) (string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	id, ok := m.byPhone[phone]
	if !ok {
		return "", ErrNotFound
	}
	return id, nil
}

func (m *MemoryDirectory) GetProfile(_ context.Context, patientID string) (Profile, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	p, ok := m.patients[patientID]
	if !ok {
		return Profile{}, ErrNotFound
	}
	return p.profile, nil
}

func (m *MemoryDirectory) UpcomingAppointments(_ context.Context, patientID string, now time.Time) ([]triage.Appointment, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	p, ok := m.patients[patientID]
	if !ok {
		return nil, nil
	}
	var out []triage.Appointment
	for _, a := range p.appointments {
		if a.Status != "cancelled" && a.StartsAt.After(now) {
			out = append(out, a)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].StartsAt.Before(out[j].StartsAt) })
	return out, nil
}

func (m *MemoryDirectory) RecentTreatments(_ context.Context, patientID string, since time.Time) ([]triage.Treatment, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	p, ok := m.patients[patientID]
	if !ok {
		return nil, nil
	}
	var out []triage.Treatment
	for _, t := range p.treatments {
		if !t.PerformedAt.Before(since) {
			out = append(out, t)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].PerformedAt.After(out[j].PerformedAt) })
	return out, nil
}

// SeedDemo loads a small fixture set for local development.
func (m *MemoryDirectory) SeedDemo(now time.Time) {
	m.AddPatient(Profile{ID: "p1", Name: "Jane Doe", Phone: "+15551234567"})
	m.AddAppointment("p1", triage.Appointment{
		ID: "appt-1", Service: "Botox", Provider: "Dr. Lee", Status: "scheduled",
		StartsAt: now.Add(72 * time.Hour).Truncate(time.Hour),
	})
	m.AddTreatment("p1", triage.Treatment{
		ID: "tx-1", ServiceName: "Dermal Filler", PractitionerID: "dr-lee", PractitionerName: "Dr. Lee",
		PerformedAt: now.Add(-48 * time.Hour),
	})
	m.AddPatient(Profile{ID: "p2", Name: "Alex Kim", Phone: "+15557654321"})
	m.AddAppointment("p2", triage.Appointment{
		ID: "appt-2", Service: "Hydrafacial", Provider: "Maria", Status: "scheduled",
		StartsAt: now.Add(6 * time.Hour).Truncate(time.Hour),
	})
}
