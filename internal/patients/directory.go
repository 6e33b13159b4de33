// Package patients resolves inbound phone numbers to patient context.
package patients

import (
	"context"
	"errors"
	"time"

	"github.com/wolfman30/medspa-sms-triage/internal/triage"
)

// ErrNotFound is returned when no patient matches a lookup.
var ErrNotFound = errors.New("patients: not found")

// Profile is the minimal patient record triage needs.
type Profile struct {
	ID    string
	Name  string
	Phone string
}

// Directory is the patient and appointment storage collaborator.
type Directory interface {
	FindPatientIDByPhone(ctx context.Context, phone string) (string, error)
	GetProfile(ctx context.Context, patientID string) (Profile, error)
	// UpcomingAppointments returns non-cancelled appointments starting after now, soonest first.
	UpcomingAppointments(ctx context.Context, patientID string, now time.Time) ([]triage.Appointment, error)
	// RecentTreatments returns completed treatments performed at or after since, most recent first.
	RecentTreatments(ctx context.Context, patientID string, since time.Time) ([]triage.Treatment, error)
}
