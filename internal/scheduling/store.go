// Package scheduling applies appointment changes requested over SMS.
package scheduling

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgtype"
)

// ErrAppointmentNotFound is returned when an update matched no appointment.
var ErrAppointmentNotFound = errors.New("scheduling: appointment not found")

const (
	StatusConfirmed = "confirmed"
	StatusCancelled = "cancelled"
)

// RescheduleRequest is a patient ask for a new time, handed to the front desk.
type RescheduleRequest struct {
	ID             uuid.UUID
	AppointmentID  string
	PatientID      string
	RequestedDate  string
	PreferredTimes []string
	Reason         string
	CreatedAt      time.Time
}

// Store mutates appointments.
type Store interface {
	// Confirm sets status confirmed and stamps the SMS confirmation time.
	Confirm(ctx context.Context, appointmentID string, at time.Time) error
	Cancel(ctx context.Context, appointmentID string, at time.Time) error
	CreateRescheduleRequest(ctx context.Context, req RescheduleRequest) (uuid.UUID, error)
}

type execer interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

// PostgresStore updates the appointments table and records reschedule requests.
type PostgresStore struct {
	db execer
}

func NewPostgresStore(db execer) *PostgresStore {
	if db == nil {
		panic("scheduling: db required")
	}
	return &PostgresStore{db: db}
}

func (s *PostgresStore) Confirm(ctx context.Context, appointmentID string, at time.Time) error {
	tag, err := s.db.Exec(ctx, `
		UPDATE appointments
		SET status = $2, sms_confirmed_at = $3, updated_at = $3
		WHERE id = $1
	`, appointmentID, StatusConfirmed, toPGTime(at))
	if err != nil {
		return fmt.Errorf("scheduling: confirm appointment: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrAppointmentNotFound
	}
	return nil
}

func (s *PostgresStore) Cancel(ctx context.Context, appointmentID string, at time.Time) error {
	tag, err := s.db.Exec(ctx, `
		UPDATE appointments
		SET status = $2, cancelled_at = $3, updated_at = $3
		WHERE id = $1
	`, appointmentID, StatusCancelled, toPGTime(at))
	if err != nil {
		return fmt.Errorf("scheduling: cancel appointment: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrAppointmentNotFound
	}
	return nil
}

func (s *PostgresStore) CreateRescheduleRequest(ctx context.Context, req RescheduleRequest) (uuid.UUID, error) {
	if req.ID == uuid.Nil {
		req.ID = uuid.New()
	}
	if req.CreatedAt.IsZero() {
		req.CreatedAt = time.Now().UTC()
	}
	_, err := s.db.Exec(ctx, `
		INSERT INTO reschedule_requests (id, appointment_id, patient_id, requested_date, preferred_times, reason, status, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, 'pending', $7)
	`, toPGUUID(req.ID), nullableText(req.AppointmentID), req.PatientID, req.RequestedDate, req.PreferredTimes, req.Reason, toPGTime(req.CreatedAt))
	if err != nil {
		return uuid.Nil, fmt.Errorf("scheduling: insert reschedule request: %w", err)
	}
	return req.ID, nil
}

func toPGUUID(id uuid.UUID) pgtype.UUID {
	if id == uuid.Nil {
		return pgtype.UUID{}
	}
	return pgtype.UUID{Bytes: [16]byte(id), Valid: true}
}

func toPGTime(t time.Time) pgtype.Timestamptz {
	return pgtype.Timestamptz{Time: t, Valid: true}
}

func nullableText(s string) pgtype.Text {
	return pgtype.Text{String: s, Valid: s != ""}
}
