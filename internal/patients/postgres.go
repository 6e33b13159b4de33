package patients

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/wolfman30/medspa-sms-triage/internal/triage"
)

// Querier is the subset of pgxpool.Pool used by PostgresDirectory.
type Querier interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// PostgresDirectory reads patients, appointments and treatments from Postgres.
type PostgresDirectory struct {
	db Querier
}

func NewPostgresDirectory(db Querier) *PostgresDirectory {
	if db == nil {
		panic("patients: db required")
	}
	return &PostgresDirectory{db: db}
}

func (d *PostgresDirectory) FindPatientIDByPhone(ctx context.Context, phone string) (string, error) {
	var id string
	err := d.db.QueryRow(ctx, `SELECT id FROM patients WHERE phone_e164 = $1 ORDER BY created_at LIMIT 1`, phone).Scan(&id)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return "", ErrNotFound
		}
		return "", fmt.Errorf("patients: find by phone: %w", err)
	}
	return id, nil
}

func (d *PostgresDirectory) GetProfile(ctx context.Context, patientID string) (Profile, error) {
	var p Profile
	err := d.db.QueryRow(ctx, `SELECT id, full_name, phone_e164 FROM patients WHERE id = $1`, patientID).Scan(&p.ID, &p.Name, &p.Phone)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Profile{}, ErrNotFound
		}
		return Profile{}, fmt.Errorf("patients: get profile: %w", err)
	}
	return p, nil
}

func (d *PostgresDirectory) UpcomingAppointments(ctx context.Context, patientID string, now time.Time) ([]triage.Appointment, error) {
	query := `
		SELECT id, service_name, COALESCE(provider_name, ''), starts_at, status, sms_confirmed_at
		FROM appointments
		WHERE patient_id = $1
			AND starts_at > $2
			AND status <> 'cancelled'
		ORDER BY starts_at ASC
	`
	rows, err := d.db.Query(ctx, query, patientID, now)
	if err != nil {
		return nil, fmt.Errorf("patients: upcoming appointments: %w", err)
	}
	defer rows.Close()

	var out []triage.Appointment
	for rows.Next() {
		var a triage.Appointment
		if err := rows.Scan(&a.ID, &a.Service, &a.Provider, &a.StartsAt, &a.Status, &a.SMSConfirmedAt); err != nil {
			return nil, fmt.Errorf("patients: scan appointment: %w", err)
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

func (d *PostgresDirectory) RecentTreatments(ctx context.Context, patientID string, since time.Time) ([]triage.Treatment, error) {
	query := `
		SELECT id, service_name, COALESCE(practitioner_id, ''), COALESCE(practitioner_name, ''), performed_at
		FROM treatments
		WHERE patient_id = $1
			AND performed_at >= $2
		ORDER BY performed_at DESC
	`
	rows, err := d.db.Query(ctx, query, patientID, since)
	if err != nil {
		return nil, fmt.Errorf("patients: recent treatments: %w", err)
	}
	defer rows.Close()

	var out []triage.Treatment
	for rows.Next() {
		var t triage.Treatment
		if err := rows.Scan(&t.ID, &t.ServiceName, &t.PractitionerID, &t.PractitionerName, &t.PerformedAt); err != nil {
			return nil, fmt.Errorf("patients: scan treatment: %w", err)
		}
		out = append(out, t)
	}
	return out, rows.Err()
}
