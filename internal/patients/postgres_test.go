package patients

import (
	"context"
	"errors"
	"testing"
	"time"

	pgx "github.com/jackc/pgx/v5"
	pgxmock "github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPostgresDirectoryFindPatientIDByPhone(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()
	dir := NewPostgresDirectory(mock)

	mock.ExpectQuery("SELECT id FROM patients").
		WithArgs("+15551234567").
		WillReturnRows(pgxmock.NewRows([]string{"id"}).AddRow("p1"))
	id, err := dir.FindPatientIDByPhone(context.Background(), "+15551234567")
	require.NoError(t, err)
	assert.Equal(t, "p1", id)

	mock.ExpectQuery("SELECT id FROM patients").
		WithArgs("+15550000000").
		WillReturnError(pgx.ErrNoRows)
	_, err = dir.FindPatientIDByPhone(context.Background(), "+15550000000")
	assert.ErrorIs(t, err, ErrNotFound)

	mock.ExpectQuery("SELECT id FROM patients").
		WithArgs("+15550000001").
		WillReturnError(errors.New("connection reset"))
	_, err = dir.FindPatientIDByPhone(context.Background(), "+15550000001")
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrNotFound)

	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresDirectoryUpcomingAppointments(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()
	dir := NewPostgresDirectory(mock)

	now := time.Date(2026, 3, 2, 15, 0, 0, 0, time.UTC)
	first := now.Add(24 * time.Hour)
	second := now.Add(72 * time.Hour)
	mock.ExpectQuery("FROM appointments").
		WithArgs("p1", now).
		WillReturnRows(pgxmock.NewRows([]string{"id", "service_name", "provider_name", "starts_at", "status", "sms_confirmed_at"}).
			AddRow("a1", "Botox", "Dr. Lee", first, "scheduled", (*time.Time)(nil)).
			AddRow("a2", "Hydrafacial", "", second, "confirmed", &now))

	appts, err := dir.UpcomingAppointments(context.Background(), "p1", now)
	require.NoError(t, err)
	require.Len(t, appts, 2)
	assert.Equal(t, "a1", appts[0].ID)
	assert.Nil(t, appts[0].SMSConfirmedAt)
	require.NotNil(t, appts[1].SMSConfirmedAt)
	assert.Equal(t, now, *appts[1].SMSConfirmedAt)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresDirectoryRecentTreatments(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()
	dir := NewPostgresDirectory(mock)

	since := time.Date(2026, 2, 16, 0, 0, 0, 0, time.UTC)
	performed := since.Add(12 * 24 * time.Hour)
	mock.ExpectQuery("FROM treatments").
		WithArgs("p1", since).
		WillReturnRows(pgxmock.NewRows([]string{"id", "service_name", "practitioner_id", "practitioner_name", "performed_at"}).
			AddRow("tx1", "Dermal Filler", "dr-lee", "Dr. Lee", performed))

	treatments, err := dir.RecentTreatments(context.Background(), "p1", since)
	require.NoError(t, err)
	require.Len(t, treatments, 1)
	assert.Equal(t, "Dermal Filler", treatments[0].ServiceName)
	assert.Equal(t, performed, treatments[0].PerformedAt)
	require.NoError(t, mock.ExpectationsWereMet())
}
