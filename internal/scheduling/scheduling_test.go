package scheduling

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	pgxmock "github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wolfman30/medspa-sms-triage/internal/patients"
	"github.com/wolfman30/medspa-sms-triage/internal/triage"
)

func TestPostgresStoreConfirm(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()
	store := NewPostgresStore(mock)
	at := time.Date(2026, 3, 2, 15, 0, 0, 0, time.UTC)

	mock.ExpectExec("UPDATE appointments").
		WithArgs("appt-1", StatusConfirmed, pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))
	require.NoError(t, store.Confirm(context.Background(), "appt-1", at))

	mock.ExpectExec("UPDATE appointments").
		WithArgs("missing", StatusConfirmed, pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("UPDATE", 0))
	assert.ErrorIs(t, store.Confirm(context.Background(), "missing", at), ErrAppointmentNotFound)

	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStoreCancelError(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()
	store := NewPostgresStore(mock)

	mock.ExpectExec("UPDATE appointments").
		WithArgs("appt-1", StatusCancelled, pgxmock.AnyArg()).
		WillReturnError(errors.New("deadlock"))
	err = store.Cancel(context.Background(), "appt-1", time.Now())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "scheduling: cancel appointment")
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStoreCreateRescheduleRequest(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()
	store := NewPostgresStore(mock)

	mock.ExpectExec("INSERT INTO reschedule_requests").
		WithArgs(pgxmock.AnyArg(), pgxmock.AnyArg(), "p1", "next friday", []string{"morning"}, "sms", pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	id, err := store.CreateRescheduleRequest(context.Background(), RescheduleRequest{
		AppointmentID:  "appt-1",
		PatientID:      "p1",
		RequestedDate:  "next friday",
		PreferredTimes: []string{"morning"},
		Reason:         "sms",
	})
	require.NoError(t, err)
	assert.NotEqual(t, uuid.Nil, id)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestMemoryStoreMutatesDirectory(t *testing.T) {
	dir := patients.NewMemoryDirectory()
	dir.AddPatient(patients.Profile{ID: "p1", Name: "Jane", Phone: "+15551234567"})
	dir.AddAppointment("p1", triage.Appointment{ID: "appt-1", Service: "Botox", Status: "scheduled"})
	store := NewMemoryStore(dir)
	at := time.Date(2026, 3, 2, 15, 0, 0, 0, time.UTC)

	require.NoError(t, store.Confirm(context.Background(), "appt-1", at))
	appt, ok := dir.Appointment("appt-1")
	require.True(t, ok)
	assert.Equal(t, StatusConfirmed, appt.Status)
	require.NotNil(t, appt.SMSConfirmedAt)
	assert.Equal(t, at, *appt.SMSConfirmedAt)

	require.NoError(t, store.Cancel(context.Background(), "appt-1", at))
	appt, _ = dir.Appointment("appt-1")
	assert.Equal(t, StatusCancelled, appt.Status)

	assert.ErrorIs(t, store.Cancel(context.Background(), "nope", at), ErrAppointmentNotFound)

	_, err := store.CreateRescheduleRequest(context.Background(), RescheduleRequest{PatientID: "p1"})
	require.NoError(t, err)
	assert.Len(t, store.RescheduleRequests(), 1)
}

func TestWeeklyAvailability(t *testing.T) {
	avail := NewWeeklyAvailability(time.UTC)
	// Tuesday 3 March 2026, 11:00: Tuesday's 10:00 slot already passed.
	from := time.Date(2026, 3, 3, 11, 0, 0, 0, time.UTC)

	slots, err := avail.Slots(context.Background(), "Botox", from)
	require.NoError(t, err)
	require.Len(t, slots, MaxOfferedSlots)
	assert.Equal(t, []string{"Wednesday 3:30 PM", "Monday 2:00 PM", "Tuesday 10:00 AM"}, FormatSlots(slots, time.UTC))
	assert.Equal(t, time.Date(2026, 3, 10, 10, 0, 0, 0, time.UTC), slots[2])

	none, err := avail.Slots(context.Background(), " ", from)
	require.NoError(t, err)
	assert.Empty(t, none)
}
