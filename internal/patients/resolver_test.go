package patients

import (
	"context"
	"errors"
	"io"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wolfman30/medspa-sms-triage/internal/triage"
	"github.com/wolfman30/medspa-sms-triage/pkg/logging"
)

type failingDirectory struct {
	*MemoryDirectory
	findErr error
}

func (f failingDirectory) FindPatientIDByPhone(ctx context.Context, phone string) (string, error) {
	if f.findErr != nil {
		return "", f.findErr
	}
	return f.MemoryDirectory.FindPatientIDByPhone(ctx, phone)
}

func newTestResolver(dir Directory, now time.Time) *Resolver {
	r := NewResolver(dir, NewBusinessHours(time.UTC), logging.NewWithWriter("error", io.Discard))
	r.now = func() time.Time { return now }
	return r
}

// Monday 2 March 2026, 15:00 UTC.
var monday = time.Date(2026, 3, 2, 15, 0, 0, 0, time.UTC)

func seededDirectory() *MemoryDirectory {
	dir := NewMemoryDirectory()
	dir.AddPatient(Profile{ID: "p1", Name: "Jane Doe", Phone: "+15551234567"})
	dir.AddAppointment("p1", triage.Appointment{ID: "later", Service: "Botox", StartsAt: monday.Add(96 * time.Hour), Status: "scheduled"})
	dir.AddAppointment("p1", triage.Appointment{ID: "soon", Service: "Hydrafacial", StartsAt: monday.Add(24 * time.Hour), Status: "scheduled"})
	dir.AddAppointment("p1", triage.Appointment{ID: "gone", Service: "Peel", StartsAt: monday.Add(2 * time.Hour), Status: "cancelled"})
	dir.AddAppointment("p1", triage.Appointment{ID: "past", Service: "Peel", StartsAt: monday.Add(-2 * time.Hour), Status: "scheduled"})
	dir.AddTreatment("p1", triage.Treatment{ID: "old", ServiceName: "Laser", PerformedAt: monday.Add(-30 * 24 * time.Hour)})
	dir.AddTreatment("p1", triage.Treatment{ID: "tx-early", ServiceName: "Botox", PerformedAt: monday.Add(-10 * 24 * time.Hour)})
	dir.AddTreatment("p1", triage.Treatment{ID: "tx-recent", ServiceName: "Dermal Filler", PerformedAt: monday.Add(-48 * time.Hour)})
	return dir
}

func TestResolverKnownPatient(t *testing.T) {
	r := newTestResolver(seededDirectory(), monday)

	pctx := r.Resolve(context.Background(), "(555) 123-4567")
	require.True(t, pctx.Known())
	assert.Equal(t, "p1", pctx.PatientID)
	assert.Equal(t, "Jane Doe", pctx.PatientName)
	assert.True(t, pctx.BusinessHoursNow)

	require.Len(t, pctx.UpcomingAppointments, 2)
	assert.Equal(t, "soon", pctx.UpcomingAppointments[0].ID)
	assert.Equal(t, "later", pctx.UpcomingAppointments[1].ID)

	require.Len(t, pctx.RecentTreatments, 2)
	assert.Equal(t, "tx-recent", pctx.RecentTreatments[0].ID)
}

func TestResolverUnknownPatient(t *testing.T) {
	r := newTestResolver(seededDirectory(), monday)

	pctx := r.Resolve(context.Background(), "+15559990000")
	assert.False(t, pctx.Known())
	assert.True(t, pctx.StaffAvailable)
	assert.True(t, pctx.BusinessHoursNow)
	assert.Empty(t, pctx.UpcomingAppointments)
}

func TestResolverLookupErrorDegrades(t *testing.T) {
	dir := failingDirectory{MemoryDirectory: seededDirectory(), findErr: errors.New("db down")}
	r := newTestResolver(dir, monday)

	pctx := r.Resolve(context.Background(), "+15551234567")
	assert.False(t, pctx.Known())
	assert.True(t, pctx.StaffAvailable)
}

func TestFindRecentTreatment(t *testing.T) {
	r := newTestResolver(seededDirectory(), monday)

	tx, err := r.FindRecentTreatment(context.Background(), "p1")
	require.NoError(t, err)
	require.NotNil(t, tx)
	assert.Equal(t, "tx-recent", tx.ID)
	assert.Equal(t, 2, tx.DaysSince(monday))

	tx, err = r.FindRecentTreatment(context.Background(), "")
	require.NoError(t, err)
	assert.Nil(t, tx)
}

func TestBusinessHours(t *testing.T) {
	hours := NewBusinessHours(time.UTC)
	cases := []struct {
		name string
		at   time.Time
		open bool
	}{
		{"weekday morning", time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC), true},
		{"weekday before open", time.Date(2026, 3, 2, 8, 59, 0, 0, time.UTC), false},
		{"weekday closing is exclusive", time.Date(2026, 3, 6, 18, 0, 0, 0, time.UTC), false},
		{"saturday midday", time.Date(2026, 3, 7, 12, 0, 0, 0, time.UTC), true},
		{"saturday evening", time.Date(2026, 3, 7, 16, 30, 0, 0, time.UTC), false},
		{"sunday", time.Date(2026, 3, 8, 12, 0, 0, 0, time.UTC), false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.open, hours.Open(tc.at))
		})
	}
}

func TestBusinessHoursUsesClinicZone(t *testing.T) {
	ny, err := time.LoadLocation("America/New_York")
	require.NoError(t, err)
	hours := NewBusinessHours(ny)
	// 13:30 UTC on a Monday in March is 09:30 EDT.
	assert.True(t, hours.Open(time.Date(2026, 3, 9, 13, 30, 0, 0, time.UTC)))
	// 23:00 UTC is 19:00 EDT.
	assert.False(t, hours.Open(time.Date(2026, 3, 9, 23, 0, 0, 0, time.UTC)))
}
