package patients

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/wolfman30/medspa-sms-triage/internal/messaging"
	"github.com/wolfman30/medspa-sms-triage/internal/triage"
	"github.com/wolfman30/medspa-sms-triage/pkg/logging"
)

// TreatmentLookback bounds how far back a treatment counts as "recent".
const TreatmentLookback = 14 * 24 * time.Hour

const defaultLookupTimeout = 3 * time.Second

// Resolver builds triage.PatientContext for inbound senders.
type Resolver struct {
	dir     Directory
	hours   BusinessHours
	logger  *logging.Logger
	timeout time.Duration
	now     func() time.Time
}

func NewResolver(dir Directory, hours BusinessHours, logger *logging.Logger) *Resolver {
	if dir == nil {
		panic("patients: directory required")
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &Resolver{
		dir:     dir,
		hours:   hours,
		logger:  logger.WithComponent("patients"),
		timeout: defaultLookupTimeout,
		now:     time.Now,
	}
}

// Resolve never fails: unknown senders and lookup errors both yield the unknown-patient context.
func (r *Resolver) Resolve(ctx context.Context, from string) triage.PatientContext {
	now := r.now()
	unknown := triage.PatientContext{
		BusinessHoursNow: r.hours.Open(now),
		StaffAvailable:   true,
	}

	phone := messaging.NormalizeE164(from)
	if phone == "" {
		return unknown
	}

	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	patientID, err := r.dir.FindPatientIDByPhone(ctx, phone)
	if err != nil {
		if !errors.Is(err, ErrNotFound) {
			r.logger.Error("patient lookup failed", "error", err)
		}
		return unknown
	}
	if strings.TrimSpace(patientID) == "" {
		return unknown
	}

	pctx := unknown
	pctx.PatientID = patientID

	profile, err := r.dir.GetProfile(ctx, patientID)
	if err != nil {
		r.logger.Warn("patient profile lookup failed", "error", err, "patient_id", patientID)
	} else {
		pctx.PatientName = profile.Name
	}

	appts, err := r.dir.UpcomingAppointments(ctx, patientID, now)
	if err != nil {
		r.logger.Warn("upcoming appointments lookup failed", "error", err, "patient_id", patientID)
	} else {
		pctx.UpcomingAppointments = appts
	}

	treatments, err := r.dir.RecentTreatments(ctx, patientID, now.Add(-TreatmentLookback))
	if err != nil {
		r.logger.Warn("recent treatments lookup failed", "error", err, "patient_id", patientID)
	} else {
		pctx.RecentTreatments = treatments
	}
	return pctx
}

// FindRecentTreatment returns the most recent treatment inside the lookback window, or nil.
func (r *Resolver) FindRecentTreatment(ctx context.Context, patientID string) (*triage.Treatment, error) {
	if strings.TrimSpace(patientID) == "" {
		return nil, nil
	}
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()
	treatments, err := r.dir.RecentTreatments(ctx, patientID, r.now().Add(-TreatmentLookback))
	if err != nil {
		return nil, err
	}
	if len(treatments) == 0 {
		return nil, nil
	}
	t := treatments[0]
	return &t, nil
}
