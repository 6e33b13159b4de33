// Package escalation executes the side effects of escalated triage paths.
package escalation

import (
	"context"
	"errors"

	"github.com/wolfman30/medspa-sms-triage/internal/notify"
	"github.com/wolfman30/medspa-sms-triage/internal/triage"
)

// Alerter is the external alerting collaborator. It is responsible for reaching clinical staff
// and for writing complications to the medical record.
type Alerter interface {
	ComplicationAlert(ctx context.Context, alert triage.ComplicationAlert) error
	EmergencyAlert(ctx context.Context, alert triage.EmergencyAlert) error
	StaffAlert(ctx context.Context, alert triage.StaffAlert) error
	DeliveryFailureAlert(ctx context.Context, alert triage.DeliveryFailureAlert) error
}

// OperatorChannel reaches whoever runs the service when an alert could not be delivered.
type OperatorChannel interface {
	NotifyOperator(ctx context.Context, subject, body string) error
}

// VoiceCaller places an outbound phone call.
type VoiceCaller interface {
	Call(ctx context.Context, to string) (string, error)
}

// TreatmentFinder returns a patient's most recent treatment, or nil.
type TreatmentFinder interface {
	FindRecentTreatment(ctx context.Context, patientID string) (*triage.Treatment, error)
}

// NotifyAlerter delivers alerts through notify.Service email and SMS.
type NotifyAlerter struct {
	svc *notify.Service
}

func NewNotifyAlerter(svc *notify.Service) *NotifyAlerter {
	return &NotifyAlerter{svc: svc}
}

func (a *NotifyAlerter) ComplicationAlert(ctx context.Context, alert triage.ComplicationAlert) error {
	return a.svc.NotifyComplication(ctx, alert)
}

func (a *NotifyAlerter) EmergencyAlert(ctx context.Context, alert triage.EmergencyAlert) error {
	return a.svc.NotifyEmergency(ctx, alert)
}

func (a *NotifyAlerter) StaffAlert(ctx context.Context, alert triage.StaffAlert) error {
	return a.svc.NotifyStaff(ctx, alert)
}

func (a *NotifyAlerter) DeliveryFailureAlert(ctx context.Context, alert triage.DeliveryFailureAlert) error {
	return a.svc.NotifyDeliveryFailure(ctx, alert)
}

// MultiAlerter fans every alert out to all alerters and joins their errors.
type MultiAlerter []Alerter

func (m MultiAlerter) ComplicationAlert(ctx context.Context, alert triage.ComplicationAlert) error {
	return m.each(func(a Alerter) error { return a.ComplicationAlert(ctx, alert) })
}

func (m MultiAlerter) EmergencyAlert(ctx context.Context, alert triage.EmergencyAlert) error {
	return m.each(func(a Alerter) error { return a.EmergencyAlert(ctx, alert) })
}

func (m MultiAlerter) StaffAlert(ctx context.Context, alert triage.StaffAlert) error {
	return m.each(func(a Alerter) error { return a.StaffAlert(ctx, alert) })
}

func (m MultiAlerter) DeliveryFailureAlert(ctx context.Context, alert triage.DeliveryFailureAlert) error {
	return m.each(func(a Alerter) error { return a.DeliveryFailureAlert(ctx, alert) })
}

func (m MultiAlerter) each(fn func(Alerter) error) error {
	var errs []error
	for _, a := range m {
		if a == nil {
			continue
		}
		if err := fn(a); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
