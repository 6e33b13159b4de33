package escalation

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/wolfman30/medspa-sms-triage/internal/observability/metrics"
	"github.com/wolfman30/medspa-sms-triage/internal/triage"
	"github.com/wolfman30/medspa-sms-triage/pkg/logging"
)

var tracer = otel.Tracer("medspa.internal.escalation")

const defaultAlertTimeout = 5 * time.Second

// Config wires a Dispatcher. Alerter is required.
type Config struct {
	Alerter    Alerter
	Operator   OperatorChannel
	Voice      VoiceCaller
	Treatments TreatmentFinder
	// EnableCalls places a voice call to the sender on every Emergency path.
	EnableCalls bool
	Timeout     time.Duration
	Metrics     *metrics.TriageMetrics
	Logger      *logging.Logger
}

// Dispatcher raises alerts for Emergency, Complication and StaffAlert paths. It never retries;
// a failed alert is an operator condition.
type Dispatcher struct {
	alerter     Alerter
	operator    OperatorChannel
	voice       VoiceCaller
	treatments  TreatmentFinder
	enableCalls bool
	timeout     time.Duration
	metrics     *metrics.TriageMetrics
	logger      *logging.Logger
	now         func() time.Time
	newID       func() string
}

func NewDispatcher(cfg Config) *Dispatcher {
	if cfg.Alerter == nil {
		panic("escalation: alerter required")
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultAlertTimeout
	}
	logger := cfg.Logger
	if logger == nil {
		logger = logging.Default()
	}
	return &Dispatcher{
		alerter:     cfg.Alerter,
		operator:    cfg.Operator,
		voice:       cfg.Voice,
		treatments:  cfg.Treatments,
		enableCalls: cfg.EnableCalls,
		timeout:     cfg.Timeout,
		metrics:     cfg.Metrics,
		logger:      logger.WithComponent("escalation"),
		now:         time.Now,
		newID:       uuid.NewString,
	}
}

func (d *Dispatcher) Dispatch(ctx context.Context, path triage.HandlingPath, msg triage.InboundMessage, c triage.Classification, pctx triage.PatientContext, conversationID string) triage.DispatchResult {
	ctx, span := tracer.Start(ctx, "escalation.dispatch")
	defer span.End()
	span.SetAttributes(attribute.String("path", path.String()))

	var res triage.DispatchResult
	switch path.Kind {
	case triage.PathEmergency:
		if pctx.Known() {
			res = d.complication(ctx, triage.AlertCritical, msg, c, pctx)
		} else {
			res = d.emergency(ctx, msg, c)
		}
		res.Called = d.call(ctx, msg)
	case triage.PathComplication:
		res = d.complication(ctx, triage.AlertHigh, msg, c, pctx)
	case triage.PathStaffAlert:
		res = d.staff(ctx, msg, c, pctx, conversationID)
	default:
		return res
	}
	span.SetAttributes(attribute.Bool("alerted", res.Alerted), attribute.Bool("called", res.Called))
	if res.Err != nil {
		span.RecordError(res.Err)
	}
	return res
}

func (d *Dispatcher) complication(ctx context.Context, urgency triage.AlertUrgency, msg triage.InboundMessage, c triage.Classification, pctx triage.PatientContext) triage.DispatchResult {
	alert := triage.ComplicationAlert{
		ID:           d.newID(),
		PatientID:    pctx.PatientID,
		PatientName:  pctx.PatientName,
		PatientPhone: msg.From,
		Message:      msg.Body,
		Keywords:     c.Keywords,
		Urgency:      urgency,
		Treatment:    d.recentTreatment(ctx, pctx),
		RaisedAt:     d.now().UTC(),
	}
	err := d.withTimeout(ctx, func(ctx context.Context) error {
		return d.alerter.ComplicationAlert(ctx, alert)
	})
	return d.result(ctx, "complication", alert.ID, err,
		"patient_id", alert.PatientID,
		"urgency", string(urgency),
		"message_sid", msg.ProviderMessageID,
	)
}

func (d *Dispatcher) emergency(ctx context.Context, msg triage.InboundMessage, c triage.Classification) triage.DispatchResult {
	alert := triage.EmergencyAlert{
		ID:             d.newID(),
		PatientPhone:   msg.From,
		Message:        msg.Body,
		Classification: c,
		RaisedAt:       d.now().UTC(),
	}
	err := d.withTimeout(ctx, func(ctx context.Context) error {
		return d.alerter.EmergencyAlert(ctx, alert)
	})
	return d.result(ctx, "emergency", alert.ID, err, "message_sid", msg.ProviderMessageID)
}

func (d *Dispatcher) staff(ctx context.Context, msg triage.InboundMessage, c triage.Classification, pctx triage.PatientContext, conversationID string) triage.DispatchResult {
	alert := triage.StaffAlert{
		ID:             d.newID(),
		ConversationID: conversationID,
		PatientID:      pctx.PatientID,
		PatientPhone:   msg.From,
		Urgency:        c.Urgency,
		Message:        msg.Body,
		Classification: c,
		RaisedAt:       d.now().UTC(),
	}
	err := d.withTimeout(ctx, func(ctx context.Context) error {
		return d.alerter.StaffAlert(ctx, alert)
	})
	return d.result(ctx, "staff", alert.ID, err,
		"conversation_id", conversationID,
		"message_sid", msg.ProviderMessageID,
	)
}

// DeliveryFailure raises a delivery-failure alert with the same failure handling as escalations.
func (d *Dispatcher) DeliveryFailure(ctx context.Context, alert triage.DeliveryFailureAlert) error {
	if alert.ID == "" {
		alert.ID = d.newID()
	}
	if alert.RaisedAt.IsZero() {
		alert.RaisedAt = d.now().UTC()
	}
	err := d.withTimeout(ctx, func(ctx context.Context) error {
		return d.alerter.DeliveryFailureAlert(ctx, alert)
	})
	return d.result(ctx, "delivery_failure", alert.ID, err, "message_sid", alert.ProviderMessageID).Err
}

func (d *Dispatcher) result(ctx context.Context, kind, alertID string, err error, attrs ...any) triage.DispatchResult {
	if err == nil {
		d.logger.Info("alert raised", append([]any{"alert", kind, "alert_id", alertID}, attrs...)...)
		return triage.DispatchResult{AlertID: alertID, Alerted: true}
	}
	d.metrics.ObserveAlertFailure(kind)
	d.logger.Operator("alert dispatch failed", append([]any{"alert", kind, "alert_id", alertID, "error", err}, attrs...)...)
	if d.operator != nil {
		subject := fmt.Sprintf("%s alert %s could not be delivered", kind, alertID)
		body := fmt.Sprintf("Alert %s (%s) failed: %v\n\nCheck the triage service logs and contact the clinic directly.", alertID, kind, err)
		// The operator channel gets its own deadline; ctx may be what expired.
		opCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), d.timeout)
		defer cancel()
		if opErr := d.operator.NotifyOperator(opCtx, subject, body); opErr != nil {
			d.logger.Operator("operator notification failed", "alert_id", alertID, "error", opErr)
		}
	}
	return triage.DispatchResult{AlertID: alertID, Err: fmt.Errorf("escalation: %s alert: %w", kind, err)}
}

func (d *Dispatcher) call(ctx context.Context, msg triage.InboundMessage) bool {
	if !d.enableCalls || d.voice == nil || msg.From == "" {
		return false
	}
	var callSID string
	err := d.withTimeout(ctx, func(ctx context.Context) error {
		var err error
		callSID, err = d.voice.Call(ctx, msg.From)
		return err
	})
	if err != nil {
		d.metrics.ObserveAlertFailure("voice_call")
		d.logger.Operator("emergency call failed", "error", err, "message_sid", msg.ProviderMessageID)
		return false
	}
	d.logger.Info("emergency call placed", "call_sid", callSID, "message_sid", msg.ProviderMessageID)
	return true
}

func (d *Dispatcher) recentTreatment(ctx context.Context, pctx triage.PatientContext) *triage.Treatment {
	if d.treatments != nil {
		t, err := d.treatments.FindRecentTreatment(ctx, pctx.PatientID)
		if err == nil {
			return t
		}
		d.logger.Warn("recent treatment lookup failed, using resolved context", "error", err, "patient_id", pctx.PatientID)
	}
	if len(pctx.RecentTreatments) == 0 {
		return nil
	}
	t := pctx.RecentTreatments[0]
	return &t
}

func (d *Dispatcher) withTimeout(ctx context.Context, fn func(context.Context) error) error {
	ctx, cancel := context.WithTimeout(ctx, d.timeout)
	defer cancel()
	return fn(ctx)
}
