// Package responder generates and sends the patient-facing reply for a triaged message.
package responder

import (
	"context"
	"errors"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/wolfman30/medspa-sms-triage/internal/messaging"
	"github.com/wolfman30/medspa-sms-triage/internal/messaging/compliance"
	"github.com/wolfman30/medspa-sms-triage/internal/messaging/templates"
	"github.com/wolfman30/medspa-sms-triage/internal/observability/metrics"
	"github.com/wolfman30/medspa-sms-triage/internal/scheduling"
	"github.com/wolfman30/medspa-sms-triage/internal/triage"
	"github.com/wolfman30/medspa-sms-triage/pkg/logging"
)

var tracer = otel.Tracer("medspa.internal.responder")

// LateCancellationWindow is how close to the start a cancellation must go through the front desk.
const LateCancellationWindow = 24 * time.Hour

const defaultSendTimeout = 5 * time.Second

// UnsubscribeStore tracks SMS opt-outs.
type UnsubscribeStore interface {
	Unsubscribe(ctx context.Context, recipient, source string) error
	Resubscribe(ctx context.Context, recipient string) error
	IsUnsubscribed(ctx context.Context, recipient string) (bool, error)
}

// Config wires a Responder. Templates and Sender are required.
type Config struct {
	Templates    *templates.Catalog
	Sender       messaging.Sender
	Appointments scheduling.Store
	Availability scheduling.Availability
	Unsubscribes UnsubscribeStore
	Prices       PriceTable
	Location     *time.Location
	SendTimeout  time.Duration
	Metrics      *metrics.TriageMetrics
	Logger       *logging.Logger
}

// Responder implements triage.Responder.
type Responder struct {
	templates    *templates.Catalog
	sender       messaging.Sender
	appointments scheduling.Store
	availability scheduling.Availability
	unsubscribes UnsubscribeStore
	prices       PriceTable
	detector     *compliance.Detector
	location     *time.Location
	sendTimeout  time.Duration
	metrics      *metrics.TriageMetrics
	logger       *logging.Logger
	now          func() time.Time
}

func New(cfg Config) *Responder {
	if cfg.Templates == nil || cfg.Sender == nil {
		panic("responder: templates and sender are required")
	}
	if cfg.Prices == nil {
		cfg.Prices = DefaultPrices()
	}
	if cfg.Location == nil {
		cfg.Location = time.UTC
	}
	if cfg.SendTimeout <= 0 {
		cfg.SendTimeout = defaultSendTimeout
	}
	logger := cfg.Logger
	if logger == nil {
		logger = logging.Default()
	}
	return &Responder{
		templates:    cfg.Templates,
		sender:       cfg.Sender,
		appointments: cfg.Appointments,
		availability: cfg.Availability,
		unsubscribes: cfg.Unsubscribes,
		prices:       cfg.Prices,
		detector:     compliance.NewDetector(),
		location:     cfg.Location,
		sendTimeout:  cfg.SendTimeout,
		metrics:      cfg.Metrics,
		logger:       logger.WithComponent("responder"),
		now:          time.Now,
	}
}

// reply is a generated message plus how urgently it should go out.
type reply struct {
	body     string
	priority messaging.Priority
}

// Respond returns the generated body even when sending failed. sent reports delivery to the provider.
func (r *Responder) Respond(ctx context.Context, path triage.HandlingPath, msg triage.InboundMessage, c triage.Classification, pctx triage.PatientContext, conversationID string) (string, bool) {
	ctx, span := tracer.Start(ctx, "responder.respond")
	defer span.End()
	span.SetAttributes(attribute.String("path", path.String()))

	log := r.logger.With("message_sid", msg.ProviderMessageID, "path", path.String())

	var (
		out reply
		err error
	)
	switch path.Kind {
	case triage.PathEmergency:
		if pctx.Known() {
			out, err = r.complication(pctx, c, messaging.PriorityUrgent)
		} else {
			out = reply{body: templates.UnknownEmergency, priority: messaging.PriorityUrgent}
		}
	case triage.PathComplication:
		out, err = r.complication(pctx, c, messaging.PriorityHigh)
	case triage.PathStaffAlert:
		out.body, err = r.templates.UrgentAcknowledgment()
		out.priority = messaging.PriorityHigh
	case triage.PathAutoIntent, triage.PathSilent:
		out, err = r.automatic(ctx, path, msg, c, pctx)
	}
	if err != nil {
		log.Error("failed to render reply", "error", err)
		return "", false
	}
	if out.body == "" {
		return "", false
	}

	sent := r.send(ctx, msg, conversationID, out, path)
	span.SetAttributes(attribute.Bool("sent", sent))
	return out.body, sent
}

func (r *Responder) complication(pctx triage.PatientContext, c triage.Classification, priority messaging.Priority) (reply, error) {
	var treatment *triage.Treatment
	if len(pctx.RecentTreatments) > 0 {
		t := pctx.RecentTreatments[0]
		treatment = &t
	}
	body, err := r.templates.ComplicationResponse(pctx.PatientName, treatment, triage.SymptomKeywords(c.Keywords))
	return reply{body: body, priority: priority}, err
}

// automatic covers AutoIntent. Silent never replies.
func (r *Responder) automatic(ctx context.Context, path triage.HandlingPath, msg triage.InboundMessage, c triage.Classification, pctx triage.PatientContext) (reply, error) {
	if path.Kind != triage.PathAutoIntent {
		return reply{}, nil
	}
	if path.Intent == triage.IntentOptInRequest || r.detector.IsStart(msg.Body) {
		return r.resubscribe(ctx, msg)
	}
	if path.Intent == triage.IntentOptOutRequest {
		return r.optOut(ctx, msg)
	}
	if r.isUnsubscribed(ctx, msg.From) {
		r.logger.Info("auto response suppressed for unsubscribed number", "message_sid", msg.ProviderMessageID, "intent", string(path.Intent))
		return reply{}, nil
	}

	var (
		body string
		err  error
	)
	switch path.Intent {
	case triage.IntentAppointmentConfirmation:
		body, err = r.confirm(ctx, pctx)
	case triage.IntentAppointmentCancellation:
		body, err = r.cancel(ctx, pctx)
	case triage.IntentAppointmentRescheduling:
		body, err = r.reschedule(ctx, c, pctx)
	case triage.IntentAppointmentBooking:
		body, err = r.book(ctx, c)
	case triage.IntentPricingInquiry:
		body, err = r.price(c)
	default:
		body = c.TopSuggestion()
		if body == "" {
			body = templates.BusinessHoursReply
		}
	}
	return reply{body: body, priority: messaging.PriorityNormal}, err
}

func (r *Responder) confirm(ctx context.Context, pctx triage.PatientContext) (string, error) {
	appt, ok := pctx.NextAppointment()
	if !ok {
		return templates.ConfirmationThanks, nil
	}
	now := r.now()
	if r.appointments != nil {
		if err := r.appointments.Confirm(ctx, appt.ID, now); err != nil {
			r.logger.Error("failed to confirm appointment", "error", err, "appointment_id", appt.ID, "patient_id", pctx.PatientID)
			return templates.ConfirmationThanks, nil
		}
	}
	return r.templates.Confirmed(appt)
}

func (r *Responder) cancel(ctx context.Context, pctx triage.PatientContext) (string, error) {
	appt, ok := pctx.NextAppointment()
	if !ok {
		return r.templates.CancelWithoutAppointment()
	}
	now := r.now()
	if appt.StartsAt.Sub(now) < LateCancellationWindow {
		return r.templates.LateCancellation()
	}
	if r.appointments == nil {
		return r.templates.CancelWithoutAppointment()
	}
	if err := r.appointments.Cancel(ctx, appt.ID, now); err != nil {
		r.logger.Error("failed to cancel appointment", "error", err, "appointment_id", appt.ID, "patient_id", pctx.PatientID)
		return r.templates.CancelWithoutAppointment()
	}
	return r.templates.Cancelled(appt)
}

func (r *Responder) reschedule(ctx context.Context, c triage.Classification, pctx triage.PatientContext) (string, error) {
	info := c.ExtractedInfo
	if !pctx.Known() || r.appointments == nil || (info.AppointmentDate == "" && len(info.PreferredTimes) == 0) {
		return r.templates.RescheduleAsk()
	}
	req := scheduling.RescheduleRequest{
		PatientID:      pctx.PatientID,
		RequestedDate:  info.AppointmentDate,
		PreferredTimes: info.PreferredTimes,
		Reason:         "patient_sms",
		CreatedAt:      r.now().UTC(),
	}
	if appt, ok := pctx.NextAppointment(); ok {
		req.AppointmentID = appt.ID
	}
	if _, err := r.appointments.CreateRescheduleRequest(ctx, req); err != nil {
		r.logger.Error("failed to create reschedule request", "error", err, "patient_id", pctx.PatientID)
		return r.templates.RescheduleAsk()
	}
	return r.templates.RescheduleNoted()
}

func (r *Responder) book(ctx context.Context, c triage.Classification) (string, error) {
	service := c.ExtractedInfo.ServiceName
	if service == "" {
		return r.templates.BookingAsk()
	}
	if r.availability != nil {
		slots, err := r.availability.Slots(ctx, service, r.now())
		if err != nil {
			r.logger.Warn("availability lookup failed", "error", err, "service", service)
		}
		if len(slots) > scheduling.MaxOfferedSlots {
			slots = slots[:scheduling.MaxOfferedSlots]
		}
		if len(slots) > 0 {
			return r.templates.BookingSlots(service, scheduling.FormatSlots(slots, r.location))
		}
	}
	return r.templates.BookingCheck(service)
}

func (r *Responder) price(c triage.Classification) (string, error) {
	service := c.ExtractedInfo.ServiceName
	if price, ok := r.prices.Lookup(service); ok && service != "" {
		return r.templates.Price(service, price)
	}
	return r.templates.PriceGeneric()
}

func (r *Responder) optOut(ctx context.Context, msg triage.InboundMessage) (reply, error) {
	if r.unsubscribes != nil {
		if err := r.unsubscribes.Unsubscribe(ctx, msg.From, "sms_stop"); err != nil {
			r.logger.Error("failed to record opt-out", "error", err, "message_sid", msg.ProviderMessageID)
		}
	}
	return reply{body: templates.OptOutConfirmation, priority: messaging.PriorityNormal}, nil
}

func (r *Responder) resubscribe(ctx context.Context, msg triage.InboundMessage) (reply, error) {
	if r.unsubscribes != nil {
		if err := r.unsubscribes.Resubscribe(ctx, msg.From); err != nil {
			r.logger.Error("failed to record resubscribe", "error", err, "message_sid", msg.ProviderMessageID)
		}
	}
	return reply{body: templates.Resubscribed, priority: messaging.PriorityNormal}, nil
}

func (r *Responder) isUnsubscribed(ctx context.Context, phone string) bool {
	if r.unsubscribes == nil {
		return false
	}
	unsubscribed, err := r.unsubscribes.IsUnsubscribed(ctx, phone)
	if err != nil {
		r.logger.Warn("opt-out lookup failed", "error", err)
		return false
	}
	return unsubscribed
}

func (r *Responder) send(ctx context.Context, msg triage.InboundMessage, conversationID string, out reply, path triage.HandlingPath) bool {
	label := string(path.Kind)
	if path.Intent != "" {
		label = string(path.Intent)
	}
	if msg.From == "" {
		r.metrics.ObserveAutoResponse(label, false)
		return false
	}

	sendCtx, cancel := context.WithTimeout(ctx, r.sendTimeout)
	defer cancel()
	res, err := r.sender.SendSMS(sendCtx, messaging.OutboundSMS{
		To:             msg.From,
		From:           msg.To,
		Body:           out.body,
		ConversationID: conversationID,
		Priority:       out.priority,
		Metadata: map[string]string{
			"in_reply_to": msg.ProviderMessageID,
			"path":        path.String(),
		},
	})
	if err != nil {
		r.metrics.ObserveAutoResponse(label, false)
		r.logger.Error("failed to send reply", "error", err,
			"message_sid", msg.ProviderMessageID,
			"path", path.String(),
			"timeout", errors.Is(err, context.DeadlineExceeded),
		)
		return false
	}
	r.metrics.ObserveAutoResponse(label, true)
	r.logger.Info("reply sent", "message_sid", msg.ProviderMessageID, "reply_sid", res.ProviderMessageID, "path", path.String())
	return true
}
