package notify

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/wolfman30/medspa-sms-triage/internal/messaging"
	"github.com/wolfman30/medspa-sms-triage/internal/triage"
	"github.com/wolfman30/medspa-sms-triage/pkg/logging"
)

// Recipients lists where staff notifications go.
type Recipients struct {
	Email     []string
	SMS       []string
	Operators []string
}

// Service sends staff and operator notifications over email and SMS.
type Service struct {
	email      EmailSender
	sms        messaging.Sender
	recipients Recipients
	logger     *logging.Logger
	now        func() time.Time
}

// NewService creates a notification service. Either channel may be nil.
func NewService(email EmailSender, sms messaging.Sender, recipients Recipients, logger *logging.Logger) *Service {
	if logger == nil {
		logger = logging.Default()
	}
	return &Service{
		email:      email,
		sms:        sms,
		recipients: recipients,
		logger:     logger.WithComponent("notify"),
		now:        time.Now,
	}
}

// NotifyComplication fans a complication alert out to every notice BuildComplicationNotices produces.
func (s *Service) NotifyComplication(ctx context.Context, alert triage.ComplicationAlert) error {
	notices := BuildComplicationNotices(alert, s.now())
	var errs []error
	for _, n := range notices {
		subject := fmt.Sprintf("[%s] %s", strings.ToUpper(string(n.Priority)), n.Title)
		body := fmt.Sprintf("%s\n\nRecipient: %s", n.Body, n.RecipientType)
		if err := s.broadcast(ctx, subject, body, smsLine(n.Title, alert.PatientPhone)); err != nil {
			s.logger.Error("complication notice failed",
				"error", err,
				"alert_id", alert.ID,
				"patient_id", alert.PatientID,
				"recipient_type", string(n.RecipientType),
				"priority", string(n.Priority),
			)
			errs = append(errs, err)
			continue
		}
		s.logger.Info("complication notice sent",
			"alert_id", alert.ID,
			"patient_id", alert.PatientID,
			"recipient_type", string(n.RecipientType),
			"priority", string(n.Priority),
			"emergency", n.Emergency,
			"critical_period", n.CriticalPeriod,
		)
	}
	return errors.Join(errs...)
}

// NotifyEmergency raises the degraded alert for a critical message from an unknown sender.
func (s *Service) NotifyEmergency(ctx context.Context, alert triage.EmergencyAlert) error {
	subject := fmt.Sprintf("[URGENT] EMERGENCY: Unknown sender %s", alert.PatientPhone)
	body := fmt.Sprintf("A critical message arrived from a number that is not on file.\n\nPhone: %s\nMessage: %q\nIntent: %s\nKeywords: %s\n\nCall the sender immediately.",
		alert.PatientPhone, alert.Message, alert.Classification.Intent, strings.Join(alert.Classification.Keywords, ", "))
	return s.broadcast(ctx, subject, body, smsLine("EMERGENCY from unknown sender", alert.PatientPhone))
}

// NotifyStaff raises a staff alert for a message that needs a human.
func (s *Service) NotifyStaff(ctx context.Context, alert triage.StaffAlert) error {
	who := alert.PatientPhone
	if alert.PatientID != "" {
		who = fmt.Sprintf("patient %s (%s)", alert.PatientID, alert.PatientPhone)
	}
	subject := fmt.Sprintf("[%s] Staff attention needed: %s", strings.ToUpper(string(alert.Urgency)), who)
	body := fmt.Sprintf("Conversation: %s\nPhone: %s\nUrgency: %s\nIntent: %s (confidence %.2f)\nRequires human: %t\n\nMessage: %q",
		alert.ConversationID, alert.PatientPhone, alert.Urgency, alert.Classification.Intent,
		alert.Classification.Confidence, alert.Classification.RequiresHuman, alert.Message)
	return s.broadcast(ctx, subject, body, smsLine("Staff attention needed", alert.PatientPhone))
}

// NotifyDeliveryFailure asks staff to follow up on an undeliverable message.
func (s *Service) NotifyDeliveryFailure(ctx context.Context, alert triage.DeliveryFailureAlert) error {
	subject := fmt.Sprintf("SMS delivery %s to %s", alert.Status, alert.To)
	body := fmt.Sprintf("Message %s to %s was not delivered.\n\nStatus: %s\nError code: %s\nError type: %s\nDetails: %s\n\nPlease follow up with the patient by phone.",
		alert.ProviderMessageID, alert.To, alert.Status, alert.ErrorCode, alert.ErrorType, alert.ErrorMessage)
	return s.broadcast(ctx, subject, body, smsLine(fmt.Sprintf("SMS to %s %s", alert.To, alert.Status), alert.To))
}

// NotifyOperator emails the on-call operators. It backs the operator channel for alert failures.
func (s *Service) NotifyOperator(ctx context.Context, subject, body string) error {
	return s.sendEmails(ctx, s.recipients.Operators, "[OPERATOR] "+subject, body)
}

// ErrNoChannel is returned when a staff alert has nowhere to go.
var ErrNoChannel = errors.New("notify: no alert channel configured")

func (s *Service) broadcast(ctx context.Context, subject, body, sms string) error {
	emailReady := s.email != nil && len(s.recipients.Email) > 0
	smsReady := s.sms != nil && len(s.recipients.SMS) > 0
	if !emailReady && !smsReady {
		return ErrNoChannel
	}
	var errs []error
	if err := s.sendEmails(ctx, s.recipients.Email, subject, body); err != nil {
		errs = append(errs, err)
	}
	if err := s.sendSMS(ctx, sms); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

func (s *Service) sendEmails(ctx context.Context, recipients []string, subject, body string) error {
	if s.email == nil || len(recipients) == 0 {
		return nil
	}
	var errs []error
	for _, to := range recipients {
		if err := s.email.Send(ctx, EmailMessage{To: to, Subject: subject, Body: body}); err != nil {
			s.logger.Error("notify: failed to send email", "error", err, "to", to)
			errs = append(errs, err)
		}
	}
	if len(errs) > 0 {
		return fmt.Errorf("notify: %d email(s) failed: %w", len(errs), errors.Join(errs...))
	}
	return nil
}

func (s *Service) sendSMS(ctx context.Context, body string) error {
	if s.sms == nil || len(s.recipients.SMS) == 0 {
		return nil
	}
	var errs []error
	for _, to := range s.recipients.SMS {
		if _, err := s.sms.SendSMS(ctx, messaging.OutboundSMS{To: to, Body: body, Priority: messaging.PriorityUrgent}); err != nil {
			s.logger.Error("notify: failed to send operator SMS", "error", err, "to", to)
			errs = append(errs, err)
		}
	}
	if len(errs) > 0 {
		return fmt.Errorf("notify: %d sms failed: %w", len(errs), errors.Join(errs...))
	}
	return nil
}

func smsLine(title, phone string) string {
	return fmt.Sprintf("%s. Patient phone: %s. Check email for details.", title, phone)
}
