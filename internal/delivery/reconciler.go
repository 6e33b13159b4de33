package delivery

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/wolfman30/medspa-sms-triage/internal/observability/metrics"
	"github.com/wolfman30/medspa-sms-triage/internal/triage"
	"github.com/wolfman30/medspa-sms-triage/pkg/logging"
)

// ClaimEventType namespaces terminal status claims in the processed store.
const ClaimEventType = "twilio_status"

// ClaimStore dedupes delivery-failure alerts.
type ClaimStore interface {
	Claim(ctx context.Context, eventType, eventID string) (bool, error)
}

// FailureAlerter raises delivery-failure alerts. escalation.Dispatcher implements it.
type FailureAlerter interface {
	DeliveryFailure(ctx context.Context, alert triage.DeliveryFailureAlert) error
}

var ErrInvalidEvent = errors.New("delivery: event requires message sid and status")

// Reconciler implements triage.StatusReconciler.
type Reconciler struct {
	store   StatusStore
	claims  ClaimStore
	alerter FailureAlerter
	metrics *metrics.TriageMetrics
	logger  *logging.Logger
	now     func() time.Time
}

func NewReconciler(store StatusStore, claims ClaimStore, alerter FailureAlerter, m *metrics.TriageMetrics, logger *logging.Logger) *Reconciler {
	if store == nil {
		panic("delivery: status store required")
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &Reconciler{
		store:   store,
		claims:  claims,
		alerter: alerter,
		metrics: m,
		logger:  logger.WithComponent("delivery"),
		now:     time.Now,
	}
}

// Reconcile stores the status and raises at most one alert per (message, terminal status).
func (r *Reconciler) Reconcile(ctx context.Context, evt triage.DeliveryStatusEvent) error {
	evt.ProviderMessageID = strings.TrimSpace(evt.ProviderMessageID)
	evt.Status = strings.ToLower(strings.TrimSpace(evt.Status))
	if evt.ProviderMessageID == "" || evt.Status == "" {
		return ErrInvalidEvent
	}
	if evt.ObservedAt.IsZero() {
		evt.ObservedAt = r.now()
	}

	applied, err := r.store.ApplyStatus(ctx, evt)
	if err != nil {
		storeErr := fmt.Errorf("delivery: reconcile %s: %w", evt.ProviderMessageID, err)
		if !evt.Terminal() {
			return storeErr
		}
		r.logger.Error("delivery status not stored, alerting anyway", "error", err, "message_sid", evt.ProviderMessageID, "status", evt.Status)
		return errors.Join(storeErr, r.alertFailure(ctx, evt))
	}
	if !applied {
		r.logger.Info("stale delivery status ignored", "message_sid", evt.ProviderMessageID, "status", evt.Status)
		return nil
	}
	r.logger.Info("delivery status applied", "message_sid", evt.ProviderMessageID, "status", evt.Status)
	if !evt.Terminal() {
		return nil
	}
	return r.alertFailure(ctx, evt)
}

// alertFailure claims the terminal status and raises the alert once.
func (r *Reconciler) alertFailure(ctx context.Context, evt triage.DeliveryStatusEvent) error {
	if r.claims != nil {
		claimed, err := r.claims.Claim(ctx, ClaimEventType, evt.ProviderMessageID+":"+evt.Status)
		switch {
		case err != nil:
			// Claim errors fail open.
			r.logger.Warn("failure claim unavailable, alerting anyway", "error", err, "message_sid", evt.ProviderMessageID)
		case !claimed:
			r.logger.Info("delivery failure already alerted", "message_sid", evt.ProviderMessageID, "status", evt.Status)
			return nil
		}
	}

	errorType, readable := ClassifyError(evt.ErrorCode)
	r.metrics.ObserveDeliveryFailure(errorType)
	errorMessage := evt.ErrorMessage
	if errorMessage == "" {
		errorMessage = readable
	}
	r.logger.Warn("message delivery failed",
		"message_sid", evt.ProviderMessageID,
		"status", evt.Status,
		"error_code", evt.ErrorCode,
		"error_type", errorType,
	)
	if r.alerter == nil {
		return nil
	}
	alert := triage.DeliveryFailureAlert{
		ProviderMessageID: evt.ProviderMessageID,
		To:                evt.To,
		Status:            evt.Status,
		ErrorCode:         evt.ErrorCode,
		ErrorMessage:      errorMessage,
		ErrorType:         errorType,
		RaisedAt:          r.now().UTC(),
	}
	if err := r.alerter.DeliveryFailure(ctx, alert); err != nil {
		return fmt.Errorf("delivery: alert %s: %w", evt.ProviderMessageID, err)
	}
	return nil
}
