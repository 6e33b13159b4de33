package messaging

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/wolfman30/medspa-sms-triage/internal/observability/metrics"
	"github.com/wolfman30/medspa-sms-triage/internal/triage"
	"github.com/wolfman30/medspa-sms-triage/pkg/logging"
)

var twilioTracer = otel.Tracer("medspa.internal.messaging.twilio")

const defaultProcessTimeout = 20 * time.Second

// CallbackProcessor runs normalized callbacks through the triage pipeline.
type CallbackProcessor interface {
	HandleMessage(ctx context.Context, msg triage.InboundMessage) triage.Outcome
	HandleStatus(ctx context.Context, evt triage.DeliveryStatusEvent) error
}

// HandlerConfig wires a Handler.
type HandlerConfig struct {
	Verifier       Verifier
	PublicBaseURL  string
	Processor      CallbackProcessor
	Metrics        *metrics.TriageMetrics
	Logger         *logging.Logger
	ProcessTimeout time.Duration
}

// Handler handles Twilio webhook requests.
type Handler struct {
	verifier       Verifier
	publicBaseURL  string
	processor      CallbackProcessor
	metrics        *metrics.TriageMetrics
	logger         *logging.Logger
	processTimeout time.Duration
	now            func() time.Time
}

// NewHandler creates a new messaging handler.
func NewHandler(cfg HandlerConfig) *Handler {
	if cfg.Processor == nil {
		panic("messaging: processor cannot be nil")
	}
	logger := cfg.Logger
	if logger == nil {
		logger = logging.Default()
	}
	timeout := cfg.ProcessTimeout
	if timeout <= 0 {
		timeout = defaultProcessTimeout
	}
	return &Handler{
		verifier:       cfg.Verifier,
		publicBaseURL:  cfg.PublicBaseURL,
		processor:      cfg.Processor,
		metrics:        cfg.Metrics,
		logger:         logger.WithComponent("webhook"),
		processTimeout: timeout,
		now:            time.Now,
	}
}

// TwilioWebhook handles POST /webhooks/twilio/sms. Once the signature checks out the provider
// always gets an empty 200 so it never retries because of an internal failure.
func (h *Handler) TwilioWebhook(w http.ResponseWriter, r *http.Request) {
	ctx, span := twilioTracer.Start(r.Context(), "messaging.twilio.webhook", trace.WithSpanKind(trace.SpanKindServer))
	defer span.End()
	start := h.now()

	if err := r.ParseForm(); err != nil {
		h.logger.Warn("failed to parse twilio form", "error", err)
	}
	if !h.verifier.Verify(r, r.PostForm, WebhookURL(r, h.publicBaseURL)) {
		span.RecordError(errors.New("invalid twilio signature"))
		h.metrics.ObserveCallback("unknown", "rejected")
		w.WriteHeader(http.StatusForbidden)
		return
	}

	cb := Normalize(r.PostForm, h.now().UTC())
	kind := string(cb.Kind())
	span.SetAttributes(attribute.String("medspa.twilio.callback_kind", kind))

	processCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), h.processTimeout)
	defer cancel()
	h.process(processCtx, cb)

	h.metrics.ObserveWebhookLatency(kind, h.now().Sub(start).Seconds())
	w.WriteHeader(http.StatusOK)
}

func (h *Handler) process(ctx context.Context, cb Callback) {
	defer func() {
		if rec := recover(); rec != nil {
			h.metrics.ObserveCallback(string(cb.Kind()), "panic")
			h.logger.Operator("panic while processing twilio callback", "panic", fmt.Sprint(rec))
		}
	}()

	switch cb.Kind() {
	case CallbackStatus:
		evt := *cb.Status
		if err := h.processor.HandleStatus(ctx, evt); err != nil {
			h.logger.Error("failed to reconcile delivery status", "error", err, "message_sid", evt.ProviderMessageID, "status", evt.Status)
		}
	default:
		msg := *cb.Message
		out := h.processor.HandleMessage(ctx, msg)
		h.logger.Info("twilio message handled",
			"message_sid", msg.ProviderMessageID,
			"conversation_id", out.ConversationID,
			"path", out.Path.String(),
			"duplicate", out.Duplicate,
		)
	}
}

// HealthCheck returns a simple health check response.
func (h *Handler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_ = json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
}
