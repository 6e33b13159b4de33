package triage

import (
	"context"
	"time"

	"github.com/wolfman30/medspa-sms-triage/internal/observability/metrics"
	"github.com/wolfman30/medspa-sms-triage/pkg/logging"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
)

var tracer = otel.Tracer("medspa.internal.triage")

// ClaimEventType namespaces inbound message ids in the processed store.
const ClaimEventType = "twilio_sms"

// Classifier assigns intent and urgency to a message body.
type Classifier interface {
	Analyze(ctx context.Context, body string, pctx PatientContext) (Classification, error)
}

// PatientResolver maps a sender address to patient context. Unknown senders are not an error.
type PatientResolver interface {
	Resolve(ctx context.Context, from string) PatientContext
}

// ClaimStore records message ids that were already handled. Claim returns false when the id was seen before.
type ClaimStore interface {
	Claim(ctx context.Context, eventType, eventID string) (bool, error)
}

// DispatchResult describes the side effects of an escalation.
type DispatchResult struct {
	AlertID string
	Alerted bool
	Called  bool
	Err     error
}

// Dispatcher raises internal alerts for escalated paths.
type Dispatcher interface {
	Dispatch(ctx context.Context, path HandlingPath, msg InboundMessage, c Classification, pctx PatientContext, conversationID string) DispatchResult
}

// Responder generates and sends the patient-facing reply, if any.
type Responder interface {
	Respond(ctx context.Context, path HandlingPath, msg InboundMessage, c Classification, pctx PatientContext, conversationID string) (string, bool)
}

// Recorder persists the conversation and the audit entry for a handled message.
type Recorder interface {
	Record(ctx context.Context, msg InboundMessage, c Classification, path HandlingPath, pctx PatientContext, autoResponse string) (bool, error)
}

// StatusReconciler applies delivery-status callbacks.
type StatusReconciler interface {
	Reconcile(ctx context.Context, evt DeliveryStatusEvent) error
}

// Outcome summarizes what the pipeline did with an inbound message.
type Outcome struct {
	Duplicate      bool
	ConversationID string
	Path           HandlingPath
	Classification Classification
	AutoResponse   string
	ResponseSent   bool
	Dispatch       DispatchResult
	Recorded       bool
}

// PipelineDeps wires the collaborators of a Pipeline.
type PipelineDeps struct {
	Claims     ClaimStore
	Resolver   PatientResolver
	Classifier Classifier
	Fallback   Classifier
	Dispatcher Dispatcher
	Responder  Responder
	Recorder   Recorder
	Reconciler StatusReconciler
	Metrics    *metrics.TriageMetrics
	Logger     *logging.Logger
}

// Pipeline runs resolve → classify → route → dispatch → respond → record for each inbound message.
type Pipeline struct {
	claims     ClaimStore
	resolver   PatientResolver
	classifier Classifier
	fallback   Classifier
	dispatcher Dispatcher
	responder  Responder
	recorder   Recorder
	reconciler StatusReconciler
	metrics    *metrics.TriageMetrics
	logger     *logging.Logger
	now        func() time.Time
}

func NewPipeline(deps PipelineDeps) *Pipeline {
	if deps.Resolver == nil || deps.Classifier == nil || deps.Dispatcher == nil || deps.Responder == nil || deps.Recorder == nil {
		panic("triage: resolver, classifier, dispatcher, responder and recorder are required")
	}
	logger := deps.Logger
	if logger == nil {
		logger = logging.Default()
	}
	return &Pipeline{
		claims:     deps.Claims,
		resolver:   deps.Resolver,
		classifier: deps.Classifier,
		fallback:   deps.Fallback,
		dispatcher: deps.Dispatcher,
		responder:  deps.Responder,
		recorder:   deps.Recorder,
		reconciler: deps.Reconciler,
		metrics:    deps.Metrics,
		logger:     logger.WithComponent("triage"),
		now:        time.Now,
	}
}

// SafeDefaultClassification is used when no classifier produced a result, so a human still sees the message.
func SafeDefaultClassification() Classification {
	return Classification{
		Intent:        IntentUnknown,
		Urgency:       UrgencyNone,
		RequiresHuman: true,
	}
}

// HandleMessage processes one inbound message. It never returns an error; failures are logged and degraded.
func (p *Pipeline) HandleMessage(ctx context.Context, msg InboundMessage) Outcome {
	ctx, span := tracer.Start(ctx, "triage.handle_message")
	defer span.End()
	span.SetAttributes(attribute.String("message_sid", msg.ProviderMessageID))

	log := p.logger.With("message_sid", msg.ProviderMessageID)

	if p.claims != nil && msg.ProviderMessageID != "" {
		claimed, err := p.claims.Claim(ctx, ClaimEventType, msg.ProviderMessageID)
		switch {
		case err != nil:
			log.Warn("claim store unavailable, continuing", "error", err)
		case !claimed:
			log.Info("duplicate inbound message ignored")
			p.metrics.ObserveCallback("message", "duplicate")
			span.SetAttributes(attribute.Bool("duplicate", true))
			return Outcome{Duplicate: true, ConversationID: ConversationID(msg.From)}
		}
	}

	conversationID := ConversationID(msg.From)
	pctx := p.resolver.Resolve(ctx, msg.From)
	classification := p.classify(ctx, msg, pctx)

	path := Route(msg, classification, pctx)
	span.SetAttributes(attribute.String("path", path.String()))
	p.metrics.ObservePath(string(path.Kind))
	log.Info("message routed",
		"path", path.String(),
		"intent", string(classification.Intent),
		"urgency", string(classification.Urgency),
		"confidence", classification.Confidence,
		"patient_known", pctx.Known(),
	)

	out := Outcome{
		ConversationID: conversationID,
		Path:           path,
		Classification: classification,
	}
	if path.Escalates() {
		out.Dispatch = p.dispatcher.Dispatch(ctx, path, msg, classification, pctx, conversationID)
	}
	out.AutoResponse, out.ResponseSent = p.responder.Respond(ctx, path, msg, classification, pctx, conversationID)

	recorded, err := p.recorder.Record(ctx, msg, classification, path, pctx, out.AutoResponse)
	if err != nil {
		log.Error("failed to record interaction", "error", err, "path", path.String())
	}
	out.Recorded = recorded
	p.metrics.ObserveCallback("message", "processed")
	return out
}

func (p *Pipeline) classify(ctx context.Context, msg InboundMessage, pctx PatientContext) Classification {
	start := p.now()
	c, err := p.classifier.Analyze(ctx, msg.Body, pctx)
	if err == nil {
		p.metrics.ObserveClassification("primary", p.now().Sub(start).Seconds())
		return c
	}
	p.logger.Error("classifier failed", "error", err, "message_sid", msg.ProviderMessageID)

	if p.fallback != nil {
		fc, ferr := p.fallback.Analyze(ctx, msg.Body, pctx)
		if ferr == nil {
			p.metrics.ObserveClassification("fallback", p.now().Sub(start).Seconds())
			return fc
		}
		p.logger.Error("fallback classifier failed", "error", ferr, "message_sid", msg.ProviderMessageID)
	}
	p.metrics.ObserveClassification("default", p.now().Sub(start).Seconds())
	return SafeDefaultClassification()
}

// HandleStatus applies a delivery-status callback.
func (p *Pipeline) HandleStatus(ctx context.Context, evt DeliveryStatusEvent) error {
	ctx, span := tracer.Start(ctx, "triage.handle_status")
	defer span.End()
	span.SetAttributes(
		attribute.String("message_sid", evt.ProviderMessageID),
		attribute.String("status", evt.Status),
	)
	if p.reconciler == nil {
		p.logger.Warn("status callback ignored, no reconciler configured", "message_sid", evt.ProviderMessageID)
		return nil
	}
	if err := p.reconciler.Reconcile(ctx, evt); err != nil {
		p.metrics.ObserveCallback("status", "error")
		return err
	}
	p.metrics.ObserveCallback("status", "processed")
	return nil
}
