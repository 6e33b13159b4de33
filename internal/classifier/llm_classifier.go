package classifier

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/wolfman30/medspa-sms-triage/internal/triage"
)

var tracer = otel.Tracer("medspa.internal.classifier")

const (
	defaultTimeout   = 8 * time.Second
	defaultMaxTokens = 512
)

const systemPrompt = `You triage inbound SMS messages for a medical spa.
Respond with a single JSON object and nothing else. Fields:
- intent: one of appointment_booking, appointment_confirmation, appointment_cancellation, appointment_rescheduling,
  appointment_inquiry, treatment_question, treatment_concern, post_treatment_followup, treatment_recommendation,
  side_effect_report, pricing_inquiry, payment_question, insurance_question, package_inquiry, membership_question,
  emergency_medical, urgent_concern, complication_report, general_inquiry, location_hours, staff_request,
  feedback_complaint, review_response, promotion_interest, referral_inquiry, forms_documents, consent_related,
  opt_out_request, opt_in_request
- urgency: one of critical, high, medium, low, none
- confidence: number between 0 and 1
- sentiment: one of positive, neutral, negative, angry
- requiresHuman: true if a staff member should review before anyone replies
- keywords: symptom or topic words taken from the message
- riskFactors: short labels such as complication or side_effect
- extractedInfo: {"serviceName": "", "appointmentDate": "", "preferredTimes": []}
- suggestedResponses: up to 3 SMS replies under 160 characters
Anything suggesting anaphylaxis, trouble breathing, vision loss or uncontrolled bleeding is critical.`

// LLMClassifier asks a language model for a structured classification.
type LLMClassifier struct {
	client    LLMClient
	model     string
	timeout   time.Duration
	maxTokens int32
	now       func() time.Time
}

type LLMOption func(*LLMClassifier)

func WithTimeout(d time.Duration) LLMOption {
	return func(c *LLMClassifier) {
		if d > 0 {
			c.timeout = d
		}
	}
}

func NewLLMClassifier(client LLMClient, model string, opts ...LLMOption) *LLMClassifier {
	if client == nil {
		panic("classifier: llm client required")
	}
	c := &LLMClassifier{
		client:    client,
		model:     model,
		timeout:   defaultTimeout,
		maxTokens: defaultMaxTokens,
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *LLMClassifier) Analyze(ctx context.Context, body string, pctx triage.PatientContext) (triage.Classification, error) {
	ctx, span := tracer.Start(ctx, "classifier.llm.analyze", trace.WithSpanKind(trace.SpanKindClient))
	defer span.End()

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	resp, err := c.client.Complete(ctx, LLMRequest{
		Model:  c.model,
		System: []string{systemPrompt},
		Messages: []ChatMessage{
			{Role: ChatRoleUser, Content: buildPrompt(body, pctx, c.now())},
		},
		MaxTokens:   c.maxTokens,
		Temperature: 0,
	})
	if err != nil {
		span.RecordError(err)
		return triage.Classification{}, fmt.Errorf("classifier: complete: %w", err)
	}
	span.SetAttributes(attribute.Int("llm.output_tokens", int(resp.Usage.OutputTokens)))

	classification, err := ParseClassification(resp.Text)
	if err != nil {
		span.RecordError(err)
		return triage.Classification{}, err
	}
	span.SetAttributes(
		attribute.String("intent", string(classification.Intent)),
		attribute.String("urgency", string(classification.Urgency)),
	)
	return classification, nil
}

func buildPrompt(body string, pctx triage.PatientContext, now time.Time) string {
	var b strings.Builder
	b.WriteString("## Patient context\n")
	if !pctx.Known() {
		b.WriteString("Unknown sender (no patient record matched this phone number).\n")
	} else {
		fmt.Fprintf(&b, "Patient: %s\n", strings.TrimSpace(pctx.PatientName))
		if appt, ok := pctx.NextAppointment(); ok {
			fmt.Fprintf(&b, "Next appointment: %s on %s (%s)\n", appt.Service, appt.StartsAt.Format(time.RFC1123), appt.Status)
		}
		for _, t := range pctx.RecentTreatments {
			fmt.Fprintf(&b, "Recent treatment: %s, %d day(s) ago\n", t.ServiceName, t.DaysSince(now))
		}
	}
	if pctx.BusinessHoursNow {
		b.WriteString("The clinic is currently open.\n")
	} else {
		b.WriteString("The clinic is currently closed.\n")
	}
	b.WriteString("\n## Message to analyze\n")
	fmt.Fprintf(&b, "%q\n", body)
	return b.String()
}

type rawClassification struct {
	Intent             string               `json:"intent"`
	Urgency            string               `json:"urgency"`
	Confidence         *float64             `json:"confidence"`
	Sentiment          string               `json:"sentiment"`
	RequiresHuman      bool                 `json:"requiresHuman"`
	Keywords           []string             `json:"keywords"`
	RiskFactors        []string             `json:"riskFactors"`
	ExtractedInfo      triage.ExtractedInfo `json:"extractedInfo"`
	SuggestedResponses []string             `json:"suggestedResponses"`
}

// ParseClassification decodes a model reply. Code fences and leading prose are tolerated.
func ParseClassification(text string) (triage.Classification, error) {
	payload := extractJSONObject(text)
	if payload == "" {
		return triage.Classification{}, errors.New("classifier: no JSON object in model output")
	}
	var raw rawClassification
	if err := json.Unmarshal([]byte(payload), &raw); err != nil {
		return triage.Classification{}, fmt.Errorf("classifier: decode model output: %w", err)
	}

	confidence := 0.5
	if raw.Confidence != nil {
		confidence = clamp(*raw.Confidence)
	}
	out := triage.Classification{
		Intent:        triage.ParseIntent(raw.Intent),
		Urgency:       triage.ParseUrgency(raw.Urgency),
		Confidence:    confidence,
		Sentiment:     strings.ToLower(strings.TrimSpace(raw.Sentiment)),
		RequiresHuman: raw.RequiresHuman,
		Keywords:      raw.Keywords,
		RiskFactors:   raw.RiskFactors,
		ExtractedInfo: raw.ExtractedInfo,
	}
	for _, s := range raw.SuggestedResponses {
		if s = strings.TrimSpace(s); s != "" {
			out.SuggestedResponses = append(out.SuggestedResponses, truncateSMS(s))
		}
	}
	return out, nil
}

func extractJSONObject(text string) string {
	start := strings.Index(text, "{")
	end := strings.LastIndex(text, "}")
	if start < 0 || end <= start {
		return ""
	}
	return text[start : end+1]
}

func clamp(v float64) float64 {
	switch {
	case v < 0:
		return 0
	case v > 1:
		return 1
	default:
		return v
	}
}

const smsLimit = 160

func truncateSMS(s string) string {
	r := []rune(s)
	if len(r) <= smsLimit {
		return s
	}
	return string(r[:smsLimit])
}
