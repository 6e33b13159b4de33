package triage

import "strings"

// PathKind enumerates the handling paths a message can take.
type PathKind string

const (
	PathSilent       PathKind = "silent"
	PathEmergency    PathKind = "emergency"
	PathComplication PathKind = "complication"
	PathStaffAlert   PathKind = "staff_alert"
	PathAutoIntent   PathKind = "auto_intent"
)

// HandlingPath is the single decision made for a message. Intent is set only for PathAutoIntent.
type HandlingPath struct {
	Kind   PathKind
	Intent Intent
}

// String renders the path as stored in the interaction log.
func (p HandlingPath) String() string {
	if p.Kind == PathAutoIntent && p.Intent != "" {
		return string(p.Kind) + ":" + string(p.Intent)
	}
	return string(p.Kind)
}

// Escalates reports whether the path raises an internal alert.
func (p HandlingPath) Escalates() bool {
	return p.Kind == PathEmergency || p.Kind == PathComplication || p.Kind == PathStaffAlert
}

const (
	treatmentQuestionMinConfidence = 0.8
	generalMinConfidence           = 0.7
)

var autoIntents = map[Intent]struct{}{
	IntentAppointmentConfirmation: {},
	IntentAppointmentCancellation: {},
	IntentAppointmentRescheduling: {},
	IntentAppointmentBooking:      {},
	IntentPricingInquiry:          {},
	IntentOptOutRequest:           {},
	IntentOptInRequest:            {},
}

var symptomKeywords = map[string]struct{}{
	"bruising":  {},
	"swelling":  {},
	"pain":      {},
	"redness":   {},
	"bump":      {},
	"lump":      {},
	"asymmetry": {},
	"drooping":  {},
	"infection": {},
	"bleeding":  {},
	"numbness":  {},
}

// Route picks the handling path for a message. Rules are evaluated in order and the first match wins.
// msg is unused by the current rules.
func Route(msg InboundMessage, c Classification, pctx PatientContext) HandlingPath {
	if c.Urgency == UrgencyCritical {
		return HandlingPath{Kind: PathEmergency}
	}

	elevated := c.Urgency == UrgencyHigh || c.RequiresHuman
	if elevated && IsComplicationSignal(c) && pctx.Known() {
		return HandlingPath{Kind: PathComplication}
	}
	if elevated {
		return HandlingPath{Kind: PathStaffAlert}
	}

	if _, ok := autoIntents[c.Intent]; ok {
		return HandlingPath{Kind: PathAutoIntent, Intent: c.Intent}
	}
	if c.Intent == IntentTreatmentQuestion {
		if c.Confidence > treatmentQuestionMinConfidence {
			return HandlingPath{Kind: PathAutoIntent, Intent: c.Intent}
		}
		return HandlingPath{Kind: PathSilent}
	}
	if pctx.BusinessHoursNow && c.Confidence > generalMinConfidence {
		return HandlingPath{Kind: PathAutoIntent, Intent: c.Intent}
	}
	return HandlingPath{Kind: PathSilent}
}

// IsComplicationSignal reports whether a classification points at a possible treatment complication.
func IsComplicationSignal(c Classification) bool {
	if c.Intent == IntentTreatmentConcern || c.Intent == IntentSideEffectReport {
		return true
	}
	for _, rf := range c.RiskFactors {
		switch strings.ToLower(strings.TrimSpace(rf)) {
		case "complication", "side_effect":
			return true
		}
	}
	return len(SymptomKeywords(c.Keywords)) > 0
}

// SymptomKeywords returns the keywords that match the symptom vocabulary, lower-cased.
func SymptomKeywords(keywords []string) []string {
	var out []string
	for _, kw := range keywords {
		kw = strings.ToLower(strings.TrimSpace(kw))
		if _, ok := symptomKeywords[kw]; ok {
			out = append(out, kw)
		}
	}
	return out
}
