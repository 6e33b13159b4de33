package classifier

import (
	"context"
	"regexp"
	"strings"

	"github.com/wolfman30/medspa-sms-triage/internal/messaging/compliance"
	"github.com/wolfman30/medspa-sms-triage/internal/triage"
)

var emergencyPhrases = []string{
	"911", "emergency", "urgent help", "severe pain", "cant breathe", "can't breathe",
	"allergic reaction", "chest pain", "vision loss", "uncontrolled bleeding",
	"swelling throat", "throat is swelling", "difficulty breathing", "trouble breathing", "anaphylaxis",
}

// symptomVariants maps words patients use onto the router's symptom vocabulary.
var symptomVariants = map[string]string{
	"bruise": "bruising", "bruised": "bruising", "bruising": "bruising",
	"swelling": "swelling", "swollen": "swelling", "puffy": "swelling",
	"pain": "pain", "painful": "pain", "hurts": "pain", "sore": "pain",
	"red": "redness", "redness": "redness",
	"bump": "bump", "bumps": "bump",
	"lump": "lump", "lumps": "lump", "lumpy": "lump",
	"asymmetry": "asymmetry", "asymmetric": "asymmetry", "uneven": "asymmetry",
	"droop": "drooping", "drooping": "drooping", "droopy": "drooping",
	"infection": "infection", "infected": "infection", "pus": "infection",
	"bleed": "bleeding", "bleeding": "bleeding",
	"numb": "numbness", "numbness": "numbness", "tingling": "numbness",
}

// Longer names come first so "lip filler" wins over "filler".
var services = []string{
	"botox", "dysport", "lip filler", "dermal filler", "filler", "hydrafacial", "microneedling",
	"chemical peel", "peel", "laser hair removal", "laser", "coolsculpting", "kybella", "prp", "facial",
}

var serviceRegexes = func() []*regexp.Regexp {
	out := make([]*regexp.Regexp, len(services))
	for i, s := range services {
		out[i] = regexp.MustCompile(`\b` + regexp.QuoteMeta(s) + `\b`)
	}
	return out
}()

var (
	wordRegex     = regexp.MustCompile(`[a-z']+`)
	confirmRegex  = regexp.MustCompile(`(?i)^(?:c|confirm|confirmed|yes,? confirm(?:ed)?)[\s.!]*$`)
	timeRegex     = regexp.MustCompile(`(?i)\b\d{1,2}(?::\d{2})?\s?(?:am|pm)\b|\b(?:morning|afternoon|evening)\b`)
	dateRegex     = regexp.MustCompile(`(?i)\b(?:today|tomorrow|next week|(?:next\s+)?(?:monday|tuesday|wednesday|thursday|friday|saturday|sunday)|\d{1,2}/\d{1,2})\b`)
	rescheduleRex = regexp.MustCompile(`(?i)\b(?:reschedule|change (?:my )?(?:time|appointment)|move my appointment|different time)\b`)
	cancelRegex   = regexp.MustCompile(`(?i)\bcancel\b`)
	bookRegex     = regexp.MustCompile(`(?i)\b(?:book|schedule|appointment|availability|available)\b`)
	priceRegex    = regexp.MustCompile(`(?i)\b(?:price|prices|pricing|cost|costs|how much)\b`)
)

// KeywordClassifier is a deterministic rule set used when no model answer is available.
type KeywordClassifier struct {
	detector *compliance.Detector
}

func NewKeywordClassifier() *KeywordClassifier {
	return &KeywordClassifier{detector: compliance.NewDetector()}
}

// Analyze never fails.
func (k *KeywordClassifier) Analyze(_ context.Context, body string, _ triage.PatientContext) (triage.Classification, error) {
	text := strings.TrimSpace(body)
	lower := strings.ToLower(text)
	service := extractService(lower)
	info := triage.ExtractedInfo{ServiceName: service}

	for _, phrase := range emergencyPhrases {
		if strings.Contains(lower, phrase) {
			return triage.Classification{
				Intent:        triage.IntentEmergencyMedical,
				Urgency:       triage.UrgencyCritical,
				Confidence:    0.9,
				Sentiment:     "negative",
				RequiresHuman: true,
				Keywords:      append([]string{phrase}, symptoms(lower)...),
				RiskFactors:   []string{"emergency_keywords_detected"},
				ExtractedInfo: info,
			}, nil
		}
	}

	if found := symptoms(lower); len(found) > 0 {
		return triage.Classification{
			Intent:        triage.IntentTreatmentConcern,
			Urgency:       triage.UrgencyHigh,
			Confidence:    0.7,
			Sentiment:     "negative",
			RequiresHuman: true,
			Keywords:      found,
			RiskFactors:   []string{"complication"},
			ExtractedInfo: info,
		}, nil
	}

	switch {
	case k.detector.IsStop(text):
		return simple(triage.IntentOptOutRequest, 0.95, info), nil
	case k.detector.IsStart(text):
		return simple(triage.IntentOptInRequest, 0.95, info), nil
	case confirmRegex.MatchString(text):
		return simple(triage.IntentAppointmentConfirmation, 0.9, info), nil
	case rescheduleRex.MatchString(lower):
		info.AppointmentDate = dateRegex.FindString(lower)
		info.PreferredTimes = timeRegex.FindAllString(lower, -1)
		return simple(triage.IntentAppointmentRescheduling, 0.8, info), nil
	case cancelRegex.MatchString(lower):
		return simple(triage.IntentAppointmentCancellation, 0.8, info), nil
	case priceRegex.MatchString(lower):
		return simple(triage.IntentPricingInquiry, 0.8, info), nil
	case bookRegex.MatchString(lower):
		info.PreferredTimes = timeRegex.FindAllString(lower, -1)
		return simple(triage.IntentAppointmentBooking, 0.75, info), nil
	}

	c := simple(triage.IntentGeneralInquiry, 0.4, info)
	c.Urgency = triage.UrgencyLow
	return c, nil
}

func simple(intent triage.Intent, confidence float64, info triage.ExtractedInfo) triage.Classification {
	return triage.Classification{
		Intent:        intent,
		Urgency:       triage.UrgencyNone,
		Confidence:    confidence,
		Sentiment:     "neutral",
		ExtractedInfo: info,
	}
}

// symptoms returns canonical symptom keywords found in lower, without duplicates.
func symptoms(lower string) []string {
	var out []string
	seen := map[string]struct{}{}
	for _, w := range wordRegex.FindAllString(lower, -1) {
		canonical, ok := symptomVariants[w]
		if !ok {
			continue
		}
		if _, dup := seen[canonical]; dup {
			continue
		}
		seen[canonical] = struct{}{}
		out = append(out, canonical)
	}
	return out
}

func extractService(lower string) string {
	for i, re := range serviceRegexes {
		if re.MatchString(lower) {
			return services[i]
		}
	}
	return ""
}
