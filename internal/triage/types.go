// Package triage holds the inbound SMS triage model and the decision engine
// that routes every patient message to exactly one handling path.
package triage

import (
	"strings"
	"time"
)

// Intent is the classifier-assigned purpose of a message.
type Intent string

const (
	IntentAppointmentBooking      Intent = "appointment_booking"
	IntentAppointmentConfirmation Intent = "appointment_confirmation"
	IntentAppointmentCancellation Intent = "appointment_cancellation"
	IntentAppointmentRescheduling Intent = "appointment_rescheduling"
	IntentAppointmentInquiry      Intent = "appointment_inquiry"

	IntentTreatmentQuestion       Intent = "treatment_question"
	IntentTreatmentConcern        Intent = "treatment_concern"
	IntentPostTreatmentFollowup   Intent = "post_treatment_followup"
	IntentTreatmentRecommendation Intent = "treatment_recommendation"
	IntentSideEffectReport        Intent = "side_effect_report"

	IntentPricingInquiry     Intent = "pricing_inquiry"
	IntentPaymentQuestion    Intent = "payment_question"
	IntentInsuranceQuestion  Intent = "insurance_question"
	IntentPackageInquiry     Intent = "package_inquiry"
	IntentMembershipQuestion Intent = "membership_question"

	IntentEmergencyMedical   Intent = "emergency_medical"
	IntentUrgentConcern      Intent = "urgent_concern"
	IntentComplicationReport Intent = "complication_report"

	IntentGeneralInquiry    Intent = "general_inquiry"
	IntentLocationHours     Intent = "location_hours"
	IntentStaffRequest      Intent = "staff_request"
	IntentFeedbackComplaint Intent = "feedback_complaint"
	IntentReviewResponse    Intent = "review_response"

	IntentPromotionInterest Intent = "promotion_interest"
	IntentReferralInquiry   Intent = "referral_inquiry"

	IntentFormsDocuments Intent = "forms_documents"
	IntentConsentRelated Intent = "consent_related"
	IntentOptOutRequest  Intent = "opt_out_request"
	IntentOptInRequest   Intent = "opt_in_request"

	IntentUnknown Intent = "unknown"
)

var knownIntents = map[Intent]struct{}{
	IntentAppointmentBooking: {}, IntentAppointmentConfirmation: {}, IntentAppointmentCancellation: {},
	IntentAppointmentRescheduling: {}, IntentAppointmentInquiry: {}, IntentTreatmentQuestion: {},
	IntentTreatmentConcern: {}, IntentPostTreatmentFollowup: {}, IntentTreatmentRecommendation: {},
	IntentSideEffectReport: {}, IntentPricingInquiry: {}, IntentPaymentQuestion: {},
	IntentInsuranceQuestion: {}, IntentPackageInquiry: {}, IntentMembershipQuestion: {},
	IntentEmergencyMedical: {}, IntentUrgentConcern: {}, IntentComplicationReport: {},
	IntentGeneralInquiry: {}, IntentLocationHours: {}, IntentStaffRequest: {}, IntentFeedbackComplaint: {},
	IntentReviewResponse: {}, IntentPromotionInterest: {}, IntentReferralInquiry: {},
	IntentFormsDocuments: {}, IntentConsentRelated: {}, IntentOptOutRequest: {}, IntentOptInRequest: {},
	IntentUnknown: {},
}

// ParseIntent maps a classifier label onto a known intent. Unrecognized labels become IntentUnknown.
func ParseIntent(raw string) Intent {
	intent := Intent(strings.ToLower(strings.TrimSpace(raw)))
	if _, ok := knownIntents[intent]; ok {
		return intent
	}
	return IntentUnknown
}

// Urgency is the classifier-assigned severity.
type Urgency string

const (
	UrgencyCritical Urgency = "critical"
	UrgencyHigh     Urgency = "high"
	UrgencyMedium   Urgency = "medium"
	UrgencyLow      Urgency = "low"
	UrgencyNone     Urgency = "none"
)

// ParseUrgency maps a classifier label onto an urgency, defaulting to UrgencyNone.
func ParseUrgency(raw string) Urgency {
	switch u := Urgency(strings.ToLower(strings.TrimSpace(raw))); u {
	case UrgencyCritical, UrgencyHigh, UrgencyMedium, UrgencyLow, UrgencyNone:
		return u
	default:
		return UrgencyNone
	}
}

// ExtractedInfo holds entities the classifier pulled out of the message.
type ExtractedInfo struct {
	ServiceName     string   `json:"serviceName,omitempty"`
	AppointmentDate string   `json:"appointmentDate,omitempty"`
	PreferredTimes  []string `json:"preferredTimes,omitempty"`
}

// Classification is produced once per inbound message and never mutated.
type Classification struct {
	Intent             Intent        `json:"intent"`
	Urgency            Urgency       `json:"urgency"`
	Confidence         float64       `json:"confidence"`
	Sentiment          string        `json:"sentiment,omitempty"`
	RequiresHuman      bool          `json:"requiresHuman"`
	Keywords           []string      `json:"keywords,omitempty"`
	RiskFactors        []string      `json:"riskFactors,omitempty"`
	ExtractedInfo      ExtractedInfo `json:"extractedInfo"`
	SuggestedResponses []string      `json:"suggestedResponses,omitempty"`
}

// TopSuggestion returns the classifier's first suggested reply, if any.
func (c Classification) TopSuggestion() string {
	for _, s := range c.SuggestedResponses {
		if s = strings.TrimSpace(s); s != "" {
			return s
		}
	}
	return ""
}

// InboundMessage is a normalized provider message callback.
type InboundMessage struct {
	ProviderMessageID string
	From              string
	To                string
	Body              string
	MediaCount        int
	MediaRefs         []string
	FromCity          string
	FromState         string
	FromCountry       string
	ReceivedAt        time.Time
}

// Delivery statuses reported by the provider.
const (
	StatusQueued      = "queued"
	StatusSending     = "sending"
	StatusSent        = "sent"
	StatusDelivered   = "delivered"
	StatusRead        = "read"
	StatusFailed      = "failed"
	StatusUndelivered = "undelivered"
)

// DeliveryStatusEvent reports the outcome of a previously sent message.
type DeliveryStatusEvent struct {
	ProviderMessageID string
	Status            string
	To                string
	From              string
	ErrorCode         string
	ErrorMessage      string
	ObservedAt        time.Time
}

// Terminal reports whether the status is a delivery failure.
func (e DeliveryStatusEvent) Terminal() bool {
	return e.Status == StatusFailed || e.Status == StatusUndelivered
}

// Appointment is an upcoming booking for a known patient.
type Appointment struct {
	ID             string
	Service        string
	Provider       string
	StartsAt       time.Time
	Status         string
	SMSConfirmedAt *time.Time
}

// Treatment is a completed procedure.
type Treatment struct {
	ID               string    `json:"id"`
	ServiceName      string    `json:"serviceName"`
	PractitionerID   string    `json:"practitionerId,omitempty"`
	PractitionerName string    `json:"practitionerName,omitempty"`
	PerformedAt      time.Time `json:"performedAt"`
}

// DaysSince returns whole days elapsed between the treatment and now.
func (t Treatment) DaysSince(now time.Time) int {
	if now.Before(t.PerformedAt) {
		return 0
	}
	return int(now.Sub(t.PerformedAt).Hours() / 24)
}

// PatientContext is resolved per message. An empty PatientID is the unknown-patient context.
type PatientContext struct {
	PatientID            string
	PatientName          string
	UpcomingAppointments []Appointment
	RecentTreatments     []Treatment
	BusinessHoursNow     bool
	StaffAvailable       bool
}

// Known reports whether the sender was matched to a patient.
func (p PatientContext) Known() bool {
	return strings.TrimSpace(p.PatientID) != ""
}

// NextAppointment returns the soonest upcoming appointment.
func (p PatientContext) NextAppointment() (Appointment, bool) {
	if len(p.UpcomingAppointments) == 0 {
		return Appointment{}, false
	}
	return p.UpcomingAppointments[0], true
}

// Conversation is keyed by patient phone number.
type Conversation struct {
	ID              string
	PatientID       string
	PatientPhone    string
	LastMessageBody string
	LastMessageAt   time.Time
	Channel         string
	Status          string
}

// InteractionLogEntry is the append-only audit record for one inbound message.
type InteractionLogEntry struct {
	ConversationID    string         `json:"conversationId"`
	ProviderMessageID string         `json:"providerMessageId"`
	PatientPhone      string         `json:"patientPhone"`
	InboundBody       string         `json:"inboundBody"`
	Classification    Classification `json:"classification"`
	Path              string         `json:"path"`
	AutoResponse      string         `json:"autoResponse,omitempty"`
	Timestamp         time.Time      `json:"timestamp"`
}

// AlertUrgency is the severity carried by a complication alert.
type AlertUrgency string

const (
	AlertHigh     AlertUrgency = "high"
	AlertCritical AlertUrgency = "critical"
)

// ComplicationAlert is handed to the alerting collaborator. Created, never mutated.
type ComplicationAlert struct {
	ID           string       `json:"id"`
	PatientID    string       `json:"patientId"`
	PatientName  string       `json:"patientName"`
	PatientPhone string       `json:"patientPhone"`
	Message      string       `json:"message"`
	Keywords     []string     `json:"keywords"`
	Urgency      AlertUrgency `json:"urgency"`
	Treatment    *Treatment   `json:"treatment,omitempty"`
	RaisedAt     time.Time    `json:"raisedAt"`
}

// EmergencyAlert is the degraded alert raised for critical messages from unknown senders.
type EmergencyAlert struct {
	ID             string         `json:"id"`
	PatientPhone   string         `json:"patientPhone"`
	Message        string         `json:"message"`
	Classification Classification `json:"classification"`
	RaisedAt       time.Time      `json:"raisedAt"`
}

// StaffAlert is the lower-severity internal alert.
type StaffAlert struct {
	ID             string         `json:"id"`
	ConversationID string         `json:"conversationId"`
	PatientID      string         `json:"patientId,omitempty"`
	PatientPhone   string         `json:"patientPhone"`
	Urgency        Urgency        `json:"urgency"`
	Message        string         `json:"message"`
	Classification Classification `json:"classification"`
	RaisedAt       time.Time      `json:"raisedAt"`
}

// DeliveryFailureAlert asks staff to follow up on a message the provider could not deliver.
type DeliveryFailureAlert struct {
	ID                string    `json:"id"`
	ProviderMessageID string    `json:"providerMessageId"`
	To                string    `json:"to"`
	Status            string    `json:"status"`
	ErrorCode         string    `json:"errorCode,omitempty"`
	ErrorMessage      string    `json:"errorMessage,omitempty"`
	ErrorType         string    `json:"errorType,omitempty"`
	RaisedAt          time.Time `json:"raisedAt"`
}

// ConversationID derives the deterministic conversation id for a phone number.
func ConversationID(phone string) string {
	var digits strings.Builder
	for _, r := range phone {
		if r >= '0' && r <= '9' {
			digits.WriteRune(r)
		}
	}
	return "sms:" + digits.String()
}
