package notify

import (
	"fmt"
	"strings"
	"time"

	"github.com/wolfman30/medspa-sms-triage/internal/triage"
)

// CriticalPeriod is the window after a treatment in which any concern is treated as high priority.
const CriticalPeriod = 72 * time.Hour

// RecipientType names who a complication notice is addressed to.
type RecipientType string

const (
	RecipientProvider RecipientType = "provider"
	RecipientManager  RecipientType = "manager"
	RecipientAllStaff RecipientType = "all_staff"
)

// Priority of a staff notice.
type Priority string

const (
	PriorityUrgent Priority = "urgent"
	PriorityHigh   Priority = "high"
	PriorityNormal Priority = "normal"
	PriorityLow    Priority = "low"
)

var emergencyKeywords = []string{
	"allergic", "anaphylaxis", "cant breathe", "can't breathe", "breathing", "chest pain",
	"vision", "blind", "911", "emergency", "hospital", "severe",
	"numbness", "paralysis", "stroke", "fever", "infection",
}

// IsEmergency reports whether any keyword overlaps the emergency vocabulary.
func IsEmergency(keywords []string) bool {
	for _, kw := range keywords {
		kw = strings.ToLower(strings.TrimSpace(kw))
		if kw == "" {
			continue
		}
		for _, ek := range emergencyKeywords {
			if strings.Contains(kw, ek) || (len(kw) >= 4 && strings.Contains(ek, kw)) {
				return true
			}
		}
	}
	return false
}

// WithinCriticalPeriod reports whether the treatment happened less than CriticalPeriod before now.
func WithinCriticalPeriod(t *triage.Treatment, now time.Time) bool {
	if t == nil || t.PerformedAt.IsZero() {
		return false
	}
	return now.Sub(t.PerformedAt) < CriticalPeriod
}

// ComplicationNotice is one rendered staff notification for a complication alert.
type ComplicationNotice struct {
	AlertID        string
	RecipientType  RecipientType
	RecipientID    string
	Priority       Priority
	Title          string
	Body           string
	Emergency      bool
	CriticalPeriod bool
}

// BuildComplicationNotices decides who hears about a complication. The treating provider is
// notified when a recent treatment is known, otherwise all staff; emergencies also go to the manager.
func BuildComplicationNotices(alert triage.ComplicationAlert, now time.Time) []ComplicationNotice {
	emergency := IsEmergency(alert.Keywords)
	critical := WithinCriticalPeriod(alert.Treatment, now)
	priority := complicationPriority(alert.Urgency, critical, emergency)

	build := func(rt RecipientType, recipientID string, escalation bool) ComplicationNotice {
		var title string
		switch {
		case emergency:
			title = fmt.Sprintf("EMERGENCY: Patient %s", alert.PatientName)
		case escalation:
			title = fmt.Sprintf("ESCALATION: Patient Concern - %s", alert.PatientName)
		default:
			title = fmt.Sprintf("PATIENT CONCERN: %s", alert.PatientName)
		}
		return ComplicationNotice{
			AlertID:        alert.ID,
			RecipientType:  rt,
			RecipientID:    recipientID,
			Priority:       priority,
			Title:          title,
			Body:           complicationBody(alert, now),
			Emergency:      emergency,
			CriticalPeriod: critical,
		}
	}

	var notices []ComplicationNotice
	if alert.Treatment != nil {
		notices = append(notices, build(RecipientProvider, alert.Treatment.PractitionerID, false))
	} else {
		notices = append(notices, build(RecipientAllStaff, "staff-all", false))
	}
	if emergency || alert.Urgency == triage.AlertCritical {
		notices = append(notices, build(RecipientManager, "manager", true))
	}
	return notices
}

func complicationPriority(urgency triage.AlertUrgency, critical, emergency bool) Priority {
	switch {
	case emergency || urgency == triage.AlertCritical:
		return PriorityUrgent
	case critical || urgency == triage.AlertHigh:
		return PriorityHigh
	default:
		return PriorityNormal
	}
}

func complicationBody(alert triage.ComplicationAlert, now time.Time) string {
	var b strings.Builder
	if t := alert.Treatment; t != nil {
		days := t.DaysSince(now)
		plural := "s"
		if days == 1 {
			plural = ""
		}
		fmt.Fprintf(&b, "Re: %s (%d day%s ago)", t.ServiceName, days, plural)
		if t.PractitionerName != "" {
			fmt.Fprintf(&b, " with %s", t.PractitionerName)
		}
		fmt.Fprintf(&b, "\n\n%q", alert.Message)
	} else {
		fmt.Fprintf(&b, "Patient message:\n\n%q", alert.Message)
	}
	fmt.Fprintf(&b, "\n\nPatient: %s\nPhone: %s", alert.PatientName, alert.PatientPhone)
	if len(alert.Keywords) > 0 {
		fmt.Fprintf(&b, "\nKeywords: %s", strings.Join(alert.Keywords, ", "))
	}
	b.WriteString("\nSuggested actions: Call patient, Review treatment record")
	return b.String()
}
