package templates

import (
	"fmt"
	"strings"
	"time"

	"github.com/wolfman30/medspa-sms-triage/internal/triage"
)

const (
	tmplConfirmed             = `Perfect! Your {{if .Service}}{{.Service}} {{end}}appointment on {{.Date}} at {{.Time}} is confirmed. See you soon!`
	tmplCancelled             = `Your {{if .Service}}{{.Service}} {{end}}appointment on {{.Date}} has been cancelled. Would you like to reschedule? Reply YES or call {{.Phone}}.`
	tmplLateCancel            = `Your appointment is within 24 hours. Please call us at {{.Phone}} to cancel and avoid a late cancellation fee.`
	tmplCancelNoAppt          = `To cancel your appointment, please call us at {{.Phone}} or visit our online portal.`
	tmplRescheduleNoted       = `I've noted your preferred times. Our scheduling team will contact you within 2 hours to confirm your new appointment.`
	tmplRescheduleAsk         = `To reschedule, please let us know your preferred dates and times, or call {{.Phone}} for immediate assistance.`
	tmplBookingSlots          = `Great! I have availability for {{.Service}} on: {{.Slots}}. Reply with your preferred time or call {{.Phone}} to book.`
	tmplBookingCheck          = `I'll check availability for {{.Service}}. Our booking team will text you available times within 1 hour.`
	tmplBookingAsk            = `I'd be happy to help you book an appointment! What treatment are you interested in, and when works best for you?`
	tmplPriceFound            = `{{.Service}} starts at ${{.Price}}. Exact pricing depends on treatment area. Would you like to book a consultation? Reply YES or call {{.Phone}}.`
	tmplPriceGeneric          = `Our pricing varies by treatment and area. For detailed pricing, visit {{.PricingURL}} or call {{.Phone}}. We also offer payment plans!`
	tmplComplicationTreatment = `Hi {{.Name}}, thank you for letting us know. Some {{.Symptoms}} can be expected after {{.Service}}, but our medical team has been alerted and will contact you shortly. If symptoms worsen or you have trouble breathing, call 911.`
	tmplComplication          = `Hi {{.Name}}, thank you for letting us know. Our medical team has been alerted and will contact you shortly. If this is a medical emergency, please call 911.`
	tmplUrgentAck             = `Thank you for reaching out. A member of our team has been notified and will get back to you as soon as possible. For immediate help call {{.Phone}}. If this is a medical emergency, call 911.`
)

// Fixed replies that carry no variables.
const (
	ConfirmationThanks = "Thank you for confirming! We look forward to seeing you."
	OptOutConfirmation = "You've been unsubscribed from SMS messages. Reply START to resubscribe."
	BusinessHoursReply = "Thank you for your message. A team member will respond during business hours."
	Resubscribed       = "You've been resubscribed to SMS messages from our clinic. Reply STOP to opt out."
	UnknownEmergency   = "This appears to be urgent. If this is a medical emergency, please call 911. Our medical team has been alerted and will contact you immediately."
)

// Catalog renders every patient-facing reply the triage service sends.
type Catalog struct {
	renderer   *Renderer
	phone      string
	pricingURL string
	location   *time.Location
}

// NewCatalog builds a catalog. Dates and times are rendered in loc.
func NewCatalog(renderer *Renderer, clinicPhone, pricingURL string, loc *time.Location) *Catalog {
	if renderer == nil {
		renderer = NewRenderer()
	}
	if loc == nil {
		loc = time.UTC
	}
	return &Catalog{renderer: renderer, phone: clinicPhone, pricingURL: pricingURL, location: loc}
}

type apptData struct {
	Service string
	Date    string
	Time    string
	Phone   string
}

func (c *Catalog) appt(a triage.Appointment) apptData {
	start := a.StartsAt.In(c.location)
	return apptData{
		Service: serviceLabel(a.Service),
		Date:    start.Format("Monday, January 2"),
		Time:    start.Format("3:04 PM"),
		Phone:   c.phone,
	}
}

func (c *Catalog) Confirmed(a triage.Appointment) (string, error) {
	return c.renderer.Render("confirmed", tmplConfirmed, c.appt(a))
}

func (c *Catalog) Cancelled(a triage.Appointment) (string, error) {
	return c.renderer.Render("cancelled", tmplCancelled, c.appt(a))
}

func (c *Catalog) LateCancellation() (string, error) {
	return c.renderer.Render("late_cancel", tmplLateCancel, c.phoneOnly())
}

func (c *Catalog) CancelWithoutAppointment() (string, error) {
	return c.renderer.Render("cancel_no_appt", tmplCancelNoAppt, c.phoneOnly())
}

func (c *Catalog) RescheduleNoted() (string, error) {
	return c.renderer.Render("reschedule_noted", tmplRescheduleNoted, nil)
}

func (c *Catalog) RescheduleAsk() (string, error) {
	return c.renderer.Render("reschedule_ask", tmplRescheduleAsk, c.phoneOnly())
}

func (c *Catalog) BookingSlots(service string, slots []string) (string, error) {
	return c.renderer.Render("booking_slots", tmplBookingSlots, map[string]string{
		"Service": service,
		"Slots":   strings.Join(slots, ", "),
		"Phone":   c.phone,
	})
}

func (c *Catalog) BookingCheck(service string) (string, error) {
	return c.renderer.Render("booking_check", tmplBookingCheck, map[string]string{"Service": service})
}

func (c *Catalog) BookingAsk() (string, error) {
	return c.renderer.Render("booking_ask", tmplBookingAsk, nil)
}

func (c *Catalog) Price(service string, price float64) (string, error) {
	return c.renderer.Render("price_found", tmplPriceFound, map[string]string{
		"Service": serviceLabel(service),
		"Price":   formatPrice(price),
		"Phone":   c.phone,
	})
}

func (c *Catalog) PriceGeneric() (string, error) {
	return c.renderer.Render("price_generic", tmplPriceGeneric, map[string]string{
		"PricingURL": c.pricingURL,
		"Phone":      c.phone,
	})
}

// ComplicationResponse acknowledges a reported concern. With a recent treatment the wording
// names the procedure and the reported symptoms.
func (c *Catalog) ComplicationResponse(patientName string, treatment *triage.Treatment, keywords []string) (string, error) {
	name := firstName(patientName)
	if treatment != nil && treatment.ServiceName != "" {
		symptoms := "of what you're describing"
		if len(keywords) > 0 {
			symptoms = strings.Join(keywords, " and ")
		}
		return c.renderer.Render("complication_treatment", tmplComplicationTreatment, map[string]string{
			"Name":     name,
			"Symptoms": symptoms,
			"Service":  strings.TrimSpace(treatment.ServiceName),
		})
	}
	return c.renderer.Render("complication", tmplComplication, map[string]string{"Name": name})
}

func (c *Catalog) UrgentAcknowledgment() (string, error) {
	return c.renderer.Render("urgent_ack", tmplUrgentAck, c.phoneOnly())
}

func (c *Catalog) phoneOnly() map[string]string {
	return map[string]string{"Phone": c.phone}
}

func firstName(full string) string {
	fields := strings.Fields(full)
	if len(fields) == 0 {
		return "there"
	}
	return fields[0]
}

func serviceLabel(service string) string {
	return strings.TrimSpace(service)
}

func formatPrice(p float64) string {
	if p == float64(int64(p)) {
		return fmt.Sprintf("%d", int64(p))
	}
	return fmt.Sprintf("%.2f", p)
}
