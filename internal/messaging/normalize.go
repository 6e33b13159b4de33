package messaging

import (
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/wolfman30/medspa-sms-triage/internal/triage"
)

// MaxMediaPerMessage is the provider's attachment limit for one MMS.
const MaxMediaPerMessage = 10

// CallbackKind distinguishes inbound messages from delivery-status reports.
type CallbackKind string

const (
	CallbackMessage CallbackKind = "message"
	CallbackStatus  CallbackKind = "status"
)

// Callback is a normalized webhook payload. Exactly one of Message or Status is set.
type Callback struct {
	Message *triage.InboundMessage
	Status  *triage.DeliveryStatusEvent
}

// Kind reports which variant the callback carries.
func (c Callback) Kind() CallbackKind {
	if c.Status != nil {
		return CallbackStatus
	}
	return CallbackMessage
}

// Normalize converts a provider form payload into a Callback. It never fails: missing
// fields become empty values and unparseable counts become zero.
func Normalize(form url.Values, now time.Time) Callback {
	get := func(key string) string {
		return strings.TrimSpace(form.Get(key))
	}

	if status := strings.ToLower(get("MessageStatus")); status != "" {
		observed := now
		if ts := parseTimestamp(get("Timestamp")); !ts.IsZero() {
			observed = ts
		}
		return Callback{Status: &triage.DeliveryStatusEvent{
			ProviderMessageID: get("MessageSid"),
			Status:            status,
			To:                normalizeOrRaw(get("To")),
			From:              normalizeOrRaw(get("From")),
			ErrorCode:         get("ErrorCode"),
			ErrorMessage:      get("ErrorMessage"),
			ObservedAt:        observed,
		}}
	}

	mediaCount := min(parseCount(get("NumMedia")), MaxMediaPerMessage)
	var media []string
	for i := 0; i < mediaCount; i++ {
		if ref := get(fmt.Sprintf("MediaUrl%d", i)); ref != "" {
			media = append(media, ref)
		}
	}

	return Callback{Message: &triage.InboundMessage{
		ProviderMessageID: get("MessageSid"),
		From:              normalizeOrRaw(get("From")),
		To:                normalizeOrRaw(get("To")),
		Body:              form.Get("Body"),
		MediaCount:        mediaCount,
		MediaRefs:         media,
		FromCity:          get("FromCity"),
		FromState:         get("FromState"),
		FromCountry:       get("FromCountry"),
		ReceivedAt:        now,
	}}
}

func normalizeOrRaw(phone string) string {
	if normalized := NormalizeE164(phone); normalized != "" {
		return normalized
	}
	return phone
}

func parseCount(raw string) int {
	n, err := strconv.Atoi(raw)
	if err != nil || n < 0 {
		return 0
	}
	return n
}

func parseTimestamp(raw string) time.Time {
	if raw == "" {
		return time.Time{}
	}
	for _, layout := range []string{time.RFC3339Nano, time.RFC3339, time.RFC1123Z, time.RFC1123} {
		if t, err := time.Parse(layout, raw); err == nil {
			return t.UTC()
		}
	}
	return time.Time{}
}
