package delivery

// Error types reported on delivery-failure alerts.
const (
	ErrorInvalidPhone = "invalid_phone"
	ErrorNetwork      = "network_error"
	ErrorCarrier      = "carrier_error"
	ErrorThrottled    = "throttled"
	ErrorBlocked      = "blocked"
	ErrorUnknown      = "unknown"
)

type providerError struct {
	kind    string
	message string
}

var twilioErrors = map[string]providerError{
	"21201": {ErrorInvalidPhone, "Invalid phone number format"},
	"21211": {ErrorInvalidPhone, "The number you attempted to reach is invalid"},
	"21400": {ErrorInvalidPhone, "Invalid credentials or permission denied"},
	"20003": {ErrorNetwork, "Connection error - try again later"},
	"30001": {ErrorNetwork, "Queue overflow - service temporarily unavailable"},
	"30002": {ErrorNetwork, "Account suspended"},
	"30003": {ErrorNetwork, "Unreachable destination handset"},
	"21614": {ErrorCarrier, "Carrier violation"},
	"21615": {ErrorCarrier, "Carrier violation - cannot send to this number"},
	"21617": {ErrorCarrier, "Carrier violation - restricted SMS"},
	"21619": {ErrorCarrier, "Carrier violation - SMS not allowed"},
	"30004": {ErrorThrottled, "Message blocked or rate limited"},
	"30005": {ErrorThrottled, "Unknown destination or throttled"},
	"21610": {ErrorBlocked, "SMS blocked - recipient has opted out"},
	"21612": {ErrorBlocked, "SMS blocked - carrier blocked"},
	"21613": {ErrorBlocked, "SMS blocked - destination blocked"},
}

// ClassifyError maps a Twilio error code onto an error type and a readable message.
func ClassifyError(code string) (string, string) {
	if e, ok := twilioErrors[code]; ok {
		return e.kind, e.message
	}
	if code == "" {
		return ErrorUnknown, "No error code reported"
	}
	return ErrorUnknown, "Unknown error (code: " + code + ")"
}
