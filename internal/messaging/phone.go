package messaging

import (
	"regexp"
	"strings"
)

var nonDigitRe = regexp.MustCompile(`\D`)

// NormalizeE164 converts a phone number into +<digits>. Ten-digit numbers are assumed to be US numbers.
// Values without any digits normalize to "".
func NormalizeE164(value string) string {
	value = strings.TrimSpace(value)
	if value == "" {
		return ""
	}
	digits := sanitizePhone(value)
	if digits == "" {
		return ""
	}
	if !strings.HasPrefix(value, "+") && len(digits) == 10 {
		digits = "1" + digits
	}
	return "+" + digits
}

func sanitizePhone(value string) string {
	return nonDigitRe.ReplaceAllString(value, "")
}
