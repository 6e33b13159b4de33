package compliance

import (
	"regexp"
	"strings"
)

// Detector identifies carrier opt-out, opt-in and HELP keywords in inbound messages.
// Opt-out words that also carry scheduling meaning ("cancel", "end") only count when they are
// the whole message, so "cancel my appointment" is not an unsubscribe.
type Detector struct {
	stopRegex  *regexp.Regexp
	startRegex *regexp.Regexp
	helpRegex  *regexp.Regexp
}

// NewDetector returns a keyword detector with sane defaults.
func NewDetector() *Detector {
	return &Detector{
		stopRegex: regexp.MustCompile(`(?i)^(?:please\s+)?(?:` +
			`(?:stop|stopall|unsubscribe|cancel|end|quit|optout|opt out)[\s.!]*$` +
			`|(?:unsubscribe|opt me out)\b` +
			`|stop (?:texting|messaging|sending)\b)`),
		startRegex: regexp.MustCompile(`(?i)^(?:start|unstop|resubscribe)[\s.!]*$`),
		helpRegex:  regexp.MustCompile(`(?i)^(?:please\s+)?(help|info)\b`),
	}
}

// IsStop returns true when body is an opt-out request.
func (d *Detector) IsStop(body string) bool {
	if d == nil || d.stopRegex == nil {
		return false
	}
	return d.stopRegex.MatchString(strings.TrimSpace(body))
}

// IsStart returns true when body asks to resubscribe.
func (d *Detector) IsStart(body string) bool {
	if d == nil || d.startRegex == nil {
		return false
	}
	return d.startRegex.MatchString(strings.TrimSpace(body))
}

// IsHelp returns true when body contains a HELP keyword.
func (d *Detector) IsHelp(body string) bool {
	if d == nil || d.helpRegex == nil {
		return false
	}
	return d.helpRegex.MatchString(strings.TrimSpace(body))
}
