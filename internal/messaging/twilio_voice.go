package messaging

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"strings"
)

// TwilioVoiceCaller places outbound calls through Twilio's Calls API.
type TwilioVoiceCaller struct {
	sender   *TwilioSender
	twimlURL string
}

// NewTwilioVoiceCaller reuses the SMS sender's credentials and HTTP client. twimlURL is the
// instruction document Twilio fetches when the call connects.
func NewTwilioVoiceCaller(sender *TwilioSender, twimlURL string) *TwilioVoiceCaller {
	if sender == nil {
		panic("messaging: twilio sender required")
	}
	return &TwilioVoiceCaller{sender: sender, twimlURL: strings.TrimSpace(twimlURL)}
}

// Call dials the number and returns the provider call SID.
func (c *TwilioVoiceCaller) Call(ctx context.Context, to string) (string, error) {
	if strings.TrimSpace(to) == "" {
		return "", errors.New("messaging: call target required")
	}
	if c.twimlURL == "" {
		return "", errors.New("messaging: emergency call twiml url missing")
	}
	if c.sender.from == "" {
		return "", errors.New("messaging: from required")
	}

	ctx, span := twilioSendTracer.Start(ctx, "messaging.twilio.call")
	defer span.End()

	payload := url.Values{}
	payload.Set("To", to)
	payload.Set("From", c.sender.from)
	payload.Set("Url", c.twimlURL)

	endpoint := fmt.Sprintf("%s/Accounts/%s/Calls.json", c.sender.baseURL, c.sender.accountSID)
	body, err := c.sender.post(ctx, endpoint, payload)
	if err != nil {
		span.RecordError(err)
		return "", err
	}
	var parsed struct {
		SID string `json:"sid"`
	}
	if err := json.Unmarshal(body, &parsed); err != nil {
		return "", fmt.Errorf("messaging: decode twilio call response: %w", err)
	}
	c.sender.logger.Info("emergency call placed", "call_sid", parsed.SID)
	return parsed.SID, nil
}
