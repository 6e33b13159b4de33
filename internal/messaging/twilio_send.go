package messaging

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/wolfman30/medspa-sms-triage/pkg/logging"
)

var twilioSendTracer = otel.Tracer("medspa.internal.messaging.twilio_send")

const defaultTwilioBaseURL = "https://api.twilio.com/2010-04-01"

// Priority tags outbound messages for downstream routing.
type Priority string

const (
	PriorityNormal Priority = "normal"
	PriorityHigh   Priority = "high"
	PriorityUrgent Priority = "urgent"
)

// OutboundSMS is a single patient-facing message.
type OutboundSMS struct {
	To             string
	From           string
	Body           string
	ConversationID string
	Priority       Priority
	Metadata       map[string]string
}

// SendResult carries the provider's acknowledgement of a send.
type SendResult struct {
	ProviderMessageID string
	Status            string
}

// Sender delivers outbound SMS.
type Sender interface {
	SendSMS(ctx context.Context, msg OutboundSMS) (SendResult, error)
}

// TwilioSender posts SMS messages using Twilio's REST API. It makes exactly one attempt per
// message; callers decide what a failure means.
type TwilioSender struct {
	accountSID string
	authToken  string
	from       string
	baseURL    string
	httpClient *http.Client
	logger     *logging.Logger
}

// NewTwilioSender builds a sender with sane defaults.
func NewTwilioSender(accountSID, authToken, defaultFrom string, logger *logging.Logger) *TwilioSender {
	if logger == nil {
		logger = logging.Default()
	}
	return &TwilioSender{
		accountSID: accountSID,
		authToken:  authToken,
		from:       defaultFrom,
		baseURL:    defaultTwilioBaseURL,
		httpClient: &http.Client{
			Timeout: 10 * time.Second,
		},
		logger: logger,
	}
}

// WithBaseURL points the sender at another API root. Used by tests.
func (s *TwilioSender) WithBaseURL(base string) *TwilioSender {
	s.baseURL = strings.TrimRight(base, "/")
	return s
}

func (s *TwilioSender) SendSMS(ctx context.Context, msg OutboundSMS) (SendResult, error) {
	if s.accountSID == "" || s.authToken == "" {
		return SendResult{}, errors.New("messaging: twilio credentials missing")
	}
	if msg.To == "" {
		return SendResult{}, errors.New("messaging: to required")
	}
	if msg.From == "" {
		msg.From = s.from
	}
	if msg.From == "" {
		return SendResult{}, errors.New("messaging: from required")
	}
	if strings.TrimSpace(msg.Body) == "" {
		return SendResult{}, errors.New("messaging: body required")
	}

	ctx, span := twilioSendTracer.Start(ctx, "messaging.twilio.send")
	defer span.End()
	span.SetAttributes(
		attribute.String("medspa.conversation_id", msg.ConversationID),
		attribute.String("medspa.priority", string(msg.Priority)),
	)

	payload := url.Values{}
	payload.Set("To", msg.To)
	payload.Set("From", msg.From)
	payload.Set("Body", msg.Body)

	endpoint := fmt.Sprintf("%s/Accounts/%s/Messages.json", s.baseURL, s.accountSID)
	body, err := s.post(ctx, endpoint, payload)
	if err != nil {
		span.RecordError(err)
		return SendResult{}, err
	}

	var parsed struct {
		SID    string `json:"sid"`
		Status string `json:"status"`
	}
	if err := json.Unmarshal(body, &parsed); err != nil {
		return SendResult{}, fmt.Errorf("messaging: decode twilio response: %w", err)
	}
	s.logger.Info("twilio sms sent", "conversation_id", msg.ConversationID, "message_sid", parsed.SID, "priority", string(msg.Priority))
	return SendResult{ProviderMessageID: parsed.SID, Status: parsed.Status}, nil
}

func (s *TwilioSender) post(ctx context.Context, endpoint string, payload url.Values) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(payload.Encode()))
	if err != nil {
		return nil, fmt.Errorf("messaging: build twilio request: %w", err)
	}
	req.SetBasicAuth(s.accountSID, s.authToken)
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("messaging: twilio request: %w", err)
	}
	defer resp.Body.Close()
	body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("twilio send failed: %s", formatTwilioError(resp.StatusCode, body))
	}
	return body, nil
}

type twilioAPIError struct {
	Code     int    `json:"code"`
	Message  string `json:"message"`
	MoreInfo string `json:"more_info"`
	Status   int    `json:"status"`
}

func formatTwilioError(status int, body []byte) string {
	trimmed := strings.TrimSpace(string(body))
	if trimmed == "" {
		return fmt.Sprintf("status %d", status)
	}
	var parsed twilioAPIError
	if err := json.Unmarshal([]byte(trimmed), &parsed); err == nil && parsed.Message != "" {
		if parsed.Code != 0 {
			return fmt.Sprintf("status %d code %d: %s", status, parsed.Code, parsed.Message)
		}
		return fmt.Sprintf("status %d: %s", status, parsed.Message)
	}
	return fmt.Sprintf("status %d: %s", status, trimmed)
}

// LogSender logs messages instead of sending them. Used when no provider credentials are configured.
type LogSender struct {
	logger *logging.Logger
}

func NewLogSender(logger *logging.Logger) *LogSender {
	if logger == nil {
		logger = logging.Default()
	}
	return &LogSender{logger: logger}
}

func (s *LogSender) SendSMS(_ context.Context, msg OutboundSMS) (SendResult, error) {
	sid := "LOG" + strings.ReplaceAll(uuid.NewString(), "-", "")
	s.logger.Info("sms send skipped (log sender)", "to", msg.To, "conversation_id", msg.ConversationID, "body", msg.Body)
	return SendResult{ProviderMessageID: sid, Status: "queued"}, nil
}
