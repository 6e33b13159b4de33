package messaging

import (
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func signedRequest(t *testing.T, token, target string, form url.Values) *http.Request {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, target, strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set(SignatureHeader, SignForTest(token, target, form))
	return req
}

func TestVerifierAcceptsValidSignature(t *testing.T) {
	form := url.Values{"MessageSid": {"SM1"}, "Body": {"hello"}, "From": {"+15551234567"}}
	target := "https://example.com/webhooks/twilio/sms"
	req := signedRequest(t, "secret", target, form)

	v := Verifier{Production: true, AuthToken: "secret"}
	assert.True(t, v.Verify(req, form, target))
}

func TestVerifierRejects(t *testing.T) {
	form := url.Values{"MessageSid": {"SM1"}, "Body": {"hello"}}
	target := "https://example.com/webhooks/twilio/sms"

	tampered := signedRequest(t, "secret", target, form)
	tamperedForm := url.Values{"MessageSid": {"SM1"}, "Body": {"hello!"}}

	missing := httptest.NewRequest(http.MethodPost, target, nil)

	tests := []struct {
		name   string
		v      Verifier
		req    *http.Request
		form   url.Values
		target string
	}{
		{name: "tampered body", v: Verifier{Production: true, AuthToken: "secret"}, req: tampered, form: tamperedForm, target: target},
		{name: "wrong secret", v: Verifier{Production: true, AuthToken: "other"}, req: tampered, form: form, target: target},
		{name: "wrong url", v: Verifier{Production: true, AuthToken: "secret"}, req: tampered, form: form, target: "https://evil.example.com/webhooks/twilio/sms"},
		{name: "missing header", v: Verifier{Production: true, AuthToken: "secret"}, req: missing, form: form, target: target},
		{name: "empty secret", v: Verifier{Production: true}, req: tampered, form: form, target: target},
		{name: "nil request", v: Verifier{Production: true, AuthToken: "secret"}, req: nil, form: form, target: target},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.False(t, tt.v.Verify(tt.req, tt.form, tt.target))
		})
	}
}

func TestVerifierBypassOutsideProduction(t *testing.T) {
	req := httptest.NewRequest(http.MethodPost, "/webhooks/twilio/sms", nil)
	assert.True(t, Verifier{Production: false}.Verify(req, url.Values{}, ""))
}

func TestWebhookURL(t *testing.T) {
	req := httptest.NewRequest(http.MethodPost, "/webhooks/twilio/sms?x=1", nil)
	req.Host = "internal:8080"
	assert.Equal(t, "http://internal:8080/webhooks/twilio/sms?x=1", WebhookURL(req, ""))

	req.Header.Set("X-Forwarded-Proto", "https")
	req.Header.Set("X-Forwarded-Host", "sms.example.com")
	assert.Equal(t, "https://sms.example.com/webhooks/twilio/sms?x=1", WebhookURL(req, ""))

	assert.Equal(t, "https://public.example.com/webhooks/twilio/sms?x=1", WebhookURL(req, "https://public.example.com/"))
}

func TestNormalizeE164(t *testing.T) {
	assert.Equal(t, "+15551234567", NormalizeE164("(555) 123-4567"))
	assert.Equal(t, "+15551234567", NormalizeE164("+1 555 123 4567"))
	assert.Equal(t, "+442071838750", NormalizeE164("+44 20 7183 8750"))
	assert.Equal(t, "", NormalizeE164("  "))
	assert.Equal(t, "", NormalizeE164("abc"))
}
