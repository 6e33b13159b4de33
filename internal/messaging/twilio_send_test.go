package messaging

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wolfman30/medspa-sms-triage/pkg/logging"
)

func quietLogger() *logging.Logger {
	return logging.NewWithWriter("error", io.Discard)
}

func TestTwilioSenderSendSMS(t *testing.T) {
	var gotForm url.Values
	var gotPath string
	calls := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		gotPath = r.URL.Path
		user, pass, ok := r.BasicAuth()
		assert.True(t, ok)
		assert.Equal(t, "AC123", user)
		assert.Equal(t, "token", pass)
		require.NoError(t, r.ParseForm())
		gotForm = r.PostForm
		w.WriteHeader(http.StatusCreated)
		_, _ = w.Write([]byte(`{"sid":"SM42","status":"queued"}`))
	}))
	defer srv.Close()

	sender := NewTwilioSender("AC123", "token", "+15550000000", quietLogger()).WithBaseURL(srv.URL)
	res, err := sender.SendSMS(context.Background(), OutboundSMS{To: "+15551234567", Body: "hello", ConversationID: "sms:15551234567"})

	require.NoError(t, err)
	assert.Equal(t, "SM42", res.ProviderMessageID)
	assert.Equal(t, "queued", res.Status)
	assert.Equal(t, "/Accounts/AC123/Messages.json", gotPath)
	assert.Equal(t, "+15550000000", gotForm.Get("From"))
	assert.Equal(t, "hello", gotForm.Get("Body"))
	assert.Equal(t, 1, calls)
}

func TestTwilioSenderDoesNotRetry(t *testing.T) {
	calls := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.WriteHeader(http.StatusServiceUnavailable)
		_, _ = w.Write([]byte(`{"code":20003,"message":"unavailable"}`))
	}))
	defer srv.Close()

	sender := NewTwilioSender("AC123", "token", "+15550000000", quietLogger()).WithBaseURL(srv.URL)
	_, err := sender.SendSMS(context.Background(), OutboundSMS{To: "+15551234567", Body: "hello"})

	require.Error(t, err)
	assert.Contains(t, err.Error(), "code 20003")
	assert.Equal(t, 1, calls)
}

func TestTwilioSenderValidation(t *testing.T) {
	ctx := context.Background()
	_, err := NewTwilioSender("", "", "", quietLogger()).SendSMS(ctx, OutboundSMS{To: "+1", Body: "x"})
	assert.ErrorContains(t, err, "credentials")

	s := NewTwilioSender("AC", "tok", "", quietLogger())
	_, err = s.SendSMS(ctx, OutboundSMS{To: "+1", Body: "x"})
	assert.ErrorContains(t, err, "from required")

	_, err = s.SendSMS(ctx, OutboundSMS{To: "+1", From: "+2", Body: "  "})
	assert.ErrorContains(t, err, "body required")
}

func TestTwilioVoiceCaller(t *testing.T) {
	var gotForm url.Values
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.True(t, strings.HasSuffix(r.URL.Path, "/Calls.json"))
		require.NoError(t, r.ParseForm())
		gotForm = r.PostForm
		w.WriteHeader(http.StatusCreated)
		_, _ = w.Write([]byte(`{"sid":"CA1"}`))
	}))
	defer srv.Close()

	sender := NewTwilioSender("AC123", "token", "+15550000000", quietLogger()).WithBaseURL(srv.URL)
	caller := NewTwilioVoiceCaller(sender, "https://example.com/twiml/emergency.xml")

	sid, err := caller.Call(context.Background(), "+15551234567")
	require.NoError(t, err)
	assert.Equal(t, "CA1", sid)
	assert.Equal(t, "https://example.com/twiml/emergency.xml", gotForm.Get("Url"))

	_, err = NewTwilioVoiceCaller(sender, "").Call(context.Background(), "+15551234567")
	assert.Error(t, err)
}

func TestLogSender(t *testing.T) {
	res, err := NewLogSender(quietLogger()).SendSMS(context.Background(), OutboundSMS{To: "+1555", Body: "hi"})
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(res.ProviderMessageID, "LOG"))
}
