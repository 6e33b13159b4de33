package messaging

import (
	"net/url"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalizeInboundMessage(t *testing.T) {
	now := time.Date(2026, 3, 2, 15, 0, 0, 0, time.UTC)
	form := url.Values{
		"MessageSid":  {"SM123"},
		"From":        {"+15551234567"},
		"To":          {"+15559876543"},
		"Body":        {"My face feels numb after the filler"},
		"NumMedia":    {"2"},
		"MediaUrl0":   {"https://media/0"},
		"MediaUrl1":   {"https://media/1"},
		"FromCity":    {"AUSTIN"},
		"FromState":   {"TX"},
		"FromCountry": {"US"},
	}

	cb := Normalize(form, now)

	require.Equal(t, CallbackMessage, cb.Kind())
	require.NotNil(t, cb.Message)
	assert.Nil(t, cb.Status)
	assert.Equal(t, "SM123", cb.Message.ProviderMessageID)
	assert.Equal(t, "+15551234567", cb.Message.From)
	assert.Equal(t, 2, cb.Message.MediaCount)
	assert.Equal(t, []string{"https://media/0", "https://media/1"}, cb.Message.MediaRefs)
	assert.Equal(t, "AUSTIN", cb.Message.FromCity)
	assert.Equal(t, now, cb.Message.ReceivedAt)
}

func TestNormalizeDefensiveMediaCount(t *testing.T) {
	for _, raw := range []string{"abc", "-3", ""} {
		cb := Normalize(url.Values{"MessageSid": {"SM1"}, "NumMedia": {raw}}, time.Now())
		require.NotNil(t, cb.Message)
		assert.Zero(t, cb.Message.MediaCount, raw)
		assert.Empty(t, cb.Message.MediaRefs)
	}
}

func TestNormalizeCapsMediaCount(t *testing.T) {
	form := url.Values{"MessageSid": {"SM1"}, "NumMedia": {"2000000000"}, "MediaUrl0": {"https://media/0"}, "MediaUrl10": {"https://media/10"}}

	done := make(chan Callback, 1)
	go func() { done <- Normalize(form, time.Now()) }()

	select {
	case cb := <-done:
		require.NotNil(t, cb.Message)
		assert.Equal(t, MaxMediaPerMessage, cb.Message.MediaCount)
		assert.Equal(t, []string{"https://media/0"}, cb.Message.MediaRefs)
	case <-time.After(time.Second):
		t.Fatal("Normalize did not return for a huge NumMedia")
	}
}

func TestNormalizeEmptyPayload(t *testing.T) {
	cb := Normalize(url.Values{}, time.Now())
	require.NotNil(t, cb.Message)
	assert.Equal(t, "", cb.Message.ProviderMessageID)
	assert.Equal(t, "", cb.Message.Body)
}

func TestNormalizeStatusCallback(t *testing.T) {
	now := time.Date(2026, 3, 2, 15, 0, 0, 0, time.UTC)
	form := url.Values{
		"MessageSid":    {"SM999"},
		"MessageStatus": {"Failed"},
		"ErrorCode":     {"30003"},
		"ErrorMessage":  {"Unreachable destination handset"},
		"To":            {"+15551234567"},
		"Body":          {"ignored"},
	}

	cb := Normalize(form, now)

	require.Equal(t, CallbackStatus, cb.Kind())
	require.NotNil(t, cb.Status)
	assert.Nil(t, cb.Message)
	assert.Equal(t, "failed", cb.Status.Status)
	assert.Equal(t, "30003", cb.Status.ErrorCode)
	assert.Equal(t, now, cb.Status.ObservedAt)
}

func TestNormalizeStatusTimestamp(t *testing.T) {
	form := url.Values{
		"MessageSid":    {"SM1"},
		"MessageStatus": {"delivered"},
		"Timestamp":     {"Mon, 02 Mar 2026 14:59:00 +0000"},
	}
	cb := Normalize(form, time.Now())
	require.NotNil(t, cb.Status)
	assert.Equal(t, time.Date(2026, 3, 2, 14, 59, 0, 0, time.UTC), cb.Status.ObservedAt)
}
