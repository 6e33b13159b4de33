package main

import (
	"context"
	"encoding/base64"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/aws/aws-lambda-go/events"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wolfman30/medspa-sms-triage/pkg/logging"
)

func newEvent(method, path string) events.APIGatewayV2HTTPRequest {
	return events.APIGatewayV2HTTPRequest{
		RawPath: path,
		RequestContext: events.APIGatewayV2HTTPRequestContext{
			HTTP: events.APIGatewayV2HTTPRequestContextHTTPDescription{Method: method, Path: path},
		},
	}
}

func testRelay(upstream string) *relay {
	return &relay{
		upstream: upstream,
		timeout:  time.Second,
		client:   &http.Client{Timeout: time.Second},
		logger:   logging.New("error"),
	}
}

func TestHandleRejections(t *testing.T) {
	r := testRelay("http://example.invalid")

	tests := []struct {
		name   string
		evt    events.APIGatewayV2HTTPRequest
		status int
	}{
		{"health", newEvent(http.MethodGet, "/health"), http.StatusOK},
		{"unknown path", newEvent(http.MethodPost, "/webhooks/twilio/voice"), http.StatusNotFound},
		{"wrong method", newEvent(http.MethodGet, "/webhooks/twilio/sms"), http.StatusMethodNotAllowed},
		{"bad base64", func() events.APIGatewayV2HTTPRequest {
			e := newEvent(http.MethodPost, "/webhooks/twilio/sms")
			e.Body, e.IsBase64Encoded = "%%%", true
			return e
		}(), http.StatusBadRequest},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			resp, err := r.handle(context.Background(), tc.evt)
			require.NoError(t, err)
			assert.Equal(t, tc.status, resp.StatusCode)
		})
	}
}

func TestHandleForwardsSMSWebhook(t *testing.T) {
	var got *http.Request
	var gotBody string
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		b, _ := io.ReadAll(req.Body)
		got, gotBody = req.Clone(context.Background()), string(b)
		w.WriteHeader(http.StatusOK)
	}))
	defer upstream.Close()

	evt := newEvent(http.MethodPost, "/webhooks/twilio/sms")
	evt.Body = base64.StdEncoding.EncodeToString([]byte("MessageSid=SM1&Body=hi"))
	evt.IsBase64Encoded = true
	evt.RequestContext.DomainName = "sms.example.com"
	evt.Headers = map[string]string{
		"Content-Type":       "application/x-www-form-urlencoded",
		"X-Twilio-Signature": "sig==",
	}

	resp, err := testRelay(upstream.URL).handle(context.Background(), evt)
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Empty(t, resp.Body)

	require.NotNil(t, got)
	assert.Equal(t, "/webhooks/twilio/sms", got.URL.Path)
	assert.Equal(t, "MessageSid=SM1&Body=hi", gotBody)
	assert.Equal(t, "sig==", got.Header.Get("X-Twilio-Signature"))
	assert.Equal(t, "application/x-www-form-urlencoded", got.Header.Get("Content-Type"))
	assert.Equal(t, "sms.example.com", got.Header.Get("X-Forwarded-Host"))
	assert.Equal(t, "https", got.Header.Get("X-Forwarded-Proto"))
}

func TestHandleUpstreamDown(t *testing.T) {
	upstream := httptest.NewServer(http.NotFoundHandler())
	url := upstream.URL
	upstream.Close()

	resp, err := testRelay(url).handle(context.Background(), newEvent(http.MethodPost, "/messaging/twilio/webhook"))
	require.NoError(t, err)
	assert.Equal(t, http.StatusBadGateway, resp.StatusCode)
}

func TestLoadRelay(t *testing.T) {
	t.Setenv("UPSTREAM_BASE_URL", "")
	_, err := loadRelay(logging.New("error"))
	assert.Error(t, err)

	t.Setenv("UPSTREAM_BASE_URL", "https://api.example.com/")
	t.Setenv("UPSTREAM_TIMEOUT", "3s")
	r, err := loadRelay(logging.New("error"))
	require.NoError(t, err)
	assert.Equal(t, "https://api.example.com", r.upstream)
	assert.Equal(t, 3*time.Second, r.timeout)

	t.Setenv("UPSTREAM_TIMEOUT", "soon")
	_, err = loadRelay(logging.New("error"))
	assert.Error(t, err)
}
