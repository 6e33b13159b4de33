package router

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wolfman30/medspa-sms-triage/internal/delivery"
	"github.com/wolfman30/medspa-sms-triage/internal/http/handlers"
	httpmiddleware "github.com/wolfman30/medspa-sms-triage/internal/http/middleware"
	"github.com/wolfman30/medspa-sms-triage/internal/interactions"
	"github.com/wolfman30/medspa-sms-triage/internal/messaging"
	"github.com/wolfman30/medspa-sms-triage/internal/triage"
	"github.com/wolfman30/medspa-sms-triage/pkg/logging"
)

const adminSecret = "admin-secret"

type countingProcessor struct {
	mu       sync.Mutex
	messages int
	statuses int
}

func (p *countingProcessor) HandleMessage(_ context.Context, msg triage.InboundMessage) triage.Outcome {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.messages++
	return triage.Outcome{ConversationID: triage.ConversationID(msg.From)}
}

func (p *countingProcessor) HandleStatus(context.Context, triage.DeliveryStatusEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.statuses++
	return nil
}

func newTestRouter(t *testing.T, p messaging.CallbackProcessor, limiter *httpmiddleware.RateLimiter) http.Handler {
	t.Helper()
	logger := logging.NewWithWriter("error", &strings.Builder{})
	return New(&Config{
		Logger: logger,
		MessagingHandler: messaging.NewHandler(messaging.HandlerConfig{
			Verifier:  messaging.Verifier{},
			Processor: p,
			Logger:    logger,
		}),
		AdminHandler:    handlers.NewAdminTriageHandler(interactions.NewMemoryStore(), delivery.NewMemoryStatusStore(), logger),
		AdminAuthSecret: adminSecret,
		WebhookLimiter:  limiter,
	})
}

func smsForm() url.Values {
	form := url.Values{}
	form.Set("MessageSid", "SM123")
	form.Set("From", "+15551234567")
	form.Set("To", "+15559990000")
	form.Set("Body", "Hi there")
	return form
}

func postForm(router http.Handler, path string, form url.Values) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)
	return rr
}

func TestRouterHealthEndpoint(t *testing.T) {
	router := newTestRouter(t, &countingProcessor{}, nil)

	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/health", nil))

	require.Equal(t, http.StatusOK, rr.Code)
	var resp map[string]string
	require.NoError(t, json.NewDecoder(rr.Body).Decode(&resp))
	assert.Equal(t, "ok", resp["status"])
}

func TestRouterWebhookPaths(t *testing.T) {
	p := &countingProcessor{}
	router := newTestRouter(t, p, nil)

	for _, path := range []string{"/webhooks/twilio/sms", "/messaging/twilio/webhook"} {
		rr := postForm(router, path, smsForm())
		assert.Equal(t, http.StatusOK, rr.Code, path)
		assert.Empty(t, rr.Body.String(), path)
	}
	assert.Equal(t, 2, p.messages)
}

func TestRouterWebhookRateLimited(t *testing.T) {
	router := newTestRouter(t, &countingProcessor{}, httpmiddleware.NewRateLimiter(0.01, 1))

	assert.Equal(t, http.StatusOK, postForm(router, "/webhooks/twilio/sms", smsForm()).Code)
	assert.Equal(t, http.StatusTooManyRequests, postForm(router, "/webhooks/twilio/sms", smsForm()).Code)
}

func TestRouterAdminRequiresToken(t *testing.T) {
	router := newTestRouter(t, &countingProcessor{}, nil)

	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/admin/messages/SM1", nil))
	assert.Equal(t, http.StatusUnauthorized, rr.Code)

	claims := jwt.RegisteredClaims{Subject: "staff-1", ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Minute))}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(adminSecret))
	require.NoError(t, err)
	req := httptest.NewRequest(http.MethodGet, "/admin/messages/SM1", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rr = httptest.NewRecorder()
	router.ServeHTTP(rr, req)
	assert.Equal(t, http.StatusNotFound, rr.Code)
}

func TestRouterAdminDisabledWithoutSecret(t *testing.T) {
	logger := logging.NewWithWriter("error", &strings.Builder{})
	router := New(&Config{
		Logger:           logger,
		MessagingHandler: messaging.NewHandler(messaging.HandlerConfig{Processor: &countingProcessor{}, Logger: logger}),
		AdminHandler:     handlers.NewAdminTriageHandler(interactions.NewMemoryStore(), delivery.NewMemoryStatusStore(), logger),
	})

	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/admin/messages/SM1", nil))
	assert.Equal(t, http.StatusNotFound, rr.Code)
}
