package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wolfman30/medspa-sms-triage/internal/delivery"
	"github.com/wolfman30/medspa-sms-triage/internal/interactions"
	"github.com/wolfman30/medspa-sms-triage/internal/messaging"
	"github.com/wolfman30/medspa-sms-triage/internal/triage"
)

type brokenReader struct{}

func (brokenReader) GetConversation(context.Context, string) (triage.Conversation, error) {
	return triage.Conversation{}, errors.New("db down")
}

func (brokenReader) ListInteractions(context.Context, string, int) ([]triage.InteractionLogEntry, error) {
	return nil, errors.New("db down")
}

func newAdminRouter(t *testing.T, conversations ConversationReader, messages MessageReader) http.Handler {
	t.Helper()
	h := NewAdminTriageHandler(conversations, messages, nil)
	r := chi.NewRouter()
	r.Get("/admin/conversations/{phone}", h.GetConversation)
	r.Get("/admin/conversations/{phone}/interactions", h.ListInteractions)
	r.Get("/admin/messages/{sid}", h.GetMessage)
	return r
}

func seededInteractions(t *testing.T) *interactions.MemoryStore {
	t.Helper()
	store := interactions.NewMemoryStore()
	rec := interactions.NewRecorder(store, nil)
	at := time.Date(2026, 3, 2, 15, 0, 0, 0, time.UTC)
	for i, body := range []string{"C", "how much is botox"} {
		msg := triage.InboundMessage{
			ProviderMessageID: []string{"SM1", "SM2"}[i],
			From:              "+15551234567",
			Body:              body,
			ReceivedAt:        at.Add(time.Duration(i) * time.Minute),
		}
		_, err := rec.Record(context.Background(), msg, triage.Classification{}, triage.HandlingPath{Kind: triage.PathSilent}, triage.PatientContext{PatientID: "p1"}, "")
		require.NoError(t, err)
	}
	return store
}

func TestAdminGetConversation(t *testing.T) {
	router := newAdminRouter(t, seededInteractions(t), delivery.NewMemoryStatusStore())

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/admin/conversations/%2B15551234567", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	var resp ConversationResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	assert.Equal(t, "sms:15551234567", resp.ID)
	assert.Equal(t, "p1", resp.PatientID)
	assert.Equal(t, "how much is botox", resp.LastMessageBody)
	assert.Equal(t, "2026-03-02T15:01:00Z", resp.LastMessageAt)
}

func TestAdminGetConversationNormalizesPhone(t *testing.T) {
	router := newAdminRouter(t, seededInteractions(t), delivery.NewMemoryStatusStore())

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/admin/conversations/5551234567", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestAdminGetConversationErrors(t *testing.T) {
	router := newAdminRouter(t, seededInteractions(t), delivery.NewMemoryStatusStore())

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/admin/conversations/15550000000", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/admin/conversations/abc", nil))
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	broken := newAdminRouter(t, brokenReader{}, delivery.NewMemoryStatusStore())
	rec = httptest.NewRecorder()
	broken.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/admin/conversations/15551234567", nil))
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
}

func TestAdminListInteractions(t *testing.T) {
	router := newAdminRouter(t, seededInteractions(t), delivery.NewMemoryStatusStore())

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/admin/conversations/15551234567/interactions?limit=1", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	var resp InteractionsResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	assert.Equal(t, "sms:15551234567", resp.ConversationID)
	require.Len(t, resp.Interactions, 1)
	assert.Equal(t, "SM2", resp.Interactions[0].ProviderMessageID)

	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/admin/conversations/15551234567/interactions?limit=-3", nil))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestAdminListInteractionsEmpty(t *testing.T) {
	router := newAdminRouter(t, interactions.NewMemoryStore(), delivery.NewMemoryStatusStore())

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/admin/conversations/15551234567/interactions", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"interactions":[]`)
}

func TestAdminGetMessage(t *testing.T) {
	statuses := delivery.NewMemoryStatusStore()
	at := time.Date(2026, 3, 2, 15, 0, 0, 0, time.UTC)
	require.NoError(t, statuses.RecordOutbound(context.Background(), messaging.MessageRecord{ProviderMessageID: "SM9", To: "+15551234567", StatusAt: at}))
	_, err := statuses.ApplyStatus(context.Background(), triage.DeliveryStatusEvent{
		ProviderMessageID: "SM9", Status: "undelivered", ErrorCode: "30003", ObservedAt: at.Add(time.Minute),
	})
	require.NoError(t, err)
	router := newAdminRouter(t, interactions.NewMemoryStore(), statuses)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/admin/messages/SM9", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	var resp MessageStatusResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	assert.Equal(t, "undelivered", resp.Status)
	assert.Equal(t, "30003", resp.ErrorCode)
	require.NotNil(t, resp.FailedAt)
	assert.Nil(t, resp.DeliveredAt)

	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/admin/messages/SM404", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}
