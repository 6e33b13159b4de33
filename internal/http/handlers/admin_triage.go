package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/wolfman30/medspa-sms-triage/internal/interactions"
	"github.com/wolfman30/medspa-sms-triage/internal/messaging"
	"github.com/wolfman30/medspa-sms-triage/internal/triage"
	"github.com/wolfman30/medspa-sms-triage/pkg/logging"
)

const (
	defaultInteractionLimit = 50
	maxInteractionLimit     = 200
)

// ConversationReader is the read side of the interaction log.
type ConversationReader interface {
	GetConversation(ctx context.Context, phone string) (triage.Conversation, error)
	ListInteractions(ctx context.Context, phone string, limit int) ([]triage.InteractionLogEntry, error)
}

// MessageReader loads the tracked delivery state of an outbound message.
type MessageReader interface {
	GetMessage(ctx context.Context, providerMessageID string) (messaging.MessageRecord, error)
}

// AdminTriageHandler serves the staff read API over conversations, the audit log and delivery state.
type AdminTriageHandler struct {
	conversations ConversationReader
	messages      MessageReader
	logger        *logging.Logger
}

func NewAdminTriageHandler(conversations ConversationReader, messages MessageReader, logger *logging.Logger) *AdminTriageHandler {
	if logger == nil {
		logger = logging.Default()
	}
	return &AdminTriageHandler{conversations: conversations, messages: messages, logger: logger.WithComponent("admin")}
}

// ConversationResponse is the JSON shape of GET /admin/conversations/{phone}.
type ConversationResponse struct {
	ID              string `json:"id"`
	PatientID       string `json:"patient_id,omitempty"`
	PatientPhone    string `json:"patient_phone"`
	LastMessageBody string `json:"last_message_body"`
	LastMessageAt   string `json:"last_message_at"`
	Channel         string `json:"channel"`
	Status          string `json:"status"`
}

// InteractionsResponse is the JSON shape of GET /admin/conversations/{phone}/interactions.
type InteractionsResponse struct {
	ConversationID string                       `json:"conversation_id"`
	Interactions   []triage.InteractionLogEntry `json:"interactions"`
}

// MessageStatusResponse is the JSON shape of GET /admin/messages/{sid}.
type MessageStatusResponse struct {
	MessageSID     string  `json:"message_sid"`
	ConversationID string  `json:"conversation_id,omitempty"`
	To             string  `json:"to"`
	Status         string  `json:"status"`
	ErrorCode      string  `json:"error_code,omitempty"`
	ErrorMessage   string  `json:"error_message,omitempty"`
	StatusAt       string  `json:"status_at"`
	DeliveredAt    *string `json:"delivered_at,omitempty"`
	FailedAt       *string `json:"failed_at,omitempty"`
}

func (h *AdminTriageHandler) GetConversation(w http.ResponseWriter, r *http.Request) {
	phone, ok := phoneParam(w, r)
	if !ok {
		return
	}
	conv, err := h.conversations.GetConversation(r.Context(), phone)
	if errors.Is(err, interactions.ErrNotFound) {
		jsonError(w, http.StatusNotFound, "conversation not found")
		return
	}
	if err != nil {
		h.logger.Error("failed to load conversation", "error", err, "conversation_id", triage.ConversationID(phone))
		jsonError(w, http.StatusInternalServerError, "failed to load conversation")
		return
	}
	writeJSON(w, http.StatusOK, ConversationResponse{
		ID:              conv.ID,
		PatientID:       conv.PatientID,
		PatientPhone:    conv.PatientPhone,
		LastMessageBody: conv.LastMessageBody,
		LastMessageAt:   conv.LastMessageAt.UTC().Format(time.RFC3339),
		Channel:         conv.Channel,
		Status:          conv.Status,
	})
}

func (h *AdminTriageHandler) ListInteractions(w http.ResponseWriter, r *http.Request) {
	phone, ok := phoneParam(w, r)
	if !ok {
		return
	}
	limit := defaultInteractionLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			jsonError(w, http.StatusBadRequest, "limit must be a positive integer")
			return
		}
		limit = min(n, maxInteractionLimit)
	}
	entries, err := h.conversations.ListInteractions(r.Context(), phone, limit)
	if err != nil {
		h.logger.Error("failed to list interactions", "error", err, "conversation_id", triage.ConversationID(phone))
		jsonError(w, http.StatusInternalServerError, "failed to list interactions")
		return
	}
	if entries == nil {
		entries = []triage.InteractionLogEntry{}
	}
	writeJSON(w, http.StatusOK, InteractionsResponse{ConversationID: triage.ConversationID(phone), Interactions: entries})
}

func (h *AdminTriageHandler) GetMessage(w http.ResponseWriter, r *http.Request) {
	sid := strings.TrimSpace(chi.URLParam(r, "sid"))
	if sid == "" {
		jsonError(w, http.StatusBadRequest, "message sid required")
		return
	}
	rec, err := h.messages.GetMessage(r.Context(), sid)
	if errors.Is(err, messaging.ErrMessageNotFound) {
		jsonError(w, http.StatusNotFound, "message not found")
		return
	}
	if err != nil {
		h.logger.Error("failed to load message", "error", err, "message_sid", sid)
		jsonError(w, http.StatusInternalServerError, "failed to load message")
		return
	}
	writeJSON(w, http.StatusOK, MessageStatusResponse{
		MessageSID:     rec.ProviderMessageID,
		ConversationID: rec.ConversationID,
		To:             rec.To,
		Status:         rec.Status,
		ErrorCode:      rec.ErrorCode,
		ErrorMessage:   rec.ErrorMessage,
		StatusAt:       rec.StatusAt.UTC().Format(time.RFC3339),
		DeliveredAt:    formatOptional(rec.DeliveredAt),
		FailedAt:       formatOptional(rec.FailedAt),
	})
}

func phoneParam(w http.ResponseWriter, r *http.Request) (string, bool) {
	raw, err := url.PathUnescape(chi.URLParam(r, "phone"))
	if err != nil {
		jsonError(w, http.StatusBadRequest, "invalid phone")
		return "", false
	}
	phone := messaging.NormalizeE164(raw)
	if phone == "" {
		jsonError(w, http.StatusBadRequest, "invalid phone")
		return "", false
	}
	return phone, true
}

func formatOptional(t *time.Time) *string {
	if t == nil {
		return nil
	}
	s := t.UTC().Format(time.RFC3339)
	return &s
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func jsonError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}
