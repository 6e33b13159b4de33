package interactions

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/wolfman30/medspa-sms-triage/internal/triage"
	"github.com/wolfman30/medspa-sms-triage/pkg/logging"
)

const defaultRecordTimeout = 5 * time.Second

// Recorder implements triage.Recorder on top of a Store.
type Recorder struct {
	store   Store
	logger  *logging.Logger
	timeout time.Duration
	now     func() time.Time
}

func NewRecorder(store Store, logger *logging.Logger) *Recorder {
	if store == nil {
		panic("interactions: store required")
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &Recorder{
		store:   store,
		logger:  logger.WithComponent("interactions"),
		timeout: defaultRecordTimeout,
		now:     time.Now,
	}
}

// Record upserts the conversation and appends one log entry. recorded is false when the
// provider message id was already logged.
func (r *Recorder) Record(ctx context.Context, msg triage.InboundMessage, c triage.Classification, path triage.HandlingPath, pctx triage.PatientContext, autoResponse string) (bool, error) {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	at := msg.ReceivedAt
	if at.IsZero() {
		at = r.now()
	}
	at = at.UTC()
	conversationID := triage.ConversationID(msg.From)

	err := r.store.UpsertConversation(ctx, triage.Conversation{
		ID:              conversationID,
		PatientID:       pctx.PatientID,
		PatientPhone:    msg.From,
		LastMessageBody: msg.Body,
		LastMessageAt:   at,
		Channel:         ChannelSMS,
		Status:          ConversationActive,
	})
	if err != nil {
		// The audit entry is still worth writing on its own.
		r.logger.Error("failed to upsert conversation", "error", err, "conversation_id", conversationID)
	}

	sid := strings.TrimSpace(msg.ProviderMessageID)
	if sid == "" {
		sid = "local-" + uuid.NewString()
	}
	appended, appendErr := r.store.AppendEntry(ctx, triage.InteractionLogEntry{
		ConversationID:    conversationID,
		ProviderMessageID: sid,
		PatientPhone:      msg.From,
		InboundBody:       msg.Body,
		Classification:    c,
		Path:              path.String(),
		AutoResponse:      autoResponse,
		Timestamp:         at,
	})
	if appendErr != nil {
		return false, fmt.Errorf("interactions: append entry: %w", appendErr)
	}
	if !appended {
		r.logger.Info("interaction already logged", "message_sid", sid)
	}
	if err != nil {
		return appended, fmt.Errorf("interactions: upsert conversation: %w", err)
	}
	return appended, nil
}
