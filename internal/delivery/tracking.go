package delivery

import (
	"context"

	"github.com/wolfman30/medspa-sms-triage/internal/messaging"
	"github.com/wolfman30/medspa-sms-triage/pkg/logging"
)

// TrackingSender records every accepted send as queued so later status callbacks have a row to update.
type TrackingSender struct {
	next   messaging.Sender
	store  StatusStore
	logger *logging.Logger
}

func NewTrackingSender(next messaging.Sender, store StatusStore, logger *logging.Logger) *TrackingSender {
	if logger == nil {
		logger = logging.Default()
	}
	return &TrackingSender{next: next, store: store, logger: logger}
}

func (t *TrackingSender) SendSMS(ctx context.Context, msg messaging.OutboundSMS) (messaging.SendResult, error) {
	res, err := t.next.SendSMS(ctx, msg)
	if err != nil || res.ProviderMessageID == "" {
		return res, err
	}
	rec := messaging.MessageRecord{
		ProviderMessageID: res.ProviderMessageID,
		ConversationID:    msg.ConversationID,
		From:              msg.From,
		To:                msg.To,
		Body:              msg.Body,
		Status:            res.Status,
	}
	// The send already happened; a tracking failure must not turn it into an error.
	if recErr := t.store.RecordOutbound(context.WithoutCancel(ctx), rec); recErr != nil {
		t.logger.Error("failed to track outbound message", "error", recErr, "message_sid", res.ProviderMessageID)
	}
	return res, nil
}
