package escalation

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	sqstypes "github.com/aws/aws-sdk-go-v2/service/sqs/types"

	"github.com/wolfman30/medspa-sms-triage/internal/triage"
)

type sqsAPI interface {
	SendMessage(ctx context.Context, params *sqs.SendMessageInput, optFns ...func(*sqs.Options)) (*sqs.SendMessageOutput, error)
}

// AlertEnvelope is the JSON body published for paging integrations.
type AlertEnvelope struct {
	Type        string          `json:"type"`
	PublishedAt time.Time       `json:"publishedAt"`
	Alert       json.RawMessage `json:"alert"`
}

// QueueAlerter publishes alerts to an SQS queue.
type QueueAlerter struct {
	client   sqsAPI
	queueURL string
	now      func() time.Time
}

func NewQueueAlerter(client sqsAPI, queueURL string) *QueueAlerter {
	if client == nil {
		panic("escalation: SQS client cannot be nil")
	}
	if queueURL == "" {
		panic("escalation: SQS queueURL cannot be empty")
	}
	return &QueueAlerter{client: client, queueURL: queueURL, now: time.Now}
}

func (q *QueueAlerter) ComplicationAlert(ctx context.Context, alert triage.ComplicationAlert) error {
	return q.publish(ctx, "complication", alert)
}

func (q *QueueAlerter) EmergencyAlert(ctx context.Context, alert triage.EmergencyAlert) error {
	return q.publish(ctx, "emergency", alert)
}

func (q *QueueAlerter) StaffAlert(ctx context.Context, alert triage.StaffAlert) error {
	return q.publish(ctx, "staff", alert)
}

func (q *QueueAlerter) DeliveryFailureAlert(ctx context.Context, alert triage.DeliveryFailureAlert) error {
	return q.publish(ctx, "delivery_failure", alert)
}

func (q *QueueAlerter) publish(ctx context.Context, kind string, alert any) error {
	payload, err := json.Marshal(alert)
	if err != nil {
		return fmt.Errorf("escalation: marshal %s alert: %w", kind, err)
	}
	body, err := json.Marshal(AlertEnvelope{Type: kind, PublishedAt: q.now().UTC(), Alert: payload})
	if err != nil {
		return fmt.Errorf("escalation: marshal envelope: %w", err)
	}
	_, err = q.client.SendMessage(ctx, &sqs.SendMessageInput{
		QueueUrl:    aws.String(q.queueURL),
		MessageBody: aws.String(string(body)),
		MessageAttributes: map[string]sqstypes.MessageAttributeValue{
			"alert_type": {DataType: aws.String("String"), StringValue: aws.String(kind)},
		},
	})
	if err != nil {
		return fmt.Errorf("escalation: failed to send SQS message: %w", err)
	}
	return nil
}
