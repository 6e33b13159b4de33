package delivery

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/google/uuid"

	"github.com/wolfman30/medspa-sms-triage/internal/messaging"
	"github.com/wolfman30/medspa-sms-triage/internal/triage"
)

type dynamoAPI interface {
	PutItem(context.Context, *dynamodb.PutItemInput, ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error)
	UpdateItem(context.Context, *dynamodb.UpdateItemInput, ...func(*dynamodb.Options)) (*dynamodb.UpdateItemOutput, error)
	GetItem(context.Context, *dynamodb.GetItemInput, ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error)
}

// statusItem is the DynamoDB shape of a tracked message. statusAtNanos orders updates.
type statusItem struct {
	MessageSID     string `dynamodbav:"messageSid"`
	ID             string `dynamodbav:"id"`
	ConversationID string `dynamodbav:"conversationId,omitempty"`
	From           string `dynamodbav:"from,omitempty"`
	To             string `dynamodbav:"to,omitempty"`
	Direction      string `dynamodbav:"direction"`
	Body           string `dynamodbav:"body,omitempty"`
	Status         string `dynamodbav:"status"`
	ErrorCode      string `dynamodbav:"errorCode,omitempty"`
	ErrorMessage   string `dynamodbav:"errorMessage,omitempty"`
	StatusAtNanos  int64  `dynamodbav:"statusAtNanos"`
	DeliveredAt    int64  `dynamodbav:"deliveredAtNanos,omitempty"`
	FailedAt       int64  `dynamodbav:"failedAtNanos,omitempty"`
}

// DynamoStatusStore keeps delivery state in a DynamoDB table keyed by messageSid.
type DynamoStatusStore struct {
	client    dynamoAPI
	tableName string
}

func NewDynamoStatusStore(client dynamoAPI, tableName string) *DynamoStatusStore {
	return &DynamoStatusStore{client: client, tableName: tableName}
}

func (s *DynamoStatusStore) RecordOutbound(ctx context.Context, rec messaging.MessageRecord) error {
	if rec.ID == uuid.Nil {
		rec.ID = uuid.New()
	}
	if rec.Direction == "" {
		rec.Direction = "outbound"
	}
	if rec.Status == "" {
		rec.Status = triage.StatusQueued
	}
	if rec.StatusAt.IsZero() {
		rec.StatusAt = time.Now().UTC()
	}
	item, err := attributevalue.MarshalMap(statusItem{
		MessageSID:     rec.ProviderMessageID,
		ID:             rec.ID.String(),
		ConversationID: rec.ConversationID,
		From:           rec.From,
		To:             rec.To,
		Direction:      rec.Direction,
		Body:           rec.Body,
		Status:         rec.Status,
		StatusAtNanos:  rec.StatusAt.UnixNano(),
	})
	if err != nil {
		return fmt.Errorf("delivery: marshal message: %w", err)
	}
	_, err = s.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName:           aws.String(s.tableName),
		Item:                item,
		ConditionExpression: aws.String("attribute_not_exists(messageSid)"),
	})
	if err != nil && !isConditionalCheckFailed(err) {
		return fmt.Errorf("delivery: put message %s: %w", rec.ProviderMessageID, err)
	}
	return nil
}

func (s *DynamoStatusStore) ApplyStatus(ctx context.Context, evt triage.DeliveryStatusEvent) (bool, error) {
	observed := evt.ObservedAt.UTC().UnixNano()
	expression := "SET #status = :status, errorCode = :code, errorMessage = :msg, statusAtNanos = :at, " +
		"#to = if_not_exists(#to, :to), #from = if_not_exists(#from, :from), " +
		"direction = if_not_exists(direction, :dir), id = if_not_exists(id, :id)"
	switch {
	case evt.Status == triage.StatusDelivered:
		expression += ", deliveredAtNanos = :at"
	case evt.Terminal():
		expression += ", failedAtNanos = :at"
	}
	_, err := s.client.UpdateItem(ctx, &dynamodb.UpdateItemInput{
		TableName: aws.String(s.tableName),
		Key: map[string]types.AttributeValue{
			"messageSid": &types.AttributeValueMemberS{Value: evt.ProviderMessageID},
		},
		UpdateExpression: aws.String(expression),
		ExpressionAttributeNames: map[string]string{
			"#status": "status",
			"#to":     "to",
			"#from":   "from",
		},
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":status": &types.AttributeValueMemberS{Value: evt.Status},
			":code":   &types.AttributeValueMemberS{Value: evt.ErrorCode},
			":msg":    &types.AttributeValueMemberS{Value: evt.ErrorMessage},
			":at":     &types.AttributeValueMemberN{Value: fmt.Sprintf("%d", observed)},
			":to":     &types.AttributeValueMemberS{Value: evt.To},
			":from":   &types.AttributeValueMemberS{Value: evt.From},
			":dir":    &types.AttributeValueMemberS{Value: "outbound"},
			":id":     &types.AttributeValueMemberS{Value: uuid.NewString()},
		},
		ConditionExpression: aws.String("attribute_not_exists(statusAtNanos) OR statusAtNanos <= :at"),
	})
	if err != nil {
		if isConditionalCheckFailed(err) {
			return false, nil
		}
		return false, fmt.Errorf("delivery: update status %s: %w", evt.ProviderMessageID, err)
	}
	return true, nil
}

func (s *DynamoStatusStore) GetMessage(ctx context.Context, providerMessageID string) (messaging.MessageRecord, error) {
	out, err := s.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName: aws.String(s.tableName),
		Key: map[string]types.AttributeValue{
			"messageSid": &types.AttributeValueMemberS{Value: providerMessageID},
		},
		ConsistentRead: aws.Bool(true),
	})
	if err != nil {
		return messaging.MessageRecord{}, fmt.Errorf("delivery: get message %s: %w", providerMessageID, err)
	}
	if out.Item == nil {
		return messaging.MessageRecord{}, messaging.ErrMessageNotFound
	}
	var item statusItem
	if err := attributevalue.UnmarshalMap(out.Item, &item); err != nil {
		return messaging.MessageRecord{}, fmt.Errorf("delivery: decode message: %w", err)
	}
	rec := messaging.MessageRecord{
		ProviderMessageID: item.MessageSID,
		ConversationID:    item.ConversationID,
		From:              item.From,
		To:                item.To,
		Direction:         item.Direction,
		Body:              item.Body,
		Status:            item.Status,
		ErrorCode:         item.ErrorCode,
		ErrorMessage:      item.ErrorMessage,
		StatusAt:          time.Unix(0, item.StatusAtNanos).UTC(),
		DeliveredAt:       nanosPtr(item.DeliveredAt),
		FailedAt:          nanosPtr(item.FailedAt),
	}
	if id, err := uuid.Parse(item.ID); err == nil {
		rec.ID = id
	}
	return rec, nil
}

func nanosPtr(n int64) *time.Time {
	if n == 0 {
		return nil
	}
	t := time.Unix(0, n).UTC()
	return &t
}

func isConditionalCheckFailed(err error) bool {
	var ccf *types.ConditionalCheckFailedException
	return errors.As(err, &ccf)
}
