package interactions

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"github.com/wolfman30/medspa-sms-triage/internal/triage"
	"github.com/wolfman30/medspa-sms-triage/pkg/logging"
)

// S3API is the subset of the S3 client used by ArchivingStore.
type S3API interface {
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

// ArchivingStore mirrors newly appended entries to S3 as JSON. Archive failures are logged, not returned.
// Object keys use a hash of the sender's phone; the archived body is scrubbed of phone numbers and emails.
type ArchivingStore struct {
	Store
	s3     S3API
	bucket string
	logger *logging.Logger
}

// NewArchivingStore wraps inner. Without a bucket or client it returns inner unchanged.
func NewArchivingStore(inner Store, client S3API, bucket string, logger *logging.Logger) Store {
	if client == nil || bucket == "" {
		return inner
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &ArchivingStore{Store: inner, s3: client, bucket: bucket, logger: logger}
}

func (a *ArchivingStore) AppendEntry(ctx context.Context, entry triage.InteractionLogEntry) (bool, error) {
	appended, err := a.Store.AppendEntry(ctx, entry)
	if err != nil || !appended {
		return appended, err
	}
	if archiveErr := a.archive(ctx, entry); archiveErr != nil {
		a.logger.Warn("failed to archive interaction", "error", archiveErr, "message_sid", entry.ProviderMessageID)
	}
	return true, nil
}

func (a *ArchivingStore) archive(ctx context.Context, entry triage.InteractionLogEntry) error {
	entry.InboundBody = ScrubPII(entry.InboundBody)
	data, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("interactions: marshal entry: %w", err)
	}
	at := entry.Timestamp.UTC()
	key := fmt.Sprintf("interactions/v1/by-date/%d/%02d/%02d/%s/%s.json",
		at.Year(), at.Month(), at.Day(), HashPhone(entry.PatientPhone), entry.ProviderMessageID)
	_, err = a.s3.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(a.bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(data),
		ContentType: aws.String("application/json"),
	})
	if err != nil {
		return fmt.Errorf("interactions: s3 put %s: %w", key, err)
	}
	return nil
}
