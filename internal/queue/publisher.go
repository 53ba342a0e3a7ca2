// Package queue carries catalog reload notifications over SQS: the publisher
// announces stored versions and the consumer turns announcements into reloads.
package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	sqsTypes "github.com/aws/aws-sdk-go-v2/service/sqs/types"
	"github.com/google/uuid"

	"pricebook/internal/types"
)

// SQSSender abstracts the SQS SendMessage operation for testability.
// Production code uses the *sqs.Client from aws-sdk-go-v2.
type SQSSender interface {
	SendMessage(ctx context.Context, params *sqs.SendMessageInput, optFns ...func(*sqs.Options)) (*sqs.SendMessageOutput, error)
}

// ReloadPublisher sends ReloadMessages to the reload queue.
type ReloadPublisher struct {
	client   SQSSender
	queueURL string
	logger   *slog.Logger
}

// NewReloadPublisher creates a ReloadPublisher for queueURL.
func NewReloadPublisher(client SQSSender, queueURL string, logger *slog.Logger) *ReloadPublisher {
	if logger == nil {
		logger = slog.Default()
	}
	return &ReloadPublisher{client: client, queueURL: queueURL, logger: logger}
}

// Publish announces msg. Missing message and trace IDs are generated.
func (p *ReloadPublisher) Publish(ctx context.Context, msg types.ReloadMessage) error {
	if msg.MessageID == "" {
		msg.MessageID = uuid.New().String()
	}
	if msg.TraceID == "" {
		msg.TraceID = uuid.New().String()
	}

	body, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("queue: failed to marshal ReloadMessage: %w", err)
	}

	input := &sqs.SendMessageInput{
		QueueUrl:    aws.String(p.queueURL),
		MessageBody: aws.String(string(body)),
		MessageAttributes: map[string]sqsTypes.MessageAttributeValue{
			"catalog": {
				DataType:    aws.String("String"),
				StringValue: aws.String(msg.CatalogName),
			},
		},
	}

	if _, err := p.client.SendMessage(ctx, input); err != nil {
		return types.NewAppErrorWithDetails(types.ErrCodeUpstreamQueue,
			fmt.Sprintf("failed to send reload notification to %s", p.queueURL), err,
			map[string]any{"catalog": msg.CatalogName})
	}

	p.logger.InfoContext(ctx, "reload notification sent",
		"queue_url", p.queueURL,
		"message_id", msg.MessageID,
		"trace_id", msg.TraceID,
		"catalog", msg.CatalogName,
		"effective_date", msg.EffectiveDate,
	)
	return nil
}
