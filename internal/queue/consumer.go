package queue

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	sqsTypes "github.com/aws/aws-sdk-go-v2/service/sqs/types"

	"pricebook/internal/types"
)

// SQSReceiver abstracts the SQS receive and delete operations for testability.
type SQSReceiver interface {
	ReceiveMessage(ctx context.Context, params *sqs.ReceiveMessageInput, optFns ...func(*sqs.Options)) (*sqs.ReceiveMessageOutput, error)
	DeleteMessage(ctx context.Context, params *sqs.DeleteMessageInput, optFns ...func(*sqs.Options)) (*sqs.DeleteMessageOutput, error)
}

// Reloader is the action a notification triggers.
type Reloader interface {
	Reload(ctx context.Context) error
}

const (
	maxMessagesPerPoll = 10
	maxWaitSeconds     = 20
	errorBackoff       = 5 * time.Second
)

// ReloadConsumer long-polls the reload queue. Every batch that carries at
// least one valid notification triggers a single reload; messages are deleted
// only after the reload succeeds so a failed reload is retried on redelivery.
type ReloadConsumer struct {
	client   SQSReceiver
	queueURL string
	reloader Reloader
	wait     time.Duration
	logger   *slog.Logger
}

// NewReloadConsumer creates a consumer. wait is the long-poll duration,
// capped at the SQS maximum of 20 seconds.
func NewReloadConsumer(client SQSReceiver, queueURL string, reloader Reloader, wait time.Duration, logger *slog.Logger) *ReloadConsumer {
	if logger == nil {
		logger = slog.Default()
	}
	return &ReloadConsumer{
		client:   client,
		queueURL: queueURL,
		reloader: reloader,
		wait:     wait,
		logger:   logger,
	}
}

// Run polls until ctx is cancelled. Receive failures are logged and retried
// after a backoff.
func (c *ReloadConsumer) Run(ctx context.Context) error {
	c.logger.InfoContext(ctx, "reload consumer started", "queue_url", c.queueURL)
	for {
		if ctx.Err() != nil {
			c.logger.InfoContext(ctx, "reload consumer stopped")
			return nil
		}
		if _, err := c.Poll(ctx); err != nil {
			if ctx.Err() != nil {
				continue
			}
			c.logger.ErrorContext(ctx, "reload poll failed", "error", err)
			select {
			case <-ctx.Done():
			case <-time.After(errorBackoff):
			}
		}
	}
}

// Poll receives one batch and handles it. It reports how many notifications
// were applied.
func (c *ReloadConsumer) Poll(ctx context.Context) (int, error) {
	out, err := c.client.ReceiveMessage(ctx, &sqs.ReceiveMessageInput{
		QueueUrl:            aws.String(c.queueURL),
		MaxNumberOfMessages: maxMessagesPerPoll,
		WaitTimeSeconds:     c.waitSeconds(),
	})
	if err != nil {
		return 0, types.NewAppError(types.ErrCodeUpstreamQueue, "failed to receive reload notifications", err)
	}
	if len(out.Messages) == 0 {
		return 0, nil
	}

	var valid []sqsTypes.Message
	for _, m := range out.Messages {
		var msg types.ReloadMessage
		if err := json.Unmarshal([]byte(aws.ToString(m.Body)), &msg); err != nil {
			// Poison messages would otherwise be redelivered forever.
			c.logger.WarnContext(ctx, "dropping malformed reload notification",
				"message_id", aws.ToString(m.MessageId),
				"error", err,
			)
			c.delete(ctx, m)
			continue
		}
		c.logger.InfoContext(ctx, "reload notification received",
			"message_id", msg.MessageID,
			"trace_id", msg.TraceID,
			"catalog", msg.CatalogName,
			"effective_date", msg.EffectiveDate,
		)
		valid = append(valid, m)
	}
	if len(valid) == 0 {
		return 0, nil
	}

	if err := c.reloader.Reload(ctx); err != nil {
		return 0, err
	}
	var errs []error
	for _, m := range valid {
		errs = append(errs, c.delete(ctx, m))
	}
	return len(valid), errors.Join(errs...)
}

func (c *ReloadConsumer) delete(ctx context.Context, m sqsTypes.Message) error {
	_, err := c.client.DeleteMessage(ctx, &sqs.DeleteMessageInput{
		QueueUrl:      aws.String(c.queueURL),
		ReceiptHandle: m.ReceiptHandle,
	})
	if err != nil {
		c.logger.ErrorContext(ctx, "failed to delete reload notification",
			"message_id", aws.ToString(m.MessageId),
			"error", err,
		)
		return types.NewAppError(types.ErrCodeUpstreamQueue, "failed to delete reload notification", err)
	}
	return nil
}

func (c *ReloadConsumer) waitSeconds() int32 {
	s := int32(c.wait / time.Second)
	if s > maxWaitSeconds {
		return maxWaitSeconds
	}
	if s < 0 {
		return 0
	}
	return s
}
