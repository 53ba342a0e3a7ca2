package queue

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	sqsTypes "github.com/aws/aws-sdk-go-v2/service/sqs/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pricebook/internal/types"
)

const testQueueURL = "https://sqs.us-east-1.amazonaws.com/123456789/catalog-reload"

// --- Mock SQS Clients ---

// mockSQSSender captures SendMessage calls for test assertions.
type mockSQSSender struct {
	calls []*sqs.SendMessageInput
	err   error
}

func (m *mockSQSSender) SendMessage(_ context.Context, params *sqs.SendMessageInput, _ ...func(*sqs.Options)) (*sqs.SendMessageOutput, error) {
	m.calls = append(m.calls, params)
	if m.err != nil {
		return nil, m.err
	}
	return &sqs.SendMessageOutput{}, nil
}

// mockSQSReceiver serves queued batches and records deletions.
type mockSQSReceiver struct {
	mu         sync.Mutex
	batches    [][]sqsTypes.Message
	receiveErr error
	deleteErr  error
	waits      []int32
	deleted    []string
}

func (m *mockSQSReceiver) ReceiveMessage(ctx context.Context, params *sqs.ReceiveMessageInput, _ ...func(*sqs.Options)) (*sqs.ReceiveMessageOutput, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.waits = append(m.waits, params.WaitTimeSeconds)
	if m.receiveErr != nil {
		return nil, m.receiveErr
	}
	if len(m.batches) == 0 {
		return &sqs.ReceiveMessageOutput{}, nil
	}
	batch := m.batches[0]
	m.batches = m.batches[1:]
	return &sqs.ReceiveMessageOutput{Messages: batch}, nil
}

func (m *mockSQSReceiver) DeleteMessage(_ context.Context, params *sqs.DeleteMessageInput, _ ...func(*sqs.Options)) (*sqs.DeleteMessageOutput, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.deleteErr != nil {
		return nil, m.deleteErr
	}
	m.deleted = append(m.deleted, aws.ToString(params.ReceiptHandle))
	return &sqs.DeleteMessageOutput{}, nil
}

type countingReloader struct {
	mu    sync.Mutex
	calls int
	err   error
	onRun func()
}

func (r *countingReloader) Reload(context.Context) error {
	r.mu.Lock()
	r.calls++
	onRun := r.onRun
	r.mu.Unlock()
	if onRun != nil {
		onRun()
	}
	return r.err
}

func notification(t *testing.T, handle string) sqsTypes.Message {
	t.Helper()
	body, err := json.Marshal(types.ReloadMessage{MessageID: handle, CatalogName: "Firearms"})
	require.NoError(t, err)
	return sqsTypes.Message{
		MessageId:     aws.String(handle),
		ReceiptHandle: aws.String(handle),
		Body:          aws.String(string(body)),
	}
}

// --- Publisher ---

func TestReloadPublisher_Publish(t *testing.T) {
	sender := &mockSQSSender{}
	p := NewReloadPublisher(sender, testQueueURL, nil)

	err := p.Publish(context.Background(), types.ReloadMessage{
		CatalogName:   "Firearms",
		EffectiveDate: time.Date(2011, 2, 2, 0, 0, 0, 0, time.UTC),
	})
	require.NoError(t, err)
	require.Len(t, sender.calls, 1)

	call := sender.calls[0]
	assert.Equal(t, testQueueURL, aws.ToString(call.QueueUrl))
	assert.Equal(t, "Firearms", aws.ToString(call.MessageAttributes["catalog"].StringValue))

	var msg types.ReloadMessage
	require.NoError(t, json.Unmarshal([]byte(aws.ToString(call.MessageBody)), &msg))
	assert.NotEmpty(t, msg.MessageID)
	assert.NotEmpty(t, msg.TraceID)
	assert.Equal(t, "Firearms", msg.CatalogName)
}

func TestReloadPublisher_KeepsGivenIDs(t *testing.T) {
	sender := &mockSQSSender{}
	p := NewReloadPublisher(sender, testQueueURL, nil)

	require.NoError(t, p.Publish(context.Background(), types.ReloadMessage{MessageID: "m-1", TraceID: "t-1"}))

	var msg types.ReloadMessage
	require.NoError(t, json.Unmarshal([]byte(aws.ToString(sender.calls[0].MessageBody)), &msg))
	assert.Equal(t, "m-1", msg.MessageID)
	assert.Equal(t, "t-1", msg.TraceID)
}

func TestReloadPublisher_SendFailure(t *testing.T) {
	p := NewReloadPublisher(&mockSQSSender{err: errors.New("throttled")}, testQueueURL, nil)

	err := p.Publish(context.Background(), types.ReloadMessage{CatalogName: "Firearms"})
	var appErr *types.AppError
	require.True(t, errors.As(err, &appErr))
	assert.Equal(t, types.ErrCodeUpstreamQueue, appErr.Code)
}

// --- Consumer ---

func TestReloadConsumer_Poll_ReloadsOncePerBatch(t *testing.T) {
	client := &mockSQSReceiver{batches: [][]sqsTypes.Message{{
		notification(t, "a"),
		notification(t, "b"),
	}}}
	reloader := &countingReloader{}
	c := NewReloadConsumer(client, testQueueURL, reloader, 10*time.Second, nil)

	n, err := c.Poll(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	assert.Equal(t, 1, reloader.calls)
	assert.Equal(t, []string{"a", "b"}, client.deleted)
	assert.Equal(t, []int32{10}, client.waits)
}

func TestReloadConsumer_Poll_EmptyBatch(t *testing.T) {
	client := &mockSQSReceiver{}
	reloader := &countingReloader{}
	c := NewReloadConsumer(client, testQueueURL, reloader, time.Minute, nil)

	n, err := c.Poll(context.Background())
	require.NoError(t, err)
	assert.Zero(t, n)
	assert.Zero(t, reloader.calls)
	assert.Equal(t, []int32{20}, client.waits)
}

func TestReloadConsumer_Poll_DropsMalformed(t *testing.T) {
	bad := sqsTypes.Message{MessageId: aws.String("x"), ReceiptHandle: aws.String("x"), Body: aws.String("{not json")}
	client := &mockSQSReceiver{batches: [][]sqsTypes.Message{{bad}}}
	reloader := &countingReloader{}
	c := NewReloadConsumer(client, testQueueURL, reloader, 0, nil)

	n, err := c.Poll(context.Background())
	require.NoError(t, err)
	assert.Zero(t, n)
	assert.Zero(t, reloader.calls)
	assert.Equal(t, []string{"x"}, client.deleted)
}

func TestReloadConsumer_Poll_FailedReloadKeepsMessages(t *testing.T) {
	client := &mockSQSReceiver{batches: [][]sqsTypes.Message{{notification(t, "a")}}}
	reloader := &countingReloader{err: errors.New("invalid catalog")}
	c := NewReloadConsumer(client, testQueueURL, reloader, 0, nil)

	_, err := c.Poll(context.Background())
	require.Error(t, err)
	assert.Empty(t, client.deleted)
}

func TestReloadConsumer_Poll_Errors(t *testing.T) {
	t.Run("receive", func(t *testing.T) {
		c := NewReloadConsumer(&mockSQSReceiver{receiveErr: errors.New("denied")}, testQueueURL, &countingReloader{}, 0, nil)
		_, err := c.Poll(context.Background())
		var appErr *types.AppError
		require.True(t, errors.As(err, &appErr))
		assert.Equal(t, types.ErrCodeUpstreamQueue, appErr.Code)
	})
	t.Run("delete", func(t *testing.T) {
		client := &mockSQSReceiver{
			batches:   [][]sqsTypes.Message{{notification(t, "a")}},
			deleteErr: errors.New("gone"),
		}
		reloader := &countingReloader{}
		c := NewReloadConsumer(client, testQueueURL, reloader, 0, nil)
		n, err := c.Poll(context.Background())
		require.Error(t, err)
		assert.Equal(t, 1, n)
		assert.Equal(t, 1, reloader.calls)
	})
}

func TestReloadConsumer_Run_StopsOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	client := &mockSQSReceiver{batches: [][]sqsTypes.Message{{notification(t, "a")}}}
	reloader := &countingReloader{onRun: cancel}
	c := NewReloadConsumer(client, testQueueURL, reloader, 0, nil)

	done := make(chan error, 1)
	go func() { done <- c.Run(ctx) }()

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("consumer did not stop after cancellation")
	}
	assert.Equal(t, 1, reloader.calls)
}
