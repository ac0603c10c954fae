package storage

import (
	"context"
	"errors"
	"time"

	"github.com/Azure/azure-sdk-for-go/sdk/azcore"
	"github.com/Azure/azure-sdk-for-go/sdk/azcore/policy"
	"github.com/Azure/azure-sdk-for-go/sdk/storage/azqueue"
	"github.com/bytedance/sonic"

	"task-api/domain"
)

// EventTaskCreated is the type of the message published after a create.
const EventTaskCreated = "task-created"

// TaskEvent is the queue message body.
type TaskEvent struct {
	Type string      `json:"type"`
	Time int64       `json:"time"`
	Task domain.Task `json:"task"`
}

// QueueNotifier publishes task events to an Azure Storage queue.
type QueueNotifier struct {
	queue *azqueue.QueueClient
	now   func() time.Time
}

// NewQueueNotifier creates a notifier for queue in the account referenced by connStr.
func NewQueueNotifier(connStr, queue string) (*QueueNotifier, error) {
	if connStr == "" || queue == "" {
		return nil, errors.New("queue notifier requires connection string and queue name")
	}
	opts := azqueue.ClientOptions{
		ClientOptions: azcore.ClientOptions{
			Retry: policy.RetryOptions{
				MaxRetries:    5,
				TryTimeout:    time.Minute * 5,
				RetryDelay:    time.Second * 1,
				MaxRetryDelay: time.Second * 60,
				StatusCodes:   []int{408, 429, 500, 502, 503, 504},
			},
		},
	}
	q, err := azqueue.NewQueueClientFromConnectionString(connStr, queue, &opts)
	if err != nil {
		return nil, err
	}
	return &QueueNotifier{queue: q, now: time.Now}, nil
}

// EnsureQueue creates the queue if it does not exist yet.
func (n *QueueNotifier) EnsureQueue(ctx context.Context) error {
	_, err := n.queue.Create(ctx, nil)
	if err != nil {
		var respErr *azcore.ResponseError
		if errors.As(err, &respErr) && respErr.ErrorCode == "QueueAlreadyExists" {
			return nil
		}
		return err
	}
	return nil
}

func encodeTaskEvent(eventType string, at time.Time, task domain.Task) (string, error) {
	data, err := sonic.Marshal(TaskEvent{Type: eventType, Time: at.UnixMilli(), Task: task})
	if err != nil {
		return "", err
	}
	return string(data), nil
}

// TaskCreated publishes a task-created event for task.
func (n *QueueNotifier) TaskCreated(ctx context.Context, task domain.Task) error {
	msg, err := encodeTaskEvent(EventTaskCreated, n.now(), task)
	if err != nil {
		return err
	}
	_, err = n.queue.EnqueueMessage(ctx, msg, nil)
	return err
}
