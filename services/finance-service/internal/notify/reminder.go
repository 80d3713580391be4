package notify

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/IvanGarzon/lfm-admin-sub002/services/finance-service/internal/invoice"
)

// QueuePublisher is the part of the rabbitmq client the reminder queue uses.
type QueuePublisher interface {
	CreateQueue(queueName string) error
	Publish(ctx context.Context, queueName string, body []byte) error
}

// ReminderQueue hands reminder jobs to the mail workers over rabbitmq.
type ReminderQueue struct {
	client QueuePublisher
	queue  string
}

// NewReminderQueue declares the queue up front so publishing never races a
// missing queue.
func NewReminderQueue(client QueuePublisher, queue string) (*ReminderQueue, error) {
	if err := client.CreateQueue(queue); err != nil {
		return nil, fmt.Errorf("declare reminder queue %s: %w", queue, err)
	}
	return &ReminderQueue{client: client, queue: queue}, nil
}

func (q *ReminderQueue) EnqueueReminder(ctx context.Context, job invoice.ReminderJob) error {
	body, err := json.Marshal(job)
	if err != nil {
		return fmt.Errorf("encode reminder job: %w", err)
	}
	return q.client.Publish(ctx, q.queue, body)
}
