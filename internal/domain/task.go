package domain

import (
	"context"
	"database/sql"
	"time"
)

// Queue names. Email and webhook work never share a queue.
const (
	QueueEmailDelivery   = "email_delivery"
	QueueWebhookDelivery = "webhook_delivery"
)

// Task kinds
const (
	TaskKindSendEmail      = "send_email"
	TaskKindDeliverWebhook = "deliver_webhook"
)

// DefaultVisibilityTimeout is how long a dequeued task stays invisible
// before it is redelivered to another worker
const DefaultVisibilityTimeout = 5 * time.Minute

// Task is a unit of work on a broker queue referencing a job or a webhook
// delivery by id
type Task struct {
	ID          string     `json:"id"`
	Queue       string     `json:"queue"`
	Kind        string     `json:"kind"`
	EntityID    string     `json:"entity_id"`
	Attempts    int        `json:"attempts"`
	VisibleAt   time.Time  `json:"visible_at"`
	LockedUntil *time.Time `json:"locked_until,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
}

// Broker is a FIFO task bus with at-least-once delivery, per-task
// acknowledgment and a visibility timeout. Dequeue returns nil when the
// queue is empty.
type Broker interface {
	Enqueue(ctx context.Context, queue, kind, entityID string) error
	EnqueueTx(ctx context.Context, tx *sql.Tx, queue, kind, entityID string) error

	// Dequeue claims the oldest visible task and stamps its visibility
	// deadline. Expired claims become visible again (at-least-once).
	Dequeue(ctx context.Context, queue string) (*Task, error)

	// Ack removes a completed task
	Ack(ctx context.Context, taskID string) error

	// Nack releases a task back to the queue, visible again after delay
	Nack(ctx context.Context, taskID string, delay time.Duration) error

	// Ping verifies the broker backend is reachable
	Ping(ctx context.Context) error
}
