package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/easeemail/easeemail/internal/domain"
)

// taskQueueRepository implements domain.Broker on a PostgreSQL table.
// FIFO within a queue, at-least-once delivery: Dequeue claims the oldest
// visible task with FOR UPDATE SKIP LOCKED and stamps a visibility
// deadline; an un-acked task becomes visible again once the deadline
// expires.
type taskQueueRepository struct {
	db                *sql.DB
	visibilityTimeout time.Duration
}

// NewTaskQueueRepository creates a new PostgreSQL task queue broker
func NewTaskQueueRepository(db *sql.DB, visibilityTimeout time.Duration) domain.Broker {
	if visibilityTimeout <= 0 {
		visibilityTimeout = domain.DefaultVisibilityTimeout
	}
	return &taskQueueRepository{
		db:                db,
		visibilityTimeout: visibilityTimeout,
	}
}

// Enqueue adds a task in its own transaction
func (r *taskQueueRepository) Enqueue(ctx context.Context, queue, kind, entityID string) error {
	return RunInTx(ctx, r.db, func(tx *sql.Tx) error {
		return r.EnqueueTx(ctx, tx, queue, kind, entityID)
	})
}

// EnqueueTx adds a task within an existing transaction
func (r *taskQueueRepository) EnqueueTx(ctx context.Context, tx *sql.Tx, queue, kind, entityID string) error {
	now := time.Now().UTC()

	query, args, err := psql.
		Insert("task_queue").
		Columns("id", "queue", "kind", "entity_id", "attempts", "visible_at", "created_at").
		Values(uuid.New().String(), queue, kind, entityID, 0, now, now).
		ToSql()
	if err != nil {
		return fmt.Errorf("failed to build query: %w", err)
	}

	if _, err := tx.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("failed to enqueue task: %w", err)
	}

	return nil
}

// Dequeue claims the oldest visible task on the queue. Returns nil when the
// queue is empty. The claim is a visibility deadline, not a row lock, so it
// survives the transaction and expires if the worker dies.
func (r *taskQueueRepository) Dequeue(ctx context.Context, queue string) (*domain.Task, error) {
	now := time.Now().UTC()
	lockedUntil := now.Add(r.visibilityTimeout)

	query := `
		UPDATE task_queue
		SET locked_until = $3, attempts = attempts + 1
		WHERE id = (
			SELECT id FROM task_queue
			WHERE queue = $1
				AND visible_at <= $2
				AND (locked_until IS NULL OR locked_until <= $2)
			ORDER BY created_at ASC
			LIMIT 1
			FOR UPDATE SKIP LOCKED
		)
		RETURNING id, queue, kind, entity_id, attempts, visible_at, locked_until, created_at
	`

	task, err := scanTask(r.db.QueryRowContext(ctx, query, queue, now, lockedUntil))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to dequeue task: %w", err)
	}

	return task, nil
}

// Ack removes a completed task
func (r *taskQueueRepository) Ack(ctx context.Context, taskID string) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM task_queue WHERE id = $1`, taskID); err != nil {
		return fmt.Errorf("failed to ack task: %w", err)
	}
	return nil
}

// Nack releases a task back to the queue, visible again after delay
func (r *taskQueueRepository) Nack(ctx context.Context, taskID string, delay time.Duration) error {
	visibleAt := time.Now().UTC().Add(delay)

	query := `
		UPDATE task_queue
		SET visible_at = $2, locked_until = NULL
		WHERE id = $1
	`

	if _, err := r.db.ExecContext(ctx, query, taskID, visibleAt); err != nil {
		return fmt.Errorf("failed to nack task: %w", err)
	}

	return nil
}

// Ping verifies the broker backend is reachable
func (r *taskQueueRepository) Ping(ctx context.Context) error {
	return r.db.PingContext(ctx)
}

func scanTask(row rowScanner) (*domain.Task, error) {
	var task domain.Task
	var lockedUntil sql.NullTime

	err := row.Scan(
		&task.ID,
		&task.Queue,
		&task.Kind,
		&task.EntityID,
		&task.Attempts,
		&task.VisibleAt,
		&lockedUntil,
		&task.CreatedAt,
	)
	if err != nil {
		return nil, err
	}

	if lockedUntil.Valid {
		task.LockedUntil = &lockedUntil.Time
	}

	return &task, nil
}
