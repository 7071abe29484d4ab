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

// emailJobRepository implements domain.EmailJobRepository for PostgreSQL
type emailJobRepository struct {
	db *sql.DB
}

// NewEmailJobRepository creates a new PostgreSQL email job repository
func NewEmailJobRepository(db *sql.DB) domain.EmailJobRepository {
	return &emailJobRepository{db: db}
}

const emailJobColumns = `
	id, tenant_id, application_id, service_id, to_email, subject, body,
	status, sent_at, processing_started_at, error_message, error_category,
	retry_count, max_retries, next_retry_at, webhook_requested,
	created_at, updated_at
`

// Create inserts a new job row with status "queued"
func (r *emailJobRepository) Create(ctx context.Context, job *domain.EmailJob) error {
	now := time.Now().UTC()

	if job.ID == "" {
		job.ID = uuid.New().String()
	}
	if job.Status == "" {
		job.Status = domain.EmailJobStatusQueued
	}
	if job.MaxRetries == 0 {
		job.MaxRetries = domain.DefaultMaxRetries
	}
	job.CreatedAt = now
	job.UpdatedAt = now

	query, args, err := psql.
		Insert("email_jobs").
		Columns(
			"id", "tenant_id", "application_id", "service_id", "to_email",
			"subject", "body", "status", "retry_count", "max_retries",
			"webhook_requested", "created_at", "updated_at",
		).
		Values(
			job.ID, job.TenantID, job.ApplicationID, job.ServiceID, job.ToEmail,
			job.Subject, job.Body, job.Status, job.RetryCount, job.MaxRetries,
			job.WebhookRequested, job.CreatedAt, job.UpdatedAt,
		).
		ToSql()
	if err != nil {
		return fmt.Errorf("failed to build query: %w", err)
	}

	if _, err := r.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("failed to create email job: %w", err)
	}

	return nil
}

// GetByID retrieves a job by id
func (r *emailJobRepository) GetByID(ctx context.Context, id string) (*domain.EmailJob, error) {
	query := `SELECT ` + emailJobColumns + ` FROM email_jobs WHERE id = $1`

	job, err := scanEmailJob(r.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, &domain.ErrNotFound{Entity: "email job", ID: id}
		}
		return nil, fmt.Errorf("failed to get email job: %w", err)
	}

	return job, nil
}

// GetForUpdate locks the job row for the duration of the caller's
// transaction. SKIP LOCKED means a row held by another worker is not
// waited on; that worker owns the job.
func (r *emailJobRepository) GetForUpdate(ctx context.Context, tx *sql.Tx, id string) (*domain.EmailJob, error) {
	query := `SELECT ` + emailJobColumns + ` FROM email_jobs WHERE id = $1 FOR UPDATE SKIP LOCKED`

	job, err := scanEmailJob(tx.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			// Either the row does not exist or another worker holds the lock.
			// Distinguish with an unlocked read.
			var exists bool
			checkErr := tx.QueryRowContext(ctx,
				`SELECT EXISTS (SELECT 1 FROM email_jobs WHERE id = $1)`, id).Scan(&exists)
			if checkErr != nil {
				return nil, fmt.Errorf("failed to check email job existence: %w", checkErr)
			}
			if exists {
				return nil, domain.ErrJobLocked
			}
			return nil, &domain.ErrNotFound{Entity: "email job", ID: id}
		}
		return nil, fmt.Errorf("failed to lock email job: %w", err)
	}

	return job, nil
}

// MarkProcessing transitions the job to "processing"
func (r *emailJobRepository) MarkProcessing(ctx context.Context, tx *sql.Tx, id string, startedAt time.Time) error {
	query := `
		UPDATE email_jobs
		SET status = 'processing', processing_started_at = $2, updated_at = $2
		WHERE id = $1
	`
	if _, err := tx.ExecContext(ctx, query, id, startedAt); err != nil {
		return fmt.Errorf("failed to mark job as processing: %w", err)
	}
	return nil
}

// MarkSent finalizes a successful delivery. The status guard keeps terminal
// states monotonic.
func (r *emailJobRepository) MarkSent(ctx context.Context, tx *sql.Tx, id string, sentAt time.Time) error {
	query := `
		UPDATE email_jobs
		SET status = 'sent', sent_at = $2, error_message = NULL,
			error_category = NULL, next_retry_at = NULL, updated_at = $2
		WHERE id = $1 AND status NOT IN ('sent', 'failed')
	`
	if _, err := tx.ExecContext(ctx, query, id, sentAt); err != nil {
		return fmt.Errorf("failed to mark job as sent: %w", err)
	}
	return nil
}

// MarkFailed finalizes a failed delivery with its error classification
func (r *emailJobRepository) MarkFailed(ctx context.Context, tx *sql.Tx, id string, category, message string) error {
	query := `
		UPDATE email_jobs
		SET status = 'failed', error_category = $2, error_message = $3,
			next_retry_at = NULL, updated_at = NOW()
		WHERE id = $1 AND status NOT IN ('sent', 'failed')
	`
	if _, err := tx.ExecContext(ctx, query, id, category, message); err != nil {
		return fmt.Errorf("failed to mark job as failed: %w", err)
	}
	return nil
}

// ScheduleRetry moves the job to "retry_pending" with the next attempt time
func (r *emailJobRepository) ScheduleRetry(ctx context.Context, tx *sql.Tx, id string, retryCount int, nextRetryAt time.Time, message string) error {
	query := `
		UPDATE email_jobs
		SET status = 'retry_pending', retry_count = $2, next_retry_at = $3,
			error_message = $4, updated_at = NOW()
		WHERE id = $1 AND status NOT IN ('sent', 'failed')
	`
	if _, err := tx.ExecContext(ctx, query, id, retryCount, nextRetryAt, message); err != nil {
		return fmt.Errorf("failed to schedule job retry: %w", err)
	}
	return nil
}

// SetWebhookRequested records that a webhook delivery was queued for this job
func (r *emailJobRepository) SetWebhookRequested(ctx context.Context, tx *sql.Tx, id string) error {
	query := `UPDATE email_jobs SET webhook_requested = TRUE, updated_at = NOW() WHERE id = $1`
	if _, err := tx.ExecContext(ctx, query, id); err != nil {
		return fmt.Errorf("failed to set webhook requested: %w", err)
	}
	return nil
}

// MarkFailedDirect finalizes a job outside any worker transaction. Used at
// intake when the delivery task cannot be enqueued.
func (r *emailJobRepository) MarkFailedDirect(ctx context.Context, id string, category, message string) error {
	query := `
		UPDATE email_jobs
		SET status = 'failed', error_category = $2, error_message = $3, updated_at = NOW()
		WHERE id = $1 AND status NOT IN ('sent', 'failed')
	`
	if _, err := r.db.ExecContext(ctx, query, id, category, message); err != nil {
		return fmt.Errorf("failed to mark job as failed: %w", err)
	}
	return nil
}

// FindOrphanedQueued returns queued jobs older than the given age, for the
// reconciler to re-enqueue.
func (r *emailJobRepository) FindOrphanedQueued(ctx context.Context, olderThan time.Duration, limit int) ([]*domain.EmailJob, error) {
	query := `
		SELECT ` + emailJobColumns + `
		FROM email_jobs
		WHERE status = 'queued' AND created_at < NOW() - $1 * INTERVAL '1 second'
		ORDER BY created_at ASC
		LIMIT $2
	`

	rows, err := r.db.QueryContext(ctx, query, int(olderThan.Seconds()), limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query orphaned jobs: %w", err)
	}
	defer rows.Close()

	var jobs []*domain.EmailJob
	for rows.Next() {
		job, err := scanEmailJob(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan email job: %w", err)
		}
		jobs = append(jobs, job)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating jobs: %w", err)
	}

	return jobs, nil
}

func scanEmailJob(row rowScanner) (*domain.EmailJob, error) {
	var job domain.EmailJob
	var sentAt sql.NullTime
	var processingStartedAt sql.NullTime
	var errorMessage sql.NullString
	var errorCategory sql.NullString
	var nextRetryAt sql.NullTime

	err := row.Scan(
		&job.ID,
		&job.TenantID,
		&job.ApplicationID,
		&job.ServiceID,
		&job.ToEmail,
		&job.Subject,
		&job.Body,
		&job.Status,
		&sentAt,
		&processingStartedAt,
		&errorMessage,
		&errorCategory,
		&job.RetryCount,
		&job.MaxRetries,
		&nextRetryAt,
		&job.WebhookRequested,
		&job.CreatedAt,
		&job.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	if sentAt.Valid {
		job.SentAt = &sentAt.Time
	}
	if processingStartedAt.Valid {
		job.ProcessingStartedAt = &processingStartedAt.Time
	}
	if errorMessage.Valid {
		job.ErrorMessage = &errorMessage.String
	}
	if errorCategory.Valid {
		job.ErrorCategory = &errorCategory.String
	}
	if nextRetryAt.Valid {
		job.NextRetryAt = &nextRetryAt.Time
	}

	return &job, nil
}
