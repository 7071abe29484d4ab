package domain

import (
	"context"
	"database/sql"
	"errors"
	"math/rand"
	"time"
)

// EmailJobStatus represents the status of a send request
type EmailJobStatus string

const (
	EmailJobStatusQueued       EmailJobStatus = "queued"
	EmailJobStatusProcessing   EmailJobStatus = "processing"
	EmailJobStatusSent         EmailJobStatus = "sent"
	EmailJobStatusFailed       EmailJobStatus = "failed"
	EmailJobStatusRetryPending EmailJobStatus = "retry_pending"
)

// DefaultMaxRetries is the number of delivery retries after the first attempt
const DefaultMaxRetries = 3

// StaleProcessingThreshold is how long a job may sit in "processing" before
// a redelivered task is allowed to reclaim it
const StaleProcessingThreshold = 2 * time.Minute

// ErrJobLocked is returned when another worker holds the row lock
var ErrJobLocked = errors.New("job is locked by another worker")

// EmailJob is a single accepted email send request. Rendered content is
// frozen at intake; the worker mutates status fields only, under a row lock.
type EmailJob struct {
	ID                  string         `json:"id"`
	TenantID            string         `json:"tenant_id"`
	ApplicationID       string         `json:"application_id"`
	ServiceID           string         `json:"service_id"`
	ToEmail             string         `json:"to_email"`
	Subject             string         `json:"subject"`
	Body                string         `json:"-"`
	Status              EmailJobStatus `json:"status"`
	SentAt              *time.Time     `json:"sent_at,omitempty"`
	ProcessingStartedAt *time.Time     `json:"processing_started_at,omitempty"`
	ErrorMessage        *string        `json:"error_message,omitempty"`
	ErrorCategory       *string        `json:"error_category,omitempty"`
	RetryCount          int            `json:"retry_count"`
	MaxRetries          int            `json:"max_retries"`
	NextRetryAt         *time.Time     `json:"next_retry_at,omitempty"`
	WebhookRequested    bool           `json:"webhook_requested"`
	CreatedAt           time.Time      `json:"created_at"`
	UpdatedAt           time.Time      `json:"updated_at"`
}

// IsTerminal reports whether the job reached a final state
func (j *EmailJob) IsTerminal() bool {
	return j.Status == EmailJobStatusSent || j.Status == EmailJobStatusFailed
}

// CanTransitionTo enforces the job state machine:
// queued -> processing -> {sent | failed | retry_pending},
// retry_pending -> processing on redelivery. Terminal states never leave.
// queued -> failed is allowed for enqueue-side failures only.
func (j *EmailJob) CanTransitionTo(next EmailJobStatus) bool {
	switch j.Status {
	case EmailJobStatusQueued:
		return next == EmailJobStatusProcessing || next == EmailJobStatusFailed
	case EmailJobStatusProcessing:
		return next == EmailJobStatusSent || next == EmailJobStatusFailed || next == EmailJobStatusRetryPending
	case EmailJobStatusRetryPending:
		return next == EmailJobStatusProcessing
	default:
		return false
	}
}

// IsStaleProcessing reports whether a "processing" job has been held past
// the reclaim threshold, which means the owning worker likely died.
func (j *EmailJob) IsStaleProcessing(now time.Time) bool {
	if j.Status != EmailJobStatusProcessing || j.ProcessingStartedAt == nil {
		return false
	}
	return now.Sub(*j.ProcessingStartedAt) >= StaleProcessingThreshold
}

// NextEmailRetryAt computes the next retry time for a delivery attempt.
// Backoff is 60*2^attempt seconds plus up to 25% jitter.
func NextEmailRetryAt(attempt int) time.Time {
	return retryAt(60*time.Second, attempt)
}

func retryAt(base time.Duration, attempt int) time.Time {
	if attempt < 0 {
		attempt = 0
	}
	backoff := base * time.Duration(1<<uint(attempt))
	jitter := time.Duration(rand.Int63n(int64(backoff)/4 + 1))
	return time.Now().UTC().Add(backoff + jitter)
}

// EmailJobRepository defines data access for jobs. Mutators run inside the
// caller's transaction so that a single commit finalizes status, log and
// webhook rows together.
type EmailJobRepository interface {
	Create(ctx context.Context, job *EmailJob) error
	GetByID(ctx context.Context, id string) (*EmailJob, error)

	// GetForUpdate locks the row with FOR UPDATE SKIP LOCKED. Returns
	// ErrJobLocked when another worker holds the lock.
	GetForUpdate(ctx context.Context, tx *sql.Tx, id string) (*EmailJob, error)

	MarkProcessing(ctx context.Context, tx *sql.Tx, id string, startedAt time.Time) error
	MarkSent(ctx context.Context, tx *sql.Tx, id string, sentAt time.Time) error
	MarkFailed(ctx context.Context, tx *sql.Tx, id string, category, message string) error
	ScheduleRetry(ctx context.Context, tx *sql.Tx, id string, retryCount int, nextRetryAt time.Time, message string) error
	SetWebhookRequested(ctx context.Context, tx *sql.Tx, id string) error

	// MarkFailedDirect finalizes a job outside any worker transaction.
	// Used for enqueue-side failures at intake.
	MarkFailedDirect(ctx context.Context, id string, category, message string) error

	// FindOrphanedQueued returns queued jobs older than the given age, for
	// the reconciler to re-enqueue.
	FindOrphanedQueued(ctx context.Context, olderThan time.Duration, limit int) ([]*EmailJob, error)
}
