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

// webhookDeliveryRepository implements domain.WebhookDeliveryRepository for PostgreSQL
type webhookDeliveryRepository struct {
	db *sql.DB
}

// NewWebhookDeliveryRepository creates a new PostgreSQL webhook delivery repository
func NewWebhookDeliveryRepository(db *sql.DB) domain.WebhookDeliveryRepository {
	return &webhookDeliveryRepository{db: db}
}

const webhookDeliveryColumns = `
	id, email_job_id, application_id, tenant_id, webhook_url, event_type,
	payload, status, retry_count, max_retries, next_retry_at,
	last_response_code, last_response_body, last_error, delivered_at,
	created_at, updated_at
`

// truncateBody caps the stored subscriber response at 1KB
func truncateBody(body string) string {
	if len(body) > domain.MaxResponseBodySize {
		return body[:domain.MaxResponseBodySize]
	}
	return body
}

// Create inserts a pending delivery inside the worker transaction that
// finalizes the job
func (r *webhookDeliveryRepository) Create(ctx context.Context, tx *sql.Tx, delivery *domain.WebhookDelivery) error {
	now := time.Now().UTC()

	if delivery.ID == "" {
		delivery.ID = uuid.New().String()
	}
	if delivery.Status == "" {
		delivery.Status = domain.WebhookDeliveryStatusPending
	}
	if delivery.MaxRetries == 0 {
		delivery.MaxRetries = domain.WebhookMaxRetries
	}
	delivery.CreatedAt = now
	delivery.UpdatedAt = now

	query, args, err := psql.
		Insert("webhook_deliveries").
		Columns(
			"id", "email_job_id", "application_id", "tenant_id", "webhook_url",
			"event_type", "payload", "status", "retry_count", "max_retries",
			"created_at", "updated_at",
		).
		Values(
			delivery.ID, delivery.EmailJobID, delivery.ApplicationID, delivery.TenantID,
			delivery.WebhookURL, delivery.EventType, delivery.Payload, delivery.Status,
			delivery.RetryCount, delivery.MaxRetries, delivery.CreatedAt, delivery.UpdatedAt,
		).
		ToSql()
	if err != nil {
		return fmt.Errorf("failed to build query: %w", err)
	}

	if _, err := tx.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("failed to create webhook delivery: %w", err)
	}

	return nil
}

// GetByID retrieves a delivery by id
func (r *webhookDeliveryRepository) GetByID(ctx context.Context, id string) (*domain.WebhookDelivery, error) {
	query := `SELECT ` + webhookDeliveryColumns + ` FROM webhook_deliveries WHERE id = $1`

	delivery, err := scanWebhookDelivery(r.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, &domain.ErrNotFound{Entity: "webhook delivery", ID: id}
		}
		return nil, fmt.Errorf("failed to get webhook delivery: %w", err)
	}

	return delivery, nil
}

// GetByJobID retrieves the delivery bound to a job, or ErrNotFound
func (r *webhookDeliveryRepository) GetByJobID(ctx context.Context, jobID string) (*domain.WebhookDelivery, error) {
	query := `
		SELECT ` + webhookDeliveryColumns + `
		FROM webhook_deliveries
		WHERE email_job_id = $1
		ORDER BY created_at DESC
		LIMIT 1
	`

	delivery, err := scanWebhookDelivery(r.db.QueryRowContext(ctx, query, jobID))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, &domain.ErrNotFound{Entity: "webhook delivery", ID: jobID}
		}
		return nil, fmt.Errorf("failed to get webhook delivery by job: %w", err)
	}

	return delivery, nil
}

// MarkDelivered finalizes a successful delivery
func (r *webhookDeliveryRepository) MarkDelivered(ctx context.Context, id string, responseCode int, responseBody string, deliveredAt time.Time) error {
	query := `
		UPDATE webhook_deliveries
		SET status = 'delivered', delivered_at = $2, last_response_code = $3,
			last_response_body = $4, last_error = NULL, next_retry_at = NULL,
			updated_at = $2
		WHERE id = $1 AND status <> 'delivered'
	`

	_, err := r.db.ExecContext(ctx, query, id, deliveredAt, responseCode, truncateBody(responseBody))
	if err != nil {
		return fmt.Errorf("failed to mark delivery as delivered: %w", err)
	}

	return nil
}

// ScheduleRetry records a failed attempt and the next attempt time
func (r *webhookDeliveryRepository) ScheduleRetry(ctx context.Context, id string, retryCount int, nextRetryAt time.Time, responseCode *int, responseBody string, lastError string) error {
	query := `
		UPDATE webhook_deliveries
		SET retry_count = $2, next_retry_at = $3, last_response_code = $4,
			last_response_body = $5, last_error = $6, updated_at = NOW()
		WHERE id = $1 AND status = 'pending'
	`

	_, err := r.db.ExecContext(ctx, query, id, retryCount, nextRetryAt, responseCode, truncateBody(responseBody), lastError)
	if err != nil {
		return fmt.Errorf("failed to schedule delivery retry: %w", err)
	}

	return nil
}

// MarkFailed abandons a delivery after max retries
func (r *webhookDeliveryRepository) MarkFailed(ctx context.Context, id string, responseCode *int, responseBody string, lastError string) error {
	query := `
		UPDATE webhook_deliveries
		SET status = 'failed', last_response_code = $2, last_response_body = $3,
			last_error = $4, next_retry_at = NULL, updated_at = NOW()
		WHERE id = $1 AND status <> 'delivered'
	`

	_, err := r.db.ExecContext(ctx, query, id, responseCode, truncateBody(responseBody), lastError)
	if err != nil {
		return fmt.Errorf("failed to mark delivery as failed: %w", err)
	}

	return nil
}

func scanWebhookDelivery(row rowScanner) (*domain.WebhookDelivery, error) {
	var delivery domain.WebhookDelivery
	var nextRetryAt sql.NullTime
	var lastResponseCode sql.NullInt32
	var lastResponseBody sql.NullString
	var lastError sql.NullString
	var deliveredAt sql.NullTime

	err := row.Scan(
		&delivery.ID,
		&delivery.EmailJobID,
		&delivery.ApplicationID,
		&delivery.TenantID,
		&delivery.WebhookURL,
		&delivery.EventType,
		&delivery.Payload,
		&delivery.Status,
		&delivery.RetryCount,
		&delivery.MaxRetries,
		&nextRetryAt,
		&lastResponseCode,
		&lastResponseBody,
		&lastError,
		&deliveredAt,
		&delivery.CreatedAt,
		&delivery.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	if nextRetryAt.Valid {
		delivery.NextRetryAt = &nextRetryAt.Time
	}
	if lastResponseCode.Valid {
		code := int(lastResponseCode.Int32)
		delivery.LastResponseCode = &code
	}
	if lastResponseBody.Valid {
		delivery.LastResponseBody = &lastResponseBody.String
	}
	if lastError.Valid {
		delivery.LastError = &lastError.String
	}
	if deliveredAt.Valid {
		delivery.DeliveredAt = &deliveredAt.Time
	}

	return &delivery, nil
}
