package domain

import (
	"context"
	"database/sql"
	"time"
)

// WebhookDeliveryStatus represents the status of an outbound notification
type WebhookDeliveryStatus string

const (
	WebhookDeliveryStatusPending   WebhookDeliveryStatus = "pending"
	WebhookDeliveryStatusDelivered WebhookDeliveryStatus = "delivered"
	WebhookDeliveryStatusFailed    WebhookDeliveryStatus = "failed"
)

// WebhookMaxRetries is the number of completed failed attempts before a
// delivery is abandoned
const WebhookMaxRetries = 3

// MaxResponseBodySize caps how much of the subscriber response is stored
const MaxResponseBodySize = 1024

// WebhookDelivery is one persisted outbound notification bound to exactly
// one terminal job state. The URL is snapshotted at queue time so later
// subscriber reconfiguration does not misdirect historical events.
type WebhookDelivery struct {
	ID               string                `json:"id"`
	EmailJobID       string                `json:"email_job_id"`
	ApplicationID    string                `json:"application_id"`
	TenantID         string                `json:"tenant_id"`
	WebhookURL       string                `json:"webhook_url"`
	EventType        WebhookEventType      `json:"event_type"`
	Payload          []byte                `json:"-"`
	Status           WebhookDeliveryStatus `json:"status"`
	RetryCount       int                   `json:"retry_count"`
	MaxRetries       int                   `json:"max_retries"`
	NextRetryAt      *time.Time            `json:"next_retry_at,omitempty"`
	LastResponseCode *int                  `json:"last_response_code,omitempty"`
	LastResponseBody *string               `json:"-"`
	LastError        *string               `json:"last_error,omitempty"`
	DeliveredAt      *time.Time            `json:"delivered_at,omitempty"`
	CreatedAt        time.Time             `json:"created_at"`
	UpdatedAt        time.Time             `json:"updated_at"`
}

// WebhookPayload is the JSON body posted to the subscriber
type WebhookPayload struct {
	Event         WebhookEventType `json:"event"`
	Timestamp     time.Time        `json:"timestamp"`
	JobID         string           `json:"job_id"`
	TenantID      string           `json:"tenant_id"`
	ApplicationID string           `json:"application_id"`
	ServiceName   string           `json:"service_name"`
	ToEmail       string           `json:"to_email"`
	Subject       string           `json:"subject"`
	Status        string           `json:"status"`
	SentAt        *time.Time       `json:"sent_at,omitempty"`
	ErrorCategory *string          `json:"error_category,omitempty"`
	ErrorMessage  *string          `json:"error_message,omitempty"`
	RetryCount    int              `json:"retry_count"`
}

// NextWebhookRetryAt computes the next attempt time for a failed delivery.
// Backoff is 30*2^attempt seconds plus up to 25% jitter.
func NextWebhookRetryAt(attempt int) time.Time {
	return retryAt(30*time.Second, attempt)
}

// WebhookDeliveryRepository defines data access for webhook deliveries
type WebhookDeliveryRepository interface {
	Create(ctx context.Context, tx *sql.Tx, delivery *WebhookDelivery) error
	GetByID(ctx context.Context, id string) (*WebhookDelivery, error)
	GetByJobID(ctx context.Context, jobID string) (*WebhookDelivery, error)

	MarkDelivered(ctx context.Context, id string, responseCode int, responseBody string, deliveredAt time.Time) error
	ScheduleRetry(ctx context.Context, id string, retryCount int, nextRetryAt time.Time, responseCode *int, responseBody string, lastError string) error
	MarkFailed(ctx context.Context, id string, responseCode *int, responseBody string, lastError string) error
}
