package repository

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/easeemail/easeemail/internal/domain"
	"github.com/easeemail/easeemail/internal/repository/testutil"
)

func testDelivery() *domain.WebhookDelivery {
	now := time.Now().UTC()
	return &domain.WebhookDelivery{
		ID:            "delivery-1",
		EmailJobID:    "job-123",
		ApplicationID: "app-1",
		TenantID:      "tenant-1",
		WebhookURL:    "https://hooks.example.com/events",
		EventType:     domain.WebhookEventEmailSent,
		Payload:       []byte(`{"event":"email.sent"}`),
		Status:        domain.WebhookDeliveryStatusPending,
		MaxRetries:    3,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
}

func webhookDeliveryRows(d *domain.WebhookDelivery) *sqlmock.Rows {
	return sqlmock.NewRows([]string{
		"id", "email_job_id", "application_id", "tenant_id", "webhook_url", "event_type",
		"payload", "status", "retry_count", "max_retries", "next_retry_at",
		"last_response_code", "last_response_body", "last_error", "delivered_at",
		"created_at", "updated_at",
	}).AddRow(
		d.ID, d.EmailJobID, d.ApplicationID, d.TenantID, d.WebhookURL, d.EventType,
		d.Payload, d.Status, d.RetryCount, d.MaxRetries, d.NextRetryAt,
		d.LastResponseCode, d.LastResponseBody, d.LastError, d.DeliveredAt,
		d.CreatedAt, d.UpdatedAt,
	)
}

func TestWebhookDeliveryRepository_Create(t *testing.T) {
	ctx := context.Background()

	db, mock, cleanup := testutil.SetupMockDB(t)
	defer cleanup()

	repo := NewWebhookDeliveryRepository(db)

	delivery := &domain.WebhookDelivery{
		EmailJobID:    "job-123",
		ApplicationID: "app-1",
		TenantID:      "tenant-1",
		WebhookURL:    "https://hooks.example.com/events",
		EventType:     domain.WebhookEventEmailSent,
		Payload:       []byte(`{"event":"email.sent"}`),
	}

	mock.ExpectBegin()
	mock.ExpectExec(`INSERT INTO webhook_deliveries`).
		WithArgs(
			sqlmock.AnyArg(), "job-123", "app-1", "tenant-1",
			"https://hooks.example.com/events", domain.WebhookEventEmailSent,
			[]byte(`{"event":"email.sent"}`), domain.WebhookDeliveryStatusPending,
			0, 3, sqlmock.AnyArg(), sqlmock.AnyArg(),
		).
		WillReturnResult(sqlmock.NewResult(1, 1))

	tx, err := db.BeginTx(ctx, nil)
	require.NoError(t, err)

	require.NoError(t, repo.Create(ctx, tx, delivery))
	assert.NotEmpty(t, delivery.ID)
	assert.Equal(t, domain.WebhookDeliveryStatusPending, delivery.Status)
	assert.Equal(t, 3, delivery.MaxRetries)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestWebhookDeliveryRepository_GetByID(t *testing.T) {
	ctx := context.Background()

	t.Run("returns delivery", func(t *testing.T) {
		db, mock, cleanup := testutil.SetupMockDB(t)
		defer cleanup()

		repo := NewWebhookDeliveryRepository(db)

		mock.ExpectQuery(`SELECT (.+) FROM webhook_deliveries WHERE id = \$1`).
			WithArgs("delivery-1").
			WillReturnRows(webhookDeliveryRows(testDelivery()))

		got, err := repo.GetByID(ctx, "delivery-1")
		require.NoError(t, err)
		assert.Equal(t, "delivery-1", got.ID)
		assert.Equal(t, domain.WebhookEventEmailSent, got.EventType)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("returns ErrNotFound", func(t *testing.T) {
		db, mock, cleanup := testutil.SetupMockDB(t)
		defer cleanup()

		repo := NewWebhookDeliveryRepository(db)

		mock.ExpectQuery(`SELECT (.+) FROM webhook_deliveries WHERE id = \$1`).
			WithArgs("missing").
			WillReturnRows(sqlmock.NewRows([]string{"id"}))

		_, err := repo.GetByID(ctx, "missing")

		var notFound *domain.ErrNotFound
		assert.ErrorAs(t, err, &notFound)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestWebhookDeliveryRepository_MarkDelivered(t *testing.T) {
	ctx := context.Background()

	db, mock, cleanup := testutil.SetupMockDB(t)
	defer cleanup()

	repo := NewWebhookDeliveryRepository(db)
	now := time.Now().UTC()

	mock.ExpectExec(`UPDATE webhook_deliveries\s+SET status = 'delivered'`).
		WithArgs("delivery-1", now, 200, "ok").
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, repo.MarkDelivered(ctx, "delivery-1", 200, "ok", now))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestWebhookDeliveryRepository_ScheduleRetry(t *testing.T) {
	ctx := context.Background()

	db, mock, cleanup := testutil.SetupMockDB(t)
	defer cleanup()

	repo := NewWebhookDeliveryRepository(db)
	nextRetryAt := time.Now().UTC().Add(time.Minute)
	code := 503

	mock.ExpectExec(`UPDATE webhook_deliveries\s+SET retry_count = \$2`).
		WithArgs("delivery-1", 1, nextRetryAt, &code, "service unavailable", "HTTP 503").
		WillReturnResult(sqlmock.NewResult(0, 1))

	err := repo.ScheduleRetry(ctx, "delivery-1", 1, nextRetryAt, &code, "service unavailable", "HTTP 503")
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestWebhookDeliveryRepository_MarkFailedTruncatesBody(t *testing.T) {
	ctx := context.Background()

	db, mock, cleanup := testutil.SetupMockDB(t)
	defer cleanup()

	repo := NewWebhookDeliveryRepository(db)
	longBody := strings.Repeat("x", 4096)

	mock.ExpectExec(`UPDATE webhook_deliveries\s+SET status = 'failed'`).
		WithArgs("delivery-1", nil, strings.Repeat("x", domain.MaxResponseBodySize), "connection refused").
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, repo.MarkFailed(ctx, "delivery-1", nil, longBody, "connection refused"))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestTruncateBody(t *testing.T) {
	assert.Equal(t, "short", truncateBody("short"))

	long := strings.Repeat("a", 2000)
	assert.Len(t, truncateBody(long), domain.MaxResponseBodySize)
}
