package domain

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNextWebhookRetryAt(t *testing.T) {
	for attempt := 0; attempt <= 3; attempt++ {
		base := time.Duration(30*(1<<uint(attempt))) * time.Second

		next := NextWebhookRetryAt(attempt)
		delay := time.Until(next)

		assert.GreaterOrEqual(t, delay, base-time.Second, "attempt %d", attempt)
		assert.LessOrEqual(t, delay, base+base/4+time.Second, "attempt %d", attempt)
	}
}

func TestWebhookPayloadJSON(t *testing.T) {
	sentAt := time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)
	payload := WebhookPayload{
		Event:         WebhookEventEmailSent,
		Timestamp:     sentAt,
		JobID:         "job-1",
		TenantID:      "tenant-1",
		ApplicationID: "app-1",
		ServiceName:   "welcome",
		ToEmail:       "alice@example.com",
		Subject:       "Hi Alice",
		Status:        "sent",
		SentAt:        &sentAt,
		RetryCount:    0,
	}

	data, err := json.Marshal(payload)
	require.NoError(t, err)

	var decoded map[string]interface{}
	require.NoError(t, json.Unmarshal(data, &decoded))

	assert.Equal(t, "email.sent", decoded["event"])
	assert.Equal(t, "welcome", decoded["service_name"])

	// Error fields are omitted on success payloads
	_, hasError := decoded["error_message"]
	assert.False(t, hasError)
	_, hasCategory := decoded["error_category"]
	assert.False(t, hasCategory)
}
