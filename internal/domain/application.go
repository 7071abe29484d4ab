package domain

import (
	"context"
	"time"
)

// WebhookEventType identifies which terminal job outcome a webhook reports
type WebhookEventType string

const (
	WebhookEventEmailSent   WebhookEventType = "email.sent"
	WebhookEventEmailFailed WebhookEventType = "email.failed"
)

// Application is a tenant-owned API client. It is created and updated
// out-of-band; the delivery pipeline only reads it.
type Application struct {
	ID             string    `json:"id"`
	TenantID       string    `json:"tenant_id"`
	Name           string    `json:"name"`
	APIKey         string    `json:"-"`
	WebhookURL     *string   `json:"webhook_url,omitempty"`
	WebhookAPIKey  *string   `json:"-"`
	WebhookEnabled bool      `json:"webhook_enabled"`
	WebhookEvents  []string  `json:"webhook_events"`
	Status         string    `json:"status"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}

// WantsEvent reports whether the application subscribed to the given event
// type and has a usable webhook target.
func (a *Application) WantsEvent(event WebhookEventType) bool {
	if !a.WebhookEnabled || a.WebhookURL == nil || *a.WebhookURL == "" {
		return false
	}
	for _, e := range a.WebhookEvents {
		if e == string(event) {
			return true
		}
	}
	return false
}

// ApplicationRepository provides read-only access to applications
type ApplicationRepository interface {
	GetByAPIKey(ctx context.Context, apiKey string) (*Application, error)
	GetByID(ctx context.Context, id string) (*Application, error)
}
