package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func strPtr(s string) *string { return &s }

func TestApplicationWantsEvent(t *testing.T) {
	app := &Application{
		WebhookEnabled: true,
		WebhookURL:     strPtr("https://hooks.example.com/events"),
		WebhookEvents:  []string{"email.sent", "email.failed"},
	}

	assert.True(t, app.WantsEvent(WebhookEventEmailSent))
	assert.True(t, app.WantsEvent(WebhookEventEmailFailed))
}

func TestApplicationWantsEventDisabled(t *testing.T) {
	app := &Application{
		WebhookEnabled: false,
		WebhookURL:     strPtr("https://hooks.example.com/events"),
		WebhookEvents:  []string{"email.sent"},
	}
	assert.False(t, app.WantsEvent(WebhookEventEmailSent))
}

func TestApplicationWantsEventMissingURL(t *testing.T) {
	app := &Application{
		WebhookEnabled: true,
		WebhookEvents:  []string{"email.sent"},
	}
	assert.False(t, app.WantsEvent(WebhookEventEmailSent))

	app.WebhookURL = strPtr("")
	assert.False(t, app.WantsEvent(WebhookEventEmailSent))
}

func TestApplicationWantsEventNotSubscribed(t *testing.T) {
	app := &Application{
		WebhookEnabled: true,
		WebhookURL:     strPtr("https://hooks.example.com/events"),
		WebhookEvents:  []string{"email.sent"},
	}
	assert.False(t, app.WantsEvent(WebhookEventEmailFailed))
}
