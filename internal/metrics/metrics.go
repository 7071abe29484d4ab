// Package metrics defines the OpenCensus measures and views for the
// delivery pipeline.
package metrics

import (
	"context"
	"time"

	"go.opencensus.io/stats"
	"go.opencensus.io/stats/view"
	"go.opencensus.io/tag"
)

var (
	// EmailsSent counts successful SMTP submissions
	EmailsSent = stats.Int64("emails_sent_total", "Number of emails sent", stats.UnitDimensionless)

	// EmailsFailed counts terminally failed jobs, tagged with the error category
	EmailsFailed = stats.Int64("emails_failed_total", "Number of emails that failed terminally", stats.UnitDimensionless)

	// EmailRetries counts scheduled delivery retries
	EmailRetries = stats.Int64("email_retries_total", "Number of delivery retries scheduled", stats.UnitDimensionless)

	// EmailProcessingDuration measures one worker pass over a job
	EmailProcessingDuration = stats.Float64("email_processing_duration_seconds", "Time spent processing one email task", stats.UnitSeconds)

	// WebhooksDelivered counts successful webhook deliveries
	WebhooksDelivered = stats.Int64("webhooks_delivered_total", "Number of webhooks delivered", stats.UnitDimensionless)

	// WebhooksFailed counts abandoned webhook deliveries
	WebhooksFailed = stats.Int64("webhooks_failed_total", "Number of webhooks that failed terminally", stats.UnitDimensionless)
)

// KeyErrorCategory tags failure counts with permanent/temporary/system
var KeyErrorCategory = tag.MustNewKey("error_category")

// Views for all pipeline measures
var Views = []*view.View{
	{
		Name:        "emails_sent_total",
		Description: "Number of emails sent",
		Measure:     EmailsSent,
		Aggregation: view.Count(),
	},
	{
		Name:        "emails_failed_total",
		Description: "Number of emails that failed terminally",
		Measure:     EmailsFailed,
		TagKeys:     []tag.Key{KeyErrorCategory},
		Aggregation: view.Count(),
	},
	{
		Name:        "email_retries_total",
		Description: "Number of delivery retries scheduled",
		Measure:     EmailRetries,
		Aggregation: view.Count(),
	},
	{
		Name:        "email_processing_duration_seconds",
		Description: "Time spent processing one email task",
		Measure:     EmailProcessingDuration,
		Aggregation: view.Distribution(0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60),
	},
	{
		Name:        "webhooks_delivered_total",
		Description: "Number of webhooks delivered",
		Measure:     WebhooksDelivered,
		Aggregation: view.Count(),
	},
	{
		Name:        "webhooks_failed_total",
		Description: "Number of webhooks that failed terminally",
		Measure:     WebhooksFailed,
		Aggregation: view.Count(),
	},
}

// RegisterViews registers all pipeline views with OpenCensus
func RegisterViews() error {
	return view.Register(Views...)
}

// RecordEmailSent increments the sent counter
func RecordEmailSent(ctx context.Context) {
	stats.Record(ctx, EmailsSent.M(1))
}

// RecordEmailFailed increments the failed counter with its category tag
func RecordEmailFailed(ctx context.Context, category string) {
	ctx, err := tag.New(ctx, tag.Upsert(KeyErrorCategory, category))
	if err != nil {
		stats.Record(ctx, EmailsFailed.M(1))
		return
	}
	stats.Record(ctx, EmailsFailed.M(1))
}

// RecordEmailRetry increments the retry counter
func RecordEmailRetry(ctx context.Context) {
	stats.Record(ctx, EmailRetries.M(1))
}

// RecordEmailProcessingDuration records one worker pass
func RecordEmailProcessingDuration(ctx context.Context, d time.Duration) {
	stats.Record(ctx, EmailProcessingDuration.M(d.Seconds()))
}

// RecordWebhookDelivered increments the delivered counter
func RecordWebhookDelivered(ctx context.Context) {
	stats.Record(ctx, WebhooksDelivered.M(1))
}

// RecordWebhookFailed increments the webhook failed counter
func RecordWebhookFailed(ctx context.Context) {
	stats.Record(ctx, WebhooksFailed.M(1))
}
