package service

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/easeemail/easeemail/internal/domain"
	"github.com/easeemail/easeemail/pkg/logger"
)

// WebhookDispatcher turns a terminal job state into a pending webhook
// delivery. Failures here never propagate to the email pipeline.
type WebhookDispatcher struct {
	appRepo          domain.ApplicationRepository
	emailServiceRepo domain.EmailServiceRepository
	deliveryRepo     domain.WebhookDeliveryRepository
	jobRepo          domain.EmailJobRepository
	broker           domain.Broker
	maxRetries       int
	logger           logger.Logger
}

// NewWebhookDispatcher creates a new webhook dispatcher. maxRetries is the
// attempt budget stamped onto new deliveries; zero selects the default.
func NewWebhookDispatcher(
	appRepo domain.ApplicationRepository,
	emailServiceRepo domain.EmailServiceRepository,
	deliveryRepo domain.WebhookDeliveryRepository,
	jobRepo domain.EmailJobRepository,
	broker domain.Broker,
	maxRetries int,
	logger logger.Logger,
) *WebhookDispatcher {
	if maxRetries <= 0 {
		maxRetries = domain.WebhookMaxRetries
	}
	return &WebhookDispatcher{
		appRepo:          appRepo,
		emailServiceRepo: emailServiceRepo,
		deliveryRepo:     deliveryRepo,
		jobRepo:          jobRepo,
		broker:           broker,
		maxRetries:       maxRetries,
		logger:           logger,
	}
}

// PrepareTx inserts a pending delivery for the job's terminal state inside
// the worker's finalize transaction. Returns nil when the application did
// not subscribe to the event. The webhook URL is snapshotted here so later
// reconfiguration does not misdirect this event.
func (d *WebhookDispatcher) PrepareTx(ctx context.Context, tx *sql.Tx, job *domain.EmailJob, eventType domain.WebhookEventType) (*domain.WebhookDelivery, error) {
	app, err := d.appRepo.GetByID(ctx, job.ApplicationID)
	if err != nil {
		return nil, fmt.Errorf("failed to load application: %w", err)
	}

	if !app.WantsEvent(eventType) {
		return nil, nil
	}

	serviceName := ""
	if emailService, err := d.emailServiceRepo.GetByID(ctx, job.ServiceID); err == nil {
		serviceName = emailService.Name
	} else {
		d.logger.WithFields(map[string]interface{}{
			"job_id":     job.ID,
			"service_id": job.ServiceID,
			"error":      err.Error(),
		}).Warn("Failed to resolve service name for webhook payload")
	}

	payload := domain.WebhookPayload{
		Event:         eventType,
		Timestamp:     time.Now().UTC(),
		JobID:         job.ID,
		TenantID:      job.TenantID,
		ApplicationID: job.ApplicationID,
		ServiceName:   serviceName,
		ToEmail:       job.ToEmail,
		Subject:       job.Subject,
		Status:        string(job.Status),
		SentAt:        job.SentAt,
		ErrorCategory: job.ErrorCategory,
		ErrorMessage:  job.ErrorMessage,
		RetryCount:    job.RetryCount,
	}

	payloadBytes, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal webhook payload: %w", err)
	}

	now := time.Now().UTC()
	delivery := &domain.WebhookDelivery{
		ID:            uuid.New().String(),
		EmailJobID:    job.ID,
		ApplicationID: app.ID,
		TenantID:      job.TenantID,
		WebhookURL:    *app.WebhookURL,
		EventType:     eventType,
		Payload:       payloadBytes,
		Status:        domain.WebhookDeliveryStatusPending,
		MaxRetries:    d.maxRetries,
		CreatedAt:     now,
		UpdatedAt:     now,
	}

	if err := d.deliveryRepo.Create(ctx, tx, delivery); err != nil {
		return nil, fmt.Errorf("failed to create webhook delivery: %w", err)
	}

	if err := d.jobRepo.SetWebhookRequested(ctx, tx, job.ID); err != nil {
		return nil, fmt.Errorf("failed to flag webhook requested: %w", err)
	}

	return delivery, nil
}

// EnqueueDelivery puts the committed delivery on the webhook queue. An
// enqueue failure abandons the delivery but leaves the job untouched.
func (d *WebhookDispatcher) EnqueueDelivery(ctx context.Context, delivery *domain.WebhookDelivery) {
	if delivery == nil {
		return
	}

	if err := d.broker.Enqueue(ctx, domain.QueueWebhookDelivery, domain.TaskKindDeliverWebhook, delivery.ID); err != nil {
		d.logger.WithFields(map[string]interface{}{
			"delivery_id": delivery.ID,
			"job_id":      delivery.EmailJobID,
			"error":       err.Error(),
		}).Error("Failed to enqueue deliver_webhook task")

		message := fmt.Sprintf("failed to enqueue delivery task: %v", err)
		if markErr := d.deliveryRepo.MarkFailed(ctx, delivery.ID, nil, "", message); markErr != nil {
			d.logger.WithFields(map[string]interface{}{
				"delivery_id": delivery.ID,
				"error":       markErr.Error(),
			}).Error("Failed to mark webhook delivery failed after enqueue failure")
		}
		return
	}

	d.logger.WithFields(map[string]interface{}{
		"delivery_id": delivery.ID,
		"job_id":      delivery.EmailJobID,
		"event_type":  string(delivery.EventType),
	}).Debug("Webhook delivery queued")
}
