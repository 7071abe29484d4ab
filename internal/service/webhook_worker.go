package service

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"

	"github.com/easeemail/easeemail/internal/domain"
	"github.com/easeemail/easeemail/internal/metrics"
	"github.com/easeemail/easeemail/pkg/crypto"
	"github.com/easeemail/easeemail/pkg/logger"
	"github.com/easeemail/easeemail/pkg/tracing"
)

// WebhookUserAgent identifies outbound webhook requests
const WebhookUserAgent = "EaseEmail-Webhook/1.0"

// WebhookWorkerConfig holds configuration for the webhook worker pool
type WebhookWorkerConfig struct {
	Concurrency  int           // Number of concurrent delivery loops (default: 2)
	PollInterval time.Duration // Sleep between polls when the queue is empty (default: 1s)
	Timeout      time.Duration // Per-request timeout (default: 10s)
}

// DefaultWebhookWorkerConfig returns sensible default configuration
func DefaultWebhookWorkerConfig() *WebhookWorkerConfig {
	return &WebhookWorkerConfig{
		Concurrency:  2,
		PollInterval: 1 * time.Second,
		Timeout:      10 * time.Second,
	}
}

// WebhookWorker consumes deliver_webhook tasks and posts payloads to
// subscribers. A delivery counts retries by completed failed attempts and is
// abandoned after max_retries of them. It never touches the email job.
type WebhookWorker struct {
	deliveryRepo domain.WebhookDeliveryRepository
	appRepo      domain.ApplicationRepository
	broker       domain.Broker
	httpClient   *http.Client
	config       *WebhookWorkerConfig
	logger       logger.Logger

	cancel  context.CancelFunc
	wg      sync.WaitGroup
	running bool
	mu      sync.Mutex
}

// NewWebhookWorker creates a new webhook worker
func NewWebhookWorker(
	deliveryRepo domain.WebhookDeliveryRepository,
	appRepo domain.ApplicationRepository,
	broker domain.Broker,
	httpClient *http.Client,
	config *WebhookWorkerConfig,
	log logger.Logger,
) *WebhookWorker {
	if config == nil {
		config = DefaultWebhookWorkerConfig()
	}
	if config.Concurrency <= 0 {
		config.Concurrency = 2
	}
	if config.PollInterval <= 0 {
		config.PollInterval = 1 * time.Second
	}
	if config.Timeout <= 0 {
		config.Timeout = 10 * time.Second
	}

	if httpClient == nil {
		httpClient = tracing.WrapHTTPClient(&http.Client{
			Timeout: config.Timeout,
		})
	}

	return &WebhookWorker{
		deliveryRepo: deliveryRepo,
		appRepo:      appRepo,
		broker:       broker,
		httpClient:   httpClient,
		config:       config,
		logger:       log,
	}
}

// Start launches the delivery loops
func (w *WebhookWorker) Start(ctx context.Context) {
	w.mu.Lock()
	if w.running {
		w.mu.Unlock()
		return
	}
	ctx, w.cancel = context.WithCancel(ctx)
	w.running = true
	w.mu.Unlock()

	w.logger.WithFields(map[string]interface{}{
		"concurrency":   w.config.Concurrency,
		"poll_interval": w.config.PollInterval.String(),
	}).Info("Starting webhook worker")

	for i := 0; i < w.config.Concurrency; i++ {
		w.wg.Add(1)
		go w.runLoop(ctx)
	}
}

// Stop drains the delivery loops and blocks until they exit
func (w *WebhookWorker) Stop() {
	w.mu.Lock()
	if !w.running {
		w.mu.Unlock()
		return
	}
	w.running = false
	w.cancel()
	w.mu.Unlock()

	w.logger.Info("Stopping webhook worker...")
	w.wg.Wait()
	w.logger.Info("Webhook worker stopped")
}

func (w *WebhookWorker) runLoop(ctx context.Context) {
	defer w.wg.Done()

	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		task, err := w.broker.Dequeue(ctx, domain.QueueWebhookDelivery)
		if err != nil {
			w.logger.WithField("error", err.Error()).Error("Failed to dequeue webhook task")
			w.sleep(ctx)
			continue
		}
		if task == nil {
			w.sleep(ctx)
			continue
		}

		w.ProcessTask(ctx, task)
	}
}

func (w *WebhookWorker) sleep(ctx context.Context) {
	select {
	case <-ctx.Done():
	case <-time.After(w.config.PollInterval):
	}
}

// ProcessTask runs one delivery attempt for the task's webhook delivery
func (w *WebhookWorker) ProcessTask(ctx context.Context, task *domain.Task) {
	ctx, span := tracing.StartServiceSpan(ctx, "WebhookWorker", "ProcessTask")
	defer span.End()
	tracing.AddAttribute(ctx, "delivery_id", task.EntityID)

	delivery, err := w.deliveryRepo.GetByID(ctx, task.EntityID)
	if err != nil {
		w.logger.WithFields(map[string]interface{}{
			"delivery_id": task.EntityID,
			"error":       err.Error(),
		}).Error("Task references unknown webhook delivery")
		w.ack(ctx, task)
		return
	}

	// Idempotency: redelivered tasks for finished deliveries are no-ops
	if delivery.Status != domain.WebhookDeliveryStatusPending {
		w.ack(ctx, task)
		return
	}

	// The API key is read at delivery time, not from the snapshot, so key
	// rotation takes effect on the next attempt.
	apiKey := ""
	app, err := w.appRepo.GetByID(ctx, delivery.ApplicationID)
	if err != nil {
		w.handleFailure(ctx, task, delivery, nil, "", fmt.Sprintf("failed to load application: %v", err))
		return
	}
	if app.WebhookAPIKey != nil {
		apiKey = *app.WebhookAPIKey
	}

	statusCode, responseBody, err := w.post(ctx, delivery, apiKey)
	if err != nil {
		w.handleFailure(ctx, task, delivery, nil, "", err.Error())
		return
	}

	if statusCode >= 200 && statusCode < 300 {
		w.handleSuccess(ctx, task, delivery, statusCode, responseBody)
		return
	}

	w.handleFailure(ctx, task, delivery, &statusCode, responseBody, fmt.Sprintf("HTTP %d", statusCode))
}

// post sends the snapshotted payload to the snapshotted URL
func (w *WebhookWorker) post(ctx context.Context, delivery *domain.WebhookDelivery, apiKey string) (int, string, error) {
	ctx, cancel := context.WithTimeout(ctx, w.config.Timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, delivery.WebhookURL, bytes.NewReader(delivery.Payload))
	if err != nil {
		return 0, "", fmt.Errorf("failed to create webhook request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", WebhookUserAgent)
	if apiKey != "" {
		req.Header.Set("X-API-Key", apiKey)
		req.Header.Set("X-Webhook-Signature", crypto.ComputeHMAC256(delivery.Payload, apiKey))
	}

	resp, err := w.httpClient.Do(req)
	if err != nil {
		return 0, "", err
	}
	defer resp.Body.Close()

	bodyBytes, _ := io.ReadAll(io.LimitReader(resp.Body, domain.MaxResponseBodySize))
	return resp.StatusCode, string(bodyBytes), nil
}

func (w *WebhookWorker) handleSuccess(ctx context.Context, task *domain.Task, delivery *domain.WebhookDelivery, statusCode int, responseBody string) {
	now := time.Now().UTC()
	if err := w.deliveryRepo.MarkDelivered(ctx, delivery.ID, statusCode, responseBody, now); err != nil {
		w.logger.WithFields(map[string]interface{}{
			"delivery_id": delivery.ID,
			"error":       err.Error(),
		}).Error("Failed to mark webhook delivered")
		return
	}

	metrics.RecordWebhookDelivered(ctx)
	w.logger.WithFields(map[string]interface{}{
		"delivery_id": delivery.ID,
		"job_id":      delivery.EmailJobID,
		"status_code": statusCode,
	}).Debug("Webhook delivered")
	w.ack(ctx, task)
}

func (w *WebhookWorker) handleFailure(ctx context.Context, task *domain.Task, delivery *domain.WebhookDelivery, statusCode *int, responseBody, lastError string) {
	tracing.MarkSpanError(ctx, errors.New(lastError))
	attempts := delivery.RetryCount + 1

	if attempts >= delivery.MaxRetries {
		if err := w.deliveryRepo.MarkFailed(ctx, delivery.ID, statusCode, responseBody, lastError); err != nil {
			w.logger.WithFields(map[string]interface{}{
				"delivery_id": delivery.ID,
				"error":       err.Error(),
			}).Error("Failed to mark webhook failed")
			return
		}

		metrics.RecordWebhookFailed(ctx)
		w.logger.WithFields(map[string]interface{}{
			"delivery_id": delivery.ID,
			"job_id":      delivery.EmailJobID,
			"attempts":    attempts,
			"error":       lastError,
		}).Error("Webhook abandoned after max retries")
		w.ack(ctx, task)
		return
	}

	nextRetryAt := domain.NextWebhookRetryAt(delivery.RetryCount)
	if err := w.deliveryRepo.ScheduleRetry(ctx, delivery.ID, attempts, nextRetryAt, statusCode, responseBody, lastError); err != nil {
		w.logger.WithFields(map[string]interface{}{
			"delivery_id": delivery.ID,
			"error":       err.Error(),
		}).Error("Failed to schedule webhook retry")
		return
	}

	w.logger.WithFields(map[string]interface{}{
		"delivery_id":   delivery.ID,
		"job_id":        delivery.EmailJobID,
		"retry_count":   attempts,
		"next_retry_at": nextRetryAt.Format(time.RFC3339),
		"error":         lastError,
	}).Warn("Webhook attempt failed, retry scheduled")
	w.nack(ctx, task, time.Until(nextRetryAt))
}

func (w *WebhookWorker) ack(ctx context.Context, task *domain.Task) {
	if err := w.broker.Ack(ctx, task.ID); err != nil {
		w.logger.WithFields(map[string]interface{}{
			"task_id": task.ID,
			"error":   err.Error(),
		}).Warn("Failed to ack task")
	}
}

func (w *WebhookWorker) nack(ctx context.Context, task *domain.Task, delay time.Duration) {
	if delay < 0 {
		delay = 0
	}
	if err := w.broker.Nack(ctx, task.ID, delay); err != nil {
		w.logger.WithFields(map[string]interface{}{
			"task_id": task.ID,
			"error":   err.Error(),
		}).Warn("Failed to nack task")
	}
}
