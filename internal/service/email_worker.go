package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/easeemail/easeemail/internal/domain"
	"github.com/easeemail/easeemail/internal/metrics"
	"github.com/easeemail/easeemail/pkg/crypto"
	"github.com/easeemail/easeemail/pkg/emailerror"
	"github.com/easeemail/easeemail/pkg/logger"
	"github.com/easeemail/easeemail/pkg/mailer"
	"github.com/easeemail/easeemail/pkg/tracing"
)

// EmailWorkerConfig holds configuration for the delivery worker pool
type EmailWorkerConfig struct {
	Concurrency  int           // Number of concurrent delivery loops (default: 5)
	PollInterval time.Duration // Sleep between polls when the queue is empty (default: 1s)
	SecretKey    string        // Wrap key for stored SMTP passwords
}

// DefaultEmailWorkerConfig returns sensible default configuration
func DefaultEmailWorkerConfig() *EmailWorkerConfig {
	return &EmailWorkerConfig{
		Concurrency:  5,
		PollInterval: 1 * time.Second,
	}
}

// taskDeadline bounds one delivery attempt end to end: claim transaction,
// SMTP submission and finalize transaction.
const taskDeadline = 120 * time.Second

// Claim-phase outcomes that end the task without touching the job
var (
	errSkipLocked    = errors.New("job locked by another worker")
	errSkipDone      = errors.New("job already terminal")
	errLeaveInFlight = errors.New("job still in flight")
)

// EmailWorker consumes send_email tasks and drives jobs through their state
// machine. Every status change happens under the job's row lock; the sent_at
// gate keeps SMTP submission at-most-once under broker redelivery.
type EmailWorker struct {
	txRunner          domain.TransactionRunner
	jobRepo           domain.EmailJobRepository
	serviceConfigRepo domain.ServiceConfigurationRepository
	smtpConfigRepo    domain.SMTPConfigurationRepository
	logRepo           domain.EmailLogRepository
	dispatcher        *WebhookDispatcher
	broker            domain.Broker
	sender            mailer.Sender
	classifier        *emailerror.Classifier
	config            *EmailWorkerConfig
	logger            logger.Logger

	cancel  context.CancelFunc
	wg      sync.WaitGroup
	running bool
	mu      sync.Mutex
}

// NewEmailWorker creates a new email worker
func NewEmailWorker(
	txRunner domain.TransactionRunner,
	jobRepo domain.EmailJobRepository,
	serviceConfigRepo domain.ServiceConfigurationRepository,
	smtpConfigRepo domain.SMTPConfigurationRepository,
	logRepo domain.EmailLogRepository,
	dispatcher *WebhookDispatcher,
	broker domain.Broker,
	sender mailer.Sender,
	config *EmailWorkerConfig,
	log logger.Logger,
) *EmailWorker {
	if config == nil {
		config = DefaultEmailWorkerConfig()
	}
	if config.Concurrency <= 0 {
		config.Concurrency = 5
	}
	if config.PollInterval <= 0 {
		config.PollInterval = 1 * time.Second
	}

	return &EmailWorker{
		txRunner:          txRunner,
		jobRepo:           jobRepo,
		serviceConfigRepo: serviceConfigRepo,
		smtpConfigRepo:    smtpConfigRepo,
		logRepo:           logRepo,
		dispatcher:        dispatcher,
		broker:            broker,
		sender:            sender,
		classifier:        emailerror.NewClassifier(),
		config:            config,
		logger:            log,
	}
}

// Start launches the delivery loops
func (w *EmailWorker) Start(ctx context.Context) {
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
	}).Info("Starting email worker")

	for i := 0; i < w.config.Concurrency; i++ {
		w.wg.Add(1)
		go w.runLoop(ctx)
	}
}

// Stop drains the delivery loops and blocks until they exit
func (w *EmailWorker) Stop() {
	w.mu.Lock()
	if !w.running {
		w.mu.Unlock()
		return
	}
	w.running = false
	w.cancel()
	w.mu.Unlock()

	w.logger.Info("Stopping email worker...")
	w.wg.Wait()
	w.logger.Info("Email worker stopped")
}

func (w *EmailWorker) runLoop(ctx context.Context) {
	defer w.wg.Done()

	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		task, err := w.broker.Dequeue(ctx, domain.QueueEmailDelivery)
		if err != nil {
			w.logger.WithField("error", err.Error()).Error("Failed to dequeue email task")
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

func (w *EmailWorker) sleep(ctx context.Context) {
	select {
	case <-ctx.Done():
	case <-time.After(w.config.PollInterval):
	}
}

// ProcessTask runs one delivery attempt for the task's job
func (w *EmailWorker) ProcessTask(ctx context.Context, task *domain.Task) {
	start := time.Now()

	ctx, span := tracing.StartServiceSpan(ctx, "EmailWorker", "ProcessTask")
	defer span.End()
	tracing.AddAttribute(ctx, "job_id", task.EntityID)

	ctx, cancel := context.WithTimeout(ctx, taskDeadline)
	defer cancel()

	job, err := w.claimJob(ctx, task.EntityID)
	if err != nil {
		switch {
		case errors.Is(err, errSkipLocked):
			// The owning worker will finish it
			w.ack(ctx, task)
		case errors.Is(err, errSkipDone):
			w.logger.WithField("job_id", task.EntityID).Debug("Skipping already finalized job")
			w.ack(ctx, task)
		case errors.Is(err, errLeaveInFlight):
			// Leave the task unacked; the visibility timeout redelivers it
			// once the stale threshold can be judged again
		default:
			var notFound *domain.ErrNotFound
			if errors.As(err, &notFound) {
				w.logger.WithField("job_id", task.EntityID).Error("Task references unknown job")
				w.ack(ctx, task)
				return
			}
			w.logger.WithFields(map[string]interface{}{
				"job_id": task.EntityID,
				"error":  err.Error(),
			}).Error("Failed to claim job")
		}
		return
	}

	sendErr := w.deliver(ctx, job)
	w.finalize(ctx, task, job, sendErr)

	metrics.RecordEmailProcessingDuration(ctx, time.Since(start))
}

// claimJob locks the job row, applies the idempotency and stale-processing
// gates and marks the job processing.
func (w *EmailWorker) claimJob(ctx context.Context, jobID string) (*domain.EmailJob, error) {
	var job *domain.EmailJob

	err := w.txRunner.RunInTx(ctx, func(tx *sql.Tx) error {
		var err error
		job, err = w.jobRepo.GetForUpdate(ctx, tx, jobID)
		if err != nil {
			if errors.Is(err, domain.ErrJobLocked) {
				return errSkipLocked
			}
			return err
		}

		// At-most-one delivery: once sent_at is set, no execution may reach
		// the sender again.
		if job.SentAt != nil || job.IsTerminal() {
			return errSkipDone
		}

		now := time.Now().UTC()
		if job.Status == domain.EmailJobStatusProcessing && !job.IsStaleProcessing(now) {
			return errLeaveInFlight
		}

		if err := w.jobRepo.MarkProcessing(ctx, tx, job.ID, now); err != nil {
			return fmt.Errorf("failed to mark job processing: %w", err)
		}
		job.Status = domain.EmailJobStatusProcessing
		job.ProcessingStartedAt = &now
		return nil
	})
	if err != nil {
		return nil, err
	}
	return job, nil
}

// deliver resolves the relay configuration and submits the envelope.
// Returns nil on success, a classified error otherwise.
func (w *EmailWorker) deliver(ctx context.Context, job *domain.EmailJob) *emailerror.ClassifiedError {
	serviceConfig, err := w.serviceConfigRepo.GetActive(ctx, job.ServiceID, job.ApplicationID)
	if err != nil {
		return emailerror.Permanent(fmt.Errorf("no active SMTP configuration: %w", err))
	}

	smtpConfig, err := w.smtpConfigRepo.GetByID(ctx, serviceConfig.SMTPConfigurationID)
	if err != nil {
		return emailerror.Permanent(fmt.Errorf("SMTP configuration missing: %w", err))
	}

	params := mailer.RelayParams{
		Host:     smtpConfig.Host,
		Port:     smtpConfig.Port,
		Username: smtpConfig.Username,
		Password: crypto.UnwrapSecret(smtpConfig.PasswordWrapped, w.config.SecretKey),
		UseTLS:   smtpConfig.UseTLS,
	}
	env := mailer.Envelope{
		From:     smtpConfig.Username,
		To:       job.ToEmail,
		Subject:  job.Subject,
		HTMLBody: job.Body,
	}

	if err := w.sender.Send(ctx, params, env); err != nil {
		return w.classifier.Classify(err)
	}
	return nil
}

// finalize commits the attempt outcome: status transition, log row and, on
// a terminal state, the webhook dispatch. The webhook runs in its own
// transaction after the job commit so its failures never reverse a send.
func (w *EmailWorker) finalize(ctx context.Context, task *domain.Task, job *domain.EmailJob, sendErr *emailerror.ClassifiedError) {
	now := time.Now().UTC()

	var (
		eventType   domain.WebhookEventType
		nextRetryAt time.Time
		retrying    bool
	)

	err := w.txRunner.RunInTx(ctx, func(tx *sql.Tx) error {
		switch {
		case sendErr == nil:
			if err := w.jobRepo.MarkSent(ctx, tx, job.ID, now); err != nil {
				return err
			}
			job.Status = domain.EmailJobStatusSent
			job.SentAt = &now
			job.ErrorMessage = nil
			job.ErrorCategory = nil
			eventType = domain.WebhookEventEmailSent
			return w.appendLog(ctx, tx, job.ID, "sent", 200, "message accepted")

		case sendErr.Retryable() && job.RetryCount < job.MaxRetries:
			retryCount := job.RetryCount + 1
			nextRetryAt = domain.NextEmailRetryAt(job.RetryCount)
			if err := w.jobRepo.ScheduleRetry(ctx, tx, job.ID, retryCount, nextRetryAt, sendErr.Error()); err != nil {
				return err
			}
			job.Status = domain.EmailJobStatusRetryPending
			job.RetryCount = retryCount
			retrying = true
			return w.appendLog(ctx, tx, job.ID, "retry_pending", 500, sendErr.Error())

		default:
			category := string(sendErr.Category)
			message := sendErr.Error()
			if err := w.jobRepo.MarkFailed(ctx, tx, job.ID, category, message); err != nil {
				return err
			}
			job.Status = domain.EmailJobStatusFailed
			job.ErrorCategory = &category
			job.ErrorMessage = &message
			eventType = domain.WebhookEventEmailFailed
			return w.appendLog(ctx, tx, job.ID, "failed", 500, message)
		}
	})
	if err != nil {
		// Nothing committed; the task stays claimed until the visibility
		// timeout redelivers it.
		tracing.MarkSpanError(ctx, err)
		w.logger.WithFields(map[string]interface{}{
			"job_id": job.ID,
			"error":  err.Error(),
		}).Error("Failed to finalize job")
		return
	}

	switch {
	case retrying:
		metrics.RecordEmailRetry(ctx)
		w.logger.WithFields(map[string]interface{}{
			"job_id":        job.ID,
			"retry_count":   job.RetryCount,
			"next_retry_at": nextRetryAt.Format(time.RFC3339),
			"error":         sendErr.Error(),
		}).Warn("Delivery failed, retry scheduled")
		w.nack(ctx, task, time.Until(nextRetryAt))
		return

	case job.Status == domain.EmailJobStatusSent:
		metrics.RecordEmailSent(ctx)
		w.logger.WithField("job_id", job.ID).Info("Email sent")

	default:
		metrics.RecordEmailFailed(ctx, string(sendErr.Category))
		w.logger.WithFields(map[string]interface{}{
			"job_id":   job.ID,
			"category": string(sendErr.Category),
			"error":    sendErr.Error(),
		}).Error("Email failed terminally")
	}

	w.dispatchWebhook(ctx, job, eventType)
	w.ack(ctx, task)
}

// dispatchWebhook queues the terminal-state notification. Errors are logged
// and swallowed; the job outcome is already committed.
func (w *EmailWorker) dispatchWebhook(ctx context.Context, job *domain.EmailJob, eventType domain.WebhookEventType) {
	var delivery *domain.WebhookDelivery

	err := w.txRunner.RunInTx(ctx, func(tx *sql.Tx) error {
		var err error
		delivery, err = w.dispatcher.PrepareTx(ctx, tx, job, eventType)
		return err
	})
	if err != nil {
		w.logger.WithFields(map[string]interface{}{
			"job_id":     job.ID,
			"event_type": string(eventType),
			"error":      err.Error(),
		}).Error("Failed to queue webhook delivery")
		return
	}

	w.dispatcher.EnqueueDelivery(ctx, delivery)
}

func (w *EmailWorker) appendLog(ctx context.Context, tx *sql.Tx, jobID, status string, code int, message string) error {
	log := &domain.EmailLog{
		ID:              uuid.New().String(),
		JobID:           jobID,
		Status:          status,
		ResponseCode:    &code,
		ResponseMessage: &message,
		CreatedAt:       time.Now().UTC(),
	}
	if err := w.logRepo.Create(ctx, tx, log); err != nil {
		return fmt.Errorf("failed to append email log: %w", err)
	}
	return nil
}

func (w *EmailWorker) ack(ctx context.Context, task *domain.Task) {
	if err := w.broker.Ack(ctx, task.ID); err != nil {
		w.logger.WithFields(map[string]interface{}{
			"task_id": task.ID,
			"error":   err.Error(),
		}).Warn("Failed to ack task")
	}
}

func (w *EmailWorker) nack(ctx context.Context, task *domain.Task, delay time.Duration) {
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
