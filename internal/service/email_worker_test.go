package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"

	"github.com/easeemail/easeemail/internal/domain"
	"github.com/easeemail/easeemail/internal/domain/mocks"
	"github.com/easeemail/easeemail/pkg/logger"
	"github.com/easeemail/easeemail/pkg/mailer"
)

type workerFixture struct {
	txRunner          *mocks.MockTxRunner
	jobRepo           *mocks.MockEmailJobRepository
	serviceConfigRepo *mocks.MockServiceConfigurationRepository
	smtpConfigRepo    *mocks.MockSMTPConfigurationRepository
	logRepo           *mocks.MockEmailLogRepository
	appRepo           *mocks.MockApplicationRepository
	emailServiceRepo  *mocks.MockEmailServiceRepository
	deliveryRepo      *mocks.MockWebhookDeliveryRepository
	broker            *mocks.MockBroker
	sender            *mocks.MockSender
	worker            *EmailWorker
}

func newWorkerFixture(t *testing.T) *workerFixture {
	f := &workerFixture{
		txRunner:          new(mocks.MockTxRunner),
		jobRepo:           new(mocks.MockEmailJobRepository),
		serviceConfigRepo: new(mocks.MockServiceConfigurationRepository),
		smtpConfigRepo:    new(mocks.MockSMTPConfigurationRepository),
		logRepo:           new(mocks.MockEmailLogRepository),
		appRepo:           new(mocks.MockApplicationRepository),
		emailServiceRepo:  new(mocks.MockEmailServiceRepository),
		deliveryRepo:      new(mocks.MockWebhookDeliveryRepository),
		broker:            new(mocks.MockBroker),
		sender:            new(mocks.MockSender),
	}
	f.txRunner.On("RunInTx", mock.Anything, mock.Anything).Return(nil)

	log := logger.NewTestLogger(t)
	dispatcher := NewWebhookDispatcher(f.appRepo, f.emailServiceRepo, f.deliveryRepo, f.jobRepo, f.broker, 0, log)
	f.worker = NewEmailWorker(
		f.txRunner,
		f.jobRepo,
		f.serviceConfigRepo,
		f.smtpConfigRepo,
		f.logRepo,
		dispatcher,
		f.broker,
		f.sender,
		&EmailWorkerConfig{Concurrency: 1, PollInterval: time.Millisecond, SecretKey: "test-key"},
		log,
	)
	return f
}

func queuedJob() *domain.EmailJob {
	now := time.Now().UTC()
	return &domain.EmailJob{
		ID:            "job-1",
		TenantID:      "tenant-1",
		ApplicationID: "app-1",
		ServiceID:     "svc-1",
		ToEmail:       "alice@example.com",
		Subject:       "Welcome",
		Body:          "<p>Hi</p>",
		Status:        domain.EmailJobStatusQueued,
		MaxRetries:    domain.DefaultMaxRetries,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
}

func sendEmailTask() *domain.Task {
	return &domain.Task{
		ID:       "task-1",
		Queue:    domain.QueueEmailDelivery,
		Kind:     domain.TaskKindSendEmail,
		EntityID: "job-1",
	}
}

// expectRelayConfig wires the happy-path configuration lookups
func (f *workerFixture) expectRelayConfig() {
	f.serviceConfigRepo.On("GetActive", mock.Anything, "svc-1", "app-1").
		Return(&domain.ServiceConfiguration{ID: "cfg-1", SMTPConfigurationID: "smtp-1"}, nil)
	f.smtpConfigRepo.On("GetByID", mock.Anything, "smtp-1").
		Return(&domain.SMTPConfiguration{
			ID: "smtp-1", Host: "smtp.example.com", Port: 587,
			Username: "mailer@example.com", PasswordWrapped: "plaintext-password", UseTLS: true,
		}, nil)
}

// silentApp is an application without any webhook subscription
func (f *workerFixture) silentApp() {
	f.appRepo.On("GetByID", mock.Anything, "app-1").
		Return(&domain.Application{ID: "app-1", TenantID: "tenant-1"}, nil)
}

func TestEmailWorkerProcessTask(t *testing.T) {
	ctx := context.Background()

	t.Run("delivers and marks sent", func(t *testing.T) {
		f := newWorkerFixture(t)
		f.jobRepo.On("GetForUpdate", mock.Anything, mock.Anything, "job-1").Return(queuedJob(), nil)
		f.jobRepo.On("MarkProcessing", mock.Anything, mock.Anything, "job-1", mock.AnythingOfType("time.Time")).Return(nil)
		f.expectRelayConfig()

		f.sender.On("Send", mock.Anything, mock.MatchedBy(func(p mailer.RelayParams) bool {
			return p.Host == "smtp.example.com" && p.Password == "plaintext-password"
		}), mock.MatchedBy(func(e mailer.Envelope) bool {
			return e.To == "alice@example.com" && e.From == "mailer@example.com"
		})).Return(nil)

		f.jobRepo.On("MarkSent", mock.Anything, mock.Anything, "job-1", mock.AnythingOfType("time.Time")).Return(nil)
		f.logRepo.On("Create", mock.Anything, mock.Anything, mock.MatchedBy(func(l *domain.EmailLog) bool {
			return l.Status == "sent" && *l.ResponseCode == 200
		})).Return(nil)
		f.silentApp()
		f.broker.On("Ack", mock.Anything, "task-1").Return(nil)

		f.worker.ProcessTask(ctx, sendEmailTask())

		f.jobRepo.AssertExpectations(t)
		f.sender.AssertExpectations(t)
		f.broker.AssertExpectations(t)
	})

	t.Run("already sent job acks without sending", func(t *testing.T) {
		f := newWorkerFixture(t)
		sentAt := time.Now().UTC().Add(-time.Minute)
		job := queuedJob()
		job.Status = domain.EmailJobStatusSent
		job.SentAt = &sentAt

		f.jobRepo.On("GetForUpdate", mock.Anything, mock.Anything, "job-1").Return(job, nil)
		f.broker.On("Ack", mock.Anything, "task-1").Return(nil)

		f.worker.ProcessTask(ctx, sendEmailTask())

		f.sender.AssertNotCalled(t, "Send", mock.Anything, mock.Anything, mock.Anything)
		f.jobRepo.AssertNotCalled(t, "MarkProcessing", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
		f.broker.AssertExpectations(t)
	})

	t.Run("locked job acks and defers to the owner", func(t *testing.T) {
		f := newWorkerFixture(t)
		f.jobRepo.On("GetForUpdate", mock.Anything, mock.Anything, "job-1").Return(nil, domain.ErrJobLocked)
		f.broker.On("Ack", mock.Anything, "task-1").Return(nil)

		f.worker.ProcessTask(ctx, sendEmailTask())

		f.sender.AssertNotCalled(t, "Send", mock.Anything, mock.Anything, mock.Anything)
		f.broker.AssertExpectations(t)
	})

	t.Run("fresh processing job is left for its owner", func(t *testing.T) {
		f := newWorkerFixture(t)
		startedAt := time.Now().UTC().Add(-10 * time.Second)
		job := queuedJob()
		job.Status = domain.EmailJobStatusProcessing
		job.ProcessingStartedAt = &startedAt

		f.jobRepo.On("GetForUpdate", mock.Anything, mock.Anything, "job-1").Return(job, nil)

		f.worker.ProcessTask(ctx, sendEmailTask())

		f.sender.AssertNotCalled(t, "Send", mock.Anything, mock.Anything, mock.Anything)
		f.broker.AssertNotCalled(t, "Ack", mock.Anything, mock.Anything)
		f.broker.AssertNotCalled(t, "Nack", mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("stale processing job is reclaimed", func(t *testing.T) {
		f := newWorkerFixture(t)
		startedAt := time.Now().UTC().Add(-3 * time.Minute)
		job := queuedJob()
		job.Status = domain.EmailJobStatusProcessing
		job.ProcessingStartedAt = &startedAt

		f.jobRepo.On("GetForUpdate", mock.Anything, mock.Anything, "job-1").Return(job, nil)
		f.jobRepo.On("MarkProcessing", mock.Anything, mock.Anything, "job-1", mock.AnythingOfType("time.Time")).Return(nil)
		f.expectRelayConfig()
		f.sender.On("Send", mock.Anything, mock.Anything, mock.Anything).Return(nil)
		f.jobRepo.On("MarkSent", mock.Anything, mock.Anything, "job-1", mock.AnythingOfType("time.Time")).Return(nil)
		f.logRepo.On("Create", mock.Anything, mock.Anything, mock.Anything).Return(nil)
		f.silentApp()
		f.broker.On("Ack", mock.Anything, "task-1").Return(nil)

		f.worker.ProcessTask(ctx, sendEmailTask())

		f.sender.AssertExpectations(t)
		f.broker.AssertExpectations(t)
	})

	t.Run("temporary failure schedules retry and nacks", func(t *testing.T) {
		f := newWorkerFixture(t)
		f.jobRepo.On("GetForUpdate", mock.Anything, mock.Anything, "job-1").Return(queuedJob(), nil)
		f.jobRepo.On("MarkProcessing", mock.Anything, mock.Anything, "job-1", mock.AnythingOfType("time.Time")).Return(nil)
		f.expectRelayConfig()
		f.sender.On("Send", mock.Anything, mock.Anything, mock.Anything).
			Return(errors.New("failed to send email: 421 service unavailable, try again later"))

		f.jobRepo.On("ScheduleRetry", mock.Anything, mock.Anything, "job-1", 1, mock.AnythingOfType("time.Time"), mock.AnythingOfType("string")).Return(nil)
		f.logRepo.On("Create", mock.Anything, mock.Anything, mock.MatchedBy(func(l *domain.EmailLog) bool {
			return l.Status == "retry_pending" && *l.ResponseCode == 500
		})).Return(nil)
		f.broker.On("Nack", mock.Anything, "task-1", mock.AnythingOfType("time.Duration")).Return(nil)

		f.worker.ProcessTask(ctx, sendEmailTask())

		f.jobRepo.AssertNotCalled(t, "MarkFailed", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything)
		f.broker.AssertNotCalled(t, "Ack", mock.Anything, mock.Anything)
		f.broker.AssertExpectations(t)
	})

	t.Run("exhausted retries fail terminally with temporary category", func(t *testing.T) {
		f := newWorkerFixture(t)
		job := queuedJob()
		job.Status = domain.EmailJobStatusRetryPending
		job.RetryCount = domain.DefaultMaxRetries

		f.jobRepo.On("GetForUpdate", mock.Anything, mock.Anything, "job-1").Return(job, nil)
		f.jobRepo.On("MarkProcessing", mock.Anything, mock.Anything, "job-1", mock.AnythingOfType("time.Time")).Return(nil)
		f.expectRelayConfig()
		f.sender.On("Send", mock.Anything, mock.Anything, mock.Anything).
			Return(errors.New("failed to send email: 451 greylisted"))

		f.jobRepo.On("MarkFailed", mock.Anything, mock.Anything, "job-1", "temporary", mock.AnythingOfType("string")).Return(nil)
		f.logRepo.On("Create", mock.Anything, mock.Anything, mock.MatchedBy(func(l *domain.EmailLog) bool {
			return l.Status == "failed" && *l.ResponseCode == 500
		})).Return(nil)
		f.silentApp()
		f.broker.On("Ack", mock.Anything, "task-1").Return(nil)

		f.worker.ProcessTask(ctx, sendEmailTask())

		f.jobRepo.AssertNotCalled(t, "ScheduleRetry", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything)
		f.broker.AssertExpectations(t)
	})

	t.Run("permanent failure skips the retry loop", func(t *testing.T) {
		f := newWorkerFixture(t)
		f.jobRepo.On("GetForUpdate", mock.Anything, mock.Anything, "job-1").Return(queuedJob(), nil)
		f.jobRepo.On("MarkProcessing", mock.Anything, mock.Anything, "job-1", mock.AnythingOfType("time.Time")).Return(nil)
		f.expectRelayConfig()
		f.sender.On("Send", mock.Anything, mock.Anything, mock.Anything).
			Return(errors.New("failed to send email: 550 5.1.1 user unknown"))

		f.jobRepo.On("MarkFailed", mock.Anything, mock.Anything, "job-1", "permanent", mock.AnythingOfType("string")).Return(nil)
		f.logRepo.On("Create", mock.Anything, mock.Anything, mock.Anything).Return(nil)
		f.silentApp()
		f.broker.On("Ack", mock.Anything, "task-1").Return(nil)

		f.worker.ProcessTask(ctx, sendEmailTask())

		f.jobRepo.AssertNotCalled(t, "ScheduleRetry", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything)
		f.broker.AssertExpectations(t)
	})

	t.Run("missing relay configuration is permanent", func(t *testing.T) {
		f := newWorkerFixture(t)
		f.jobRepo.On("GetForUpdate", mock.Anything, mock.Anything, "job-1").Return(queuedJob(), nil)
		f.jobRepo.On("MarkProcessing", mock.Anything, mock.Anything, "job-1", mock.AnythingOfType("time.Time")).Return(nil)
		f.serviceConfigRepo.On("GetActive", mock.Anything, "svc-1", "app-1").
			Return(nil, &domain.ErrNotFound{Entity: "service configuration", ID: "svc-1"})

		f.jobRepo.On("MarkFailed", mock.Anything, mock.Anything, "job-1", "permanent", mock.AnythingOfType("string")).Return(nil)
		f.logRepo.On("Create", mock.Anything, mock.Anything, mock.Anything).Return(nil)
		f.silentApp()
		f.broker.On("Ack", mock.Anything, "task-1").Return(nil)

		f.worker.ProcessTask(ctx, sendEmailTask())

		f.sender.AssertNotCalled(t, "Send", mock.Anything, mock.Anything, mock.Anything)
		f.broker.AssertExpectations(t)
	})

	t.Run("terminal state queues a webhook when subscribed", func(t *testing.T) {
		f := newWorkerFixture(t)
		f.jobRepo.On("GetForUpdate", mock.Anything, mock.Anything, "job-1").Return(queuedJob(), nil)
		f.jobRepo.On("MarkProcessing", mock.Anything, mock.Anything, "job-1", mock.AnythingOfType("time.Time")).Return(nil)
		f.expectRelayConfig()
		f.sender.On("Send", mock.Anything, mock.Anything, mock.Anything).Return(nil)
		f.jobRepo.On("MarkSent", mock.Anything, mock.Anything, "job-1", mock.AnythingOfType("time.Time")).Return(nil)
		f.logRepo.On("Create", mock.Anything, mock.Anything, mock.Anything).Return(nil)

		url := "https://hooks.example.com/events"
		f.appRepo.On("GetByID", mock.Anything, "app-1").Return(&domain.Application{
			ID: "app-1", TenantID: "tenant-1",
			WebhookEnabled: true, WebhookURL: &url,
			WebhookEvents: []string{"email.sent", "email.failed"},
		}, nil)
		f.emailServiceRepo.On("GetByID", mock.Anything, "svc-1").
			Return(&domain.EmailService{ID: "svc-1", Name: "welcome"}, nil)
		f.deliveryRepo.On("Create", mock.Anything, mock.Anything, mock.MatchedBy(func(d *domain.WebhookDelivery) bool {
			return d.EventType == domain.WebhookEventEmailSent && d.WebhookURL == url
		})).Return(nil)
		f.jobRepo.On("SetWebhookRequested", mock.Anything, mock.Anything, "job-1").Return(nil)
		f.broker.On("Enqueue", mock.Anything, domain.QueueWebhookDelivery, domain.TaskKindDeliverWebhook, mock.AnythingOfType("string")).Return(nil)
		f.broker.On("Ack", mock.Anything, "task-1").Return(nil)

		f.worker.ProcessTask(ctx, sendEmailTask())

		f.deliveryRepo.AssertExpectations(t)
		f.broker.AssertExpectations(t)
	})

	t.Run("unknown job acks as poison", func(t *testing.T) {
		f := newWorkerFixture(t)
		f.jobRepo.On("GetForUpdate", mock.Anything, mock.Anything, "job-1").
			Return(nil, &domain.ErrNotFound{Entity: "email job", ID: "job-1"})
		f.broker.On("Ack", mock.Anything, "task-1").Return(nil)

		f.worker.ProcessTask(ctx, sendEmailTask())

		f.broker.AssertExpectations(t)
	})
}

func TestEmailWorkerStartStop(t *testing.T) {
	f := newWorkerFixture(t)
	f.broker.On("Dequeue", mock.Anything, domain.QueueEmailDelivery).Return(nil, nil)

	ctx := context.Background()
	f.worker.Start(ctx)
	time.Sleep(10 * time.Millisecond)
	f.worker.Stop()

	assert.True(t, true)
}
