package mocks

import (
	"context"
	"database/sql"
	"time"

	"github.com/stretchr/testify/mock"

	"github.com/easeemail/easeemail/internal/domain"
	"github.com/easeemail/easeemail/pkg/mailer"
)

// MockApplicationRepository is a mock implementation of the ApplicationRepository interface
type MockApplicationRepository struct {
	mock.Mock
}

func (m *MockApplicationRepository) GetByAPIKey(ctx context.Context, apiKey string) (*domain.Application, error) {
	args := m.Called(ctx, apiKey)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Application), args.Error(1)
}

func (m *MockApplicationRepository) GetByID(ctx context.Context, id string) (*domain.Application, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Application), args.Error(1)
}

// MockEmailServiceRepository is a mock implementation of the EmailServiceRepository interface
type MockEmailServiceRepository struct {
	mock.Mock
}

func (m *MockEmailServiceRepository) GetActiveByName(ctx context.Context, tenantID, name string) (*domain.EmailService, error) {
	args := m.Called(ctx, tenantID, name)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.EmailService), args.Error(1)
}

func (m *MockEmailServiceRepository) GetByID(ctx context.Context, id string) (*domain.EmailService, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.EmailService), args.Error(1)
}

// MockServiceConfigurationRepository is a mock implementation of the ServiceConfigurationRepository interface
type MockServiceConfigurationRepository struct {
	mock.Mock
}

func (m *MockServiceConfigurationRepository) GetActive(ctx context.Context, emailServiceID, applicationID string) (*domain.ServiceConfiguration, error) {
	args := m.Called(ctx, emailServiceID, applicationID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.ServiceConfiguration), args.Error(1)
}

// MockSMTPConfigurationRepository is a mock implementation of the SMTPConfigurationRepository interface
type MockSMTPConfigurationRepository struct {
	mock.Mock
}

func (m *MockSMTPConfigurationRepository) GetByID(ctx context.Context, id string) (*domain.SMTPConfiguration, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.SMTPConfiguration), args.Error(1)
}

// MockTemplateRepository is a mock implementation of the TemplateRepository interface
type MockTemplateRepository struct {
	mock.Mock
}

func (m *MockTemplateRepository) GetByName(ctx context.Context, tenantID, name string) (*domain.EmailTemplate, error) {
	args := m.Called(ctx, tenantID, name)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.EmailTemplate), args.Error(1)
}

// MockEmailJobRepository is a mock implementation of the EmailJobRepository interface
type MockEmailJobRepository struct {
	mock.Mock
}

func (m *MockEmailJobRepository) Create(ctx context.Context, job *domain.EmailJob) error {
	args := m.Called(ctx, job)
	return args.Error(0)
}

func (m *MockEmailJobRepository) GetByID(ctx context.Context, id string) (*domain.EmailJob, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.EmailJob), args.Error(1)
}

func (m *MockEmailJobRepository) GetForUpdate(ctx context.Context, tx *sql.Tx, id string) (*domain.EmailJob, error) {
	args := m.Called(ctx, tx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.EmailJob), args.Error(1)
}

func (m *MockEmailJobRepository) MarkProcessing(ctx context.Context, tx *sql.Tx, id string, startedAt time.Time) error {
	args := m.Called(ctx, tx, id, startedAt)
	return args.Error(0)
}

func (m *MockEmailJobRepository) MarkSent(ctx context.Context, tx *sql.Tx, id string, sentAt time.Time) error {
	args := m.Called(ctx, tx, id, sentAt)
	return args.Error(0)
}

func (m *MockEmailJobRepository) MarkFailed(ctx context.Context, tx *sql.Tx, id string, category, message string) error {
	args := m.Called(ctx, tx, id, category, message)
	return args.Error(0)
}

func (m *MockEmailJobRepository) ScheduleRetry(ctx context.Context, tx *sql.Tx, id string, retryCount int, nextRetryAt time.Time, message string) error {
	args := m.Called(ctx, tx, id, retryCount, nextRetryAt, message)
	return args.Error(0)
}

func (m *MockEmailJobRepository) SetWebhookRequested(ctx context.Context, tx *sql.Tx, id string) error {
	args := m.Called(ctx, tx, id)
	return args.Error(0)
}

func (m *MockEmailJobRepository) MarkFailedDirect(ctx context.Context, id string, category, message string) error {
	args := m.Called(ctx, id, category, message)
	return args.Error(0)
}

func (m *MockEmailJobRepository) FindOrphanedQueued(ctx context.Context, olderThan time.Duration, limit int) ([]*domain.EmailJob, error) {
	args := m.Called(ctx, olderThan, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*domain.EmailJob), args.Error(1)
}

// MockEmailLogRepository is a mock implementation of the EmailLogRepository interface
type MockEmailLogRepository struct {
	mock.Mock
}

func (m *MockEmailLogRepository) Create(ctx context.Context, tx *sql.Tx, log *domain.EmailLog) error {
	args := m.Called(ctx, tx, log)
	return args.Error(0)
}

func (m *MockEmailLogRepository) ListByJob(ctx context.Context, jobID string) ([]*domain.EmailLog, error) {
	args := m.Called(ctx, jobID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*domain.EmailLog), args.Error(1)
}

// MockWebhookDeliveryRepository is a mock implementation of the WebhookDeliveryRepository interface
type MockWebhookDeliveryRepository struct {
	mock.Mock
}

func (m *MockWebhookDeliveryRepository) Create(ctx context.Context, tx *sql.Tx, delivery *domain.WebhookDelivery) error {
	args := m.Called(ctx, tx, delivery)
	return args.Error(0)
}

func (m *MockWebhookDeliveryRepository) GetByID(ctx context.Context, id string) (*domain.WebhookDelivery, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.WebhookDelivery), args.Error(1)
}

func (m *MockWebhookDeliveryRepository) GetByJobID(ctx context.Context, jobID string) (*domain.WebhookDelivery, error) {
	args := m.Called(ctx, jobID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.WebhookDelivery), args.Error(1)
}

func (m *MockWebhookDeliveryRepository) MarkDelivered(ctx context.Context, id string, responseCode int, responseBody string, deliveredAt time.Time) error {
	args := m.Called(ctx, id, responseCode, responseBody, deliveredAt)
	return args.Error(0)
}

func (m *MockWebhookDeliveryRepository) ScheduleRetry(ctx context.Context, id string, retryCount int, nextRetryAt time.Time, responseCode *int, responseBody string, lastError string) error {
	args := m.Called(ctx, id, retryCount, nextRetryAt, responseCode, responseBody, lastError)
	return args.Error(0)
}

func (m *MockWebhookDeliveryRepository) MarkFailed(ctx context.Context, id string, responseCode *int, responseBody string, lastError string) error {
	args := m.Called(ctx, id, responseCode, responseBody, lastError)
	return args.Error(0)
}

// MockBroker is a mock implementation of the Broker interface
type MockBroker struct {
	mock.Mock
}

func (m *MockBroker) Enqueue(ctx context.Context, queue, kind, entityID string) error {
	args := m.Called(ctx, queue, kind, entityID)
	return args.Error(0)
}

func (m *MockBroker) EnqueueTx(ctx context.Context, tx *sql.Tx, queue, kind, entityID string) error {
	args := m.Called(ctx, tx, queue, kind, entityID)
	return args.Error(0)
}

func (m *MockBroker) Dequeue(ctx context.Context, queue string) (*domain.Task, error) {
	args := m.Called(ctx, queue)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Task), args.Error(1)
}

func (m *MockBroker) Ack(ctx context.Context, taskID string) error {
	args := m.Called(ctx, taskID)
	return args.Error(0)
}

func (m *MockBroker) Nack(ctx context.Context, taskID string, delay time.Duration) error {
	args := m.Called(ctx, taskID, delay)
	return args.Error(0)
}

func (m *MockBroker) Ping(ctx context.Context) error {
	args := m.Called(ctx)
	return args.Error(0)
}

// MockTxRunner is a mock implementation of the TransactionRunner interface.
// It invokes the callback with a nil transaction so repository mocks can
// match on mock.Anything.
type MockTxRunner struct {
	mock.Mock
}

func (m *MockTxRunner) RunInTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	args := m.Called(ctx, fn)
	if args.Error(0) != nil {
		return args.Error(0)
	}
	return fn(nil)
}

// MockSender is a mock implementation of the mailer.Sender interface
type MockSender struct {
	mock.Mock
}

func (m *MockSender) Send(ctx context.Context, params mailer.RelayParams, env mailer.Envelope) error {
	args := m.Called(ctx, params, env)
	return args.Error(0)
}
