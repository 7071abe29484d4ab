package service

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/easeemail/easeemail/internal/domain"
	"github.com/easeemail/easeemail/pkg/logger"
	"github.com/easeemail/easeemail/pkg/templates"
	"github.com/easeemail/easeemail/pkg/tracing"
)

// EmailSenderConfig holds intake-side settings
type EmailSenderConfig struct {
	// APIEndpoint is the base URL prefixed to poll URLs; empty keeps them
	// relative.
	APIEndpoint string

	// MaxRetries is the retry budget stamped onto each new job
	MaxRetries int
}

// EmailSenderService accepts send requests, renders the template at intake
// and hands the resulting job to the broker. Rendering happens here so the
// worker never needs the template or the variables again.
type EmailSenderService struct {
	appRepo           domain.ApplicationRepository
	emailServiceRepo  domain.EmailServiceRepository
	serviceConfigRepo domain.ServiceConfigurationRepository
	smtpConfigRepo    domain.SMTPConfigurationRepository
	templateRepo      domain.TemplateRepository
	jobRepo           domain.EmailJobRepository
	broker            domain.Broker
	renderer          *templates.Renderer
	config            *EmailSenderConfig
	logger            logger.Logger
}

// NewEmailSenderService creates a new email sender service
func NewEmailSenderService(
	appRepo domain.ApplicationRepository,
	emailServiceRepo domain.EmailServiceRepository,
	serviceConfigRepo domain.ServiceConfigurationRepository,
	smtpConfigRepo domain.SMTPConfigurationRepository,
	templateRepo domain.TemplateRepository,
	jobRepo domain.EmailJobRepository,
	broker domain.Broker,
	renderer *templates.Renderer,
	config *EmailSenderConfig,
	logger logger.Logger,
) *EmailSenderService {
	if config == nil {
		config = &EmailSenderConfig{}
	}
	if config.MaxRetries <= 0 {
		config.MaxRetries = domain.DefaultMaxRetries
	}
	return &EmailSenderService{
		appRepo:           appRepo,
		emailServiceRepo:  emailServiceRepo,
		serviceConfigRepo: serviceConfigRepo,
		smtpConfigRepo:    smtpConfigRepo,
		templateRepo:      templateRepo,
		jobRepo:           jobRepo,
		broker:            broker,
		renderer:          renderer,
		config:            config,
		logger:            logger,
	}
}

// SendEmail validates the request, renders the template and persists a
// queued job. The job row is committed before its task is enqueued so any
// worker that sees the task also sees the row.
func (s *EmailSenderService) SendEmail(ctx context.Context, apiKey, templateName string, req *domain.SendEmailRequest) (*domain.SendEmailResponse, error) {
	ctx, span := tracing.StartServiceSpan(ctx, "EmailSenderService", "SendEmail")
	var err error
	defer func() { tracing.EndSpan(span, err) }()

	if apiKey == "" {
		err = &domain.ErrUnauthorized{Message: "Invalid API key"}
		return nil, err
	}
	if templateName == "" {
		err = domain.NewValidationError("template query parameter is required")
		return nil, err
	}
	if err = req.Validate(); err != nil {
		return nil, err
	}

	app, err := s.appRepo.GetByAPIKey(ctx, apiKey)
	if err != nil {
		return nil, err
	}

	emailService, err := s.emailServiceRepo.GetActiveByName(ctx, app.TenantID, req.ServiceName)
	if err != nil {
		if _, ok := err.(*domain.ErrNotFound); ok {
			err = domain.NewValidationError("Invalid email service")
		}
		return nil, err
	}

	serviceConfig, err := s.serviceConfigRepo.GetActive(ctx, emailService.ID, app.ID)
	if err != nil {
		if _, ok := err.(*domain.ErrNotFound); ok {
			err = domain.NewValidationError("No active SMTP configuration")
		}
		return nil, err
	}

	if _, err = s.smtpConfigRepo.GetByID(ctx, serviceConfig.SMTPConfigurationID); err != nil {
		if _, ok := err.(*domain.ErrNotFound); ok {
			err = domain.NewValidationError("No active SMTP configuration")
		}
		return nil, err
	}

	tmpl, err := s.templateRepo.GetByName(ctx, app.TenantID, templateName)
	if err != nil {
		return nil, err
	}

	subject, err := s.renderer.RenderForApp(tmpl.SubjectTemplate, req.VariablesData, app.Name)
	if err != nil {
		return nil, err
	}
	body, err := s.renderer.RenderForApp(tmpl.BodyTemplate, req.VariablesData, app.Name)
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	job := &domain.EmailJob{
		ID:            uuid.New().String(),
		TenantID:      app.TenantID,
		ApplicationID: app.ID,
		ServiceID:     emailService.ID,
		ToEmail:       req.ToEmail,
		Subject:       subject,
		Body:          body,
		Status:        domain.EmailJobStatusQueued,
		MaxRetries:    s.config.MaxRetries,
		CreatedAt:     now,
		UpdatedAt:     now,
	}

	if err = s.jobRepo.Create(ctx, job); err != nil {
		err = fmt.Errorf("failed to create email job: %w", err)
		return nil, err
	}

	// The row is committed at this point. An enqueue failure leaves a
	// queued job with no task; the reconciler would pick it up, but the
	// caller still gets a definitive answer now.
	if err = s.broker.Enqueue(ctx, domain.QueueEmailDelivery, domain.TaskKindSendEmail, job.ID); err != nil {
		s.logger.WithFields(map[string]interface{}{
			"job_id": job.ID,
			"error":  err.Error(),
		}).Error("Failed to enqueue send_email task")

		message := fmt.Sprintf("failed to enqueue delivery task: %v", err)
		if markErr := s.jobRepo.MarkFailedDirect(ctx, job.ID, "system", message); markErr != nil {
			s.logger.WithFields(map[string]interface{}{
				"job_id": job.ID,
				"error":  markErr.Error(),
			}).Error("Failed to mark job failed after enqueue failure")
		}
		err = fmt.Errorf("failed to enqueue delivery task: %w", err)
		return nil, err
	}

	s.logger.WithFields(map[string]interface{}{
		"job_id":    job.ID,
		"tenant_id": app.TenantID,
		"service":   emailService.Name,
	}).Info("Email job accepted")

	return &domain.SendEmailResponse{
		JobID:   job.ID,
		Status:  string(domain.EmailJobStatusQueued),
		Message: "Email queued for delivery",
		PollURL: fmt.Sprintf("%s/api/v1/jobs/%s", s.config.APIEndpoint, job.ID),
	}, nil
}
