// Package app wires configuration, storage, workers and HTTP handlers into
// one runnable process.
package app

import (
	"context"
	"database/sql"
	"fmt"
	"net/http"

	"golang.org/x/sync/errgroup"

	"github.com/easeemail/easeemail/config"
	"github.com/easeemail/easeemail/internal/database"
	"github.com/easeemail/easeemail/internal/domain"
	apihttp "github.com/easeemail/easeemail/internal/http"
	"github.com/easeemail/easeemail/internal/http/middleware"
	"github.com/easeemail/easeemail/internal/metrics"
	"github.com/easeemail/easeemail/internal/repository"
	"github.com/easeemail/easeemail/internal/service"
	"github.com/easeemail/easeemail/pkg/logger"
	"github.com/easeemail/easeemail/pkg/mailer"
	"github.com/easeemail/easeemail/pkg/templates"
	"github.com/easeemail/easeemail/pkg/tracing"
)

// App owns every long-lived component of the delivery platform
type App struct {
	config *config.Config
	logger logger.Logger
	db     *sql.DB
	mux    *http.ServeMux
	server *http.Server

	// repositories
	appRepo           domain.ApplicationRepository
	emailServiceRepo  domain.EmailServiceRepository
	serviceConfigRepo domain.ServiceConfigurationRepository
	smtpConfigRepo    domain.SMTPConfigurationRepository
	templateRepo      domain.TemplateRepository
	jobRepo           domain.EmailJobRepository
	logRepo           domain.EmailLogRepository
	deliveryRepo      domain.WebhookDeliveryRepository
	broker            domain.Broker
	txRunner          domain.TransactionRunner

	// services
	senderService *service.EmailSenderService
	emailWorker   *service.EmailWorker
	webhookWorker *service.WebhookWorker
	reconciler    *service.JobReconciler

	sender mailer.Sender
}

// AppOption configures the App
type AppOption func(*App)

// WithMockDB injects a database handle instead of opening one
func WithMockDB(db *sql.DB) AppOption {
	return func(a *App) {
		a.db = db
	}
}

// WithMockSender injects an SMTP sender implementation
func WithMockSender(s mailer.Sender) AppOption {
	return func(a *App) {
		a.sender = s
	}
}

// WithLogger injects a custom logger
func WithLogger(log logger.Logger) AppOption {
	return func(a *App) {
		a.logger = log
	}
}

// NewApp creates a new application instance
func NewApp(cfg *config.Config, opts ...AppOption) *App {
	a := &App{
		config: cfg,
		mux:    http.NewServeMux(),
	}
	for _, opt := range opts {
		opt(a)
	}
	if a.logger == nil {
		a.logger = logger.NewLoggerWithLevel(cfg.LogLevel)
	}
	return a
}

// InitTracing sets up OpenCensus exporters and the pipeline views
func (a *App) InitTracing() error {
	if err := metrics.RegisterViews(); err != nil {
		return fmt.Errorf("failed to register metric views: %w", err)
	}
	if !a.config.Tracing.Enabled {
		return nil
	}
	if err := tracing.InitTracing(&a.config.Tracing); err != nil {
		return fmt.Errorf("failed to initialize tracing: %w", err)
	}
	a.logger.WithField("service_name", a.config.Tracing.ServiceName).Info("Tracing initialized")
	return nil
}

// InitDB connects to PostgreSQL and ensures the schema exists
func (a *App) InitDB() error {
	if a.db == nil {
		db, err := database.Connect(&a.config.Database)
		if err != nil {
			return fmt.Errorf("failed to connect to database: %w", err)
		}
		a.db = db
	}

	if err := database.InitializeDatabase(a.db); err != nil {
		return fmt.Errorf("failed to initialize database schema: %w", err)
	}

	a.logger.WithField("host", a.config.Database.Host).Info("Database initialized")
	return nil
}

// InitRepositories builds the persistence layer
func (a *App) InitRepositories() error {
	if a.db == nil {
		return fmt.Errorf("database must be initialized before repositories")
	}

	a.appRepo = repository.NewApplicationRepository(a.db)
	a.emailServiceRepo = repository.NewEmailServiceRepository(a.db)
	a.serviceConfigRepo = repository.NewServiceConfigurationRepository(a.db)
	a.smtpConfigRepo = repository.NewSMTPConfigurationRepository(a.db)
	a.templateRepo = repository.NewTemplateRepository(a.db)
	a.jobRepo = repository.NewEmailJobRepository(a.db)
	a.logRepo = repository.NewEmailLogRepository(a.db)
	a.deliveryRepo = repository.NewWebhookDeliveryRepository(a.db)
	a.broker = repository.NewTaskQueueRepository(a.db, a.config.Worker.VisibilityTimeout)
	a.txRunner = repository.NewTxRunner(a.db)

	return nil
}

// InitServices builds the intake service and the worker pools
func (a *App) InitServices() error {
	if a.sender == nil {
		a.sender = mailer.NewSMTPSender()
	}

	a.senderService = service.NewEmailSenderService(
		a.appRepo,
		a.emailServiceRepo,
		a.serviceConfigRepo,
		a.smtpConfigRepo,
		a.templateRepo,
		a.jobRepo,
		a.broker,
		templates.NewRenderer(),
		&service.EmailSenderConfig{
			APIEndpoint: a.config.Server.APIEndpoint,
			MaxRetries:  a.config.Worker.EmailMaxRetries,
		},
		a.logger,
	)

	dispatcher := service.NewWebhookDispatcher(
		a.appRepo,
		a.emailServiceRepo,
		a.deliveryRepo,
		a.jobRepo,
		a.broker,
		a.config.Webhook.MaxAttempts,
		a.logger,
	)

	a.emailWorker = service.NewEmailWorker(
		a.txRunner,
		a.jobRepo,
		a.serviceConfigRepo,
		a.smtpConfigRepo,
		a.logRepo,
		dispatcher,
		a.broker,
		a.sender,
		&service.EmailWorkerConfig{
			Concurrency:  a.config.Worker.EmailConcurrency,
			PollInterval: a.config.Worker.PollInterval,
			SecretKey:    a.config.Security.SecretKey,
		},
		a.logger,
	)

	a.webhookWorker = service.NewWebhookWorker(
		a.deliveryRepo,
		a.appRepo,
		a.broker,
		nil,
		&service.WebhookWorkerConfig{
			Concurrency:  a.config.Worker.WebhookConcurrency,
			PollInterval: a.config.Worker.PollInterval,
			Timeout:      a.config.Webhook.Timeout,
		},
		a.logger,
	)

	a.reconciler = service.NewJobReconciler(a.jobRepo, a.broker, a.config.Worker.ReconcileInterval, a.logger)

	return nil
}

// InitHandlers registers all HTTP routes
func (a *App) InitHandlers() error {
	apihttp.NewSendEmailHandler(a.senderService, a.logger).RegisterRoutes(a.mux)
	apihttp.NewJobHandler(a.jobRepo, a.deliveryRepo, a.logger).RegisterRoutes(a.mux)
	apihttp.NewHealthHandler(a.db, a.broker).RegisterRoutes(a.mux)
	return nil
}

// Initialize runs all init steps in dependency order
func (a *App) Initialize() error {
	if err := a.InitTracing(); err != nil {
		return err
	}
	if err := a.InitDB(); err != nil {
		return err
	}
	if err := a.InitRepositories(); err != nil {
		return err
	}
	if err := a.InitServices(); err != nil {
		return err
	}
	return a.InitHandlers()
}

// GetMux exposes the route mux, mainly for tests
func (a *App) GetMux() *http.ServeMux {
	return a.mux
}

// GetDB exposes the database handle, mainly for tests
func (a *App) GetDB() *sql.DB {
	return a.db
}

// Start launches the workers and serves HTTP until the listener fails or
// Shutdown is called.
func (a *App) Start() error {
	ctx := context.Background()
	a.emailWorker.Start(ctx)
	a.webhookWorker.Start(ctx)
	a.reconciler.Start(ctx)

	var handler http.Handler = a.mux
	if a.config.Tracing.Enabled {
		handler = middleware.TracingMiddleware(handler)
		tracing.RegisterHTTPServerViews()
	}
	handler = middleware.LoggingMiddleware(a.logger)(handler)

	addr := fmt.Sprintf("%s:%d", a.config.Server.Host, a.config.Server.Port)
	a.server = &http.Server{
		Addr:    addr,
		Handler: handler,
	}

	a.logger.WithField("address", addr).Info("Server starting")
	if err := a.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

// Shutdown stops intake first, then drains the workers, then closes the
// database so in-flight attempts can still finalize.
func (a *App) Shutdown(ctx context.Context) error {
	a.logger.Info("Starting graceful shutdown...")

	if a.server != nil {
		if err := a.server.Shutdown(ctx); err != nil {
			a.logger.WithField("error", err.Error()).Warn("HTTP server shutdown error")
		}
	}

	done := make(chan struct{})
	go func() {
		var g errgroup.Group
		g.Go(func() error { a.reconciler.Stop(); return nil })
		g.Go(func() error { a.emailWorker.Stop(); return nil })
		g.Go(func() error { a.webhookWorker.Stop(); return nil })
		_ = g.Wait()
		close(done)
	}()

	select {
	case <-done:
	case <-ctx.Done():
		a.logger.Warn("Worker drain timed out")
	}

	if a.db != nil {
		if err := a.db.Close(); err != nil {
			return fmt.Errorf("failed to close database: %w", err)
		}
	}

	a.logger.Info("Shutdown complete")
	return nil
}
