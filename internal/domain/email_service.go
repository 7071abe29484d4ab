package domain

import (
	"context"
	"time"
)

// EmailService is a named sending channel within a tenant, e.g. "welcome"
// or "password-reset". Intake requires status "active". TemplateID is an
// optional default template; intake resolves templates by name, so the core
// carries the association without reading it.
type EmailService struct {
	ID         string    `json:"id"`
	TenantID   string    `json:"tenant_id"`
	Name       string    `json:"name"`
	TemplateID *string   `json:"template_id,omitempty"`
	Status     string    `json:"status"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

const EmailServiceStatusActive = "active"

// ServiceConfiguration binds an email service and an application to one
// SMTP configuration. At most one binding per (service, application) pair
// is active.
type ServiceConfiguration struct {
	ID                  string    `json:"id"`
	EmailServiceID      string    `json:"email_service_id"`
	ApplicationID       string    `json:"application_id"`
	SMTPConfigurationID string    `json:"smtp_configuration_id"`
	IsActive            bool      `json:"is_active"`
	CreatedAt           time.Time `json:"created_at"`
}

// SMTPConfiguration holds upstream relay credentials. Password stays
// wrapped at rest; only the worker unwraps it right before sending.
type SMTPConfiguration struct {
	ID              string    `json:"id"`
	Host            string    `json:"host"`
	Port            int       `json:"port"`
	Username        string    `json:"username"`
	PasswordWrapped string    `json:"-"`
	UseTLS          bool      `json:"use_tls"`
	CreatedAt       time.Time `json:"created_at"`
}

// EmailServiceRepository provides read-only access to email services
type EmailServiceRepository interface {
	// GetActiveByName returns the active service with the given name inside
	// the tenant
	GetActiveByName(ctx context.Context, tenantID, name string) (*EmailService, error)
	GetByID(ctx context.Context, id string) (*EmailService, error)
}

// ServiceConfigurationRepository provides read-only access to service bindings
type ServiceConfigurationRepository interface {
	// GetActive returns the single active configuration for the pair
	GetActive(ctx context.Context, emailServiceID, applicationID string) (*ServiceConfiguration, error)
}

// SMTPConfigurationRepository provides read-only access to relay credentials
type SMTPConfigurationRepository interface {
	GetByID(ctx context.Context, id string) (*SMTPConfiguration, error)
}
