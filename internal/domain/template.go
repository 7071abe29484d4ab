package domain

import (
	"context"
	"time"
)

// EmailTemplate holds the subject and body markup for a named template.
// (tenant_id, name) is unique.
type EmailTemplate struct {
	ID              string    `json:"id"`
	TenantID        string    `json:"tenant_id"`
	Name            string    `json:"name"`
	SubjectTemplate string    `json:"subject_template"`
	BodyTemplate    string    `json:"body_template"`
	CreatedAt       time.Time `json:"created_at"`
	UpdatedAt       time.Time `json:"updated_at"`
}

// TemplateRepository provides read-only access to templates
type TemplateRepository interface {
	GetByName(ctx context.Context, tenantID, name string) (*EmailTemplate, error)
}
