package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/easeemail/easeemail/internal/domain"
)

// templateRepository implements domain.TemplateRepository for PostgreSQL
type templateRepository struct {
	db *sql.DB
}

// NewTemplateRepository creates a new PostgreSQL template repository
func NewTemplateRepository(db *sql.DB) domain.TemplateRepository {
	return &templateRepository{db: db}
}

// GetByName retrieves a template by (tenant, name)
func (r *templateRepository) GetByName(ctx context.Context, tenantID, name string) (*domain.EmailTemplate, error) {
	query := `
		SELECT id, tenant_id, name, subject_template, body_template, created_at, updated_at
		FROM email_templates
		WHERE tenant_id = $1 AND name = $2
	`

	var tmpl domain.EmailTemplate
	err := r.db.QueryRowContext(ctx, query, tenantID, name).Scan(
		&tmpl.ID,
		&tmpl.TenantID,
		&tmpl.Name,
		&tmpl.SubjectTemplate,
		&tmpl.BodyTemplate,
		&tmpl.CreatedAt,
		&tmpl.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, &domain.ErrNotFound{Entity: "template", ID: name}
		}
		return nil, fmt.Errorf("failed to get template: %w", err)
	}

	return &tmpl, nil
}
