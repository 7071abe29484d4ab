package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/easeemail/easeemail/internal/domain"
)

// emailServiceRepository implements domain.EmailServiceRepository for PostgreSQL
type emailServiceRepository struct {
	db *sql.DB
}

// NewEmailServiceRepository creates a new PostgreSQL email service repository
func NewEmailServiceRepository(db *sql.DB) domain.EmailServiceRepository {
	return &emailServiceRepository{db: db}
}

const emailServiceColumns = `id, tenant_id, name, template_id, status, created_at, updated_at`

// GetActiveByName retrieves the active service with the given name inside the tenant
func (r *emailServiceRepository) GetActiveByName(ctx context.Context, tenantID, name string) (*domain.EmailService, error) {
	query := `
		SELECT ` + emailServiceColumns + `
		FROM email_services
		WHERE tenant_id = $1 AND name = $2 AND status = $3
	`

	svc, err := scanEmailService(r.db.QueryRowContext(ctx, query, tenantID, name, domain.EmailServiceStatusActive))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, &domain.ErrNotFound{Entity: "email service", ID: name}
		}
		return nil, fmt.Errorf("failed to get email service by name: %w", err)
	}

	return svc, nil
}

// GetByID retrieves an email service by id
func (r *emailServiceRepository) GetByID(ctx context.Context, id string) (*domain.EmailService, error) {
	query := `SELECT ` + emailServiceColumns + ` FROM email_services WHERE id = $1`

	svc, err := scanEmailService(r.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, &domain.ErrNotFound{Entity: "email service", ID: id}
		}
		return nil, fmt.Errorf("failed to get email service: %w", err)
	}

	return svc, nil
}

func scanEmailService(row rowScanner) (*domain.EmailService, error) {
	var svc domain.EmailService
	var templateID sql.NullString

	err := row.Scan(
		&svc.ID,
		&svc.TenantID,
		&svc.Name,
		&templateID,
		&svc.Status,
		&svc.CreatedAt,
		&svc.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	if templateID.Valid {
		svc.TemplateID = &templateID.String
	}

	return &svc, nil
}
