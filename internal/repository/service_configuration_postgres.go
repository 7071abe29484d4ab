package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/easeemail/easeemail/internal/domain"
)

// serviceConfigurationRepository implements domain.ServiceConfigurationRepository for PostgreSQL
type serviceConfigurationRepository struct {
	db *sql.DB
}

// NewServiceConfigurationRepository creates a new PostgreSQL service configuration repository
func NewServiceConfigurationRepository(db *sql.DB) domain.ServiceConfigurationRepository {
	return &serviceConfigurationRepository{db: db}
}

// GetActive retrieves the single active configuration for a (service, application) pair
func (r *serviceConfigurationRepository) GetActive(ctx context.Context, emailServiceID, applicationID string) (*domain.ServiceConfiguration, error) {
	query := `
		SELECT id, email_service_id, application_id, smtp_configuration_id, is_active, created_at
		FROM service_configurations
		WHERE email_service_id = $1 AND application_id = $2 AND is_active = TRUE
	`

	var cfg domain.ServiceConfiguration
	err := r.db.QueryRowContext(ctx, query, emailServiceID, applicationID).Scan(
		&cfg.ID,
		&cfg.EmailServiceID,
		&cfg.ApplicationID,
		&cfg.SMTPConfigurationID,
		&cfg.IsActive,
		&cfg.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, &domain.ErrNotFound{Entity: "service configuration", ID: emailServiceID}
		}
		return nil, fmt.Errorf("failed to get service configuration: %w", err)
	}

	return &cfg, nil
}
