package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/easeemail/easeemail/internal/domain"
)

// smtpConfigurationRepository implements domain.SMTPConfigurationRepository for PostgreSQL
type smtpConfigurationRepository struct {
	db *sql.DB
}

// NewSMTPConfigurationRepository creates a new PostgreSQL SMTP configuration repository
func NewSMTPConfigurationRepository(db *sql.DB) domain.SMTPConfigurationRepository {
	return &smtpConfigurationRepository{db: db}
}

// GetByID retrieves relay credentials by id. The password stays wrapped;
// callers unwrap it right before use.
func (r *smtpConfigurationRepository) GetByID(ctx context.Context, id string) (*domain.SMTPConfiguration, error) {
	query := `
		SELECT id, host, port, username, password_wrapped, use_tls, created_at
		FROM smtp_configurations
		WHERE id = $1
	`

	var cfg domain.SMTPConfiguration
	err := r.db.QueryRowContext(ctx, query, id).Scan(
		&cfg.ID,
		&cfg.Host,
		&cfg.Port,
		&cfg.Username,
		&cfg.PasswordWrapped,
		&cfg.UseTLS,
		&cfg.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, &domain.ErrNotFound{Entity: "smtp configuration", ID: id}
		}
		return nil, fmt.Errorf("failed to get smtp configuration: %w", err)
	}

	return &cfg, nil
}
