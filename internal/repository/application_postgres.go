package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/lib/pq"

	"github.com/easeemail/easeemail/internal/domain"
)

// applicationRepository implements domain.ApplicationRepository for PostgreSQL
type applicationRepository struct {
	db *sql.DB
}

// NewApplicationRepository creates a new PostgreSQL application repository
func NewApplicationRepository(db *sql.DB) domain.ApplicationRepository {
	return &applicationRepository{db: db}
}

const applicationColumns = `
	id, tenant_id, name, api_key, webhook_url, webhook_api_key,
	webhook_enabled, webhook_events, status, created_at, updated_at
`

// GetByAPIKey retrieves the application that owns the given API key
func (r *applicationRepository) GetByAPIKey(ctx context.Context, apiKey string) (*domain.Application, error) {
	query := `SELECT ` + applicationColumns + ` FROM applications WHERE api_key = $1`

	app, err := scanApplication(r.db.QueryRowContext(ctx, query, apiKey))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, &domain.ErrUnauthorized{Message: "Invalid API key"}
		}
		return nil, fmt.Errorf("failed to get application by api key: %w", err)
	}

	return app, nil
}

// GetByID retrieves an application by id
func (r *applicationRepository) GetByID(ctx context.Context, id string) (*domain.Application, error) {
	query := `SELECT ` + applicationColumns + ` FROM applications WHERE id = $1`

	app, err := scanApplication(r.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, &domain.ErrNotFound{Entity: "application", ID: id}
		}
		return nil, fmt.Errorf("failed to get application: %w", err)
	}

	return app, nil
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanApplication(row rowScanner) (*domain.Application, error) {
	var app domain.Application
	var webhookURL sql.NullString
	var webhookAPIKey sql.NullString

	err := row.Scan(
		&app.ID,
		&app.TenantID,
		&app.Name,
		&app.APIKey,
		&webhookURL,
		&webhookAPIKey,
		&app.WebhookEnabled,
		pq.Array(&app.WebhookEvents),
		&app.Status,
		&app.CreatedAt,
		&app.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	if webhookURL.Valid {
		app.WebhookURL = &webhookURL.String
	}
	if webhookAPIKey.Valid {
		app.WebhookAPIKey = &webhookAPIKey.String
	}

	return &app, nil
}
