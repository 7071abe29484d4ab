package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/easeemail/easeemail/internal/domain"
)

// emailLogRepository implements domain.EmailLogRepository for PostgreSQL
type emailLogRepository struct {
	db *sql.DB
}

// NewEmailLogRepository creates a new PostgreSQL email log repository
func NewEmailLogRepository(db *sql.DB) domain.EmailLogRepository {
	return &emailLogRepository{db: db}
}

// Create appends one attempt outcome. Runs inside the worker transaction
// that finalizes the job.
func (r *emailLogRepository) Create(ctx context.Context, tx *sql.Tx, log *domain.EmailLog) error {
	if log.ID == "" {
		log.ID = uuid.New().String()
	}
	log.CreatedAt = time.Now().UTC()

	query, args, err := psql.
		Insert("email_logs").
		Columns("id", "job_id", "status", "response_code", "response_message", "created_at").
		Values(log.ID, log.JobID, log.Status, log.ResponseCode, log.ResponseMessage, log.CreatedAt).
		ToSql()
	if err != nil {
		return fmt.Errorf("failed to build query: %w", err)
	}

	if _, err := tx.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("failed to create email log: %w", err)
	}

	return nil
}

// ListByJob returns all attempt outcomes for a job, oldest first
func (r *emailLogRepository) ListByJob(ctx context.Context, jobID string) ([]*domain.EmailLog, error) {
	query := `
		SELECT id, job_id, status, response_code, response_message, created_at
		FROM email_logs
		WHERE job_id = $1
		ORDER BY created_at ASC
	`

	rows, err := r.db.QueryContext(ctx, query, jobID)
	if err != nil {
		return nil, fmt.Errorf("failed to query email logs: %w", err)
	}
	defer rows.Close()

	var logs []*domain.EmailLog
	for rows.Next() {
		var log domain.EmailLog
		var responseCode sql.NullInt32
		var responseMessage sql.NullString

		err := rows.Scan(
			&log.ID,
			&log.JobID,
			&log.Status,
			&responseCode,
			&responseMessage,
			&log.CreatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan email log: %w", err)
		}

		if responseCode.Valid {
			code := int(responseCode.Int32)
			log.ResponseCode = &code
		}
		if responseMessage.Valid {
			log.ResponseMessage = &responseMessage.String
		}

		logs = append(logs, &log)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating email logs: %w", err)
	}

	return logs, nil
}
