package domain

import (
	"context"
	"database/sql"
	"time"
)

// EmailLog is one append-only attempt outcome for a job
type EmailLog struct {
	ID              string    `json:"id"`
	JobID           string    `json:"job_id"`
	Status          string    `json:"status"`
	ResponseCode    *int      `json:"response_code,omitempty"`
	ResponseMessage *string   `json:"response_message,omitempty"`
	CreatedAt       time.Time `json:"created_at"`
}

// EmailLogRepository writes and reads per-attempt log rows
type EmailLogRepository interface {
	Create(ctx context.Context, tx *sql.Tx, log *EmailLog) error
	ListByJob(ctx context.Context, jobID string) ([]*EmailLog, error)
}
