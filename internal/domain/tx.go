package domain

import (
	"context"
	"database/sql"
)

// TransactionRunner executes a function inside a database transaction.
// Workers use it to finalize a job, its log row, its webhook delivery and
// the delivery task in one commit.
type TransactionRunner interface {
	RunInTx(ctx context.Context, fn func(tx *sql.Tx) error) error
}
