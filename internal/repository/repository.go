// Package repository contains the PostgreSQL persistence layer.
package repository

import (
	"context"
	"database/sql"
	"fmt"

	sq "github.com/Masterminds/squirrel"

	"github.com/easeemail/easeemail/internal/domain"
)

// psql is a Squirrel StatementBuilder configured for PostgreSQL
var psql = sq.StatementBuilder.PlaceholderFormat(sq.Dollar)

type txRunner struct {
	db *sql.DB
}

// NewTxRunner returns a domain.TransactionRunner backed by the given pool
func NewTxRunner(db *sql.DB) domain.TransactionRunner {
	return &txRunner{db: db}
}

func (r *txRunner) RunInTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	return RunInTx(ctx, r.db, fn)
}

// RunInTx executes fn inside a transaction, committing on success and
// rolling back on error.
func RunInTx(ctx context.Context, db *sql.DB, fn func(tx *sql.Tx) error) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if err := fn(tx); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}

	return nil
}
