// Package db provides storage backends for interview progress records:
// PostgreSQL for production, SQLite for single-node deployments and local
// development, and an in-memory store for tests.
package db

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/jonathan/interview-progress/internal/types"
)

// PostgreSQL error codes that indicate a retryable conflict.
const (
	pgSerializationFailure = "40001"
	pgDeadlockDetected     = "40P01"
	pgLockNotAvailable     = "55P03"
)

const postgresSchema = `
CREATE TABLE IF NOT EXISTS progress_records (
    user_id    UUID PRIMARY KEY,
    record     JSONB,
    version    BIGINT NOT NULL DEFAULT 0,
    created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
    updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
)`

// DB wraps a PostgreSQL connection pool
type DB struct {
	pool *pgxpool.Pool
}

// Connect establishes a connection pool to the database
func Connect(ctx context.Context, databaseURL string) (*DB, error) {
	pool, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	// Verify connection
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return &DB{pool: pool}, nil
}

// Close closes the connection pool
func (db *DB) Close() {
	if db.pool != nil {
		db.pool.Close()
	}
}

// Migrate creates the progress tables if they do not exist
func (db *DB) Migrate(ctx context.Context) error {
	if _, err := db.pool.Exec(ctx, postgresSchema); err != nil {
		return fmt.Errorf("failed to create progress schema: %w", err)
	}
	return nil
}

// GetProgress retrieves a user's progress record. Returns nil if none exists.
func (db *DB) GetProgress(ctx context.Context, userID uuid.UUID) (*types.ProgressRecord, error) {
	var doc []byte
	err := db.pool.QueryRow(ctx,
		`SELECT record FROM progress_records WHERE user_id = $1`,
		userID,
	).Scan(&doc)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get progress: %w", err)
	}
	if doc == nil {
		return nil, nil
	}
	return decodeRecord(doc)
}

// BeginProgress opens a read-modify-write transaction on a user's record.
func (db *DB) BeginProgress(ctx context.Context, userID uuid.UUID) (ProgressTx, error) {
	tx, err := db.pool.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.ReadCommitted})
	if err != nil {
		return nil, classifyPgError("failed to begin transaction", err)
	}
	return &pgProgressTx{tx: tx, userID: userID}, nil
}

type pgProgressTx struct {
	tx     pgx.Tx
	userID uuid.UUID
}

// ReadForUpdate materializes the user's row if needed and row-locks it.
// A concurrent transaction for the same user blocks on the INSERT or the
// SELECT ... FOR UPDATE until this one ends.
func (t *pgProgressTx) ReadForUpdate(ctx context.Context) (*types.ProgressRecord, error) {
	_, err := t.tx.Exec(ctx,
		`INSERT INTO progress_records (user_id, record) VALUES ($1, NULL)
		 ON CONFLICT (user_id) DO NOTHING`,
		t.userID,
	)
	if err != nil {
		return nil, classifyPgError("failed to materialize progress row", err)
	}

	var doc []byte
	err = t.tx.QueryRow(ctx,
		`SELECT record FROM progress_records WHERE user_id = $1 FOR UPDATE`,
		t.userID,
	).Scan(&doc)
	if err != nil {
		return nil, classifyPgError("failed to lock progress row", err)
	}
	if doc == nil {
		return nil, nil
	}
	return decodeRecord(doc)
}

func (t *pgProgressTx) Write(ctx context.Context, record *types.ProgressRecord) error {
	doc, err := encodeRecord(record)
	if err != nil {
		return err
	}

	result, err := t.tx.Exec(ctx,
		`UPDATE progress_records
		 SET record = $2, version = version + 1, updated_at = NOW()
		 WHERE user_id = $1`,
		t.userID, doc,
	)
	if err != nil {
		return classifyPgError("failed to write progress", err)
	}
	if result.RowsAffected() == 0 {
		return fmt.Errorf("progress row missing for user %s: ReadForUpdate must precede Write", t.userID)
	}
	return nil
}

func (t *pgProgressTx) Commit(ctx context.Context) error {
	if err := t.tx.Commit(ctx); err != nil {
		return classifyPgCommitError(err)
	}
	return nil
}

func (t *pgProgressTx) Rollback(ctx context.Context) error {
	err := t.tx.Rollback(ctx)
	if err != nil && !errors.Is(err, pgx.ErrTxClosed) {
		return fmt.Errorf("failed to roll back progress: %w", err)
	}
	return nil
}

// classifyPgError marks conflict and timeout failures as contention.
func classifyPgError(op string, err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case pgSerializationFailure, pgDeadlockDetected, pgLockNotAvailable:
			return contentionError(op, err)
		}
	}
	if errors.Is(err, context.DeadlineExceeded) || pgconn.Timeout(err) {
		return contentionError(op, err)
	}
	return fmt.Errorf("%s: %w", op, err)
}

// classifyPgCommitError separates commits the server rejected from commits
// interrupted in flight. A serialization failure or deadlock at COMMIT is a
// confirmed abort and stays retryable; a timeout leaves the outcome unknown.
func classifyPgCommitError(err error) error {
	const op = "failed to commit progress"
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return classifyPgError(op, err)
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) || pgconn.Timeout(err) {
		return commitUnknownError(op, err)
	}
	return fmt.Errorf("%s: %w", op, err)
}
