package db

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jonathan/interview-progress/internal/schemas"
	"github.com/jonathan/interview-progress/internal/types"
)

// ErrContention marks a transaction failure that is safe to retry: a lock
// could not be taken in time, or the database aborted the transaction to
// resolve a conflict. The transaction's write was not applied.
var ErrContention = errors.New("progress store contention")

// ErrCommitUnknown marks a commit that was interrupted after it was sent:
// the write may or may not have been applied, so it must not be retried
// as if it had failed.
var ErrCommitUnknown = errors.New("progress commit outcome unknown")

// ProgressTx is an open read-modify-write transaction on one user's record.
// Two transactions for the same user never overlap: the second blocks in
// Begin or ReadForUpdate until the first commits or rolls back.
type ProgressTx interface {
	// ReadForUpdate returns the user's current record, or nil if none exists,
	// holding the per-user lock until Commit or Rollback.
	ReadForUpdate(ctx context.Context) (*types.ProgressRecord, error)
	// Write stages the full record. It is applied only by Commit.
	Write(ctx context.Context, record *types.ProgressRecord) error
	// Commit atomically applies the staged write and releases the lock.
	Commit(ctx context.Context) error
	// Rollback discards the transaction. It is a no-op after Commit.
	Rollback(ctx context.Context) error
}

// decodeRecord validates a stored document and decodes it.
func decodeRecord(doc []byte) (*types.ProgressRecord, error) {
	if err := schemas.ValidateProgressRecord(doc); err != nil {
		return nil, fmt.Errorf("stored progress record is invalid: %w", err)
	}
	var record types.ProgressRecord
	if err := json.Unmarshal(doc, &record); err != nil {
		return nil, fmt.Errorf("failed to decode progress record: %w", err)
	}
	if record.DomainProgress == nil {
		record.DomainProgress = make(map[types.Domain]types.DomainProgress)
	}
	return &record, nil
}

func encodeRecord(record *types.ProgressRecord) ([]byte, error) {
	if record == nil {
		return nil, fmt.Errorf("cannot write nil progress record")
	}
	doc, err := json.Marshal(record)
	if err != nil {
		return nil, fmt.Errorf("failed to encode progress record: %w", err)
	}
	return doc, nil
}

// commitUnknownError wraps err so that errors.Is(result, ErrCommitUnknown) holds.
func commitUnknownError(op string, err error) error {
	return fmt.Errorf("%s: %w: %w", op, ErrCommitUnknown, err)
}

// contentionError wraps err so that errors.Is(result, ErrContention) holds.
func contentionError(op string, err error) error {
	return fmt.Errorf("%s: %w: %w", op, ErrContention, err)
}
