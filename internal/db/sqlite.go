package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"

	"github.com/jonathan/interview-progress/internal/types"
)

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS progress_records (
    user_id    TEXT PRIMARY KEY,
    record     TEXT NOT NULL,
    version    INTEGER NOT NULL DEFAULT 1,
    updated_at TEXT NOT NULL DEFAULT CURRENT_TIMESTAMP
)`

// SQLiteDB stores progress records in a SQLite database file.
type SQLiteDB struct {
	db *sql.DB
}

// OpenSQLite opens (creating if needed) the SQLite database at dsn,
// applies pragmas and creates the progress schema.
func OpenSQLite(ctx context.Context, dsn string) (*SQLiteDB, error) {
	conn, err := sql.Open("sqlite", withPragmas(dsn))
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	if err := conn.PingContext(ctx); err != nil {
		conn.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	s := &SQLiteDB{db: conn}
	if err := s.Migrate(ctx); err != nil {
		conn.Close()
		return nil, err
	}
	return s, nil
}

// Close closes the database.
func (s *SQLiteDB) Close() {
	_ = s.db.Close()
}

// Migrate creates the progress table if it does not exist.
func (s *SQLiteDB) Migrate(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, sqliteSchema); err != nil {
		return fmt.Errorf("failed to create progress schema: %w", err)
	}
	return nil
}

// GetProgress retrieves a user's progress record. Returns nil if none exists.
func (s *SQLiteDB) GetProgress(ctx context.Context, userID uuid.UUID) (*types.ProgressRecord, error) {
	var doc string
	err := s.db.QueryRowContext(ctx,
		`SELECT record FROM progress_records WHERE user_id = ?`,
		userID.String(),
	).Scan(&doc)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, classifySQLiteError("failed to get progress", err)
	}
	return decodeRecord([]byte(doc))
}

// BeginProgress starts an IMMEDIATE transaction on a dedicated connection.
// SQLite allows one writer at a time, so this serializes every progress
// update in the database, not just those for the same user.
//
// The busy handler does not observe ctx, so the wait for the write lock is
// capped at ctx's remaining deadline.
func (s *SQLiteDB) BeginProgress(ctx context.Context, userID uuid.UUID) (ProgressTx, error) {
	wait, err := lockWait(ctx)
	if err != nil {
		return nil, contentionError("failed to begin transaction", err)
	}

	conn, err := s.db.Conn(ctx)
	if err != nil {
		return nil, classifySQLiteError("failed to acquire connection", err)
	}
	tx := &sqliteProgressTx{conn: conn, userID: userID}

	if wait != sqliteBusyTimeout {
		if _, err := conn.ExecContext(ctx, fmt.Sprintf("PRAGMA busy_timeout = %d", wait.Milliseconds())); err != nil {
			_ = tx.release()
			return nil, classifySQLiteError("failed to set busy timeout", err)
		}
		tx.restoreTimeout = true
	}
	if _, err := conn.ExecContext(ctx, "BEGIN IMMEDIATE"); err != nil {
		_ = tx.release()
		if ctx.Err() != nil {
			return nil, contentionError("failed to begin transaction", err)
		}
		return nil, classifySQLiteError("failed to begin transaction", err)
	}
	return tx, nil
}

// lockWait returns how long BeginProgress may wait for the write lock.
func lockWait(ctx context.Context) (time.Duration, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	deadline, ok := ctx.Deadline()
	if !ok {
		return sqliteBusyTimeout, nil
	}
	remaining := time.Until(deadline)
	if remaining < time.Millisecond {
		return 0, context.DeadlineExceeded
	}
	return min(remaining, sqliteBusyTimeout), nil
}

type sqliteProgressTx struct {
	conn           *sql.Conn
	userID         uuid.UUID
	done           bool
	restoreTimeout bool // busy_timeout was lowered for this transaction
}

// release returns the connection to the pool with the default busy timeout.
func (t *sqliteProgressTx) release() error {
	if t.restoreTimeout {
		_, _ = t.conn.ExecContext(context.Background(), fmt.Sprintf("PRAGMA busy_timeout = %d", sqliteBusyTimeout.Milliseconds()))
	}
	return t.conn.Close()
}

func (t *sqliteProgressTx) ReadForUpdate(ctx context.Context) (*types.ProgressRecord, error) {
	var doc string
	err := t.conn.QueryRowContext(ctx,
		`SELECT record FROM progress_records WHERE user_id = ?`,
		t.userID.String(),
	).Scan(&doc)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, classifySQLiteError("failed to read progress", err)
	}
	return decodeRecord([]byte(doc))
}

func (t *sqliteProgressTx) Write(ctx context.Context, record *types.ProgressRecord) error {
	doc, err := encodeRecord(record)
	if err != nil {
		return err
	}
	_, err = t.conn.ExecContext(ctx,
		`INSERT INTO progress_records (user_id, record) VALUES (?, ?)
		 ON CONFLICT (user_id) DO UPDATE SET
		     record = excluded.record,
		     version = progress_records.version + 1,
		     updated_at = CURRENT_TIMESTAMP`,
		t.userID.String(), string(doc),
	)
	if err != nil {
		return classifySQLiteError("failed to write progress", err)
	}
	return nil
}

func (t *sqliteProgressTx) Commit(ctx context.Context) error {
	if t.done {
		return fmt.Errorf("transaction already finished")
	}
	if _, err := t.conn.ExecContext(ctx, "COMMIT"); err != nil {
		if ctx.Err() != nil {
			return commitUnknownError("failed to commit progress", err)
		}
		return classifySQLiteError("failed to commit progress", err)
	}
	t.done = true
	// Committed; a close failure must not be reported as a failed update.
	_ = t.release()
	return nil
}

func (t *sqliteProgressTx) Rollback(ctx context.Context) error {
	if t.done {
		return nil
	}
	t.done = true
	// The connection must not return to the pool mid-transaction, so the
	// rollback ignores the caller's deadline.
	_, err := t.conn.ExecContext(context.WithoutCancel(ctx), "ROLLBACK")
	closeErr := t.release()
	if err != nil {
		return fmt.Errorf("failed to roll back progress: %w", err)
	}
	return closeErr
}

// sqliteBusyTimeout bounds how long a statement waits on a locked database.
const sqliteBusyTimeout = 5 * time.Second

// sqlitePragmas are applied by the driver to every new pooled connection.
var sqlitePragmas = []string{
	fmt.Sprintf("busy_timeout(%d)", sqliteBusyTimeout.Milliseconds()),
	"journal_mode(WAL)",
	"synchronous(NORMAL)",
}

// withPragmas appends the connection pragmas to dsn as _pragma parameters.
func withPragmas(dsn string) string {
	sep := "?"
	if strings.Contains(dsn, "?") {
		sep = "&"
	}
	var sb strings.Builder
	sb.WriteString(dsn)
	for _, p := range sqlitePragmas {
		sb.WriteString(sep)
		sb.WriteString("_pragma=")
		sb.WriteString(p)
		sep = "&"
	}
	return sb.String()
}

// classifySQLiteError marks busy/locked failures and deadlines as contention.
func classifySQLiteError(op string, err error) error {
	var sqliteErr *sqlite.Error
	if errors.As(err, &sqliteErr) {
		switch sqliteErr.Code() & 0xff {
		case sqlite3.SQLITE_BUSY, sqlite3.SQLITE_LOCKED:
			return contentionError(op, err)
		}
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return contentionError(op, err)
	}
	return fmt.Errorf("%s: %w", op, err)
}
