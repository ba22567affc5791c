package progress

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"

	"github.com/jonathan/interview-progress/internal/db"
	"github.com/jonathan/interview-progress/internal/types"
)

const (
	// DefaultTxTimeout bounds one progress update including retries.
	DefaultTxTimeout = 5 * time.Second
	// DefaultMaxAttempts is the number of transaction attempts before giving up.
	DefaultMaxAttempts = 3
	// DefaultRetryBackoff is the base delay between attempts; it grows linearly.
	DefaultRetryBackoff = 25 * time.Millisecond
)

// Store is the durable, per-user transactional storage behind the service.
// db.DB, db.SQLiteDB and db.MemoryDB implement it.
type Store interface {
	BeginProgress(ctx context.Context, userID uuid.UUID) (db.ProgressTx, error)
	GetProgress(ctx context.Context, userID uuid.UUID) (*types.ProgressRecord, error)
}

// Config holds the tuning values for the service.
type Config struct {
	Thresholds   Thresholds
	TxTimeout    time.Duration
	MaxAttempts  int
	RetryBackoff time.Duration
}

// DefaultConfig returns the standard thresholds and transaction limits.
func DefaultConfig() Config {
	return Config{
		Thresholds:   DefaultThresholds(),
		TxTimeout:    DefaultTxTimeout,
		MaxAttempts:  DefaultMaxAttempts,
		RetryBackoff: DefaultRetryBackoff,
	}
}

// Service records answered questions against users' progress records.
type Service struct {
	store  Store
	engine *Engine
	cfg    Config
}

// NewService creates a Service over store. Zero-valued limits in cfg fall
// back to the defaults.
func NewService(store Store, cfg Config) *Service {
	if cfg.TxTimeout <= 0 {
		cfg.TxTimeout = DefaultTxTimeout
	}
	if cfg.MaxAttempts < 1 {
		cfg.MaxAttempts = DefaultMaxAttempts
	}
	if cfg.RetryBackoff < 0 {
		cfg.RetryBackoff = 0
	}
	if cfg.Thresholds == (Thresholds{}) {
		cfg.Thresholds = DefaultThresholds()
	}
	return &Service{
		store:  store,
		engine: NewEngine(cfg.Thresholds),
		cfg:    cfg,
	}
}

// Engine returns the escalation engine used by the service.
func (s *Service) Engine() *Engine {
	return s.engine
}

// SubmitAnswer authenticates, parses and records one answered question from a
// raw request body. Validation failures never touch the store.
func (s *Service) SubmitAnswer(ctx context.Context, userID uuid.UUID, body []byte) (*types.ProgressRecord, Outcome, error) {
	if userID == uuid.Nil {
		return nil, Outcome{}, &ErrUnauthenticated{}
	}
	sig, err := ParseSignal(body)
	if err != nil {
		return nil, Outcome{}, err
	}
	return s.RecordAnswer(ctx, userID, sig)
}

// RecordAnswer applies one answered question to the user's record inside a
// single store transaction and returns the committed record.
//
// Every successful call increments the counters exactly once; the operation
// is not idempotent. On failure nothing is persisted, except that a commit
// interrupted in flight is reported as ErrInternal wrapping db.ErrCommitUnknown.
func (s *Service) RecordAnswer(ctx context.Context, userID uuid.UUID, sig types.Signal) (*types.ProgressRecord, Outcome, error) {
	if userID == uuid.Nil {
		return nil, Outcome{}, &ErrUnauthenticated{}
	}
	if err := ValidateSignal(sig); err != nil {
		return nil, Outcome{}, err
	}

	ctx, cancel := context.WithTimeout(ctx, s.cfg.TxTimeout)
	defer cancel()

	var lastErr error
	attempts := 0
	for attempts < s.cfg.MaxAttempts {
		attempts++

		record, outcome, err := s.applyOnce(ctx, userID, sig)
		if err == nil {
			logOutcome(userID, outcome, attempts)
			return record, outcome, nil
		}

		var invalid *ErrInvalidArgument
		if errors.As(err, &invalid) {
			return nil, Outcome{}, err
		}
		if errors.Is(err, db.ErrCommitUnknown) {
			log.Printf("[progress] user=%s domain=%s commit outcome unknown: %v", userID, sig.Domain, err)
			return nil, Outcome{}, &ErrInternal{Op: "progress commit outcome unknown", Err: err}
		}
		if !errors.Is(err, db.ErrContention) && ctx.Err() == nil {
			log.Printf("[progress] user=%s domain=%s update failed: %v", userID, sig.Domain, err)
			return nil, Outcome{}, &ErrInternal{Op: "progress update failed", Err: err}
		}

		lastErr = err
		if !s.wait(ctx, attempts) {
			break
		}
	}

	if lastErr == nil {
		lastErr = ctx.Err()
	}
	log.Printf("[progress] user=%s domain=%s gave up after %d attempt(s): %v", userID, sig.Domain, attempts, lastErr)
	return nil, Outcome{}, &ErrStoreContention{Attempts: attempts, Err: lastErr}
}

// applyOnce runs one read-modify-write transaction.
func (s *Service) applyOnce(ctx context.Context, userID uuid.UUID, sig types.Signal) (*types.ProgressRecord, Outcome, error) {
	tx, err := s.store.BeginProgress(ctx, userID)
	if err != nil {
		return nil, Outcome{}, err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	current, err := tx.ReadForUpdate(ctx)
	if err != nil {
		return nil, Outcome{}, err
	}

	next, outcome, err := s.engine.Apply(current, sig)
	if err != nil {
		return nil, Outcome{}, err
	}

	if err := tx.Write(ctx, next); err != nil {
		return nil, Outcome{}, err
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, Outcome{}, err
	}
	return next, outcome, nil
}

// wait sleeps before the next attempt. It reports false when no further
// attempt should be made.
func (s *Service) wait(ctx context.Context, attempt int) bool {
	if attempt >= s.cfg.MaxAttempts || ctx.Err() != nil {
		return false
	}
	if s.cfg.RetryBackoff == 0 {
		return true
	}
	timer := time.NewTimer(time.Duration(attempt) * s.cfg.RetryBackoff)
	defer timer.Stop()
	select {
	case <-timer.C:
		return true
	case <-ctx.Done():
		return false
	}
}

// GetProgress returns the user's record, or a zero record if none has been
// stored yet. The zero record is not persisted.
func (s *Service) GetProgress(ctx context.Context, userID uuid.UUID) (*types.ProgressRecord, error) {
	if userID == uuid.Nil {
		return nil, &ErrUnauthenticated{}
	}
	record, err := s.store.GetProgress(ctx, userID)
	if err != nil {
		return nil, &ErrInternal{Op: "failed to read progress", Err: err}
	}
	if record == nil {
		return types.NewProgressRecord(), nil
	}
	return record, nil
}

// CurrentDifficulty returns the tier at which the next question for domain
// should be generated.
func (s *Service) CurrentDifficulty(ctx context.Context, userID uuid.UUID, domain types.Domain) (types.Difficulty, error) {
	if !domain.Valid() {
		return "", invalidArgument(ReasonInvalidDomain, "domain", "unknown domain %q", domain)
	}
	record, err := s.GetProgress(ctx, userID)
	if err != nil {
		return "", err
	}
	return record.DifficultyFor(domain), nil
}

// Message returns the human-readable summary sent with a successful update.
func Message(outcome Outcome) string {
	if outcome.Escalated {
		return fmt.Sprintf("Progress updated. %s difficulty raised from %s to %s", outcome.Domain, outcome.From, outcome.To)
	}
	return "Progress updated successfully"
}

func logOutcome(userID uuid.UUID, outcome Outcome, attempts int) {
	if outcome.Escalated {
		log.Printf("[progress] user=%s domain=%s escalated %s -> %s (answered=%d accuracy=%.2f attempts=%d)",
			userID, outcome.Domain, outcome.From, outcome.To, outcome.DomainTotal, outcome.Accuracy, attempts)
		return
	}
	log.Printf("[progress] user=%s domain=%s tier=%s (answered=%d accuracy=%.2f attempts=%d)",
		userID, outcome.Domain, outcome.To, outcome.DomainTotal, outcome.Accuracy, attempts)
}
