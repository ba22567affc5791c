package progress

import (
	"errors"
	"fmt"

	"github.com/jonathan/interview-progress/internal/db"
)

// Kind is the machine-readable category of a progress failure.
type Kind string

// Error kinds surfaced to callers.
const (
	KindUnauthenticated Kind = "unauthenticated"
	KindInvalidArgument Kind = "invalid_argument"
	KindStoreContention Kind = "store_contention"
	KindInternal        Kind = "internal"
)

// Reason narrows an invalid-argument failure to the check that rejected it.
type Reason string

// Invalid-argument reasons, in the order they are checked.
const (
	ReasonMissingPayload    Reason = "missing_payload"
	ReasonMalformedPayload  Reason = "malformed_payload"
	ReasonInvalidDomain     Reason = "invalid_domain"
	ReasonInvalidDifficulty Reason = "invalid_difficulty"
	ReasonInvalidSignal     Reason = "invalid_signal"
)

// ErrUnauthenticated indicates the call carried no caller identity.
type ErrUnauthenticated struct{}

func (e *ErrUnauthenticated) Error() string {
	return "unauthenticated: caller identity is required"
}

// ErrInvalidArgument indicates the submitted signal was rejected before any store access.
type ErrInvalidArgument struct {
	Reason  Reason
	Field   string
	Message string
}

func (e *ErrInvalidArgument) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("invalid argument: %s - %s", e.Field, e.Message)
	}
	return fmt.Sprintf("invalid argument: %s", e.Message)
}

// ErrStoreContention indicates the transaction could not commit within its
// attempt budget or deadline. Nothing was persisted; the caller may retry.
type ErrStoreContention struct {
	Attempts int
	Err      error
}

func (e *ErrStoreContention) Error() string {
	return fmt.Sprintf("progress update did not commit after %d attempt(s): %v", e.Attempts, e.Err)
}

func (e *ErrStoreContention) Unwrap() error {
	return e.Err
}

// ErrInternal indicates a non-contention store failure. Nothing was persisted
// unless Err wraps db.ErrCommitUnknown.
type ErrInternal struct {
	Op  string
	Err error
}

func (e *ErrInternal) Error() string {
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *ErrInternal) Unwrap() error {
	return e.Err
}

// KindOf classifies err. Unrecognized errors are internal.
func KindOf(err error) Kind {
	var (
		unauth     *ErrUnauthenticated
		invalid    *ErrInvalidArgument
		contention *ErrStoreContention
	)
	switch {
	case errors.As(err, &unauth):
		return KindUnauthenticated
	case errors.As(err, &invalid):
		return KindInvalidArgument
	case errors.As(err, &contention):
		return KindStoreContention
	default:
		return KindInternal
	}
}

// Retryable reports whether the client may resubmit the same request unchanged.
// A commit with an unknown outcome is not: the answer may already be counted.
func Retryable(err error) bool {
	if errors.Is(err, db.ErrCommitUnknown) {
		return false
	}
	switch KindOf(err) {
	case KindStoreContention, KindInternal:
		return true
	default:
		return false
	}
}

func invalidArgument(reason Reason, field, format string, args ...any) *ErrInvalidArgument {
	return &ErrInvalidArgument{
		Reason:  reason,
		Field:   field,
		Message: fmt.Sprintf(format, args...),
	}
}
