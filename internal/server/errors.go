package server

import (
	"errors"
	"fmt"
	"log"
	"net/http"

	"github.com/jonathan/interview-progress/internal/progress"
	"github.com/jonathan/interview-progress/internal/types"
)

// retryAfterSeconds is sent with 503 responses after store contention.
const retryAfterSeconds = "1"

// ErrValidation indicates request validation failure outside the progress
// service, such as a malformed question request.
type ErrValidation struct {
	Field   string
	Message string
}

func (e *ErrValidation) Error() string {
	return fmt.Sprintf("validation error: %s - %s", e.Field, e.Message)
}

// HTTPStatus returns the appropriate HTTP status code for an error
func HTTPStatus(err error) int {
	var validationErr *ErrValidation
	if errors.As(err, &validationErr) {
		return http.StatusBadRequest
	}

	switch progress.KindOf(err) {
	case progress.KindUnauthenticated:
		return http.StatusUnauthorized
	case progress.KindInvalidArgument:
		return http.StatusBadRequest
	case progress.KindStoreContention:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// errorBody builds the JSON error body for err.
func errorBody(err error) types.ErrorResponse {
	var validationErr *ErrValidation
	if errors.As(err, &validationErr) {
		return types.ErrorResponse{
			Error: validationErr.Message,
			Kind:  string(progress.KindInvalidArgument),
			Field: validationErr.Field,
		}
	}

	kind := progress.KindOf(err)
	resp := types.ErrorResponse{
		Kind:      string(kind),
		Retryable: progress.Retryable(err),
	}

	var invalid *progress.ErrInvalidArgument
	switch {
	case kind == progress.KindUnauthenticated:
		resp.Error = "Unauthorized"
	case errors.As(err, &invalid):
		resp.Error = invalid.Message
		resp.Reason = string(invalid.Reason)
		resp.Field = invalid.Field
	case kind == progress.KindStoreContention:
		resp.Error = "progress store is busy, please retry"
	default:
		resp.Error = "internal server error"
	}
	return resp
}

// writeError maps err onto a status code and JSON error body.
func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := HTTPStatus(err)
	switch status {
	case http.StatusServiceUnavailable:
		w.Header().Set("Retry-After", retryAfterSeconds)
	case http.StatusInternalServerError:
		log.Printf("[%s] %s failed: %v", r.Method, r.URL.Path, err)
	}
	s.jsonResponse(w, status, errorBody(err))
}
