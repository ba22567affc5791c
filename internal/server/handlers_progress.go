package server

import (
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/google/uuid"

	"github.com/jonathan/interview-progress/internal/progress"
	"github.com/jonathan/interview-progress/internal/server/middleware"
	"github.com/jonathan/interview-progress/internal/types"
)

// handleUpdateProgress records one answered question for the caller.
func (s *Server) handleUpdateProgress(w http.ResponseWriter, r *http.Request) {
	userID := middleware.UserIDOrNil(r)
	if userID == uuid.Nil {
		s.writeError(w, r, &progress.ErrUnauthenticated{})
		return
	}

	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, s.cfg.MaxBodyBytes))
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			s.writeError(w, r, &progress.ErrInvalidArgument{
				Reason:  progress.ReasonMalformedPayload,
				Message: fmt.Sprintf("request body exceeds %d bytes", tooLarge.Limit),
			})
			return
		}
		s.writeError(w, r, &progress.ErrInvalidArgument{
			Reason:  progress.ReasonMalformedPayload,
			Message: "failed to read request body",
		})
		return
	}

	record, outcome, err := s.progress.SubmitAnswer(r.Context(), userID, body)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	s.jsonResponse(w, http.StatusOK, types.UpdateProgressResponse{
		Message: progress.Message(outcome),
		Data:    record,
	})
}

// handleGetProgress returns the caller's progress record.
func (s *Server) handleGetProgress(w http.ResponseWriter, r *http.Request) {
	record, err := s.progress.GetProgress(r.Context(), middleware.UserIDOrNil(r))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.jsonResponse(w, http.StatusOK, types.GetProgressResponse{Data: record})
}
