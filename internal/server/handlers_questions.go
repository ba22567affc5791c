package server

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"

	"github.com/go-playground/validator/v10"

	"github.com/jonathan/interview-progress/internal/server/middleware"
	"github.com/jonathan/interview-progress/internal/types"
)

var validate = validator.New()

// handleNextQuestion returns a question at the caller's current difficulty
// for the requested domain.
func (s *Server) handleNextQuestion(w http.ResponseWriter, r *http.Request) {
	var req types.NextQuestionRequest
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, s.cfg.MaxBodyBytes))
	if err := dec.Decode(&req); err != nil {
		s.writeError(w, r, &ErrValidation{Field: "body", Message: "invalid request body: " + err.Error()})
		return
	}
	if err := validate.Struct(req); err != nil {
		var fieldErrs validator.ValidationErrors
		if errors.As(err, &fieldErrs) && len(fieldErrs) > 0 {
			s.writeError(w, r, &ErrValidation{
				Field:   "domain",
				Message: "domain must be one of technical, hr, behavioral, marketing",
			})
			return
		}
		s.writeError(w, r, &ErrValidation{Field: "body", Message: err.Error()})
		return
	}

	userID := middleware.UserIDOrNil(r)
	difficulty, err := s.progress.CurrentDifficulty(r.Context(), userID, req.Domain)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	question, err := s.questions.Generate(r.Context(), req.Domain, difficulty)
	if err != nil {
		log.Printf("[questions] user=%s domain=%s difficulty=%s generation failed: %v", userID, req.Domain, difficulty, err)
		s.jsonResponse(w, http.StatusBadGateway, types.ErrorResponse{
			Error:     "question generation failed",
			Kind:      "internal",
			Retryable: true,
		})
		return
	}

	s.jsonResponse(w, http.StatusOK, types.NextQuestionResponse{Data: question})
}
