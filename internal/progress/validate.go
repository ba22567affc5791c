package progress

import (
	"bytes"
	"encoding/json"

	"github.com/go-playground/validator/v10"

	"github.com/jonathan/interview-progress/internal/types"
)

const (
	domainRule     = "required,oneof=technical hr behavioral marketing"
	difficultyRule = "required,oneof=beginner intermediate advanced"
)

// validate is safe for concurrent use and caches rule parsing.
var validate = validator.New()

// signalPayload mirrors the inbound JSON without trusting its types.
type signalPayload struct {
	Domain     *string         `json:"domain"`
	Difficulty *string         `json:"difficulty"`
	IsCorrect  json.RawMessage `json:"isCorrect"`
}

// ParseSignal decodes and validates a raw signal body. Checks run in a fixed
// order (payload, domain, difficulty, isCorrect) and the first failure is
// returned as an *ErrInvalidArgument.
func ParseSignal(body []byte) (types.Signal, error) {
	trimmed := bytes.TrimSpace(body)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return types.Signal{}, invalidArgument(ReasonMissingPayload, "", "request body is required")
	}

	var payload signalPayload
	if err := json.Unmarshal(trimmed, &payload); err != nil {
		return types.Signal{}, invalidArgument(ReasonMalformedPayload, "", "request body must be a JSON object: %v", err)
	}

	domain := deref(payload.Domain)
	if err := validate.Var(domain, domainRule); err != nil {
		return types.Signal{}, invalidArgument(ReasonInvalidDomain, "domain", "must be one of technical, hr, behavioral, marketing; got %q", domain)
	}

	difficulty := deref(payload.Difficulty)
	if err := validate.Var(difficulty, difficultyRule); err != nil {
		return types.Signal{}, invalidArgument(ReasonInvalidDifficulty, "difficulty", "must be one of beginner, intermediate, advanced; got %q", difficulty)
	}

	isCorrect, ok := parseBool(payload.IsCorrect)
	if !ok {
		return types.Signal{}, invalidArgument(ReasonInvalidSignal, "isCorrect", "must be a boolean")
	}

	return types.Signal{
		Domain:     types.Domain(domain),
		Difficulty: types.Difficulty(difficulty),
		IsCorrect:  isCorrect,
	}, nil
}

// ValidateSignal checks an already-typed signal with the same rules as ParseSignal.
func ValidateSignal(sig types.Signal) error {
	if err := validate.Var(string(sig.Domain), domainRule); err != nil {
		return invalidArgument(ReasonInvalidDomain, "domain", "must be one of technical, hr, behavioral, marketing; got %q", sig.Domain)
	}
	if err := validate.Var(string(sig.Difficulty), difficultyRule); err != nil {
		return invalidArgument(ReasonInvalidDifficulty, "difficulty", "must be one of beginner, intermediate, advanced; got %q", sig.Difficulty)
	}
	return nil
}

func parseBool(raw json.RawMessage) (bool, bool) {
	if len(raw) == 0 {
		return false, false
	}
	var v any
	if err := json.Unmarshal(raw, &v); err != nil {
		return false, false
	}
	b, ok := v.(bool)
	return b, ok
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
