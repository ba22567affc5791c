// Package types provides type definitions for structured data used throughout the interview progress service.
//
//nolint:revive // types is a standard Go package name pattern
package types

// Domain identifies a category of interview question tracked independently.
type Domain string

// Recognized interview domains. The set is closed.
const (
	DomainTechnical  Domain = "technical"
	DomainHR         Domain = "hr"
	DomainBehavioral Domain = "behavioral"
	DomainMarketing  Domain = "marketing"
)

// Domains lists every recognized domain in a stable order.
var Domains = []Domain{DomainTechnical, DomainHR, DomainBehavioral, DomainMarketing}

// Valid reports whether d belongs to the closed domain set.
func (d Domain) Valid() bool {
	switch d {
	case DomainTechnical, DomainHR, DomainBehavioral, DomainMarketing:
		return true
	}
	return false
}

// Difficulty is the tier at which questions for a domain are generated.
type Difficulty string

// Difficulty tiers in ascending order.
const (
	DifficultyBeginner     Difficulty = "beginner"
	DifficultyIntermediate Difficulty = "intermediate"
	DifficultyAdvanced     Difficulty = "advanced"
)

// Difficulties lists the tiers in ascending order.
var Difficulties = []Difficulty{DifficultyBeginner, DifficultyIntermediate, DifficultyAdvanced}

// Valid reports whether d is a known tier.
func (d Difficulty) Valid() bool {
	return d.Rank() >= 0
}

// Rank returns the position of d in the tier order, or -1 if d is unknown.
func (d Difficulty) Rank() int {
	switch d {
	case DifficultyBeginner:
		return 0
	case DifficultyIntermediate:
		return 1
	case DifficultyAdvanced:
		return 2
	}
	return -1
}

// Next returns the tier above d. Advanced is terminal and returns itself.
func (d Difficulty) Next() Difficulty {
	switch d {
	case DifficultyBeginner:
		return DifficultyIntermediate
	case DifficultyIntermediate:
		return DifficultyAdvanced
	default:
		return d
	}
}

// DomainProgress holds a user's counters and current tier within one domain.
type DomainProgress struct {
	TotalQuestions    int        `json:"totalQuestions"`
	CorrectAnswers    int        `json:"correctAnswers"`
	CurrentDifficulty Difficulty `json:"currentDifficulty"`
}

// Accuracy returns CorrectAnswers / TotalQuestions, or 0 when nothing was answered.
func (p DomainProgress) Accuracy() float64 {
	if p.TotalQuestions == 0 {
		return 0
	}
	return float64(p.CorrectAnswers) / float64(p.TotalQuestions)
}

// ProgressRecord is the per-user record of cumulative interview performance.
type ProgressRecord struct {
	TotalQuestions int                       `json:"totalQuestions"`
	CorrectAnswers int                       `json:"correctAnswers"`
	DomainProgress map[Domain]DomainProgress `json:"domainProgress"`
}

// NewProgressRecord returns an empty record with zero counters.
func NewProgressRecord() *ProgressRecord {
	return &ProgressRecord{
		DomainProgress: make(map[Domain]DomainProgress),
	}
}

// Clone returns a deep copy of r. A nil receiver yields nil.
func (r *ProgressRecord) Clone() *ProgressRecord {
	if r == nil {
		return nil
	}
	out := &ProgressRecord{
		TotalQuestions: r.TotalQuestions,
		CorrectAnswers: r.CorrectAnswers,
		DomainProgress: make(map[Domain]DomainProgress, len(r.DomainProgress)),
	}
	for d, p := range r.DomainProgress {
		out.DomainProgress[d] = p
	}
	return out
}

// DifficultyFor returns the current tier for d, defaulting to beginner for
// domains the user has not answered yet.
func (r *ProgressRecord) DifficultyFor(d Domain) Difficulty {
	if r == nil {
		return DifficultyBeginner
	}
	if p, ok := r.DomainProgress[d]; ok && p.CurrentDifficulty.Valid() {
		return p.CurrentDifficulty
	}
	return DifficultyBeginner
}

// Signal is the per-answer event submitted after an interview question.
type Signal struct {
	Domain     Domain     `json:"domain"`
	Difficulty Difficulty `json:"difficulty"`
	IsCorrect  bool       `json:"isCorrect"`
}

// UpdateProgressResponse is returned by a successful progress update.
type UpdateProgressResponse struct {
	Message string          `json:"message"`
	Data    *ProgressRecord `json:"data"`
}

// GetProgressResponse is returned by the progress query endpoint.
type GetProgressResponse struct {
	Data *ProgressRecord `json:"data"`
}

// ErrorResponse is the body of every failed request.
type ErrorResponse struct {
	Error     string `json:"error"`
	Kind      string `json:"kind"`
	Reason    string `json:"reason,omitempty"`
	Field     string `json:"field,omitempty"`
	Retryable bool   `json:"retryable"`
}
