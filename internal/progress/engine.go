// Package progress implements adaptive interview-progress tracking: the
// escalation engine that promotes a user's difficulty tier per domain, and the
// transactional service that applies one answered question to the store.
package progress

import (
	"github.com/jonathan/interview-progress/internal/types"
)

const (
	// DefaultMinQuestions is the per-domain answer count required before escalation is considered.
	DefaultMinQuestions = 10
	// DefaultMinAccuracy is the per-domain accuracy required for escalation.
	DefaultMinAccuracy = 0.75
)

// Thresholds gate escalation. Both must hold for a tier to advance.
type Thresholds struct {
	MinQuestions int
	MinAccuracy  float64
}

// DefaultThresholds returns the standard 10 question / 75% accuracy gate.
func DefaultThresholds() Thresholds {
	return Thresholds{
		MinQuestions: DefaultMinQuestions,
		MinAccuracy:  DefaultMinAccuracy,
	}
}

// Outcome describes what a single Apply did to the signal's domain.
type Outcome struct {
	Domain      types.Domain
	Escalated   bool
	From        types.Difficulty
	To          types.Difficulty
	Accuracy    float64
	DomainTotal int
}

// Engine applies answer signals to progress records. It performs no I/O and
// is safe for concurrent use.
type Engine struct {
	thresholds Thresholds
}

// NewEngine creates an engine with the given thresholds.
func NewEngine(t Thresholds) *Engine {
	return &Engine{thresholds: t}
}

// Thresholds returns the engine's escalation gate.
func (e *Engine) Thresholds() Thresholds {
	return e.thresholds
}

// Apply returns the record that results from answering one question
// described by sig. current is never modified; nil means the user has no
// record yet.
//
// Escalation is re-evaluated on every answer once the domain has at least
// MinQuestions answers, moves at most one tier, and never moves down.
// Global counters are aggregates only and never gate escalation.
func (e *Engine) Apply(current *types.ProgressRecord, sig types.Signal) (*types.ProgressRecord, Outcome, error) {
	if !sig.Domain.Valid() {
		return nil, Outcome{}, invalidArgument(ReasonInvalidDomain, "domain", "unknown domain %q", sig.Domain)
	}
	if !sig.Difficulty.Valid() {
		return nil, Outcome{}, invalidArgument(ReasonInvalidDifficulty, "difficulty", "unknown difficulty %q", sig.Difficulty)
	}

	next := current.Clone()
	if next == nil {
		next = types.NewProgressRecord()
	}
	if next.DomainProgress == nil {
		next.DomainProgress = make(map[types.Domain]types.DomainProgress)
	}

	dp, ok := next.DomainProgress[sig.Domain]
	if !ok || !dp.CurrentDifficulty.Valid() {
		dp.CurrentDifficulty = types.DifficultyBeginner
	}

	next.TotalQuestions++
	dp.TotalQuestions++
	if sig.IsCorrect {
		next.CorrectAnswers++
		dp.CorrectAnswers++
	}

	// TotalQuestions >= 1 here, so the division is safe.
	accuracy := float64(dp.CorrectAnswers) / float64(dp.TotalQuestions)

	outcome := Outcome{
		Domain:      sig.Domain,
		From:        dp.CurrentDifficulty,
		To:          dp.CurrentDifficulty,
		Accuracy:    accuracy,
		DomainTotal: dp.TotalQuestions,
	}

	if e.qualifies(dp.TotalQuestions, accuracy) && dp.CurrentDifficulty != types.DifficultyAdvanced {
		dp.CurrentDifficulty = dp.CurrentDifficulty.Next()
		outcome.To = dp.CurrentDifficulty
		outcome.Escalated = true
	}

	next.DomainProgress[sig.Domain] = dp
	return next, outcome, nil
}

func (e *Engine) qualifies(total int, accuracy float64) bool {
	return total >= e.thresholds.MinQuestions && accuracy >= e.thresholds.MinAccuracy
}
