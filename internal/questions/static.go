package questions

import (
	"context"
	_ "embed"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/jonathan/interview-progress/internal/types"
)

//go:embed bank.json
var bankJSON []byte

// bank is domain -> difficulty -> questions.
type bank map[types.Domain]map[types.Difficulty][]types.Question

// StaticGenerator serves questions from the built-in bank, cycling through
// each domain and tier in order.
type StaticGenerator struct {
	bank bank

	mu   sync.Mutex
	next map[string]int
}

// NewStaticGenerator loads the embedded question bank. Every domain must
// have at least one question at every difficulty.
func NewStaticGenerator() (*StaticGenerator, error) {
	var b bank
	if err := json.Unmarshal(bankJSON, &b); err != nil {
		return nil, fmt.Errorf("failed to parse question bank: %w", err)
	}
	for _, domain := range types.Domains {
		for _, difficulty := range types.Difficulties {
			if len(b[domain][difficulty]) == 0 {
				return nil, fmt.Errorf("question bank has no %s questions for %s", difficulty, domain)
			}
		}
	}
	return &StaticGenerator{bank: b, next: make(map[string]int)}, nil
}

// Generate implements Generator.
func (g *StaticGenerator) Generate(_ context.Context, domain types.Domain, difficulty types.Difficulty) (*types.Question, error) {
	if err := checkTier(domain, difficulty); err != nil {
		return nil, err
	}

	pool := g.bank[domain][difficulty]
	key := string(domain) + "/" + string(difficulty)

	g.mu.Lock()
	i := g.next[key] % len(pool)
	g.next[key] = i + 1
	g.mu.Unlock()

	q := pool[i]
	q.Domain = domain
	q.Difficulty = difficulty
	q.Options = append([]string(nil), q.Options...)
	return &q, nil
}
