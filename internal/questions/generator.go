// Package questions produces interview questions at a requested difficulty.
// The progress engine decides the difficulty; generators only honor it.
package questions

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"slices"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/jonathan/interview-progress/internal/llm"
	"github.com/jonathan/interview-progress/internal/prompts"
	"github.com/jonathan/interview-progress/internal/types"
)

// Generator produces one question for a domain at a difficulty tier.
type Generator interface {
	Generate(ctx context.Context, domain types.Domain, difficulty types.Difficulty) (*types.Question, error)
}

// promptFile holds the question prompt templates.
const promptFile = "questions.json"

var validate = validator.New()

// generatedQuestion is the JSON shape requested from the model.
type generatedQuestion struct {
	Question      string   `json:"question" validate:"required,min=10"`
	Options       []string `json:"options" validate:"omitempty,min=2,max=6,dive,required"`
	CorrectAnswer string   `json:"correctAnswer"`
	Explanation   string   `json:"explanation"`
}

// LLMGenerator drafts questions with a language model.
type LLMGenerator struct {
	client llm.Client
}

// NewLLMGenerator creates a generator backed by client.
func NewLLMGenerator(client llm.Client) *LLMGenerator {
	return &LLMGenerator{client: client}
}

// Generate asks the model for a question and validates its shape.
func (g *LLMGenerator) Generate(ctx context.Context, domain types.Domain, difficulty types.Difficulty) (*types.Question, error) {
	if err := checkTier(domain, difficulty); err != nil {
		return nil, err
	}

	req, err := buildRequest(domain, difficulty)
	if err != nil {
		return nil, err
	}

	response, err := g.client.GenerateQuestion(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("LLM call failed: %w", err)
	}

	question, err := parseQuestion(response)
	if err != nil {
		return nil, fmt.Errorf("failed to parse LLM response: %w", err)
	}
	question.Domain = domain
	question.Difficulty = difficulty
	return question, nil
}

// tierFor maps the interview difficulty onto a model tier.
func tierFor(difficulty types.Difficulty) llm.ModelTier {
	switch difficulty {
	case types.DifficultyAdvanced:
		return llm.TierAdvanced
	case types.DifficultyIntermediate:
		return llm.TierStandard
	default:
		return llm.TierLite
	}
}

// buildRequest renders the interviewer instruction for domain and difficulty.
// The output rules go in the user turn.
func buildRequest(domain types.Domain, difficulty types.Difficulty) (llm.QuestionRequest, error) {
	var req llm.QuestionRequest
	system, err := prompts.Get(promptFile, "next-question-system")
	if err != nil {
		return req, err
	}
	user, err := prompts.Get(promptFile, "next-question-user")
	if err != nil {
		return req, err
	}
	guidance, err := prompts.Get(promptFile, "guidance-"+string(difficulty))
	if err != nil {
		return req, err
	}
	topic, err := prompts.Get(promptFile, "domain-"+string(domain))
	if err != nil {
		return req, err
	}

	data := map[string]string{
		"Domain":     fmt.Sprintf("%s (%s)", domain, topic),
		"Difficulty": string(difficulty),
		"Guidance":   guidance,
	}
	return llm.QuestionRequest{
		System: prompts.Format(system, data),
		Prompt: user,
		Tier:   tierFor(difficulty),
	}, nil
}

func parseQuestion(response string) (*types.Question, error) {
	var gen generatedQuestion
	if err := json.Unmarshal([]byte(llm.CleanJSONBlock(response)), &gen); err != nil {
		return nil, err
	}
	gen.Question = strings.TrimSpace(gen.Question)
	gen.CorrectAnswer = strings.TrimSpace(gen.CorrectAnswer)

	if err := validate.Struct(gen); err != nil {
		return nil, fmt.Errorf("invalid question: %w", err)
	}
	if len(gen.Options) > 0 && !slices.Contains(gen.Options, gen.CorrectAnswer) {
		return nil, fmt.Errorf("invalid question: correct answer %q is not one of the options", gen.CorrectAnswer)
	}

	return &types.Question{
		Prompt:        gen.Question,
		Options:       gen.Options,
		CorrectAnswer: gen.CorrectAnswer,
		Explanation:   strings.TrimSpace(gen.Explanation),
	}, nil
}

func checkTier(domain types.Domain, difficulty types.Difficulty) error {
	if !domain.Valid() {
		return fmt.Errorf("unknown domain %q", domain)
	}
	if !difficulty.Valid() {
		return fmt.Errorf("unknown difficulty %q", difficulty)
	}
	return nil
}

// Fallback serves from Primary and falls back to Secondary when Primary fails.
type Fallback struct {
	Primary   Generator
	Secondary Generator
}

// Generate implements Generator.
func (f *Fallback) Generate(ctx context.Context, domain types.Domain, difficulty types.Difficulty) (*types.Question, error) {
	q, err := f.Primary.Generate(ctx, domain, difficulty)
	if err == nil {
		return q, nil
	}
	if ctx.Err() != nil {
		return nil, ctx.Err()
	}
	log.Printf("[questions] primary generator failed for %s/%s, using fallback: %v", domain, difficulty, err)
	return f.Secondary.Generate(ctx, domain, difficulty)
}
