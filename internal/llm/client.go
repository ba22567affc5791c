package llm

import (
	"context"
	"fmt"
	"log"
	"strings"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/option"
)

// maxQuestionTokens caps one drafted question with its options and explanation.
const maxQuestionTokens int32 = 1024

// QuestionRequest describes one interview question to draft.
type QuestionRequest struct {
	System string    // Interviewer role, topic and difficulty rubric
	Prompt string    // Output rules for this question
	Tier   ModelTier // Model tier matching the interview difficulty
}

// Client drafts interview questions as JSON documents.
type Client interface {
	// GenerateQuestion returns the model's question object as cleaned JSON.
	GenerateQuestion(ctx context.Context, req QuestionRequest) (string, error)
	// Close releases any resources held by the client
	Close() error
}

// questionSchema constrains Gemini's JSON mode to the question object shape.
var questionSchema = &genai.Schema{
	Type: genai.TypeObject,
	Properties: map[string]*genai.Schema{
		"question": {Type: genai.TypeString, Description: "The question as asked in the interview"},
		"options": {
			Type:        genai.TypeArray,
			Description: "2 to 6 answer choices; omitted for open-ended questions",
			Items:       &genai.Schema{Type: genai.TypeString},
		},
		"correctAnswer": {Type: genai.TypeString, Description: "One of the options, verbatim"},
		"explanation":   {Type: genai.TypeString, Description: "Why the answer is correct, in one or two sentences"},
	},
	Required: []string{"question"},
}

// GeminiClient implements Client for Google Gemini
type GeminiClient struct {
	client *genai.Client
	config *Config
}

// NewGeminiClient creates a new Gemini client
func NewGeminiClient(ctx context.Context, config *Config, apiKey string) (*GeminiClient, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("API key is required")
	}
	if config == nil {
		config = DefaultConfig()
	}

	client, err := genai.NewClient(ctx, option.WithAPIKey(apiKey))
	if err != nil {
		return nil, fmt.Errorf("failed to create Gemini client: %w", err)
	}

	return &GeminiClient{
		client: client,
		config: config,
	}, nil
}

// GenerateQuestion drafts one question with the model for req.Tier.
func (c *GeminiClient) GenerateQuestion(ctx context.Context, req QuestionRequest) (string, error) {
	modelName := c.config.GetModel(req.Tier)
	if modelName == "" {
		return "", fmt.Errorf("no model configured for tier %s", req.Tier)
	}

	model := c.questionModel(modelName, req.System)
	resp, err := model.GenerateContent(ctx, genai.Text(req.Prompt))
	if err != nil {
		return "", fmt.Errorf("failed to generate question: %w", err)
	}
	if usage := resp.UsageMetadata; usage != nil {
		log.Printf("[llm] model=%s tier=%s tokens=%d", modelName, req.Tier, usage.TotalTokenCount)
	}

	text, err := extractTextFromResponse(resp)
	if err != nil {
		return "", err
	}

	return CleanJSONBlock(text), nil
}

// questionModel configures a model for schema-constrained question output.
func (c *GeminiClient) questionModel(name, system string) *genai.GenerativeModel {
	model := c.client.GenerativeModel(name)
	model.SetTemperature(c.config.Temperature)
	model.SetCandidateCount(1)
	model.SetMaxOutputTokens(maxQuestionTokens)
	model.ResponseMIMEType = "application/json"
	model.ResponseSchema = questionSchema
	if system != "" {
		model.SystemInstruction = genai.NewUserContent(genai.Text(system))
	}
	return model
}

// Close releases resources held by the client
func (c *GeminiClient) Close() error {
	if c.client != nil {
		return c.client.Close()
	}
	return nil
}

// extractTextFromResponse returns the first candidate's text. A candidate
// stopped by the safety filter is an error even if it carries partial text.
func extractTextFromResponse(resp *genai.GenerateContentResponse) (string, error) {
	if resp == nil || len(resp.Candidates) == 0 {
		if resp != nil && resp.PromptFeedback != nil && resp.PromptFeedback.BlockReason != genai.BlockReasonUnspecified {
			return "", fmt.Errorf("prompt blocked: %s", resp.PromptFeedback.BlockReason)
		}
		return "", fmt.Errorf("no candidates in response")
	}

	candidate := resp.Candidates[0]
	if candidate.FinishReason == genai.FinishReasonSafety {
		return "", fmt.Errorf("question blocked by safety filters")
	}
	if candidate.Content == nil || len(candidate.Content.Parts) == 0 {
		return "", fmt.Errorf("no content in response")
	}

	var parts []string
	for _, part := range candidate.Content.Parts {
		if text, ok := part.(genai.Text); ok {
			parts = append(parts, string(text))
		}
	}

	if len(parts) == 0 {
		return "", fmt.Errorf("no text parts in response")
	}

	return strings.Join(parts, ""), nil
}
