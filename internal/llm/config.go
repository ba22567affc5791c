// Package llm provides the model configuration and client used to draft
// interview questions.
package llm

import (
	"fmt"
	"os"
	"strconv"
)

// ModelTier represents the complexity/capability level of a model
type ModelTier string

const (
	// TierLite is for short structured drafts such as beginner questions
	TierLite ModelTier = "lite"
	// TierStandard is for most question generation
	TierStandard ModelTier = "standard"
	// TierAdvanced is for advanced-tier questions that need deeper scenarios
	TierAdvanced ModelTier = "advanced"
)

// Provider represents an LLM provider
type Provider string

// ProviderGemini is the Google Gemini provider
const ProviderGemini Provider = "gemini"

// DefaultTemperature keeps generated questions varied but on-topic.
const DefaultTemperature float32 = 0.4

// Config holds the model configuration for the application
type Config struct {
	Provider    Provider
	Models      map[ModelTier]string
	Temperature float32
}

// DefaultConfig returns the default configuration (currently Gemini)
func DefaultConfig() *Config {
	return &Config{
		Provider: ProviderGemini,
		Models: map[ModelTier]string{
			TierLite:     "gemini-2.5-flash-lite",
			TierStandard: "gemini-2.5-flash",
			TierAdvanced: "gemini-2.5-pro",
		},
		Temperature: DefaultTemperature,
	}
}

// ConfigFromEnv returns DefaultConfig with GEMINI_MODEL (standard tier) and
// GEMINI_TEMPERATURE overrides applied.
func ConfigFromEnv() (*Config, error) {
	cfg := DefaultConfig()
	if model := os.Getenv("GEMINI_MODEL"); model != "" {
		cfg = cfg.WithModel(TierStandard, model)
	}
	if raw := os.Getenv("GEMINI_TEMPERATURE"); raw != "" {
		temp, err := strconv.ParseFloat(raw, 32)
		if err != nil {
			return nil, fmt.Errorf("invalid GEMINI_TEMPERATURE: %v", err)
		}
		if temp < 0 || temp > 2 {
			return nil, fmt.Errorf("GEMINI_TEMPERATURE must be in [0, 2], got: %v", temp)
		}
		cfg.Temperature = float32(temp)
	}
	return cfg, nil
}

// GetModel returns the model name for a given tier
func (c *Config) GetModel(tier ModelTier) string {
	if model, ok := c.Models[tier]; ok {
		return model
	}
	// Fallback chain: try standard, then lite
	if model, ok := c.Models[TierStandard]; ok {
		return model
	}
	if model, ok := c.Models[TierLite]; ok {
		return model
	}
	return ""
}

// WithModel returns a new Config with a specific model for a tier
func (c *Config) WithModel(tier ModelTier, model string) *Config {
	newConfig := &Config{
		Provider:    c.Provider,
		Models:      make(map[ModelTier]string, len(c.Models)+1),
		Temperature: c.Temperature,
	}
	for k, v := range c.Models {
		newConfig.Models[k] = v
	}
	newConfig.Models[tier] = model
	return newConfig
}
