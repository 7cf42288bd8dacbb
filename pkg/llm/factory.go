package llm

import (
	"fmt"

	"metagent/pkg/config"
)

// NewClientFromConfig builds the configured provider client wrapped with
// retry logic. API keys resolve through the secrets layer (encrypted file,
// then environment).
func NewClientFromConfig(cfg *config.LLMConfig) (LLMClient, error) {
	var base LLMClient

	switch cfg.Provider {
	case config.ProviderAnthropic:
		apiKey, err := config.GetSecret("ANTHROPIC_API_KEY")
		if err != nil {
			return nil, fmt.Errorf("anthropic provider: %w", err)
		}
		base = NewClaudeClient(apiKey, cfg.Model)

	case config.ProviderOpenAI:
		apiKey, err := config.GetSecret("OPENAI_API_KEY")
		if err != nil {
			return nil, fmt.Errorf("openai provider: %w", err)
		}
		base = NewOpenAIClient(apiKey, cfg.Model)

	case config.ProviderOllama:
		base = NewOllamaClient(cfg.OllamaHost, cfg.Model)

	case config.ProviderGoogle:
		apiKey, err := config.GetSecret("GEMINI_API_KEY")
		if err != nil {
			return nil, fmt.Errorf("google provider: %w", err)
		}
		base = NewGeminiClient(apiKey, cfg.Model)

	case config.ProviderMock:
		base = NewMockClient()

	default:
		return nil, fmt.Errorf("unknown llm provider %q", cfg.Provider)
	}

	return NewRetryableClient(base, DefaultRetryConfig), nil
}
