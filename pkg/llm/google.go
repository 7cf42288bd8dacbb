package llm

import (
	"context"

	"google.golang.org/genai"
)

// GeminiClient wraps the Google GenAI client to implement LLMClient.
type GeminiClient struct {
	client *genai.Client
	apiKey string
	model  string
}

// NewGeminiClient creates a Gemini client for the given model. The underlying
// client requires a context, so creation is deferred to the first Complete.
func NewGeminiClient(apiKey, model string) LLMClient {
	return &GeminiClient{
		client: nil,
		apiKey: apiKey,
		model:  model,
	}
}

// Complete implements the LLMClient interface.
func (g *GeminiClient) Complete(ctx context.Context, in CompletionRequest) (CompletionResponse, error) {
	if g.client == nil {
		client, err := genai.NewClient(ctx, &genai.ClientConfig{
			APIKey:  g.apiKey,
			Backend: genai.BackendGeminiAPI,
		})
		if err != nil {
			return CompletionResponse{}, NewErrorWithCause(ErrorTypeTransient, err, "failed to create Gemini client")
		}
		g.client = client
	}

	contents, systemInstruction, err := convertMessagesToGemini(in.Messages)
	if err != nil {
		return CompletionResponse{}, NewErrorWithCause(ErrorTypeBadPrompt, err, "message conversion error")
	}

	//nolint:gosec // MaxTokens validated at higher layer
	maxTokens := int32(in.MaxTokens)
	cfg := &genai.GenerateContentConfig{
		Temperature:     &in.Temperature,
		MaxOutputTokens: maxTokens,
	}
	if systemInstruction != "" {
		cfg.SystemInstruction = &genai.Content{
			Parts: []*genai.Part{{Text: systemInstruction}},
		}
	}
	if in.ForceJSON {
		cfg.ResponseMIMEType = "application/json"
	}

	result, err := g.client.Models.GenerateContent(ctx, g.model, contents, cfg)
	if err != nil {
		return CompletionResponse{}, NewErrorWithCause(ErrorTypeUnknown, err, "Gemini API call failed")
	}
	if result == nil {
		return CompletionResponse{}, NewError(ErrorTypeEmptyResponse, "empty response from Gemini API")
	}

	return CompletionResponse{
		Content:    result.Text(),
		StopReason: "end_turn",
	}, nil
}

// GetModelName returns the model name for this client.
func (g *GeminiClient) GetModelName() string {
	return g.model
}

// convertMessagesToGemini converts our message format to Gemini's Content
// format. System messages become the system instruction; Gemini uses "model"
// for the assistant role.
func convertMessagesToGemini(messages []CompletionMessage) ([]*genai.Content, string, error) {
	if len(messages) == 0 {
		return nil, "", NewError(ErrorTypeBadPrompt, "message list cannot be empty")
	}

	var systemInstruction string
	var contents []*genai.Content

	for i := range messages {
		msg := &messages[i]

		if msg.Role == RoleSystem {
			if systemInstruction != "" {
				systemInstruction += "\n\n" + msg.Content
			} else {
				systemInstruction = msg.Content
			}
			continue
		}

		role := "user"
		if msg.Role == RoleAssistant {
			role = "model"
		}

		if msg.Content != "" {
			contents = append(contents, &genai.Content{
				Role:  role,
				Parts: []*genai.Part{{Text: msg.Content}},
			})
		}
	}

	return contents, systemInstruction, nil
}
