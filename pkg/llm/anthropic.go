package llm

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
)

// ClaudeClient wraps the Anthropic API client to implement LLMClient.
type ClaudeClient struct {
	client anthropic.Client
	model  anthropic.Model
}

// NewClaudeClient creates a Claude client for the given model.
func NewClaudeClient(apiKey, model string) LLMClient {
	client := anthropic.NewClient(option.WithAPIKey(apiKey))
	return &ClaudeClient{
		client: client,
		model:  anthropic.Model(model),
	}
}

// ensureAlternation prepares messages for Anthropic API requirements:
// system messages move to the top-level system parameter, consecutive user
// messages merge, and the sequence must end with a user message.
func ensureAlternation(messages []CompletionMessage) (systemPrompt string, alternating []CompletionMessage, err error) {
	if len(messages) == 0 {
		return "", nil, fmt.Errorf("message list cannot be empty")
	}

	var systemParts []string
	var rest []CompletionMessage
	for i := range messages {
		msg := &messages[i]
		if msg.Role == RoleSystem {
			systemParts = append(systemParts, msg.Content)
		} else {
			rest = append(rest, *msg)
		}
	}
	systemPrompt = strings.Join(systemParts, "\n\n")

	if len(rest) == 0 {
		return "", nil, fmt.Errorf("must have at least one non-system message")
	}

	// Merge consecutive user messages.
	var merged []CompletionMessage
	var userParts []string
	for i := range rest {
		msg := &rest[i]
		if msg.Role == RoleAssistant {
			if len(userParts) > 0 {
				merged = append(merged, CompletionMessage{
					Role:    RoleUser,
					Content: strings.Join(userParts, "\n\n"),
				})
				userParts = nil
			}
			merged = append(merged, *msg)
		} else {
			userParts = append(userParts, msg.Content)
		}
	}
	if len(userParts) > 0 {
		merged = append(merged, CompletionMessage{
			Role:    RoleUser,
			Content: strings.Join(userParts, "\n\n"),
		})
	}

	if merged[0].Role != RoleUser {
		return "", nil, fmt.Errorf("first message must be user role, got: %s", merged[0].Role)
	}
	if merged[len(merged)-1].Role != RoleUser {
		return "", nil, fmt.Errorf("last message must be user role, got: %s", merged[len(merged)-1].Role)
	}
	for i := 1; i < len(merged); i++ {
		if merged[i].Role == merged[i-1].Role {
			return "", nil, fmt.Errorf("alternation violation at index %d: consecutive %s messages", i, merged[i].Role)
		}
	}

	return systemPrompt, merged, nil
}

// Complete implements the LLMClient interface.
func (c *ClaudeClient) Complete(ctx context.Context, in CompletionRequest) (CompletionResponse, error) {
	in = applyJSONInstruction(in)

	systemPrompt, alternating, err := ensureAlternation(in.Messages)
	if err != nil {
		return CompletionResponse{}, NewError(ErrorTypeBadPrompt, "message alternation error: %v", err)
	}

	messages := make([]anthropic.MessageParam, 0, len(alternating))
	for i := range alternating {
		msg := &alternating[i]
		messages = append(messages, anthropic.MessageParam{
			Role:    anthropic.MessageParamRole(msg.Role),
			Content: []anthropic.ContentBlockParamUnion{anthropic.NewTextBlock(msg.Content)},
		})
	}

	params := anthropic.MessageNewParams{
		Model:       c.model,
		Messages:    messages,
		MaxTokens:   int64(in.MaxTokens),
		Temperature: anthropic.Float(float64(in.Temperature)),
	}
	if systemPrompt != "" {
		params.System = []anthropic.TextBlockParam{{
			Text: systemPrompt,
			Type: "text",
		}}
	}

	resp, err := c.client.Messages.New(ctx, params)
	if err != nil {
		return CompletionResponse{}, classifyAnthropicError(err)
	}
	if resp == nil || len(resp.Content) == 0 {
		return CompletionResponse{}, NewError(ErrorTypeEmptyResponse, "received empty or nil response from Claude API")
	}

	var responseText string
	for i := range resp.Content {
		block := &resp.Content[i]
		if block.Type == "text" {
			textBlock := block.AsText()
			responseText += textBlock.Text
		}
	}

	return CompletionResponse{
		Content:    responseText,
		StopReason: string(resp.StopReason),
	}, nil
}

// GetModelName returns the model name for this client.
func (c *ClaudeClient) GetModelName() string {
	return string(c.model)
}

// classifyAnthropicError maps SDK errors to classified error types.
func classifyAnthropicError(err error) *Error {
	if errors.Is(err, context.DeadlineExceeded) {
		return NewErrorWithCause(ErrorTypeTransient, err, "request timeout")
	}
	if errors.Is(err, context.Canceled) {
		return NewErrorWithCause(ErrorTypeTransient, err, "request canceled")
	}

	errStr := strings.ToLower(err.Error())
	switch {
	case strings.Contains(errStr, "401") || strings.Contains(errStr, "403") ||
		strings.Contains(errStr, "unauthorized") || strings.Contains(errStr, "api key"):
		return NewErrorWithCause(ErrorTypeAuth, err, "authentication failed")
	case strings.Contains(errStr, "429") || strings.Contains(errStr, "rate") ||
		strings.Contains(errStr, "quota"):
		return NewErrorWithCause(ErrorTypeRateLimit, err, "rate limit exceeded")
	case strings.Contains(errStr, "500") || strings.Contains(errStr, "502") ||
		strings.Contains(errStr, "503") || strings.Contains(errStr, "504"):
		return NewErrorWithCause(ErrorTypeTransient, err, "server error")
	case strings.Contains(errStr, "timeout") || strings.Contains(errStr, "connection") ||
		strings.Contains(errStr, "network") || strings.Contains(errStr, "eof") ||
		strings.Contains(errStr, "reset"):
		return NewErrorWithCause(ErrorTypeTransient, err, "network or connection error")
	case strings.Contains(errStr, "400") || strings.Contains(errStr, "invalid") ||
		strings.Contains(errStr, "too large"):
		return NewErrorWithCause(ErrorTypeBadPrompt, err, "bad request")
	default:
		return NewErrorWithCause(ErrorTypeUnknown, err, "unclassified error")
	}
}
