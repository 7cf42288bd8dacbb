// Package llm provides the completion-client interface used by the
// requirement analyzer, with implementations for Anthropic, OpenAI, Ollama,
// and Google Gemini plus a retry wrapper and a test mock.
package llm

import (
	"context"
	"fmt"
)

// CompletionRole represents the role of a message in a conversation.
type CompletionRole string

const (
	RoleSystem    CompletionRole = "system"
	RoleUser      CompletionRole = "user"
	RoleAssistant CompletionRole = "assistant"
)

// TemperatureDefault keeps analysis responses focused but not rigid.
const TemperatureDefault = 0.3

// CompletionMessage represents a message in a completion request.
type CompletionMessage struct {
	Content string
	Role    CompletionRole
}

// CompletionRequest represents a request to generate a completion.
type CompletionRequest struct {
	Messages    []CompletionMessage
	MaxTokens   int
	Temperature float32

	// ForceJSON asks the provider for strict JSON output. Providers without
	// a native JSON mode get an explicit instruction appended to the system
	// prompt instead; callers must still validate the response.
	ForceJSON bool
}

// CompletionResponse represents a response from a completion request.
type CompletionResponse struct {
	Content    string
	StopReason string
}

// LLMClient defines the interface for language model interactions.
type LLMClient interface { //nolint:revive // Established name
	Complete(ctx context.Context, in CompletionRequest) (CompletionResponse, error)
	GetModelName() string
}

// NewCompletionRequest creates a completion request with default values.
func NewCompletionRequest(messages []CompletionMessage) CompletionRequest {
	return CompletionRequest{
		Messages:    messages,
		MaxTokens:   4096,
		Temperature: TemperatureDefault,
	}
}

// NewSystemMessage creates a new system message.
func NewSystemMessage(content string) CompletionMessage {
	return CompletionMessage{Role: RoleSystem, Content: content}
}

// NewUserMessage creates a new user message.
func NewUserMessage(content string) CompletionMessage {
	return CompletionMessage{Role: RoleUser, Content: content}
}

// jsonInstruction is appended to the system prompt for providers without a
// native JSON response mode.
const jsonInstruction = "Respond ONLY with a single valid JSON object. No prose, no markdown fences."

// applyJSONInstruction appends the strict-JSON instruction to the system
// message (creating one if absent) when the request demands JSON.
func applyJSONInstruction(in CompletionRequest) CompletionRequest {
	if !in.ForceJSON {
		return in
	}

	messages := make([]CompletionMessage, len(in.Messages))
	copy(messages, in.Messages)

	for i := range messages {
		if messages[i].Role == RoleSystem {
			messages[i].Content = fmt.Sprintf("%s\n\n%s", messages[i].Content, jsonInstruction)
			in.Messages = messages
			return in
		}
	}

	in.Messages = append([]CompletionMessage{NewSystemMessage(jsonInstruction)}, messages...)
	return in
}
