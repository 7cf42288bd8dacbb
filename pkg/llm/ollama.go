package llm

import (
	"context"
	"encoding/json"
	"net/http"
	"net/url"
	"strings"

	"github.com/ollama/ollama/api"
)

// OllamaClient wraps the Ollama API client to implement LLMClient.
// Ollama is a local LLM runtime for open-source models.
type OllamaClient struct {
	client *api.Client
	model  string
}

// NewOllamaClient creates an Ollama client.
// hostURL should be the Ollama server URL (e.g. "http://localhost:11434").
func NewOllamaClient(hostURL, model string) LLMClient {
	parsedURL, err := url.Parse(hostURL)
	if err != nil || hostURL == "" {
		parsedURL, _ = url.Parse("http://localhost:11434")
	}

	client := api.NewClient(parsedURL, http.DefaultClient)
	return &OllamaClient{
		client: client,
		model:  model,
	}
}

// Complete implements the LLMClient interface.
func (o *OllamaClient) Complete(ctx context.Context, in CompletionRequest) (CompletionResponse, error) {
	if len(in.Messages) == 0 {
		return CompletionResponse{}, NewError(ErrorTypeBadPrompt, "message list cannot be empty")
	}

	messages := make([]api.Message, 0, len(in.Messages))
	for i := range in.Messages {
		msg := &in.Messages[i]
		messages = append(messages, api.Message{
			Role:    string(msg.Role),
			Content: msg.Content,
		})
	}

	stream := false
	req := &api.ChatRequest{
		Model:    o.model,
		Messages: messages,
		Stream:   &stream,
		Options: map[string]any{
			"temperature": in.Temperature,
			"num_predict": in.MaxTokens,
		},
	}
	if in.ForceJSON {
		req.Format = json.RawMessage(`"json"`)
	}

	var response api.ChatResponse
	err := o.client.Chat(ctx, req, func(resp api.ChatResponse) error {
		response = resp
		return nil
	})
	if err != nil {
		return CompletionResponse{}, classifyOllamaError(err)
	}

	return CompletionResponse{
		Content:    response.Message.Content,
		StopReason: ollamaStopReason(&response),
	}, nil
}

// GetModelName returns the model name for this client.
func (o *OllamaClient) GetModelName() string {
	return o.model
}

func ollamaStopReason(resp *api.ChatResponse) string {
	if !resp.Done {
		return "incomplete"
	}
	switch resp.DoneReason {
	case "stop", "":
		return "end_turn"
	case "length":
		return "max_tokens"
	default:
		return resp.DoneReason
	}
}

func classifyOllamaError(err error) error {
	errStr := err.Error()
	switch {
	case strings.Contains(errStr, "connection refused"):
		return NewError(ErrorTypeTransient, "Ollama server not reachable: %v", err)
	case strings.Contains(errStr, "model") && strings.Contains(errStr, "not found"):
		return NewError(ErrorTypeBadPrompt, "Ollama model not found: %v", err)
	case strings.Contains(errStr, "context canceled"), strings.Contains(errStr, "timeout"):
		return NewError(ErrorTypeTransient, "request interrupted: %v", err)
	default:
		return NewError(ErrorTypeUnknown, "Ollama API error: %v", err)
	}
}
