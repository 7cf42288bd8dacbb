package llm

import (
	"context"
	"fmt"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"github.com/openai/openai-go/responses"
)

// OpenAIClient wraps the official OpenAI Go client to implement LLMClient.
// Uses the Responses API.
type OpenAIClient struct {
	client openai.Client
	model  string
}

// NewOpenAIClient creates an OpenAI client for the given model.
func NewOpenAIClient(apiKey, model string) LLMClient {
	client := openai.NewClient(option.WithAPIKey(apiKey))
	return &OpenAIClient{
		client: client,
		model:  model,
	}
}

// Complete implements the LLMClient interface.
func (o *OpenAIClient) Complete(ctx context.Context, in CompletionRequest) (CompletionResponse, error) {
	in = applyJSONInstruction(in)

	// The Responses API takes a single input string; flatten the
	// conversation with role markers.
	var inputText string
	for i := range in.Messages {
		msg := &in.Messages[i]
		switch msg.Role {
		case RoleSystem:
			inputText += fmt.Sprintf("System: %s\n\n", msg.Content)
		case RoleAssistant:
			inputText += fmt.Sprintf("Assistant: %s\n\n", msg.Content)
		default:
			inputText += msg.Content + "\n\n"
		}
	}

	params := responses.ResponseNewParams{
		Model:           o.model,
		MaxOutputTokens: openai.Int(int64(in.MaxTokens)),
		Input:           responses.ResponseNewParamsInputUnion{OfString: openai.String(inputText)},
	}

	resp, err := o.client.Responses.New(ctx, params)
	if err != nil {
		return CompletionResponse{}, NewErrorWithCause(ErrorTypeUnknown, err, "OpenAI Responses API failed")
	}
	if resp == nil {
		return CompletionResponse{}, NewError(ErrorTypeEmptyResponse, "empty response from OpenAI Responses API")
	}

	content := resp.OutputText()
	if content == "" {
		return CompletionResponse{}, NewError(ErrorTypeEmptyResponse, "no text output in OpenAI response")
	}

	return CompletionResponse{Content: content, StopReason: "end_turn"}, nil
}

// GetModelName returns the model name for this client.
func (o *OpenAIClient) GetModelName() string {
	return o.model
}
