package analyzer

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"metagent/pkg/config"
	"metagent/pkg/llm"
	"metagent/pkg/project"
	"metagent/pkg/proto"
)

func testAnalyzerConfig() *config.AnalyzerConfig {
	return &config.AnalyzerConfig{
		ExchangeBudget:        3,
		HistoryWindow:         8,
		HistoryTokenLimit:     3000,
		MaxURLAnalysesPerTurn: 3,
	}
}

func TestAnalyzeParsesValidJSON(t *testing.T) {
	mock := llm.NewMockClient(`{
		"stage": "requirements_clarification",
		"response_message": "What fields do you need?",
		"probing_questions": ["Which fields?"],
		"detected_urls": [],
		"understanding_level": "clarifying",
		"insights_gathered": ["wants product data"],
		"needs_more_info": true,
		"confidence": "high"
	}`)
	a := New(mock, nil, testAnalyzerConfig())

	result := a.Analyze(context.Background(), "I want product data", project.NewProject(1))

	assert.Equal(t, proto.StageRequirementsClarification, result.Stage)
	assert.Equal(t, "What fields do you need?", result.ResponseMessage)
	assert.Equal(t, "clarifying", result.UnderstandingLevel)
	assert.False(t, result.FallbackUsed)
}

func TestAnalyzeToleratesMarkdownFences(t *testing.T) {
	mock := llm.NewMockClient("```json\n{\"stage\": \"technical_details\", \"response_message\": \"ok\"}\n```")
	a := New(mock, nil, testAnalyzerConfig())

	result := a.Analyze(context.Background(), "hello", project.NewProject(1))
	assert.Equal(t, proto.StageTechnicalDetails, result.Stage)
	assert.False(t, result.FallbackUsed)
}

func TestAnalyzeDefaultsIncompleteResponse(t *testing.T) {
	mock := llm.NewMockClient(`{"stage": "conversation_deepening"}`)
	a := New(mock, nil, testAnalyzerConfig())

	result := a.Analyze(context.Background(), "hello", project.NewProject(1))

	assert.NotEmpty(t, result.ResponseMessage)
	assert.NotNil(t, result.ProbingQuestions)
	assert.NotNil(t, result.DetectedURLs)
	assert.Equal(t, proto.ConfidenceMedium, result.Confidence)
	assert.False(t, result.NeedsMoreInfo)
}

func TestAnalyzeUnknownStageMapsToSafeDefault(t *testing.T) {
	mock := llm.NewMockClient(`{"stage": "creative_brainstorm", "response_message": "hi"}`)
	a := New(mock, nil, testAnalyzerConfig())

	result := a.Analyze(context.Background(), "hello", project.NewProject(1))
	assert.Equal(t, proto.StageConversationDeepening, result.Stage)
}

func TestAnalyzeFallsBackOnTransportError(t *testing.T) {
	mock := llm.NewMockClient()
	mock.Err = llm.NewError(llm.ErrorTypeTransient, "down")
	a := New(mock, nil, testAnalyzerConfig())

	result := a.Analyze(context.Background(), "scrape https://example.com/products please", project.NewProject(1))

	assert.True(t, result.FallbackUsed)
	assert.Equal(t, []string{"https://example.com/products"}, result.DetectedURLs)
	assert.Equal(t, proto.StageConversationDeepening, result.Stage)
}

func TestAnalyzeFallsBackOnGarbageOutput(t *testing.T) {
	mock := llm.NewMockClient("Sure! Here's my thinking about your project...")
	a := New(mock, nil, testAnalyzerConfig())

	result := a.Analyze(context.Background(), "hello", project.NewProject(1))
	assert.True(t, result.FallbackUsed)
	assert.NotEmpty(t, result.ResponseMessage)
}

func TestAnalyzeUnionsURLsFromMessage(t *testing.T) {
	// The model missed the URL; the analyzer still detects it.
	mock := llm.NewMockClient(`{"stage": "conversation_deepening", "response_message": "ok", "detected_urls": []}`)
	a := New(mock, nil, testAnalyzerConfig())

	result := a.Analyze(context.Background(), "check https://example.com/items", project.NewProject(1))
	assert.Equal(t, []string{"https://example.com/items"}, result.DetectedURLs)
}

func TestSystemPromptMentionsExchangeAndDigest(t *testing.T) {
	mock := llm.NewMockClient(`{"stage": "conversation_deepening", "response_message": "ok"}`)
	a := New(mock, nil, testAnalyzerConfig())

	p := project.NewProject(1)
	p.AppendUser("first")
	p.AppendAssistant("reply")
	p.AddURLs([]string{"https://shop.example"})
	p.PageAnalyses["https://shop.example"] = &proto.PageAnalysis{
		PageType:      "e-commerce",
		PrimaryFields: []string{"price", "title"},
	}

	_ = a.Analyze(context.Background(), "next message", p)

	require.Equal(t, 1, mock.CallCount())
	system := mock.Requests[0].Messages[0]
	assert.Equal(t, llm.RoleSystem, system.Role)
	assert.Contains(t, system.Content, "exchange 2 of 3")
	assert.Contains(t, system.Content, "e-commerce")
	assert.Contains(t, system.Content, "price")
}
