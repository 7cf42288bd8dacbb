// Package analyzer turns an inbound user message plus project state into a
// structurally valid AnalysisResult. It calls the LLM collaborator with a
// strict JSON contract and recovers from any failure with a deterministic
// keyword heuristic, so the conversation controller always gets a usable
// verdict.
package analyzer

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"metagent/pkg/config"
	"metagent/pkg/llm"
	"metagent/pkg/logx"
	"metagent/pkg/pageintel"
	"metagent/pkg/project"
	"metagent/pkg/proto"
	"metagent/pkg/utils"
)

// RequirementAnalyzer performs per-turn requirement analysis.
type RequirementAnalyzer struct {
	client  llm.LLMClient
	counter *utils.TokenCounter
	cfg     *config.AnalyzerConfig
	logger  *logx.Logger
}

// New creates a RequirementAnalyzer. counter may be nil; token capping then
// falls back to entry-count capping alone.
func New(client llm.LLMClient, counter *utils.TokenCounter, cfg *config.AnalyzerConfig) *RequirementAnalyzer {
	return &RequirementAnalyzer{
		client:  client,
		counter: counter,
		cfg:     cfg,
		logger:  logx.NewLogger("analyzer"),
	}
}

// Analyze never returns an error: LLM transport failures, non-JSON output,
// and incomplete responses all resolve to a deterministic result.
func (a *RequirementAnalyzer) Analyze(ctx context.Context, message string, p *project.Project) proto.AnalysisResult {
	req := llm.CompletionRequest{
		Messages:    a.buildMessages(message, p),
		MaxTokens:   4096,
		Temperature: llm.TemperatureDefault,
		ForceJSON:   true,
	}

	resp, err := a.client.Complete(ctx, req)
	if err != nil {
		a.logger.Warn("LLM completion failed, using fallback: %v", err)
		return Fallback(message)
	}

	result, err := parseResult(resp.Content)
	if err != nil {
		a.logger.Warn("LLM returned unparseable analysis, using fallback: %v", err)
		return Fallback(message)
	}

	// The model cannot be trusted to spot every URL; union with a direct
	// scan of the message.
	result.DetectedURLs = mergeURLs(result.DetectedURLs, DetectURLs(message))
	return result
}

// buildMessages assembles the system prompt plus recent history and the
// current message.
func (a *RequirementAnalyzer) buildMessages(message string, p *project.Project) []llm.CompletionMessage {
	messages := []llm.CompletionMessage{
		llm.NewSystemMessage(a.systemPrompt(p)),
	}

	history := p.RecentHistory(a.cfg.HistoryWindow)
	if a.counter != nil {
		history = a.counter.TrimHistory(history, a.cfg.HistoryTokenLimit)
	}
	for _, entry := range history {
		messages = append(messages, llm.CompletionMessage{
			Role:    llm.CompletionRole(entry.Role),
			Content: entry.Content,
		})
	}

	messages = append(messages, llm.NewUserMessage(message))
	return messages
}

func (a *RequirementAnalyzer) systemPrompt(p *project.Project) string {
	var b strings.Builder

	b.WriteString("You are a web-scraping requirements analyst. Your job is to understand what data the user wants to extract, from where, and in what form.\n\n")

	fmt.Fprintf(&b, "This is exchange %d of %d. By the final exchange you must have enough to propose a concrete extraction schema.\n\n",
		p.ExchangeCount()+1, a.cfg.ExchangeBudget)

	if len(p.TargetURLs) > 0 {
		fmt.Fprintf(&b, "Target URLs so far: %s\n", strings.Join(p.TargetURLs, ", "))
	}
	if digest := pageintel.Digest(p); digest != "" {
		b.WriteString(digest)
		b.WriteString("\n")
	}

	b.WriteString(`
Respond with a JSON object containing exactly these fields:
{
  "stage": one of "link_collection", "conversation_deepening", "requirements_clarification", "technical_details", "project_summary_and_schema",
  "response_message": string, your conversational reply to the user,
  "probing_questions": array of strings, follow-up questions,
  "detected_urls": array of strings, every URL mentioned in the user's message,
  "understanding_level": one of "initial", "getting_deeper", "clarifying", "technical", "complete",
  "insights_gathered": array of strings, new facts learned this turn,
  "next_focus": string, what to probe next,
  "needs_more_info": boolean,
  "confidence": one of "low", "medium", "high"
}`)

	return b.String()
}

// parseResult decodes and normalizes the LLM's JSON. Markdown fences are
// tolerated; anything else malformed is an error.
func parseResult(content string) (proto.AnalysisResult, error) {
	cleaned := stripFences(content)

	var raw struct {
		Stage              string   `json:"stage"`
		ResponseMessage    string   `json:"response_message"`
		ProbingQuestions   []string `json:"probing_questions"`
		DetectedURLs       []string `json:"detected_urls"`
		UnderstandingLevel string   `json:"understanding_level"`
		InsightsGathered   []string `json:"insights_gathered"`
		NextFocus          string   `json:"next_focus"`
		NeedsMoreInfo      bool     `json:"needs_more_info"`
		Confidence         string   `json:"confidence"`
	}
	if err := json.Unmarshal([]byte(cleaned), &raw); err != nil {
		return proto.AnalysisResult{}, fmt.Errorf("invalid analysis JSON: %w", err)
	}

	result := proto.AnalysisResult{
		Stage:              proto.ParseStage(raw.Stage),
		ResponseMessage:    raw.ResponseMessage,
		ProbingQuestions:   raw.ProbingQuestions,
		DetectedURLs:       raw.DetectedURLs,
		UnderstandingLevel: raw.UnderstandingLevel,
		InsightsGathered:   raw.InsightsGathered,
		NextFocus:          raw.NextFocus,
		NeedsMoreInfo:      raw.NeedsMoreInfo,
		Confidence:         raw.Confidence,
	}
	result.FillDefaults()
	return result, nil
}

// stripFences removes a surrounding markdown code fence if present.
func stripFences(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```json")
	s = strings.TrimPrefix(s, "```")
	s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	return strings.TrimSpace(s)
}

func mergeURLs(a, b []string) []string {
	seen := make(map[string]bool, len(a))
	merged := make([]string, 0, len(a)+len(b))
	for _, u := range a {
		if u != "" && !seen[u] {
			seen[u] = true
			merged = append(merged, u)
		}
	}
	for _, u := range b {
		if u != "" && !seen[u] {
			seen[u] = true
			merged = append(merged, u)
		}
	}
	return merged
}
