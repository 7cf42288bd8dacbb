package pageintel

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"metagent/pkg/llm"
	"metagent/pkg/proto"
)

// maxPageBytes bounds how much of a fetched page is handed to the LLM.
const maxPageBytes = 64 * 1024

// LLMAnalyzer fetches a page over HTTP and asks the completion client to
// describe the data it exposes. It satisfies the Analyzer interface.
type LLMAnalyzer struct {
	client     llm.LLMClient
	httpClient *http.Client
}

// NewLLMAnalyzer creates an analyzer over the given completion client.
func NewLLMAnalyzer(client llm.LLMClient) *LLMAnalyzer {
	return &LLMAnalyzer{
		client: client,
		httpClient: &http.Client{
			Timeout: 20 * time.Second,
		},
	}
}

// Analyze fetches the URL and summarizes its extractable data. Any fetch,
// transport, or parse failure is an error; the cache layer renders it as a
// soft warning.
func (a *LLMAnalyzer) Analyze(ctx context.Context, url string) (*proto.PageAnalysis, error) {
	body, err := a.fetch(ctx, url)
	if err != nil {
		return nil, err
	}

	resp, err := a.client.Complete(ctx, llm.CompletionRequest{
		Messages: []llm.CompletionMessage{
			llm.NewSystemMessage(pageAnalysisPrompt),
			llm.NewUserMessage(fmt.Sprintf("URL: %s\n\nPage content:\n%s", url, body)),
		},
		MaxTokens:   2048,
		Temperature: llm.TemperatureDefault,
		ForceJSON:   true,
	})
	if err != nil {
		return nil, fmt.Errorf("page analysis completion failed: %w", err)
	}

	var analysis proto.PageAnalysis
	if err := json.Unmarshal([]byte(stripFences(resp.Content)), &analysis); err != nil {
		return nil, fmt.Errorf("page analysis returned invalid JSON: %w", err)
	}
	return &analysis, nil
}

const pageAnalysisPrompt = `You analyze a web page's content for a scraping project.
Respond with a JSON object of this exact shape:
{
  "page_type": string, e.g. "e-commerce" or "news" or "directory",
  "main_content_type": string,
  "primary_fields": [string], the main data fields visible on the page,
  "secondary_fields": [string], supporting fields,
  "complexity": one of "low", "medium", "high",
  "richness": one of "sparse", "moderate", "rich",
  "insights": [string]
}`

func (a *LLMAnalyzer) fetch(ctx context.Context, url string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return "", fmt.Errorf("invalid URL %s: %w", url, err)
	}
	req.Header.Set("User-Agent", "metagent/1.0")

	resp, err := a.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("failed to fetch %s: %w", url, err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode >= 400 {
		return "", fmt.Errorf("fetch of %s returned status %d", url, resp.StatusCode)
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxPageBytes))
	if err != nil {
		return "", fmt.Errorf("failed to read %s: %w", url, err)
	}
	return string(data), nil
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
