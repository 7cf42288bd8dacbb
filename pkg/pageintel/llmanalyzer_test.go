package pageintel

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"metagent/pkg/llm"
)

const pageAnalysisResponse = `{
  "page_type": "e-commerce",
  "main_content_type": "product listing",
  "primary_fields": ["price", "title"],
  "secondary_fields": ["rating"],
  "complexity": "low",
  "richness": "rich",
  "insights": ["prices rendered server-side"]
}`

func TestLLMAnalyzerFetchesAndParses(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte("<html><body>products</body></html>"))
	}))
	defer srv.Close()

	client := llm.NewMockClient(pageAnalysisResponse)
	a := NewLLMAnalyzer(client)

	analysis, err := a.Analyze(context.Background(), srv.URL)
	require.NoError(t, err)

	assert.Equal(t, "e-commerce", analysis.PageType)
	assert.Equal(t, []string{"price", "title"}, analysis.PrimaryFields)
	assert.Equal(t, "low", analysis.Complexity)

	// Fetched content was forwarded to the LLM.
	require.Equal(t, 1, client.CallCount())
	assert.Contains(t, client.Requests[0].Messages[1].Content, "products")
}

func TestLLMAnalyzerFencedJSON(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte("ok"))
	}))
	defer srv.Close()

	client := llm.NewMockClient("```json\n" + pageAnalysisResponse + "\n```")
	a := NewLLMAnalyzer(client)

	analysis, err := a.Analyze(context.Background(), srv.URL)
	require.NoError(t, err)
	assert.Equal(t, "e-commerce", analysis.PageType)
}

func TestLLMAnalyzerHTTPErrorStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusForbidden)
	}))
	defer srv.Close()

	a := NewLLMAnalyzer(llm.NewMockClient(pageAnalysisResponse))

	_, err := a.Analyze(context.Background(), srv.URL)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "status 403")
}

func TestLLMAnalyzerGarbageJSON(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte("ok"))
	}))
	defer srv.Close()

	a := NewLLMAnalyzer(llm.NewMockClient("I cannot analyze this page"))

	_, err := a.Analyze(context.Background(), srv.URL)
	assert.Error(t, err)
}
