package generation

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"metagent/pkg/automation"
	"metagent/pkg/chat"
	"metagent/pkg/config"
	"metagent/pkg/proto"
)

func testProfile(settleSeconds int, patterns ...string) *automation.ToolProfile {
	if len(patterns) == 0 {
		patterns = []string{"*.sh"}
	}
	return &automation.ToolProfile{
		Name:                   "cat",
		Binary:                 "cat",
		WarmupSeconds:          1,
		SettleSeconds:          settleSeconds,
		FreshnessWindowSeconds: 120,
		ExecTimeoutSeconds:     1,
		OutputBufferLines:      100,
		ArtifactPatterns:       patterns,
		ExitCommand:            "exit",
	}
}

func factoryFor(profile *automation.ToolProfile, dir string) DriverFactory {
	return func(sink automation.ProgressSink) *automation.Driver {
		return automation.NewDriver(profile, dir, sink, nil)
	}
}

func genConfig(pollSeconds, progressSeconds, ceilingSeconds int) *config.GenerationConfig {
	return &config.GenerationConfig{
		PollIntervalSeconds:     pollSeconds,
		ProgressIntervalSeconds: progressSeconds,
		CeilingSeconds:          ceilingSeconds,
	}
}

func TestGenerateSuccess(t *testing.T) {
	dir := t.TempDir()
	script := filepath.Join(dir, "scraper.sh")
	require.NoError(t, os.WriteFile(script, []byte("echo scraped\n"), 0755))

	transport := chat.NewFake()
	o := NewOrchestrator(factoryFor(testProfile(1), dir), dir, transport, genConfig(1, 1, 30))

	result := o.Generate(context.Background(), 42, "build it")

	assert.Equal(t, OutcomeGenerated, result.Outcome)
	assert.Equal(t, script, result.Artifact)
	assert.NotEmpty(t, transport.Messages, "progress message was sent")
}

func TestGenerateArtifactNotFound(t *testing.T) {
	dir := t.TempDir()
	transport := chat.NewFake()
	o := NewOrchestrator(factoryFor(testProfile(1), dir), dir, transport, genConfig(1, 1, 30))

	result := o.Generate(context.Background(), 42, "build it")
	assert.Equal(t, OutcomeArtifactNotFound, result.Outcome)
	assert.Empty(t, result.Artifact)
}

func TestGenerateStartFailed(t *testing.T) {
	dir := t.TempDir()
	profile := testProfile(1)
	profile.Binary = "/nonexistent/tool"
	transport := chat.NewFake()
	o := NewOrchestrator(factoryFor(profile, dir), dir, transport, genConfig(1, 1, 30))

	result := o.Generate(context.Background(), 42, "build it")
	assert.Equal(t, OutcomeStartFailed, result.Outcome)
}

func TestGenerateCeilingBound(t *testing.T) {
	dir := t.TempDir()
	// Settle far beyond the ceiling so the worker is still running.
	profile := testProfile(60)

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel) // let the abandoned worker wind down quickly

	transport := chat.NewFake()
	o := NewOrchestrator(factoryFor(profile, dir), dir, transport, genConfig(1, 1, 3))

	start := time.Now()
	result := o.Generate(ctx, 42, "build it")
	elapsed := time.Since(start)

	assert.Equal(t, OutcomeTimedOut, result.Outcome)
	// Never blocks longer than ceiling plus one poll interval (plus margin).
	assert.Less(t, elapsed, 5*time.Second)
	assert.GreaterOrEqual(t, elapsed, 3*time.Second)
}

func TestGenerateEmitsProgressEdits(t *testing.T) {
	dir := t.TempDir()
	profile := testProfile(60)

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)

	transport := chat.NewFake()
	o := NewOrchestrator(factoryFor(profile, dir), dir, transport, genConfig(1, 1, 4))

	_ = o.Generate(ctx, 42, "build it")

	var edits int
	for _, m := range transport.Messages {
		if m.Edited {
			edits++
		}
	}
	assert.Greater(t, edits, 0, "expected at least one progress edit before the ceiling")
}

func TestRenderPrompt(t *testing.T) {
	fa := &proto.FinalAnalysis{
		ProjectSummary: proto.ProjectSummary{
			Objective:      "Track product prices",
			TargetWebsites: []string{"https://shop.example/products"},
		},
		DataSchema: proto.DataSchema{
			PrimaryData: []proto.SchemaField{
				{FieldName: "price", DataType: "number", Description: "Product price"},
			},
			SecondaryData: []proto.SchemaField{
				{FieldName: "rating", DataType: "number", Description: "Star rating", Optional: true},
			},
			OutputStructure: "CSV",
		},
		TechnicalRequirements: proto.TechnicalRequirements{
			ScrapingMethod:        "HTTP requests with HTML parsing",
			ComplexityLevel:       "medium",
			SpecialConsiderations: []string{"Respect robots.txt"},
		},
	}

	prompt := RenderPrompt(fa)

	assert.Contains(t, prompt, "Track product prices")
	assert.Contains(t, prompt, "https://shop.example/products")
	assert.Contains(t, prompt, "price (number)")
	assert.Contains(t, prompt, "rating (number, optional)")
	assert.Contains(t, prompt, "CSV")
	assert.Contains(t, prompt, "robots.txt")

	// Identical input renders identical text.
	assert.Equal(t, prompt, RenderPrompt(fa))
}
