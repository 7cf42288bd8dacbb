package analyzer

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"metagent/pkg/llm"
	"metagent/pkg/pageintel"
	"metagent/pkg/project"
	"metagent/pkg/proto"
)

// GenerateSummary produces the terminal structured specification for the
// summary stage. Like Analyze it never fails: if the LLM cannot deliver a
// valid payload, a deterministic summary is built from the cached page
// analyses.
func (a *RequirementAnalyzer) GenerateSummary(ctx context.Context, p *project.Project) *proto.FinalAnalysis {
	req := llm.CompletionRequest{
		Messages:    a.buildSummaryMessages(p),
		MaxTokens:   4096,
		Temperature: llm.TemperatureDefault,
		ForceJSON:   true,
	}

	resp, err := a.client.Complete(ctx, req)
	if err != nil {
		a.logger.Warn("summary completion failed, using deterministic summary: %v", err)
		return FallbackSummary(p)
	}

	var fa proto.FinalAnalysis
	if err := json.Unmarshal([]byte(stripFences(resp.Content)), &fa); err != nil {
		a.logger.Warn("summary JSON unparseable, using deterministic summary: %v", err)
		return FallbackSummary(p)
	}
	normalizeSummary(&fa, p)
	return &fa
}

func (a *RequirementAnalyzer) buildSummaryMessages(p *project.Project) []llm.CompletionMessage {
	var b strings.Builder
	b.WriteString("You are finalizing a web-scraping project specification. Produce the complete structured summary now; do not ask further questions.\n\n")

	if len(p.TargetURLs) > 0 {
		fmt.Fprintf(&b, "Target URLs: %s\n", strings.Join(p.TargetURLs, ", "))
	}
	if digest := pageintel.Digest(p); digest != "" {
		b.WriteString(digest)
		b.WriteString("\n")
	}

	b.WriteString(`
Respond with a JSON object of this exact shape:
{
  "project_summary": {"name": string, "objective": string, "target_websites": [string], "use_case": string, "frequency": string},
  "data_schema": {
    "primary_data": [{"field_name": string, "data_type": string, "description": string, "optional": boolean}],
    "secondary_data": [{"field_name": string, "data_type": string, "description": string, "optional": boolean}],
    "output_structure": string
  },
  "technical_requirements": {"scraping_method": string, "complexity_level": string, "special_considerations": [string], "estimated_setup_time": string},
  "next_steps": [string],
  "final_question": string
}
Prefer field names observed on the analyzed pages.`)

	messages := []llm.CompletionMessage{llm.NewSystemMessage(b.String())}
	for _, entry := range p.RecentHistory(a.cfg.HistoryWindow) {
		messages = append(messages, llm.CompletionMessage{
			Role:    llm.CompletionRole(entry.Role),
			Content: entry.Content,
		})
	}
	messages = append(messages, llm.NewUserMessage("Produce the final project summary and data schema now."))
	return messages
}

// normalizeSummary back-fills anything the LLM left blank so the payload is
// always complete.
func normalizeSummary(fa *proto.FinalAnalysis, p *project.Project) {
	fallback := FallbackSummary(p)

	if fa.ProjectSummary.Name == "" {
		fa.ProjectSummary.Name = fallback.ProjectSummary.Name
	}
	if len(fa.ProjectSummary.TargetWebsites) == 0 {
		fa.ProjectSummary.TargetWebsites = fallback.ProjectSummary.TargetWebsites
	}
	if len(fa.DataSchema.PrimaryData) == 0 {
		fa.DataSchema.PrimaryData = fallback.DataSchema.PrimaryData
	}
	if fa.DataSchema.OutputStructure == "" {
		fa.DataSchema.OutputStructure = fallback.DataSchema.OutputStructure
	}
	if fa.TechnicalRequirements.ScrapingMethod == "" {
		fa.TechnicalRequirements = fallback.TechnicalRequirements
	}
	if len(fa.NextSteps) == 0 {
		fa.NextSteps = fallback.NextSteps
	}
	if fa.FinalQuestion == "" {
		fa.FinalQuestion = fallback.FinalQuestion
	}
}

// FallbackSummary builds a deterministic final analysis from the project's
// cached page analyses alone.
func FallbackSummary(p *project.Project) *proto.FinalAnalysis {
	name := p.ProjectName
	if name == "" {
		name = "Web data collection project"
	}

	var primary, secondary []proto.SchemaField
	primarySeen := make(map[string]bool)
	secondarySeen := make(map[string]bool)
	highComplexity := false

	for _, url := range p.TargetURLs {
		analysis, ok := p.PageAnalyses[url]
		if !ok {
			continue
		}
		if analysis.Complexity == "high" {
			highComplexity = true
		}
		for _, f := range analysis.PrimaryFields {
			if f == "" || primarySeen[f] {
				continue
			}
			primarySeen[f] = true
			primary = append(primary, proto.SchemaField{
				FieldName:   f,
				DataType:    "string",
				Description: "Observed on the analyzed pages",
			})
		}
		for _, f := range analysis.SecondaryFields {
			if f == "" || primarySeen[f] || secondarySeen[f] {
				continue
			}
			secondarySeen[f] = true
			secondary = append(secondary, proto.SchemaField{
				FieldName:   f,
				DataType:    "string",
				Description: "Observed on the analyzed pages",
				Optional:    true,
			})
		}
	}

	method := "HTTP requests with HTML parsing"
	complexity := "medium"
	setupTime := "1-2 hours"
	if highComplexity {
		method = "browser automation (pages require dynamic rendering)"
		complexity = "high"
		setupTime = "2-4 hours"
	}

	return &proto.FinalAnalysis{
		ProjectSummary: proto.ProjectSummary{
			Name:           name,
			Objective:      "Collect structured data from the target pages",
			TargetWebsites: append([]string{}, p.TargetURLs...),
			UseCase:        "data collection",
			Frequency:      "on demand",
		},
		DataSchema: proto.DataSchema{
			PrimaryData:     primary,
			SecondaryData:   secondary,
			OutputStructure: "One record per page item, exported as CSV/JSON",
		},
		TechnicalRequirements: proto.TechnicalRequirements{
			ScrapingMethod:        method,
			ComplexityLevel:       complexity,
			SpecialConsiderations: []string{"Respect robots.txt and rate limits"},
			EstimatedSetupTime:    setupTime,
		},
		NextSteps: []string{
			"Confirm the schema",
			"Generate the scraper",
			"Run a test extraction",
		},
		FinalQuestion: "Does this summary match what you need? Confirm and I'll generate the scraper.",
	}
}

// RenderSummaryMessage formats a final analysis as the chat reply shown at
// the summary stage.
func RenderSummaryMessage(fa *proto.FinalAnalysis) string {
	var b strings.Builder

	fmt.Fprintf(&b, "Project summary: %s\n", fa.ProjectSummary.Name)
	fmt.Fprintf(&b, "Objective: %s\n", fa.ProjectSummary.Objective)
	if len(fa.ProjectSummary.TargetWebsites) > 0 {
		fmt.Fprintf(&b, "Targets: %s\n", strings.Join(fa.ProjectSummary.TargetWebsites, ", "))
	}

	b.WriteString("\nData schema:\n")
	for _, f := range fa.DataSchema.PrimaryData {
		fmt.Fprintf(&b, "  - %s (%s): %s\n", f.FieldName, f.DataType, f.Description)
	}
	for _, f := range fa.DataSchema.SecondaryData {
		fmt.Fprintf(&b, "  - %s (%s, optional): %s\n", f.FieldName, f.DataType, f.Description)
	}
	fmt.Fprintf(&b, "Output: %s\n", fa.DataSchema.OutputStructure)

	fmt.Fprintf(&b, "\nApproach: %s (complexity: %s, setup: %s)\n",
		fa.TechnicalRequirements.ScrapingMethod,
		fa.TechnicalRequirements.ComplexityLevel,
		fa.TechnicalRequirements.EstimatedSetupTime)

	if fa.FinalQuestion != "" {
		b.WriteString("\n")
		b.WriteString(fa.FinalQuestion)
	}
	return b.String()
}
