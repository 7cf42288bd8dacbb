// Package generation bridges the conversation controller and the automation
// driver: it renders the confirmed specification into a tool prompt, runs
// the blocking driver on a worker goroutine, polls under a wall-clock
// ceiling, and reports progress back to the chat transport.
package generation

import (
	"fmt"
	"strings"

	"metagent/pkg/proto"
)

// RenderPrompt turns the final analysis into the single natural-language
// specification handed to the code-generation tool. The text is stored on
// the project at confirmation time and never regenerated, so repeated
// attempts are reproducible from the same specification.
func RenderPrompt(fa *proto.FinalAnalysis) string {
	var b strings.Builder

	b.WriteString("Create a complete, working web scraper with the following specification.\n\n")

	fmt.Fprintf(&b, "Objective: %s\n", fa.ProjectSummary.Objective)
	if len(fa.ProjectSummary.TargetWebsites) > 0 {
		b.WriteString("Target URLs:\n")
		for _, url := range fa.ProjectSummary.TargetWebsites {
			fmt.Fprintf(&b, "  - %s\n", url)
		}
	}

	b.WriteString("\nData to extract:\n")
	for _, f := range fa.DataSchema.PrimaryData {
		fmt.Fprintf(&b, "  - %s (%s): %s\n", f.FieldName, f.DataType, f.Description)
	}
	for _, f := range fa.DataSchema.SecondaryData {
		fmt.Fprintf(&b, "  - %s (%s, optional): %s\n", f.FieldName, f.DataType, f.Description)
	}
	if fa.DataSchema.OutputStructure != "" {
		fmt.Fprintf(&b, "\nOutput format: %s\n", fa.DataSchema.OutputStructure)
	}

	b.WriteString("\nTechnical requirements:\n")
	fmt.Fprintf(&b, "  - Method: %s\n", fa.TechnicalRequirements.ScrapingMethod)
	fmt.Fprintf(&b, "  - Complexity: %s\n", fa.TechnicalRequirements.ComplexityLevel)
	for _, c := range fa.TechnicalRequirements.SpecialConsiderations {
		fmt.Fprintf(&b, "  - %s\n", c)
	}

	b.WriteString("\nWrite the scraper as a single runnable script file in the current directory. Include error handling and polite rate limiting.\n")
	return b.String()
}
