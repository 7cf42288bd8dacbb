package conversation

import (
	"context"
	"fmt"
	"strings"

	"metagent/pkg/project"
)

const welcomeText = `Hi! I help you turn an idea into a working web scraper.

Tell me what data you want to collect and from where. Paste any URLs you
already have; I'll look at the pages and propose an extraction schema.
After a few exchanges I'll show you a full project summary to confirm.

Commands: /status /stats /reset /help`

const helpText = `Here's how this works:

1. Describe your project and paste the URLs you care about.
2. I analyze the pages and ask a few focused questions.
3. After about three exchanges I propose a data schema and project summary.
4. You confirm, and I drive a code-generation tool to build the scraper.

/status shows where your project stands. /reset starts over from scratch.
/stats shows pipeline totals across all projects.`

// HandleCommand dispatches a slash command. Unknown commands get a gentle
// pointer to /help rather than silence.
func (c *Controller) HandleCommand(ctx context.Context, userID int64, command string) error {
	fields := strings.Fields(command)
	if len(fields) == 0 {
		return nil
	}

	var text string
	switch strings.ToLower(fields[0]) {
	case "/start":
		// Ensure the project exists so the first real message lands in an
		// already-created record.
		_ = c.store.WithProject(userID, func(_ *project.Project) error { return nil })
		text = welcomeText
	case "/help":
		text = helpText
	case "/reset":
		c.store.Reset(userID)
		text = "Project reset. Tell me about the data you want to collect."
	case "/status":
		text = c.statusText(userID)
	case "/stats":
		text = c.statsText(ctx)
	default:
		text = fmt.Sprintf("I don't know %s. Try /help.", fields[0])
	}

	_, err := c.transport.SendText(ctx, userID, text)
	return err
}

func (c *Controller) statusText(userID int64) string {
	var b strings.Builder
	_ = c.store.WithProject(userID, func(p *project.Project) error {
		fmt.Fprintf(&b, "Stage: %s\n", p.Status)
		fmt.Fprintf(&b, "Exchanges: %d\n", p.ExchangeCount())
		fmt.Fprintf(&b, "Target URLs: %d\n", len(p.TargetURLs))
		fmt.Fprintf(&b, "Analyzed pages: %d\n", len(p.PageAnalyses))
		if p.ProjectName != "" {
			fmt.Fprintf(&b, "Project: %s\n", p.ProjectName)
		}
		if p.FinalAnalysis != nil {
			b.WriteString("Summary: ready\n")
		}
		if p.GeneratedArtifact != "" {
			fmt.Fprintf(&b, "Generated scraper: %s\n", p.GeneratedArtifact)
		}
		return nil
	})
	return strings.TrimRight(b.String(), "\n")
}

// statsText reports pipeline-wide totals from the Prometheus query service.
func (c *Controller) statsText(ctx context.Context) string {
	if c.stats == nil {
		return "Pipeline stats need a Prometheus server. Set metrics.prometheus_url in the config."
	}

	pm, err := c.stats.GetPipelineMetrics(ctx)
	if err != nil {
		c.logger.Warn("pipeline stats query failed: %v", err)
		return "Couldn't reach the metrics server right now. Try again in a moment."
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Turns handled: %d\n", pm.Turns)
	fmt.Fprintf(&b, "Fallback turns: %d (%.0f%%)\n", pm.FallbackTurns, pm.FallbackRate*100)
	fmt.Fprintf(&b, "Scrapers generated: %d\n", pm.GeneratedScrapers)
	fmt.Fprintf(&b, "Failed generations: %d", pm.FailedGenerations)
	return b.String()
}
