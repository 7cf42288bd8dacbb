// Package pageintel caches structured page analyses per project and renders
// them into prompt digests and chat-facing summaries.
package pageintel

import (
	"context"
	"fmt"
	"strings"

	"metagent/pkg/logx"
	"metagent/pkg/project"
	"metagent/pkg/proto"
)

// Analyzer is the page-content collaborator: fetches a URL and summarizes
// what data its content exposes.
type Analyzer interface {
	Analyze(ctx context.Context, url string) (*proto.PageAnalysis, error)
}

// maxDigestFields caps how many deduplicated field names feed the LLM prompt.
const maxDigestFields = 8

// Cache wraps an Analyzer with the one-analysis-per-URL-per-project rule.
type Cache struct {
	analyzer Analyzer
	logger   *logx.Logger
}

// NewCache creates a cache over the given analyzer.
func NewCache(analyzer Analyzer) *Cache {
	return &Cache{
		analyzer: analyzer,
		logger:   logx.NewLogger("pageintel"),
	}
}

// GetOrAnalyze returns the stored analysis for url if present; otherwise it
// analyzes once and stores the result on the project. Analysis is a one-time
// cost per URL per project lifetime. The caller renders an error as a soft
// warning, never as a turn failure.
func (c *Cache) GetOrAnalyze(ctx context.Context, url string, p *project.Project) (*proto.PageAnalysis, error) {
	if existing, ok := p.PageAnalyses[url]; ok {
		c.logger.Debug("cache hit for %s", url)
		return existing, nil
	}

	analysis, err := c.analyzer.Analyze(ctx, url)
	if err != nil {
		c.logger.Warn("page analysis failed for %s: %v", url, err)
		return nil, fmt.Errorf("page analysis failed for %s: %w", url, err)
	}

	p.PageAnalyses[url] = analysis
	c.logger.Info("analyzed %s: %s page, %d primary fields", url, analysis.PageType, len(analysis.PrimaryFields))
	return analysis, nil
}

// Digest renders a compact description of all cached analyses for the
// analyzer's system prompt: distinct page types plus up to maxDigestFields
// deduplicated field names.
func Digest(p *project.Project) string {
	if len(p.PageAnalyses) == 0 {
		return ""
	}

	typeSeen := make(map[string]bool)
	var pageTypes []string
	fieldSeen := make(map[string]bool)
	var fields []string

	// Iterate URLs in insertion order so the digest is deterministic.
	for _, url := range p.TargetURLs {
		analysis, ok := p.PageAnalyses[url]
		if !ok {
			continue
		}
		if analysis.PageType != "" && !typeSeen[analysis.PageType] {
			typeSeen[analysis.PageType] = true
			pageTypes = append(pageTypes, analysis.PageType)
		}
		for _, f := range append(append([]string{}, analysis.PrimaryFields...), analysis.SecondaryFields...) {
			if f == "" || fieldSeen[f] {
				continue
			}
			fieldSeen[f] = true
			if len(fields) < maxDigestFields {
				fields = append(fields, f)
			}
		}
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Analyzed pages: %d", len(p.PageAnalyses))
	if len(pageTypes) > 0 {
		fmt.Fprintf(&b, "\nPage types: %s", strings.Join(pageTypes, ", "))
	}
	if len(fields) > 0 {
		fmt.Fprintf(&b, "\nAvailable fields: %s", strings.Join(fields, ", "))
	}
	return b.String()
}

// HumanSummary renders one analysis as a short chat-friendly blurb appended
// to the turn reply after a URL is analyzed.
func HumanSummary(url string, analysis *proto.PageAnalysis) string {
	var b strings.Builder
	fmt.Fprintf(&b, "I looked at %s", url)
	if analysis.PageType != "" {
		fmt.Fprintf(&b, " (%s page)", analysis.PageType)
	}
	b.WriteString(".")

	if len(analysis.PrimaryFields) > 0 {
		shown := analysis.PrimaryFields
		if len(shown) > 5 {
			shown = shown[:5]
		}
		fmt.Fprintf(&b, " Data I can see: %s.", strings.Join(shown, ", "))
	}
	if analysis.Complexity != "" {
		fmt.Fprintf(&b, " Extraction complexity looks %s.", analysis.Complexity)
	}
	return b.String()
}
