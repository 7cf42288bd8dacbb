package analyzer

import (
	"fmt"
	"regexp"
	"strings"

	"metagent/pkg/proto"
)

// urlPattern matches http(s) URLs anywhere in free text.
//
//nolint:gochecknoglobals // Compiled once
var urlPattern = regexp.MustCompile(`https?://[^\s<>"']+`)

// DetectURLs returns all URLs found in the message, in order, deduplicated.
func DetectURLs(message string) []string {
	matches := urlPattern.FindAllString(message, -1)
	seen := make(map[string]bool, len(matches))
	var urls []string
	for _, m := range matches {
		m = strings.TrimRight(m, ".,;:!?)")
		if m != "" && !seen[m] {
			seen[m] = true
			urls = append(urls, m)
		}
	}
	return urls
}

// Fallback is the deterministic heuristic used whenever the LLM is
// unavailable or returns garbage. Identical input always yields an identical
// result.
func Fallback(message string) proto.AnalysisResult {
	if urls := DetectURLs(message); len(urls) > 0 {
		result := proto.AnalysisResult{
			Stage: proto.StageConversationDeepening,
			ResponseMessage: fmt.Sprintf(
				"Got it, I'll work with %s. What specific data do you want to collect from this page?", urls[0]),
			ProbingQuestions: []string{
				"Which fields matter most to you?",
				"How often do you need this data refreshed?",
			},
			DetectedURLs:       urls,
			UnderstandingLevel: proto.UnderstandingGettingDeep,
			FallbackUsed:       true,
		}
		result.FillDefaults()
		return result
	}

	lower := strings.ToLower(message)
	var response string
	switch {
	case containsAny(lower, "scrape", "crawl", "web", "data"):
		response = "Sounds like a web-scraping project. Could you share the URL of the site you want to collect data from?"
	case containsAny(lower, "audio", "voice", "transcribe"):
		response = "I can help with audio workflows too, but my focus here is collecting data from web pages. Is there a site whose audio content or metadata you want to extract?"
	case containsAny(lower, "video", "media", "convert"):
		response = "For media content, the first step is still the source page. Which site hosts the videos or media you're interested in?"
	case containsAny(lower, "file", "storage", "cloud"):
		response = "If the files live behind a web page, I can help extract their links and metadata. What site are they on?"
	case containsAny(lower, "pdf", "document"):
		response = "Documents on web pages are a common target. Share the page that lists the documents you need."
	default:
		response = "Tell me more about your project. What website do you want to collect data from, and what should the result look like?"
	}

	result := proto.AnalysisResult{
		Stage:              proto.StageConversationDeepening,
		ResponseMessage:    response,
		DetectedURLs:       []string{},
		UnderstandingLevel: proto.UnderstandingInitial,
		FallbackUsed:       true,
	}
	result.FillDefaults()
	return result
}

func containsAny(s string, keywords ...string) bool {
	for _, kw := range keywords {
		if strings.Contains(s, kw) {
			return true
		}
	}
	return false
}
