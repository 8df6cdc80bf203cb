package apiclient

import (
	"regexp"
	"strings"

	"github.com/brandlens/brandlens/internal/models"
	"github.com/brandlens/brandlens/internal/services/engines"
)

// urlPattern finds bare URLs in answer text. CJK punctuation terminates a
// match because Chinese engines end sentences right after a link.
var urlPattern = regexp.MustCompile(`https?://[^\s<>"'\)\]\}，。；、！？]+`)

// scanURLs extracts URLs from prose, trimming sentence punctuation that the
// pattern cannot distinguish from path characters.
func scanURLs(text string) []string {
	matches := urlPattern.FindAllString(text, -1)
	for i, m := range matches {
		matches[i] = strings.TrimRight(m, ".,;:!?")
	}
	return matches
}

// ExtractCitations unions the vendor's structured citation fields with a URL
// scan over the answer text, deduplicated by URL in insertion order.
func ExtractCitations(completion *Completion, targetDomains []string) []models.Citation {
	var links []engines.RawLink

	for _, u := range completion.CitationURLs {
		links = append(links, engines.RawLink{URL: u})
	}
	for _, sr := range completion.SearchResults {
		links = append(links, engines.RawLink{URL: sr.URL, Text: sr.Title})
	}
	for _, blob := range completion.ToolCallBlobs {
		for _, u := range scanURLs(blob) {
			links = append(links, engines.RawLink{URL: u})
		}
	}
	for _, u := range scanURLs(completion.Text) {
		links = append(links, engines.RawLink{URL: u})
	}

	return engines.BuildCitations(links, nil, targetDomains)
}
