package engines

import (
	"net/url"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/brandlens/brandlens/internal/models"
)

// RawLink is a candidate citation anchor scraped from the answer region
type RawLink struct {
	URL        string
	Text       string
	TitleAttr  string
	AriaLabel  string
	ParentText string
}

// markerPattern matches pure citation markers like [1], (2), -3, 4.
var markerPattern = regexp.MustCompile(`^\s*[\[\(\-]?\s*\d{1,3}\s*[\]\)]?\s*$`)

// IsCitationMarker reports whether the text is just a numbered marker
func IsCitationMarker(s string) bool {
	return markerPattern.MatchString(s)
}

// hostExcluded reports whether the host belongs to the engine itself
func hostExcluded(host string, ownHosts []string) bool {
	host = strings.ToLower(host)
	for _, own := range ownHosts {
		own = strings.ToLower(own)
		if host == own || strings.HasSuffix(host, "."+own) {
			return true
		}
	}
	return false
}

// deriveTitle walks the fallback chain: link text, title attribute,
// aria-label, nearest parent text, finally the host itself. Pure markers
// are skipped at every step.
func deriveTitle(link RawLink, host string) string {
	for _, candidate := range []string{link.Text, link.TitleAttr, link.AriaLabel, link.ParentText} {
		c := strings.TrimSpace(candidate)
		if c != "" && !IsCitationMarker(c) {
			return c
		}
	}
	return host
}

// BuildCitations converts scraped anchors into deduplicated citations.
// Engine-owned hosts are dropped, duplicates keep their first occurrence,
// and positions are the 0-based insertion index.
func BuildCitations(links []RawLink, ownHosts, targetDomains []string) []models.Citation {
	citations := make([]models.Citation, 0, len(links))
	for _, link := range links {
		u, err := url.Parse(strings.TrimSpace(link.URL))
		if err != nil || (u.Scheme != "http" && u.Scheme != "https") {
			continue
		}
		host := strings.ToLower(u.Hostname())
		if host == "" || hostExcluded(host, ownHosts) {
			continue
		}

		c := models.NewCitation(0, link.URL, deriveTitle(link, host))
		c.IsTargetDomain = models.MatchesTargetDomain(host, targetDomains)
		citations = append(citations, c)
	}
	return models.DedupCitations(citations)
}

// ExtractLinksFromHTML pulls candidate anchors out of raw answer HTML. Used
// as a fallback when live-page citation selectors come up empty.
func ExtractLinksFromHTML(html string) []RawLink {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil
	}

	var links []RawLink
	doc.Find("a[href]").Each(func(_ int, sel *goquery.Selection) {
		href, _ := sel.Attr("href")
		if !strings.HasPrefix(href, "http") {
			return
		}
		title, _ := sel.Attr("title")
		aria, _ := sel.Attr("aria-label")
		links = append(links, RawLink{
			URL:        href,
			Text:       strings.TrimSpace(sel.Text()),
			TitleAttr:  title,
			AriaLabel:  aria,
			ParentText: strings.TrimSpace(sel.Parent().Text()),
		})
	})
	return links
}

// chromeNoise lists UI copy that leaks into text extraction when selector
// fallbacks grab too much of the page.
var chromeNoise = []string{
	"Ask anything",
	"Ask me anything",
	"Send a message",
	"Message ChatGPT",
	"有问题，尽管问",
	"给我发送消息",
	"输入你的问题",
}

// CleanResponseText trims extraction noise from an answer block
func CleanResponseText(s string) string {
	lines := strings.Split(s, "\n")
	kept := lines[:0]
	for _, line := range lines {
		trimmed := strings.TrimSpace(line)
		noisy := false
		for _, noise := range chromeNoise {
			if trimmed == noise {
				noisy = true
				break
			}
		}
		if !noisy {
			kept = append(kept, line)
		}
	}
	return strings.TrimSpace(strings.Join(kept, "\n"))
}

// clarificationPhrases flag a short reply that asks for more detail instead
// of answering.
var clarificationPhrases = []string{
	"could you clarify",
	"could you provide more",
	"can you clarify",
	"can you provide more",
	"what specifically",
	"need more information",
	"need more details",
	"which aspect",
	"请问您",
	"能否提供更多",
	"需要更多信息",
	"您想了解哪方面",
	"具体是指",
}

const clarificationMaxLen = 1000

// IsClarificationRequest reports whether the response is a short
// counter-question rather than an answer.
func IsClarificationRequest(text string) bool {
	if len(text) >= clarificationMaxLen {
		return false
	}
	lower := strings.ToLower(text)
	for _, p := range clarificationPhrases {
		if strings.Contains(lower, p) {
			return true
		}
	}
	return false
}

// clarificationFollowUp is sent verbatim when a clarification turn fires
const clarificationFollowUp = "No more information needed. Please answer the original question directly with your best assumptions. 不需要更多信息，请基于合理假设直接回答原问题。"
