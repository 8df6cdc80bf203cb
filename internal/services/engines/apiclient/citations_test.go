package apiclient

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExtractCitationsUnion(t *testing.T) {
	completion := &Completion{
		Text: "Top picks: https://acme.com/pricing, also see https://guide.example.org/best。",
		CitationURLs: []string{
			"https://acme.com/pricing",
			"https://news.example.com/review",
		},
		SearchResults: []SearchResult{
			{Title: "Buying Guide", URL: "https://guide.example.org/best"},
		},
	}

	citations := ExtractCitations(completion, []string{"acme.com"})
	require.Len(t, citations, 3)

	assert.Equal(t, "https://acme.com/pricing", citations[0].URL)
	assert.True(t, citations[0].IsTargetDomain)
	assert.Equal(t, 0, citations[0].Position)

	assert.Equal(t, "https://news.example.com/review", citations[1].URL)

	assert.Equal(t, "https://guide.example.org/best", citations[2].URL)
	assert.Equal(t, "Buying Guide", citations[2].Title)
}

func TestExtractCitationsFromToolCalls(t *testing.T) {
	completion := &Completion{
		Text: "short answer",
		ToolCallBlobs: []string{
			`{"results":[{"url":"https://found.example.com/a"},{"url":"https://found.example.com/b"}]}`,
		},
	}

	citations := ExtractCitations(completion, nil)
	require.Len(t, citations, 2)
	assert.Equal(t, "https://found.example.com/a", citations[0].URL)
}

func TestExtractCitationsStopsAtCJKPunctuation(t *testing.T) {
	completion := &Completion{
		Text: "推荐 https://acme.com/产品，以及 https://other.cn/页面。",
	}

	citations := ExtractCitations(completion, nil)
	require.Len(t, citations, 2)
	assert.Equal(t, "https://acme.com/产品", citations[0].URL)
	assert.Equal(t, "https://other.cn/页面", citations[1].URL)
}

func TestExtractCitationsEmpty(t *testing.T) {
	assert.Empty(t, ExtractCitations(&Completion{Text: "no links here"}, nil))
}
