package scorer

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/brandlens/brandlens/internal/models"
)

func resultWithCitations(queryID string, citations ...models.Citation) *models.CrawlResult {
	return &models.CrawlResult{
		ID:          "res_" + queryID,
		QueryItemID: queryID,
		Citations:   citations,
		Success:     true,
	}
}

func targetCitation(position int) models.Citation {
	return models.Citation{Position: position, URL: fmt.Sprintf("https://acme.com/p%d", position), Host: "acme.com", IsTargetDomain: true}
}

func otherCitation(position int) models.Citation {
	return models.Citation{Position: position, URL: fmt.Sprintf("https://rival.io/p%d", position), Host: "rival.io"}
}

func TestComputeZeroCitations(t *testing.T) {
	var results []*models.CrawlResult
	for i := 0; i < 5; i++ {
		results = append(results, resultWithCitations(fmt.Sprintf("q%d", i)))
	}

	m := Compute(results)
	assert.Equal(t, 0, m.CitationCount)
	assert.Equal(t, 0, m.TargetCitationCount)
	assert.Equal(t, 0.0, m.VisibilityRate)
	assert.Equal(t, 0.0, m.Top3Rate)
	assert.Equal(t, 0.0, m.CompetitorShare)
	assert.Equal(t, 0, m.HealthScore)
	assert.Equal(t, 0.0, m.HealthRaw)
}

func TestComputeAllTargetTopPositions(t *testing.T) {
	results := []*models.CrawlResult{
		resultWithCitations("q1", targetCitation(0), targetCitation(1), targetCitation(2)),
		resultWithCitations("q2", targetCitation(0), targetCitation(1), targetCitation(2)),
	}

	m := Compute(results)
	assert.Equal(t, 6, m.CitationCount)
	assert.Equal(t, 6, m.TargetCitationCount)
	assert.Equal(t, 1.0, m.VisibilityRate)
	assert.Equal(t, 1.0, m.AvgCitationPosition)
	assert.Equal(t, 1.0, m.Top3Rate)
	assert.Equal(t, 0.0, m.CompetitorShare)
	assert.Equal(t, 0.9, m.PositionScore)
	assert.Equal(t, 97.0, m.HealthRaw)
	assert.Equal(t, 97, m.HealthScore)
}

func TestComputeMixed(t *testing.T) {
	results := []*models.CrawlResult{
		resultWithCitations("q1", targetCitation(0), otherCitation(1), otherCitation(2), otherCitation(3), otherCitation(4)),
		resultWithCitations("q2", targetCitation(0), otherCitation(1), otherCitation(2), otherCitation(3), otherCitation(4)),
		resultWithCitations("q3", otherCitation(0), otherCitation(1), otherCitation(2), otherCitation(3)),
		resultWithCitations("q4", otherCitation(0), otherCitation(1), otherCitation(2), otherCitation(3)),
	}

	m := Compute(results)
	assert.Equal(t, 18, m.CitationCount)
	assert.Equal(t, 2, m.TargetCitationCount)
	assert.Equal(t, 0.5, m.VisibilityRate)
	assert.Equal(t, 0.0, m.AvgCitationPosition)
	assert.Equal(t, 1.0, m.Top3Rate)
	assert.Equal(t, 0.8889, m.CompetitorShare)
	assert.Equal(t, 1.0, m.PositionScore)
	assert.Equal(t, 71.11, m.HealthRaw)
	assert.Equal(t, 71, m.HealthScore)
}

func TestComputeNoTargetCitations(t *testing.T) {
	results := []*models.CrawlResult{
		resultWithCitations("q1", otherCitation(0), otherCitation(1)),
	}

	m := Compute(results)
	assert.Equal(t, 2, m.CitationCount)
	assert.Equal(t, 0, m.TargetCitationCount)
	assert.Equal(t, 0.0, m.AvgCitationPosition)
	assert.Equal(t, 1.0, m.PositionScore, "position score defaults to 1 with no target citations")
	assert.Equal(t, 1.0, m.CompetitorShare)
	// 0*40 + 1*30 + 0*20 + 0*10
	assert.Equal(t, 30, m.HealthScore)
}

func TestComputeFailureRowsCountInDenominator(t *testing.T) {
	results := []*models.CrawlResult{
		resultWithCitations("q1", targetCitation(0)),
		{ID: "res_q2", QueryItemID: "q2", Success: false, Error: "challenge failed"},
	}

	m := Compute(results)
	assert.Equal(t, 0.5, m.VisibilityRate, "failed query still widens the denominator")
}

func TestComputeHealthBounds(t *testing.T) {
	// Health stays within [0, 100] across degenerate inputs
	cases := [][]*models.CrawlResult{
		nil,
		{resultWithCitations("q1")},
		{resultWithCitations("q1", targetCitation(0))},
		{resultWithCitations("q1", targetCitation(50))},
		{resultWithCitations("q1", otherCitation(0))},
	}
	for i, results := range cases {
		m := Compute(results)
		assert.GreaterOrEqual(t, m.HealthScore, 0, "case %d", i)
		assert.LessOrEqual(t, m.HealthScore, 100, "case %d", i)
	}
}

func TestComputeDistantPositionsFloorPositionScore(t *testing.T) {
	results := []*models.CrawlResult{
		resultWithCitations("q1", targetCitation(15)),
	}

	m := Compute(results)
	assert.Equal(t, 15.0, m.AvgCitationPosition)
	assert.Equal(t, 0.0, m.PositionScore, "position score floors at zero")
}

func TestSummaryMapRoundTrip(t *testing.T) {
	results := []*models.CrawlResult{
		resultWithCitations("q1", targetCitation(0), otherCitation(1), otherCitation(2)),
	}

	m := Compute(results)
	summary := m.SummaryMap()

	assert.Equal(t, float64(m.CitationCount), summary[models.MetricCitationCount])
	assert.Equal(t, m.VisibilityRate, summary[models.MetricVisibilityRate])
	assert.Equal(t, m.AvgCitationPosition, summary[models.MetricAvgCitationPosition])
	assert.Equal(t, m.HealthRaw, summary[models.MetricHealthScore])
	assert.Len(t, summary, 8)
}
