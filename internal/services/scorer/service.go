package scorer

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/ternarybob/arbor"

	"github.com/brandlens/brandlens/internal/interfaces"
	"github.com/brandlens/brandlens/internal/models"
)

// Metrics is the scorecard derived from one run's evidence
type Metrics struct {
	CitationCount       int
	TargetCitationCount int
	VisibilityRate      float64
	AvgCitationPosition float64
	Top3Rate            float64
	CompetitorShare     float64
	PositionScore       float64
	// HealthRaw keeps two decimals for the summary map; HealthScore is the
	// clamped integer denormalized onto the run.
	HealthRaw   float64
	HealthScore int
}

// Compute derives the scorecard from all results of a run. Failure rows
// still contribute their query IDs to the visibility denominator.
func Compute(results []*models.CrawlResult) Metrics {
	queryIDs := make(map[string]bool)
	targetQueryIDs := make(map[string]bool)

	var all, target int
	var positionSum float64
	var top3 int

	for _, r := range results {
		if r.QueryItemID != "" {
			queryIDs[r.QueryItemID] = true
		}
		for _, c := range r.Citations {
			all++
			if c.IsTargetDomain {
				target++
				positionSum += float64(c.Position)
				if c.Position < 3 {
					top3++
				}
				if r.QueryItemID != "" {
					targetQueryIDs[r.QueryItemID] = true
				}
			}
		}
	}

	m := Metrics{CitationCount: all, TargetCitationCount: target}

	if all == 0 {
		return m
	}

	m.VisibilityRate = round4(float64(len(targetQueryIDs)) / math.Max(float64(len(queryIDs)), 1))
	m.CompetitorShare = round4(float64(all-target) / math.Max(float64(all), 1))

	if target > 0 {
		m.AvgCitationPosition = round2(positionSum / float64(target))
		m.Top3Rate = round4(float64(top3) / float64(target))
		m.PositionScore = round4(math.Max(0, 1-m.AvgCitationPosition/10))
	} else {
		m.PositionScore = 1
	}

	health := m.VisibilityRate*40 + m.PositionScore*30 + m.Top3Rate*20 + (1-m.CompetitorShare)*10
	health = math.Min(100, math.Max(0, health))
	m.HealthRaw = round2(health)
	m.HealthScore = int(math.Round(health))

	return m
}

// SummaryMap renders the metrics as the Run.SummaryMetrics payload
func (m Metrics) SummaryMap() map[string]float64 {
	return map[string]float64{
		models.MetricCitationCount:       float64(m.CitationCount),
		models.MetricTargetCitationCount: float64(m.TargetCitationCount),
		models.MetricVisibilityRate:      m.VisibilityRate,
		models.MetricAvgCitationPosition: m.AvgCitationPosition,
		models.MetricTop3Rate:            m.Top3Rate,
		models.MetricCompetitorShare:     m.CompetitorShare,
		models.MetricPositionScore:       m.PositionScore,
		models.MetricHealthScore:         m.HealthRaw,
	}
}

func round4(v float64) float64 {
	return math.Round(v*10000) / 10000
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}

// Service scores completed runs and publishes the result
type Service struct {
	storage interfaces.StorageManager
	events  interfaces.EventService
	logger  arbor.ILogger
}

// NewService creates the run scorer
func NewService(storage interfaces.StorageManager, events interfaces.EventService, logger arbor.ILogger) *Service {
	return &Service{storage: storage, events: events, logger: logger}
}

// ScoreRun computes and persists the scorecard for a run, marking the run
// completed. Idempotent; rescoring overwrites the previous scorecard.
func (s *Service) ScoreRun(ctx context.Context, runID string) (*models.Run, error) {
	run, err := s.storage.RunStorage().GetRun(ctx, runID)
	if err != nil {
		return nil, fmt.Errorf("failed to load run: %w", err)
	}

	results, err := s.storage.ResultStorage().ListResultsByRun(ctx, runID)
	if err != nil {
		return nil, fmt.Errorf("failed to load run results: %w", err)
	}

	metrics := Compute(results)

	now := time.Now()
	run.SummaryMetrics = metrics.SummaryMap()
	health := metrics.HealthScore
	run.HealthScore = &health
	run.Status = models.RunStatusCompleted
	if run.CompletedAt == nil {
		run.CompletedAt = &now
	}

	if err := s.storage.RunStorage().SaveRun(ctx, run); err != nil {
		return nil, fmt.Errorf("failed to persist scored run: %w", err)
	}

	s.logger.Info().
		Str("run_id", runID).
		Str("project_id", run.ProjectID).
		Int("citations", metrics.CitationCount).
		Int("health_score", metrics.HealthScore).
		Msg("Run scored")

	if s.events != nil {
		_ = s.events.Publish(ctx, interfaces.Event{Type: interfaces.EventRunScored, Payload: run})
	}

	return run, nil
}
