package drift

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/ternarybob/arbor"

	"github.com/brandlens/brandlens/internal/common"
	"github.com/brandlens/brandlens/internal/interfaces"
	"github.com/brandlens/brandlens/internal/models"
	"github.com/brandlens/brandlens/internal/services/notify"
)

// Thresholds is the fixed metric table drift detection watches. A change
// smaller than the threshold is noise.
var Thresholds = map[string]float64{
	models.MetricVisibilityRate:      0.10,
	models.MetricAvgCitationPosition: 2.00,
	models.MetricHealthScore:         10.0,
}

// Evaluate compares one metric between two runs. A nil return means no
// drift. avg_citation_position drifts on a rise; everything else on a drop.
func Evaluate(metricName string, baseline, current float64) *models.DriftEvent {
	threshold, watched := Thresholds[metricName]
	if !watched {
		return nil
	}

	delta := current - baseline

	var driftType models.DriftType
	if metricName == models.MetricAvgCitationPosition {
		if delta <= threshold {
			return nil
		}
		driftType = models.DriftTypeRise
	} else {
		if delta >= -threshold {
			return nil
		}
		driftType = models.DriftTypeDrop
	}

	severity := models.DriftSeverityWarning
	if math.Abs(delta) >= 2*threshold {
		severity = models.DriftSeverityCritical
	}

	pct := 0.0
	if baseline != 0 {
		pct = delta / baseline * 100
	}

	return &models.DriftEvent{
		MetricName:    metricName,
		BaselineValue: baseline,
		CurrentValue:  current,
		ChangePercent: math.Round(pct*100) / 100,
		DriftType:     driftType,
		Severity:      severity,
	}
}

// Service detects drift between consecutive completed runs
type Service struct {
	storage  interfaces.StorageManager
	events   interfaces.EventService
	notifier interfaces.Notifier
	logger   arbor.ILogger
}

// NewService creates the drift detector
func NewService(storage interfaces.StorageManager, events interfaces.EventService, notifier interfaces.Notifier, logger arbor.ILogger) *Service {
	return &Service{storage: storage, events: events, notifier: notifier, logger: logger}
}

// DetectProject compares the two most recent completed runs of a project and
// persists one DriftEvent per drifted metric. Re-running over the same run
// pair is a no-op.
func (s *Service) DetectProject(ctx context.Context, project *models.Project) ([]*models.DriftEvent, error) {
	runs, err := s.storage.RunStorage().RecentCompletedRuns(ctx, project.ID, 2)
	if err != nil {
		return nil, fmt.Errorf("failed to load recent runs: %w", err)
	}
	if len(runs) < 2 {
		return nil, nil
	}

	current, baseline := runs[0], runs[1]

	var emitted []*models.DriftEvent
	for metricName := range Thresholds {
		event := Evaluate(metricName, baseline.SummaryMetrics[metricName], current.SummaryMetrics[metricName])
		if event == nil {
			continue
		}

		exists, err := s.storage.DriftStorage().HasDriftEvent(ctx, current.ID, metricName)
		if err != nil {
			return emitted, err
		}
		if exists {
			continue
		}

		event.ID = common.NewID()
		event.ProjectID = project.ID
		event.BaselineRunID = baseline.ID
		event.CompareRunID = current.ID
		event.DetectedAt = time.Now()

		if err := s.storage.DriftStorage().SaveDriftEvent(ctx, event); err != nil {
			return emitted, fmt.Errorf("failed to persist drift event: %w", err)
		}
		emitted = append(emitted, event)

		s.logger.Warn().
			Str("project_id", project.ID).
			Str("metric", event.MetricName).
			Str("severity", string(event.Severity)).
			Float64("change_percent", event.ChangePercent).
			Msg("Drift detected")

		if s.events != nil {
			_ = s.events.Publish(ctx, interfaces.Event{Type: interfaces.EventDriftDetected, Payload: event})
		}
		if s.notifier != nil {
			_ = s.notifier.Emit(ctx, notify.DriftWarning(project.WorkspaceID, event, project.Name))
		}
	}

	return emitted, nil
}

// DetectAll sweeps every active project
func (s *Service) DetectAll(ctx context.Context) error {
	projects, err := s.storage.ProjectStorage().ListProjects(ctx, models.ProjectStatusActive)
	if err != nil {
		return fmt.Errorf("failed to list active projects: %w", err)
	}

	for _, project := range projects {
		if _, err := s.DetectProject(ctx, project); err != nil {
			s.logger.Warn().Err(err).Str("project_id", project.ID).Msg("Drift detection failed for project")
		}
	}
	return nil
}
