package models

import "time"

// RunStatus represents the lifecycle state of a scoring run
type RunStatus string

const (
	RunStatusPending   RunStatus = "pending"
	RunStatusRunning   RunStatus = "running"
	RunStatusCompleted RunStatus = "completed"
	RunStatusFailed    RunStatus = "failed"
	RunStatusCancelled RunStatus = "cancelled"
)

// Metric names stored in Run.SummaryMetrics and referenced by drift detection
const (
	MetricCitationCount       = "citation_count"
	MetricTargetCitationCount = "target_citation_count"
	MetricVisibilityRate      = "visibility_rate"
	MetricAvgCitationPosition = "avg_citation_position"
	MetricTop3Rate            = "top3_rate"
	MetricCompetitorShare     = "competitor_share"
	MetricPositionScore       = "position_score"
	MetricHealthScore         = "health_score"
)

// Run is a scoring epoch over one or more crawl tasks of a project.
// RunNumber is monotonic per project; (ProjectID, RunNumber) is unique.
type Run struct {
	ID             string             `json:"id" badgerhold:"key"`
	ProjectID      string             `json:"project_id" badgerhold:"index"`
	RunNumber      int                `json:"run_number"`
	Status         RunStatus          `json:"status" badgerhold:"index"`
	StartedAt      *time.Time         `json:"started_at,omitempty"`
	CompletedAt    *time.Time         `json:"completed_at,omitempty"`
	HealthScore    *int               `json:"health_score,omitempty"`
	SummaryMetrics map[string]float64 `json:"summary_metrics,omitempty"`
	CreatedAt      time.Time          `json:"created_at"`
}

// IsTerminal reports whether the run reached a final state
func (s RunStatus) IsTerminal() bool {
	return s == RunStatusCompleted || s == RunStatusFailed || s == RunStatusCancelled
}
