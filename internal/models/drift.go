package models

import "time"

// DriftType classifies the direction of a metric change
type DriftType string

const (
	DriftTypeDrop DriftType = "drop"
	DriftTypeRise DriftType = "rise"
)

// DriftSeverity grades how far past the threshold a change landed
type DriftSeverity string

const (
	DriftSeverityWarning  DriftSeverity = "warning"
	DriftSeverityCritical DriftSeverity = "critical"
)

// DriftEvent records a significant metric change between two consecutive
// completed runs of a project.
type DriftEvent struct {
	ID            string        `json:"id" badgerhold:"key"`
	ProjectID     string        `json:"project_id" badgerhold:"index"`
	BaselineRunID string        `json:"baseline_run_id"`
	CompareRunID  string        `json:"compare_run_id"`
	MetricName    string        `json:"metric_name"`
	BaselineValue float64       `json:"baseline_value"`
	CurrentValue  float64       `json:"current_value"`
	ChangePercent float64       `json:"change_percent"`
	DriftType     DriftType     `json:"drift_type"`
	Severity      DriftSeverity `json:"severity"`
	DetectedAt    time.Time     `json:"detected_at"`
	AcknowledgedAt *time.Time   `json:"acknowledged_at,omitempty"`
}
