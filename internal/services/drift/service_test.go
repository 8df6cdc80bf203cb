package drift

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/brandlens/brandlens/internal/models"
)

func TestEvaluateVisibilityDrop(t *testing.T) {
	event := Evaluate(models.MetricVisibilityRate, 0.80, 0.50)
	require.NotNil(t, event)
	assert.Equal(t, models.DriftTypeDrop, event.DriftType)
	assert.Equal(t, models.DriftSeverityCritical, event.Severity, "|delta| 0.30 is at least twice the 0.10 threshold")
	assert.Equal(t, -37.5, event.ChangePercent)
	assert.Equal(t, 0.80, event.BaselineValue)
	assert.Equal(t, 0.50, event.CurrentValue)
}

func TestEvaluateWarningSeverity(t *testing.T) {
	event := Evaluate(models.MetricVisibilityRate, 0.80, 0.65)
	require.NotNil(t, event)
	assert.Equal(t, models.DriftSeverityWarning, event.Severity)
}

func TestEvaluateBelowThresholdIsNoise(t *testing.T) {
	assert.Nil(t, Evaluate(models.MetricVisibilityRate, 0.80, 0.75))
	assert.Nil(t, Evaluate(models.MetricHealthScore, 80, 72))
	assert.Nil(t, Evaluate(models.MetricAvgCitationPosition, 2.0, 3.5))
}

func TestEvaluatePositionRiseIsWorse(t *testing.T) {
	// Position growing means the brand slid down the citation list
	event := Evaluate(models.MetricAvgCitationPosition, 1.0, 4.0)
	require.NotNil(t, event)
	assert.Equal(t, models.DriftTypeRise, event.DriftType)
	assert.Equal(t, 300.0, event.ChangePercent)

	// A position improvement never drifts
	assert.Nil(t, Evaluate(models.MetricAvgCitationPosition, 4.0, 1.0))
}

func TestEvaluateValueRiseNeverDrifts(t *testing.T) {
	assert.Nil(t, Evaluate(models.MetricVisibilityRate, 0.50, 0.90))
	assert.Nil(t, Evaluate(models.MetricHealthScore, 50, 90))
}

func TestEvaluateZeroBaseline(t *testing.T) {
	event := Evaluate(models.MetricAvgCitationPosition, 0, 5.0)
	require.NotNil(t, event)
	assert.Equal(t, 0.0, event.ChangePercent, "percent is zero when baseline is zero")
}

func TestEvaluateHealthScoreDrop(t *testing.T) {
	event := Evaluate(models.MetricHealthScore, 85, 60)
	require.NotNil(t, event)
	assert.Equal(t, models.DriftTypeDrop, event.DriftType)
	assert.Equal(t, models.DriftSeverityCritical, event.Severity)
	assert.InDelta(t, -29.41, event.ChangePercent, 0.01)
}

func TestEvaluateUnwatchedMetric(t *testing.T) {
	assert.Nil(t, Evaluate(models.MetricCitationCount, 100, 0))
}

func TestEvaluateExactThresholdBoundary(t *testing.T) {
	// Delta must exceed the threshold, equality stays quiet
	assert.Nil(t, Evaluate(models.MetricVisibilityRate, 0.50, 0.40))
	assert.NotNil(t, Evaluate(models.MetricVisibilityRate, 0.50, 0.39))
	assert.Nil(t, Evaluate(models.MetricAvgCitationPosition, 1.0, 3.0))
	assert.NotNil(t, Evaluate(models.MetricAvgCitationPosition, 1.0, 3.01))
}
