package badger

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/ternarybob/arbor"
	"github.com/timshannon/badgerhold/v4"

	"github.com/brandlens/brandlens/internal/interfaces"
	"github.com/brandlens/brandlens/internal/models"
)

// RunStorage implements the RunStorage interface for Badger
type RunStorage struct {
	db     *BadgerDB
	logger arbor.ILogger
}

// NewRunStorage creates a new RunStorage instance
func NewRunStorage(db *BadgerDB, logger arbor.ILogger) interfaces.RunStorage {
	return &RunStorage{
		db:     db,
		logger: logger,
	}
}

func (s *RunStorage) SaveRun(ctx context.Context, run *models.Run) error {
	if run.ID == "" {
		return fmt.Errorf("run ID is required")
	}
	if err := s.db.Store().Upsert(run.ID, run); err != nil {
		return fmt.Errorf("failed to save run: %w", err)
	}
	return nil
}

func (s *RunStorage) GetRun(ctx context.Context, runID string) (*models.Run, error) {
	var run models.Run
	if err := s.db.Store().Get(runID, &run); err != nil {
		if err == badgerhold.ErrNotFound {
			return nil, fmt.Errorf("run not found: %s", runID)
		}
		return nil, fmt.Errorf("failed to get run: %w", err)
	}
	return &run, nil
}

func (s *RunStorage) NextRunNumber(ctx context.Context, projectID string) (int, error) {
	var runs []models.Run
	if err := s.db.Store().Find(&runs, badgerhold.Where("ProjectID").Eq(projectID)); err != nil {
		return 0, fmt.Errorf("failed to query runs: %w", err)
	}

	max := 0
	for _, r := range runs {
		if r.RunNumber > max {
			max = r.RunNumber
		}
	}
	return max + 1, nil
}

func (s *RunStorage) RecentCompletedRuns(ctx context.Context, projectID string, limit int) ([]*models.Run, error) {
	var runs []models.Run
	query := badgerhold.Where("ProjectID").Eq(projectID).And("Status").Eq(models.RunStatusCompleted)
	if err := s.db.Store().Find(&runs, query); err != nil {
		return nil, fmt.Errorf("failed to query completed runs: %w", err)
	}

	// Keep only runs with summary metrics, newest first by CompletedAt with
	// run number breaking ties.
	filtered := runs[:0]
	for _, r := range runs {
		if r.SummaryMetrics != nil && r.CompletedAt != nil {
			filtered = append(filtered, r)
		}
	}
	sort.Slice(filtered, func(i, j int) bool {
		if filtered[i].CompletedAt.Equal(*filtered[j].CompletedAt) {
			return filtered[i].RunNumber > filtered[j].RunNumber
		}
		return filtered[i].CompletedAt.After(*filtered[j].CompletedAt)
	})

	if limit > 0 && len(filtered) > limit {
		filtered = filtered[:limit]
	}

	result := make([]*models.Run, len(filtered))
	for i := range filtered {
		r := filtered[i]
		result[i] = &r
	}
	return result, nil
}

func (s *RunStorage) LastCompletedRunAt(ctx context.Context, projectID string) (time.Time, error) {
	runs, err := s.RecentCompletedRuns(ctx, projectID, 1)
	if err != nil {
		return time.Time{}, err
	}
	if len(runs) == 0 || runs[0].CompletedAt == nil {
		return time.Time{}, nil
	}
	return *runs[0].CompletedAt, nil
}
