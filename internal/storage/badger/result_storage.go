package badger

import (
	"context"
	"fmt"
	"sort"

	"github.com/ternarybob/arbor"
	"github.com/timshannon/badgerhold/v4"

	"github.com/brandlens/brandlens/internal/interfaces"
	"github.com/brandlens/brandlens/internal/models"
)

// ResultStorage implements the ResultStorage interface for Badger.
// Rows are immutable once written; the only mutation is wholesale deletion
// when a task retry supersedes its previous attempt.
type ResultStorage struct {
	db     *BadgerDB
	logger arbor.ILogger
}

// NewResultStorage creates a new ResultStorage instance
func NewResultStorage(db *BadgerDB, logger arbor.ILogger) interfaces.ResultStorage {
	return &ResultStorage{
		db:     db,
		logger: logger,
	}
}

func (s *ResultStorage) SaveResult(ctx context.Context, result *models.CrawlResult) error {
	if result.ID == "" {
		return fmt.Errorf("result ID is required")
	}
	if result.TaskID == "" {
		return fmt.Errorf("result task ID is required")
	}
	if err := s.db.Store().Insert(result.ID, result); err != nil {
		return fmt.Errorf("failed to save result: %w", err)
	}
	return nil
}

func (s *ResultStorage) ListResultsByTask(ctx context.Context, taskID string) ([]*models.CrawlResult, error) {
	var results []models.CrawlResult
	if err := s.db.Store().Find(&results, badgerhold.Where("TaskID").Eq(taskID)); err != nil {
		return nil, fmt.Errorf("failed to list results for task: %w", err)
	}

	// Seq preserves the task's query order
	sort.Slice(results, func(i, j int) bool { return results[i].Seq < results[j].Seq })

	out := make([]*models.CrawlResult, len(results))
	for i := range results {
		out[i] = &results[i]
	}
	return out, nil
}

func (s *ResultStorage) ListResultsByRun(ctx context.Context, runID string) ([]*models.CrawlResult, error) {
	var tasks []models.CrawlTask
	if err := s.db.Store().Find(&tasks, badgerhold.Where("RunID").Eq(runID)); err != nil {
		return nil, fmt.Errorf("failed to list tasks for run: %w", err)
	}

	var out []*models.CrawlResult
	for _, t := range tasks {
		results, err := s.ListResultsByTask(ctx, t.ID)
		if err != nil {
			return nil, err
		}
		out = append(out, results...)
	}
	return out, nil
}

func (s *ResultStorage) CountResultsByTask(ctx context.Context, taskID string) (int, error) {
	count, err := s.db.Store().Count(&models.CrawlResult{}, badgerhold.Where("TaskID").Eq(taskID))
	if err != nil {
		return 0, fmt.Errorf("failed to count results: %w", err)
	}
	return int(count), nil
}

func (s *ResultStorage) DeleteResultsByTask(ctx context.Context, taskID string) (int, error) {
	count, err := s.db.Store().Count(&models.CrawlResult{}, badgerhold.Where("TaskID").Eq(taskID))
	if err != nil {
		return 0, fmt.Errorf("failed to count results: %w", err)
	}
	if count == 0 {
		return 0, nil
	}
	if err := s.db.Store().DeleteMatching(&models.CrawlResult{}, badgerhold.Where("TaskID").Eq(taskID)); err != nil {
		return 0, fmt.Errorf("failed to delete results: %w", err)
	}
	return int(count), nil
}
