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

// TaskStorage implements the TaskStorage interface for Badger
type TaskStorage struct {
	db     *BadgerDB
	logger arbor.ILogger
}

// NewTaskStorage creates a new TaskStorage instance
func NewTaskStorage(db *BadgerDB, logger arbor.ILogger) interfaces.TaskStorage {
	return &TaskStorage{
		db:     db,
		logger: logger,
	}
}

func (s *TaskStorage) SaveTask(ctx context.Context, task *models.CrawlTask) error {
	if err := task.Validate(); err != nil {
		return err
	}
	if err := s.db.Store().Upsert(task.ID, task); err != nil {
		return fmt.Errorf("failed to save task: %w", err)
	}
	return nil
}

func (s *TaskStorage) GetTask(ctx context.Context, taskID string) (*models.CrawlTask, error) {
	var task models.CrawlTask
	if err := s.db.Store().Get(taskID, &task); err != nil {
		if err == badgerhold.ErrNotFound {
			return nil, fmt.Errorf("task not found: %s", taskID)
		}
		return nil, fmt.Errorf("failed to get task: %w", err)
	}
	return &task, nil
}

func (s *TaskStorage) ListTasksByRun(ctx context.Context, runID string) ([]*models.CrawlTask, error) {
	var tasks []models.CrawlTask
	if err := s.db.Store().Find(&tasks, badgerhold.Where("RunID").Eq(runID)); err != nil {
		return nil, fmt.Errorf("failed to list tasks for run: %w", err)
	}
	sort.Slice(tasks, func(i, j int) bool { return tasks[i].CreatedAt.Before(tasks[j].CreatedAt) })

	result := make([]*models.CrawlTask, len(tasks))
	for i := range tasks {
		result[i] = &tasks[i]
	}
	return result, nil
}

func (s *TaskStorage) ListTasksByProject(ctx context.Context, projectID string, limit int) ([]*models.CrawlTask, error) {
	var tasks []models.CrawlTask
	if err := s.db.Store().Find(&tasks, badgerhold.Where("ProjectID").Eq(projectID)); err != nil {
		return nil, fmt.Errorf("failed to list tasks for project: %w", err)
	}
	sort.Slice(tasks, func(i, j int) bool { return tasks[i].CreatedAt.After(tasks[j].CreatedAt) })
	if limit > 0 && len(tasks) > limit {
		tasks = tasks[:limit]
	}

	result := make([]*models.CrawlTask, len(tasks))
	for i := range tasks {
		result[i] = &tasks[i]
	}
	return result, nil
}

func (s *TaskStorage) UpdateTaskStatus(ctx context.Context, taskID string, status models.TaskStatus, errorMsg string) error {
	var task models.CrawlTask
	if err := s.db.Store().Get(taskID, &task); err != nil {
		return fmt.Errorf("failed to load task: %w", err)
	}

	task.Status = status
	if errorMsg != "" {
		task.Error = errorMsg
	}

	now := time.Now()
	if status == models.TaskStatusRunning {
		task.StartedAt = &now
	} else if status.IsTerminal() {
		task.CompletedAt = &now
	}

	return s.SaveTask(ctx, &task)
}

func (s *TaskStorage) UpdateTaskCounters(ctx context.Context, taskID string, successful, failed int) error {
	var task models.CrawlTask
	if err := s.db.Store().Get(taskID, &task); err != nil {
		return fmt.Errorf("failed to load task: %w", err)
	}

	task.Successful = successful
	task.Failed = failed

	return s.SaveTask(ctx, &task)
}

func (s *TaskStorage) UpdateTaskHeartbeat(ctx context.Context, taskID string) error {
	var task models.CrawlTask
	if err := s.db.Store().Get(taskID, &task); err != nil {
		return fmt.Errorf("failed to load task: %w", err)
	}
	now := time.Now()
	task.LastHeartbeat = &now
	return s.SaveTask(ctx, &task)
}

func (s *TaskStorage) StaleRunningTasks(ctx context.Context, olderThan time.Duration) ([]*models.CrawlTask, error) {
	threshold := time.Now().Add(-olderThan)
	var tasks []models.CrawlTask
	err := s.db.Store().Find(&tasks, badgerhold.Where("Status").Eq(models.TaskStatusRunning).And("LastHeartbeat").Lt(threshold))
	if err != nil {
		return nil, fmt.Errorf("failed to query stale tasks: %w", err)
	}

	result := make([]*models.CrawlTask, len(tasks))
	for i := range tasks {
		result[i] = &tasks[i]
	}
	return result, nil
}
