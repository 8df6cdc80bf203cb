package tasks

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/ternarybob/arbor"

	"github.com/brandlens/brandlens/internal/common"
	"github.com/brandlens/brandlens/internal/interfaces"
	"github.com/brandlens/brandlens/internal/models"
	"github.com/brandlens/brandlens/internal/services/scorer"
)

// CreateTaskRequest carries the arguments for creating a crawl task. Exactly
// one of QueryIDs or RawQueries must be non-empty.
type CreateTaskRequest struct {
	ProjectID       string   `json:"project_id"`
	Engine          string   `json:"engine"`
	QueryIDs        []string `json:"query_ids,omitempty"`
	RawQueries      []string `json:"raw_queries,omitempty"`
	RunID           string   `json:"run_id,omitempty"`
	Region          string   `json:"region,omitempty"`
	Language        string   `json:"language,omitempty"`
	UseProxy        bool     `json:"use_proxy,omitempty"`
	EnableWebSearch bool     `json:"enable_web_search,omitempty"`
}

// Service is the operations facade the API layer calls. It validates caller
// input, materializes queries, and hands tasks to the executor.
type Service struct {
	storage  interfaces.StorageManager
	executor interfaces.ExecutorService
	scorer   *scorer.Service
	events   interfaces.EventService
	logger   arbor.ILogger
}

// NewService creates the task operations facade
func NewService(
	storage interfaces.StorageManager,
	executor interfaces.ExecutorService,
	runScorer *scorer.Service,
	events interfaces.EventService,
	logger arbor.ILogger,
) *Service {
	return &Service{
		storage:  storage,
		executor: executor,
		scorer:   runScorer,
		events:   events,
		logger:   logger,
	}
}

// CreateTask validates the request, materializes raw query strings into
// query items, attaches the task to a run, persists it pending, and enqueues
// it. Bad arguments fail fast with no state change.
func (s *Service) CreateTask(ctx context.Context, req CreateTaskRequest) (string, error) {
	engine := models.Engine(req.Engine)
	if !engine.IsValid() {
		return "", fmt.Errorf("unknown engine: %q", req.Engine)
	}
	if len(req.QueryIDs) == 0 && len(req.RawQueries) == 0 {
		return "", fmt.Errorf("task needs query_ids or raw_queries")
	}
	if len(req.QueryIDs) > 0 && len(req.RawQueries) > 0 {
		return "", fmt.Errorf("query_ids and raw_queries are mutually exclusive")
	}

	project, err := s.storage.ProjectStorage().GetProject(ctx, req.ProjectID)
	if err != nil {
		return "", fmt.Errorf("project not found: %w", err)
	}

	queryIDs := req.QueryIDs
	if len(queryIDs) > 0 {
		// Referenced queries must exist before any state changes
		for _, id := range queryIDs {
			if _, err := s.storage.ProjectStorage().GetQueryItem(ctx, id); err != nil {
				return "", fmt.Errorf("query item not found: %s", id)
			}
		}
	} else {
		queryIDs, err = s.materializeQueries(ctx, project.ID, req.RawQueries)
		if err != nil {
			return "", err
		}
	}

	runID := req.RunID
	if runID == "" {
		run, err := s.createRun(ctx, project.ID)
		if err != nil {
			return "", err
		}
		runID = run.ID
	} else {
		if _, err := s.storage.RunStorage().GetRun(ctx, runID); err != nil {
			return "", fmt.Errorf("run not found: %w", err)
		}
	}

	task := &models.CrawlTask{
		ID:              common.NewID(),
		ProjectID:       project.ID,
		RunID:           runID,
		Engine:          engine,
		Status:          models.TaskStatusPending,
		QueryIDs:        queryIDs,
		Total:           len(queryIDs),
		Region:          req.Region,
		Language:        req.Language,
		UseProxy:        req.UseProxy,
		EnableWebSearch: req.EnableWebSearch,
		CreatedAt:       time.Now(),
	}
	if err := task.Validate(); err != nil {
		return "", err
	}
	if err := s.storage.TaskStorage().SaveTask(ctx, task); err != nil {
		return "", fmt.Errorf("failed to save task: %w", err)
	}

	s.publish(ctx, interfaces.EventTaskCreated, task.ID)
	s.executor.Enqueue(task.ID)

	s.logger.Info().
		Str("task_id", task.ID).
		Str("project_id", project.ID).
		Str("engine", string(engine)).
		Int("queries", len(queryIDs)).
		Msg("Task created")

	return task.ID, nil
}

// materializeQueries persists raw query strings as query items so results
// always reference a stable query ID. Blank strings are rejected up front.
func (s *Service) materializeQueries(ctx context.Context, projectID string, raw []string) ([]string, error) {
	for i, text := range raw {
		if strings.TrimSpace(text) == "" {
			return nil, fmt.Errorf("raw query %d is empty", i)
		}
	}

	ids := make([]string, 0, len(raw))
	for i, text := range raw {
		item := &models.QueryItem{
			ID:        common.NewID(),
			ProjectID: projectID,
			Text:      strings.TrimSpace(text),
			Type:      "informational",
			Position:  i,
			CreatedAt: time.Now(),
		}
		if err := s.storage.ProjectStorage().SaveQueryItem(ctx, item); err != nil {
			return nil, fmt.Errorf("failed to save query item: %w", err)
		}
		ids = append(ids, item.ID)
	}
	return ids, nil
}

func (s *Service) createRun(ctx context.Context, projectID string) (*models.Run, error) {
	number, err := s.storage.RunStorage().NextRunNumber(ctx, projectID)
	if err != nil {
		return nil, fmt.Errorf("failed to allocate run number: %w", err)
	}

	now := time.Now()
	run := &models.Run{
		ID:        common.NewID(),
		ProjectID: projectID,
		RunNumber: number,
		Status:    models.RunStatusRunning,
		StartedAt: &now,
		CreatedAt: now,
	}
	if err := s.storage.RunStorage().SaveRun(ctx, run); err != nil {
		return nil, fmt.Errorf("failed to save run: %w", err)
	}
	return run, nil
}

// GetTask returns the task with its live counters and timestamps
func (s *Service) GetTask(ctx context.Context, taskID string) (*models.CrawlTask, error) {
	return s.storage.TaskStorage().GetTask(ctx, taskID)
}

// CancelTask requests cooperative cancellation
func (s *Service) CancelTask(ctx context.Context, taskID string) error {
	return s.executor.CancelTask(taskID)
}

// RetryTask re-enqueues a terminal task with fresh counters. The previous
// attempt's result rows are deleted so scoring never counts a query twice.
func (s *Service) RetryTask(ctx context.Context, taskID string) error {
	task, err := s.storage.TaskStorage().GetTask(ctx, taskID)
	if err != nil {
		return err
	}
	if !task.Status.IsTerminal() {
		return fmt.Errorf("task %s is %s, only terminal tasks can be retried", taskID, task.Status)
	}

	deleted, err := s.storage.ResultStorage().DeleteResultsByTask(ctx, taskID)
	if err != nil {
		return fmt.Errorf("failed to clear previous results: %w", err)
	}
	if deleted > 0 {
		s.logger.Debug().Str("task_id", taskID).Int("deleted", deleted).Msg("Previous attempt results cleared")
	}

	task.Status = models.TaskStatusPending
	task.Successful = 0
	task.Failed = 0
	task.Error = ""
	task.StartedAt = nil
	task.CompletedAt = nil
	task.LastHeartbeat = nil
	if err := s.storage.TaskStorage().SaveTask(ctx, task); err != nil {
		return fmt.Errorf("failed to reset task: %w", err)
	}

	s.publish(ctx, interfaces.EventTaskCreated, task.ID)
	s.executor.Enqueue(task.ID)

	s.logger.Info().Str("task_id", taskID).Msg("Task re-enqueued for retry")
	return nil
}

// TaskResults returns the task's evidence rows in query order
func (s *Service) TaskResults(ctx context.Context, taskID string) ([]*models.CrawlResult, error) {
	if _, err := s.storage.TaskStorage().GetTask(ctx, taskID); err != nil {
		return nil, err
	}
	return s.storage.ResultStorage().ListResultsByTask(ctx, taskID)
}

// ScoreRun recomputes the scorecard for a run
func (s *Service) ScoreRun(ctx context.Context, runID string) (*models.Run, error) {
	return s.scorer.ScoreRun(ctx, runID)
}

// ProjectDrift returns the project's drift events, newest first
func (s *Service) ProjectDrift(ctx context.Context, projectID string) ([]*models.DriftEvent, error) {
	if _, err := s.storage.ProjectStorage().GetProject(ctx, projectID); err != nil {
		return nil, err
	}
	return s.storage.DriftStorage().ListDriftEvents(ctx, projectID, 100)
}

func (s *Service) publish(ctx context.Context, eventType interfaces.EventType, taskID string) {
	if s.events == nil {
		return
	}
	_ = s.events.Publish(ctx, interfaces.Event{Type: eventType, Payload: map[string]string{"task_id": taskID}})
}
