package executor

import (
	"context"
	"fmt"
	"math/rand"
	"sync"
	"time"

	"github.com/ternarybob/arbor"
	"golang.org/x/time/rate"

	"github.com/brandlens/brandlens/internal/common"
	"github.com/brandlens/brandlens/internal/interfaces"
	"github.com/brandlens/brandlens/internal/models"
	"github.com/brandlens/brandlens/internal/services/scorer"
)

const (
	queueCapacity    = 256
	maxQueryAttempts = 3
	retryBaseDelay   = 2 * time.Second
)

// Service drives crawl tasks from pending to a terminal state. One result
// row is written per query attempt, failures included.
type Service struct {
	storage  interfaces.StorageManager
	events   interfaces.EventService
	provider AdapterProvider
	scorer   *scorer.Service
	config   *common.CrawlerConfig
	logger   arbor.ILogger

	queue chan string
	quit  chan struct{}
	wg    sync.WaitGroup

	// activeTasks maps a running task to its cancel function
	activeTasks map[string]context.CancelFunc
	activeMu    sync.Mutex

	// limiters enforce the per-engine minimum gap between queries
	limiters  map[models.Engine]*rate.Limiter
	limiterMu sync.Mutex

	retryBase time.Duration
}

// NewService creates the crawl executor
func NewService(
	storage interfaces.StorageManager,
	events interfaces.EventService,
	provider AdapterProvider,
	runScorer *scorer.Service,
	config *common.CrawlerConfig,
	logger arbor.ILogger,
) *Service {
	return &Service{
		storage:     storage,
		events:      events,
		provider:    provider,
		scorer:      runScorer,
		config:      config,
		logger:      logger,
		queue:       make(chan string, queueCapacity),
		quit:        make(chan struct{}),
		activeTasks: make(map[string]context.CancelFunc),
		limiters:    make(map[models.Engine]*rate.Limiter),
		retryBase:   retryBaseDelay,
	}
}

// Start launches the background workers
func (s *Service) Start() error {
	workers := s.config.MaxWorkers
	if workers < 1 {
		workers = 1
	}
	for i := 0; i < workers; i++ {
		s.wg.Add(1)
		go s.worker(i)
	}
	s.logger.Info().Int("workers", workers).Msg("Crawl executor started")
	return nil
}

// Stop cancels active tasks and drains the workers
func (s *Service) Stop() error {
	close(s.quit)

	s.activeMu.Lock()
	for _, cancel := range s.activeTasks {
		cancel()
	}
	s.activeMu.Unlock()

	s.wg.Wait()
	s.logger.Info().Msg("Crawl executor stopped")
	return nil
}

// Enqueue hands a task to the worker pool
func (s *Service) Enqueue(taskID string) {
	select {
	case s.queue <- taskID:
	default:
		s.logger.Warn().Str("task_id", taskID).Msg("Task queue full, executing inline")
		go func() {
			if err := s.ExecuteTask(context.Background(), taskID); err != nil {
				s.logger.Error().Err(err).Str("task_id", taskID).Msg("Inline task execution failed")
			}
		}()
	}
}

// CancelTask requests cooperative cancellation. Pending tasks flip to
// cancelled immediately; running tasks observe the cancel at the next query
// boundary.
func (s *Service) CancelTask(taskID string) error {
	ctx := context.Background()
	task, err := s.storage.TaskStorage().GetTask(ctx, taskID)
	if err != nil {
		return err
	}

	switch task.Status {
	case models.TaskStatusPending:
		if err := s.storage.TaskStorage().UpdateTaskStatus(ctx, taskID, models.TaskStatusCancelled, "cancelled before start"); err != nil {
			return err
		}
		s.publish(ctx, interfaces.EventTaskCancelled, taskID)
		return nil
	case models.TaskStatusRunning:
		s.activeMu.Lock()
		cancel, ok := s.activeTasks[taskID]
		s.activeMu.Unlock()
		if !ok {
			// Running in storage but not here: a stale row from a dead
			// process. The heartbeat sweep owns that case.
			return fmt.Errorf("task %s is not active in this process", taskID)
		}
		cancel()
		return nil
	default:
		return fmt.Errorf("task %s is already %s", taskID, task.Status)
	}
}

func (s *Service) worker(id int) {
	defer s.wg.Done()
	for {
		select {
		case <-s.quit:
			return
		case taskID := <-s.queue:
			if err := s.ExecuteTask(context.Background(), taskID); err != nil {
				s.logger.Error().Err(err).Str("task_id", taskID).Int("worker", id).Msg("Task execution failed")
			}
		}
	}
}

// ExecuteTask runs the task synchronously: materialize queries, pick a
// transport, crawl each query in order, persist every result.
func (s *Service) ExecuteTask(ctx context.Context, taskID string) error {
	task, err := s.storage.TaskStorage().GetTask(ctx, taskID)
	if err != nil {
		return err
	}
	if task.Status != models.TaskStatusPending {
		return fmt.Errorf("task %s is %s, not pending", taskID, task.Status)
	}

	project, err := s.storage.ProjectStorage().GetProject(ctx, task.ProjectID)
	if err != nil {
		s.failTask(ctx, task, "project not found: "+err.Error())
		return err
	}

	taskCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	s.activeMu.Lock()
	s.activeTasks[taskID] = cancel
	s.activeMu.Unlock()
	defer func() {
		s.activeMu.Lock()
		delete(s.activeTasks, taskID)
		s.activeMu.Unlock()
	}()

	if err := s.storage.TaskStorage().UpdateTaskStatus(ctx, taskID, models.TaskStatusRunning, ""); err != nil {
		return err
	}
	s.publish(ctx, interfaces.EventTaskProgress, taskID)

	adapter, err := s.provider.AdapterFor(taskCtx, task, project)
	if err != nil {
		s.failTask(ctx, task, "no adapter available: "+err.Error())
		return err
	}

	opts := interfaces.CrawlOptions{
		Engine:          task.Engine,
		WorkspaceID:     project.WorkspaceID,
		EnableWebSearch: task.EnableWebSearch,
		Language:        task.Language,
		MaxTurns:        s.config.MaxTurns,
		Screenshot:      s.config.Screenshots,
	}

	successful, failed := 0, 0
	cancelled := false

	for seq, queryID := range task.QueryIDs {
		// Cancellation is observed at query boundaries only; a query in
		// flight always finishes and persists its result.
		if taskCtx.Err() != nil {
			cancelled = true
			break
		}

		s.waitForRateLimit(taskCtx, task.Engine)
		if taskCtx.Err() != nil {
			cancelled = true
			break
		}

		result := s.crawlQuery(taskCtx, adapter, task, queryID, seq, opts)
		if err := s.storage.ResultStorage().SaveResult(ctx, result); err != nil {
			s.logger.Error().Err(err).Str("task_id", taskID).Msg("Failed to persist result")
		}

		if result.Success {
			successful++
		} else {
			failed++
		}
		if err := s.storage.TaskStorage().UpdateTaskCounters(ctx, taskID, successful, failed); err != nil {
			s.logger.Warn().Err(err).Str("task_id", taskID).Msg("Failed to commit counters")
		}
		if err := s.storage.TaskStorage().UpdateTaskHeartbeat(ctx, taskID); err != nil {
			s.logger.Debug().Err(err).Str("task_id", taskID).Msg("Heartbeat update failed")
		}
		s.publish(ctx, interfaces.EventTaskProgress, taskID)
	}

	if cancelled {
		if err := s.storage.TaskStorage().UpdateTaskStatus(ctx, taskID, models.TaskStatusCancelled, "cancelled"); err != nil {
			return err
		}
		s.publish(ctx, interfaces.EventTaskCancelled, taskID)
	} else {
		if err := s.storage.TaskStorage().UpdateTaskStatus(ctx, taskID, models.TaskStatusCompleted, ""); err != nil {
			return err
		}
		s.publish(ctx, interfaces.EventTaskCompleted, taskID)
	}

	s.logger.Info().
		Str("task_id", taskID).
		Str("engine", string(task.Engine)).
		Int("successful", successful).
		Int("failed", failed).
		Bool("cancelled", cancelled).
		Msg("Task finished")

	s.maybeScoreRun(ctx, task.RunID)
	return nil
}

// crawlQuery resolves the query text and runs the adapter, retrying
// transient failures with backoff. The returned row is always persistable.
func (s *Service) crawlQuery(ctx context.Context, adapter interfaces.EngineAdapter, task *models.CrawlTask, queryID string, seq int, opts interfaces.CrawlOptions) *models.CrawlResult {
	row := &models.CrawlResult{
		ID:          common.NewResultID(),
		TaskID:      task.ID,
		QueryItemID: queryID,
		Engine:      task.Engine,
		Seq:         seq,
		CrawledAt:   time.Now(),
	}

	item, err := s.storage.ProjectStorage().GetQueryItem(ctx, queryID)
	if err != nil {
		row.Error = "query item not found: " + queryID
		return row
	}

	var result *interfaces.AdapterResult
	for attempt := 1; attempt <= maxQueryAttempts; attempt++ {
		result = adapter.Crawl(ctx, item.Text, opts)
		if result.Success || !s.shouldRetry(result) || ctx.Err() != nil {
			break
		}
		if attempt == maxQueryAttempts {
			break
		}

		delay := s.backoffDelay(attempt)
		s.logger.Debug().
			Str("task_id", task.ID).
			Str("query_id", queryID).
			Int("attempt", attempt).
			Dur("backoff", delay).
			Msg("Transient failure, retrying query")
		select {
		case <-ctx.Done():
		case <-time.After(delay):
		}
	}

	row.ResponseText = result.ResponseText
	row.Citations = result.Citations
	row.RawHTML = result.RawHTML
	row.ScreenshotPath = result.ScreenshotPath
	row.ResponseTimeMs = result.ResponseTimeMs
	row.Success = result.Success
	row.RequiresLogin = result.RequiresLogin
	row.Error = result.Error
	row.Turns = result.Turns
	row.IsComplete = result.Success
	row.HasCitations = len(result.Citations) > 0
	return row
}

// shouldRetry allows backoff retries for transient failures only. Challenge
// and login walls never retry within the same task.
func (s *Service) shouldRetry(result *interfaces.AdapterResult) bool {
	if result.RequiresLogin {
		return false
	}
	kind := models.ClassifyError(fmt.Errorf("%s", result.Error), 0)
	return kind.Retryable()
}

func (s *Service) backoffDelay(attempt int) time.Duration {
	base := s.retryBase * time.Duration(1<<(attempt-1))
	jitter := time.Duration(rand.Int63n(int64(base / 2)))
	return base + jitter
}

func (s *Service) waitForRateLimit(ctx context.Context, engine models.Engine) {
	s.limiterMu.Lock()
	limiter, ok := s.limiters[engine]
	if !ok {
		gap := s.config.RateLimitGap
		if gap <= 0 {
			gap = 200 * time.Millisecond
		}
		limiter = rate.NewLimiter(rate.Every(gap), 1)
		s.limiters[engine] = limiter
	}
	s.limiterMu.Unlock()

	if err := limiter.Wait(ctx); err != nil && ctx.Err() == nil {
		s.logger.Debug().Err(err).Str("engine", string(engine)).Msg("Rate limiter wait interrupted")
	}
}

// failTask marks the task failed and still settles its run; a setup failure
// may be the run's last outstanding task.
func (s *Service) failTask(ctx context.Context, task *models.CrawlTask, message string) {
	if err := s.storage.TaskStorage().UpdateTaskStatus(ctx, task.ID, models.TaskStatusFailed, message); err != nil {
		s.logger.Error().Err(err).Str("task_id", task.ID).Msg("Failed to mark task failed")
	}
	s.publish(ctx, interfaces.EventTaskFailed, task.ID)
	s.maybeScoreRun(ctx, task.RunID)
}

// maybeScoreRun scores the containing run once every one of its tasks has
// reached a terminal state.
func (s *Service) maybeScoreRun(ctx context.Context, runID string) {
	if runID == "" || s.scorer == nil {
		return
	}

	tasks, err := s.storage.TaskStorage().ListTasksByRun(ctx, runID)
	if err != nil {
		s.logger.Warn().Err(err).Str("run_id", runID).Msg("Failed to check run tasks")
		return
	}
	for _, t := range tasks {
		if !t.Status.IsTerminal() {
			return
		}
	}

	if _, err := s.scorer.ScoreRun(ctx, runID); err != nil {
		s.logger.Error().Err(err).Str("run_id", runID).Msg("Run scoring failed")
	}
}

func (s *Service) publish(ctx context.Context, eventType interfaces.EventType, taskID string) {
	if s.events == nil {
		return
	}
	_ = s.events.Publish(ctx, interfaces.Event{Type: eventType, Payload: map[string]string{"task_id": taskID}})
}
