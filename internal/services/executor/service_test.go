package executor

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/brandlens/brandlens/internal/common"
	"github.com/brandlens/brandlens/internal/interfaces"
	"github.com/brandlens/brandlens/internal/models"
	"github.com/brandlens/brandlens/internal/services/scorer"
	badgerstore "github.com/brandlens/brandlens/internal/storage/badger"
)

// scriptedAdapter returns canned results keyed by query text
type scriptedAdapter struct {
	engine  models.Engine
	results map[string]*interfaces.AdapterResult
	started chan string
	block   chan struct{}
	mu      sync.Mutex
	calls   []string
}

func (a *scriptedAdapter) Engine() models.Engine { return a.engine }

func (a *scriptedAdapter) Crawl(ctx context.Context, queryText string, opts interfaces.CrawlOptions) *interfaces.AdapterResult {
	a.mu.Lock()
	a.calls = append(a.calls, queryText)
	a.mu.Unlock()

	if a.started != nil {
		a.started <- queryText
	}
	if a.block != nil {
		<-a.block
	}

	if r, ok := a.results[queryText]; ok {
		copied := *r
		copied.QueryText = queryText
		return &copied
	}
	return &interfaces.AdapterResult{QueryText: queryText, Success: true, ResponseText: "a sufficiently long default answer for testing purposes"}
}

type scriptedProvider struct {
	adapter interfaces.EngineAdapter
}

func (p *scriptedProvider) AdapterFor(ctx context.Context, task *models.CrawlTask, project *models.Project) (interfaces.EngineAdapter, error) {
	if p.adapter == nil {
		return nil, fmt.Errorf("no adapter")
	}
	return p.adapter, nil
}

type fixture struct {
	storage  interfaces.StorageManager
	executor *Service
	project  *models.Project
	queries  []*models.QueryItem
}

func newFixture(t *testing.T, adapter interfaces.EngineAdapter) *fixture {
	t.Helper()
	logger := common.GetLogger()

	storage, err := badgerstore.NewManager(logger, &common.BadgerConfig{Path: t.TempDir()})
	require.NoError(t, err)
	t.Cleanup(func() { storage.Close() })

	cfg := &common.CrawlerConfig{
		MaxWorkers:   1,
		RateLimitGap: time.Millisecond,
		MaxTurns:     2,
	}
	runScorer := scorer.NewService(storage, nil, logger)
	exec := NewService(storage, nil, &scriptedProvider{adapter: adapter}, runScorer, cfg, logger)
	exec.retryBase = time.Millisecond

	ctx := context.Background()
	project := &models.Project{
		ID:            common.NewID(),
		WorkspaceID:   "ws_1",
		Name:          "Acme Visibility",
		TargetDomains: []string{"acme.com"},
		Status:        models.ProjectStatusActive,
		CreatedAt:     time.Now(),
	}
	require.NoError(t, storage.ProjectStorage().SaveProject(ctx, project))

	var queries []*models.QueryItem
	for i := 0; i < 3; i++ {
		q := &models.QueryItem{
			ID:        common.NewID(),
			ProjectID: project.ID,
			Text:      fmt.Sprintf("query number %d about project tools", i),
			Position:  i,
			CreatedAt: time.Now(),
		}
		require.NoError(t, storage.ProjectStorage().SaveQueryItem(ctx, q))
		queries = append(queries, q)
	}

	return &fixture{storage: storage, executor: exec, project: project, queries: queries}
}

func (f *fixture) newTask(t *testing.T, runID string) *models.CrawlTask {
	t.Helper()
	task := &models.CrawlTask{
		ID:        common.NewID(),
		ProjectID: f.project.ID,
		RunID:     runID,
		Engine:    models.EngineDeepSeek,
		Status:    models.TaskStatusPending,
		QueryIDs:  []string{f.queries[0].ID, f.queries[1].ID, f.queries[2].ID},
		Total:     3,
		CreatedAt: time.Now(),
	}
	require.NoError(t, f.storage.TaskStorage().SaveTask(context.Background(), task))
	return task
}

func TestExecuteTaskHappyPath(t *testing.T) {
	f := newFixture(t, &scriptedAdapter{engine: models.EngineDeepSeek})
	task := f.newTask(t, "")
	ctx := context.Background()

	require.NoError(t, f.executor.ExecuteTask(ctx, task.ID))

	got, err := f.storage.TaskStorage().GetTask(ctx, task.ID)
	require.NoError(t, err)
	assert.Equal(t, models.TaskStatusCompleted, got.Status)
	assert.Equal(t, 3, got.Successful)
	assert.Equal(t, 0, got.Failed)
	assert.NotNil(t, got.StartedAt)
	assert.NotNil(t, got.CompletedAt)

	results, err := f.storage.ResultStorage().ListResultsByTask(ctx, task.ID)
	require.NoError(t, err)
	require.Len(t, results, 3)
	for i, r := range results {
		assert.Equal(t, i, r.Seq, "results preserve query order")
		assert.Equal(t, task.QueryIDs[i], r.QueryItemID)
		assert.True(t, r.Success)
	}
}

func TestExecuteTaskPersistsFailureRows(t *testing.T) {
	adapter := &scriptedAdapter{engine: models.EngineDeepSeek, results: map[string]*interfaces.AdapterResult{}}
	f := newFixture(t, adapter)
	adapter.results[f.queries[1].Text] = &interfaces.AdapterResult{Success: false, Error: "challenge failed: manual resolution timed out"}
	task := f.newTask(t, "")
	ctx := context.Background()

	require.NoError(t, f.executor.ExecuteTask(ctx, task.ID))

	got, err := f.storage.TaskStorage().GetTask(ctx, task.ID)
	require.NoError(t, err)
	assert.Equal(t, models.TaskStatusCompleted, got.Status, "failures are evidence, not task failure")
	assert.Equal(t, 2, got.Successful)
	assert.Equal(t, 1, got.Failed)

	results, err := f.storage.ResultStorage().ListResultsByTask(ctx, task.ID)
	require.NoError(t, err)
	require.Len(t, results, 3, "failed query still produces a row")
	assert.False(t, results[1].Success)
	assert.Contains(t, results[1].Error, "challenge failed")

	// Challenge failures are not retried within the task
	assert.Len(t, adapter.calls, 3)
}

func TestExecuteTaskMissingQueryItem(t *testing.T) {
	f := newFixture(t, &scriptedAdapter{engine: models.EngineDeepSeek})
	task := &models.CrawlTask{
		ID:        common.NewID(),
		ProjectID: f.project.ID,
		Engine:    models.EngineDeepSeek,
		Status:    models.TaskStatusPending,
		QueryIDs:  []string{f.queries[0].ID, "q_missing"},
		CreatedAt: time.Now(),
	}
	ctx := context.Background()
	require.NoError(t, f.storage.TaskStorage().SaveTask(ctx, task))

	require.NoError(t, f.executor.ExecuteTask(ctx, task.ID))

	results, err := f.storage.ResultStorage().ListResultsByTask(ctx, task.ID)
	require.NoError(t, err)
	require.Len(t, results, 2)
	assert.False(t, results[1].Success)
	assert.Contains(t, results[1].Error, "query item not found")
}

func TestExecuteTaskRetriesTransientFailures(t *testing.T) {
	adapter := &scriptedAdapter{engine: models.EngineDeepSeek, results: map[string]*interfaces.AdapterResult{}}
	f := newFixture(t, adapter)
	adapter.results[f.queries[0].Text] = &interfaces.AdapterResult{Success: false, Error: "navigation failed: context deadline exceeded (timeout)"}
	task := &models.CrawlTask{
		ID:        common.NewID(),
		ProjectID: f.project.ID,
		Engine:    models.EngineDeepSeek,
		Status:    models.TaskStatusPending,
		QueryIDs:  []string{f.queries[0].ID},
		CreatedAt: time.Now(),
	}
	ctx := context.Background()
	require.NoError(t, f.storage.TaskStorage().SaveTask(ctx, task))

	require.NoError(t, f.executor.ExecuteTask(ctx, task.ID))

	// One initial attempt plus retries up to the attempt budget
	assert.Len(t, adapter.calls, 3)
}

func TestExecuteTaskRejectsNonPending(t *testing.T) {
	f := newFixture(t, &scriptedAdapter{engine: models.EngineDeepSeek})
	task := f.newTask(t, "")
	ctx := context.Background()
	require.NoError(t, f.storage.TaskStorage().UpdateTaskStatus(ctx, task.ID, models.TaskStatusCompleted, ""))

	err := f.executor.ExecuteTask(ctx, task.ID)
	assert.Error(t, err)
}

func TestExecuteTaskScoresRunWhenAllTasksTerminal(t *testing.T) {
	adapter := &scriptedAdapter{engine: models.EngineDeepSeek, results: map[string]*interfaces.AdapterResult{}}
	f := newFixture(t, adapter)
	ctx := context.Background()

	run := &models.Run{
		ID:        common.NewID(),
		ProjectID: f.project.ID,
		RunNumber: 1,
		Status:    models.RunStatusRunning,
		CreatedAt: time.Now(),
	}
	require.NoError(t, f.storage.RunStorage().SaveRun(ctx, run))

	adapter.results[f.queries[0].Text] = &interfaces.AdapterResult{
		Success:      true,
		ResponseText: "Acme leads the market according to several sources online today.",
		Citations: []models.Citation{
			{Position: 0, URL: "https://acme.com/a", Host: "acme.com", IsTargetDomain: true},
			{Position: 1, URL: "https://rival.io/b", Host: "rival.io"},
		},
	}

	task := f.newTask(t, run.ID)
	require.NoError(t, f.executor.ExecuteTask(ctx, task.ID))

	scored, err := f.storage.RunStorage().GetRun(ctx, run.ID)
	require.NoError(t, err)
	assert.Equal(t, models.RunStatusCompleted, scored.Status)
	require.NotNil(t, scored.HealthScore)
	require.NotNil(t, scored.SummaryMetrics)
	assert.Equal(t, 2.0, scored.SummaryMetrics[models.MetricCitationCount])
	assert.NotNil(t, scored.CompletedAt)
}

func TestFailedSetupStillScoresRun(t *testing.T) {
	// Provider with no adapter: the task fails before any query runs
	f := newFixture(t, nil)
	ctx := context.Background()

	run := &models.Run{
		ID:        common.NewID(),
		ProjectID: f.project.ID,
		RunNumber: 1,
		Status:    models.RunStatusRunning,
		CreatedAt: time.Now(),
	}
	require.NoError(t, f.storage.RunStorage().SaveRun(ctx, run))

	task := f.newTask(t, run.ID)
	require.Error(t, f.executor.ExecuteTask(ctx, task.ID))

	got, err := f.storage.TaskStorage().GetTask(ctx, task.ID)
	require.NoError(t, err)
	assert.Equal(t, models.TaskStatusFailed, got.Status)

	// The failed task was the run's only task, so the run settles
	scored, err := f.storage.RunStorage().GetRun(ctx, run.ID)
	require.NoError(t, err)
	assert.Equal(t, models.RunStatusCompleted, scored.Status)
	require.NotNil(t, scored.SummaryMetrics)
	assert.Equal(t, 0.0, scored.SummaryMetrics[models.MetricCitationCount])
}

func TestCancelPendingTask(t *testing.T) {
	f := newFixture(t, &scriptedAdapter{engine: models.EngineDeepSeek})
	task := f.newTask(t, "")

	require.NoError(t, f.executor.CancelTask(task.ID))

	got, err := f.storage.TaskStorage().GetTask(context.Background(), task.ID)
	require.NoError(t, err)
	assert.Equal(t, models.TaskStatusCancelled, got.Status)
}

func TestCancelRunningTaskAtQueryBoundary(t *testing.T) {
	adapter := &scriptedAdapter{
		engine:  models.EngineDeepSeek,
		started: make(chan string, 3),
		block:   make(chan struct{}),
	}
	f := newFixture(t, adapter)
	task := f.newTask(t, "")

	done := make(chan error, 1)
	go func() { done <- f.executor.ExecuteTask(context.Background(), task.ID) }()

	// Wait for the first query to be in flight, then cancel
	select {
	case <-adapter.started:
	case <-time.After(5 * time.Second):
		t.Fatal("adapter never started")
	}
	require.NoError(t, f.executor.CancelTask(task.ID))

	// Let the in-flight query finish; the cancel lands at the boundary
	close(adapter.block)

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("executor did not finish")
	}

	ctx := context.Background()
	got, err := f.storage.TaskStorage().GetTask(ctx, task.ID)
	require.NoError(t, err)
	assert.Equal(t, models.TaskStatusCancelled, got.Status)

	results, err := f.storage.ResultStorage().ListResultsByTask(ctx, task.ID)
	require.NoError(t, err)
	assert.Len(t, results, 1, "the in-flight query persists; later queries never start")
}

func TestCancelTerminalTaskFails(t *testing.T) {
	f := newFixture(t, &scriptedAdapter{engine: models.EngineDeepSeek})
	task := f.newTask(t, "")
	ctx := context.Background()
	require.NoError(t, f.storage.TaskStorage().UpdateTaskStatus(ctx, task.ID, models.TaskStatusCompleted, ""))

	assert.Error(t, f.executor.CancelTask(task.ID))
}
