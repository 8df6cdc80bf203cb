package scheduler

import (
	"context"
	"fmt"
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

func TestRegisterAndTriggerJob(t *testing.T) {
	s := NewService(common.GetLogger())

	ran := 0
	require.NoError(t, s.RegisterJob("test-job", "0 * * * *", "counts executions", func() error {
		ran++
		return nil
	}))

	require.NoError(t, s.TriggerJob("test-job"))
	require.NoError(t, s.TriggerJob("test-job"))
	assert.Equal(t, 2, ran)
}

func TestRegisterJobDuplicate(t *testing.T) {
	s := NewService(common.GetLogger())
	noop := func() error { return nil }

	require.NoError(t, s.RegisterJob("dup", "0 * * * *", "", noop))
	assert.Error(t, s.RegisterJob("dup", "0 * * * *", "", noop))
}

func TestRegisterJobBadSchedule(t *testing.T) {
	s := NewService(common.GetLogger())
	assert.Error(t, s.RegisterJob("bad", "not a cron expr", "", func() error { return nil }))
}

func TestTriggerUnknownJob(t *testing.T) {
	s := NewService(common.GetLogger())
	assert.Error(t, s.TriggerJob("ghost"))
}

func TestJobNamesSorted(t *testing.T) {
	s := NewService(common.GetLogger())
	noop := func() error { return nil }

	require.NoError(t, s.RegisterJob("zeta", "0 * * * *", "", noop))
	require.NoError(t, s.RegisterJob("alpha", "0 * * * *", "", noop))
	require.NoError(t, s.RegisterJob("mid", "0 * * * *", "", noop))

	assert.Equal(t, []string{"alpha", "mid", "zeta"}, s.JobNames())
}

func TestTriggerJobSurvivesPanic(t *testing.T) {
	s := NewService(common.GetLogger())
	require.NoError(t, s.RegisterJob("panicky", "0 * * * *", "", func() error {
		panic("boom")
	}))

	require.NoError(t, s.TriggerJob("panicky"))
	// Registry stays usable after a panicking handler
	require.NoError(t, s.TriggerJob("panicky"))
}

func TestStartStop(t *testing.T) {
	s := NewService(common.GetLogger())
	assert.False(t, s.IsRunning())

	require.NoError(t, s.Start())
	assert.True(t, s.IsRunning())
	assert.Error(t, s.Start(), "double start is refused")

	require.NoError(t, s.Stop())
	assert.False(t, s.IsRunning())
	require.NoError(t, s.Stop(), "stop is idempotent")
}

// recordingNotifier captures emitted intents
type recordingNotifier struct {
	intents []*models.NotificationIntent
}

func (n *recordingNotifier) Emit(ctx context.Context, intent *models.NotificationIntent) error {
	n.intents = append(n.intents, intent)
	return nil
}

func newJobsFixture(t *testing.T) (*Jobs, interfaces.StorageManager, *recordingNotifier) {
	t.Helper()
	logger := common.GetLogger()

	storage, err := badgerstore.NewManager(logger, &common.BadgerConfig{Path: t.TempDir()})
	require.NoError(t, err)
	t.Cleanup(func() { storage.Close() })

	config := common.NewDefaultConfig()
	notifier := &recordingNotifier{}
	runScorer := scorer.NewService(storage, nil, logger)
	jobs := NewJobs(storage, nil, nil, runScorer, notifier, config, logger)
	return jobs, storage, notifier
}

func TestUsageResetSweep(t *testing.T) {
	jobs, storage, _ := newJobsFixture(t)
	ctx := context.Background()

	stale := &models.Subscription{
		ID:           common.NewID(),
		WorkspaceID:  "ws_stale",
		Plan:         "pro",
		MonthlyUsage: 42,
		MonthlyQuota: 100,
		LastResetAt:  time.Now().AddDate(0, 0, -30),
		CreatedAt:    time.Now(),
	}
	fresh := &models.Subscription{
		ID:           common.NewID(),
		WorkspaceID:  "ws_fresh",
		Plan:         "pro",
		MonthlyUsage: 7,
		MonthlyQuota: 100,
		LastResetAt:  time.Now().AddDate(0, 0, -3),
		CreatedAt:    time.Now(),
	}
	require.NoError(t, storage.SubscriptionStorage().SaveSubscription(ctx, stale))
	require.NoError(t, storage.SubscriptionStorage().SaveSubscription(ctx, fresh))

	require.NoError(t, jobs.UsageReset())

	got, err := storage.SubscriptionStorage().GetSubscription(ctx, "ws_stale")
	require.NoError(t, err)
	assert.Zero(t, got.MonthlyUsage)
	assert.WithinDuration(t, time.Now(), got.LastResetAt, time.Minute)

	got, err = storage.SubscriptionStorage().GetSubscription(ctx, "ws_fresh")
	require.NoError(t, err)
	assert.Equal(t, 7, got.MonthlyUsage, "recently reset subscription untouched")
}

func TestExpiryReminders(t *testing.T) {
	jobs, storage, notifier := newJobsFixture(t)
	ctx := context.Background()

	in3 := time.Now().AddDate(0, 0, 3)
	today := time.Now()
	in30 := time.Now().AddDate(0, 0, 30)

	for i, exp := range []time.Time{in3, today, in30} {
		e := exp
		sub := &models.Subscription{
			ID:          common.NewID(),
			WorkspaceID: fmt.Sprintf("ws_%d", i),
			Plan:        "pro",
			LastResetAt: time.Now(),
			ExpiresAt:   &e,
			CreatedAt:   time.Now(),
		}
		require.NoError(t, storage.SubscriptionStorage().SaveSubscription(ctx, sub))
	}

	require.NoError(t, jobs.ExpiryReminders())

	require.Len(t, notifier.intents, 2, "only the 3-day and today checkpoints fire")
	for _, intent := range notifier.intents {
		assert.Equal(t, models.IntentRenewalReminder, intent.Type)
	}
}

func TestStaleTaskSweep(t *testing.T) {
	jobs, storage, _ := newJobsFixture(t)
	ctx := context.Background()

	old := time.Now().Add(-time.Hour)
	staleTask := &models.CrawlTask{
		ID:            common.NewID(),
		ProjectID:     "p_1",
		Engine:        models.EngineDeepSeek,
		Status:        models.TaskStatusRunning,
		QueryIDs:      []string{"q_1"},
		LastHeartbeat: &old,
		CreatedAt:     time.Now(),
	}
	now := time.Now()
	liveTask := &models.CrawlTask{
		ID:            common.NewID(),
		ProjectID:     "p_1",
		Engine:        models.EngineDeepSeek,
		Status:        models.TaskStatusRunning,
		QueryIDs:      []string{"q_2"},
		LastHeartbeat: &now,
		CreatedAt:     time.Now(),
	}
	require.NoError(t, storage.TaskStorage().SaveTask(ctx, staleTask))
	require.NoError(t, storage.TaskStorage().SaveTask(ctx, liveTask))

	require.NoError(t, jobs.StaleTaskSweep())

	got, err := storage.TaskStorage().GetTask(ctx, staleTask.ID)
	require.NoError(t, err)
	assert.Equal(t, models.TaskStatusFailed, got.Status)
	assert.Contains(t, got.Error, "no heartbeat")

	got, err = storage.TaskStorage().GetTask(ctx, liveTask.ID)
	require.NoError(t, err)
	assert.Equal(t, models.TaskStatusRunning, got.Status)
}

func TestStaleTaskSweepSettlesRun(t *testing.T) {
	jobs, storage, _ := newJobsFixture(t)
	ctx := context.Background()

	run := &models.Run{
		ID:        common.NewID(),
		ProjectID: "p_1",
		RunNumber: 1,
		Status:    models.RunStatusRunning,
		CreatedAt: time.Now(),
	}
	require.NoError(t, storage.RunStorage().SaveRun(ctx, run))

	old := time.Now().Add(-time.Hour)
	task := &models.CrawlTask{
		ID:            common.NewID(),
		ProjectID:     "p_1",
		RunID:         run.ID,
		Engine:        models.EngineDeepSeek,
		Status:        models.TaskStatusRunning,
		QueryIDs:      []string{"q_1"},
		LastHeartbeat: &old,
		CreatedAt:     time.Now(),
	}
	require.NoError(t, storage.TaskStorage().SaveTask(ctx, task))

	require.NoError(t, jobs.StaleTaskSweep())

	// The stale task was the run's last open task, so the run is scored
	got, err := storage.RunStorage().GetRun(ctx, run.ID)
	require.NoError(t, err)
	assert.Equal(t, models.RunStatusCompleted, got.Status)
	require.NotNil(t, got.SummaryMetrics)
}

func TestAnalyticsCleanup(t *testing.T) {
	jobs, storage, _ := newJobsFixture(t)
	ctx := context.Background()

	oldEvent := &models.AnalyticsEvent{
		ID:          common.NewID(),
		WorkspaceID: "ws_1",
		Name:        "task_created",
		CreatedAt:   time.Now().AddDate(0, 0, -120),
	}
	recentEvent := &models.AnalyticsEvent{
		ID:          common.NewID(),
		WorkspaceID: "ws_1",
		Name:        "task_created",
		CreatedAt:   time.Now().AddDate(0, 0, -5),
	}
	require.NoError(t, storage.AnalyticsStorage().AppendEvent(ctx, oldEvent))
	require.NoError(t, storage.AnalyticsStorage().AppendEvent(ctx, recentEvent))

	require.NoError(t, jobs.AnalyticsCleanup())

	deleted, err := storage.AnalyticsStorage().DeleteEventsOlderThan(ctx, time.Now())
	require.NoError(t, err)
	assert.Equal(t, 1, deleted, "only the recent event survived the sweep")
}

func TestRegisterAllJobs(t *testing.T) {
	jobs, _, _ := newJobsFixture(t)
	s := NewService(common.GetLogger())

	require.NoError(t, jobs.RegisterAll(s))
	assert.Equal(t, []string{
		"analytics-cleanup",
		"auto-checkup",
		"drift-sweep",
		"expiry-reminders",
		"retest-reminders",
		"stale-task-sweep",
		"usage-reset",
	}, s.JobNames())
}
