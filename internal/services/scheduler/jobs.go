package scheduler

import (
	"context"
	"fmt"
	"time"

	"github.com/ternarybob/arbor"

	"github.com/brandlens/brandlens/internal/common"
	"github.com/brandlens/brandlens/internal/interfaces"
	"github.com/brandlens/brandlens/internal/models"
	"github.com/brandlens/brandlens/internal/services/drift"
	"github.com/brandlens/brandlens/internal/services/notify"
	"github.com/brandlens/brandlens/internal/services/scorer"
	"github.com/brandlens/brandlens/internal/services/tasks"
)

// expiryReminderDays are the days-before-expiry checkpoints for renewal
// reminders. Zero means the subscription expires today.
var expiryReminderDays = []int{7, 3, 1, 0}

// Jobs holds the periodic maintenance sweeps and their dependencies
type Jobs struct {
	storage interfaces.StorageManager
	tasks   *tasks.Service
	drift   *drift.Service
	scorer  *scorer.Service
	notify  interfaces.Notifier
	config  *common.Config
	logger  arbor.ILogger
}

// NewJobs creates the maintenance job set
func NewJobs(
	storage interfaces.StorageManager,
	taskService *tasks.Service,
	driftService *drift.Service,
	runScorer *scorer.Service,
	notifier interfaces.Notifier,
	config *common.Config,
	logger arbor.ILogger,
) *Jobs {
	return &Jobs{
		storage: storage,
		tasks:   taskService,
		drift:   driftService,
		scorer:  runScorer,
		notify:  notifier,
		config:  config,
		logger:  logger,
	}
}

// RegisterAll registers every maintenance job with the scheduler using the
// configured cron schedules.
func (j *Jobs) RegisterAll(scheduler interfaces.SchedulerService) error {
	cfg := j.config.Scheduler
	entries := []struct {
		name        string
		schedule    string
		description string
		handler     func() error
	}{
		{"auto-checkup", cfg.AutoCheckupSchedule, "Launch checkup tasks for projects past their interval", j.AutoCheckup},
		{"drift-sweep", cfg.DriftSweepSchedule, "Compare recent runs and record metric drift", j.DriftSweep},
		{"usage-reset", cfg.UsageResetSchedule, "Reset monthly usage counters past the reset window", j.UsageReset},
		{"expiry-reminders", cfg.ExpiryReminderSchedule, "Emit renewal reminders for expiring subscriptions", j.ExpiryReminders},
		{"retest-reminders", cfg.RetestReminderSchedule, "Remind projects idle past the retest window", j.RetestReminders},
		{"analytics-cleanup", cfg.CleanupSchedule, "Purge analytics events past retention", j.AnalyticsCleanup},
		{"stale-task-sweep", "*/5 * * * *", "Fail running tasks with stale heartbeats", j.StaleTaskSweep},
	}

	for _, e := range entries {
		if err := scheduler.RegisterJob(e.name, e.schedule, e.description, e.handler); err != nil {
			return fmt.Errorf("failed to register job %s: %w", e.name, err)
		}
	}
	return nil
}

// AutoCheckup launches a checkup task for every active project whose last
// completed run is older than its checkup interval. Projects with no queries
// or no default engine are skipped.
func (j *Jobs) AutoCheckup() error {
	ctx := context.Background()

	projects, err := j.storage.ProjectStorage().ListProjects(ctx, models.ProjectStatusActive)
	if err != nil {
		return fmt.Errorf("failed to list active projects: %w", err)
	}

	launched := 0
	for _, project := range projects {
		intervalDays := project.CheckupIntervalDays
		if intervalDays <= 0 {
			intervalDays = j.config.Scheduler.AutoCheckupIntervalDays
		}

		last, err := j.storage.RunStorage().LastCompletedRunAt(ctx, project.ID)
		if err != nil {
			j.logger.Warn().Err(err).Str("project_id", project.ID).Msg("Failed to read last run time")
			continue
		}
		if !last.IsZero() && time.Since(last) < time.Duration(intervalDays)*24*time.Hour {
			continue
		}

		if !project.DefaultEngine.IsValid() {
			j.logger.Debug().Str("project_id", project.ID).Msg("Project has no default engine, skipping checkup")
			continue
		}

		items, err := j.storage.ProjectStorage().ListQueryItems(ctx, project.ID)
		if err != nil || len(items) == 0 {
			continue
		}
		queryIDs := make([]string, 0, len(items))
		for _, item := range items {
			queryIDs = append(queryIDs, item.ID)
		}

		taskID, err := j.tasks.CreateTask(ctx, tasks.CreateTaskRequest{
			ProjectID: project.ID,
			Engine:    string(project.DefaultEngine),
			QueryIDs:  queryIDs,
		})
		if err != nil {
			j.logger.Warn().Err(err).Str("project_id", project.ID).Msg("Auto-checkup task creation failed")
			continue
		}

		launched++
		j.logger.Info().
			Str("project_id", project.ID).
			Str("task_id", taskID).
			Int("queries", len(queryIDs)).
			Msg("Auto-checkup task launched")
	}

	if launched > 0 {
		j.logger.Info().Int("launched", launched).Msg("Auto-checkup sweep finished")
	}
	return nil
}

// DriftSweep runs drift detection over every active project
func (j *Jobs) DriftSweep() error {
	return j.drift.DetectAll(context.Background())
}

// UsageReset zeroes monthly usage counters for subscriptions whose last
// reset is older than the configured window.
func (j *Jobs) UsageReset() error {
	ctx := context.Background()
	cutoff := time.Now().AddDate(0, 0, -j.config.Scheduler.UsageResetAfterDays)

	due, err := j.storage.SubscriptionStorage().SubscriptionsDueForReset(ctx, cutoff)
	if err != nil {
		return fmt.Errorf("failed to find subscriptions due for reset: %w", err)
	}

	for _, sub := range due {
		sub.MonthlyUsage = 0
		sub.LastResetAt = time.Now()
		if err := j.storage.SubscriptionStorage().SaveSubscription(ctx, sub); err != nil {
			j.logger.Warn().Err(err).Str("workspace_id", sub.WorkspaceID).Msg("Failed to reset usage")
			continue
		}
		j.logger.Debug().Str("workspace_id", sub.WorkspaceID).Msg("Monthly usage reset")
	}

	if len(due) > 0 {
		j.logger.Info().Int("reset", len(due)).Msg("Usage reset sweep finished")
	}
	return nil
}

// ExpiryReminders emits renewal reminders at the fixed days-before-expiry
// checkpoints. Runs daily, so each checkpoint fires once per subscription.
func (j *Jobs) ExpiryReminders() error {
	ctx := context.Background()
	now := time.Now()

	for _, days := range expiryReminderDays {
		day := now.AddDate(0, 0, days)
		subs, err := j.storage.SubscriptionStorage().SubscriptionsExpiringOn(ctx, day)
		if err != nil {
			return fmt.Errorf("failed to find expiring subscriptions: %w", err)
		}

		for _, sub := range subs {
			intent := notify.RenewalReminder(sub.WorkspaceID, days)
			if err := j.notify.Emit(ctx, intent); err != nil {
				j.logger.Warn().Err(err).Str("workspace_id", sub.WorkspaceID).Msg("Failed to emit renewal reminder")
			}
		}
	}
	return nil
}

// RetestReminders reminds projects whose last completed run is exactly the
// retest window old. Day-granular so the daily schedule fires each once.
func (j *Jobs) RetestReminders() error {
	ctx := context.Background()

	projects, err := j.storage.ProjectStorage().ListProjects(ctx, models.ProjectStatusActive)
	if err != nil {
		return fmt.Errorf("failed to list active projects: %w", err)
	}

	for _, project := range projects {
		last, err := j.storage.RunStorage().LastCompletedRunAt(ctx, project.ID)
		if err != nil || last.IsZero() {
			continue
		}

		daysSince := int(time.Since(last).Hours() / 24)
		if daysSince != j.config.Scheduler.RetestAfterDays {
			continue
		}

		intent := notify.RetestReminder(project.WorkspaceID, project.Name, daysSince)
		if err := j.notify.Emit(ctx, intent); err != nil {
			j.logger.Warn().Err(err).Str("project_id", project.ID).Msg("Failed to emit retest reminder")
		}
	}
	return nil
}

// AnalyticsCleanup purges analytics events older than the retention window
func (j *Jobs) AnalyticsCleanup() error {
	ctx := context.Background()
	cutoff := time.Now().AddDate(0, 0, -j.config.Scheduler.EventRetentionDays)

	deleted, err := j.storage.AnalyticsStorage().DeleteEventsOlderThan(ctx, cutoff)
	if err != nil {
		return fmt.Errorf("analytics cleanup failed: %w", err)
	}
	if deleted > 0 {
		j.logger.Info().Int("deleted", deleted).Msg("Analytics events purged")
	}
	return nil
}

// StaleTaskSweep fails running tasks whose heartbeat went quiet, usually a
// worker that died mid-task. Their persisted results remain as evidence.
func (j *Jobs) StaleTaskSweep() error {
	ctx := context.Background()

	threshold := j.config.Crawler.StaleTaskThreshold
	if threshold <= 0 {
		threshold = 10 * time.Minute
	}

	stale, err := j.storage.TaskStorage().StaleRunningTasks(ctx, threshold)
	if err != nil {
		return fmt.Errorf("failed to find stale tasks: %w", err)
	}

	touchedRuns := make(map[string]bool)
	for _, task := range stale {
		reason := fmt.Sprintf("task stale: no heartbeat for %s", threshold)
		if err := j.storage.TaskStorage().UpdateTaskStatus(ctx, task.ID, models.TaskStatusFailed, reason); err != nil {
			j.logger.Warn().Err(err).Str("task_id", task.ID).Msg("Failed to fail stale task")
			continue
		}
		if task.RunID != "" {
			touchedRuns[task.RunID] = true
		}
		j.logger.Warn().
			Str("task_id", task.ID).
			Str("engine", string(task.Engine)).
			Msg("Marked stale task as failed")
	}

	// A failed stale task may have been its run's last open task
	for runID := range touchedRuns {
		j.maybeScoreRun(ctx, runID)
	}
	return nil
}

// maybeScoreRun settles a run once every one of its tasks is terminal
func (j *Jobs) maybeScoreRun(ctx context.Context, runID string) {
	if j.scorer == nil {
		return
	}

	runTasks, err := j.storage.TaskStorage().ListTasksByRun(ctx, runID)
	if err != nil {
		j.logger.Warn().Err(err).Str("run_id", runID).Msg("Failed to check run tasks")
		return
	}
	for _, t := range runTasks {
		if !t.Status.IsTerminal() {
			return
		}
	}

	if _, err := j.scorer.ScoreRun(ctx, runID); err != nil {
		j.logger.Error().Err(err).Str("run_id", runID).Msg("Run scoring failed")
	}
}
