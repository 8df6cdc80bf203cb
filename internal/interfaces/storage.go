package interfaces

import (
	"context"
	"time"

	"github.com/brandlens/brandlens/internal/models"
)

// ProjectStorage persists projects and their query items
type ProjectStorage interface {
	SaveProject(ctx context.Context, project *models.Project) error
	GetProject(ctx context.Context, projectID string) (*models.Project, error)
	ListProjects(ctx context.Context, status models.ProjectStatus) ([]*models.Project, error)
	DeleteProject(ctx context.Context, projectID string) error

	SaveQueryItem(ctx context.Context, item *models.QueryItem) error
	GetQueryItem(ctx context.Context, itemID string) (*models.QueryItem, error)
	ListQueryItems(ctx context.Context, projectID string) ([]*models.QueryItem, error)
}

// RunStorage persists scoring runs
type RunStorage interface {
	SaveRun(ctx context.Context, run *models.Run) error
	GetRun(ctx context.Context, runID string) (*models.Run, error)
	// NextRunNumber returns 1 + max existing run number for the project
	NextRunNumber(ctx context.Context, projectID string) (int, error)
	// RecentCompletedRuns returns completed runs with summary metrics, newest
	// first by CompletedAt (run number breaks ties), up to limit.
	RecentCompletedRuns(ctx context.Context, projectID string, limit int) ([]*models.Run, error)
	// LastCompletedRunAt returns the most recent completion time, zero when none
	LastCompletedRunAt(ctx context.Context, projectID string) (time.Time, error)
}

// TaskStorage persists crawl tasks and their counters
type TaskStorage interface {
	SaveTask(ctx context.Context, task *models.CrawlTask) error
	GetTask(ctx context.Context, taskID string) (*models.CrawlTask, error)
	ListTasksByRun(ctx context.Context, runID string) ([]*models.CrawlTask, error)
	ListTasksByProject(ctx context.Context, projectID string, limit int) ([]*models.CrawlTask, error)
	UpdateTaskStatus(ctx context.Context, taskID string, status models.TaskStatus, errorMsg string) error
	// UpdateTaskCounters commits successful/failed counters after each query
	UpdateTaskCounters(ctx context.Context, taskID string, successful, failed int) error
	UpdateTaskHeartbeat(ctx context.Context, taskID string) error
	// StaleRunningTasks returns running tasks whose heartbeat is older than the threshold
	StaleRunningTasks(ctx context.Context, olderThan time.Duration) ([]*models.CrawlTask, error)
}

// ResultStorage persists per-query evidence bundles
type ResultStorage interface {
	SaveResult(ctx context.Context, result *models.CrawlResult) error
	// ListResultsByTask preserves the order in which results were written
	ListResultsByTask(ctx context.Context, taskID string) ([]*models.CrawlResult, error)
	ListResultsByRun(ctx context.Context, runID string) ([]*models.CrawlResult, error)
	CountResultsByTask(ctx context.Context, taskID string) (int, error)
	// DeleteResultsByTask removes a task's rows when a retry supersedes them
	DeleteResultsByTask(ctx context.Context, taskID string) (int, error)
}

// DriftStorage persists drift events
type DriftStorage interface {
	SaveDriftEvent(ctx context.Context, event *models.DriftEvent) error
	ListDriftEvents(ctx context.Context, projectID string, limit int) ([]*models.DriftEvent, error)
	// HasDriftEvent reports whether an event already exists for the run pair and metric
	HasDriftEvent(ctx context.Context, compareRunID, metricName string) (bool, error)
	AcknowledgeDriftEvent(ctx context.Context, eventID string, at time.Time) error
}

// CredentialStorage persists encrypted credentials
type CredentialStorage interface {
	SaveCredential(ctx context.Context, cred *models.Credential) error
	GetCredential(ctx context.Context, credentialID string) (*models.Credential, error)
	// ListCredentials returns matches in insertion order
	ListCredentials(ctx context.Context, scope models.CredentialScope, engine models.Engine, kind models.CredentialKind) ([]*models.Credential, error)
	DeleteCredential(ctx context.Context, credentialID string) error
}

// SubscriptionStorage persists plan state for scheduler sweeps
type SubscriptionStorage interface {
	SaveSubscription(ctx context.Context, sub *models.Subscription) error
	GetSubscription(ctx context.Context, workspaceID string) (*models.Subscription, error)
	// SubscriptionsDueForReset returns subscriptions whose last reset is older than the cutoff
	SubscriptionsDueForReset(ctx context.Context, olderThan time.Time) ([]*models.Subscription, error)
	// SubscriptionsExpiringOn returns subscriptions expiring on the given day
	SubscriptionsExpiringOn(ctx context.Context, day time.Time) ([]*models.Subscription, error)
}

// AnalyticsStorage persists the append-only usage event log
type AnalyticsStorage interface {
	AppendEvent(ctx context.Context, event *models.AnalyticsEvent) error
	DeleteEventsOlderThan(ctx context.Context, cutoff time.Time) (int, error)
}

// NotificationStorage persists the notification intent outbox
type NotificationStorage interface {
	SaveIntent(ctx context.Context, intent *models.NotificationIntent) error
	ListIntents(ctx context.Context, limit int) ([]*models.NotificationIntent, error)
}

// StorageManager bundles entity storages over a shared connection
type StorageManager interface {
	ProjectStorage() ProjectStorage
	RunStorage() RunStorage
	TaskStorage() TaskStorage
	ResultStorage() ResultStorage
	DriftStorage() DriftStorage
	CredentialStorage() CredentialStorage
	SubscriptionStorage() SubscriptionStorage
	AnalyticsStorage() AnalyticsStorage
	NotificationStorage() NotificationStorage
	Close() error
}
