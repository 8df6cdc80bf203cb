package interfaces

import (
	"context"
	"time"

	"github.com/brandlens/brandlens/internal/models"
)

// CrawlOptions carries per-query knobs shared by browser and API adapters
type CrawlOptions struct {
	Engine          models.Engine
	Account         string
	WorkspaceID     string
	EnableWebSearch bool
	Language        string
	MaxTurns        int
	Screenshot      bool
}

// AdapterResult is the evidence an adapter extracts for one query. Adapters
// never return errors across the boundary; failures are carried in the result.
type AdapterResult struct {
	Success          bool
	QueryText        string
	ResponseText     string
	Citations        []models.Citation
	ResponseTimeMs   int64
	ScreenshotPath   string
	RawHTML          string
	RequiresLogin    bool
	Error            string
	WebSearchEnabled bool
	Turns            int
}

// EngineAdapter drives a single engine to completion for one query
type EngineAdapter interface {
	// Crawl submits the query and extracts the answer and citations.
	// The returned result is never nil.
	Crawl(ctx context.Context, queryText string, opts CrawlOptions) *AdapterResult
	// Engine returns the engine this adapter speaks to
	Engine() models.Engine
}

// VaultService encrypts and decrypts small JSON secrets at rest
type VaultService interface {
	Store(ctx context.Context, scope models.CredentialScope, engine models.Engine, kind models.CredentialKind, account string, value interface{}, label string, expiresAt *time.Time) (string, error)
	// Reveal decrypts into out; returns vault.ErrNotFound or vault.ErrCorrupt
	Reveal(ctx context.Context, credentialID string, out interface{}) error
	// PickActive decrypts the first active, non-expired match in insertion
	// order into out; found is false when none matches.
	PickActive(ctx context.Context, scope models.CredentialScope, engine models.Engine, kind models.CredentialKind, account string, out interface{}) (found bool, credentialID string, err error)
	MarkUsed(ctx context.Context, credentialID string) error
	MarkFailed(ctx context.Context, credentialID string, message string) error
}

// SessionStore persists per-(engine, account) browser state blobs with a TTL
type SessionStore interface {
	// Load returns nil when absent or older than the TTL
	Load(engine models.Engine, account string) ([]byte, error)
	// Save writes atomically; partial writes are never observable by Load
	Save(engine models.Engine, account string, blob []byte) error
	Clear(engine models.Engine, account string) error
}

// ExecutorService drives crawl tasks to a terminal state
type ExecutorService interface {
	// ExecuteTask runs the task synchronously inside the calling worker
	ExecuteTask(ctx context.Context, taskID string) error
	// Enqueue hands the task to a background worker
	Enqueue(taskID string)
	// CancelTask requests cooperative cancellation at the next query boundary
	CancelTask(taskID string) error
	Start() error
	Stop() error
}

// SchedulerService runs periodic maintenance jobs
type SchedulerService interface {
	Start() error
	Stop() error
	IsRunning() bool
	RegisterJob(name, schedule, description string, handler func() error) error
	TriggerJob(name string) error
	JobNames() []string
}

// Notifier emits typed notification intents on the out-bound channel
type Notifier interface {
	Emit(ctx context.Context, intent *models.NotificationIntent) error
}
