package app

import (
	"fmt"
	"os"

	"github.com/ternarybob/arbor"

	"github.com/brandlens/brandlens/internal/common"
	"github.com/brandlens/brandlens/internal/interfaces"
	"github.com/brandlens/brandlens/internal/server"
	"github.com/brandlens/brandlens/internal/services/challenge"
	"github.com/brandlens/brandlens/internal/services/drift"
	"github.com/brandlens/brandlens/internal/services/engines"
	"github.com/brandlens/brandlens/internal/services/events"
	"github.com/brandlens/brandlens/internal/services/executor"
	"github.com/brandlens/brandlens/internal/services/export"
	"github.com/brandlens/brandlens/internal/services/notify"
	"github.com/brandlens/brandlens/internal/services/scheduler"
	"github.com/brandlens/brandlens/internal/services/scorer"
	"github.com/brandlens/brandlens/internal/services/session"
	"github.com/brandlens/brandlens/internal/services/tasks"
	"github.com/brandlens/brandlens/internal/services/vault"
	badgerstore "github.com/brandlens/brandlens/internal/storage/badger"
)

// App holds all application components and dependencies
type App struct {
	Config *common.Config
	Logger arbor.ILogger

	StorageManager interfaces.StorageManager
	EventService   interfaces.EventService

	VaultService     interfaces.VaultService
	SessionStore     interfaces.SessionStore
	ChallengeHandler *challenge.Handler
	BrowserFactory   *engines.BrowserFactory

	ExecutorService  *executor.Service
	ScorerService    *scorer.Service
	NotifyService    *notify.Service
	DriftService     *drift.Service
	TaskService      *tasks.Service
	ExportService    *export.Service
	SchedulerService interfaces.SchedulerService

	WSHandler *server.WebSocketHandler
}

// New initializes the application with all dependencies
func New(cfg *common.Config, logger arbor.ILogger) (*App, error) {
	app := &App{
		Config: cfg,
		Logger: logger,
	}

	if err := app.initStorage(); err != nil {
		return nil, fmt.Errorf("failed to initialize storage: %w", err)
	}

	app.EventService = events.NewService(logger)
	app.WSHandler = server.NewWebSocketHandler(app.EventService, logger, &cfg.WebSocket)

	if err := app.initServices(); err != nil {
		return nil, fmt.Errorf("failed to initialize services: %w", err)
	}

	logger.Info().
		Bool("api_mode", cfg.Crawler.APIModeEnabled).
		Bool("scheduler", cfg.Scheduler.Enabled).
		Msg("Application initialization complete")

	return app, nil
}

func (a *App) initStorage() error {
	for _, dir := range []string{
		a.Config.Storage.Filesystem.Sessions,
		a.Config.Storage.Filesystem.Screenshots,
		a.Config.Storage.Filesystem.Exports,
	} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("failed to create directory %s: %w", dir, err)
		}
	}

	storageManager, err := badgerstore.NewManager(a.Logger, &a.Config.Storage.Badger)
	if err != nil {
		return fmt.Errorf("failed to create storage manager: %w", err)
	}
	a.StorageManager = storageManager

	a.Logger.Debug().
		Str("storage", "badger").
		Str("path", a.Config.Storage.Badger.Path).
		Msg("Storage layer initialized")
	return nil
}

func (a *App) initServices() error {
	vaultService, err := vault.NewService(a.StorageManager.CredentialStorage(), &a.Config.Auth, a.Logger)
	if err != nil {
		return fmt.Errorf("failed to create credential vault: %w", err)
	}
	a.VaultService = vaultService

	sessionStore, err := session.NewStore(a.Config.Storage.Filesystem.Sessions, a.Config.SessionTTL(), a.Logger)
	if err != nil {
		return fmt.Errorf("failed to create session store: %w", err)
	}
	a.SessionStore = sessionStore

	a.ChallengeHandler = challenge.NewHandler(&a.Config.Captcha, a.Config.Storage.Filesystem.Screenshots, a.Logger)
	a.BrowserFactory = engines.NewBrowserFactory(&a.Config.Browser, a.Logger)

	a.ScorerService = scorer.NewService(a.StorageManager, a.EventService, a.Logger)
	a.NotifyService = notify.NewService(a.StorageManager.NotificationStorage(), a.EventService, a.Logger)
	a.DriftService = drift.NewService(a.StorageManager, a.EventService, a.NotifyService, a.Logger)
	a.ExportService = export.NewService(a.StorageManager, a.Config.Storage.Filesystem.Exports, a.Logger)

	provider := executor.NewAdapterProvider(
		a.Config,
		a.VaultService,
		a.SessionStore,
		a.BrowserFactory,
		a.ChallengeHandler,
		a.Logger,
	)
	a.ExecutorService = executor.NewService(
		a.StorageManager,
		a.EventService,
		provider,
		a.ScorerService,
		&a.Config.Crawler,
		a.Logger,
	)

	a.TaskService = tasks.NewService(a.StorageManager, a.ExecutorService, a.ScorerService, a.EventService, a.Logger)

	a.SchedulerService = scheduler.NewService(a.Logger)
	jobs := scheduler.NewJobs(a.StorageManager, a.TaskService, a.DriftService, a.ScorerService, a.NotifyService, a.Config, a.Logger)
	if err := jobs.RegisterAll(a.SchedulerService); err != nil {
		return fmt.Errorf("failed to register scheduler jobs: %w", err)
	}

	return nil
}

// Start launches the background workers and the scheduler
func (a *App) Start() error {
	if err := a.ExecutorService.Start(); err != nil {
		return fmt.Errorf("failed to start executor: %w", err)
	}

	if a.Config.Scheduler.Enabled {
		if err := a.SchedulerService.Start(); err != nil {
			return fmt.Errorf("failed to start scheduler: %w", err)
		}
	} else {
		a.Logger.Info().Msg("Scheduler disabled by configuration")
	}

	return nil
}

// Shutdown stops background work and closes storage, in reverse start order
func (a *App) Shutdown() {
	if a.SchedulerService != nil && a.SchedulerService.IsRunning() {
		if err := a.SchedulerService.Stop(); err != nil {
			a.Logger.Warn().Err(err).Msg("Scheduler shutdown failed")
		}
	}

	if a.ExecutorService != nil {
		if err := a.ExecutorService.Stop(); err != nil {
			a.Logger.Warn().Err(err).Msg("Executor shutdown failed")
		}
	}

	if a.EventService != nil {
		if err := a.EventService.Close(); err != nil {
			a.Logger.Warn().Err(err).Msg("Event service shutdown failed")
		}
	}

	if a.StorageManager != nil {
		if err := a.StorageManager.Close(); err != nil {
			a.Logger.Warn().Err(err).Msg("Storage shutdown failed")
		}
	}

	a.Logger.Info().Msg("Application shutdown complete")
}
