package badger

import (
	"github.com/ternarybob/arbor"

	"github.com/brandlens/brandlens/internal/common"
	"github.com/brandlens/brandlens/internal/interfaces"
)

// Manager implements the StorageManager interface for Badger
type Manager struct {
	db           *BadgerDB
	project      interfaces.ProjectStorage
	run          interfaces.RunStorage
	task         interfaces.TaskStorage
	result       interfaces.ResultStorage
	drift        interfaces.DriftStorage
	credential   interfaces.CredentialStorage
	subscription interfaces.SubscriptionStorage
	analytics    interfaces.AnalyticsStorage
	notification interfaces.NotificationStorage
	logger       arbor.ILogger
}

// NewManager creates a new Badger storage manager
func NewManager(logger arbor.ILogger, config *common.BadgerConfig) (interfaces.StorageManager, error) {
	db, err := NewBadgerDB(logger, config)
	if err != nil {
		return nil, err
	}

	manager := &Manager{
		db:           db,
		project:      NewProjectStorage(db, logger),
		run:          NewRunStorage(db, logger),
		task:         NewTaskStorage(db, logger),
		result:       NewResultStorage(db, logger),
		drift:        NewDriftStorage(db, logger),
		credential:   NewCredentialStorage(db, logger),
		subscription: NewSubscriptionStorage(db, logger),
		analytics:    NewAnalyticsStorage(db, logger),
		notification: NewNotificationStorage(db, logger),
		logger:       logger,
	}

	logger.Info().Msg("Badger storage manager initialized")

	return manager, nil
}

// ProjectStorage returns the Project storage interface
func (m *Manager) ProjectStorage() interfaces.ProjectStorage {
	return m.project
}

// RunStorage returns the Run storage interface
func (m *Manager) RunStorage() interfaces.RunStorage {
	return m.run
}

// TaskStorage returns the CrawlTask storage interface
func (m *Manager) TaskStorage() interfaces.TaskStorage {
	return m.task
}

// ResultStorage returns the CrawlResult storage interface
func (m *Manager) ResultStorage() interfaces.ResultStorage {
	return m.result
}

// DriftStorage returns the DriftEvent storage interface
func (m *Manager) DriftStorage() interfaces.DriftStorage {
	return m.drift
}

// CredentialStorage returns the Credential storage interface
func (m *Manager) CredentialStorage() interfaces.CredentialStorage {
	return m.credential
}

// SubscriptionStorage returns the Subscription storage interface
func (m *Manager) SubscriptionStorage() interfaces.SubscriptionStorage {
	return m.subscription
}

// AnalyticsStorage returns the AnalyticsEvent storage interface
func (m *Manager) AnalyticsStorage() interfaces.AnalyticsStorage {
	return m.analytics
}

// NotificationStorage returns the NotificationIntent storage interface
func (m *Manager) NotificationStorage() interfaces.NotificationStorage {
	return m.notification
}

// Close closes the database connection
func (m *Manager) Close() error {
	if m.db != nil {
		return m.db.Close()
	}
	return nil
}
