package executor

import (
	"context"

	"github.com/ternarybob/arbor"

	"github.com/brandlens/brandlens/internal/common"
	"github.com/brandlens/brandlens/internal/interfaces"
	"github.com/brandlens/brandlens/internal/models"
	"github.com/brandlens/brandlens/internal/services/challenge"
	"github.com/brandlens/brandlens/internal/services/engines"
	"github.com/brandlens/brandlens/internal/services/engines/apiclient"
)

// AdapterProvider chooses the transport for a task: vendor API when the
// engine is eligible and a key exists, browser automation otherwise.
type AdapterProvider interface {
	AdapterFor(ctx context.Context, task *models.CrawlTask, project *models.Project) (interfaces.EngineAdapter, error)
}

// adapterProvider is the production implementation
type adapterProvider struct {
	config     *common.Config
	vault      interfaces.VaultService
	sessions   interfaces.SessionStore
	factory    *engines.BrowserFactory
	challenges *challenge.Handler
	logger     arbor.ILogger
}

// NewAdapterProvider wires the transport chooser
func NewAdapterProvider(
	config *common.Config,
	vault interfaces.VaultService,
	sessions interfaces.SessionStore,
	factory *engines.BrowserFactory,
	challenges *challenge.Handler,
	logger arbor.ILogger,
) AdapterProvider {
	return &adapterProvider{
		config:     config,
		vault:      vault,
		sessions:   sessions,
		factory:    factory,
		challenges: challenges,
		logger:     logger,
	}
}

// apiKeyValue is the stored shape of an api_key credential
type apiKeyValue struct {
	APIKey string `json:"api_key"`
}

func (p *adapterProvider) AdapterFor(ctx context.Context, task *models.CrawlTask, project *models.Project) (interfaces.EngineAdapter, error) {
	if p.config.Crawler.APIModeEnabled && p.config.APIEligible(task.Engine) {
		scope := models.CredentialScope{Type: models.ScopeWorkspace, OwnerID: project.WorkspaceID}

		var value apiKeyValue
		found, credID, err := p.vault.PickActive(ctx, scope, task.Engine, models.CredentialAPIKey, "", &value)
		if err != nil {
			p.logger.Warn().Err(err).Str("engine", string(task.Engine)).Msg("Credential lookup failed, falling back to browser")
		} else if found && value.APIKey != "" {
			adapter, err := apiclient.NewAdapter(task.Engine, value.APIKey, project.TargetDomains, p.logger)
			if err == nil {
				_ = p.vault.MarkUsed(ctx, credID)
				p.logger.Debug().
					Str("engine", string(task.Engine)).
					Str("task_id", task.ID).
					Msg("Using API adapter")
				return adapter, nil
			}
			p.logger.Warn().Err(err).Str("engine", string(task.Engine)).Msg("API adapter unavailable, falling back to browser")
		}
	}

	return engines.NewBrowserAdapter(
		task.Engine,
		p.factory,
		p.sessions,
		p.challenges,
		&p.config.Crawler,
		p.config.Storage.Filesystem.Screenshots,
		project.TargetDomains,
		p.logger,
	)
}
