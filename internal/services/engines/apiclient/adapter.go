package apiclient

import (
	"context"
	"time"

	"github.com/ternarybob/arbor"

	"github.com/brandlens/brandlens/internal/interfaces"
	"github.com/brandlens/brandlens/internal/models"
)

// Adapter fulfills the engine adapter contract over a vendor HTTP API
// instead of a browser. No sessions, challenges, or typing apply here.
type Adapter struct {
	client        *Client
	engine        models.Engine
	targetDomains []string
	logger        arbor.ILogger
}

// NewAdapter builds an API adapter for the engine using the revealed key
func NewAdapter(engine models.Engine, apiKey string, targetDomains []string, logger arbor.ILogger) (*Adapter, error) {
	client, err := NewClient(engine, apiKey, logger)
	if err != nil {
		return nil, err
	}
	return &Adapter{
		client:        client,
		engine:        engine,
		targetDomains: targetDomains,
		logger:        logger,
	}, nil
}

// Client exposes the underlying vendor client, used by tests to point at a
// stub server.
func (a *Adapter) Client() *Client {
	return a.client
}

// Engine returns the engine this adapter speaks to
func (a *Adapter) Engine() models.Engine {
	return a.engine
}

// Crawl runs one query through the vendor API
func (a *Adapter) Crawl(ctx context.Context, queryText string, opts interfaces.CrawlOptions) *interfaces.AdapterResult {
	start := time.Now()
	result := &interfaces.AdapterResult{QueryText: queryText, Turns: 1}

	completion, err := a.client.Complete(ctx, queryText, opts.EnableWebSearch)
	result.ResponseTimeMs = time.Since(start).Milliseconds()

	if err != nil {
		if completion != nil && (completion.StatusCode == 401 || completion.StatusCode == 403) {
			result.RequiresLogin = true
		}
		result.Error = err.Error()
		a.logger.Warn().
			Str("engine", string(a.engine)).
			Str("error", result.Error).
			Msg("API crawl failed")
		return result
	}

	result.ResponseText = completion.Text
	result.Citations = ExtractCitations(completion, a.targetDomains)
	result.WebSearchEnabled = opts.EnableWebSearch
	result.Success = len(result.ResponseText) > 50 || len(result.Citations) > 0

	a.logger.Info().
		Str("engine", string(a.engine)).
		Bool("success", result.Success).
		Int("citations", len(result.Citations)).
		Int64("elapsed_ms", result.ResponseTimeMs).
		Msg("API crawl finished")

	return result
}
