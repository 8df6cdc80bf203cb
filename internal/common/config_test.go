package common

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultConfigValidates(t *testing.T) {
	require.NoError(t, NewDefaultConfig().Validate())
}

func TestDefaultCrawlerPacing(t *testing.T) {
	cfg := NewDefaultConfig()

	// Engines get a minimum gap between queries, not a long cooldown
	assert.Equal(t, 200*time.Millisecond, cfg.Crawler.RateLimitGap)
	assert.Equal(t, 3, cfg.Crawler.MaxWorkers)
}

func TestSessionTTLFromHours(t *testing.T) {
	cfg := NewDefaultConfig()
	assert.Equal(t, 24*time.Hour, cfg.SessionTTL())
}
