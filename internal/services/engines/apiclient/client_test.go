package apiclient

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/brandlens/brandlens/internal/common"
	"github.com/brandlens/brandlens/internal/interfaces"
	"github.com/brandlens/brandlens/internal/models"
)

func stubVendor(t *testing.T, handler http.HandlerFunc) *httptest.Server {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)
	return server
}

func TestClientComplete(t *testing.T) {
	server := stubVendor(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/chat/completions", r.URL.Path)
		assert.Equal(t, "Bearer sk-test", r.Header.Get("Authorization"))

		var req map[string]interface{}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "deepseek-chat", req["model"])

		json.NewEncoder(w).Encode(map[string]interface{}{
			"choices": []map[string]interface{}{
				{"message": map[string]interface{}{"content": "Acme is the best choice."}},
			},
		})
	})

	client, err := NewClient(models.EngineDeepSeek, "sk-test", common.GetLogger())
	require.NoError(t, err)
	client.SetBaseURL(server.URL)

	completion, err := client.Complete(context.Background(), "best tool?", false)
	require.NoError(t, err)
	assert.Equal(t, "Acme is the best choice.", completion.Text)
}

func TestClientSendsSearchFlagForQwen(t *testing.T) {
	var gotEnableSearch bool
	server := stubVendor(t, func(w http.ResponseWriter, r *http.Request) {
		var req map[string]interface{}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		gotEnableSearch, _ = req["enable_search"].(bool)
		json.NewEncoder(w).Encode(map[string]interface{}{
			"choices": []map[string]interface{}{
				{"message": map[string]interface{}{"content": "ok"}},
			},
		})
	})

	client, err := NewClient(models.EngineQwen, "k", common.GetLogger())
	require.NoError(t, err)
	client.SetBaseURL(server.URL)

	_, err = client.Complete(context.Background(), "q", true)
	require.NoError(t, err)
	assert.True(t, gotEnableSearch)

	// DeepSeek has no search flag even when web search is requested
	dsClient, err := NewClient(models.EngineDeepSeek, "k", common.GetLogger())
	require.NoError(t, err)
	dsClient.SetBaseURL(server.URL)
	_, err = dsClient.Complete(context.Background(), "q", true)
	require.NoError(t, err)
	assert.False(t, gotEnableSearch)
}

func TestClientAPIError(t *testing.T) {
	server := stubVendor(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		json.NewEncoder(w).Encode(map[string]interface{}{
			"error": map[string]interface{}{"message": "Invalid API key", "type": "auth_error"},
		})
	})

	client, err := NewClient(models.EngineKimi, "bad", common.GetLogger())
	require.NoError(t, err)
	client.SetBaseURL(server.URL)

	completion, err := client.Complete(context.Background(), "q", false)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Invalid API key")
	assert.Equal(t, http.StatusUnauthorized, completion.StatusCode)
}

func TestClientUnknownEngine(t *testing.T) {
	_, err := NewClient(models.EngineGoogleSGE, "k", common.GetLogger())
	assert.Error(t, err)
}

func TestAdapterCrawlSuccess(t *testing.T) {
	server := stubVendor(t, func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]interface{}{
			"choices": []map[string]interface{}{
				{"message": map[string]interface{}{"content": "See https://acme.com/pricing and https://rival.io/review for details."}},
			},
			"citations": []string{"https://acme.com/pricing", "https://third.example.com/post"},
		})
	})

	adapter, err := NewAdapter(models.EnginePerplexity, "k", []string{"acme.com"}, common.GetLogger())
	require.NoError(t, err)
	adapter.Client().SetBaseURL(server.URL)

	result := adapter.Crawl(context.Background(), "best tool?", interfaces.CrawlOptions{})
	require.True(t, result.Success)

	// Structured citations come first, then the URL scan; dedup keeps firsts
	require.Len(t, result.Citations, 3)
	assert.Equal(t, "https://acme.com/pricing", result.Citations[0].URL)
	assert.True(t, result.Citations[0].IsTargetDomain)
	assert.Equal(t, "https://third.example.com/post", result.Citations[1].URL)
	assert.Equal(t, "https://rival.io/review", result.Citations[2].URL)
	assert.False(t, result.Citations[2].IsTargetDomain)
}

func TestAdapterCrawlAuthFailureFlagsLogin(t *testing.T) {
	server := stubVendor(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		json.NewEncoder(w).Encode(map[string]interface{}{
			"error": map[string]interface{}{"message": "bad key"},
		})
	})

	adapter, err := NewAdapter(models.EngineDeepSeek, "bad", nil, common.GetLogger())
	require.NoError(t, err)
	adapter.Client().SetBaseURL(server.URL)

	result := adapter.Crawl(context.Background(), "q", interfaces.CrawlOptions{})
	assert.False(t, result.Success)
	assert.True(t, result.RequiresLogin)
	assert.NotEmpty(t, result.Error)
}

func TestDefaultAPIEnginesHaveEndpoints(t *testing.T) {
	for _, engine := range models.DefaultAPIEngines {
		_, ok := EndpointFor(engine)
		assert.True(t, ok, string(engine))
	}
}
