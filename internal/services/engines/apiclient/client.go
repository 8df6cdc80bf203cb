package apiclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/ternarybob/arbor"

	"github.com/brandlens/brandlens/internal/models"
)

// Client speaks one vendor's chat-completions endpoint
type Client struct {
	endpoint   Endpoint
	apiKey     string
	httpClient *http.Client
	logger     arbor.ILogger
}

// NewClient builds a vendor API client for the engine. Returns an error for
// engines without an HTTP API.
func NewClient(engine models.Engine, apiKey string, logger arbor.ILogger) (*Client, error) {
	endpoint, ok := EndpointFor(engine)
	if !ok {
		return nil, fmt.Errorf("engine %q has no API endpoint", engine)
	}
	return &Client{
		endpoint:   endpoint,
		apiKey:     apiKey,
		httpClient: &http.Client{Timeout: 3 * time.Minute},
		logger:     logger,
	}, nil
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model    string        `json:"model"`
	Messages []chatMessage `json:"messages"`
	// EnableSearch is the DashScope extension for web-grounded answers
	EnableSearch bool `json:"enable_search,omitempty"`
}

// SearchResult is the Qwen search_info entry shape
type SearchResult struct {
	Title string `json:"title"`
	URL   string `json:"url"`
}

type chatResponse struct {
	Choices []struct {
		Message struct {
			Content   string `json:"content"`
			ToolCalls []struct {
				Function struct {
					Arguments string `json:"arguments"`
				} `json:"function"`
			} `json:"tool_calls"`
		} `json:"message"`
	} `json:"choices"`

	// Perplexity returns the cited URLs as a flat list
	Citations []string `json:"citations"`

	// Qwen DashScope attaches search hits when enable_search is on
	SearchInfo struct {
		SearchResults []SearchResult `json:"search_results"`
	} `json:"search_info"`

	Error *struct {
		Message string `json:"message"`
		Type    string `json:"type"`
	} `json:"error"`
}

// Completion is the vendor answer plus its structured citation fields
type Completion struct {
	Text          string
	CitationURLs  []string
	SearchResults []SearchResult
	ToolCallBlobs []string
	StatusCode    int
}

// Complete sends the prompt and returns the parsed completion
func (c *Client) Complete(ctx context.Context, prompt string, webSearch bool) (*Completion, error) {
	reqBody := chatRequest{
		Model:    c.endpoint.Model,
		Messages: []chatMessage{{Role: "user", Content: prompt}},
	}
	if webSearch && c.endpoint.SearchFlag {
		reqBody.EnableSearch = true
	}

	payload, err := json.Marshal(reqBody)
	if err != nil {
		return nil, err
	}

	url := strings.TrimRight(c.endpoint.BaseURL, "/") + "/chat/completions"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("api request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 10<<20))
	if err != nil {
		return nil, fmt.Errorf("failed to read api response: %w", err)
	}

	var parsed chatResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return nil, fmt.Errorf("unparseable api response (status %d)", resp.StatusCode)
	}
	if parsed.Error != nil {
		return &Completion{StatusCode: resp.StatusCode}, fmt.Errorf("api error (status %d): %s", resp.StatusCode, parsed.Error.Message)
	}
	if resp.StatusCode != http.StatusOK {
		return &Completion{StatusCode: resp.StatusCode}, fmt.Errorf("api returned status %d", resp.StatusCode)
	}
	if len(parsed.Choices) == 0 {
		return &Completion{StatusCode: resp.StatusCode}, fmt.Errorf("api returned no choices")
	}

	out := &Completion{
		Text:          parsed.Choices[0].Message.Content,
		CitationURLs:  parsed.Citations,
		SearchResults: parsed.SearchInfo.SearchResults,
		StatusCode:    resp.StatusCode,
	}
	for _, tc := range parsed.Choices[0].Message.ToolCalls {
		out.ToolCallBlobs = append(out.ToolCallBlobs, tc.Function.Arguments)
	}
	return out, nil
}

// BaseURL exposes the endpoint for test overrides
func (c *Client) BaseURL() string {
	return c.endpoint.BaseURL
}

// SetBaseURL overrides the vendor endpoint, used in tests
func (c *Client) SetBaseURL(url string) {
	c.endpoint.BaseURL = url
}
