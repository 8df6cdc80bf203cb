package challenge

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/ternarybob/arbor"
)

// SolverClient speaks the two-phase external solver protocol: POST /in
// returns a request id, GET /res is polled until the token is ready.
type SolverClient struct {
	baseURL      string
	apiKey       string
	pollTimeout  time.Duration
	pollInterval time.Duration
	httpClient   *http.Client
	logger       arbor.ILogger
}

// NewSolverClient creates a solver API client
func NewSolverClient(baseURL, apiKey string, pollTimeout time.Duration, logger arbor.ILogger) *SolverClient {
	return &SolverClient{
		baseURL:      strings.TrimRight(baseURL, "/"),
		apiKey:       apiKey,
		pollTimeout:  pollTimeout,
		pollInterval: 5 * time.Second,
		httpClient:   &http.Client{Timeout: 30 * time.Second},
		logger:       logger,
	}
}

type solverResponse struct {
	Status  int    `json:"status"`
	Request string `json:"request"`
}

// Solve submits the site key and polls until the solver returns a token.
// method is the solver-side challenge name, e.g. "userrecaptcha" or "hcaptcha".
func (c *SolverClient) Solve(ctx context.Context, method, siteKey, pageURL string) (string, error) {
	requestID, err := c.submit(ctx, method, siteKey, pageURL)
	if err != nil {
		return "", err
	}

	c.logger.Debug().
		Str("request_id", requestID).
		Str("method", method).
		Msg("Challenge submitted to solver")

	return c.poll(ctx, requestID)
}

func (c *SolverClient) submit(ctx context.Context, method, siteKey, pageURL string) (string, error) {
	form := url.Values{
		"key":       {c.apiKey},
		"method":    {method},
		"googlekey": {siteKey},
		"sitekey":   {siteKey},
		"pageurl":   {pageURL},
		"json":      {"1"},
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/in.php", strings.NewReader(form.Encode()))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("solver submit failed: %w", err)
	}
	defer resp.Body.Close()

	var body solverResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return "", fmt.Errorf("solver returned unreadable response: %w", err)
	}
	if body.Status != 1 {
		return "", fmt.Errorf("solver rejected challenge: %s", body.Request)
	}
	return body.Request, nil
}

func (c *SolverClient) poll(ctx context.Context, requestID string) (string, error) {
	deadline := time.Now().Add(c.pollTimeout)
	ticker := time.NewTicker(c.pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return "", ctx.Err()
		case <-ticker.C:
		}
		if time.Now().After(deadline) {
			return "", fmt.Errorf("solver timed out after %s", c.pollTimeout)
		}

		token, ready, err := c.check(ctx, requestID)
		if err != nil {
			return "", err
		}
		if ready {
			return token, nil
		}
	}
}

func (c *SolverClient) check(ctx context.Context, requestID string) (string, bool, error) {
	q := url.Values{
		"key":    {c.apiKey},
		"action": {"get"},
		"id":     {requestID},
		"json":   {"1"},
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/res.php?"+q.Encode(), nil)
	if err != nil {
		return "", false, err
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", false, fmt.Errorf("solver poll failed: %w", err)
	}
	defer resp.Body.Close()

	var body solverResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return "", false, fmt.Errorf("solver returned unreadable response: %w", err)
	}

	if body.Status == 1 {
		return body.Request, true, nil
	}
	if body.Request == "CAPCHA_NOT_READY" {
		return "", false, nil
	}
	return "", false, fmt.Errorf("solver error: %s", body.Request)
}
