package challenge

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/brandlens/brandlens/internal/common"
)

func newTestSolver(t *testing.T, handler http.Handler) *SolverClient {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	client := NewSolverClient(server.URL, "test-key", 3*time.Second, common.GetLogger())
	client.pollInterval = 10 * time.Millisecond
	return client
}

func TestSolverSolve(t *testing.T) {
	var polls atomic.Int32
	mux := http.NewServeMux()
	mux.HandleFunc("/in.php", func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseForm())
		assert.Equal(t, "test-key", r.FormValue("key"))
		assert.Equal(t, "userrecaptcha", r.FormValue("method"))
		assert.Equal(t, "site-key-1", r.FormValue("googlekey"))
		assert.Equal(t, "https://example.com/q", r.FormValue("pageurl"))
		json.NewEncoder(w).Encode(solverResponse{Status: 1, Request: "req_42"})
	})
	mux.HandleFunc("/res.php", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "req_42", r.URL.Query().Get("id"))
		if polls.Add(1) < 3 {
			json.NewEncoder(w).Encode(solverResponse{Status: 0, Request: "CAPCHA_NOT_READY"})
			return
		}
		json.NewEncoder(w).Encode(solverResponse{Status: 1, Request: "solved-token"})
	})

	client := newTestSolver(t, mux)
	token, err := client.Solve(context.Background(), "userrecaptcha", "site-key-1", "https://example.com/q")
	require.NoError(t, err)
	assert.Equal(t, "solved-token", token)
	assert.GreaterOrEqual(t, polls.Load(), int32(3))
}

func TestSolverSubmitRejected(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/in.php", func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(solverResponse{Status: 0, Request: "ERROR_WRONG_USER_KEY"})
	})

	client := newTestSolver(t, mux)
	_, err := client.Solve(context.Background(), "hcaptcha", "k", "https://example.com")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "ERROR_WRONG_USER_KEY")
}

func TestSolverPollError(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/in.php", func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(solverResponse{Status: 1, Request: "req_1"})
	})
	mux.HandleFunc("/res.php", func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(solverResponse{Status: 0, Request: "ERROR_CAPTCHA_UNSOLVABLE"})
	})

	client := newTestSolver(t, mux)
	_, err := client.Solve(context.Background(), "userrecaptcha", "k", "https://example.com")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "ERROR_CAPTCHA_UNSOLVABLE")
}

func TestSolverPollTimeout(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/in.php", func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(solverResponse{Status: 1, Request: "req_1"})
	})
	mux.HandleFunc("/res.php", func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(solverResponse{Status: 0, Request: "CAPCHA_NOT_READY"})
	})

	client := newTestSolver(t, mux)
	client.pollTimeout = 50 * time.Millisecond

	_, err := client.Solve(context.Background(), "userrecaptcha", "k", "https://example.com")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "timed out")
}

func TestSolverRespectsContextCancel(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/in.php", func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(solverResponse{Status: 1, Request: "req_1"})
	})
	mux.HandleFunc("/res.php", func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(solverResponse{Status: 0, Request: "CAPCHA_NOT_READY"})
	})

	client := newTestSolver(t, mux)
	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(30 * time.Millisecond)
		cancel()
	}()

	_, err := client.Solve(ctx, "userrecaptcha", "k", "https://example.com")
	assert.ErrorIs(t, err, context.Canceled)
}
