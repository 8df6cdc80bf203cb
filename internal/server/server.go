package server

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/ternarybob/arbor"

	"github.com/brandlens/brandlens/internal/common"
)

// Server exposes the health endpoint and the websocket event stream. The
// full HTTP API lives outside this module; API processes consume the same
// services directly.
type Server struct {
	httpServer *http.Server
	ws         *WebSocketHandler
	logger     arbor.ILogger
}

// New creates the HTTP server
func New(config *common.ServerConfig, ws *WebSocketHandler, logger arbor.ILogger) *Server {
	mux := http.NewServeMux()

	s := &Server{
		ws:     ws,
		logger: logger,
		httpServer: &http.Server{
			Addr:         fmt.Sprintf("%s:%d", config.Host, config.Port),
			Handler:      mux,
			ReadTimeout:  30 * time.Second,
			WriteTimeout: 30 * time.Second,
		},
	}

	mux.HandleFunc("/health", s.handleHealth)
	if ws != nil {
		mux.HandleFunc("/ws", ws.HandleWebSocket)
	}

	return s
}

// Start blocks serving HTTP until Shutdown is called
func (s *Server) Start() error {
	s.logger.Info().Str("address", s.httpServer.Addr).Msg("HTTP server starting")
	if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

// Shutdown drains in-flight requests
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]interface{}{
		"status":  "ok",
		"version": common.GetVersion(),
	})
}
