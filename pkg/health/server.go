// Package health serves the gateway's liveness and metrics endpoints.
package health

import (
	"context"
	"encoding/json"
	"errors"
	"net"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/sipeed/picodice/pkg/logger"
)

// StatusFunc reports the running state of each channel by name.
type StatusFunc func() map[string]bool

type Response struct {
	Status   string          `json:"status"`
	Uptime   string          `json:"uptime"`
	Channels map[string]bool `json:"channels"`
}

type Server struct {
	addr    string
	status  StatusFunc
	metrics http.Handler

	mu      sync.Mutex
	started time.Time
	server  *http.Server
}

// NewServer creates a server listening on host:port. metrics may be nil,
// in which case /metrics is not registered.
func NewServer(host string, port int, status StatusFunc, metrics http.Handler) *Server {
	return &Server{
		addr:    net.JoinHostPort(host, strconv.Itoa(port)),
		status:  status,
		metrics: metrics,
	}
}

func (s *Server) Addr() string { return s.addr }

func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /health", s.handleHealth)
	if s.metrics != nil {
		mux.Handle("GET /metrics", s.metrics)
	}
	return mux
}

// Start begins listening in the background.
func (s *Server) Start() error {
	ln, err := net.Listen("tcp", s.addr)
	if err != nil {
		return err
	}
	go func() {
		if err := s.Serve(ln); err != nil {
			logger.ErrorCF("health", "HTTP server error", map[string]any{"error": err.Error()})
		}
	}()
	return nil
}

// Serve accepts connections on ln until Stop is called.
func (s *Server) Serve(ln net.Listener) error {
	srv := &http.Server{
		Handler:           s.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}
	s.mu.Lock()
	s.started = time.Now()
	s.server = srv
	s.mu.Unlock()

	logger.InfoCF("health", "HTTP server starting", map[string]any{"addr": ln.Addr().String()})
	if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Stop gracefully shuts down the HTTP server.
func (s *Server) Stop(ctx context.Context) error {
	s.mu.Lock()
	srv := s.server
	s.mu.Unlock()
	if srv == nil {
		return nil
	}
	return srv.Shutdown(ctx)
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	resp := Response{Status: "ok", Channels: map[string]bool{}}
	s.mu.Lock()
	started := s.started
	s.mu.Unlock()
	if !started.IsZero() {
		resp.Uptime = time.Since(started).Round(time.Second).String()
	}
	if s.status != nil {
		resp.Channels = s.status()
	}
	writeJSON(w, http.StatusOK, resp)
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}
