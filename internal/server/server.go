package server

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/lhchen/assistant-realtime/internal/config"
	"github.com/lhchen/assistant-realtime/internal/dispatch"
	"github.com/lhchen/assistant-realtime/internal/hub"
	"github.com/lhchen/assistant-realtime/internal/version"
)

// IdentityFunc resolves the client identity from the upgrade request. A
// nil identity with a nil error means an anonymous connection; a non-nil
// error rejects the request with 401 before the upgrade.
type IdentityFunc func(r *http.Request) (*hub.Identity, error)

// DefaultIdentity reads user_id and username from the query string.
// Requests without user_id connect anonymously.
func DefaultIdentity(r *http.Request) (*hub.Identity, error) {
	userID := r.URL.Query().Get("user_id")
	if userID == "" {
		return nil, nil
	}
	return &hub.Identity{
		UserID:   userID,
		Username: r.URL.Query().Get("username"),
	}, nil
}

// Option customizes Server construction.
type Option func(*Server)

// WithIdentityFunc replaces the default query-string identity resolver,
// typically with one that validates a bearer token.
func WithIdentityFunc(fn IdentityFunc) Option {
	return func(s *Server) { s.identity = fn }
}

// Server serves the WebSocket endpoint and a health endpoint.
type Server struct {
	cfg        config.ServerConfig
	hub        *hub.Hub
	dispatcher *dispatch.Dispatcher
	logger     *slog.Logger
	identity   IdentityFunc
	origins    *originChecker

	httpSrv  *http.Server
	listener net.Listener
	wg       sync.WaitGroup
}

// New creates a Server. Call Start to begin listening.
func New(cfg config.ServerConfig, h *hub.Hub, d *dispatch.Dispatcher, logger *slog.Logger, opts ...Option) *Server {
	if logger == nil {
		logger = slog.Default()
	}

	s := &Server{
		cfg:        cfg,
		hub:        h,
		dispatcher: d,
		logger:     logger.With("component", "server"),
		identity:   DefaultIdentity,
		origins:    newOriginChecker(cfg.AllowedOrigins),
	}
	for _, opt := range opts {
		opt(s)
	}

	mux := http.NewServeMux()
	mux.HandleFunc(cfg.WSPath, s.handleWS)
	mux.HandleFunc("/health", s.handleHealth)

	s.httpSrv = &http.Server{
		Addr:        cfg.Addr,
		Handler:     mux,
		ReadTimeout: 15 * time.Second,
		IdleTimeout: 60 * time.Second,
	}
	return s
}

// Start binds the listen address and begins serving in the background.
// A bind failure is returned synchronously.
func (s *Server) Start(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.cfg.Addr)
	if err != nil {
		return err
	}
	s.listener = ln

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		if err := s.httpSrv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("http serve failed", "error", err)
		}
	}()

	s.logger.Info("listening", "addr", ln.Addr().String(), "ws_path", s.cfg.WSPath)
	return nil
}

// Stop shuts the HTTP server down, closes the hub, and waits for the
// connection pumps to exit. The hub must close first: the pumps block on
// their sockets and only return once the transport is torn down.
func (s *Server) Stop(ctx context.Context) error {
	err := s.httpSrv.Shutdown(ctx)

	if cerr := s.hub.Close(ctx); cerr != nil && err == nil {
		err = cerr
	}

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-ctx.Done():
		return ctx.Err()
	}
	return err
}

// Addr returns the bound listen address. Useful when Addr was ":0".
func (s *Server) Addr() string {
	if s.listener == nil {
		return s.cfg.Addr
	}
	return s.listener.Addr().String()
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	stats := s.hub.Stats()

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]any{
		"status":      "ok",
		"version":     version.Version,
		"connections": stats.Connections,
		"users":       stats.Users,
		"rooms":       stats.Rooms,
	})
}
