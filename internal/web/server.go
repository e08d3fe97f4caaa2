package web

import (
	"context"
	"encoding/json"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/smartgenbot/smartgen/internal/logger"
	"github.com/smartgenbot/smartgen/internal/stats"
)

// SessionCounter reports the number of live wizard sessions.
type SessionCounter interface {
	Len() int
}

// Config holds server configuration.
type Config struct {
	Port int
}

// Server exposes the health, status and websocket endpoints.
type Server struct {
	router     *chi.Mux
	httpServer *http.Server
	config     *Config
	listener   net.Listener
	hub        *Hub
	stats      *stats.Repository
	sessions   SessionCounter
	log        *logger.Logger
	startedAt  time.Time
}

func NewServer(cfg *Config, hub *Hub, repo *stats.Repository, sessions SessionCounter, log *logger.Logger) *Server {
	srv := &Server{
		router:    chi.NewRouter(),
		config:    cfg,
		hub:       hub,
		stats:     repo,
		sessions:  sessions,
		log:       log,
		startedAt: time.Now(),
	}
	srv.setupMiddleware()
	srv.setupRoutes()
	return srv
}

func (s *Server) setupMiddleware() {
	s.router.Use(middleware.RequestID)
	s.router.Use(middleware.RealIP)
	s.router.Use(middleware.Recoverer)
	s.router.Use(middleware.Timeout(30 * time.Second))
	s.router.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Content-Type"},
		MaxAge:         300,
	}))
}

func (s *Server) setupRoutes() {
	s.router.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"status":"ok"}`))
	})

	s.router.Get("/api/v1/status", s.handleStatus)

	if s.hub != nil {
		s.router.Get("/ws", func(w http.ResponseWriter, r *http.Request) {
			ServeWs(s.hub, s.log, w, r)
		})
	}
}

// statusResponse is the /api/v1/status body.
type statusResponse struct {
	Status         string         `json:"status"`
	UptimeSeconds  int64          `json:"uptime_seconds"`
	ActiveSessions int            `json:"active_sessions"`
	Stats          *stats.Summary `json:"stats,omitempty"`
}

func (s *Server) handleStatus(w http.ResponseWriter, _ *http.Request) {
	resp := statusResponse{
		Status:        "ok",
		UptimeSeconds: int64(time.Since(s.startedAt).Seconds()),
	}
	if s.sessions != nil {
		resp.ActiveSessions = s.sessions.Len()
	}
	if s.stats != nil {
		summary, err := s.stats.Summarize()
		if err != nil {
			s.log.Error().Err(err).Msg("failed to summarize stats")
		} else {
			resp.Stats = summary
		}
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(resp); err != nil {
		s.log.Debug().Err(err).Msg("failed to write status response")
	}
}

// Start listens and serves until Stop is called.
func (s *Server) Start() error {
	listener, err := net.Listen("tcp", fmt.Sprintf(":%d", s.config.Port))
	if err != nil {
		return err
	}
	s.listener = listener

	s.httpServer = &http.Server{
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}
	return s.httpServer.Serve(listener)
}

// Stop gracefully stops the server.
func (s *Server) Stop(ctx context.Context) error {
	if s.httpServer != nil {
		return s.httpServer.Shutdown(ctx)
	}
	return nil
}

// BaseURL returns the server's base URL once started.
func (s *Server) BaseURL() string {
	if s.listener != nil {
		return fmt.Sprintf("http://%s", s.listener.Addr().String())
	}
	return fmt.Sprintf("http://localhost:%d", s.config.Port)
}

// Router exposes the handler for tests.
func (s *Server) Router() http.Handler {
	return s.router
}
