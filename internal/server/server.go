package server

import (
	"context"
	"fmt"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/gorilla/mux"
	"github.com/lexops/privguard/internal/audit"
	"github.com/lexops/privguard/internal/cache"
	"github.com/lexops/privguard/internal/config"
	"github.com/lexops/privguard/internal/logger"
	"github.com/lexops/privguard/internal/privacy"
	"github.com/lexops/privguard/internal/security"
	"github.com/lexops/privguard/internal/session"
	"github.com/lexops/privguard/internal/websocket"
	"go.uber.org/zap"
)

// Server is the privacy engine's HTTP front. It exposes detection,
// per-session anonymization, session lifecycle and audit queries, plus a
// WebSocket feed of metadata-only decision events.
type Server struct {
	config   *config.Config
	logger   *logger.Logger
	detector *privacy.Detector
	sessions *session.Manager
	recorder *audit.Recorder
	cache    *cache.DetectionCache
	limiter  *security.RateLimiter
	router   *mux.Router
	server   *http.Server
	wsHub    *websocket.Hub

	started        time.Time
	totalRequests  int64
	totalDecisions int64
}

// New creates a server wired to an already constructed detector, session
// manager and audit recorder. detCache may be nil when caching is disabled.
func New(cfg *config.Config, log *logger.Logger, detector *privacy.Detector, sessions *session.Manager, recorder *audit.Recorder, detCache *cache.DetectionCache) (*Server, error) {
	if detector == nil || sessions == nil || recorder == nil {
		return nil, fmt.Errorf("server requires detector, session manager and audit recorder")
	}

	wsHub := websocket.NewHub(&websocket.HubConfig{
		BroadcastDecisions: cfg.WebSocket.BroadcastDecisions,
		BroadcastSystem:    cfg.WebSocket.BroadcastSystem,
	}, log.WithComponent("websocket").Logger)

	s := &Server{
		config:   cfg,
		logger:   log.WithComponent("server"),
		detector: detector,
		sessions: sessions,
		recorder: recorder,
		cache:    detCache,
		limiter:  security.NewRateLimiter(&cfg.Security),
		router:   mux.NewRouter(),
		wsHub:    wsHub,
		started:  time.Now(),
	}

	s.setupRoutes()

	s.server = &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      s.router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	return s, nil
}

// setupRoutes configures all HTTP routes
func (s *Server) setupRoutes() {
	s.router.HandleFunc("/health", s.handleHealth).Methods("GET")
	s.router.HandleFunc("/info", s.handleInfo).Methods("GET")

	if s.config.WebSocket.Enabled {
		path := s.config.WebSocket.Path
		if path == "" {
			path = "/ws"
		}
		s.router.HandleFunc(path, s.handleWebSocket).Methods("GET")
	}

	api := s.router.PathPrefix("/v1").Subrouter()
	api.Use(s.loggingMiddleware)
	api.Use(s.rateLimitMiddleware)

	api.HandleFunc("/detect", s.handleDetect).Methods("POST")
	api.HandleFunc("/route", s.handleRoute).Methods("POST")

	api.HandleFunc("/sessions/{id}/anonymize", s.handleAnonymize).Methods("POST")
	api.HandleFunc("/sessions/{id}/deanonymize", s.handleDeanonymize).Methods("POST")
	api.HandleFunc("/sessions/{id}/mode", s.handleMode).Methods("GET", "PUT")
	api.HandleFunc("/sessions/{id}/lock", s.handleLock).Methods("POST")
	api.HandleFunc("/sessions/{id}", s.handlePurge).Methods("DELETE")

	api.HandleFunc("/users/{id}/consent", s.handleConsent).Methods("GET", "POST", "DELETE")
	api.HandleFunc("/users/{id}/erasure", s.handleErasure).Methods("POST")

	api.HandleFunc("/audit", s.handleAuditQuery).Methods("GET")
}

// Start starts the HTTP server and the WebSocket hub.
func (s *Server) Start() error {
	s.logger.Info("Starting privguard server",
		zap.Int("port", s.config.Server.Port),
		zap.Bool("cache_enabled", s.cache != nil),
		zap.Bool("websocket_enabled", s.config.WebSocket.Enabled),
	)

	go s.wsHub.Run()

	return s.server.ListenAndServe()
}

// Stop gracefully stops the HTTP server
func (s *Server) Stop(ctx context.Context) error {
	s.logger.Info("Stopping privguard server")
	return s.server.Shutdown(ctx)
}

// GetWebSocketHub returns the WebSocket hub for broadcasting events
func (s *Server) GetWebSocketHub() *websocket.Hub {
	return s.wsHub
}

// Router exposes the configured handler, mostly for tests.
func (s *Server) Router() http.Handler {
	return s.router
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	fmt.Fprintf(w, `{"status":"healthy","timestamp":"%s"}`, time.Now().Format(time.RFC3339))
}

func (s *Server) handleInfo(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"name":            "privguard",
		"version":         "0.1.0",
		"privacy_enabled": s.config.Privacy.Enabled,
		"cache_enabled":   s.cache != nil,
		"active_scopes":   s.sessions.ActiveScopes(),
		"uptime":          time.Since(s.started).String(),
		"total_requests":  atomic.LoadInt64(&s.totalRequests),
		"total_decisions": atomic.LoadInt64(&s.totalDecisions),
	})
}

func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	s.wsHub.HandleWebSocket(w, r)
}
