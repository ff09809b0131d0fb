package server

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"go.uber.org/zap"

	"github.com/lexredact/lexredact/internal/audit"
	"github.com/lexredact/lexredact/internal/config"
	"github.com/lexredact/lexredact/internal/logger"
	"github.com/lexredact/lexredact/internal/pii"
	"github.com/lexredact/lexredact/internal/websocket"
)

// Version is stamped at build time.
var Version = "0.1.0"

// Server exposes the anonymization engine over HTTP.
type Server struct {
	config     *config.Config
	logger     *logger.Logger
	engine     *pii.Engine
	recognizer pii.Recognizer
	router     *mux.Router
	server     *http.Server
	wsHub      *websocket.Hub
	limiter    *clientLimiter
	auditStore *audit.Store
	startTime  time.Time
}

// Option configures optional server collaborators.
type Option func(*Server)

// WithAuditStore exposes persisted audit records over the API.
func WithAuditStore(store *audit.Store) Option {
	return func(s *Server) { s.auditStore = store }
}

// WithRecognizer lets the server report recognizer readiness in /health.
func WithRecognizer(r pii.Recognizer) Option {
	return func(s *Server) { s.recognizer = r }
}

// New creates a new server instance
func New(cfg *config.Config, log *logger.Logger, engine *pii.Engine, opts ...Option) (*Server, error) {
	if engine == nil {
		return nil, fmt.Errorf("engine is required")
	}

	// Create WebSocket hub
	wsHub := websocket.NewHub(&websocket.HubConfig{
		BroadcastAnonymizations: cfg.WebSocket.Enabled,
		BroadcastSystem:         cfg.WebSocket.Enabled,
		BroadcastConnections:    cfg.WebSocket.Enabled,
		AllowedOrigins:          cfg.WebSocket.AllowedOrigins,
	}, log.WithComponent("websocket").Logger)

	// Create router
	router := mux.NewRouter()

	server := &Server{
		config:    cfg,
		logger:    log.WithComponent("server"),
		engine:    engine,
		router:    router,
		wsHub:     wsHub,
		startTime: time.Now(),
	}
	for _, opt := range opts {
		opt(server)
	}

	if cfg.RateLimit.Enabled {
		server.limiter = newClientLimiter(cfg.RateLimit.RequestsPerSecond, cfg.RateLimit.Burst)
	}

	// Setup routes
	server.setupRoutes()

	// Create HTTP server
	server.server = &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      server.router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	return server, nil
}

// setupRoutes configures all HTTP routes
func (s *Server) setupRoutes() {
	// Health check endpoint
	s.router.HandleFunc("/health", s.handleHealth).Methods("GET")

	// Info endpoint
	s.router.HandleFunc("/info", s.handleInfo).Methods("GET")

	// WebSocket endpoint for live summaries
	if s.config.WebSocket.Enabled {
		s.router.HandleFunc(s.config.WebSocket.Path, s.handleWebSocket).Methods("GET")
	}

	// API endpoints
	api := s.router.PathPrefix("/v1").Subrouter()
	api.Use(s.loggingMiddleware)
	if s.limiter != nil {
		api.Use(s.rateLimitMiddleware)
	}
	api.HandleFunc("/anonymize", s.handleAnonymize).Methods("POST")
	api.HandleFunc("/anonymize/batch", s.handleAnonymizeBatch).Methods("POST")
	api.HandleFunc("/detect", s.handleDetect).Methods("POST")
	api.HandleFunc("/clear", s.handleClear).Methods("POST")
	api.HandleFunc("/statistics", s.handleStatistics).Methods("GET")
	api.HandleFunc("/entity-types", s.handleEntityTypes).Methods("GET")
	if s.auditStore != nil {
		api.HandleFunc("/audit/recent", s.handleAuditRecent).Methods("GET")
	}
}

// Start starts the HTTP server
func (s *Server) Start() error {
	s.logger.Info("Starting lexredact server",
		zap.Int("port", s.config.Server.Port),
		zap.String("mode", s.config.Engine.Mode),
		zap.Bool("rate_limit", s.limiter != nil),
		zap.Bool("audit", s.auditStore != nil),
	)

	// Start WebSocket hub in a separate goroutine
	go s.wsHub.Run()

	return s.server.ListenAndServe()
}

// Stop gracefully stops the HTTP server
func (s *Server) Stop(ctx context.Context) error {
	s.logger.Info("Stopping lexredact server")
	return s.server.Shutdown(ctx)
}

// Router returns the configured handler, mainly for tests.
func (s *Server) Router() http.Handler {
	return s.router
}

// handleHealth handles health check requests
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	recognizerReady := s.recognizer != nil && s.recognizer.Ready()

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(map[string]interface{}{
		"status":           "healthy",
		"recognizer_ready": recognizerReady,
		"timestamp":        time.Now().Format(time.RFC3339),
	})
}

// handleInfo handles info requests
func (s *Server) handleInfo(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(map[string]interface{}{
		"name":         "lexredact",
		"version":      Version,
		"mode":         string(s.engine.Mode()),
		"uptime":       time.Since(s.startTime).String(),
		"entity_types": s.engine.EntityTypes(),
	})
}

// handleWebSocket handles WebSocket connections
func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	s.wsHub.HandleWebSocket(w, r)
}

// WebSocketHub returns the hub for broadcasting events
func (s *Server) WebSocketHub() *websocket.Hub {
	return s.wsHub
}
