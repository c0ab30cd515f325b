// Package server exposes pseudonymization and synthesis over HTTP.
package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/mux"
	"go.uber.org/zap"

	"github.com/raaihank/text-pseudonymizer/internal/config"
	"github.com/raaihank/text-pseudonymizer/internal/logger"
	"github.com/raaihank/text-pseudonymizer/internal/privacy"
	"github.com/raaihank/text-pseudonymizer/internal/pseudonymizer"
	"github.com/raaihank/text-pseudonymizer/internal/recognizer"
	"github.com/raaihank/text-pseudonymizer/internal/websocket"
)

// Version is reported by /info
const Version = "0.1.0"

// ReportStore records processed documents for audit
type ReportStore interface {
	SaveReport(ctx context.Context, sessionID string, report *pseudonymizer.Report) (string, error)
	Correspondences(ctx context.Context, sessionID string) (map[string]string, error)
}

// Dependencies are the optional collaborators of the server
type Dependencies struct {
	Recognizer recognizer.Recognizer
	Reports    ReportStore
	Snapshots  SnapshotStore
}

// Server represents the HTTP API server
type Server struct {
	config        *config.Config
	logger        *logger.Logger
	pseudonymizer *pseudonymizer.Pseudonymizer
	scanner       *privacy.Scanner
	sessions      *sessionManager
	reports       ReportStore
	router        *mux.Router
	server        *http.Server
	wsHub         *websocket.Hub
	limiter       *clientLimiter

	// pseudonymization settings can be swapped on config reload
	settingsMu sync.RWMutex
	settings   config.PseudonymizationConfig

	startedAt time.Time
	documents atomic.Int64
	cancel    context.CancelFunc
}

// New creates a new server instance
func New(cfg *config.Config, log *logger.Logger, deps Dependencies) (*Server, error) {
	scanner, err := privacy.New(cfg.Pseudonymization.Detectors, log.WithComponent("privacy"))
	if err != nil {
		return nil, fmt.Errorf("failed to create pattern scanner: %w", err)
	}

	wsHub := websocket.NewHub(&websocket.HubConfig{
		BroadcastDocuments:   cfg.WebSocket.Events.BroadcastDocuments,
		BroadcastSynthesis:   cfg.WebSocket.Events.BroadcastSynthesis,
		BroadcastSystem:      cfg.WebSocket.Events.BroadcastSystem,
		BroadcastConnections: cfg.WebSocket.Events.BroadcastConnections,
		Username:             cfg.WebSocket.Username,
		Password:             cfg.WebSocket.Password,
	}, log)

	server := &Server{
		config:        cfg,
		logger:        log.WithComponent("server"),
		pseudonymizer: pseudonymizer.New(deps.Recognizer, scanner, log),
		scanner:       scanner,
		sessions:      newSessionManager(deps.Snapshots, pseudonymizer.RegistryOptions(cfg.Pseudonymization)),
		reports:       deps.Reports,
		router:        mux.NewRouter(),
		wsHub:         wsHub,
		settings:      cfg.Pseudonymization,
		startedAt:     time.Now(),
	}

	if cfg.RateLimit.Enabled {
		server.limiter = newClientLimiter(cfg.RateLimit.RequestsPerMin, cfg.RateLimit.Burst)
	}

	server.setupRoutes()

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
	s.router.Use(s.requestIDMiddleware)
	s.router.Use(s.loggingMiddleware)

	s.router.HandleFunc("/health", s.handleHealth).Methods(http.MethodGet)
	s.router.HandleFunc("/info", s.handleInfo).Methods(http.MethodGet)

	if s.config.WebSocket.Enabled {
		s.router.HandleFunc(s.config.WebSocket.Path, s.wsHub.HandleWebSocket).Methods(http.MethodGet)
	}

	api := s.router.PathPrefix("/v1").Subrouter()
	if s.limiter != nil {
		api.Use(s.rateLimitMiddleware)
	}
	api.HandleFunc("/pseudonymize", s.handlePseudonymize).Methods(http.MethodPost)
	api.HandleFunc("/sessions/{id}/correspondences", s.handleCorrespondences).Methods(http.MethodGet)
	api.HandleFunc("/synthesize", s.handleSynthesize).Methods(http.MethodPost)
}

// Handler returns the root HTTP handler
func (s *Server) Handler() http.Handler {
	return s.router
}

// Start starts the background workers and the HTTP server. It blocks until
// the server stops.
func (s *Server) Start() error {
	ctx, cancel := context.WithCancel(context.Background())
	s.cancel = cancel

	s.logger.Info("Starting pseudonymization server",
		zap.Int("port", s.config.Server.Port),
		zap.String("recognizer", s.pseudonymizer.Recognizer().Name()),
		zap.Strings("detectors", s.scanner.GetEnabledRules()),
		zap.Bool("websocket", s.config.WebSocket.Enabled),
	)

	s.StartBackground(ctx)

	err := s.server.ListenAndServe()
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}

// StartBackground runs the websocket hub, the status broadcaster and the
// idle session sweeper until ctx is cancelled
func (s *Server) StartBackground(ctx context.Context) {
	go s.wsHub.Run(ctx)
	go s.runMaintenance(ctx, 30*time.Second)
}

func (s *Server) runMaintenance(ctx context.Context, every time.Duration) {
	ticker := time.NewTicker(every)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.wsHub.BroadcastEvent(websocket.Event{
				Type: websocket.EventTypeSystemStatus,
				Data: s.status(),
			})
			if idle := s.config.Server.SessionIdleTimeout; idle > 0 {
				if n := s.sessions.evictIdle(time.Now().Add(-idle)); n > 0 {
					s.logger.Debug("Idle sessions evicted", zap.Int("count", n))
				}
			}
		}
	}
}

// Stop gracefully stops the HTTP server
func (s *Server) Stop(ctx context.Context) error {
	s.logger.Info("Stopping pseudonymization server")
	if s.cancel != nil {
		s.cancel()
	}
	return s.server.Shutdown(ctx)
}

// UpdatePseudonymization swaps the masking settings used by later requests.
// Sessions keep their registries.
func (s *Server) UpdatePseudonymization(cfg config.PseudonymizationConfig) {
	s.settingsMu.Lock()
	s.settings = cfg
	s.settingsMu.Unlock()
	s.sessions.setOptions(pseudonymizer.RegistryOptions(cfg))

	s.logger.Info("Pseudonymization settings reloaded",
		zap.Bool("use_placeholders", cfg.UsePlaceholders),
		zap.Bool("mask_other", cfg.MaskOther))
}

func (s *Server) currentSettings() config.PseudonymizationConfig {
	s.settingsMu.RLock()
	defer s.settingsMu.RUnlock()
	return s.settings
}

func (s *Server) status() websocket.SystemStatusEvent {
	return websocket.SystemStatusEvent{
		Status:           "healthy",
		Uptime:           time.Since(s.startedAt).Round(time.Second).String(),
		TotalDocuments:   s.documents.Load(),
		ActiveSessions:   s.sessions.len(),
		ActiveRules:      len(s.scanner.GetEnabledRules()),
		ConnectedClients: int(s.wsHub.GetStats().ActiveConnections),
	}
}

// GetWebSocketHub returns the WebSocket hub for broadcasting events
func (s *Server) GetWebSocketHub() *websocket.Hub {
	return s.wsHub
}
