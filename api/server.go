package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/google/uuid"

	"homehub/automation"
	"homehub/logger"
	"homehub/notifications"
	"homehub/realtime"
)

const apiPrefix = "/api/v1/automation"

// Server handles HTTP API requests
type Server struct {
	svc       *automation.Service
	webhookMq *notifications.WebhookManager
	broker    *realtime.Broker
	log       *logger.Logger
	http      *http.Server
}

// NewServer creates a new API server instance. webhookMq and broker may be
// nil; their routes then answer 503.
func NewServer(svc *automation.Service, webhookMq *notifications.WebhookManager, broker *realtime.Broker, log *logger.Logger) *Server {
	s := &Server{
		svc:       svc,
		webhookMq: webhookMq,
		broker:    broker,
		log:       logger.OrNop(log).With("component", "api"),
	}
	s.http = &http.Server{
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	return s
}

// Handler builds the routed handler with middleware applied
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	// Learning pipeline
	mux.HandleFunc("POST "+apiPrefix+"/actions/record", s.handleRecordAction)
	mux.HandleFunc("GET "+apiPrefix+"/actions/history", s.handleActionHistory)
	mux.HandleFunc("GET "+apiPrefix+"/patterns", s.handleGetPatterns)
	mux.HandleFunc("POST "+apiPrefix+"/patterns/{id}/activate", s.handleActivatePattern)
	mux.HandleFunc("POST "+apiPrefix+"/patterns/{id}/deactivate", s.handleDeactivatePattern)
	mux.HandleFunc("GET "+apiPrefix+"/suggestions", s.handleGetSuggestions)
	mux.HandleFunc("POST "+apiPrefix+"/suggestions/{id}/accept", s.handleAcceptSuggestion)
	mux.HandleFunc("POST "+apiPrefix+"/suggestions/{id}/reject", s.handleRejectSuggestion)

	// Automations
	mux.HandleFunc("GET "+apiPrefix+"/automations", s.handleListAutomations)
	mux.HandleFunc("POST "+apiPrefix+"/automations", s.handleCreateAutomation)
	mux.HandleFunc("POST "+apiPrefix+"/automations/{id}/enable", s.handleEnableAutomation)
	mux.HandleFunc("POST "+apiPrefix+"/automations/{id}/disable", s.handleDisableAutomation)
	mux.HandleFunc("POST "+apiPrefix+"/automations/{id}/activate", s.handleActivateAutomation)
	mux.HandleFunc("POST "+apiPrefix+"/automations/{id}/deactivate", s.handleDeactivateAutomation)
	mux.HandleFunc("POST "+apiPrefix+"/automations/{id}/execute", s.handleExecuteAutomation)
	mux.HandleFunc("GET "+apiPrefix+"/automations/{id}/executions", s.handleGetExecutions)

	// Devices and scenes
	mux.HandleFunc("GET "+apiPrefix+"/devices", s.handleListDevices)
	mux.HandleFunc("POST "+apiPrefix+"/devices/{id}/actions", s.handleDeviceAction)
	mux.HandleFunc("GET "+apiPrefix+"/scenes", s.handleListScenes)
	mux.HandleFunc("POST "+apiPrefix+"/scenes", s.handleCreateScene)
	mux.HandleFunc("PUT "+apiPrefix+"/scenes/{id}", s.handleUpdateScene)
	mux.HandleFunc("DELETE "+apiPrefix+"/scenes/{id}", s.handleDeleteScene)
	mux.HandleFunc("POST "+apiPrefix+"/scenes/{id}/activate", s.handleActivateScene)
	mux.HandleFunc("POST "+apiPrefix+"/scenes/{id}/automation", s.handleSceneToAutomation)

	// Webhook Management Routes
	mux.HandleFunc("GET "+apiPrefix+"/webhooks", s.handleGetWebhooks)
	mux.HandleFunc("POST "+apiPrefix+"/webhooks", s.handleCreateWebhook)
	mux.HandleFunc("DELETE "+apiPrefix+"/webhooks/{id}", s.handleDeleteWebhook)
	mux.HandleFunc("GET "+apiPrefix+"/webhooks/{id}/deliveries", s.handleGetWebhookDeliveries)

	mux.HandleFunc("GET "+apiPrefix+"/events", s.handleEvents) // SSE Endpoint
	mux.HandleFunc("GET /health", s.handleHealth)

	return s.corsMiddleware(s.loggingMiddleware(mux))
}

// Start serves on the given port until Shutdown is called. It returns nil
// after a clean shutdown, including a Shutdown that happened first.
func (s *Server) Start(port int) error {
	serverAddr := fmt.Sprintf("0.0.0.0:%d", port)
	s.http.Addr = serverAddr
	s.log.Info("🚀 API Server starting", "addr", serverAddr)

	if err := s.http.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown stops accepting requests and waits for in-flight ones
func (s *Server) Shutdown(ctx context.Context) error {
	return s.http.Shutdown(ctx)
}

// Middleware
func (s *Server) corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
		if r.Method == "OPTIONS" {
			w.WriteHeader(http.StatusOK)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		requestID := r.Header.Get("X-Request-ID")
		if requestID == "" {
			requestID = uuid.NewString()
		}
		w.Header().Set("X-Request-ID", requestID)
		next.ServeHTTP(w, r)
		s.log.Debug("HTTP request", "method", r.Method, "path", r.URL.Path, "request_id", requestID, "duration", time.Since(start).String())
	})
}

// Handlers are distributed across multiple files:
// - handlers_automation.go: actions, patterns, suggestions, automations
// - handlers_devices.go: devices and scenes
// - handlers_config.go: webhooks, events stream, health check
