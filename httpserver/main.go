package httpserver

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"santaapi/analytics"
	"santaapi/arcs"
	"santaapi/config"
	"santaapi/logger"
	"santaapi/observability"
	"santaapi/orchestrator"
	"santaapi/tavusapi"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"
	"github.com/google/uuid"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.uber.org/zap"
)

const (
	serviceName    = "santa-api"
	serviceVersion = "1.0.0"
)

type ServerConnectProps struct {
	Logger        *logger.LogMiddleware
	Config        *config.Config
	Catalog       *arcs.Catalog
	Orchestrator  *orchestrator.Orchestrator
	Tavus         *tavusapi.Tavus
	Analytics     *analytics.Aggregator
	Observability *observability.Observability
}

type Server struct {
	logger    *logger.LogMiddleware
	cfg       *config.Config
	catalog   *arcs.Catalog
	orch      *orchestrator.Orchestrator
	tavus     *tavusapi.Tavus
	analytics *analytics.Aggregator
	router    chi.Router
}

func Connect(ctx context.Context, args ServerConnectProps) *Server {
	s := &Server{
		logger:    args.Logger,
		cfg:       args.Config,
		catalog:   args.Catalog,
		orch:      args.Orchestrator,
		tavus:     args.Tavus,
		analytics: args.Analytics,
	}

	r := chi.NewRouter()
	r.Use(requestIDMiddleware)
	r.Use(s.requestLoggerMiddleware)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"*"},
		AllowCredentials: false,
	}))

	r.Get("/", s.handleRoot)
	r.Get("/api/health", s.handleHealth)
	r.Route("/api/santa", func(r chi.Router) {
		r.Post("/start-call", s.handleStartCall)
		r.Post("/complete-call", s.handleCompleteCall)
		r.Get("/analytics", s.handleAnalytics)
		r.Get("/arcs/{duration}", s.handleArc)
	})
	r.Handle("/metrics", args.Observability.Handler())

	s.router = r
	return s
}

// Handler wraps the router with otel HTTP instrumentation.
func (s *Server) Handler() http.Handler {
	return otelhttp.NewHandler(s.router, serviceName)
}

func (s *Server) Listen(ctx context.Context) error {
	s.logger.Logger(ctx).Info("[HTTPServer] Listening", zap.String("port", s.cfg.Port))
	return http.ListenAndServe(":"+s.cfg.Port, s.Handler())
}

func requestIDMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requestID := r.Header.Get("X-Request-Id")
		if requestID == "" {
			requestID = uuid.NewString()
		}
		w.Header().Set("X-Request-Id", requestID)
		next.ServeHTTP(w, r)
	})
}

func (s *Server) requestLoggerMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		s.logger.Logger(ctx).Info("Request Received", zap.String("url", r.URL.Path), zap.String("method", r.Method))
		next.ServeHTTP(w, r)
		s.logger.Logger(ctx).Info("Request Completed", zap.String("path", r.URL.Path), zap.String("method", r.Method))
	})
}

// errorEnvelope is the one error shape every failure response uses.
type errorEnvelope struct {
	Error      bool   `json:"error"`
	StatusCode int    `json:"status_code"`
	Message    string `json:"message"`
	Timestamp  string `json:"timestamp"`
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func (s *Server) writeError(w http.ResponseWriter, status int, message string) {
	s.writeJSON(w, status, errorEnvelope{
		Error:      true,
		StatusCode: status,
		Message:    message,
		Timestamp:  time.Now().UTC().Format(time.RFC3339),
	})
}

func (s *Server) handleRoot(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]interface{}{
		"service":     serviceName,
		"version":     serviceVersion,
		"description": "Backend service for personalized Santa video calls",
		"endpoints": map[string]string{
			"POST /api/santa/start-call":    "Initialize a new Santa call",
			"POST /api/santa/complete-call": "Record call completion and analytics",
			"GET /api/santa/analytics":      "Get call analytics",
			"GET /api/health":               "Health check",
		},
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	s.writeJSON(w, http.StatusOK, map[string]interface{}{
		"status":    "healthy",
		"service":   serviceName,
		"version":   serviceVersion,
		"timestamp": time.Now().UTC().Format(time.RFC3339),
		"configuration": map[string]interface{}{
			"tavus_api_key_set":        s.cfg.TavusAPIKey != "",
			"tavus_persona_id_set":     s.cfg.TavusPersonaID != "",
			"conversation_arcs_loaded": s.catalog != nil,
			"arcs_available":           s.catalog.Durations(),
		},
		"tavus_api_reachable": s.tavus.Ping(ctx),
		"total_calls_tracked": s.analytics.StartedCount(),
	})
}

func (s *Server) handleStartCall(w http.ResponseWriter, r *http.Request) {
	var req orchestrator.StartCallRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	resp, callErr := s.orch.StartCall(r.Context(), req)
	if callErr != nil {
		s.writeError(w, callErr.Status, callErr.Message)
		return
	}
	s.writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleCompleteCall(w http.ResponseWriter, r *http.Request) {
	var req orchestrator.CompleteCallRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	resp, callErr := s.orch.CompleteCall(r.Context(), req)
	if callErr != nil {
		s.writeError(w, callErr.Status, callErr.Message)
		return
	}
	s.writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleAnalytics(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, s.analytics.Summarize())
}

func (s *Server) handleArc(w http.ResponseWriter, r *http.Request) {
	duration, ok := arcs.ParseDuration(chi.URLParam(r, "duration"))
	if !ok {
		s.writeError(w, http.StatusBadRequest, "Duration must be '5min' or '10min'")
		return
	}

	arc, ok := s.catalog.Arc(duration)
	if !ok {
		s.writeError(w, http.StatusNotFound, "Arc not found")
		return
	}
	timing, _ := s.catalog.Timing(duration)

	s.writeJSON(w, http.StatusOK, map[string]interface{}{
		"duration":          string(duration),
		"arc":               arc,
		"timing_guidelines": timing,
	})
}
