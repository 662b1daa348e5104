// Package server exposes the HTTP invocation surface consumed by the
// external scheduler: a manual ingestion trigger behind a shared cron
// secret, plus a liveness probe.
package server

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"crashfeed/internal/domain"
)

// Runner defines the interface for ingestion runs.
type Runner interface {
	Run(ctx context.Context, limit int) (*domain.RunSummary, error)
}

// Pinger reports storage reachability for the liveness probe.
type Pinger interface {
	PingContext(ctx context.Context) error
}

type Config struct {
	Environment string
	CronSecret  string
}

type Server struct {
	runner      Runner
	pinger      Pinger
	environment string
	cronSecret  string
	logger      *slog.Logger
}

func New(cfg Config, runner Runner, pinger Pinger, logger *slog.Logger) *Server {
	return &Server{
		runner:      runner,
		pinger:      pinger,
		environment: cfg.Environment,
		cronSecret:  cfg.CronSecret,
		logger:      logger.With("component", "server"),
	}
}

func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/ingest/run", s.handleRun)
	mux.HandleFunc("GET /healthz", s.handleHealth)
	return mux
}

type runResponse struct {
	OK         bool   `json:"ok"`
	DurationMS int64  `json:"duration_ms"`
	Error      string `json:"error,omitempty"`
	*domain.RunSummary
}

// handleRun triggers one ingestion run. The run itself never turns per-item
// failures into an HTTP error; only auth and misconfiguration do.
func (s *Server) handleRun(w http.ResponseWriter, r *http.Request) {
	if !s.authorize(w, r) {
		return
	}

	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 0 {
			writeJSON(w, http.StatusBadRequest, runResponse{Error: "invalid limit"})
			return
		}
		limit = parsed
	}

	summary, err := s.runner.Run(r.Context(), limit)
	if err != nil {
		s.logger.Error("ingestion run failed", "error", err)
		writeJSON(w, http.StatusInternalServerError, runResponse{Error: err.Error()})
		return
	}

	writeJSON(w, http.StatusOK, runResponse{
		OK:         true,
		DurationMS: summary.Duration.Milliseconds(),
		RunSummary: summary,
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if s.pinger != nil {
		if err := s.pinger.PingContext(r.Context()); err != nil {
			writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "degraded", "error": err.Error()})
			return
		}
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// authorize enforces the bearer-token check. The secret is required in
// production; outside production an unset secret disables the check so
// local runs stay frictionless.
func (s *Server) authorize(w http.ResponseWriter, r *http.Request) bool {
	if s.cronSecret == "" {
		if s.environment != "production" {
			return true
		}
		s.logger.Error("cron secret not configured in production")
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "server misconfigured"})
		return false
	}

	token := bearerToken(r)
	if token == "" {
		s.unauthorized(w, "missing bearer token")
		return false
	}
	if subtle.ConstantTimeCompare([]byte(token), []byte(s.cronSecret)) != 1 {
		s.logger.Warn("invalid cron token", "remote_addr", r.RemoteAddr)
		s.unauthorized(w, "invalid token")
		return false
	}

	return true
}

func bearerToken(r *http.Request) string {
	auth := r.Header.Get("Authorization")
	if strings.HasPrefix(auth, "Bearer ") {
		return strings.TrimPrefix(auth, "Bearer ")
	}
	return ""
}

func (s *Server) unauthorized(w http.ResponseWriter, message string) {
	w.Header().Set("WWW-Authenticate", `Bearer realm="ingest"`)
	writeJSON(w, http.StatusUnauthorized, map[string]string{"error": message})
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}
