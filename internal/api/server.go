// Package api exposes the formatting entry point and the run history over HTTP.
package api

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"

	"github.com/yangwenmai/scanforge/internal/classifier"
	"github.com/yangwenmai/scanforge/internal/orchestrator"
	"github.com/yangwenmai/scanforge/internal/store"
	"github.com/yangwenmai/scanforge/internal/validator"
)

// defaultMaxRequestBody is the request body limit when none is configured (1 MB).
const defaultMaxRequestBody int64 = 1 << 20

// Formatter is the pipeline behind the API.
type Formatter interface {
	Format(ctx context.Context, req orchestrator.Request) *orchestrator.Result
	ExecuteStage(ctx context.Context, req orchestrator.StageRequest) (*orchestrator.StageResult, error)
}

// Server holds the HTTP handlers and dependencies.
type Server struct {
	formatter  Formatter
	store      store.RunRepository
	templates  []classifier.Template
	checklist  []validator.Check
	version    string
	corsOrigin string
	maxBody    int64
	logger     *slog.Logger
	mux        *http.ServeMux
}

// Option configures a Server.
type Option func(*Server)

// WithCORSOrigin sets the allowed CORS origin.
func WithCORSOrigin(origin string) Option {
	return func(s *Server) {
		if origin != "" {
			s.corsOrigin = origin
		}
	}
}

// WithMaxBody sets the request body limit. Scanner code travels inside the
// JSON body, so this bounds the accepted source size.
func WithMaxBody(n int64) Option {
	return func(s *Server) {
		if n > 0 {
			s.maxBody = n
		}
	}
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(s *Server) { s.logger = l }
}

// New creates a new API server.
func New(f Formatter, st store.RunRepository, opts ...Option) *Server {
	srv := &Server{
		formatter:  f,
		store:      st,
		templates:  classifier.New().Templates(),
		checklist:  validator.Checklist(),
		version:    validator.ChecklistVersion,
		corsOrigin: "*",
		maxBody:    defaultMaxRequestBody,
		logger:     slog.Default(),
		mux:        http.NewServeMux(),
	}
	for _, opt := range opts {
		opt(srv)
	}
	srv.routes()
	return srv
}

// Handler returns the root http.Handler with middleware applied.
func (s *Server) Handler() http.Handler {
	return s.cors(s.limitBody(jsonContent(s.mux)))
}

func (s *Server) routes() {
	s.mux.HandleFunc("POST /api/format", s.handleFormat)
	s.mux.HandleFunc("POST /api/stages/{name}", s.handleStage)
	s.mux.HandleFunc("GET /api/workflows", s.handleListWorkflows)
	s.mux.HandleFunc("GET /api/workflows/{id}", s.handleGetWorkflow)
	s.mux.HandleFunc("DELETE /api/workflows/{id}", s.handleDeleteWorkflow)
	s.mux.HandleFunc("GET /api/stats", s.handleStats)
	s.mux.HandleFunc("GET /api/templates", s.handleTemplates)
	s.mux.HandleFunc("GET /api/checklist", s.handleChecklist)
	s.mux.HandleFunc("GET /healthz", s.handleHealth)
}

// ---------------------------------------------------------------------------
// Middleware
// ---------------------------------------------------------------------------

func (s *Server) cors(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", s.corsOrigin)
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// limitBody restricts the request body to maxBody bytes.
func (s *Server) limitBody(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		r.Body = http.MaxBytesReader(w, r.Body, s.maxBody)
		next.ServeHTTP(w, r)
	})
}

func jsonContent(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		next.ServeHTTP(w, r)
	})
}

// ---------------------------------------------------------------------------
// Response helpers
// ---------------------------------------------------------------------------

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

func splitComma(s string) []string {
	if s == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}
