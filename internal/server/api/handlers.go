package api

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/systemshift/polkg/internal/pipeline"
	"github.com/systemshift/polkg/internal/report"
	"github.com/systemshift/polkg/internal/server/graph"
)

// maxIngestBytes caps the size of an ingest request body
const maxIngestBytes = 1 << 20

// Runner runs one extract-and-write pass
type Runner interface {
	Run(ctx context.Context, text string) (*pipeline.Summary, error)
}

// Server holds the HTTP server dependencies
type Server struct {
	runner  Runner
	source  report.Source
	metrics http.Handler
	log     *zap.Logger
}

// New creates a new API server. metrics may be nil.
func New(runner Runner, source report.Source, metrics http.Handler, log *zap.Logger) *Server {
	if log == nil {
		log = zap.NewNop()
	}
	return &Server{runner: runner, source: source, metrics: metrics, log: log}
}

// Router builds the chi router with the standard middleware stack
func (s *Server) Router() chi.Router {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)

	r.Get("/health", s.HealthCheck)
	if s.metrics != nil {
		r.Handle("/metrics", s.metrics)
	}

	r.Route("/api", func(r chi.Router) {
		r.Post("/ingest", s.Ingest)
		r.Get("/nodes", s.ListNodes)
		r.Get("/relationships", s.ListRelationships)
	})
	return r
}

// HealthCheck handles GET /health
func (s *Server) HealthCheck(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"status": "ok",
	})
}

// IngestRequest is the request body for ingesting text
type IngestRequest struct {
	Text string `json:"text"`
}

// Ingest handles POST /api/ingest. An extraction failure still answers 200;
// the summary carries extraction_error.
func (s *Server) Ingest(w http.ResponseWriter, r *http.Request) {
	var req IngestRequest
	if err := json.NewDecoder(io.LimitReader(r.Body, maxIngestBytes)).Decode(&req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	if strings.TrimSpace(req.Text) == "" {
		http.Error(w, "text is required", http.StatusBadRequest)
		return
	}

	sum, err := s.runner.Run(r.Context(), req.Text)
	if err != nil {
		s.log.Error("ingest failed",
			zap.String("request_id", middleware.GetReqID(r.Context())),
			zap.Error(err),
		)
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	writeJSON(w, http.StatusOK, sum)
}

// ListNodes handles GET /api/nodes
func (s *Server) ListNodes(w http.ResponseWriter, r *http.Request) {
	nodes, err := graph.Collect(s.source.Nodes(r.Context()))
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"nodes": nodes,
		"count": len(nodes),
	})
}

// ListRelationships handles GET /api/relationships
func (s *Server) ListRelationships(w http.ResponseWriter, r *http.Request) {
	edges, err := graph.Collect(s.source.Edges(r.Context()))
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"relationships": edges,
		"count":         len(edges),
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
