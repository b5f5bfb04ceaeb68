// Package http exposes the workflow bridge over HTTP: a start endpoint, a
// per-session SSE event stream, and the out-of-band approval endpoint.
package http

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/docweave/docweave/internal/logging"
	"github.com/docweave/docweave/pkg/bridge"
	"github.com/docweave/docweave/pkg/domain"
)

// Server serves the workflow API over one bridge.
type Server struct {
	bridge *bridge.Bridge
	logger *slog.Logger
}

// Option configures the Server.
type Option func(*Server)

// WithLogger sets the structured logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Server) {
		s.logger = logger
	}
}

// NewHandler builds the HTTP handler for the workflow API. The metrics
// registry may be nil, in which case /metrics is not mounted.
func NewHandler(b *bridge.Bridge, registry *prometheus.Registry, opts ...Option) http.Handler {
	s := &Server{bridge: b, logger: logging.NewNop()}
	for _, opt := range opts {
		opt(s)
	}

	r := chi.NewRouter()
	r.Use(middleware.Recoverer)

	r.Get("/health", s.health)
	if registry != nil {
		r.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))
	}

	r.Route("/api/workflow", func(r chi.Router) {
		r.Post("/start", s.startWorkflow)
		r.Post("/approval", s.submitApproval)
		r.Get("/{sessionID}/events", s.streamEvents)
		r.Get("/{sessionID}/status", s.sessionStatus)
	})

	return r
}

type startRequest struct {
	DocumentURI   string `json:"document_uri"`
	DocumentTitle string `json:"document_title,omitempty"`
	PageCount     int    `json:"page_count,omitempty"`
}

type startResponse struct {
	SessionID string `json:"session_id"`
}

type approvalRequest struct {
	RequestID string `json:"request_id"`
	Approved  bool   `json:"approved"`
	Comment   string `json:"comment,omitempty"`
}

type errorResponse struct {
	Error string `json:"error"`
}

func (s *Server) health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// startWorkflow handles POST /api/workflow/start.
func (s *Server) startWorkflow(w http.ResponseWriter, r *http.Request) {
	var body startRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid request body"})
		return
	}
	if body.DocumentURI == "" {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "document_uri is required"})
		return
	}

	input := domain.DocInput{
		DocumentURI:   body.DocumentURI,
		DocumentTitle: body.DocumentTitle,
		PageCount:     body.PageCount,
	}
	sessionID, err := s.bridge.OpenSession(r.Context(), input)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, errorResponse{Error: err.Error()})
		return
	}

	s.logger.Info("workflow started", "session_id", sessionID, "document_uri", body.DocumentURI)
	writeJSON(w, http.StatusAccepted, startResponse{SessionID: sessionID})
}

// submitApproval handles POST /api/workflow/approval. The decision is routed
// by request ID alone; an unknown or already answered ID is a 404.
func (s *Server) submitApproval(w http.ResponseWriter, r *http.Request) {
	var body approvalRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid request body"})
		return
	}
	if body.RequestID == "" {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "request_id is required"})
		return
	}

	sessionID, ok := s.bridge.ResolveRequest(body.RequestID)
	if !ok {
		writeJSON(w, http.StatusNotFound, errorResponse{Error: "no pending approval request with that id"})
		return
	}

	err := s.bridge.SubmitAnswer(sessionID, domain.ApprovalDecision{
		RequestID: body.RequestID,
		Approved:  body.Approved,
		Comment:   body.Comment,
	})
	switch {
	case errors.Is(err, domain.ErrRequestNotFound), errors.Is(err, domain.ErrSessionNotFound):
		writeJSON(w, http.StatusNotFound, errorResponse{Error: "no pending approval request with that id"})
		return
	case err != nil:
		writeJSON(w, http.StatusInternalServerError, errorResponse{Error: err.Error()})
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"status": "accepted"})
}

// sessionStatus handles GET /api/workflow/{sessionID}/status.
func (s *Server) sessionStatus(w http.ResponseWriter, r *http.Request) {
	sessionID := chi.URLParam(r, "sessionID")

	status, err := s.bridge.Status(sessionID)
	if errors.Is(err, domain.ErrSessionNotFound) {
		writeJSON(w, http.StatusNotFound, errorResponse{Error: "session not found"})
		return
	}
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, errorResponse{Error: err.Error()})
		return
	}

	writeJSON(w, http.StatusOK, status)
}

// streamEvents handles GET /api/workflow/{sessionID}/events as an SSE stream.
// The stream ends after the session's terminal record.
func (s *Server) streamEvents(w http.ResponseWriter, r *http.Request) {
	sessionID := chi.URLParam(r, "sessionID")

	events, err := s.bridge.Events(sessionID)
	if errors.Is(err, domain.ErrSessionNotFound) {
		writeJSON(w, http.StatusNotFound, errorResponse{Error: "session not found"})
		return
	}
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, errorResponse{Error: err.Error()})
		return
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming not supported", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	flusher.Flush()

	for {
		select {
		case <-r.Context().Done():
			return
		case rec, ok := <-events:
			if !ok {
				return
			}
			data, err := json.Marshal(rec.Payload())
			if err != nil {
				s.logger.Error("failed to encode event", "session_id", sessionID, "err", err)
				continue
			}
			fmt.Fprintf(w, "event: %s\ndata: %s\n\n", rec.Type, data)
			flusher.Flush()
		}
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
