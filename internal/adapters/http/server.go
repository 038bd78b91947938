// Package http exposes the dialogue engine over a small JSON API.
package http

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/jmorenobl/soni-sub003/internal/logging"
	"github.com/jmorenobl/soni-sub003/pkg/domain"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Engine is the part of the facade the HTTP surface needs.
type Engine interface {
	ProcessTurn(ctx context.Context, sessionID, userText string) (string, error)
	ProcessCommands(ctx context.Context, sessionID string, cmds []domain.Command) (string, error)
	State(ctx context.Context, sessionID string) (*domain.State, error)
	EndSession(ctx context.Context, sessionID string) error
	Flows() []string
}

// Server routes the JSON API onto an Engine.
type Server struct {
	engine Engine
	logger *slog.Logger
}

// Option configures the Server.
type Option func(*Server)

// WithLogger sets the request logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Server) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// NewHandler builds the HTTP handler. When gatherer is non-nil a
// /metrics endpoint is mounted for it.
func NewHandler(engine Engine, gatherer prometheus.Gatherer, opts ...Option) http.Handler {
	server := &Server{
		engine: engine,
		logger: logging.NewNop(),
	}
	for _, opt := range opts {
		opt(server)
	}

	r := chi.NewRouter()
	r.Use(middleware.Recoverer)

	r.Get("/healthz", server.health)
	r.Get("/flows", server.listFlows)
	r.Route("/sessions/{sessionID}", func(r chi.Router) {
		r.Post("/turns", server.postTurn)
		r.Post("/commands", server.postCommands)
		r.Get("/", server.getSession)
		r.Delete("/", server.deleteSession)
	})
	if gatherer != nil {
		r.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))
	}

	return r
}

// TurnRequest is the body of POST /sessions/{id}/turns.
type TurnRequest struct {
	Text string `json:"text"`
}

// TurnResponse is returned by the turns and commands endpoints.
type TurnResponse struct {
	Reply   string              `json:"reply"`
	Pending *domain.PendingTask `json:"pending,omitempty"`
}

func (s *Server) postTurn(w http.ResponseWriter, r *http.Request) {
	sessionID := chi.URLParam(r, "sessionID")

	var body TurnRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	reply, err := s.engine.ProcessTurn(r.Context(), sessionID, body.Text)
	if err != nil {
		s.logger.Error("turn failed", "session_id", sessionID, "err", err)
		http.Error(w, fmt.Sprintf("Turn error: %v", err), http.StatusInternalServerError)
		return
	}

	s.writeTurnResponse(w, r, sessionID, reply)
}

func (s *Server) postCommands(w http.ResponseWriter, r *http.Request) {
	sessionID := chi.URLParam(r, "sessionID")

	var records []map[string]any
	if err := json.NewDecoder(r.Body).Decode(&records); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	cmds := make([]domain.Command, 0, len(records))
	for _, record := range records {
		cmd, err := domain.DecodeCommand(record)
		if err != nil {
			http.Error(w, fmt.Sprintf("Invalid command: %v", err), http.StatusBadRequest)
			return
		}
		cmds = append(cmds, cmd)
	}

	reply, err := s.engine.ProcessCommands(r.Context(), sessionID, cmds)
	if err != nil {
		s.logger.Error("commands failed", "session_id", sessionID, "err", err)
		http.Error(w, fmt.Sprintf("Turn error: %v", err), http.StatusInternalServerError)
		return
	}

	s.writeTurnResponse(w, r, sessionID, reply)
}

func (s *Server) writeTurnResponse(w http.ResponseWriter, r *http.Request, sessionID, reply string) {
	resp := TurnResponse{Reply: reply}
	if state, err := s.engine.State(r.Context(), sessionID); err == nil {
		resp.Pending = state.Pending
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(resp); err != nil {
		s.logger.Error("response encode failed", "err", err)
	}
}

func (s *Server) getSession(w http.ResponseWriter, r *http.Request) {
	sessionID := chi.URLParam(r, "sessionID")

	state, err := s.engine.State(r.Context(), sessionID)
	if err != nil {
		if errors.Is(err, domain.ErrSessionNotFound) {
			http.Error(w, "Session not found", http.StatusNotFound)
			return
		}
		http.Error(w, fmt.Sprintf("Load error: %v", err), http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(state); err != nil {
		s.logger.Error("response encode failed", "err", err)
	}
}

func (s *Server) deleteSession(w http.ResponseWriter, r *http.Request) {
	sessionID := chi.URLParam(r, "sessionID")

	if err := s.engine.EndSession(r.Context(), sessionID); err != nil {
		http.Error(w, fmt.Sprintf("Delete error: %v", err), http.StatusInternalServerError)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) listFlows(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(map[string][]string{"flows": s.engine.Flows()}); err != nil {
		s.logger.Error("response encode failed", "err", err)
	}
}

func (s *Server) health(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
}
