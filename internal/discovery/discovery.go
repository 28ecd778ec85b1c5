// ABOUTME: Stateless HTTP read-model exposing server identity and descriptors.
// ABOUTME: Queries the same registry the session handler dispatches against.

package discovery

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/2389/toolgate/internal/tools"
)

// ServerName identifies this server in the root discovery document.
const ServerName = "toolgate"

// Config holds configuration for the discovery server.
type Config struct {
	Registry *tools.Registry
	Logger   *slog.Logger
	Version  string
}

// Server answers read-only metadata queries. It holds a reference to the
// live registry, so responses never go stale.
type Server struct {
	registry *tools.Registry
	logger   *slog.Logger
	version  string
	router   *chi.Mux
}

// IndexResponse is the JSON response for GET /.
type IndexResponse struct {
	Server      string             `json:"server"`
	Version     string             `json:"version"`
	Tools       []tools.Descriptor `json:"tools"`
	Description string             `json:"description"`
}

// New creates a discovery server over the given registry.
func New(cfg Config) (*Server, error) {
	if cfg.Registry == nil {
		return nil, errors.New("registry is required")
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	version := cfg.Version
	if version == "" {
		version = "dev"
	}

	s := &Server{
		registry: cfg.Registry,
		logger:   logger,
		version:  version,
		router:   chi.NewRouter(),
	}
	s.router.Use(middleware.RequestID)
	s.router.Use(middleware.RealIP)
	s.router.Use(middleware.Recoverer)

	s.router.Get("/", s.handleIndex)
	s.router.Get("/health", s.handleHealth)
	s.router.Get("/tools/{id}", s.handleTool)

	return s, nil
}

// Router exposes the root HTTP handler for the server.
func (s *Server) Router() http.Handler { return s.router }

func (s *Server) handleIndex(w http.ResponseWriter, _ *http.Request) {
	s.writeJSON(w, http.StatusOK, IndexResponse{
		Server:      ServerName,
		Version:     s.version,
		Tools:       s.registry.List(),
		Description: "Lightweight tool-invocation server. Use the WebSocket endpoint for RPC.",
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleTool(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	tool, ok := s.registry.Get(id)
	if !ok {
		s.writeJSON(w, http.StatusNotFound, map[string]string{"error": "tool not found"})
		return
	}
	s.writeJSON(w, http.StatusOK, tool.Descriptor())
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.logger.Warn("failed to encode response", "error", err)
	}
}
