// Package api is the HTTP face of the coordination subsystem: client
// registration, display names, session listing, the quiz catalog and the
// administrative purge. It holds no business logic of its own.
package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"quizhub/internal/quiz"
	"quizhub/internal/registry"
	"quizhub/internal/store"
	"quizhub/pkg/types"
)

// Session-scoping headers for quiz fetches.
const (
	HeaderClient  = "X-Client"
	HeaderSession = "X-Session"
)

// Server routes HTTP requests to the registry, the session store and the
// quiz catalog.
type Server struct {
	registry *registry.Registry
	store    *store.Store
	catalog  quiz.Catalog
	router   chi.Router
	log      zerolog.Logger
}

// NewServer builds the router over the given components.
func NewServer(reg *registry.Registry, st *store.Store, catalog quiz.Catalog, log zerolog.Logger) *Server {
	s := &Server{
		registry: reg,
		store:    st,
		catalog:  catalog,
		log:      log.With().Str("component", "api").Logger(),
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(middleware.SetHeader("Content-Type", "application/json"))

	r.Route("/api", func(r chi.Router) {
		r.Post("/register", s.handleRegister)
		r.Post("/username", s.handleUsername)
		r.Get("/sessions", s.handleListSessions)
		r.Get("/quizzes", s.handleListQuizzes)
		r.Get("/quiz/{id}", s.handleGetQuiz)
		r.Post("/admin/purge", s.handlePurge)
	})
	r.Get("/health", s.handleHealth)
	r.Method(http.MethodGet, "/metrics", promhttp.Handler())

	s.router = r
	return s
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

// Router exposes the chi router so the app can mount the websocket
// endpoint next to the API.
func (s *Server) Router() chi.Router { return s.router }

type registerRequest struct {
	ClientID     string `json:"clientId"`
	ConnectionID string `json:"connectionId"`
}

// handleRegister binds a durable client id to a live connection id. The
// call is idempotent and makes no assumption about whether the transport
// connect event has been processed yet; it may legitimately arrive first.
func (s *Server) handleRegister(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.sendError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if req.ClientID == "" || req.ConnectionID == "" {
		s.sendError(w, http.StatusBadRequest, types.ErrMissingField.Error()+": clientId, connectionId")
		return
	}
	if !types.IsValidClientID(req.ClientID) {
		s.sendError(w, http.StatusBadRequest, types.ErrInvalidClientID.Error())
		return
	}

	client := s.registry.Register(req.ConnectionID, req.ClientID)
	// A re-registration after reconnect also revives session presence.
	s.store.SetPresence(req.ClientID, true)

	s.sendJSON(w, http.StatusOK, client)
}

type usernameRequest struct {
	ClientID string `json:"clientId"`
	Username string `json:"username"`
}

func (s *Server) handleUsername(w http.ResponseWriter, r *http.Request) {
	var req usernameRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.sendError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if req.ClientID == "" || req.Username == "" {
		s.sendError(w, http.StatusBadRequest, types.ErrMissingField.Error()+": clientId, username")
		return
	}
	if !types.IsValidDisplayName(req.Username) {
		s.sendError(w, http.StatusBadRequest, types.ErrInvalidDisplayName.Error())
		return
	}

	client, err := s.registry.SetDisplayName(req.ClientID, req.Username)
	if err != nil {
		s.sendError(w, http.StatusNotFound, "client not found")
		return
	}
	s.sendJSON(w, http.StatusOK, client)
}

func (s *Server) handleListSessions(w http.ResponseWriter, r *http.Request) {
	s.sendJSON(w, http.StatusOK, s.store.ListActive())
}

func (s *Server) handleListQuizzes(w http.ResponseWriter, r *http.Request) {
	quizzes, err := s.catalog.ListQuizzes(r.Context())
	if err != nil {
		s.log.Error().Err(err).Msg("quiz listing failed")
		s.sendError(w, http.StatusInternalServerError, "failed to list quizzes")
		return
	}
	if quizzes == nil {
		quizzes = []types.QuizSummary{}
	}
	s.sendJSON(w, http.StatusOK, quizzes)
}

// handleGetQuiz serves quiz content, scoped to an active session: the
// caller identifies itself and its session via headers, and a quiz is
// only handed out while that session is alive.
func (s *Server) handleGetQuiz(w http.ResponseWriter, r *http.Request) {
	clientID := r.Header.Get(HeaderClient)
	sessionID := r.Header.Get(HeaderSession)
	if clientID == "" || sessionID == "" {
		s.sendError(w, http.StatusBadRequest, "X-Client and X-Session headers are required")
		return
	}
	if !s.store.SessionExists(sessionID) {
		s.sendError(w, http.StatusNotFound, "session not found")
		return
	}

	q, err := s.catalog.GetQuiz(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		if errors.Is(err, types.ErrQuizNotFound) {
			s.sendError(w, http.StatusNotFound, "quiz not found")
			return
		}
		s.log.Error().Err(err).Msg("quiz lookup failed")
		s.sendError(w, http.StatusInternalServerError, "failed to load quiz")
		return
	}
	s.sendJSON(w, http.StatusOK, q)
}

// handlePurge clears all sessions and client registrations. Connections
// stay up; clients re-register on their next reconcile pass.
func (s *Server) handlePurge(w http.ResponseWriter, r *http.Request) {
	s.store.PurgeAll()
	s.registry.PurgeAll()
	s.log.Info().Msg("server state purged")
	s.sendJSON(w, http.StatusOK, map[string]string{"status": "purged"})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.sendJSON(w, http.StatusOK, map[string]any{
		"status":    "healthy",
		"timestamp": time.Now(),
		"registry":  s.registry.Stats(),
		"sessions":  s.store.Stats(),
	})
}

func (s *Server) sendJSON(w http.ResponseWriter, status int, payload any) {
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		s.log.Error().Err(err).Msg("response encoding failed")
	}
}

type errorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

func (s *Server) sendError(w http.ResponseWriter, status int, message string) {
	s.sendJSON(w, status, errorResponse{
		Error:   http.StatusText(status),
		Message: message,
	})
}
