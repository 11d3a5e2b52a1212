package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"
	"go.uber.org/zap"

	"github.com/wricardo/gridiron-odds/matchup/protocol"
	"github.com/wricardo/gridiron-odds/matchup/service"
	"github.com/wricardo/gridiron-odds/matchup/session"
	"github.com/wricardo/gridiron-odds/matchup/table"
	"github.com/wricardo/gridiron-odds/transport/websocket"
)

// Server represents the REST API server
type Server struct {
	service service.MatchupService
	hub     *websocket.Hub
	router  *mux.Router
	logger  *zap.Logger

	metrics http.Handler
	mcp     http.Handler
}

// Option configures a Server.
type Option func(*Server)

// WithLogger sets the request logger.
func WithLogger(l *zap.Logger) Option {
	return func(s *Server) { s.logger = l }
}

// WithMetricsHandler mounts h on /metrics.
func WithMetricsHandler(h http.Handler) Option {
	return func(s *Server) { s.metrics = h }
}

// WithMCPHandler mounts h on /mcp.
func WithMCPHandler(h http.Handler) Option {
	return func(s *Server) { s.mcp = h }
}

// NewServer creates a new API server
func NewServer(svc service.MatchupService, hub *websocket.Hub, opts ...Option) *Server {
	s := &Server{
		service: svc,
		hub:     hub,
		router:  mux.NewRouter(),
		logger:  zap.NewNop(),
	}
	for _, opt := range opts {
		opt(s)
	}

	s.setupRoutes()
	return s
}

// setupRoutes configures all API routes
func (s *Server) setupRoutes() {
	api := s.router.PathPrefix("/api").Subrouter()

	api.HandleFunc("/health", s.handleHealth).Methods("GET")
	api.HandleFunc("/status", s.handleStatus).Methods("GET")
	api.HandleFunc("/teams", s.handleListTeams).Methods("GET")

	// Page management
	api.HandleFunc("/pages", s.handleCreatePage).Methods("POST")
	api.HandleFunc("/pages", s.handleListPages).Methods("GET")
	api.HandleFunc("/pages/{id}", s.handleGetPage).Methods("GET")
	api.HandleFunc("/pages/{id}", s.handleDeletePage).Methods("DELETE")

	// Prediction view
	api.HandleFunc("/pages/{id}/prediction", s.handlePredict).Methods("POST")
	api.HandleFunc("/pages/{id}/prediction", s.handleGetPrediction).Methods("GET")
	api.HandleFunc("/pages/{id}/prediction", s.handleResetPrediction).Methods("DELETE")

	// History view
	api.HandleFunc("/pages/{id}/history", s.handleGetHistory).Methods("GET")
	api.HandleFunc("/pages/{id}/history", s.handleCloseHistory).Methods("DELETE")
	api.HandleFunc("/pages/{id}/history/open", s.handleOpenHistory).Methods("POST")
	api.HandleFunc("/pages/{id}/history/fetch", s.handleFetchHistory).Methods("POST")
	api.HandleFunc("/pages/{id}/history/sort", s.handleSortHistory).Methods("POST")

	if s.hub != nil {
		s.router.HandleFunc("/ws", s.handleWebSocket)
	}
	if s.metrics != nil {
		s.router.Handle("/metrics", s.metrics)
	}
	if s.mcp != nil {
		s.router.PathPrefix("/mcp").Handler(s.mcp)
	}
}

// ServeHTTP implements http.Handler
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

// Response helpers
func respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func respondError(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, map[string]string{"error": message})
}

// respondServiceError maps service errors to HTTP statuses.
func (s *Server) respondServiceError(w http.ResponseWriter, r *http.Request, err error) {
	status := statusFor(err)
	if status >= http.StatusInternalServerError && status != http.StatusServiceUnavailable {
		s.logger.Error("request failed", zap.String("path", r.URL.Path), zap.Error(err))
	}
	respondError(w, status, err.Error())
}

func statusFor(err error) int {
	var ve *session.ValidationError
	switch {
	case errors.As(err, &ve):
		return http.StatusUnprocessableEntity
	case errors.Is(err, session.ErrPageNotFound):
		return http.StatusNotFound
	case errors.Is(err, session.ErrRequestInFlight),
		errors.Is(err, session.ErrPageAlreadyExists),
		errors.Is(err, session.ErrViewClosed),
		errors.Is(err, session.ErrNoDataset):
		return http.StatusConflict
	case errors.Is(err, session.ErrInvalidPageID),
		errors.Is(err, table.ErrColumnOutOfRange):
		return http.StatusBadRequest
	case errors.Is(err, session.ErrNotConnected),
		errors.Is(err, websocket.ErrNotConnected):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func decodeBody(r *http.Request, dst interface{}) error {
	if r.Body == nil || r.ContentLength == 0 {
		return nil
	}
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		return fmt.Errorf("invalid request body: %w", err)
	}
	return nil
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]string{
		"status": "healthy",
	})
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, s.service.Status(r.Context()))
}

func (s *Server) handleListTeams(w http.ResponseWriter, r *http.Request) {
	teams := s.service.ListTeams(r.Context())
	respondJSON(w, http.StatusOK, map[string]interface{}{
		"count": len(teams),
		"teams": teams,
	})
}

// Page Handlers

func (s *Server) handleCreatePage(w http.ResponseWriter, r *http.Request) {
	var req struct {
		ID string `json:"id,omitempty"`
	}
	if err := decodeBody(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	page, err := s.service.CreatePage(r.Context(), req.ID)
	if err != nil {
		s.respondServiceError(w, r, err)
		return
	}

	respondJSON(w, http.StatusCreated, page)
}

func (s *Server) handleListPages(w http.ResponseWriter, r *http.Request) {
	pages := s.service.ListPages(r.Context())

	if limitStr := r.URL.Query().Get("limit"); limitStr != "" {
		if l, err := strconv.Atoi(limitStr); err == nil && l > 0 && l < len(pages) {
			pages = pages[:l]
		}
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"count": len(pages),
		"pages": pages,
	})
}

func (s *Server) handleGetPage(w http.ResponseWriter, r *http.Request) {
	page, err := s.service.GetPage(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		s.respondServiceError(w, r, err)
		return
	}

	respondJSON(w, http.StatusOK, page)
}

func (s *Server) handleDeletePage(w http.ResponseWriter, r *http.Request) {
	pageID := mux.Vars(r)["id"]

	if err := s.service.DeletePage(r.Context(), pageID); err != nil {
		s.respondServiceError(w, r, err)
		return
	}

	respondJSON(w, http.StatusOK, map[string]string{
		"message": fmt.Sprintf("Page %s deleted", pageID),
	})
}

// Prediction Handlers

func (s *Server) handlePredict(w http.ResponseWriter, r *http.Request) {
	var q session.PredictionQuery
	if err := json.NewDecoder(r.Body).Decode(&q); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	snap, err := s.service.Predict(r.Context(), mux.Vars(r)["id"], q)
	if err != nil {
		s.respondServiceError(w, r, err)
		return
	}

	respondJSON(w, http.StatusAccepted, snap)
}

func (s *Server) handleGetPrediction(w http.ResponseWriter, r *http.Request) {
	snap, err := s.service.Prediction(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		s.respondServiceError(w, r, err)
		return
	}

	respondJSON(w, http.StatusOK, snap)
}

func (s *Server) handleResetPrediction(w http.ResponseWriter, r *http.Request) {
	pageID := mux.Vars(r)["id"]
	if err := s.service.ResetPrediction(r.Context(), pageID); err != nil {
		s.respondServiceError(w, r, err)
		return
	}

	snap, err := s.service.Prediction(r.Context(), pageID)
	if err != nil {
		s.respondServiceError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, snap)
}

// History Handlers

func (s *Server) handleGetHistory(w http.ResponseWriter, r *http.Request) {
	snap, err := s.service.History(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		s.respondServiceError(w, r, err)
		return
	}

	if limitStr := r.URL.Query().Get("limit"); limitStr != "" && snap.Dataset != nil {
		if l, err := strconv.Atoi(limitStr); err == nil && l > 0 {
			limited := snap.Dataset.Limit(l)
			snap.Dataset = &limited
		}
	}

	respondJSON(w, http.StatusOK, snap)
}

func (s *Server) handleOpenHistory(w http.ResponseWriter, r *http.Request) {
	var opts session.HistoryOpenOptions
	if err := decodeBody(r, &opts); err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	snap, err := s.service.OpenHistory(r.Context(), mux.Vars(r)["id"], opts)
	if err != nil {
		s.respondServiceError(w, r, err)
		return
	}

	status := http.StatusOK
	if snap.Loading {
		status = http.StatusAccepted
	}
	respondJSON(w, status, snap)
}

func (s *Server) handleFetchHistory(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Team   string `json:"team,omitempty"`
		Season int    `json:"season,omitempty"`
	}
	if err := decodeBody(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	snap, err := s.service.FetchHistory(r.Context(), mux.Vars(r)["id"], protocol.Scope(req.Team), req.Season)
	if err != nil {
		s.respondServiceError(w, r, err)
		return
	}

	respondJSON(w, http.StatusAccepted, snap)
}

func (s *Server) handleSortHistory(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Column *int `json:"column"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Column == nil {
		respondError(w, http.StatusBadRequest, "column is required")
		return
	}

	snap, err := s.service.SortHistory(r.Context(), mux.Vars(r)["id"], *req.Column)
	if err != nil {
		s.respondServiceError(w, r, err)
		return
	}

	respondJSON(w, http.StatusOK, snap)
}

func (s *Server) handleCloseHistory(w http.ResponseWriter, r *http.Request) {
	pageID := mux.Vars(r)["id"]
	if err := s.service.CloseHistory(r.Context(), pageID); err != nil {
		s.respondServiceError(w, r, err)
		return
	}

	snap, err := s.service.History(r.Context(), pageID)
	if err != nil {
		s.respondServiceError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, snap)
}

// WebSocket Handler

func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	pageID := r.URL.Query().Get("page")
	if pageID == "" {
		http.Error(w, "page parameter required", http.StatusBadRequest)
		return
	}

	page, err := s.service.GetPage(r.Context(), pageID)
	if err != nil {
		http.Error(w, "Invalid page", http.StatusNotFound)
		return
	}

	s.hub.ServeWS(w, r, page.ID)
}
