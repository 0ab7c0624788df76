// Package server exposes the quoting engine over HTTP.
package server

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"quote-engine/internal/common/config"
	"quote-engine/internal/common/errors"
	"quote-engine/internal/common/logger"
	"quote-engine/internal/orchestrator"
	"quote-engine/internal/rating"
	"quote-engine/internal/session"
)

// Server hosts the conversation API, the rate-table admin endpoint, and the
// operational endpoints.
type Server struct {
	cfg        config.ServerConfig
	orch       *orchestrator.Orchestrator
	snapshot   *rating.Snapshot
	tablePath  string
	store      session.Store
	logger     logger.Logger
	httpServer *http.Server
}

func New(cfg config.ServerConfig, orch *orchestrator.Orchestrator, snapshot *rating.Snapshot, tablePath string, store session.Store, log logger.Logger) *Server {
	s := &Server{
		cfg:       cfg,
		orch:      orch,
		snapshot:  snapshot,
		tablePath: tablePath,
		store:     store,
		logger:    log.WithFields(map[string]interface{}{"component": "server"}),
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(30 * time.Second))

	r.Get("/healthz", s.handleHealth)
	r.Method(http.MethodGet, "/metrics", promhttp.Handler())

	r.Route("/api/sessions/{sessionID}", func(r chi.Router) {
		r.Post("/turns", s.handleTurn)
		r.Post("/abandon", s.handleAbandon)
		r.Get("/", s.handleGetSession)
	})

	r.Post("/api/admin/ratetables/reload", s.handleReloadTables)

	s.httpServer = &http.Server{
		Addr:         cfg.Address,
		Handler:      r,
		ReadTimeout:  time.Duration(cfg.ReadTimeout) * time.Millisecond,
		WriteTimeout: time.Duration(cfg.WriteTimeout) * time.Millisecond,
	}
	return s
}

func (s *Server) Start() error {
	s.logger.Info("http server listening", map[string]interface{}{"address": s.cfg.Address})
	err := s.httpServer.ListenAndServe()
	if err == http.ErrServerClosed {
		return nil
	}
	return err
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

// Handler exposes the router for in-process tests.
func (s *Server) Handler() http.Handler {
	return s.httpServer.Handler
}

type turnBody struct {
	Text      string                 `json:"text"`
	SlotHints map[string]interface{} `json:"slotHints,omitempty"`
}

func (s *Server) handleTurn(w http.ResponseWriter, r *http.Request) {
	sessionID := chi.URLParam(r, "sessionID")

	var body turnBody
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "BAD_REQUEST", "request body must be valid JSON")
		return
	}
	if body.Text == "" {
		writeError(w, http.StatusBadRequest, "BAD_REQUEST", "text is required")
		return
	}

	result, err := s.orch.HandleTurn(r.Context(), &orchestrator.TurnRequest{
		SessionID: sessionID,
		Text:      body.Text,
		SlotHints: body.SlotHints,
	})
	if err != nil {
		s.writeTurnError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (s *Server) handleAbandon(w http.ResponseWriter, r *http.Request) {
	sessionID := chi.URLParam(r, "sessionID")

	err := s.orch.Abandon(r.Context(), sessionID)
	switch {
	case err == nil:
		writeJSON(w, http.StatusOK, map[string]string{"status": "abandoned"})
	case err == session.ErrNotFound:
		writeError(w, http.StatusNotFound, "NOT_FOUND", "session not found")
	default:
		s.writeTurnError(w, err)
	}
}

func (s *Server) handleGetSession(w http.ResponseWriter, r *http.Request) {
	sessionID := chi.URLParam(r, "sessionID")

	sess, err := s.store.Get(r.Context(), sessionID)
	if err == session.ErrNotFound {
		writeError(w, http.StatusNotFound, "NOT_FOUND", "session not found")
		return
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, string(errors.ErrCodeSessionStoreError), "failed to load session")
		return
	}
	writeJSON(w, http.StatusOK, sess)
}

// handleReloadTables re-reads the rate table file and swaps it in atomically.
// In-flight turns keep the snapshot they started with.
func (s *Server) handleReloadTables(w http.ResponseWriter, r *http.Request) {
	tables, err := rating.LoadTables(s.tablePath)
	if err != nil {
		s.logger.WithError(err).Error("rate table reload rejected", map[string]interface{}{"path": s.tablePath})
		writeError(w, http.StatusUnprocessableEntity, string(errors.ErrCodeConfigError), err.Error())
		return
	}
	s.snapshot.Swap(tables)
	s.logger.Info("rate table reloaded", map[string]interface{}{"version": tables.Version})
	writeJSON(w, http.StatusOK, map[string]string{"version": tables.Version})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) writeTurnError(w http.ResponseWriter, err error) {
	code := errors.CodeOf(err)
	status := http.StatusInternalServerError
	switch code {
	case errors.ErrCodeSessionClosed:
		status = http.StatusConflict
	case errors.ErrCodeNluTimeout, errors.ErrCodeRetrievalTimeout:
		status = http.StatusGatewayTimeout
	case errors.ErrCodeNluFailed, errors.ErrCodeRetrievalFailed:
		status = http.StatusBadGateway
	}
	s.logger.WithError(err).Warn("turn failed", map[string]interface{}{"code": string(code)})
	writeError(w, status, string(code), err.Error())
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, map[string]string{"code": code, "message": message})
}
