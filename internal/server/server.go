// Package server exposes the tracking engine to the mobile UI controller
// over a loopback HTTP API: punch operations, status with pending counts,
// explicit sync, and a websocket event feed. It also owns the connectivity
// subscription and triggers a sync run on every reconnect.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/GenAmed/pointage/internal/connectivity"
	"github.com/GenAmed/pointage/internal/location"
	"github.com/GenAmed/pointage/internal/model"
	"github.com/GenAmed/pointage/internal/syncer"
	"github.com/GenAmed/pointage/internal/tracker"
)

// Server wires the engine components behind HTTP handlers.
type Server struct {
	tracker *tracker.Tracker
	syncer  *syncer.Syncer
	monitor connectivity.Monitor
	hub     *Hub
	log     *zap.Logger

	unsubscribe connectivity.Unsubscribe
}

// New creates a Server over the given engine components. hub may be nil
// when no event feed is wanted.
func New(t *tracker.Tracker, s *syncer.Syncer, m connectivity.Monitor, hub *Hub, log *zap.Logger) *Server {
	return &Server{tracker: t, syncer: s, monitor: m, hub: hub, log: log}
}

// Start registers the reconnect-driven sync trigger.
func (s *Server) Start() {
	s.unsubscribe = s.monitor.Subscribe(func() {
		go func() {
			ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
			defer cancel()
			res, err := s.syncer.SyncPending(ctx)
			if err != nil {
				s.log.Warn("reconnect sync failed", zap.Error(err))
				return
			}
			s.log.Info("reconnect sync finished",
				zap.Int("synced", res.Synced), zap.Int("failed", res.Failed))
		}()
	}, nil)
}

// Stop tears down the subscription and the event feed.
func (s *Server) Stop() {
	if s.unsubscribe != nil {
		s.unsubscribe()
	}
	if s.hub != nil {
		s.hub.Close()
	}
}

// Router builds the HTTP routes.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Route("/api", func(r chi.Router) {
		r.Post("/track/start", s.handleStart)
		r.Post("/track/stop", s.handleStop)
		r.Post("/break/start", s.handleBreakStart)
		r.Post("/break/end", s.handleBreakEnd)
		r.Post("/sync", s.handleSync)
		r.Get("/status", s.handleStatus)
		if s.hub != nil {
			r.Get("/events", s.hub.ServeHTTP)
		}
	})
	return r
}

type startRequest struct {
	WorksiteID string `json:"worksite_id"`
	Comment    string `json:"comment"`
}

type stopRequest struct {
	Comment string `json:"comment"`
}

type statusResponse struct {
	State        tracker.State    `json:"state"`
	Entry        *model.TimeEntry `json:"entry,omitempty"`
	PendingCount int              `json:"pending_count"`
	Online       bool             `json:"online"`
}

type errorResponse struct {
	Error string `json:"error"`
}

func (s *Server) handleStart(w http.ResponseWriter, r *http.Request) {
	var req startRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid JSON"})
		return
	}
	entry, err := s.tracker.StartTracking(r.Context(), req.WorksiteID, req.Comment)
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, entry)
}

func (s *Server) handleStop(w http.ResponseWriter, r *http.Request) {
	var req stopRequest
	if r.ContentLength > 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid JSON"})
			return
		}
	}
	entry, err := s.tracker.EndTracking(r.Context(), req.Comment)
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, entry)
}

func (s *Server) handleBreakStart(w http.ResponseWriter, r *http.Request) {
	if err := s.tracker.StartBreak(); err != nil {
		s.writeError(w, err)
		return
	}
	s.writeState(w)
}

func (s *Server) handleBreakEnd(w http.ResponseWriter, r *http.Request) {
	if err := s.tracker.EndBreak(); err != nil {
		s.writeError(w, err)
		return
	}
	s.writeState(w)
}

func (s *Server) handleSync(w http.ResponseWriter, r *http.Request) {
	res, err := s.syncer.SyncPending(r.Context())
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, errorResponse{Error: err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	s.writeState(w)
}

func (s *Server) writeState(w http.ResponseWriter) {
	state, entry := s.tracker.State()
	pending, err := s.syncer.PendingCount()
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, errorResponse{Error: err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, statusResponse{
		State:        state,
		Entry:        entry,
		PendingCount: pending,
		Online:       s.monitor.IsOnline(),
	})
}

// writeError maps engine failures to HTTP statuses: rejected transitions
// are client errors, missing fixes mean the punch could not land, anything
// else is a server-side failure.
func (s *Server) writeError(w http.ResponseWriter, err error) {
	var ve *tracker.ValidationError
	var le *location.Error
	switch {
	case errors.As(err, &ve):
		writeJSON(w, http.StatusConflict, errorResponse{Error: ve.Error()})
	case errors.As(err, &le):
		writeJSON(w, http.StatusServiceUnavailable, errorResponse{Error: le.Error()})
	default:
		s.log.Error("operation failed", zap.Error(err))
		writeJSON(w, http.StatusInternalServerError, errorResponse{Error: err.Error()})
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
