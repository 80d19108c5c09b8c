// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package web

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"image/png"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/rs/zerolog"

	"github.com/relabs-tech/geofence/internal/geofence"
)

// Server exposes the geofence status over HTTP and websocket.
type Server struct {
	router    *mux.Router
	status    func() geofence.RangeStatus
	connected func() bool
	logger    zerolog.Logger
}

// NewServer builds the router. connected may be nil when no broker link is
// tracked; staticDir may be empty to disable static files.
func NewServer(status func() geofence.RangeStatus, connected func() bool, hub *Hub, staticDir string, logger zerolog.Logger) *Server {
	s := &Server{
		router:    mux.NewRouter(),
		status:    status,
		connected: connected,
		logger:    logger.With().Str("component", "web").Logger(),
	}

	s.router.HandleFunc("/health", s.handleHealth).Methods(http.MethodGet)
	s.router.HandleFunc("/api/status", s.handleStatus).Methods(http.MethodGet)
	s.router.HandleFunc("/api/status.png", s.handleBadge).Methods(http.MethodGet)
	s.router.HandleFunc("/api/connectivity", s.handleConnectivity).Methods(http.MethodGet)
	if hub != nil {
		s.router.Handle("/ws/status", hub)
	}

	// Static files from staticDir as the root
	if staticDir != "" {
		s.router.PathPrefix("/").Handler(http.FileServer(http.Dir(staticDir)))
	}
	return s
}

func (s *Server) Handler() http.Handler {
	return s.router
}

// ListenAndServe serves on addr until ctx is cancelled.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.router,
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info().Str("addr", addr).Msg("web server listening")
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("web server: %w", err)
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("web server shutdown: %w", err)
	}
	if err := <-errCh; err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("web server: %w", err)
	}
	return nil
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	fmt.Fprintln(w, "OK")
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	st := s.status()
	if !st.Known && st.Error == geofence.ReasonNone {
		http.Error(w, "no data yet", http.StatusServiceUnavailable)
		return
	}
	s.writeJSON(w, st)
}

func (s *Server) handleBadge(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "image/png")
	w.Header().Set("Cache-Control", "no-cache")
	if err := png.Encode(w, RenderBadge(s.status())); err != nil {
		s.logger.Warn().Err(err).Msg("badge encode error")
	}
}

func (s *Server) handleConnectivity(w http.ResponseWriter, r *http.Request) {
	if s.connected == nil {
		http.Error(w, "connectivity not tracked", http.StatusNotFound)
		return
	}
	s.writeJSON(w, connectivityMessage{Connected: s.connected()})
}

func (s *Server) writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.logger.Warn().Err(err).Msg("json encode error")
	}
}
