package daemon

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/WeThePeopleBotball/socks/internal/logging"
)

// debugServer exposes health, metrics, and read-only daemon state over an
// HTTP listener, intended for loopback binds.
type debugServer struct {
	bind   string
	logger *slog.Logger
	daemon *Daemon

	listener net.Listener
	server   *http.Server
}

func newDebugServer(bind string, d *Daemon, logger *slog.Logger) *debugServer {
	srv := &debugServer{
		bind:   bind,
		logger: logging.WithComponent(logger, "debug"),
		daemon: d,
	}

	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Get("/healthz", srv.handleHealthz)
	r.Method(http.MethodGet, "/metrics", d.metrics.Handler())
	r.Get("/api/stats", srv.handleStats)
	r.Get("/api/journal", srv.handleJournal)

	srv.server = &http.Server{
		Handler:           r,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}
	return srv
}

func (s *debugServer) start() error {
	listener, err := net.Listen("tcp", s.bind)
	if err != nil {
		return fmt.Errorf("debug listen: %w", err)
	}
	s.listener = listener

	go func() {
		if err := s.server.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("debug server error", logging.Error(err))
		}
	}()

	s.logger.Info("debug server listening", logging.String("address", listener.Addr().String()))
	return nil
}

func (s *debugServer) stop() {
	if s.server != nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = s.server.Shutdown(shutdownCtx)
	}
	if s.listener != nil {
		_ = s.listener.Close()
		s.listener = nil
	}
}

// addr reports the bound address, useful when the bind requested port 0.
func (s *debugServer) addr() string {
	if s.listener == nil {
		return s.bind
	}
	return s.listener.Addr().String()
}

func (s *debugServer) handleHealthz(w http.ResponseWriter, _ *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]any{
		"status":     "ok",
		"session_id": s.daemon.sessionID,
	})
}

func (s *debugServer) handleStats(w http.ResponseWriter, r *http.Request) {
	snapshot, err := s.daemon.statsSnapshot(r.Context())
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	s.writeJSON(w, http.StatusOK, snapshot.Fields())
}

func (s *debugServer) handleJournal(w http.ResponseWriter, r *http.Request) {
	if s.daemon.journal == nil {
		s.writeError(w, http.StatusNotFound, "journal is disabled")
		return
	}
	limit := 20
	if raw := r.URL.Query().Get("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed <= 0 {
			s.writeError(w, http.StatusBadRequest, "limit must be a positive integer")
			return
		}
		limit = parsed
	}
	if limit > maxJournalLimit {
		limit = maxJournalLimit
	}

	entries, err := s.daemon.recentJournal(r.Context(), limit)
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]any{"entries": entries})
}

func (s *debugServer) writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		s.logger.Warn("write debug response failed", logging.Error(err))
	}
}

func (s *debugServer) writeError(w http.ResponseWriter, status int, msg string) {
	s.writeJSON(w, status, map[string]string{"error": msg})
}
