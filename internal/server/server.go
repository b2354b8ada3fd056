// Package server is the agent's HTTP surface: browser shims post signal
// batches, and recorded analytics calls can be read back.
package server

import (
	"context"
	"encoding/json"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/rs/zerolog"

	"github.com/vincentbai/pagetrace/internal/errors"
	"github.com/vincentbai/pagetrace/internal/models"
	"github.com/vincentbai/pagetrace/internal/telemetry"
	"github.com/vincentbai/pagetrace/internal/tracking"
)

// CallStore reads back recorded analytics calls.
type CallStore interface {
	ListCalls(clientID string, limit int) ([]models.Call, error)
}

// StatsSource snapshots the agent's metrics.
type StatsSource interface {
	Snapshot(ctx context.Context) ([]telemetry.Point, error)
}

type Server struct {
	registry         *tracking.Registry
	calls            CallStore
	metrics          *telemetry.Metrics
	stats            StatsSource
	address          string
	logger           zerolog.Logger
	server           *http.Server
	validSignalTypes map[string]bool
}

func NewServer(registry *tracking.Registry, calls CallStore, address string, logger zerolog.Logger) *Server {
	valid := make(map[string]bool, len(models.SignalTypes))
	for _, typ := range models.SignalTypes {
		valid[typ] = true
	}
	return &Server{
		registry:         registry,
		calls:            calls,
		address:          address,
		logger:           logger,
		validSignalTypes: valid,
	}
}

// UseTelemetry records request metrics and serves stats on /stats.
func (s *Server) UseTelemetry(metrics *telemetry.Metrics, stats StatsSource) {
	s.metrics = metrics
	s.stats = stats
}

func (s *Server) ValidateSignal(signal models.Signal) error {
	if signal.TabID == "" {
		return errors.NewValidationError("tab_id", signal.TabID, "cannot be empty")
	}
	if signal.Type == "" {
		return errors.NewValidationError("type", signal.Type, "cannot be empty")
	}
	if !s.validSignalTypes[signal.Type] {
		return errors.NewValidationError("type", signal.Type, "invalid signal type")
	}
	if signal.TSUTC <= 0 {
		return errors.NewValidationError("ts_utc", signal.TSUTC, "timestamp must be positive")
	}
	return nil
}

func (s *Server) handleHealthz(w http.ResponseWriter, _ *http.Request) {
	w.Write([]byte("ok"))
}

// handleEvents validates the whole batch before applying any of it. Signals
// that fail to apply, such as one for a tab that never loaded, are logged
// and skipped.
func (s *Server) handleEvents(w http.ResponseWriter, request *http.Request) {
	if request.Method != http.MethodPost {
		http.Error(w, "POST only", http.StatusMethodNotAllowed)
		return
	}
	var batch models.Batch
	if err := json.NewDecoder(request.Body).Decode(&batch); err != nil {
		http.Error(w, "Invalid JSON format", http.StatusBadRequest)
		return
	}
	if len(batch.Events) == 0 {
		w.WriteHeader(http.StatusNoContent)
		return
	}
	for i, signal := range batch.Events {
		if err := s.ValidateSignal(signal); err != nil {
			http.Error(w, fmt.Sprintf("invalid signal %d: %v", i, err), http.StatusBadRequest)
			return
		}
	}

	for _, signal := range batch.Events {
		if err := s.registry.Handle(signal); err != nil {
			s.logger.Warn().
				Err(err).
				Str("tab_id", signal.TabID).
				Str("type", signal.Type).
				Msg("Failed to apply signal")
		}
	}
	w.WriteHeader(http.StatusNoContent) // success, no body
}

func (s *Server) handleCalls(w http.ResponseWriter, request *http.Request) {
	if request.Method != http.MethodGet {
		http.Error(w, "GET only", http.StatusMethodNotAllowed)
		return
	}
	if s.calls == nil {
		http.Error(w, "call recording disabled", http.StatusNotFound)
		return
	}

	query := request.URL.Query()
	limit := 0
	if raw := query.Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			http.Error(w, "limit must be a non-negative integer", http.StatusBadRequest)
			return
		}
		limit = n
	}

	calls, err := s.calls.ListCalls(query.Get("client_id"), limit)
	if err != nil {
		s.logger.Error().Err(err).Msg("Failed to list calls")
		http.Error(w, "Failed to list calls", http.StatusInternalServerError)
		return
	}
	if calls == nil {
		calls = []models.Call{}
	}
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(calls); err != nil {
		s.logger.Debug().Err(err).Msg("Failed to write calls")
	}
}

func (s *Server) handleStats(w http.ResponseWriter, request *http.Request) {
	if s.stats == nil {
		http.Error(w, "telemetry disabled", http.StatusNotFound)
		return
	}
	points, err := s.stats.Snapshot(request.Context())
	if err != nil {
		s.logger.Error().Err(err).Msg("Failed to collect stats")
		http.Error(w, "Failed to collect stats", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(map[string]any{
		"open_tabs": s.registry.Len(),
		"metrics":   points,
	}); err != nil {
		s.logger.Debug().Err(err).Msg("Failed to write stats")
	}
}

func (s *Server) setupRoutes() *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", s.handleHealthz)
	mux.HandleFunc("/events", s.handleEvents)
	mux.HandleFunc("/calls", s.handleCalls)
	mux.HandleFunc("/stats", s.handleStats)
	return mux
}

// Start serves until ctx is cancelled, then shuts down gracefully and closes
// every open page.
func (s *Server) Start(ctx context.Context) error {
	listener, err := net.Listen("tcp", s.address)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", s.address, err)
	}
	return s.Serve(ctx, listener)
}

// Serve is Start on an existing listener.
func (s *Server) Serve(ctx context.Context, listener net.Listener) error {
	s.server = &http.Server{
		Handler:      telemetry.Middleware(s.metrics)(s.setupRoutes()),
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 5 * time.Second,
	}

	serveErr := make(chan error, 1)
	go func() {
		s.logger.Info().Str("address", listener.Addr().String()).Msg("Pagetrace agent listening")
		if err := s.server.Serve(listener); err != nil && err != http.ErrServerClosed {
			serveErr <- err
		}
		close(serveErr)
	}()

	select {
	case err := <-serveErr:
		if err != nil {
			return fmt.Errorf("server failed: %w", err)
		}
		return nil
	case <-ctx.Done():
	}
	s.logger.Info().Msg("Shutting down server...")

	shutdownContext, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	err := s.server.Shutdown(shutdownContext)
	s.registry.CloseAll()
	if err != nil {
		return fmt.Errorf("server forced to shutdown: %w", err)
	}

	s.logger.Info().Msg("Server exited")
	return nil
}
