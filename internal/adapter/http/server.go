package http

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/couchcryptid/glof-monitor/internal/domain"
	"github.com/couchcryptid/glof-monitor/internal/monitor"
	sharedobs "github.com/couchcryptid/storm-data-shared/observability"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const (
	defaultHistoryLimit = 20
	maxHistoryLimit     = 500
)

// State is the monitor view served by the API.
type State interface {
	sharedobs.ReadinessChecker
	Catalog() domain.Catalog
	Gages() []domain.GageStatus
	Events() (domain.EventSet, bool)
	Alerts() (domain.AlertSummary, bool)
	RefreshEvents(ctx context.Context) (domain.EventSet, error)
	RecentTransitions(ctx context.Context, gageID string, limit int) ([]domain.StageTransition, error)
	RecentReadings(ctx context.Context, gageID string, limit int) ([]domain.WaterLevel, error)
}

// Server exposes the dashboard API plus health, readiness and metrics.
type Server struct {
	httpServer *http.Server
	state      State
	search     domain.PlaceSearcher
	logger     *slog.Logger
}

// NewServer creates the HTTP server. A nil search disables /api/search.
func NewServer(addr string, state State, search domain.PlaceSearcher, logger *slog.Logger) *Server {
	mux := http.NewServeMux()

	s := &Server{
		httpServer: &http.Server{
			Addr:         addr,
			Handler:      mux,
			ReadTimeout:  10 * time.Second,
			WriteTimeout: 30 * time.Second,
			IdleTimeout:  60 * time.Second,
		},
		state:  state,
		search: search,
		logger: logger,
	}

	mux.HandleFunc("GET /healthz", sharedobs.LivenessHandler())
	mux.HandleFunc("GET /readyz", sharedobs.ReadinessHandler(state))
	mux.Handle("GET /metrics", promhttp.Handler())

	mux.HandleFunc("GET /api/stages", s.handleStages)
	mux.HandleFunc("GET /api/stage", s.handleStage)
	mux.HandleFunc("GET /api/gages", s.handleGages)
	mux.HandleFunc("GET /api/overlay", s.handleOverlay)
	mux.HandleFunc("GET /api/events", s.handleEvents)
	mux.HandleFunc("GET /api/events/series", s.handleEventSeries)
	mux.HandleFunc("GET /api/events/key", s.handleEventKey)
	mux.HandleFunc("POST /api/events/refresh", s.handleEventRefresh)
	mux.HandleFunc("GET /api/alerts", s.handleAlerts)
	mux.HandleFunc("GET /api/search", s.handleSearch)
	mux.HandleFunc("GET /api/transitions", s.handleTransitions)
	mux.HandleFunc("GET /api/readings", s.handleReadings)

	return s
}

// Start begins listening. Returns http.ErrServerClosed on graceful shutdown.
func (s *Server) Start() error {
	s.logger.Info("http server starting", "addr", s.httpServer.Addr)
	return s.httpServer.ListenAndServe()
}

// Shutdown gracefully drains connections within the given context deadline.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

// ServeHTTP delegates to the underlying handler, useful for testing.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.httpServer.Handler.ServeHTTP(w, r)
}

// StageResponse is a classified level with its rendered texts.
type StageResponse struct {
	Classification domain.Classification `json:"classification"`
	Label          string                `json:"label"`
	Color          string                `json:"color"`
	Forecast       string                `json:"forecast"`
}

func (s *Server) handleStages(w http.ResponseWriter, _ *http.Request) {
	sharedobs.WriteJSON(w, http.StatusOK, s.state.Catalog().Stages)
}

func (s *Server) handleStage(w http.ResponseWriter, r *http.Request) {
	c := s.state.Catalog().Stages.ClassifyString(r.URL.Query().Get("level"))
	sharedobs.WriteJSON(w, http.StatusOK, StageResponse{
		Classification: c,
		Label:          c.Label(),
		Color:          c.Color(),
		Forecast:       c.Describe(),
	})
}

func (s *Server) handleGages(w http.ResponseWriter, _ *http.Request) {
	sharedobs.WriteJSON(w, http.StatusOK, s.state.Gages())
}

// handleOverlay computes a layer plan. The optional current parameter is the
// viewer's present level, kept when the requested layer does not exist.
func (s *Server) handleOverlay(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	barrier, err := parseBool(q.Get("barrier"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "barrier must be a boolean")
		return
	}
	requested, err := domain.ParseSelection(orAll(q.Get("level")), barrier)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	current, err := domain.ParseSelection(orAll(q.Get("current")), false)
	if err != nil {
		writeError(w, http.StatusBadRequest, "current: "+err.Error())
		return
	}

	plan := domain.SelectOverlay(s.state.Catalog().Overlays, current, requested, s.logger)
	sharedobs.WriteJSON(w, http.StatusOK, plan)
}

func (s *Server) loadedEvents(w http.ResponseWriter) (domain.EventSet, bool) {
	set, ok := s.state.Events()
	if !ok {
		writeError(w, http.StatusServiceUnavailable, "historical events not loaded yet")
	}
	return set, ok
}

func (s *Server) handleEvents(w http.ResponseWriter, _ *http.Request) {
	if set, ok := s.loadedEvents(w); ok {
		sharedobs.WriteJSON(w, http.StatusOK, set)
	}
}

func (s *Server) handleEventSeries(w http.ResponseWriter, _ *http.Request) {
	if set, ok := s.loadedEvents(w); ok {
		sharedobs.WriteJSON(w, http.StatusOK, set.Series())
	}
}

func (s *Server) handleEventKey(w http.ResponseWriter, _ *http.Request) {
	if set, ok := s.loadedEvents(w); ok {
		cat := s.state.Catalog()
		sharedobs.WriteJSON(w, http.StatusOK, set.KeyRows(cat.Overlays, cat.RecordCrests))
	}
}

func (s *Server) handleEventRefresh(w http.ResponseWriter, r *http.Request) {
	set, err := s.state.RefreshEvents(r.Context())
	if err != nil {
		s.logger.Warn("event refresh failed", "error", err)
		writeError(w, http.StatusBadGateway, err.Error())
		return
	}
	sharedobs.WriteJSON(w, http.StatusOK, map[string]int{"total": set.Total})
}

func (s *Server) handleAlerts(w http.ResponseWriter, _ *http.Request) {
	sum, ok := s.state.Alerts()
	if !ok {
		writeError(w, http.StatusServiceUnavailable, "alerts not loaded yet")
		return
	}
	sharedobs.WriteJSON(w, http.StatusOK, sum)
}

func (s *Server) handleSearch(w http.ResponseWriter, r *http.Request) {
	if s.search == nil {
		writeError(w, http.StatusServiceUnavailable, "address search is disabled")
		return
	}
	query := strings.TrimSpace(r.URL.Query().Get("q"))
	if query == "" {
		writeError(w, http.StatusBadRequest, "q is required")
		return
	}
	places, err := s.search.Search(r.Context(), query)
	if err != nil {
		writeError(w, http.StatusBadGateway, "address search failed")
		return
	}
	sharedobs.WriteJSON(w, http.StatusOK, places)
}

func (s *Server) handleTransitions(w http.ResponseWriter, r *http.Request) {
	limit, ok := historyLimit(w, r)
	if !ok {
		return
	}
	transitions, err := s.state.RecentTransitions(r.Context(), r.URL.Query().Get("gage"), limit)
	s.writeHistory(w, "transitions", transitions, err)
}

func (s *Server) handleReadings(w http.ResponseWriter, r *http.Request) {
	gage := strings.TrimSpace(r.URL.Query().Get("gage"))
	if gage == "" {
		writeError(w, http.StatusBadRequest, "gage is required")
		return
	}
	limit, ok := historyLimit(w, r)
	if !ok {
		return
	}
	readings, err := s.state.RecentReadings(r.Context(), gage, limit)
	s.writeHistory(w, "readings", readings, err)
}

func historyLimit(w http.ResponseWriter, r *http.Request) (int, bool) {
	v := r.URL.Query().Get("limit")
	if v == "" {
		return defaultHistoryLimit, true
	}
	n, err := strconv.Atoi(v)
	if err != nil || n < 1 || n > maxHistoryLimit {
		writeError(w, http.StatusBadRequest, "limit must be 1-500")
		return 0, false
	}
	return n, true
}

func (s *Server) writeHistory(w http.ResponseWriter, what string, rows any, err error) {
	switch {
	case errors.Is(err, monitor.ErrHistoryDisabled):
		writeError(w, http.StatusServiceUnavailable, err.Error())
	case err != nil:
		s.logger.Warn("read history failed", "table", what, "error", err)
		writeError(w, http.StatusBadGateway, "history store unavailable")
	default:
		sharedobs.WriteJSON(w, http.StatusOK, rows)
	}
}

func orAll(level string) string {
	if strings.TrimSpace(level) == "" {
		return domain.AllLevels
	}
	return level
}

func parseBool(v string) (bool, error) {
	if v == "" {
		return false, nil
	}
	return strconv.ParseBool(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	sharedobs.WriteJSON(w, status, map[string]string{"error": msg})
}
