// Package monitor polls the gage, alert and event feeds, classifies the
// results and fans stage changes out to the optional sinks.
package monitor

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/couchcryptid/glof-monitor/internal/adapter/eventsource"
	"github.com/couchcryptid/glof-monitor/internal/domain"
	"github.com/couchcryptid/glof-monitor/internal/observability"
	sharedretry "github.com/couchcryptid/storm-data-shared/retry"
)

// GageReader returns the latest reading of a gage. A nil reading with a nil
// error means the gage reported no data.
type GageReader interface {
	LatestReading(ctx context.Context, gageID string) (*domain.WaterLevel, error)
}

// AlertReader returns the active alerts for a forecast zone.
type AlertReader interface {
	ActiveAlerts(ctx context.Context, zone string) ([]domain.Alert, error)
}

// EventSource returns the raw historical event table.
type EventSource interface {
	Fetch(ctx context.Context) (eventsource.Table, error)
}

// TransitionPublisher broadcasts stage transitions.
type TransitionPublisher interface {
	PublishTransitions(ctx context.Context, transitions []domain.StageTransition) error
}

// SnapshotStore caches the latest state across restarts.
type SnapshotStore interface {
	SaveGageStatus(ctx context.Context, st domain.GageStatus) error
	LoadGageStatus(ctx context.Context, gageID string) (domain.GageStatus, bool, error)
	SaveAlerts(ctx context.Context, sum domain.AlertSummary) error
	LoadAlerts(ctx context.Context) (domain.AlertSummary, bool, error)
}

// HistoryStore records readings and transitions.
type HistoryStore interface {
	RecordReading(ctx context.Context, r domain.WaterLevel, stage string) error
	RecordTransition(ctx context.Context, t domain.StageTransition) error
	RecentTransitions(ctx context.Context, gageID string, limit int) ([]domain.StageTransition, error)
	RecentReadings(ctx context.Context, gageID string, limit int) ([]domain.WaterLevel, error)
}

// Sources are the required upstream feeds.
type Sources struct {
	Gages  GageReader
	Alerts AlertReader
	Events EventSource
}

// Sinks are optional. A nil field disables that sink.
type Sinks struct {
	Publisher TransitionPublisher
	Snapshots SnapshotStore
	History   HistoryStore
}

// Options tune polling.
type Options struct {
	GageIDs       []string
	Zone          string
	RetryAttempts int
	// Backoff between gage fetch retries starts at InitialBackoff and doubles
	// up to MaxBackoff. Zero values use 200ms and 5s.
	InitialBackoff time.Duration
	MaxBackoff     time.Duration
}

// ErrHistoryDisabled is returned by the history reads without a history store.
var ErrHistoryDisabled = errors.New("history store is disabled")

// Monitor holds the latest classified state of every feed.
type Monitor struct {
	catalog domain.Catalog
	gages   []domain.Gage
	sources Sources
	sinks   Sinks
	opts    Options
	logger  *slog.Logger
	metrics *observability.Metrics
	ready   atomic.Bool

	mu        sync.RWMutex
	statuses  map[string]domain.GageStatus
	lastStage map[string]domain.Classification
	events    *domain.EventSet
	alerts    *domain.AlertSummary
}

// New creates a Monitor for the configured gages. Gage ids missing from the
// catalog are polled under their id.
func New(catalog domain.Catalog, sources Sources, sinks Sinks, opts Options, logger *slog.Logger, metrics *observability.Metrics) *Monitor {
	if opts.RetryAttempts < 1 {
		opts.RetryAttempts = 1
	}
	if opts.InitialBackoff <= 0 {
		opts.InitialBackoff = 200 * time.Millisecond
	}
	if opts.MaxBackoff <= 0 {
		opts.MaxBackoff = 5 * time.Second
	}

	gages := make([]domain.Gage, 0, len(opts.GageIDs))
	for _, id := range opts.GageIDs {
		g, ok := catalog.Gage(id)
		if !ok {
			g = domain.Gage{ID: id, Name: id}
		}
		gages = append(gages, g)
	}

	return &Monitor{
		catalog:   catalog,
		gages:     gages,
		sources:   sources,
		sinks:     sinks,
		opts:      opts,
		logger:    logger,
		metrics:   metrics,
		statuses:  make(map[string]domain.GageStatus),
		lastStage: make(map[string]domain.Classification),
	}
}

// Catalog returns the stage, overlay and event tables in use.
func (m *Monitor) Catalog() domain.Catalog {
	return m.catalog
}

// CheckReadiness returns nil once a gage poll has succeeded.
func (m *Monitor) CheckReadiness(_ context.Context) error {
	if !m.ready.Load() {
		return errors.New("no gage poll has succeeded yet")
	}
	return nil
}

// Warm loads cached snapshots so the API can answer before the first poll.
func (m *Monitor) Warm(ctx context.Context) {
	if m.sinks.Snapshots == nil {
		return
	}
	warmed := 0
	for _, g := range m.gages {
		st, ok, err := m.sinks.Snapshots.LoadGageStatus(ctx, g.ID)
		if err != nil {
			m.logger.Warn("load gage snapshot failed", "gage_id", g.ID, "error", err)
			continue
		}
		if !ok {
			continue
		}
		m.mu.Lock()
		m.statuses[g.ID] = st
		if st.Classification.Status == domain.StatusClassified {
			m.lastStage[g.ID] = st.Classification
		}
		m.mu.Unlock()
		warmed++
	}

	sum, ok, err := m.sinks.Snapshots.LoadAlerts(ctx)
	switch {
	case err != nil:
		m.logger.Warn("load alert snapshot failed", "error", err)
	case ok:
		m.mu.Lock()
		m.alerts = &sum
		m.mu.Unlock()
	}
	m.logger.Info("state warmed from snapshots", "gages", warmed, "alerts", ok)
}

// PollGages fetches, classifies and records every gage. It fails only when
// every gage fetch failed.
func (m *Monitor) PollGages(ctx context.Context) error {
	var (
		errs        []error
		transitions []domain.StageTransition
	)
	for _, g := range m.gages {
		reading, err := m.fetchWithRetry(ctx, g.ID)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			m.logger.Error("gage poll failed", "gage_id", g.ID, "error", err)
			m.metrics.GagePolls.WithLabelValues(g.ID, "error").Inc()
			errs = append(errs, fmt.Errorf("gage %s: %w", g.ID, err))
			continue
		}

		st := domain.NewGageStatus(g, reading, m.catalog.Stages)
		m.observe(st)
		if tr, ok := m.update(st); ok {
			transitions = append(transitions, tr)
		}
		m.record(ctx, st)
	}

	if len(transitions) > 0 {
		m.publish(ctx, transitions)
	}
	if len(errs) == len(m.gages) && len(errs) > 0 {
		return errors.Join(errs...)
	}
	m.ready.Store(true)
	return nil
}

func (m *Monitor) observe(st domain.GageStatus) {
	outcome := "offline"
	if st.Online {
		outcome = "online"
		m.metrics.GageLevel.WithLabelValues(st.Gage.ID).Set(st.Reading.Feet)
	}
	m.metrics.GagePolls.WithLabelValues(st.Gage.ID, outcome).Inc()
	m.metrics.GageStage.WithLabelValues(st.Gage.ID).Set(float64(st.Classification.Index))

	m.logger.Debug("gage polled",
		"gage_id", st.Gage.ID,
		"online", st.Online,
		"display", st.Display,
		"stage", st.Classification.Label(),
	)
}

// update stores st and reports a transition against the last classified stage
// of the gage. Offline polls and faults in between do not reset it.
func (m *Monitor) update(st domain.GageStatus) (domain.StageTransition, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.statuses[st.Gage.ID] = st
	if st.Classification.Status != domain.StatusClassified {
		return domain.StageTransition{}, false
	}
	prev := m.lastStage[st.Gage.ID]
	m.lastStage[st.Gage.ID] = st.Classification
	return domain.DetectTransition(st.Gage.ID, prev, st.Classification)
}

func (m *Monitor) record(ctx context.Context, st domain.GageStatus) {
	if m.sinks.Snapshots != nil {
		if err := m.sinks.Snapshots.SaveGageStatus(ctx, st); err != nil {
			m.sinkFailed("redis", err, "gage_id", st.Gage.ID)
		}
	}
	if m.sinks.History != nil && st.Reading != nil {
		if err := m.sinks.History.RecordReading(ctx, *st.Reading, st.Classification.Label()); err != nil {
			m.sinkFailed("store", err, "gage_id", st.Gage.ID)
		}
	}
}

func (m *Monitor) publish(ctx context.Context, transitions []domain.StageTransition) {
	for _, tr := range transitions {
		m.logger.Info("flood stage changed",
			"gage_id", tr.GageID,
			"from", tr.From,
			"stage", tr.To,
			"level_ft", tr.Feet,
		)
		m.metrics.StageTransitions.WithLabelValues(tr.GageID, tr.To).Inc()
		if m.sinks.History != nil {
			if err := m.sinks.History.RecordTransition(ctx, tr); err != nil {
				m.sinkFailed("store", err, "transition_id", tr.ID)
			}
		}
	}
	if m.sinks.Publisher != nil {
		if err := m.sinks.Publisher.PublishTransitions(ctx, transitions); err != nil {
			m.sinkFailed("kafka", err, "count", len(transitions))
		}
	}
}

func (m *Monitor) sinkFailed(sink string, err error, attrs ...any) {
	m.metrics.SinkErrors.WithLabelValues(sink).Inc()
	m.logger.Warn("sink write failed", append([]any{"sink", sink, "error", err}, attrs...)...)
}

// fetchWithRetry retries a gage fetch with exponential backoff.
func (m *Monitor) fetchWithRetry(ctx context.Context, gageID string) (*domain.WaterLevel, error) {
	backoff := m.opts.InitialBackoff
	var err error
	for attempt := 1; attempt <= m.opts.RetryAttempts; attempt++ {
		var reading *domain.WaterLevel
		reading, err = m.sources.Gages.LatestReading(ctx, gageID)
		if err == nil {
			return reading, nil
		}
		if attempt == m.opts.RetryAttempts || ctx.Err() != nil {
			break
		}
		m.logger.Warn("gage fetch failed, retrying",
			"gage_id", gageID, "attempt", attempt, "backoff", backoff, "error", err)
		if !sharedretry.SleepWithContext(ctx, backoff) {
			return nil, ctx.Err()
		}
		backoff = sharedretry.NextBackoff(backoff, m.opts.MaxBackoff)
	}
	return nil, err
}

// RefreshAlerts fetches the active alerts and rebuilds the banner.
func (m *Monitor) RefreshAlerts(ctx context.Context) error {
	alerts, err := m.sources.Alerts.ActiveAlerts(ctx, m.opts.Zone)
	if err != nil {
		m.metrics.AlertPolls.WithLabelValues("error").Inc()
		return fmt.Errorf("refresh alerts: %w", err)
	}
	m.metrics.AlertPolls.WithLabelValues("success").Inc()
	m.metrics.ActiveAlerts.Set(float64(len(alerts)))

	sum := domain.SummarizeAlerts(alerts)
	m.mu.Lock()
	m.alerts = &sum
	m.mu.Unlock()

	if sum.Active {
		m.logger.Info("active alert", "headline", sum.Headline, "count", len(alerts))
	}
	if m.sinks.Snapshots != nil {
		if err := m.sinks.Snapshots.SaveAlerts(ctx, sum); err != nil {
			m.sinkFailed("redis", err)
		}
	}
	return nil
}

// RefreshEvents reloads and normalizes the historical event table.
func (m *Monitor) RefreshEvents(ctx context.Context) (domain.EventSet, error) {
	table, err := m.sources.Events.Fetch(ctx)
	if err != nil {
		m.metrics.EventRefreshes.WithLabelValues("error").Inc()
		return domain.EventSet{}, fmt.Errorf("refresh events: %w", err)
	}
	set := m.catalog.Events.NormalizeTable(table.Header, table.Rows)
	m.metrics.EventRefreshes.WithLabelValues("success").Inc()
	m.metrics.EventsLoaded.Set(float64(set.Total))

	m.mu.Lock()
	m.events = &set
	m.mu.Unlock()
	m.logger.Info("historical events loaded", "total", set.Total)
	return set, nil
}

// Gages returns the latest status of every configured gage in catalog order.
// A gage that has not been polled yet is reported as pending.
func (m *Monitor) Gages() []domain.GageStatus {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]domain.GageStatus, 0, len(m.gages))
	for _, g := range m.gages {
		st, ok := m.statuses[g.ID]
		if !ok {
			st = domain.GageStatus{
				Gage:           g,
				Display:        domain.NotAvailable,
				Classification: domain.Classification{Status: domain.StatusUnknown, Index: -1},
				Forecast:       domain.PendingText,
			}
		}
		out = append(out, st)
	}
	return out
}

// Events returns the loaded event set. ok is false before the first refresh.
func (m *Monitor) Events() (domain.EventSet, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.events == nil {
		return domain.EventSet{}, false
	}
	return *m.events, true
}

// Alerts returns the alert banner. ok is false before the first refresh.
func (m *Monitor) Alerts() (domain.AlertSummary, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.alerts == nil {
		return domain.AlertSummary{}, false
	}
	return *m.alerts, true
}

// RecentTransitions reads stage transitions from the history store.
func (m *Monitor) RecentTransitions(ctx context.Context, gageID string, limit int) ([]domain.StageTransition, error) {
	if m.sinks.History == nil {
		return nil, ErrHistoryDisabled
	}
	return m.sinks.History.RecentTransitions(ctx, gageID, limit)
}

// RecentReadings reads a gage's recorded levels from the history store.
func (m *Monitor) RecentReadings(ctx context.Context, gageID string, limit int) ([]domain.WaterLevel, error) {
	if m.sinks.History == nil {
		return nil, ErrHistoryDisabled
	}
	return m.sinks.History.RecentReadings(ctx, gageID, limit)
}
