package observability

import (
	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "glof"

// Metrics holds the Prometheus counters, histograms, and gauges for the monitor.
type Metrics struct {
	// Gage polling.
	GagePolls        *prometheus.CounterVec // labels: gage, outcome={online,offline,error}
	GageLevel        *prometheus.GaugeVec   // labels: gage
	GageStage        *prometheus.GaugeVec   // labels: gage; stage index, -1 when unclassified
	StageTransitions *prometheus.CounterVec // labels: gage, to
	MonitorRunning   prometheus.Gauge

	// Historical events and alerts.
	EventRefreshes *prometheus.CounterVec // labels: outcome={success,error}
	EventsLoaded   prometheus.Gauge
	AlertPolls     *prometheus.CounterVec // labels: outcome={success,error}
	ActiveAlerts   prometheus.Gauge

	TaskDuration *prometheus.HistogramVec // labels: task

	// Address search.
	SearchRequests    *prometheus.CounterVec   // labels: outcome={success,error,empty}
	SearchCache       *prometheus.CounterVec   // labels: result={hit,miss}
	SearchAPIDuration prometheus.Histogram
	SearchEnabled     prometheus.Gauge

	SinkErrors *prometheus.CounterVec // labels: sink={kafka,redis,store}
}

// NewMetrics creates and registers all metrics with the default Prometheus registry.
func NewMetrics() *Metrics {
	m := newMetrics()
	prometheus.MustRegister(m.collectors()...)
	return m
}

// NewMetricsForTesting creates Metrics with a fresh registry to avoid
// "already registered" panics when called from multiple tests.
func NewMetricsForTesting() *Metrics {
	m := newMetrics()
	prometheus.NewRegistry().MustRegister(m.collectors()...)
	return m
}

func newMetrics() *Metrics {
	return &Metrics{
		GagePolls: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "gage_polls_total",
			Help:      "Gage polls by gage and outcome.",
		}, []string{"gage", "outcome"}),
		GageLevel: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "gage_level_feet",
			Help:      "Latest gage height in feet.",
		}, []string{"gage"}),
		GageStage: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "gage_stage_index",
			Help:      "Flood stage index of the latest reading, -1 when unclassified.",
		}, []string{"gage"}),
		StageTransitions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "stage_transitions_total",
			Help:      "Flood stage changes by gage and destination stage.",
		}, []string{"gage", "to"}),
		MonitorRunning: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "monitor_running",
			Help:      "1 when the scheduler is active, 0 when shut down.",
		}),
		EventRefreshes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "event_refreshes_total",
			Help:      "Historical event CSV refreshes by outcome.",
		}, []string{"outcome"}),
		EventsLoaded: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "events_loaded",
			Help:      "Number of historical flood events currently loaded.",
		}),
		AlertPolls: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "alert_polls_total",
			Help:      "NWS alert polls by outcome.",
		}, []string{"outcome"}),
		ActiveAlerts: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "active_alerts",
			Help:      "Number of active NWS alerts for the zone.",
		}),
		TaskDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "task_duration_seconds",
			Help:      "Duration of scheduled task runs.",
			Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
		}, []string{"task"}),
		SearchRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "search_requests_total",
			Help:      "Mapbox address searches by outcome.",
		}, []string{"outcome"}),
		SearchCache: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "search_cache_total",
			Help:      "Address search cache lookups by result.",
		}, []string{"result"}),
		SearchAPIDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "search_api_duration_seconds",
			Help:      "Mapbox API request duration in seconds.",
			Buckets:   []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
		}),
		SearchEnabled: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "search_enabled",
			Help:      "1 when address search is enabled, 0 otherwise.",
		}),
		SinkErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "sink_errors_total",
			Help:      "Failed writes to optional sinks.",
		}, []string{"sink"}),
	}
}

func (m *Metrics) collectors() []prometheus.Collector {
	return []prometheus.Collector{
		m.GagePolls,
		m.GageLevel,
		m.GageStage,
		m.StageTransitions,
		m.MonitorRunning,
		m.EventRefreshes,
		m.EventsLoaded,
		m.AlertPolls,
		m.ActiveAlerts,
		m.TaskDuration,
		m.SearchRequests,
		m.SearchCache,
		m.SearchAPIDuration,
		m.SearchEnabled,
		m.SinkErrors,
	}
}
