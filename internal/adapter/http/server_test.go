package http_test

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	httpadapter "github.com/couchcryptid/glof-monitor/internal/adapter/http"
	"github.com/couchcryptid/glof-monitor/internal/domain"
	"github.com/couchcryptid/glof-monitor/internal/monitor"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeState struct {
	readyErr    error
	gages       []domain.GageStatus
	events      *domain.EventSet
	alerts      *domain.AlertSummary
	refreshErr  error
	refreshed   int
	transitions []domain.StageTransition
	readings    []domain.WaterLevel
	historyErr  error
	gotGage     string
	gotLimit    int
}

func (f *fakeState) CheckReadiness(context.Context) error { return f.readyErr }
func (f *fakeState) Catalog() domain.Catalog { return domain.DefaultCatalog() }
func (f *fakeState) Gages() []domain.GageStatus { return f.gages }

func (f *fakeState) Events() (domain.EventSet, bool) {
	if f.events == nil {
		return domain.EventSet{}, false
	}
	return *f.events, true
}

func (f *fakeState) Alerts() (domain.AlertSummary, bool) {
	if f.alerts == nil {
		return domain.AlertSummary{}, false
	}
	return *f.alerts, true
}

func (f *fakeState) RefreshEvents(context.Context) (domain.EventSet, error) {
	f.refreshed++
	if f.refreshErr != nil {
		return domain.EventSet{}, f.refreshErr
	}
	return *f.events, nil
}

func (f *fakeState) RecentTransitions(_ context.Context, gageID string, limit int) ([]domain.StageTransition, error) {
	f.gotGage, f.gotLimit = gageID, limit
	return f.transitions, f.historyErr
}

func (f *fakeState) RecentReadings(_ context.Context, gageID string, limit int) ([]domain.WaterLevel, error) {
	f.gotGage, f.gotLimit = gageID, limit
	return f.readings, f.historyErr
}

type fakeSearch struct {
	places []domain.Place
	err    error
	query  string
}

func (f *fakeSearch) Search(_ context.Context, q string) ([]domain.Place, error) {
	f.query = q
	return f.places, f.err
}

func testEvents() *domain.EventSet {
	header := []string{"Year", "Crest Date", "Crest Stage D.S. Gage (ft)", "Remarks"}
	rows := []domain.RawRow{
		{"Year": "2025", "Crest Date": "8/13/2025", "Crest Stage D.S. Gage (ft)": "16.67", "Remarks": "record"},
		{"Year": "2024", "Crest Date": "8/6/2024", "Crest Stage D.S. Gage (ft)": "15.99", "Remarks": ""},
		{"Year": "2016", "Crest Date": "7/12/2016", "Crest Stage D.S. Gage (ft)": "-", "Remarks": ""},
	}
	set := domain.DefaultEventSchema().NormalizeTable(header, rows)
	return &set
}

func newTestServer(state *fakeState, search domain.PlaceSearcher) *httpadapter.Server {
	return httpadapter.NewServer(":0", state, search, slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func do(t *testing.T, srv http.Handler, method, target string) *httptest.ResponseRecorder {
	t.Helper()
	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, httptest.NewRequest(method, target, nil))
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v), rec.Body.String())
	return v
}

func TestHealthzReturns200(t *testing.T) {
	rec := do(t, newTestServer(&fakeState{}, nil), http.MethodGet, "/healthz")

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "healthy", decode[map[string]string](t, rec)["status"])
}

func TestReadyz(t *testing.T) {
	rec := do(t, newTestServer(&fakeState{}, nil), http.MethodGet, "/readyz")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "ready", decode[map[string]string](t, rec)["status"])

	rec = do(t, newTestServer(&fakeState{readyErr: fmt.Errorf("no gage poll has succeeded yet")}, nil), http.MethodGet, "/readyz")
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	body := decode[map[string]string](t, rec)
	assert.Equal(t, "not ready", body["status"])
	assert.Equal(t, "no gage poll has succeeded yet", body["error"])
}

func TestMetricsEndpoint(t *testing.T) {
	rec := do(t, newTestServer(&fakeState{}, nil), http.MethodGet, "/metrics")

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "go_goroutines")
}

func TestStages(t *testing.T) {
	rec := do(t, newTestServer(&fakeState{}, nil), http.MethodGet, "/api/stages")

	require.Equal(t, http.StatusOK, rec.Code)
	stages := decode[[]domain.Stage](t, rec)
	require.Len(t, stages, 5)
	assert.Equal(t, "No Flood Risk", stages[0].Label)
	assert.Nil(t, stages[4].High)
}

func TestStage(t *testing.T) {
	tests := []struct {
		level    string
		label    string
		status   domain.ClassificationStatus
		forecast string
	}{
		{level: "9.5", label: "Minor Flood Stage", status: domain.StatusClassified, forecast: "Minor Flood Stage at 9.5ft of water"},
		{level: "14", label: "Major Flood Stage", status: domain.StatusClassified, forecast: "Major Flood Stage at 14.0 ft"},
		{level: "-1", label: domain.FaultText, status: domain.StatusFault, forecast: domain.FaultText},
		{level: "abc", label: "", status: domain.StatusUnknown, forecast: domain.PendingText},
		{level: "", label: "", status: domain.StatusUnknown, forecast: domain.PendingText},
		{level: "Inf", label: "", status: domain.StatusUnknown, forecast: domain.PendingText},
		{level: "-Inf", label: "", status: domain.StatusUnknown, forecast: domain.PendingText},
	}
	srv := newTestServer(&fakeState{}, nil)
	for _, tt := range tests {
		t.Run(tt.level, func(t *testing.T) {
			rec := do(t, srv, http.MethodGet, "/api/stage?level="+tt.level)
			require.Equal(t, http.StatusOK, rec.Code)

			got := decode[httpadapter.StageResponse](t, rec)
			assert.Equal(t, tt.label, got.Label)
			assert.Equal(t, tt.status, got.Classification.Status)
			assert.Equal(t, tt.forecast, got.Forecast)
		})
	}
}

func TestGages(t *testing.T) {
	st := domain.NewGageStatus(domain.DefaultGages()[0], &domain.WaterLevel{GageID: "15052500", Feet: 10.2}, domain.DefaultStages())
	rec := do(t, newTestServer(&fakeState{gages: []domain.GageStatus{st}}, nil), http.MethodGet, "/api/gages")

	require.Equal(t, http.StatusOK, rec.Code)
	got := decode[[]domain.GageStatus](t, rec)
	require.Len(t, got, 1)
	assert.Equal(t, "10.20 ft", got[0].Display)
	assert.Equal(t, "Moderate Flood Stage", got[0].Classification.Label())
}

func TestOverlay(t *testing.T) {
	srv := newTestServer(&fakeState{}, nil)

	t.Run("default is all", func(t *testing.T) {
		rec := do(t, srv, http.MethodGet, "/api/overlay")
		require.Equal(t, http.StatusOK, rec.Code)
		plan := decode[domain.Plan](t, rec)
		assert.True(t, plan.Selection.All)
		assert.Len(t, plan.Visible(), 13)
	})

	t.Run("barrier level", func(t *testing.T) {
		rec := do(t, srv, http.MethodGet, "/api/overlay?level=15&barrier=true")
		require.Equal(t, http.StatusOK, rec.Code)
		plan := decode[domain.Plan](t, rec)
		require.NotNil(t, plan.Active)
		assert.Equal(t, domain.VariantBarrier, plan.Active.Variant)
		assert.Len(t, plan.Visible(), 1)
	})

	t.Run("barrier forced off", func(t *testing.T) {
		rec := do(t, srv, http.MethodGet, "/api/overlay?level=10&barrier=true")
		require.Equal(t, http.StatusOK, rec.Code)
		plan := decode[domain.Plan](t, rec)
		assert.True(t, plan.BarrierForcedOff)
		assert.Equal(t, domain.VariantBase, plan.Active.Variant)
	})

	for _, target := range []string{
		"/api/overlay?level=7",
		"/api/overlay?level=abc",
		"/api/overlay?level=21",
		"/api/overlay?level=12&barrier=maybe",
		"/api/overlay?level=12&current=3",
	} {
		t.Run(target, func(t *testing.T) {
			rec := do(t, srv, http.MethodGet, target)
			assert.Equal(t, http.StatusBadRequest, rec.Code)
			assert.NotEmpty(t, decode[map[string]string](t, rec)["error"])
		})
	}
}

func TestEvents_NotLoaded(t *testing.T) {
	srv := newTestServer(&fakeState{}, nil)
	for _, target := range []string{"/api/events", "/api/events/series", "/api/events/key", "/api/alerts"} {
		rec := do(t, srv, http.MethodGet, target)
		assert.Equal(t, http.StatusServiceUnavailable, rec.Code, target)
	}
}

func TestEvents(t *testing.T) {
	srv := newTestServer(&fakeState{events: testEvents()}, nil)

	rec := do(t, srv, http.MethodGet, "/api/events")
	require.Equal(t, http.StatusOK, rec.Code)
	body := decode[map[string]any](t, rec)
	assert.EqualValues(t, 3, body["total"])
	assert.NotContains(t, body["columns"], "Remarks")
	assert.Contains(t, body["columns"], "Peak Water Level at Mendenhall Lake (ft)")

	rec = do(t, srv, http.MethodGet, "/api/events/series")
	require.Equal(t, http.StatusOK, rec.Code)
	series := decode[[]domain.SeriesPoint](t, rec)
	require.Len(t, series, 2)
	assert.Equal(t, domain.SeriesPoint{Date: "8/13/2025", Level: 16.67, Color: "plum"}, series[0])

	rec = do(t, srv, http.MethodGet, "/api/events/key")
	require.Equal(t, http.StatusOK, rec.Code)
	key := decode[[]domain.KeyRow](t, rec)
	require.Len(t, key, 13)
	for _, row := range key {
		switch row.Feet {
		case 15:
			assert.Equal(t, 1, row.Events)
		case 16:
			assert.Equal(t, 1, row.Events)
			require.NotNil(t, row.Record)
			assert.Equal(t, 2025, row.Record.Year)
		}
	}
}

func TestEventRefresh(t *testing.T) {
	state := &fakeState{events: testEvents()}
	srv := newTestServer(state, nil)

	rec := do(t, srv, http.MethodPost, "/api/events/refresh")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 3, decode[map[string]int](t, rec)["total"])
	assert.Equal(t, 1, state.refreshed)

	rec = do(t, srv, http.MethodGet, "/api/events/refresh")
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)

	state.refreshErr = errors.New("refresh events: status 403")
	rec = do(t, srv, http.MethodPost, "/api/events/refresh")
	assert.Equal(t, http.StatusBadGateway, rec.Code)
}

func TestAlerts(t *testing.T) {
	sum := domain.SummarizeAlerts(nil)
	rec := do(t, newTestServer(&fakeState{alerts: &sum}, nil), http.MethodGet, "/api/alerts")

	require.Equal(t, http.StatusOK, rec.Code)
	got := decode[domain.AlertSummary](t, rec)
	assert.False(t, got.Active)
	assert.Equal(t, domain.NoAlertsHeadline, got.Headline)
}

func TestSearch(t *testing.T) {
	t.Run("disabled", func(t *testing.T) {
		rec := do(t, newTestServer(&fakeState{}, nil), http.MethodGet, "/api/search?q=back+loop")
		assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	})

	t.Run("missing query", func(t *testing.T) {
		rec := do(t, newTestServer(&fakeState{}, &fakeSearch{}), http.MethodGet, "/api/search?q=+")
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("upstream error", func(t *testing.T) {
		rec := do(t, newTestServer(&fakeState{}, &fakeSearch{err: errors.New("401")}), http.MethodGet, "/api/search?q=view")
		assert.Equal(t, http.StatusBadGateway, rec.Code)
	})

	t.Run("success", func(t *testing.T) {
		search := &fakeSearch{places: []domain.Place{{Name: "View Drive", Lat: 58.42, Lon: -134.56}}}
		rec := do(t, newTestServer(&fakeState{}, search), http.MethodGet, "/api/search?q=View+Dr")
		require.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, "View Dr", search.query)
		places := decode[[]domain.Place](t, rec)
		require.Len(t, places, 1)
		assert.Equal(t, "View Drive", places[0].Name)
	})
}

func TestTransitions(t *testing.T) {
	tr := domain.StageTransition{ID: "t1", GageID: "15052500", From: "Action Stage", To: "Minor Flood Stage", StageIndex: 2, Feet: 9.1}
	state := &fakeState{transitions: []domain.StageTransition{tr}}
	srv := newTestServer(state, nil)

	rec := do(t, srv, http.MethodGet, "/api/transitions?gage=15052500&limit=5")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, []domain.StageTransition{tr}, decode[[]domain.StageTransition](t, rec))
	assert.Equal(t, "15052500", state.gotGage)
	assert.Equal(t, 5, state.gotLimit)

	rec = do(t, srv, http.MethodGet, "/api/transitions")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 20, state.gotLimit)

	for _, limit := range []string{"0", "501", "ten"} {
		rec = do(t, srv, http.MethodGet, "/api/transitions?limit="+limit)
		assert.Equal(t, http.StatusBadRequest, rec.Code, limit)
	}

	state.historyErr = monitor.ErrHistoryDisabled
	rec = do(t, srv, http.MethodGet, "/api/transitions")
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)

	state.historyErr = errors.New("database is locked")
	rec = do(t, srv, http.MethodGet, "/api/transitions")
	assert.Equal(t, http.StatusBadGateway, rec.Code)
	assert.False(t, strings.Contains(rec.Body.String(), "locked"))
}

func TestReadings(t *testing.T) {
	reading := domain.WaterLevel{GageID: "15052500", Feet: 9.87, Time: time.Date(2025, 8, 13, 17, 45, 0, 0, time.UTC)}
	state := &fakeState{readings: []domain.WaterLevel{reading}}
	srv := newTestServer(state, nil)

	rec := do(t, srv, http.MethodGet, "/api/readings?gage=15052500&limit=3")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, []domain.WaterLevel{reading}, decode[[]domain.WaterLevel](t, rec))
	assert.Equal(t, "15052500", state.gotGage)
	assert.Equal(t, 3, state.gotLimit)

	rec = do(t, srv, http.MethodGet, "/api/readings?gage=15052500")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 20, state.gotLimit)

	tests := []struct {
		target string
		status int
	}{
		{"/api/readings", http.StatusBadRequest},
		{"/api/readings?gage=15052500&limit=0", http.StatusBadRequest},
		{"/api/readings?gage=15052500&limit=abc", http.StatusBadRequest},
	}
	for _, tt := range tests {
		rec = do(t, srv, http.MethodGet, tt.target)
		assert.Equal(t, tt.status, rec.Code, tt.target)
	}

	state.historyErr = monitor.ErrHistoryDisabled
	rec = do(t, srv, http.MethodGet, "/api/readings?gage=15052500")
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)

	state.historyErr = errors.New("connection refused")
	rec = do(t, srv, http.MethodGet, "/api/readings?gage=15052500")
	assert.Equal(t, http.StatusBadGateway, rec.Code)
}
