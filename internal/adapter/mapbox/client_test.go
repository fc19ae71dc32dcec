package mapbox

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/couchcryptid/glof-monitor/internal/observability"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	testToken         = "test-token"
	contentTypeJSON   = "application/json"
	headerContentType = "Content-Type"
)

func testMetrics() *observability.Metrics {
	return observability.NewMetricsForTesting()
}

func testClient(baseURL string) *Client {
	return &Client{
		token:      testToken,
		httpClient: &http.Client{Timeout: 5 * time.Second},
		baseURL:    baseURL,
		metrics:    testMetrics(),
		logger:     slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
}

func TestClient_Search_Success(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.True(t, strings.HasSuffix(r.URL.Path, "/9295 View Dr.json"), r.URL.Path)
		q := r.URL.Query()
		assert.Equal(t, testToken, q.Get("access_token"))
		assert.Equal(t, "true", q.Get("autocomplete"))
		assert.Equal(t, JuneauBBox, q.Get("bbox"))
		assert.Equal(t, JuneauProximity, q.Get("proximity"))
		assert.Equal(t, "5", q.Get("limit"))

		resp := response{
			Features: []feature{
				{
					Center:    []float64{-134.5605, 58.3977},
					PlaceName: "9295 View Drive, Juneau, Alaska 99801, United States",
					Text:      "View Drive",
					Relevance: 0.97,
				},
				{
					Center:    []float64{-134.5611, 58.3969},
					PlaceName: "View Drive, Juneau, Alaska 99801, United States",
					Text:      "View Drive",
					Relevance: 0.81,
				},
			},
		}
		w.Header().Set(headerContentType, contentTypeJSON)
		require.NoError(t, json.NewEncoder(w).Encode(resp))
	}))
	defer srv.Close()

	c := testClient(srv.URL)
	places, err := c.Search(context.Background(), " 9295 View Dr ")
	require.NoError(t, err)
	require.Len(t, places, 2)

	assert.Equal(t, 58.3977, places[0].Lat)
	assert.Equal(t, -134.5605, places[0].Lon)
	assert.Equal(t, "View Drive", places[0].Name)
	assert.Equal(t, "9295 View Drive, Juneau, Alaska 99801, United States", places[0].Address)
	assert.Equal(t, 0.97, places[0].Relevance)
	assert.InDelta(t, 1, testutil.ToFloat64(c.metrics.SearchRequests.WithLabelValues("success")), 0)
}

func TestClient_Search_EmptyQuery(t *testing.T) {
	c := testClient("http://127.0.0.1:0")
	places, err := c.Search(context.Background(), "   ")
	require.NoError(t, err)
	assert.Empty(t, places)
}

func TestClient_Search_NoFeatures(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set(headerContentType, contentTypeJSON)
		_, _ = io.WriteString(w, `{"features":[]}`)
	}))
	defer srv.Close()

	c := testClient(srv.URL)
	places, err := c.Search(context.Background(), "zzzz")
	require.NoError(t, err)
	assert.Empty(t, places)
	assert.InDelta(t, 1, testutil.ToFloat64(c.metrics.SearchRequests.WithLabelValues("empty")), 0)
}

func TestClient_Search_HTTPError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = io.WriteString(w, `{"message":"Not Authorized - Invalid Token"}`)
	}))
	defer srv.Close()

	c := testClient(srv.URL)
	_, err := c.Search(context.Background(), "Mendenhall")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "status 401")
	assert.InDelta(t, 1, testutil.ToFloat64(c.metrics.SearchRequests.WithLabelValues("error")), 0)
}

func TestClient_Search_InvalidJSON(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = io.WriteString(w, `{invalid`)
	}))
	defer srv.Close()

	_, err := testClient(srv.URL).Search(context.Background(), "Mendenhall")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "decode response")
}

func TestClient_Search_MissingCenter(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = io.WriteString(w, `{"features":[{"place_name":"Juneau","text":"Juneau","relevance":0.5}]}`)
	}))
	defer srv.Close()

	places, err := testClient(srv.URL).Search(context.Background(), "Juneau")
	require.NoError(t, err)
	require.Len(t, places, 1)
	assert.Zero(t, places[0].Lat)
	assert.Zero(t, places[0].Lon)
}
