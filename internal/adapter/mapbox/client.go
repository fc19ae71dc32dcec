package mapbox

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/couchcryptid/glof-monitor/internal/domain"
	"github.com/couchcryptid/glof-monitor/internal/observability"
)

// Search is restricted to the Juneau borough and biased toward downtown.
const (
	JuneauBBox      = "-135.147043,58.097567,-134.027043,58.677567"
	JuneauProximity = "-134.587043,58.387567"
	searchLimit     = 5
)

// Client implements domain.PlaceSearcher using the Mapbox Geocoding API.
type Client struct {
	token      string
	httpClient *http.Client
	baseURL    string
	metrics    *observability.Metrics
	logger     *slog.Logger
}

// NewClient creates a Mapbox geocoding client.
func NewClient(token string, timeout time.Duration, metrics *observability.Metrics, logger *slog.Logger) *Client {
	return &Client{
		token: token,
		httpClient: &http.Client{
			Timeout: timeout,
		},
		baseURL: "https://api.mapbox.com/geocoding/v5/mapbox.places",
		metrics: metrics,
		logger:  logger,
	}
}

// Search runs an autocomplete address search inside the Juneau bounding box.
func (c *Client) Search(ctx context.Context, query string) ([]domain.Place, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return []domain.Place{}, nil
	}

	u := fmt.Sprintf("%s/%s.json", c.baseURL, url.PathEscape(query))
	params := url.Values{
		"access_token": {c.token},
		"autocomplete": {"true"},
		"bbox":         {JuneauBBox},
		"proximity":    {JuneauProximity},
		"limit":        {fmt.Sprint(searchLimit)},
	}

	places, err := c.doRequest(ctx, u+"?"+params.Encode())
	switch {
	case err != nil:
		c.metrics.SearchRequests.WithLabelValues("error").Inc()
		c.logger.Warn("mapbox search failed", "query", query, "error", err)
	case len(places) == 0:
		c.metrics.SearchRequests.WithLabelValues("empty").Inc()
	default:
		c.metrics.SearchRequests.WithLabelValues("success").Inc()
	}
	return places, err
}

func (c *Client) doRequest(ctx context.Context, fullURL string) ([]domain.Place, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, fullURL, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	c.metrics.SearchAPIDuration.Observe(time.Since(start).Seconds())
	if err != nil {
		return nil, fmt.Errorf("search request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("mapbox API error: status %d: %s", resp.StatusCode, body)
	}

	var mapboxResp response
	if err := json.NewDecoder(resp.Body).Decode(&mapboxResp); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}

	places := make([]domain.Place, 0, len(mapboxResp.Features))
	for _, f := range mapboxResp.Features {
		p := domain.Place{
			Name:      f.Text,
			Address:   f.PlaceName,
			Relevance: f.Relevance,
		}
		if len(f.Center) == 2 {
			p.Lon = f.Center[0]
			p.Lat = f.Center[1]
		}
		places = append(places, p)
	}
	return places, nil
}

// Mapbox API response types.

type response struct {
	Features []feature `json:"features"`
}

type feature struct {
	Center    []float64 `json:"center"` // [lon, lat]
	PlaceName string    `json:"place_name"`
	Text      string    `json:"text"`
	Relevance float64   `json:"relevance"`
}
