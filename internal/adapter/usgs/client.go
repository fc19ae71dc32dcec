// Package usgs reads gage heights from the USGS NWIS instantaneous values service.
package usgs

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/couchcryptid/glof-monitor/internal/domain"
)

// GageHeightParameter is the NWIS parameter code for gage height in feet.
const GageHeightParameter = "00065"

// Client fetches the latest gage height for a site.
type Client struct {
	httpClient *http.Client
	baseURL    string
	logger     *slog.Logger
}

// NewClient creates an NWIS client rooted at baseURL (https://waterservices.usgs.gov).
func NewClient(baseURL string, timeout time.Duration, logger *slog.Logger) *Client {
	return &Client{
		httpClient: &http.Client{Timeout: timeout},
		baseURL:    strings.TrimRight(baseURL, "/"),
		logger:     logger,
	}
}

// LatestReading returns the most recent gage height for gageID. A nil reading
// with a nil error means the site reported no values and is offline.
func (c *Client) LatestReading(ctx context.Context, gageID string) (*domain.WaterLevel, error) {
	params := url.Values{
		"format":      {"json"},
		"sites":       {gageID},
		"parameterCd": {GageHeightParameter},
		"siteStatus":  {"active"},
	}
	u := c.baseURL + "/nwis/iv/?" + params.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("nwis request for %s: %w", gageID, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("nwis API error: status %d: %s", resp.StatusCode, body)
	}

	var ivResp response
	if err := json.NewDecoder(resp.Body).Decode(&ivResp); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}

	return latest(gageID, ivResp, c.logger)
}

func latest(gageID string, r response, logger *slog.Logger) (*domain.WaterLevel, error) {
	if len(r.Value.TimeSeries) == 0 || len(r.Value.TimeSeries[0].Values) == 0 {
		logger.Debug("nwis returned no time series", "gage_id", gageID)
		return nil, nil
	}
	points := r.Value.TimeSeries[0].Values[0].Value
	if len(points) == 0 {
		logger.Debug("nwis time series has no values", "gage_id", gageID)
		return nil, nil
	}

	last := points[len(points)-1]
	feet, err := strconv.ParseFloat(strings.TrimSpace(last.Value), 64)
	if err != nil {
		return nil, fmt.Errorf("parse gage height %q: %w", last.Value, err)
	}
	observed, err := time.Parse(time.RFC3339Nano, last.DateTime)
	if err != nil {
		return nil, fmt.Errorf("parse observation time %q: %w", last.DateTime, err)
	}
	return &domain.WaterLevel{GageID: gageID, Feet: feet, Time: observed.UTC()}, nil
}

// NWIS IV JSON response types.

type response struct {
	Value struct {
		TimeSeries []timeSeries `json:"timeSeries"`
	} `json:"value"`
}

type timeSeries struct {
	Values []struct {
		Value []point `json:"value"`
	} `json:"values"`
}

type point struct {
	Value    string `json:"value"`
	DateTime string `json:"dateTime"`
}
