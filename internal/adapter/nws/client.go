// Package nws reads active weather alerts from the National Weather Service API.
package nws

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/couchcryptid/glof-monitor/internal/domain"
)

// Client fetches active alerts for a forecast zone.
type Client struct {
	httpClient *http.Client
	baseURL    string
	userAgent  string
}

// NewClient creates an NWS client. The API rejects requests without a
// User-Agent identifying the application.
func NewClient(baseURL, userAgent string, timeout time.Duration) *Client {
	return &Client{
		httpClient: &http.Client{Timeout: timeout},
		baseURL:    strings.TrimRight(baseURL, "/"),
		userAgent:  userAgent,
	}
}

// ActiveAlerts returns the active alerts for zone, in API order.
func (c *Client) ActiveAlerts(ctx context.Context, zone string) ([]domain.Alert, error) {
	u := c.baseURL + "/alerts/active?" + url.Values{"zone": {zone}}.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("User-Agent", c.userAgent)
	req.Header.Set("Accept", "application/geo+json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("alerts request for %s: %w", zone, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("nws API error: status %d: %s", resp.StatusCode, body)
	}

	var ar alertsResponse
	if err := json.NewDecoder(resp.Body).Decode(&ar); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}

	alerts := make([]domain.Alert, 0, len(ar.Features))
	for _, f := range ar.Features {
		p := f.Properties
		alerts = append(alerts, domain.Alert{
			ID:          p.ID,
			Event:       p.Event,
			Headline:    p.Headline,
			Severity:    p.Severity,
			Description: p.Description,
			Instruction: p.Instruction,
			Effective:   p.Effective,
			Expires:     p.Expires,
			Web:         p.Web,
		})
	}
	return alerts, nil
}

// NWS alerts GeoJSON response types.

type alertsResponse struct {
	Features []struct {
		Properties alertProperties `json:"properties"`
	} `json:"features"`
}

type alertProperties struct {
	ID          string    `json:"id"`
	Event       string    `json:"event"`
	Headline    string    `json:"headline"`
	Severity    string    `json:"severity"`
	Description string    `json:"description"`
	Instruction string    `json:"instruction"`
	Effective   time.Time `json:"effective"`
	Expires     time.Time `json:"expires"`
	Web         string    `json:"web"`
}
