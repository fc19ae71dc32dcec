package tui

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/couchcryptid/glof-monitor/internal/domain"
)

// GageFetcher returns the latest gage statuses.
type GageFetcher interface {
	Gages(ctx context.Context) ([]domain.GageStatus, error)
}

// APIClient reads gage statuses from a running glof server.
type APIClient struct {
	baseURL    string
	httpClient *http.Client
}

// NewAPIClient creates a client for the server at baseURL.
func NewAPIClient(baseURL string, timeout time.Duration) *APIClient {
	return &APIClient{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: timeout},
	}
}

// Gages fetches /api/gages.
func (c *APIClient) Gages(ctx context.Context) ([]domain.GageStatus, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/api/gages", nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch gages: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("glof API error: status %d: %s", resp.StatusCode, body)
	}

	var gages []domain.GageStatus
	if err := json.NewDecoder(resp.Body).Decode(&gages); err != nil {
		return nil, fmt.Errorf("decode gages: %w", err)
	}
	return gages, nil
}
