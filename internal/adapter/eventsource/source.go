// Package eventsource loads the historical flood event CSV over HTTP or from disk.
package eventsource

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/couchcryptid/glof-monitor/internal/domain"
)

// Table is a parsed CSV: its header row and keyed data rows.
type Table struct {
	Header []string
	Rows   []domain.RawRow
}

// Source fetches the event CSV from a URL. http(s) URLs are downloaded,
// file:// URLs and bare paths are read from disk.
type Source struct {
	location   string
	httpClient *http.Client
}

// New creates a Source for location.
func New(location string, timeout time.Duration) *Source {
	return &Source{
		location:   location,
		httpClient: &http.Client{Timeout: timeout},
	}
}

// Fetch retrieves and parses the CSV.
func (s *Source) Fetch(ctx context.Context) (Table, error) {
	if strings.HasPrefix(s.location, "http://") || strings.HasPrefix(s.location, "https://") {
		return s.fetchHTTP(ctx)
	}

	f, err := os.Open(strings.TrimPrefix(s.location, "file://"))
	if err != nil {
		return Table{}, fmt.Errorf("open events csv: %w", err)
	}
	defer f.Close()
	return Parse(f)
}

func (s *Source) fetchHTTP(ctx context.Context) (Table, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.location, nil)
	if err != nil {
		return Table{}, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "text/csv")

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return Table{}, fmt.Errorf("events csv request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return Table{}, fmt.Errorf("events csv error: status %d: %s", resp.StatusCode, body)
	}
	return Parse(resp.Body)
}

// Parse reads a CSV with a header row. Blank lines are skipped, header cells
// are trimmed, and short rows leave their trailing columns empty.
func Parse(r io.Reader) (Table, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true

	header, err := reader.Read()
	if errors.Is(err, io.EOF) {
		return Table{Rows: []domain.RawRow{}}, nil
	}
	if err != nil {
		return Table{}, fmt.Errorf("read csv header: %w", err)
	}
	for i := range header {
		header[i] = strings.TrimSpace(strings.TrimPrefix(header[i], "\ufeff"))
	}

	t := Table{Header: header, Rows: []domain.RawRow{}}
	for {
		rec, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return Table{}, fmt.Errorf("read csv row: %w", err)
		}
		if blank(rec) {
			continue
		}
		row := make(domain.RawRow, len(header))
		for i, col := range header {
			if col == "" {
				continue
			}
			if i < len(rec) {
				row[col] = strings.TrimSpace(rec[i])
			} else {
				row[col] = ""
			}
		}
		t.Rows = append(t.Rows, row)
	}
	return t, nil
}

func blank(rec []string) bool {
	for _, v := range rec {
		if strings.TrimSpace(v) != "" {
			return false
		}
	}
	return true
}
