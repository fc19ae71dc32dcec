// Command eventsjson converts the flood events CSV into the JSON document the
// dashboard serves from /api/events, plus the graph series and level key. It
// runs the same normalizer as the server so offline fixtures match live output.
//
// Usage:
//
//	go run ./cmd/eventsjson \
//	  -csv data/FloodEvents.csv \
//	  -out data/mock/flood_events.json \
//	  -catalog catalog.yaml
package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"log"
	"os"

	"github.com/couchcryptid/glof-monitor/internal/adapter/eventsource"
	"github.com/couchcryptid/glof-monitor/internal/domain"
)

// document is the file written by eventsjson.
type document struct {
	Events domain.EventSet      `json:"events"`
	Series []domain.SeriesPoint `json:"series"`
	Key    []domain.KeyRow      `json:"key"`
}

func main() {
	if err := run(); err != nil {
		log.Fatal(err)
	}
}

func run() error {
	csvPath := flag.String("csv", "", "path to the flood events CSV")
	out := flag.String("out", "", "output path for the JSON document, - for stdout")
	catalogPath := flag.String("catalog", "", "catalog YAML overriding the built-in event schema")
	flag.Parse()

	if *csvPath == "" || *out == "" {
		flag.Usage()
		return fmt.Errorf("missing required flags: -csv, -out")
	}

	catalog := domain.DefaultCatalog()
	if *catalogPath != "" {
		var err error
		if catalog, err = domain.LoadCatalog(*catalogPath); err != nil {
			return err
		}
	}

	f, err := os.Open(*csvPath)
	if err != nil {
		return fmt.Errorf("open csv: %w", err)
	}
	defer f.Close()

	doc, err := convert(f, catalog)
	if err != nil {
		return err
	}

	if err := write(*out, doc); err != nil {
		return err
	}
	// The summary goes to stderr so it never mixes with JSON on stdout.
	summarize(log.Default(), doc, catalog.Events)
	if *out != "-" {
		log.Printf("wrote %s", *out)
	}
	return nil
}

func write(path string, doc document) error {
	if path == "-" {
		return writeJSON(os.Stdout, doc)
	}
	w, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create output: %w", err)
	}
	if err := writeJSON(w, doc); err != nil {
		_ = w.Close()
		return err
	}
	if err := w.Close(); err != nil {
		return fmt.Errorf("close output: %w", err)
	}
	return nil
}

func convert(r io.Reader, catalog domain.Catalog) (document, error) {
	table, err := eventsource.Parse(r)
	if err != nil {
		return document{}, fmt.Errorf("parse csv: %w", err)
	}
	set := catalog.Events.NormalizeTable(table.Header, table.Rows)
	return document{
		Events: set,
		Series: set.Series(),
		Key:    set.KeyRows(catalog.Overlays, catalog.RecordCrests),
	}, nil
}

func writeJSON(w io.Writer, doc document) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(doc); err != nil {
		return fmt.Errorf("encode json: %w", err)
	}
	return nil
}

func summarize(logger *log.Logger, doc document, schema domain.EventSchema) {
	logger.Printf("total: %d events", doc.Events.Total)
	if doc.Events.Largest != nil {
		peak, _ := schema.Peak(*doc.Events.Largest)
		logger.Printf("largest: %.2f ft on %s", peak, (*doc.Events.Largest)[schema.DateColumn])
	}
	if doc.Events.MostRecent != nil {
		logger.Printf("most recent: %s", (*doc.Events.MostRecent)[schema.DateColumn])
	}
	counts := doc.Events.BucketCounts()
	for _, ft := range domain.SortedBuckets(counts) {
		logger.Printf("  %d ft: %d", ft, counts[ft])
	}
}
