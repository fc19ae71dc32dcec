package domain

import (
	"math"
	"sort"
	"strconv"
	"strings"
)

// RawRow is one CSV data row keyed by its raw header.
type RawRow map[string]string

// EventRecord is a normalized flood event keyed by display column name.
type EventRecord map[string]string

// EventSchema is the column rename and exclusion table for the event CSV.
type EventSchema struct {
	Rename     map[string]string `json:"rename" yaml:"rename"`
	Exclude    []string          `json:"exclude" yaml:"exclude"`
	PeakColumn string            `json:"peak_column" yaml:"peak_column"`
	DateColumn string            `json:"date_column" yaml:"date_column"`
	Missing    string            `json:"missing" yaml:"missing"`
}

func (s EventSchema) excluded(col string) bool {
	for _, e := range s.Exclude {
		if e == col {
			return true
		}
	}
	return false
}

// column resolves a raw column to its output name. ok is false when the
// column is dropped either before or after renaming.
func (s EventSchema) column(raw string) (string, bool) {
	if s.excluded(raw) {
		return "", false
	}
	name := raw
	if renamed, found := s.Rename[raw]; found {
		name = renamed
	}
	if s.excluded(name) {
		return "", false
	}
	return name, true
}

// Columns maps a raw header to the normalized column order.
func (s EventSchema) Columns(header []string) []string {
	out := make([]string, 0, len(header))
	seen := make(map[string]bool, len(header))
	for _, h := range header {
		name, ok := s.column(h)
		if !ok || seen[name] {
			continue
		}
		seen[name] = true
		out = append(out, name)
	}
	return out
}

// NormalizeRow renames and filters one row and blanks missing markers. When
// several raw columns land on one name a renamed source beats a column that
// already had that name, and among equals the lexically first raw header wins.
func (s EventSchema) NormalizeRow(row RawRow) EventRecord {
	keys := make([]string, 0, len(row))
	for k := range row {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	out := make(EventRecord, len(row))
	fromRename := make(map[string]bool, len(row))
	for _, k := range keys {
		name, ok := s.column(k)
		if !ok {
			continue
		}
		renamed := name != k
		if _, taken := out[name]; taken && (fromRename[name] || !renamed) {
			continue
		}
		v := row[k]
		if strings.TrimSpace(v) == s.Missing && s.Missing != "" {
			v = ""
		}
		out[name] = v
		fromRename[name] = renamed
	}
	return out
}

// Peak parses the record's peak water level.
func (s EventSchema) Peak(rec EventRecord) (float64, bool) {
	return parseLevel(rec[s.PeakColumn])
}

func parseLevel(v string) (float64, bool) {
	f, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, false
	}
	return f, true
}

// EventSet is the normalized event table with its aggregates. Largest and
// MostRecent point into Records and are nil when not applicable.
type EventSet struct {
	Columns    []string      `json:"columns,omitempty"`
	Records    []EventRecord `json:"records"`
	Total      int           `json:"total"`
	Largest    *EventRecord  `json:"largest,omitempty"`
	MostRecent *EventRecord  `json:"most_recent,omitempty"`

	schema EventSchema
}

// Normalize converts raw rows and derives the aggregates. Input order is kept.
func (s EventSchema) Normalize(rows []RawRow) EventSet {
	set := EventSet{Records: make([]EventRecord, 0, len(rows)), schema: s}
	for _, r := range rows {
		set.Records = append(set.Records, s.NormalizeRow(r))
	}
	set.Total = len(set.Records)
	if set.Total == 0 {
		return set
	}
	set.MostRecent = &set.Records[0]

	best := -1
	var bestPeak float64
	for i, rec := range set.Records {
		peak, ok := s.Peak(rec)
		if !ok {
			continue
		}
		if best == -1 || peak > bestPeak {
			best, bestPeak = i, peak
		}
	}
	if best >= 0 {
		set.Largest = &set.Records[best]
	}
	return set
}

// NormalizeTable is Normalize plus the normalized column order of header.
func (s EventSchema) NormalizeTable(header []string, rows []RawRow) EventSet {
	set := s.Normalize(rows)
	set.Columns = s.Columns(header)
	return set
}

// SeriesPoint is one (peak date, peak level) point of the events graph.
type SeriesPoint struct {
	Date  string  `json:"date"`
	Level float64 `json:"level_ft"`
	Color string  `json:"color"`
}

// Series returns scatter points for records with both a peak date and level.
func (e EventSet) Series() []SeriesPoint {
	out := make([]SeriesPoint, 0, len(e.Records))
	for _, rec := range e.Records {
		date := strings.TrimSpace(rec[e.schema.DateColumn])
		peak, ok := e.schema.Peak(rec)
		if date == "" || !ok {
			continue
		}
		out = append(out, SeriesPoint{Date: date, Level: peak, Color: TableColor(peak)})
	}
	return out
}

// BucketCounts counts events per whole foot of peak level.
func (e EventSet) BucketCounts() map[int]int {
	counts := make(map[int]int)
	for _, rec := range e.Records {
		if peak, ok := e.schema.Peak(rec); ok {
			counts[int(math.Floor(peak))]++
		}
	}
	return counts
}

// RecordCrest is a notable historical crest shown on the level key.
type RecordCrest struct {
	Year  int     `json:"year" yaml:"year"`
	Level float64 `json:"level_ft" yaml:"level"`
}

// KeyRow is one row of the flood level key.
type KeyRow struct {
	Feet   int          `json:"feet"`
	Color  string       `json:"color"`
	Events int          `json:"events"`
	Record *RecordCrest `json:"record,omitempty"`
}

// KeyRows joins the overlay levels with event counts and record crests.
func (e EventSet) KeyRows(overlays OverlayCatalog, crests []RecordCrest) []KeyRow {
	counts := e.BucketCounts()
	rows := make([]KeyRow, 0, len(overlays.Layers))
	for _, o := range overlays.sorted() {
		row := KeyRow{Feet: o.Feet, Color: o.Color, Events: counts[o.Feet]}
		for i := range crests {
			if int(math.Floor(crests[i].Level)) == o.Feet {
				c := crests[i]
				row.Record = &c
				break
			}
		}
		rows = append(rows, row)
	}
	return rows
}

// SortedBuckets returns the bucket levels of counts in ascending order.
func SortedBuckets(counts map[int]int) []int {
	keys := make([]int, 0, len(counts))
	for k := range counts {
		keys = append(keys, k)
	}
	sort.Ints(keys)
	return keys
}
