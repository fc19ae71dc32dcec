package domain

import (
	"errors"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

const tilesetPrefix = "mapbox://mapfean."

// Gage is a USGS monitoring station.
type Gage struct {
	ID   string  `json:"id" yaml:"id"`
	Name string  `json:"name" yaml:"name"`
	Lat  float64 `json:"lat" yaml:"lat"`
	Lon  float64 `json:"lon" yaml:"lon"`
}

// Catalog bundles every lookup table the service classifies against.
type Catalog struct {
	Stages       StageCatalog   `json:"stages" yaml:"stages"`
	Overlays     OverlayCatalog `json:"overlays" yaml:"overlays"`
	Events       EventSchema    `json:"events" yaml:"events"`
	Gages        []Gage         `json:"gages" yaml:"gages"`
	RecordCrests []RecordCrest  `json:"record_crests" yaml:"record_crests"`
}

// Validate checks every section.
func (c Catalog) Validate() error {
	if err := c.Stages.Validate(); err != nil {
		return fmt.Errorf("stages: %w", err)
	}
	if err := c.Overlays.Validate(); err != nil {
		return fmt.Errorf("overlays: %w", err)
	}
	if c.Events.PeakColumn == "" {
		return errors.New("events: peak_column is required")
	}
	if len(c.Gages) == 0 {
		return errors.New("gages: at least one gage is required")
	}
	return nil
}

// Gage finds a gage by id.
func (c Catalog) Gage(id string) (Gage, bool) {
	for _, g := range c.Gages {
		if g.ID == id {
			return g, true
		}
	}
	return Gage{}, false
}

// LoadCatalog reads a YAML catalog. Sections missing from the file keep their
// built-in defaults.
func LoadCatalog(path string) (Catalog, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Catalog{}, fmt.Errorf("read catalog %s: %w", path, err)
	}
	return ParseCatalog(data)
}

// ParseCatalog decodes YAML catalog data over the defaults.
func ParseCatalog(data []byte) (Catalog, error) {
	var file Catalog
	if err := yaml.Unmarshal(data, &file); err != nil {
		return Catalog{}, fmt.Errorf("parse catalog: %w", err)
	}

	cat := DefaultCatalog()
	if len(file.Stages) > 0 {
		cat.Stages = file.Stages
	}
	if len(file.Overlays.Layers) > 0 {
		cat.Overlays = file.Overlays
	}
	if file.Events.PeakColumn != "" {
		cat.Events = file.Events
	}
	if len(file.Gages) > 0 {
		cat.Gages = file.Gages
	}
	if len(file.RecordCrests) > 0 {
		cat.RecordCrests = file.RecordCrests
	}

	if err := cat.Validate(); err != nil {
		return Catalog{}, err
	}
	return cat, nil
}

func ft(v float64) *float64 { return &v }

// DefaultCatalog returns a fresh copy of the Juneau tables.
func DefaultCatalog() Catalog {
	return Catalog{
		Stages:       DefaultStages(),
		Overlays:     DefaultOverlays(),
		Events:       DefaultEventSchema(),
		Gages:        DefaultGages(),
		RecordCrests: []RecordCrest{{Year: 2025, Level: 16.67}, {Year: 2024, Level: 15.99}, {Year: 2023, Level: 14.97}},
	}
}

// DefaultStages is the Mendenhall Lake stage table.
func DefaultStages() StageCatalog {
	return StageCatalog{
		{Label: "No Flood Risk", Low: 0, High: ft(8), Color: "#28a745", Info: "Water level is below flood risk (0ft - 8ft)"},
		{Label: "Action Stage", Low: 8, High: ft(9), Color: "#e9f502", Info: "Flooding risk starts (8ft - 9ft)"},
		{Label: "Minor Flood Stage", Low: 9, High: ft(10), Color: "#F4A100", Info: "Flooding risk 9ft - 10ft"},
		{Label: "Moderate Flood Stage", Low: 10, High: ft(14), Color: "#E2371D", Info: "Flooding risk 10ft - 14ft"},
		{Label: "Major Flood Stage", Low: 14, Color: "#9419A3", Info: "Flooding risk 14ft+"},
	}
}

// DefaultOverlays is the inundation tileset table for 8-20 ft.
func DefaultOverlays() OverlayCatalog {
	base := []string{
		"ccav82q0", "3z7whbfp", "8kk8etzn", "akq41oym", "5vsqqhd8", "awu2n97c", "a2ttaa7t",
		"0rlea0ym", "44bl8opr", "65em8or7", "9qrkn8pk", "3ktp8nyu", "avpruavl",
	}
	barrier := map[int]string{
		14: "cjs05ojz", 15: "1z6funv6", 16: "9kmxxb2g", 17: "4nh8p66z", 18: "cz0f7io4",
	}
	colors := []string{
		"#87c210", "#c3b91e", "#e68a1e", "#31a354", "#3182bd", "#124187", "#d63b3b",
		"#9b3dbd", "#d13c8f", "#c2185b", "#756bb1", "#f59380", "#ba4976",
	}

	layers := make([]Overlay, 0, len(base))
	for i, id := range base {
		feet := MinOverlayFeet + i
		o := Overlay{Feet: feet, BaseTileset: tilesetPrefix + id, Color: colors[i]}
		if b, ok := barrier[feet]; ok {
			o.BarrierTileset = tilesetPrefix + b
		}
		layers = append(layers, o)
	}
	return OverlayCatalog{Layers: layers, BarrierMin: 14, BarrierMax: 18}
}

// DefaultEventSchema is the FloodEvents.csv column table.
func DefaultEventSchema() EventSchema {
	return EventSchema{
		Rename: map[string]string{
			"Release Stage D.S. Gage (ft)": "Release Start Stage at Mendenhall Lake (ft)",
			"D.S. Gage Release Flow (cfs)": "Release Flow Rate at Mendenhall Lake (cfs)",
			"Crest Date":                   "Peak Water Level Date",
			"Crest Stage D.S. Gage (ft)":   "Peak Water Level at Mendenhall Lake (ft)",
			"D.S. Gage Crest Flow (cfs)":   "Peak Water Level Flow Rate (cfs)",
			"Impacts":                      "NWS Impacts",
		},
		Exclude:    []string{"Remarks", "Lake Peak Stage (ft)", "Release Volume (ac-ft)"},
		PeakColumn: "Peak Water Level at Mendenhall Lake (ft)",
		DateColumn: "Peak Water Level Date",
		Missing:    "-",
	}
}

// DefaultGages are the two gages on the Mendenhall system.
func DefaultGages() []Gage {
	return []Gage{
		{ID: "15052500", Name: "Mendenhall Lake at Juneau", Lat: 58.4293972, Lon: -134.5745592},
		{ID: "1505248590", Name: "Suicide Basin near Juneau", Lat: 58.4595556, Lon: -134.5038333},
	}
}
