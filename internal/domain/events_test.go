package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	rawCrestDate  = "Crest Date"
	rawCrestStage = "Crest Stage D.S. Gage (ft)"
	peakDate      = "Peak Water Level Date"
	peakLevel     = "Peak Water Level at Mendenhall Lake (ft)"
)

func TestNormalize_Aggregates(t *testing.T) {
	rows := []RawRow{
		{rawCrestDate: "2023-08-23", rawCrestStage: "15.0"},
		{rawCrestDate: "2024-08-03", rawCrestStage: "16.0"},
	}

	set := DefaultEventSchema().Normalize(rows)

	assert.Equal(t, 2, set.Total)
	require.NotNil(t, set.Largest)
	assert.Equal(t, EventRecord{peakDate: "2024-08-03", peakLevel: "16.0"}, *set.Largest)
	require.NotNil(t, set.MostRecent)
	assert.Equal(t, EventRecord{peakDate: "2023-08-23", peakLevel: "15.0"}, *set.MostRecent)
	assert.Equal(t, "2023-08-23", set.Records[0][peakDate], "input order kept")
}

func TestNormalizeRow_RenameExcludeAndMissing(t *testing.T) {
	row := RawRow{
		"Release Stage D.S. Gage (ft)": "9.1",
		"D.S. Gage Release Flow (cfs)": "-",
		rawCrestDate:                   "2024-08-06",
		rawCrestStage:                  "15.99",
		"D.S. Gage Crest Flow (cfs)":   "21000",
		"Impacts":                      "Homes flooded on View Dr",
		"Remarks":                      "record",
		"Lake Peak Stage (ft)":         "1280",
		"Release Volume (ac-ft)":       "45000",
		"Release Date":                 "2024-08-05",
	}

	got := DefaultEventSchema().NormalizeRow(row)

	assert.Equal(t, EventRecord{
		"Release Start Stage at Mendenhall Lake (ft)": "9.1",
		"Release Flow Rate at Mendenhall Lake (cfs)":  "",
		peakDate:                           "2024-08-06",
		peakLevel:                          "15.99",
		"Peak Water Level Flow Rate (cfs)": "21000",
		"NWS Impacts":                      "Homes flooded on View Dr",
		"Release Date":                     "2024-08-05",
	}, got)
}

func TestNormalizeRow_CollidingColumns(t *testing.T) {
	custom := DefaultEventSchema()
	custom.Rename = map[string]string{"Crest A": "Peak", "Crest B": "Peak", "Zenith": "Peak"}

	tests := []struct {
		name   string
		schema EventSchema
		row    RawRow
		want   EventRecord
	}{
		{
			name:   "renamed source beats the raw target",
			schema: DefaultEventSchema(),
			row:    RawRow{rawCrestDate: "2024-08-06", peakDate: "1999-01-01"},
			want:   EventRecord{peakDate: "2024-08-06"},
		},
		{
			name:   "renamed source beats a raw target that sorts first",
			schema: custom,
			row:    RawRow{"Zenith": "15.99", "Peak": "1.0"},
			want:   EventRecord{"Peak": "15.99"},
		},
		{
			name:   "first of two renamed sources wins",
			schema: custom,
			row:    RawRow{"Crest B": "15.99", "Crest A": "16.67"},
			want:   EventRecord{"Peak": "16.67"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			for range 20 {
				assert.Equal(t, tt.want, tt.schema.NormalizeRow(tt.row))
			}
		})
	}
}

func TestNormalize_RenameAndExcludeAreOrderIndependent(t *testing.T) {
	row := RawRow{"Remarks": "x", rawCrestDate: "2024-08-06"}
	schema := DefaultEventSchema()

	// Excluding first then renaming.
	excluded := RawRow{}
	for k, v := range row {
		if !schema.excluded(k) {
			excluded[k] = v
		}
	}
	a := schema.NormalizeRow(excluded)

	// Renaming first then excluding.
	renamed := RawRow{}
	for k, v := range row {
		if r, ok := schema.Rename[k]; ok {
			k = r
		}
		renamed[k] = v
	}
	b := schema.NormalizeRow(renamed)

	assert.Equal(t, a, b)
	assert.Equal(t, EventRecord{peakDate: "2024-08-06"}, a)
}

func TestNormalize_ExcludesRenamedTarget(t *testing.T) {
	schema := EventSchema{
		Rename:     map[string]string{"Old": "Dropped"},
		Exclude:    []string{"Dropped"},
		PeakColumn: "Peak",
	}
	assert.Empty(t, schema.NormalizeRow(RawRow{"Old": "1"}))
}

func TestNormalize_Idempotent(t *testing.T) {
	schema := DefaultEventSchema()
	rows := []RawRow{
		{rawCrestDate: "2024-08-06", rawCrestStage: "15.99", "Remarks": "r", "Impacts": "-"},
		{rawCrestDate: "2023-08-05", rawCrestStage: "14.97"},
	}

	once := schema.Normalize(rows)
	again := make([]RawRow, len(once.Records))
	for i, r := range once.Records {
		again[i] = RawRow(r)
	}
	twice := schema.Normalize(again)

	assert.Equal(t, once.Records, twice.Records)
	assert.Equal(t, once.Total, twice.Total)
	assert.Equal(t, *once.Largest, *twice.Largest)
}

func TestNormalize_MalformedPeaksSkipped(t *testing.T) {
	rows := []RawRow{
		{rawCrestDate: "2025-08-13", rawCrestStage: "-"},
		{rawCrestDate: "2019-07-01", rawCrestStage: "unknown"},
		{rawCrestDate: "2018-07-01", rawCrestStage: "10.2"},
		{rawCrestDate: "2017-07-01", rawCrestStage: "NaN"},
	}

	set := DefaultEventSchema().Normalize(rows)

	assert.Equal(t, 4, set.Total)
	require.Len(t, set.Records, 4)
	assert.Equal(t, "unknown", set.Records[1][peakLevel])
	require.NotNil(t, set.Largest)
	assert.Equal(t, "10.2", (*set.Largest)[peakLevel])
	assert.Equal(t, "2025-08-13", (*set.MostRecent)[peakDate])
}

func TestNormalize_NoNumericPeaks(t *testing.T) {
	rows := []RawRow{{rawCrestStage: "-"}, {rawCrestStage: ""}}
	set := DefaultEventSchema().Normalize(rows)
	assert.Equal(t, 2, set.Total)
	assert.Nil(t, set.Largest)
	assert.NotNil(t, set.MostRecent)
}

func TestNormalize_TiesKeepFirst(t *testing.T) {
	rows := []RawRow{
		{rawCrestDate: "a", rawCrestStage: "12.0"},
		{rawCrestDate: "b", rawCrestStage: "14.5"},
		{rawCrestDate: "c", rawCrestStage: "14.50"},
	}
	set := DefaultEventSchema().Normalize(rows)
	require.NotNil(t, set.Largest)
	assert.Equal(t, "b", (*set.Largest)[peakDate])
}

func TestNormalize_Empty(t *testing.T) {
	set := DefaultEventSchema().Normalize(nil)
	assert.Equal(t, 0, set.Total)
	assert.Empty(t, set.Records)
	assert.NotNil(t, set.Records)
	assert.Nil(t, set.Largest)
	assert.Nil(t, set.MostRecent)
}

func TestColumns(t *testing.T) {
	header := []string{"Release Date", rawCrestDate, "Remarks", rawCrestStage, "Impacts", "Release Volume (ac-ft)"}
	got := DefaultEventSchema().Columns(header)
	assert.Equal(t, []string{"Release Date", peakDate, peakLevel, "NWS Impacts"}, got)
}

func TestSeriesAndBuckets(t *testing.T) {
	rows := []RawRow{
		{rawCrestDate: "2025-08-13", rawCrestStage: "16.67"},
		{rawCrestDate: "2024-08-06", rawCrestStage: "15.99"},
		{rawCrestDate: "", rawCrestStage: "11.2"},
		{rawCrestDate: "2016-07-12", rawCrestStage: "-"},
		{rawCrestDate: "2014-07-10", rawCrestStage: "11.9"},
	}
	set := DefaultEventSchema().Normalize(rows)

	series := set.Series()
	require.Len(t, series, 3)
	assert.Equal(t, SeriesPoint{Date: "2025-08-13", Level: 16.67, Color: "plum"}, series[0])
	assert.Equal(t, "lightcoral", series[2].Color)

	counts := set.BucketCounts()
	assert.Equal(t, map[int]int{16: 1, 15: 1, 11: 2}, counts)
	assert.Equal(t, []int{11, 15, 16}, SortedBuckets(counts))
}

func TestKeyRows(t *testing.T) {
	cat := DefaultCatalog()
	rows := []RawRow{
		{rawCrestStage: "16.67"},
		{rawCrestStage: "16.1"},
		{rawCrestStage: "9.3"},
	}
	set := cat.Events.Normalize(rows)

	key := set.KeyRows(cat.Overlays, cat.RecordCrests)
	require.Len(t, key, 13)

	assert.Equal(t, 8, key[0].Feet)
	assert.Equal(t, "#87c210", key[0].Color)
	assert.Equal(t, 0, key[0].Events)

	assert.Equal(t, 1, key[1].Events) // 9 ft

	sixteen := key[16-8]
	assert.Equal(t, 2, sixteen.Events)
	require.NotNil(t, sixteen.Record)
	assert.Equal(t, 2025, sixteen.Record.Year)

	fourteen := key[14-8]
	require.NotNil(t, fourteen.Record)
	assert.Equal(t, 2023, fourteen.Record.Year)
	assert.Nil(t, key[20-8].Record)
}
