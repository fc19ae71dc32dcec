package domain

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
)

const (
	// FaultText is shown when a gage reports a negative level.
	FaultText = "No Water Level Data Available"
	// PendingText is shown while no reading has been classified.
	PendingText = "Loading..."
)

// Stage is one named flood severity bucket covering [Low, High) feet.
// A nil High means the bucket is unbounded above.
type Stage struct {
	Label string   `json:"label" yaml:"label"`
	Low   float64  `json:"low_ft" yaml:"low"`
	High  *float64 `json:"high_ft,omitempty" yaml:"high,omitempty"`
	Color string   `json:"color" yaml:"color"`
	Info  string   `json:"info" yaml:"info"`
}

// Contains reports whether level falls inside the stage range.
func (s Stage) Contains(level float64) bool {
	if level < s.Low {
		return false
	}
	return s.High == nil || level < *s.High
}

// StageCatalog is an ordered list of contiguous stages starting at zero.
type StageCatalog []Stage

// Validate checks that the stages start at 0, are contiguous and end unbounded.
func (c StageCatalog) Validate() error {
	if len(c) == 0 {
		return errors.New("stage catalog is empty")
	}
	if c[0].Low != 0 {
		return fmt.Errorf("first stage %q must start at 0, got %v", c[0].Label, c[0].Low)
	}
	for i, s := range c {
		if s.Label == "" {
			return fmt.Errorf("stage %d has no label", i)
		}
		last := i == len(c)-1
		if last {
			if s.High != nil {
				return fmt.Errorf("last stage %q must be unbounded", s.Label)
			}
			continue
		}
		if s.High == nil {
			return fmt.Errorf("stage %q is unbounded but not last", s.Label)
		}
		if *s.High <= s.Low {
			return fmt.Errorf("stage %q has empty range [%v, %v)", s.Label, s.Low, *s.High)
		}
		if c[i+1].Low != *s.High {
			return fmt.Errorf("gap between stage %q and %q", s.Label, c[i+1].Label)
		}
	}
	return nil
}

// ClassificationStatus tells apart a matched stage from the two sentinels.
type ClassificationStatus string

const (
	StatusUnknown    ClassificationStatus = "unknown"
	StatusFault      ClassificationStatus = "fault"
	StatusClassified ClassificationStatus = "classified"
)

// Classification is the result of matching a level against a StageCatalog.
// Index is the stage position in the catalog, or -1 when no stage matched.
type Classification struct {
	Status ClassificationStatus `json:"status"`
	Level  *float64             `json:"level_ft,omitempty"`
	Stage  *Stage               `json:"stage,omitempty"`
	Index  int                  `json:"index"`
}

// Classify matches level against the catalog. A nil, NaN or infinite level is
// unknown, a negative level is a fault.
func (c StageCatalog) Classify(level *float64) Classification {
	if level == nil || math.IsNaN(*level) || math.IsInf(*level, 0) {
		return Classification{Status: StatusUnknown, Index: -1}
	}
	v := *level
	if v < 0 {
		return Classification{Status: StatusFault, Level: &v, Index: -1}
	}
	for i := range c {
		if c[i].Contains(v) {
			s := c[i]
			return Classification{
				Status: StatusClassified,
				Level:  &v,
				Stage:  &s,
				Index:  i,
			}
		}
	}
	return Classification{Status: StatusUnknown, Level: &v, Index: -1}
}

// ClassifyValue is Classify for a present value.
func (c StageCatalog) ClassifyValue(level float64) Classification {
	return c.Classify(&level)
}

// ClassifyString parses s as a float and classifies it. Blank or
// non-numeric input is unknown.
func (c StageCatalog) ClassifyString(s string) Classification {
	v, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil {
		return Classification{Status: StatusUnknown, Index: -1}
	}
	return c.Classify(&v)
}

// Label returns the stage label, FaultText, or "" when unknown.
func (c Classification) Label() string {
	switch c.Status {
	case StatusClassified:
		return c.Stage.Label
	case StatusFault:
		return FaultText
	default:
		return ""
	}
}

// Color returns the stage display color or "" when no stage matched.
func (c Classification) Color() string {
	if c.Stage == nil {
		return ""
	}
	return c.Stage.Color
}

// Describe renders the forecast sentence used beside the lake gauge.
func (c Classification) Describe() string {
	switch c.Status {
	case StatusFault:
		return FaultText
	case StatusClassified:
		if c.Stage.High == nil {
			return fmt.Sprintf("%s at %.1f ft", c.Stage.Label, *c.Level)
		}
		return fmt.Sprintf("%s at %.1fft of water", c.Stage.Label, *c.Level)
	default:
		return PendingText
	}
}

// TableColor is the row shading of the historical events table.
func TableColor(level float64) string {
	switch {
	case level < 9:
		return "lightyellow"
	case level < 10:
		return "lightsalmon"
	case level < 14:
		return "lightcoral"
	default:
		return "plum"
	}
}
