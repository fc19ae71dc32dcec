package domain

import (
	"fmt"
	"time"
	_ "time/tzdata" // gage times render in Alaska time on hosts without zoneinfo

	"github.com/google/uuid"
)

// NotAvailable is displayed for a missing or non-positive reading.
const NotAvailable = "N/A"

var anchorage = loadAnchorage()

func loadAnchorage() *time.Location {
	loc, err := time.LoadLocation("America/Anchorage")
	if err != nil {
		return time.UTC
	}
	return loc
}

// WaterLevel is one gage height observation in feet.
type WaterLevel struct {
	GageID string    `json:"gage_id"`
	Feet   float64   `json:"feet"`
	Time   time.Time `json:"time"`
}

// GageStatus is the latest known state of a gage.
type GageStatus struct {
	Gage           Gage           `json:"gage"`
	Reading        *WaterLevel    `json:"reading,omitempty"`
	Online         bool           `json:"online"`
	Display        string         `json:"display"`
	LocalTime      string         `json:"local_time,omitempty"`
	Classification Classification `json:"classification"`
	Forecast       string         `json:"forecast"`
	CheckedAt      time.Time      `json:"checked_at"`
}

// NewGageStatus classifies a reading. A nil reading marks the gage offline.
func NewGageStatus(g Gage, reading *WaterLevel, stages StageCatalog) GageStatus {
	st := GageStatus{
		Gage:      g,
		Reading:   reading,
		Online:    reading != nil,
		Display:   DisplayLevel(reading),
		CheckedAt: clock.Now().UTC(),
	}
	if reading != nil {
		st.Classification = stages.ClassifyValue(reading.Feet)
		if !reading.Time.IsZero() {
			st.LocalTime = reading.Time.In(anchorage).Format("Jan 2, 2006 3:04 PM MST")
		}
	} else {
		st.Classification = stages.Classify(nil)
	}
	st.Forecast = st.Classification.Describe()
	return st
}

// DisplayLevel formats a reading for the gage card.
func DisplayLevel(reading *WaterLevel) string {
	if reading == nil || reading.Feet <= 0 {
		return NotAvailable
	}
	return fmt.Sprintf("%.2f ft", reading.Feet)
}

// StageTransition records a gage moving from one flood stage to another.
type StageTransition struct {
	ID         string    `json:"id"`
	GageID     string    `json:"gage_id"`
	From       string    `json:"from"`
	To         string    `json:"to"`
	StageIndex int       `json:"stage_index"`
	Feet       float64   `json:"feet"`
	At         time.Time `json:"at"`
}

// DetectTransition compares two consecutive classifications of a gage. Only a
// change between two classified stages counts; first observations, faults and
// unknowns never produce a transition.
func DetectTransition(gageID string, prev, next Classification) (StageTransition, bool) {
	if prev.Status != StatusClassified || next.Status != StatusClassified {
		return StageTransition{}, false
	}
	if prev.Index == next.Index {
		return StageTransition{}, false
	}
	return StageTransition{
		ID:         uuid.NewString(),
		GageID:     gageID,
		From:       prev.Label(),
		To:         next.Label(),
		StageIndex: next.Index,
		Feet:       *next.Level,
		At:         clock.Now().UTC(),
	}, true
}
