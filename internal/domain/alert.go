package domain

import "time"

const (
	NoAlertsHeadline     = "No Active Alerts"
	DefaultAlertHeadline = "Advisory Issued"
	DefaultAlertLink     = "https://www.weather.gov/ajk/suicideBasin"
)

// Alert is one active NWS alert for the forecast zone.
type Alert struct {
	ID          string    `json:"id"`
	Event       string    `json:"event"`
	Headline    string    `json:"headline"`
	Severity    string    `json:"severity"`
	Description string    `json:"description,omitempty"`
	Instruction string    `json:"instruction,omitempty"`
	Effective   time.Time `json:"effective"`
	Expires     time.Time `json:"expires"`
	Web         string    `json:"web,omitempty"`
}

// AlertSummary is the banner state derived from the active alerts.
type AlertSummary struct {
	Active    bool      `json:"active"`
	Headline  string    `json:"headline"`
	Link      string    `json:"link"`
	Alerts    []Alert   `json:"alerts"`
	CheckedAt time.Time `json:"checked_at"`
}

// SummarizeAlerts builds the banner from the first alert.
func SummarizeAlerts(alerts []Alert) AlertSummary {
	sum := AlertSummary{
		Headline:  NoAlertsHeadline,
		Link:      DefaultAlertLink,
		Alerts:    alerts,
		CheckedAt: clock.Now().UTC(),
	}
	if sum.Alerts == nil {
		sum.Alerts = []Alert{}
	}
	if len(alerts) == 0 {
		return sum
	}

	first := alerts[0]
	sum.Active = true
	switch {
	case first.Headline != "":
		sum.Headline = first.Headline
	case first.Event != "":
		sum.Headline = first.Event
	default:
		sum.Headline = DefaultAlertHeadline
	}
	if first.Web != "" {
		sum.Link = first.Web
	}
	return sum
}
