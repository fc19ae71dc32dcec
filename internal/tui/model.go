// Package tui is a terminal client that steps through the flood overlays and
// shows the live gage readings from a glof server.
package tui

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/couchcryptid/glof-monitor/internal/domain"
)

const fetchTimeout = 10 * time.Second

// gagesFetchedMsg carries the result of a gage fetch.
type gagesFetchedMsg struct {
	gages []domain.GageStatus
	err   error
}

// refreshTickMsg triggers a periodic refetch. Ticks from an older generation
// are dropped so a manual refresh does not start a second loop.
type refreshTickMsg struct {
	gen int
}

// Model is the bubbletea model of the stepper screen.
type Model struct {
	client   GageFetcher
	catalog  domain.Catalog
	selector *domain.Selector
	plan     domain.Plan

	gages   []domain.GageStatus
	loading bool
	err     error
	updated time.Time

	refreshEvery time.Duration
	refreshGen   int
	spinner      spinner.Model
	width        int
}

// NewModel creates the model. A zero refreshEvery disables auto refresh.
func NewModel(client GageFetcher, catalog domain.Catalog, refreshEvery time.Duration) Model {
	s := spinner.New()
	s.Spinner = spinner.Dot
	s.Style = lipgloss.NewStyle().Foreground(colorPrimary)

	sel := domain.NewSelector(catalog.Overlays, nil)
	return Model{
		client:       client,
		catalog:      catalog,
		selector:     sel,
		plan:         sel.Plan(),
		loading:      true,
		refreshEvery: refreshEvery,
		spinner:      s,
	}
}

func (m Model) Init() tea.Cmd {
	return tea.Batch(m.spinner.Tick, fetchGages(m.client))
}

func fetchGages(client GageFetcher) tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), fetchTimeout)
		defer cancel()
		gages, err := client.Gages(ctx)
		return gagesFetchedMsg{gages: gages, err: err}
	}
}

// scheduleRefresh arms the next tick and supersedes any pending one.
func (m *Model) scheduleRefresh() tea.Cmd {
	if m.refreshEvery <= 0 {
		return nil
	}
	m.refreshGen++
	gen := m.refreshGen
	return tea.Tick(m.refreshEvery, func(time.Time) tea.Msg { return refreshTickMsg{gen: gen} })
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		return m, nil

	case gagesFetchedMsg:
		m.loading = false
		if msg.err != nil {
			// Keep the last readings on screen.
			m.err = msg.err
		} else {
			m.err = nil
			m.gages = msg.gages
			m.updated = time.Now()
		}
		cmd := m.scheduleRefresh()
		return m, cmd

	case refreshTickMsg:
		if msg.gen != m.refreshGen || m.loading {
			return m, nil
		}
		m.loading = true
		return m, tea.Batch(m.spinner.Tick, fetchGages(m.client))

	case spinner.TickMsg:
		if !m.loading {
			return m, nil
		}
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd

	case tea.KeyMsg:
		return m.handleKey(msg)
	}
	return m, nil
}

func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "ctrl+c", "q":
		return m, tea.Quit
	case "left", "h":
		m.plan = m.selector.Step(-1)
	case "right", "l":
		m.plan = m.selector.Step(1)
	case "b":
		m.plan = m.selector.ToggleBarrier()
	case "r":
		if m.loading {
			return m, nil
		}
		m.loading = true
		return m, tea.Batch(m.spinner.Tick, fetchGages(m.client))
	}
	return m, nil
}

func (m Model) View() string {
	sections := []string{
		titleStyle.Render("Mendenhall Glacial Flood Monitor"),
		"",
		m.viewStepper(),
		sectionStyle.Render(m.viewOverlay()),
		sectionStyle.Render(m.viewGages()),
	}
	if m.err != nil {
		sections = append(sections, errorStyle.Render("✗ "+m.err.Error()))
	}
	sections = append(sections, helpStyle.Render("←/→: level • b: barrier • r: refresh • q: quit"))
	return lipgloss.JoinVertical(lipgloss.Left, sections...)
}

func (m Model) viewStepper() string {
	sel := m.plan.Selection
	level := sel.String()
	if !sel.All {
		level += " ft"
	}
	barrier := "off"
	if sel.Barrier {
		barrier = "on"
	}
	line := fmt.Sprintf("%s %s %s   %s %s",
		mutedStyle.Render("◀"), stepperStyle.Render(level), mutedStyle.Render("▶"),
		labelStyle.Render("Barrier:"), barrier)

	if sel.All {
		return line + "\n" + mutedStyle.Render("All inundation levels")
	}
	c := m.catalog.Stages.ClassifyValue(float64(sel.Feet))
	stage := stageStyle(c.Color()).Render(c.Label())
	if c.Stage != nil && c.Stage.Info != "" {
		stage += " " + mutedStyle.Render(c.Stage.Info)
	}
	return line + "\n" + stage
}

func (m Model) viewOverlay() string {
	var b strings.Builder
	b.WriteString(labelStyle.Render("Overlay") + "\n")

	visible := m.plan.Visible()
	switch {
	case m.plan.Active != nil:
		a := m.plan.Active
		fmt.Fprintf(&b, "%s (%s) %s\n", a.LayerID, a.Variant, mutedStyle.Render(a.Tileset))
		fmt.Fprintf(&b, "opacity %.2f", domain.SingleOpacity)
	default:
		fmt.Fprintf(&b, "%d layers visible at opacity %.2f", len(visible), domain.AllOpacity)
	}
	if m.plan.BarrierForcedOff {
		b.WriteString("\n" + warningStyle.Render(fmt.Sprintf("Barrier overlays exist only for %d-%d ft",
			m.catalog.Overlays.BarrierMin, m.catalog.Overlays.BarrierMax)))
	}
	if m.plan.Warning != "" {
		b.WriteString("\n" + warningStyle.Render(m.plan.Warning))
	}
	return b.String()
}

func (m Model) viewGages() string {
	var b strings.Builder
	b.WriteString(labelStyle.Render("Gages"))
	if m.loading {
		b.WriteString(" " + m.spinner.View())
	}
	b.WriteString("\n")

	if len(m.gages) == 0 {
		b.WriteString(mutedStyle.Render(domain.PendingText))
		return b.String()
	}

	for i, g := range m.gages {
		if i > 0 {
			b.WriteString("\n")
		}
		if !g.Online {
			fmt.Fprintf(&b, "%s: %s %s", g.Gage.Name, g.Display, mutedStyle.Render("(offline)"))
			continue
		}
		fmt.Fprintf(&b, "%s: %s  %s", g.Gage.Name, g.Display,
			stageStyle(g.Classification.Color()).Render(g.Forecast))
		if g.LocalTime != "" {
			b.WriteString(" " + mutedStyle.Render(g.LocalTime))
		}
	}
	if !m.updated.IsZero() {
		b.WriteString("\n" + mutedStyle.Render("updated "+m.updated.Format("15:04:05")))
	}
	return b.String()
}
