package domain

import (
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strconv"
	"strings"
	"sync"
)

const (
	// MinOverlayFeet and MaxOverlayFeet bound the stepper levels.
	MinOverlayFeet = 8
	MaxOverlayFeet = 20

	// AllLevels is the stepper sentinel that stacks every overlay.
	AllLevels = "All"

	AllOpacity    = 0.25
	SingleOpacity = 0.5

	layerOffset = 64
)

// Variant distinguishes the unprotected inundation extent from the one
// modelled behind deployed barriers.
type Variant string

const (
	VariantBase    Variant = "base"
	VariantBarrier Variant = "barrier"
)

// LayerNumber maps a level in feet to its tileset numbering.
func LayerNumber(feet int) int {
	return layerOffset + (feet - MinOverlayFeet)
}

// LayerID is the map fill layer id for a level.
func LayerID(feet int) string {
	return fmt.Sprintf("flood%d-fill", LayerNumber(feet))
}

// SourceID is the map source id for a level.
func SourceID(feet int) string {
	return fmt.Sprintf("flood%d", LayerNumber(feet))
}

// Overlay is the tileset pair for one integer flood level.
type Overlay struct {
	Feet           int    `json:"feet" yaml:"feet"`
	BaseTileset    string `json:"base_tileset" yaml:"base_tileset"`
	BarrierTileset string `json:"barrier_tileset,omitempty" yaml:"barrier_tileset,omitempty"`
	Color          string `json:"color" yaml:"color"`
}

// OverlayCatalog lists the overlays and the band where barriers apply.
type OverlayCatalog struct {
	Layers     []Overlay `json:"layers" yaml:"layers"`
	BarrierMin int       `json:"barrier_min_ft" yaml:"barrier_min"`
	BarrierMax int       `json:"barrier_max_ft" yaml:"barrier_max"`
}

// Validate rejects duplicate or out-of-range levels.
func (c OverlayCatalog) Validate() error {
	if len(c.Layers) == 0 {
		return errors.New("overlay catalog is empty")
	}
	seen := make(map[int]bool, len(c.Layers))
	for _, o := range c.Layers {
		if o.Feet < MinOverlayFeet || o.Feet > MaxOverlayFeet {
			return fmt.Errorf("overlay level %d outside %d-%d", o.Feet, MinOverlayFeet, MaxOverlayFeet)
		}
		if seen[o.Feet] {
			return fmt.Errorf("duplicate overlay level %d", o.Feet)
		}
		if o.BaseTileset == "" {
			return fmt.Errorf("overlay level %d has no base tileset", o.Feet)
		}
		seen[o.Feet] = true
	}
	if c.BarrierMin > c.BarrierMax {
		return fmt.Errorf("barrier band [%d, %d] is inverted", c.BarrierMin, c.BarrierMax)
	}
	return nil
}

// Lookup finds the overlay for a level.
func (c OverlayCatalog) Lookup(feet int) (Overlay, bool) {
	for _, o := range c.Layers {
		if o.Feet == feet {
			return o, true
		}
	}
	return Overlay{}, false
}

// BarrierAllowed reports whether feet lies inside the barrier band.
func (c OverlayCatalog) BarrierAllowed(feet int) bool {
	return feet >= c.BarrierMin && feet <= c.BarrierMax
}

// sorted returns the overlays ordered by level.
func (c OverlayCatalog) sorted() []Overlay {
	out := make([]Overlay, len(c.Layers))
	copy(out, c.Layers)
	sort.Slice(out, func(i, j int) bool { return out[i].Feet < out[j].Feet })
	return out
}

// LayerRef identifies one renderable map layer.
type LayerRef struct {
	Feet        int     `json:"feet"`
	Variant     Variant `json:"variant"`
	LayerID     string  `json:"layer_id"`
	SourceID    string  `json:"source_id"`
	Tileset     string  `json:"tileset"`
	SourceLayer string  `json:"source_layer"`
	Color       string  `json:"color"`
}

func (o Overlay) ref(v Variant) (LayerRef, bool) {
	r := LayerRef{
		Feet:     o.Feet,
		Variant:  v,
		LayerID:  LayerID(o.Feet),
		SourceID: SourceID(o.Feet),
		Color:    o.Color,
	}
	switch v {
	case VariantBarrier:
		if o.BarrierTileset == "" {
			return LayerRef{}, false
		}
		r.Tileset = o.BarrierTileset
		r.SourceLayer = SourceID(o.Feet)
	default:
		r.Tileset = o.BaseTileset
		r.SourceLayer = strconv.Itoa(LayerNumber(o.Feet))
	}
	return r, true
}

// Selection is a stepper position plus the barrier toggle.
type Selection struct {
	All     bool `json:"all"`
	Feet    int  `json:"feet,omitempty"`
	Barrier bool `json:"barrier"`
}

// String renders the stepper label: "All" or the level in feet.
func (s Selection) String() string {
	if s.All {
		return AllLevels
	}
	return strconv.Itoa(s.Feet)
}

// ParseSelection reads a stepper label ("All" or 8-20) and the barrier flag.
func ParseSelection(level string, barrier bool) (Selection, error) {
	level = strings.TrimSpace(level)
	if strings.EqualFold(level, AllLevels) {
		return Selection{All: true, Barrier: barrier}, nil
	}
	feet, err := strconv.Atoi(level)
	if err != nil {
		return Selection{}, fmt.Errorf("level %q is neither %s nor an integer", level, AllLevels)
	}
	if feet < MinOverlayFeet || feet > MaxOverlayFeet {
		return Selection{}, fmt.Errorf("level %d outside %d-%d", feet, MinOverlayFeet, MaxOverlayFeet)
	}
	return Selection{Feet: feet, Barrier: barrier}, nil
}

// LayerState is the visibility of one layer within a Plan.
type LayerState struct {
	LayerRef
	Visible bool    `json:"visible"`
	Opacity float64 `json:"opacity"`
}

// Plan is the complete visibility assignment for every overlay layer. It
// replaces the previous plan as a whole, so no two exclusive layers are ever
// shown together.
type Plan struct {
	Selection        Selection    `json:"selection"`
	Active           *LayerRef    `json:"active,omitempty"`
	Layers           []LayerState `json:"layers"`
	BarrierForcedOff bool         `json:"barrier_forced_off,omitempty"`
	Warning          string       `json:"warning,omitempty"`
}

// Visible returns the layers the plan shows.
func (p Plan) Visible() []LayerState {
	var out []LayerState
	for _, l := range p.Layers {
		if l.Visible {
			out = append(out, l)
		}
	}
	return out
}

// SelectOverlay computes the plan for requested given the current selection.
// A barrier request outside the barrier band is downgraded to the base
// overlay. A request for a level or variant the catalog lacks leaves the
// current plan in place and logs a warning.
func SelectOverlay(c OverlayCatalog, current, requested Selection, logger *slog.Logger) Plan {
	if requested.All {
		plan := buildPlan(c, Selection{All: true})
		plan.BarrierForcedOff = requested.Barrier
		return plan
	}

	forced := false
	if requested.Barrier && !c.BarrierAllowed(requested.Feet) {
		requested.Barrier = false
		forced = true
	}

	overlay, ok := c.Lookup(requested.Feet)
	if !ok {
		return missingLayer(c, current, requested, logger)
	}
	variant := VariantBase
	if requested.Barrier {
		variant = VariantBarrier
	}
	if _, ok := overlay.ref(variant); !ok {
		return missingLayer(c, current, requested, logger)
	}

	plan := buildPlan(c, requested)
	plan.BarrierForcedOff = forced
	return plan
}

func missingLayer(c OverlayCatalog, current, requested Selection, logger *slog.Logger) Plan {
	msg := fmt.Sprintf("layer %s not found", LayerID(requested.Feet))
	if requested.Barrier {
		msg = fmt.Sprintf("barrier layer %s not found", LayerID(requested.Feet))
	}
	if logger != nil {
		logger.Warn(msg, "level_ft", requested.Feet, "barrier", requested.Barrier)
	}
	plan := buildPlan(c, current)
	plan.Warning = msg
	return plan
}

// buildPlan assumes sel is resolvable, falling back to the All stack when it
// is not.
func buildPlan(c OverlayCatalog, sel Selection) Plan {
	layers := c.sorted()

	var active *LayerRef
	if !sel.All {
		variant := VariantBase
		if sel.Barrier {
			variant = VariantBarrier
		}
		if o, ok := c.Lookup(sel.Feet); ok {
			if r, ok := o.ref(variant); ok {
				active = &r
			}
		}
		if active == nil {
			sel = Selection{All: true}
		}
	}

	plan := Plan{Selection: sel, Active: active, Layers: make([]LayerState, 0, len(layers))}
	for _, o := range layers {
		if active != nil && o.Feet == active.Feet {
			plan.Layers = append(plan.Layers, LayerState{LayerRef: *active, Visible: true, Opacity: SingleOpacity})
			continue
		}
		r, _ := o.ref(VariantBase)
		st := LayerState{LayerRef: r}
		if sel.All {
			st.Visible = true
			st.Opacity = AllOpacity
		}
		plan.Layers = append(plan.Layers, st)
	}
	return plan
}

// Steps lists the stepper positions: All first, then each level ascending.
func (c OverlayCatalog) Steps() []Selection {
	steps := []Selection{{All: true}}
	for _, o := range c.sorted() {
		steps = append(steps, Selection{Feet: o.Feet})
	}
	return steps
}

// Step moves delta positions along Steps from cur, clamping at both ends.
// The barrier flag is carried over.
func (c OverlayCatalog) Step(cur Selection, delta int) Selection {
	steps := c.Steps()
	idx := 0
	for i, s := range steps {
		if s.All == cur.All && (cur.All || s.Feet == cur.Feet) {
			idx = i
			break
		}
	}
	idx += delta
	if idx < 0 {
		idx = 0
	}
	if idx >= len(steps) {
		idx = len(steps) - 1
	}
	next := steps[idx]
	next.Barrier = cur.Barrier
	return next
}

// Selector holds the current plan for a single viewer.
type Selector struct {
	mu      sync.Mutex
	catalog OverlayCatalog
	logger  *slog.Logger
	plan    Plan
}

// NewSelector starts on the All stack.
func NewSelector(c OverlayCatalog, logger *slog.Logger) *Selector {
	return &Selector{
		catalog: c,
		logger:  logger,
		plan:    buildPlan(c, Selection{All: true}),
	}
}

// Select applies a new selection and returns the resulting plan.
func (s *Selector) Select(req Selection) Plan {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.plan = SelectOverlay(s.catalog, s.plan.Selection, req, s.logger)
	return s.plan
}

// Step moves the stepper by delta and applies the result.
func (s *Selector) Step(delta int) Plan {
	s.mu.Lock()
	cur := s.plan.Selection
	s.mu.Unlock()
	return s.Select(s.catalog.Step(cur, delta))
}

// ToggleBarrier flips barrier mode at the current level.
func (s *Selector) ToggleBarrier() Plan {
	s.mu.Lock()
	cur := s.plan.Selection
	s.mu.Unlock()
	cur.Barrier = !cur.Barrier
	return s.Select(cur)
}

// Plan returns the current plan.
func (s *Selector) Plan() Plan {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.plan
}
