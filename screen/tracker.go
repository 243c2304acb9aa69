package screen

// DefaultDwellSamples is the number of consecutive edge samples required
// before a transition fires. Sample counts, not wall-clock time, keep the
// decision deterministic under variable polling rates.
const DefaultDwellSamples = 3

// Action is the tracker's verdict for one position sample.
type Action uint8

const (
	// ActionNone: pointer is inside the screen, or a handoff already fired.
	ActionNone Action = iota
	// ActionClamp: pointer touched an edge with no configured neighbor and
	// must be held at the boundary (hard screen wall).
	ActionClamp
	// ActionHandoff: the dwell threshold was met on an edge with a neighbor;
	// ownership should move to Target at the remapped entry position.
	ActionHandoff
)

// Decision is the outcome of observing one position sample.
type Decision struct {
	Action Action

	// Clamped position for ActionClamp; remapped entry position on Target
	// for ActionHandoff.
	X, Y uint32

	// Target and Edge are set for ActionHandoff.
	Target string
	Edge   Edge
}

// Tracker is the edge transition engine for one host's pointer. It consumes
// absolute position samples and decides when the pointer has dwelt on a
// configured boundary long enough to hand ownership to a neighbor.
//
// A handoff is emitted exactly once: afterwards the tracker latches and
// returns ActionNone until Reset is called, which the caller does when
// ownership settles.
type Tracker struct {
	layout *Layout
	host   string
	dwell  int

	edge      Edge
	atEdge    bool
	samples   int
	handedOff bool
}

// NewTracker creates a tracker for host's screen within layout.
func NewTracker(layout *Layout, host string, dwellSamples int) *Tracker {
	if dwellSamples < 1 {
		dwellSamples = DefaultDwellSamples
	}
	return &Tracker{layout: layout, host: host, dwell: dwellSamples}
}

// Reset returns the tracker to idle. Called when ownership changes or the
// pointer is known to have left the edge region.
func (t *Tracker) Reset() {
	t.atEdge = false
	t.samples = 0
	t.handedOff = false
}

// Dwelling reports whether the pointer is accumulating consecutive samples on
// an edge that leads to a neighbor.
func (t *Tracker) Dwelling() bool {
	return t.atEdge && !t.handedOff
}

// Observe feeds one absolute position sample and returns the decision.
func (t *Tracker) Observe(x, y uint32) Decision {
	if t.handedOff {
		return Decision{Action: ActionNone}
	}

	geom, ok := t.layout.Screen(t.host)
	if !ok {
		return Decision{Action: ActionNone}
	}

	edge, touched := touchedEdge(geom, x, y)
	if !touched {
		t.atEdge = false
		t.samples = 0
		return Decision{Action: ActionNone}
	}

	target, hasNeighbor := t.layout.NeighborOf(t.host, edge)
	if !hasNeighbor {
		// Hard wall: clamp at the boundary, never transition.
		t.atEdge = false
		t.samples = 0
		cx, cy, err := t.layout.Clamp(t.host, x, y)
		if err != nil {
			return Decision{Action: ActionNone}
		}
		return Decision{Action: ActionClamp, X: cx, Y: cy, Edge: edge}
	}

	if !t.atEdge || t.edge != edge {
		// First sample at this edge; a single jitter sample never fires.
		t.atEdge = true
		t.edge = edge
		t.samples = 1
	} else {
		t.samples++
	}

	if t.samples < t.dwell {
		return Decision{Action: ActionNone}
	}

	ex, ey, err := t.layout.RemapPosition(t.host, edge, x, y, target)
	if err != nil {
		// Neighbor configured but its geometry is not known yet; treat the
		// edge as a wall until the peer announces itself.
		cx, cy, cerr := t.layout.Clamp(t.host, x, y)
		if cerr != nil {
			return Decision{Action: ActionNone}
		}
		return Decision{Action: ActionClamp, X: cx, Y: cy, Edge: edge}
	}

	t.handedOff = true
	return Decision{Action: ActionHandoff, X: ex, Y: ey, Target: target, Edge: edge}
}

func touchedEdge(g Geometry, x, y uint32) (Edge, bool) {
	switch {
	case x == 0:
		return EdgeLeft, true
	case x >= g.Width-1:
		return EdgeRight, true
	case y == 0:
		return EdgeTop, true
	case y >= g.Height-1:
		return EdgeBottom, true
	}
	return 0, false
}
