package screen

import (
	"errors"
	"fmt"
)

var (
	// ErrUnknownHost indicates a host name absent from the layout.
	ErrUnknownHost = errors.New("screen: unknown host")
	// ErrInvalidEdge indicates an unparseable edge name.
	ErrInvalidEdge = errors.New("screen: invalid edge")
)

// Edge identifies one side of a screen.
type Edge uint8

const (
	EdgeLeft Edge = iota
	EdgeRight
	EdgeTop
	EdgeBottom
)

func (e Edge) String() string {
	switch e {
	case EdgeLeft:
		return "left"
	case EdgeRight:
		return "right"
	case EdgeTop:
		return "top"
	case EdgeBottom:
		return "bottom"
	}
	return "invalid"
}

// Opposite returns the edge the pointer enters through on the neighboring
// screen after crossing e.
func (e Edge) Opposite() Edge {
	switch e {
	case EdgeLeft:
		return EdgeRight
	case EdgeRight:
		return EdgeLeft
	case EdgeTop:
		return EdgeBottom
	default:
		return EdgeTop
	}
}

// ParseEdge parses a configuration edge name.
func ParseEdge(name string) (Edge, error) {
	switch name {
	case "left":
		return EdgeLeft, nil
	case "right":
		return EdgeRight, nil
	case "top":
		return EdgeTop, nil
	case "bottom":
		return EdgeBottom, nil
	}
	return 0, fmt.Errorf("%w: %q", ErrInvalidEdge, name)
}

// Geometry is one host's screen configuration. Immutable once loaded; used
// only for edge-remap math.
type Geometry struct {
	Host   string
	Width  uint32
	Height uint32
}

// Valid reports whether the geometry can participate in remap math.
func (g Geometry) Valid() bool {
	return g.Host != "" && g.Width > 0 && g.Height > 0
}

// Layout holds per-host screen geometry and neighbor adjacency. Adjacency is
// per host and need not be globally symmetric: an asymmetric configuration is
// legal and simply produces one-directional transitions.
//
// Layout is not synchronized. It is owned by the routing core, which is the
// single goroutine that reads and mutates it.
type Layout struct {
	local     string
	screens   map[string]Geometry
	neighbors map[string]map[Edge]string
}

// NewLayout creates a layout seeded with the local host's geometry.
func NewLayout(local Geometry) *Layout {
	l := &Layout{
		local:     local.Host,
		screens:   make(map[string]Geometry),
		neighbors: make(map[string]map[Edge]string),
	}
	l.screens[local.Host] = local
	return l
}

// LocalHost returns the local host name.
func (l *Layout) LocalHost() string {
	return l.local
}

// AddScreen inserts or replaces a host's geometry.
func (l *Layout) AddScreen(g Geometry) {
	l.screens[g.Host] = g
}

// RemoveScreen forgets a host's geometry. Neighbor entries pointing at the
// host are kept: adjacency comes from configuration and the host may return.
func (l *Layout) RemoveScreen(host string) {
	if host == l.local {
		return
	}
	delete(l.screens, host)
}

// Screen returns a host's geometry.
func (l *Layout) Screen(host string) (Geometry, bool) {
	g, ok := l.screens[host]
	return g, ok
}

// SetNeighbor configures the host reached by leaving host through edge.
func (l *Layout) SetNeighbor(host string, edge Edge, neighbor string) {
	m, ok := l.neighbors[host]
	if !ok {
		m = make(map[Edge]string)
		l.neighbors[host] = m
	}
	m[edge] = neighbor
}

// NeighborOf returns the host configured beyond the given edge, if any.
func (l *Layout) NeighborOf(host string, edge Edge) (string, bool) {
	neighbor, ok := l.neighbors[host][edge]
	return neighbor, ok
}

// RemapPosition translates a pointer position crossing an edge from the
// leaving host onto the entering host. The coordinate orthogonal to the
// crossed edge resets to the entry edge (0 or max); the coordinate parallel
// to the edge scales proportionally by the ratio of screen sizes along that
// axis, then clamps to the entering screen's bounds. This preserves relative
// position across screens of different resolution.
func (l *Layout) RemapPosition(leaving string, edge Edge, x, y uint32, entering string) (uint32, uint32, error) {
	from, ok := l.screens[leaving]
	if !ok {
		return 0, 0, fmt.Errorf("%w: %q", ErrUnknownHost, leaving)
	}
	to, ok := l.screens[entering]
	if !ok {
		return 0, 0, fmt.Errorf("%w: %q", ErrUnknownHost, entering)
	}

	switch edge {
	case EdgeLeft:
		return to.Width - 1, scaleClamp(y, from.Height, to.Height), nil
	case EdgeRight:
		return 0, scaleClamp(y, from.Height, to.Height), nil
	case EdgeTop:
		return scaleClamp(x, from.Width, to.Width), to.Height - 1, nil
	default: // EdgeBottom
		return scaleClamp(x, from.Width, to.Width), 0, nil
	}
}

// Clamp confines a position to the host's screen bounds.
func (l *Layout) Clamp(host string, x, y uint32) (uint32, uint32, error) {
	g, ok := l.screens[host]
	if !ok {
		return 0, 0, fmt.Errorf("%w: %q", ErrUnknownHost, host)
	}
	if x > g.Width-1 {
		x = g.Width - 1
	}
	if y > g.Height-1 {
		y = g.Height - 1
	}
	return x, y, nil
}

func scaleClamp(v, fromSize, toSize uint32) uint32 {
	scaled := uint32(uint64(v) * uint64(toSize) / uint64(fromSize))
	if scaled > toSize-1 {
		scaled = toSize - 1
	}
	return scaled
}
