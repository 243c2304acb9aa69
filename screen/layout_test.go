package screen

import (
	"errors"
	"testing"
)

func twoHostLayout() *Layout {
	l := NewLayout(Geometry{Host: "macbook", Width: 2560, Height: 1600})
	l.AddScreen(Geometry{Host: "desktop", Width: 1920, Height: 1080})
	l.SetNeighbor("macbook", EdgeRight, "desktop")
	l.SetNeighbor("desktop", EdgeLeft, "macbook")
	return l
}

func TestNeighborLookup(t *testing.T) {
	l := twoHostLayout()

	neighbor, ok := l.NeighborOf("macbook", EdgeRight)
	if !ok || neighbor != "desktop" {
		t.Fatalf("NeighborOf right = %q, %v; want desktop, true", neighbor, ok)
	}
	if _, ok := l.NeighborOf("macbook", EdgeLeft); ok {
		t.Fatal("unconfigured edge should have no neighbor")
	}
}

func TestAsymmetricAdjacencyIsLegal(t *testing.T) {
	l := NewLayout(Geometry{Host: "a", Width: 1920, Height: 1080})
	l.AddScreen(Geometry{Host: "b", Width: 1920, Height: 1080})
	l.SetNeighbor("a", EdgeRight, "b")
	// No return edge from b: transitions are one-directional.

	if _, ok := l.NeighborOf("a", EdgeRight); !ok {
		t.Fatal("a -> b adjacency missing")
	}
	if _, ok := l.NeighborOf("b", EdgeLeft); ok {
		t.Fatal("b should have no neighbor configured")
	}
}

func TestRemapProportionalScale(t *testing.T) {
	l := twoHostLayout()

	// 2560x1600 leaving the right edge at y=800 onto a 1920x1080 neighbor
	// enters at x=0, y=540 (800/1600 of 1080).
	x, y, err := l.RemapPosition("macbook", EdgeRight, 2559, 800, "desktop")
	if err != nil {
		t.Fatalf("RemapPosition failed: %v", err)
	}
	if x != 0 || y != 540 {
		t.Fatalf("remap = (%d, %d); want (0, 540)", x, y)
	}
}

func TestRemapEntryEdges(t *testing.T) {
	l := twoHostLayout()
	l.SetNeighbor("macbook", EdgeLeft, "desktop")
	l.SetNeighbor("macbook", EdgeTop, "desktop")
	l.SetNeighbor("macbook", EdgeBottom, "desktop")

	cases := []struct {
		edge         Edge
		x, y         uint32
		wantX, wantY uint32
	}{
		{EdgeLeft, 0, 1600 - 1, 1919, 1079},
		{EdgeTop, 1280, 0, 960, 1079},
		{EdgeBottom, 0, 1599, 0, 0},
	}
	for _, tc := range cases {
		x, y, err := l.RemapPosition("macbook", tc.edge, tc.x, tc.y, "desktop")
		if err != nil {
			t.Fatalf("RemapPosition %s failed: %v", tc.edge, err)
		}
		if x != tc.wantX || y != tc.wantY {
			t.Fatalf("remap via %s = (%d, %d); want (%d, %d)", tc.edge, x, y, tc.wantX, tc.wantY)
		}
	}
}

func TestRemapUnknownHost(t *testing.T) {
	l := twoHostLayout()
	if _, _, err := l.RemapPosition("macbook", EdgeRight, 0, 0, "ghost"); !errors.Is(err, ErrUnknownHost) {
		t.Fatalf("expected ErrUnknownHost, got %v", err)
	}
}

func TestClampBounds(t *testing.T) {
	l := twoHostLayout()
	x, y, err := l.Clamp("desktop", 5000, 5000)
	if err != nil {
		t.Fatalf("Clamp failed: %v", err)
	}
	if x != 1919 || y != 1079 {
		t.Fatalf("clamp = (%d, %d); want (1919, 1079)", x, y)
	}
}

func TestRemoveScreenKeepsLocal(t *testing.T) {
	l := twoHostLayout()
	l.RemoveScreen("desktop")
	if _, ok := l.Screen("desktop"); ok {
		t.Fatal("desktop should be forgotten")
	}

	l.RemoveScreen("macbook")
	if _, ok := l.Screen("macbook"); !ok {
		t.Fatal("local screen must never be removed")
	}

	// Adjacency survives so the host can come back.
	if _, ok := l.NeighborOf("macbook", EdgeRight); !ok {
		t.Fatal("configured adjacency should survive screen removal")
	}
}

func TestParseEdge(t *testing.T) {
	for _, name := range []string{"left", "right", "top", "bottom"} {
		edge, err := ParseEdge(name)
		if err != nil {
			t.Fatalf("ParseEdge(%q) failed: %v", name, err)
		}
		if edge.String() != name {
			t.Fatalf("ParseEdge(%q).String() = %q", name, edge.String())
		}
	}
	if _, err := ParseEdge("diagonal"); !errors.Is(err, ErrInvalidEdge) {
		t.Fatalf("expected ErrInvalidEdge, got %v", err)
	}
}

func TestOppositeEdge(t *testing.T) {
	pairs := map[Edge]Edge{
		EdgeLeft:   EdgeRight,
		EdgeRight:  EdgeLeft,
		EdgeTop:    EdgeBottom,
		EdgeBottom: EdgeTop,
	}
	for edge, want := range pairs {
		if got := edge.Opposite(); got != want {
			t.Fatalf("%s.Opposite() = %s; want %s", edge, got, want)
		}
	}
}
