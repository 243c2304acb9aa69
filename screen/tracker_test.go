package screen

import "testing"

func TestTrackerDwellBeforeHandoff(t *testing.T) {
	l := twoHostLayout()
	tracker := NewTracker(l, "macbook", 3)

	if d := tracker.Observe(2559, 800); d.Action != ActionNone {
		t.Fatalf("sample 1: got action %d; a single jitter sample must not fire", d.Action)
	}
	if d := tracker.Observe(2559, 801); d.Action != ActionNone {
		t.Fatalf("sample 2: got action %d; want none", d.Action)
	}

	d := tracker.Observe(2559, 800)
	if d.Action != ActionHandoff {
		t.Fatalf("sample 3: got action %d; want handoff", d.Action)
	}
	if d.Target != "desktop" || d.Edge != EdgeRight {
		t.Fatalf("handoff target = %q via %s; want desktop via right", d.Target, d.Edge)
	}
	if d.X != 0 || d.Y != 540 {
		t.Fatalf("entry position = (%d, %d); want (0, 540)", d.X, d.Y)
	}
}

func TestTrackerJitterResetsDwell(t *testing.T) {
	l := twoHostLayout()
	tracker := NewTracker(l, "macbook", 2)

	tracker.Observe(2559, 800)
	if !tracker.Dwelling() {
		t.Fatal("tracker should report dwelling at a neighbor edge")
	}
	// Pointer leaves the edge: the dwell count starts over.
	if d := tracker.Observe(1000, 800); d.Action != ActionNone {
		t.Fatal("interior sample should be none")
	}
	if tracker.Dwelling() {
		t.Fatal("tracker still dwelling after an interior sample")
	}
	if d := tracker.Observe(2559, 800); d.Action != ActionNone {
		t.Fatal("first sample after jitter must not fire")
	}
	if d := tracker.Observe(2559, 800); d.Action != ActionHandoff {
		t.Fatal("second consecutive sample should fire")
	}
}

func TestTrackerHandoffEmittedOnce(t *testing.T) {
	l := twoHostLayout()
	tracker := NewTracker(l, "macbook", 1)

	if d := tracker.Observe(2559, 800); d.Action != ActionHandoff {
		t.Fatal("expected handoff")
	}
	// Latched until the caller resets on ownership change.
	if d := tracker.Observe(2559, 800); d.Action != ActionNone {
		t.Fatal("handoff must be emitted exactly once")
	}

	tracker.Reset()
	if d := tracker.Observe(2559, 800); d.Action != ActionHandoff {
		t.Fatal("expected handoff after reset")
	}
}

func TestTrackerNoNeighborClamps(t *testing.T) {
	l := twoHostLayout()
	tracker := NewTracker(l, "macbook", 1)

	// Left edge has no neighbor: hard wall, no transition ever.
	for i := 0; i < 5; i++ {
		d := tracker.Observe(0, 500)
		if d.Action != ActionClamp {
			t.Fatalf("sample %d: got action %d; want clamp", i, d.Action)
		}
		if d.X != 0 || d.Y != 500 {
			t.Fatalf("clamp position = (%d, %d); want (0, 500)", d.X, d.Y)
		}
	}
}

func TestTrackerEdgeSwitchRestartsDwell(t *testing.T) {
	l := twoHostLayout()
	l.SetNeighbor("macbook", EdgeTop, "desktop")
	tracker := NewTracker(l, "macbook", 2)

	tracker.Observe(2559, 800)
	// Corner move: right edge to top edge restarts the count.
	if d := tracker.Observe(1280, 0); d.Action != ActionNone {
		t.Fatal("first sample on a new edge must not fire")
	}
	d := tracker.Observe(1280, 0)
	if d.Action != ActionHandoff || d.Edge != EdgeTop {
		t.Fatalf("got action %d via %s; want handoff via top", d.Action, d.Edge)
	}
}

func TestTrackerNeighborWithoutGeometryClamps(t *testing.T) {
	l := NewLayout(Geometry{Host: "a", Width: 1920, Height: 1080})
	l.SetNeighbor("a", EdgeRight, "b") // b never announced its screen
	tracker := NewTracker(l, "a", 1)

	d := tracker.Observe(1919, 500)
	if d.Action != ActionClamp {
		t.Fatalf("got action %d; want clamp while neighbor geometry unknown", d.Action)
	}
}
