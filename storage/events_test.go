package storage

import (
	"testing"
	"time"
)

func TestHandoffEventLog(t *testing.T) {
	store := newTestStore(t)

	if err := store.RecordHandoff("desktop", HandoffEnter, 0, 540); err != nil {
		t.Fatalf("RecordHandoff failed: %v", err)
	}
	if err := store.RecordHandoff("desktop", HandoffLeave, 1919, 600); err != nil {
		t.Fatalf("RecordHandoff failed: %v", err)
	}

	events, err := store.RecentHandoffs(10)
	if err != nil {
		t.Fatalf("RecentHandoffs failed: %v", err)
	}
	if len(events) != 2 {
		t.Fatalf("expected 2 events, got %d", len(events))
	}
	if events[0].Direction != HandoffLeave {
		t.Fatalf("newest event direction = %q, want leave", events[0].Direction)
	}
	if events[1].X != 0 || events[1].Y != 540 {
		t.Fatalf("enter point = (%d,%d), want (0,540)", events[1].X, events[1].Y)
	}
}

func TestRecordHandoffValidation(t *testing.T) {
	store := newTestStore(t)

	if err := store.RecordHandoff("", HandoffEnter, 0, 0); err == nil {
		t.Fatal("RecordHandoff with empty peer succeeded")
	}
	if err := store.RecordHandoff("desktop", "sideways", 0, 0); err == nil {
		t.Fatal("RecordHandoff with bad direction succeeded")
	}
}

func TestPruneHandoffs(t *testing.T) {
	store := newTestStore(t)
	store.handoffRetention = -time.Second // everything is immediately stale

	if err := store.RecordHandoff("desktop", HandoffEnter, 0, 0); err != nil {
		t.Fatalf("RecordHandoff failed: %v", err)
	}

	pruned, err := store.PruneHandoffs()
	if err != nil {
		t.Fatalf("PruneHandoffs failed: %v", err)
	}
	if pruned != 1 {
		t.Fatalf("pruned = %d, want 1", pruned)
	}
}
