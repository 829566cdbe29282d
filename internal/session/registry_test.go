package session

import (
	"errors"
	"testing"
	"time"

	"blueprint/api/internal/graph"
)

func testRegistry(t *testing.T) (*Registry, *time.Time) {
	t.Helper()
	current := time.Date(2026, 3, 14, 9, 0, 0, 0, time.UTC)
	reg := NewRegistry(0)
	reg.now = func() time.Time { return current }
	return reg, &current
}

func TestCreateAndGet(t *testing.T) {
	reg, _ := testRegistry(t)
	r := reg.Create(graph.New(), nil, "restomod")
	if r.ID == "" {
		t.Fatalf("record has no ID")
	}
	got, err := reg.Get(r.ID)
	if err != nil || got != r {
		t.Fatalf("Get(%s) = %v, %v", r.ID, got, err)
	}
	if _, err := reg.Get("missing"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("Get(missing) err = %v, want ErrNotFound", err)
	}
	if reg.Len() != 1 {
		t.Fatalf("Len = %d, want 1", reg.Len())
	}
}

func TestAdjustClientsClampsAtZero(t *testing.T) {
	reg, _ := testRegistry(t)
	r := reg.Create(graph.New(), nil, "restomod")

	if n, _ := reg.AdjustClients(r.ID, 2); n != 2 {
		t.Fatalf("count = %d, want 2", n)
	}
	if n, _ := reg.AdjustClients(r.ID, -5); n != 0 {
		t.Fatalf("count = %d, want clamp to 0", n)
	}
	if _, err := reg.AdjustClients("missing", 1); !errors.Is(err, ErrNotFound) {
		t.Fatalf("AdjustClients(missing) err = %v", err)
	}
}

func TestCleanupIdle(t *testing.T) {
	reg, now := testRegistry(t)

	stale := reg.Create(graph.New(), nil, "restomod")
	*now = now.Add(30 * time.Hour)
	fresh := reg.Create(graph.New(), nil, "restomod")
	occupied := reg.Create(graph.New(), nil, "restomod")
	if _, err := reg.AdjustClients(occupied.ID, 1); err != nil {
		t.Fatalf("AdjustClients: %v", err)
	}
	// Wind the occupied session's activity back so only its client
	// count protects it.
	occupied.MarkActivity(now.Add(-30 * time.Hour))

	removed := reg.CleanupIdle(24 * time.Hour)
	if len(removed) != 1 || removed[0] != stale.ID {
		t.Fatalf("removed = %v, want only %s", removed, stale.ID)
	}
	if _, err := reg.Get(stale.ID); !errors.Is(err, ErrNotFound) {
		t.Fatalf("stale session still present")
	}
	if _, err := reg.Get(fresh.ID); err != nil {
		t.Fatalf("fresh session removed")
	}
	if _, err := reg.Get(occupied.ID); err != nil {
		t.Fatalf("session with connected clients removed")
	}
}

func TestCleanupIdleThresholdIsStrict(t *testing.T) {
	reg, now := testRegistry(t)
	r := reg.Create(graph.New(), nil, "restomod")

	*now = now.Add(24 * time.Hour)
	if removed := reg.CleanupIdle(24 * time.Hour); len(removed) != 0 {
		t.Fatalf("session exactly at the threshold removed: %v", removed)
	}
	*now = now.Add(time.Second)
	if removed := reg.CleanupIdle(24 * time.Hour); len(removed) != 1 || removed[0] != r.ID {
		t.Fatalf("removed = %v, want %s", removed, r.ID)
	}
}

func TestTouchResetsIdleClock(t *testing.T) {
	reg, now := testRegistry(t)
	r := reg.Create(graph.New(), nil, "restomod")

	*now = now.Add(20 * time.Hour)
	reg.Touch(r.ID)
	*now = now.Add(10 * time.Hour)

	if removed := reg.CleanupIdle(24 * time.Hour); len(removed) != 0 {
		t.Fatalf("touched session removed: %v", removed)
	}
}

func TestListSortedByCreation(t *testing.T) {
	reg, now := testRegistry(t)
	a := reg.Create(graph.New(), nil, "restomod")
	*now = now.Add(time.Minute)
	b := reg.Create(graph.New(), nil, "restomod")

	infos := reg.List()
	if len(infos) != 2 {
		t.Fatalf("List len = %d, want 2", len(infos))
	}
	if infos[0].ID != a.ID || infos[1].ID != b.ID {
		t.Fatalf("List order = %s, %s", infos[0].ID, infos[1].ID)
	}
	if infos[0].TemplateID != "restomod" || infos[0].NodeCount != 0 {
		t.Fatalf("unexpected info: %+v", infos[0])
	}
}

func TestInfoReflectsDispatcherState(t *testing.T) {
	reg, _ := testRegistry(t)
	r := reg.Create(graph.New(), nil, "restomod")

	info, err := reg.Info(r.ID)
	if err != nil {
		t.Fatalf("Info: %v", err)
	}
	if info.UndoAvailable || info.RedoAvailable || info.Corrupt {
		t.Fatalf("fresh session reports history: %+v", info)
	}
	if _, err := reg.Info("missing"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("Info(missing) err = %v", err)
	}
}

func TestRemove(t *testing.T) {
	reg, _ := testRegistry(t)
	r := reg.Create(graph.New(), nil, "restomod")
	if err := reg.Remove(r.ID); err != nil {
		t.Fatalf("Remove: %v", err)
	}
	if err := reg.Remove(r.ID); !errors.Is(err, ErrNotFound) {
		t.Fatalf("second Remove err = %v", err)
	}
}
