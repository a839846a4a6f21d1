package sqlite

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/AaronLay10/RepairWorkshop/internal/progress"
)

func newStore(t *testing.T, workshopID string) *Store {
	t.Helper()
	store, err := New(filepath.Join(t.TempDir(), "nested", "workshop.db"), workshopID)
	if err != nil {
		t.Fatalf("new sqlite: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })
	if err := store.EnsureSchema(context.Background()); err != nil {
		t.Fatalf("ensure schema: %v", err)
	}
	return store
}

func TestProgressRoundTrip(t *testing.T) {
	ctx := context.Background()
	store := newStore(t, "bench-1")

	empty, err := store.LoadProgress(ctx)
	if err != nil {
		t.Fatalf("load empty: %v", err)
	}
	if empty.TotalRepairs != 0 || empty.FastestRepair != nil {
		t.Fatalf("expected zero progress, got %+v", empty)
	}

	fastest := 2500 * time.Millisecond
	played := time.Date(2026, time.January, 11, 9, 30, 0, 0, time.UTC)
	in := progress.GameProgress{
		TotalRepairs:   3,
		PerfectRepairs: 2,
		TotalPlayTime:  95 * time.Second,
		FastestRepair:  &fastest,
		ToolsRepaired:  []string{"calculator", "compass"},
		LastPlayed:     played,
	}
	if err := store.SaveProgress(ctx, in); err != nil {
		t.Fatalf("save: %v", err)
	}
	in.ToolsRepaired = []string{"calculator"}
	in.TotalRepairs = 4
	if err := store.SaveProgress(ctx, in); err != nil {
		t.Fatalf("save again: %v", err)
	}

	out, err := store.LoadProgress(ctx)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if out.TotalRepairs != 4 || out.PerfectRepairs != 2 || out.TotalPlayTime != 95*time.Second {
		t.Errorf("unexpected totals %+v", out)
	}
	if out.FastestRepair == nil || *out.FastestRepair != fastest {
		t.Errorf("unexpected fastest %v", out.FastestRepair)
	}
	if len(out.ToolsRepaired) != 1 || out.ToolsRepaired[0] != "calculator" {
		t.Errorf("unexpected tools %v", out.ToolsRepaired)
	}
	if !out.LastPlayed.Equal(played) {
		t.Errorf("unexpected last played %v", out.LastPlayed)
	}
}

func TestAchievementsReplace(t *testing.T) {
	ctx := context.Background()
	store := newStore(t, "bench-1")

	if err := store.SaveAchievements(ctx, []string{"veteran", "first_repair"}); err != nil {
		t.Fatalf("save: %v", err)
	}
	if err := store.SaveAchievements(ctx, []string{"first_repair", "speed_demon"}); err != nil {
		t.Fatalf("save: %v", err)
	}
	ids, err := store.LoadAchievements(ctx)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if len(ids) != 2 || ids[0] != "first_repair" || ids[1] != "speed_demon" {
		t.Errorf("unexpected achievements %v", ids)
	}

	if err := store.SaveAchievements(ctx, nil); err != nil {
		t.Fatalf("clear: %v", err)
	}
	if ids, _ := store.LoadAchievements(ctx); len(ids) != 0 {
		t.Errorf("expected no achievements, got %v", ids)
	}
}

func TestRepairedToolsOrder(t *testing.T) {
	ctx := context.Background()
	store := newStore(t, "bench-1")

	if err := store.SaveRepairedTools(ctx, []string{"compass", "calculator"}); err != nil {
		t.Fatalf("save: %v", err)
	}
	ids, err := store.LoadRepairedTools(ctx)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if len(ids) != 2 || ids[0] != "compass" || ids[1] != "calculator" {
		t.Errorf("expected saved order, got %v", ids)
	}
}

func TestEventsScopedAndOrdered(t *testing.T) {
	ctx := context.Background()
	store := newStore(t, "bench-1")

	ts := time.Date(2026, time.January, 11, 9, 0, 0, 0, time.UTC)
	if err := store.AppendEvent(ts, "info", "level.started", "", map[string]interface{}{"tool_id": "timer"}); err != nil {
		t.Fatalf("append: %v", err)
	}
	if err := store.AppendEvent(ts.Add(time.Second), "error", "system.error", "boom", nil); err != nil {
		t.Fatalf("append: %v", err)
	}

	rows, err := store.QueryEvents(ctx, 0)
	if err != nil {
		t.Fatalf("query: %v", err)
	}
	if len(rows) != 2 {
		t.Fatalf("expected 2 rows, got %d", len(rows))
	}
	if rows[0].Event != "system.error" || rows[0].Message == nil || *rows[0].Message != "boom" {
		t.Errorf("expected newest first, got %+v", rows[0])
	}
	if rows[1].Fields["tool_id"] != "timer" || rows[1].Message != nil {
		t.Errorf("unexpected first event %+v", rows[1])
	}
	if !rows[1].Timestamp.Equal(ts) {
		t.Errorf("unexpected timestamp %v", rows[1].Timestamp)
	}

	limited, err := store.QueryEvents(ctx, 1)
	if err != nil || len(limited) != 1 {
		t.Errorf("expected 1 row with limit, got %d (%v)", len(limited), err)
	}
}

func TestWorkshopIsolation(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "shared.db")

	a, err := New(path, "a")
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	defer a.Close()
	if err := a.EnsureSchema(ctx); err != nil {
		t.Fatalf("schema: %v", err)
	}
	b, err := New(path, "b")
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	defer b.Close()

	if err := a.SaveRepairedTools(ctx, []string{"calculator"}); err != nil {
		t.Fatalf("save: %v", err)
	}
	ids, err := b.LoadRepairedTools(ctx)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if len(ids) != 0 {
		t.Errorf("workshop b should not see a's tools, got %v", ids)
	}
}

func TestPing(t *testing.T) {
	store := newStore(t, "bench-1")
	if err := store.Ping(context.Background()); err != nil {
		t.Fatalf("ping: %v", err)
	}
	store.Close()
	if err := store.Ping(context.Background()); err == nil {
		t.Error("ping on a closed database should fail")
	}
}
