package progress

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/AaronLay10/RepairWorkshop/internal/events"
)

type memStore struct {
	progress     GameProgress
	achievements []string
	saveErr      error
	saves        int
}

func (m *memStore) LoadProgress(ctx context.Context) (GameProgress, error) {
	return m.progress, nil
}

func (m *memStore) SaveProgress(ctx context.Context, p GameProgress) error {
	if m.saveErr != nil {
		return m.saveErr
	}
	m.saves++
	m.progress = p
	return nil
}

func (m *memStore) LoadAchievements(ctx context.Context) ([]string, error) {
	return m.achievements, nil
}

func (m *memStore) SaveAchievements(ctx context.Context, ids []string) error {
	m.achievements = append([]string(nil), ids...)
	return nil
}

func unlockedSet(r *Recorder) map[string]bool {
	out := map[string]bool{}
	for _, a := range r.Achievements() {
		if a.Unlocked {
			out[a.ID] = true
		}
	}
	return out
}

func TestRecordRepair(t *testing.T) {
	ctx := context.Background()
	store := &memStore{}
	r, err := NewRecorder(ctx, store)
	if err != nil {
		t.Fatalf("new recorder: %v", err)
	}
	played := time.Date(2026, time.January, 11, 10, 0, 0, 0, time.UTC)
	r.SetClock(func() time.Time { return played })

	if err := r.RecordRepair(ctx, "stopwatch", 45*time.Second, false); err != nil {
		t.Fatalf("record: %v", err)
	}
	if err := r.RecordRepair(ctx, "stopwatch", 40*time.Second, true); err != nil {
		t.Fatalf("record: %v", err)
	}

	p := r.Progress()
	if p.TotalRepairs != 2 || p.PerfectRepairs != 1 {
		t.Errorf("unexpected totals: %+v", p)
	}
	if len(p.ToolsRepaired) != 1 {
		t.Errorf("repeated tool should count once, got %v", p.ToolsRepaired)
	}
	if p.FastestRepair == nil || *p.FastestRepair != 40*time.Second {
		t.Errorf("expected fastest 40s, got %v", p.FastestRepair)
	}
	if p.TotalPlayTime != 85*time.Second {
		t.Errorf("expected 85s play time, got %v", p.TotalPlayTime)
	}
	if !p.LastPlayed.Equal(played) {
		t.Errorf("unexpected last played %v", p.LastPlayed)
	}
	if store.progress.TotalRepairs != 2 {
		t.Error("progress was not persisted")
	}

	got := unlockedSet(r)
	if !got["first_repair"] || !got["perfect_repair"] {
		t.Errorf("expected first_repair and perfect_repair, got %v", got)
	}
	if got["speed_demon"] {
		t.Error("speed_demon requires a repair within 30s")
	}
	if len(store.achievements) != 2 {
		t.Errorf("expected 2 persisted achievements, got %v", store.achievements)
	}
}

func TestSpeedDemonBoundary(t *testing.T) {
	ctx := context.Background()
	r, err := NewRecorder(ctx, &memStore{})
	if err != nil {
		t.Fatalf("new recorder: %v", err)
	}
	if err := r.RecordRepair(ctx, "a", 30*time.Second, false); err != nil {
		t.Fatalf("record: %v", err)
	}
	if !unlockedSet(r)["speed_demon"] {
		t.Error("a repair of exactly 30s should unlock speed_demon")
	}
}

func TestCountedAchievements(t *testing.T) {
	ctx := context.Background()
	r, err := NewRecorder(ctx, &memStore{})
	if err != nil {
		t.Fatalf("new recorder: %v", err)
	}
	tools := []string{"a", "b", "c", "d", "e"}
	for i := 0; i < 10; i++ {
		perfect := i < 3
		if err := r.RecordRepair(ctx, tools[i%len(tools)], time.Minute, perfect); err != nil {
			t.Fatalf("record %d: %v", i, err)
		}
		got := unlockedSet(r)
		if i == 1 && got["no_mistakes"] {
			t.Error("no_mistakes unlocked after 2 perfect repairs")
		}
		if i == 8 && got["veteran"] {
			t.Error("veteran unlocked after 9 repairs")
		}
	}
	got := unlockedSet(r)
	for _, id := range []string{"first_repair", "master_repairman", "perfect_repair", "no_mistakes", "veteran"} {
		if !got[id] {
			t.Errorf("expected %s to be unlocked", id)
		}
	}
}

func TestLoadReevaluates(t *testing.T) {
	ctx := context.Background()
	fastest := 12 * time.Second
	store := &memStore{
		progress: GameProgress{
			TotalRepairs:  1,
			FastestRepair: &fastest,
			ToolsRepaired: []string{"ruler"},
		},
		achievements: []string{"first_repair"},
	}
	r, err := NewRecorder(ctx, store)
	if err != nil {
		t.Fatalf("new recorder: %v", err)
	}
	got := unlockedSet(r)
	if !got["first_repair"] || !got["speed_demon"] {
		t.Errorf("expected restored and re-evaluated achievements, got %v", got)
	}
	if len(store.achievements) != 2 {
		t.Errorf("re-evaluated achievements should be saved, got %v", store.achievements)
	}
}

func TestAchievementEvents(t *testing.T) {
	events.Clear()
	ctx := context.Background()
	r, err := NewRecorder(ctx, &memStore{})
	if err != nil {
		t.Fatalf("new recorder: %v", err)
	}
	if err := r.RecordRepair(ctx, "a", time.Minute, false); err != nil {
		t.Fatalf("record: %v", err)
	}
	if err := r.RecordRepair(ctx, "a", time.Minute, false); err != nil {
		t.Fatalf("record: %v", err)
	}

	unlocks := 0
	recorded := 0
	for _, e := range events.Snapshot() {
		switch e.Name {
		case "achievement.unlocked":
			unlocks++
		case "progress.recorded":
			recorded++
		}
	}
	if recorded != 2 {
		t.Errorf("expected 2 progress.recorded events, got %d", recorded)
	}
	if unlocks != 1 {
		t.Errorf("achievement should be announced once, got %d", unlocks)
	}
}

func TestReset(t *testing.T) {
	ctx := context.Background()
	store := &memStore{}
	r, err := NewRecorder(ctx, store)
	if err != nil {
		t.Fatalf("new recorder: %v", err)
	}
	if err := r.RecordRepair(ctx, "a", time.Second, true); err != nil {
		t.Fatalf("record: %v", err)
	}
	if err := r.Reset(ctx); err != nil {
		t.Fatalf("reset: %v", err)
	}
	p := r.Progress()
	if p.TotalRepairs != 0 || p.FastestRepair != nil || len(p.ToolsRepaired) != 0 {
		t.Errorf("expected empty progress, got %+v", p)
	}
	if len(unlockedSet(r)) != 0 || len(store.achievements) != 0 {
		t.Error("expected all achievements locked")
	}
}

func TestSaveFailure(t *testing.T) {
	ctx := context.Background()
	store := &memStore{saveErr: errors.New("read-only")}
	r, err := NewRecorder(ctx, store)
	if err != nil {
		t.Fatalf("new recorder: %v", err)
	}
	if err := r.RecordRepair(ctx, "a", time.Second, true); err == nil {
		t.Fatal("expected save error")
	}
	if p := r.Progress(); p.TotalRepairs != 0 || len(p.ToolsRepaired) != 0 || p.FastestRepair != nil {
		t.Errorf("failed save must leave progress untouched, got %+v", p)
	}
	if len(unlockedSet(r)) != 0 {
		t.Error("failed save must not unlock achievements")
	}

	store.saveErr = nil
	if err := r.RecordRepair(ctx, "a", time.Second, true); err != nil {
		t.Fatalf("record after recovery: %v", err)
	}
	if p := r.Progress(); p.TotalRepairs != 1 || store.progress.TotalRepairs != 1 {
		t.Errorf("memory and store should agree, got %d and %d", p.TotalRepairs, store.progress.TotalRepairs)
	}
}

func TestNewRecorderRequiresStore(t *testing.T) {
	if _, err := NewRecorder(context.Background(), nil); err == nil {
		t.Fatal("expected error for nil store")
	}
}
