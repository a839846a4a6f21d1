// Package progress keeps the player's repair statistics and achievements.
package progress

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/AaronLay10/RepairWorkshop/internal/events"
)

// GameProgress is the running tally of completed repairs.
type GameProgress struct {
	TotalRepairs   int            `json:"total_repairs"`
	PerfectRepairs int            `json:"perfect_repairs"`
	TotalPlayTime  time.Duration  `json:"total_play_time"`
	FastestRepair  *time.Duration `json:"fastest_repair,omitempty"`
	ToolsRepaired  []string       `json:"tools_repaired"`
	LastPlayed     time.Time      `json:"last_played"`
}

// Store persists progress and unlocked achievement ids.
type Store interface {
	LoadProgress(ctx context.Context) (GameProgress, error)
	SaveProgress(ctx context.Context, p GameProgress) error
	LoadAchievements(ctx context.Context) ([]string, error)
	SaveAchievements(ctx context.Context, ids []string) error
}

// Recorder implements level.ProgressRecorder. It is safe for concurrent use.
type Recorder struct {
	mu           sync.Mutex
	store        Store
	now          func() time.Time
	progress     GameProgress
	achievements []Achievement
}

// NewRecorder loads saved progress from store and re-evaluates achievements.
func NewRecorder(ctx context.Context, store Store) (*Recorder, error) {
	if store == nil {
		return nil, fmt.Errorf("progress: store is required")
	}
	p, err := store.LoadProgress(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load progress: %w", err)
	}
	ids, err := store.LoadAchievements(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load achievements: %w", err)
	}

	r := &Recorder{
		store:        store,
		now:          time.Now,
		progress:     normalize(p),
		achievements: Definitions(),
	}
	unlocked := make(map[string]bool, len(ids))
	for _, id := range ids {
		unlocked[id] = true
	}
	for i := range r.achievements {
		r.achievements[i].Unlocked = unlocked[r.achievements[i].ID]
	}

	// Saved progress may already satisfy achievements that were never stored.
	if newly := evaluate(r.achievements, r.progress); len(newly) > 0 {
		if err := store.SaveAchievements(ctx, unlockedIDs(r.achievements)); err != nil {
			return nil, fmt.Errorf("failed to save achievements: %w", err)
		}
	}
	return r, nil
}

// SetClock overrides the time source used for LastPlayed.
func (r *Recorder) SetClock(now func() time.Time) {
	r.mu.Lock()
	r.now = now
	r.mu.Unlock()
}

// RecordRepair adds one completed level to the tally, persists it and unlocks
// any achievements it earns. Nothing changes in memory unless the save succeeds.
func (r *Recorder) RecordRepair(ctx context.Context, toolID string, elapsed time.Duration, perfect bool) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	p := r.copyProgress()
	p.TotalRepairs++
	if perfect {
		p.PerfectRepairs++
	}
	p.TotalPlayTime += elapsed
	if p.FastestRepair == nil || elapsed < *p.FastestRepair {
		fastest := elapsed
		p.FastestRepair = &fastest
	}
	p.ToolsRepaired = insertSorted(p.ToolsRepaired, toolID)
	p.LastPlayed = r.now().UTC()

	if err := r.store.SaveProgress(ctx, p); err != nil {
		return fmt.Errorf("failed to save progress: %w", err)
	}
	r.progress = p
	events.Emit("info", "progress.recorded", "", map[string]interface{}{
		"tool_id":         toolID,
		"elapsed_seconds": elapsed.Seconds(),
		"perfect":         perfect,
		"total_repairs":   p.TotalRepairs,
	})

	achievements := append([]Achievement(nil), r.achievements...)
	newly := evaluate(achievements, p)
	if len(newly) == 0 {
		return nil
	}
	if err := r.store.SaveAchievements(ctx, unlockedIDs(achievements)); err != nil {
		return fmt.Errorf("failed to save achievements: %w", err)
	}
	r.achievements = achievements
	for _, a := range newly {
		events.Emit("info", "achievement.unlocked", a.Title, map[string]interface{}{
			"achievement_id": a.ID,
		})
	}
	return nil
}

// Reset clears all progress and locks every achievement.
func (r *Recorder) Reset(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	p := normalize(GameProgress{LastPlayed: r.now().UTC()})
	if err := r.store.SaveProgress(ctx, p); err != nil {
		return fmt.Errorf("failed to save progress: %w", err)
	}
	r.progress = p
	if err := r.store.SaveAchievements(ctx, nil); err != nil {
		return fmt.Errorf("failed to save achievements: %w", err)
	}
	r.achievements = Definitions()
	events.Emit("info", "progress.reset", "", nil)
	return nil
}

// Progress returns a copy of the current tally.
func (r *Recorder) Progress() GameProgress {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.copyProgress()
}

// copyProgress deep-copies the tally. Callers hold r.mu.
func (r *Recorder) copyProgress() GameProgress {
	p := r.progress
	p.ToolsRepaired = append([]string{}, p.ToolsRepaired...)
	if p.FastestRepair != nil {
		fastest := *p.FastestRepair
		p.FastestRepair = &fastest
	}
	return p
}

// Achievements returns every achievement with its unlock state.
func (r *Recorder) Achievements() []Achievement {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Achievement(nil), r.achievements...)
}

// evaluate unlocks, in place, the achievements whose requirement p now meets
// and returns them.
func evaluate(achievements []Achievement, p GameProgress) []Achievement {
	var newly []Achievement
	for i := range achievements {
		a := &achievements[i]
		if a.Unlocked || !a.Requirement.Met(p) {
			continue
		}
		a.Unlocked = true
		newly = append(newly, *a)
	}
	return newly
}

func unlockedIDs(achievements []Achievement) []string {
	var ids []string
	for _, a := range achievements {
		if a.Unlocked {
			ids = append(ids, a.ID)
		}
	}
	return ids
}

func normalize(p GameProgress) GameProgress {
	if p.ToolsRepaired == nil {
		p.ToolsRepaired = []string{}
	}
	sort.Strings(p.ToolsRepaired)
	return p
}

func insertSorted(ids []string, id string) []string {
	i := sort.SearchStrings(ids, id)
	if i < len(ids) && ids[i] == id {
		return ids
	}
	ids = append(ids, "")
	copy(ids[i+1:], ids[i:])
	ids[i] = id
	return ids
}
