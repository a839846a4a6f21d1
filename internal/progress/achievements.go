package progress

import "time"

// RequirementKind names the rule an achievement is judged by.
type RequirementKind string

const (
	RequireToolsRepaired  RequirementKind = "tools_repaired"
	RequirePerfectRepair  RequirementKind = "perfect_repair"
	RequireSpeedRepair    RequirementKind = "speed_repair"
	RequirePerfectRepairs RequirementKind = "perfect_repairs"
	RequireTotalRepairs   RequirementKind = "total_repairs"
)

// Requirement is the unlock condition of an achievement.
type Requirement struct {
	Kind  RequirementKind `json:"kind"`
	Count int             `json:"count,omitempty"`
	// Within is the time limit of a speed repair.
	Within time.Duration `json:"within,omitempty"`
}

// Achievement is one unlockable badge. IDs are stable so persisted unlocks
// survive restarts.
type Achievement struct {
	ID          string      `json:"id"`
	Title       string      `json:"title"`
	Description string      `json:"description"`
	Icon        string      `json:"icon"`
	Requirement Requirement `json:"requirement"`
	Unlocked    bool        `json:"unlocked"`
}

// Definitions returns the built-in achievements, all locked.
func Definitions() []Achievement {
	return []Achievement{
		{
			ID:          "first_repair",
			Title:       "First Repair",
			Description: "Repair your first tool",
			Icon:        "wrench.fill",
			Requirement: Requirement{Kind: RequireToolsRepaired, Count: 1},
		},
		{
			ID:          "master_repairman",
			Title:       "Master Repairman",
			Description: "Repair 5 tools",
			Icon:        "star.fill",
			Requirement: Requirement{Kind: RequireToolsRepaired, Count: 5},
		},
		{
			ID:          "speed_demon",
			Title:       "Speed Demon",
			Description: "Repair a tool in under 30 seconds",
			Icon:        "bolt.fill",
			Requirement: Requirement{Kind: RequireSpeedRepair, Within: 30 * time.Second},
		},
		{
			ID:          "perfect_repair",
			Title:       "Perfect Repair",
			Description: "Repair a tool without any mistakes",
			Icon:        "checkmark.circle.fill",
			Requirement: Requirement{Kind: RequirePerfectRepair},
		},
		{
			ID:          "no_mistakes",
			Title:       "No Mistakes",
			Description: "Repair 3 tools perfectly",
			Icon:        "checkmark.seal.fill",
			Requirement: Requirement{Kind: RequirePerfectRepairs, Count: 3},
		},
		{
			ID:          "veteran",
			Title:       "Veteran",
			Description: "Repair 10 tools total",
			Icon:        "medal.fill",
			Requirement: Requirement{Kind: RequireTotalRepairs, Count: 10},
		},
	}
}

// Met reports whether p satisfies the requirement.
func (r Requirement) Met(p GameProgress) bool {
	switch r.Kind {
	case RequireToolsRepaired:
		return len(p.ToolsRepaired) >= r.Count
	case RequirePerfectRepair:
		return p.PerfectRepairs > 0
	case RequireSpeedRepair:
		return p.FastestRepair != nil && *p.FastestRepair <= r.Within
	case RequirePerfectRepairs:
		return p.PerfectRepairs >= r.Count
	case RequireTotalRepairs:
		return p.TotalRepairs >= r.Count
	default:
		return false
	}
}
