package workshop

import (
	"context"
	"fmt"
	"sync"

	"github.com/AaronLay10/RepairWorkshop/internal/events"
)

// Status is a tool's place in the unlock sequence.
type Status string

const (
	StatusLocked     Status = "locked"
	StatusInProgress Status = "in_progress"
	StatusRepaired   Status = "repaired"
)

// Store persists the ids of repaired tools.
type Store interface {
	LoadRepairedTools(ctx context.Context) ([]string, error)
	SaveRepairedTools(ctx context.Context, ids []string) error
}

// ToolStatus is the listing view of one tool.
type ToolStatus struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	Icon     string `json:"icon"`
	Status   Status `json:"status"`
	Elements int    `json:"elements"`
	Broken   int    `json:"broken"`
}

// Manager tracks which tools are playable. The first tool is always playable
// and each further tool opens once the one before it is repaired. It
// implements level.UnlockManager and is safe for concurrent use.
type Manager struct {
	mu       sync.RWMutex
	catalog  *Catalog
	store    Store
	repaired map[string]bool
	statuses []Status
}

// NewManager restores repaired tools from store. Ids not in the catalog are ignored.
func NewManager(ctx context.Context, catalog *Catalog, store Store) (*Manager, error) {
	if catalog == nil || len(catalog.Tools) == 0 {
		return nil, fmt.Errorf("workshop: catalog has no tools")
	}
	if store == nil {
		return nil, fmt.Errorf("workshop: store is required")
	}
	ids, err := store.LoadRepairedTools(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load repaired tools: %w", err)
	}

	m := &Manager{
		catalog:  catalog,
		store:    store,
		repaired: make(map[string]bool, len(ids)),
	}
	for _, id := range ids {
		if _, ok := catalog.Tool(id); ok {
			m.repaired[id] = true
		}
	}
	m.statuses = m.statusesFor(m.repaired)
	return m, nil
}

// statusesFor derives every status from a repaired set.
func (m *Manager) statusesFor(repaired map[string]bool) []Status {
	statuses := make([]Status, len(m.catalog.Tools))
	previousRepaired := true
	for i, t := range m.catalog.Tools {
		switch {
		case repaired[t.ID]:
			statuses[i] = StatusRepaired
		case previousRepaired:
			statuses[i] = StatusInProgress
		default:
			statuses[i] = StatusLocked
		}
		previousRepaired = statuses[i] == StatusRepaired
	}
	return statuses
}

// Catalog returns the catalog the manager was built from.
func (m *Manager) Catalog() *Catalog {
	return m.catalog
}

// Status returns the status of a tool, or "" if the id is unknown.
func (m *Manager) Status(toolID string) Status {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for i, t := range m.catalog.Tools {
		if t.ID == toolID {
			return m.statuses[i]
		}
	}
	return ""
}

// Playable reports whether the tool may be opened. Repaired tools can be replayed.
func (m *Manager) Playable(toolID string) bool {
	s := m.Status(toolID)
	return s == StatusInProgress || s == StatusRepaired
}

// Tools lists every tool in unlock order.
func (m *Manager) Tools() []ToolStatus {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]ToolStatus, len(m.catalog.Tools))
	for i, t := range m.catalog.Tools {
		out[i] = ToolStatus{
			ID:       t.ID,
			Name:     t.Name,
			Icon:     t.Icon,
			Status:   m.statuses[i],
			Elements: len(t.Elements),
			Broken:   t.BrokenCount(),
		}
	}
	return out
}

// MarkRepaired records a fully repaired tool and unlocks the next one. The
// statuses change only once the repaired list is saved.
func (m *Manager) MarkRepaired(ctx context.Context, toolID string) error {
	if _, ok := m.catalog.Tool(toolID); !ok {
		return fmt.Errorf("unknown tool %s", toolID)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	first := !m.repaired[toolID]
	repaired := make(map[string]bool, len(m.repaired)+1)
	for id := range m.repaired {
		repaired[id] = true
	}
	repaired[toolID] = true

	if err := m.store.SaveRepairedTools(ctx, m.repairedIDs(repaired)); err != nil {
		return fmt.Errorf("failed to save repaired tools: %w", err)
	}
	before := m.statuses
	m.repaired = repaired
	m.statuses = m.statusesFor(repaired)

	if first {
		events.Emit("info", "tool.repaired", "", map[string]interface{}{"tool_id": toolID})
	}
	for i, t := range m.catalog.Tools {
		if before[i] == StatusLocked && m.statuses[i] == StatusInProgress {
			events.Emit("info", "tool.unlocked", t.Name, map[string]interface{}{"tool_id": t.ID})
		}
	}
	return nil
}

// Reset relocks every tool but the first.
func (m *Manager) Reset(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.store.SaveRepairedTools(ctx, nil); err != nil {
		return fmt.Errorf("failed to save repaired tools: %w", err)
	}
	m.repaired = make(map[string]bool)
	m.statuses = m.statusesFor(m.repaired)
	return nil
}

// repairedIDs lists repaired tools in catalog order.
func (m *Manager) repairedIDs(repaired map[string]bool) []string {
	var ids []string
	for _, t := range m.catalog.Tools {
		if repaired[t.ID] {
			ids = append(ids, t.ID)
		}
	}
	return ids
}
