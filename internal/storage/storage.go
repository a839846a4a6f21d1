// Package storage defines what the workshop persists. The sqlite and postgres
// subpackages implement it.
package storage

import (
	"context"
	"time"

	"github.com/AaronLay10/RepairWorkshop/internal/events"
	"github.com/AaronLay10/RepairWorkshop/internal/progress"
	"github.com/AaronLay10/RepairWorkshop/internal/workshop"
)

// EventRow represents a persisted event.
type EventRow struct {
	EventID    int64                  `json:"event_id"`
	Timestamp  time.Time              `json:"ts"`
	Level      string                 `json:"level"`
	Event      string                 `json:"event"`
	Message    *string                `json:"msg,omitempty"`
	Fields     map[string]interface{} `json:"fields,omitempty"`
	WorkshopID string                 `json:"workshop_id"`
}

// Backend is a complete persistence layer for one workshop.
type Backend interface {
	progress.Store
	workshop.Store
	events.Sink

	QueryEvents(ctx context.Context, limit int) ([]EventRow, error)
	Ping(ctx context.Context) error
	Close() error
}

// ClampLimit bounds an event query limit, defaulting to 200.
func ClampLimit(limit int) int {
	if limit <= 0 {
		return 200
	}
	if limit > 10000 {
		return 10000
	}
	return limit
}
