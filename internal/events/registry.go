package events

import "fmt"

var allowedEvents = map[string]struct{}{
	// level
	"level.started":        {},
	"level.completed":      {},
	"level.teardown":       {},
	"level.handoff_failed": {},

	// element
	"element.activated": {},
	"element.repaired":  {},
	"element.mistake":   {},

	// session
	"session.reset": {},

	// timer
	"timer.started":   {},
	"timer.cancelled": {},

	// input
	"input.received": {},
	"input.rejected": {},

	// tool
	"tool.unlocked": {},
	"tool.repaired": {},

	// progress
	"progress.recorded":    {},
	"progress.reset":       {},
	"achievement.unlocked": {},

	// operator
	"operator.reset": {},

	// transport
	"mqtt.connected":    {},
	"mqtt.disconnected": {},

	// system
	"system.startup":  {},
	"system.shutdown": {},
	"system.error":    {},
}

func Validate(event string) error {
	if _, ok := allowedEvents[event]; !ok {
		return fmt.Errorf("unknown event: %s", event)
	}
	return nil
}
