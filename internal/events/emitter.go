package events

import (
	"encoding/json"
	"fmt"
	"sync"
	"time"
)

var buffer = NewRingBuffer(256)

// Sink persists emitted events. Implemented by the SQL stores.
type Sink interface {
	AppendEvent(ts time.Time, level, event, msg string, fields map[string]interface{}) error
}

var (
	sink            Sink
	sinkMu          sync.RWMutex
	sinkErrorLogged bool
)

// SetSink sets the persistent event sink. nil disables persistence.
func SetSink(s Sink) {
	sinkMu.Lock()
	sink = s
	sinkErrorLogged = false
	sinkMu.Unlock()
}

type Event struct {
	Timestamp string                 `json:"ts"`
	Level     string                 `json:"level"`
	Name      string                 `json:"event"`
	Message   string                 `json:"msg,omitempty"`
	Fields    map[string]interface{} `json:"fields,omitempty"`
}

func Emit(level, name, msg string, fields map[string]interface{}) ([]byte, error) {
	if err := Validate(name); err != nil {
		return nil, err
	}

	ts := time.Now().UTC()
	e := Event{
		Timestamp: ts.Format(time.RFC3339Nano),
		Level:     level,
		Name:      name,
		Message:   msg,
		Fields:    fields,
	}

	buffer.Add(e)
	broadcast(e)

	sinkMu.RLock()
	s := sink
	sinkMu.RUnlock()

	if s != nil {
		if err := s.AppendEvent(ts, level, name, msg, fields); err != nil {
			// Report once, straight into the buffer: going through Emit would
			// recurse into the failing sink.
			sinkMu.Lock()
			first := !sinkErrorLogged
			sinkErrorLogged = true
			sinkMu.Unlock()
			if first {
				buffer.Add(Event{
					Timestamp: time.Now().UTC().Format(time.RFC3339Nano),
					Level:     "error",
					Name:      "system.error",
					Message:   "event sink append failed",
					Fields: map[string]interface{}{
						"error": err.Error(),
					},
				})
			}
		}
	}

	b, err := json.Marshal(e)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal event: %w", err)
	}

	return b, nil
}

func Snapshot() []Event {
	return buffer.Snapshot()
}

// TotalCount returns the number of events emitted since startup.
func TotalCount() uint64 {
	return buffer.Total()
}

// Clear resets the event buffer. Used for testing.
func Clear() {
	buffer.Clear()
}
