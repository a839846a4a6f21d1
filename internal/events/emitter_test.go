package events

import (
	"errors"
	"testing"
	"time"
)

type failingSink struct {
	calls int
}

func (f *failingSink) AppendEvent(ts time.Time, level, event, msg string, fields map[string]interface{}) error {
	f.calls++
	return errors.New("database is down")
}

type recordingSink struct {
	names []string
}

func (r *recordingSink) AppendEvent(ts time.Time, level, event, msg string, fields map[string]interface{}) error {
	r.names = append(r.names, event)
	return nil
}

func TestEmitRejectsUnknownEvent(t *testing.T) {
	if _, err := Emit("info", "element.exploded", "", nil); err == nil {
		t.Error("expected error for unregistered event name")
	}
}

func TestEmitWritesToSink(t *testing.T) {
	sink := &recordingSink{}
	SetSink(sink)
	defer SetSink(nil)

	if _, err := Emit("info", "element.repaired", "", map[string]interface{}{"element_id": "a"}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(sink.names) != 1 || sink.names[0] != "element.repaired" {
		t.Errorf("expected sink to receive element.repaired, got %v", sink.names)
	}
}

func TestSinkFailureReportedOnce(t *testing.T) {
	Clear()
	sink := &failingSink{}
	SetSink(sink)
	defer SetSink(nil)

	for i := 0; i < 3; i++ {
		if _, err := Emit("info", "timer.started", "", nil); err != nil {
			t.Fatalf("emit should not fail when the sink fails: %v", err)
		}
	}

	if sink.calls != 3 {
		t.Errorf("expected 3 sink calls, got %d", sink.calls)
	}

	systemErrors := 0
	for _, e := range Snapshot() {
		if e.Name == "system.error" {
			systemErrors++
		}
	}
	if systemErrors != 1 {
		t.Errorf("expected exactly 1 system.error, got %d", systemErrors)
	}
}

func TestTotalCountSurvivesClear(t *testing.T) {
	before := TotalCount()
	Emit("info", "timer.cancelled", "", nil)
	Clear()
	if TotalCount() != before+1 {
		t.Errorf("expected total %d, got %d", before+1, TotalCount())
	}
	if len(Snapshot()) != 0 {
		t.Errorf("expected empty snapshot after clear")
	}
}
