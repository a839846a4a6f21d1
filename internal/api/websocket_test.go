package api

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/AaronLay10/RepairWorkshop/internal/events"
)

// waitFor polls a condition until it returns true or timeout expires.
func waitFor(t *testing.T, timeout time.Duration, condition func() bool, msg string) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if condition() {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Errorf("timeout waiting for: %s", msg)
}

// dialEvents connects to the stream and waits for its subscription.
func dialEvents(t *testing.T, server *httptest.Server, query string) *websocket.Conn {
	t.Helper()
	before := events.SubscriberCount()
	wsURL := "ws" + strings.TrimPrefix(server.URL, "http") + query
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	if err != nil {
		t.Fatalf("failed to connect: %v", err)
	}
	waitFor(t, 2*time.Second, func() bool {
		return events.SubscriberCount() > before
	}, "stream subscription")
	return conn
}

func readEvent(t *testing.T, conn *websocket.Conn) events.Event {
	t.Helper()
	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, msg, err := conn.ReadMessage()
	if err != nil {
		t.Fatalf("failed to read event: %v", err)
	}
	var e events.Event
	if err := json.Unmarshal(msg, &e); err != nil {
		t.Fatalf("failed to unmarshal event: %v", err)
	}
	return e
}

func TestWebSocketReceivesRecentEvents(t *testing.T) {
	events.Clear()
	for i := 0; i < 5; i++ {
		events.Emit("info", "element.activated", "", map[string]interface{}{"i": i})
	}

	server := httptest.NewServer(http.HandlerFunc(wsEventsHandler))
	defer server.Close()

	conn := dialEvents(t, server, "")
	defer conn.Close()

	for i := 0; i < 5; i++ {
		if e := readEvent(t, conn); e.Name != "element.activated" {
			t.Errorf("expected 'element.activated', got '%s'", e.Name)
		}
	}
}

func TestWebSocketReceivesNewEvents(t *testing.T) {
	events.Clear()

	server := httptest.NewServer(http.HandlerFunc(wsEventsHandler))
	defer server.Close()

	conn := dialEvents(t, server, "")
	defer conn.Close()

	events.Emit("info", "element.repaired", "", map[string]interface{}{"element_id": "calculator-7"})

	e := readEvent(t, conn)
	if e.Name != "element.repaired" {
		t.Errorf("expected 'element.repaired', got '%s'", e.Name)
	}
	if e.Fields["element_id"] != "calculator-7" {
		t.Errorf("expected element_id 'calculator-7', got '%v'", e.Fields["element_id"])
	}
}

func TestWebSocketPrefixFilter(t *testing.T) {
	events.Clear()
	events.Emit("info", "input.received", "", nil)
	events.Emit("info", "level.started", "", nil)

	server := httptest.NewServer(http.HandlerFunc(wsEventsHandler))
	defer server.Close()

	conn := dialEvents(t, server, "?prefix=level.,tool.")
	defer conn.Close()

	if e := readEvent(t, conn); e.Name != "level.started" {
		t.Errorf("replay should skip filtered events, got '%s'", e.Name)
	}

	events.Emit("info", "input.received", "", nil)
	events.Emit("info", "tool.unlocked", "Compass", nil)
	if e := readEvent(t, conn); e.Name != "tool.unlocked" {
		t.Errorf("expected 'tool.unlocked', got '%s'", e.Name)
	}
}

func TestWebSocketNoReplay(t *testing.T) {
	events.Clear()
	events.Emit("info", "level.started", "", nil)

	server := httptest.NewServer(http.HandlerFunc(wsEventsHandler))
	defer server.Close()

	conn := dialEvents(t, server, "?recent=0")
	defer conn.Close()

	events.Emit("info", "level.completed", "", nil)
	if e := readEvent(t, conn); e.Name != "level.completed" {
		t.Errorf("recent=0 should skip the replay, got '%s'", e.Name)
	}
}

func TestWebSocketDisconnectCleansUp(t *testing.T) {
	events.Clear()
	events.CloseAllSubscribers()

	server := httptest.NewServer(http.HandlerFunc(wsEventsHandler))
	defer server.Close()

	conn := dialEvents(t, server, "")
	events.Emit("info", "level.started", "", nil)
	readEvent(t, conn)

	conn.Close()

	waitFor(t, 5*time.Second, func() bool {
		return events.SubscriberCount() == 0
	}, "subscriber count to return to 0 after close")
}

func TestWebSocketMultipleClients(t *testing.T) {
	events.Clear()

	server := httptest.NewServer(http.HandlerFunc(wsEventsHandler))
	defer server.Close()

	conn1 := dialEvents(t, server, "")
	defer conn1.Close()
	conn2 := dialEvents(t, server, "")
	defer conn2.Close()

	events.Emit("info", "level.completed", "", map[string]interface{}{"tool_id": "calculator"})

	if e := readEvent(t, conn1); e.Name != "level.completed" {
		t.Errorf("client1: expected 'level.completed', got '%s'", e.Name)
	}
	if e := readEvent(t, conn2); e.Name != "level.completed" {
		t.Errorf("client2: expected 'level.completed', got '%s'", e.Name)
	}
}

func TestParseStreamFilter(t *testing.T) {
	r := httptest.NewRequest("GET", "/ws/events?prefix=level.,+tool.,&recent=7", nil)
	f := parseStreamFilter(r)
	if len(f.prefixes) != 2 || f.prefixes[0] != "level." || f.prefixes[1] != "tool." {
		t.Errorf("unexpected prefixes %q", f.prefixes)
	}
	if f.recent != 7 {
		t.Errorf("expected recent 7, got %d", f.recent)
	}

	f = parseStreamFilter(httptest.NewRequest("GET", "/ws/events?recent=-1", nil))
	if f.recent != recentEventsCount || len(f.prefixes) != 0 {
		t.Errorf("invalid recent should keep the default, got %+v", f)
	}
	if !f.match(events.Event{Name: "anything"}) {
		t.Error("empty filter matches everything")
	}
}
