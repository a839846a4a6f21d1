package api

import (
	"encoding/json"
	"log"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gorilla/websocket"

	"github.com/AaronLay10/RepairWorkshop/internal/events"
)

const (
	// Default number of buffered events replayed on connect.
	recentEventsCount = 50

	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = 54 * time.Second // must be less than pongWait
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// streamFilter selects which events a client receives.
type streamFilter struct {
	prefixes []string
	recent   int
}

// parseStreamFilter reads ?prefix=element.,level. and ?recent=N.
func parseStreamFilter(r *http.Request) streamFilter {
	f := streamFilter{recent: recentEventsCount}
	if v := r.URL.Query().Get("prefix"); v != "" {
		for _, p := range strings.Split(v, ",") {
			if p = strings.TrimSpace(p); p != "" {
				f.prefixes = append(f.prefixes, p)
			}
		}
	}
	if v := r.URL.Query().Get("recent"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n >= 0 {
			f.recent = n
		}
	}
	return f
}

func (f streamFilter) match(e events.Event) bool {
	if len(f.prefixes) == 0 {
		return true
	}
	for _, p := range f.prefixes {
		if strings.HasPrefix(e.Name, p) {
			return true
		}
	}
	return false
}

// wsEventsHandler streams engine events to a WebSocket client, starting with
// a replay of recent buffered events.
func wsEventsHandler(w http.ResponseWriter, r *http.Request) {
	filter := parseStreamFilter(r)

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("ws upgrade failed: %v", err)
		return
	}

	sub := events.Subscribe()
	closeAll := func() {
		events.Unsubscribe(sub)
		conn.Close()
	}

	send := func(e events.Event) error {
		data, err := json.Marshal(e)
		if err != nil {
			return nil
		}
		conn.SetWriteDeadline(time.Now().Add(writeWait))
		return conn.WriteMessage(websocket.TextMessage, data)
	}

	if filter.recent > 0 {
		for _, e := range events.RecentEvents(filter.recent) {
			if !filter.match(e) {
				continue
			}
			if err := send(e); err != nil {
				log.Printf("ws write recent event failed: %v", err)
				closeAll()
				return
			}
		}
	}

	// Reader handles pongs and notices the client going away.
	done := make(chan struct{})
	go func() {
		defer close(done)
		conn.SetReadDeadline(time.Now().Add(pongWait))
		conn.SetPongHandler(func(string) error {
			conn.SetReadDeadline(time.Now().Add(pongWait))
			return nil
		})
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	for {
		select {
		case <-done:
			closeAll()
			return

		case e, ok := <-sub:
			if !ok {
				conn.Close()
				return
			}
			if !filter.match(e) {
				continue
			}
			if err := send(e); err != nil {
				log.Printf("ws write event failed: %v", err)
				closeAll()
				return
			}

		case <-ticker.C:
			conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				closeAll()
				return
			}
		}
	}
}
