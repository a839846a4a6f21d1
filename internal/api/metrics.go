package api

import (
	"fmt"
	"net/http"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"github.com/AaronLay10/RepairWorkshop/internal/events"
	"github.com/AaronLay10/RepairWorkshop/internal/level"
	"github.com/AaronLay10/RepairWorkshop/internal/version"
	"github.com/AaronLay10/RepairWorkshop/internal/workshop"
)

// Metrics state
var (
	metricsState = &MetricsState{}
)

// MetricsState holds runtime metrics for the /metrics endpoint.
type MetricsState struct {
	mu           sync.RWMutex
	startTime    time.Time
	workshopName string

	elementsRepaired atomic.Uint64
	mistakes         atomic.Uint64
	levelsCompleted  atomic.Uint64
}

// InitMetrics initializes the metrics system. Must be called at startup.
func InitMetrics() {
	metricsState.mu.Lock()
	defer metricsState.mu.Unlock()
	metricsState.startTime = time.Now()
}

// SetWorkshopName sets the workshop name for metrics and alert labels.
func SetWorkshopName(name string) {
	metricsState.mu.Lock()
	defer metricsState.mu.Unlock()
	metricsState.workshopName = name
}

// GetWorkshopName returns the current workshop name.
func GetWorkshopName() string {
	metricsState.mu.RLock()
	defer metricsState.mu.RUnlock()
	return metricsState.workshopName
}

// MetricsObserver counts engine outputs. Register it with game.Host.AddObserver.
func MetricsObserver() level.Observer {
	return metricsObserver{}
}

type metricsObserver struct{}

func (metricsObserver) ElementRepaired(string) { metricsState.elementsRepaired.Add(1) }
func (metricsObserver) Mistake(string)         { metricsState.mistakes.Add(1) }
func (metricsObserver) LevelComplete(time.Duration, int) {
	metricsState.levelsCompleted.Add(1)
}

// metricsHandler returns Prometheus-compatible metrics in text format.
func (s *Server) metricsHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	metricsState.mu.RLock()
	startTime := metricsState.startTime
	workshopName := metricsState.workshopName
	metricsState.mu.RUnlock()

	uptime := time.Since(startTime).Seconds()
	eventsTotal := events.TotalCount()
	wsClients := events.SubscriberCount()

	readiness.mu.RLock()
	hostReady := readiness.hostReady
	mqttConnected := readiness.mqttConnected
	storageConnected := readiness.storageConnected
	readiness.mu.RUnlock()

	toolsRepaired := 0
	for _, t := range s.host.Unlocks().Tools() {
		if t.Status == workshop.StatusRepaired {
			toolsRepaired++
		}
	}
	levelActive := 0
	if _, err := s.host.Level(r.Context()); err == nil {
		levelActive = 1
	}

	hostname, _ := os.Hostname()
	if hostname == "" {
		hostname = "unknown"
	}

	w.Header().Set("Content-Type", "text/plain; version=0.0.4; charset=utf-8")

	writeMetric := func(name, mtype, help string, value interface{}, labels string) {
		fmt.Fprintf(w, "# HELP %s %s\n", name, help)
		fmt.Fprintf(w, "# TYPE %s %s\n", name, mtype)
		if labels != "" {
			fmt.Fprintf(w, "%s{%s} %v\n", name, labels, value)
		} else {
			fmt.Fprintf(w, "%s %v\n", name, value)
		}
	}

	labels := fmt.Sprintf(`workshop="%s",instance="%s",version="%s"`, workshopName, hostname, version.Version)

	writeMetric("workshop_uptime_seconds", "gauge",
		"Number of seconds since the workshop started", uptime, labels)
	writeMetric("workshop_host_ready", "gauge",
		"Whether the game loop is running (1) or not (0)", boolGauge(hostReady), labels)
	writeMetric("workshop_level_active", "gauge",
		"Whether a level is in progress (1) or not (0)", levelActive, labels)
	writeMetric("workshop_events_total", "counter",
		"Total number of events emitted since startup", eventsTotal, labels)
	writeMetric("workshop_elements_repaired_total", "counter",
		"Total number of elements repaired since startup", metricsState.elementsRepaired.Load(), labels)
	writeMetric("workshop_mistakes_total", "counter",
		"Total number of charged mistakes since startup", metricsState.mistakes.Load(), labels)
	writeMetric("workshop_levels_completed_total", "counter",
		"Total number of levels completed since startup", metricsState.levelsCompleted.Load(), labels)
	writeMetric("workshop_tools_repaired", "gauge",
		"Number of tools marked repaired", toolsRepaired, labels)
	writeMetric("workshop_mqtt_connected", "gauge",
		"Whether MQTT broker is connected (1) or not (0)", boolGauge(mqttConnected), labels)
	writeMetric("workshop_storage_connected", "gauge",
		"Whether the database is connected (1) or not (0)", boolGauge(storageConnected), labels)
	writeMetric("workshop_ws_clients", "gauge",
		"Number of active event subscribers", wsClients, labels)
}

func boolGauge(b bool) int {
	if b {
		return 1
	}
	return 0
}
