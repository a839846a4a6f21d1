package api

import (
	"encoding/json"
	"net/http"
	"strings"
	"sync"
)

// readinessState tracks the dependencies /ready reports on.
type readinessState struct {
	mu               sync.RWMutex
	hostReady        bool
	mqttConnected    bool
	mqttOptional     bool
	storageConnected bool
	storageOptional  bool
}

var readiness = &readinessState{}

// CheckResult is the state of one dependency.
type CheckResult struct {
	Status   string `json:"status"`
	Optional bool   `json:"optional,omitempty"`
}

type ReadinessResponse struct {
	Ready       bool                   `json:"ready"`
	Checks      map[string]CheckResult `json:"checks"`
	NotReadyMsg string                 `json:"message,omitempty"`
}

// SetHostReady marks whether the game loop is running.
func SetHostReady(ready bool) {
	readiness.mu.Lock()
	defer readiness.mu.Unlock()
	readiness.hostReady = ready
}

// SetMQTTState records broker connectivity. An optional broker never blocks readiness.
func SetMQTTState(connected, optional bool) {
	readiness.mu.Lock()
	defer readiness.mu.Unlock()
	readiness.mqttConnected = connected
	readiness.mqttOptional = optional
}

// SetStorageState records database connectivity.
func SetStorageState(connected, optional bool) {
	readiness.mu.Lock()
	defer readiness.mu.Unlock()
	readiness.storageConnected = connected
	readiness.storageOptional = optional
}

func dependencyCheck(connected, optional bool) (CheckResult, bool) {
	switch {
	case connected:
		return CheckResult{Status: "ok", Optional: optional}, true
	case optional:
		return CheckResult{Status: "unavailable", Optional: true}, true
	default:
		return CheckResult{Status: "not_ready"}, false
	}
}

func readyHandler(w http.ResponseWriter, r *http.Request) {
	readiness.mu.RLock()
	hostReady := readiness.hostReady
	mqttCheck, mqttOK := dependencyCheck(readiness.mqttConnected, readiness.mqttOptional)
	storageCheck, storageOK := dependencyCheck(readiness.storageConnected, readiness.storageOptional)
	readiness.mu.RUnlock()

	resp := ReadinessResponse{
		Ready:  true,
		Checks: make(map[string]CheckResult, 3),
	}
	var reasons []string

	if hostReady {
		resp.Checks["host"] = CheckResult{Status: "ok"}
	} else {
		resp.Checks["host"] = CheckResult{Status: "not_ready"}
		reasons = append(reasons, "game loop not running")
	}

	resp.Checks["mqtt"] = mqttCheck
	if !mqttOK {
		reasons = append(reasons, "mqtt broker not connected")
	}

	resp.Checks["storage"] = storageCheck
	if !storageOK {
		reasons = append(reasons, "storage not connected")
	}

	w.Header().Set("Content-Type", "application/json")
	if len(reasons) > 0 {
		resp.Ready = false
		resp.NotReadyMsg = strings.Join(reasons, "; ")
		w.WriteHeader(http.StatusServiceUnavailable)
	}
	_ = json.NewEncoder(w).Encode(resp)
}
