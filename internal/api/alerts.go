package api

import (
	"bytes"
	"context"
	"encoding/json"
	"log"
	"net/http"
	"os"
	"sync"
	"time"
)

// Alert severity levels
const (
	SeverityCritical = "critical"
	SeverityWarning  = "warning"
	SeverityInfo     = "info"
)

// Alert event types
const (
	AlertMQTTDisconnected   = "mqtt_disconnected"
	AlertStorageUnavailable = "storage_unavailable"
)

// AlertPayload is the JSON structure sent to the webhook.
type AlertPayload struct {
	Workshop  string                 `json:"workshop"`
	Event     string                 `json:"event"`
	Timestamp string                 `json:"timestamp"`
	Severity  string                 `json:"severity"`
	Message   string                 `json:"message,omitempty"`
	Details   map[string]interface{} `json:"details,omitempty"`
}

// outageTracker alerts once a dependency has been down for longer than delay,
// and again when it recovers.
type outageTracker struct {
	event    string
	severity string
	message  string
	delay    time.Duration

	downSince time.Time
	alerted   bool
}

// observe records the dependency state at now and returns the alert to send, if any.
func (o *outageTracker) observe(connected bool, now time.Time) *AlertPayload {
	if connected {
		var recovered *AlertPayload
		if o.alerted {
			recovered = &AlertPayload{
				Event:    o.event,
				Severity: SeverityInfo,
				Message:  o.message + " recovered",
				Details: map[string]interface{}{
					"recovered_at": now.UTC().Format(time.RFC3339),
				},
			}
		}
		o.downSince = time.Time{}
		o.alerted = false
		return recovered
	}

	if o.downSince.IsZero() {
		o.downSince = now
	}
	down := now.Sub(o.downSince)
	if o.alerted || down < o.delay {
		return nil
	}
	o.alerted = true
	return &AlertPayload{
		Event:    o.event,
		Severity: o.severity,
		Message:  o.message,
		Details: map[string]interface{}{
			"disconnected_since":   o.downSince.UTC().Format(time.RFC3339),
			"disconnected_seconds": int(down.Seconds()),
		},
	}
}

var (
	alertMu    sync.Mutex
	webhookURL string
	mqttOutage = &outageTracker{
		event: AlertMQTTDisconnected, severity: SeverityWarning,
		message: "MQTT broker disconnected", delay: 30 * time.Second,
	}
	storageOutage = &outageTracker{
		event: AlertStorageUnavailable, severity: SeverityCritical,
		message: "storage unavailable", delay: 5 * time.Second,
	}
)

// InitAlerts reads WORKSHOP_ALERT_WEBHOOK_URL and the optional
// WORKSHOP_MQTT_ALERT_DELAY / WORKSHOP_STORAGE_ALERT_DELAY durations.
func InitAlerts() {
	alertMu.Lock()
	defer alertMu.Unlock()

	webhookURL = os.Getenv("WORKSHOP_ALERT_WEBHOOK_URL")
	if d, err := time.ParseDuration(os.Getenv("WORKSHOP_MQTT_ALERT_DELAY")); err == nil {
		mqttOutage.delay = d
	}
	if d, err := time.ParseDuration(os.Getenv("WORKSHOP_STORAGE_ALERT_DELAY")); err == nil {
		storageOutage.delay = d
	}

	if webhookURL != "" {
		log.Printf("Alerts enabled: webhook URL configured (mqtt_delay=%s, storage_delay=%s)",
			mqttOutage.delay, storageOutage.delay)
	}
}

// SendAlert posts an alert to the webhook in the background, or logs it when
// no webhook is configured.
func SendAlert(p AlertPayload) {
	alertMu.Lock()
	url := webhookURL
	alertMu.Unlock()

	if p.Workshop = GetWorkshopName(); p.Workshop == "" {
		p.Workshop = "unknown"
	}
	p.Timestamp = time.Now().UTC().Format(time.RFC3339)

	if url == "" {
		log.Printf("[ALERT] %s severity=%s msg=%q details=%v", p.Event, p.Severity, p.Message, p.Details)
		return
	}
	go sendWebhook(url, p)
}

func sendWebhook(url string, payload AlertPayload) {
	body, err := json.Marshal(payload)
	if err != nil {
		log.Printf("alert: failed to marshal payload: %v", err)
		return
	}

	client := &http.Client{Timeout: 10 * time.Second}
	resp, err := client.Post(url, "application/json", bytes.NewReader(body))
	if err != nil {
		log.Printf("alert: webhook POST failed: %v", err)
		return
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		log.Printf("alert: webhook returned status %d", resp.StatusCode)
	}
}

// checkOutages feeds the current readiness into the trackers.
func checkOutages(now time.Time) {
	readiness.mu.RLock()
	mqttConnected := readiness.mqttConnected
	mqttOptional := readiness.mqttOptional
	storageConnected := readiness.storageConnected
	readiness.mu.RUnlock()

	alertMu.Lock()
	var alerts []*AlertPayload
	// An optional broker that was never reached is not an outage.
	if !mqttOptional || mqttConnected || mqttOutage.alerted {
		alerts = append(alerts, mqttOutage.observe(mqttConnected, now))
	}
	alerts = append(alerts, storageOutage.observe(storageConnected, now))
	alertMu.Unlock()

	for _, a := range alerts {
		if a != nil {
			SendAlert(*a)
		}
	}
}

// RunAlertMonitor checks dependency state every interval until ctx is cancelled.
func RunAlertMonitor(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			checkOutages(now)
		}
	}
}
