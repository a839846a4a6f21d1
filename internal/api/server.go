package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"strconv"
	"time"

	"github.com/AaronLay10/RepairWorkshop/internal/events"
	"github.com/AaronLay10/RepairWorkshop/internal/game"
	"github.com/AaronLay10/RepairWorkshop/internal/progress"
	"github.com/AaronLay10/RepairWorkshop/internal/storage"
)

// EventHistory reads persisted events. Implemented by the storage backends.
type EventHistory interface {
	QueryEvents(ctx context.Context, limit int) ([]storage.EventRow, error)
}

// Server exposes a game host over HTTP.
type Server struct {
	host     *game.Host
	recorder *progress.Recorder
	history  EventHistory
}

// NewServer creates a server. history may be nil, in which case /events only
// serves the in-memory buffer.
func NewServer(host *game.Host, recorder *progress.Recorder, history EventHistory) *Server {
	return &Server{host: host, recorder: recorder, history: history}
}

type HealthResponse struct {
	Status    string `json:"status"`
	Service   string `json:"service"`
	Hostname  string `json:"hostname"`
	Timestamp string `json:"ts"`
}

func healthHandler(w http.ResponseWriter, r *http.Request) {
	host, _ := os.Hostname()
	resp := HealthResponse{
		Status:    "ok",
		Service:   "workshop",
		Hostname:  host,
		Timestamp: time.Now().UTC().Format(time.RFC3339Nano),
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(resp)
}

// eventsHandler serves the in-memory buffer, or the store when source=store.
func (s *Server) eventsHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")

	if r.URL.Query().Get("source") != "store" {
		_ = json.NewEncoder(w).Encode(events.Snapshot())
		return
	}
	if s.history == nil {
		writeError(w, http.StatusServiceUnavailable, "event store not configured")
		return
	}

	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	rows, err := s.history.QueryEvents(r.Context(), storage.ClampLimit(limit))
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	_ = json.NewEncoder(w).Encode(rows)
}

// Response is the envelope of every mutating endpoint.
type Response struct {
	OK    bool            `json:"ok"`
	Error string          `json:"error,omitempty"`
	Level *game.LevelView `json:"level,omitempty"`
}

type StartRequest struct {
	ToolID string `json:"tool_id"`
}

type ProgressResponse struct {
	Progress     progress.GameProgress  `json:"progress"`
	Achievements []progress.Achievement `json:"achievements"`
}

func writeError(w http.ResponseWriter, status int, msg string) {
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(Response{OK: false, Error: msg})
}

// statusFor maps a host error to an HTTP status.
func statusFor(err error) int {
	switch {
	case errors.Is(err, game.ErrUnknownTool), errors.Is(err, game.ErrUnknownElement):
		return http.StatusNotFound
	case errors.Is(err, game.ErrToolLocked), errors.Is(err, game.ErrNoLevel):
		return http.StatusConflict
	case errors.Is(err, game.ErrBadInput):
		return http.StatusBadRequest
	case errors.Is(err, game.ErrLoopStopped),
		errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return http.StatusServiceUnavailable
	}
	return http.StatusInternalServerError
}

func (s *Server) levelHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")

	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	view, err := s.host.Level(r.Context())
	if err != nil {
		writeError(w, statusFor(err), err.Error())
		return
	}
	_ = json.NewEncoder(w).Encode(Response{OK: true, Level: &view})
}

func (s *Server) startHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")

	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	var req StartRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}
	if req.ToolID == "" {
		writeError(w, http.StatusBadRequest, "tool_id required")
		return
	}

	view, err := s.host.StartLevel(r.Context(), req.ToolID)
	if err != nil {
		writeError(w, statusFor(err), err.Error())
		return
	}
	_ = json.NewEncoder(w).Encode(Response{OK: true, Level: &view})
}

func (s *Server) inputHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")

	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	var req game.InputRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		events.Emit("warning", "input.rejected", "invalid input payload", map[string]interface{}{
			"transport": "http",
			"error":     err.Error(),
		})
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}
	if req.ElementID == "" {
		events.Emit("warning", "input.rejected", "missing element_id", map[string]interface{}{
			"transport": "http",
		})
		writeError(w, http.StatusBadRequest, "element_id required")
		return
	}

	view, err := s.host.Input(r.Context(), req.ElementID, req.Input())
	if err != nil {
		writeError(w, statusFor(err), err.Error())
		return
	}
	_ = json.NewEncoder(w).Encode(Response{OK: true, Level: &view})
}

func (s *Server) stopHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")

	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	if err := s.host.StopLevel(r.Context()); err != nil {
		writeError(w, statusFor(err), err.Error())
		return
	}
	_ = json.NewEncoder(w).Encode(Response{OK: true})
}

func (s *Server) toolsHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(s.host.Unlocks().Tools())
}

func (s *Server) progressHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(ProgressResponse{
		Progress:     s.recorder.Progress(),
		Achievements: s.recorder.Achievements(),
	})
}

// resetHandler stops the running level and wipes progress and unlocks.
func (s *Server) resetHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")

	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	if err := s.host.StopLevel(r.Context()); err != nil {
		writeError(w, statusFor(err), err.Error())
		return
	}
	if err := s.recorder.Reset(r.Context()); err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if err := s.host.Unlocks().Reset(r.Context()); err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	events.Emit("info", "operator.reset", "", map[string]interface{}{
		"remote": r.RemoteAddr,
	})

	_ = json.NewEncoder(w).Encode(Response{OK: true})
}

// Handler returns the routed API.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/health", healthHandler)
	mux.HandleFunc("/ready", readyHandler)
	mux.HandleFunc("/metrics", s.metricsHandler)
	mux.HandleFunc("/events", s.eventsHandler)
	mux.HandleFunc("/ws/events", wsEventsHandler)
	mux.HandleFunc("/tools", s.toolsHandler)
	mux.HandleFunc("/progress", s.progressHandler)
	mux.HandleFunc("/progress/reset", RequireAdmin(s.resetHandler))
	mux.HandleFunc("/level", s.levelHandler)
	mux.HandleFunc("/level/start", RequireAnyRole(s.startHandler))
	mux.HandleFunc("/level/input", RequireAnyRole(s.inputHandler))
	mux.HandleFunc("/level/stop", RequireAnyRole(s.stopHandler))
	return mux
}

// ListenAndServe serves the API on port until ctx is cancelled, using TLS
// when configured.
func (s *Server) ListenAndServe(ctx context.Context, port int) error {
	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", port),
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	tlsCfg, err := LoadTLSConfig()
	if err != nil {
		return err
	}
	srv.TLSConfig = tlsCfg

	errCh := make(chan error, 1)
	go func() {
		if tlsCfg != nil {
			log.Printf("API listening on %s (TLS)\n", srv.Addr)
			errCh <- srv.ListenAndServeTLS("", "")
			return
		}
		log.Printf("API listening on %s\n", srv.Addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("api shutdown: %w", err)
		}
		return nil
	}
}
