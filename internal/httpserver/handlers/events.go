package handlers

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/corten/mediaengine/internal/engine"
)

// EventsHandler streams engine events as Server-Sent Events. Huma has
// no native SSE support, so this is registered directly on the chi
// router instead of going through huma.Register.
type EventsHandler struct {
	engine            *engine.Engine
	log               *slog.Logger
	heartbeatInterval time.Duration
}

// NewEventsHandler builds an EventsHandler over eng.
func NewEventsHandler(eng *engine.Engine, log *slog.Logger) *EventsHandler {
	if log == nil {
		log = slog.Default()
	}
	return &EventsHandler{engine: eng, log: log, heartbeatInterval: 15 * time.Second}
}

// RegisterSSE mounts the per-session event stream on a chi-compatible
// router. It is registered directly on chi rather than through Huma,
// which has no native SSE support.
func (h *EventsHandler) RegisterSSE(router interface {
	Get(pattern string, handlerFn http.HandlerFunc)
}) {
	router.Get("/sessions/{id}/events", h.serve)
}

type sseEvent struct {
	Kind      string `json:"kind"`
	SessionID string `json:"session_id"`
	StateName string `json:"state,omitempty"`
	ErrorKind string `json:"error_kind,omitempty"`
	Details   string `json:"details,omitempty"`
}

func (h *EventsHandler) serve(w http.ResponseWriter, r *http.Request) {
	sessionID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		http.Error(w, "invalid session id", http.StatusBadRequest)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")

	events := h.engine.SubscribeEvents()
	rc := http.NewResponseController(w)

	fmt.Fprint(w, ":connected\n\n")
	if err := rc.Flush(); err != nil {
		h.log.Debug("sse initial flush failed", slog.String("error", err.Error()))
		return
	}

	heartbeat := time.NewTicker(h.heartbeatInterval)
	defer heartbeat.Stop()

	ctx := r.Context()
	for {
		select {
		case <-ctx.Done():
			return
		case <-heartbeat.C:
			fmt.Fprintf(w, ":heartbeat %d\n\n", time.Now().Unix())
			if err := rc.Flush(); err != nil {
				h.log.Debug("sse heartbeat flush failed, client likely gone", slog.String("error", err.Error()))
				return
			}
		case ev, ok := <-events:
			if !ok {
				return
			}
			if ev.SessionID != sessionID {
				continue
			}
			if err := h.writeEvent(w, ev); err != nil {
				h.log.Debug("sse write failed, client likely gone", slog.String("error", err.Error()))
				return
			}
			if err := rc.Flush(); err != nil {
				return
			}
		}
	}
}

func (h *EventsHandler) writeEvent(w http.ResponseWriter, ev engine.Event) error {
	payload := sseEvent{
		Kind:      ev.Kind.String(),
		SessionID: ev.SessionID.String(),
		StateName: ev.StateName,
		Details:   ev.Details,
	}
	if ev.Kind == engine.EventMediaError {
		payload.ErrorKind = ev.ErrorKind.String()
	}
	data, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintf(w, "event: %s\ndata: %s\n\n", payload.Kind, data)
	return err
}
