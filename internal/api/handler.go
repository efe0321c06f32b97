package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/gyaneshwarpardhi/fluxstream/internal/config"
	"github.com/gyaneshwarpardhi/fluxstream/internal/engine"
	"github.com/gyaneshwarpardhi/fluxstream/internal/event"
	"github.com/gyaneshwarpardhi/fluxstream/internal/stream"
)

const maxBatchSize = 1000

// Handler holds all HTTP handler dependencies.
type Handler struct {
	eng    *engine.Engine
	loader *config.Loader
	hub    *stream.Hub
	mux    *http.ServeMux
}

// New creates an HTTP handler and registers all routes.
func New(eng *engine.Engine, loader *config.Loader, hub *stream.Hub) http.Handler {
	h := &Handler{eng: eng, loader: loader, hub: hub, mux: http.NewServeMux()}

	h.mux.HandleFunc("POST /v1/events", h.ingestEvent)
	h.mux.HandleFunc("POST /v1/events/batch", h.ingestBatch)
	h.mux.HandleFunc("GET /v1/pipelines", h.listPipelines)
	h.mux.HandleFunc("POST /v1/pipelines/reload", h.reloadPipelines)
	h.mux.HandleFunc("GET /healthz", h.healthz)
	h.mux.HandleFunc("GET /readyz", h.readyz)
	h.mux.Handle("GET /metrics", promhttp.Handler())
	h.mux.HandleFunc("GET /v1/stream", hub.WebSocketHandler())

	return loggingMiddleware(h.mux)
}

// POST /v1/events — enqueue a single event for background processing.
func (h *Handler) ingestEvent(w http.ResponseWriter, r *http.Request) {
	var ev event.StreamEvent
	if err := json.NewDecoder(r.Body).Decode(&ev); err != nil {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("invalid JSON: %s", err))
		return
	}
	if ev.Timestamp == 0 {
		ev.Timestamp = time.Now().UnixMilli()
	}
	queued, err := h.eng.ProcessAsync([]*event.StreamEvent{&ev})
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if !queued {
		writeError(w, http.StatusTooManyRequests, "event queue full")
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]interface{}{
		"job_id": uuid.New().String(),
		"queued": 1,
	})
}

// POST /v1/events/batch — synchronous batch processing (up to 1000 events).
func (h *Handler) ingestBatch(w http.ResponseWriter, r *http.Request) {
	var events []*event.StreamEvent
	if err := json.NewDecoder(r.Body).Decode(&events); err != nil {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("invalid JSON: %s", err))
		return
	}
	if len(events) == 0 {
		writeError(w, http.StatusBadRequest, "batch must contain at least one event")
		return
	}
	if len(events) > maxBatchSize {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("batch size %d exceeds max %d", len(events), maxBatchSize))
		return
	}
	now := time.Now().UnixMilli()
	for _, ev := range events {
		if ev.Timestamp == 0 {
			ev.Timestamp = now
		}
	}

	res, err := h.eng.ProcessSync(r.Context(), events)
	if err != nil {
		switch {
		case errors.Is(err, engine.ErrQueueFull):
			writeError(w, http.StatusTooManyRequests, err.Error())
		case errors.Is(err, engine.ErrTimeout):
			writeError(w, http.StatusGatewayTimeout, err.Error())
		default:
			writeError(w, http.StatusInternalServerError, err.Error())
		}
		return
	}
	writeJSON(w, http.StatusOK, res)
}

// GET /v1/pipelines — list loaded pipelines.
func (h *Handler) listPipelines(w http.ResponseWriter, r *http.Request) {
	cfg := h.loader.Config()
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"version":   cfg.Version,
		"pipelines": cfg.Pipelines,
	})
}

// POST /v1/pipelines/reload — hot-reload pipeline definitions from disk.
func (h *Handler) reloadPipelines(w http.ResponseWriter, r *http.Request) {
	cfg, err := h.loader.Reload()
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if err := config.Validate(cfg); err != nil {
		writeError(w, http.StatusUnprocessableEntity, err.Error())
		return
	}
	if err := h.eng.SwapConfig(cfg); err != nil {
		writeError(w, http.StatusUnprocessableEntity, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"reloaded":        true,
		"pipelines_count": len(cfg.Pipelines),
	})
}

// GET /healthz — always 200 (liveness probe).
func (h *Handler) healthz(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// GET /readyz — 503 if batch queue >80% full.
func (h *Handler) readyz(w http.ResponseWriter, r *http.Request) {
	util := h.eng.QueueUtilization()
	if util > 0.8 {
		writeJSON(w, http.StatusServiceUnavailable, map[string]interface{}{
			"status":            "overloaded",
			"queue_utilization": util,
		})
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"status":            "ready",
		"queue_utilization": util,
	})
}
