// Package server exposes the webhook and operational HTTP surface for the
// tag reconciliation engine.
package server

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/bookverse/platform/internal/auth"
	"github.com/bookverse/platform/internal/log"
	"github.com/bookverse/platform/internal/registry"
	"github.com/bookverse/platform/internal/tagging"
)

// defaultDispatchTimeout bounds each background reconciliation run.
const defaultDispatchTimeout = 5 * time.Minute

// Handler provides the HTTP endpoints for webhook-driven and manual tag
// reconciliation.
type Handler struct {
	tagging         *tagging.Service
	auth            *auth.Service
	dispatchTimeout time.Duration

	// wg tracks in-flight background runs so shutdown can drain them.
	wg sync.WaitGroup
}

// HandlerConfig configures the API handler.
type HandlerConfig struct {
	// Tagging runs the reconciliation operations (required).
	Tagging *tagging.Service
	// Auth validates bearer credentials (required).
	Auth *auth.Service
	// DispatchTimeout bounds background reconciliation runs.
	DispatchTimeout time.Duration
}

// NewHandler creates an API handler.
func NewHandler(cfg HandlerConfig) *Handler {
	timeout := cfg.DispatchTimeout
	if timeout == 0 {
		timeout = defaultDispatchTimeout
	}
	return &Handler{
		tagging:         cfg.Tagging,
		auth:            cfg.Auth,
		dispatchTimeout: timeout,
	}
}

// Routes returns an http.Handler with all API routes registered.
func (h *Handler) Routes() http.Handler {
	mux := http.NewServeMux()

	requireScope := h.auth.RequireScope(auth.ScopeAPI)
	mux.Handle("POST /webhook/apptrust", requireScope(http.HandlerFunc(h.Webhook)))
	mux.Handle("POST /enforce-tagging/{appKey}", h.auth.RequireAuth(http.HandlerFunc(h.EnforceTagging)))

	mux.HandleFunc("GET /health", h.Health)
	mux.HandleFunc("GET /health/auth", h.AuthHealth)
	mux.HandleFunc("GET /health/auth/test", h.AuthConnectionTest)

	return requestID(mux)
}

// === Request/Response Types ===

// WebhookEvent is the Trust Registry lifecycle event payload.
type WebhookEvent struct {
	AppKey      string `json:"app_key"`
	Version     string `json:"version"`
	EventType   string `json:"event_type"` // "promoted", "rollback", "tagged"
	FromStage   string `json:"from_stage,omitempty"`
	ToStage     string `json:"to_stage,omitempty"`
	NewTag      string `json:"new_tag,omitempty"`
	PreviousTag string `json:"previous_tag,omitempty"`
}

// StatusResponse acknowledges an accepted request.
type StatusResponse struct {
	Status string `json:"status"`
}

// ErrorResponse is the response body for errors.
type ErrorResponse struct {
	Error   string `json:"error"`
	Code    string `json:"code,omitempty"`
	Details string `json:"details,omitempty"`
}

// === Handlers ===

// Webhook dispatches reconciliation for registry lifecycle events. The work
// runs in the background; the response only acknowledges acceptance.
// POST /webhook/apptrust
func (h *Handler) Webhook(w http.ResponseWriter, r *http.Request) {
	var event WebhookEvent
	if err := json.NewDecoder(r.Body).Decode(&event); err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid_json", "Invalid JSON body", err.Error())
		return
	}
	if event.AppKey == "" {
		h.writeError(w, http.StatusBadRequest, "validation_error", "app_key is required", "")
		return
	}

	log.Info(log.CatHTTP, "received webhook event",
		"type", event.EventType, "app", event.AppKey, "version", event.Version)

	switch {
	case event.EventType == "promoted" && event.ToStage == registry.StageProd:
		h.dispatch("enforce_latest", func(ctx context.Context) error {
			_, err := h.tagging.EnforceLatest(ctx, event.AppKey)
			return err
		})
	case event.EventType == "rollback":
		if event.Version == "" {
			h.writeError(w, http.StatusBadRequest, "validation_error", "version is required for rollback events", "")
			return
		}
		h.dispatch("handle_rollback", func(ctx context.Context) error {
			_, err := h.tagging.HandleRollback(ctx, event.AppKey, event.Version)
			return err
		})
	default:
		log.Debug(log.CatHTTP, "ignoring webhook event", "type", event.EventType, "to_stage", event.ToStage)
	}

	h.writeJSON(w, http.StatusAccepted, StatusResponse{Status: "accepted"})
}

// EnforceTagging manually schedules tag enforcement for one application.
// POST /enforce-tagging/{appKey}
func (h *Handler) EnforceTagging(w http.ResponseWriter, r *http.Request) {
	appKey := r.PathValue("appKey")

	log.Info(log.CatHTTP, "manual tag enforcement requested", "app", appKey)
	h.dispatch("enforce_latest", func(ctx context.Context) error {
		_, err := h.tagging.EnforceLatest(ctx, appKey)
		return err
	})

	h.writeJSON(w, http.StatusAccepted, StatusResponse{Status: "enforcement_scheduled"})
}

// Health reports liveness.
// GET /health
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	h.writeJSON(w, http.StatusOK, StatusResponse{Status: "ok"})
}

// AuthHealth reports the authentication configuration.
// GET /health/auth
func (h *Handler) AuthHealth(w http.ResponseWriter, r *http.Request) {
	h.writeJSON(w, http.StatusOK, h.auth.Status(r.Context()))
}

// AuthConnectionTest exercises OIDC discovery and JWKS retrieval.
// GET /health/auth/test
func (h *Handler) AuthConnectionTest(w http.ResponseWriter, r *http.Request) {
	h.writeJSON(w, http.StatusOK, h.auth.TestConnection(r.Context()))
}

// === Helpers ===

// dispatch runs a reconciliation operation in the background, detached from
// the request context. Each run gets its own ID for log correlation.
func (h *Handler) dispatch(operation string, fn func(ctx context.Context) error) {
	runID := uuid.NewString()
	log.Info(log.CatHTTP, "dispatching background run", "operation", operation, "run_id", runID)

	h.wg.Add(1)
	go func() {
		defer h.wg.Done()

		ctx, cancel := context.WithTimeout(context.Background(), h.dispatchTimeout)
		defer cancel()

		if err := fn(ctx); err != nil {
			log.Error(log.CatHTTP, "background run failed",
				"operation", operation, "run_id", runID, "error", err)
			return
		}
		log.Info(log.CatHTTP, "background run finished", "operation", operation, "run_id", runID)
	}()
}

// Drain blocks until all dispatched background runs complete.
func (h *Handler) Drain() {
	h.wg.Wait()
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		log.Error(log.CatHTTP, "failed to encode JSON response", "error", err)
	}
}

func (h *Handler) writeError(w http.ResponseWriter, status int, code, message, details string) {
	h.writeJSON(w, status, ErrorResponse{
		Error:   message,
		Code:    code,
		Details: details,
	})
}

// requestID stamps every response with a request ID for log correlation.
func requestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get("X-Request-ID")
		if id == "" {
			id = uuid.NewString()
		}
		w.Header().Set("X-Request-ID", id)
		next.ServeHTTP(w, r)
	})
}
