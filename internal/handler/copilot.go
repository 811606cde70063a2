// Package handler provides HTTP handlers for the API.
package handler

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"go.uber.org/zap"

	"github.com/brijeshdobariya07/insightOS/internal/copilot"
	"github.com/brijeshdobariya07/insightOS/internal/llm"
	"github.com/brijeshdobariya07/insightOS/internal/middleware"
	"github.com/brijeshdobariya07/insightOS/internal/model"
	"github.com/brijeshdobariya07/insightOS/internal/service"
	"github.com/brijeshdobariya07/insightOS/pkg/logger"
	"github.com/brijeshdobariya07/insightOS/pkg/metrics"
)

// CopilotHandler handles the copilot query, action, and session endpoints.
type CopilotHandler struct {
	service *service.CopilotService
	logger  *logger.Logger
}

// NewCopilotHandler creates a new copilot handler.
func NewCopilotHandler(svc *service.CopilotService, log *logger.Logger) *CopilotHandler {
	return &CopilotHandler{
		service: svc,
		logger:  log,
	}
}

// Query handles POST /api/v1/copilot/query.
//
// The response is newline-delimited JSON: zero or more token events followed
// by exactly one done event. Failures detected before the stream opens use
// the error envelope: 400 for caller input, 409 when a submission is already
// in flight, 503 when the model is not configured, 429 when the provider
// rate-limited the call, 502 for any other upstream refusal.
func (h *CopilotHandler) Query(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	subject := middleware.GetSubject(ctx)

	var req model.QueryRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if violations := copilot.ValidateQueryRequest(&req); len(violations) > 0 {
		writeErrorDetails(w, http.StatusBadRequest, "invalid query request", violations)
		return
	}

	if !h.service.Ready() {
		writeError(w, http.StatusServiceUnavailable, "copilot model is not configured")
		return
	}

	if !req.Streaming() {
		h.query(w, r, subject, &req)
		return
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		writeError(w, http.StatusInternalServerError, "streaming not supported")
		return
	}

	metrics.IncrementStreamConnections()
	defer metrics.DecrementStreamConnections()

	headersSent := false
	emit := func(event model.StreamEvent) error {
		if !headersSent {
			w.Header().Set("Content-Type", "application/x-ndjson")
			w.Header().Set("Cache-Control", "no-cache")
			w.Header().Set("X-Accel-Buffering", "no") // Disable nginx buffering
			w.WriteHeader(http.StatusOK)
			headersSent = true
		}

		data, err := json.Marshal(event)
		if err != nil {
			return err
		}
		if _, err := fmt.Fprintf(w, "%s\n", data); err != nil {
			return err
		}
		flusher.Flush()
		return nil
	}

	err := h.service.StreamQuery(ctx, subject, &req, emit)
	switch {
	case err == nil:
	case errors.Is(err, copilot.ErrBusy):
		writeError(w, http.StatusConflict, "a query is already in flight")
	case errors.Is(err, copilot.ErrNotConfigured):
		if !headersSent {
			writeError(w, http.StatusServiceUnavailable, "copilot model is not configured")
		}
	case errors.Is(err, llm.ErrRateLimited):
		if !headersSent {
			w.Header().Set("Retry-After", "60")
			writeError(w, http.StatusTooManyRequests, "model provider rate limited the request")
		}
	default:
		h.logger.Error("copilot turn failed", zap.Error(err))
		if !headersSent {
			writeError(w, http.StatusBadGateway, "upstream model call failed")
		}
	}
}

// query serves the non-streaming mode: one JSON body holding the validated
// (or fallback) structured response, with the same status taxonomy as the
// pre-stream failures of the NDJSON path.
func (h *CopilotHandler) query(w http.ResponseWriter, r *http.Request, subject string, req *model.QueryRequest) {
	resp, err := h.service.Query(r.Context(), subject, req)
	switch {
	case err == nil:
		writeJSON(w, http.StatusOK, resp)
	case errors.Is(err, copilot.ErrBusy):
		writeError(w, http.StatusConflict, "a query is already in flight")
	case errors.Is(err, copilot.ErrNotConfigured):
		writeError(w, http.StatusServiceUnavailable, "copilot model is not configured")
	case errors.Is(err, llm.ErrRateLimited):
		w.Header().Set("Retry-After", "60")
		writeError(w, http.StatusTooManyRequests, "model provider rate limited the request")
	default:
		h.logger.Error("copilot turn failed", zap.Error(err))
		writeError(w, http.StatusBadGateway, "upstream model call failed")
	}
}

// Provider handles GET /api/v1/copilot/provider.
func (h *CopilotHandler) Provider(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.service.Provider())
}

// Actions handles POST /api/v1/copilot/actions. Dispatch failure is a
// result, not an HTTP error.
func (h *CopilotHandler) Actions(w http.ResponseWriter, r *http.Request) {
	subject := middleware.GetSubject(r.Context())

	var action model.SuggestedAction
	if err := json.NewDecoder(r.Body).Decode(&action); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	result := h.service.Dispatch(r.Context(), subject, action)
	writeJSON(w, http.StatusOK, result)
}

// Messages handles GET /api/v1/copilot/messages.
func (h *CopilotHandler) Messages(w http.ResponseWriter, r *http.Request) {
	session := h.service.Session(middleware.GetSubject(r.Context()))

	writeJSON(w, http.StatusOK, model.MessagesResponse{
		Messages:     session.Messages(),
		LastResponse: session.LastResponse(),
		InFlight:     session.InFlight(),
	})
}

// Reset handles POST /api/v1/copilot/reset.
func (h *CopilotHandler) Reset(w http.ResponseWriter, r *http.Request) {
	h.service.Session(middleware.GetSubject(r.Context())).Reset()
	w.WriteHeader(http.StatusNoContent)
}
