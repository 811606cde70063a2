package handler

import (
	"net/http"

	natsclient "github.com/brijeshdobariya07/insightOS/internal/nats"
	"github.com/brijeshdobariya07/insightOS/internal/service"
)

// HealthHandler handles health check endpoints.
type HealthHandler struct {
	copilotService *service.CopilotService
	natsClient     *natsclient.Client
}

// NewHealthHandler creates a new health handler. natsClient may be nil when
// the audit stream is not configured.
func NewHealthHandler(copilotService *service.CopilotService, natsClient *natsclient.Client) *HealthHandler {
	return &HealthHandler{
		copilotService: copilotService,
		natsClient:     natsClient,
	}
}

// Health handles GET /health
func (h *HealthHandler) Health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"status": "healthy",
	})
}

// Ready handles GET /ready
//
// An unconfigured copilot still serves the safe fallback, so readiness
// reports capability flags instead of failing.
func (h *HealthHandler) Ready(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":             "ready",
		"copilot_configured": h.copilotService.Ready(),
		"audit_connected":    h.natsClient != nil && h.natsClient.IsConnected(),
	})
}
