package handlers

import (
	"net/http"

	"github.com/eshaffer321/ledger-reconcile/internal/api/dto"
)

// HealthHandler handles health check requests.
type HealthHandler struct {
	*Base
	assisted bool
}

// NewHealthHandler creates a new health handler. assisted reports whether a decision service is configured.
func NewHealthHandler(assisted bool) *HealthHandler {
	return &HealthHandler{Base: &Base{}, assisted: assisted}
}

// ServeHTTP handles the health check request.
func (h *HealthHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	h.WriteJSON(w, http.StatusOK, dto.NewHealthResponse(h.assisted))
}
