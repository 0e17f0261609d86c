package handlers

import (
	"context"
	"errors"
	"net/http"

	"github.com/wonny/sp500scope/backend/internal/contracts"
	"github.com/wonny/sp500scope/backend/pkg/logger"
)

// Coordinator is the refresh trigger and state surface
type Coordinator interface {
	Start(ctx context.Context, force bool) (contracts.StartStatus, error)
	Status() contracts.RefreshState
}

// RefreshHandler handles refresh endpoints
type RefreshHandler struct {
	coordinator Coordinator
	logger      *logger.Logger
}

// NewRefreshHandler creates a new refresh handler
func NewRefreshHandler(coordinator Coordinator, log *logger.Logger) *RefreshHandler {
	return &RefreshHandler{
		coordinator: coordinator,
		logger:      log,
	}
}

// RefreshResponse is the trigger outcome
type RefreshResponse struct {
	Status contracts.StartStatus `json:"status"`
}

// Trigger starts a refresh
// POST|GET /api/refresh?force=true
func (h *RefreshHandler) Trigger(w http.ResponseWriter, r *http.Request) {
	force := queryBool(r, "force")

	status, err := h.coordinator.Start(r.Context(), force)
	switch {
	case errors.Is(err, contracts.ErrAlreadyRunning):
		respondJSON(w, http.StatusConflict, RefreshResponse{Status: contracts.StatusAlreadyRunning})
		return
	case err != nil:
		h.logger.WithError(err).Error("Failed to start refresh")
		respondError(w, http.StatusInternalServerError, "Failed to start refresh")
		return
	}

	h.logger.WithFields(map[string]interface{}{
		"force":  force,
		"status": status,
	}).Info("Refresh triggered")

	code := http.StatusAccepted
	if status == contracts.StatusAlreadyCurrent {
		code = http.StatusOK
	}
	respondJSON(w, code, RefreshResponse{Status: status})
}

// GetStatus returns the refresh state
// GET /api/refresh/status
func (h *RefreshHandler) GetStatus(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, h.coordinator.Status())
}
