package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"aircal/models"
	"aircal/services/sync"
)

// syncService is the full-sync control surface the handler exposes.
type syncService interface {
	Start(owner string) (string, error)
	Cancel(owner string)
	Progress(owner string) models.SyncProgress
}

// SyncHandler exposes full-sync control for an owner.
type SyncHandler struct {
	Service syncService
}

// NewSyncHandler creates a new SyncHandler.
func NewSyncHandler(service syncService) *SyncHandler {
	return &SyncHandler{Service: service}
}

// StartSync kicks off a background full sync for the owner.
func (h *SyncHandler) StartSync(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}

	runID, err := h.Service.Start(userID)
	if errors.Is(err, sync.ErrSyncInProgress) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusConflict)
		json.NewEncoder(w).Encode(map[string]string{"error": "sync already in progress"})
		return
	}
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusAccepted)
	json.NewEncoder(w).Encode(map[string]string{"runId": runID})
}

// SyncStatus reports the owner's current or most recent run.
func (h *SyncHandler) SyncStatus(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(h.Service.Progress(userID))
}

// CancelSync requests cancellation of the owner's running sync. The run
// stops at the next batch boundary; poll SyncStatus for the outcome.
func (h *SyncHandler) CancelSync(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}
	h.Service.Cancel(userID)
	w.WriteHeader(http.StatusAccepted)
}

// Options handles CORS preflight.
func (h *SyncHandler) Options(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
}
