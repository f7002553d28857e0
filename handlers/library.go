package handlers

import (
	"encoding/json"
	"net/http"
	"strconv"
	"strings"

	"github.com/gorilla/mux"

	"aircal/models"
)

// libraryService manages an owner's tracked titles.
type libraryService interface {
	Add(owner string, title models.TrackedTitle) error
	Remove(owner string, tmdbID int64, mediaType string) error
	List(owner string) ([]models.TrackedTitle, error)
}

// LibraryHandler exposes the tracked-title list.
type LibraryHandler struct {
	Service libraryService
}

// NewLibraryHandler creates a new LibraryHandler.
func NewLibraryHandler(service libraryService) *LibraryHandler {
	return &LibraryHandler{Service: service}
}

// AddTitle tracks a title for the owner.
func (h *LibraryHandler) AddTitle(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}

	var title models.TrackedTitle
	if err := json.NewDecoder(r.Body).Decode(&title); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}
	if err := h.Service.Add(userID, title); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	w.WriteHeader(http.StatusCreated)
}

// RemoveTitle untracks a title and drops its calendar events.
func (h *LibraryHandler) RemoveTitle(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}

	vars := mux.Vars(r)
	mediaType := strings.TrimSpace(vars["mediaType"])
	tmdbID, err := strconv.ParseInt(vars["tmdbID"], 10, 64)
	if err != nil || tmdbID <= 0 {
		http.Error(w, "invalid title id", http.StatusBadRequest)
		return
	}
	if mediaType != models.MediaTypeSeries && mediaType != models.MediaTypeMovie {
		http.Error(w, "invalid media type", http.StatusBadRequest)
		return
	}

	if err := h.Service.Remove(userID, tmdbID, mediaType); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// ListTitles returns the owner's tracked titles.
func (h *LibraryHandler) ListTitles(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}

	titles, err := h.Service.List(userID)
	if err != nil {
		http.Error(w, "failed to list titles", http.StatusInternalServerError)
		return
	}
	if titles == nil {
		titles = []models.TrackedTitle{}
	}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(titles)
}

// Options handles CORS preflight.
func (h *LibraryHandler) Options(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
}
