package handlers

import (
	"net/http"

	"github.com/gorilla/mux"
)

// RegisterRoutes wires the API surface onto the router.
func RegisterRoutes(r *mux.Router, cal *CalendarHandler, sy *SyncHandler, lib *LibraryHandler) {
	r.HandleFunc("/api/users/{userID}/calendar", cal.GetCalendar).Methods(http.MethodGet)
	r.HandleFunc("/api/users/{userID}/calendar", cal.Options).Methods(http.MethodOptions)

	r.HandleFunc("/api/users/{userID}/sync", sy.StartSync).Methods(http.MethodPost)
	r.HandleFunc("/api/users/{userID}/sync", sy.CancelSync).Methods(http.MethodDelete)
	r.HandleFunc("/api/users/{userID}/sync", sy.Options).Methods(http.MethodOptions)
	r.HandleFunc("/api/users/{userID}/sync/status", sy.SyncStatus).Methods(http.MethodGet)

	r.HandleFunc("/api/users/{userID}/library", lib.ListTitles).Methods(http.MethodGet)
	r.HandleFunc("/api/users/{userID}/library", lib.AddTitle).Methods(http.MethodPost)
	r.HandleFunc("/api/users/{userID}/library", lib.Options).Methods(http.MethodOptions)
	r.HandleFunc("/api/users/{userID}/library/{mediaType}/{tmdbID}", lib.RemoveTitle).Methods(http.MethodDelete)
}
