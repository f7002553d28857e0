package handlers

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gorilla/mux"

	"aircal/models"
)

const maxWindowDays = 90

// eventReader is the persisted calendar view the handler serves from.
type eventReader interface {
	ListEventsForOwner(owner string) ([]models.ReconciledEvent, error)
	CalendarEpoch(owner string) (int64, error)
	FullSyncDone(owner string) (bool, error)
}

// CalendarResponse is the payload returned by the calendar endpoint.
type CalendarResponse struct {
	Items        []models.ReconciledEvent `json:"items"`
	Total        int                      `json:"total"`
	From         string                   `json:"from"`
	To           string                   `json:"to"`
	Epoch        int64                    `json:"epoch"`
	FullSyncDone bool                     `json:"fullSyncDone"`
}

// CalendarHandler serves the calendar read endpoint.
type CalendarHandler struct {
	Events      eventReader
	Location    *time.Location
	DefaultDays int
}

// NewCalendarHandler creates a new CalendarHandler.
func NewCalendarHandler(events eventReader, loc *time.Location, defaultDays int) *CalendarHandler {
	if loc == nil {
		loc = time.Local
	}
	if defaultDays <= 0 {
		defaultDays = 30
	}
	return &CalendarHandler{Events: events, Location: loc, DefaultDays: defaultDays}
}

// GetCalendar returns the owner's cached events inside a day window.
// Window: explicit from/to (YYYY-MM-DD), or today..today+days in the
// configured timezone. The current epoch rides along in a header so
// clients can detect a stale cached view.
func (h *CalendarHandler) GetCalendar(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}

	from, to, err := h.window(r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	events, err := h.Events.ListEventsForOwner(userID)
	if err != nil {
		http.Error(w, "failed to read calendar", http.StatusInternalServerError)
		return
	}
	epoch, err := h.Events.CalendarEpoch(userID)
	if err != nil {
		http.Error(w, "failed to read calendar", http.StatusInternalServerError)
		return
	}
	done, err := h.Events.FullSyncDone(userID)
	if err != nil {
		http.Error(w, "failed to read calendar", http.StatusInternalServerError)
		return
	}

	items := []models.ReconciledEvent{}
	for _, ev := range events {
		if ev.Day < from || ev.Day > to {
			continue
		}
		items = append(items, ev)
	}

	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("X-Calendar-Epoch", strconv.FormatInt(epoch, 10))
	json.NewEncoder(w).Encode(CalendarResponse{
		Items:        items,
		Total:        len(items),
		From:         from,
		To:           to,
		Epoch:        epoch,
		FullSyncDone: done,
	})
}

func (h *CalendarHandler) window(r *http.Request) (string, string, error) {
	q := r.URL.Query()
	from := strings.TrimSpace(q.Get("from"))
	to := strings.TrimSpace(q.Get("to"))
	if from != "" || to != "" {
		for _, day := range []string{from, to} {
			if day == "" {
				continue
			}
			if _, err := time.Parse("2006-01-02", day); err != nil {
				return "", "", fmt.Errorf("invalid day %q, want YYYY-MM-DD", day)
			}
		}
		if from == "" || to == "" || from > to {
			return "", "", fmt.Errorf("from/to must both be set and ordered")
		}
		return from, to, nil
	}

	days := h.DefaultDays
	if s := q.Get("days"); s != "" {
		parsed, err := strconv.Atoi(s)
		if err != nil || parsed <= 0 {
			return "", "", fmt.Errorf("invalid days %q", s)
		}
		days = parsed
	}
	if days > maxWindowDays {
		days = maxWindowDays
	}
	today := time.Now().In(h.Location)
	return today.Format("2006-01-02"), today.AddDate(0, 0, days).Format("2006-01-02"), nil
}

// Options handles CORS preflight.
func (h *CalendarHandler) Options(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
}

func requireUser(w http.ResponseWriter, r *http.Request) (string, bool) {
	userID := strings.TrimSpace(mux.Vars(r)["userID"])
	if userID == "" {
		http.Error(w, "user id is required", http.StatusBadRequest)
		return "", false
	}
	return userID, true
}
