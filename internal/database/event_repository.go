package database

import (
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/avast/retry-go/v4"

	"aircal/models"
)

// EventRepository persists reconciled calendar events. Upserts are
// last-write-wins on the (owner, title, media type, season, episode) key
// and chunked so a single statement never exceeds the store's parameter
// limits; a failed chunk is retried on its own.
type EventRepository struct {
	conn *sql.DB

	chunkSize     int
	chunkAttempts uint
	chunkDelay    time.Duration
}

// NewEventRepository creates a repository over the given connection.
func NewEventRepository(conn *sql.DB) *EventRepository {
	return &EventRepository{
		conn:          conn,
		chunkSize:     200,
		chunkAttempts: 3,
		chunkDelay:    200 * time.Millisecond,
	}
}

const eventColumns = 13

// UpsertEvents writes the events in bounded chunks. A later write for the
// same key fully replaces the prior record.
func (r *EventRepository) UpsertEvents(owner string, events []models.ReconciledEvent) error {
	if owner == "" {
		return fmt.Errorf("owner id is required")
	}
	for start := 0; start < len(events); start += r.chunkSize {
		end := start + r.chunkSize
		if end > len(events) {
			end = len(events)
		}
		chunk := events[start:end]
		err := retry.Do(
			func() error { return r.upsertChunk(owner, chunk) },
			retry.Attempts(r.chunkAttempts),
			retry.Delay(r.chunkDelay),
			retry.LastErrorOnly(true),
		)
		if err != nil {
			return fmt.Errorf("upsert events chunk %d..%d: %w", start, end, err)
		}
	}
	return nil
}

func (r *EventRepository) upsertChunk(owner string, events []models.ReconciledEvent) error {
	if len(events) == 0 {
		return nil
	}

	var sb strings.Builder
	sb.WriteString(`INSERT INTO calendar_events
		(owner_id, title_id, media_type, season, episode, day, aired_at,
		 release_type, title_name, episode_name, poster_url, backdrop_url, updated_at)
		VALUES `)
	args := make([]any, 0, len(events)*eventColumns)
	now := time.Now().UTC().Format(time.RFC3339)
	for i, ev := range events {
		if i > 0 {
			sb.WriteString(",")
		}
		sb.WriteString("(?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)")
		var airedAt any
		if ev.AiredAt != nil {
			airedAt = ev.AiredAt.UTC().Format(time.RFC3339)
		}
		args = append(args, owner, ev.TitleID, ev.MediaType, ev.Season, ev.Episode,
			ev.Day, airedAt, ev.ReleaseType, ev.TitleName, ev.EpisodeName,
			ev.PosterURL, ev.BackdropURL, now)
	}
	sb.WriteString(` ON CONFLICT (owner_id, title_id, media_type, season, episode) DO UPDATE SET
		day = excluded.day,
		aired_at = excluded.aired_at,
		release_type = excluded.release_type,
		title_name = excluded.title_name,
		episode_name = excluded.episode_name,
		poster_url = excluded.poster_url,
		backdrop_url = excluded.backdrop_url,
		updated_at = excluded.updated_at`)

	_, err := r.conn.Exec(sb.String(), args...)
	return err
}

// DeleteEventsForOwner removes every cached event for the owner.
func (r *EventRepository) DeleteEventsForOwner(owner string) error {
	_, err := r.conn.Exec(`DELETE FROM calendar_events WHERE owner_id = ?`, owner)
	if err != nil {
		return fmt.Errorf("delete events for owner: %w", err)
	}
	return nil
}

// ListEventsForOwner returns all cached events for the owner ordered by day.
func (r *EventRepository) ListEventsForOwner(owner string) ([]models.ReconciledEvent, error) {
	rows, err := r.conn.Query(`SELECT owner_id, title_id, media_type, season, episode,
		day, aired_at, release_type, title_name, episode_name, poster_url, backdrop_url
		FROM calendar_events WHERE owner_id = ?
		ORDER BY day, title_id, season, episode`, owner)
	if err != nil {
		return nil, fmt.Errorf("list events for owner: %w", err)
	}
	defer rows.Close()

	var events []models.ReconciledEvent
	for rows.Next() {
		var ev models.ReconciledEvent
		var airedAt sql.NullString
		if err := rows.Scan(&ev.OwnerID, &ev.TitleID, &ev.MediaType, &ev.Season, &ev.Episode,
			&ev.Day, &airedAt, &ev.ReleaseType, &ev.TitleName, &ev.EpisodeName,
			&ev.PosterURL, &ev.BackdropURL); err != nil {
			return nil, fmt.Errorf("scan event: %w", err)
		}
		if airedAt.Valid && airedAt.String != "" {
			if ts, err := time.Parse(time.RFC3339, airedAt.String); err == nil {
				ev.AiredAt = &ts
			}
		}
		events = append(events, ev)
	}
	return events, rows.Err()
}

// SetFullSyncDone records whether the owner has a complete baseline sync.
func (r *EventRepository) SetFullSyncDone(owner string, done bool) error {
	val := 0
	if done {
		val = 1
	}
	_, err := r.conn.Exec(`INSERT INTO owner_state (owner_id, full_sync_done) VALUES (?, ?)
		ON CONFLICT (owner_id) DO UPDATE SET full_sync_done = excluded.full_sync_done`, owner, val)
	if err != nil {
		return fmt.Errorf("set full sync flag: %w", err)
	}
	return nil
}

// FullSyncDone reports whether the owner completed a baseline sync.
func (r *EventRepository) FullSyncDone(owner string) (bool, error) {
	var val int
	err := r.conn.QueryRow(`SELECT full_sync_done FROM owner_state WHERE owner_id = ?`, owner).Scan(&val)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("read full sync flag: %w", err)
	}
	return val != 0, nil
}

// CalendarEpoch returns the owner's read-through cache marker. Readers
// compare it against the epoch they last saw to detect staleness.
func (r *EventRepository) CalendarEpoch(owner string) (int64, error) {
	var epoch int64
	err := r.conn.QueryRow(`SELECT calendar_epoch FROM owner_state WHERE owner_id = ?`, owner).Scan(&epoch)
	if err == sql.ErrNoRows {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("read calendar epoch: %w", err)
	}
	return epoch, nil
}

// BumpCalendarEpoch increments the owner's cache marker and returns the new
// value.
func (r *EventRepository) BumpCalendarEpoch(owner string) (int64, error) {
	_, err := r.conn.Exec(`INSERT INTO owner_state (owner_id, calendar_epoch) VALUES (?, 1)
		ON CONFLICT (owner_id) DO UPDATE SET calendar_epoch = calendar_epoch + 1`, owner)
	if err != nil {
		return 0, fmt.Errorf("bump calendar epoch: %w", err)
	}
	return r.CalendarEpoch(owner)
}
