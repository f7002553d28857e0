package database

import (
	"database/sql"
	"fmt"
	"time"

	"aircal/models"
)

// LibraryRepository persists each owner's tracked-title list.
type LibraryRepository struct {
	conn *sql.DB
}

// NewLibraryRepository creates a repository over the given connection.
func NewLibraryRepository(conn *sql.DB) *LibraryRepository {
	return &LibraryRepository{conn: conn}
}

// AddTitle inserts or refreshes a tracked title. Identity is immutable;
// display metadata is replaced.
func (r *LibraryRepository) AddTitle(owner string, title models.TrackedTitle) error {
	if owner == "" {
		return fmt.Errorf("owner id is required")
	}
	if title.TMDBID <= 0 {
		return fmt.Errorf("title id is required")
	}
	if title.MediaType != models.MediaTypeSeries && title.MediaType != models.MediaTypeMovie {
		return fmt.Errorf("unknown media type %q", title.MediaType)
	}

	_, err := r.conn.Exec(`INSERT INTO tracked_titles
		(owner_id, tmdb_id, media_type, name, tvdb_id, imdb_id, poster_url, backdrop_url, region, added_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (owner_id, tmdb_id, media_type) DO UPDATE SET
			name = excluded.name,
			tvdb_id = excluded.tvdb_id,
			imdb_id = excluded.imdb_id,
			poster_url = excluded.poster_url,
			backdrop_url = excluded.backdrop_url,
			region = excluded.region`,
		owner, title.TMDBID, title.MediaType, title.Name, title.TVDBID, title.IMDBID,
		title.PosterURL, title.BackdropURL, title.Region, time.Now().UTC().Format(time.RFC3339))
	if err != nil {
		return fmt.Errorf("add tracked title: %w", err)
	}
	return nil
}

// RemoveTitle untracks a title and deletes its cached events.
func (r *LibraryRepository) RemoveTitle(owner string, tmdbID int64, mediaType string) error {
	tx, err := r.conn.Begin()
	if err != nil {
		return fmt.Errorf("begin remove title: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.Exec(`DELETE FROM tracked_titles
		WHERE owner_id = ? AND tmdb_id = ? AND media_type = ?`, owner, tmdbID, mediaType); err != nil {
		return fmt.Errorf("remove tracked title: %w", err)
	}
	if _, err := tx.Exec(`DELETE FROM calendar_events
		WHERE owner_id = ? AND title_id = ? AND media_type = ?`, owner, tmdbID, mediaType); err != nil {
		return fmt.Errorf("remove title events: %w", err)
	}
	return tx.Commit()
}

// ListTitles returns the owner's tracked titles in the order they were added.
func (r *LibraryRepository) ListTitles(owner string) ([]models.TrackedTitle, error) {
	rows, err := r.conn.Query(`SELECT tmdb_id, media_type, name, tvdb_id, imdb_id,
		poster_url, backdrop_url, region
		FROM tracked_titles WHERE owner_id = ? ORDER BY added_at, tmdb_id`, owner)
	if err != nil {
		return nil, fmt.Errorf("list tracked titles: %w", err)
	}
	defer rows.Close()

	var titles []models.TrackedTitle
	for rows.Next() {
		var t models.TrackedTitle
		if err := rows.Scan(&t.TMDBID, &t.MediaType, &t.Name, &t.TVDBID, &t.IMDBID,
			&t.PosterURL, &t.BackdropURL, &t.Region); err != nil {
			return nil, fmt.Errorf("scan tracked title: %w", err)
		}
		titles = append(titles, t)
	}
	return titles, rows.Err()
}
