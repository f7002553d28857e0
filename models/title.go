package models

// Media types for tracked titles and calendar events.
const (
	MediaTypeSeries = "series"
	MediaTypeMovie  = "movie"
)

// Season/episode sentinels used as the event key for movies.
const (
	MovieSeason  = -1
	MovieEpisode = 0
)

// TrackedTitle is one entry in an owner's tracked library. The TMDB id is
// the identity; TVDB/IMDB ids are carried along for the other providers.
type TrackedTitle struct {
	TMDBID      int64  `json:"tmdbId"`
	MediaType   string `json:"mediaType"` // "series" | "movie"
	Name        string `json:"name"`
	TVDBID      int64  `json:"tvdbId,omitempty"`
	IMDBID      string `json:"imdbId,omitempty"`
	PosterURL   string `json:"posterUrl,omitempty"`
	BackdropURL string `json:"backdropUrl,omitempty"`
	Region      string `json:"region,omitempty"` // optional per-title country override (ISO 3166-1)
}

// TitleInfo is display metadata returned by the primary metadata provider.
type TitleInfo struct {
	Name        string `json:"name"`
	Year        int    `json:"year,omitempty"`
	PosterURL   string `json:"posterUrl,omitempty"`
	BackdropURL string `json:"backdropUrl,omitempty"`
}

// EpisodeInfo is one episode as reported by the primary metadata provider.
// AirDate is date-only (YYYY-MM-DD) or empty when unannounced.
type EpisodeInfo struct {
	Season  int    `json:"season"`
	Episode int    `json:"episode"`
	Name    string `json:"name,omitempty"`
	AirDate string `json:"airDate,omitempty"`
}
