package trakt

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"

	"aircal/models"
	"aircal/services/pipeline"
)

// Personal-history provider adapter. The user's account links us to this
// provider's own release data: full first-aired instants for episodes and a
// release date for movies.

const (
	apiBaseURL = "https://api.trakt.tv"
	apiVersion = "2"
)

// Submitter is the slice of the request pipeline this client needs.
type Submitter interface {
	Submit(ctx context.Context, task pipeline.Task) (*pipeline.Result, error)
}

// Client queries the history provider.
type Client struct {
	clientID    string
	accessToken string
	pipe        Submitter
}

// NewClient creates a history client that dispatches through the pipeline.
func NewClient(clientID, accessToken string, pipe Submitter) *Client {
	return &Client{clientID: clientID, accessToken: accessToken, pipe: pipe}
}

func (c *Client) get(ctx context.Context, path string, q url.Values, v any) error {
	header := http.Header{}
	header.Set("Content-Type", "application/json")
	header.Set("trakt-api-version", apiVersion)
	header.Set("trakt-api-key", c.clientID)
	if c.accessToken != "" {
		header.Set("Authorization", "Bearer "+c.accessToken)
	}
	res, err := c.pipe.Submit(ctx, pipeline.Task{
		Provider: "trakt",
		URL:      apiBaseURL + path,
		Query:    q,
		Header:   header,
	})
	if err != nil {
		return err
	}
	if err := json.Unmarshal(res.Body, v); err != nil {
		return fmt.Errorf("trakt decode %s: %w", path, err)
	}
	return nil
}

type seasonWithEpisodes struct {
	Number   int `json:"number"`
	Episodes []struct {
		Season     int    `json:"season"`
		Number     int    `json:"number"`
		FirstAired string `json:"first_aired"` // RFC 3339 instant
	} `json:"episodes"`
}

// EpisodeReleases returns full-timestamp candidates for every episode the
// provider has a first-aired instant for. Lookup is by the shared TMDB id.
func (c *Client) EpisodeReleases(ctx context.Context, tmdbID int64) ([]models.CandidateDate, error) {
	q := url.Values{}
	q.Set("extended", "episodes,full")
	var seasons []seasonWithEpisodes
	path := fmt.Sprintf("/shows/tmdb:%d/seasons", tmdbID)
	if err := c.get(ctx, path, q, &seasons); err != nil {
		return nil, err
	}

	var cands []models.CandidateDate
	for _, season := range seasons {
		if season.Number == 0 {
			continue
		}
		for _, ep := range season.Episodes {
			if ep.FirstAired == "" {
				continue
			}
			cands = append(cands, models.CandidateDate{
				Source:  models.SourceHistory,
				Raw:     ep.FirstAired,
				Season:  ep.Season,
				Episode: ep.Number,
			})
		}
	}
	return cands, nil
}

type movieFull struct {
	Title    string `json:"title"`
	Released string `json:"released"` // YYYY-MM-DD
}

// MovieRelease returns the provider's release-date candidate for a movie,
// or nothing when it has none.
func (c *Client) MovieRelease(ctx context.Context, tmdbID int64) ([]models.CandidateDate, error) {
	q := url.Values{}
	q.Set("extended", "full")
	var movie movieFull
	path := fmt.Sprintf("/movies/tmdb:%d", tmdbID)
	if err := c.get(ctx, path, q, &movie); err != nil {
		return nil, err
	}
	if movie.Released == "" {
		return nil, nil
	}
	return []models.CandidateDate{{
		Source:  models.SourceHistory,
		Raw:     movie.Released,
		Season:  models.MovieSeason,
		Episode: models.MovieEpisode,
	}}, nil
}
