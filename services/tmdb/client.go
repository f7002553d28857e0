package tmdb

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strings"

	"aircal/models"
	"aircal/services/pipeline"
)

// Primary metadata provider adapter. Networking goes through the request
// pipeline; this package only shapes queries and translates responses into
// the canonical candidate/episode types.

const (
	apiBaseURL   = "https://api.themoviedb.org/3"
	imageBaseURL = "https://image.tmdb.org/t/p/w500"
)

// Submitter is the slice of the request pipeline this client needs.
type Submitter interface {
	Submit(ctx context.Context, task pipeline.Task) (*pipeline.Result, error)
}

// Client queries the primary metadata provider.
type Client struct {
	apiKey string
	pipe   Submitter
}

// NewClient creates a metadata client that dispatches through the pipeline.
func NewClient(apiKey string, pipe Submitter) *Client {
	return &Client{apiKey: apiKey, pipe: pipe}
}

func (c *Client) get(ctx context.Context, path string, extra url.Values, v any) error {
	q := url.Values{}
	q.Set("api_key", c.apiKey)
	for k, vs := range extra {
		for _, val := range vs {
			q.Add(k, val)
		}
	}
	res, err := c.pipe.Submit(ctx, pipeline.Task{
		Provider: "tmdb",
		URL:      apiBaseURL + path,
		Query:    q,
	})
	if err != nil {
		return err
	}
	if err := json.Unmarshal(res.Body, v); err != nil {
		return fmt.Errorf("tmdb decode %s: %w", path, err)
	}
	return nil
}

type movieDetails struct {
	ID           int64  `json:"id"`
	Title        string `json:"title"`
	ReleaseDate  string `json:"release_date"`
	PosterPath   string `json:"poster_path"`
	BackdropPath string `json:"backdrop_path"`
}

type releaseDatesResponse struct {
	Results []struct {
		Country  string `json:"iso_3166_1"`
		Releases []struct {
			Type        int    `json:"type"`
			ReleaseDate string `json:"release_date"`
		} `json:"release_dates"`
	} `json:"results"`
}

// Release type codes used by the provider.
const (
	releasePremiere          = 1
	releaseTheatricalLimited = 2
	releaseTheatrical        = 3
	releaseDigital           = 4
	releasePhysical          = 5
	releaseTV                = 6
)

// normalizeReleaseType collapses provider subtypes into the two canonical
// ones. TV broadcasts don't belong on the release calendar and are dropped.
func normalizeReleaseType(code int) (string, bool) {
	switch code {
	case releasePremiere, releaseTheatricalLimited, releaseTheatrical:
		return models.ReleaseTheatrical, true
	case releaseDigital, releasePhysical:
		return models.ReleaseDigital, true
	default:
		return "", false
	}
}

// Movie fetches display metadata and per-country release-date candidates
// for one movie.
func (c *Client) Movie(ctx context.Context, id int64) (*models.TitleInfo, []models.CandidateDate, error) {
	var details movieDetails
	if err := c.get(ctx, fmt.Sprintf("/movie/%d", id), nil, &details); err != nil {
		return nil, nil, err
	}

	var rd releaseDatesResponse
	if err := c.get(ctx, fmt.Sprintf("/movie/%d/release_dates", id), nil, &rd); err != nil {
		return nil, nil, err
	}

	var cands []models.CandidateDate
	for _, country := range rd.Results {
		for _, rel := range country.Releases {
			subtype, ok := normalizeReleaseType(rel.Type)
			if !ok {
				continue
			}
			day := dateOnly(rel.ReleaseDate)
			if day == "" {
				continue
			}
			cands = append(cands, models.CandidateDate{
				Source:      models.SourcePrimary,
				Raw:         day,
				Season:      models.MovieSeason,
				Episode:     models.MovieEpisode,
				ReleaseType: subtype,
				Country:     country.Country,
			})
		}
	}

	return &models.TitleInfo{
		Name:        details.Title,
		Year:        yearOf(details.ReleaseDate),
		PosterURL:   imageURL(details.PosterPath),
		BackdropURL: imageURL(details.BackdropPath),
	}, cands, nil
}

type seriesDetails struct {
	ID           int64  `json:"id"`
	Name         string `json:"name"`
	FirstAirDate string `json:"first_air_date"`
	PosterPath   string `json:"poster_path"`
	BackdropPath string `json:"backdrop_path"`
	Seasons      []struct {
		SeasonNumber int `json:"season_number"`
	} `json:"seasons"`
}

type seasonDetails struct {
	Episodes []struct {
		SeasonNumber  int    `json:"season_number"`
		EpisodeNumber int    `json:"episode_number"`
		Name          string `json:"name"`
		AirDate       string `json:"air_date"`
	} `json:"episodes"`
}

// Series fetches display metadata and the full episode list with date-only
// air dates. Season 0 (specials) is skipped.
func (c *Client) Series(ctx context.Context, id int64) (*models.TitleInfo, []models.EpisodeInfo, error) {
	var details seriesDetails
	if err := c.get(ctx, fmt.Sprintf("/tv/%d", id), nil, &details); err != nil {
		return nil, nil, err
	}

	var episodes []models.EpisodeInfo
	for _, season := range details.Seasons {
		if season.SeasonNumber == 0 {
			continue
		}
		var sd seasonDetails
		if err := c.get(ctx, fmt.Sprintf("/tv/%d/season/%d", id, season.SeasonNumber), nil, &sd); err != nil {
			return nil, nil, err
		}
		for _, ep := range sd.Episodes {
			episodes = append(episodes, models.EpisodeInfo{
				Season:  ep.SeasonNumber,
				Episode: ep.EpisodeNumber,
				Name:    ep.Name,
				AirDate: dateOnly(ep.AirDate),
			})
		}
	}

	return &models.TitleInfo{
		Name:        details.Name,
		Year:        yearOf(details.FirstAirDate),
		PosterURL:   imageURL(details.PosterPath),
		BackdropURL: imageURL(details.BackdropPath),
	}, episodes, nil
}

// dateOnly trims a provider date to YYYY-MM-DD. The provider pads release
// dates out to midnight-UTC timestamps that carry no real time of day.
func dateOnly(s string) string {
	s = strings.TrimSpace(s)
	if len(s) >= 10 {
		return s[:10]
	}
	return ""
}

func yearOf(date string) int {
	if len(date) < 4 {
		return 0
	}
	var year int
	fmt.Sscanf(date[:4], "%d", &year)
	return year
}

func imageURL(path string) string {
	if path == "" {
		return ""
	}
	return imageBaseURL + path
}
