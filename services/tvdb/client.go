package tvdb

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"aircal/models"
	"aircal/services/pipeline"
)

// Precise-airtime provider adapter (TVDB v4). Supplies full air timestamps
// built from aired date + airsTime + an inferred network timezone, and knows
// about the provider's regional alternate episode order.

const apiBaseURL = "https://api4.thetvdb.com/v4"

// defaultRegion is the region the provider's default ("official") episode
// order is published for. Users elsewhere get the alternate order first.
const defaultRegion = "US"

// Season order types exposed by the provider.
const (
	orderOfficial  = "official"
	orderAlternate = "alternate"
)

// Submitter is the slice of the request pipeline this client needs.
type Submitter interface {
	Submit(ctx context.Context, task pipeline.Task) (*pipeline.Result, error)
}

// Client queries the precise-airtime provider. The bearer token is cached
// and reused until shortly before expiry.
type Client struct {
	apiKey string
	pipe   Submitter

	mu          sync.Mutex
	token       string
	tokenExpiry time.Time
}

// NewClient creates an airtime client that dispatches through the pipeline.
func NewClient(apiKey string, pipe Submitter) *Client {
	return &Client{apiKey: apiKey, pipe: pipe}
}

func (c *Client) ensureToken(ctx context.Context) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.token != "" && time.Now().Before(c.tokenExpiry.Add(-time.Minute)) {
		return c.token, nil
	}

	body, _ := json.Marshal(map[string]string{"apikey": c.apiKey})
	header := http.Header{}
	header.Set("Content-Type", "application/json")
	res, err := c.pipe.Submit(ctx, pipeline.Task{
		Provider: "tvdb",
		Method:   http.MethodPost,
		URL:      apiBaseURL + "/login",
		Header:   header,
		Body:     body,
	})
	if err != nil {
		return "", fmt.Errorf("tvdb login: %w", err)
	}

	var data struct {
		Data struct {
			Token string `json:"token"`
		} `json:"data"`
	}
	if err := json.Unmarshal(res.Body, &data); err != nil {
		return "", fmt.Errorf("tvdb login decode: %w", err)
	}
	c.token = data.Data.Token
	c.tokenExpiry = time.Now().Add(23 * time.Hour)
	return c.token, nil
}

func (c *Client) get(ctx context.Context, path string, q url.Values, v any) error {
	token, err := c.ensureToken(ctx)
	if err != nil {
		return err
	}
	header := http.Header{}
	header.Set("Authorization", "Bearer "+token)
	res, err := c.pipe.Submit(ctx, pipeline.Task{
		Provider: "tvdb",
		URL:      apiBaseURL + path,
		Query:    q,
		Header:   header,
	})
	if err != nil {
		return err
	}
	if err := json.Unmarshal(res.Body, v); err != nil {
		return fmt.Errorf("tvdb decode %s: %w", path, err)
	}
	return nil
}

type seriesExtended struct {
	ID              int64  `json:"id"`
	Name            string `json:"name"`
	AirsTime        string `json:"airsTime"` // e.g. "21:00"
	OriginalNetwork struct {
		Name    string `json:"name"`
		Country string `json:"country"`
	} `json:"originalNetwork"`
}

type episode struct {
	ID           int64  `json:"id"`
	SeasonNumber int    `json:"seasonNumber"`
	Number       int    `json:"number"`
	Aired        string `json:"aired"` // YYYY-MM-DD
}

func (c *Client) seriesExtended(ctx context.Context, id int64) (*seriesExtended, error) {
	var resp struct {
		Data seriesExtended `json:"data"`
	}
	if err := c.get(ctx, fmt.Sprintf("/series/%d/extended", id), nil, &resp); err != nil {
		return nil, err
	}
	return &resp.Data, nil
}

// episodesByOrder pages through one season order of a series.
func (c *Client) episodesByOrder(ctx context.Context, id int64, order string) ([]episode, error) {
	endpoint := fmt.Sprintf("/series/%d/episodes/%s", id, order)
	var all []episode
	for page := 0; ; page++ {
		q := url.Values{}
		q.Set("page", strconv.Itoa(page))
		var resp struct {
			Data struct {
				Episodes []episode `json:"episodes"`
			} `json:"data"`
			Links struct {
				Next *string `json:"next"`
			} `json:"links"`
		}
		if err := c.get(ctx, endpoint, q, &resp); err != nil {
			return nil, err
		}
		all = append(all, resp.Data.Episodes...)
		if resp.Links.Next == nil || strings.TrimSpace(*resp.Links.Next) == "" {
			break
		}
	}
	return all, nil
}

// EpisodeAirtimes returns one candidate per aired episode. When the series
// has a usable air time and timezone the candidate carries a full RFC 3339
// timestamp; otherwise it is date-only.
//
// When region differs from the provider's default region the alternate
// (regional) episode order is consulted first; the default order only fills
// units the alternate order does not cover, and never replaces one.
func (c *Client) EpisodeAirtimes(ctx context.Context, seriesID int64, region string) ([]models.CandidateDate, error) {
	series, err := c.seriesExtended(ctx, seriesID)
	if err != nil {
		return nil, err
	}

	loc := c.airLocation(series)

	type unit struct{ season, episode int }
	covered := make(map[unit]bool)
	var cands []models.CandidateDate

	add := func(eps []episode) {
		for _, ep := range eps {
			if ep.Aired == "" || ep.SeasonNumber == 0 {
				continue
			}
			u := unit{ep.SeasonNumber, ep.Number}
			if covered[u] {
				continue
			}
			covered[u] = true
			cands = append(cands, models.CandidateDate{
				Source:  models.SourceAirtime,
				Raw:     c.airRaw(ep.Aired, series.AirsTime, loc),
				Season:  ep.SeasonNumber,
				Episode: ep.Number,
			})
		}
	}

	if region != "" && !strings.EqualFold(region, defaultRegion) {
		alt, err := c.episodesByOrder(ctx, seriesID, orderAlternate)
		switch {
		case err == nil:
			add(alt)
		case errors.Is(err, pipeline.ErrNotFound):
			// The series has no alternate order for this region.
		default:
			return nil, err
		}
	}

	official, err := c.episodesByOrder(ctx, seriesID, orderOfficial)
	if err != nil {
		return nil, err
	}
	add(official)

	return cands, nil
}

// airLocation resolves the timezone the series' airsTime is expressed in.
func (c *Client) airLocation(series *seriesExtended) *time.Location {
	if strings.TrimSpace(series.AirsTime) == "" {
		return nil
	}
	tz := inferTimezone(series.OriginalNetwork.Name, series.OriginalNetwork.Country)
	if tz == "" {
		return nil
	}
	loc, err := time.LoadLocation(tz)
	if err != nil {
		return nil
	}
	return loc
}

// airRaw combines the aired date with the series air time into a full
// timestamp when possible, falling back to the bare date.
func (c *Client) airRaw(aired, airsTime string, loc *time.Location) string {
	if loc == nil {
		return aired
	}
	day, err := time.Parse("2006-01-02", aired)
	if err != nil {
		return aired
	}
	parts := strings.SplitN(strings.TrimSpace(airsTime), ":", 2)
	if len(parts) != 2 {
		return aired
	}
	hour, err1 := strconv.Atoi(parts[0])
	minute, err2 := strconv.Atoi(parts[1])
	if err1 != nil || err2 != nil {
		return aired
	}
	return time.Date(day.Year(), day.Month(), day.Day(), hour, minute, 0, 0, loc).Format(time.RFC3339)
}
