package reconcile

import (
	"sort"
	"time"

	"aircal/models"
)

// The reconciler folds zero-to-many per-provider candidate dates for one
// calendar unit into a single authoritative event. It is a pure transform:
// no networking, no store access.

// DefaultFallbackRegion is consulted for movies when the user's own region
// has no usable release.
const DefaultFallbackRegion = "US"

// Key identifies one calendar unit. Movies use the models.MovieSeason /
// models.MovieEpisode sentinels.
type Key struct {
	OwnerID   string
	TitleID   int64
	MediaType string
	Season    int
	Episode   int
}

// Options carries the owner's region and timezone configuration.
type Options struct {
	Location       *time.Location // nil means system local time
	Region         string         // user country (ISO 3166-1), may be empty
	FallbackRegion string         // defaults to DefaultFallbackRegion
}

func (o Options) location() *time.Location {
	if o.Location != nil {
		return o.Location
	}
	return time.Local
}

func (o Options) fallbackRegion() string {
	if o.FallbackRegion != "" {
		return o.FallbackRegion
	}
	return DefaultFallbackRegion
}

// parsed is a candidate with its raw value decoded.
type parsed struct {
	cand    models.CandidateDate
	instant time.Time // valid only when full
	day     string    // date-only raw, verbatim
	full    bool
}

// Reconcile picks the authoritative date for one unit. Returns false when no
// candidate carries usable data; the unit then simply has no event.
func Reconcile(key Key, candidates []models.CandidateDate, opts Options) (*models.ReconciledEvent, bool) {
	var usable []parsed
	for _, c := range candidates {
		if p, ok := parseRaw(c); ok {
			usable = append(usable, p)
		}
	}
	if len(usable) == 0 {
		return nil, false
	}

	// Precedence, first match wins:
	// history full timestamp > precise-airtime full timestamp >
	// precise-airtime date-only > primary metadata.
	if p, ok := pick(usable, models.SourceHistory, true); ok {
		return eventFrom(key, p, opts), true
	}
	if p, ok := pick(usable, models.SourceAirtime, true); ok {
		return eventFrom(key, p, opts), true
	}
	if p, ok := pick(usable, models.SourceAirtime, false); ok {
		return eventFrom(key, p, opts), true
	}

	if key.MediaType == models.MediaTypeMovie {
		if p, ok := pickMovieRelease(usable, opts); ok {
			return eventFrom(key, p, opts), true
		}
		return nil, false
	}

	if p, ok := pick(usable, models.SourcePrimary, false); ok {
		return eventFrom(key, p, opts), true
	}
	if p, ok := pick(usable, models.SourcePrimary, true); ok {
		return eventFrom(key, p, opts), true
	}
	return nil, false
}

// pick returns the first candidate from the given source, optionally
// requiring a full timestamp.
func pick(cands []parsed, source string, wantFull bool) (parsed, bool) {
	for _, p := range cands {
		if p.cand.Source != source {
			continue
		}
		if wantFull && !p.full {
			continue
		}
		return p, true
	}
	return parsed{}, false
}

// pickMovieRelease applies the movie region/subtype fallback chain over the
// primary-source candidates: digital in the user's region, theatrical in the
// user's region, earliest digital in the fallback region, earliest anywhere.
func pickMovieRelease(cands []parsed, opts Options) (parsed, bool) {
	var primary []parsed
	for _, p := range cands {
		if p.cand.Source == models.SourcePrimary {
			primary = append(primary, p)
		}
	}
	if len(primary) == 0 {
		return parsed{}, false
	}
	sort.SliceStable(primary, func(i, j int) bool {
		return primary[i].sortDay() < primary[j].sortDay()
	})

	if opts.Region != "" {
		if p, ok := firstMatch(primary, opts.Region, models.ReleaseDigital); ok {
			return p, true
		}
		if p, ok := firstMatch(primary, opts.Region, models.ReleaseTheatrical); ok {
			return p, true
		}
	}
	if p, ok := firstMatch(primary, opts.fallbackRegion(), models.ReleaseDigital); ok {
		return p, true
	}
	return primary[0], true
}

func firstMatch(cands []parsed, country, releaseType string) (parsed, bool) {
	for _, p := range cands {
		if p.cand.Country == country && p.cand.ReleaseType == releaseType {
			return p, true
		}
	}
	return parsed{}, false
}

func (p parsed) sortDay() string {
	if p.full {
		return p.instant.UTC().Format("2006-01-02T15:04:05")
	}
	return p.day
}

// eventFrom buckets the chosen candidate into a local calendar day. A full
// timestamp is converted into the configured timezone first; the resulting
// local date may differ from the date component of the original value. A
// date-only candidate is used verbatim since no time of day is known.
func eventFrom(key Key, p parsed, opts Options) *models.ReconciledEvent {
	ev := &models.ReconciledEvent{
		OwnerID:     key.OwnerID,
		TitleID:     key.TitleID,
		MediaType:   key.MediaType,
		Season:      key.Season,
		Episode:     key.Episode,
		ReleaseType: p.cand.ReleaseType,
	}
	if p.full {
		instant := p.instant
		ev.AiredAt = &instant
		ev.Day = instant.In(opts.location()).Format("2006-01-02")
	} else {
		ev.Day = p.day
	}
	return ev
}

// parseRaw decodes a candidate's raw value: RFC 3339 with offset, or a
// plain YYYY-MM-DD date.
func parseRaw(c models.CandidateDate) (parsed, bool) {
	if c.Raw == "" {
		return parsed{}, false
	}
	if t, err := time.Parse(time.RFC3339, c.Raw); err == nil {
		return parsed{cand: c, instant: t, full: true}, true
	}
	if _, err := time.Parse("2006-01-02", c.Raw); err == nil {
		return parsed{cand: c, day: c.Raw}, true
	}
	return parsed{}, false
}
