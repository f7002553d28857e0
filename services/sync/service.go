package sync

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sourcegraph/conc/pool"

	"aircal/models"
	"aircal/services/pipeline"
	"aircal/services/reconcile"
)

// ErrSyncInProgress is returned when a full sync is requested for an owner
// whose previous run is still going. Runs are never queued.
var ErrSyncInProgress = errors.New("sync already in progress")

const defaultBatchSize = 4

// PrimaryProvider supplies display metadata and baseline air dates.
type PrimaryProvider interface {
	Movie(ctx context.Context, id int64) (*models.TitleInfo, []models.CandidateDate, error)
	Series(ctx context.Context, id int64) (*models.TitleInfo, []models.EpisodeInfo, error)
}

// AirtimeProvider supplies precise per-episode air timestamps.
type AirtimeProvider interface {
	EpisodeAirtimes(ctx context.Context, seriesID int64, region string) ([]models.CandidateDate, error)
}

// HistoryProvider supplies release opinions from the owner's tracker account.
type HistoryProvider interface {
	EpisodeReleases(ctx context.Context, tmdbID int64) ([]models.CandidateDate, error)
	MovieRelease(ctx context.Context, tmdbID int64) ([]models.CandidateDate, error)
}

// EventStore is the persisted calendar cache.
type EventStore interface {
	DeleteEventsForOwner(owner string) error
	UpsertEvents(owner string, events []models.ReconciledEvent) error
	SetFullSyncDone(owner string, done bool) error
	BumpCalendarEpoch(owner string) (int64, error)
}

// TitleSource lists the owner's tracked titles.
type TitleSource interface {
	ListTitles(owner string) ([]models.TrackedTitle, error)
}

// Config holds sync tuning and the owner environment.
type Config struct {
	BatchSize int            // titles per batch, default 4
	Region    string         // default user country (ISO 3166-1)
	Location  *time.Location // timezone for day bucketing, nil = system local
}

// Service rebuilds each owner's calendar cache from the providers. One run
// per owner at a time; different owners sync independently. A run clears the
// owner's cached events first and rebuilds them batch by batch, so readers
// see a brief empty window rather than a mix of old and new data.
type Service struct {
	primary PrimaryProvider
	airtime AirtimeProvider // optional
	history HistoryProvider // optional
	titles  TitleSource
	store   EventStore
	cfg     Config

	mu   sync.Mutex
	runs map[string]*run
}

type run struct {
	cancelRequested bool
	progress        models.SyncProgress
}

func NewService(primary PrimaryProvider, airtime AirtimeProvider, history HistoryProvider,
	titles TitleSource, store EventStore, cfg Config) *Service {
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = defaultBatchSize
	}
	return &Service{
		primary: primary,
		airtime: airtime,
		history: history,
		titles:  titles,
		store:   store,
		cfg:     cfg,
		runs:    make(map[string]*run),
	}
}

// Start kicks off a full sync in the background and returns its run id.
func (s *Service) Start(owner string) (string, error) {
	r, err := s.acquire(owner)
	if err != nil {
		return "", err
	}
	go func() {
		if err := s.execute(context.Background(), owner); err != nil {
			log.Printf("[sync] run %s for %s ended: %v", r.progress.RunID, owner, err)
		}
	}()
	return r.progress.RunID, nil
}

// Run performs a full sync synchronously. It returns nil when the run
// completed, context.Canceled when it was cancelled, and the store or
// listing error when it failed.
func (s *Service) Run(ctx context.Context, owner string) error {
	if _, err := s.acquire(owner); err != nil {
		return err
	}
	return s.execute(ctx, owner)
}

// Cancel requests cooperative cancellation of the owner's running sync.
// It only raises a flag checked between batches: provider calls already in
// flight run to completion and the current batch is persisted, so the
// cache never holds a half-written batch. Cancelling an owner with no
// running sync is a no-op.
func (s *Service) Cancel(owner string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if r, ok := s.runs[owner]; ok && r.progress.State == models.SyncStateRunning {
		r.cancelRequested = true
	}
}

// Progress reports the owner's current or most recent run. Owners that never
// synced report the idle state.
func (s *Service) Progress(owner string) models.SyncProgress {
	s.mu.Lock()
	defer s.mu.Unlock()
	if r, ok := s.runs[owner]; ok {
		return r.progress
	}
	return models.SyncProgress{State: models.SyncStateIdle}
}

// acquire registers a new run for the owner, rejecting concurrent runs.
func (s *Service) acquire(owner string) (*run, error) {
	if owner == "" {
		return nil, fmt.Errorf("owner id is required")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if prev, ok := s.runs[owner]; ok && prev.progress.State == models.SyncStateRunning {
		return nil, ErrSyncInProgress
	}
	r := &run{
		progress: models.SyncProgress{
			RunID:     uuid.NewString(),
			State:     models.SyncStateRunning,
			StartedAt: time.Now().UTC(),
		},
	}
	s.runs[owner] = r
	return r, nil
}

func (s *Service) execute(ctx context.Context, owner string) error {
	titles, err := s.titles.ListTitles(owner)
	if err != nil {
		return s.fail(owner, fmt.Errorf("list titles: %w", err))
	}
	s.update(owner, func(p *models.SyncProgress) { p.Total = len(titles) })

	// Clear-then-rebuild: drop the owner's cached events and the baseline
	// flag before fetching anything, so a failed run leaves an honest
	// "no baseline" state rather than stale data posing as complete.
	if err := s.store.DeleteEventsForOwner(owner); err != nil {
		return s.fail(owner, fmt.Errorf("clear events: %w", err))
	}
	if err := s.store.SetFullSyncDone(owner, false); err != nil {
		return s.fail(owner, fmt.Errorf("clear baseline flag: %w", err))
	}

	for start := 0; start < len(titles); start += s.cfg.BatchSize {
		if err := s.cancelled(ctx, owner); err != nil {
			return err
		}
		end := min(start+s.cfg.BatchSize, len(titles))
		// Auth failures inside a run are per-title skips like any other
		// provider failure; the live read path surfaces them instead.
		events, _ := s.collectBatch(ctx, owner, titles[start:end])
		if len(events) > 0 {
			if err := s.store.UpsertEvents(owner, events); err != nil {
				return s.fail(owner, fmt.Errorf("persist batch: %w", err))
			}
		}
		s.update(owner, func(p *models.SyncProgress) { p.Current += end - start })
	}
	if err := s.cancelled(ctx, owner); err != nil {
		return err
	}

	if err := s.store.SetFullSyncDone(owner, true); err != nil {
		return s.fail(owner, fmt.Errorf("set baseline flag: %w", err))
	}
	if _, err := s.store.BumpCalendarEpoch(owner); err != nil {
		log.Printf("[sync] failed to bump epoch for %s: %v", owner, err)
	}
	s.finish(owner, models.SyncStateCompleted)
	log.Printf("[sync] full sync completed for %s (%d titles)", owner, len(titles))
	return nil
}

// cancelled reports whether the run should stop at this batch boundary,
// either because the run context ended or Cancel raised the flag.
func (s *Service) cancelled(ctx context.Context, owner string) error {
	err := ctx.Err()
	if err == nil {
		s.mu.Lock()
		if r, ok := s.runs[owner]; ok && r.cancelRequested {
			err = context.Canceled
		}
		s.mu.Unlock()
	}
	if err != nil {
		s.finish(owner, models.SyncStateCancelled)
	}
	return err
}

// collectBatch resolves one batch of titles concurrently. A title whose
// lookup fails is logged and skipped; the first rejected-credentials error
// is additionally returned so callers that must surface it can.
func (s *Service) collectBatch(ctx context.Context, owner string, titles []models.TrackedTitle) ([]models.ReconciledEvent, error) {
	var mu sync.Mutex
	var events []models.ReconciledEvent
	var authErr error
	p := pool.New().WithMaxGoroutines(s.cfg.BatchSize)
	for _, title := range titles {
		title := title
		p.Go(func() {
			evs, err := s.collectTitle(ctx, owner, title)
			if err != nil {
				log.Printf("[sync] skipping %s %d for %s: %v", title.MediaType, title.TMDBID, owner, err)
				if errors.Is(err, pipeline.ErrAuth) {
					mu.Lock()
					if authErr == nil {
						authErr = err
					}
					mu.Unlock()
				}
				return
			}
			mu.Lock()
			events = append(events, evs...)
			mu.Unlock()
		})
	}
	p.Wait()
	return events, authErr
}

func (s *Service) collectTitle(ctx context.Context, owner string, title models.TrackedTitle) ([]models.ReconciledEvent, error) {
	switch title.MediaType {
	case models.MediaTypeMovie:
		return s.collectMovie(ctx, owner, title)
	case models.MediaTypeSeries:
		return s.collectSeries(ctx, owner, title)
	default:
		return nil, fmt.Errorf("unknown media type %q", title.MediaType)
	}
}

func (s *Service) collectMovie(ctx context.Context, owner string, title models.TrackedTitle) ([]models.ReconciledEvent, error) {
	info, cands, err := s.primary.Movie(ctx, title.TMDBID)
	if err != nil {
		return nil, fmt.Errorf("primary metadata: %w", err)
	}
	hist, err := s.historyCandidates(ctx, title, true)
	if err != nil {
		if errors.Is(err, pipeline.ErrAuth) {
			return nil, err
		}
		log.Printf("[sync] history lookup failed for movie %d: %v", title.TMDBID, err)
	}
	cands = append(cands, hist...)

	key := reconcile.Key{
		OwnerID:   owner,
		TitleID:   title.TMDBID,
		MediaType: models.MediaTypeMovie,
		Season:    models.MovieSeason,
		Episode:   models.MovieEpisode,
	}
	ev, ok := reconcile.Reconcile(key, cands, s.options(title))
	if !ok {
		return nil, nil
	}
	decorate(ev, info, title, "")
	return []models.ReconciledEvent{*ev}, nil
}

func (s *Service) collectSeries(ctx context.Context, owner string, title models.TrackedTitle) ([]models.ReconciledEvent, error) {
	info, episodes, err := s.primary.Series(ctx, title.TMDBID)
	if err != nil {
		return nil, fmt.Errorf("primary metadata: %w", err)
	}

	// The primary provider defines the unit universe; opinions from the
	// other providers about units it does not list are dropped.
	type unit struct{ season, episode int }
	byUnit := make(map[unit][]models.CandidateDate, len(episodes))
	names := make(map[unit]string, len(episodes))
	order := make([]unit, 0, len(episodes))
	for _, ep := range episodes {
		u := unit{ep.Season, ep.Episode}
		if _, seen := names[u]; !seen {
			order = append(order, u)
		}
		names[u] = ep.Name
		if ep.AirDate != "" {
			byUnit[u] = append(byUnit[u], models.CandidateDate{
				Source:  models.SourcePrimary,
				Raw:     ep.AirDate,
				Season:  ep.Season,
				Episode: ep.Episode,
			})
		}
	}

	extra, err := s.airtimeCandidates(ctx, title)
	if err != nil {
		if errors.Is(err, pipeline.ErrAuth) {
			return nil, err
		}
		log.Printf("[sync] airtime lookup failed for series %d: %v", title.TVDBID, err)
	}
	hist, err := s.historyCandidates(ctx, title, false)
	if err != nil {
		if errors.Is(err, pipeline.ErrAuth) {
			return nil, err
		}
		log.Printf("[sync] history lookup failed for series %d: %v", title.TMDBID, err)
	}
	extra = append(extra, hist...)
	for _, c := range extra {
		u := unit{c.Season, c.Episode}
		if _, known := names[u]; known {
			byUnit[u] = append(byUnit[u], c)
		}
	}

	var events []models.ReconciledEvent
	for _, u := range order {
		key := reconcile.Key{
			OwnerID:   owner,
			TitleID:   title.TMDBID,
			MediaType: models.MediaTypeSeries,
			Season:    u.season,
			Episode:   u.episode,
		}
		ev, ok := reconcile.Reconcile(key, byUnit[u], s.options(title))
		if !ok {
			continue
		}
		decorate(ev, info, title, names[u])
		events = append(events, *ev)
	}
	return events, nil
}

// airtimeCandidates fetches precise airtimes when the provider is configured
// and the title is known to it. "No record" is simply no candidates; other
// errors are the caller's call (degrade, or propagate for auth).
func (s *Service) airtimeCandidates(ctx context.Context, title models.TrackedTitle) ([]models.CandidateDate, error) {
	if s.airtime == nil || title.TVDBID <= 0 {
		return nil, nil
	}
	cands, err := s.airtime.EpisodeAirtimes(ctx, title.TVDBID, s.region(title))
	if err != nil {
		if errors.Is(err, pipeline.ErrNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("airtime lookup: %w", err)
	}
	return cands, nil
}

func (s *Service) historyCandidates(ctx context.Context, title models.TrackedTitle, movie bool) ([]models.CandidateDate, error) {
	if s.history == nil {
		return nil, nil
	}
	var (
		cands []models.CandidateDate
		err   error
	)
	if movie {
		cands, err = s.history.MovieRelease(ctx, title.TMDBID)
	} else {
		cands, err = s.history.EpisodeReleases(ctx, title.TMDBID)
	}
	if err != nil {
		if errors.Is(err, pipeline.ErrNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("history lookup: %w", err)
	}
	return cands, nil
}

// LiveWindow resolves a day window straight from the providers, bypassing
// the persisted cache. titles == nil means the owner's full tracked list.
// Rejected credentials abort the read so the caller can prompt for
// corrected ones instead of showing an empty calendar.
func (s *Service) LiveWindow(ctx context.Context, owner string, titles []models.TrackedTitle, fromDay, toDay string) ([]models.ReconciledEvent, error) {
	if titles == nil {
		var err error
		titles, err = s.titles.ListTitles(owner)
		if err != nil {
			return nil, fmt.Errorf("list titles: %w", err)
		}
	}
	all, err := s.collectBatch(ctx, owner, titles)
	if err != nil {
		return nil, err
	}
	if ctx.Err() != nil {
		return nil, ctx.Err()
	}

	var events []models.ReconciledEvent
	for _, ev := range all {
		if (fromDay != "" && ev.Day < fromDay) || (toDay != "" && ev.Day > toDay) {
			continue
		}
		events = append(events, ev)
	}
	sort.Slice(events, func(i, j int) bool {
		a, b := events[i], events[j]
		if a.Day != b.Day {
			return a.Day < b.Day
		}
		if a.TitleID != b.TitleID {
			return a.TitleID < b.TitleID
		}
		if a.Season != b.Season {
			return a.Season < b.Season
		}
		return a.Episode < b.Episode
	})
	return events, nil
}

func (s *Service) region(title models.TrackedTitle) string {
	if title.Region != "" {
		return title.Region
	}
	return s.cfg.Region
}

func (s *Service) options(title models.TrackedTitle) reconcile.Options {
	return reconcile.Options{
		Location: s.cfg.Location,
		Region:   s.region(title),
	}
}

func decorate(ev *models.ReconciledEvent, info *models.TitleInfo, title models.TrackedTitle, episodeName string) {
	ev.EpisodeName = episodeName
	ev.TitleName = title.Name
	ev.PosterURL = title.PosterURL
	ev.BackdropURL = title.BackdropURL
	if info != nil {
		if info.Name != "" {
			ev.TitleName = info.Name
		}
		if info.PosterURL != "" {
			ev.PosterURL = info.PosterURL
		}
		if info.BackdropURL != "" {
			ev.BackdropURL = info.BackdropURL
		}
	}
}

func (s *Service) update(owner string, fn func(*models.SyncProgress)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if r, ok := s.runs[owner]; ok {
		fn(&r.progress)
	}
}

func (s *Service) finish(owner, state string) {
	s.update(owner, func(p *models.SyncProgress) {
		p.State = state
		p.FinishedAt = time.Now().UTC()
	})
}

func (s *Service) fail(owner string, err error) error {
	s.update(owner, func(p *models.SyncProgress) {
		p.State = models.SyncStateFailed
		p.FinishedAt = time.Now().UTC()
		p.LastError = err.Error()
	})
	log.Printf("[sync] full sync failed for %s: %v", owner, err)
	return err
}
