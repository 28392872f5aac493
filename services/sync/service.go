package sync

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"ratingo/config"
	"ratingo/internal/database"
	"ratingo/internal/pool"
	"ratingo/models"
	"ratingo/services/omdb"
	"ratingo/services/scoring"
	"ratingo/services/tmdb"
	"ratingo/services/trakt"
)

// Catalog media types.
const (
	MediaTypeSeries = "series"
	MediaTypeMovie  = "movie"
)

// TraktAPI is the slice of the Trakt client the pipeline consumes.
type TraktAPI interface {
	Trending(ctx context.Context, mediaType string, limit int) ([]trakt.TrendingItem, error)
	Watched(ctx context.Context, mediaType, period string, startDate time.Time, limit int) ([]trakt.WatchedItem, error)
	GetRatings(ctx context.Context, mediaType, idOrSlug string) (*trakt.Ratings, error)
	Related(ctx context.Context, mediaType, idOrSlug string, limit int) ([]trakt.RelatedItem, error)
	Calendar(ctx context.Context, start time.Time, days int) ([]trakt.CalendarEntry, error)
}

// TMDBAPI is the slice of the TMDB client the pipeline consumes.
type TMDBAPI interface {
	Details(ctx context.Context, mediaType string, tmdbID int64) (*tmdb.Details, error)
	Translation(ctx context.Context, mediaType string, tmdbID int64) (*tmdb.Translation, error)
	Videos(ctx context.Context, mediaType string, tmdbID int64) ([]tmdb.Video, error)
	WatchProviders(ctx context.Context, mediaType string, tmdbID int64, region string) (*tmdb.RegionProviders, error)
	ContentRating(ctx context.Context, mediaType string, tmdbID int64, region, fallbackRegion string) (string, string, error)
	ExternalIDs(ctx context.Context, mediaType string, tmdbID int64) (*tmdb.ExternalIDs, error)
	Credits(ctx context.Context, mediaType string, tmdbID int64, limit int) ([]tmdb.CastMember, error)
	Recommendations(ctx context.Context, mediaType string, tmdbID int64, limit int) ([]tmdb.RecommendedItem, error)
}

// OMDbAPI is the slice of the OMDb client the pipeline consumes.
type OMDbAPI interface {
	GetRatings(ctx context.Context, imdbID string) (*omdb.AggregatedRatings, error)
}

// Service runs the trending ingestion and reconciliation pipeline.
type Service struct {
	db    *database.DB
	trakt TraktAPI
	tmdb  TMDBAPI
	omdb  OMDbAPI

	cfg       config.SyncSettings
	providers config.ProviderSettings

	mu         sync.Mutex
	running    map[string]bool // media type -> in flight
	lastResult map[string]*models.RunResult
}

// NewService creates the sync service.
func NewService(db *database.DB, traktClient TraktAPI, tmdbClient TMDBAPI, omdbClient OMDbAPI, cfg config.SyncSettings, providers config.ProviderSettings) *Service {
	return &Service{
		db:         db,
		trakt:      traktClient,
		tmdb:       tmdbClient,
		omdb:       omdbClient,
		cfg:        cfg,
		providers:  providers,
		running:    make(map[string]bool),
		lastResult: make(map[string]*models.RunResult),
	}
}

// RunTrendingSync ingests trending shows: fan-out reconciliation followed by
// the backfill, calendar and prune phases.
func (s *Service) RunTrendingSync(ctx context.Context) (*models.RunResult, error) {
	return s.run(ctx, MediaTypeSeries)
}

// RunTrendingMoviesSync ingests trending movies.
func (s *Service) RunTrendingMoviesSync(ctx context.Context) (*models.RunResult, error) {
	return s.run(ctx, MediaTypeMovie)
}

// IsRunning reports whether a run for the media type is in flight.
func (s *Service) IsRunning(mediaType string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.running[mediaType]
}

// LastResult returns the most recent completed run for the media type, nil
// if none finished yet.
func (s *Service) LastResult(mediaType string) *models.RunResult {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastResult[mediaType]
}

func (s *Service) run(ctx context.Context, mediaType string) (*models.RunResult, error) {
	s.mu.Lock()
	if s.running[mediaType] {
		s.mu.Unlock()
		return nil, fmt.Errorf("%s sync already running", mediaType)
	}
	s.running[mediaType] = true
	s.mu.Unlock()
	defer func() {
		s.mu.Lock()
		s.running[mediaType] = false
		s.mu.Unlock()
	}()

	timeout := time.Duration(s.cfg.RunTimeoutMinutes) * time.Minute
	if timeout <= 0 {
		timeout = 20 * time.Minute
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	start := time.Now()
	traktType := traktMediaType(mediaType)
	rctx := newRunContext(s.cfg, s.providers)

	// No trending list means no meaningful run; this is the one failure
	// that aborts instead of degrading.
	trending, err := pool.Retry(ctx, rctx.onRetry, func() ([]trakt.TrendingItem, error) {
		return s.trakt.Trending(ctx, traktType, s.cfg.TrendingLimit)
	})
	if err != nil {
		return nil, fmt.Errorf("fetch trending %s: %w", traktType, err)
	}

	for _, item := range trending {
		if item.Watchers > rctx.maxWatchers {
			rctx.maxWatchers = item.Watchers
		}
	}
	rctx.months = s.buildMonthlyMaps(ctx, traktType)

	log.Printf("[sync] Starting %s run: %d trending items, maxWatchers=%d", mediaType, len(trending), rctx.maxWatchers)

	concurrency := s.cfg.Concurrency
	if concurrency <= 0 {
		concurrency = pool.DefaultWorkers
	}
	results := pool.Map(ctx, trending, concurrency, func(ctx context.Context, item trakt.TrendingItem) models.ItemResult {
		if mediaType == MediaTypeSeries {
			return s.processShow(ctx, rctx, item)
		}
		return s.processMovie(ctx, rctx, item)
	})

	res := aggregateResults(mediaType, start, results)
	res.Retries = int(rctx.retries.Load())

	if mediaType == MediaTypeSeries {
		s.runPhases(ctx, rctx, trending, res)
	} else {
		s.runPhase(ctx, res, "omdb_backfill", func(ctx context.Context) (int, error) {
			return s.backfillOmdb(ctx, rctx, mediaType)
		})
	}

	res.DurationMs = time.Since(start).Milliseconds()
	log.Printf("[sync] Finished %s run: total=%d added=%d updated=%d skipped=%d failed=%d snapshots=%d retries=%d in %dms",
		mediaType, res.Total, res.Added, res.Updated, res.Skipped, res.Failed, res.Snapshots, res.Retries, res.DurationMs)

	s.mu.Lock()
	s.lastResult[mediaType] = res
	s.mu.Unlock()
	return res, nil
}

// runPhases executes the show post-processing phases. Each phase catches its
// own failure so siblings still run.
func (s *Service) runPhases(ctx context.Context, rctx *runContext, trending []trakt.TrendingItem, res *models.RunResult) {
	s.runPhase(ctx, res, "omdb_backfill", func(ctx context.Context) (int, error) {
		return s.backfillOmdb(ctx, rctx, MediaTypeSeries)
	})
	s.runPhase(ctx, res, "metadata_backfill", func(ctx context.Context) (int, error) {
		return s.backfillMetadata(ctx, rctx, MediaTypeSeries)
	})
	s.runPhase(ctx, res, "calendar", func(ctx context.Context) (int, error) {
		return s.syncCalendar(ctx, rctx, trending)
	})
	s.runPhase(ctx, res, "calendar_prune", func(ctx context.Context) (int, error) {
		return s.pruneCalendar(ctx)
	})
}

func (s *Service) runPhase(ctx context.Context, res *models.RunResult, name string, fn func(ctx context.Context) (int, error)) {
	start := time.Now()
	items, err := fn(ctx)
	phase := models.PhaseResult{
		Name:       name,
		Items:      items,
		DurationMs: time.Since(start).Milliseconds(),
	}
	if err != nil {
		phase.Error = err.Error()
		res.Errors = append(res.Errors, fmt.Sprintf("%s: %v", name, err))
		log.Printf("[sync] Phase %s failed: %v", name, err)
	}
	res.Phases = append(res.Phases, phase)
}

// buildMonthlyMaps fetches six months of watched history once per run. A
// failed month degrades to an empty map rather than failing the run.
func (s *Service) buildMonthlyMaps(ctx context.Context, traktType string) *scoring.MonthlyMaps {
	months := &scoring.MonthlyMaps{}
	now := time.Now().UTC()

	offsets := []int{0, 1, 2, 3, 4, 5}
	maps := pool.Map(ctx, offsets, pool.DefaultWorkers, func(ctx context.Context, m int) map[int64]int {
		start := now.AddDate(0, -m, 0)
		watched, err := s.trakt.Watched(ctx, traktType, "monthly", start, s.cfg.TrendingLimit)
		if err != nil {
			log.Printf("[sync] Monthly map m%d unavailable: %v", m, err)
			return map[int64]int{}
		}
		out := make(map[int64]int, len(watched))
		for _, w := range watched {
			var ids trakt.IDs
			switch {
			case w.Show != nil:
				ids = w.Show.IDs
			case w.Movie != nil:
				ids = w.Movie.IDs
			}
			if ids.Trakt != 0 {
				out[ids.Trakt] = w.WatcherCount
			}
		}
		return out
	})
	for m, mp := range maps {
		months.Months[m] = mp
	}
	return months
}

func aggregateResults(mediaType string, start time.Time, results []models.ItemResult) *models.RunResult {
	res := &models.RunResult{
		MediaType: mediaType,
		StartedAt: start.UTC(),
		Total:     len(results),
	}
	for _, r := range results {
		switch {
		case r.Error != "":
			res.Failed++
			res.Errors = append(res.Errors, fmt.Sprintf("%s (tmdb %d): %s", r.Title, r.TmdbID, r.Error))
		case r.Skipped:
			res.Skipped++
		case r.Added:
			res.Added++
		case r.Updated:
			res.Updated++
		}
		if r.SnapshotInserted {
			res.Snapshots++
		}
	}
	return res
}

func traktMediaType(mediaType string) string {
	if mediaType == MediaTypeMovie {
		return "movies"
	}
	return "shows"
}

func tmdbMediaType(mediaType string) string {
	if mediaType == MediaTypeMovie {
		return "movie"
	}
	return "tv"
}
