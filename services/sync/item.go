package sync

import (
	"context"
	"fmt"
	"log"
	"strconv"
	"strings"
	"time"

	"github.com/sourcegraph/conc"

	"ratingo/internal/database"
	"ratingo/internal/pool"
	"ratingo/models"
	"ratingo/services/omdb"
	"ratingo/services/scoring"
	"ratingo/services/tmdb"
	"ratingo/services/trakt"
)

// Shared per-item fetch limits.
const (
	castLimit    = 20
	relatedLimit = 10
)

func (s *Service) processShow(ctx context.Context, rctx *runContext, item trakt.TrendingItem) models.ItemResult {
	return s.processItem(ctx, rctx, item, MediaTypeSeries)
}

func (s *Service) processMovie(ctx context.Context, rctx *runContext, item trakt.TrendingItem) models.ItemResult {
	return s.processItem(ctx, rctx, item, MediaTypeMovie)
}

// processItem reconciles one trending item: fetch everything, compute the
// scores, then write it all in a single transaction. Business-rule skips are
// reported as skips; real failures are captured on the result so the batch
// carries on.
func (s *Service) processItem(ctx context.Context, rctx *runContext, item trakt.TrendingItem, mediaType string) models.ItemResult {
	ids := item.ItemIDs()
	res := models.ItemResult{TmdbID: ids.TMDB, Title: item.Title()}

	if ids.TMDB == 0 {
		res.Skipped = true
		res.SkipReason = "missing tmdb id"
		return res
	}

	tmdbType := tmdbMediaType(mediaType)

	details, err := pool.Retry(ctx, rctx.onRetry, func() (*tmdb.Details, error) {
		return s.tmdb.Details(ctx, tmdbType, ids.TMDB)
	})
	if err != nil {
		res.Error = fmt.Sprintf("tmdb details: %v", err)
		return res
	}

	// Enrichment fetches run together and each degrades to empty on failure.
	var (
		translation   *tmdb.Translation
		videos        []tmdb.Video
		cast          []tmdb.CastMember
		primaryProv   *tmdb.RegionProviders
		fallbackProv  *tmdb.RegionProviders
		contentRegion string
		contentRating string
	)
	var wg conc.WaitGroup
	wg.Go(func() {
		t, err := s.tmdb.Translation(ctx, tmdbType, ids.TMDB)
		if err != nil {
			log.Printf("[sync] Translation unavailable for tmdb %d: %v", ids.TMDB, err)
			return
		}
		translation = t
	})
	wg.Go(func() {
		v, err := s.tmdb.Videos(ctx, tmdbType, ids.TMDB)
		if err != nil {
			log.Printf("[sync] Videos unavailable for tmdb %d: %v", ids.TMDB, err)
			return
		}
		videos = pickVideos(v)
	})
	wg.Go(func() {
		c, err := s.tmdb.Credits(ctx, tmdbType, ids.TMDB, castLimit)
		if err != nil {
			log.Printf("[sync] Credits unavailable for tmdb %d: %v", ids.TMDB, err)
			return
		}
		cast = c
	})
	wg.Go(func() {
		p, err := s.tmdb.WatchProviders(ctx, tmdbType, ids.TMDB, rctx.providers.Region)
		if err != nil {
			log.Printf("[sync] Providers unavailable for tmdb %d region %s: %v", ids.TMDB, rctx.providers.Region, err)
			return
		}
		primaryProv = p
	})
	wg.Go(func() {
		if rctx.providers.FallbackRegion == "" || rctx.providers.FallbackRegion == rctx.providers.Region {
			return
		}
		p, err := s.tmdb.WatchProviders(ctx, tmdbType, ids.TMDB, rctx.providers.FallbackRegion)
		if err != nil {
			log.Printf("[sync] Providers unavailable for tmdb %d region %s: %v", ids.TMDB, rctx.providers.FallbackRegion, err)
			return
		}
		fallbackProv = p
	})
	wg.Go(func() {
		region, rating, err := s.tmdb.ContentRating(ctx, tmdbType, ids.TMDB, rctx.providers.Region, rctx.providers.FallbackRegion)
		if err != nil {
			log.Printf("[sync] Content rating unavailable for tmdb %d: %v", ids.TMDB, err)
			return
		}
		contentRegion, contentRating = region, rating
	})
	wg.Wait()

	imdbID := s.resolveImdbID(ctx, rctx, tmdbType, ids, details)

	// Rating sources also tolerate individual failure.
	var (
		traktRatings *trakt.Ratings
		aggregated   *omdb.AggregatedRatings
	)
	var ratingsWG conc.WaitGroup
	ratingsWG.Go(func() {
		if ids.Trakt == 0 && ids.Slug == "" {
			return
		}
		idOrSlug := ids.Slug
		if idOrSlug == "" {
			idOrSlug = strconv.FormatInt(ids.Trakt, 10)
		}
		r, err := s.trakt.GetRatings(ctx, traktMediaType(mediaType), idOrSlug)
		if err != nil {
			log.Printf("[sync] Trakt ratings unavailable for %s: %v", idOrSlug, err)
			return
		}
		traktRatings = r
	})
	ratingsWG.Go(func() {
		if imdbID == "" || s.omdb == nil {
			return
		}
		a, err := s.omdb.GetRatings(ctx, imdbID)
		if err != nil {
			log.Printf("[sync] OMDb ratings unavailable for %s: %v", imdbID, err)
			return
		}
		aggregated = a
	})
	ratingsWG.Wait()

	if mediaType == MediaTypeSeries && s.isExcludedContent(rctx, details, translation) {
		res.Skipped = true
		res.SkipReason = "excluded content"
		return res
	}

	rec, err := s.buildRecord(ctx, rctx, item, mediaType, details, translation, videos, cast,
		primaryProv, fallbackProv, contentRegion, contentRating, imdbID, traktRatings, aggregated)
	if err != nil {
		res.Error = err.Error()
		return res
	}

	if mediaType == MediaTypeSeries {
		rec.Related = s.resolveRelated(ctx, mediaType, ids)
	}

	out, err := s.db.Media.Reconcile(ctx, rec)
	if err != nil {
		res.Error = fmt.Sprintf("reconcile: %v", err)
		return res
	}

	res.Added = out.Added
	res.Updated = !out.Added
	res.SnapshotInserted = out.SnapshotInserted
	res.Buckets = len(rec.Buckets)
	res.Providers = len(rec.Providers)
	res.ContentRatings = len(rec.ContentRatings)
	res.Cast = len(rec.Cast)
	res.Videos = len(rec.Videos)
	res.Related = len(rec.Related)
	return res
}

// buildRecord computes the derived metrics and assembles the transaction
// payload for one item.
func (s *Service) buildRecord(ctx context.Context, rctx *runContext, item trakt.TrendingItem, mediaType string,
	details *tmdb.Details, translation *tmdb.Translation, videos []tmdb.Video, cast []tmdb.CastMember,
	primaryProv, fallbackProv *tmdb.RegionProviders, contentRegion, contentRating, imdbID string,
	traktRatings *trakt.Ratings, aggregated *omdb.AggregatedRatings) (database.ReconcileRecord, error) {

	ids := item.ItemIDs()

	m := models.MediaItem{
		TmdbID:      ids.TMDB,
		MediaType:   mediaType,
		Title:       details.DisplayTitle(),
		Overview:    details.Overview,
		PosterPath:  details.PosterPath,
		BackdropPath: details.BackdropPath,
		ReleaseDate: details.Released(),
		GenreIDs:    joinGenreIDs(details.Genres),
		Popularity:  details.Popularity,
		ImdbID:      imdbID,
		Watchers:    item.Watchers,
	}
	if m.Title == "" {
		m.Title = item.Title()
	}
	if translation != nil {
		m.TranslatedTitle = translation.Title
		if translation.Overview != "" {
			m.Overview = translation.Overview
		}
	}
	if mediaType == MediaTypeSeries {
		m.SeasonCount = details.NumberOfSeasons
		m.EpisodeCount = details.NumberOfEpisodes
		m.ShowStatus = details.Status
	}

	ratings := make(map[string]float64)
	totalVotes := 0
	if details.VoteAverage > 0 {
		v := details.VoteAverage
		n := details.VoteCount
		m.TmdbRating = &v
		m.TmdbVotes = &n
		ratings["tmdb"] = v
		totalVotes += n
	}
	if traktRatings != nil && traktRatings.Rating > 0 {
		v := traktRatings.Rating
		n := traktRatings.Votes
		m.TraktRating = &v
		m.TraktVotes = &n
		ratings["trakt"] = v
		totalVotes += n
	}
	if aggregated != nil {
		m.ImdbRating = aggregated.ImdbRating
		m.ImdbVotes = aggregated.ImdbVotes
		m.RtScore = aggregated.RottenTomatoes
		m.MetaScore = aggregated.Metacritic
		if aggregated.ImdbRating != nil {
			ratings["imdb"] = *aggregated.ImdbRating
		}
		if aggregated.ImdbVotes != nil {
			totalVotes += *aggregated.ImdbVotes
		}
		if aggregated.Metacritic != nil {
			ratings["metacritic"] = float64(*aggregated.Metacritic) / 10
		}
	}

	// Primary rating: first available of native metadata, watcher-provider
	// average, critic-aggregate average.
	switch {
	case m.TmdbRating != nil:
		m.Rating = *m.TmdbRating
	case m.TraktRating != nil:
		m.Rating = *m.TraktRating
	case m.ImdbRating != nil:
		m.Rating = *m.ImdbRating
	}

	// The previously stored row feeds the delta fallbacks.
	prev, err := s.db.Media.GetByTmdbID(ctx, ids.TMDB)
	if err != nil {
		return database.ReconcileRecord{}, fmt.Errorf("load previous state: %w", err)
	}
	var prevValue float64
	if prev != nil {
		prevValue = prev.Rating
	}

	deltas := scoring.ComputeDeltas(ids.Trakt, item.Watchers, prevValue, rctx.months)
	m.Delta3m = deltas.Delta3m
	if deltas.Delta3mAmbiguous && prev != nil {
		snaps, err := s.db.Media.RecentSnapshots(ctx, prev.ID, 6)
		if err == nil && len(snaps) > 0 {
			counts := make([]int, len(snaps))
			for i, sn := range snaps {
				counts[i] = sn.Watchers
			}
			m.Delta3m = scoring.SnapshotDelta3m(counts)
		}
	}

	m.TrendingScore = scoring.TrendingScore(m.Rating, item.Watchers, rctx.maxWatchers)
	m.RatingoScore = scoring.RatingoScore(scoring.ScoreInput{
		Watchers:    item.Watchers,
		Popularity:  details.Popularity,
		Ratings:     ratings,
		TotalVotes:  totalVotes,
		ReleaseDate: m.ReleaseDate,
	}, time.Now()).Score

	rec := database.ReconcileRecord{
		Item:           m,
		Providers:      mergeProviders(providerEntries(primaryProv), providerEntries(fallbackProv)),
		SnapshotWindow: time.Duration(rctx.cfg.SnapshotWindowHrs) * time.Hour,
	}
	if ids.Trakt != 0 {
		rec.Snapshot = &database.SnapshotInput{TraktID: ids.Trakt, Watchers: item.Watchers}
	}

	if traktRatings != nil && traktRatings.Rating > 0 {
		rec.Ratings = append(rec.Ratings, models.RatingRecord{
			Source:  models.RatingSourceTrakt,
			Average: traktRatings.Rating,
			Votes:   traktRatings.Votes,
		})
		rec.Buckets = distributionBuckets(traktRatings.Distribution)
	}
	if m.TmdbRating != nil {
		rec.Ratings = append(rec.Ratings, models.RatingRecord{
			Source:  models.RatingSourceTMDB,
			Average: *m.TmdbRating,
			Votes:   *m.TmdbVotes,
		})
	}

	if contentRating != "" {
		rec.ContentRatings = []models.ContentRatingEntry{{Region: contentRegion, Rating: contentRating}}
	}
	for _, v := range videos {
		rec.Videos = append(rec.Videos, models.VideoEntry{
			Site: v.Site, Key: v.Key, Name: v.Name, Type: v.Type, Official: v.Official,
		})
	}
	for _, c := range cast {
		rec.Cast = append(rec.Cast, models.CastEntry{
			PersonID: c.ID, Name: c.Name, Character: c.Character, Order: c.Order, ProfilePath: c.ProfilePath,
		})
	}
	return rec, nil
}

// resolveImdbID finds the cross-reference id for the critic-aggregate
// provider: the trending payload first, then the metadata payload, then a
// cached external-ids lookup. Empty means the item just skips that source.
func (s *Service) resolveImdbID(ctx context.Context, rctx *runContext, tmdbType string, ids trakt.IDs, details *tmdb.Details) string {
	if ids.IMDB != "" {
		return ids.IMDB
	}
	if details.IMDBID != "" {
		return details.IMDBID
	}
	imdbID, err := rctx.externalIDs.GetOrFetch(ctx, ids.TMDB, func(ctx context.Context) (string, error) {
		ext, err := s.tmdb.ExternalIDs(ctx, tmdbType, ids.TMDB)
		if err != nil {
			return "", err
		}
		return ext.IMDBID, nil
	})
	if err != nil {
		log.Printf("[sync] External ids unavailable for tmdb %d: %v", ids.TMDB, err)
		return ""
	}
	return imdbID
}

// resolveRelated finds related titles: the watcher provider first, the
// metadata provider's recommendations as fallback. Failures degrade to no
// links.
func (s *Service) resolveRelated(ctx context.Context, mediaType string, ids trakt.IDs) []database.RelatedTarget {
	if ids.Trakt != 0 || ids.Slug != "" {
		idOrSlug := ids.Slug
		if idOrSlug == "" {
			idOrSlug = strconv.FormatInt(ids.Trakt, 10)
		}
		related, err := s.trakt.Related(ctx, traktMediaType(mediaType), idOrSlug, relatedLimit)
		if err == nil && len(related) > 0 {
			targets := make([]database.RelatedTarget, 0, len(related))
			for i, r := range related {
				if r.IDs.TMDB == 0 {
					continue
				}
				targets = append(targets, database.RelatedTarget{
					TmdbID: r.IDs.TMDB, MediaType: mediaType, Title: r.Title, Source: "trakt", Rank: i,
				})
			}
			if len(targets) > 0 {
				return targets
			}
		}
	}

	recs, err := s.tmdb.Recommendations(ctx, tmdbMediaType(mediaType), ids.TMDB, relatedLimit)
	if err != nil {
		log.Printf("[sync] Related unavailable for tmdb %d: %v", ids.TMDB, err)
		return nil
	}
	targets := make([]database.RelatedTarget, 0, len(recs))
	for i, r := range recs {
		title := r.Title
		if title == "" {
			title = r.Name
		}
		targets = append(targets, database.RelatedTarget{
			TmdbID: r.ID, MediaType: mediaType, Title: title, Source: "tmdb", Rank: i,
		})
	}
	return targets
}

// isExcludedContent applies the ingestion filter for shows: a genre-id match
// or a keyword hit on either title. Matched items are a business-rule skip,
// not a failure.
func (s *Service) isExcludedContent(rctx *runContext, details *tmdb.Details, translation *tmdb.Translation) bool {
	if details.HasGenre(rctx.cfg.ExcludedGenreIDs) {
		return true
	}
	titles := []string{strings.ToLower(details.DisplayTitle())}
	if translation != nil && translation.Title != "" {
		titles = append(titles, strings.ToLower(translation.Title))
	}
	for _, kw := range rctx.cfg.ExcludedKeywords {
		kw = strings.ToLower(kw)
		for _, title := range titles {
			if kw != "" && strings.Contains(title, kw) {
				return true
			}
		}
	}
	return false
}

// pickVideos prefers official YouTube trailers, falls back to any YouTube
// entry, then to whatever is there.
func pickVideos(videos []tmdb.Video) []tmdb.Video {
	var trailers, youtube []tmdb.Video
	for _, v := range videos {
		if v.Site != "YouTube" {
			continue
		}
		youtube = append(youtube, v)
		if v.Type == "Trailer" {
			trailers = append(trailers, v)
		}
	}
	if len(trailers) > 0 {
		return trailers
	}
	if len(youtube) > 0 {
		return youtube
	}
	return videos
}

func distributionBuckets(dist map[string]int) []models.RatingBucket {
	var buckets []models.RatingBucket
	for b := 1; b <= 10; b++ {
		votes, ok := dist[strconv.Itoa(b)]
		if !ok {
			continue
		}
		buckets = append(buckets, models.RatingBucket{
			Source: models.RatingSourceTrakt,
			Bucket: b,
			Votes:  votes,
		})
	}
	return buckets
}

func joinGenreIDs(genres []tmdb.Genre) string {
	if len(genres) == 0 {
		return ""
	}
	parts := make([]string, len(genres))
	for i, g := range genres {
		parts[i] = strconv.FormatInt(g.ID, 10)
	}
	return strings.Join(parts, ",")
}
