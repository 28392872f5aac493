package sync

import (
	"context"
	"errors"
	"log"
	"time"

	"ratingo/internal/pool"
	"ratingo/models"
	"ratingo/services/omdb"
	"ratingo/services/scoring"
)

const backfillBatch = 40

// backfillOmdb fills critic-aggregate ratings for items that were ingested
// with an IMDB id but never got an IMDB rating, then recomputes their
// composite score. Returns how many items were updated.
func (s *Service) backfillOmdb(ctx context.Context, rctx *runContext, mediaType string) (int, error) {
	if s.omdb == nil {
		return 0, nil
	}
	items, err := s.db.Media.ItemsMissingOmdb(ctx, mediaType, backfillBatch)
	if err != nil {
		return 0, err
	}
	if len(items) == 0 {
		return 0, nil
	}

	concurrency := s.cfg.Concurrency
	if concurrency <= 0 {
		concurrency = pool.DefaultWorkers
	}

	filled := 0
	results, errs := pool.MapErr(ctx, items, concurrency, func(ctx context.Context, item models.MediaItem) (bool, error) {
		agg, err := s.omdb.GetRatings(ctx, item.ImdbID)
		if err != nil {
			if errors.Is(err, omdb.ErrNotFound) {
				// Unknown to the aggregate provider; nothing to fill, not a
				// phase failure.
				return false, nil
			}
			return false, err
		}
		if err := s.db.Media.UpdateExternalRatings(ctx, item.ID, agg.ImdbRating, agg.ImdbVotes, agg.RottenTomatoes, agg.Metacritic); err != nil {
			return false, err
		}
		s.recomputeScore(ctx, item, agg)
		return true, nil
	})
	for i, ok := range results {
		if ok {
			filled++
		}
		if errs[i] != nil {
			log.Printf("[sync] OMDb backfill failed for %s: %v", items[i].ImdbID, errs[i])
		}
	}
	return filled, nil
}

// recomputeScore refreshes the composite score after a backfill changed the
// rating inputs. Best effort; the next full pass recomputes anyway.
func (s *Service) recomputeScore(ctx context.Context, item models.MediaItem, agg *omdb.AggregatedRatings) {
	ratings := make(map[string]float64)
	totalVotes := 0
	if item.TmdbRating != nil {
		ratings["tmdb"] = *item.TmdbRating
	}
	if item.TmdbVotes != nil {
		totalVotes += *item.TmdbVotes
	}
	if item.TraktRating != nil {
		ratings["trakt"] = *item.TraktRating
	}
	if item.TraktVotes != nil {
		totalVotes += *item.TraktVotes
	}
	if agg.ImdbRating != nil {
		ratings["imdb"] = *agg.ImdbRating
	}
	if agg.ImdbVotes != nil {
		totalVotes += *agg.ImdbVotes
	}
	if agg.Metacritic != nil {
		ratings["metacritic"] = float64(*agg.Metacritic) / 10
	}

	breakdown := scoring.RatingoScore(scoring.ScoreInput{
		Watchers:    item.Watchers,
		Popularity:  item.Popularity,
		Ratings:     ratings,
		TotalVotes:  totalVotes,
		ReleaseDate: item.ReleaseDate,
	}, time.Now())
	if err := s.db.Media.UpdateRatingoScore(ctx, item.ID, breakdown.Score); err != nil {
		log.Printf("[sync] Score recompute failed for tmdb %d: %v", item.TmdbID, err)
	}
}

// backfillMetadata retries display fields for rows that were ingested while
// the metadata provider was flaky. Returns how many items were filled.
func (s *Service) backfillMetadata(ctx context.Context, rctx *runContext, mediaType string) (int, error) {
	items, err := s.db.Media.ItemsMissingMetadata(ctx, mediaType, backfillBatch)
	if err != nil {
		return 0, err
	}
	if len(items) == 0 {
		return 0, nil
	}

	concurrency := s.cfg.Concurrency
	if concurrency <= 0 {
		concurrency = pool.DefaultWorkers
	}
	tmdbType := tmdbMediaType(mediaType)

	filled := 0
	results, errs := pool.MapErr(ctx, items, concurrency, func(ctx context.Context, item models.MediaItem) (bool, error) {
		details, err := s.tmdb.Details(ctx, tmdbType, item.TmdbID)
		if err != nil {
			return false, err
		}
		var translatedTitle string
		if t, err := s.tmdb.Translation(ctx, tmdbType, item.TmdbID); err == nil && t != nil {
			translatedTitle = t.Title
		}
		if details.Overview == "" && details.PosterPath == "" && translatedTitle == "" {
			return false, nil
		}
		if err := s.db.Media.UpdateMetadata(ctx, item.ID, details.Overview, details.PosterPath, details.BackdropPath, translatedTitle); err != nil {
			return false, err
		}
		return true, nil
	})
	for i, ok := range results {
		if ok {
			filled++
		}
		if errs[i] != nil {
			log.Printf("[sync] Metadata backfill failed for tmdb %d: %v", items[i].TmdbID, errs[i])
		}
	}
	return filled, nil
}
