package sync

import (
	"context"
	"fmt"
	"time"

	"ratingo/models"
	"ratingo/services/trakt"
)

// syncCalendar refreshes upcoming episode air dates, restricted to the shows
// in the current trending set. Returns how many entries were written.
func (s *Service) syncCalendar(ctx context.Context, rctx *runContext, trending []trakt.TrendingItem) (int, error) {
	days := rctx.cfg.CalendarDaysAhead
	if days <= 0 {
		days = 30
	}

	entries, err := s.trakt.Calendar(ctx, time.Now().UTC(), days)
	if err != nil {
		return 0, fmt.Errorf("fetch calendar: %w", err)
	}

	// Only shows from this batch make it into the calendar.
	inBatch := make(map[int64]bool, len(trending))
	for _, item := range trending {
		if item.Show != nil && item.Show.IDs.TMDB != 0 {
			inBatch[item.Show.IDs.TMDB] = true
		}
	}

	var rows []models.CalendarEntry
	for _, e := range entries {
		tmdbID := e.Show.IDs.TMDB
		if tmdbID == 0 || !inBatch[tmdbID] {
			continue
		}
		item, err := s.db.Media.GetByTmdbID(ctx, tmdbID)
		if err != nil || item == nil {
			continue
		}
		rows = append(rows, models.CalendarEntry{
			MediaItemID: item.ID,
			TmdbID:      tmdbID,
			Season:      e.Episode.Season,
			Episode:     e.Episode.Number,
			Title:       e.Episode.Title,
			AirDate:     e.FirstAired.UTC().Format("2006-01-02"),
		})
	}
	if err := s.db.Calendar.UpsertEntries(ctx, rows); err != nil {
		return 0, err
	}
	return len(rows), nil
}

// pruneCalendar drops entries whose air date fell out of the retention
// window. Returns how many entries were removed.
func (s *Service) pruneCalendar(ctx context.Context) (int, error) {
	keepDays := s.cfg.CalendarKeepDays
	if keepDays <= 0 {
		keepDays = 14
	}
	cutoff := time.Now().UTC().AddDate(0, 0, -keepDays).Format("2006-01-02")
	pruned, err := s.db.Calendar.PruneBefore(ctx, cutoff)
	return int(pruned), err
}
