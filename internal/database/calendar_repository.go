package database

import (
	"context"
	"database/sql"
	"fmt"

	"ratingo/models"
)

// CalendarRepository stores upcoming episode air dates for trending shows.
type CalendarRepository struct {
	db *sql.DB
}

// UpsertEntries writes a batch of calendar rows in one transaction. Rows are
// keyed by (item, season, episode) so a re-run refreshes title and air date
// instead of duplicating.
func (r *CalendarRepository) UpsertEntries(ctx context.Context, entries []models.CalendarEntry) error {
	if len(entries) == 0 {
		return nil
	}
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback()

	for _, e := range entries {
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO calendar_entries (media_item_id, tmdb_id, season, episode, title, air_date)
			VALUES (?, ?, ?, ?, ?, ?)
			ON CONFLICT(media_item_id, season, episode) DO UPDATE SET
				title      = excluded.title,
				air_date   = excluded.air_date,
				updated_at = CURRENT_TIMESTAMP`,
			e.MediaItemID, e.TmdbID, e.Season, e.Episode, e.Title, e.AirDate); err != nil {
			return fmt.Errorf("upsert calendar entry %d s%de%d: %w", e.TmdbID, e.Season, e.Episode, err)
		}
	}
	return tx.Commit()
}

// Upcoming lists entries airing on or after the given date (YYYY-MM-DD),
// soonest first.
func (r *CalendarRepository) Upcoming(ctx context.Context, fromDate string, limit int) ([]models.CalendarEntry, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, media_item_id, tmdb_id, season, episode, title, air_date, updated_at
		FROM calendar_entries
		WHERE air_date >= ?
		ORDER BY air_date ASC, season ASC, episode ASC
		LIMIT ?`, fromDate, limit)
	if err != nil {
		return nil, fmt.Errorf("list calendar: %w", err)
	}
	defer rows.Close()

	var entries []models.CalendarEntry
	for rows.Next() {
		var e models.CalendarEntry
		if err := rows.Scan(&e.ID, &e.MediaItemID, &e.TmdbID, &e.Season, &e.Episode, &e.Title, &e.AirDate, &e.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan calendar entry: %w", err)
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// PruneBefore deletes entries whose air date is before the given date
// (YYYY-MM-DD) and returns how many went.
func (r *CalendarRepository) PruneBefore(ctx context.Context, date string) (int64, error) {
	res, err := r.db.ExecContext(ctx, `DELETE FROM calendar_entries WHERE air_date < ?`, date)
	if err != nil {
		return 0, fmt.Errorf("prune calendar: %w", err)
	}
	return res.RowsAffected()
}
