package database

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"ratingo/models"
)

// MediaRepository owns the catalog tables: media items, ratings, snapshots,
// providers, cast, videos and related links.
type MediaRepository struct {
	db *sql.DB
}

// RelatedTarget references another title by TMDB id. Targets that are not in
// the catalog yet get a stub row so the link can be stored.
type RelatedTarget struct {
	TmdbID    int64
	MediaType string
	Title     string
	Source    string
	Rank      int
}

// SnapshotInput is the watcher time-series point to record this pass.
type SnapshotInput struct {
	TraktID  int64
	Watchers int
}

// ReconcileRecord is everything one fully fetched trending item writes.
// Child slices left empty mean "the source had nothing this pass" and the
// previously stored rows are kept.
type ReconcileRecord struct {
	Item           models.MediaItem
	Ratings        []models.RatingRecord
	Buckets        []models.RatingBucket
	Providers      []models.WatchProviderEntry
	ContentRatings []models.ContentRatingEntry
	Cast           []models.CastEntry
	Videos         []models.VideoEntry
	Related        []RelatedTarget

	Snapshot       *SnapshotInput
	SnapshotWindow time.Duration
}

// ReconcileOutcome reports what the transaction actually did.
type ReconcileOutcome struct {
	MediaItemID      int64
	Added            bool
	SnapshotInserted bool
}

// Reconcile writes one item and all of its child rows in a single
// transaction, so a failure anywhere leaves the catalog untouched for this
// item while the rest of the batch proceeds.
func (r *MediaRepository) Reconcile(ctx context.Context, rec ReconcileRecord) (ReconcileOutcome, error) {
	var out ReconcileOutcome

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return out, fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback()

	id, added, err := upsertMediaItem(ctx, tx, rec.Item)
	if err != nil {
		return out, err
	}
	out.MediaItemID = id
	out.Added = added

	for _, rr := range rec.Ratings {
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO rating_records (media_item_id, source, average, votes)
			VALUES (?, ?, ?, ?)
			ON CONFLICT(media_item_id, source) DO UPDATE SET
				average = excluded.average,
				votes   = excluded.votes`,
			id, rr.Source, rr.Average, rr.Votes); err != nil {
			return out, fmt.Errorf("upsert rating %s: %w", rr.Source, err)
		}
	}

	if err := replaceBuckets(ctx, tx, id, rec.Buckets); err != nil {
		return out, err
	}

	if len(rec.Providers) > 0 {
		if _, err := tx.ExecContext(ctx, `DELETE FROM watch_provider_entries WHERE media_item_id = ?`, id); err != nil {
			return out, fmt.Errorf("clear providers: %w", err)
		}
		for _, p := range rec.Providers {
			// Registry upsert is best effort metadata, the entry row is the
			// one that matters.
			if _, err := tx.ExecContext(ctx, `
				INSERT INTO watch_providers (provider_id, name, logo_path)
				VALUES (?, ?, ?)
				ON CONFLICT(provider_id) DO UPDATE SET
					name      = excluded.name,
					logo_path = excluded.logo_path`,
				p.ProviderID, p.Name, p.LogoPath); err != nil {
				return out, fmt.Errorf("upsert provider registry %d: %w", p.ProviderID, err)
			}
			if _, err := tx.ExecContext(ctx, `
				INSERT INTO watch_provider_entries
					(media_item_id, region, provider_id, category, name, logo_path, rank)
				VALUES (?, ?, ?, ?, ?, ?, ?)
				ON CONFLICT(media_item_id, region, provider_id, category) DO UPDATE SET
					name      = excluded.name,
					logo_path = excluded.logo_path,
					rank      = excluded.rank`,
				id, p.Region, p.ProviderID, p.Category, p.Name, p.LogoPath, p.Rank); err != nil {
				return out, fmt.Errorf("insert provider entry %d: %w", p.ProviderID, err)
			}
		}
	}

	if len(rec.ContentRatings) > 0 {
		for _, cr := range rec.ContentRatings {
			if _, err := tx.ExecContext(ctx, `
				INSERT INTO content_ratings (media_item_id, region, rating)
				VALUES (?, ?, ?)
				ON CONFLICT(media_item_id, region) DO UPDATE SET
					rating = excluded.rating`,
				id, cr.Region, cr.Rating); err != nil {
				return out, fmt.Errorf("upsert content rating %s: %w", cr.Region, err)
			}
		}
	}

	if len(rec.Cast) > 0 {
		if _, err := tx.ExecContext(ctx, `DELETE FROM cast_entries WHERE media_item_id = ?`, id); err != nil {
			return out, fmt.Errorf("clear cast: %w", err)
		}
		for _, c := range rec.Cast {
			if _, err := tx.ExecContext(ctx, `
				INSERT INTO cast_entries (media_item_id, person_id, name, character, ord, profile_path)
				VALUES (?, ?, ?, ?, ?, ?)
				ON CONFLICT(media_item_id, person_id, character) DO UPDATE SET
					ord          = excluded.ord,
					profile_path = excluded.profile_path`,
				id, c.PersonID, c.Name, c.Character, c.Order, c.ProfilePath); err != nil {
				return out, fmt.Errorf("insert cast %d: %w", c.PersonID, err)
			}
		}
	}

	if len(rec.Videos) > 0 {
		if _, err := tx.ExecContext(ctx, `DELETE FROM video_entries WHERE media_item_id = ?`, id); err != nil {
			return out, fmt.Errorf("clear videos: %w", err)
		}
		for _, v := range rec.Videos {
			if _, err := tx.ExecContext(ctx, `
				INSERT INTO video_entries (media_item_id, site, key, name, type, official)
				VALUES (?, ?, ?, ?, ?, ?)
				ON CONFLICT(media_item_id, site, key) DO NOTHING`,
				id, v.Site, v.Key, v.Name, v.Type, v.Official); err != nil {
				return out, fmt.Errorf("insert video %s: %w", v.Key, err)
			}
		}
	}

	if len(rec.Related) > 0 {
		if _, err := tx.ExecContext(ctx, `DELETE FROM related_links WHERE media_item_id = ?`, id); err != nil {
			return out, fmt.Errorf("clear related: %w", err)
		}
		for _, rl := range rec.Related {
			if rl.TmdbID == 0 || rl.TmdbID == rec.Item.TmdbID {
				continue
			}
			targetID, err := ensureStubTx(ctx, tx, rl.TmdbID, rl.MediaType, rl.Title)
			if err != nil {
				return out, err
			}
			if _, err := tx.ExecContext(ctx, `
				INSERT INTO related_links (media_item_id, related_media_item_id, source, rank)
				VALUES (?, ?, ?, ?)
				ON CONFLICT(media_item_id, related_media_item_id) DO NOTHING`,
				id, targetID, rl.Source, rl.Rank); err != nil {
				return out, fmt.Errorf("insert related link %d: %w", rl.TmdbID, err)
			}
		}
	}

	if rec.Snapshot != nil {
		inserted, err := insertSnapshotTx(ctx, tx, id, rec.Snapshot, rec.SnapshotWindow)
		if err != nil {
			return out, err
		}
		out.SnapshotInserted = inserted
	}

	if err := tx.Commit(); err != nil {
		return out, fmt.Errorf("commit: %w", err)
	}
	return out, nil
}

func upsertMediaItem(ctx context.Context, tx *sql.Tx, item models.MediaItem) (int64, bool, error) {
	var existingID int64
	err := tx.QueryRowContext(ctx, `SELECT id FROM media_items WHERE tmdb_id = ?`, item.TmdbID).Scan(&existingID)
	switch {
	case err == sql.ErrNoRows:
		res, err := tx.ExecContext(ctx, `
			INSERT INTO media_items
				(tmdb_id, media_type, title, translated_title, overview, poster_path,
				 backdrop_path, release_date, genre_ids, popularity, imdb_id,
				 tmdb_rating, tmdb_votes, trakt_rating, trakt_votes, imdb_rating,
				 imdb_votes, rt_score, meta_score, rating, watchers, trending_score,
				 delta3m, ratingo_score, season_count, episode_count, show_status, stub)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, 0)`,
			item.TmdbID, item.MediaType, item.Title, item.TranslatedTitle, item.Overview,
			item.PosterPath, item.BackdropPath, item.ReleaseDate, item.GenreIDs,
			item.Popularity, item.ImdbID, item.TmdbRating, item.TmdbVotes,
			item.TraktRating, item.TraktVotes, item.ImdbRating, item.ImdbVotes,
			item.RtScore, item.MetaScore, item.Rating, item.Watchers,
			item.TrendingScore, item.Delta3m, item.RatingoScore,
			item.SeasonCount, item.EpisodeCount, item.ShowStatus)
		if err != nil {
			return 0, false, fmt.Errorf("insert media item %d: %w", item.TmdbID, err)
		}
		id, err := res.LastInsertId()
		if err != nil {
			return 0, false, fmt.Errorf("insert media item %d: %w", item.TmdbID, err)
		}
		return id, true, nil
	case err != nil:
		return 0, false, fmt.Errorf("lookup media item %d: %w", item.TmdbID, err)
	}

	// COALESCE keeps the previously stored per-source values when a source
	// had nothing for the item this pass.
	_, err = tx.ExecContext(ctx, `
		UPDATE media_items SET
			media_type       = ?,
			title            = ?,
			translated_title = CASE WHEN ? != '' THEN ? ELSE translated_title END,
			overview         = CASE WHEN ? != '' THEN ? ELSE overview END,
			poster_path      = CASE WHEN ? != '' THEN ? ELSE poster_path END,
			backdrop_path    = CASE WHEN ? != '' THEN ? ELSE backdrop_path END,
			release_date     = CASE WHEN ? != '' THEN ? ELSE release_date END,
			genre_ids        = CASE WHEN ? != '' THEN ? ELSE genre_ids END,
			popularity       = ?,
			imdb_id          = CASE WHEN ? != '' THEN ? ELSE imdb_id END,
			tmdb_rating      = COALESCE(?, tmdb_rating),
			tmdb_votes       = COALESCE(?, tmdb_votes),
			trakt_rating     = COALESCE(?, trakt_rating),
			trakt_votes      = COALESCE(?, trakt_votes),
			imdb_rating      = COALESCE(?, imdb_rating),
			imdb_votes       = COALESCE(?, imdb_votes),
			rt_score         = COALESCE(?, rt_score),
			meta_score       = COALESCE(?, meta_score),
			rating           = ?,
			watchers         = ?,
			trending_score   = ?,
			delta3m          = ?,
			ratingo_score    = ?,
			season_count     = ?,
			episode_count    = ?,
			show_status      = CASE WHEN ? != '' THEN ? ELSE show_status END,
			stub             = 0,
			updated_at       = CURRENT_TIMESTAMP
		WHERE id = ?`,
		item.MediaType, item.Title,
		item.TranslatedTitle, item.TranslatedTitle,
		item.Overview, item.Overview,
		item.PosterPath, item.PosterPath,
		item.BackdropPath, item.BackdropPath,
		item.ReleaseDate, item.ReleaseDate,
		item.GenreIDs, item.GenreIDs,
		item.Popularity,
		item.ImdbID, item.ImdbID,
		item.TmdbRating, item.TmdbVotes,
		item.TraktRating, item.TraktVotes,
		item.ImdbRating, item.ImdbVotes,
		item.RtScore, item.MetaScore,
		item.Rating, item.Watchers,
		item.TrendingScore, item.Delta3m, item.RatingoScore,
		item.SeasonCount, item.EpisodeCount,
		item.ShowStatus, item.ShowStatus,
		existingID)
	if err != nil {
		return 0, false, fmt.Errorf("update media item %d: %w", item.TmdbID, err)
	}
	return existingID, false, nil
}

// replaceBuckets rewrites the histogram for each source present this pass and
// leaves the other sources' bars alone.
func replaceBuckets(ctx context.Context, tx *sql.Tx, id int64, buckets []models.RatingBucket) error {
	if len(buckets) == 0 {
		return nil
	}
	sources := map[string]bool{}
	for _, b := range buckets {
		sources[b.Source] = true
	}
	for source := range sources {
		if _, err := tx.ExecContext(ctx, `
			DELETE FROM rating_buckets WHERE media_item_id = ? AND source = ?`,
			id, source); err != nil {
			return fmt.Errorf("clear buckets %s: %w", source, err)
		}
	}
	for _, b := range buckets {
		if b.Bucket < 1 || b.Bucket > 10 {
			continue
		}
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO rating_buckets (media_item_id, source, bucket, votes)
			VALUES (?, ?, ?, ?)`,
			id, b.Source, b.Bucket, b.Votes); err != nil {
			return fmt.Errorf("insert bucket %s/%d: %w", b.Source, b.Bucket, err)
		}
	}
	return nil
}

func ensureStubTx(ctx context.Context, tx *sql.Tx, tmdbID int64, mediaType, title string) (int64, error) {
	var id int64
	err := tx.QueryRowContext(ctx, `SELECT id FROM media_items WHERE tmdb_id = ?`, tmdbID).Scan(&id)
	if err == nil {
		return id, nil
	}
	if err != sql.ErrNoRows {
		return 0, fmt.Errorf("lookup stub %d: %w", tmdbID, err)
	}
	res, err := tx.ExecContext(ctx, `
		INSERT INTO media_items (tmdb_id, media_type, title, stub)
		VALUES (?, ?, ?, 1)`,
		tmdbID, mediaType, title)
	if err != nil {
		return 0, fmt.Errorf("insert stub %d: %w", tmdbID, err)
	}
	id, err = res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("insert stub %d: %w", tmdbID, err)
	}
	return id, nil
}

func insertSnapshotTx(ctx context.Context, tx *sql.Tx, id int64, snap *SnapshotInput, window time.Duration) (bool, error) {
	if window <= 0 {
		window = 24 * time.Hour
	}
	cutoff := time.Now().UTC().Add(-window)
	var count int
	if err := tx.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM watcher_snapshots
		WHERE media_item_id = ? AND taken_at > ?`,
		id, cutoff).Scan(&count); err != nil {
		return false, fmt.Errorf("count snapshots: %w", err)
	}
	if count > 0 {
		return false, nil
	}
	if _, err := tx.ExecContext(ctx, `
		INSERT INTO watcher_snapshots (media_item_id, trakt_id, watchers, taken_at)
		VALUES (?, ?, ?, ?)`,
		id, snap.TraktID, snap.Watchers, time.Now().UTC()); err != nil {
		return false, fmt.Errorf("insert snapshot: %w", err)
	}
	return true, nil
}

// EnsureStub creates a placeholder row for a title referenced by a related
// link before the title itself has been ingested.
func (r *MediaRepository) EnsureStub(ctx context.Context, tmdbID int64, mediaType, title string) (int64, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback()
	id, err := ensureStubTx(ctx, tx, tmdbID, mediaType, title)
	if err != nil {
		return 0, err
	}
	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit: %w", err)
	}
	return id, nil
}

const mediaItemColumns = `
	id, tmdb_id, media_type, title, translated_title, overview, poster_path,
	backdrop_path, release_date, genre_ids, popularity, imdb_id,
	tmdb_rating, tmdb_votes, trakt_rating, trakt_votes, imdb_rating,
	imdb_votes, rt_score, meta_score, rating, watchers, trending_score,
	delta3m, ratingo_score, season_count, episode_count, show_status, stub,
	created_at, updated_at`

func scanMediaItem(row interface{ Scan(...any) error }) (*models.MediaItem, error) {
	var m models.MediaItem
	if err := row.Scan(
		&m.ID, &m.TmdbID, &m.MediaType, &m.Title, &m.TranslatedTitle,
		&m.Overview, &m.PosterPath, &m.BackdropPath, &m.ReleaseDate,
		&m.GenreIDs, &m.Popularity, &m.ImdbID,
		&m.TmdbRating, &m.TmdbVotes, &m.TraktRating, &m.TraktVotes,
		&m.ImdbRating, &m.ImdbVotes, &m.RtScore, &m.MetaScore,
		&m.Rating, &m.Watchers, &m.TrendingScore, &m.Delta3m, &m.RatingoScore,
		&m.SeasonCount, &m.EpisodeCount, &m.ShowStatus, &m.Stub,
		&m.CreatedAt, &m.UpdatedAt,
	); err != nil {
		return nil, err
	}
	return &m, nil
}

// GetByTmdbID returns the stored item or nil when it is not in the catalog.
func (r *MediaRepository) GetByTmdbID(ctx context.Context, tmdbID int64) (*models.MediaItem, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+mediaItemColumns+` FROM media_items WHERE tmdb_id = ?`, tmdbID)
	m, err := scanMediaItem(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get media item %d: %w", tmdbID, err)
	}
	return m, nil
}

// ListTrending returns the catalog for one media type ordered by trending
// score, stubs excluded.
func (r *MediaRepository) ListTrending(ctx context.Context, mediaType string, limit int) ([]models.MediaItem, error) {
	if limit <= 0 {
		limit = 60
	}
	rows, err := r.db.QueryContext(ctx, `
		SELECT `+mediaItemColumns+` FROM media_items
		WHERE media_type = ? AND stub = 0
		ORDER BY trending_score DESC, watchers DESC
		LIMIT ?`, mediaType, limit)
	if err != nil {
		return nil, fmt.Errorf("list trending: %w", err)
	}
	defer rows.Close()

	var items []models.MediaItem
	for rows.Next() {
		m, err := scanMediaItem(rows)
		if err != nil {
			return nil, fmt.Errorf("scan media item: %w", err)
		}
		items = append(items, *m)
	}
	return items, rows.Err()
}

// RecentSnapshots returns up to limit snapshots for an item, newest first.
func (r *MediaRepository) RecentSnapshots(ctx context.Context, mediaItemID int64, limit int) ([]models.WatcherSnapshot, error) {
	if limit <= 0 {
		limit = 6
	}
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, media_item_id, trakt_id, watchers, taken_at
		FROM watcher_snapshots
		WHERE media_item_id = ?
		ORDER BY taken_at DESC
		LIMIT ?`, mediaItemID, limit)
	if err != nil {
		return nil, fmt.Errorf("recent snapshots: %w", err)
	}
	defer rows.Close()

	var snaps []models.WatcherSnapshot
	for rows.Next() {
		var s models.WatcherSnapshot
		if err := rows.Scan(&s.ID, &s.MediaItemID, &s.TraktID, &s.Watchers, &s.TakenAt); err != nil {
			return nil, fmt.Errorf("scan snapshot: %w", err)
		}
		snaps = append(snaps, s)
	}
	return snaps, rows.Err()
}

// SnapshotCount is used by tests and the status endpoint.
func (r *MediaRepository) SnapshotCount(ctx context.Context, mediaItemID int64) (int, error) {
	var n int
	err := r.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM watcher_snapshots WHERE media_item_id = ?`, mediaItemID).Scan(&n)
	return n, err
}

// ItemsMissingOmdb returns items that carry an IMDB id but no IMDB rating
// yet, the backfill phase's work list.
func (r *MediaRepository) ItemsMissingOmdb(ctx context.Context, mediaType string, limit int) ([]models.MediaItem, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT `+mediaItemColumns+` FROM media_items
		WHERE media_type = ? AND stub = 0 AND imdb_id != '' AND imdb_rating IS NULL
		ORDER BY watchers DESC
		LIMIT ?`, mediaType, limit)
	if err != nil {
		return nil, fmt.Errorf("items missing omdb: %w", err)
	}
	defer rows.Close()

	var items []models.MediaItem
	for rows.Next() {
		m, err := scanMediaItem(rows)
		if err != nil {
			return nil, fmt.Errorf("scan media item: %w", err)
		}
		items = append(items, *m)
	}
	return items, rows.Err()
}

// ItemsMissingMetadata returns non-stub items that never got an overview or
// poster, so the metadata backfill can retry them.
func (r *MediaRepository) ItemsMissingMetadata(ctx context.Context, mediaType string, limit int) ([]models.MediaItem, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT `+mediaItemColumns+` FROM media_items
		WHERE media_type = ? AND stub = 0 AND (overview = '' OR poster_path = '')
		ORDER BY watchers DESC
		LIMIT ?`, mediaType, limit)
	if err != nil {
		return nil, fmt.Errorf("items missing metadata: %w", err)
	}
	defer rows.Close()

	var items []models.MediaItem
	for rows.Next() {
		m, err := scanMediaItem(rows)
		if err != nil {
			return nil, fmt.Errorf("scan media item: %w", err)
		}
		items = append(items, *m)
	}
	return items, rows.Err()
}

// UpdateExternalRatings stores OMDb-sourced values for an item. Nil fields
// leave the stored value untouched.
func (r *MediaRepository) UpdateExternalRatings(ctx context.Context, mediaItemID int64, imdbRating *float64, imdbVotes, rtScore, metaScore *int) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE media_items SET
			imdb_rating = COALESCE(?, imdb_rating),
			imdb_votes  = COALESCE(?, imdb_votes),
			rt_score    = COALESCE(?, rt_score),
			meta_score  = COALESCE(?, meta_score),
			updated_at  = CURRENT_TIMESTAMP
		WHERE id = ?`,
		imdbRating, imdbVotes, rtScore, metaScore, mediaItemID)
	if err != nil {
		return fmt.Errorf("update external ratings %d: %w", mediaItemID, err)
	}
	return nil
}

// UpdateMetadata fills in display fields for an item that previously missed
// them. Empty strings leave stored values alone.
func (r *MediaRepository) UpdateMetadata(ctx context.Context, mediaItemID int64, overview, posterPath, backdropPath, translatedTitle string) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE media_items SET
			overview         = CASE WHEN ? != '' THEN ? ELSE overview END,
			poster_path      = CASE WHEN ? != '' THEN ? ELSE poster_path END,
			backdrop_path    = CASE WHEN ? != '' THEN ? ELSE backdrop_path END,
			translated_title = CASE WHEN ? != '' THEN ? ELSE translated_title END,
			updated_at       = CURRENT_TIMESTAMP
		WHERE id = ?`,
		overview, overview, posterPath, posterPath,
		backdropPath, backdropPath, translatedTitle, translatedTitle,
		mediaItemID)
	if err != nil {
		return fmt.Errorf("update metadata %d: %w", mediaItemID, err)
	}
	return nil
}

// UpdateRatingoScore stores a recomputed composite score after a backfill
// changed the inputs.
func (r *MediaRepository) UpdateRatingoScore(ctx context.Context, mediaItemID int64, score float64) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE media_items SET ratingo_score = ?, updated_at = CURRENT_TIMESTAMP
		WHERE id = ?`, score, mediaItemID)
	if err != nil {
		return fmt.Errorf("update ratingo score %d: %w", mediaItemID, err)
	}
	return nil
}
