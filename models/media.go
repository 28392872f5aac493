package models

import "time"

// Normalized catalog rows written by the sync pipeline.

// Rating source identifiers as stored in rating_records / rating_buckets.
const (
	RatingSourceTrakt = "trakt"
	RatingSourceTMDB  = "tmdb"
	RatingSourceIMDB  = "imdb"
)

// Watch provider categories, matching the TMDB watch/providers buckets.
const (
	ProviderCategoryFlatrate = "flatrate"
	ProviderCategoryFree     = "free"
	ProviderCategoryAds      = "ads"
	ProviderCategoryRent     = "rent"
	ProviderCategoryBuy      = "buy"
)

// MediaItem is one show or movie row, keyed by TMDB id. A row is created on
// first successful ingestion and mutated (never deleted) on every later pass.
type MediaItem struct {
	ID              int64   `json:"id"`
	TmdbID          int64   `json:"tmdbId"`
	MediaType       string  `json:"mediaType"` // series | movie
	Title           string  `json:"title"`
	TranslatedTitle string  `json:"translatedTitle,omitempty"`
	Overview        string  `json:"overview,omitempty"`
	PosterPath      string  `json:"posterPath,omitempty"`
	BackdropPath    string  `json:"backdropPath,omitempty"`
	ReleaseDate     string  `json:"releaseDate,omitempty"` // YYYY-MM-DD
	GenreIDs        string  `json:"genreIds,omitempty"`    // comma separated
	Popularity      float64 `json:"popularity"`
	ImdbID          string  `json:"imdbId,omitempty"`

	// Per-source ratings, nil when the source had nothing for this item.
	TmdbRating  *float64 `json:"tmdbRating,omitempty"`
	TmdbVotes   *int     `json:"tmdbVotes,omitempty"`
	TraktRating *float64 `json:"traktRating,omitempty"`
	TraktVotes  *int     `json:"traktVotes,omitempty"`
	ImdbRating  *float64 `json:"imdbRating,omitempty"`
	ImdbVotes   *int     `json:"imdbVotes,omitempty"`
	RtScore     *int     `json:"rtScore,omitempty"`         // Rotten Tomatoes percent
	MetaScore   *int     `json:"metacriticScore,omitempty"` // Metacritic 0-100

	// Primary rating is the first non-nil of tmdb/trakt/imdb rating, kept
	// denormalized so delta computation can read last pass's value cheaply.
	Rating   float64 `json:"rating"`
	Watchers int     `json:"watchers"`

	// Computed by the scoring module every pass.
	TrendingScore int     `json:"trendingScore"` // 0-100
	Delta3m       int     `json:"delta3m"`
	RatingoScore  float64 `json:"ratingoScore"` // 0-100

	// Show bookkeeping, zero for movies.
	SeasonCount  int    `json:"seasonCount,omitempty"`
	EpisodeCount int    `json:"episodeCount,omitempty"`
	ShowStatus   string `json:"showStatus,omitempty"`

	// Stub rows exist only to satisfy related-link targets until a future
	// pass enriches them.
	Stub bool `json:"stub,omitempty"`

	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// RatingRecord holds the average and vote count for one external source.
// Unique on (mediaItemId, source).
type RatingRecord struct {
	MediaItemID int64   `json:"mediaItemId"`
	Source      string  `json:"source"`
	Average     float64 `json:"average"`
	Votes       int     `json:"votes"`
}

// RatingBucket is one histogram bar (1..10) of a source's vote distribution.
// Unique on (mediaItemId, source, bucket).
type RatingBucket struct {
	MediaItemID int64  `json:"mediaItemId"`
	Source      string `json:"source"`
	Bucket      int    `json:"bucket"` // 1..10
	Votes       int    `json:"votes"`
}

// WatcherSnapshot is an append-only time-series point. At most one snapshot
// per media item is inserted per rolling 24h window.
type WatcherSnapshot struct {
	ID          int64     `json:"id"`
	MediaItemID int64     `json:"mediaItemId"`
	TraktID     int64     `json:"traktId"`
	Watchers    int       `json:"watchers"`
	TakenAt     time.Time `json:"takenAt"`
}

// RelatedLink is a directed edge to another media item.
// Unique on (mediaItemId, relatedMediaItemId).
type RelatedLink struct {
	MediaItemID int64  `json:"mediaItemId"`
	RelatedID   int64  `json:"relatedMediaItemId"`
	Source      string `json:"source"` // trakt | tmdb
	Rank        int    `json:"rank"`
}

// WatchProvider is the canonical provider registry row.
type WatchProvider struct {
	ProviderID int64  `json:"providerId"`
	Name       string `json:"name"`
	LogoPath   string `json:"logoPath,omitempty"`
}

// WatchProviderEntry says where one item can be streamed/rented/bought in a
// region. Unique on (mediaItemId, region, providerId, category).
type WatchProviderEntry struct {
	MediaItemID int64  `json:"mediaItemId"`
	Region      string `json:"region"`
	ProviderID  int64  `json:"providerId"`
	Name        string `json:"name"`
	LogoPath    string `json:"logoPath,omitempty"`
	Category    string `json:"category"`
	Rank        int    `json:"rank"`
}

// ContentRatingEntry holds one region's age/content rating string.
type ContentRatingEntry struct {
	MediaItemID int64  `json:"mediaItemId"`
	Region      string `json:"region"`
	Rating      string `json:"rating"`
}

// CastEntry is one credited cast member.
type CastEntry struct {
	MediaItemID int64  `json:"mediaItemId"`
	PersonID    int64  `json:"personId"`
	Name        string `json:"name"`
	Character   string `json:"character,omitempty"`
	Order       int    `json:"order"`
	ProfilePath string `json:"profilePath,omitempty"`
}

// VideoEntry is one trailer/teaser attached to a media item.
type VideoEntry struct {
	MediaItemID int64  `json:"mediaItemId"`
	Site        string `json:"site"`
	Key         string `json:"key"`
	Name        string `json:"name"`
	Type        string `json:"type"`
	Official    bool   `json:"official"`
}

// CalendarEntry is one upcoming episode air date for a trending show.
type CalendarEntry struct {
	ID          int64     `json:"id"`
	MediaItemID int64     `json:"mediaItemId"`
	TmdbID      int64     `json:"tmdbId"`
	Season      int       `json:"season"`
	Episode     int       `json:"episode"`
	Title       string    `json:"title,omitempty"`
	AirDate     string    `json:"airDate"` // YYYY-MM-DD
	UpdatedAt   time.Time `json:"updatedAt"`
}
