package trakt

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"ratingo/internal/pool"
)

const (
	traktAPIBaseURL = "https://api.trakt.tv"
	traktAPIVersion = "2"

	// Default wait when a 429 response carries no Retry-After header.
	defaultRetryAfter = 2 * time.Second

	// Transport-cache TTLs per endpoint class. Trending lists go stale fast,
	// ratings and related graphs do not.
	trendingCacheTTL = 10 * time.Minute
	ratingsCacheTTL  = 6 * time.Hour
	relatedCacheTTL  = 24 * time.Hour
)

// StatusError is the generic upstream failure carrying the HTTP status.
// Callers decide whether to retry.
type StatusError struct {
	Endpoint string
	Status   int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("trakt %s failed: status %d", e.Endpoint, e.Status)
}

// Client handles Trakt API interactions for trending and rating data.
type Client struct {
	httpClient *http.Client
	clientID   string

	cache *pool.Cache[string, []byte]

	// sleep is swappable in tests so 429 handling does not slow the suite.
	sleep func(time.Duration)
}

// IDs holds external identifiers for a media item.
type IDs struct {
	Trakt int64  `json:"trakt,omitempty"`
	Slug  string `json:"slug,omitempty"`
	IMDB  string `json:"imdb,omitempty"`
	TMDB  int64  `json:"tmdb,omitempty"`
}

// Show represents a Trakt TV show.
type Show struct {
	Title string `json:"title"`
	Year  int    `json:"year"`
	IDs   IDs    `json:"ids"`
}

// Movie represents a Trakt movie.
type Movie struct {
	Title string `json:"title"`
	Year  int    `json:"year"`
	IDs   IDs    `json:"ids"`
}

// TrendingItem is one entry from /shows/trending or /movies/trending.
type TrendingItem struct {
	Watchers int    `json:"watchers"`
	Show     *Show  `json:"show,omitempty"`
	Movie    *Movie `json:"movie,omitempty"`
}

// Title returns the display title regardless of media type.
func (t TrendingItem) Title() string {
	if t.Show != nil {
		return t.Show.Title
	}
	if t.Movie != nil {
		return t.Movie.Title
	}
	return ""
}

// ItemIDs returns the external identifiers regardless of media type.
func (t TrendingItem) ItemIDs() IDs {
	if t.Show != nil {
		return t.Show.IDs
	}
	if t.Movie != nil {
		return t.Movie.IDs
	}
	return IDs{}
}

// WatchedItem is one entry from the watched-history endpoint.
type WatchedItem struct {
	WatcherCount   int    `json:"watcher_count"`
	PlayCount      int    `json:"play_count"`
	CollectedCount int    `json:"collected_count"`
	Show           *Show  `json:"show,omitempty"`
	Movie          *Movie `json:"movie,omitempty"`
}

// Ratings is the response from /{type}/{id}/ratings: an average, a vote
// count, and a 1..10 histogram.
type Ratings struct {
	Rating       float64        `json:"rating"`
	Votes        int            `json:"votes"`
	Distribution map[string]int `json:"distribution"`
}

// RelatedItem is one entry from /{type}/{id}/related.
type RelatedItem struct {
	Title string `json:"title"`
	Year  int    `json:"year"`
	IDs   IDs    `json:"ids"`
}

// CalendarEntry is one entry from /calendars/all/shows/{date}/{days}.
type CalendarEntry struct {
	FirstAired time.Time `json:"first_aired"`
	Episode    struct {
		Season int    `json:"season"`
		Number int    `json:"number"`
		Title  string `json:"title"`
		IDs    IDs    `json:"ids"`
	} `json:"episode"`
	Show Show `json:"show"`
}

// NewClient creates a new Trakt API client.
func NewClient(clientID string) *Client {
	return &Client{
		httpClient: &http.Client{Timeout: 30 * time.Second},
		clientID:   clientID,
		cache:      pool.NewCache[string, []byte](256, trendingCacheTTL),
		sleep:      time.Sleep,
	}
}

// HasCredentials checks if the client has an API key configured.
func (c *Client) HasCredentials() bool {
	return c.clientID != ""
}

func (c *Client) setHeaders(req *http.Request) {
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("trakt-api-version", traktAPIVersion)
	req.Header.Set("trakt-api-key", c.clientID)
}

// doGET fetches endpoint and decodes the JSON body into v. Responses are
// cached for cacheTTL (zero disables caching; the calendar payload is too
// large to keep around). On 429 the Retry-After header is honored and the
// request retried exactly once before the failure propagates.
func (c *Client) doGET(ctx context.Context, endpoint string, cacheTTL time.Duration, v any) error {
	if cacheTTL > 0 {
		if body, ok := c.cache.Get(endpoint); ok {
			return json.Unmarshal(body, v)
		}
	}

	body, err := c.fetch(ctx, endpoint, true)
	if err != nil {
		return err
	}
	if cacheTTL > 0 {
		c.cache.SetTTL(endpoint, body, cacheTTL)
	}
	return json.Unmarshal(body, v)
}

func (c *Client) fetch(ctx context.Context, endpoint string, allowRetry bool) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, traktAPIBaseURL+endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	c.setHeaders(req)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("trakt api request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusTooManyRequests && allowRetry {
		io.Copy(io.Discard, resp.Body)
		c.sleep(retryAfter(resp.Header))
		return c.fetch(ctx, endpoint, false)
	}

	if resp.StatusCode != http.StatusOK {
		io.Copy(io.Discard, resp.Body)
		return nil, &StatusError{Endpoint: endpoint, Status: resp.StatusCode}
	}

	return io.ReadAll(resp.Body)
}

func retryAfter(h http.Header) time.Duration {
	if v := h.Get("Retry-After"); v != "" {
		if secs, err := strconv.Atoi(v); err == nil && secs > 0 {
			return time.Duration(secs) * time.Second
		}
	}
	return defaultRetryAfter
}

// Trending retrieves the trending list. mediaType is "shows" or "movies".
func (c *Client) Trending(ctx context.Context, mediaType string, limit int) ([]TrendingItem, error) {
	if limit <= 0 {
		limit = 40
	}
	endpoint := fmt.Sprintf("/%s/trending?limit=%d", mediaType, limit)

	var items []TrendingItem
	if err := c.doGET(ctx, endpoint, trendingCacheTTL, &items); err != nil {
		return nil, err
	}
	return items, nil
}

// Watched retrieves the most-watched list for a period, optionally anchored
// at startDate (used to reconstruct per-month watcher counts).
func (c *Client) Watched(ctx context.Context, mediaType, period string, startDate time.Time, limit int) ([]WatchedItem, error) {
	if period == "" {
		period = "monthly"
	}
	if limit <= 0 {
		limit = 100
	}
	endpoint := fmt.Sprintf("/%s/watched/%s?limit=%d", mediaType, period, limit)
	if !startDate.IsZero() {
		endpoint += "&start_date=" + startDate.Format("2006-01-02")
	}

	var items []WatchedItem
	if err := c.doGET(ctx, endpoint, trendingCacheTTL, &items); err != nil {
		return nil, err
	}
	return items, nil
}

// GetRatings retrieves the rating average, vote count and 1-10 distribution
// for one item. idOrSlug accepts a trakt id, slug or imdb id.
func (c *Client) GetRatings(ctx context.Context, mediaType, idOrSlug string) (*Ratings, error) {
	endpoint := fmt.Sprintf("/%s/%s/ratings", mediaType, idOrSlug)

	var ratings Ratings
	if err := c.doGET(ctx, endpoint, ratingsCacheTTL, &ratings); err != nil {
		return nil, err
	}
	return &ratings, nil
}

// Related retrieves items related to the given one.
func (c *Client) Related(ctx context.Context, mediaType, idOrSlug string, limit int) ([]RelatedItem, error) {
	if limit <= 0 {
		limit = 10
	}
	endpoint := fmt.Sprintf("/%s/%s/related?limit=%d", mediaType, idOrSlug, limit)

	var items []RelatedItem
	if err := c.doGET(ctx, endpoint, relatedCacheTTL, &items); err != nil {
		return nil, err
	}
	return items, nil
}

// Calendar retrieves all-show episode air dates for days starting at start.
// The payload is large and date-scoped, so it is deliberately not cached.
func (c *Client) Calendar(ctx context.Context, start time.Time, days int) ([]CalendarEntry, error) {
	if days <= 0 {
		days = 7
	}
	endpoint := fmt.Sprintf("/calendars/all/shows/%s/%d", start.Format("2006-01-02"), days)

	var entries []CalendarEntry
	if err := c.doGET(ctx, endpoint, 0, &entries); err != nil {
		return nil, err
	}
	return entries, nil
}
