package tmdb

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"ratingo/internal/pool"
)

const (
	tmdbBaseURL = "https://api.themoviedb.org/3"

	// Metadata changes rarely; translations and provider listings even less.
	detailsCacheTTL = 12 * time.Hour
	staticCacheTTL  = 24 * time.Hour
)

// StatusError is the generic upstream failure carrying the HTTP status.
type StatusError struct {
	Endpoint string
	Status   int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("tmdb %s failed: status %d", e.Endpoint, e.Status)
}

// Client wraps the TMDB v3 API with client-side throttling and a transport
// cache, exposing one method per query the sync pipeline needs.
type Client struct {
	apiKey   string
	language string
	httpc    *http.Client
	limiter  *rate.Limiter
	cache    *pool.Cache[string, []byte]
}

// NewClient creates a TMDB client. language is the translation locale
// requested alongside every localized call (e.g. "uk-UA").
func NewClient(apiKey, language string, httpc *http.Client) *Client {
	if httpc == nil {
		httpc = &http.Client{Timeout: 15 * time.Second}
	}
	return &Client{
		apiKey:   strings.TrimSpace(apiKey),
		language: language,
		httpc:    httpc,
		// TMDB allows ~50 req/s; stay well under it.
		limiter: rate.NewLimiter(rate.Every(25*time.Millisecond), 4),
		cache:   pool.NewCache[string, []byte](1024, detailsCacheTTL),
	}
}

// IsConfigured reports whether an API key is present.
func (c *Client) IsConfigured() bool {
	return c != nil && c.apiKey != ""
}

// apiMediaType maps the pipeline's media type to TMDB's path segment.
func apiMediaType(mediaType string) string {
	if mediaType == "movie" {
		return "movie"
	}
	return "tv"
}

// doGET performs a throttled GET against path (already including any query
// string except the api key) and decodes the JSON body into v.
func (c *Client) doGET(ctx context.Context, path string, cacheTTL time.Duration, v any) error {
	if !c.IsConfigured() {
		return fmt.Errorf("tmdb api key not configured")
	}

	if cacheTTL > 0 {
		if body, ok := c.cache.Get(path); ok {
			return json.Unmarshal(body, v)
		}
	}

	if err := c.limiter.Wait(ctx); err != nil {
		return err
	}

	sep := "?"
	if strings.Contains(path, "?") {
		sep = "&"
	}
	endpoint := tmdbBaseURL + path + sep + "api_key=" + url.QueryEscape(c.apiKey)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return err
	}

	resp, err := c.httpc.Do(req)
	if err != nil {
		return fmt.Errorf("tmdb api request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		io.Copy(io.Discard, resp.Body)
		return &StatusError{Endpoint: path, Status: resp.StatusCode}
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return err
	}
	if cacheTTL > 0 {
		c.cache.SetTTL(path, body, cacheTTL)
	}
	return json.Unmarshal(body, v)
}

// Details fetches primary metadata for one item.
func (c *Client) Details(ctx context.Context, mediaType string, tmdbID int64) (*Details, error) {
	path := fmt.Sprintf("/%s/%d", apiMediaType(mediaType), tmdbID)

	var d Details
	if err := c.doGET(ctx, path, detailsCacheTTL, &d); err != nil {
		return nil, err
	}
	return &d, nil
}

// Translation fetches the localized title and overview for the client's
// language, returning nil when no matching translation exists.
func (c *Client) Translation(ctx context.Context, mediaType string, tmdbID int64) (*Translation, error) {
	path := fmt.Sprintf("/%s/%d/translations", apiMediaType(mediaType), tmdbID)

	var payload translationsResponse
	if err := c.doGET(ctx, path, staticCacheTTL, &payload); err != nil {
		return nil, err
	}

	lang, region := splitLocale(c.language)
	for _, t := range payload.Translations {
		if t.ISO6391 == lang && (region == "" || t.ISO31661 == region) {
			return &Translation{Title: firstNonEmpty(t.Data.Title, t.Data.Name), Overview: t.Data.Overview}, nil
		}
	}
	// Second pass ignoring region, e.g. "uk" translations filed under UA only.
	for _, t := range payload.Translations {
		if t.ISO6391 == lang {
			return &Translation{Title: firstNonEmpty(t.Data.Title, t.Data.Name), Overview: t.Data.Overview}, nil
		}
	}
	return nil, nil
}

// Videos fetches trailer/teaser entries for one item.
func (c *Client) Videos(ctx context.Context, mediaType string, tmdbID int64) ([]Video, error) {
	path := fmt.Sprintf("/%s/%d/videos", apiMediaType(mediaType), tmdbID)

	var payload videosResponse
	if err := c.doGET(ctx, path, staticCacheTTL, &payload); err != nil {
		return nil, err
	}
	return payload.Results, nil
}

// WatchProviders fetches the provider listing for one region, bucketed by
// category. Returns nil when the region has no listing.
func (c *Client) WatchProviders(ctx context.Context, mediaType string, tmdbID int64, region string) (*RegionProviders, error) {
	path := fmt.Sprintf("/%s/%d/watch/providers", apiMediaType(mediaType), tmdbID)

	var payload watchProvidersResponse
	if err := c.doGET(ctx, path, staticCacheTTL, &payload); err != nil {
		return nil, err
	}

	rp, ok := payload.Results[strings.ToUpper(region)]
	if !ok {
		return nil, nil
	}
	rp.Region = strings.ToUpper(region)
	return &rp, nil
}

// ContentRating resolves the age/content rating string with a fallback
// chain: requested region, then fallback region, then the first available.
func (c *Client) ContentRating(ctx context.Context, mediaType string, tmdbID int64, region, fallbackRegion string) (string, string, error) {
	ratings, err := c.contentRatings(ctx, mediaType, tmdbID)
	if err != nil {
		return "", "", err
	}
	for _, want := range []string{strings.ToUpper(region), strings.ToUpper(fallbackRegion)} {
		if want == "" {
			continue
		}
		if r, ok := ratings[want]; ok && r != "" {
			return want, r, nil
		}
	}
	for reg, r := range ratings {
		if r != "" {
			return reg, r, nil
		}
	}
	return "", "", nil
}

// contentRatings returns region -> rating. Shows use /content_ratings;
// movies carry certifications inside /release_dates.
func (c *Client) contentRatings(ctx context.Context, mediaType string, tmdbID int64) (map[string]string, error) {
	out := make(map[string]string)

	if apiMediaType(mediaType) == "tv" {
		path := fmt.Sprintf("/tv/%d/content_ratings", tmdbID)
		var payload contentRatingsResponse
		if err := c.doGET(ctx, path, staticCacheTTL, &payload); err != nil {
			return nil, err
		}
		for _, r := range payload.Results {
			if r.Rating != "" {
				out[strings.ToUpper(r.ISO31661)] = r.Rating
			}
		}
		return out, nil
	}

	path := fmt.Sprintf("/movie/%d/release_dates", tmdbID)
	var payload releaseDatesResponse
	if err := c.doGET(ctx, path, staticCacheTTL, &payload); err != nil {
		return nil, err
	}
	for _, country := range payload.Results {
		for _, entry := range country.ReleaseDates {
			if entry.Certification != "" {
				out[strings.ToUpper(country.ISO31661)] = entry.Certification
				break
			}
		}
	}
	return out, nil
}

// ExternalIDs resolves cross-reference identifiers (IMDB id in particular).
func (c *Client) ExternalIDs(ctx context.Context, mediaType string, tmdbID int64) (*ExternalIDs, error) {
	path := fmt.Sprintf("/%s/%d/external_ids", apiMediaType(mediaType), tmdbID)

	var ids ExternalIDs
	if err := c.doGET(ctx, path, staticCacheTTL, &ids); err != nil {
		return nil, err
	}
	ids.IMDBID = strings.TrimSpace(ids.IMDBID)
	return &ids, nil
}

// Credits fetches top-billed cast. Shows use aggregate_credits so recurring
// cast across seasons is merged; movies use plain credits.
func (c *Client) Credits(ctx context.Context, mediaType string, tmdbID int64, limit int) ([]CastMember, error) {
	if limit <= 0 {
		limit = 20
	}

	var cast []CastMember
	if apiMediaType(mediaType) == "tv" {
		path := fmt.Sprintf("/tv/%d/aggregate_credits", tmdbID)
		var payload aggregateCreditsResponse
		if err := c.doGET(ctx, path, staticCacheTTL, &payload); err != nil {
			return nil, err
		}
		for _, m := range payload.Cast {
			character := ""
			if len(m.Roles) > 0 {
				character = m.Roles[0].Character
			}
			cast = append(cast, CastMember{ID: m.ID, Name: m.Name, Character: character, Order: m.Order, ProfilePath: m.ProfilePath})
		}
	} else {
		path := fmt.Sprintf("/movie/%d/credits", tmdbID)
		var payload creditsResponse
		if err := c.doGET(ctx, path, staticCacheTTL, &payload); err != nil {
			return nil, err
		}
		cast = payload.Cast
	}

	if len(cast) > limit {
		cast = cast[:limit]
	}
	return cast, nil
}

// Recommendations fetches TMDB's recommendation list, the fallback source
// for related items when Trakt has none.
func (c *Client) Recommendations(ctx context.Context, mediaType string, tmdbID int64, limit int) ([]RecommendedItem, error) {
	if limit <= 0 {
		limit = 10
	}
	path := fmt.Sprintf("/%s/%d/recommendations", apiMediaType(mediaType), tmdbID)

	var payload recommendationsResponse
	if err := c.doGET(ctx, path, staticCacheTTL, &payload); err != nil {
		return nil, err
	}
	if len(payload.Results) > limit {
		payload.Results = payload.Results[:limit]
	}
	return payload.Results, nil
}

func splitLocale(locale string) (lang, region string) {
	locale = strings.ReplaceAll(locale, "_", "-")
	parts := strings.SplitN(locale, "-", 2)
	lang = strings.ToLower(parts[0])
	if len(parts) == 2 {
		region = strings.ToUpper(parts[1])
	}
	return lang, region
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}
