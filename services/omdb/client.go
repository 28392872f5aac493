package omdb

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"ratingo/internal/pool"
)

const (
	omdbBaseURL = "https://www.omdbapi.com/"

	// Critic scores move slowly; cache aggressively to respect the small
	// daily request quota.
	ratingsCacheTTL = 24 * time.Hour
)

// ErrNotFound means OMDb has no record for the requested IMDB id.
var ErrNotFound = errors.New("omdb: title not found")

// StatusError is the generic upstream failure carrying the HTTP status.
type StatusError struct {
	Status int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("omdb request failed: status %d", e.Status)
}

// AggregatedRatings is the typed view of OMDb's loosely-formatted payload.
// A nil field means the source had no value or its string did not parse;
// raw values that failed to parse are kept in Unparsed.
type AggregatedRatings struct {
	ImdbRating     *float64 `json:"imdbRating,omitempty"` // 0-10
	ImdbVotes      *int     `json:"imdbVotes,omitempty"`
	RottenTomatoes *int     `json:"rottenTomatoes,omitempty"` // percent
	Metacritic     *int     `json:"metacritic,omitempty"`     // 0-100
	Unparsed       []string `json:"unparsed,omitempty"`
}

// omdbResponse mirrors the wire payload. Every numeric field arrives as a
// string ("8.5", "1,234,567", "N/A").
type omdbResponse struct {
	Response   string `json:"Response"`
	Error      string `json:"Error"`
	ImdbRating string `json:"imdbRating"`
	ImdbVotes  string `json:"imdbVotes"`
	Ratings    []struct {
		Source string `json:"Source"`
		Value  string `json:"Value"`
	} `json:"Ratings"`
}

// Client wraps the OMDb API keyed by IMDB cross-reference id.
type Client struct {
	apiKey  string
	httpc   *http.Client
	limiter *rate.Limiter
	cache   *pool.Cache[string, *AggregatedRatings]
}

// NewClient creates an OMDb client.
func NewClient(apiKey string, httpc *http.Client) *Client {
	if httpc == nil {
		httpc = &http.Client{Timeout: 10 * time.Second}
	}
	return &Client{
		apiKey:  strings.TrimSpace(apiKey),
		httpc:   httpc,
		limiter: rate.NewLimiter(rate.Every(200*time.Millisecond), 2),
		cache:   pool.NewCache[string, *AggregatedRatings](512, ratingsCacheTTL),
	}
}

// IsConfigured reports whether an API key is present.
func (c *Client) IsConfigured() bool {
	return c != nil && c.apiKey != ""
}

// GetRatings fetches aggregated critic/audience scores for an IMDB id.
func (c *Client) GetRatings(ctx context.Context, imdbID string) (*AggregatedRatings, error) {
	if !c.IsConfigured() {
		return nil, errors.New("omdb api key not configured")
	}
	imdbID = strings.TrimSpace(imdbID)
	if imdbID == "" {
		return nil, errors.New("imdb id required")
	}
	if !strings.HasPrefix(imdbID, "tt") {
		imdbID = "tt" + imdbID
	}

	if cached, ok := c.cache.Get(imdbID); ok {
		return cached, nil
	}

	if err := c.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	endpoint := fmt.Sprintf("%s?apikey=%s&i=%s", omdbBaseURL, url.QueryEscape(c.apiKey), url.QueryEscape(imdbID))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}

	resp, err := c.httpc.Do(req)
	if err != nil {
		return nil, fmt.Errorf("omdb api request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		io.Copy(io.Discard, resp.Body)
		return nil, &StatusError{Status: resp.StatusCode}
	}

	var payload omdbResponse
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}
	if payload.Response == "False" {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, payload.Error)
	}

	ratings := parseRatings(payload)
	c.cache.Set(imdbID, ratings)
	return ratings, nil
}

// parseRatings converts OMDb's string fields into the typed result. Values
// that do not match any known pattern land in Unparsed instead of silently
// becoming zero.
func parseRatings(payload omdbResponse) *AggregatedRatings {
	out := &AggregatedRatings{}

	if v, ok := parseFloat(payload.ImdbRating); ok {
		out.ImdbRating = &v
	} else if notNA(payload.ImdbRating) {
		out.Unparsed = append(out.Unparsed, "imdbRating="+payload.ImdbRating)
	}

	if v, ok := parseVotes(payload.ImdbVotes); ok {
		out.ImdbVotes = &v
	} else if notNA(payload.ImdbVotes) {
		out.Unparsed = append(out.Unparsed, "imdbVotes="+payload.ImdbVotes)
	}

	for _, r := range payload.Ratings {
		switch r.Source {
		case "Rotten Tomatoes":
			if v, ok := parsePercent(r.Value); ok {
				out.RottenTomatoes = &v
			} else {
				out.Unparsed = append(out.Unparsed, "tomatoes="+r.Value)
			}
		case "Metacritic":
			if v, ok := parseFraction(r.Value); ok {
				out.Metacritic = &v
			} else {
				out.Unparsed = append(out.Unparsed, "metacritic="+r.Value)
			}
		case "Internet Movie Database":
			// Redundant with imdbRating; use it only as a fallback.
			if out.ImdbRating == nil {
				if v, ok := parseScale10(r.Value); ok {
					out.ImdbRating = &v
				}
			}
		}
	}

	return out
}

func notNA(s string) bool {
	s = strings.TrimSpace(s)
	return s != "" && s != "N/A"
}

// parseFloat handles plain decimals like "8.5".
func parseFloat(s string) (float64, bool) {
	if !notNA(s) {
		return 0, false
	}
	v, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil || v < 0 || v > 10 {
		return 0, false
	}
	return v, true
}

// parseVotes handles comma-grouped counts like "1,234,567".
func parseVotes(s string) (int, bool) {
	if !notNA(s) {
		return 0, false
	}
	v, err := strconv.Atoi(strings.ReplaceAll(strings.TrimSpace(s), ",", ""))
	if err != nil || v < 0 {
		return 0, false
	}
	return v, true
}

// parsePercent handles "94%".
func parsePercent(s string) (int, bool) {
	s = strings.TrimSpace(s)
	if !strings.HasSuffix(s, "%") {
		return 0, false
	}
	v, err := strconv.Atoi(strings.TrimSuffix(s, "%"))
	if err != nil || v < 0 || v > 100 {
		return 0, false
	}
	return v, true
}

// parseFraction handles "74/100".
func parseFraction(s string) (int, bool) {
	parts := strings.SplitN(strings.TrimSpace(s), "/", 2)
	if len(parts) != 2 || parts[1] != "100" {
		return 0, false
	}
	v, err := strconv.Atoi(parts[0])
	if err != nil || v < 0 || v > 100 {
		return 0, false
	}
	return v, true
}

// parseScale10 handles "8.5/10".
func parseScale10(s string) (float64, bool) {
	parts := strings.SplitN(strings.TrimSpace(s), "/", 2)
	if len(parts) != 2 || parts[1] != "10" {
		return 0, false
	}
	return parseFloat(parts[0])
}
