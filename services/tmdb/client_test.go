package tmdb

import (
	"bytes"
	"context"
	"errors"
	"io"
	"net/http"
	"testing"
)

type roundTripFunc func(*http.Request) (*http.Response, error)

func (f roundTripFunc) RoundTrip(req *http.Request) (*http.Response, error) {
	return f(req)
}

func jsonResponse(status int, body string) *http.Response {
	return &http.Response{
		StatusCode: status,
		Header:     make(http.Header),
		Body:       io.NopCloser(bytes.NewReader([]byte(body))),
	}
}

func newTestClient(language string, rt roundTripFunc) *Client {
	return NewClient("test-key", language, &http.Client{Transport: rt})
}

func TestDetails_AppendsAPIKey(t *testing.T) {
	var gotURL string
	c := newTestClient("en-US", func(req *http.Request) (*http.Response, error) {
		gotURL = req.URL.String()
		return jsonResponse(200, `{"id":95396,"name":"Severance","vote_average":8.5,"vote_count":4200,"genres":[{"id":18,"name":"Drama"}]}`), nil
	})

	d, err := c.Details(context.Background(), "series", 95396)
	if err != nil {
		t.Fatalf("Details() error = %v", err)
	}

	want := "https://api.themoviedb.org/3/tv/95396?api_key=test-key"
	if gotURL != want {
		t.Errorf("url = %q, want %q", gotURL, want)
	}
	if d.DisplayTitle() != "Severance" {
		t.Errorf("title = %q, want Severance", d.DisplayTitle())
	}
	if !d.HasGenre([]int64{18}) {
		t.Error("expected genre 18 to match")
	}
}

func TestDetails_CachesResponse(t *testing.T) {
	calls := 0
	c := newTestClient("en-US", func(req *http.Request) (*http.Response, error) {
		calls++
		return jsonResponse(200, `{"id":1,"title":"Dune"}`), nil
	})

	for i := 0; i < 2; i++ {
		if _, err := c.Details(context.Background(), "movie", 1); err != nil {
			t.Fatalf("Details() call %d error = %v", i+1, err)
		}
	}
	if calls != 1 {
		t.Errorf("transport hit %d times, want 1 (second call should be cached)", calls)
	}
}

func TestDetails_UpstreamError(t *testing.T) {
	c := newTestClient("en-US", func(req *http.Request) (*http.Response, error) {
		return jsonResponse(http.StatusNotFound, `{"status_message":"not found"}`), nil
	})

	_, err := c.Details(context.Background(), "movie", 42)

	var statusErr *StatusError
	if !errors.As(err, &statusErr) {
		t.Fatalf("error = %v, want *StatusError", err)
	}
	if statusErr.Status != http.StatusNotFound {
		t.Errorf("status = %d, want 404", statusErr.Status)
	}
}

func TestTranslation_MatchesLocaleThenLanguage(t *testing.T) {
	body := `{"translations":[
		{"iso_3166_1":"FR","iso_639_1":"fr","data":{"name":"Dissociation","overview":"fr overview"}},
		{"iso_3166_1":"GB","iso_639_1":"uk","data":{"name":"Розрив","overview":"uk overview"}}
	]}`
	c := newTestClient("uk-UA", func(req *http.Request) (*http.Response, error) {
		return jsonResponse(200, body), nil
	})

	// No uk/UA pair exists, so the region-agnostic second pass should find
	// the uk translation filed under GB.
	tr, err := c.Translation(context.Background(), "series", 95396)
	if err != nil {
		t.Fatalf("Translation() error = %v", err)
	}
	if tr == nil {
		t.Fatal("expected a translation, got nil")
	}
	if tr.Title != "Розрив" || tr.Overview != "uk overview" {
		t.Errorf("translation = %+v", tr)
	}
}

func TestTranslation_NoMatchReturnsNil(t *testing.T) {
	c := newTestClient("uk-UA", func(req *http.Request) (*http.Response, error) {
		return jsonResponse(200, `{"translations":[{"iso_3166_1":"DE","iso_639_1":"de","data":{"name":"x"}}]}`), nil
	})

	tr, err := c.Translation(context.Background(), "series", 1)
	if err != nil {
		t.Fatalf("Translation() error = %v", err)
	}
	if tr != nil {
		t.Errorf("translation = %+v, want nil", tr)
	}
}

func TestWatchProviders_ExtractsRegion(t *testing.T) {
	body := `{"results":{
		"UA":{"flatrate":[{"provider_id":350,"provider_name":"Apple TV+","display_priority":3}],"rent":[{"provider_id":2,"provider_name":"Apple TV","display_priority":5}]},
		"US":{"flatrate":[{"provider_id":8,"provider_name":"Netflix","display_priority":1}]}
	}}`
	c := newTestClient("en-US", func(req *http.Request) (*http.Response, error) {
		return jsonResponse(200, body), nil
	})

	rp, err := c.WatchProviders(context.Background(), "series", 95396, "ua")
	if err != nil {
		t.Fatalf("WatchProviders() error = %v", err)
	}
	if rp == nil {
		t.Fatal("expected providers for UA, got nil")
	}
	if rp.Region != "UA" {
		t.Errorf("region = %q, want UA", rp.Region)
	}
	if len(rp.Flatrate) != 1 || rp.Flatrate[0].ProviderID != 350 {
		t.Errorf("flatrate = %+v", rp.Flatrate)
	}
	if len(rp.Rent) != 1 {
		t.Errorf("rent = %+v", rp.Rent)
	}
}

func TestWatchProviders_MissingRegionReturnsNil(t *testing.T) {
	c := newTestClient("en-US", func(req *http.Request) (*http.Response, error) {
		return jsonResponse(200, `{"results":{}}`), nil
	})

	rp, err := c.WatchProviders(context.Background(), "movie", 1, "UA")
	if err != nil {
		t.Fatalf("WatchProviders() error = %v", err)
	}
	if rp != nil {
		t.Errorf("providers = %+v, want nil", rp)
	}
}

func TestContentRating_FallbackChain(t *testing.T) {
	body := `{"results":[
		{"iso_3166_1":"US","rating":"TV-MA"},
		{"iso_3166_1":"DE","rating":"16"}
	]}`
	c := newTestClient("en-US", func(req *http.Request) (*http.Response, error) {
		return jsonResponse(200, body), nil
	})

	// UA absent, US present: the fallback region wins.
	region, rating, err := c.ContentRating(context.Background(), "series", 95396, "UA", "US")
	if err != nil {
		t.Fatalf("ContentRating() error = %v", err)
	}
	if region != "US" || rating != "TV-MA" {
		t.Errorf("got %s %s, want US TV-MA", region, rating)
	}
}

func TestContentRating_MovieUsesReleaseDates(t *testing.T) {
	var gotPath string
	body := `{"results":[
		{"iso_3166_1":"US","release_dates":[{"certification":""},{"certification":"PG-13"}]}
	]}`
	c := newTestClient("en-US", func(req *http.Request) (*http.Response, error) {
		gotPath = req.URL.Path
		return jsonResponse(200, body), nil
	})

	region, rating, err := c.ContentRating(context.Background(), "movie", 77, "US", "")
	if err != nil {
		t.Fatalf("ContentRating() error = %v", err)
	}
	if gotPath != "/3/movie/77/release_dates" {
		t.Errorf("path = %q, want /3/movie/77/release_dates", gotPath)
	}
	if region != "US" || rating != "PG-13" {
		t.Errorf("got %s %s, want US PG-13", region, rating)
	}
}

func TestCredits_ShowAggregatesRoles(t *testing.T) {
	body := `{"cast":[
		{"id":1,"name":"Adam Scott","order":0,"roles":[{"character":"Mark Scout"}]},
		{"id":2,"name":"Britt Lower","order":1,"roles":[]}
	]}`
	c := newTestClient("en-US", func(req *http.Request) (*http.Response, error) {
		if req.URL.Path != "/3/tv/95396/aggregate_credits" {
			t.Errorf("path = %q, want aggregate_credits", req.URL.Path)
		}
		return jsonResponse(200, body), nil
	})

	cast, err := c.Credits(context.Background(), "series", 95396, 20)
	if err != nil {
		t.Fatalf("Credits() error = %v", err)
	}
	if len(cast) != 2 {
		t.Fatalf("got %d cast members, want 2", len(cast))
	}
	if cast[0].Character != "Mark Scout" {
		t.Errorf("character = %q, want Mark Scout", cast[0].Character)
	}
	if cast[1].Character != "" {
		t.Errorf("character = %q, want empty for roleless entry", cast[1].Character)
	}
}

func TestCredits_TruncatesToLimit(t *testing.T) {
	c := newTestClient("en-US", func(req *http.Request) (*http.Response, error) {
		return jsonResponse(200, `{"cast":[{"id":1,"name":"A"},{"id":2,"name":"B"},{"id":3,"name":"C"}]}`), nil
	})

	cast, err := c.Credits(context.Background(), "movie", 1, 2)
	if err != nil {
		t.Fatalf("Credits() error = %v", err)
	}
	if len(cast) != 2 {
		t.Errorf("got %d cast members, want 2", len(cast))
	}
}

func TestUnconfiguredClientRefusesCalls(t *testing.T) {
	c := NewClient("", "en-US", nil)
	if c.IsConfigured() {
		t.Error("IsConfigured() = true for empty key")
	}
	if _, err := c.Details(context.Background(), "movie", 1); err == nil {
		t.Error("expected error from unconfigured client")
	}
}
