package omdb

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

func newTestClient(rt roundTripFunc) *Client {
	return NewClient("test-key", &http.Client{Transport: rt})
}

func TestGetRatings_ParsesFullPayload(t *testing.T) {
	var gotQuery string
	body := `{
		"Response":"True",
		"imdbRating":"8.7",
		"imdbVotes":"512,345",
		"Ratings":[
			{"Source":"Internet Movie Database","Value":"8.7/10"},
			{"Source":"Rotten Tomatoes","Value":"97%"},
			{"Source":"Metacritic","Value":"84/100"}
		]
	}`
	c := newTestClient(func(req *http.Request) (*http.Response, error) {
		gotQuery = req.URL.RawQuery
		return jsonResponse(200, body), nil
	})

	r, err := c.GetRatings(context.Background(), "tt11280740")
	if err != nil {
		t.Fatalf("GetRatings() error = %v", err)
	}

	if gotQuery != "apikey=test-key&i=tt11280740" {
		t.Errorf("query = %q", gotQuery)
	}
	if r.ImdbRating == nil || *r.ImdbRating != 8.7 {
		t.Errorf("imdb rating = %v, want 8.7", r.ImdbRating)
	}
	if r.ImdbVotes == nil || *r.ImdbVotes != 512345 {
		t.Errorf("imdb votes = %v, want 512345", r.ImdbVotes)
	}
	if r.RottenTomatoes == nil || *r.RottenTomatoes != 97 {
		t.Errorf("rotten tomatoes = %v, want 97", r.RottenTomatoes)
	}
	if r.Metacritic == nil || *r.Metacritic != 84 {
		t.Errorf("metacritic = %v, want 84", r.Metacritic)
	}
	if len(r.Unparsed) != 0 {
		t.Errorf("unparsed = %v, want empty", r.Unparsed)
	}
}

func TestGetRatings_PrefixesBareID(t *testing.T) {
	var gotQuery string
	c := newTestClient(func(req *http.Request) (*http.Response, error) {
		gotQuery = req.URL.RawQuery
		return jsonResponse(200, `{"Response":"True","imdbRating":"7.0","imdbVotes":"100"}`), nil
	})

	if _, err := c.GetRatings(context.Background(), "0944947"); err != nil {
		t.Fatalf("GetRatings() error = %v", err)
	}
	if gotQuery != "apikey=test-key&i=tt0944947" {
		t.Errorf("query = %q, want tt prefix added", gotQuery)
	}
}

func TestGetRatings_NotFound(t *testing.T) {
	c := newTestClient(func(req *http.Request) (*http.Response, error) {
		return jsonResponse(200, `{"Response":"False","Error":"Incorrect IMDb ID."}`), nil
	})

	_, err := c.GetRatings(context.Background(), "tt0000000")
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("error = %v, want ErrNotFound", err)
	}
}

func TestGetRatings_CachesByID(t *testing.T) {
	calls := 0
	c := newTestClient(func(req *http.Request) (*http.Response, error) {
		calls++
		return jsonResponse(200, `{"Response":"True","imdbRating":"8.0","imdbVotes":"1,000"}`), nil
	})

	for i := 0; i < 2; i++ {
		if _, err := c.GetRatings(context.Background(), "tt1234567"); err != nil {
			t.Fatalf("GetRatings() call %d error = %v", i+1, err)
		}
	}
	if calls != 1 {
		t.Errorf("transport hit %d times, want 1", calls)
	}
}

func TestGetRatings_ServerError(t *testing.T) {
	c := newTestClient(func(req *http.Request) (*http.Response, error) {
		return jsonResponse(http.StatusUnauthorized, `{}`), nil
	})

	_, err := c.GetRatings(context.Background(), "tt1234567")

	var statusErr *StatusError
	if !errors.As(err, &statusErr) {
		t.Fatalf("error = %v, want *StatusError", err)
	}
	if statusErr.Status != http.StatusUnauthorized {
		t.Errorf("status = %d, want 401", statusErr.Status)
	}
}

func TestParseRatings_NAFieldsStayNil(t *testing.T) {
	r := parseRatings(omdbResponse{
		Response:   "True",
		ImdbRating: "N/A",
		ImdbVotes:  "N/A",
	})

	if r.ImdbRating != nil || r.ImdbVotes != nil {
		t.Errorf("ratings = %+v, want all nil for N/A", r)
	}
	if len(r.Unparsed) != 0 {
		t.Errorf("unparsed = %v, N/A should not be recorded", r.Unparsed)
	}
}

func TestParseRatings_UnknownFormatsLandInUnparsed(t *testing.T) {
	payload := omdbResponse{
		Response:   "True",
		ImdbRating: "great",
		ImdbVotes:  "many",
	}
	payload.Ratings = []struct {
		Source string `json:"Source"`
		Value  string `json:"Value"`
	}{
		{Source: "Rotten Tomatoes", Value: "fresh"},
		{Source: "Metacritic", Value: "84 of 100"},
	}

	r := parseRatings(payload)

	if r.ImdbRating != nil || r.ImdbVotes != nil || r.RottenTomatoes != nil || r.Metacritic != nil {
		t.Errorf("ratings = %+v, want all nil", r)
	}
	if len(r.Unparsed) != 4 {
		t.Errorf("unparsed = %v, want 4 entries", r.Unparsed)
	}
}

func TestParseRatings_IMDBFallbackFromRatingsList(t *testing.T) {
	payload := omdbResponse{Response: "True", ImdbRating: "N/A"}
	payload.Ratings = []struct {
		Source string `json:"Source"`
		Value  string `json:"Value"`
	}{
		{Source: "Internet Movie Database", Value: "8.5/10"},
	}

	r := parseRatings(payload)
	if r.ImdbRating == nil || *r.ImdbRating != 8.5 {
		t.Errorf("imdb rating = %v, want 8.5 from Ratings fallback", r.ImdbRating)
	}
}

func TestGetRatings_EmptyIDRejected(t *testing.T) {
	c := newTestClient(func(req *http.Request) (*http.Response, error) {
		t.Fatal("transport should not be hit")
		return nil, nil
	})

	if _, err := c.GetRatings(context.Background(), "  "); err == nil {
		t.Error("expected error for empty imdb id")
	}
}
