package scoring

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var scoreNow = time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)

func TestWeightedRatingRenormalizesPresentSources(t *testing.T) {
	got := WeightedRating(map[string]float64{"imdb": 8.0, "trakt": 7.0})
	// (8.0*0.4 + 7.0*0.25) / (0.4+0.25)
	assert.InDelta(t, 7.615, got, 0.001)
}

func TestWeightedRatingDefaultsToNeutral(t *testing.T) {
	assert.Equal(t, 5.0, WeightedRating(nil))
	assert.Equal(t, 5.0, WeightedRating(map[string]float64{"letterboxd": 4.2}))
}

func TestRatingoScoreNoRatingsStaysInRange(t *testing.T) {
	b := RatingoScore(ScoreInput{Watchers: 100}, scoreNow)
	assert.InDelta(t, 0.5, b.Quality, 0.0001)
	assert.GreaterOrEqual(t, b.Score, 0.0)
	assert.LessOrEqual(t, b.Score, 100.0)
}

func TestRatingoScoreLowVotePenalty(t *testing.T) {
	in := ScoreInput{
		Watchers:    5000,
		Popularity:  300,
		Ratings:     map[string]float64{"imdb": 9.0},
		ReleaseDate: "2026-07-01",
	}

	in.TotalVotes = 99
	penalized := RatingoScore(in, scoreNow)
	in.TotalVotes = 100
	unpenalized := RatingoScore(in, scoreNow)

	require.True(t, penalized.Penalized)
	require.False(t, unpenalized.Penalized)
	assert.Less(t, penalized.Score, unpenalized.Score)
}

func TestFreshnessDecaysButNeverBelowFloor(t *testing.T) {
	today := RatingoScore(ScoreInput{ReleaseDate: scoreNow.Format("2006-01-02"), TotalVotes: 500}, scoreNow)
	ancient := RatingoScore(ScoreInput{ReleaseDate: "1990-01-01", TotalVotes: 500}, scoreNow)

	assert.Greater(t, today.Freshness, ancient.Freshness)
	assert.Equal(t, 0.2, ancient.Freshness)
}

func TestFreshnessUnknownReleaseGetsFloor(t *testing.T) {
	b := RatingoScore(ScoreInput{TotalVotes: 500}, scoreNow)
	assert.Equal(t, 0.2, b.Freshness)

	malformed := RatingoScore(ScoreInput{ReleaseDate: "sometime", TotalVotes: 500}, scoreNow)
	assert.Equal(t, 0.2, malformed.Freshness)
}

func TestRatingoScoreSubScoresClamped(t *testing.T) {
	b := RatingoScore(ScoreInput{
		Watchers:    10_000_000,
		Popularity:  1e9,
		Ratings:     map[string]float64{"imdb": 25},
		TotalVotes:  5_000_000,
		ReleaseDate: scoreNow.AddDate(1, 0, 0).Format("2006-01-02"), // future release
	}, scoreNow)

	assert.LessOrEqual(t, b.Popularity, 1.0)
	assert.LessOrEqual(t, b.Quality, 1.0)
	assert.LessOrEqual(t, b.Confidence, 1.0)
	assert.LessOrEqual(t, b.Freshness, 1.0)
	assert.LessOrEqual(t, b.Score, 100.0)
}

func TestConfidenceGrowsWithVotes(t *testing.T) {
	few := RatingoScore(ScoreInput{TotalVotes: 150}, scoreNow)
	many := RatingoScore(ScoreInput{TotalVotes: 5000}, scoreNow)
	assert.Greater(t, many.Confidence, few.Confidence)
}
