package scoring

import (
	"math"
	"time"
)

// The Ratingo Score is the display-oriented composite of popularity,
// quality, vote confidence and freshness. It ranks the catalog; it never
// gates ingestion.

const (
	// Component weights; they sum to 1.
	weightPopularity = 0.30
	weightQuality    = 0.40
	weightConfidence = 0.15
	weightFreshness  = 0.15

	// Popularity normalization anchors.
	popularityWatcherCeil = 100000 // log scale saturates here
	popularityMetricCeil  = 1000   // linear provider popularity metric

	// Vote confidence: 1 - e^(-votes/k).
	confidenceK = 500

	// Freshness decay and its floor; an unknown release date scores the floor.
	freshnessDecayDays = 180.0
	freshnessFloor     = 0.2

	// Items below this cross-source vote total get the junk penalty.
	lowVoteThreshold = 100
	lowVotePenalty   = 0.7

	// Neutral midpoint used when no rating source is present.
	neutralRating = 5.0
)

// Source weights for the quality component. Absent sources drop out and the
// remaining weights are re-normalized.
var qualityWeights = map[string]float64{
	"imdb":       0.40,
	"trakt":      0.25,
	"tmdb":       0.20,
	"metacritic": 0.15,
}

// ScoreInput is everything the composite needs, pre-normalized to a 0-10
// rating scale per source.
type ScoreInput struct {
	Watchers   int
	Popularity float64
	Ratings    map[string]float64 // source -> 0-10
	TotalVotes int
	// ReleaseDate in YYYY-MM-DD form; empty means unknown.
	ReleaseDate string
}

// ScoreBreakdown carries the composite and its sub-scores, each clamped to
// its documented range before being returned.
type ScoreBreakdown struct {
	Popularity float64 `json:"popularity"` // [0,1]
	Quality    float64 `json:"quality"`    // [0,1]
	Confidence float64 `json:"confidence"` // [0,1]
	Freshness  float64 `json:"freshness"`  // [floor,1]
	Penalized  bool    `json:"penalized"`
	Score      float64 `json:"score"` // [0,100]
}

// RatingoScore computes the composite score at the given reference time.
func RatingoScore(in ScoreInput, now time.Time) ScoreBreakdown {
	b := ScoreBreakdown{
		Popularity: popularityScore(in.Watchers, in.Popularity),
		Quality:    clamp(WeightedRating(in.Ratings)/10, 0, 1),
		Confidence: confidenceScore(in.TotalVotes),
		Freshness:  freshnessScore(in.ReleaseDate, now),
	}

	score := weightPopularity*b.Popularity +
		weightQuality*b.Quality +
		weightConfidence*b.Confidence +
		weightFreshness*b.Freshness
	score *= 100

	if in.TotalVotes < lowVoteThreshold {
		// Suppress new junk: few votes with extreme ratings should not
		// outrank established titles.
		score *= lowVotePenalty
		b.Penalized = true
	}

	b.Score = clamp(score, 0, 100)
	return b
}

// WeightedRating averages the present sources on a 0-10 scale with weights
// re-normalized over what is actually present. No sources at all yields the
// neutral midpoint.
func WeightedRating(ratings map[string]float64) float64 {
	var sum, weightSum float64
	for source, value := range ratings {
		w, ok := qualityWeights[source]
		if !ok {
			continue
		}
		sum += clamp(value, 0, 10) * w
		weightSum += w
	}
	if weightSum == 0 {
		return neutralRating
	}
	return sum / weightSum
}

func popularityScore(watchers int, popularity float64) float64 {
	if watchers < 0 {
		watchers = 0
	}
	logPart := math.Log1p(float64(watchers)) / math.Log1p(popularityWatcherCeil)
	linPart := clamp(popularity/popularityMetricCeil, 0, 1)
	return clamp(0.6*logPart+0.4*linPart, 0, 1)
}

func confidenceScore(totalVotes int) float64 {
	if totalVotes <= 0 {
		return 0
	}
	return clamp(1-math.Exp(-float64(totalVotes)/confidenceK), 0, 1)
}

func freshnessScore(releaseDate string, now time.Time) float64 {
	if releaseDate == "" {
		return freshnessFloor
	}
	released, err := time.Parse("2006-01-02", releaseDate)
	if err != nil {
		return freshnessFloor
	}
	days := now.Sub(released).Hours() / 24
	if days < 0 {
		days = 0
	}
	f := math.Exp(-days / freshnessDecayDays)
	if f < freshnessFloor {
		return freshnessFloor
	}
	return clamp(f, 0, 1)
}
