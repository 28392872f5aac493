package scoring

import "math"

// Trending score and watcher-delta computation. Everything here is a pure
// function over the shared per-batch inputs so all items in one run observe
// the same normalization baseline.

// minMaxWatchers floors the normalization constant so sparse batches do not
// blow the watcher component up to 50 for every item.
const minMaxWatchers = 10000

// TrendingScore combines a 0-10 rating and a batch-normalized watcher count
// into a 0-100 integer. Ratings outside [0,10] are clamped first.
func TrendingScore(rating float64, watchers, maxWatchers int) int {
	if maxWatchers < minMaxWatchers {
		maxWatchers = minMaxWatchers
	}
	r := clamp(rating, 0, 10)
	w := float64(watchers) / float64(maxWatchers)
	if w > 1 {
		w = 1
	}
	return int(math.Round(r*5 + w*50))
}

// MonthlyMaps holds six months of watcher counts keyed by trakt id,
// index 0 being the current month. Built once per batch and immutable for
// its duration.
type MonthlyMaps struct {
	Months [6]map[int64]int
}

// Lookup returns the watcher count for id in month index m and whether the
// id was present at all.
func (mm *MonthlyMaps) Lookup(m int, id int64) (int, bool) {
	if m < 0 || m >= len(mm.Months) || mm.Months[m] == nil {
		return 0, false
	}
	v, ok := mm.Months[m][id]
	return v, ok
}

// Deltas carries the momentum signals for one item.
type Deltas struct {
	// Delta3m is recent-3-months minus prior-3-months watcher sum.
	Delta3m int
	// Delta3mAmbiguous is set when Delta3m is exactly zero, which cannot be
	// told apart from missing monthly data; a snapshot fallback applies.
	Delta3mAmbiguous bool
	// WatchersDelta is the month-over-month change.
	WatchersDelta int
}

// ComputeDeltas derives the momentum signals for a trakt id. prevValue is
// the rating-average proxy stored on the row by the previous pass, used as a
// last-resort baseline when no monthly data exists for the id.
func ComputeDeltas(traktID int64, watchers int, prevValue float64, months *MonthlyMaps) Deltas {
	var recent, prior int
	for m := 0; m < 3; m++ {
		if v, ok := months.Lookup(m, traktID); ok {
			recent += v
		}
	}
	for m := 3; m < 6; m++ {
		if v, ok := months.Lookup(m, traktID); ok {
			prior += v
		}
	}

	d := Deltas{Delta3m: recent - prior}
	if d.Delta3m == 0 {
		d.Delta3mAmbiguous = true
	}

	m0, ok0 := months.Lookup(0, traktID)
	m1, ok1 := months.Lookup(1, traktID)
	switch {
	case ok0 && ok1:
		d.WatchersDelta = m0 - m1
	case prevValue > 0:
		d.WatchersDelta = watchers - int(prevValue)
	default:
		d.WatchersDelta = 0
	}

	return d
}

// SnapshotDelta3m recomputes the 3-vs-3 delta from the item's most recent
// watcher snapshots (newest first), the secondary signal when monthly maps
// yield an ambiguous zero. Fewer than six snapshots compare whatever halves
// exist.
func SnapshotDelta3m(watcherCounts []int) int {
	if len(watcherCounts) == 0 {
		return 0
	}
	if len(watcherCounts) > 6 {
		watcherCounts = watcherCounts[:6]
	}
	half := len(watcherCounts) / 2
	if half == 0 {
		return 0
	}
	var recent, prior int
	for _, v := range watcherCounts[:half] {
		recent += v
	}
	for _, v := range watcherCounts[len(watcherCounts)-half:] {
		prior += v
	}
	return recent - prior
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
