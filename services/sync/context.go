package sync

import (
	"sync/atomic"

	"ratingo/config"
	"ratingo/internal/pool"
	"ratingo/services/scoring"
)

// runContext is the shared, immutable-after-setup state of one batch run:
// the normalization baseline, the monthly watcher maps, and per-run caches.
// A fresh context per run keeps lookups from one batch from leaking into the
// next.
type runContext struct {
	cfg       config.SyncSettings
	providers config.ProviderSettings

	maxWatchers int
	months      *scoring.MonthlyMaps

	// externalIDs memoizes tmdb id -> imdb id lookups for the run.
	externalIDs *pool.Cache[int64, string]

	retries atomic.Int64
}

func newRunContext(cfg config.SyncSettings, providers config.ProviderSettings) *runContext {
	return &runContext{
		cfg:         cfg,
		providers:   providers,
		months:      &scoring.MonthlyMaps{},
		externalIDs: pool.NewCache[int64, string](512, 0),
	}
}

// onRetry feeds the run's retry counter; handed to every retry wrapper in
// the pipeline.
func (rc *runContext) onRetry(attempt uint, err error) {
	rc.retries.Add(1)
}
