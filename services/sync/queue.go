package sync

import (
	"context"
	"fmt"
	"log"
	"time"

	"ratingo/internal/database"
	"ratingo/internal/pool"
	"ratingo/models"
	"ratingo/services/trakt"
)

// EnqueueRun snapshots the current trending list into a durable job and
// returns the job id. The job survives a process restart; RunJob picks up
// whatever tasks are still pending.
func (s *Service) EnqueueRun(ctx context.Context, mediaType string) (string, error) {
	if mediaType != MediaTypeSeries && mediaType != MediaTypeMovie {
		return "", fmt.Errorf("unknown media type %q", mediaType)
	}

	rctx := newRunContext(s.cfg, s.providers)
	trending, err := pool.Retry(ctx, rctx.onRetry, func() ([]trakt.TrendingItem, error) {
		return s.trakt.Trending(ctx, traktMediaType(mediaType), s.cfg.TrendingLimit)
	})
	if err != nil {
		return "", fmt.Errorf("fetch trending %s: %w", mediaType, err)
	}

	seeds := make([]database.TaskSeed, 0, len(trending))
	for _, item := range trending {
		ids := item.ItemIDs()
		seeds = append(seeds, database.TaskSeed{
			TmdbID:   ids.TMDB,
			TraktID:  ids.Trakt,
			Title:    item.Title(),
			Watchers: item.Watchers,
		})
	}
	jobID, err := s.db.Queue.CreateJob(ctx, mediaType, seeds)
	if err != nil {
		return "", err
	}
	log.Printf("[sync] Enqueued %s job %s with %d tasks", mediaType, jobID, len(seeds))
	return jobID, nil
}

// RunJob drains a queued job through the same reconciliation engine the
// direct batch path uses. Tasks settle individually; an errored task keeps
// its last error and is not retried here.
func (s *Service) RunJob(ctx context.Context, jobID string) error {
	job, err := s.db.Queue.GetJob(ctx, jobID)
	if err != nil {
		return err
	}
	if job == nil {
		return fmt.Errorf("job %s not found", jobID)
	}

	timeout := time.Duration(s.cfg.RunTimeoutMinutes) * time.Minute
	if timeout <= 0 {
		timeout = 20 * time.Minute
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	if err := s.db.Queue.StartJob(ctx, jobID); err != nil {
		return err
	}

	tasks, err := s.db.Queue.JobTasks(ctx, jobID)
	if err != nil {
		return err
	}

	rctx := newRunContext(s.cfg, s.providers)
	for _, t := range tasks {
		if t.Watchers > rctx.maxWatchers {
			rctx.maxWatchers = t.Watchers
		}
	}
	rctx.months = s.buildMonthlyMaps(ctx, traktMediaType(job.MediaType))

	concurrency := s.cfg.Concurrency
	if concurrency <= 0 {
		concurrency = pool.DefaultWorkers
	}

	// Workers claim tasks until the queue is drained. Claiming is atomic so
	// workers never double-process a task.
	type claim struct{}
	slots := make([]claim, len(tasks))
	pool.Map(ctx, slots, concurrency, func(ctx context.Context, _ claim) struct{} {
		for {
			task, err := s.db.Queue.ClaimNextTask(ctx, jobID)
			if err != nil {
				log.Printf("[sync] Claim failed for job %s: %v", jobID, err)
				return struct{}{}
			}
			if task == nil {
				return struct{}{}
			}

			item := taskItem(job.MediaType, *task)
			res := s.processItem(ctx, rctx, item, job.MediaType)
			switch {
			case res.Error != "":
				if err := s.db.Queue.FailTask(ctx, task.ID, res.Error); err != nil {
					log.Printf("[sync] FailTask %d: %v", task.ID, err)
				}
			default:
				if err := s.db.Queue.CompleteTask(ctx, task.ID); err != nil {
					log.Printf("[sync] CompleteTask %d: %v", task.ID, err)
				}
			}
			if ctx.Err() != nil {
				return struct{}{}
			}
		}
	})

	jobErr := ""
	if err := ctx.Err(); err != nil {
		jobErr = fmt.Sprintf("run aborted: %v", err)
	}
	// The job row must settle even when the run deadline killed ctx.
	if err := s.db.Queue.FinishJob(context.WithoutCancel(ctx), jobID, jobErr); err != nil {
		return err
	}
	log.Printf("[sync] Job %s finished", jobID)
	return nil
}

// taskItem rebuilds a trending item from its persisted seed.
func taskItem(mediaType string, t models.SyncTask) trakt.TrendingItem {
	ids := trakt.IDs{Trakt: t.TraktID, TMDB: t.TmdbID}
	if mediaType == MediaTypeMovie {
		return trakt.TrendingItem{
			Watchers: t.Watchers,
			Movie:    &trakt.Movie{Title: t.Title, IDs: ids},
		}
	}
	return trakt.TrendingItem{
		Watchers: t.Watchers,
		Show:     &trakt.Show{Title: t.Title, IDs: ids},
	}
}
