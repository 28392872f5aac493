package database

import (
	"context"
	"testing"

	"ratingo/models"
)

func TestQueue_JobLifecycle(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()

	seeds := []TaskSeed{
		{TmdbID: 1, TraktID: 11, Title: "A", Watchers: 100},
		{TmdbID: 2, TraktID: 22, Title: "B", Watchers: 200},
	}
	jobID, err := db.Queue.CreateJob(ctx, "series", seeds)
	if err != nil {
		t.Fatalf("CreateJob failed: %v", err)
	}

	job, err := db.Queue.GetJob(ctx, jobID)
	if err != nil {
		t.Fatalf("GetJob failed: %v", err)
	}
	if job == nil {
		t.Fatal("expected job to exist")
	}
	if job.Status != models.SyncStatusPending || job.Total != 2 {
		t.Errorf("unexpected job state %+v", job)
	}

	if err := db.Queue.StartJob(ctx, jobID); err != nil {
		t.Fatalf("StartJob failed: %v", err)
	}

	first, err := db.Queue.ClaimNextTask(ctx, jobID)
	if err != nil {
		t.Fatalf("ClaimNextTask failed: %v", err)
	}
	if first == nil || first.TmdbID != 1 {
		t.Fatalf("expected first seeded task, got %+v", first)
	}
	if first.Status != models.SyncStatusProcessing || first.Attempts != 1 {
		t.Errorf("expected processing with 1 attempt, got %+v", first)
	}

	if err := db.Queue.CompleteTask(ctx, first.ID); err != nil {
		t.Fatalf("CompleteTask failed: %v", err)
	}

	second, err := db.Queue.ClaimNextTask(ctx, jobID)
	if err != nil {
		t.Fatalf("ClaimNextTask failed: %v", err)
	}
	if second == nil || second.TmdbID != 2 {
		t.Fatalf("expected second seeded task, got %+v", second)
	}
	if err := db.Queue.FailTask(ctx, second.ID, "tmdb details: 500"); err != nil {
		t.Fatalf("FailTask failed: %v", err)
	}

	// Queue drained.
	none, err := db.Queue.ClaimNextTask(ctx, jobID)
	if err != nil {
		t.Fatalf("ClaimNextTask failed: %v", err)
	}
	if none != nil {
		t.Fatalf("expected no pending tasks, got %+v", none)
	}

	if err := db.Queue.FinishJob(ctx, jobID, ""); err != nil {
		t.Fatalf("FinishJob failed: %v", err)
	}
	job, err = db.Queue.GetJob(ctx, jobID)
	if err != nil {
		t.Fatalf("GetJob failed: %v", err)
	}
	if job.Status != models.SyncStatusDone {
		t.Errorf("expected done job, got %s", job.Status)
	}
	if job.Done != 1 || job.Failed != 1 {
		t.Errorf("expected counters done=1 failed=1, got done=%d failed=%d", job.Done, job.Failed)
	}
	if job.StartedAt == nil || job.FinishedAt == nil {
		t.Error("expected start and finish timestamps")
	}

	tasks, err := db.Queue.JobTasks(ctx, jobID)
	if err != nil {
		t.Fatalf("JobTasks failed: %v", err)
	}
	if len(tasks) != 2 {
		t.Fatalf("expected 2 tasks, got %d", len(tasks))
	}
	if tasks[1].Status != models.SyncStatusError || tasks[1].LastError == "" {
		t.Errorf("expected failed second task with error, got %+v", tasks[1])
	}
}

func TestQueue_GetJobUnknown(t *testing.T) {
	db := setupTestDB(t)

	job, err := db.Queue.GetJob(context.Background(), "no-such-job")
	if err != nil {
		t.Fatalf("GetJob failed: %v", err)
	}
	if job != nil {
		t.Fatalf("expected nil for unknown job, got %+v", job)
	}
}

func TestQueue_ListJobs(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		if _, err := db.Queue.CreateJob(ctx, "movie", nil); err != nil {
			t.Fatalf("CreateJob failed: %v", err)
		}
	}
	jobs, err := db.Queue.ListJobs(ctx, 2)
	if err != nil {
		t.Fatalf("ListJobs failed: %v", err)
	}
	if len(jobs) != 2 {
		t.Fatalf("expected 2 jobs, got %d", len(jobs))
	}
}
