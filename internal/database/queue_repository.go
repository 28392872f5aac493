package database

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"

	"ratingo/models"
)

// QueueRepository is the durable job/task queue behind the admin-triggered
// sync runs. One job per run, one task per trending item.
type QueueRepository struct {
	db *sql.DB
}

// TaskSeed is one item to enqueue when a job is created.
type TaskSeed struct {
	TmdbID   int64
	TraktID  int64
	Title    string
	Watchers int
}

// CreateJob inserts a pending job with its task list in one transaction and
// returns the job id.
func (r *QueueRepository) CreateJob(ctx context.Context, mediaType string, seeds []TaskSeed) (string, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return "", fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback()

	jobID := uuid.NewString()
	if _, err := tx.ExecContext(ctx, `
		INSERT INTO sync_jobs (id, media_type, status, total)
		VALUES (?, ?, ?, ?)`,
		jobID, mediaType, models.SyncStatusPending, len(seeds)); err != nil {
		return "", fmt.Errorf("insert job: %w", err)
	}
	for _, s := range seeds {
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO sync_tasks (job_id, tmdb_id, trakt_id, title, watchers, status)
			VALUES (?, ?, ?, ?, ?, ?)`,
			jobID, s.TmdbID, s.TraktID, s.Title, s.Watchers, models.SyncStatusPending); err != nil {
			return "", fmt.Errorf("insert task %d: %w", s.TmdbID, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return "", fmt.Errorf("commit: %w", err)
	}
	return jobID, nil
}

// StartJob marks a job processing and stamps its start time.
func (r *QueueRepository) StartJob(ctx context.Context, jobID string) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE sync_jobs SET status = ?, started_at = ?
		WHERE id = ? AND status = ?`,
		models.SyncStatusProcessing, time.Now().UTC(), jobID, models.SyncStatusPending)
	if err != nil {
		return fmt.Errorf("start job %s: %w", jobID, err)
	}
	return nil
}

// ClaimNextTask atomically moves one pending task of the job to processing
// and increments its attempt counter. Returns nil when no task is pending.
func (r *QueueRepository) ClaimNextTask(ctx context.Context, jobID string) (*models.SyncTask, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback()

	var t models.SyncTask
	err = tx.QueryRowContext(ctx, `
		SELECT id, job_id, tmdb_id, trakt_id, title, watchers, status, attempts, last_error, updated_at
		FROM sync_tasks
		WHERE job_id = ? AND status = ?
		ORDER BY id ASC
		LIMIT 1`, jobID, models.SyncStatusPending).Scan(
		&t.ID, &t.JobID, &t.TmdbID, &t.TraktID, &t.Title, &t.Watchers,
		&t.Status, &t.Attempts, &t.LastError, &t.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("claim task: %w", err)
	}

	if _, err := tx.ExecContext(ctx, `
		UPDATE sync_tasks SET status = ?, attempts = attempts + 1, updated_at = CURRENT_TIMESTAMP
		WHERE id = ?`,
		models.SyncStatusProcessing, t.ID); err != nil {
		return nil, fmt.Errorf("mark task processing: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit: %w", err)
	}
	t.Status = models.SyncStatusProcessing
	t.Attempts++
	return &t, nil
}

// CompleteTask marks a task done and bumps the job's done counter.
func (r *QueueRepository) CompleteTask(ctx context.Context, taskID int64) error {
	return r.finishTask(ctx, taskID, models.SyncStatusDone, "")
}

// FailTask marks a task errored with its final error message and bumps the
// job's failed counter.
func (r *QueueRepository) FailTask(ctx context.Context, taskID int64, taskErr string) error {
	return r.finishTask(ctx, taskID, models.SyncStatusError, taskErr)
}

func (r *QueueRepository) finishTask(ctx context.Context, taskID int64, status, taskErr string) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback()

	var jobID string
	if err := tx.QueryRowContext(ctx,
		`SELECT job_id FROM sync_tasks WHERE id = ?`, taskID).Scan(&jobID); err != nil {
		return fmt.Errorf("lookup task %d: %w", taskID, err)
	}
	if _, err := tx.ExecContext(ctx, `
		UPDATE sync_tasks SET status = ?, last_error = ?, updated_at = CURRENT_TIMESTAMP
		WHERE id = ?`, status, taskErr, taskID); err != nil {
		return fmt.Errorf("update task %d: %w", taskID, err)
	}

	counter := "done"
	if status == models.SyncStatusError {
		counter = "failed"
	}
	if _, err := tx.ExecContext(ctx,
		`UPDATE sync_jobs SET `+counter+` = `+counter+` + 1 WHERE id = ?`, jobID); err != nil {
		return fmt.Errorf("update job %s counters: %w", jobID, err)
	}
	return tx.Commit()
}

// FinishJob stamps the job's terminal state once all tasks settled.
func (r *QueueRepository) FinishJob(ctx context.Context, jobID string, jobErr string) error {
	status := models.SyncStatusDone
	if jobErr != "" {
		status = models.SyncStatusError
	}
	_, err := r.db.ExecContext(ctx, `
		UPDATE sync_jobs SET status = ?, error = ?, finished_at = ?
		WHERE id = ?`,
		status, jobErr, time.Now().UTC(), jobID)
	if err != nil {
		return fmt.Errorf("finish job %s: %w", jobID, err)
	}
	return nil
}

// GetJob returns one job or nil when the id is unknown.
func (r *QueueRepository) GetJob(ctx context.Context, jobID string) (*models.SyncJob, error) {
	var j models.SyncJob
	var startedAt, finishedAt sql.NullTime
	err := r.db.QueryRowContext(ctx, `
		SELECT id, media_type, status, total, done, failed, created_at, started_at, finished_at, error
		FROM sync_jobs WHERE id = ?`, jobID).Scan(
		&j.ID, &j.MediaType, &j.Status, &j.Total, &j.Done, &j.Failed,
		&j.CreatedAt, &startedAt, &finishedAt, &j.Error)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get job %s: %w", jobID, err)
	}
	if startedAt.Valid {
		j.StartedAt = &startedAt.Time
	}
	if finishedAt.Valid {
		j.FinishedAt = &finishedAt.Time
	}
	return &j, nil
}

// ListJobs returns the most recent jobs, newest first.
func (r *QueueRepository) ListJobs(ctx context.Context, limit int) ([]models.SyncJob, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, media_type, status, total, done, failed, created_at, started_at, finished_at, error
		FROM sync_jobs
		ORDER BY created_at DESC
		LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("list jobs: %w", err)
	}
	defer rows.Close()

	var jobs []models.SyncJob
	for rows.Next() {
		var j models.SyncJob
		var startedAt, finishedAt sql.NullTime
		if err := rows.Scan(&j.ID, &j.MediaType, &j.Status, &j.Total, &j.Done, &j.Failed,
			&j.CreatedAt, &startedAt, &finishedAt, &j.Error); err != nil {
			return nil, fmt.Errorf("scan job: %w", err)
		}
		if startedAt.Valid {
			j.StartedAt = &startedAt.Time
		}
		if finishedAt.Valid {
			j.FinishedAt = &finishedAt.Time
		}
		jobs = append(jobs, j)
	}
	return jobs, rows.Err()
}

// JobTasks lists a job's tasks in insertion order.
func (r *QueueRepository) JobTasks(ctx context.Context, jobID string) ([]models.SyncTask, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, job_id, tmdb_id, trakt_id, title, watchers, status, attempts, last_error, updated_at
		FROM sync_tasks
		WHERE job_id = ?
		ORDER BY id ASC`, jobID)
	if err != nil {
		return nil, fmt.Errorf("list tasks %s: %w", jobID, err)
	}
	defer rows.Close()

	var tasks []models.SyncTask
	for rows.Next() {
		var t models.SyncTask
		if err := rows.Scan(&t.ID, &t.JobID, &t.TmdbID, &t.TraktID, &t.Title, &t.Watchers,
			&t.Status, &t.Attempts, &t.LastError, &t.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan task: %w", err)
		}
		tasks = append(tasks, t)
	}
	return tasks, rows.Err()
}
