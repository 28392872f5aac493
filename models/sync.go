package models

import "time"

// Sync run bookkeeping: per-item results, run summaries, and the durable
// job/task queue rows.

// ItemResult is what the reconciliation engine returns for one trending item.
// Business-rule skips are not errors; a non-empty Error means the item failed
// but the batch carried on.
type ItemResult struct {
	TmdbID     int64  `json:"tmdbId"`
	Title      string `json:"title,omitempty"`
	Added      bool   `json:"added"`
	Updated    bool   `json:"updated"`
	Skipped    bool   `json:"skipped"`
	SkipReason string `json:"skipReason,omitempty"`

	SnapshotInserted bool `json:"snapshotInserted"`
	Buckets          int  `json:"buckets"`
	Providers        int  `json:"providers"`
	ContentRatings   int  `json:"contentRatings"`
	Cast             int  `json:"cast"`
	Videos           int  `json:"videos"`
	Related          int  `json:"related"`

	Error string `json:"error,omitempty"`
}

// PhaseResult summarizes one post-processing phase (backfill, calendar, prune).
type PhaseResult struct {
	Name       string `json:"name"`
	Items      int    `json:"items"`
	DurationMs int64  `json:"durationMs"`
	Error      string `json:"error,omitempty"`
}

// RunResult is the contract handed back to whatever triggered the sync.
type RunResult struct {
	MediaType string    `json:"mediaType"` // series | movie
	StartedAt time.Time `json:"startedAt"`

	Total     int `json:"total"`
	Added     int `json:"added"`
	Updated   int `json:"updated"`
	Skipped   int `json:"skipped"`
	Failed    int `json:"failed"`
	Snapshots int `json:"snapshots"`
	Retries   int `json:"retries"`

	Phases     []PhaseResult `json:"phases,omitempty"`
	Errors     []string      `json:"errors,omitempty"`
	DurationMs int64         `json:"durationMs"`
}

// Queue states for the job/task execution model.
const (
	SyncStatusPending    = "pending"
	SyncStatusProcessing = "processing"
	SyncStatusDone       = "done"
	SyncStatusError      = "error"
)

// SyncJob is one queued sync run.
type SyncJob struct {
	ID         string     `json:"id"`
	MediaType  string     `json:"mediaType"`
	Status     string     `json:"status"`
	Total      int        `json:"total"`
	Done       int        `json:"done"`
	Failed     int        `json:"failed"`
	CreatedAt  time.Time  `json:"createdAt"`
	StartedAt  *time.Time `json:"startedAt,omitempty"`
	FinishedAt *time.Time `json:"finishedAt,omitempty"`
	Error      string     `json:"error,omitempty"`
}

// SyncTask is one item to process within a job. Status moves
// pending -> processing -> done | error; attempts increments on every
// transition into processing. Errored tasks keep LastError and are not
// retried by this layer.
type SyncTask struct {
	ID        int64     `json:"id"`
	JobID     string    `json:"jobId"`
	TmdbID    int64     `json:"tmdbId"`
	TraktID   int64     `json:"traktId,omitempty"`
	Title     string    `json:"title,omitempty"`
	Watchers  int       `json:"watchers"`
	Status    string    `json:"status"`
	Attempts  int       `json:"attempts"`
	LastError string    `json:"lastError,omitempty"`
	UpdatedAt time.Time `json:"updatedAt"`
}
