package handlers

import (
	"context"
	"encoding/json"
	"log"
	"net/http"

	"github.com/gorilla/mux"

	"ratingo/internal/database"
	"ratingo/services/sync"
)

// SyncHandler exposes the admin endpoints that trigger and inspect sync runs.
type SyncHandler struct {
	db          *database.DB
	syncService *sync.Service
}

// NewSyncHandler creates a new sync handler.
func NewSyncHandler(db *database.DB, syncService *sync.Service) *SyncHandler {
	return &SyncHandler{db: db, syncService: syncService}
}

// TriggerShows starts a trending shows run.
// POST /api/sync/shows
func (h *SyncHandler) TriggerShows(w http.ResponseWriter, r *http.Request) {
	h.trigger(w, r, sync.MediaTypeSeries)
}

// TriggerMovies starts a trending movies run.
// POST /api/sync/movies
func (h *SyncHandler) TriggerMovies(w http.ResponseWriter, r *http.Request) {
	h.trigger(w, r, sync.MediaTypeMovie)
}

// trigger enqueues a durable job and drains it in the background so the
// request returns immediately with the job id.
func (h *SyncHandler) trigger(w http.ResponseWriter, r *http.Request, mediaType string) {
	if h.syncService.IsRunning(mediaType) {
		writeJSONStatus(w, http.StatusConflict, map[string]interface{}{
			"error": mediaType + " sync already running",
		})
		return
	}

	jobID, err := h.syncService.EnqueueRun(r.Context(), mediaType)
	if err != nil {
		writeJSONStatus(w, http.StatusBadGateway, map[string]interface{}{
			"error": "Failed to enqueue sync: " + err.Error(),
		})
		return
	}

	go func() {
		if err := h.syncService.RunJob(context.Background(), jobID); err != nil {
			log.Printf("[sync] Job %s failed: %v", jobID, err)
		}
	}()

	writeJSONStatus(w, http.StatusAccepted, map[string]interface{}{
		"jobId":  jobID,
		"status": "accepted",
	})
}

// Status reports whether runs are in flight and their last results.
// GET /api/sync/status
func (h *SyncHandler) Status(w http.ResponseWriter, r *http.Request) {
	jobs, err := h.db.Queue.ListJobs(r.Context(), 10)
	if err != nil {
		writeJSONStatus(w, http.StatusInternalServerError, map[string]interface{}{
			"error": "Failed to list jobs: " + err.Error(),
		})
		return
	}

	writeJSON(w, map[string]interface{}{
		"series": map[string]interface{}{
			"running":    h.syncService.IsRunning(sync.MediaTypeSeries),
			"lastResult": h.syncService.LastResult(sync.MediaTypeSeries),
		},
		"movie": map[string]interface{}{
			"running":    h.syncService.IsRunning(sync.MediaTypeMovie),
			"lastResult": h.syncService.LastResult(sync.MediaTypeMovie),
		},
		"recentJobs": jobs,
	})
}

// GetJob returns one job with its tasks.
// GET /api/sync/jobs/{id}
func (h *SyncHandler) GetJob(w http.ResponseWriter, r *http.Request) {
	jobID := mux.Vars(r)["id"]

	job, err := h.db.Queue.GetJob(r.Context(), jobID)
	if err != nil {
		writeJSONStatus(w, http.StatusInternalServerError, map[string]interface{}{
			"error": "Failed to load job: " + err.Error(),
		})
		return
	}
	if job == nil {
		writeJSONStatus(w, http.StatusNotFound, map[string]interface{}{
			"error": "Job not found",
		})
		return
	}

	tasks, err := h.db.Queue.JobTasks(r.Context(), jobID)
	if err != nil {
		writeJSONStatus(w, http.StatusInternalServerError, map[string]interface{}{
			"error": "Failed to load tasks: " + err.Error(),
		})
		return
	}

	writeJSON(w, map[string]interface{}{
		"job":   job,
		"tasks": tasks,
	})
}

func writeJSON(w http.ResponseWriter, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(v)
}

func writeJSONStatus(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
