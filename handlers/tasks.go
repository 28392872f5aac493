package handlers

import (
	"net/http"

	"github.com/gorilla/mux"

	"ratingo/services/scheduler"
)

// TasksHandler exposes the scheduler's task list and manual triggering.
type TasksHandler struct {
	schedulerService *scheduler.Service
}

// NewTasksHandler creates a new tasks handler.
func NewTasksHandler(schedulerService *scheduler.Service) *TasksHandler {
	return &TasksHandler{schedulerService: schedulerService}
}

// ListTasks returns all scheduled tasks with current status.
// GET /api/tasks
func (h *TasksHandler) ListTasks(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, map[string]interface{}{
		"tasks": h.schedulerService.GetTaskStatus(),
	})
}

// RunTask triggers immediate execution of a task.
// POST /api/tasks/{id}/run
func (h *TasksHandler) RunTask(w http.ResponseWriter, r *http.Request) {
	taskID := mux.Vars(r)["id"]

	if err := h.schedulerService.RunTaskNow(taskID); err != nil {
		writeJSONStatus(w, http.StatusConflict, map[string]interface{}{
			"error": err.Error(),
		})
		return
	}

	writeJSONStatus(w, http.StatusAccepted, map[string]interface{}{
		"status": "started",
	})
}
