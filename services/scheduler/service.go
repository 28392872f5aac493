package scheduler

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"ratingo/config"
	"ratingo/models"
	syncsvc "ratingo/services/sync"
)

// Service runs the recurring sync tasks defined in settings.
type Service struct {
	configManager *config.Manager
	syncService   *syncsvc.Service

	mu      sync.RWMutex
	running bool
	ctx     context.Context
	cancel  context.CancelFunc
	wg      sync.WaitGroup

	// Task state tracking (in-memory, not persisted)
	taskRunning map[string]bool
	taskMu      sync.RWMutex
}

// NewService creates a new scheduler service.
func NewService(configManager *config.Manager, syncService *syncsvc.Service) *Service {
	return &Service{
		configManager: configManager,
		syncService:   syncService,
		taskRunning:   make(map[string]bool),
	}
}

// Start begins the scheduler background loop.
func (s *Service) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.running {
		return nil
	}

	s.ctx, s.cancel = context.WithCancel(ctx)
	s.running = true

	s.wg.Add(1)
	go s.schedulerLoop()

	log.Println("[scheduler] Scheduler service started")
	return nil
}

// Stop gracefully stops the scheduler.
func (s *Service) Stop(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.running {
		return nil
	}

	s.cancel()

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		log.Println("[scheduler] Scheduler service stopped gracefully")
	case <-ctx.Done():
		log.Println("[scheduler] Scheduler service stopped (timeout)")
	}

	s.running = false
	return nil
}

// schedulerLoop is the main background loop that checks for tasks to run.
func (s *Service) schedulerLoop() {
	defer s.wg.Done()

	settings, err := s.configManager.Load()
	if err != nil {
		log.Printf("[scheduler] Failed to load settings: %v", err)
		return
	}

	checkInterval := time.Duration(settings.Scheduler.CheckIntervalSeconds) * time.Second
	if checkInterval < time.Second {
		checkInterval = 60 * time.Second
	}

	ticker := time.NewTicker(checkInterval)
	defer ticker.Stop()

	// Run check immediately on start
	s.checkAndRunTasks()

	for {
		select {
		case <-s.ctx.Done():
			return
		case <-ticker.C:
			s.checkAndRunTasks()
		}
	}
}

// checkAndRunTasks checks all enabled tasks and runs those that are due.
func (s *Service) checkAndRunTasks() {
	settings, err := s.configManager.Load()
	if err != nil {
		log.Printf("[scheduler] Failed to load settings: %v", err)
		return
	}

	for _, task := range settings.Scheduler.Tasks {
		if !task.Enabled {
			continue
		}

		if s.shouldRun(task) {
			// Run task in goroutine to not block other tasks
			s.wg.Add(1)
			go func(t config.ScheduledTask) {
				defer s.wg.Done()
				s.executeTask(t)
			}(task)
		}
	}
}

// shouldRun checks if a task is due to run.
func (s *Service) shouldRun(task config.ScheduledTask) bool {
	s.taskMu.RLock()
	if s.taskRunning[task.ID] {
		s.taskMu.RUnlock()
		return false
	}
	s.taskMu.RUnlock()

	// Never run before
	if task.LastRunAt == nil {
		return true
	}

	interval := s.getInterval(task.Frequency)
	return time.Since(*task.LastRunAt) >= interval
}

// getInterval returns the duration for a given frequency.
func (s *Service) getInterval(freq config.ScheduledTaskFrequency) time.Duration {
	switch freq {
	case config.ScheduledTaskFrequency15Min:
		return 15 * time.Minute
	case config.ScheduledTaskFrequency30Min:
		return 30 * time.Minute
	case config.ScheduledTaskFrequencyHourly:
		return 1 * time.Hour
	case config.ScheduledTaskFrequency6Hours:
		return 6 * time.Hour
	case config.ScheduledTaskFrequencyDaily:
		return 24 * time.Hour
	default:
		return 24 * time.Hour
	}
}

// executeTask runs a task and updates its status.
func (s *Service) executeTask(task config.ScheduledTask) {
	s.taskMu.Lock()
	s.taskRunning[task.ID] = true
	s.taskMu.Unlock()

	defer func() {
		s.taskMu.Lock()
		delete(s.taskRunning, task.ID)
		s.taskMu.Unlock()
	}()

	log.Printf("[scheduler] Executing task: %s (%s)", task.Name, task.Type)

	var res *models.RunResult
	var err error

	switch task.Type {
	case config.ScheduledTaskTypeTrendingShows:
		res, err = s.syncService.RunTrendingSync(s.ctx)
	case config.ScheduledTaskTypeTrendingMovies:
		res, err = s.syncService.RunTrendingMoviesSync(s.ctx)
	default:
		log.Printf("[scheduler] Unknown task type: %s", task.Type)
		return
	}

	items := 0
	if res != nil {
		items = res.Added + res.Updated
		if err == nil && len(res.Errors) > 0 {
			err = fmt.Errorf("%d partial failures, first: %s", len(res.Errors), res.Errors[0])
		}
	}
	s.updateTaskStatus(task.ID, err, items)
}

// updateTaskStatus updates a task's status in the settings file.
func (s *Service) updateTaskStatus(taskID string, err error, itemsImported int) {
	settings, loadErr := s.configManager.Load()
	if loadErr != nil {
		log.Printf("[scheduler] Failed to load settings to update task status: %v", loadErr)
		return
	}

	now := time.Now().UTC()
	for i := range settings.Scheduler.Tasks {
		if settings.Scheduler.Tasks[i].ID == taskID {
			settings.Scheduler.Tasks[i].LastRunAt = &now
			settings.Scheduler.Tasks[i].ItemsImported = itemsImported

			if err != nil {
				settings.Scheduler.Tasks[i].LastStatus = config.ScheduledTaskStatusError
				settings.Scheduler.Tasks[i].LastError = err.Error()
				log.Printf("[scheduler] Task %s failed: %v", taskID, err)
			} else {
				settings.Scheduler.Tasks[i].LastStatus = config.ScheduledTaskStatusSuccess
				settings.Scheduler.Tasks[i].LastError = ""
				log.Printf("[scheduler] Task %s completed successfully, %d items", taskID, itemsImported)
			}
			break
		}
	}

	if saveErr := s.configManager.Save(settings); saveErr != nil {
		log.Printf("[scheduler] Failed to save task status: %v", saveErr)
	}
}

// RunTaskNow triggers immediate execution of a task.
func (s *Service) RunTaskNow(taskID string) error {
	settings, err := s.configManager.Load()
	if err != nil {
		return fmt.Errorf("failed to load settings: %w", err)
	}

	for _, task := range settings.Scheduler.Tasks {
		if task.ID == taskID {
			s.taskMu.RLock()
			if s.taskRunning[taskID] {
				s.taskMu.RUnlock()
				return errors.New("task is already running")
			}
			s.taskMu.RUnlock()

			s.wg.Add(1)
			go func(t config.ScheduledTask) {
				defer s.wg.Done()
				s.executeTask(t)
			}(task)
			return nil
		}
	}
	return fmt.Errorf("task %s not found", taskID)
}

// GetTaskStatus returns a snapshot of all configured tasks with their
// in-memory running flag merged in.
func (s *Service) GetTaskStatus() []TaskStatus {
	settings, err := s.configManager.Load()
	if err != nil {
		log.Printf("[scheduler] Failed to load settings: %v", err)
		return nil
	}

	s.taskMu.RLock()
	defer s.taskMu.RUnlock()

	statuses := make([]TaskStatus, 0, len(settings.Scheduler.Tasks))
	for _, t := range settings.Scheduler.Tasks {
		statuses = append(statuses, TaskStatus{
			ScheduledTask: t,
			Running:       s.taskRunning[t.ID],
		})
	}
	return statuses
}

// TaskStatus is a configured task plus its live running flag.
type TaskStatus struct {
	config.ScheduledTask
	Running bool `json:"running"`
}
