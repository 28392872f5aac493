package config

import (
	"encoding/json"
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"time"
)

// Settings represents the application configuration persisted to disk.
type Settings struct {
	Server    ServerSettings    `json:"server"`
	Database  DatabaseSettings  `json:"database"`
	Providers ProviderSettings  `json:"providers"`
	Sync      SyncSettings      `json:"sync"`
	Scheduler SchedulerSettings `json:"scheduler"`
	Log       LogConfig         `json:"log"`
}

type ServerSettings struct {
	Host   string `json:"host"`
	Port   int    `json:"port"`
	APIKey string `json:"apiKey"` // generated on first run when empty
}

type DatabaseSettings struct {
	Path string `json:"path"`
}

// ProviderSettings holds credentials and tuning for the three upstream APIs.
type ProviderSettings struct {
	TraktClientID string `json:"traktClientId"`
	TMDBAPIKey    string `json:"tmdbApiKey"`
	OMDbAPIKey    string `json:"omdbApiKey"`
	Language      string `json:"language"` // translation locale, e.g. "uk-UA"
	Region        string `json:"region"`   // primary watch-provider region
	FallbackRegion string `json:"fallbackRegion"`
}

// SyncSettings tunes the trending pipeline.
type SyncSettings struct {
	Concurrency        int   `json:"concurrency"`        // bounded pool size
	TrendingLimit      int   `json:"trendingLimit"`      // items per run
	RunTimeoutMinutes  int   `json:"runTimeoutMinutes"`  // hard per-batch deadline
	SnapshotWindowHrs  int   `json:"snapshotWindowHours"` // watcher snapshot dedupe window
	CalendarDaysAhead  int   `json:"calendarDaysAhead"`
	CalendarKeepDays   int   `json:"calendarKeepDays"` // prune entries older than this
	ExcludedGenreIDs   []int64 `json:"excludedGenreIds"`
	ExcludedKeywords   []string `json:"excludedKeywords"`
}

type SchedulerSettings struct {
	CheckIntervalSeconds int             `json:"checkIntervalSeconds"`
	Tasks                []ScheduledTask `json:"tasks"`
}

// ScheduledTaskFrequency enumerates supported task intervals.
type ScheduledTaskFrequency string

const (
	ScheduledTaskFrequency15Min  ScheduledTaskFrequency = "15min"
	ScheduledTaskFrequency30Min  ScheduledTaskFrequency = "30min"
	ScheduledTaskFrequencyHourly ScheduledTaskFrequency = "hourly"
	ScheduledTaskFrequency6Hours ScheduledTaskFrequency = "6hours"
	ScheduledTaskFrequencyDaily  ScheduledTaskFrequency = "daily"
)

// ScheduledTaskType enumerates supported task kinds.
type ScheduledTaskType string

const (
	ScheduledTaskTypeTrendingShows  ScheduledTaskType = "trending_shows_sync"
	ScheduledTaskTypeTrendingMovies ScheduledTaskType = "trending_movies_sync"
)

type ScheduledTaskStatus string

const (
	ScheduledTaskStatusSuccess ScheduledTaskStatus = "success"
	ScheduledTaskStatusError   ScheduledTaskStatus = "error"
	ScheduledTaskStatusRunning ScheduledTaskStatus = "running"
)

// ScheduledTask is one recurring sync task persisted in settings.
type ScheduledTask struct {
	ID            string                 `json:"id"`
	Name          string                 `json:"name"`
	Type          ScheduledTaskType      `json:"type"`
	Frequency     ScheduledTaskFrequency `json:"frequency"`
	Enabled       bool                   `json:"enabled"`
	LastRunAt     *time.Time             `json:"lastRunAt,omitempty"`
	LastStatus    ScheduledTaskStatus    `json:"lastStatus,omitempty"`
	LastError     string                 `json:"lastError,omitempty"`
	ItemsImported int                    `json:"itemsImported,omitempty"`
}

// LogConfig represents logging configuration.
type LogConfig struct {
	File       string `json:"file"`
	Level      string `json:"level"`
	MaxSize    int    `json:"maxSize"` // MB
	MaxBackups int    `json:"maxBackups"`
	MaxAge     int    `json:"maxAge"` // days
	Compress   bool   `json:"compress"`
}

func DefaultSettings() Settings {
	return Settings{
		Server:   ServerSettings{Host: "0.0.0.0", Port: 8484},
		Database: DatabaseSettings{Path: "cache/ratingo.db"},
		Providers: ProviderSettings{
			Language:       "uk-UA",
			Region:         "UA",
			FallbackRegion: "US",
		},
		Sync: SyncSettings{
			Concurrency:       6,
			TrendingLimit:     60,
			RunTimeoutMinutes: 20,
			SnapshotWindowHrs: 24,
			CalendarDaysAhead: 30,
			CalendarKeepDays:  14,
			// Talk shows and similar rolling-format content is skipped for
			// ingestion; 10767 is TMDB's Talk genre.
			ExcludedGenreIDs: []int64{10767},
			ExcludedKeywords: []string{"talk show", "ток-шоу"},
		},
		Scheduler: SchedulerSettings{
			CheckIntervalSeconds: 60,
			Tasks: []ScheduledTask{
				{ID: "trending-shows", Name: "Trending shows sync", Type: ScheduledTaskTypeTrendingShows, Frequency: ScheduledTaskFrequency6Hours, Enabled: true},
				{ID: "trending-movies", Name: "Trending movies sync", Type: ScheduledTaskTypeTrendingMovies, Frequency: ScheduledTaskFrequency6Hours, Enabled: true},
			},
		},
		Log: LogConfig{
			File:       "cache/logs/backend.log",
			Level:      "info",
			MaxSize:    50,
			MaxBackups: 3,
			MaxAge:     7,
			Compress:   true,
		},
	}
}

// Manager loads and persists settings to a JSON file.
type Manager struct {
	path string
}

func NewManager(configPath string) *Manager {
	return &Manager{path: configPath}
}

// EnsureDir ensures parent directory exists.
func (m *Manager) EnsureDir() error {
	dir := filepath.Dir(m.path)
	if dir == "." || dir == "" {
		return nil
	}
	return os.MkdirAll(dir, 0o755)
}

// Load reads settings from disk, creating the file with defaults if missing.
func (m *Manager) Load() (Settings, error) {
	if m.path == "" {
		return Settings{}, errors.New("config path not set")
	}
	if _, err := os.Stat(m.path); errors.Is(err, fs.ErrNotExist) {
		defaults := DefaultSettings()
		if err := m.Save(defaults); err != nil {
			return Settings{}, err
		}
		return defaults, nil
	}
	f, err := os.Open(m.path)
	if err != nil {
		return Settings{}, err
	}
	defer f.Close()

	var s Settings
	if err := json.NewDecoder(f).Decode(&s); err != nil {
		return Settings{}, err
	}

	// Backstop values for fields older config files may lack.
	if s.Sync.Concurrency <= 0 {
		s.Sync.Concurrency = 6
	}
	if s.Sync.SnapshotWindowHrs <= 0 {
		s.Sync.SnapshotWindowHrs = 24
	}
	if s.Sync.RunTimeoutMinutes <= 0 {
		s.Sync.RunTimeoutMinutes = 20
	}
	if s.Scheduler.CheckIntervalSeconds <= 0 {
		s.Scheduler.CheckIntervalSeconds = 60
	}

	return s, nil
}

// Save writes the provided settings to disk atomically.
func (m *Manager) Save(s Settings) error {
	if m.path == "" {
		return errors.New("config path not set")
	}
	if err := m.EnsureDir(); err != nil {
		return err
	}
	tmp := m.path + ".tmp"
	f, err := os.Create(tmp)
	if err != nil {
		return err
	}
	enc := json.NewEncoder(f)
	enc.SetIndent("", "  ")
	if err := enc.Encode(s); err != nil {
		f.Close()
		_ = os.Remove(tmp)
		return err
	}
	if err := f.Sync(); err != nil {
		f.Close()
		_ = os.Remove(tmp)
		return err
	}
	if err := f.Close(); err != nil {
		_ = os.Remove(tmp)
		return err
	}
	return os.Rename(tmp, m.path)
}
