package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoad_CreatesDefaultsWhenMissing(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "settings.json")
	m := NewManager(path)

	s, err := m.Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if s.Server.Port != 8484 {
		t.Errorf("port = %d, want 8484", s.Server.Port)
	}
	if s.Sync.Concurrency != 6 {
		t.Errorf("concurrency = %d, want 6", s.Sync.Concurrency)
	}
	if s.Sync.TrendingLimit != 60 {
		t.Errorf("trending limit = %d, want 60", s.Sync.TrendingLimit)
	}
	if len(s.Scheduler.Tasks) != 2 {
		t.Errorf("got %d scheduled tasks, want 2", len(s.Scheduler.Tasks))
	}

	if _, err := os.Stat(path); err != nil {
		t.Errorf("settings file not written: %v", err)
	}
}

func TestSaveAndReload(t *testing.T) {
	path := filepath.Join(t.TempDir(), "settings.json")
	m := NewManager(path)

	s := DefaultSettings()
	s.Providers.TraktClientID = "abc123"
	s.Providers.Region = "DE"
	s.Sync.TrendingLimit = 25
	if err := m.Save(s); err != nil {
		t.Fatalf("Save() error = %v", err)
	}

	got, err := m.Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if got.Providers.TraktClientID != "abc123" {
		t.Errorf("trakt client id = %q, want abc123", got.Providers.TraktClientID)
	}
	if got.Providers.Region != "DE" {
		t.Errorf("region = %q, want DE", got.Providers.Region)
	}
	if got.Sync.TrendingLimit != 25 {
		t.Errorf("trending limit = %d, want 25", got.Sync.TrendingLimit)
	}
}

func TestLoad_BackstopsMissingFields(t *testing.T) {
	path := filepath.Join(t.TempDir(), "settings.json")
	if err := os.WriteFile(path, []byte(`{"server":{"port":9090}}`), 0o644); err != nil {
		t.Fatal(err)
	}

	m := NewManager(path)
	s, err := m.Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if s.Server.Port != 9090 {
		t.Errorf("port = %d, want 9090", s.Server.Port)
	}
	if s.Sync.Concurrency != 6 {
		t.Errorf("concurrency backstop = %d, want 6", s.Sync.Concurrency)
	}
	if s.Sync.SnapshotWindowHrs != 24 {
		t.Errorf("snapshot window backstop = %d, want 24", s.Sync.SnapshotWindowHrs)
	}
	if s.Scheduler.CheckIntervalSeconds != 60 {
		t.Errorf("check interval backstop = %d, want 60", s.Scheduler.CheckIntervalSeconds)
	}
}

func TestLoad_CorruptFileErrors(t *testing.T) {
	path := filepath.Join(t.TempDir(), "settings.json")
	if err := os.WriteFile(path, []byte("{not json"), 0o644); err != nil {
		t.Fatal(err)
	}

	if _, err := NewManager(path).Load(); err == nil {
		t.Error("expected error for corrupt settings file")
	}
}

func TestSave_NoPathErrors(t *testing.T) {
	if err := NewManager("").Save(DefaultSettings()); err == nil {
		t.Error("expected error when path is unset")
	}
}
