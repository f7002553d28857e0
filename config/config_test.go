package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestNewManager_WritesDefaults(t *testing.T) {
	dir := t.TempDir()
	m, err := NewManager(dir)
	if err != nil {
		t.Fatalf("NewManager failed: %v", err)
	}

	got := m.Get()
	if got.Region != "US" || got.SyncBatchSize != 4 || got.PipelinePacingMs != 250 {
		t.Errorf("unexpected defaults: %+v", got)
	}
	if _, err := os.Stat(filepath.Join(dir, "config.json")); err != nil {
		t.Errorf("expected config file written: %v", err)
	}
}

func TestNewManager_RequiresDir(t *testing.T) {
	if _, err := NewManager(""); err != ErrStorageDirRequired {
		t.Errorf("expected ErrStorageDirRequired, got %v", err)
	}
}

func TestUpdate_PersistsAcrossReload(t *testing.T) {
	dir := t.TempDir()
	m, err := NewManager(dir)
	if err != nil {
		t.Fatalf("NewManager failed: %v", err)
	}

	s := m.Get()
	s.TMDBAPIKey = "key123"
	s.Region = "DE"
	s.Timezone = "Europe/Berlin"
	if err := m.Update(s); err != nil {
		t.Fatalf("Update failed: %v", err)
	}

	reloaded, err := NewManager(dir)
	if err != nil {
		t.Fatalf("reload failed: %v", err)
	}
	got := reloaded.Get()
	if got.TMDBAPIKey != "key123" || got.Region != "DE" || got.Timezone != "Europe/Berlin" {
		t.Errorf("settings did not survive reload: %+v", got)
	}
	// Untouched fields keep their defaults.
	if got.SyncBatchSize != 4 {
		t.Errorf("expected default batch size, got %d", got.SyncBatchSize)
	}
}

func TestLoad_PartialFileKeepsDefaults(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "config.json"), []byte(`{"region":"FR"}`), 0o644); err != nil {
		t.Fatal(err)
	}

	m, err := NewManager(dir)
	if err != nil {
		t.Fatalf("NewManager failed: %v", err)
	}
	got := m.Get()
	if got.Region != "FR" {
		t.Errorf("expected region FR, got %q", got.Region)
	}
	if got.PipelineWorkers != 4 || got.ListenAddr != ":8580" {
		t.Errorf("expected defaults for missing fields, got %+v", got)
	}
}
