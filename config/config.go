package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
)

var ErrStorageDirRequired = errors.New("storage directory not provided")

// Settings is the application configuration, persisted as JSON.
type Settings struct {
	TMDBAPIKey       string `json:"tmdbApiKey"`
	TVDBAPIKey       string `json:"tvdbApiKey"`
	TraktClientID    string `json:"traktClientId"`
	TraktAccessToken string `json:"traktAccessToken"`

	Region   string `json:"region"`   // ISO 3166-1 country, e.g. "US"
	Timezone string `json:"timezone"` // IANA name, empty = system local

	SyncBatchSize     int `json:"syncBatchSize"`
	PipelineWorkers   int `json:"pipelineWorkers"`
	PipelinePacingMs  int `json:"pipelinePacingMs"`
	PipelineRetries   int `json:"pipelineRetries"`
	CalendarWindowDay int `json:"calendarWindowDays"`

	DatabasePath string `json:"databasePath"`
	ListenAddr   string `json:"listenAddr"`
	LogPath      string `json:"logPath"`
}

// Defaults returns the settings used when no config file exists yet.
func Defaults(storageDir string) Settings {
	return Settings{
		Region:            "US",
		SyncBatchSize:     4,
		PipelineWorkers:   4,
		PipelinePacingMs:  250,
		PipelineRetries:   3,
		CalendarWindowDay: 30,
		DatabasePath:      filepath.Join(storageDir, "aircal.db"),
		ListenAddr:        ":8580",
		LogPath:           filepath.Join(storageDir, "logs", "aircal.log"),
	}
}

// Manager loads and persists application settings.
type Manager struct {
	mu       sync.RWMutex
	path     string
	settings Settings
}

// NewManager reads (or initializes) the config file inside storageDir.
func NewManager(storageDir string) (*Manager, error) {
	if storageDir == "" {
		return nil, ErrStorageDirRequired
	}
	if err := os.MkdirAll(storageDir, 0o755); err != nil {
		return nil, fmt.Errorf("create config dir: %w", err)
	}

	m := &Manager{
		path:     filepath.Join(storageDir, "config.json"),
		settings: Defaults(storageDir),
	}
	if err := m.load(); err != nil {
		return nil, err
	}
	return m, nil
}

// Get returns a copy of the current settings.
func (m *Manager) Get() Settings {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.settings
}

// Update replaces the settings and persists them.
func (m *Manager) Update(s Settings) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.settings = s
	return m.saveLocked()
}

func (m *Manager) load() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	data, err := os.ReadFile(m.path)
	if errors.Is(err, os.ErrNotExist) {
		return m.saveLocked()
	}
	if err != nil {
		return fmt.Errorf("read config: %w", err)
	}
	if len(data) == 0 {
		return nil
	}

	// Decode over the defaults so missing fields keep their default values.
	if err := json.Unmarshal(data, &m.settings); err != nil {
		return fmt.Errorf("decode config: %w", err)
	}
	return nil
}

func (m *Manager) saveLocked() error {
	tmp := m.path + ".tmp"
	file, err := os.Create(tmp)
	if err != nil {
		return fmt.Errorf("create config temp file: %w", err)
	}

	enc := json.NewEncoder(file)
	enc.SetIndent("", "  ")
	if err := enc.Encode(m.settings); err != nil {
		file.Close()
		_ = os.Remove(tmp)
		return fmt.Errorf("encode config: %w", err)
	}
	if err := file.Sync(); err != nil {
		file.Close()
		_ = os.Remove(tmp)
		return fmt.Errorf("sync config: %w", err)
	}
	if err := file.Close(); err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("close config temp file: %w", err)
	}
	if err := os.Rename(tmp, m.path); err != nil {
		return fmt.Errorf("replace config file: %w", err)
	}
	return nil
}
