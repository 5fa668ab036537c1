package file

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/pelletier/go-toml/v2"
)

// Duration is a time.Duration that round-trips through TOML as a
// human-readable string ("500ms", "2m").
type Duration time.Duration

// MarshalText implements encoding.TextMarshaler.
func (d Duration) MarshalText() ([]byte, error) {
	return []byte(time.Duration(d).String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (d *Duration) UnmarshalText(text []byte) error {
	parsed, err := time.ParseDuration(string(text))
	if err != nil {
		return fmt.Errorf("parsing duration %q: %w", text, err)
	}
	*d = Duration(parsed)
	return nil
}

// Std returns the setting as a time.Duration.
func (d Duration) Std() time.Duration {
	return time.Duration(d)
}

// Settings holds the user-tunable configuration.
type Settings struct {
	// DownloadDir is where finalized downloads land. Empty means the
	// current working directory.
	DownloadDir string `toml:"download_dir"`

	// StagingDir is where in-flight artifacts are staged.
	StagingDir string `toml:"staging_dir"`

	// CacheDir is where the plugin cache database lives.
	CacheDir string `toml:"cache_dir"`

	// PoolSize bounds concurrently in-flight resource fetches.
	PoolSize int `toml:"pool_size"`

	// MaxAttempts bounds attempts per resource.
	MaxAttempts int `toml:"max_attempts"`

	// RetryBaseDelay is the backoff delay after the first failure.
	RetryBaseDelay Duration `toml:"retry_base_delay"`

	// AttemptTimeout bounds each fetch attempt.
	AttemptTimeout Duration `toml:"attempt_timeout"`

	// RequestsPerSecond rate-limits request starts. Zero disables
	// rate limiting.
	RequestsPerSecond float64 `toml:"requests_per_second"`
}

// DefaultSettings returns the settings used when no config file exists.
func DefaultSettings() Settings {
	return Settings{
		PoolSize:       8,
		MaxAttempts:    3,
		RetryBaseDelay: Duration(500 * time.Millisecond),
		AttemptTimeout: Duration(2 * time.Minute),
	}
}

// SettingsStore is a file-based TOML settings store.
type SettingsStore struct {
	mu       sync.RWMutex
	filePath string
	settings Settings
}

// NewSettingsStore creates a TOML settings store.
// If configDir is empty, defaults to ~/.megu/config.toml.
func NewSettingsStore(configDir string) (*SettingsStore, error) {
	if configDir == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, err
		}
		configDir = filepath.Join(home, ".megu")
	}

	// Ensure directory exists
	if err := os.MkdirAll(configDir, 0700); err != nil {
		return nil, err
	}

	s := &SettingsStore{
		filePath: filepath.Join(configDir, "config.toml"),
		settings: DefaultSettings(),
	}

	if err := s.Load(); err != nil && !os.IsNotExist(err) {
		return nil, err
	}

	return s, nil
}

// Settings returns a snapshot of the current settings.
func (s *SettingsStore) Settings() Settings {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.settings
}

// Update replaces the settings and persists immediately.
func (s *SettingsStore) Update(settings Settings) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.settings = settings
	return s.save()
}

// Save persists the current settings to disk.
func (s *SettingsStore) Save() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.save()
}

// save writes settings to the TOML file (caller must hold lock).
func (s *SettingsStore) save() error {
	data, err := toml.Marshal(s.settings)
	if err != nil {
		return err
	}

	// Write with restricted permissions
	return os.WriteFile(s.filePath, data, 0600)
}

// Load reads settings from the TOML file. Keys absent from the file
// keep their defaults.
func (s *SettingsStore) Load() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := os.ReadFile(s.filePath)
	if err != nil {
		if os.IsNotExist(err) {
			// No config file yet - that's fine, run on defaults
			s.settings = DefaultSettings()
			return nil
		}
		return err
	}

	settings := DefaultSettings()
	if err := toml.Unmarshal(data, &settings); err != nil {
		return err
	}

	s.settings = settings
	return nil
}

// Path returns the configuration file path.
func (s *SettingsStore) Path() string {
	return s.filePath
}
