package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

// ClientConfig holds the configuration of the terminal client
type ClientConfig struct {
	RemoteURL string      `yaml:"remote_url"`
	DataPath  string      `yaml:"data_path"`
	Sync      SyncConfig  `yaml:"sync"`
	Local     LocalConfig `yaml:"local"`
	Tutor     TutorConfig `yaml:"tutor"`
}

// SyncConfig controls the remote synchronisation cadence
type SyncConfig struct {
	Debounce time.Duration `yaml:"debounce"`
	Timeout  time.Duration `yaml:"timeout"`
}

// LocalConfig bounds what is kept in on-device storage
type LocalConfig struct {
	Window     int   `yaml:"window"`
	MediaKeep  int   `yaml:"media_keep"`
	QuotaBytes int64 `yaml:"quota_bytes"`
}

// TutorConfig configures the OpenAI-compatible tutor backend
type TutorConfig struct {
	APIKey     string        `yaml:"api_key"`
	BaseURL    string        `yaml:"base_url"`
	Model      string        `yaml:"model"`
	TTSModel   string        `yaml:"tts_model"`
	Voice      string        `yaml:"voice"`
	ModelsPath string        `yaml:"models_path"`
	Timeout    time.Duration `yaml:"timeout"`
}

// DefaultClientConfigPath returns $HOME/.hackerkid/config.yaml
func DefaultClientConfigPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(".hackerkid", "config.yaml")
	}
	return filepath.Join(home, ".hackerkid", "config.yaml")
}

func defaultClientConfig() *ClientConfig {
	dataPath := filepath.Join(filepath.Dir(DefaultClientConfigPath()), "local.db")
	return &ClientConfig{
		RemoteURL: "http://localhost:8080",
		DataPath:  dataPath,
		Sync: SyncConfig{
			Debounce: 2 * time.Second,
			Timeout:  15 * time.Second,
		},
		Local: LocalConfig{
			Window:     30,
			MediaKeep:  3,
			QuotaBytes: 5 << 20,
		},
		Tutor: TutorConfig{
			BaseURL:  "https://openrouter.ai/api/v1",
			Model:    "google/gemini-2.5-flash",
			TTSModel: "tts-1",
			Voice:    "alloy",
			Timeout:  60 * time.Second,
		},
	}
}

// LoadClientConfig reads the optional YAML file at path and applies
// environment overrides on top of it. A missing file is not an error.
func LoadClientConfig(path string) (*ClientConfig, error) {
	cfg := defaultClientConfig()

	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case errors.Is(err, os.ErrNotExist):
		case err != nil:
			return nil, fmt.Errorf("failed to read client config: %w", err)
		default:
			if err := yaml.Unmarshal(data, cfg); err != nil {
				return nil, fmt.Errorf("failed to parse client config %s: %w", path, err)
			}
		}
	}

	cfg.RemoteURL = getEnvOrDefault("HACKERKID_REMOTE_URL", cfg.RemoteURL)
	cfg.DataPath = getEnvOrDefault("HACKERKID_DATA_PATH", cfg.DataPath)
	cfg.Sync.Debounce = getEnvAsDuration("HACKERKID_SYNC_DEBOUNCE", cfg.Sync.Debounce)
	cfg.Sync.Timeout = getEnvAsDuration("HACKERKID_SYNC_TIMEOUT", cfg.Sync.Timeout)
	cfg.Local.Window = getEnvAsInt("HACKERKID_LOCAL_WINDOW", cfg.Local.Window)
	cfg.Local.MediaKeep = getEnvAsInt("HACKERKID_LOCAL_MEDIA_KEEP", cfg.Local.MediaKeep)
	cfg.Local.QuotaBytes = getEnvAsInt64("HACKERKID_LOCAL_QUOTA_BYTES", cfg.Local.QuotaBytes)
	cfg.Tutor.APIKey = getEnvOrDefault("TUTOR_API_KEY", cfg.Tutor.APIKey)
	cfg.Tutor.BaseURL = getEnvOrDefault("TUTOR_BASE_URL", cfg.Tutor.BaseURL)
	cfg.Tutor.Model = getEnvOrDefault("TUTOR_MODEL", cfg.Tutor.Model)
	cfg.Tutor.TTSModel = getEnvOrDefault("TUTOR_TTS_MODEL", cfg.Tutor.TTSModel)
	cfg.Tutor.Voice = getEnvOrDefault("TUTOR_VOICE", cfg.Tutor.Voice)
	cfg.Tutor.ModelsPath = getEnvOrDefault("TUTOR_MODELS_PATH", cfg.Tutor.ModelsPath)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid client configuration: %w", err)
	}
	return cfg, nil
}

// Validate checks the bounds the sync layer relies on
func (c *ClientConfig) Validate() error {
	if c.RemoteURL == "" {
		return errors.New("remote_url cannot be empty")
	}
	if c.DataPath == "" {
		return errors.New("data_path cannot be empty")
	}
	if c.Sync.Debounce <= 0 {
		return fmt.Errorf("sync.debounce must be positive, got %s", c.Sync.Debounce)
	}
	if c.Sync.Timeout <= 0 {
		return fmt.Errorf("sync.timeout must be positive, got %s", c.Sync.Timeout)
	}
	if c.Local.Window < 1 {
		return fmt.Errorf("local.window must be at least 1, got %d", c.Local.Window)
	}
	if c.Local.MediaKeep < 0 || c.Local.MediaKeep > c.Local.Window {
		return fmt.Errorf("local.media_keep must be between 0 and %d, got %d", c.Local.Window, c.Local.MediaKeep)
	}
	if c.Local.QuotaBytes <= 0 {
		return fmt.Errorf("local.quota_bytes must be positive, got %d", c.Local.QuotaBytes)
	}
	return nil
}
