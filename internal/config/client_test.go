package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoadClientConfig_Defaults(t *testing.T) {
	cfg, err := LoadClientConfig(filepath.Join(t.TempDir(), "missing.yaml"))
	if err != nil {
		t.Fatalf("LoadClientConfig() error = %v", err)
	}

	if cfg.Sync.Debounce != 2*time.Second {
		t.Errorf("Sync.Debounce = %s, want 2s", cfg.Sync.Debounce)
	}
	if cfg.Local.Window != 30 || cfg.Local.MediaKeep != 3 {
		t.Errorf("Local = %+v, want window 30 media_keep 3", cfg.Local)
	}
}

func TestLoadClientConfig_FileAndEnvOverride(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	content := `remote_url: http://files.example
sync:
  debounce: 5s
local:
  window: 50
  media_keep: 10
`
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("Failed to write config: %v", err)
	}
	t.Setenv("HACKERKID_REMOTE_URL", "http://env.example")

	cfg, err := LoadClientConfig(path)
	if err != nil {
		t.Fatalf("LoadClientConfig() error = %v", err)
	}

	if cfg.RemoteURL != "http://env.example" {
		t.Errorf("RemoteURL = %s, want env override", cfg.RemoteURL)
	}
	if cfg.Sync.Debounce != 5*time.Second {
		t.Errorf("Sync.Debounce = %s, want 5s", cfg.Sync.Debounce)
	}
	if cfg.Local.Window != 50 || cfg.Local.MediaKeep != 10 {
		t.Errorf("Local = %+v, want window 50 media_keep 10", cfg.Local)
	}
	if cfg.Sync.Timeout != 15*time.Second {
		t.Errorf("Sync.Timeout = %s, want default 15s", cfg.Sync.Timeout)
	}
}

func TestClientConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(c *ClientConfig)
		wantErr bool
	}{
		{name: "defaults", mutate: func(c *ClientConfig) {}, wantErr: false},
		{name: "zero window", mutate: func(c *ClientConfig) { c.Local.Window = 0 }, wantErr: true},
		{name: "negative media keep", mutate: func(c *ClientConfig) { c.Local.MediaKeep = -1 }, wantErr: true},
		{name: "media keep above window", mutate: func(c *ClientConfig) { c.Local.MediaKeep = 31 }, wantErr: true},
		{name: "zero debounce", mutate: func(c *ClientConfig) { c.Sync.Debounce = 0 }, wantErr: true},
		{name: "zero quota", mutate: func(c *ClientConfig) { c.Local.QuotaBytes = 0 }, wantErr: true},
		{name: "empty remote url", mutate: func(c *ClientConfig) { c.RemoteURL = "" }, wantErr: true},
		{name: "empty data path", mutate: func(c *ClientConfig) { c.DataPath = "" }, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := defaultClientConfig()
			tt.mutate(cfg)
			err := cfg.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestLoadConfig_ShortJWTSecret(t *testing.T) {
	t.Setenv("JWT_SECRET", "too-short")

	if _, err := LoadConfig(); err == nil {
		t.Error("LoadConfig() error = nil, want error for short JWT_SECRET")
	}
}

func TestLoadConfig_AuthDisabledWithoutSecret(t *testing.T) {
	t.Setenv("JWT_SECRET", "")
	t.Setenv("AUTH_USERS", "")

	cfg, err := LoadConfig()
	if err != nil {
		t.Fatalf("LoadConfig() error = %v", err)
	}
	if cfg.Auth.Enabled() {
		t.Error("Auth.Enabled() = true, want false without JWT_SECRET")
	}
	if cfg.Auth.Users != "admin:hacker" {
		t.Errorf("Auth.Users = %s, want default admin:hacker", cfg.Auth.Users)
	}
}
