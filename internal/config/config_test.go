package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadDefaultsWithoutFile(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if cfg.Storage.Type != "bolt" {
		t.Errorf("expected bolt storage, got %q", cfg.Storage.Type)
	}
	if cfg.Usage.MaxFlushDuration != "1h" || cfg.Usage.MinCreditDuration != "500ms" {
		t.Errorf("unexpected usage defaults: %+v", cfg.Usage)
	}
	if len(cfg.Blocking.DefaultSites) != 4 {
		t.Errorf("expected 4 default sites, got %v", cfg.Blocking.DefaultSites)
	}
	if cfg.Suggest.Timeout != "20s" {
		t.Errorf("expected 20s suggest timeout, got %q", cfg.Suggest.Timeout)
	}
	if cfg.Suggest.RateLimitPerMinute != 6 {
		t.Errorf("expected 6 suggestions per minute, got %d", cfg.Suggest.RateLimitPerMinute)
	}
}

func TestLoadFileAndEnvOverride(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	content := `
server:
  api_port: 9000
storage:
  type: redis
  redis:
    host: redis.local
logging:
  level: debug
blocking:
  default_sites: ["reddit.com"]
`
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	t.Setenv("FOCUSFORGE_SUGGEST_API_KEY", "secret")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if cfg.Server.APIPort != 9000 {
		t.Errorf("expected api port 9000, got %d", cfg.Server.APIPort)
	}
	if cfg.Storage.Type != "redis" || cfg.Storage.Redis.Host != "redis.local" {
		t.Errorf("unexpected storage config: %+v", cfg.Storage)
	}
	if cfg.Logging.Level != "debug" {
		t.Errorf("expected debug logging, got %q", cfg.Logging.Level)
	}
	if len(cfg.Blocking.DefaultSites) != 1 || cfg.Blocking.DefaultSites[0] != "reddit.com" {
		t.Errorf("unexpected default sites: %v", cfg.Blocking.DefaultSites)
	}
	if cfg.Suggest.APIKey != "secret" {
		t.Errorf("expected api key from environment, got %q", cfg.Suggest.APIKey)
	}
}

func TestLoadRejectsInvalidValues(t *testing.T) {
	tests := []struct {
		name    string
		content string
	}{
		{"bad storage type", "storage:\n  type: sqlite\n"},
		{"bad api port", "server:\n  api_port: 70000\n"},
		{"bad flush duration", "usage_tracking:\n  max_flush_duration: soon\n"},
		{"bad prune time", "usage_tracking:\n  prune_time: noon\n"},
		{"negative rate limit", "suggest:\n  rate_limit_per_minute: -1\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "config.yaml")
			if err := os.WriteFile(path, []byte(tt.content), 0644); err != nil {
				t.Fatalf("write config: %v", err)
			}
			if _, err := Load(path); err == nil {
				t.Fatal("expected validation error")
			}
		})
	}
}

func TestFindUnknownKeys(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	content := `
server:
  api_port: 9000
  dns_port: 53
suggest:
  modle: flash
`
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	unknown, err := FindUnknownKeys(path)
	if err != nil {
		t.Fatalf("FindUnknownKeys: %v", err)
	}
	if len(unknown) != 2 || unknown[0] != "server.dns_port" || unknown[1] != "suggest.modle" {
		t.Errorf("unexpected unknown keys: %v", unknown)
	}
}

func TestDefaults(t *testing.T) {
	cfg := Defaults()
	if cfg.Server.APIPort != 7878 {
		t.Errorf("expected default api port 7878, got %d", cfg.Server.APIPort)
	}
	if cfg.Usage.WriteRetries != 1 {
		t.Errorf("expected 1 write retry, got %d", cfg.Usage.WriteRetries)
	}
}
