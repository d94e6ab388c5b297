package handshake

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/apilink-dev/handshake/types"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "handshake.yaml")
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	return path
}

func TestLoadConfig(t *testing.T) {
	path := writeConfig(t, `
timeouts:
  default: 10s
  min: 2s
  max: 60s
retry:
  max_retries: 5
  retry_delay: 500ms
max_redirects: 3
`)

	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}
	if cfg.Timeouts.Default != 10*time.Second {
		t.Errorf("default timeout = %v", cfg.Timeouts.Default)
	}
	if cfg.Retry.MaxRetries != 5 {
		t.Errorf("max retries = %d", cfg.Retry.MaxRetries)
	}
	if cfg.Retry.RetryDelay != 500*time.Millisecond {
		t.Errorf("retry delay = %v", cfg.Retry.RetryDelay)
	}
	if cfg.MaxRedirects != 3 {
		t.Errorf("max redirects = %d", cfg.MaxRedirects)
	}
}

func TestLoadConfigMissingFile(t *testing.T) {
	if _, err := LoadConfig(filepath.Join(t.TempDir(), "absent.yaml")); err == nil {
		t.Fatal("LoadConfig succeeded for a missing file")
	}
}

func TestLoadConfigMalformedYAML(t *testing.T) {
	path := writeConfig(t, "retry: [not a mapping")
	if _, err := LoadConfig(path); err == nil {
		t.Fatal("LoadConfig succeeded for malformed YAML")
	}
}

func TestConfigValidate(t *testing.T) {
	tests := []struct {
		name    string
		cfg     Config
		wantErr bool
	}{
		{"zero config", Config{}, false},
		{"negative retries", Config{Retry: RetryConfig{MaxRetries: -1}}, true},
		{"negative delay", Config{Retry: RetryConfig{RetryDelay: -time.Second}}, true},
		{"negative redirects", Config{MaxRedirects: -1}, true},
		{"min above max", Config{Timeouts: TimeoutsConfig{Min: time.Minute, Max: time.Second}}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.cfg.Validate()
			if (err != nil) != tt.wantErr {
				t.Fatalf("Validate() = %v, wantErr %v", err, tt.wantErr)
			}
			if err != nil && !errors.Is(err, ErrInvalidConfig) {
				t.Errorf("error %v does not match ErrInvalidConfig", err)
			}
		})
	}
}

func TestConfigDefaults(t *testing.T) {
	var cfg Config

	tc := cfg.timeouts()
	if tc.Default != types.DefaultTimeout || tc.Min != types.MinTimeout || tc.Max != types.MaxTimeout {
		t.Errorf("timeouts = %+v", tc)
	}

	p := cfg.policy()
	if p.MaxRetries != 3 {
		t.Errorf("max retries = %d, want 3", p.MaxRetries)
	}
	if p.RetryDelay != time.Second {
		t.Errorf("retry delay = %v, want 1s", p.RetryDelay)
	}
}
