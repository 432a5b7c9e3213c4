package config_test

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"tailor/internal/config"
)

func TestLoadMissingFileUsesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")

	cfg, resolved, exists, err := config.Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if exists {
		t.Fatal("expected exists=false for missing file")
	}
	if resolved != path {
		t.Fatalf("resolved path mismatch: %q", resolved)
	}
	if cfg.Backend.BaseURL != "http://127.0.0.1:8000/api" {
		t.Fatalf("unexpected default base url: %q", cfg.Backend.BaseURL)
	}
	if cfg.Backend.LongCallTimeout != 300 {
		t.Fatalf("unexpected default long call timeout: %d", cfg.Backend.LongCallTimeout)
	}
}

func TestLoadParsesOverrides(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.toml")
	content := `
[backend]
base_url = "https://agents.example.com/api/"
request_timeout = 15
long_call_timeout = 120

[paths]
data_dir = "` + filepath.Join(dir, "data") + `"
log_dir = "` + filepath.Join(dir, "logs") + `"
artifact_dir = "` + filepath.Join(dir, "artifacts") + `"
`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, _, exists, err := config.Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if !exists {
		t.Fatal("expected exists=true")
	}
	if cfg.Backend.BaseURL != "https://agents.example.com/api" {
		t.Fatalf("base url not normalized: %q", cfg.Backend.BaseURL)
	}
	if cfg.Backend.RequestTimeout != 15 {
		t.Fatalf("unexpected request timeout: %d", cfg.Backend.RequestTimeout)
	}
}

func TestValidateRejectsBadBaseURL(t *testing.T) {
	cfg := config.Default()
	cfg.Backend.BaseURL = "not a url"
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected validation error for malformed base url")
	}

	cfg = config.Default()
	cfg.Backend.BaseURL = "ftp://example.com"
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected validation error for non-http scheme")
	}
}

func TestValidateRejectsInvertedTimeouts(t *testing.T) {
	cfg := config.Default()
	cfg.Backend.RequestTimeout = 100
	cfg.Backend.LongCallTimeout = 50
	err := cfg.Validate()
	if err == nil {
		t.Fatal("expected validation error")
	}
	if !strings.Contains(err.Error(), "long_call_timeout") {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestCreateSampleRoundTrips(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "config.toml")
	if err := config.CreateSample(path); err != nil {
		t.Fatalf("CreateSample failed: %v", err)
	}

	cfg, _, exists, err := config.Load(path)
	if err != nil {
		t.Fatalf("Load of sample failed: %v", err)
	}
	if !exists {
		t.Fatal("sample config should exist")
	}
	if cfg.Audio.CaptureBinary != "ffmpeg" {
		t.Fatalf("unexpected capture binary: %q", cfg.Audio.CaptureBinary)
	}
}
