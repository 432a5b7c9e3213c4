package testsupport

import (
	"os"
	"os/signal"
	"path/filepath"
	"testing"

	"tailor/internal/config"
)

// ConfigOption allows callers to customize the generated test configuration.
type ConfigOption func(*config.Config)

// NewConfig produces a config seeded with unique temp directories per test.
func NewConfig(t testing.TB, opts ...ConfigOption) *config.Config {
	t.Helper()

	base := t.TempDir()
	cfg := config.Default()
	cfg.Paths.DataDir = filepath.Join(base, "data")
	cfg.Paths.LogDir = filepath.Join(base, "logs")
	cfg.Paths.ArtifactDir = filepath.Join(base, "artifacts")
	cfg.Backend.RequestTimeout = 2
	cfg.Backend.LongCallTimeout = 5

	for _, opt := range opts {
		opt(&cfg)
	}

	return &cfg
}

// WithBaseURL points the config at a test server.
func WithBaseURL(url string) ConfigOption {
	return func(cfg *config.Config) {
		cfg.Backend.BaseURL = url
	}
}

// WithStubbedCaptureBinary writes a stub capture executable that produces a
// small WAV-ish file, and points the config at it.
func WithStubbedCaptureBinary(t testing.TB) ConfigOption {
	return func(cfg *config.Config) {
		// The recorder stops capture with SIGINT; a real encoder finalizes
		// its output on that signal, but the shell stub would die before
		// writing. Ignoring SIGINT here makes the spawned stub inherit the
		// ignored disposition, so it always finishes writing the clip.
		signal.Ignore(os.Interrupt)
		t.Cleanup(func() { signal.Reset(os.Interrupt) })

		binDir := t.TempDir()
		target := filepath.Join(binDir, "capture-stub")
		// The stub ignores its arguments except the trailing output path.
		script := []byte("#!/bin/sh\nout=\"\"\nfor arg in \"$@\"; do out=\"$arg\"; done\nprintf 'RIFFstubwavdata' > \"$out\"\n")
		if err := os.WriteFile(target, script, 0o755); err != nil {
			t.Fatalf("write capture stub: %v", err)
		}
		cfg.Audio.CaptureBinary = target
	}
}
