package config

import (
	"os"
	"path/filepath"
	"slices"
	"strings"
	"testing"
)

type streamSection struct {
	DropThreshold float64 `mapstructure:"drop_threshold"`
	MaxFrameMB    int     `mapstructure:"max_frame_mb"`
}

type testConfig struct {
	ServiceConfig `yaml:",inline" mapstructure:",squash"`
	Stream        streamSection `mapstructure:"stream"`
}

func TestLoadConfig_FileThenEnv(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yml")
	content := `
name: pipekit
environment: staging
stream:
  drop_threshold: 0.2
  max_frame_mb: 5
`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	t.Setenv("STREAM_DROP_THRESHOLD", "0.25")

	var cfg testConfig
	if err := LoadConfig("pipekit", &cfg, WithConfigFile(path), WithEnvFile(filepath.Join(dir, "missing.env"))); err != nil {
		t.Fatalf("LoadConfig failed: %v", err)
	}
	if cfg.Name != "pipekit" || cfg.Environment != "staging" {
		t.Errorf("unexpected base config: %+v", cfg.ServiceConfig)
	}
	if cfg.Stream.DropThreshold != 0.25 {
		t.Errorf("expected env override 0.25, got %v", cfg.Stream.DropThreshold)
	}
	if cfg.Stream.MaxFrameMB != 5 {
		t.Errorf("expected max_frame_mb 5, got %d", cfg.Stream.MaxFrameMB)
	}
}

func TestLoadConfig_EnvFile(t *testing.T) {
	dir := t.TempDir()
	envPath := filepath.Join(dir, ".env")
	if err := os.WriteFile(envPath, []byte("PIPEKIT_TEST_STREAM_MAX_FRAME_MB=9\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { os.Unsetenv("PIPEKIT_TEST_STREAM_MAX_FRAME_MB") })

	type nested struct {
		Pipekit struct {
			Test struct {
				Stream streamSection `mapstructure:"stream"`
			} `mapstructure:"test"`
		} `mapstructure:"pipekit"`
	}
	var cfg nested
	if err := LoadConfig("pipekit", &cfg, WithConfigFile(filepath.Join(dir, "none.yml")), WithEnvFile(envPath)); err != nil {
		t.Fatalf("LoadConfig failed: %v", err)
	}
	if cfg.Pipekit.Test.Stream.MaxFrameMB != 9 {
		t.Errorf("expected 9 from .env, got %d", cfg.Pipekit.Test.Stream.MaxFrameMB)
	}
}

func TestLoadConfig_MissingFileIsNotAnError(t *testing.T) {
	var cfg testConfig
	if err := LoadConfig("nonexistent", &cfg, WithConfigFile("/nonexistent/config.yml"), WithEnvFile("/nonexistent/.env")); err != nil {
		t.Fatalf("expected success with missing files, got %v", err)
	}
}

func TestEnvKeyVariants(t *testing.T) {
	got := envKeyVariants("STREAM_DROP_THRESHOLD")
	for _, want := range []string{"stream_drop_threshold", "stream.drop.threshold", "stream.drop_threshold"} {
		if !slices.Contains(got, want) {
			t.Errorf("expected %q in %v", want, got)
		}
	}
	if got := envKeyVariants("PORT"); len(got) != 1 || got[0] != "port" {
		t.Errorf("unexpected single-word variants: %v", got)
	}
}

type fakeFS struct{ files map[string]bool }

func (f fakeFS) Exists(path string) bool { return f.files[path] }
func (f fakeFS) LoadEnv(string) error { return nil }

func TestFirstExisting_SearchOrder(t *testing.T) {
	fs := fakeFS{files: map[string]bool{"./config.yml": true, "./cmd/pipekit/config.yml": true}}
	if got := firstExisting(fs, configSearchPaths("pipekit")); got != "./cmd/pipekit/config.yml" {
		t.Errorf("expected cmd config to win, got %q", got)
	}
}

func TestServiceConfig_Validate(t *testing.T) {
	cfg := ServiceConfig{Name: "pipekit", Environment: "qa"}
	cfg.Logging.ApplyDefaults()
	err := cfg.Validate()
	if err == nil || !strings.Contains(err.Error(), "environment") {
		t.Fatalf("expected environment error, got %v", err)
	}

	cfg = ServiceConfig{Name: "pipekit"}
	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}
