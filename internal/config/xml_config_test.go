package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadConfigCreatesDefault(t *testing.T) {
	path := filepath.Join(t.TempDir(), "ConvertAllHub.config")

	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if cfg.Server.Port != 8090 {
		t.Errorf("expected default port 8090, got %d", cfg.Server.Port)
	}
	if cfg.Processing.BatchConcurrency != 3 {
		t.Errorf("expected batch concurrency 3, got %d", cfg.Processing.BatchConcurrency)
	}
	if _, err := os.Stat(path); err != nil {
		t.Errorf("default config file should have been written: %v", err)
	}
}

func TestLoadConfigParsesExisting(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "ConvertAllHub.config")

	content := `<?xml version="1.0" encoding="UTF-8"?>
<ConvertAllHub>
  <Server>
    <Port>9999</Port>
    <BindAddress>127.0.0.1</BindAddress>
  </Server>
  <Storage>
    <DataDirectory>./custom-data</DataDirectory>
  </Storage>
  <Processing>
    <BackendURL>http://backend:9000</BackendURL>
    <BatchConcurrency>5</BatchConcurrency>
  </Processing>
</ConvertAllHub>`
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("writing config: %v", err)
	}

	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if cfg.Server.Port != 9999 {
		t.Errorf("expected port 9999, got %d", cfg.Server.Port)
	}
	if cfg.Processing.BackendURL != "http://backend:9000" {
		t.Errorf("unexpected backend url: %s", cfg.Processing.BackendURL)
	}
	if cfg.Processing.BatchConcurrency != 5 {
		t.Errorf("expected batch concurrency 5, got %d", cfg.Processing.BatchConcurrency)
	}

	// Relative paths resolve against the config directory.
	want := filepath.Join(dir, "custom-data")
	if cfg.Storage.DataDirectory != want {
		t.Errorf("expected data dir %s, got %s", want, cfg.Storage.DataDirectory)
	}
}

func TestEnvironmentOverrides(t *testing.T) {
	t.Setenv("CONVERTHUB_PORT", "7070")
	t.Setenv("CONVERTHUB_BACKEND_URL", "http://override:9000")
	t.Setenv("CONVERTHUB_DEFAULT_TIER", "pro")

	path := filepath.Join(t.TempDir(), "ConvertAllHub.config")
	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if cfg.Server.Port != 7070 {
		t.Errorf("expected env port 7070, got %d", cfg.Server.Port)
	}
	if cfg.Processing.BackendURL != "http://override:9000" {
		t.Errorf("unexpected backend url: %s", cfg.Processing.BackendURL)
	}
	if cfg.Security.DefaultTier != "pro" {
		t.Errorf("expected tier pro, got %s", cfg.Security.DefaultTier)
	}
}

func TestGetServerAddr(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Server.BindAddress = "127.0.0.1"
	cfg.Server.Port = 8090

	if got := cfg.GetServerAddr(); got != "127.0.0.1:8090" {
		t.Errorf("unexpected addr: %s", got)
	}
}
