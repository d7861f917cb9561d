package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestDefaultConfig_IsValidAfterResolve(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Resolve()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("default config invalid: %v", err)
	}
	if cfg.DBPath != filepath.Join(cfg.DataDir, "events.db") {
		t.Errorf("db path = %s", cfg.DBPath)
	}
}

func TestValidate_RejectsBadValues(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Fetch.Concurrency = 0
	if err := cfg.Validate(); err == nil {
		t.Error("zero concurrency passed validation")
	}

	cfg = DefaultConfig()
	cfg.Backfill.BatchSizeHours = -1
	if err := cfg.Validate(); err == nil {
		t.Error("negative batch size passed validation")
	}
}

func TestLoadFromFile_YAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	content := `
data_dir: /var/lib/tributary
fetch:
  region: us-west-2
  bucket_prefix: tributary-
  concurrency: 8
backfill:
  batch_size_hours: 6
`
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("write: %v", err)
	}

	cfg, err := LoadFromFile(path)
	if err != nil {
		t.Fatalf("load failed: %v", err)
	}
	if cfg.DataDir != "/var/lib/tributary" {
		t.Errorf("data_dir = %s", cfg.DataDir)
	}
	if cfg.Fetch.Region != "us-west-2" || cfg.Fetch.Concurrency != 8 {
		t.Errorf("fetch config = %+v", cfg.Fetch)
	}
	if cfg.Backfill.BatchSizeHours != 6 {
		t.Errorf("batch_size_hours = %d", cfg.Backfill.BatchSizeHours)
	}
}

func TestLoadFromFile_UnsupportedExtension(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	if err := os.WriteFile(path, []byte("x = 1"), 0644); err != nil {
		t.Fatalf("write: %v", err)
	}
	if _, err := LoadFromFile(path); err == nil {
		t.Error("toml config did not fail")
	}
}

func TestLoadFromEnv_Overrides(t *testing.T) {
	t.Setenv("TRIBUTARY_DATA_DIR", "/tmp/tributary-test")
	t.Setenv("TRIBUTARY_FETCH_REGION", "eu-west-1")
	t.Setenv("TRIBUTARY_FETCH_USE_PATH_STYLE", "true")
	t.Setenv("TRIBUTARY_FETCH_CONCURRENCY", "16")
	t.Setenv("TRIBUTARY_BACKFILL_BATCH_SIZE_HOURS", "12")

	cfg := DefaultConfig()
	LoadFromEnv(cfg)

	if cfg.DataDir != "/tmp/tributary-test" {
		t.Errorf("data_dir = %s", cfg.DataDir)
	}
	if cfg.Fetch.Region != "eu-west-1" {
		t.Errorf("region = %s", cfg.Fetch.Region)
	}
	if !cfg.Fetch.UsePathStyle {
		t.Error("use_path_style not set")
	}
	if cfg.Fetch.Concurrency != 16 {
		t.Errorf("concurrency = %d", cfg.Fetch.Concurrency)
	}
	if cfg.Backfill.BatchSizeHours != 12 {
		t.Errorf("batch_size_hours = %d", cfg.Backfill.BatchSizeHours)
	}
}

func TestEnsureDirectories(t *testing.T) {
	base := t.TempDir()
	cfg := DefaultConfig()
	cfg.DataDir = filepath.Join(base, "data")
	cfg.Fetch.SpoolDir = filepath.Join(base, "spool")
	cfg.Resolve()

	if err := cfg.EnsureDirectories(); err != nil {
		t.Fatalf("ensure failed: %v", err)
	}
	for _, dir := range []string{cfg.DataDir, cfg.Fetch.SpoolDir} {
		if info, err := os.Stat(dir); err != nil || !info.IsDir() {
			t.Errorf("directory %s not created", dir)
		}
	}
}
