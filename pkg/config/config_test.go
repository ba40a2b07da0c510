package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestDefaultConfigIsValid(t *testing.T) {
	cfg := DefaultConfig()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("default config invalid: %v", err)
	}
	if cfg.SessionTTL != 24*time.Hour {
		t.Errorf("SessionTTL = %v, want 24h", cfg.SessionTTL)
	}
	if cfg.Compiler.Command == "" {
		t.Error("default compiler command empty")
	}
}

func TestLoadMissingFileFallsBackToDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.SessionTTL != 24*time.Hour {
		t.Errorf("SessionTTL = %v, want default", cfg.SessionTTL)
	}
}

func TestLoadFromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	content := `
data_dir: /var/lib/vaultbuild
upload_dir: /srv/uploads
output_dir: /srv/output
session_ttl: 12h
compiler:
  command: /opt/compiler/bin/service
  args: ["--quiet"]
  startup_timeout: 30s
  max_concurrent: 4
  probe_timeout: 5s
`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.DataDir != "/var/lib/vaultbuild" || cfg.UploadDir != "/srv/uploads" {
		t.Errorf("dirs = %q / %q", cfg.DataDir, cfg.UploadDir)
	}
	if cfg.SessionTTL != 12*time.Hour {
		t.Errorf("SessionTTL = %v, want 12h", cfg.SessionTTL)
	}
	if cfg.Compiler.Command != "/opt/compiler/bin/service" {
		t.Errorf("Command = %q", cfg.Compiler.Command)
	}
	if cfg.Compiler.MaxConcurrent != 4 {
		t.Errorf("MaxConcurrent = %d", cfg.Compiler.MaxConcurrent)
	}
	if len(cfg.Compiler.Args) != 1 || cfg.Compiler.Args[0] != "--quiet" {
		t.Errorf("Args = %v", cfg.Compiler.Args)
	}
	if cfg.DatabasePath() != "/var/lib/vaultbuild/vaultbuild.db" {
		t.Errorf("DatabasePath() = %q", cfg.DatabasePath())
	}
}

func TestLoadRejectsInvalidFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte("compiler:\n  command: \"\"\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	if _, err := Load(path); err == nil {
		t.Error("Load() accepted an empty compiler command")
	}
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv("VAULTBUILD_DATA_DIR", "/env/data")
	t.Setenv("VAULTBUILD_SESSION_TTL", "1h")
	t.Setenv("VAULTBUILD_MAX_CONCURRENT", "8")
	t.Setenv("VAULTBUILD_LOG_LEVEL", "debug")

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.DataDir != "/env/data" {
		t.Errorf("DataDir = %q, want /env/data", cfg.DataDir)
	}
	if cfg.SessionTTL != time.Hour {
		t.Errorf("SessionTTL = %v, want 1h", cfg.SessionTTL)
	}
	if cfg.Compiler.MaxConcurrent != 8 {
		t.Errorf("MaxConcurrent = %d, want 8", cfg.Compiler.MaxConcurrent)
	}
	if cfg.Telemetry.Logging.Level != "debug" {
		t.Errorf("log level = %s, want debug", cfg.Telemetry.Logging.Level)
	}
}

func TestEnsureDirs(t *testing.T) {
	base := t.TempDir()
	cfg := DefaultConfig()
	cfg.DataDir = filepath.Join(base, "data")
	cfg.UploadDir = filepath.Join(base, "uploads")
	cfg.OutputDir = filepath.Join(base, "output")

	if err := cfg.EnsureDirs(); err != nil {
		t.Fatalf("EnsureDirs() error = %v", err)
	}
	for _, dir := range []string{cfg.DataDir, cfg.UploadDir, cfg.OutputDir} {
		if info, err := os.Stat(dir); err != nil || !info.IsDir() {
			t.Errorf("dir %s missing", dir)
		}
	}
}
