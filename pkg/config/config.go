// Package config loads the engine configuration from a YAML file with
// environment overrides. Defaults are usable out of the box; a config file
// is optional.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	"github.com/vaultbuild/vaultbuild/pkg/telemetry"
)

// Config is the root engine configuration.
type Config struct {
	// DataDir holds the SQLite database and other engine state.
	DataDir string `yaml:"data_dir" validate:"required"`

	// UploadDir is watched for incoming project archives and holds the
	// unpacked project folders, one per project id.
	UploadDir string `yaml:"upload_dir" validate:"required"`

	// OutputDir is where produced binaries land.
	OutputDir string `yaml:"output_dir" validate:"required"`

	// SessionTTL is how long a wizard session survives without
	// interaction.
	SessionTTL time.Duration `yaml:"session_ttl" validate:"gt=0"`

	// Compiler configures the external compiler service subprocess.
	Compiler CompilerConfig `yaml:"compiler"`

	// Telemetry configures logging, metrics and tracing.
	Telemetry telemetry.Config `yaml:"telemetry"`
}

// CompilerConfig configures the compiler service subprocess.
type CompilerConfig struct {
	// Command launches the compiler service. It must speak the JSON
	// line protocol on stdio.
	Command string `yaml:"command" validate:"required"`

	// Args are passed to the command.
	Args []string `yaml:"args"`

	// StartupTimeout bounds the wait for the service's ready handshake.
	StartupTimeout time.Duration `yaml:"startup_timeout" validate:"gt=0"`

	// MaxConcurrent bounds concurrent compiler invocations. Zero means
	// one per available CPU.
	MaxConcurrent int `yaml:"max_concurrent" validate:"gte=0"`

	// ProbeTimeout bounds each toolchain version probe.
	ProbeTimeout time.Duration `yaml:"probe_timeout" validate:"gt=0"`
}

// DefaultConfig returns a configuration suitable for local use.
func DefaultConfig() *Config {
	base := ".vaultbuild"
	if home, err := os.UserHomeDir(); err == nil {
		base = filepath.Join(home, ".vaultbuild")
	}

	return &Config{
		DataDir:    filepath.Join(base, "data"),
		UploadDir:  filepath.Join(base, "uploads"),
		OutputDir:  filepath.Join(base, "output"),
		SessionTTL: 24 * time.Hour,
		Compiler: CompilerConfig{
			Command:        "vaultbuild-compiler",
			StartupTimeout: 10 * time.Second,
			MaxConcurrent:  0,
			ProbeTimeout:   10 * time.Second,
		},
		Telemetry: *telemetry.DefaultConfig(),
	}
}

// Load reads the configuration from path, falling back to defaults when the
// path is empty or the file does not exist, then applies environment
// overrides and validates the result.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case os.IsNotExist(err):
			// Defaults apply.
		case err != nil:
			return nil, fmt.Errorf("failed to read config file: %w", err)
		default:
			if err := yaml.Unmarshal(data, cfg); err != nil {
				return nil, fmt.Errorf("failed to parse config file: %w", err)
			}
		}
	}

	applyEnvOverrides(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// applyEnvOverrides lets the environment override file values, matching the
// VAULTBUILD_ prefix convention.
func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("VAULTBUILD_DATA_DIR"); v != "" {
		cfg.DataDir = v
	}
	if v := os.Getenv("VAULTBUILD_UPLOAD_DIR"); v != "" {
		cfg.UploadDir = v
	}
	if v := os.Getenv("VAULTBUILD_OUTPUT_DIR"); v != "" {
		cfg.OutputDir = v
	}
	if v := os.Getenv("VAULTBUILD_SESSION_TTL"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.SessionTTL = d
		}
	}
	if v := os.Getenv("VAULTBUILD_COMPILER_COMMAND"); v != "" {
		cfg.Compiler.Command = v
	}
	if v := os.Getenv("VAULTBUILD_MAX_CONCURRENT"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n >= 0 {
			cfg.Compiler.MaxConcurrent = n
		}
	}
	if v := os.Getenv("VAULTBUILD_LOG_LEVEL"); v != "" {
		cfg.Telemetry.Logging.Level = v
	}
}

var validate = validator.New()

// Validate checks the configuration for consistency.
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	if err := c.Telemetry.Validate(); err != nil {
		return fmt.Errorf("invalid telemetry configuration: %w", err)
	}
	return nil
}

// DatabasePath returns the SQLite database location under DataDir.
func (c *Config) DatabasePath() string {
	return filepath.Join(c.DataDir, "vaultbuild.db")
}

// EnsureDirs creates the configured directories.
func (c *Config) EnsureDirs() error {
	for _, dir := range []string{c.DataDir, c.UploadDir, c.OutputDir} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("failed to create %s: %w", dir, err)
		}
	}
	return nil
}
