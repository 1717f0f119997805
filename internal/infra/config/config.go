package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"

	"permtemplate/internal/domain"
)

// DefaultPath is the config file consulted when --config is not given.
const DefaultPath = "permtemplate.yaml"

// Config is the top-level application configuration.
type Config struct {
	Scan     ScanConfig   `yaml:"scan"`
	Output   OutputConfig `yaml:"output"`
	Logger   LoggerConfig `yaml:"logger"`
	Tracer   TracerConfig `yaml:"tracer"`
	Audit    AuditConfig  `yaml:"audit"`
	Includes []string     `yaml:"includes,omitempty"`
}

// ScanConfig holds scanner and filter settings.
type ScanConfig struct {
	ExcludePatterns []string `yaml:"exclude_patterns"`
	NumericIDs      bool     `yaml:"numeric_ids"`
}

// OutputConfig holds renderer and writer settings.
type OutputConfig struct {
	Format    string      `yaml:"format"`     // json, yaml or text
	Normalize bool        `yaml:"normalize"`  // re-serialize templated json/yaml
	FileMode  os.FileMode `yaml:"file_mode"`  // permissions of the written file
	Schema    string      `yaml:"schema_file"` // optional JSON Schema path
}

// LoggerConfig holds logging settings.
type LoggerConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
	Output string `yaml:"output"`
}

// TracerConfig holds tracing settings.
type TracerConfig struct {
	Enabled  bool   `yaml:"enabled"`
	Exporter string `yaml:"exporter"`
}

// AuditConfig holds the optional run audit trail.
type AuditConfig struct {
	Path    string `yaml:"path"`     // JSONL file appended once per run; empty disables
	MaxSize string `yaml:"max_size"` // e.g. "10MB"; oldest lines are dropped beyond it
}

// Defaults returns a Config with sensible defaults.
func Defaults() *Config {
	return &Config{
		Output: OutputConfig{
			Format:   "json",
			FileMode: 0o644,
		},
		Logger: LoggerConfig{
			Level:  "info",
			Format: "text",
			Output: "stderr",
		},
		Tracer: TracerConfig{
			Enabled:  false,
			Exporter: "noop",
		},
	}
}

// Load reads the YAML file at path on top of Defaults, applies environment
// overrides and validates the result. A missing file is not an error.
func Load(path string) (*Config, error) {
	cfg := Defaults()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			ApplyEnvOverrides(cfg)
			if err := Validate(cfg); err != nil {
				return nil, loadError(err)
			}
			return cfg, nil
		}
		return nil, loadError(fmt.Errorf("read config: %w", err))
	}

	absPath, err := filepath.Abs(path)
	if err != nil {
		return nil, loadError(fmt.Errorf("resolve config path: %w", err))
	}

	if err := validatePermissions(absPath); err != nil {
		return nil, loadError(err)
	}

	// First pass: unmarshal to get the includes list.
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, loadError(fmt.Errorf("parse config: %w", err))
	}

	if len(cfg.Includes) > 0 {
		// The main file's patterns are re-added by the second pass.
		cfg.Scan.ExcludePatterns = nil

		visited := map[string]bool{absPath: true}
		if err := processIncludes(cfg, filepath.Dir(absPath), visited, 0); err != nil {
			return nil, loadError(err)
		}

		// Second pass: the main file takes precedence over includes.
		if err := overlay(cfg, data); err != nil {
			return nil, loadError(fmt.Errorf("parse config (second pass): %w", err))
		}
		cfg.Includes = nil
	}

	ApplyEnvOverrides(cfg)

	if err := Validate(cfg); err != nil {
		return nil, loadError(err)
	}

	return cfg, nil
}

func loadError(err error) error {
	return fmt.Errorf("%w: %w", domain.ErrConfigLoad, err)
}

// ApplyEnvOverrides applies PERMTEMPLATE_* environment variables to cfg.
func ApplyEnvOverrides(cfg *Config) {
	if v := os.Getenv("PERMTEMPLATE_LOGGER_LEVEL"); v != "" {
		cfg.Logger.Level = v
	}
	if v := os.Getenv("PERMTEMPLATE_LOGGER_FORMAT"); v != "" {
		cfg.Logger.Format = v
	}
	if v := os.Getenv("PERMTEMPLATE_LOGGER_OUTPUT"); v != "" {
		cfg.Logger.Output = v
	}
	if v := os.Getenv("PERMTEMPLATE_OUTPUT_FORMAT"); v != "" {
		cfg.Output.Format = v
	}
	if v := os.Getenv("PERMTEMPLATE_OUTPUT_NORMALIZE"); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			cfg.Output.Normalize = b
		}
	}
	if v := os.Getenv("PERMTEMPLATE_OUTPUT_FILE_MODE"); v != "" {
		if m, err := strconv.ParseUint(v, 8, 32); err == nil {
			cfg.Output.FileMode = os.FileMode(m)
		}
	}
	if v := os.Getenv("PERMTEMPLATE_SCAN_EXCLUDE"); v != "" {
		cfg.Scan.ExcludePatterns = append(cfg.Scan.ExcludePatterns, splitAndTrim(v, ",")...)
	}
	if v := os.Getenv("PERMTEMPLATE_SCAN_NUMERIC_IDS"); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			cfg.Scan.NumericIDs = b
		}
	}
	if v := os.Getenv("PERMTEMPLATE_TRACER_ENABLED"); v == "true" {
		cfg.Tracer.Enabled = true
	}
	if v := os.Getenv("PERMTEMPLATE_TRACER_EXPORTER"); v != "" {
		cfg.Tracer.Exporter = v
	}
	if v := os.Getenv("PERMTEMPLATE_AUDIT_PATH"); v != "" {
		cfg.Audit.Path = v
	}
}

func splitAndTrim(s, sep string) []string {
	var out []string
	for _, part := range strings.Split(s, sep) {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// validatePermissions rejects config files writable by group or others.
func validatePermissions(path string) error {
	info, err := os.Stat(path)
	if err != nil {
		return fmt.Errorf("stat config: %w", err)
	}
	mode := info.Mode().Perm()
	if mode&0o022 != 0 {
		return fmt.Errorf("config file %s has insecure permissions %o (want 0600 or 0644)", path, mode)
	}
	return nil
}
