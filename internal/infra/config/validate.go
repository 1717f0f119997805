package config

import (
	"fmt"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
)

// ValidationError accumulates config validation errors.
type ValidationError struct {
	Errors []string
}

func (v *ValidationError) Error() string {
	return "config validation failed:\n  - " + strings.Join(v.Errors, "\n  - ")
}

// HasErrors reports whether any validation errors have been recorded.
func (v *ValidationError) HasErrors() bool {
	return len(v.Errors) > 0
}

// Add records a formatted validation error.
func (v *ValidationError) Add(format string, args ...interface{}) {
	v.Errors = append(v.Errors, fmt.Sprintf(format, args...))
}

// Validate checks cfg for structural correctness. It returns a *ValidationError
// when one or more problems are found, allowing callers to inspect all issues.
func Validate(cfg *Config) error {
	ve := &ValidationError{}
	validateScan(cfg, ve)
	validateOutput(cfg, ve)
	validateLogger(cfg, ve)
	validateTracer(cfg, ve)
	if ve.HasErrors() {
		return ve
	}
	return nil
}

func validateScan(cfg *Config, ve *ValidationError) {
	for i, p := range cfg.Scan.ExcludePatterns {
		if strings.TrimSpace(p) == "" {
			ve.Add("scan.exclude_patterns[%d] must not be empty", i)
			continue
		}
		if !doublestar.ValidatePattern(p) {
			ve.Add("scan.exclude_patterns[%d] %q is not a valid glob", i, p)
		}
	}
}

var validFormats = map[string]bool{
	"json": true,
	"yaml": true,
	"text": true,
}

func validateOutput(cfg *Config, ve *ValidationError) {
	if !validFormats[cfg.Output.Format] {
		ve.Add("output.format %q must be one of json, yaml, text", cfg.Output.Format)
	}
	if cfg.Output.FileMode&^0o777 != 0 {
		ve.Add("output.file_mode %o must only contain permission bits", cfg.Output.FileMode)
	}
	if cfg.Output.FileMode&0o600 != 0o600 {
		ve.Add("output.file_mode %o must be readable and writable by the owner", cfg.Output.FileMode)
	}
}

var validLevels = map[string]bool{
	"debug": true, "info": true, "warn": true, "warning": true, "error": true,
}

func validateLogger(cfg *Config, ve *ValidationError) {
	if !validLevels[strings.ToLower(cfg.Logger.Level)] {
		ve.Add("logger.level %q must be one of debug, info, warn, error", cfg.Logger.Level)
	}
	switch strings.ToLower(cfg.Logger.Format) {
	case "text", "json":
	default:
		ve.Add("logger.format %q must be text or json", cfg.Logger.Format)
	}
}

func validateTracer(cfg *Config, ve *ValidationError) {
	if !cfg.Tracer.Enabled {
		return
	}
	switch cfg.Tracer.Exporter {
	case "", "noop", "stdout":
	default:
		ve.Add("tracer.exporter %q must be noop or stdout", cfg.Tracer.Exporter)
	}
}
