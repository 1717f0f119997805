package main

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"permtemplate/internal/infra/config"
	"permtemplate/internal/security"
	"permtemplate/internal/usecase"
)

// CheckStatus represents the result of a preflight check.
type CheckStatus string

const (
	StatusPass CheckStatus = "PASS"
	StatusWarn CheckStatus = "WARN"
	StatusFail CheckStatus = "FAIL"
)

// CheckResult holds the outcome of a single check.
type CheckResult struct {
	Name    string
	Status  CheckStatus
	Message string
	Fix     string // optional fix suggestion
}

// Check is a named preflight check.
type Check struct {
	Name string
	Fn   func(cfg *config.Config, opts *options) CheckResult
}

func newDoctorCommand(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "doctor",
		Short: "Check configuration and inputs without scanning or writing",
		Args:  noArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runDoctor(cmd, opts, cmd.OutOrStdout())
		},
	}
}

// runDoctor runs every check and prints one line per result. Later checks
// still run when the config cannot be loaded; they fall back to defaults
// plus the flags.
func runDoctor(cmd *cobra.Command, opts *options, out io.Writer) error {
	cfg, cfgErr := loadConfig(cmd, opts)

	checks := []Check{
		{Name: "Config file", Fn: checkConfigFile(opts.configPath, cfgErr)},
		{Name: "Source directory", Fn: checkSourceDir},
		{Name: "Exclude patterns", Fn: checkExcludePatterns},
		{Name: "Output format", Fn: checkOutputFormat},
		{Name: "Template", Fn: checkTemplate},
		{Name: "Schema", Fn: checkSchema},
		{Name: "Output directory", Fn: checkOutputDir},
	}
	if cfg == nil {
		cfg = config.Defaults()
		cfg.Scan.ExcludePatterns = opts.excludes
		cfg.Output.Format = opts.format
		cfg.Output.Schema = opts.schemaFile
	}

	fmt.Fprintln(out, "permtemplate doctor")
	fmt.Fprintln(out, strings.Repeat("=", 50))

	var fail int
	for _, check := range checks {
		result := check.Fn(cfg, opts)
		result.Name = check.Name

		fmt.Fprintf(out, "  [%s] %s: %s\n", result.Status, result.Name, result.Message)
		if result.Fix != "" {
			fmt.Fprintf(out, "         Fix: %s\n", result.Fix)
		}
		if result.Status == StatusFail {
			fail++
		}
	}

	if fail > 0 {
		return fmt.Errorf("%d check(s) failed", fail)
	}
	fmt.Fprintln(out, "All checks passed.")
	return nil
}

func checkConfigFile(cfgPath string, cfgErr error) func(*config.Config, *options) CheckResult {
	return func(*config.Config, *options) CheckResult {
		if cfgErr != nil {
			return CheckResult{
				Status:  StatusFail,
				Message: cfgErr.Error(),
				Fix:     "Fix the config file or pass --config with a valid path",
			}
		}
		if _, err := os.Stat(cfgPath); os.IsNotExist(err) {
			return CheckResult{Status: StatusPass, Message: "no config file, using defaults"}
		}
		return CheckResult{Status: StatusPass, Message: fmt.Sprintf("loaded %s", cfgPath)}
	}
}

func checkSourceDir(_ *config.Config, opts *options) CheckResult {
	if opts.sourceDir == "" {
		return CheckResult{Status: StatusWarn, Message: "not set", Fix: "Pass --source-dir"}
	}
	sandbox, err := security.NewSandbox(opts.sourceDir)
	if err != nil {
		return CheckResult{Status: StatusFail, Message: err.Error()}
	}
	entries, err := os.ReadDir(sandbox.Root())
	if err != nil {
		return CheckResult{Status: StatusFail, Message: err.Error(), Fix: "Grant read access to the source directory"}
	}
	if len(entries) == 0 {
		return CheckResult{Status: StatusWarn, Message: fmt.Sprintf("%s is empty", sandbox.Root())}
	}
	return CheckResult{Status: StatusPass, Message: sandbox.Root()}
}

func checkExcludePatterns(cfg *config.Config, _ *options) CheckResult {
	if _, err := usecase.NewFilter(cfg.Scan.ExcludePatterns); err != nil {
		return CheckResult{Status: StatusFail, Message: err.Error()}
	}
	if len(cfg.Scan.ExcludePatterns) == 0 {
		return CheckResult{Status: StatusPass, Message: "none"}
	}
	return CheckResult{Status: StatusPass, Message: strings.Join(cfg.Scan.ExcludePatterns, ", ")}
}

func checkOutputFormat(cfg *config.Config, opts *options) CheckResult {
	format, err := usecase.ParseFormat(cfg.Output.Format)
	if err != nil {
		return CheckResult{Status: StatusFail, Message: err.Error()}
	}
	if format == usecase.FormatText && opts.templateFile == "" {
		return CheckResult{Status: StatusFail, Message: "text format requires a template", Fix: "Pass --template-file"}
	}
	return CheckResult{Status: StatusPass, Message: string(format)}
}

func checkTemplate(_ *config.Config, opts *options) CheckResult {
	if opts.templateFile == "" {
		return CheckResult{Status: StatusPass, Message: "none, raw document output"}
	}
	if _, err := usecase.LoadTemplate(opts.templateFile); err != nil {
		return CheckResult{Status: StatusFail, Message: err.Error()}
	}
	return CheckResult{Status: StatusPass, Message: opts.templateFile}
}

func checkSchema(cfg *config.Config, _ *options) CheckResult {
	if cfg.Output.Schema == "" {
		return CheckResult{Status: StatusPass, Message: "none"}
	}
	if _, err := usecase.LoadSchema(cfg.Output.Schema); err != nil {
		return CheckResult{Status: StatusFail, Message: err.Error()}
	}
	return CheckResult{Status: StatusPass, Message: cfg.Output.Schema}
}

func checkOutputDir(_ *config.Config, opts *options) CheckResult {
	if opts.outputFile == "" {
		return CheckResult{Status: StatusWarn, Message: "not set", Fix: "Pass --output-file"}
	}
	abs, err := filepath.Abs(opts.outputFile)
	if err != nil {
		return CheckResult{Status: StatusFail, Message: err.Error()}
	}

	// Walk up to the nearest existing ancestor; missing directories are
	// created on write.
	dir := filepath.Dir(abs)
	for {
		info, err := os.Stat(dir)
		if err == nil {
			if !info.IsDir() {
				return CheckResult{Status: StatusFail, Message: fmt.Sprintf("%s is not a directory", dir)}
			}
			break
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return CheckResult{Status: StatusFail, Message: err.Error()}
		}
		dir = parent
	}

	if err := writable(dir); err != nil {
		return CheckResult{
			Status:  StatusFail,
			Message: fmt.Sprintf("%s is not writable: %v", dir, err),
			Fix:     "Choose an output location you can write to",
		}
	}

	if info, err := os.Stat(abs); err == nil && info.IsDir() {
		return CheckResult{Status: StatusFail, Message: fmt.Sprintf("%s is a directory", abs)}
	}
	return CheckResult{Status: StatusPass, Message: abs}
}
