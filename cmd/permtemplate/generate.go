package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"permtemplate/internal/adapter/filesystem"
	"permtemplate/internal/domain"
	"permtemplate/internal/infra/config"
	"permtemplate/internal/infra/logger"
	"permtemplate/internal/infra/tracer"
	"permtemplate/internal/security"
	"permtemplate/internal/usecase"
)

// options holds the raw command-line values. Values that also exist in the
// config file only override it when the flag was given.
type options struct {
	sourceDir    string
	outputFile   string
	templateFile string
	excludes     []string
	format       string
	normalize    bool
	schemaFile   string
	numericIDs   bool
	configPath   string
	logLevel     string
	logFormat    string
	auditLog     string
}

func (o *options) register(flags *pflag.FlagSet) {
	flags.StringVar(&o.sourceDir, "source-dir", "", "directory to scan (required)")
	flags.StringVar(&o.outputFile, "output-file", "", "file to write (required)")
	flags.StringVar(&o.templateFile, "template-file", "", "text/template file used to render the output")
	flags.StringSliceVar(&o.excludes, "exclude-patterns", nil, "glob patterns to exclude; repeatable and comma-separated")
	flags.StringVar(&o.format, "output-format", "json", "output format: json, yaml or text")
	flags.BoolVar(&o.normalize, "normalize", false, "re-serialize templated json/yaml output")
	flags.StringVar(&o.schemaFile, "schema-file", "", "JSON Schema (json or yaml) the output must satisfy")
	flags.BoolVar(&o.numericIDs, "numeric-ids", false, "report numeric uid/gid instead of user and group names")
	flags.StringVar(&o.configPath, "config", config.DefaultPath, "config file")
	flags.StringVar(&o.logLevel, "log-level", "", "log level: debug, info, warn or error")
	flags.StringVar(&o.logFormat, "log-format", "", "log format: text or json")
	flags.StringVar(&o.auditLog, "audit-log", "", "append a JSON line describing each run to this file")
}

func (o *options) requireIO() error {
	var missing []string
	if strings.TrimSpace(o.sourceDir) == "" {
		missing = append(missing, "--source-dir")
	}
	if strings.TrimSpace(o.outputFile) == "" {
		missing = append(missing, "--output-file")
	}
	if len(missing) > 0 {
		return usageError(fmt.Sprintf("required flag(s) %s not set", strings.Join(missing, ", ")))
	}
	return nil
}

// loadConfig reads the config file and applies the flags given on the
// command line on top of it.
func loadConfig(cmd *cobra.Command, opts *options) (*config.Config, error) {
	flags := cmd.Flags()

	if flags.Changed("config") {
		if _, err := os.Stat(opts.configPath); errors.Is(err, fs.ErrNotExist) {
			return nil, domain.NewDomainError("config", domain.ErrConfigLoad, fmt.Sprintf("config file %q not found", opts.configPath))
		}
	}
	cfg, err := config.Load(opts.configPath)
	if err != nil {
		return nil, err
	}

	if flags.Changed("output-format") {
		cfg.Output.Format = opts.format
	}
	if flags.Changed("normalize") {
		cfg.Output.Normalize = opts.normalize
	}
	if flags.Changed("schema-file") {
		cfg.Output.Schema = opts.schemaFile
	}
	if flags.Changed("numeric-ids") {
		cfg.Scan.NumericIDs = opts.numericIDs
	}
	if flags.Changed("log-level") {
		cfg.Logger.Level = opts.logLevel
	}
	if flags.Changed("log-format") {
		cfg.Logger.Format = opts.logFormat
	}
	if flags.Changed("audit-log") {
		cfg.Audit.Path = opts.auditLog
	}
	cfg.Scan.ExcludePatterns = append(cfg.Scan.ExcludePatterns, opts.excludes...)

	if err := config.Validate(cfg); err != nil {
		return nil, usageError(err.Error())
	}
	return cfg, nil
}

func runGenerate(ctx context.Context, cmd *cobra.Command, opts *options, stderr io.Writer) error {
	if err := opts.requireIO(); err != nil {
		return err
	}
	cfg, err := loadConfig(cmd, opts)
	if err != nil {
		return err
	}

	log, closeLog, err := logger.New(cfg.Logger, stderr)
	if err != nil {
		return domain.NewDomainError("logger", domain.ErrConfigLoad, err.Error())
	}
	defer closeLog()

	shutdown, err := tracer.Setup(ctx, cfg.Tracer, stderr)
	if err != nil {
		return domain.NewDomainError("tracer", domain.ErrConfigLoad, err.Error())
	}
	defer func() {
		if err := shutdown(context.WithoutCancel(ctx)); err != nil {
			log.Warn("tracer shutdown failed", "error", err)
		}
	}()

	gen, err := buildGenerator(cfg, opts, log)
	if err != nil {
		return err
	}

	audit, err := openAudit(cfg.Audit, log)
	if err != nil {
		return err
	}
	if audit != nil {
		defer audit.Close()
		gen.WithAudit(audit)
	}

	// Directories created for the output must exist before the scan, or the
	// first run would list fewer entries than every later one.
	if err := filesystem.PrepareOutputDir(opts.outputFile); err != nil {
		return err
	}
	_, err = gen.Generate(ctx, opts.outputFile, cfg.Output.FileMode)
	return err
}

// openAudit returns nil when no audit path is configured. Retention runs once
// per invocation, before the new record is appended.
func openAudit(cfg config.AuditConfig, log *slog.Logger) (*security.FileAuditLogger, error) {
	if cfg.Path == "" {
		return nil, nil
	}
	maxSize, err := security.ParseSize(cfg.MaxSize)
	if err != nil {
		return nil, usageError(fmt.Sprintf("audit.max_size: %v", err))
	}

	audit, err := security.NewFileAuditLogger(cfg.Path)
	if err != nil {
		return nil, err
	}
	audit.SetMaxSize(maxSize)
	if removed, err := audit.EnforceRetention(); err != nil {
		log.Warn("audit retention failed", "path", cfg.Path, "error", err)
	} else if removed > 0 {
		log.Debug("audit log trimmed", "path", cfg.Path, "removed", removed)
	}
	return audit, nil
}

// buildGenerator validates every input before anything is scanned, so a bad
// pattern, template or schema fails fast.
func buildGenerator(cfg *config.Config, opts *options, log *slog.Logger) (*usecase.Generator, error) {
	sandbox, err := security.NewSandbox(opts.sourceDir)
	if err != nil {
		return nil, err
	}

	format, err := usecase.ParseFormat(cfg.Output.Format)
	if err != nil {
		return nil, err
	}

	filter, err := usecase.NewFilter(cfg.Scan.ExcludePatterns)
	if err != nil {
		return nil, err
	}
	excludeOutput(filter, sandbox, opts.outputFile, log)
	if cfg.Audit.Path != "" {
		excludeOutput(filter, sandbox, cfg.Audit.Path, log)
	}

	tmpl, err := loadTemplate(opts.templateFile)
	if err != nil {
		return nil, err
	}
	schema, err := loadSchema(cfg.Output.Schema)
	if err != nil {
		return nil, err
	}

	renderer, err := usecase.NewRenderer(usecase.RenderOptions{
		Format:    format,
		Template:  tmpl,
		Normalize: cfg.Output.Normalize,
		Schema:    schema,
		SourceDir: opts.sourceDir,
	})
	if err != nil {
		return nil, err
	}

	scanner := usecase.NewScanner(
		filesystem.Local(sandbox.Root()),
		filesystem.NewOwnerResolver(cfg.Scan.NumericIDs),
		log,
	)
	return usecase.NewGenerator(scanner, filter, renderer, filesystem.HostWriter{}, log), nil
}

// excludeOutput keeps a file this tool writes out of the scan when it lies
// inside the source tree, so a rerun never lists its own output.
func excludeOutput(filter *usecase.Filter, sandbox *security.Sandbox, output string, log *slog.Logger) {
	if rel, ok := sandbox.Rel(output); ok {
		log.Debug("excluding output file from scan", "path", rel)
		filter.ExcludePath(rel)
	}
}

func loadTemplate(path string) (*usecase.Template, error) {
	if path == "" {
		return nil, nil
	}
	return usecase.LoadTemplate(path)
}

func loadSchema(path string) (*usecase.Schema, error) {
	if path == "" {
		return nil, nil
	}
	return usecase.LoadSchema(path)
}
