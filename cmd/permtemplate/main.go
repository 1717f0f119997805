package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"permtemplate/internal/domain"
	"permtemplate/internal/usecase"
)

// version is stamped at build time with -ldflags "-X main.version=...".
var version = "dev"

const (
	exitOK    = 0
	exitError = 1
	exitUsage = 2
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	code := execute(ctx, os.Args[1:], os.Stdout, os.Stderr)
	stop()
	os.Exit(code)
}

// execute runs the command line and returns the process exit code.
func execute(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	root := newRootCommand(stdout, stderr)
	root.SetArgs(args)
	if err := root.ExecuteContext(ctx); err != nil {
		fmt.Fprintf(stderr, "error: %v\n", err)
		return exitCode(err)
	}
	return exitOK
}

func exitCode(err error) int {
	if domain.IsUsageError(err) {
		return exitUsage
	}
	return exitError
}

func newRootCommand(stdout, stderr io.Writer) *cobra.Command {
	opts := &options{}

	root := &cobra.Command{
		Use:   "permtemplate --source-dir DIR --output-file FILE [flags]",
		Short: "Generate a permission template from a directory tree",
		Long: `permtemplate scans a directory tree without following symlinks and records
the owner, group and mode of every file, directory and symlink. The result is
written as a JSON or YAML document, or rendered through a Go text/template
(with sprig functions) into any format.

Exclude patterns are doublestar globs matched against paths relative to the
source directory. A pattern without "/" also matches base names at any depth,
a leading "/" anchors a pattern to the source directory, and excluding a
directory excludes everything below it.`,
		Example: `  permtemplate --source-dir ./app --output-file perms.json
  permtemplate --source-dir ./app --output-file perms.yaml --output-format yaml \
      --exclude-patterns '.git/**,*.swp' --exclude-patterns 'secret/*'
  permtemplate --source-dir ./app --output-file fix.sh --output-format text \
      --template-file chmod.tmpl`,
		Args:          noArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runGenerate(cmd.Context(), cmd, opts, stderr)
		},
	}
	root.SetOut(stdout)
	root.SetErr(stderr)
	root.SetFlagErrorFunc(flagError)
	opts.register(root.PersistentFlags())

	root.AddCommand(
		newSchemaCommand(),
		newVersionCommand(),
		newDoctorCommand(opts),
	)
	return root
}

func noArgs(_ *cobra.Command, args []string) error {
	if len(args) > 0 {
		return usageError(fmt.Sprintf("unexpected arguments %q", args))
	}
	return nil
}

func flagError(_ *cobra.Command, err error) error {
	if errors.Is(err, pflag.ErrHelp) {
		return err
	}
	return usageError(err.Error())
}

func usageError(detail string) error {
	return domain.NewDomainError("permtemplate", domain.ErrInvalidInput, detail)
}

func newSchemaCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "schema",
		Short: "Print the JSON Schema of the raw output document",
		Args:  noArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			_, err := cmd.OutOrStdout().Write(usecase.DocumentSchema())
			return err
		},
	}
}

func newVersionCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the version",
		Args:  noArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			_, err := fmt.Fprintf(cmd.OutOrStdout(), "permtemplate %s\n", version)
			return err
		},
	}
}
