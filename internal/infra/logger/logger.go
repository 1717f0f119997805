// Package logger builds the diagnostics logger of a permtemplate run.
// Diagnostics never go to stdout unless asked for, so a document piped out
// of the tool stays clean.
package logger

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/oklog/ulid/v2"

	"permtemplate/internal/infra/config"
)

// RunKey is the attribute carrying the per-invocation run ID. Lines from
// several runs appended to one log file can be told apart by it.
const RunKey = "run"

// New builds the run logger from cfg. logger.output is "stderr" (the
// default, written to the given stderr), "stdout", or a file path opened for
// appending with 0600 permissions. The closer releases that file.
func New(cfg config.LoggerConfig, stderr io.Writer) (*slog.Logger, func() error, error) {
	if stderr == nil {
		stderr = os.Stderr
	}
	w, closer, err := openOutput(cfg.Output, stderr)
	if err != nil {
		return nil, nil, fmt.Errorf("open log output %q: %w", cfg.Output, err)
	}

	opts := &slog.HandlerOptions{Level: parseLevel(cfg.Level)}
	var h slog.Handler = slog.NewTextHandler(w, opts)
	if strings.EqualFold(cfg.Format, "json") {
		h = slog.NewJSONHandler(w, opts)
	}
	return slog.New(h).With(RunKey, ulid.Make().String()), closer, nil
}

// Discard drops every record; used where a stage needs a logger but the
// caller wants silence.
func Discard() *slog.Logger {
	return slog.New(slog.DiscardHandler)
}

// parseLevel maps logger.level; config validation has already rejected
// unknown names, so anything else means info.
func parseLevel(s string) slog.Level {
	switch strings.ToLower(s) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

func openOutput(output string, stderr io.Writer) (io.Writer, func() error, error) {
	keep := func() error { return nil }

	switch strings.ToLower(output) {
	case "", "stderr":
		return stderr, keep, nil
	case "stdout":
		return os.Stdout, keep, nil
	}
	f, err := os.OpenFile(output, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o600)
	if err != nil {
		return nil, nil, err
	}
	return f, f.Close, nil
}
