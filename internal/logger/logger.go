package logger

import (
	"io"
	"log/slog"
	"os"

	"github.com/google/uuid"
)

var Logger = slog.Default()

// Options controls the handler built by Init.
type Options struct {
	Debug  bool
	Format string // text | json
	Output io.Writer
}

// Init installs the process logger. Every record carries the run_id of this
// invocation so the lines of one scheduled run can be grouped.
func Init(opts Options) string {
	level := slog.LevelInfo
	if opts.Debug {
		level = slog.LevelDebug
	}

	out := opts.Output
	if out == nil {
		out = os.Stdout
	}

	handlerOpts := &slog.HandlerOptions{
		Level: level,
	}

	var handler slog.Handler
	if opts.Format == "json" {
		handler = slog.NewJSONHandler(out, handlerOpts)
	} else {
		handler = slog.NewTextHandler(out, handlerOpts)
	}

	runID := uuid.NewString()
	Logger = slog.New(handler).With("run_id", runID)
	slog.SetDefault(Logger)
	return runID
}

func Info(msg string, args ...any) {
	Logger.Info(msg, args...)
}

func Error(msg string, args ...any) {
	Logger.Error(msg, args...)
}

func Debug(msg string, args ...any) {
	Logger.Debug(msg, args...)
}

func Warn(msg string, args ...any) {
	Logger.Warn(msg, args...)
}
