package logger

import (
	"io"
	"log/slog"
	"os"

	"github.com/wachiwi/pi-control/pkg/logs"
)

// Options configure the global logger.
type Options struct {
	// Level is shared with the runtime setLogLevel command. A nil Level
	// logs at INFO.
	Level *slog.LevelVar
	// Format is "text" (default) or "json".
	Format string
	// Store receives a copy of every record when set.
	Store *logs.Store
	// Output defaults to stdout.
	Output io.Writer
}

// Setup initializes the global logger.
// It writes human-readable text to stdout unless JSON is requested.
func Setup(opts Options) *slog.Logger {
	if opts.Level == nil {
		opts.Level = new(slog.LevelVar)
	}
	if opts.Output == nil {
		opts.Output = os.Stdout
	}

	hopts := &slog.HandlerOptions{
		Level:       opts.Level,
		ReplaceAttr: replaceLevel,
	}
	var handler slog.Handler
	if opts.Format == "json" {
		handler = slog.NewJSONHandler(opts.Output, hopts)
	} else {
		handler = slog.NewTextHandler(opts.Output, hopts)
	}
	if opts.Store != nil {
		handler = logs.NewHandler(handler, opts.Store, opts.Level)
	}

	logger := slog.New(handler)
	slog.SetDefault(logger)
	return logger
}

// replaceLevel prints CRITICAL instead of ERROR+4.
func replaceLevel(groups []string, a slog.Attr) slog.Attr {
	if a.Key == slog.LevelKey && len(groups) == 0 {
		if l, ok := a.Value.Any().(slog.Level); ok && l >= logs.LevelCriticalSlog {
			a.Value = slog.StringValue(string(logs.LevelCritical))
		}
	}
	return a
}

// Fatal logs an error message and then exits the application.
// slog doesn't have a Fatal method by default.
func Fatal(msg string, args ...any) {
	slog.Error(msg, args...)
	os.Exit(1)
}

// CronLogger adapts slog to the cron.Logger interface. Cron's chatty
// scheduling messages go to DEBUG.
type CronLogger struct {
	Logger *slog.Logger
}

func (l *CronLogger) Info(msg string, keysAndValues ...interface{}) {
	l.Logger.Debug(msg, keysAndValues...)
}

func (l *CronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	l.Logger.Error(msg, append(keysAndValues, "error", err)...)
}
