// Package logs keeps the most recent log records in memory so they can be
// streamed to dashboard clients and exported.
package logs

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"
)

// ErrUnknownLevel is returned when parsing a level name that is not one of
// DEBUG, INFO, WARN, ERROR or CRITICAL.
var ErrUnknownLevel = errors.New("unknown log level")

// Level is a dashboard log level.
type Level string

const (
	LevelDebug    Level = "DEBUG"
	LevelInfo     Level = "INFO"
	LevelWarn     Level = "WARN"
	LevelError    Level = "ERROR"
	LevelCritical Level = "CRITICAL"
)

// LevelCriticalSlog is the slog level used for CRITICAL records.
const LevelCriticalSlog = slog.LevelError + 4

// Levels lists all levels in ascending severity.
var Levels = []Level{LevelDebug, LevelInfo, LevelWarn, LevelError, LevelCritical}

// ParseLevel parses a level name case-insensitively. WARNING is accepted
// for WARN.
func ParseLevel(s string) (Level, error) {
	switch l := Level(strings.ToUpper(strings.TrimSpace(s))); l {
	case LevelDebug, LevelInfo, LevelWarn, LevelError, LevelCritical:
		return l, nil
	case "WARNING":
		return LevelWarn, nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownLevel, s)
}

// Slog returns the matching slog level.
func (l Level) Slog() slog.Level {
	switch l {
	case LevelDebug:
		return slog.LevelDebug
	case LevelWarn:
		return slog.LevelWarn
	case LevelError:
		return slog.LevelError
	case LevelCritical:
		return LevelCriticalSlog
	default:
		return slog.LevelInfo
	}
}

// FromSlog maps an slog level to the nearest dashboard level at or below it.
func FromSlog(l slog.Level) Level {
	switch {
	case l >= LevelCriticalSlog:
		return LevelCritical
	case l >= slog.LevelError:
		return LevelError
	case l >= slog.LevelWarn:
		return LevelWarn
	case l >= slog.LevelInfo:
		return LevelInfo
	default:
		return LevelDebug
	}
}

// Entry is one stored log record.
type Entry struct {
	Timestamp time.Time `json:"timestamp"`
	Level     Level     `json:"level"`
	Message   string    `json:"message"`
	Data      string    `json:"data,omitempty"`
}
