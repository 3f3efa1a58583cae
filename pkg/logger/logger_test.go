package logger

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"strings"
	"testing"

	"github.com/wachiwi/pi-control/pkg/logs"
)

func TestSetupTeesIntoStore(t *testing.T) {
	prev := slog.Default()
	defer slog.SetDefault(prev)

	var out bytes.Buffer
	store := logs.NewStore(10)
	level := new(slog.LevelVar)
	Setup(Options{Level: level, Store: store, Output: &out})

	slog.Info("Camera started", "codec", "mjpeg")
	slog.Log(context.Background(), logs.LevelCriticalSlog, "Disk full")

	if store.Len() != 2 {
		t.Fatalf("Expected 2 stored entries, got %d", store.Len())
	}
	if !strings.Contains(out.String(), "level=CRITICAL") {
		t.Errorf("Expected CRITICAL level name in output, got %q", out.String())
	}
}

func TestCronLogger(t *testing.T) {
	var out bytes.Buffer
	l := &CronLogger{Logger: slog.New(slog.NewTextHandler(&out, &slog.HandlerOptions{Level: slog.LevelInfo}))}

	l.Info("wake", "now", 1)
	if out.Len() != 0 {
		t.Errorf("Expected cron info messages at debug level, got %q", out.String())
	}
	l.Error(errors.New("boom"), "job failed")
	if !strings.Contains(out.String(), "error=boom") {
		t.Errorf("Expected error attribute, got %q", out.String())
	}
}
