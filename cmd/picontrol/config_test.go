package main

import (
	"testing"
	"time"
)

func TestLoadConfigDefaults(t *testing.T) {
	t.Setenv("PICONTROL_PUBLIC_HOST", "pi.local")
	cfg, err := LoadConfig()
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Addr != ":3001" || cfg.TCPAddr != ":8554" {
		t.Errorf("Unexpected addresses %q %q", cfg.Addr, cfg.TCPAddr)
	}
	if cfg.Camera.Width != 640 || cfg.Camera.Height != 480 || cfg.Camera.FPS != 24 {
		t.Errorf("Unexpected camera defaults %+v", cfg.Camera)
	}
	if cfg.Camera.GracePeriod != 5*time.Second || cfg.StatsInterval != 2*time.Second {
		t.Errorf("Unexpected durations %v %v", cfg.Camera.GracePeriod, cfg.StatsInterval)
	}
	if cfg.APIKey != "default-dev-key" || cfg.AuthEnabled() || cfg.AllowPower || cfg.LEDLine != -1 {
		t.Errorf("Unexpected defaults %+v", cfg)
	}

	ws, err := cfg.WebSocketURL()
	if err != nil || ws != "ws://pi.local:3001/ws" {
		t.Errorf("Unexpected ws url %q, %v", ws, err)
	}
	tcp, err := cfg.TCPURL()
	if err != nil || tcp != "tcp://pi.local:8554" {
		t.Errorf("Unexpected tcp url %q, %v", tcp, err)
	}
	if si := cfg.StreamInfo(); si == nil || si.Port != 8554 || si.Codec != "h264" {
		t.Errorf("Unexpected stream info %+v", si)
	}
}

func TestLoadConfigFromEnv(t *testing.T) {
	t.Setenv("CAMERA_GRACE", "10s")
	t.Setenv("CAMERA_FAKE", "true")
	t.Setenv("CAMERA_HIGH_WATER", "2048")
	t.Setenv("ALLOW_POWER_COMMANDS", "1")

	cfg, err := LoadConfig()
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Camera.GracePeriod != 10*time.Second || !cfg.FakeCamera || cfg.Camera.HighWaterMark != 2048 || !cfg.AllowPower {
		t.Errorf("Environment not applied: %+v", cfg)
	}
}

func TestLoadConfigInvalid(t *testing.T) {
	t.Setenv("CAMERA_FPS", "fast")
	if _, err := LoadConfig(); err == nil {
		t.Error("Expected error for invalid CAMERA_FPS")
	}
}
