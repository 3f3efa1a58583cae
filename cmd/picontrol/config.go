package main

import (
	"fmt"
	"net"
	"os"
	"strconv"
	"time"

	"github.com/wachiwi/pi-control/pkg/camera"
	"github.com/wachiwi/pi-control/pkg/control"
	"github.com/wachiwi/pi-control/pkg/logs"
)

// Config is the server configuration, read from the environment and
// overridden by flags.
type Config struct {
	Addr       string
	TCPAddr    string
	PublicHost string

	Camera        camera.Config
	FakeCamera    bool
	StatsInterval time.Duration

	LogLevel  string
	LogFormat string

	ConnectionFile string
	DatabaseURL    string
	APIKey         string

	DashboardUser     string
	DashboardPassword string
	SessionSecret     string

	AllowPower bool

	LEDChip string
	LEDLine int

	OTLPEndpoint string
}

// LoadConfig reads the configuration from the environment.
func LoadConfig() (Config, error) {
	hostname, _ := os.Hostname()
	if hostname == "" {
		hostname = "localhost"
	}

	cfg := Config{
		Addr:              envString("PICONTROL_ADDR", ":3001"),
		TCPAddr:           envString("PICONTROL_TCP_ADDR", ":8554"),
		PublicHost:        envString("PICONTROL_PUBLIC_HOST", hostname),
		LogLevel:          envString("LOG_LEVEL", string(logs.LevelInfo)),
		LogFormat:         envString("LOG_FORMAT", "text"),
		ConnectionFile:    envString("CONNECTION_FILE", ".connection-data/connection-info.json"),
		DatabaseURL:       os.Getenv("DATABASE_URL"),
		APIKey:            envString("NOOBOTS_API_KEY", "default-dev-key"),
		DashboardUser:     os.Getenv("DASHBOARD_USER"),
		DashboardPassword: os.Getenv("DASHBOARD_PASSWORD"),
		SessionSecret:     os.Getenv("SESSION_SECRET"),
		LEDChip:           os.Getenv("STATUS_LED_CHIP"),
		OTLPEndpoint:      os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT"),
	}

	var err error
	if cfg.Camera.Width, err = envInt("CAMERA_WIDTH", 640); err != nil {
		return cfg, err
	}
	if cfg.Camera.Height, err = envInt("CAMERA_HEIGHT", 480); err != nil {
		return cfg, err
	}
	if cfg.Camera.FPS, err = envInt("CAMERA_FPS", 24); err != nil {
		return cfg, err
	}
	if cfg.Camera.GracePeriod, err = envDuration("CAMERA_GRACE", 5*time.Second); err != nil {
		return cfg, err
	}
	if cfg.Camera.StartupTimeout, err = envDuration("CAMERA_STARTUP_TIMEOUT", 5*time.Second); err != nil {
		return cfg, err
	}
	if cfg.Camera.MaxUptime, err = envDuration("CAMERA_MAX_UPTIME", 6*time.Hour); err != nil {
		return cfg, err
	}
	if cfg.Camera.StaleAfter, err = envDuration("CAMERA_STALE_AFTER", 10*time.Second); err != nil {
		return cfg, err
	}
	hwm, err := envInt("CAMERA_HIGH_WATER", 1<<20)
	if err != nil {
		return cfg, err
	}
	cfg.Camera.HighWaterMark = int64(hwm)
	if cfg.FakeCamera, err = envBool("CAMERA_FAKE", false); err != nil {
		return cfg, err
	}
	if cfg.StatsInterval, err = envDuration("STATS_INTERVAL", 2*time.Second); err != nil {
		return cfg, err
	}
	if cfg.AllowPower, err = envBool("ALLOW_POWER_COMMANDS", false); err != nil {
		return cfg, err
	}
	if cfg.LEDLine, err = envInt("STATUS_LED_LINE", -1); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// AuthEnabled reports whether the dashboard login is configured.
func (c Config) AuthEnabled() bool {
	return c.DashboardUser != "" && c.DashboardPassword != ""
}

// WebSocketURL is the published control channel address.
func (c Config) WebSocketURL() (string, error) {
	port, err := portOf(c.Addr)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("ws://%s/ws", net.JoinHostPort(c.PublicHost, strconv.Itoa(port))), nil
}

// TCPURL is the published H264 stream address.
func (c Config) TCPURL() (string, error) {
	port, err := portOf(c.TCPAddr)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("tcp://%s", net.JoinHostPort(c.PublicHost, strconv.Itoa(port))), nil
}

// StreamInfo describes the TCP stream for cameraStatus messages.
func (c Config) StreamInfo() *control.StreamInfo {
	port, err := portOf(c.TCPAddr)
	if err != nil {
		return nil
	}
	return &control.StreamInfo{Type: "tcp", Host: c.PublicHost, Port: port, Codec: string(camera.CodecH264)}
}

func portOf(addr string) (int, error) {
	_, p, err := net.SplitHostPort(addr)
	if err != nil {
		return 0, fmt.Errorf("invalid listen address %q: %w", addr, err)
	}
	port, err := strconv.Atoi(p)
	if err != nil {
		return 0, fmt.Errorf("invalid port in %q: %w", addr, err)
	}
	return port, nil
}

func envString(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func envInt(key string, def int) (int, error) {
	v := os.Getenv(key)
	if v == "" {
		return def, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return n, nil
}

func envDuration(key string, def time.Duration) (time.Duration, error) {
	v := os.Getenv(key)
	if v == "" {
		return def, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return d, nil
}

func envBool(key string, def bool) (bool, error) {
	v := os.Getenv(key)
	if v == "" {
		return def, nil
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return false, fmt.Errorf("invalid %s: %w", key, err)
	}
	return b, nil
}
