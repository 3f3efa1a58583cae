package main

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/spf13/cobra"
	"github.com/wachiwi/pi-control/cmd/picontrol/handlers"
	"github.com/wachiwi/pi-control/pkg/camera"
	"github.com/wachiwi/pi-control/pkg/connection"
	"github.com/wachiwi/pi-control/pkg/control"
	"github.com/wachiwi/pi-control/pkg/indicator"
	"github.com/wachiwi/pi-control/pkg/logger"
	"github.com/wachiwi/pi-control/pkg/logs"
	"github.com/wachiwi/pi-control/pkg/stats"
	"github.com/wachiwi/pi-control/pkg/system"
	"github.com/wachiwi/pi-control/pkg/telemetry"
)

const shutdownTimeout = 10 * time.Second

// NewServeCommand creates the serve sub-command. Flags override values read
// from the environment.
func NewServeCommand() *cobra.Command {
	cfg, cfgErr := LoadConfig()

	serveCmd := &cobra.Command{
		Use:   "serve",
		Short: "Runs the camera relay and control server",
		RunE: func(cmd *cobra.Command, args []string) error {
			if cfgErr != nil {
				return cfgErr
			}
			return serve(cmd.Context(), cfg)
		},
	}

	flags := serveCmd.Flags()
	flags.StringVar(&cfg.Addr, "addr", cfg.Addr, "HTTP listen address")
	flags.StringVar(&cfg.TCPAddr, "tcp-addr", cfg.TCPAddr, "H264 TCP stream listen address")
	flags.StringVar(&cfg.PublicHost, "public-host", cfg.PublicHost, "Host name published to dashboard clients")
	flags.IntVar(&cfg.Camera.Width, "width", cfg.Camera.Width, "Capture width")
	flags.IntVar(&cfg.Camera.Height, "height", cfg.Camera.Height, "Capture height")
	flags.IntVar(&cfg.Camera.FPS, "fps", cfg.Camera.FPS, "Capture frame rate")
	flags.DurationVar(&cfg.Camera.GracePeriod, "grace", cfg.Camera.GracePeriod, "Keep the camera running this long after the last viewer left")
	flags.BoolVar(&cfg.FakeCamera, "fake-camera", cfg.FakeCamera, "Stream a generated test pattern instead of the camera")
	flags.StringVar(&cfg.LogLevel, "log-level", cfg.LogLevel, "Log level (DEBUG, INFO, WARN, ERROR, CRITICAL)")

	return serveCmd
}

// unavailableLauncher is used when the host has no capture backend.
type unavailableLauncher struct{}

func (unavailableLauncher) Launch(camera.CaptureSpec) (camera.Process, error) {
	return nil, camera.ErrNoCaptureBinary
}

func serve(ctx context.Context, cfg Config) error {
	// --- Logging ---
	lvl, err := logs.ParseLevel(cfg.LogLevel)
	if err != nil {
		return err
	}
	level := new(slog.LevelVar)
	level.Set(lvl.Slog())
	logStore := logs.NewStore(logs.DefaultCapacity)
	logger.Setup(logger.Options{Level: level, Format: cfg.LogFormat, Store: logStore})

	slog.Info("Starting pi-control", "version", binVersion, "addr", cfg.Addr, "tcpAddr", cfg.TCPAddr)

	// --- Telemetry ---
	shutdownTelemetry, err := telemetry.Setup(ctx, "pi-control", binVersion, cfg.OTLPEndpoint)
	if err != nil {
		slog.Error("Failed to set up telemetry, continuing without it", "error", err)
		shutdownTelemetry = func(context.Context) error { return nil }
	}

	board := system.DetectBoard()
	slog.Info("Board detected", "raspberryPi", board.IsRaspberryPi, "model", board.Model)

	// --- Camera backend ---
	camCfg := cfg.Camera.WithDefaults()
	svc := &camera.Service{Config: camCfg}
	var launcher camera.Launcher = unavailableLauncher{}
	if cfg.FakeCamera {
		slog.Warn("Using generated test pattern instead of the camera")
		launcher = camera.TestPatternLauncher{}
		svc.Snapshotter = camera.PatternSnapshotter{}
		svc.Available = true
	} else if l, err := camera.NewExecLauncher(); err != nil {
		slog.Warn("Camera not available on this host", "error", err)
	} else {
		slog.Info("Camera capture binary found", "binary", l.Binary)
		launcher = l
		svc.Available = true
		svc.Device = camera.NewDevice()
		if s, err := camera.NewExecSnapshotter(); err == nil {
			svc.Snapshotter = s
		}
	}

	// --- Status LED ---
	var led indicator.LED
	if cfg.LEDChip != "" && cfg.LEDLine >= 0 {
		gl, err := indicator.OpenGPIO(cfg.LEDChip, cfg.LEDLine)
		if err != nil {
			slog.Warn("Status LED not available", "chip", cfg.LEDChip, "line", cfg.LEDLine, "error", err)
		} else {
			led = gl
		}
	}
	statusLED := indicator.New(led)
	defer statusLED.Close()

	// --- Connection info ---
	var connStore connection.Store
	if cfg.DatabaseURL != "" {
		pgStore, err := connection.NewPGStore(ctx, cfg.DatabaseURL)
		if err != nil {
			return fmt.Errorf("failed to open connection database: %w", err)
		}
		connStore = pgStore
	} else {
		connStore = connection.NewFileStore(cfg.ConnectionFile)
	}
	defer connStore.Close()

	streamInfo := func() *control.StreamInfo {
		lookupCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		info, err := connStore.Get(lookupCtx)
		if err == nil && info.TCPURL != "" {
			if host, port, err := info.TCPEndpoint(); err == nil {
				return &control.StreamInfo{Type: "tcp", Host: host, Port: port, Codec: string(camera.CodecH264)}
			}
		}
		return cfg.StreamInfo()
	}

	// --- Control channel ---
	var ctrl *control.Controller
	sampler := stats.NewSampler(board)
	broadcaster := stats.NewBroadcaster(sampler, cfg.StatsInterval, func(s stats.Stats) {
		ctrl.Hub().Broadcast(control.NewStats(s))
	})
	defer broadcaster.Stop()

	camControl := control.ServiceCamera{Service: svc, StreamInfo: streamInfo}
	ctrl = control.NewController(control.Deps{
		Stats:  broadcaster,
		Camera: camControl,
		Logs:   logStore,
		Level:  level,
		Power:  system.NewPower(cfg.AllowPower),
	})
	hub := ctrl.Hub()
	defer hub.Close()
	logStore.OnAppend(func(e logs.Entry) {
		hub.Broadcast(control.NewLog(e))
	})

	events := newCameraEvents(hub, statusLED, svc.Available, streamInfo)
	eventsCtx, stopEvents := context.WithCancel(context.Background())
	defer stopEvents()
	go events.Run(eventsCtx)

	// The test pattern has no sensor to share, so svc.Device stays nil there.
	svc.MJPEG = camera.NewSupervisor(camera.CodecMJPEG, launcher, camCfg, camera.WithStatusHook(events.Hook), camera.WithDevice(svc.Device))
	svc.H264 = camera.NewSupervisor(camera.CodecH264, launcher, camCfg, camera.WithStatusHook(events.Hook), camera.WithDevice(svc.Device))
	defer svc.Close()

	// --- Listeners ---
	httpLn, err := net.Listen("tcp", cfg.Addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", cfg.Addr, err)
	}
	tcpLn, err := net.Listen("tcp", cfg.TCPAddr)
	if err != nil {
		httpLn.Close()
		return fmt.Errorf("failed to listen on %s: %w", cfg.TCPAddr, err)
	}

	sessionSecret := []byte(cfg.SessionSecret)
	if cfg.AuthEnabled() && len(sessionSecret) == 0 {
		slog.Warn("SESSION_SECRET not set, sessions will not survive a restart")
		sessionSecret = make([]byte, 32)
		if _, err := rand.Read(sessionSecret); err != nil {
			return fmt.Errorf("failed to generate session secret: %w", err)
		}
	}
	router := newRouter(cfg, sessionSecret, routes{
		Camera:     &handlers.CameraHandler{Service: svc, Camera: camControl},
		Logs:       &handlers.LogsHandler{Store: logStore},
		Connection: &handlers.ConnectionHandler{Store: connStore, APIKey: cfg.APIKey},
		Health:     &handlers.HealthHandler{Version: binVersion, Service: svc, Clients: hub.Count},
		WebSocket:  ctrl,
		TemplateFS: templateFS,
	})

	srv := &http.Server{
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}
	tcpSrv := &camera.StreamServer{Supervisor: svc.H264, HighWaterMark: camCfg.HighWaterMark}

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	var wg sync.WaitGroup
	errs := make(chan error, 2)

	wg.Add(2)
	go func() {
		defer wg.Done()
		slog.Info("HTTP server listening", "addr", httpLn.Addr().String())
		if err := srv.Serve(httpLn); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errs <- fmt.Errorf("http server: %w", err)
		}
	}()
	go func() {
		defer wg.Done()
		slog.Info("TCP stream server listening", "addr", tcpLn.Addr().String())
		if err := tcpSrv.Serve(runCtx, tcpLn); err != nil {
			errs <- fmt.Errorf("tcp server: %w", err)
		}
	}()

	// --- Announce ---
	var announcer *connection.Announcer
	wsURL, wsErr := cfg.WebSocketURL()
	tcpURL, tcpErr := cfg.TCPURL()
	if err := errors.Join(wsErr, tcpErr); err != nil {
		slog.Warn("Not publishing connection info", "error", err)
	} else {
		announcer = connection.NewAnnouncer(connStore, wsURL, tcpURL, time.Minute)
		if err := announcer.Start(ctx); err != nil {
			slog.Error("Failed to publish connection info", "error", err)
			announcer = nil
		}
	}

	var runErr error
	select {
	case <-ctx.Done():
		slog.Info("Shutdown signal received")
	case runErr = <-errs:
		slog.Error("Server failed", "error", runErr)
	}

	// --- Shutdown ---
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer shutdownCancel()

	if announcer != nil {
		if err := announcer.Stop(shutdownCtx); err != nil {
			slog.Warn("Failed to mark connection offline", "error", err)
		}
	}
	cancel()
	hub.Close()
	svc.Close()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Warn("HTTP server shutdown error", "error", err)
	}
	wg.Wait()

	if err := shutdownTelemetry(shutdownCtx); err != nil {
		slog.Warn("Telemetry shutdown error", "error", err)
	}
	slog.Info("Server stopped")
	return runErr
}
