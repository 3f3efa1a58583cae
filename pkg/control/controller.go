package control

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/gorilla/websocket"
	"github.com/wachiwi/pi-control/pkg/logs"
	"github.com/wachiwi/pi-control/pkg/stats"
	"github.com/wachiwi/pi-control/pkg/system"
)

// StatsControl samples host stats and toggles periodic broadcasting.
type StatsControl interface {
	Sample(ctx context.Context) stats.Stats
	Start() error
	Stop()
}

// CameraControl starts and stops the camera stream on request.
type CameraControl interface {
	Start() error
	Stop()
	Status() CameraStatus
}

// PowerControl reboots or shuts the device down.
type PowerControl interface {
	Reboot(ctx context.Context) error
	Shutdown(ctx context.Context) error
}

// Deps are the services commands act on. Camera and Power may be nil.
type Deps struct {
	Stats  StatsControl
	Camera CameraControl
	Logs   *logs.Store
	Level  *slog.LevelVar
	Power  PowerControl
}

// Controller serves the WebSocket endpoint and dispatches commands.
type Controller struct {
	hub      *Hub
	deps     Deps
	upgrader websocket.Upgrader
}

// NewController creates a controller. Periodic stats stop when the last
// client disconnects.
func NewController(deps Deps) *Controller {
	ct := &Controller{
		deps: deps,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool {
				return true // The dashboard is served from another port
			},
		},
	}
	ct.hub = NewHub(func(n int) {
		if n == 0 && deps.Stats != nil {
			deps.Stats.Stop()
		}
	})
	return ct
}

// Hub returns the controller's client hub.
func (ct *Controller) Hub() *Hub { return ct.hub }

// ServeHTTP upgrades the request and serves the client until it leaves.
func (ct *Controller) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := ct.upgrader.Upgrade(w, r, nil)
	if err != nil {
		slog.Warn("WebSocket upgrade error", "error", err)
		return
	}

	c := newClient(ct.hub, conn)
	n := ct.hub.register(c)
	slog.Info("New client connected", "client", c.id, "remote", c.remote, "clients", n)

	c.Send(NewStatus(fmt.Sprintf("Connected to Raspberry Pi control system (%d client(s) connected)", n)))

	go c.writePump()
	c.readPump(r.Context(), ct.HandleCommand)
	slog.Info("Client disconnected", "client", c.id, "remote", c.remote, "clients", ct.hub.Count(), "dropped", c.dropped.Load())
}

// HandleCommand executes one inbound command for c.
func (ct *Controller) HandleCommand(ctx context.Context, c *Client, cmd Command) {
	if !cmd.Type.Known() {
		slog.Warn("Unknown command", "type", cmd.Type, "remote", c.remote)
		return
	}
	slog.Debug("Command received", "type", cmd.Type, "remote", c.remote)

	switch cmd.Type {
	case CmdGetStats:
		c.Send(NewStats(ct.deps.Stats.Sample(ctx)))

	case CmdStartStatsMonitoring:
		if err := ct.deps.Stats.Start(); err != nil {
			slog.Error("Failed to start stats monitoring", "error", err)
			c.Send(NewStatus("Failed to start stats monitoring"))
			return
		}
		c.Send(NewStats(ct.deps.Stats.Sample(ctx)))

	case CmdStopStatsMonitoring:
		ct.deps.Stats.Stop()

	case CmdReboot:
		c.Send(NewStatus("Reboot command received"))
		ct.power(c, "Reboot", func(p PowerControl) error { return p.Reboot(ctx) })

	case CmdShutdown:
		c.Send(NewStatus("Shutdown command received"))
		ct.power(c, "Shutdown", func(p PowerControl) error { return p.Shutdown(ctx) })

	case CmdStartCamera:
		ct.startCamera(c)

	case CmdStopCamera:
		if ct.deps.Camera == nil || !ct.deps.Camera.Status().Active {
			c.Send(NewStatus("Camera already inactive"))
			return
		}
		ct.deps.Camera.Stop()
		c.Send(NewStatus("Camera stopped"))

	case CmdGetCameraStatus:
		var st CameraStatus
		if ct.deps.Camera != nil {
			st = ct.deps.Camera.Status()
		}
		c.Send(NewCameraStatus(st))

	case CmdGetLogs:
		var params logs.FilterParams
		if cmd.Filter != nil {
			params = *cmd.Filter
		}
		f, err := params.Parse()
		if err != nil {
			c.Send(NewStatus(fmt.Sprintf("Invalid log filter: %v", err)))
			return
		}
		c.Send(NewLogHistory(ct.deps.Logs.Query(f)))

	case CmdSetLogLevel:
		l, err := logs.ParseLevel(cmd.Level)
		if err != nil {
			c.Send(NewStatus(fmt.Sprintf("Invalid log level: %s", cmd.Level)))
			return
		}
		ct.deps.Level.Set(l.Slog())
		slog.Info("Log level changed", "level", l)
		c.Send(NewStatus(fmt.Sprintf("Log level set to %s", l)))
	}
}

func (ct *Controller) startCamera(c *Client) {
	if ct.deps.Camera == nil {
		c.Send(NewStatus("Camera not available on this platform"))
		return
	}
	st := ct.deps.Camera.Status()
	if !st.Available {
		c.Send(NewStatus("Camera not available on this platform"))
		return
	}
	wasActive := st.Active
	if err := ct.deps.Camera.Start(); err != nil {
		slog.Error("Failed to start camera", "error", err)
		c.Send(NewStatus(fmt.Sprintf("Failed to start camera: %v", err)))
		return
	}
	if wasActive {
		c.Send(NewStatus("Camera already active"))
		return
	}
	c.Send(NewStatus("Starting camera"))
}

func (ct *Controller) power(c *Client, action string, do func(PowerControl) error) {
	err := system.ErrPowerDisabled
	if ct.deps.Power != nil {
		err = do(ct.deps.Power)
	}
	switch {
	case err == nil:
	case errors.Is(err, system.ErrPowerDisabled):
		slog.Warn("Power command refused", "action", action, "remote", c.remote)
		c.Send(NewStatus("Power commands are disabled on this device"))
	default:
		slog.Error("Power command failed", "action", action, "error", err)
		c.Send(NewStatus(fmt.Sprintf("%s failed: %v", action, err)))
	}
}
