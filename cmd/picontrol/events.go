package main

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/wachiwi/pi-control/pkg/camera"
	"github.com/wachiwi/pi-control/pkg/control"
	"github.com/wachiwi/pi-control/pkg/indicator"
)

// cameraEvents forwards supervisor status changes to WebSocket clients and
// the status LED. The supervisor hook only enqueues; Run does the work.
type cameraEvents struct {
	events     chan camera.Status
	hub        *control.Hub
	led        *indicator.Indicator
	available  bool
	streamInfo func() *control.StreamInfo
}

func newCameraEvents(hub *control.Hub, led *indicator.Indicator, available bool, streamInfo func() *control.StreamInfo) *cameraEvents {
	return &cameraEvents{
		events:     make(chan camera.Status, 32),
		hub:        hub,
		led:        led,
		available:  available,
		streamInfo: streamInfo,
	}
}

// Hook is installed with camera.WithStatusHook.
func (e *cameraEvents) Hook(st camera.Status) {
	select {
	case e.events <- st:
	default:
		slog.Warn("Camera event queue full, status change dropped", "codec", st.Codec, "state", st.State)
	}
}

// Run processes status changes until ctx is cancelled.
func (e *cameraEvents) Run(ctx context.Context) {
	active := make(map[camera.Codec]bool)
	for {
		select {
		case <-ctx.Done():
			return
		case st := <-e.events:
			e.led.Update(string(st.Codec), st.Active)

			was := active[st.Codec]
			active[st.Codec] = st.Active

			if st.Codec == camera.CodecH264 {
				status := control.CameraStatus{Active: st.Active, Available: e.available}
				if e.available && e.streamInfo != nil {
					status.StreamInfo = e.streamInfo()
				}
				e.hub.Broadcast(control.NewCameraStatus(status))
			}
			if msg := transitionMessage(st, was); msg != "" {
				e.hub.Broadcast(control.NewStatus(msg))
			}
		}
	}
}

// transitionMessage describes an active/inactive edge of a pipeline, or
// returns "" when activity did not change.
func transitionMessage(st camera.Status, was bool) string {
	name := "Camera stream"
	if st.Codec == camera.CodecMJPEG {
		name = "MJPEG preview"
	}
	switch {
	case st.Active && !was:
		return name + " started"
	case !st.Active && was:
		if st.LastError != "" {
			return fmt.Sprintf("%s stopped: %s", name, st.LastError)
		}
		return name + " stopped"
	}
	return ""
}
