package main

import (
	"context"
	"testing"
	"time"

	"github.com/wachiwi/pi-control/pkg/camera"
	"github.com/wachiwi/pi-control/pkg/control"
	"github.com/wachiwi/pi-control/pkg/indicator"
)

func TestCameraEventsDriveLED(t *testing.T) {
	led := indicator.New(nil)
	events := newCameraEvents(control.NewHub(nil), led, true, nil)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go events.Run(ctx)

	waitLit := func(want bool) {
		t.Helper()
		deadline := time.Now().Add(time.Second)
		for led.Lit() != want {
			if time.Now().After(deadline) {
				t.Fatalf("Expected LED lit=%v", want)
			}
			time.Sleep(5 * time.Millisecond)
		}
	}

	events.Hook(camera.Status{Codec: camera.CodecH264, State: camera.StateStarting, Active: true})
	waitLit(true)
	events.Hook(camera.Status{Codec: camera.CodecMJPEG, State: camera.StateRunning, Active: true})
	events.Hook(camera.Status{Codec: camera.CodecH264, State: camera.StateStopped})
	events.Hook(camera.Status{Codec: camera.CodecMJPEG, State: camera.StateStopped})
	waitLit(false)
}

func TestTransitionMessage(t *testing.T) {
	tests := []struct {
		name string
		st   camera.Status
		was  bool
		want string
	}{
		{"h264 started", camera.Status{Codec: camera.CodecH264, Active: true}, false, "Camera stream started"},
		{"h264 stopped with error", camera.Status{Codec: camera.CodecH264, LastError: "exit 1"}, true, "Camera stream stopped: exit 1"},
		{"mjpeg grace elapsed", camera.Status{Codec: camera.CodecMJPEG, State: camera.StateStopped}, true, "MJPEG preview stopped"},
		{"mjpeg started", camera.Status{Codec: camera.CodecMJPEG, Active: true}, false, "MJPEG preview started"},
		{"no edge", camera.Status{Codec: camera.CodecMJPEG, Active: true}, true, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := transitionMessage(tt.st, tt.was); got != tt.want {
				t.Errorf("Expected %q, got %q", tt.want, got)
			}
		})
	}
}
