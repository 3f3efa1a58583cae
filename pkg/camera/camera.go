// Package camera supervises the external capture process of a Raspberry Pi
// camera and relays its output to HTTP (MJPEG) and TCP (H264) consumers.
package camera

import (
	"errors"
	"fmt"
	"time"
)

var (
	// ErrHighWater is returned by Consumer.Write when the consumer's outbound
	// buffer is at or above its high-water mark and the chunk was dropped.
	ErrHighWater = errors.New("consumer above high-water mark, chunk dropped")
	// ErrConsumerClosed is returned by Consumer.Write once the sink failed or
	// the consumer was closed.
	ErrConsumerClosed = errors.New("consumer closed")
	// ErrSupervisorClosed is returned by supervisor operations after Close.
	ErrSupervisorClosed = errors.New("supervisor closed")
	// ErrNoCaptureBinary is returned when none of the known capture binaries
	// is installed on the host.
	ErrNoCaptureBinary = errors.New("neither rpicam-vid, libcamera-vid nor raspivid found")
	// ErrNoFrame is returned when no fresh frame is available.
	ErrNoFrame = errors.New("no frame available")
)

// Codec is the encoding the capture process emits on stdout.
type Codec string

const (
	CodecMJPEG Codec = "mjpeg"
	CodecH264  Codec = "h264"
)

// CaptureSpec holds the parameters a capture process is launched with.
type CaptureSpec struct {
	Codec     Codec
	Width     int
	Height    int
	FrameRate int
}

func (s CaptureSpec) String() string {
	return fmt.Sprintf("%s %dx%d@%d", s.Codec, s.Width, s.Height, s.FrameRate)
}

// Config holds camera pipeline configuration.
type Config struct {
	Width  int
	Height int
	FPS    int

	// GracePeriod is how long the process is kept alive after the last
	// consumer detached.
	GracePeriod time.Duration
	// StartupTimeout bounds the wait for the first output chunk. A process
	// exiting inside this window counts as a rapid failure.
	StartupTimeout time.Duration
	// KillTimeout is the delay between SIGTERM and SIGKILL.
	KillTimeout time.Duration
	// RestartDelay is the first backoff step after a crash.
	RestartDelay time.Duration
	// MaxRestartDelay caps the exponential crash backoff.
	MaxRestartDelay time.Duration
	// RestartJitter is the randomization factor applied to backoff steps.
	RestartJitter float64
	// MaxUptime makes the watchdog recycle long-lived processes.
	MaxUptime time.Duration
	// StaleAfter makes the watchdog restart a process that stopped producing output.
	StaleAfter time.Duration
	// WatchdogInterval is how often the watchdog runs.
	WatchdogInterval time.Duration
	// HighWaterMark is the per-consumer outbound buffer limit in bytes.
	HighWaterMark int64
}

// WithDefaults returns a copy of the config with zero values replaced by defaults.
func (c Config) WithDefaults() Config {
	if c.Width == 0 {
		c.Width = 640
	}
	if c.Height == 0 {
		c.Height = 480
	}
	if c.FPS == 0 {
		c.FPS = 24
	}
	if c.GracePeriod == 0 {
		c.GracePeriod = 5 * time.Second
	}
	if c.StartupTimeout == 0 {
		c.StartupTimeout = 5 * time.Second
	}
	if c.KillTimeout == 0 {
		c.KillTimeout = 2 * time.Second
	}
	if c.RestartDelay == 0 {
		c.RestartDelay = 2 * time.Second
	}
	if c.MaxRestartDelay == 0 {
		c.MaxRestartDelay = time.Minute
	}
	if c.MaxUptime == 0 {
		c.MaxUptime = 6 * time.Hour
	}
	if c.StaleAfter == 0 {
		c.StaleAfter = 10 * time.Second
	}
	if c.WatchdogInterval == 0 {
		c.WatchdogInterval = 5 * time.Second
	}
	if c.HighWaterMark == 0 {
		c.HighWaterMark = 1 << 20
	}
	return c
}

// Spec returns the capture parameters for the given codec.
func (c Config) Spec(codec Codec) CaptureSpec {
	return CaptureSpec{Codec: codec, Width: c.Width, Height: c.Height, FrameRate: c.FPS}
}
