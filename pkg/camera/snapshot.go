package camera

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	"image/jpeg"
	"os/exec"
	"strings"

	"github.com/nfnt/resize"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

// Snapshotter captures a single still image.
type Snapshotter interface {
	Snapshot(ctx context.Context, width, height int) ([]byte, error)
}

// ExecSnapshotter runs the host's still-capture binary once per request.
type ExecSnapshotter struct {
	Binary string
}

// NewExecSnapshotter probes the host for a still-capture binary.
func NewExecSnapshotter() (*ExecSnapshotter, error) {
	bin, err := probeStillBinary()
	if err != nil {
		return nil, err
	}
	return &ExecSnapshotter{Binary: bin}, nil
}

// Snapshot runs the still binary and returns its JPEG output.
func (s *ExecSnapshotter) Snapshot(ctx context.Context, width, height int) ([]byte, error) {
	cmd := exec.CommandContext(ctx, s.Binary, stillArgs(s.Binary, width, height)...)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	out, err := cmd.Output()
	if err != nil {
		return nil, fmt.Errorf("%s failed: %w, stderr: %s", s.Binary, err, strings.TrimSpace(stderr.String()))
	}
	if !bytes.HasPrefix(out, soi) {
		return nil, fmt.Errorf("%s returned %d bytes that are not a JPEG", s.Binary, len(out))
	}
	return out, nil
}

// ResizeJPEG scales a JPEG down to width, keeping the aspect ratio. Images
// already narrower than width are returned unchanged.
func ResizeJPEG(data []byte, width uint) ([]byte, error) {
	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("failed to decode JPEG: %w", err)
	}
	if width == 0 || uint(img.Bounds().Dx()) <= width {
		return data, nil
	}

	scaled := resize.Resize(width, 0, img, resize.Bilinear)
	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, scaled, &jpeg.Options{Quality: 85}); err != nil {
		return nil, fmt.Errorf("failed to encode JPEG: %w", err)
	}
	return buf.Bytes(), nil
}

// Service groups the camera pipelines handed to the HTTP, TCP and
// WebSocket layers.
type Service struct {
	MJPEG       *Supervisor
	H264        *Supervisor
	Snapshotter Snapshotter
	// Available reports whether a capture backend exists on this host.
	Available bool
	Config    Config
	// Device is shared with both supervisors. Still captures claim it too.
	Device *Device
}

// Snapshot returns the latest fresh MJPEG frame when the stream is running,
// otherwise it captures a still. The still fails with ErrDeviceBusy while a
// pipeline holds the camera.
func (s *Service) Snapshot(ctx context.Context) ([]byte, error) {
	ctx, span := tracer.Start(ctx, "camera.snapshot")
	defer span.End()

	if s.MJPEG != nil {
		frame, err := s.MJPEG.LatestFrame()
		if err == nil {
			span.SetAttributes(attribute.String("snapshot.source", "stream"))
			return frame, nil
		}
		if !errors.Is(err, ErrNoFrame) {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
			return nil, err
		}
	}
	if s.Snapshotter == nil {
		return nil, ErrNoCaptureBinary
	}
	span.SetAttributes(attribute.String("snapshot.source", "still"))
	l, err := s.Device.acquire("still")
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}
	defer l.release()

	data, err := s.Snapshotter.Snapshot(ctx, s.Config.Width, s.Config.Height)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	return data, err
}

// Active reports whether any pipeline has a capture process.
func (s *Service) Active() bool {
	return (s.MJPEG != nil && s.MJPEG.Status().Active) || (s.H264 != nil && s.H264.Status().Active)
}

// Close shuts both pipelines down.
func (s *Service) Close() {
	if s.MJPEG != nil {
		s.MJPEG.Close()
	}
	if s.H264 != nil {
		s.H264.Close()
	}
}
