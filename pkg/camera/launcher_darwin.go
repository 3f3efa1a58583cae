//go:build darwin

package camera

import (
	"fmt"
	"os/exec"
)

// On macOS the built-in webcam is captured with ffmpeg through AVFoundation
// so the dashboard can be developed locally with real camera input.

func probeCaptureBinary() (string, error) {
	if _, err := exec.LookPath("ffmpeg"); err != nil {
		return "", fmt.Errorf("ffmpeg not found: %w", ErrNoCaptureBinary)
	}
	return "ffmpeg", nil
}

func probeStillBinary() (string, error) { return probeCaptureBinary() }

func captureArgs(_ string, spec CaptureSpec) ([]string, error) {
	// -framerate MUST be 30 for most Mac cameras (they don't support arbitrary framerates)
	args := []string{
		"-f", "avfoundation",
		"-framerate", "30",
		"-video_size", fmt.Sprintf("%dx%d", spec.Width, spec.Height),
		"-i", "0", // Device 0 = default camera
		"-r", fmt.Sprintf("%d", spec.FrameRate),
		"-hide_banner",
		"-loglevel", "error",
	}
	switch spec.Codec {
	case CodecMJPEG:
		return append(args, "-f", "mjpeg", "-q:v", "5", "-"), nil
	case CodecH264:
		return append(args, "-c:v", "libx264", "-preset", "ultrafast", "-tune", "zerolatency", "-f", "h264", "-"), nil
	}
	return nil, fmt.Errorf("unsupported codec %q", spec.Codec)
}

func stillArgs(_ string, width, height int) []string {
	return []string{
		"-f", "avfoundation",
		"-framerate", "30",
		"-video_size", fmt.Sprintf("%dx%d", width, height),
		"-i", "0",
		"-frames:v", "1",
		"-hide_banner",
		"-loglevel", "error",
		"-f", "mjpeg", "-",
	}
}
