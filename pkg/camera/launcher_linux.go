//go:build linux

package camera

import (
	"fmt"
	"os/exec"
	"strconv"
)

// Capture binaries, newest first: rpicam-apps on Bookworm, libcamera-apps on
// Bullseye, the legacy MMAL raspivid before that.
var (
	videoBinaries = []string{"rpicam-vid", "libcamera-vid", "raspivid"}
	stillBinaries = []string{"rpicam-still", "libcamera-still", "raspistill"}
)

func probe(names []string) (string, error) {
	for _, name := range names {
		if _, err := exec.LookPath(name); err == nil {
			return name, nil
		}
	}
	return "", ErrNoCaptureBinary
}

func probeCaptureBinary() (string, error) { return probe(videoBinaries) }

func probeStillBinary() (string, error) { return probe(stillBinaries) }

func captureArgs(bin string, spec CaptureSpec) ([]string, error) {
	w, h, fps := strconv.Itoa(spec.Width), strconv.Itoa(spec.Height), strconv.Itoa(spec.FrameRate)

	if bin == "raspivid" {
		args := []string{"-t", "0", "-n", "-w", w, "-h", h, "-fps", fps, "-o", "-"}
		switch spec.Codec {
		case CodecMJPEG:
			return append(args, "-cd", "MJPEG"), nil
		case CodecH264:
			return append(args, "-cd", "H264", "-ih"), nil
		}
		return nil, fmt.Errorf("unsupported codec %q", spec.Codec)
	}

	args := []string{
		"--timeout", "0", // Run indefinitely
		"--nopreview",
		"--width", w,
		"--height", h,
		"--framerate", fps,
		"--output", "-",
		// Module 3 specific optimizations
		"--awb", "auto",
		"--metering", "average",
	}
	switch spec.Codec {
	case CodecMJPEG:
		return append(args, "--codec", "mjpeg"), nil
	case CodecH264:
		// Repeat SPS/PPS so late TCP joiners can decode.
		return append(args, "--codec", "h264", "--inline"), nil
	}
	return nil, fmt.Errorf("unsupported codec %q", spec.Codec)
}

func stillArgs(bin string, width, height int) []string {
	w, h := strconv.Itoa(width), strconv.Itoa(height)
	if bin == "raspistill" {
		return []string{"-t", "1", "-n", "-w", w, "-h", h, "-e", "jpg", "-o", "-"}
	}
	return []string{"--timeout", "1", "--nopreview", "--width", w, "--height", h, "--encoding", "jpg", "--output", "-"}
}
