//go:build !darwin && !linux

package camera

import "fmt"

func probeCaptureBinary() (string, error) {
	return "", fmt.Errorf("raspberry pi camera not available on this platform: %w", ErrNoCaptureBinary)
}

func probeStillBinary() (string, error) { return probeCaptureBinary() }

func captureArgs(string, CaptureSpec) ([]string, error) {
	return nil, ErrNoCaptureBinary
}

func stillArgs(string, int, int) []string { return nil }
