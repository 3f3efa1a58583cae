package system

import (
	"bufio"
	"bytes"
	"os"
	"runtime"
	"strings"
)

var (
	cpuinfoPath = "/proc/cpuinfo"
	modelPath   = "/proc/device-tree/model"
	// Camera tools only shipped on Raspberry Pi OS.
	piBinaries = []string{"/usr/bin/rpicam-still", "/usr/bin/libcamera-still", "/usr/bin/raspistill"}
)

// Board describes the host hardware.
type Board struct {
	IsRaspberryPi bool   `json:"isRaspberryPi"`
	Model         string `json:"model"`
}

// DetectBoard identifies the host from the device tree, /proc/cpuinfo and
// the presence of Raspberry Pi camera tools.
func DetectBoard() Board {
	if runtime.GOOS != "linux" {
		return Board{Model: "Unknown"}
	}

	b := Board{Model: readModel()}
	if strings.Contains(strings.ToLower(b.Model), "raspberry") {
		b.IsRaspberryPi = true
		return b
	}
	for _, p := range piBinaries {
		if _, err := os.Stat(p); err == nil {
			b.IsRaspberryPi = true
			break
		}
	}
	if b.Model == "" {
		b.Model = "Unknown"
	}
	return b
}

func readModel() string {
	if data, err := os.ReadFile(modelPath); err == nil {
		if m := strings.TrimSpace(string(bytes.TrimRight(data, "\x00"))); m != "" {
			return m
		}
	}

	f, err := os.Open(cpuinfoPath)
	if err != nil {
		return ""
	}
	defer f.Close()

	sc := bufio.NewScanner(f)
	for sc.Scan() {
		key, value, ok := strings.Cut(sc.Text(), ":")
		if ok && strings.TrimSpace(key) == "Model" {
			return strings.TrimSpace(value)
		}
	}
	return ""
}
