package system

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"runtime"
	"testing"
)

func TestPowerDisabled(t *testing.T) {
	p := &Power{Run: func(context.Context, string, ...string) error {
		t.Fatal("Command must not run when power is disabled")
		return nil
	}}
	if err := p.Reboot(context.Background()); !errors.Is(err, ErrPowerDisabled) {
		t.Errorf("Expected ErrPowerDisabled, got %v", err)
	}
	if err := p.Shutdown(context.Background()); !errors.Is(err, ErrPowerDisabled) {
		t.Errorf("Expected ErrPowerDisabled, got %v", err)
	}
}

func TestPowerLocalCommands(t *testing.T) {
	var got []string
	p := &Power{Enabled: true, Run: func(_ context.Context, name string, args ...string) error {
		got = append([]string{name}, args...)
		return nil
	}}

	if err := p.Shutdown(context.Background()); err != nil {
		t.Fatalf("Shutdown failed: %v", err)
	}
	want := []string{"sudo", "/sbin/shutdown", "-h", "now"}
	if len(got) != len(want) {
		t.Fatalf("Expected %v, got %v", want, got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("Expected %v, got %v", want, got)
			break
		}
	}
}

func TestPowerUsesBalenaSupervisor(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Errorf("Expected POST, got %s", r.Method)
		}
		if r.URL.Path != "/v1/reboot" {
			t.Errorf("Expected /v1/reboot, got %s", r.URL.Path)
		}
		if r.URL.Query().Get("apikey") != "secret" {
			t.Errorf("Expected apikey secret, got %q", r.URL.Query().Get("apikey"))
		}
		w.WriteHeader(http.StatusAccepted)
	}))
	defer server.Close()

	t.Setenv("BALENA_SUPERVISOR_ADDRESS", server.URL)
	t.Setenv("BALENA_SUPERVISOR_API_KEY", "secret")

	p := NewPower(true)
	if p.Balena == nil {
		t.Fatal("Expected balena supervisor client")
	}
	if err := p.Reboot(context.Background()); err != nil {
		t.Errorf("Reboot failed: %v", err)
	}
}

func TestSupervisorClientError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "locked", http.StatusLocked)
	}))
	defer server.Close()

	c := &SupervisorClient{Address: server.URL, APIKey: "k", Client: server.Client()}
	if err := c.Shutdown(context.Background()); err == nil {
		t.Error("Expected error for non-2xx supervisor response")
	}
}

func TestDetectBoard(t *testing.T) {
	if runtime.GOOS != "linux" {
		t.Skip("board detection only reads linux proc files")
	}
	dir := t.TempDir()
	oldModel, oldCPU, oldBins := modelPath, cpuinfoPath, piBinaries
	defer func() { modelPath, cpuinfoPath, piBinaries = oldModel, oldCPU, oldBins }()

	modelPath = filepath.Join(dir, "model")
	cpuinfoPath = filepath.Join(dir, "cpuinfo")
	piBinaries = nil

	if err := os.WriteFile(modelPath, []byte("Raspberry Pi 4 Model B Rev 1.4\x00"), 0644); err != nil {
		t.Fatal(err)
	}
	b := DetectBoard()
	if !b.IsRaspberryPi || b.Model != "Raspberry Pi 4 Model B Rev 1.4" {
		t.Errorf("Unexpected board %+v", b)
	}

	os.Remove(modelPath)
	if err := os.WriteFile(cpuinfoPath, []byte("processor\t: 0\nModel\t\t: Generic ARM board\n"), 0644); err != nil {
		t.Fatal(err)
	}
	b = DetectBoard()
	if b.IsRaspberryPi || b.Model != "Generic ARM board" {
		t.Errorf("Unexpected board %+v", b)
	}
}
