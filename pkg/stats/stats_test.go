package stats

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/shirou/gopsutil/v4/host"
	"github.com/wachiwi/pi-control/pkg/system"
)

func value(v float64) func(context.Context) (float64, error) {
	return func(context.Context) (float64, error) { return v, nil }
}

func failing(context.Context) (float64, error) { return 0, errors.New("unsupported") }

func TestSampleFormatsValues(t *testing.T) {
	s := NewSamplerWithProbes(system.Board{IsRaspberryPi: true, Model: "Raspberry Pi 4"}, Probes{
		CPUPercent:  value(12.345),
		MemPercent:  value(50),
		Temperature: value(48.25),
		Host: func(context.Context) (*host.InfoStat, error) {
			return &host.InfoStat{Hostname: "pi", Uptime: 3600}, nil
		},
		DiskPercent: value(71.06),
	})

	st := s.Sample(context.Background())
	if st.CPULoad != "12.3" || st.MemoryUsed != "50.0" || st.Temperature != "48.2" && st.Temperature != "48.3" {
		t.Errorf("Unexpected values %+v", st)
	}
	if st.DiskUsage == nil || *st.DiskUsage != "71.1" {
		t.Errorf("Unexpected disk usage %v", st.DiskUsage)
	}
	if !st.IsRaspberryPi || st.Model != "Raspberry Pi 4" || st.Hostname != "pi" || st.Uptime != 3600 {
		t.Errorf("Unexpected host info %+v", st)
	}
	if st.Error != "" {
		t.Errorf("Expected no error, got %q", st.Error)
	}
}

func TestSampleDegradesToPlaceholders(t *testing.T) {
	s := NewSamplerWithProbes(system.Board{}, Probes{
		CPUPercent:  failing,
		MemPercent:  failing,
		Temperature: failing,
		Host: func(context.Context) (*host.InfoStat, error) {
			return nil, errors.New("no host")
		},
		DiskPercent: failing,
	})

	st := s.Sample(context.Background())
	if st.CPULoad != NotAvailable || st.MemoryUsed != NotAvailable || st.Temperature != NotAvailable {
		t.Errorf("Expected placeholders, got %+v", st)
	}
	if st.Model != "Unknown" || st.Error == "" {
		t.Errorf("Expected Unknown model and an error, got %+v", st)
	}

	data, err := json.Marshal(st)
	if err != nil {
		t.Fatalf("Marshal failed: %v", err)
	}
	var raw map[string]any
	json.Unmarshal(data, &raw)
	if v, ok := raw["diskUsage"]; !ok || v != nil {
		t.Errorf("Expected diskUsage to be null, got %v", v)
	}
}

func TestBroadcasterStartStop(t *testing.T) {
	s := NewSamplerWithProbes(system.Board{}, Probes{
		CPUPercent:  value(1),
		MemPercent:  value(2),
		Temperature: failing,
		Host:        func(context.Context) (*host.InfoStat, error) { return &host.InfoStat{}, nil },
		DiskPercent: failing,
	})

	var mu sync.Mutex
	var got []Stats
	b := NewBroadcaster(s, time.Second, func(st Stats) {
		mu.Lock()
		got = append(got, st)
		mu.Unlock()
	})

	if err := b.Start(); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	if err := b.Start(); err != nil {
		t.Fatalf("Second Start failed: %v", err)
	}
	if !b.Running() {
		t.Fatal("Expected broadcaster to be running")
	}

	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) {
		mu.Lock()
		n := len(got)
		mu.Unlock()
		if n > 0 {
			break
		}
		time.Sleep(20 * time.Millisecond)
	}

	b.Stop()
	mu.Lock()
	n := len(got)
	mu.Unlock()
	if n == 0 {
		t.Fatal("Expected at least one broadcast")
	}

	time.Sleep(1500 * time.Millisecond)
	mu.Lock()
	defer mu.Unlock()
	if len(got) != n {
		t.Errorf("Broadcast after Stop: %d then %d", n, len(got))
	}
	if got[0].CPULoad != "1.0" {
		t.Errorf("Unexpected sample %+v", got[0])
	}
}
