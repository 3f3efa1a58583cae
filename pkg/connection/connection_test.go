package connection

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"
)

func TestFileStoreRoundTrip(t *testing.T) {
	ctx := context.Background()
	store := NewFileStore(filepath.Join(t.TempDir(), "data", "connection-info.json"))

	if _, err := store.Get(ctx); !errors.Is(err, ErrNotFound) {
		t.Fatalf("Expected ErrNotFound on empty store, got %v", err)
	}

	now := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	want := Info{WSURL: "ws://pi.local:3001/ws", TCPURL: "tcp://pi.local:8554", LastUpdated: &now, Status: StatusOnline}
	if err := store.Save(ctx, want); err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	got, err := store.Get(ctx)
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if got.WSURL != want.WSURL || got.TCPURL != want.TCPURL || got.Status != want.Status || !got.LastUpdated.Equal(now) {
		t.Errorf("Expected %+v, got %+v", want, got)
	}
}

func TestTCPEndpoint(t *testing.T) {
	host, port, err := Info{TCPURL: "tcp://192.168.1.20:8554"}.TCPEndpoint()
	if err != nil || host != "192.168.1.20" || port != 8554 {
		t.Errorf("Unexpected endpoint %s:%d, %v", host, port, err)
	}
	if _, _, err := (Info{TCPURL: "http://pi:80"}).TCPEndpoint(); err == nil {
		t.Error("Expected error for non-tcp url")
	}
}

func TestAnnouncerLifecycle(t *testing.T) {
	ctx := context.Background()
	store := NewFileStore(filepath.Join(t.TempDir(), "connection-info.json"))
	a := NewAnnouncer(store, "ws://pi:3001/ws", "tcp://pi:8554", time.Hour)

	if err := a.Start(ctx); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	info, err := store.Get(ctx)
	if err != nil || info.Status != StatusOnline || info.TCPURL != "tcp://pi:8554" || info.LastUpdated == nil {
		t.Fatalf("Expected online record, got %+v, %v", info, err)
	}

	if err := a.Stop(ctx); err != nil {
		t.Fatalf("Stop failed: %v", err)
	}
	info, _ = store.Get(ctx)
	if info.Status != StatusOffline {
		t.Errorf("Expected offline after Stop, got %q", info.Status)
	}
}

func TestAnnouncerHeartbeatRefreshes(t *testing.T) {
	ctx := context.Background()
	store := NewFileStore(filepath.Join(t.TempDir(), "connection-info.json"))
	a := NewAnnouncer(store, "ws://pi:3001/ws", "tcp://pi:8554", time.Hour)

	first := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	a.now = func() time.Time { return first }
	if err := a.Start(ctx); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	defer a.Stop(ctx)

	a.now = func() time.Time { return first.Add(time.Minute) }
	a.heartbeat()

	info, err := store.Get(ctx)
	if err != nil || !info.LastUpdated.Equal(first.Add(time.Minute)) {
		t.Errorf("Expected refreshed lastUpdated, got %+v, %v", info, err)
	}
}
