package control

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/wachiwi/pi-control/pkg/logs"
	"github.com/wachiwi/pi-control/pkg/stats"
	"github.com/wachiwi/pi-control/pkg/system"
)

type fakeStats struct {
	mu      sync.Mutex
	running bool
	stops   int
}

func (f *fakeStats) Sample(context.Context) stats.Stats {
	return stats.Stats{CPULoad: "1.0", MemoryUsed: "2.0", Temperature: stats.NotAvailable, Model: "Unknown"}
}

func (f *fakeStats) Start() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.running = true
	return nil
}

func (f *fakeStats) Stop() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.running = false
	f.stops++
}

func (f *fakeStats) isRunning() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.running
}

type fakeCamera struct {
	mu     sync.Mutex
	active bool
}

func (f *fakeCamera) Start() error { f.mu.Lock(); f.active = true; f.mu.Unlock(); return nil }
func (f *fakeCamera) Stop()        { f.mu.Lock(); f.active = false; f.mu.Unlock() }

func (f *fakeCamera) Status() CameraStatus {
	f.mu.Lock()
	defer f.mu.Unlock()
	return CameraStatus{
		Active:     f.active,
		Available:  true,
		StreamInfo: &StreamInfo{Type: "tcp", Host: "pi.local", Port: 8554, Codec: "h264"},
	}
}

type testEnv struct {
	ct    *Controller
	stats *fakeStats
	cam   *fakeCamera
	store *logs.Store
	level *slog.LevelVar
	url   string
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	env := &testEnv{
		stats: &fakeStats{},
		cam:   &fakeCamera{},
		store: logs.NewStore(100),
		level: new(slog.LevelVar),
	}
	env.ct = NewController(Deps{
		Stats:  env.stats,
		Camera: env.cam,
		Logs:   env.store,
		Level:  env.level,
		Power:  &system.Power{},
	})
	server := httptest.NewServer(env.ct)
	t.Cleanup(server.Close)
	env.url = "ws" + strings.TrimPrefix(server.URL, "http")
	return env
}

func (env *testEnv) dial(t *testing.T) *websocket.Conn {
	t.Helper()
	conn, _, err := websocket.DefaultDialer.Dial(env.url, nil)
	if err != nil {
		t.Fatalf("Dial failed: %v", err)
	}
	t.Cleanup(func() { conn.Close() })
	return conn
}

func send(t *testing.T, conn *websocket.Conn, v any) {
	t.Helper()
	if err := conn.WriteJSON(v); err != nil {
		t.Fatalf("Write failed: %v", err)
	}
}

func read(t *testing.T, conn *websocket.Conn) map[string]any {
	t.Helper()
	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, data, err := conn.ReadMessage()
	if err != nil {
		t.Fatalf("Read failed: %v", err)
	}
	var msg map[string]any
	if err := json.Unmarshal(data, &msg); err != nil {
		t.Fatalf("Invalid JSON %q: %v", data, err)
	}
	return msg
}

func TestWelcomeMessageCountsClients(t *testing.T) {
	env := newTestEnv(t)

	first := env.dial(t)
	msg := read(t, first)
	if msg["type"] != "status" || !strings.Contains(msg["message"].(string), "(1 client(s) connected)") {
		t.Errorf("Unexpected welcome %v", msg)
	}

	second := env.dial(t)
	msg = read(t, second)
	if !strings.Contains(msg["message"].(string), "(2 client(s) connected)") {
		t.Errorf("Unexpected welcome %v", msg)
	}
}

func TestCommands(t *testing.T) {
	env := newTestEnv(t)
	conn := env.dial(t)
	read(t, conn)

	send(t, conn, map[string]any{"type": "getStats"})
	if msg := read(t, conn); msg["type"] != "systemStats" {
		t.Errorf("Expected systemStats, got %v", msg)
	}

	send(t, conn, map[string]any{"type": "getCameraStatus"})
	msg := read(t, conn)
	if msg["type"] != "cameraStatus" || msg["available"] != true || msg["active"] != false {
		t.Errorf("Unexpected camera status %v", msg)
	}
	if info, ok := msg["streamInfo"].(map[string]any); !ok || info["codec"] != "h264" {
		t.Errorf("Expected streamInfo, got %v", msg["streamInfo"])
	}

	send(t, conn, map[string]any{"type": "startCamera"})
	if msg := read(t, conn); msg["message"] != "Starting camera" {
		t.Errorf("Unexpected reply %v", msg)
	}
	send(t, conn, map[string]any{"type": "startCamera"})
	if msg := read(t, conn); msg["message"] != "Camera already active" {
		t.Errorf("Unexpected reply %v", msg)
	}
	send(t, conn, map[string]any{"type": "stopCamera"})
	if msg := read(t, conn); msg["message"] != "Camera stopped" {
		t.Errorf("Unexpected reply %v", msg)
	}

	send(t, conn, map[string]any{"type": "reboot"})
	if msg := read(t, conn); msg["message"] != "Reboot command received" {
		t.Errorf("Unexpected reply %v", msg)
	}
	if msg := read(t, conn); msg["message"] != "Power commands are disabled on this device" {
		t.Errorf("Unexpected reply %v", msg)
	}
}

func TestUnknownAndMalformedMessagesAreIgnored(t *testing.T) {
	env := newTestEnv(t)
	conn := env.dial(t)
	read(t, conn)

	send(t, conn, map[string]any{"type": "partyMode"})
	if err := conn.WriteMessage(websocket.TextMessage, []byte("{not json")); err != nil {
		t.Fatalf("Write failed: %v", err)
	}
	send(t, conn, map[string]any{"type": "getCameraStatus"})

	// The first reply must answer the valid command; the connection survives.
	if msg := read(t, conn); msg["type"] != "cameraStatus" {
		t.Errorf("Expected only the cameraStatus reply, got %v", msg)
	}
}

func TestLogCommands(t *testing.T) {
	env := newTestEnv(t)
	env.store.Append(logs.Entry{Level: logs.LevelInfo, Message: "Camera started"})
	env.store.Append(logs.Entry{Level: logs.LevelError, Message: "Camera failed"})

	conn := env.dial(t)
	read(t, conn)

	send(t, conn, map[string]any{"type": "getLogs", "filter": map[string]any{"level": "ERROR", "limit": 10}})
	msg := read(t, conn)
	entries, ok := msg["logs"].([]any)
	if msg["type"] != "logHistory" || !ok || len(entries) != 1 {
		t.Fatalf("Unexpected log history %v", msg)
	}

	send(t, conn, map[string]any{"type": "setLogLevel", "level": "DEBUG"})
	if msg := read(t, conn); msg["message"] != "Log level set to DEBUG" {
		t.Errorf("Unexpected reply %v", msg)
	}
	if env.level.Level() != slog.LevelDebug {
		t.Errorf("Expected DEBUG level, got %s", env.level.Level())
	}

	send(t, conn, map[string]any{"type": "setLogLevel", "level": "LOUD"})
	if msg := read(t, conn); msg["message"] != "Invalid log level: LOUD" {
		t.Errorf("Unexpected reply %v", msg)
	}
}

func TestBroadcastAndStatsStopOnLastDisconnect(t *testing.T) {
	env := newTestEnv(t)
	a, b := env.dial(t), env.dial(t)
	read(t, a)
	read(t, b)

	send(t, a, map[string]any{"type": "startStatsMonitoring"})
	read(t, a)
	if !env.stats.isRunning() {
		t.Fatal("Expected stats monitoring to run")
	}

	env.ct.Hub().Broadcast(NewLog(logs.Entry{Level: logs.LevelInfo, Message: "hello"}))
	for _, conn := range []*websocket.Conn{a, b} {
		if msg := read(t, conn); msg["type"] != "log" {
			t.Errorf("Expected log broadcast, got %v", msg)
		}
	}

	a.Close()
	b.Close()
	deadline := time.Now().Add(2 * time.Second)
	for env.stats.isRunning() && time.Now().Before(deadline) {
		time.Sleep(10 * time.Millisecond)
	}
	if env.stats.isRunning() {
		t.Error("Expected stats monitoring to stop with the last client")
	}
}
