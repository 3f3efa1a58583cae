package camera

import (
	"bytes"
	"context"
	"io"
	"net"
	"testing"
	"time"
)

func TestStreamServerRelaysToClient(t *testing.T) {
	l := &fakeLauncher{}
	s := NewSupervisor(CodecH264, l, fastConfig())
	defer s.Close()

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("Listen failed: %v", err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	srv := &StreamServer{Supervisor: s, HighWaterMark: 1 << 20}
	go srv.Serve(ctx, ln)

	conn, err := net.Dial("tcp", ln.Addr().String())
	if err != nil {
		t.Fatalf("Dial failed: %v", err)
	}

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	got := make([]byte, len(testFrame))
	if _, err := io.ReadFull(conn, got); err != nil {
		t.Fatalf("Read failed: %v", err)
	}
	if !bytes.Equal(got, testFrame) {
		t.Errorf("Expected %q, got %q", testFrame, got)
	}

	conn.Close()
	waitFor(t, "consumer detach", func() bool { return s.Status().Consumers == 0 })
	waitFor(t, "stop after grace", stateIs(s, StateStopped))
}
